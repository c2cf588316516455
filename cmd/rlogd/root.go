package main

import (
	"github.com/spf13/cobra"
)

var configPath string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rlogd",
		Short: "Administrative CLI for an RLog node",
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a config file (YAML/JSON/TOML)")
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newDumpCmd())
	return cmd
}
