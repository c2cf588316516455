package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/samborder/rlog/config"
	"github.com/samborder/rlog/store"
)

func newDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print a node's durable commit index, entry count, and snapshot history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return dumpState()
		},
	}
}

func dumpState() error {
	settings, err := config.Load(configPath)
	if err != nil {
		return err
	}

	db, err := store.OpenBoltDB(filepath.Join(settings.DataDir, "rlog.db"))
	if err != nil {
		return fmt.Errorf("rlogd: opening store: %w", err)
	}
	defer db.Close()

	commitIndex, err := db.CommitIndex().Get()
	if err != nil {
		return err
	}
	entryCount, err := db.Entries().Size()
	if err != nil {
		return err
	}

	fmt.Printf("server_id:    %s\n", settings.ServerID)
	fmt.Printf("commit_index: %d\n", commitIndex)
	fmt.Printf("entries:      %d\n", entryCount)
	fmt.Printf("snapshots:\n")

	return db.Snapshots().ForEach(func(key int64, value []byte) error {
		fmt.Printf("  created_at=%d size=%dB\n", key, len(value))
		return nil
	})
}
