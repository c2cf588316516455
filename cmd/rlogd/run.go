package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/samborder/rlog/config"
	"github.com/samborder/rlog/membership"
	"github.com/samborder/rlog/rlog"
	"github.com/samborder/rlog/statemachine"
	"github.com/samborder/rlog/store"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start an RLog node and block until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode()
		},
	}
}

func runNode() error {
	settings, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("rlogd: building logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck
	sugar := logger.Sugar()

	if err := os.MkdirAll(settings.DataDir, 0o755); err != nil {
		return fmt.Errorf("rlogd: creating data dir: %w", err)
	}
	db, err := store.OpenBoltDB(filepath.Join(settings.DataDir, "rlog.db"))
	if err != nil {
		return fmt.Errorf("rlogd: opening store: %w", err)
	}
	defer db.Close()

	allIDs := make([]membership.ServerID, len(settings.AllServerIDs))
	for i, id := range settings.AllServerIDs {
		allIDs[i] = membership.ServerID(id)
	}
	roster, err := membership.NewRoster(allIDs, membership.ServerID(settings.ServerID), settings.FixedLogSizeCompaction)
	if err != nil {
		return fmt.Errorf("rlogd: building roster: %w", err)
	}

	sm := statemachine.NewMemKV()

	rl, err := rlog.New(db, sm, roster, sugar, settings.SnapshotRetention)
	if err != nil {
		return fmt.Errorf("rlogd: recovering log: %w", err)
	}

	sugar.Infow("rlog node ready",
		"server_id", settings.ServerID,
		"commit_index", rl.CommitIndex(),
		"data_dir", settings.DataDir,
	)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	sugar.Infow("shutting down", "commit_index", rl.CommitIndex())
	return nil
}
