package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"shoutd/internal/journal"
)

func newOnceCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Process at most one queued message and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFlag)
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			logger, err := newLogger(cfg, false)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			store, err := journal.Open(cfg.JournalPath())
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer store.Close()

			w, err := buildWorker(cfg, store, logger)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			outcome := w.RunOnce(ctx)
			fmt.Fprintln(cmd.OutOrStdout(), outcome)
			if outcome.Code() < 0 {
				return fmt.Errorf("attempt finished with outcome %s", outcome)
			}
			return nil
		},
	}
}
