package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"shoutd/internal/daemon"
	"shoutd/internal/journal"
	"shoutd/internal/logging"
)

func newRunCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the worker loop until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFlag)
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			logger, err := newLogger(cfg, true)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			store, err := journal.Open(cfg.JournalPath())
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}

			w, err := buildWorker(cfg, store, logger)
			if err != nil {
				store.Close()
				return err
			}

			d, err := daemon.New(cfg, w, store, logger)
			if err != nil {
				store.Close()
				return err
			}
			defer d.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if err := d.Start(ctx); err != nil {
				return err
			}

			<-ctx.Done()
			logger.Info("shoutd shutting down", logging.String("component", "main"))
			d.Stop()
			return nil
		},
	}
}
