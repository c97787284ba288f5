package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"shoutd/internal/config"
)

func newConfigCommand(configFlag *string) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(configFlag))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to point queue.endpoint at your Pub/Sub service before running shoutd.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigShowCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Validate and display the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if configFlag != nil {
				path = *configFlag
			}
			cfg, resolved, exists, err := config.Load(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if exists {
				fmt.Fprintf(out, "Configuration loaded from %s\n\n", resolved)
			} else {
				fmt.Fprintf(out, "No configuration file found (looked for %s); using defaults\n\n", resolved)
			}

			rows := [][]string{
				{"queue.endpoint", cfg.Queue.Endpoint},
				{"queue.project", cfg.Queue.Project},
				{"queue.subscription", cfg.Queue.Subscription},
				{"queue.pull_timeout", fmt.Sprintf("%ds", cfg.Queue.PullTimeout)},
				{"queue.request_timeout", fmt.Sprintf("%ds", cfg.Queue.RequestTimeout)},
				{"status.request_timeout", fmt.Sprintf("%ds", cfg.Status.RequestTimeout)},
				{"worker.renew_interval", fmt.Sprintf("%ds", cfg.Worker.RenewInterval)},
				{"worker.lease_extension", fmt.Sprintf("%ds", cfg.Worker.LeaseExtension)},
				{"worker.error_retry_interval", fmt.Sprintf("%ds", cfg.Worker.ErrorRetryInterval)},
				{"shout.simulate", fmt.Sprintf("%t", cfg.Shout.Simulate)},
				{"shout.corn_failure_rate", fmt.Sprintf("%.2f", cfg.Shout.CornFailureRate)},
				{"shout.time_scale", fmt.Sprintf("%.2f", cfg.Shout.TimeScale)},
				{"paths.log_dir", cfg.Paths.LogDir},
				{"paths.data_dir", cfg.Paths.DataDir},
				{"logging.level", cfg.Logging.Level},
				{"logging.format", cfg.Logging.Format},
			}
			fmt.Fprintln(out, renderTable([]string{"Setting", "Value"}, rows))
			return nil
		},
	}
}
