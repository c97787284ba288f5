package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shoutd/internal/journal"
)

const resultColumnWidth = 48

func newHistoryCommand(configFlag *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent shout attempts from the local journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFlag)
			if err != nil {
				return err
			}

			store, err := journal.Open(cfg.JournalPath())
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer store.Close()

			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("read journal: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No attempts recorded yet.")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					e.FinishedAt.Local().Format("2006-01-02 15:04:05"),
					e.MessageID,
					e.Outcome,
					e.State,
					truncate(detailColumn(e), resultColumnWidth),
					e.Host,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Finished", "Message", "Outcome", "Status", "Detail", "Host"},
				rows,
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of attempts to show")
	return cmd
}

func detailColumn(e journal.Entry) string {
	if e.ErrorMessage != "" {
		return e.ErrorMessage
	}
	return e.Result
}

func truncate(value string, max int) string {
	if max <= 3 || len(value) <= max {
		return value
	}
	return value[:max-3] + "..."
}
