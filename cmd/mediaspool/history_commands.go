package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mediaspool/internal/queue"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect archived uploads",
	}

	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryPurgeCommand(ctx))

	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived uploads, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(eng *engine) error {
				var statuses []queue.Status
				if statusFilter != "" {
					status, ok := queue.ParseStatus(statusFilter)
					if !ok {
						return fmt.Errorf("unknown status %q", statusFilter)
					}
					statuses = append(statuses, status)
				}

				entries, err := eng.history.List(cmd.Context(), limit, statuses...)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "History is empty.")
					return nil
				}

				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					completed := ""
					if entry.CompletedAt != nil {
						completed = entry.CompletedAt.Local().Format(time.DateTime)
					}
					rows = append(rows, []string{
						entry.ID,
						entry.Filename,
						statusCaser.String(string(entry.Status)),
						completed,
						entry.ArchivedAt.Local().Format(time.DateTime),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Filename", "Status", "Completed", "Archived"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show (0 for all)")
	cmd.Flags().StringVar(&statusFilter, "status", "", "Only show entries with this status")
	return cmd
}

func newHistoryPurgeCommand(ctx *commandContext) *cobra.Command {
	var olderThanDays int

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete history entries past the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(eng *engine) error {
				days := olderThanDays
				if days < 0 {
					days = eng.cfg.Retention.HistoryPurgeDays
				}
				cutoff := time.Now().UTC().AddDate(0, 0, -days)
				purged, err := eng.history.PurgeOlderThan(cmd.Context(), cutoff)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Purged %d history entr%s.\n", purged, pluralY(purged))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&olderThanDays, "older-than", -1, "Age threshold in days (defaults to the configured purge window)")
	return cmd
}

func pluralY(count int64) string {
	if count == 1 {
		return "y"
	}
	return "ies"
}
