package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"mediaspool/internal/queue"
)

var statusCaser = cases.Title(language.English)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the upload queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueuePauseCommand(ctx))
	queueCmd.AddCommand(newQueueResumeCommand(ctx))
	queueCmd.AddCommand(newQueueCancelCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List queue items in processing order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(eng *engine) error {
				items, err := eng.queue.List(cmd.Context())
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty.")
					return nil
				}

				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						item.ID,
						item.Filename,
						statusCaser.String(string(item.Status)),
						strconv.Itoa(item.Priority),
						fmt.Sprintf("%d%%", item.Progress.Percentage),
						strconv.Itoa(item.RetryCount),
						item.Error,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Filename", "Status", "Priority", "Progress", "Retries", "Error"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <item-id>",
		Short: "Requeue an errored item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(eng *engine) error {
				item, err := eng.queue.Requeue(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Item %s requeued (attempt %d).\n", item.ID, item.RetryCount+1)
				return nil
			})
		},
	}
}

func newQueuePauseCommand(ctx *commandContext) *cobra.Command {
	return newStatusTransitionCommand(ctx, "pause", "Pause an item", queue.StatusPaused)
}

func newQueueCancelCommand(ctx *commandContext) *cobra.Command {
	return newStatusTransitionCommand(ctx, "cancel", "Cancel an item and release its content hash", queue.StatusCancelled)
}

func newQueueResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <item-id>",
		Short: "Return a paused item to the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(eng *engine) error {
				item, err := eng.queue.GetByID(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("item %s not found", args[0])
				}
				if item.Status != queue.StatusPaused {
					return fmt.Errorf("item %s is %s, not paused", args[0], item.Status)
				}
				if _, err := eng.queue.UpdateStatus(cmd.Context(), args[0], queue.StatusQueued, nil); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Item %s resumed.\n", args[0])
				return nil
			})
		},
	}
}

func newStatusTransitionCommand(ctx *commandContext, verb, short string, target queue.Status) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <item-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(eng *engine) error {
				item, err := eng.queue.UpdateStatus(cmd.Context(), args[0], target, nil)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Item %s is now %s.\n", item.ID, item.Status)
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <item-id>",
		Short: "Delete an item from the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(eng *engine) error {
				if err := eng.queue.Remove(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Item %s removed.\n", args[0])
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var olderThanHours int

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete completed items past the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(eng *engine) error {
				hours := olderThanHours
				if hours < 0 {
					hours = eng.cfg.Retention.QueueSweepHours
				}
				cutoff := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
				removed, err := eng.queue.ClearCompletedOlderThan(cmd.Context(), cutoff)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d completed item(s).\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&olderThanHours, "older-than", -1, "Age threshold in hours (defaults to the configured sweep window)")
	return cmd
}
