package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"mediaspool/internal/quota"
	"mediaspool/internal/tier"
)

const (
	ansiReset  = "\x1b[0m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiRed    = "\x1b[31m"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue health, disk capacity, and catalog tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(eng *engine) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				health, err := eng.queue.Health(cmd.Context())
				if err != nil {
					return err
				}
				archived, err := eng.history.Count(cmd.Context())
				if err != nil {
					return err
				}

				rows := [][]string{
					{"Total", strconv.Itoa(health.Total)},
					{"Queued", strconv.Itoa(health.Queued)},
					{"Uploading", strconv.Itoa(health.Uploading)},
					{"Paused", strconv.Itoa(health.Paused)},
					{"Completed", strconv.Itoa(health.Completed)},
					{"Errored", colorizeCount(health.Errored, ansiRed, colorize)},
					{"Cancelled", strconv.Itoa(health.Cancelled)},
					{"Archived", strconv.Itoa(archived)},
				}
				fmt.Fprintln(out, renderTable([]string{"State", "Items"}, rows, []columnAlignment{alignLeft, alignRight}))

				snapshot := quota.Measure(eng.cfg.Paths.DataDir)
				fmt.Fprintln(out, renderCapacity(snapshot, colorize))

				controller, err := tier.NewController(eng.cfg, eng.blobs, nil)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Catalog on fallback tier: %s\n", yesNo(controller.UsingFallback()))
				return nil
			})
		},
	}
}

func renderCapacity(snapshot quota.Snapshot, colorize bool) string {
	if snapshot.Quota == nil || snapshot.Usage == nil || snapshot.Percentage == nil {
		return "Disk capacity: unknown"
	}

	percent := *snapshot.Percentage
	value := fmt.Sprintf("%.1f%%", percent)
	if colorize {
		color := ansiGreen
		switch {
		case percent >= 95:
			color = ansiRed
		case percent >= 80:
			color = ansiYellow
		}
		value = color + value + ansiReset
	}
	return fmt.Sprintf("Disk capacity: %s used (%s of %s)", value, formatBytes(*snapshot.Usage), formatBytes(*snapshot.Quota))
}

func colorizeCount(count int, color string, colorize bool) string {
	value := strconv.Itoa(count)
	if colorize && count > 0 {
		return color + value + ansiReset
	}
	return value
}

func formatBytes(value uint64) string {
	const unit = 1024
	if value < unit {
		return fmt.Sprintf("%d B", value)
	}
	div, exp := uint64(unit), 0
	for n := value / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(value)/float64(div), "KMGTPE"[exp])
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
