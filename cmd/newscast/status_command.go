package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

const (
	ansiReset = "\x1b[0m"
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and pipeline state",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			runningLabel := "stopped"
			if status.Running {
				runningLabel = "running"
			}
			if colorize {
				if status.Running {
					runningLabel = ansiGreen + runningLabel + ansiReset
				} else {
					runningLabel = ansiRed + runningLabel + ansiReset
				}
			}
			fmt.Fprintf(out, "newscastd %s (pid %d)\n\n", runningLabel, status.PID)

			rows := [][]string{
				{"Active run", orDash(status.ActiveRunID)},
				{"Published run", orDash(status.PublishedRunID)},
				{"Detail cursor", strconv.Itoa(status.DetailCursor)},
				{"State DB", status.StateDBPath},
				{"Lock file", status.LockFilePath},
			}
			fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, nil))

			tick := status.LastTick
			if tick.At.IsZero() {
				fmt.Fprintln(out, "\nNo tick recorded yet.")
				return nil
			}
			tickRows := [][]string{
				{"At", tick.At.Format(time.RFC3339)},
				{"Work", orDash(tick.Work)},
				{"Topic", zeroDash(tick.TopicIndex)},
				{"Run", orDash(tick.RunID)},
				{"Skipped", orDash(tick.Skipped)},
				{"Error", orDash(tick.Error)},
				{"Duration", fmt.Sprintf("%dms", tick.DurationMS)},
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, renderTable([]string{"Last tick", ""}, tickRows, nil))
			return nil
		},
	}
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}

func zeroDash(value int) string {
	if value == 0 {
		return "-"
	}
	return strconv.Itoa(value)
}
