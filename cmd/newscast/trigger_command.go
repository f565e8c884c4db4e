package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"newscastd/internal/schedule"
)

func newTriggerCommand(ctx *commandContext) *cobra.Command {
	var topicIndex int

	cmd := &cobra.Command{
		Use:   "trigger <stage>",
		Short: "Run one pipeline stage immediately",
		Long: "Dispatches a stage outside the daily timetable. Stages: crawl-topics, crawl-details, " +
			"generate-news, generate-script, generate-audio, merge-audio, complete. " +
			"The per-topic stages require --topic.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			kind, ok := schedule.ParseKind(name)
			if !ok {
				return fmt.Errorf("unknown stage %q", name)
			}
			if (schedule.WorkItem{Kind: kind}).PerTopic() && topicIndex < 1 {
				return fmt.Errorf("stage %s requires --topic", name)
			}

			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.Trigger(cmd.Context(), name, topicIndex)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			tick := resp.Tick
			if tick.RunID != "" {
				fmt.Fprintf(out, "%s completed for run %s in %dms\n", tick.Work, tick.RunID, tick.DurationMS)
			} else {
				fmt.Fprintf(out, "%s completed in %dms (no active run)\n", tick.Work, tick.DurationMS)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&topicIndex, "topic", 0, "Topic index for the per-topic stages (1-10)")
	return cmd
}
