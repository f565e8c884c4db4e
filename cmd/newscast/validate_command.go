package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newValidateCommand(ctx *commandContext) *cobra.Command {
	var runID string
	var promote bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a run's merged audio tracks",
		Long:  "Checks every topic's merged track for presence and MPEG frame sync. With --promote, a fully valid run becomes the published one.",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.Validate(cmd.Context(), runID, promote)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(resp.Results))
			for _, result := range resp.Results {
				verdict := "ok"
				if !result.Valid {
					verdict = "INVALID"
				}
				rows = append(rows, []string{
					strconv.Itoa(result.TopicIndex),
					verdict,
					strconv.FormatInt(result.SizeBytes, 10),
					result.Reason,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Topic", "Verdict", "Bytes", "Reason"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft},
			))

			fmt.Fprintf(out, "\nRun %s: %d/%d tracks valid\n", resp.RunID, resp.ValidCount, len(resp.Results))
			switch {
			case resp.Promoted && resp.PreviousPublished != "":
				fmt.Fprintf(out, "Promoted to published (was %s)\n", resp.PreviousPublished)
			case resp.Promoted:
				fmt.Fprintln(out, "Promoted to published (first publication)")
			case promote:
				fmt.Fprintln(out, "Promotion withheld")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "Run to validate (defaults to the active run)")
	cmd.Flags().BoolVar(&promote, "promote", false, "Promote the run when every track is valid")
	return cmd
}
