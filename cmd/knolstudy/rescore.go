package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRescoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rescore <learner-id> <deck-id>",
		Short: "Recompute a learner's stored deck scores",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			scores, err := a.service().RefreshDeckScores(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range scores {
				fmt.Fprintf(out, "%-6s accuracy %5.1f%%  avg stability %6.2f  lapses %d\n",
					s.Window, s.AccuracyPercent, s.AvgStability, s.LapseCount)
			}
			return nil
		},
	}
}
