package main

import (
	"fmt"

	decksync "github.com/conorfennell/knolstudy/internal/sync"
	"github.com/spf13/cobra"
)

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <dir>",
		Short: "Parse a directory of Markdown cards without storing them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			drafts, parseErrs, err := decksync.Scan(args[0])
			if err != nil {
				return fmt.Errorf("error walking directory %s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Found %d cards, %d errors.\n", len(drafts), len(parseErrs))
			if len(parseErrs) > 0 {
				fmt.Fprintln(out, "\nErrors:")
				for _, e := range parseErrs {
					fmt.Fprintf(out, "- %s\n", e)
				}
			}
			return nil
		},
	}
}
