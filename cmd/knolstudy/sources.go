package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile every deck with its source",
		Long: `Pull git sources and reparse every deck. Cards whose text disappeared
from the source are deleted together with their review history.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			reports, runErr := a.syncer().RunAll(cmd.Context())
			out := cmd.OutOrStdout()
			for _, r := range reports {
				fmt.Fprintf(out, "%s: parsed %d, stored %d, deleted %d, errors %d\n", r.DeckID, r.Parsed, r.Stored, r.Deleted, len(r.Errors))
				for _, e := range r.Errors {
					fmt.Fprintf(out, "  - %s\n", e)
				}
			}
			return runErr
		},
	}
}

func newAddSourceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-source <path|url.git>",
		Short: "Register a local directory or git repository as a deck",
		Long: `Register a deck source. Paths ending in .git, https:// URLs and
git@host:repo addresses are cloned on sync; anything else must be a local
directory.

Examples:
  knolstudy add-source ~/notes/go
  knolstudy add-source https://github.com/acme/cards.git --owner alice`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			name, _ := cmd.Flags().GetString("name")
			owner, _ := cmd.Flags().GetString("owner")
			deck, err := a.syncer().AddSource(cmd.Context(), args[0], name, owner)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added deck %s (%s) from %s\n", deck.ID, deck.Name, deck.Path)
			return nil
		},
	}
	cmd.Flags().String("name", "", "deck name (defaults to the directory name)")
	cmd.Flags().String("owner", "", "learner the deck is private to (shared when empty)")
	return cmd
}

func newRemoveSourceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove-source <deck-id>",
		Short: "Delete a deck with its cards and review history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			owner, _ := cmd.Flags().GetString("owner")
			if err := a.syncer().RemoveSource(cmd.Context(), args[0], owner); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed deck %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().String("owner", "", "learner owning a private deck")
	return cmd
}
