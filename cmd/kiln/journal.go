package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kokistudios/kiln/internal/journal"
)

func journalCmd() *cobra.Command {
	var search, anchorName string
	var limit, budget int
	var full, asContext, listAnchors bool
	cmd := &cobra.Command{
		Use:     "journal",
		Aliases: []string{"j"},
		Short:   "Browse completed sessions",
		Long:    "The journal lists completed sessions newest first. --search matches the observation, room name and anchor name.",
		Example: `  kiln journal
  kiln journal --search porch --anchor "Order Seeking"
  kiln journal --context --budget 2000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			defer s.Close()
			if !cmd.Flags().Changed("limit") {
				limit = s.Config.Journal.Limit
			}

			if listAnchors {
				all, err := journal.Load(cmd.Context(), s, journal.Query{})
				if err != nil {
					return err
				}
				for _, a := range journal.Anchors(all) {
					fmt.Println(a)
				}
				return nil
			}

			entries, err := journal.Load(cmd.Context(), s, journal.Query{Search: search, Anchor: anchorName, Limit: limit})
			if err != nil {
				return err
			}
			if asContext {
				fmt.Print(journal.FormatContext(entries, budget))
				return nil
			}
			fmt.Println(journal.FormatTerminal(entries, full))
			return nil
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "Case-insensitive text to look for")
	cmd.Flags().StringVarP(&anchorName, "anchor", "a", "", "Only entries on this anchor")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum entries (default from journal.limit, 0 for all)")
	cmd.Flags().BoolVar(&full, "full", false, "Do not clip long text")
	cmd.Flags().BoolVar(&asContext, "context", false, "Print markdown for pasting into an agent")
	cmd.Flags().IntVar(&budget, "budget", 0, "Approximate token budget for --context (0 for no limit)")
	cmd.Flags().BoolVar(&listAnchors, "anchors", false, "List the anchors that appear in the journal")
	cmd.MarkFlagsMutuallyExclusive("context", "full")
	return cmd
}
