package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kokistudios/kiln/internal/assist"
	"github.com/kokistudios/kiln/internal/ui"
)

func assistCmd() *cobra.Command {
	var extra string
	cmd := &cobra.Command{
		Use:   "assist <heating|forms|room> [session]",
		Short: "Ask the assistant for prompts, forms or a room name",
		Long: "Ask the configured assistant (Gemini or the claude CLI) for help with a session.\n" +
			"heating suggests ways to dissolve the current form, forms suggests new ones, " +
			"room proposes a name and spirit.",
		Example: `  kiln assist heating
  kiln assist room latest --context "it happened on the porch"`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			kind, err := assist.ParseKind(args[0])
			if err != nil {
				return err
			}
			s, err := loadStore()
			if err != nil {
				return err
			}
			defer s.Close()
			sess, err := resolveSession(ctx, s, args[1:])
			if err != nil {
				return err
			}
			a, err := assist.FromStore(s)
			if err != nil {
				return err
			}
			if err := a.Available(); err != nil {
				return fmt.Errorf("%s: %w", a.Backend(), err)
			}

			sp := ui.NewSpinner(fmt.Sprintf("Asking %s...", a.Backend()))
			var items []string
			var suggestion assist.RoomSuggestion
			switch kind {
			case assist.KindHeating:
				items, err = a.Heating(ctx, sess.AnchorName, sess.StartingForm)
			case assist.KindForms:
				items, err = a.Forms(ctx, sess.AnchorName, sess.StartingForm, sess.AllReflections())
			case assist.KindRoom:
				suggestion, err = a.Room(ctx, sess.AnchorName, sess.StartingForm, sess.AllReflections(), extra)
			}
			sp.Stop()
			if err != nil {
				if errors.Is(err, assist.ErrInvalidResponse) {
					return fmt.Errorf("%s returned something kiln could not read: %w", a.Backend(), err)
				}
				return err
			}

			if kind == assist.KindRoom {
				ui.RoomEmerged(suggestion.Name, suggestion.Spirit)
				ui.Info(fmt.Sprintf("Keep it with: kiln session name %s %q --spirit %q", sess.ID, suggestion.Name, suggestion.Spirit))
				return nil
			}
			for _, it := range items {
				fmt.Printf("  %s %s\n", ui.Dim("-"), it)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&extra, "context", "", "Extra context for room suggestions")
	return cmd
}
