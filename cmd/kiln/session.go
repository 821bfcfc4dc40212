package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/kokistudios/kiln/internal/anchor"
	"github.com/kokistudios/kiln/internal/phase"
	"github.com/kokistudios/kiln/internal/room"
	"github.com/kokistudios/kiln/internal/session"
	"github.com/kokistudios/kiln/internal/store"
	"github.com/kokistudios/kiln/internal/ui"
)

func sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "session",
		Aliases: []string{"s"},
		Short:   "Start, resume and manage reflection sessions",
		Long:    "A session carries one form of an anchor through the six phases. Sessions are saved after every phase and can be resumed.",
	}
	cmd.AddCommand(sessionStartCmd())
	cmd.AddCommand(sessionResumeCmd())
	cmd.AddCommand(sessionListCmd())
	cmd.AddCommand(sessionShowCmd())
	cmd.AddCommand(sessionReflectCmd())
	cmd.AddCommand(sessionTimerCmd())
	cmd.AddCommand(sessionDurationCmd())
	cmd.AddCommand(sessionNameCmd())
	cmd.AddCommand(sessionFinalizeCmd())
	cmd.AddCommand(sessionDeleteCmd())
	return cmd
}

func sessionStartCmd() *cobra.Command {
	var quick, noFlow bool
	var count int
	cmd := &cobra.Command{
		Use:   "start [anchor] [form]",
		Short: "Start a new session",
		Long: "Start a session. With no arguments the default anchor and form are used " +
			"(Anxiety Navigation / The WiFi Fails). --quick offers a picker over the first built-in anchors; " +
			"--count sets how many (default from session.quick_start_count) and implies --quick.",
		Example: `  kiln session start
  kiln session start "Order Seeking" "The Regular Club"
  kiln session start --quick
  kiln session start --quick --count 5`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := loadStore()
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := quickCount(quick, count, s.Config.Session.QuickStartCount, args)
			if err != nil {
				return err
			}
			a, form, err := chooseAnchorAndForm(ctx, s, args, n)
			if err != nil {
				return err
			}

			sess, err := session.Create(ctx, s, a.Name, form)
			if err != nil {
				return err
			}
			ui.Logger.Debug("session created", "id", sess.ID, "anchor", a.Name, "form", form)
			ui.SessionHeader(sess.ID, sess.AnchorName, sess.StartingForm)
			ui.Ember()

			if noFlow {
				ui.Info(fmt.Sprintf("Continue with 'kiln session resume %s'", sess.ID))
				return nil
			}
			return runFlow(ctx, s, sess)
		},
	}
	cmd.Flags().BoolVarP(&quick, "quick", "q", false, "Pick the anchor from the first built-in anchors")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Number of anchors --quick offers (default from session.quick_start_count)")
	cmd.Flags().BoolVar(&noFlow, "no-flow", false, "Create the session without entering the guided flow")
	return cmd
}

// quickCount returns how many built-ins the quick picker offers, or 0 when
// quick mode is off.
func quickCount(quick bool, count, fallback int, args []string) (int, error) {
	if !quick && count == 0 {
		return 0, nil
	}
	if count < 0 {
		return 0, fmt.Errorf("--count must be positive, got %d", count)
	}
	if len(args) > 0 {
		return 0, fmt.Errorf("--quick picks the anchor interactively; unexpected argument %q (use --count N to size the list)", args[0])
	}
	if count == 0 {
		count = fallback
	}
	if count < 1 {
		count = 1
	}
	return count, nil
}

// chooseAnchorAndForm resolves the anchor and form from args, falling back
// to pickers in quick mode and to the default pair when nothing is given.
func chooseAnchorAndForm(ctx context.Context, s *store.Store, args []string, quick int) (anchor.Anchor, string, error) {
	if len(args) == 0 && quick == 0 {
		return anchor.Default(), anchor.DefaultForm, nil
	}

	var a anchor.Anchor
	if len(args) > 0 {
		resolved, err := anchor.Resolve(ctx, s, args[0])
		if err != nil {
			return anchor.Anchor{}, "", err
		}
		a = resolved
	} else {
		catalog := anchor.QuickStart(quick)
		choices := make([]ui.Choice, len(catalog))
		for i, c := range catalog {
			choices[i] = ui.Choice{Label: c.Name, Detail: c.Description}
		}
		idx, err := ui.SelectOne("Which anchor is pulling at you?", choices)
		if err != nil {
			return anchor.Anchor{}, "", err
		}
		a = catalog[idx]
	}

	if len(args) > 1 {
		return a, args[1], nil
	}
	if len(a.TentativeForms) == 0 {
		form, err := ui.PromptLine("Where does this anchor show up?", "name the form", "")
		if err != nil {
			return anchor.Anchor{}, "", err
		}
		if form == "" {
			return anchor.Anchor{}, "", fmt.Errorf("a form is required")
		}
		return a, form, nil
	}
	choices := make([]ui.Choice, len(a.TentativeForms))
	for i, f := range a.TentativeForms {
		choices[i] = ui.Choice{Label: f.FormName, Detail: f.Context}
	}
	idx, err := ui.SelectOne(fmt.Sprintf("%s: which form?", a.Name), choices)
	if err != nil {
		return anchor.Anchor{}, "", err
	}
	return a, a.TentativeForms[idx].FormName, nil
}

func sessionResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume [session]",
		Short: "Continue a session from its first empty phase",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := loadStore()
			if err != nil {
				return err
			}
			defer s.Close()
			sess, err := resolveSession(ctx, s, args)
			if err != nil {
				return err
			}
			if sess.IsComplete {
				ui.Info(fmt.Sprintf("Session %s is already complete.", sess.ID))
				return nil
			}
			ui.SessionHeader(sess.ID, sess.AnchorName, sess.StartingForm)
			return runFlow(ctx, s, sess)
		},
	}
}

func sessionListCmd() *cobra.Command {
	var complete, open bool
	var anchorName string
	var limit int
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if complete && open {
				return fmt.Errorf("--complete and --open are mutually exclusive")
			}
			s, err := loadStore()
			if err != nil {
				return err
			}
			defer s.Close()
			list, err := session.List(cmd.Context(), s, session.Filter{
				CompletedOnly:  complete,
				InProgressOnly: open,
				Anchor:         anchorName,
				Limit:          limit,
			})
			if err != nil {
				return err
			}
			if len(list) == 0 {
				ui.EmptyState("No sessions yet. Start one with 'kiln session start'.")
				return nil
			}
			var rows [][]string
			for _, sess := range list {
				status := fmt.Sprintf("%d/%d", sess.Progress(), phase.Count)
				if sess.IsComplete {
					status = "complete"
				}
				rows = append(rows, []string{
					sess.ID,
					sess.AnchorName,
					sess.StartingForm,
					status,
					sess.RoomName,
				})
			}
			ui.Table([]string{"ID", "ANCHOR", "FORM", "STATUS", "ROOM"}, rows)
			return nil
		},
	}
	cmd.Flags().BoolVar(&complete, "complete", false, "Only completed sessions")
	cmd.Flags().BoolVar(&open, "open", false, "Only sessions in progress")
	cmd.Flags().StringVar(&anchorName, "anchor", "", "Only sessions on this anchor")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum sessions to show")
	return cmd
}

func sessionShowCmd() *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "show [session]",
		Short: "Show a session summary (default: latest)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			defer s.Close()
			sess, err := resolveSession(cmd.Context(), s, args)
			if err != nil {
				return err
			}
			if raw {
				fmt.Print(sess.Markdown())
				return nil
			}
			ui.PrintMarkdown(sess.Markdown())
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the markdown source instead of rendering it")
	return cmd
}

func sessionReflectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reflect <session> <phase> [text]",
		Short: "Write or replace one phase's reflection",
		Long:  "Set a reflection. The phase may be a number (1-6) or a name such as form-tying. Without text an editor opens seeded with the current reflection.",
		Example: `  kiln session reflect latest 1 "I reach for my phone at every pause"
  kiln session reflect 20260101-the-wifi observation`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := loadStore()
			if err != nil {
				return err
			}
			defer s.Close()
			sess, err := resolveSession(ctx, s, args[:1])
			if err != nil {
				return err
			}
			p, err := phase.Parse(args[1])
			if err != nil {
				return err
			}
			text := ""
			if len(args) == 3 {
				text = args[2]
			} else {
				text, err = ui.EditText(p.Prompt(), sess.Reflection(p))
				if err != nil {
					return err
				}
			}
			if err := sess.SetReflection(p, text); err != nil {
				return err
			}
			if err := session.Save(ctx, s, sess); err != nil {
				return err
			}
			ui.Success(fmt.Sprintf("Saved %s", p.Title()))
			return nil
		},
	}
}

func sessionTimerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timer [session]",
		Short: "Run the empty-heat timer and record the elapsed time",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := loadStore()
			if err != nil {
				return err
			}
			defer s.Close()
			sess, err := resolveSession(ctx, s, args)
			if err != nil {
				return err
			}
			return runEmptyHeatTimer(ctx, s, sess)
		},
	}
}

func sessionDurationCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "duration <session> <duration>",
		Short:   "Record the empty-heat duration by hand",
		Example: "  kiln session duration latest 7m30s\n  kiln session duration latest 300",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := parseDuration(args[1])
			if err != nil {
				return err
			}
			s, err := loadStore()
			if err != nil {
				return err
			}
			defer s.Close()
			sess, err := resolveSession(ctx, s, args[:1])
			if err != nil {
				return err
			}
			if err := sess.RecordEmptyHeatDuration(d); err != nil {
				return err
			}
			if err := session.Save(ctx, s, sess); err != nil {
				return err
			}
			ui.Success(fmt.Sprintf("Empty heat: %s", session.FormatDuration(d)))
			return nil
		},
	}
}

// parseDuration accepts Go durations ("5m", "90s") or plain seconds.
func parseDuration(v string) (time.Duration, error) {
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(n * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: use seconds or a value like 5m30s", v)
	}
	return d, nil
}

func sessionNameCmd() *cobra.Command {
	var spirit string
	cmd := &cobra.Command{
		Use:   "name <session> <room name>",
		Short: "Name the room that emerged (created on finalize)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := loadStore()
			if err != nil {
				return err
			}
			defer s.Close()
			sess, err := resolveSession(ctx, s, args[:1])
			if err != nil {
				return err
			}
			if sess.IsComplete {
				return fmt.Errorf("session %s is complete; rename the room with 'kiln room' instead", sess.ID)
			}
			sess.NameRoom(args[1], spirit)
			if err := session.Save(ctx, s, sess); err != nil {
				return err
			}
			ui.Success(fmt.Sprintf("Room named %q", sess.RoomName))
			return nil
		},
	}
	cmd.Flags().StringVar(&spirit, "spirit", "", "One line describing the room's spirit")
	return cmd
}

func sessionFinalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "finalize [session]",
		Short: "Mark a session complete and create its room",
		Long:  "Complete the session. If a room name was given, the room is created in the same step. Finalizing twice changes nothing.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := loadStore()
			if err != nil {
				return err
			}
			defer s.Close()
			sess, err := resolveSession(ctx, s, args)
			if err != nil {
				return err
			}
			return finalize(ctx, s, sess, false)
		},
	}
}

func sessionDeleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete <session>",
		Aliases: []string{"rm"},
		Short:   "Delete a session (its room survives)",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := loadStore()
			if err != nil {
				return err
			}
			defer s.Close()
			sess, err := resolveSession(ctx, s, args)
			if err != nil {
				return err
			}
			if !yes {
				proceed, err := ui.Confirm(fmt.Sprintf("Delete session %s?", sess.ID))
				if err != nil {
					return err
				}
				if !proceed {
					ui.Info("Cancelled.")
					return nil
				}
			}
			if err := session.Delete(ctx, s, sess.ID); err != nil {
				return err
			}
			ui.Success(fmt.Sprintf("Deleted session %s", sess.ID))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation")
	return cmd
}

func resolveSession(ctx context.Context, s *store.Store, args []string) (*session.Session, error) {
	ref := ""
	if len(args) > 0 {
		ref = args[0]
	}
	sess, err := session.Resolve(ctx, s, ref)
	if errors.Is(err, session.ErrAmbiguous) {
		return nil, fmt.Errorf("%w; use more of the ID", err)
	}
	return sess, err
}

// finalize completes sess and reports the room, if any. With offerLinks the
// user may link the new room to existing ones right away.
func finalize(ctx context.Context, s *store.Store, sess *session.Session, offerLinks bool) error {
	if sess.IsComplete {
		ui.Info(fmt.Sprintf("Session %s was already complete.", sess.ID))
		return nil
	}
	if err := session.Save(ctx, s, sess); err != nil {
		return err
	}
	done, r, err := session.Finalize(ctx, s, sess.ID)
	if err != nil {
		return err
	}
	ui.SessionComplete(done.ID)
	if r == nil {
		return nil
	}
	ui.RoomEmerged(r.Name, r.Spirit)
	if offerLinks {
		return pickLinks(ctx, s, r)
	}
	return nil
}

// pickLinks offers every linkable room, with similar rooms preselected,
// and links the ones chosen.
func pickLinks(ctx context.Context, s *store.Store, r *room.Room) error {
	g, err := room.LoadGraph(ctx, s)
	if err != nil {
		return err
	}
	candidates := g.Linkable(r.ID)
	if len(candidates) == 0 {
		return nil
	}
	kin := make(map[string]bool)
	for _, m := range room.Similar(r, candidates) {
		kin[m.Room.ID] = true
	}
	choices := make([]ui.Choice, len(candidates))
	for i, c := range candidates {
		choices[i] = ui.Choice{Label: c.Name, Detail: c.AnchorName, Selected: kin[c.ID]}
	}
	picked, err := ui.SelectMany(fmt.Sprintf("Which rooms sit next to %s?", r.Name), choices)
	if errors.Is(err, ui.ErrCancelled) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, i := range picked {
		if err := room.Link(ctx, s, r.ID, candidates[i].ID); err != nil {
			return err
		}
		ui.Success(fmt.Sprintf("%s <--> %s", r.Name, candidates[i].Name))
	}
	return nil
}
