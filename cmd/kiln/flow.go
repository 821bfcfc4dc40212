package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kokistudios/kiln/internal/assist"
	"github.com/kokistudios/kiln/internal/phase"
	"github.com/kokistudios/kiln/internal/session"
	"github.com/kokistudios/kiln/internal/store"
	"github.com/kokistudios/kiln/internal/ui"
)

// runFlow walks sess through every phase that has no reflection yet,
// saving after each one, then offers to name a room and finalize.
// Cancelling an editor stops the flow; everything written so far is kept.
func runFlow(ctx context.Context, s *store.Store, sess *session.Session) error {
	helper := optionalAssistant(s)

	for {
		p, ok := sess.NextPhase()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		ui.PhaseHeader(p.Title(), int(p)+1, phase.Count, sess.AnchorName, sess.StartingForm)
		ui.Prompt(p.Prompt())
		for _, t := range phase.Techniques(p) {
			fmt.Printf("  %s %s\n", ui.Bold(t.Name), ui.Dim(t.Description))
		}
		fmt.Println()

		if p == phase.EmptyHeat && sess.EmptyHeatDuration == 0 {
			if err := runEmptyHeatTimer(ctx, s, sess); err != nil && !errors.Is(err, ui.ErrCancelled) {
				return err
			}
		}

		initial := suggestionsFor(ctx, helper, sess, p)
		text, err := ui.EditText(p.Prompt(), initial)
		if errors.Is(err, ui.ErrCancelled) {
			ui.Info(fmt.Sprintf("Paused. Resume with 'kiln session resume %s'", sess.ID))
			return nil
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			ui.Warning("An empty reflection leaves the phase open. Write something, or press esc to pause.")
			continue
		}
		if err := sess.SetReflection(p, text); err != nil {
			return err
		}
		if err := session.Save(ctx, s, sess); err != nil {
			return err
		}
		ui.Logger.Debug("reflection saved", "session", sess.ID, "phase", p)
	}

	if err := nameRoom(ctx, helper, sess); err != nil {
		return err
	}
	if err := session.Save(ctx, s, sess); err != nil {
		return err
	}

	proceed, err := ui.Confirm("Finalize this session?")
	if err != nil {
		return err
	}
	if !proceed {
		ui.Info(fmt.Sprintf("Finalize later with 'kiln session finalize %s'", sess.ID))
		return nil
	}
	return finalize(ctx, s, sess, true)
}

// runEmptyHeatTimer shows the countdown and stores the elapsed time unless
// the timer was cancelled before it started.
func runEmptyHeatTimer(ctx context.Context, s *store.Store, sess *session.Session) error {
	res, err := ui.RunTimer(ctx, s.Config.Session.EmptyHeatDefault)
	if err != nil {
		return err
	}
	if res.Cancelled && res.Elapsed == 0 {
		return ui.ErrCancelled
	}
	if err := sess.RecordEmptyHeatDuration(res.Elapsed); err != nil {
		return err
	}
	if err := session.Save(ctx, s, sess); err != nil {
		return err
	}
	ui.Success(fmt.Sprintf("Empty heat: %s", session.FormatDuration(res.Elapsed)))
	return nil
}

// optionalAssistant returns a ready assistant, or nil when none can run.
// Guided sessions work the same without one.
func optionalAssistant(s *store.Store) *assist.Assistant {
	a, err := assist.FromStore(s)
	if err != nil {
		ui.Logger.Debug("assistant disabled", "err", err)
		return nil
	}
	if err := a.Available(); err != nil {
		ui.Logger.Debug("assistant unavailable", "backend", a.Backend(), "err", err)
		return nil
	}
	return a
}

// suggestionsFor seeds the editor for the phases the assistant helps with.
// Any failure yields an empty seed and a warning.
func suggestionsFor(ctx context.Context, a *assist.Assistant, sess *session.Session, p phase.Phase) string {
	if a == nil || (p != phase.AnchorHeating && p != phase.FormTying) {
		return ""
	}
	use, err := ui.Confirm(fmt.Sprintf("Ask %s for suggestions?", a.Backend()))
	if err != nil || !use {
		return ""
	}

	sp := ui.NewSpinner("Listening to the kiln...")
	var items []string
	if p == phase.AnchorHeating {
		items, err = a.Heating(ctx, sess.AnchorName, sess.StartingForm)
	} else {
		items, err = a.Forms(ctx, sess.AnchorName, sess.StartingForm, sess.AllReflections())
	}
	sp.Stop()
	if err != nil {
		ui.Warning(fmt.Sprintf("No suggestions: %v", err))
		return ""
	}
	return bulletList(items)
}

func bulletList(items []string) string {
	var b strings.Builder
	for _, it := range items {
		b.WriteString("- " + it + "\n")
	}
	return b.String()
}

// nameRoom asks whether a new room emerged and records its name and spirit.
func nameRoom(ctx context.Context, a *assist.Assistant, sess *session.Session) error {
	name, spirit := sess.RoomName, sess.RoomSpirit
	if name == "" && a != nil {
		sp := ui.NewSpinner("Naming the room...")
		suggestion, err := a.Room(ctx, sess.AnchorName, sess.StartingForm, sess.AllReflections(), "")
		sp.Stop()
		if err != nil {
			ui.Logger.Debug("room suggestion failed", "err", err)
		} else {
			name, spirit = suggestion.Name, suggestion.Spirit
		}
	}

	name, err := ui.PromptLine("Did a new room emerge? Name it (blank for none)", "The Quiet Corner", name)
	if errors.Is(err, ui.ErrCancelled) {
		return nil
	}
	if err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		sess.NameRoom("", "")
		return nil
	}
	spirit, err = ui.PromptLine("Its spirit, in one line", "what the room is for", spirit)
	if err != nil && !errors.Is(err, ui.ErrCancelled) {
		return err
	}
	sess.NameRoom(name, spirit)
	return nil
}
