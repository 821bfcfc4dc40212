// Package journal is a read-only view over completed sessions: the journal
// feed, its free-text search and its anchor filter.
package journal

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kokistudios/kiln/internal/phase"
	"github.com/kokistudios/kiln/internal/session"
	"github.com/kokistudios/kiln/internal/store"
)

// Query selects journal entries. The zero value matches every completed session.
type Query struct {
	Search string // case-insensitive substring over observation, room name, anchor name
	Anchor string // exact anchor name; empty means all anchors
	Limit  int    // 0 = no limit
}

// Search returns the completed sessions matching q, newest first. The input
// slice is not modified.
func Search(sessions []session.Session, q Query) []session.Session {
	needle := strings.ToLower(strings.TrimSpace(q.Search))

	var out []session.Session
	for _, s := range sessions {
		if !s.IsComplete {
			continue
		}
		if q.Anchor != "" && s.AnchorName != q.Anchor {
			continue
		}
		if needle != "" && !matchesText(s, needle) {
			continue
		}
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func matchesText(s session.Session, needle string) bool {
	return strings.Contains(strings.ToLower(s.Reflection(phase.Observation)), needle) ||
		strings.Contains(strings.ToLower(s.RoomName), needle) ||
		strings.Contains(strings.ToLower(s.AnchorName), needle)
}

// Load runs q against every completed session in the store.
func Load(ctx context.Context, st *store.Store, q Query) ([]session.Session, error) {
	all, err := session.List(ctx, st, session.Filter{CompletedOnly: true})
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	return Search(all, q), nil
}

// Anchors returns the sorted, unique anchor names of completed sessions.
func Anchors(sessions []session.Session) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range sessions {
		if !s.IsComplete || seen[s.AnchorName] {
			continue
		}
		seen[s.AnchorName] = true
		out = append(out, s.AnchorName)
	}
	sort.Strings(out)
	return out
}

// FormatTerminal renders journal entries as plain text for the CLI.
func FormatTerminal(entries []session.Session, full bool) string {
	if len(entries) == 0 {
		return "No journal entries yet. Complete a session to see it here."
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%d journal entr%s:\n", len(entries), plural(len(entries), "y", "ies")))
	for _, s := range entries {
		b.WriteString(fmt.Sprintf("\n  %s  %s", s.CreatedAt.Format("Jan 2, 2006"), s.AnchorName))
		if s.EmptyHeatDuration > 0 {
			b.WriteString(fmt.Sprintf("  [%s]", session.FormatDuration(s.EmptyHeatDuration)))
		}
		b.WriteString("\n")
		if s.RoomName != "" {
			b.WriteString(fmt.Sprintf("    Room:        %s\n", s.RoomName))
		}
		if obs := strings.TrimSpace(s.Reflection(phase.Observation)); obs != "" {
			b.WriteString(fmt.Sprintf("    Observation: %s\n", clip(obs, 150, full)))
		}
		if s.RoomSpirit != "" {
			b.WriteString(fmt.Sprintf("    Spirit:      %s\n", clip(s.RoomSpirit, 100, full)))
		}
		b.WriteString(fmt.Sprintf("    Session:     %s\n", s.ID))
	}
	return b.String()
}

func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// FormatContext renders entries as markdown for an agent, stopping before
// tokenBudget is exceeded. A budget of 0 means no limit.
func FormatContext(entries []session.Session, tokenBudget int) string {
	if len(entries) == 0 {
		return ""
	}

	header := "## Kiln Journal\n\nCompleted sessions, newest first:\n\n"
	var b strings.Builder
	b.WriteString(header)
	used := estimateTokens(header)

	for _, s := range entries {
		var eb strings.Builder
		eb.WriteString(fmt.Sprintf("### %s → %s\n", s.AnchorName, s.StartingForm))
		eb.WriteString(fmt.Sprintf("- **Date:** %s\n", s.CreatedAt.Format("2006-01-02")))
		if s.RoomName != "" {
			eb.WriteString(fmt.Sprintf("- **Room:** %s\n", s.RoomName))
		}
		if s.RoomSpirit != "" {
			eb.WriteString(fmt.Sprintf("- **Spirit:** %s\n", s.RoomSpirit))
		}
		if obs := strings.TrimSpace(s.Reflection(phase.Observation)); obs != "" {
			eb.WriteString(fmt.Sprintf("- **Observation:** %s\n", obs))
		}
		eb.WriteString(fmt.Sprintf("- **Session:** %s\n\n", s.ID))
		entry := eb.String()

		cost := estimateTokens(entry)
		if tokenBudget > 0 && used+cost > tokenBudget {
			break
		}
		b.WriteString(entry)
		used += cost
	}
	return b.String()
}

func clip(s string, n int, full bool) string {
	if full || len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n-3]) + "..."
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
