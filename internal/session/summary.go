package session

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kokistudios/kiln/internal/phase"
)

type frontMatter struct {
	ID           string `yaml:"id"`
	Anchor       string `yaml:"anchor"`
	StartingForm string `yaml:"starting_form"`
	Created      string `yaml:"created"`
	Completed    string `yaml:"completed,omitempty"`
	Room         string `yaml:"room,omitempty"`
	EmptyHeat    string `yaml:"empty_heat,omitempty"`
}

// Markdown renders the session as a summary document with YAML front
// matter. Phases with no reflection are left out.
func (s *Session) Markdown() string {
	var buf bytes.Buffer

	fm := frontMatter{
		ID:           s.ID,
		Anchor:       s.AnchorName,
		StartingForm: s.StartingForm,
		Created:      s.CreatedAt.Format("2006-01-02 15:04"),
		Room:         s.RoomName,
	}
	if s.CompletedAt != nil {
		fm.Completed = s.CompletedAt.Format("2006-01-02 15:04")
	}
	if s.EmptyHeatDuration > 0 {
		fm.EmptyHeat = FormatDuration(s.EmptyHeatDuration)
	}
	if data, err := yaml.Marshal(fm); err == nil {
		buf.WriteString("---\n")
		buf.Write(data)
		buf.WriteString("---\n\n")
	}

	if s.IsComplete {
		buf.WriteString("# Session Complete\n\n")
	} else {
		buf.WriteString("# Session In Progress\n\n")
	}
	buf.WriteString(fmt.Sprintf("**%s** → %s\n\n", s.AnchorName, s.StartingForm))

	for _, p := range phase.Sequence() {
		text := strings.TrimSpace(s.Reflections[p])
		if text == "" {
			continue
		}
		buf.WriteString(fmt.Sprintf("## %s\n\n", p.Title()))
		if p == phase.EmptyHeat && s.EmptyHeatDuration > 0 {
			buf.WriteString(fmt.Sprintf("_Sat in the gap for %s._\n\n", FormatDuration(s.EmptyHeatDuration)))
		}
		buf.WriteString(text)
		buf.WriteString("\n\n")
	}

	if s.RoomName != "" {
		buf.WriteString("## New Room Emerged\n\n")
		buf.WriteString(fmt.Sprintf("### %s\n\n", s.RoomName))
		if s.RoomSpirit != "" {
			buf.WriteString(s.RoomSpirit)
			buf.WriteString("\n\n")
		}
	}

	buf.WriteString("## Timeline\n\n")
	buf.WriteString(fmt.Sprintf("- **Created:** %s\n", s.CreatedAt.Format("2006-01-02 15:04")))
	buf.WriteString(fmt.Sprintf("- **Updated:** %s\n", s.UpdatedAt.Format("2006-01-02 15:04")))
	if s.CompletedAt != nil {
		buf.WriteString(fmt.Sprintf("- **Completed:** %s\n", s.CompletedAt.Format("2006-01-02 15:04")))
	}
	return buf.String()
}
