// Package session owns a Kiln session's walk through the six phases: the
// reflections written along the way, the timed empty-heat gap, and the
// finalization that may emit a Room.
package session

import (
	"crypto/rand"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kokistudios/kiln/internal/phase"
	"github.com/kokistudios/kiln/internal/room"
)

var (
	// ErrNegativeDuration is returned when an empty-heat duration below zero
	// is recorded. The stored value is left unchanged.
	ErrNegativeDuration = errors.New("empty heat duration cannot be negative")
	// ErrNotFound is returned when no session matches an ID.
	ErrNotFound = errors.New("session not found")
	// ErrAmbiguous is returned when a short reference matches several sessions.
	ErrAmbiguous = errors.New("session reference is ambiguous")
)

// Session is one pass through the six phases, from anchor and form to an
// optional named Room.
type Session struct {
	ID           string     `yaml:"id" json:"id"`
	AnchorName   string     `yaml:"anchor_name" json:"anchor_name"`
	StartingForm string     `yaml:"starting_form" json:"starting_form"`
	CreatedAt    time.Time  `yaml:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `yaml:"updated_at" json:"updated_at"`
	CompletedAt  *time.Time `yaml:"completed_at,omitempty" json:"completed_at,omitempty"`
	IsComplete   bool       `yaml:"is_complete" json:"is_complete"`

	// Reflections always holds an entry for every phase.
	Reflections map[phase.Phase]string `yaml:"reflections" json:"reflections"`

	RoomName   string `yaml:"room_name,omitempty" json:"room_name,omitempty"`
	RoomSpirit string `yaml:"room_spirit,omitempty" json:"room_spirit,omitempty"`

	// EmptyHeatDuration is the elapsed time of the gap exercise. Zero means
	// the timer was never used.
	EmptyHeatDuration time.Duration `yaml:"empty_heat_duration" json:"empty_heat_duration"`
}

// New starts a session on the given anchor and form. Neither string is
// validated; they may name a built-in, a custom anchor, or anything else.
func New(anchorName, startingForm string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:           GenerateID(startingForm),
		AnchorName:   anchorName,
		StartingForm: startingForm,
		CreatedAt:    now,
		UpdatedAt:    now,
		Reflections:  emptyReflections(),
	}
}

func emptyReflections() map[phase.Phase]string {
	m := make(map[phase.Phase]string, phase.Count)
	for _, p := range phase.Sequence() {
		m[p] = ""
	}
	return m
}

// SetReflection overwrites the reflection for p. Text is stored as given.
func (s *Session) SetReflection(p phase.Phase, text string) error {
	if !p.Valid() {
		return fmt.Errorf("%w: %d", phase.ErrUnknownPhase, int(p))
	}
	if s.Reflections == nil {
		s.Reflections = emptyReflections()
	}
	s.Reflections[p] = text
	s.touch()
	return nil
}

// Reflection returns the text for p, or "" for an unknown phase.
func (s *Session) Reflection(p phase.Phase) string {
	return s.Reflections[p]
}

// RecordEmptyHeatDuration stores the elapsed gap time.
func (s *Session) RecordEmptyHeatDuration(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%w: %s", ErrNegativeDuration, d)
	}
	s.EmptyHeatDuration = d
	s.touch()
	return nil
}

// NameRoom sets the room that will be emitted on finalization. An empty
// name means no room.
func (s *Session) NameRoom(name, spirit string) {
	s.RoomName = strings.TrimSpace(name)
	s.RoomSpirit = strings.TrimSpace(spirit)
	s.touch()
}

// Finalize marks the session complete. The first call returns a new Room
// when a room name is set; every later call leaves the session untouched
// and returns nil.
func (s *Session) Finalize() *room.Room {
	if s.IsComplete {
		return nil
	}
	now := time.Now().UTC()
	s.IsComplete = true
	s.CompletedAt = &now
	s.UpdatedAt = now
	if s.RoomName == "" {
		return nil
	}
	return room.New(s.RoomName, s.RoomSpirit, s.AnchorName, s.StartingForm, s.ID)
}

// AllReflections returns the six reflections in phase order.
func (s *Session) AllReflections() []string {
	out := make([]string, 0, phase.Count)
	for _, p := range phase.Sequence() {
		out = append(out, s.Reflections[p])
	}
	return out
}

// Progress returns how many phases have a non-blank reflection.
func (s *Session) Progress() int {
	n := 0
	for _, r := range s.AllReflections() {
		if strings.TrimSpace(r) != "" {
			n++
		}
	}
	return n
}

// NextPhase returns the first phase with no reflection yet.
func (s *Session) NextPhase() (phase.Phase, bool) {
	for _, p := range phase.Sequence() {
		if strings.TrimSpace(s.Reflections[p]) == "" {
			return p, true
		}
	}
	return 0, false
}

func (s *Session) touch() {
	s.UpdatedAt = time.Now().UTC()
}

// FormatDuration renders a gap duration as "12m 5s" or "40s".
func FormatDuration(d time.Duration) string {
	secs := int(d / time.Second)
	if m := secs / 60; m > 0 {
		return fmt.Sprintf("%dm %ds", m, secs%60)
	}
	return fmt.Sprintf("%ds", secs)
}

// GenerateID returns a session ID of the form YYYYMMDD-<form slug>-<hex>.
func GenerateID(form string) string {
	date := time.Now().Format("20060102")
	slug := slugify(form)
	suffix := randomHex(8)
	return fmt.Sprintf("%s-%s-%s", date, slug, suffix)
}

var (
	nonSlugChars = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpaces   = regexp.MustCompile(`[\s]+`)
)

func slugify(s string) string {
	s = strings.ToLower(s)
	s = nonSlugChars.ReplaceAllString(s, "")
	s = slugSpaces.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > 40 {
		s = s[:40]
		s = strings.TrimRight(s, "-")
	}
	if s == "" {
		s = "session"
	}
	return s
}

func randomHex(n int) string {
	b := make([]byte, (n+1)/2)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%x", b)[:n]
}
