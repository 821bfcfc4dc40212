// Package phase defines the six ordered phases of a session, their prompts,
// and the techniques suggested for each.
package phase

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Phase is one of the six ordered stages of a Kiln session.
type Phase int

const (
	EnumeratedBed Phase = iota
	AnchorHeating
	EmptyHeat
	FormTying
	FormSettling
	Observation
)

// Count is the number of phases in a session.
const Count = 6

// ErrUnknownPhase is returned for values outside the six phases.
var ErrUnknownPhase = errors.New("unknown phase")

type info struct {
	slug   string
	title  string
	prompt string
}

var phases = [Count]info{
	{"enumerated-bed", "1. Enumerated Bed of Anchors", "What desire is this habit serving? Describe the current 'room' you're in."},
	{"anchor-heating", "2. Anchor Heating", "How will you dissolve this form? What constraint or defamiliarization can you apply?"},
	{"empty-heat", "3. Empty Heat Period", "Sit in the gap. What urges arise? What does the formlessness feel like?"},
	{"form-tying", "4. Form Tying Mode", "What adjacent possibilities emerge? What new connections can you make?"},
	{"form-settling", "5. Form Settling Mode", "What is the new form crystallizing into? Give it a name and a ritual."},
	{"observation", "6. Observation & Journaling", "What is the spirit of this new room? What trace does it leave?"},
}

// Sequence returns the phases in ritual order.
func Sequence() []Phase {
	return []Phase{EnumeratedBed, AnchorHeating, EmptyHeat, FormTying, FormSettling, Observation}
}

// Valid reports whether p is one of the six phases.
func (p Phase) Valid() bool {
	return p >= EnumeratedBed && p <= Observation
}

// Title returns the numbered display title.
func (p Phase) Title() string {
	if !p.Valid() {
		return ""
	}
	return phases[p].title
}

// Prompt returns the fixed guiding prompt.
func (p Phase) Prompt() string {
	if !p.Valid() {
		return ""
	}
	return phases[p].prompt
}

// String returns the phase slug, e.g. "empty-heat".
func (p Phase) String() string {
	if !p.Valid() {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phases[p].slug
}

// MarshalText encodes the phase as its slug so stored maps stay readable.
func (p Phase) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPhase, int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText accepts anything Parse does.
func (p *Phase) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Parse accepts a slug ("form-tying"), a 1-based number ("4"), or a
// compact name ("formtying", "FormTying").
func Parse(s string) (Phase, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if n, err := strconv.Atoi(s); err == nil {
		p := Phase(n - 1)
		if !p.Valid() {
			return 0, fmt.Errorf("%w: %s (phases are numbered 1-%d)", ErrUnknownPhase, s, Count)
		}
		return p, nil
	}
	compact := strings.NewReplacer("-", "", "_", "", " ", "").Replace(s)
	for i, ph := range phases {
		if ph.slug == s || strings.ReplaceAll(ph.slug, "-", "") == compact {
			return Phase(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownPhase, s)
}

// Before returns the phases preceding p, in order.
func Before(p Phase) []Phase {
	if !p.Valid() {
		return nil
	}
	return Sequence()[:p]
}
