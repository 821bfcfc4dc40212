// Package anchor holds the catalog of Anchors: named desire categories and
// the situational Forms in which they show up.
package anchor

import "strings"

// Anchor is a core desire or drive that grounds a habitual experience.
type Anchor struct {
	ID             string          `yaml:"id" json:"id"`
	Name           string          `yaml:"name" json:"name"`
	Description    string          `yaml:"description" json:"description"`
	TentativeForms []TentativeForm `yaml:"tentative_forms" json:"tentative_forms"`
	Custom         bool            `yaml:"custom,omitempty" json:"custom,omitempty"`
}

// TentativeForm is a concrete situation in which an anchor manifests.
type TentativeForm struct {
	Context  string `yaml:"context" json:"context"`
	FormName string `yaml:"form_name" json:"form_name"`
}

func forms(pairs ...string) []TentativeForm {
	out := make([]TentativeForm, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, TentativeForm{Context: pairs[i], FormName: pairs[i+1]})
	}
	return out
}

const (
	coffee = "Coffee Shop"
	subway = "Subway"
)

var builtIn = []Anchor{
	{"order-seeking", "Order Seeking", "The drive to organize chaos and establish predictability.",
		forms(coffee, "The Regular Club", coffee, "The Construction", subway, "The Driver", subway, "The First Day"), false},
	{"anxiety-navigation", "Anxiety Navigation", "Moving through uncertainty and managing the friction of the world.",
		forms(coffee, "The WiFi Fails", coffee, "The Spill", subway, "The Stalled Train", subway, "The Packed Car"), false},
	{"post-realization-clarity", "Post-Realization Clarity", "The calm, expansive state that follows understanding or epiphany.",
		forms(coffee, "The Breakthrough", subway, "The Last Day", subway, "The Existentialist Commute"), false},
	{"enclosement", "Enclosement", "The pleasure of containment and safety vs. the fear of entrapment.",
		forms(coffee, "The Construction", subway, "The Silent Car", subway, "The Doors Closing"), false},
	{"path-following", "Path Following", "The ease of the beaten track; surrendering to a pre-defined trajectory.",
		forms(coffee, "The Too Long", subway, "The Descent", subway, "The Driver"), false},
	{"horizon-seeking", "Horizon Seeking & Stasis", "The drive to look forward vs. the worship of the fixed line.",
		forms(coffee, "The Music Changes", subway, "The Dream Commute"), false},
	{"controlled-ignorance", "Controlled Ignorance", "The pleasure of a filtered environment; ignoring noise to focus on signal.",
		forms(coffee, "The Watcher", coffee, "The WiFi Fails", subway, "The Silent Car"), false},
	{"food-seeking", "Unconscious Food Seeking", "Primal sustenance drives, often sublimated into consumption rituals.",
		forms(coffee, "The Regular Club"), false},
	{"mobility", "Mobility", "Expansive freedom/speed vs. closed constraint/tunnel.",
		forms(coffee, "The Time Collapse", subway, "The Descent", subway, "The Packed Car"), false},
	{"power", "Power", "Seeking control over the environment or others; exercising agency.",
		forms(coffee, "The Accidental Collaborator", subway, "The Driver", subway, "The Doors Closing"), false},
	{"erotic-uncertainty", "Erotic Uncertainty", "The oscillation between pleasure and pain; the thrill of the unknown other.",
		forms(coffee, "The Accidental Collaborator", coffee, "The Spill", subway, "The Packed Car"), false},
	{"material-play", "Material Play", "Engagement with physical substance and the texture of reality.",
		forms(coffee, "The Spill", coffee, "The Construction", subway, "The Stalled Train"), false},
	{"nature-mirroring", "Nature Mirroring", "Seeing primal instincts or natural forces reflected in the built environment.",
		forms(coffee, "The Time Collapse", subway, "The Descent"), false},
	{"serendipity-escapism", "Serendipity Escapism", "Following the happy accident away from reality; openness to the unscripted.",
		forms(coffee, "The Accidental Collaborator", coffee, "The Music Changes", subway, "The Dream Commute"), false},
}

// defaultIndex points at Anxiety Navigation.
const defaultIndex = 1

// DefaultForm is the starting form used alongside Default().
const DefaultForm = "The WiFi Fails"

// BuiltIn returns the fixed catalog in display order. The order matters:
// quick start offers the first entries.
func BuiltIn() []Anchor {
	out := make([]Anchor, len(builtIn))
	for i, a := range builtIn {
		out[i] = a.clone()
	}
	return out
}

// Default returns the anchor used when no explicit choice is made.
func Default() Anchor {
	return builtIn[defaultIndex].clone()
}

// QuickStart returns the first n built-in anchors.
func QuickStart(n int) []Anchor {
	all := BuiltIn()
	if n < 0 {
		n = 0
	}
	if n > len(all) {
		n = len(all)
	}
	return all[:n]
}

// Lookup finds a built-in anchor by ID or case-insensitive name.
func Lookup(nameOrID string) (Anchor, bool) {
	key := strings.TrimSpace(nameOrID)
	for _, a := range builtIn {
		if a.ID == key || strings.EqualFold(a.Name, key) {
			return a.clone(), true
		}
	}
	return Anchor{}, false
}

// FormNames returns the anchor's form names in order.
func (a Anchor) FormNames() []string {
	names := make([]string, len(a.TentativeForms))
	for i, f := range a.TentativeForms {
		names[i] = f.FormName
	}
	return names
}

func (a Anchor) clone() Anchor {
	a.TentativeForms = append([]TentativeForm(nil), a.TentativeForms...)
	return a
}
