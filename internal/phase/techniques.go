package phase

// Technique is a practice suggested for a specific phase.
type Technique struct {
	ID          string
	Name        string
	Description string
	Phase       Phase
}

var techniques = map[Phase][]Technique{
	EnumeratedBed: {
		{"symptom-tracing", "Symptom Tracing", "Notice where energy/time goes and ask: what desire does this serve?", EnumeratedBed},
		{"inventory-lists", "Inventory Lists", "Catalog habits, spaces, and recurring loops.", EnumeratedBed},
		{"structural-mapping", "Structural Mapping", "Draw the current 'house' of habits to see the load-bearing walls.", EnumeratedBed},
	},
	AnchorHeating: {
		{"defamiliarization", "Defamiliarization", "Describe the ordinary as if seen for the first time.", AnchorHeating},
		{"constraint-removal", "Constraint Removal", "Physically block the habitual path to force a new response.", AnchorHeating},
		{"over-saturation", "Over-saturation", "Repeat the habit until it loses meaning (semantic satiation).", AnchorHeating},
		{"scale-shift", "Scale Shift", "View the personal habit through a geological or microscopic lens.", AnchorHeating},
	},
	EmptyHeat: {
		{"the-pause", "The Pause", "Deliberate stillness when the impulse to act arises.", EmptyHeat},
		{"non-resolution", "Non-Resolution", "Refuse to 'fix' the problem immediately.", EmptyHeat},
		{"silent-witnessing", "Silent Witnessing", "Observe the anxiety of the gap without intervening.", EmptyHeat},
		{"journaling-void", "Journaling the Void", "Document the specific quality of the formlessness.", EmptyHeat},
	},
	FormTying: {
		{"randomized-injection", "Randomized Injection", "Introduce a random element (a card, a word, a person) into the vacuum.", FormTying},
		{"role-reversal", "Role Reversal", "Invert the usual power dynamic or vector.", FormTying},
		{"cross-pollination", "Cross-Pollination", "Import a rule from a different domain.", FormTying},
		{"material-play", "Material Play", "Physically handle new materials (clay, sound, light) to see what sticks.", FormTying},
	},
	FormSettling: {
		{"ritualization", "Ritualization", "Establish a precise sequence of actions for the new form.", FormSettling},
		{"naming", "Naming", "Give the new room a proper name.", FormSettling},
		{"deliberate-practice", "Deliberate Practice", "Repeat the new loop 10x with intent.", FormSettling},
		{"constraint-setting", "Constraint Setting", "Define the 'walls' of the new room (what is allowed/not allowed).", FormSettling},
	},
	Observation: {
		{"thick-description", "Thick Description", "Ethnographic recording of the experience.", Observation},
		{"spirit-capture", "Spirit Capture", "Identify the 'fire' or mood of the room.", Observation},
		{"transmission", "Transmission", "Write the 'Instruction Manual' for others to enter.", Observation},
		{"evaluation", "Evaluation", "Does this form satisfy the anchor better? Is it more permeable?", Observation},
	},
}

// Techniques returns the practices suggested for p.
func Techniques(p Phase) []Technique {
	out := make([]Technique, len(techniques[p]))
	copy(out, techniques[p])
	return out
}
