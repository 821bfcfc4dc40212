package phase

import (
	"errors"
	"testing"
)

func TestSequence_Order(t *testing.T) {
	seq := Sequence()
	if len(seq) != Count {
		t.Fatalf("sequence length = %d, want %d", len(seq), Count)
	}
	for i, p := range seq {
		if int(p) != i {
			t.Errorf("sequence[%d] = %d", i, p)
		}
	}
	if seq[0] != EnumeratedBed || seq[5] != Observation {
		t.Errorf("unexpected endpoints: %v .. %v", seq[0], seq[5])
	}
}

func TestTitlesAndPrompts(t *testing.T) {
	seen := make(map[string]bool)
	for _, p := range Sequence() {
		if p.Title() == "" || p.Prompt() == "" {
			t.Errorf("phase %s missing title or prompt", p)
		}
		if seen[p.Title()] {
			t.Errorf("duplicate title %q", p.Title())
		}
		seen[p.Title()] = true
	}
	if EmptyHeat.Title() != "3. Empty Heat Period" {
		t.Errorf("EmptyHeat title = %q", EmptyHeat.Title())
	}
	if Phase(6).Title() != "" || Phase(-1).Prompt() != "" {
		t.Error("out-of-range phase should have no title or prompt")
	}
}

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want Phase
	}{
		{"enumerated-bed", EnumeratedBed},
		{"1", EnumeratedBed},
		{"3", EmptyHeat},
		{"FormTying", FormTying},
		{"form_settling", FormSettling},
		{" Observation ", Observation},
		{"6", Observation},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		if err != nil {
			t.Errorf("Parse(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Parse(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}

	for _, bad := range []string{"0", "7", "kiln", ""} {
		if _, err := Parse(bad); !errors.Is(err, ErrUnknownPhase) {
			t.Errorf("Parse(%q) err = %v, want ErrUnknownPhase", bad, err)
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	for _, p := range Sequence() {
		got, err := Parse(p.String())
		if err != nil || got != p {
			t.Errorf("Parse(%q) = %v, %v", p.String(), got, err)
		}
	}
}

func TestBefore(t *testing.T) {
	if got := Before(EnumeratedBed); len(got) != 0 {
		t.Errorf("Before(EnumeratedBed) = %v", got)
	}
	got := Before(FormTying)
	if len(got) != 3 || got[2] != EmptyHeat {
		t.Errorf("Before(FormTying) = %v", got)
	}
}

func TestTechniques(t *testing.T) {
	for _, p := range Sequence() {
		ts := Techniques(p)
		if len(ts) < 3 {
			t.Errorf("phase %s has %d techniques", p, len(ts))
		}
		for _, tq := range ts {
			if tq.Phase != p {
				t.Errorf("technique %s filed under %s but tagged %s", tq.ID, p, tq.Phase)
			}
		}
	}
	// Returned slice is a copy.
	ts := Techniques(Observation)
	ts[0].Name = "changed"
	if Techniques(Observation)[0].Name == "changed" {
		t.Error("Techniques should return a copy")
	}
}

func TestTextRoundTrip(t *testing.T) {
	for _, p := range Sequence() {
		b, err := p.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%d): %v", p, err)
		}
		var got Phase
		if err := got.UnmarshalText(b); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", b, err)
		}
		if got != p {
			t.Errorf("round trip %v -> %q -> %v", p, b, got)
		}
	}
	if _, err := Phase(9).MarshalText(); err == nil {
		t.Error("invalid phase should not marshal")
	}
}
