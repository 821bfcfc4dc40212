package assist

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeGenerator struct {
	reply      string
	err        error
	lastPrompt string
}

func (f *fakeGenerator) Name() string     { return "fake" }
func (f *fakeGenerator) Available() error { return nil }
func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.lastPrompt = prompt
	return f.reply, f.err
}

func TestParseList(t *testing.T) {
	in := "  What would silence sound like?\n\n1. Who are you without the signal?\n- A third prompt\n"
	got := ParseList(in)
	want := []string{"What would silence sound like?", "Who are you without the signal?", "A third prompt"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("ParseList = %q, want %q", got, want)
	}
	if len(ParseList("\n \n")) != 0 {
		t.Error("blank text should yield nothing")
	}
}

func TestParseRoom(t *testing.T) {
	cases := []struct {
		name       string
		in         string
		wantName   string
		wantSpirit string
		wantErr    bool
	}{
		{"exact", "NAME: The Analog Commons\nSPIRIT: A room of voyeuristic calm.", "The Analog Commons", "A room of voyeuristic calm.", false},
		{"lower case", "name: Quiet Porch\nspirit: Rain on tin.", "Quiet Porch", "Rain on tin.", false},
		{"mixed with chatter", "Here you go:\n  Name:   Hollow Hall \nSpirit: Echoes.\nEnjoy!", "Hollow Hall", "Echoes.", false},
		{"spirit missing", "NAME: Lone Room", "Lone Room", "", false},
		{"no name", "SPIRIT: nothing to call it", "", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseRoom(tc.in)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidResponse) {
					t.Errorf("err = %v, want ErrInvalidResponse", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got.Name != tc.wantName || got.Spirit != tc.wantSpirit {
				t.Errorf("got %+v", got)
			}
		})
	}
}

func TestRenderPrompt(t *testing.T) {
	p, err := RenderPrompt(Request{
		Kind:         KindRoom,
		Anchor:       "Anxiety Navigation",
		Form:         "The WiFi Fails",
		Reflections:  []string{"first", "", "  ", "third"},
		ExtraContext: "a coffee shop",
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`Anchor: "Anxiety Navigation"`, "first\n---\nthird", "Additional context: a coffee shop", "NAME: [room name]"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q:\n%s", want, p)
		}
	}

	p, _ = RenderPrompt(Request{Kind: KindRoom, Anchor: "a", Form: "f"})
	if strings.Contains(p, "Additional context") {
		t.Error("empty extra context should be omitted")
	}

	if _, err := RenderPrompt(Request{Kind: "nope"}); err == nil {
		t.Error("unknown kind should fail")
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseKind(strings.ToUpper(string(k)))
		if err != nil || got != k {
			t.Errorf("ParseKind(%s) = %v, %v", k, got, err)
		}
	}
	if _, err := ParseKind("poem"); err == nil {
		t.Error("expected error")
	}
}

func TestAssistant_Heating(t *testing.T) {
	gen := &fakeGenerator{reply: "one\ntwo\nthree"}
	a := New(gen)
	got, err := a.Heating(context.Background(), "Anxiety Navigation", "The WiFi Fails")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("got %d prompts", len(got))
	}
	if !strings.Contains(gen.lastPrompt, `"The WiFi Fails"`) {
		t.Error("prompt should carry the form")
	}
}

func TestAssistant_FormsEmptyIsInvalid(t *testing.T) {
	a := New(&fakeGenerator{reply: "   \n"})
	if _, err := a.Forms(context.Background(), "a", "f", nil); !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("err = %v, want ErrInvalidResponse", err)
	}
}

func TestAssistant_RoomPassesErrors(t *testing.T) {
	a := New(&fakeGenerator{err: ErrNoCredential})
	_, err := a.Room(context.Background(), "a", "f", []string{"x"}, "")
	if !errors.Is(err, ErrNoCredential) {
		t.Errorf("err = %v", err)
	}
	if !Unavailable(err) {
		t.Error("missing credential should mark the assistant unavailable")
	}

	a = New(&fakeGenerator{reply: "NAME: Porch\nSPIRIT: Calm"})
	got, err := a.Room(context.Background(), "a", "f", nil, "")
	if err != nil || got.Name != "Porch" {
		t.Errorf("Room = %+v, %v", got, err)
	}
}

func TestErrorTypes(t *testing.T) {
	var err error = &TransportError{Err: context.DeadlineExceeded}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("TransportError should unwrap")
	}
	var remote *RemoteError
	err = &RemoteError{StatusCode: 400, Message: "API key not valid"}
	if !errors.As(err, &remote) || !strings.Contains(err.Error(), "API key not valid") {
		t.Errorf("RemoteError = %v", err)
	}
	if Unavailable(err) {
		t.Error("a remote error is a failed call, not an unavailable assistant")
	}
}
