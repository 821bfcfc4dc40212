// Package assist talks to a text-generation backend for the three assisted
// moments of a session: heating prompts, new forms, and naming the room.
package assist

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var prompts = template.Must(template.ParseFS(promptFS, "prompts/*.tmpl"))

// Kind selects which prompt a request renders.
type Kind string

const (
	KindHeating Kind = "heating"
	KindForms   Kind = "forms"
	KindRoom    Kind = "room"
)

// Kinds lists every request kind.
var Kinds = []Kind{KindHeating, KindForms, KindRoom}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == strings.ToLower(strings.TrimSpace(s)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown assist kind %q (want heating, forms or room)", s)
}

// Request is everything a prompt may draw on.
type Request struct {
	Kind         Kind
	Anchor       string
	Form         string
	Reflections  []string
	ExtraContext string
}

// RoomSuggestion is a proposed room name and spirit.
type RoomSuggestion struct {
	Name   string `json:"name"`
	Spirit string `json:"spirit"`
}

// Generator sends one prompt to a backend and returns its raw text.
type Generator interface {
	Name() string
	Available() error
	Generate(ctx context.Context, prompt string) (string, error)
}

// Assistant turns requests into prompts and parses the answers.
type Assistant struct {
	gen Generator
}

// New wraps a backend in an Assistant.
func New(gen Generator) *Assistant {
	return &Assistant{gen: gen}
}

// Backend returns the generator name.
func (a *Assistant) Backend() string {
	return a.gen.Name()
}

// Available reports whether the backend can be used right now.
func (a *Assistant) Available() error {
	return a.gen.Available()
}

// Heating returns prompts that intensify awareness of the anchor.
func (a *Assistant) Heating(ctx context.Context, anchor, form string) ([]string, error) {
	return a.list(ctx, Request{Kind: KindHeating, Anchor: anchor, Form: form})
}

// Forms returns candidate new forms drawn from the reflections so far.
func (a *Assistant) Forms(ctx context.Context, anchor, form string, reflections []string) ([]string, error) {
	return a.list(ctx, Request{Kind: KindForms, Anchor: anchor, Form: form, Reflections: reflections})
}

// Room proposes a name and spirit for the room that emerged.
func (a *Assistant) Room(ctx context.Context, anchor, form string, reflections []string, extra string) (RoomSuggestion, error) {
	text, err := a.generate(ctx, Request{Kind: KindRoom, Anchor: anchor, Form: form, Reflections: reflections, ExtraContext: extra})
	if err != nil {
		return RoomSuggestion{}, err
	}
	return ParseRoom(text)
}

func (a *Assistant) list(ctx context.Context, req Request) ([]string, error) {
	text, err := a.generate(ctx, req)
	if err != nil {
		return nil, err
	}
	items := ParseList(text)
	if len(items) == 0 {
		return nil, ErrInvalidResponse
	}
	return items, nil
}

func (a *Assistant) generate(ctx context.Context, req Request) (string, error) {
	prompt, err := RenderPrompt(req)
	if err != nil {
		return "", err
	}
	return a.gen.Generate(ctx, prompt)
}

type promptData struct {
	Anchor  string
	Form    string
	Context string
	Extra   string
}

// RenderPrompt fills the embedded template for req.Kind. Blank reflections
// are dropped from the context.
func RenderPrompt(req Request) (string, error) {
	var nonEmpty []string
	for _, r := range req.Reflections {
		if strings.TrimSpace(r) != "" {
			nonEmpty = append(nonEmpty, strings.TrimSpace(r))
		}
	}
	data := promptData{
		Anchor:  req.Anchor,
		Form:    req.Form,
		Context: strings.Join(nonEmpty, "\n---\n"),
		Extra:   strings.TrimSpace(req.ExtraContext),
	}

	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, string(req.Kind)+".tmpl", data); err != nil {
		return "", fmt.Errorf("cannot render %s prompt: %w", req.Kind, err)
	}
	return buf.String(), nil
}

// ParseList splits a response into trimmed, non-empty lines. Leading list
// markers such as "1." or "-" are removed.
func ParseList(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(trimListMarker(line))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func trimListMarker(line string) string {
	for _, p := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(line, p) {
			return line[len(p):]
		}
	}
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		return line[i+1:]
	}
	return line
}

// ParseRoom reads "NAME:" and "SPIRIT:" lines, case-insensitively. A
// response without a name is invalid.
func ParseRoom(text string) (RoomSuggestion, error) {
	var s RoomSuggestion
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "NAME:"):
			s.Name = strings.TrimSpace(line[len("NAME:"):])
		case strings.HasPrefix(upper, "SPIRIT:"):
			s.Spirit = strings.TrimSpace(line[len("SPIRIT:"):])
		}
	}
	if s.Name == "" {
		return RoomSuggestion{}, fmt.Errorf("%w: no NAME line", ErrInvalidResponse)
	}
	return s, nil
}
