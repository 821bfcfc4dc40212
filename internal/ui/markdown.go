package ui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
)

// RenderMarkdown renders markdown for the terminal, falling back to the raw
// text if the renderer cannot be built.
func RenderMarkdown(md string) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return md
	}
	out, err := renderer.Render(md)
	if err != nil {
		return md
	}
	return out
}

// PrintMarkdown writes rendered markdown to stdout.
func PrintMarkdown(md string) {
	fmt.Fprint(os.Stdout, RenderMarkdown(md))
}
