package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// editorModel edits a multi-line reflection.
type editorModel struct {
	prompt    string
	area      textarea.Model
	saved     bool
	cancelled bool
}

func newEditorModel(prompt, initial string) editorModel {
	ta := textarea.New()
	ta.Placeholder = "Write freely..."
	ta.CharLimit = 8000
	ta.ShowLineNumbers = false
	ta.SetWidth(72)
	ta.SetHeight(8)
	ta.SetValue(initial)
	ta.Focus()
	return editorModel{prompt: prompt, area: ta}
}

func (m editorModel) Init() tea.Cmd { return textarea.Blink }

func (m editorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "ctrl+d", "ctrl+s":
			m.saved = true
			return m, tea.Quit
		case "ctrl+c", "esc":
			m.cancelled = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.area, cmd = m.area.Update(msg)
	return m, cmd
}

func (m editorModel) View() string {
	return fmt.Sprintf("  %s\n\n%s\n\n%s",
		promptStyle.Render(m.prompt),
		m.area.View(),
		dimStyle.Render("  ctrl+d save • esc cancel"))
}

// EditText opens a multi-line editor seeded with initial and returns the
// trimmed result. Cancelling returns ErrCancelled.
func EditText(prompt, initial string) (string, error) {
	p := tea.NewProgram(newEditorModel(prompt, initial), tea.WithOutput(os.Stderr))
	result, err := p.Run()
	if err != nil {
		return "", err
	}
	fmt.Fprintln(os.Stderr)
	final := result.(editorModel)
	if final.cancelled {
		return "", ErrCancelled
	}
	return strings.TrimSpace(final.area.Value()), nil
}

// lineModel reads a single line such as a room name.
type lineModel struct {
	prompt    string
	input     textinput.Model
	done      bool
	cancelled bool
}

func newLineModel(prompt, placeholder, initial string) lineModel {
	ti := textinput.New()
	ti.Prompt = "▸ "
	ti.Placeholder = placeholder
	ti.CharLimit = 256
	ti.SetValue(initial)
	ti.Focus()
	return lineModel{prompt: prompt, input: ti}
}

func (m lineModel) Init() tea.Cmd { return textinput.Blink }

func (m lineModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "enter":
			m.done = true
			return m, tea.Quit
		case "ctrl+c", "esc":
			m.cancelled = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m lineModel) View() string {
	return fmt.Sprintf("  %s\n  %s\n", promptStyle.Render(m.prompt), m.input.View())
}

// PromptLine reads one line of input. Cancelling returns ErrCancelled.
func PromptLine(prompt, placeholder, initial string) (string, error) {
	p := tea.NewProgram(newLineModel(prompt, placeholder, initial), tea.WithOutput(os.Stderr))
	result, err := p.Run()
	if err != nil {
		return "", err
	}
	fmt.Fprintln(os.Stderr)
	final := result.(lineModel)
	if final.cancelled {
		return "", ErrCancelled
	}
	return strings.TrimSpace(final.input.Value()), nil
}
