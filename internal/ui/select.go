package ui

import (
	"errors"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// ErrCancelled is returned when the user backs out of an interactive prompt.
var ErrCancelled = errors.New("cancelled")

// Choice is one row in a picker.
type Choice struct {
	Label    string
	Detail   string
	Selected bool
}

// selectModel is a bubbletea model for single- and multi-select lists.
type selectModel struct {
	title     string
	choices   []Choice
	cursor    int
	multi     bool
	confirmed bool
	cancelled bool
}

func (m selectModel) Init() tea.Cmd { return nil }

func (m selectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.choices)-1 {
				m.cursor++
			}
		case " ", "x":
			if m.multi {
				m.choices[m.cursor].Selected = !m.choices[m.cursor].Selected
			}
		case "a":
			if m.multi {
				for i := range m.choices {
					m.choices[i].Selected = true
				}
			}
		case "n":
			if m.multi {
				for i := range m.choices {
					m.choices[i].Selected = false
				}
			}
		case "enter":
			if !m.multi {
				for i := range m.choices {
					m.choices[i].Selected = i == m.cursor
				}
			}
			m.confirmed = true
			return m, tea.Quit
		case "ctrl+c", "esc", "q":
			m.cancelled = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m selectModel) View() string {
	var b strings.Builder

	help := "↑/↓ navigate • enter choose • esc cancel"
	if m.multi {
		help = "↑/↓ navigate • space toggle • a all • n none • enter confirm"
	}
	b.WriteString(fmt.Sprintf("\n  %s\n", boldStyle.Render(m.title)))
	b.WriteString(fmt.Sprintf("  %s\n\n", dimStyle.Render(help)))

	for i, c := range m.choices {
		cursor := "  "
		if i == m.cursor {
			cursor = promptStyle.Render("▸ ")
		}

		mark := ""
		if m.multi {
			mark = "[ ]  "
			if c.Selected {
				mark = successStyle.Render("[✓]") + "  "
			}
		}

		label := c.Label
		if len(label) > 50 {
			label = label[:50] + ".."
		}
		line := cursor + mark + label
		if c.Detail != "" {
			line += "  " + dimStyle.Render(c.Detail)
		}
		b.WriteString(line + "\n")
	}

	return b.String()
}

func (m selectModel) selected() []int {
	if m.cancelled {
		return nil
	}
	var out []int
	for i, c := range m.choices {
		if c.Selected {
			out = append(out, i)
		}
	}
	return out
}

// SelectOne shows a single-choice picker and returns the chosen index.
func SelectOne(title string, choices []Choice) (int, error) {
	if len(choices) == 0 {
		return -1, ErrCancelled
	}
	final, err := runSelect(selectModel{title: title, choices: choices})
	if err != nil {
		return -1, err
	}
	idx := final.selected()
	if len(idx) == 0 {
		return -1, ErrCancelled
	}
	return idx[0], nil
}

// SelectMany shows a multi-choice picker and returns the chosen indices.
// Choices marked Selected start checked.
func SelectMany(title string, choices []Choice) ([]int, error) {
	if len(choices) == 0 {
		return nil, nil
	}
	final, err := runSelect(selectModel{title: title, choices: choices, multi: true})
	if err != nil {
		return nil, err
	}
	if final.cancelled {
		return nil, ErrCancelled
	}
	return final.selected(), nil
}

func runSelect(m selectModel) (selectModel, error) {
	p := tea.NewProgram(m, tea.WithOutput(os.Stderr))
	result, err := p.Run()
	if err != nil {
		return m, err
	}
	fmt.Fprintln(os.Stderr)
	return result.(selectModel), nil
}
