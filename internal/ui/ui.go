package ui

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/exec"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
)

// embers are short lines shown when a session starts.
var embers = []string{
	"Every habit is a room you keep walking back into.",
	"Heat the anchor until the form loosens.",
	"Sit in the gap. Resist the urge to resolve.",
	"What you call restlessness may be a door.",
	"A new room is found, not built.",
}

// RandomEmber returns one of the session-start lines.
func RandomEmber() string {
	return embers[rand.Intn(len(embers))]
}

// Logger is the package-level structured logger.
var Logger *log.Logger

// Styles, initialized in Init().
var (
	headerStyle    lipgloss.Style
	successStyle   lipgloss.Style
	warningStyle   lipgloss.Style
	errorStyle     lipgloss.Style
	dimStyle       lipgloss.Style
	boldStyle      lipgloss.Style
	promptStyle    lipgloss.Style
	phaseNameStyle lipgloss.Style
	emberStyle     lipgloss.Style
)

// Init sets up color detection, lipgloss styles, and the structured logger.
// Call this once at CLI startup.
func Init(noColorFlag bool) {
	noColor := noColorFlag || os.Getenv("NO_COLOR") != ""

	// Pre-set dark background to prevent termenv OSC query that leaks ^[[I focus events
	lipgloss.SetHasDarkBackground(true)

	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	} else {
		lipgloss.SetColorProfile(termenv.EnvColorProfile())
	}

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208"))
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	warningStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	dimStyle = lipgloss.NewStyle().Faint(true)
	boldStyle = lipgloss.NewStyle().Bold(true)
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	phaseNameStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("202"))
	emberStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("248"))

	Logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: false,
		Prefix:          "kiln",
	})
	if noColor {
		Logger.SetStyles(log.DefaultStyles())
	}
}

// SetVerbose switches the logger to debug level.
func SetVerbose(v bool) {
	if Logger == nil {
		return
	}
	if v {
		Logger.SetLevel(log.DebugLevel)
	} else {
		Logger.SetLevel(log.InfoLevel)
	}
}

// SanitizeTerminal resets the terminal to cooked mode after an interactive
// program was interrupted.
func SanitizeTerminal() {
	cmd := exec.Command("stty", "sane")
	cmd.Stdin = os.Stdin
	_ = cmd.Run()
	fmt.Fprint(os.Stderr, "\033[0m\r")
}

// Style helpers for inline text.
func Bold(s string) string   { return boldStyle.Render(s) }
func Dim(s string) string    { return dimStyle.Render(s) }
func Red(s string) string    { return errorStyle.Render(s) }
func Green(s string) string  { return successStyle.Render(s) }
func Yellow(s string) string { return warningStyle.Render(s) }

// Logo renders the Kiln mark to stderr: a kiln arch with a flame inside.
func Logo() {
	brick := lipgloss.NewStyle().Foreground(lipgloss.Color("130"))
	flame := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208"))
	word := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))

	top := brick.Render("   ╭───────╮")
	line1 := brick.Render("  ╱") + "    " + flame.Render("(") + "    " + brick.Render("╲")
	line2 := brick.Render(" │") + "    " + flame.Render(")\\)") + "   " + brick.Render("│") + "  " + word.Render("K I L N")
	line3 := brick.Render(" │") + "   " + flame.Render("(__)") + "   " + brick.Render("│")
	bottom := brick.Render(" ╰──────────╯")

	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, top)
	fmt.Fprintln(os.Stderr, line1)
	fmt.Fprintln(os.Stderr, line2)
	fmt.Fprintln(os.Stderr, line3)
	fmt.Fprintln(os.Stderr, bottom)
}

// LogoWithTagline renders the logo with a tagline underneath.
func LogoWithTagline(tagline string) {
	Logo()
	if tagline != "" {
		fmt.Fprintln(os.Stderr, dimStyle.Render("  "+tagline))
	}
	fmt.Fprintln(os.Stderr)
}

// Ember prints a session-start line in italics.
func Ember() {
	fmt.Fprintf(os.Stderr, "  %s\n\n", emberStyle.Render("\""+RandomEmber()+"\""))
}

// PhaseHeader renders a phase banner with a progress indicator.
func PhaseHeader(title string, index, total int, anchor, form string) {
	fmt.Fprint(os.Stderr, "\r")

	brand := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("208")).
		Render("K · I · L · N")

	phaseLine := phaseNameStyle.Render(fmt.Sprintf("─── %s (%d/%d) ───", strings.ToUpper(title), index, total))
	sub := dimStyle.Render(fmt.Sprintf("%s → %s", anchor, form))

	box := lipgloss.NewStyle().
		Bold(true).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(lipgloss.Color("130")).
		PaddingLeft(2).
		PaddingRight(2).
		Render(fmt.Sprintf("%s\n%s\n%s", brand, phaseLine, sub))

	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, box)
	fmt.Fprintln(os.Stderr)
}

// Prompt prints a phase's guiding question.
func Prompt(text string) {
	fmt.Fprintf(os.Stderr, "  %s\n\n", promptStyle.Render(text))
}

// SessionHeader prints a session start banner.
func SessionHeader(id, anchor, form string) {
	fmt.Fprint(os.Stderr, "\r")

	box := lipgloss.NewStyle().
		Bold(true).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(lipgloss.Color("208")).
		PaddingLeft(1).
		PaddingRight(1).
		Render(fmt.Sprintf("SESSION: %s\n%s", id, dimStyle.Render(anchor+" → "+form)))
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, box)
	fmt.Fprintln(os.Stderr)
}

// SessionComplete prints a completion message.
func SessionComplete(id string) {
	fmt.Fprintf(os.Stderr, "\n%s\n",
		successStyle.Render(fmt.Sprintf("✓ Session %s complete", id)))
}

// RoomEmerged announces a room created at finalization.
func RoomEmerged(name, spirit string) {
	box := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("214")).
		PaddingLeft(1).
		PaddingRight(1)
	content := headerStyle.Render("New Room Emerged") + "\n" + boldStyle.Render(name)
	if spirit != "" {
		content += "\n" + emberStyle.Render(spirit)
	}
	fmt.Fprintln(os.Stderr, box.Render(content))
}

func mark(style lipgloss.Style, sym, msg string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", style.Render(sym), msg)
}

// Warning prints a styled warning message.
func Warning(msg string) { mark(warningStyle, "⚠", msg) }

// Error prints a styled error message.
func Error(msg string) { mark(errorStyle, "✗", msg) }

// Info prints a progress or hint line.
func Info(msg string) { mark(phaseNameStyle, "▸", msg) }

// Success prints a green check with a message.
func Success(msg string) { mark(successStyle, "✓", msg) }

// Table prints a formatted table with headers and rows.
func Table(headers []string, rows [][]string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, boldStyle.Render(strings.Join(headers, "\t")))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	w.Flush()
}

// Detail prints an indented key-value detail line.
func Detail(key, value string) {
	label := dimStyle.Render(fmt.Sprintf("  %s", key))
	fmt.Fprintf(os.Stderr, "%s %s\n", label, value)
}

// KeyValue prints a bold key with a value.
func KeyValue(key, value string) {
	fmt.Fprintf(os.Stderr, "  %s  %s\n", boldStyle.Render(key), value)
}

// SectionHeader prints a section divider with a label.
func SectionHeader(label string) {
	line := headerStyle.Render(fmt.Sprintf("── %s ──", label))
	fmt.Fprintf(os.Stderr, "\n%s\n\n", line)
}

// EmptyState prints a message for empty results.
func EmptyState(msg string) {
	fmt.Fprintf(os.Stderr, "  %s\n", dimStyle.Render(msg))
}

// CommandBanner renders a small branded banner for a command.
func CommandBanner(command string, subtitle string) {
	fmt.Fprint(os.Stderr, "\r")

	brand := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("208")).
		Render("K · I · L · N")

	content := fmt.Sprintf("%s\n%s", brand, phaseNameStyle.Render(fmt.Sprintf("─── %s ───", strings.ToUpper(command))))
	if subtitle != "" {
		content += "\n" + dimStyle.Render(subtitle)
	}

	box := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("130")).
		PaddingLeft(1).
		PaddingRight(1).
		Render(content)

	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, box)
	fmt.Fprintln(os.Stderr)
}

// Confirm asks a yes/no question on the picker. Backing out counts as no.
func Confirm(prompt string) (bool, error) {
	idx, err := SelectOne(prompt, []Choice{{Label: "Yes"}, {Label: "No"}})
	if errors.Is(err, ErrCancelled) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return idx == 0, nil
}

// Spinner shows a one-line activity indicator on stderr while a slow call
// runs. Stop clears the line and may be called more than once.
type Spinner struct {
	msg  string
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewSpinner starts a spinner with the given message.
func NewSpinner(msg string) *Spinner {
	s := &Spinner{msg: msg, stop: make(chan struct{}), done: make(chan struct{})}
	go s.run(spinner.MiniDot)
	return s
}

func (s *Spinner) run(sp spinner.Spinner) {
	defer close(s.done)
	ticker := time.NewTicker(sp.FPS)
	defer ticker.Stop()
	for i := 0; ; i++ {
		fmt.Fprintf(os.Stderr, "\r%s %s", phaseNameStyle.Render(sp.Frames[i%len(sp.Frames)]), dimStyle.Render(s.msg))
		select {
		case <-s.stop:
			fmt.Fprint(os.Stderr, "\r\033[K")
			return
		case <-ticker.C:
		}
	}
}

// Stop halts the spinner and clears its line.
func (s *Spinner) Stop() {
	s.once.Do(func() { close(s.stop) })
	<-s.done
}
