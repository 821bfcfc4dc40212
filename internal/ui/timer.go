package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/timer"
	tea "github.com/charmbracelet/bubbletea"
)

// HeatDurations are the timer lengths offered for the empty heat.
var HeatDurations = []time.Duration{
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
	15 * time.Minute,
	20 * time.Minute,
}

const defaultHeatChoice = 1

// TimerResult is what the empty-heat timer reports when it closes.
type TimerResult struct {
	Elapsed   time.Duration
	Completed bool
	Cancelled bool
	TimedOut  bool
}

type timerState int

const (
	timerChoosing timerState = iota
	timerRunning
	timerPaused
	timerDone
)

type timerModel struct {
	choice int
	state  timerState
	timer  timer.Model
	bar    progress.Model
	notify func(title, message string)
	result TimerResult
}

func newTimerModel(initial time.Duration) timerModel {
	choice := defaultHeatChoice
	for i, d := range HeatDurations {
		if d == initial {
			choice = i
		}
	}
	bar := progress.New(progress.WithGradient("#FF8700", "#D75F00"))
	bar.Width = 40
	return timerModel{choice: choice, bar: bar, notify: Notify}
}

func (m timerModel) total() time.Duration { return HeatDurations[m.choice] }

func (m timerModel) elapsed() time.Duration {
	switch m.state {
	case timerChoosing:
		return 0
	case timerDone:
		return m.total()
	}
	e := m.total() - m.timer.Timeout
	if e < 0 {
		e = 0
	}
	if e > m.total() {
		e = m.total()
	}
	return e
}

func (m timerModel) Init() tea.Cmd { return nil }

func (m timerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case timer.TimeoutMsg:
		if msg.ID != m.timer.ID() || m.state == timerChoosing {
			return m, nil
		}
		m.state = timerDone
		m.result.TimedOut = true
		if m.notify != nil {
			m.notify("Kiln", "The empty heat is complete.")
		}
		return m, nil

	case timer.TickMsg, timer.StartStopMsg:
		if m.state == timerChoosing || m.state == timerDone {
			return m, nil
		}
		var cmd tea.Cmd
		m.timer, cmd = m.timer.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m timerModel) handleKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k.String() {
	case "left", "h":
		if m.state == timerChoosing && m.choice > 0 {
			m.choice--
		}
	case "right", "l":
		if m.state == timerChoosing && m.choice < len(HeatDurations)-1 {
			m.choice++
		}
	case " ", "p":
		switch m.state {
		case timerChoosing:
			m.timer = timer.NewWithInterval(m.total(), time.Second)
			m.state = timerRunning
			return m, m.timer.Init()
		case timerRunning:
			m.state = timerPaused
			return m, m.timer.Stop()
		case timerPaused:
			m.state = timerRunning
			return m, m.timer.Start()
		}
	case "r":
		if m.state != timerChoosing {
			m.state = timerChoosing
			m.result.TimedOut = false
			return m, m.timer.Stop()
		}
	case "enter":
		m.result.Elapsed = m.elapsed()
		m.result.Completed = true
		return m, tea.Quit
	case "ctrl+c", "esc", "q":
		m.result.Elapsed = m.elapsed()
		m.result.Cancelled = true
		return m, tea.Quit
	}
	return m, nil
}

func (m timerModel) View() string {
	var b strings.Builder
	b.WriteString("\n  " + phaseNameStyle.Render("EMPTY HEAT") + "\n")
	b.WriteString("  " + emberStyle.Render("Sit in the gap. Resist the urge to resolve.") + "\n\n")

	if m.state == timerChoosing {
		var opts []string
		for i, d := range HeatDurations {
			label := fmt.Sprintf("%d min", int(d.Minutes()))
			if i == m.choice {
				opts = append(opts, promptStyle.Render("["+label+"]"))
			} else {
				opts = append(opts, dimStyle.Render(" "+label+" "))
			}
		}
		b.WriteString("  " + strings.Join(opts, " ") + "\n\n")
		b.WriteString(dimStyle.Render("  ←/→ duration • space start • enter done • esc cancel"))
		return b.String()
	}

	remaining := m.total() - m.elapsed()
	pct := float64(m.elapsed()) / float64(m.total())
	b.WriteString(fmt.Sprintf("  %s  %s\n\n", boldStyle.Render(Clock(remaining)), m.bar.ViewAs(pct)))

	switch m.state {
	case timerPaused:
		b.WriteString("  " + warningStyle.Render("paused") + "\n\n")
	case timerDone:
		b.WriteString("  " + successStyle.Render("Time. Notice what arose.") + "\n\n")
	}
	b.WriteString(dimStyle.Render("  space pause/resume • r reset • enter done • esc cancel"))
	return b.String()
}

// Clock formats a duration as mm:ss.
func Clock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}

// RunTimer shows the empty-heat countdown. initial preselects one of
// HeatDurations; any other value falls back to five minutes.
func RunTimer(ctx context.Context, initial time.Duration) (TimerResult, error) {
	p := tea.NewProgram(newTimerModel(initial), tea.WithOutput(os.Stderr), tea.WithContext(ctx))
	result, err := p.Run()
	if err != nil {
		return TimerResult{}, err
	}
	fmt.Fprintln(os.Stderr)
	return result.(timerModel).result, nil
}
