package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/timer"
	tea "github.com/charmbracelet/bubbletea"
)

func TestBold_ContainsText(t *testing.T) {
	Init(false)
	result := Bold("hello")
	if !strings.Contains(result, "hello") {
		t.Errorf("Bold output should contain 'hello', got %q", result)
	}
}

func TestColorDisabled_PlainText(t *testing.T) {
	Init(true) // no color
	defer Init(false)

	if Bold("hello") != "hello" {
		t.Errorf("expected plain text when color disabled, got %q", Bold("hello"))
	}
	if Red("error") != "error" {
		t.Errorf("expected plain text, got %q", Red("error"))
	}
	if Green("ok") != "ok" {
		t.Errorf("expected plain text, got %q", Green("ok"))
	}
	if Yellow("warn") != "warn" {
		t.Errorf("expected plain text, got %q", Yellow("warn"))
	}
	if Dim("dim") != "dim" {
		t.Errorf("expected plain text, got %q", Dim("dim"))
	}
}

func TestLoggerInitialized(t *testing.T) {
	Init(false)
	if Logger == nil {
		t.Error("Logger should be initialized after Init()")
	}
	SetVerbose(true)
	SetVerbose(false)
}

func TestLogo_NoErrors(t *testing.T) {
	Init(false)
	// Logo writes to stderr; just verify no panic
	Logo()
	LogoWithTagline("test tagline")
	PhaseHeader("Heating", 1, 6, "The Restless Scroll", "Doomscrolling")
	RoomEmerged("The Analog Commons", "")
}

func TestRandomEmber_Variety(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		seen[RandomEmber()] = true
	}
	if len(seen) < 2 {
		t.Errorf("Expected variety in lines, but only got %d unique", len(seen))
	}
}

func TestClock(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00"},
		{5 * time.Minute, "05:00"},
		{12*time.Minute + 5*time.Second, "12:05"},
		{-time.Second, "00:00"},
		{1500 * time.Millisecond, "00:02"},
	}
	for _, tt := range tests {
		if got := Clock(tt.in); got != tt.want {
			t.Errorf("Clock(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m tea.Model, keys ...string) tea.Model {
	t.Helper()
	for _, k := range keys {
		m, _ = m.Update(key(k))
	}
	return m
}

func TestTimer_ChooseDuration(t *testing.T) {
	Init(true)
	m := newTimerModel(0)
	if m.total() != 5*time.Minute {
		t.Fatalf("default = %v, want 5m", m.total())
	}
	m = press(t, m, "right", "right").(timerModel)
	if m.total() != 15*time.Minute {
		t.Errorf("after right x2 = %v, want 15m", m.total())
	}
	m = press(t, m, "left", "left", "left", "left").(timerModel)
	if m.total() != 2*time.Minute {
		t.Errorf("left clamps at first option, got %v", m.total())
	}
	if !strings.Contains(m.View(), "2 min") {
		t.Errorf("view should list durations:\n%s", m.View())
	}

	m = newTimerModel(20 * time.Minute)
	if m.total() != 20*time.Minute {
		t.Errorf("preselect = %v, want 20m", m.total())
	}
}

func TestTimer_PauseResumeComplete(t *testing.T) {
	Init(true)
	m := newTimerModel(5 * time.Minute)
	m = press(t, m, " ").(timerModel)
	if m.state != timerRunning {
		t.Fatalf("state = %v, want running", m.state)
	}
	if m.elapsed() != 0 {
		t.Errorf("elapsed at start = %v", m.elapsed())
	}

	m.timer.Timeout = 3 * time.Minute
	m = press(t, m, "p").(timerModel)
	if m.state != timerPaused {
		t.Fatalf("state = %v, want paused", m.state)
	}
	if !strings.Contains(m.View(), "03:00") || !strings.Contains(m.View(), "paused") {
		t.Errorf("paused view:\n%s", m.View())
	}
	m = press(t, m, "p").(timerModel)
	if m.state != timerRunning {
		t.Fatalf("state = %v, want running", m.state)
	}

	next, cmd := m.Update(key("enter"))
	m = next.(timerModel)
	if cmd == nil {
		t.Error("enter should quit")
	}
	if !m.result.Completed || m.result.Cancelled {
		t.Errorf("result = %+v", m.result)
	}
	if m.result.Elapsed != 2*time.Minute {
		t.Errorf("elapsed = %v, want 2m", m.result.Elapsed)
	}
}

func TestTimer_Reset(t *testing.T) {
	Init(true)
	m := press(t, newTimerModel(5*time.Minute), " ").(timerModel)
	m.timer.Timeout = time.Minute
	m = press(t, m, "r").(timerModel)
	if m.state != timerChoosing || m.elapsed() != 0 {
		t.Errorf("reset: state=%v elapsed=%v", m.state, m.elapsed())
	}
}

func TestTimer_Timeout(t *testing.T) {
	Init(true)
	var notified []string
	m := newTimerModel(2 * time.Minute)
	m.notify = func(title, msg string) { notified = append(notified, title+": "+msg) }
	m = press(t, m, " ").(timerModel)

	// A timeout from a stale timer is ignored.
	next, _ := m.Update(timer.TimeoutMsg{ID: m.timer.ID() + 1000})
	m = next.(timerModel)
	if m.state != timerRunning {
		t.Fatal("stale timeout should be ignored")
	}

	next, _ = m.Update(timer.TimeoutMsg{ID: m.timer.ID()})
	m = next.(timerModel)
	if m.state != timerDone || !m.result.TimedOut {
		t.Fatalf("state = %v, result = %+v", m.state, m.result)
	}
	if len(notified) != 1 {
		t.Errorf("notifications = %v", notified)
	}
	m = press(t, m, "enter").(timerModel)
	if m.result.Elapsed != 2*time.Minute {
		t.Errorf("elapsed = %v, want full duration", m.result.Elapsed)
	}
}

func TestTimer_Cancel(t *testing.T) {
	Init(true)
	m := press(t, newTimerModel(0), "esc").(timerModel)
	if !m.result.Cancelled || m.result.Completed || m.result.Elapsed != 0 {
		t.Errorf("result = %+v", m.result)
	}
}

func TestSelectModel_Single(t *testing.T) {
	Init(true)
	m := selectModel{title: "Link to", choices: []Choice{{Label: "Attic"}, {Label: "Cellar"}, {Label: "Porch"}}}
	m = press(t, m, "down", "down", "down", "up", " ", "enter").(selectModel)
	got := m.selected()
	if len(got) != 1 || got[0] != 1 {
		t.Errorf("selected = %v, want [1]", got)
	}
}

func TestSelectModel_Multi(t *testing.T) {
	Init(true)
	m := selectModel{title: "Rooms", multi: true, choices: []Choice{{Label: "a"}, {Label: "b"}, {Label: "c"}}}
	m = press(t, m, " ", "down", "down", "x", "enter").(selectModel)
	got := m.selected()
	if len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Errorf("selected = %v, want [0 2]", got)
	}

	m = press(t, m, "a").(selectModel)
	if len(m.selected()) != 3 {
		t.Error("a should select all")
	}
	m = press(t, m, "n").(selectModel)
	if len(m.selected()) != 0 {
		t.Error("n should select none")
	}
	if !strings.Contains(m.View(), "[ ]") {
		t.Errorf("view:\n%s", m.View())
	}
}

func TestSelectModel_Cancel(t *testing.T) {
	m := selectModel{choices: []Choice{{Label: "a", Selected: true}}, multi: true}
	m = press(t, m, "esc").(selectModel)
	if !m.cancelled || m.selected() != nil {
		t.Errorf("cancel should return nothing, got %v", m.selected())
	}
}

func TestSelectOne_Empty(t *testing.T) {
	if _, err := SelectOne("none", nil); err != ErrCancelled {
		t.Errorf("err = %v, want ErrCancelled", err)
	}
}

func TestEditorModel(t *testing.T) {
	Init(true)
	m := newEditorModel("What did you notice?", "seed")
	m = press(t, m, " ", "m", "o", "r", "e").(editorModel)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlD})
	m = next.(editorModel)
	if !m.saved || cmd == nil {
		t.Fatal("ctrl+d should save and quit")
	}
	if got := m.area.Value(); got != "seed more" {
		t.Errorf("value = %q", got)
	}

	c := press(t, newEditorModel("q", ""), "esc").(editorModel)
	if !c.cancelled {
		t.Error("esc should cancel")
	}
}

func TestLineModel(t *testing.T) {
	Init(true)
	m := press(t, newLineModel("Name this room", "", ""), "D", "e", "n", "enter").(lineModel)
	if !m.done || m.input.Value() != "Den" {
		t.Errorf("done=%v value=%q", m.done, m.input.Value())
	}
}

func TestRenderMarkdown(t *testing.T) {
	out := RenderMarkdown("# Session Complete\n\nhello")
	if !strings.Contains(out, "hello") {
		t.Errorf("render lost content: %q", out)
	}
}

func TestEscapeAppleScript(t *testing.T) {
	if got := escapeAppleScript(`say "hi" \ bye`); got != `say \"hi\" \\ bye` {
		t.Errorf("got %q", got)
	}
}

func TestSpinner_StopTwice(t *testing.T) {
	Init(true)
	s := NewSpinner("working")
	s.Stop()
	s.Stop()
}
