// Package timer runs foreground timing sessions (pomodoro, countdown and
// stopwatch) and turns them into timer records.
package timer

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Styles for the session display.
var (
	clockStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")) // Purple

	workStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#10B981")) // Green

	breakStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F59E0B")) // Yellow

	longBreakStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6")) // Blue

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")) // Gray

	hintStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("#6B7280"))
)

// Phase is the kind of interval being timed.
type Phase int

const (
	PhaseWork Phase = iota
	PhaseBreak
	PhaseLongBreak
)

func (p Phase) String() string {
	switch p {
	case PhaseWork:
		return "WORK"
	case PhaseBreak:
		return "BREAK"
	case PhaseLongBreak:
		return "LONG BREAK"
	default:
		return "UNKNOWN"
	}
}

// FormatClock formats a duration as MM:SS or HH:MM:SS.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	total := int(d.Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// Display draws session state to a terminal.
type Display struct {
	Writer   io.Writer
	UseColor bool
	// Redraw clears the screen before each frame.
	Redraw bool
	// Raw ends lines with CRLF for a terminal in raw mode.
	Raw bool
}

func (d *Display) render(style lipgloss.Style, s string) string {
	if !d.UseColor {
		return s
	}
	return style.Render(s)
}

// Frame renders one frame for state.
func (d *Display) Frame(state State) string {
	var sb strings.Builder

	style := workStyle
	switch state.Phase {
	case PhaseBreak:
		style = breakStyle
	case PhaseLongBreak:
		style = longBreakStyle
	}
	sb.WriteString(d.render(style, state.Label()))
	if state.Sessions > 0 {
		sb.WriteString(d.render(mutedStyle, fmt.Sprintf(" [%d/%d]", state.Session, state.Sessions)))
	}
	sb.WriteString("\n\n")

	if state.Total > 0 {
		sb.WriteString(d.render(clockStyle, FormatClock(state.Remaining)))
		sb.WriteString("\n\n")
		sb.WriteString(d.render(mutedStyle, progressBar(state.Progress(), 30)))
	} else {
		sb.WriteString(d.render(clockStyle, FormatClock(state.Active)))
	}
	sb.WriteString("\n\n")

	hint := "Press SPACE to pause, S to skip, Q to stop"
	if state.Paused {
		hint = "[PAUSED] Press SPACE to resume, Q to stop"
	}
	sb.WriteString(d.render(hintStyle, hint))
	return sb.String()
}

// Draw writes a frame for state.
func (d *Display) Draw(state State) {
	if d.Writer == nil {
		return
	}
	if d.Redraw {
		fmt.Fprint(d.Writer, "\033[H\033[2J")
	}
	frame := d.Frame(state)
	if d.Raw {
		frame = strings.ReplaceAll(frame, "\n", "\r\n")
	}
	fmt.Fprint(d.Writer, frame)
	if !d.Redraw {
		fmt.Fprintln(d.Writer)
	}
}

// Summary renders the closing message of a run.
func (d *Display) Summary(work time.Duration, completed int) string {
	header := d.render(workStyle, "Session finished")
	body := fmt.Sprintf("Completed intervals: %d\nTime recorded: %s", completed, FormatClock(work))
	return header + "\n\n" + d.render(mutedStyle, body)
}

func progressBar(progress float64, width int) string {
	progress = max(0, min(1, progress))
	filled := int(progress * float64(width))
	return fmt.Sprintf("[%s%s] %d%%",
		strings.Repeat("█", filled),
		strings.Repeat("░", width-filled),
		int(progress*100))
}
