package components

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// TickMsg is delivered once per Tick. Seq lets a model ignore ticks from a
// countdown it already cancelled.
type TickMsg struct {
	Seq int
	At  time.Time
}

// Tick schedules a TickMsg carrying seq after the duration.
func Tick(duration time.Duration, seq int) tea.Cmd {
	return tea.Tick(duration, func(at time.Time) tea.Msg {
		return TickMsg{Seq: seq, At: at}
	})
}

// DebounceMsg returns a tea.Cmd that emits the provided message after the delay.
// The receiver collapses rapid re-invocations by comparing a sequence it embeds.
func DebounceMsg(duration time.Duration, msg tea.Msg) tea.Cmd {
	return tea.Tick(duration, func(time.Time) tea.Msg { return msg })
}
