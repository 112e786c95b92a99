package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Digital-Shane/marquee/internal/content"
	"github.com/Digital-Shane/marquee/internal/playback"
	"github.com/Digital-Shane/marquee/internal/stream"
	"github.com/Digital-Shane/marquee/internal/tui/components"
	"github.com/Digital-Shane/marquee/internal/tui/theme"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	defaultCountdown = 5
	defaultTick      = time.Second
)

// ClosePlayerMsg is emitted after the player closed its session.
type ClosePlayerMsg struct {
	Item content.Item
}

// PlayerModel shows one playback session: the embed URL, the active server
// and its tier, the broken set, the episode position and the autoplay
// countdown.
type PlayerModel struct {
	session    *playback.Session
	registry   *stream.Registry
	theme      theme.Theme
	standalone bool

	countdown int
	tick      time.Duration
	remaining int
	counting  bool
	seq       int
	bar       progress.Model

	status string
	width  int
	height int
}

// PlayerOption configures a PlayerModel during construction.
type PlayerOption func(*PlayerModel)

// WithPlayerTheme overrides the default theme.
func WithPlayerTheme(th theme.Theme) PlayerOption {
	return func(m *PlayerModel) {
		m.theme = th
	}
}

// WithCountdown sets how many ticks the autoplay countdown lasts and the
// tick length.
func WithCountdown(steps int, tick time.Duration) PlayerOption {
	return func(m *PlayerModel) {
		if steps > 0 {
			m.countdown = steps
		}
		if tick > 0 {
			m.tick = tick
		}
	}
}

// Standalone makes closing the player quit the program.
func Standalone() PlayerOption {
	return func(m *PlayerModel) {
		m.standalone = true
	}
}

// NewPlayerModel wraps an open session.
func NewPlayerModel(session *playback.Session, registry *stream.Registry, opts ...PlayerOption) *PlayerModel {
	m := &PlayerModel{
		session:   session,
		registry:  registry,
		countdown: defaultCountdown,
		tick:      defaultTick,
		width:     100,
		height:    24,
	}
	initOpts := append([]PlayerOption{WithPlayerTheme(theme.Default())}, opts...)
	for _, opt := range initOpts {
		opt(m)
	}
	m.bar = progress.New(progress.WithGradient(m.theme.CountdownGradient()))
	m.bar.ShowPercentage = false
	m.bar.Width = 40
	return m
}

// Init implements tea.Model.
func (m *PlayerModel) Init() tea.Cmd {
	return nil
}

// Counting reports whether the autoplay countdown is running.
func (m *PlayerModel) Counting() bool {
	return m.counting
}

// Update handles input for the player screen.
func (m *PlayerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(min(msg.Width-20, 60), 10)
		return m, nil

	case components.TickMsg:
		if !m.counting || msg.Seq != m.seq {
			return m, nil
		}
		m.remaining--
		if m.remaining > 0 {
			return m, components.Tick(m.tick, m.seq)
		}
		m.counting = false
		m.apply(m.session.NextEpisode(), "autoplaying next episode")
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *PlayerModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "ctrl+c":
		_ = m.session.Close()
		return m, tea.Quit
	case "esc", "q":
		m.cancelCountdown()
		_ = m.session.Close()
		if m.standalone {
			return m, tea.Quit
		}
		item := m.session.Item()
		return m, func() tea.Msg { return ClosePlayerMsg{Item: item} }
	case "b":
		m.cancelCountdown()
		server, err := m.session.ReportBroken("")
		m.apply(err, "switched to "+server.Name)
		return m, nil
	}

	if idx, err := strconv.Atoi(key); err == nil && idx >= 1 && idx <= m.registry.Len() {
		m.cancelCountdown()
		server := m.registry.List()[idx-1]
		m.apply(m.session.SelectServer(server.ID), "playing on "+server.Name)
		return m, nil
	}

	if m.session.Item().Kind != content.KindSeries {
		return m, nil
	}

	snap := m.session.Snapshot()
	switch key {
	case "n", "right":
		m.cancelCountdown()
		m.apply(m.session.NextEpisode(), "")
	case "p", "left":
		m.cancelCountdown()
		m.apply(m.session.PreviousEpisode(), "")
	case "]":
		m.cancelCountdown()
		m.apply(m.session.SetEpisode(snap.Season+1, 1), "")
	case "[":
		m.cancelCountdown()
		m.apply(m.session.SetEpisode(snap.Season-1, 1), "")
	case "a":
		if m.counting {
			m.cancelCountdown()
			m.status = "autoplay cancelled"
			return m, nil
		}
		m.counting = true
		m.remaining = m.countdown
		m.seq++
		m.status = ""
		return m, components.Tick(m.tick, m.seq)
	}
	return m, nil
}

func (m *PlayerModel) cancelCountdown() {
	if m.counting {
		m.counting = false
		m.seq++
	}
}

func (m *PlayerModel) apply(err error, ok string) {
	switch {
	case errors.Is(err, playback.ErrSessionClosed):
		m.status = "session closed"
	case err != nil:
		m.status = err.Error()
	default:
		m.status = ok
	}
}

// View renders the player screen.
func (m *PlayerModel) View() string {
	snap := m.session.Snapshot()
	item := snap.Item
	var b strings.Builder

	b.WriteString(m.theme.HeaderStyle().Width(m.width).
		Render(components.Truncate(m.theme.KindIcon(item.Kind)+" "+item.Title, max(m.width-2, 1))))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "%s %s %s\n", m.theme.Icon("server"), snap.Server.Name,
		m.theme.TierBadge(snap.Server.Tier).Render(snap.Server.Tier.String()))
	if item.Kind == content.KindSeries {
		fmt.Fprintf(&b, "Season %d, Episode %d\n", snap.Season, snap.Episode)
	}
	b.WriteString(components.Truncate(snap.EmbedURL, max(m.width-2, 10)))
	b.WriteString("\n\n")

	b.WriteString(m.theme.PanelTitleStyle().Render("Servers"))
	b.WriteString("\n")
	broken := make(map[string]bool, len(snap.Broken))
	for _, id := range snap.Broken {
		broken[id] = true
	}
	for idx, server := range m.registry.List() {
		marker := "  "
		switch {
		case server.ID == snap.Server.ID:
			marker = m.theme.Icon("playing") + " "
		case broken[server.ID]:
			marker = m.theme.Icon("broken") + " "
		}
		line := fmt.Sprintf("%s%d %s (%s)", marker, idx+1, server.Name, server.Tier)
		switch {
		case server.ID == snap.Server.ID:
			line = m.theme.SelectedStyle().Render(line)
		case broken[server.ID]:
			line = m.theme.MutedStyle().Render(line + " broken")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if m.counting {
		b.WriteString("\n")
		fmt.Fprintf(&b, "%s Next episode in %d\n", m.theme.Icon("next"), m.remaining)
		b.WriteString(m.bar.ViewAs(1 - float64(m.remaining)/float64(m.countdown)))
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(m.theme.MutedStyle().Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	help := "b broken • 1-" + strconv.Itoa(m.registry.Len()) + " server • esc back"
	if item.Kind == content.KindSeries {
		help = "n/p episode • [/] season • a autoplay • " + help
	}
	b.WriteString(m.theme.StatusBarStyle().Width(m.width).Render(components.Truncate(help, max(m.width-2, 1))))
	return b.String()
}
