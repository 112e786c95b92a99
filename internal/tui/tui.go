package tui

import (
	"context"
	"log/slog"
	"time"

	"github.com/Digital-Shane/marquee/internal/playback"
	"github.com/Digital-Shane/marquee/internal/stream"
	"github.com/Digital-Shane/marquee/internal/tui/theme"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"
)

// Options configure the interactive application.
type Options struct {
	Theme theme.Theme
	// AutoplayCountdown is the number of seconds before the next episode
	// starts once autoplay is armed.
	AutoplayCountdown int
	Tick              time.Duration
	Debounce          time.Duration
	Logger            *slog.Logger
}

// App switches between the search screen and a player for the item the
// user picked.
type App struct {
	manager *playback.Manager
	search  *SearchModel
	player  *PlayerModel
	opts    Options
	logger  *slog.Logger
	width   int
	height  int
}

// NewApp builds the application model.
func NewApp(ctx context.Context, searcher Searcher, manager *playback.Manager, opts Options) *App {
	runewidth.DefaultCondition.EastAsianWidth = false
	runewidth.DefaultCondition.StrictEmojiNeutral = true

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Theme.Colors().Primary == "" {
		opts.Theme = theme.Default()
	}
	searchOpts := []SearchOption{WithSearchTheme(opts.Theme)}
	if opts.Debounce != 0 {
		searchOpts = append(searchOpts, WithDebounce(opts.Debounce))
	}
	return &App{
		manager: manager,
		search:  NewSearchModel(ctx, searcher, searchOpts...),
		opts:    opts,
		logger:  opts.Logger.With(slog.String("component", "tui")),
		width:   100,
		height:  24,
	}
}

// Search exposes the search screen.
func (a *App) Search() *SearchModel {
	return a.search
}

// Player returns the open player, if any.
func (a *App) Player() *PlayerModel {
	return a.player
}

func (a *App) playerOptions() []PlayerOption {
	return []PlayerOption{
		WithPlayerTheme(a.opts.Theme),
		WithCountdown(a.opts.AutoplayCountdown, a.opts.Tick),
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return a.search.Init()
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.search.Update(msg)
		if a.player != nil {
			a.player.Update(msg)
		}
		return a, nil

	case SearchResultMsg:
		_, cmd := a.search.Update(msg)
		return a, cmd

	case OpenItemMsg:
		session, err := a.manager.Open(msg.Item)
		if err != nil {
			a.logger.Warn("failed to open playback session", slog.Any("error", err))
			return a, nil
		}
		a.player = NewPlayerModel(session, a.manager.Registry(), a.playerOptions()...)
		a.player.Update(tea.WindowSizeMsg{Width: a.width, Height: a.height})
		return a, a.player.Init()

	case ClosePlayerMsg:
		a.player = nil
		return a, nil
	}

	if a.player != nil {
		_, cmd := a.player.Update(msg)
		return a, cmd
	}
	_, cmd := a.search.Update(msg)
	return a, cmd
}

// View implements tea.Model.
func (a *App) View() string {
	if a.player != nil {
		return a.player.View()
	}
	return a.search.View()
}

// Run starts the full-screen application and blocks until it exits.
func Run(ctx context.Context, searcher Searcher, manager *playback.Manager, opts Options) error {
	app := NewApp(ctx, searcher, manager, opts)
	_, err := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

// RunPlayer shows a single session until the user leaves it.
func RunPlayer(ctx context.Context, session *playback.Session, registry *stream.Registry, opts Options) error {
	runewidth.DefaultCondition.EastAsianWidth = false
	runewidth.DefaultCondition.StrictEmojiNeutral = true
	if opts.Theme.Colors().Primary == "" {
		opts.Theme = theme.Default()
	}
	model := NewPlayerModel(session, registry,
		WithPlayerTheme(opts.Theme),
		WithCountdown(opts.AutoplayCountdown, opts.Tick),
		Standalone())
	_, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
