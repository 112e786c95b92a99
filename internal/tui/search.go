package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Digital-Shane/marquee/internal/content"
	"github.com/Digital-Shane/marquee/internal/discovery"
	"github.com/Digital-Shane/marquee/internal/tui/components"
	"github.com/Digital-Shane/marquee/internal/tui/theme"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Searcher is the discovery surface the search screen drives.
type Searcher interface {
	Search(ctx context.Context, q content.Query) discovery.Result
	Similar(ctx context.Context, seed content.Item) discovery.Result
	IsCurrent(generation uint64) bool
}

const defaultDebounce = 350 * time.Millisecond

// SearchResultMsg delivers a finished search to the search screen.
type SearchResultMsg struct {
	Result discovery.Result
	// Similar is set for results seeded from an item rather than a query.
	Similar string
}

// OpenItemMsg asks the application to start playback of Item.
type OpenItemMsg struct {
	Item content.Item
}

type searchDebounceMsg struct{ seq int }

type searchFocus int

const (
	focusInput searchFocus = iota
	focusResults
)

var kindCycle = []content.Kind{content.KindAll, content.KindMovie, content.KindSeries}

// SearchModel is the discovery screen: a query input, a ranked result list
// and a detail panel for the highlighted item.
type SearchModel struct {
	ctx      context.Context
	searcher Searcher
	theme    theme.Theme
	debounce time.Duration

	input   textinput.Model
	details viewport.Model
	focus   searchFocus
	kind    int
	mood    int

	items      []content.Item
	provenance content.Provenance
	cached     bool
	term       string
	similarTo  string
	cursor     int
	loading    bool
	dropped    int
	seq        int

	width  int
	height int
}

// SearchOption configures a SearchModel during construction.
type SearchOption func(*SearchModel)

// WithSearchTheme overrides the default theme.
func WithSearchTheme(th theme.Theme) SearchOption {
	return func(m *SearchModel) {
		m.theme = th
	}
}

// WithDebounce sets how long typing must pause before a search starts.
// Zero disables search-as-you-type.
func WithDebounce(d time.Duration) SearchOption {
	return func(m *SearchModel) {
		m.debounce = d
	}
}

// NewSearchModel builds the search screen.
func NewSearchModel(ctx context.Context, searcher Searcher, opts ...SearchOption) *SearchModel {
	m := &SearchModel{
		ctx:      ctx,
		searcher: searcher,
		debounce: defaultDebounce,
		mood:     -1,
		width:    100,
		height:   24,
	}
	initOpts := append([]SearchOption{WithSearchTheme(theme.Default())}, opts...)
	for _, opt := range initOpts {
		opt(m)
	}

	m.input = textinput.New()
	m.input.Prompt = m.theme.Icon("search") + " "
	m.input.Placeholder = "title, mood or keyword"
	m.input.CharLimit = 80
	m.input.PromptStyle = lipgloss.NewStyle().Foreground(m.theme.Colors().Primary)
	m.input.Focus()

	m.details = components.NewViewport(40, 10, m.theme)
	m.layout()
	return m
}

// Init starts the input cursor and runs the default search so the screen
// opens on something to browse.
func (m *SearchModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.startSearch())
}

// Items returns the displayed results.
func (m *SearchModel) Items() []content.Item {
	return m.items
}

// Selected returns the highlighted result.
func (m *SearchModel) Selected() (content.Item, bool) {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return content.Item{}, false
	}
	return m.items[m.cursor], true
}

// Dropped counts results discarded because a newer search had started.
func (m *SearchModel) Dropped() int {
	return m.dropped
}

func (m *SearchModel) query() content.Query {
	return content.Query{
		Text: m.input.Value(),
		Kind: kindCycle[m.kind],
	}
}

func (m *SearchModel) startSearch() tea.Cmd {
	m.loading = true
	ctx, searcher, q := m.ctx, m.searcher, m.query()
	return func() tea.Msg {
		return SearchResultMsg{Result: searcher.Search(ctx, q)}
	}
}

func (m *SearchModel) startSimilar(seed content.Item) tea.Cmd {
	m.loading = true
	ctx, searcher := m.ctx, m.searcher
	return func() tea.Msg {
		return SearchResultMsg{Result: searcher.Similar(ctx, seed), Similar: seed.Title}
	}
}

// Update handles input for the search screen.
func (m *SearchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case SearchResultMsg:
		if !m.searcher.IsCurrent(msg.Result.Generation) {
			m.dropped++
			return m, nil
		}
		m.loading = false
		m.items = msg.Result.Items
		m.provenance = msg.Result.Provenance
		m.cached = msg.Result.Cached
		m.term = msg.Result.Query.Term
		m.similarTo = msg.Similar
		m.cursor = 0
		m.refreshDetails()
		return m, nil

	case searchDebounceMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		return m, m.startSearch()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.focus == focusInput {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *SearchModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		if m.focus == focusResults {
			m.setFocus(focusInput)
			return m, nil
		}
		return m, tea.Quit
	case "tab":
		if m.focus == focusInput {
			m.setFocus(focusResults)
		} else {
			m.setFocus(focusInput)
		}
		return m, nil
	case "ctrl+t":
		m.kind = (m.kind + 1) % len(kindCycle)
		return m, m.startSearch()
	case "ctrl+n", "ctrl+p":
		if msg.String() == "ctrl+n" {
			m.mood = (m.mood + 1) % len(content.Moods)
		} else {
			m.mood = (m.mood - 1 + len(content.Moods)) % len(content.Moods)
		}
		m.input.SetValue(content.Moods[m.mood].Name)
		m.input.CursorEnd()
		return m, m.startSearch()
	}

	if m.focus == focusResults {
		return m.handleResultsKey(msg)
	}

	if msg.String() == "enter" {
		m.seq++
		m.setFocus(focusResults)
		return m, m.startSearch()
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() == before || m.debounce <= 0 {
		return m, cmd
	}
	m.seq++
	m.mood = -1
	return m, tea.Batch(cmd, components.DebounceMsg(m.debounce, searchDebounceMsg{seq: m.seq}))
}

func (m *SearchModel) handleResultsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			m.refreshDetails()
		}
	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
			m.refreshDetails()
		}
	case "pgup":
		m.details.HalfPageUp()
	case "pgdown":
		m.details.HalfPageDown()
	case "s":
		if item, ok := m.Selected(); ok {
			return m, m.startSimilar(item)
		}
	case "enter":
		if item, ok := m.Selected(); ok {
			return m, func() tea.Msg { return OpenItemMsg{Item: item} }
		}
	case "/":
		m.setFocus(focusInput)
	}
	return m, nil
}

func (m *SearchModel) setFocus(focus searchFocus) {
	m.focus = focus
	if focus == focusInput {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

func (m *SearchModel) layout() {
	m.input.Width = max(m.width-6, 10)
	m.details.Width = max(m.width-m.listWidth()-2, 10)
	m.details.Height = m.bodyHeight()
	m.refreshDetails()
}

func (m *SearchModel) listWidth() int {
	return m.width * 6 / 10
}

func (m *SearchModel) bodyHeight() int {
	return max(m.height-7, 3)
}

func (m *SearchModel) refreshDetails() {
	item, ok := m.Selected()
	if !ok {
		m.details.SetContent("")
		return
	}
	width := max(m.details.Width-2, 10)
	var b strings.Builder
	b.WriteString(m.theme.PanelTitleStyle().Render(components.Truncate(item.Title, width)))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s  %s %s  %s\n",
		m.theme.Icon("calendar"), item.Year,
		m.theme.Icon("star"), item.Rating,
		item.Runtime)
	if len(item.Genres) > 0 {
		b.WriteString(m.theme.MutedStyle().Render(components.Truncate(strings.Join(item.Genres, ", "), width)))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	for _, line := range components.Wrap(item.Synopsis, width) {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(components.Truncate("Director: "+item.Director, width))
	if len(item.Cast) > 0 {
		b.WriteString("\n")
		b.WriteString(components.Truncate("Cast: "+strings.Join(item.Cast, ", "), width))
	}
	m.details.SetContent(b.String())
	m.details.GotoTop()
}

// View renders the search screen.
func (m *SearchModel) View() string {
	var b strings.Builder
	b.WriteString(m.theme.HeaderStyle().Width(m.width).Render("Marquee"))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.filterLine())
	b.WriteString("\n")
	b.WriteString(m.bannerLine())
	b.WriteString("\n")

	list := lipgloss.NewStyle().Width(m.listWidth()).Height(m.bodyHeight()).Render(m.renderList())
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, list, m.details.View()))
	b.WriteString("\n")
	b.WriteString(m.statusBar())
	return b.String()
}

func (m *SearchModel) filterLine() string {
	kind := "all"
	if k := kindCycle[m.kind]; k != content.KindAll {
		kind = string(k)
	}
	parts := []string{"kind: " + kind}
	if m.mood >= 0 {
		parts = append(parts, m.theme.Icon("mood")+" "+content.Moods[m.mood].Name)
	}
	if m.term != "" {
		parts = append(parts, "term: "+m.term)
	}
	return m.theme.MutedStyle().Render(strings.Join(parts, "  "))
}

func (m *SearchModel) bannerLine() string {
	switch {
	case m.loading:
		return m.theme.BadgeStyle(theme.BadgeMuted).Render("searching…")
	case m.provenance.Degraded():
		return m.theme.BadgeStyle(theme.BadgeWarning).
			Render(m.theme.Icon("fallback") + " provider unavailable, showing generated picks")
	case m.similarTo != "":
		return m.theme.BadgeStyle(theme.BadgeInfo).Render("more like " + m.similarTo)
	case m.cached:
		return m.theme.MutedStyle().Render(m.theme.Icon("cached") + " cached")
	}
	return ""
}

func (m *SearchModel) renderList() string {
	if len(m.items) == 0 {
		if m.loading {
			return ""
		}
		return m.theme.MutedStyle().Render("no results")
	}

	height := m.bodyHeight()
	start := 0
	if m.cursor >= height {
		start = m.cursor - height + 1
	}
	end := min(start+height, len(m.items))
	width := m.listWidth()

	lines := make([]string, 0, end-start)
	for idx := start; idx < end; idx++ {
		item := m.items[idx]
		marker := "  "
		if idx == m.cursor && m.focus == focusResults {
			marker = "> "
		}
		icon := m.theme.KindIcon(item.Kind)
		suffix := fmt.Sprintf(" (%s) %s %s", item.Year, m.theme.Icon("star"), item.Rating)
		title := components.Truncate(item.Title, max(width-len(marker)-len(suffix)-6, 8))
		line := components.PadRight(marker+icon+" "+title+suffix, width)
		if idx == m.cursor {
			line = m.theme.SelectedStyle().Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m *SearchModel) statusBar() string {
	help := "enter search • tab results • ctrl+t kind • ctrl+n mood • esc quit"
	if m.focus == focusResults {
		help = fmt.Sprintf("%s move • enter play • s similar • / search • esc back", m.theme.Icon("arrows"))
	}
	count := fmt.Sprintf("%d results", len(m.items))
	gap := max(m.width-len(count)-4, 1)
	return m.theme.StatusBarStyle().Width(m.width).
		Render(components.PadRight(help, gap) + count)
}
