package theme

import (
	"maps"
	"os"
	"runtime"

	"github.com/Digital-Shane/marquee/internal/content"
	"github.com/Digital-Shane/marquee/internal/stream"
	"github.com/charmbracelet/lipgloss"
)

// IconSet maps icon names to glyphs.
type IconSet map[string]string

// Colors is the palette shared by the search and player screens.
type Colors struct {
	Primary    lipgloss.Color
	Secondary  lipgloss.Color
	Accent     lipgloss.Color
	Background lipgloss.Color
	Muted      lipgloss.Color
	Success    lipgloss.Color
	Warning    lipgloss.Color
	Error      lipgloss.Color
}

// BadgeKind selects a badge color.
type BadgeKind int

const (
	BadgeInfo BadgeKind = iota
	BadgeSuccess
	BadgeWarning
	BadgeError
	BadgeMuted
)

// Theme holds the palette and icons. The zero value is not usable; build
// one with New.
type Theme struct {
	colors Colors
	icons  IconSet
}

// Option adjusts a Theme in New.
type Option func(*Theme)

// WithColors replaces the palette.
func WithColors(colors Colors) Option {
	return func(t *Theme) { t.colors = colors }
}

// WithIcons overrides individual icons. Names not in set keep their
// default glyph.
func WithIcons(set IconSet) Option {
	return func(t *Theme) { maps.Copy(t.icons, set) }
}

// ASCII forces the plain text icon set.
func ASCII() Option {
	return func(t *Theme) { t.icons = maps.Clone(asciiIcons) }
}

var marqueeColors = Colors{
	Primary:    lipgloss.Color("#7a1f2b"),
	Secondary:  lipgloss.Color("#a8323f"),
	Accent:     lipgloss.Color("#e0b64a"),
	Background: lipgloss.Color("#f8f4ec"),
	Muted:      lipgloss.Color("#8c8a99"),
	Success:    lipgloss.Color("#5dc796"),
	Warning:    lipgloss.Color("#e8923a"),
	Error:      lipgloss.Color("#f04c56"),
}

// New builds the marquee theme. Emoji icons are used unless the terminal
// is unlikely to render them.
func New(opts ...Option) Theme {
	icons := emojiIcons
	if asciiPreferred(os.Getenv, runtime.GOOS) {
		icons = asciiIcons
	}
	t := Theme{colors: marqueeColors, icons: maps.Clone(icons)}
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

// Default returns New().
func Default() Theme {
	return New()
}

// Colors returns the palette.
func (t Theme) Colors() Colors {
	return t.colors
}

// Icon returns the glyph for name, falling back to its ASCII form.
func (t Theme) Icon(name string) string {
	if icon, ok := t.icons[name]; ok {
		return icon
	}
	return asciiIcons[name]
}

// KindIcon returns the icon for a movie or a series.
func (t Theme) KindIcon(kind content.Kind) string {
	if kind == content.KindSeries {
		return t.Icon("series")
	}
	return t.Icon("movie")
}

func (t Theme) HeaderStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		Background(t.colors.Primary).
		Foreground(t.colors.Background).
		Align(lipgloss.Center)
}

func (t Theme) StatusBarStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Background(t.colors.Secondary).
		Foreground(t.colors.Background).
		Padding(0, 1)
}

func (t Theme) PanelTitleStyle() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Underline(true)
}

// DetailStyle frames the detail pane next to the result list.
func (t Theme) DetailStyle() lipgloss.Style {
	return lipgloss.NewStyle().Padding(0, 1)
}

// SelectedStyle highlights the focused row of a list.
func (t Theme) SelectedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(t.colors.Primary)
}

// MutedStyle renders secondary text such as broken servers.
func (t Theme) MutedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.colors.Muted)
}

func (t Theme) BadgeStyle(kind BadgeKind) lipgloss.Style {
	background := t.colors.Accent
	switch kind {
	case BadgeSuccess:
		background = t.colors.Success
	case BadgeWarning:
		background = t.colors.Warning
	case BadgeError:
		background = t.colors.Error
	case BadgeMuted:
		background = t.colors.Muted
	}
	return lipgloss.NewStyle().
		Padding(0, 1).
		Bold(true).
		Background(background).
		Foreground(t.colors.Background)
}

// TierBadge colors a server's reliability tier.
func (t Theme) TierBadge(tier stream.Tier) lipgloss.Style {
	switch tier {
	case stream.TierHigh:
		return t.BadgeStyle(BadgeSuccess)
	case stream.TierMedium:
		return t.BadgeStyle(BadgeWarning)
	default:
		return t.BadgeStyle(BadgeMuted)
	}
}

// CountdownGradient returns the start and end colors of the autoplay bar.
func (t Theme) CountdownGradient() (string, string) {
	return string(t.colors.Primary), string(t.colors.Accent)
}

// asciiPreferred reports whether emoji are likely to render badly: remote
// shells, dumb terminals, Windows consoles and MARQUEE_ASCII.
func asciiPreferred(getenv func(string) string, goos string) bool {
	for _, key := range []string{"MARQUEE_ASCII", "SSH_CLIENT", "SSH_TTY", "SSH_CONNECTION"} {
		if getenv(key) != "" {
			return true
		}
	}
	return getenv("TERM") == "dumb" || goos == "windows"
}

var emojiIcons = IconSet{
	"movie":    "🎬",
	"series":   "📺",
	"search":   "🔍",
	"mood":     "🎭",
	"server":   "📡",
	"broken":   "❌",
	"playing":  "▶",
	"fallback": "🧠",
	"cached":   "💾",
	"stale":    "⌛",
	"star":     "⭐",
	"calendar": "📅",
	"next":     "⏭",
	"previous": "⏮",
	"arrows":   "↑↓",
}

var asciiIcons = IconSet{
	"movie":    "[M]",
	"series":   "[TV]",
	"search":   "[?]",
	"mood":     "[~]",
	"server":   "[S]",
	"broken":   "[x]",
	"playing":  ">",
	"fallback": "[AI]",
	"cached":   "[C]",
	"stale":    "[..]",
	"star":     "*",
	"calendar": "[Y]",
	"next":     ">>",
	"previous": "<<",
	"arrows":   "^v",
}
