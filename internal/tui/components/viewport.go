package components

import (
	"github.com/Digital-Shane/marquee/internal/tui/theme"

	"github.com/charmbracelet/bubbles/viewport"
)

// NewViewport constructs the scrolling detail pane.
func NewViewport(width, height int, th theme.Theme) viewport.Model {
	vp := viewport.New(width, height)
	vp.Style = th.DetailStyle()
	return vp
}
