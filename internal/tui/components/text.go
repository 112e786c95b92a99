package components

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Truncate shortens s to fit width terminal cells, marking the cut with an
// ellipsis.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}

// PadRight fills s with spaces up to width cells.
func PadRight(s string, width int) string {
	return runewidth.FillRight(Truncate(s, width), width)
}

// Wrap breaks s into lines no wider than width cells on word boundaries.
func Wrap(s string, width int) []string {
	if width <= 0 {
		return nil
	}
	var (
		lines []string
		line  strings.Builder
		used  int
	)
	for _, word := range strings.Fields(s) {
		w := runewidth.StringWidth(word)
		if used > 0 && used+1+w > width {
			lines = append(lines, line.String())
			line.Reset()
			used = 0
		}
		if used > 0 {
			line.WriteByte(' ')
			used++
		}
		line.WriteString(Truncate(word, width))
		used += min(w, width)
	}
	if used > 0 {
		lines = append(lines, line.String())
	}
	return lines
}
