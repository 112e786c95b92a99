package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Digital-Shane/marquee/internal/config"
	"github.com/Digital-Shane/marquee/internal/content"
	"github.com/Digital-Shane/marquee/internal/discovery"
	"github.com/Digital-Shane/marquee/internal/stream"
	"github.com/Digital-Shane/marquee/internal/tui/components"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var errNotTerminal = errors.New("interactive mode needs a terminal")

func defaultConfigPath() (string, error) {
	return config.Path()
}

// withApp opens the core for the duration of fn.
func withApp(fn func(*app) error) error {
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}
	a, err := openApp(path)
	if err != nil {
		return err
	}
	runErr := fn(a)
	if err := a.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// requireTerminal fails unless the command writes to an interactive terminal.
func requireTerminal(cmd *cobra.Command) error {
	f, ok := cmd.OutOrStdout().(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return errNotTerminal
	}
	return nil
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

var tableHeader = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var tableCell = lipgloss.NewStyle().Padding(0, 1)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeader
			}
			return tableCell
		})
}

func printResult(cmd *cobra.Command, result discovery.Result, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		items := result.Items
		if items == nil {
			items = []content.Item{}
		}
		return writeJSON(out, map[string]any{
			"items":      items,
			"provenance": result.Provenance,
			"cached":     result.Cached,
			"term":       result.Query.Term,
		})
	}

	switch {
	case result.Provenance.Degraded():
		fmt.Fprintln(out, "Provider unavailable, showing generated picks.")
	case result.Cached:
		fmt.Fprintln(out, "(cached)")
	}
	if len(result.Items) == 0 {
		fmt.Fprintln(out, "No results.")
		return nil
	}

	t := newTable("ID", "Title", "Year", "Kind", "Rating")
	for _, item := range result.Items {
		t.Row(item.ID, components.Truncate(item.Title, 40), item.Year, string(item.Kind), item.Rating)
	}
	fmt.Fprintln(out, t.String())
	return nil
}

func printServers(w io.Writer, servers []stream.Server) {
	t := newTable("#", "ID", "Name", "Tier")
	for idx, server := range servers {
		t.Row(fmt.Sprint(idx+1), server.ID, server.Name, server.Tier.String())
	}
	fmt.Fprintln(w, t.String())
}
