package cmd

import (
	"strings"

	"github.com/Digital-Shane/marquee/internal/content"
	"github.com/spf13/cobra"
)

func newSearchCmd() *cobra.Command {
	var (
		kind   string
		year   string
		genre  string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search for movies and series",
		Long: `Search the metadata provider. Mood keywords such as Noir or Eerie map onto
curated terms and an empty query browses popular titles.

When every provider key fails the results come from the generator and are
marked as such.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := content.Query{
				Text:  strings.Join(args, " "),
				Kind:  content.ParseKind(kind),
				Year:  year,
				Genre: genre,
			}
			return withApp(func(a *app) error {
				return printResult(cmd, a.search.Search(cmd.Context(), query), asJSON)
			})
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "Restrict to movie or series")
	cmd.Flags().StringVarP(&year, "year", "y", "", "Restrict to a release year")
	cmd.Flags().StringVarP(&genre, "genre", "g", "", "Fold a genre into the search term")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	return cmd
}

func newSimilarCmd() *cobra.Command {
	var (
		kind   string
		year   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "similar <title>",
		Short: "Suggest titles like the given one",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed := content.Item{
				Title: strings.Join(args, " "),
				Year:  year,
				Kind:  content.ParseKind(kind),
			}
			return withApp(func(a *app) error {
				return printResult(cmd, a.search.Similar(cmd.Context(), seed), asJSON)
			})
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "movie or series")
	cmd.Flags().StringVarP(&year, "year", "y", "", "Release year of the title")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	return cmd
}
