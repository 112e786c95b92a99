package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Digital-Shane/marquee/internal/content"
	"github.com/Digital-Shane/marquee/internal/playback"
	"github.com/Digital-Shane/marquee/internal/tui"
	"github.com/spf13/cobra"
)

func newPlayCmd() *cobra.Command {
	var (
		kind    string
		title   string
		server  string
		season  int
		episode int
		broken  []string
		asJSON  bool
		inTUI   bool
	)
	cmd := &cobra.Command{
		Use:   "play <content-id>",
		Short: "Open a playback session and print its embed URL",
		Long: `Open a playback session for a content id. The last season, episode and server
are restored when the title was played before.

--broken reports servers as failing before the URL is printed; the value
"active" reports whichever server is playing. --server accepts an id, a name or a fuzzy
fragment of either.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item := content.Item{
				ID:    strings.TrimSpace(args[0]),
				Kind:  content.ParseKind(kind),
				Title: title,
			}
			if item.Kind == content.KindAll {
				item.Kind = content.KindMovie
			}
			if item.Title == "" {
				item.Title = item.ID
			}

			return withApp(func(a *app) error {
				session, err := a.playback.Open(item)
				if err != nil {
					return err
				}
				defer session.Close()

				if server != "" {
					resolved, err := a.playback.Registry().Resolve(server)
					if err != nil {
						return err
					}
					if err := session.SelectServer(resolved.ID); err != nil {
						return err
					}
				}
				if cmd.Flags().Changed("season") || cmd.Flags().Changed("episode") {
					snap := session.Snapshot()
					if !cmd.Flags().Changed("season") {
						season = snap.Season
					}
					if !cmd.Flags().Changed("episode") {
						episode = snap.Episode
					}
					if err := session.SetEpisode(season, episode); err != nil {
						return err
					}
				}
				for _, id := range broken {
					if id == "active" {
						id = ""
					} else {
						resolved, err := a.playback.Registry().Resolve(id)
						if err != nil {
							return err
						}
						id = resolved.ID
					}
					if _, err := session.ReportBroken(id); err != nil {
						return err
					}
				}

				if inTUI {
					if err := requireTerminal(cmd); err != nil {
						return err
					}
					countdown := int(a.cfg.Playback.AutoplayCountdown / time.Second)
					return tui.RunPlayer(cmd.Context(), session, a.playback.Registry(), tui.Options{AutoplayCountdown: countdown})
				}
				return printSession(cmd, session.Snapshot(), asJSON)
			})
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", "movie", "movie or series")
	cmd.Flags().StringVarP(&title, "title", "t", "", "Display title")
	cmd.Flags().StringVarP(&server, "server", "s", "", "Streaming server to use")
	cmd.Flags().IntVar(&season, "season", 1, "Season number (series)")
	cmd.Flags().IntVar(&episode, "episode", 1, "Episode number (series)")
	cmd.Flags().StringSliceVar(&broken, "broken", nil, "Report servers as broken")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the session as JSON")
	cmd.Flags().BoolVar(&inTUI, "tui", false, "Open the interactive player")
	return cmd
}

func printSession(cmd *cobra.Command, snap playback.Snapshot, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		return writeJSON(out, snap)
	}
	fmt.Fprintf(out, "%s on %s (%s)\n", snap.Item.Title, snap.Server.Name, snap.Server.Tier)
	if snap.Item.Kind == content.KindSeries {
		fmt.Fprintf(out, "Season %d, Episode %d\n", snap.Season, snap.Episode)
	}
	if len(snap.Broken) > 0 {
		fmt.Fprintf(out, "Broken: %s\n", strings.Join(snap.Broken, ", "))
	}
	fmt.Fprintln(out, snap.EmbedURL)
	return nil
}
