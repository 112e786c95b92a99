package cmd

import (
	"fmt"

	"github.com/Digital-Shane/marquee/internal/content"
	"github.com/spf13/cobra"
)

func newResumeCmd() *cobra.Command {
	var (
		asJSON bool
		kind   string
	)
	cmd := &cobra.Command{
		Use:   "resume <content-id>",
		Short: "Show where playback of a title stopped",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				out := cmd.OutOrStdout()
				state, ok := a.playback.ResumeState(content.ParseKind(kind), args[0])
				if !ok {
					fmt.Fprintf(out, "Nothing to resume for %s.\n", args[0])
					return nil
				}
				if asJSON {
					return writeJSON(out, state)
				}
				fmt.Fprintf(out, "%s: season %d, episode %d on %s\n",
					state.ContentID, state.Season, state.Episode, state.ServerID)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the resume tuple as JSON")
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "movie or series; empty checks series first, then movie")
	return cmd
}
