package cmd

import (
	"time"

	"github.com/Digital-Shane/marquee/internal/tui"
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Browse and play interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireTerminal(cmd); err != nil {
				return err
			}
			return withApp(func(a *app) error {
				return tui.Run(cmd.Context(), a.search, a.playback, tui.Options{
					AutoplayCountdown: int(a.cfg.Playback.AutoplayCountdown / time.Second),
					Logger:            a.logger,
				})
			})
		},
	}
}
