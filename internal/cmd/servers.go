package cmd

import (
	"github.com/Digital-Shane/marquee/internal/stream"
	"github.com/spf13/cobra"
)

func newServersCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "servers [name]",
		Short: "List streaming servers, or resolve one by name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := stream.Default()
			servers := registry.List()
			if len(args) == 1 {
				server, err := registry.Resolve(args[0])
				if err != nil {
					return err
				}
				servers = []stream.Server{server}
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), servers)
			}
			printServers(cmd.OutOrStdout(), servers)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print servers as JSON")
	return cmd
}
