package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "marquee",
		Short: "Find something to watch and keep it playing",
		Long: `marquee searches a movie and TV metadata provider, rotating API keys when one
fails and falling back to generated picks when the provider is unavailable.

Playback sessions build embed URLs for a table of streaming servers, switch
away from servers reported broken and remember where you stopped.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.marquee/config.json)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")

	root.AddCommand(
		newSearchCmd(),
		newSimilarCmd(),
		newPlayCmd(),
		newResumeCmd(),
		newServersCmd(),
		newWatchCmd(),
		newServeCmd(),
		newConfigCmd(),
	)
	return root
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return defaultConfigPath()
}
