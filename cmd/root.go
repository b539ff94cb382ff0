// Package cmd contains the lyrics-relay commands.
package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	version = "dev"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lyrics-relay",
	Short: "Intercepting proxy that serves lyrics from public providers",
	Long: `lyrics-relay sits between a music client and its API host. Lyrics
requests (track/<id>/image) are answered locally from Genius or LRCLib using
Spotify metadata. Every other request is forwarded unchanged over https.

Example usage:
  lyrics-relay serve                       # Start the proxy and admin listeners
  lyrics-relay serve --config relay.yaml   # Start with a config file
  lyrics-relay healthcheck                 # Probe the local admin listener
  lyrics-relay version                     # Print build information`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string reported by the version command.
func SetVersion(v string) {
	version = v
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./lyrics-relay.yaml)")
}
