// Package cli wires the commands: the scrobble daemon plus account and
// history inspection.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/llehouerou/wake/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "wake",
	Short: "Scrobble daemon for MPRIS media players",
	Long: `Wake watches media players on the session bus and scrobbles what you
listen to, with durable queueing and retry when the network is down.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	SilenceUsage: true,
}

func initConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	return nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
