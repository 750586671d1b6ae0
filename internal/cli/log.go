package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/llehouerou/wake/internal/errmsg"
	"github.com/llehouerou/wake/internal/state"
)

var logLimit int

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recent scrobble history",
	RunE:  runLog,
}

func init() {
	logCmd.Flags().IntVarP(&logLimit, "limit", "n", 20, "number of entries to show")
	rootCmd.AddCommand(logCmd)
}

func runLog(cmd *cobra.Command, args []string) error {
	store, err := state.Open()
	if err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpStateOpen, err))
	}
	defer store.Close()

	entries, err := store.GetLogEntries(logLimit)
	if err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpLogRead, err))
	}
	if len(entries) == 0 {
		fmt.Println("No scrobble history yet.")
		return nil
	}

	for _, e := range entries {
		line := fmt.Sprintf("%-9s  %s - %s", e.Status, e.Track.Artist, e.Track.Title)
		if e.Message != "" {
			line += fmt.Sprintf(" (%s)", e.Message)
		}
		fmt.Printf("%s  [%s]\n", line, humanize.Time(e.At))
	}
	return nil
}
