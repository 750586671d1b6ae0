package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/llehouerou/wake/internal/errmsg"
	"github.com/llehouerou/wake/internal/state"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show account and queue status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	store, err := state.Open()
	if err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpStateOpen, err))
	}
	defer store.Close()

	sess, err := store.GetSession()
	if err != nil {
		return err
	}
	if sess != nil {
		fmt.Printf("Signed in as %s (linked %s)\n", sess.Username, humanize.Time(sess.LinkedAt))
	} else {
		fmt.Println("Not signed in. Run 'wake login' to link a Last.fm account.")
	}

	if cand, err := store.GetCandidate(); err == nil && cand != nil {
		fmt.Printf("Now playing: %s - %s\n", cand.Track.Artist, cand.Track.Title)
	}

	pending, err := store.GetPendingScrobbles()
	if err != nil {
		return err
	}
	switch len(pending) {
	case 0:
		fmt.Println("No pending scrobbles.")
	case 1:
		fmt.Println("1 pending scrobble.")
	default:
		fmt.Printf("%d pending scrobbles.\n", len(pending))
	}

	return nil
}
