package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/llehouerou/wake/internal/errmsg"
	"github.com/llehouerou/wake/internal/lastfm"
	"github.com/llehouerou/wake/internal/logging"
	"github.com/llehouerou/wake/internal/session"
	"github.com/llehouerou/wake/internal/state"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Unlink the Last.fm account",
	Long:  `Removes the stored session along with any undelivered scrobbles.`,
	RunE:  runLogout,
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(cmd *cobra.Command, args []string) error {
	store, err := state.Open()
	if err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpStateOpen, err))
	}
	defer store.Close()

	client := lastfm.New(cfg.Lastfm.APIKey, cfg.Lastfm.APISecret)
	sessions := session.NewManager(store, client, nil, logging.Discard())

	wasSignedIn := sessions.State() == session.SignedIn
	if err := sessions.SignOut(); err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpSignOut, err))
	}

	if wasSignedIn {
		fmt.Println("Signed out.")
	} else {
		fmt.Println("Not signed in.")
	}
	return nil
}
