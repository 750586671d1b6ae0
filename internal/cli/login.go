package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/llehouerou/wake/internal/errmsg"
	"github.com/llehouerou/wake/internal/lastfm"
	"github.com/llehouerou/wake/internal/logging"
	"github.com/llehouerou/wake/internal/session"
	"github.com/llehouerou/wake/internal/state"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Link a Last.fm account",
	Long:  `Opens a browser to authorize wake with your Last.fm account.`,
	RunE:  runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	if !cfg.HasLastfmConfig() {
		return errors.New("lastfm.api_key and lastfm.api_secret must be set in the config file")
	}

	store, err := state.Open()
	if err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpStateOpen, err))
	}
	defer store.Close()

	client := lastfm.New(cfg.Lastfm.APIKey, cfg.Lastfm.APISecret)
	sessions := session.NewManager(store, client, &session.BrowserAuthorizer{}, logging.Discard())

	if sessions.State() == session.SignedIn {
		fmt.Printf("Already signed in as %s.\n", sessions.Username())
		return nil
	}

	fmt.Println("Opening browser for Last.fm authorization...")
	if err := sessions.SignIn(cmd.Context()); err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpSignIn, err))
	}

	fmt.Printf("Signed in as %s.\n", sessions.Username())
	return nil
}
