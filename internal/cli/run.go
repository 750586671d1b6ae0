package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/llehouerou/wake/internal/errmsg"
	"github.com/llehouerou/wake/internal/lastfm"
	"github.com/llehouerou/wake/internal/logging"
	"github.com/llehouerou/wake/internal/mpris"
	"github.com/llehouerou/wake/internal/scrobble"
	"github.com/llehouerou/wake/internal/session"
	"github.com/llehouerou/wake/internal/state"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scrobble daemon",
	Long: `Watches MPRIS players on the session bus and scrobbles eligible plays.
Undelivered scrobbles are queued and retried with backoff.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	if !cfg.HasLastfmConfig() {
		return errors.New("lastfm.api_key and lastfm.api_secret must be set in the config file")
	}

	logger, logFile, err := logging.Setup()
	if err != nil {
		logger = logging.Discard()
	} else {
		defer logFile.Close()
	}

	store, err := state.Open()
	if err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpStateOpen, err))
	}
	defer store.Close()

	scfg := cfg.GetScrobbleConfig()
	qcfg := cfg.GetQueueConfig()

	client := lastfm.New(cfg.Lastfm.APIKey, cfg.Lastfm.APISecret)
	sessions := session.NewManager(store, client, &session.BrowserAuthorizer{}, logger)

	ledger := scrobble.NewLedger(store, time.Duration(scfg.RetentionDays)*24*time.Hour)
	log := scrobble.NewLog(store, scfg.LogSize)
	queue := scrobble.NewQueue(scrobble.QueueParams{
		Store:       store,
		Ledger:      ledger,
		Log:         log,
		Submitter:   client,
		Sessions:    sessions,
		Logger:      logger,
		BaseDelay:   qcfg.BaseDelay(),
		MaxDelay:    qcfg.MaxDelay(),
		MaxAttempts: qcfg.MaxAttempts,
	})
	tracker := scrobble.NewTracker(scrobble.TrackerParams{
		Store: store,
		Policy: scrobble.Policy{
			CompletionFraction: scfg.CompletionFraction,
			CompletionGrace:    time.Duration(scfg.CompletionGraceSeconds) * time.Second,
			FallbackMinimum:    time.Duration(scfg.FallbackMinimumSeconds) * time.Second,
			LongTrackMinimum:   time.Duration(scfg.LongTrackMinimumSeconds) * time.Second,
		},
		Ledger:   ledger,
		Log:      log,
		Queue:    queue,
		Sessions: sessions,
		Submit:   client,
		Logger:   logger,
	})

	observer, err := mpris.NewObserver(logger, 5*time.Second)
	if err != nil {
		return fmt.Errorf("%s", errmsg.FormatWith(errmsg.OpObserve, "session bus", err))
	}
	defer observer.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := ledger.Prune(time.Now()); err != nil {
		logger.Warn("prune ledger", "err", err)
	}

	// Deliver anything left over from a previous run.
	queue.Flush(ctx)

	go func() {
		if err := observer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("observer stopped", "err", err)
		}
	}()

	logger.Info("daemon started", "signed_in", sessions.State() == session.SignedIn)
	fmt.Println("Watching players. Press Ctrl+C to stop.")

	retry := time.NewTicker(qcfg.BaseDelay())
	defer retry.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case snap := <-observer.Snapshots():
			tracker.HandleSnapshot(ctx, snap)
		case <-retry.C:
			queue.Flush(ctx)
		}
	}

	// Final chance to record and deliver the in-flight listen.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	tracker.Finalize(shutdownCtx, "shutdown")
	queue.Flush(shutdownCtx)

	logger.Info("daemon stopped")
	return nil
}
