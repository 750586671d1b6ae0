package scrobble

import (
	"context"
	"testing"
	"testing/synctest"
	"time"

	"github.com/llehouerou/wake/internal/playback"
	"github.com/llehouerou/wake/internal/state"
)

func newTestTracker(store *state.Mock, sub *fakeSubmitter, sess *fakeSessions) *Tracker {
	ledger := NewLedger(store, 30*24*time.Hour)
	log := NewLog(store, 50)
	q := NewQueue(QueueParams{
		Store:     store,
		Ledger:    ledger,
		Log:       log,
		Submitter: sub,
		Sessions:  sess,
	})
	return NewTracker(TrackerParams{
		Store:    store,
		Policy:   DefaultPolicy(),
		Ledger:   ledger,
		Log:      log,
		Queue:    q,
		Sessions: sess,
		Submit:   sub,
	})
}

func playing(track playback.Track, pos time.Duration) playback.Snapshot {
	return playback.Snapshot{
		Track:     &track,
		State:     playback.StatePlaying,
		Position:  pos,
		Timestamp: time.Now(),
	}
}

func TestTrackerScrobblesOnTrackChange(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		store := state.NewMock()
		sub := &fakeSubmitter{}
		sess := &fakeSessions{key: "sk", store: store}
		tr := newTestTracker(store, sub, sess)
		ctx := context.Background()

		trackA := testTrack("First")
		tr.HandleSnapshot(ctx, playing(trackA, 0))
		time.Sleep(170 * time.Second)
		tr.HandleSnapshot(ctx, playing(trackA, 170*time.Second))

		// Switching tracks finalizes the first listen.
		tr.HandleSnapshot(ctx, playing(testTrack("Second"), 0))
		synctest.Wait()

		if got := sub.calls(); got != 1 {
			t.Fatalf("scrobble calls = %d, want 1", got)
		}
		sub.mu.Lock()
		defer sub.mu.Unlock()
		if sub.scrobbles[0][0].Track != "First" {
			t.Errorf("scrobbled %q, want First", sub.scrobbles[0][0].Track)
		}
	})
}

func TestTrackerSkipsShortPlay(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		store := state.NewMock()
		sub := &fakeSubmitter{}
		sess := &fakeSessions{key: "sk", store: store}
		tr := newTestTracker(store, sub, sess)
		ctx := context.Background()

		track := testTrack("Song")
		tr.HandleSnapshot(ctx, playing(track, 0))
		time.Sleep(10 * time.Second)
		tr.HandleSnapshot(ctx, playing(track, 10*time.Second))

		tr.Finalize(ctx, "test")
		synctest.Wait()

		if got := sub.calls(); got != 0 {
			t.Errorf("scrobble calls = %d, want 0 for a 10s listen", got)
		}
		entries, _ := store.GetLogEntries(10)
		if len(entries) == 0 || entries[0].Status != state.LogSkipped {
			t.Errorf("expected a skipped log entry, got %v", entries)
		}
	})
}

func TestTrackerWatermarkIsMonotonic(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		store := state.NewMock()
		sub := &fakeSubmitter{}
		sess := &fakeSessions{key: "sk", store: store}
		tr := newTestTracker(store, sub, sess)
		ctx := context.Background()

		track := testTrack("Song") // 3 minutes
		tr.HandleSnapshot(ctx, playing(track, 0))
		tr.HandleSnapshot(ctx, playing(track, 160*time.Second))
		// Seek back near the start.
		tr.HandleSnapshot(ctx, playing(track, 5*time.Second))

		cand, err := store.GetCandidate()
		if err != nil || cand == nil {
			t.Fatalf("candidate missing: %v", err)
		}
		if cand.LastPosition != 160*time.Second {
			t.Errorf("watermark = %v, want 160s after backwards seek", cand.LastPosition)
		}

		// The credited 160s of a 180s track passes the grace rule.
		tr.Finalize(ctx, "test")
		synctest.Wait()
		if got := sub.calls(); got != 1 {
			t.Errorf("scrobble calls = %d, want 1", got)
		}
	})
}

func TestTrackerNowPlayingSentOnce(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		store := state.NewMock()
		sub := &fakeSubmitter{}
		sess := &fakeSessions{key: "sk", store: store}
		tr := newTestTracker(store, sub, sess)
		ctx := context.Background()

		track := testTrack("Song")
		tr.HandleSnapshot(ctx, playing(track, 0))
		tr.HandleSnapshot(ctx, playing(track, 10*time.Second))
		tr.HandleSnapshot(ctx, playing(track, 20*time.Second))
		synctest.Wait()

		sub.mu.Lock()
		defer sub.mu.Unlock()
		if len(sub.nowPlaying) != 1 {
			t.Errorf("now playing calls = %d, want 1", len(sub.nowPlaying))
		}
	})
}

func TestTrackerNoNowPlayingWhenSignedOut(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		store := state.NewMock()
		sub := &fakeSubmitter{}
		sess := &fakeSessions{store: store}
		tr := newTestTracker(store, sub, sess)

		tr.HandleSnapshot(context.Background(), playing(testTrack("Song"), 0))
		synctest.Wait()

		sub.mu.Lock()
		defer sub.mu.Unlock()
		if len(sub.nowPlaying) != 0 {
			t.Errorf("now playing calls = %d, want 0 when signed out", len(sub.nowPlaying))
		}
	})
}

func TestTrackerIgnoresPreviewPlayback(t *testing.T) {
	store := state.NewMock()
	sub := &fakeSubmitter{}
	sess := &fakeSessions{key: "sk", store: store}
	tr := newTestTracker(store, sub, sess)

	track := testTrack("Song")
	snap := playing(track, 0)
	snap.Intent = &playback.Intent{UsePreview: true}
	tr.HandleSnapshot(context.Background(), snap)

	if cand, _ := store.GetCandidate(); cand != nil {
		t.Error("preview playback opened a candidate")
	}
}

func TestTrackerBackdatesStart(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		store := state.NewMock()
		sub := &fakeSubmitter{}
		sess := &fakeSessions{key: "sk", store: store}
		tr := newTestTracker(store, sub, sess)
		ctx := context.Background()

		// Observed mid-track: 100s in.
		track := testTrack("Song")
		now := time.Now()
		tr.HandleSnapshot(ctx, playback.Snapshot{
			Track:     &track,
			State:     playback.StatePlaying,
			Position:  100 * time.Second,
			Timestamp: now,
		})

		cand, _ := store.GetCandidate()
		if cand == nil {
			t.Fatal("no candidate")
		}
		if got := cand.StartedAt; !got.Equal(now.Add(-100 * time.Second)) {
			t.Errorf("StartedAt = %v, want %v", got, now.Add(-100*time.Second))
		}
	})
}

func TestTrackerSuppressesDuplicateSession(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		store := state.NewMock()
		sub := &fakeSubmitter{}
		sess := &fakeSessions{key: "sk", store: store}
		ledger := NewLedger(store, 30*24*time.Hour)
		tr := newTestTracker(store, sub, sess)
		ctx := context.Background()

		track := testTrack("Song")
		now := time.Now()
		tr.HandleSnapshot(ctx, playback.Snapshot{
			Track: &track, State: playback.StatePlaying, Timestamp: now,
		})
		tr.HandleSnapshot(ctx, playback.Snapshot{
			Track: &track, State: playback.StatePlaying,
			Position: 170 * time.Second, Timestamp: now.Add(170 * time.Second),
		})

		// The same session was already delivered before a crash.
		if err := ledger.Record(ledger.Key(track, now), now); err != nil {
			t.Fatal(err)
		}

		tr.Finalize(ctx, "test")
		synctest.Wait()

		if got := sub.calls(); got != 0 {
			t.Errorf("scrobble calls = %d, want 0 for an already delivered session", got)
		}
	})
}

func TestTrackerRestoresPersistedCandidate(t *testing.T) {
	store := state.NewMock()
	track := testTrack("Song")
	if err := store.SaveCandidate(state.Candidate{
		Track:        track,
		StartedAt:    time.Now().Add(-3 * time.Minute),
		LastPosition: 170 * time.Second,
	}); err != nil {
		t.Fatal(err)
	}

	sub := &fakeSubmitter{}
	sess := &fakeSessions{key: "sk", store: store}
	tr := newTestTracker(store, sub, sess)

	tr.Finalize(context.Background(), "test")

	if got := sub.calls(); got != 1 {
		t.Errorf("scrobble calls = %d, want 1 for restored candidate", got)
	}
}

func TestTrackerBufferingDoesNotFinalize(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		store := state.NewMock()
		sub := &fakeSubmitter{}
		sess := &fakeSessions{key: "sk", store: store}
		tr := newTestTracker(store, sub, sess)
		ctx := context.Background()

		track := testTrack("Song")
		now := time.Now()
		tr.HandleSnapshot(ctx, playback.Snapshot{
			Track: &track, State: playback.StatePlaying, Timestamp: now,
		})
		// The player rebuffers mid-track.
		tr.HandleSnapshot(ctx, playback.Snapshot{
			Track: &track, State: playback.StateLoading,
			Position: 60 * time.Second, Timestamp: now.Add(60 * time.Second),
		})
		synctest.Wait()

		cand, err := store.GetCandidate()
		if err != nil || cand == nil {
			t.Fatal("buffering snapshot ended the candidate")
		}
		if got := sub.calls(); got != 0 {
			t.Errorf("scrobble calls = %d, want 0 while still buffering", got)
		}

		// Playback resumes and completes normally.
		tr.HandleSnapshot(ctx, playback.Snapshot{
			Track: &track, State: playback.StatePlaying,
			Position: 170 * time.Second, Timestamp: now.Add(170 * time.Second),
		})
		tr.HandleSnapshot(ctx, playback.Snapshot{
			State: playback.StateStopped, Timestamp: now.Add(171 * time.Second),
		})
		synctest.Wait()

		if got := sub.calls(); got != 1 {
			t.Errorf("scrobble calls = %d, want 1 after resume and stop", got)
		}
	})
}

func TestTrackerStartsCandidateWhileBuffering(t *testing.T) {
	store := state.NewMock()
	sub := &fakeSubmitter{}
	sess := &fakeSessions{key: "sk", store: store}
	tr := newTestTracker(store, sub, sess)

	track := testTrack("Song")
	tr.HandleSnapshot(context.Background(), playback.Snapshot{
		Track: &track, State: playback.StateLoading, Timestamp: time.Now(),
	})

	cand, err := store.GetCandidate()
	if err != nil || cand == nil {
		t.Fatal("track first seen while buffering did not open a candidate")
	}
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if len(sub.nowPlaying) != 0 {
		t.Error("now playing sent before playback actually started")
	}
}

func TestTrackerStopCarriesFinalPosition(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		store := state.NewMock()
		sub := &fakeSubmitter{}
		sess := &fakeSessions{key: "sk", store: store}
		tr := newTestTracker(store, sub, sess)
		ctx := context.Background()

		// 300s track, last poll at 265s, below the 270s grace threshold.
		track := playback.Track{Title: "Song", Artist: "Artist", Duration: 300 * time.Second}
		now := time.Now()
		tr.HandleSnapshot(ctx, playback.Snapshot{
			Track: &track, State: playback.StatePlaying, Timestamp: now,
		})
		tr.HandleSnapshot(ctx, playback.Snapshot{
			Track: &track, State: playback.StatePlaying,
			Position: 265 * time.Second, Timestamp: now.Add(265 * time.Second),
		})
		// The stop event carries the final position past the threshold.
		tr.HandleSnapshot(ctx, playback.Snapshot{
			Track: &track, State: playback.StateStopped,
			Position: 299 * time.Second, Timestamp: now.Add(299 * time.Second),
		})
		synctest.Wait()

		if got := sub.calls(); got != 1 {
			t.Errorf("scrobble calls = %d, want 1 with the stop position counted", got)
		}
	})
}

func TestTrackerStopWithResetPositionKeepsWatermark(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		store := state.NewMock()
		sub := &fakeSubmitter{}
		sess := &fakeSessions{key: "sk", store: store}
		tr := newTestTracker(store, sub, sess)
		ctx := context.Background()

		track := testTrack("Song") // 3 minutes
		now := time.Now()
		tr.HandleSnapshot(ctx, playback.Snapshot{
			Track: &track, State: playback.StatePlaying, Timestamp: now,
		})
		tr.HandleSnapshot(ctx, playback.Snapshot{
			Track: &track, State: playback.StatePlaying,
			Position: 170 * time.Second, Timestamp: now.Add(170 * time.Second),
		})
		// Some players zero the position on stop; credited time must survive.
		tr.HandleSnapshot(ctx, playback.Snapshot{
			Track: &track, State: playback.StateStopped,
			Position: 0, Timestamp: now.Add(171 * time.Second),
		})
		synctest.Wait()

		if got := sub.calls(); got != 1 {
			t.Errorf("scrobble calls = %d, want 1 despite position reset on stop", got)
		}
	})
}

func TestTrackerStopFinalizes(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		store := state.NewMock()
		sub := &fakeSubmitter{}
		sess := &fakeSessions{key: "sk", store: store}
		tr := newTestTracker(store, sub, sess)
		ctx := context.Background()

		track := testTrack("Song")
		now := time.Now()
		tr.HandleSnapshot(ctx, playback.Snapshot{
			Track: &track, State: playback.StatePlaying, Timestamp: now,
		})
		tr.HandleSnapshot(ctx, playback.Snapshot{
			Track: &track, State: playback.StatePlaying,
			Position: 170 * time.Second, Timestamp: now.Add(170 * time.Second),
		})
		tr.HandleSnapshot(ctx, playback.Snapshot{
			State: playback.StateStopped, Timestamp: now.Add(171 * time.Second),
		})
		synctest.Wait()

		if got := sub.calls(); got != 1 {
			t.Errorf("scrobble calls = %d, want 1 after stop", got)
		}
		if cand, _ := store.GetCandidate(); cand != nil {
			t.Error("candidate survived stop")
		}
	})
}
