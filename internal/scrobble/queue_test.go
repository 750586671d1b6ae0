package scrobble

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/llehouerou/wake/internal/lastfm"
	"github.com/llehouerou/wake/internal/playback"
	"github.com/llehouerou/wake/internal/state"
)

type fakeSubmitter struct {
	mu         sync.Mutex
	scrobbles  [][]lastfm.Submission
	nowPlaying []lastfm.Submission
	err        error
	onScrobble func()
}

func (f *fakeSubmitter) UpdateNowPlaying(_ context.Context, _ string, sub lastfm.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nowPlaying = append(f.nowPlaying, sub)
	return f.err
}

func (f *fakeSubmitter) Scrobble(_ context.Context, _ string, subs []lastfm.Submission) error {
	f.mu.Lock()
	f.scrobbles = append(f.scrobbles, subs)
	cb := f.onScrobble
	err := f.err
	f.mu.Unlock()
	if cb != nil {
		cb()
	}
	return err
}

func (f *fakeSubmitter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.scrobbles)
}

type fakeSessions struct {
	mu      sync.Mutex
	key     string
	store   *state.Mock
	reasons []string
}

func (f *fakeSessions) SessionKey() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.key
}

func (f *fakeSessions) ForceSignOut(reason string) {
	f.mu.Lock()
	f.key = ""
	f.reasons = append(f.reasons, reason)
	f.mu.Unlock()
	if f.store != nil {
		_ = f.store.ClearSessionData()
	}
}

func newTestQueue(store *state.Mock, sub *fakeSubmitter, sess *fakeSessions) *Queue {
	ledger := NewLedger(store, 30*24*time.Hour)
	return NewQueue(QueueParams{
		Store:     store,
		Ledger:    ledger,
		Log:       NewLog(store, 50),
		Submitter: sub,
		Sessions:  sess,
	})
}

func testTrack(title string) playback.Track {
	return playback.Track{Title: title, Artist: "Artist", Duration: 3 * time.Minute}
}

func TestQueueEnqueueDelivers(t *testing.T) {
	store := state.NewMock()
	sub := &fakeSubmitter{}
	sess := &fakeSessions{key: "sk", store: store}
	q := newTestQueue(store, sub, sess)

	if err := q.Enqueue(context.Background(), testTrack("Song"), time.Unix(1700000000, 0)); err != nil {
		t.Fatal(err)
	}

	if got := store.PendingCount(); got != 0 {
		t.Errorf("pending after delivery = %d, want 0", got)
	}
	if got := store.LedgerCount(); got != 1 {
		t.Errorf("ledger entries = %d, want 1", got)
	}
	if got := sub.calls(); got != 1 {
		t.Errorf("scrobble calls = %d, want 1", got)
	}
}

func TestQueueFlush_NotSignedIn(t *testing.T) {
	store := state.NewMock()
	sub := &fakeSubmitter{}
	sess := &fakeSessions{store: store}
	q := newTestQueue(store, sub, sess)

	if err := q.Enqueue(context.Background(), testTrack("Song"), time.Now()); err != nil {
		t.Fatal(err)
	}

	if got := sub.calls(); got != 0 {
		t.Errorf("scrobble calls = %d, want 0 when signed out", got)
	}
	if got := store.PendingCount(); got != 1 {
		t.Errorf("pending = %d, want 1 retained for later", got)
	}
}

func TestQueueFlush_RetryableErrorBacksOff(t *testing.T) {
	store := state.NewMock()
	sub := &fakeSubmitter{err: &lastfm.HTTPError{Status: 503}}
	sess := &fakeSessions{key: "sk", store: store}
	q := newTestQueue(store, sub, sess)

	now := time.Unix(1700000000, 0)
	q.now = func() time.Time { return now }

	if err := q.Enqueue(context.Background(), testTrack("Song"), now); err != nil {
		t.Fatal(err)
	}

	if got := store.PendingCount(); got != 1 {
		t.Fatalf("pending = %d, want 1 after retryable failure", got)
	}
	pending, _ := store.GetPendingScrobbles()
	if pending[0].Attempts != 1 {
		t.Errorf("attempts = %d, want 1", pending[0].Attempts)
	}

	// Within the backoff window: no new attempt.
	now = now.Add(10 * time.Second)
	q.Flush(context.Background())
	if got := sub.calls(); got != 1 {
		t.Errorf("scrobble calls = %d, want 1 inside backoff window", got)
	}

	// Past the window: retried and (still failing) counted again.
	now = now.Add(30 * time.Second)
	q.Flush(context.Background())
	if got := sub.calls(); got != 2 {
		t.Errorf("scrobble calls = %d, want 2 after backoff elapsed", got)
	}
	pending, _ = store.GetPendingScrobbles()
	if pending[0].Attempts != 2 {
		t.Errorf("attempts = %d, want 2", pending[0].Attempts)
	}
}

func TestQueueRetryDelay(t *testing.T) {
	q := newTestQueue(state.NewMock(), &fakeSubmitter{}, &fakeSessions{})

	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, 30 * time.Second},
		{1, time.Minute},
		{2, 2 * time.Minute},
		{4, 8 * time.Minute},
		{5, 15 * time.Minute},
		{20, 15 * time.Minute},
	}
	for _, tt := range tests {
		if got := q.retryDelay(tt.attempts); got != tt.want {
			t.Errorf("retryDelay(%d) = %v, want %v", tt.attempts, got, tt.want)
		}
	}
}

func TestQueueFlush_AuthErrorForcesSignOut(t *testing.T) {
	store := state.NewMock()
	sub := &fakeSubmitter{err: &lastfm.APIError{Code: 9, Message: "Invalid session key"}}
	sess := &fakeSessions{key: "sk", store: store}
	q := newTestQueue(store, sub, sess)

	if err := q.Enqueue(context.Background(), testTrack("Song"), time.Now()); err != nil {
		t.Fatal(err)
	}

	if len(sess.reasons) != 1 {
		t.Fatalf("forced sign-outs = %d, want 1", len(sess.reasons))
	}
	if sess.SessionKey() != "" {
		t.Error("session key survived forced sign-out")
	}
	if got := store.PendingCount(); got != 0 {
		t.Errorf("pending = %d, want 0 after sign-out cleared the queue", got)
	}
}

func TestQueueFlush_NonRetryableErrorDrops(t *testing.T) {
	store := state.NewMock()
	sub := &fakeSubmitter{err: &lastfm.APIError{Code: 6, Message: "Invalid parameters"}}
	sess := &fakeSessions{key: "sk", store: store}
	q := newTestQueue(store, sub, sess)

	if err := q.Enqueue(context.Background(), testTrack("Song"), time.Now()); err != nil {
		t.Fatal(err)
	}

	if got := store.PendingCount(); got != 0 {
		t.Errorf("pending = %d, want 0 after permanent failure", got)
	}
	if got := store.LedgerCount(); got != 0 {
		t.Errorf("ledger entries = %d, want 0 for failed delivery", got)
	}
}

func TestQueueFlush_MaxAttemptsDrops(t *testing.T) {
	store := state.NewMock()
	sub := &fakeSubmitter{err: &lastfm.HTTPError{Status: 500}}
	sess := &fakeSessions{key: "sk", store: store}

	ledger := NewLedger(store, time.Hour)
	q := NewQueue(QueueParams{
		Store:       store,
		Ledger:      ledger,
		Log:         NewLog(store, 50),
		Submitter:   sub,
		Sessions:    sess,
		MaxAttempts: 3,
	})

	if err := store.AddPendingScrobble(state.PendingScrobble{
		ID:        "p1",
		Track:     testTrack("Song"),
		StartedAt: time.Now(),
		Attempts:  2,
	}); err != nil {
		t.Fatal(err)
	}

	q.Flush(context.Background())

	if got := store.PendingCount(); got != 0 {
		t.Errorf("pending = %d, want 0 after attempt cap", got)
	}
}

func TestQueueFlush_SessionChangeMidFlightAbortsCommit(t *testing.T) {
	store := state.NewMock()
	sess := &fakeSessions{key: "sk", store: store}
	sub := &fakeSubmitter{}
	sub.onScrobble = func() {
		// Sign-out lands while the request is in flight.
		sess.mu.Lock()
		sess.key = "other"
		sess.mu.Unlock()
	}
	q := newTestQueue(store, sub, sess)

	if err := store.AddPendingScrobble(state.PendingScrobble{
		ID:        "p1",
		Track:     testTrack("Song"),
		StartedAt: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}

	q.Flush(context.Background())

	if got := store.LedgerCount(); got != 0 {
		t.Errorf("ledger entries = %d, want 0 when session changed mid-flight", got)
	}
	if got := store.PendingCount(); got != 1 {
		t.Errorf("pending = %d, want 1 when session changed mid-flight", got)
	}
}

func TestQueueFlush_ReentrantFlushIsNoOp(t *testing.T) {
	store := state.NewMock()
	sess := &fakeSessions{key: "sk", store: store}
	sub := &fakeSubmitter{}
	var q *Queue
	sub.onScrobble = func() {
		// A flush triggered during delivery must return immediately.
		q.Flush(context.Background())
	}
	q = newTestQueue(store, sub, sess)

	if err := q.Enqueue(context.Background(), testTrack("Song"), time.Now()); err != nil {
		t.Fatal(err)
	}

	if got := sub.calls(); got != 1 {
		t.Errorf("scrobble calls = %d, want 1", got)
	}
}
