package scrobble

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/llehouerou/wake/internal/lastfm"
	"github.com/llehouerou/wake/internal/playback"
	"github.com/llehouerou/wake/internal/state"
)

// Submitter delivers now-playing and scrobble calls to the remote service.
// *lastfm.Client implements it.
type Submitter interface {
	UpdateNowPlaying(ctx context.Context, sessionKey string, sub lastfm.Submission) error
	Scrobble(ctx context.Context, sessionKey string, subs []lastfm.Submission) error
}

// SessionSource exposes the live auth session to delivery code. SessionKey
// must always return the current key, never a captured one, so that a
// sign-out mid-flight aborts in-flight work cleanly.
type SessionSource interface {
	SessionKey() string
	// ForceSignOut is called when the service reports the session invalid.
	ForceSignOut(reason string)
}

// QueueParams configures a Queue.
type QueueParams struct {
	Store     state.Interface
	Ledger    *Ledger
	Log       *Log
	Submitter Submitter
	Sessions  SessionSource
	Logger    *slog.Logger

	BaseDelay   time.Duration // initial retry delay (default 30s)
	MaxDelay    time.Duration // retry delay cap (default 15m)
	MaxAttempts int           // attempts before an item is dropped (default 10)
}

// Queue is the durable, retrying delivery queue: one item per play session
// awaiting confirmed remote delivery. Items survive restarts with their
// attempt counters intact.
type Queue struct {
	store     state.Interface
	ledger    *Ledger
	log       *Log
	submitter Submitter
	sessions  SessionSource
	logger    *slog.Logger

	baseDelay   time.Duration
	maxDelay    time.Duration
	maxAttempts int

	now func() time.Time

	mu       sync.Mutex
	flushing bool
}

// NewQueue creates a delivery queue.
func NewQueue(p QueueParams) *Queue {
	if p.BaseDelay <= 0 {
		p.BaseDelay = 30 * time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 15 * time.Minute
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 10
	}
	if p.Logger == nil {
		p.Logger = slog.New(slog.DiscardHandler)
	}
	return &Queue{
		store:       p.Store,
		ledger:      p.Ledger,
		log:         p.Log,
		submitter:   p.Submitter,
		sessions:    p.Sessions,
		logger:      p.Logger,
		baseDelay:   p.BaseDelay,
		maxDelay:    p.MaxDelay,
		maxAttempts: p.MaxAttempts,
		now:         time.Now,
	}
}

// Enqueue persists a delivery task for a finalized session and attempts
// delivery inline.
func (q *Queue) Enqueue(ctx context.Context, track playback.Track, startedAt time.Time) error {
	p := state.PendingScrobble{
		ID:        uuid.NewString(),
		Track:     track,
		StartedAt: startedAt,
		CreatedAt: q.now(),
	}
	if err := q.store.AddPendingScrobble(p); err != nil {
		return fmt.Errorf("persist pending scrobble: %w", err)
	}
	q.log.Append(state.LogPending, track, "queued for delivery")
	q.Flush(ctx)
	return nil
}

// Flush attempts delivery of every item currently eligible for retry.
// Overlapping calls are no-ops while one flush is in progress.
func (q *Queue) Flush(ctx context.Context) {
	q.mu.Lock()
	if q.flushing {
		q.mu.Unlock()
		return
	}
	q.flushing = true
	q.mu.Unlock()
	defer func() {
		q.mu.Lock()
		q.flushing = false
		q.mu.Unlock()
	}()

	for {
		delivered, err := q.flushBatch(ctx)
		if err != nil || !delivered {
			return
		}
	}
}

// flushBatch submits one batch of eligible items. It returns true when a
// batch was delivered successfully and more work may remain.
func (q *Queue) flushBatch(ctx context.Context) (bool, error) {
	sessionKey := q.sessions.SessionKey()
	if sessionKey == "" {
		return false, nil
	}

	pending, err := q.store.GetPendingScrobbles()
	if err != nil {
		q.logger.Error("load pending scrobbles", "err", err)
		return false, err
	}

	now := q.now()
	var batch []state.PendingScrobble
	for _, p := range pending {
		if !q.eligible(p, now) {
			continue
		}
		batch = append(batch, p)
		if len(batch) == lastfm.BatchLimit {
			break
		}
	}
	if len(batch) == 0 {
		return false, nil
	}

	subs := make([]lastfm.Submission, len(batch))
	for i, p := range batch {
		subs[i] = submission(p)
	}

	err = q.submitter.Scrobble(ctx, sessionKey, subs)

	// A sign-out that happened while the call was in flight wins: commit no
	// side effects against a session that is no longer current.
	if q.sessions.SessionKey() != sessionKey {
		return false, nil
	}

	switch {
	case err == nil:
		at := q.now()
		for _, p := range batch {
			key := q.ledger.Key(p.Track, p.StartedAt)
			if lerr := q.ledger.Record(key, at); lerr != nil {
				q.logger.Warn("record ledger entry", "err", lerr)
			}
			if derr := q.store.DeletePendingScrobble(p.ID); derr != nil {
				q.logger.Warn("remove delivered scrobble", "err", derr)
			}
			q.log.Append(state.LogScrobbled, p.Track, "")
		}
		q.logger.Info("delivered scrobbles", "count", len(batch))
		return len(pending) > len(batch), nil

	case lastfm.IsAuthError(err):
		q.logger.Warn("session rejected by service", "err", err)
		for _, p := range batch {
			q.log.Append(state.LogFailed, p.Track, err.Error())
		}
		// Clears the session and the remaining queue.
		q.sessions.ForceSignOut(err.Error())
		return false, err

	case lastfm.IsRetryable(err):
		q.logger.Info("delivery failed, will retry", "err", err, "count", len(batch))
		at := q.now()
		for _, p := range batch {
			if merr := q.store.MarkPendingAttempt(p.ID, at); merr != nil {
				q.logger.Warn("mark delivery attempt", "err", merr)
			}
			if p.Attempts+1 >= q.maxAttempts {
				_ = q.store.DeletePendingScrobble(p.ID)
				q.log.Append(state.LogFailed, p.Track, fmt.Sprintf("gave up after %d attempts", p.Attempts+1))
			} else {
				q.log.Append(state.LogPending, p.Track, err.Error())
			}
		}
		return false, err

	default:
		q.logger.Warn("delivery failed permanently", "err", err, "count", len(batch))
		for _, p := range batch {
			_ = q.store.DeletePendingScrobble(p.ID)
			q.log.Append(state.LogFailed, p.Track, err.Error())
		}
		return false, err
	}
}

// eligible applies the exponential backoff schedule. Items never attempted
// are always eligible.
func (q *Queue) eligible(p state.PendingScrobble, now time.Time) bool {
	if p.LastAttemptAt.IsZero() {
		return true
	}
	return now.Sub(p.LastAttemptAt) >= q.retryDelay(p.Attempts)
}

// retryDelay returns min(baseDelay * 2^attempts, maxDelay).
func (q *Queue) retryDelay(attempts int) time.Duration {
	d := q.baseDelay
	for i := 0; i < attempts && d < q.maxDelay; i++ {
		d *= 2
	}
	return min(d, q.maxDelay)
}

func submission(p state.PendingScrobble) lastfm.Submission {
	return lastfm.Submission{
		Artist:    p.Track.Artist,
		Track:     p.Track.Title,
		Album:     p.Track.Album,
		Duration:  p.Track.Duration,
		Timestamp: p.StartedAt,
	}
}
