package scrobble

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/llehouerou/wake/internal/lastfm"
	"github.com/llehouerou/wake/internal/playback"
	"github.com/llehouerou/wake/internal/state"
)

// TrackerParams configures a Tracker.
type TrackerParams struct {
	Store    state.Interface
	Policy   Policy
	Ledger   *Ledger
	Log      *Log
	Queue    *Queue
	Sessions SessionSource
	Submit   Submitter
	Logger   *slog.Logger
}

// Tracker observes playback snapshots and maintains the single in-flight
// play candidate. When a candidate ends it is checked against the policy and
// the dedup ledger, then handed to the delivery queue.
type Tracker struct {
	store    state.Interface
	policy   Policy
	ledger   *Ledger
	log      *Log
	queue    *Queue
	sessions SessionSource
	submit   Submitter
	logger   *slog.Logger

	now func() time.Time

	mu   sync.Mutex
	cand *state.Candidate
}

// NewTracker creates a tracker, restoring any candidate persisted by a
// previous run so an in-progress listen survives a restart.
func NewTracker(p TrackerParams) *Tracker {
	if p.Logger == nil {
		p.Logger = slog.New(slog.DiscardHandler)
	}
	t := &Tracker{
		store:    p.Store,
		policy:   p.Policy,
		ledger:   p.Ledger,
		log:      p.Log,
		queue:    p.Queue,
		sessions: p.Sessions,
		submit:   p.Submit,
		logger:   p.Logger,
		now:      time.Now,
	}
	cand, err := p.Store.GetCandidate()
	if err != nil {
		p.Logger.Warn("restore candidate", "err", err)
	} else if cand != nil {
		t.cand = cand
	}
	return t
}

// HandleSnapshot advances the candidate lifecycle with one playback
// observation.
func (t *Tracker) HandleSnapshot(ctx context.Context, snap playback.Snapshot) {
	if snap.Intent != nil && snap.Intent.UsePreview {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := snap.Timestamp
	if now.IsZero() {
		now = t.now()
	}

	switch {
	case snap.Track == nil:
		if t.cand != nil && !snap.State.IsActive() {
			t.finalizeLocked(ctx, "playback stopped")
		}

	case t.cand != nil && t.cand.Track.Same(*snap.Track):
		t.updateLocked(ctx, snap, now)

	default:
		if t.cand != nil {
			t.finalizeLocked(ctx, "track changed")
		}
		if snap.State.IsActive() {
			t.startLocked(ctx, snap, now)
		}
	}
}

// startLocked opens a new candidate. The session start is backdated by the
// observed position so joining mid-track does not inflate play time.
func (t *Tracker) startLocked(ctx context.Context, snap playback.Snapshot, now time.Time) {
	t.cand = &state.Candidate{
		Track:        *snap.Track,
		StartedAt:    now.Add(-snap.Position),
		LastPosition: snap.Position,
		UpdatedAt:    now,
	}
	t.maybeNowPlayingLocked(ctx, snap.State)
	t.persistLocked()
}

// updateLocked advances the position watermark. The watermark only moves
// forward: seeking backwards never reduces credited play time. The clamp
// runs before the stop check because the stop event usually carries the
// final position (and a stop that resets position to zero is harmless).
func (t *Tracker) updateLocked(ctx context.Context, snap playback.Snapshot, now time.Time) {
	if snap.Position > t.cand.LastPosition {
		t.cand.LastPosition = snap.Position
	}
	if !snap.State.IsActive() {
		t.finalizeLocked(ctx, "playback stopped")
		return
	}
	t.cand.UpdatedAt = now
	t.maybeNowPlayingLocked(ctx, snap.State)
	t.persistLocked()
}

// Finalize ends the current candidate, if any. Called on shutdown so a
// completed listen is not lost with the process.
func (t *Tracker) Finalize(ctx context.Context, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cand != nil {
		t.finalizeLocked(ctx, reason)
	}
}

// finalizeLocked closes the candidate and routes it through policy, ledger
// and queue.
func (t *Tracker) finalizeLocked(ctx context.Context, reason string) {
	cand := t.cand
	t.cand = nil
	if err := t.store.ClearCandidate(); err != nil {
		t.logger.Warn("clear candidate", "err", err)
	}

	if !t.policy.ShouldScrobble(cand.LastPosition, cand.Track.Duration) {
		t.logger.Debug("candidate below threshold",
			"track", cand.Track.Title, "played", cand.LastPosition, "reason", reason)
		t.log.Append(state.LogSkipped, cand.Track, "played too little")
		t.queue.Flush(ctx)
		return
	}

	key := t.ledger.Key(cand.Track, cand.StartedAt)
	dup, err := t.ledger.Contains(key)
	if err != nil {
		t.logger.Warn("ledger lookup", "err", err)
	}
	if dup {
		t.log.Append(state.LogSkipped, cand.Track, "already scrobbled")
		t.queue.Flush(ctx)
		return
	}

	if err := t.queue.Enqueue(ctx, cand.Track, cand.StartedAt); err != nil {
		t.logger.Error("enqueue scrobble", "track", cand.Track.Title, "err", err)
	}
}

// maybeNowPlayingLocked sends the now-playing notice once per candidate, only
// while actually playing and signed in. Delivery is fire-and-forget.
func (t *Tracker) maybeNowPlayingLocked(ctx context.Context, st playback.State) {
	if t.cand.NowPlayingSent || st != playback.StatePlaying {
		return
	}
	key := t.sessions.SessionKey()
	if key == "" {
		return
	}
	t.cand.NowPlayingSent = true
	track := t.cand.Track
	go func() {
		sub := lastfmSubmission(track)
		if err := t.submit.UpdateNowPlaying(ctx, key, sub); err != nil {
			t.logger.Debug("now playing update failed", "err", err)
		}
	}()
}

// persistLocked saves the candidate so it survives a restart. Failures
// degrade to in-memory tracking.
func (t *Tracker) persistLocked() {
	if err := t.store.SaveCandidate(*t.cand); err != nil {
		t.logger.Warn("persist candidate", "err", err)
	}
}

func lastfmSubmission(track playback.Track) lastfm.Submission {
	return lastfm.Submission{
		Artist:   track.Artist,
		Track:    track.Title,
		Album:    track.Album,
		Duration: track.Duration,
	}
}
