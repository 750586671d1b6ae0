// Package session manages the Last.fm account link: the browser sign-in
// flow, the persisted session key, and forced sign-out when the service
// rejects the session.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/llehouerou/wake/internal/lastfm"
	"github.com/llehouerou/wake/internal/state"
)

// State is the auth lifecycle phase.
type State int

const (
	SignedOut State = iota
	Authorizing
	Exchanging
	SignedIn
)

func (s State) String() string {
	switch s {
	case SignedOut:
		return "signed out"
	case Authorizing:
		return "authorizing"
	case Exchanging:
		return "exchanging"
	case SignedIn:
		return "signed in"
	default:
		return "unknown"
	}
}

// ErrSignInInProgress is returned when SignIn is called while a previous
// sign-in has not finished.
var ErrSignInInProgress = errors.New("sign-in already in progress")

// Authorizer obtains user approval for a sign-in token.
type Authorizer interface {
	// CallbackURL returns the redirect target to embed in the authorization
	// URL, or "" when the flow has no redirect.
	CallbackURL() string
	// Authorize directs the user to authURL and blocks until the user
	// approves or ctx ends. It returns the token delivered on the redirect,
	// or "" when the flow completes without one.
	Authorize(ctx context.Context, authURL string) (string, error)
}

// Manager owns the session state machine. All methods are safe for
// concurrent use.
type Manager struct {
	store  state.Interface
	client *lastfm.Client
	auth   Authorizer
	logger *slog.Logger

	mu       sync.Mutex
	st       State
	username string
	key      string
	lastErr  error
}

// NewManager creates a manager, restoring a persisted session if one exists.
func NewManager(store state.Interface, client *lastfm.Client, auth Authorizer, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m := &Manager{store: store, client: client, auth: auth, logger: logger}
	sess, err := store.GetSession()
	if err != nil {
		logger.Warn("restore session", "err", err)
	} else if sess != nil {
		m.st = SignedIn
		m.username = sess.Username
		m.key = sess.SessionKey
	}
	return m
}

// State returns the current lifecycle phase.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st
}

// Username returns the linked account name, or "" when signed out.
func (m *Manager) Username() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.username
}

// SessionKey returns the current session key, or "" when signed out.
func (m *Manager) SessionKey() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.key
}

// LastError returns the error from the most recent failed sign-in or forced
// sign-out, cleared by a successful sign-in.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// SignIn runs the full authorization flow: fetch a token, send the user to
// the approval page, then exchange the approved token for a session key.
// It is a no-op error when a sign-in is already running or a session exists.
func (m *Manager) SignIn(ctx context.Context) error {
	m.mu.Lock()
	if m.st != SignedOut {
		st := m.st
		m.mu.Unlock()
		if st == SignedIn {
			return nil
		}
		return ErrSignInInProgress
	}
	m.st = Authorizing
	m.mu.Unlock()

	token, err := m.client.GetToken(ctx)
	if err != nil {
		return m.fail(fmt.Errorf("request token: %w", err))
	}

	authURL := m.client.AuthURL(token, m.auth.CallbackURL())
	callbackToken, err := m.auth.Authorize(ctx, authURL)
	if err != nil {
		return m.fail(fmt.Errorf("authorize: %w", err))
	}
	if callbackToken != "" {
		token = callbackToken
	}

	m.mu.Lock()
	m.st = Exchanging
	m.mu.Unlock()

	sess, err := m.client.GetSession(ctx, token)
	if err != nil {
		return m.fail(fmt.Errorf("exchange token: %w", err))
	}

	if err := m.store.SaveSession(sess.Name, sess.Key); err != nil {
		return m.fail(fmt.Errorf("persist session: %w", err))
	}

	m.mu.Lock()
	m.st = SignedIn
	m.username = sess.Name
	m.key = sess.Key
	m.lastErr = nil
	m.mu.Unlock()

	m.logger.Info("signed in", "username", sess.Name)
	return nil
}

// SignOut removes the session together with the pending queue and the dedup
// ledger, so a later sign-in starts clean. Legal in any state; signing out
// while already signed out is a no-op.
func (m *Manager) SignOut() error {
	m.mu.Lock()
	m.st = SignedOut
	m.username = ""
	m.key = ""
	m.lastErr = nil
	m.mu.Unlock()

	if err := m.store.ClearSessionData(); err != nil {
		return fmt.Errorf("clear session data: %w", err)
	}
	m.logger.Info("signed out")
	return nil
}

// ForceSignOut is invoked when the service reports the session invalid. It
// signs out and records the reason.
func (m *Manager) ForceSignOut(reason string) {
	if err := m.SignOut(); err != nil {
		m.logger.Error("forced sign-out", "err", err)
	}
	m.mu.Lock()
	m.lastErr = errors.New(reason)
	m.mu.Unlock()
	m.logger.Warn("session invalidated by service", "reason", reason)
}

func (m *Manager) fail(err error) error {
	m.mu.Lock()
	m.st = SignedOut
	m.lastErr = err
	m.mu.Unlock()
	return err
}
