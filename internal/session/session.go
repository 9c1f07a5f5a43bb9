// Package session owns the authentication lifecycle: it keeps the in-memory
// session, restores persisted tokens, performs logins (following at most one
// regional redirect) and recovers from upstream 401s. All state transitions
// go through the Manager; callers only ever see an AuthContext.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/glucolink/internal/common"
	"github.com/dmitrijs2005/glucolink/internal/config"
	"github.com/dmitrijs2005/glucolink/internal/linkup"
	"github.com/dmitrijs2005/glucolink/internal/logging"
	"github.com/dmitrijs2005/glucolink/internal/storage"
	"golang.org/x/sync/singleflight"
)

// safetyMargin is how long before the recorded expiry a token is already
// treated as invalid, so a request never departs with a token about to die
// in flight.
const safetyMargin = 5 * time.Minute

// Session is the in-memory authenticated state. It never leaves this package;
// callers receive an AuthContext derived from it.
type Session struct {
	Token     string
	UserID    string
	AccountID string
	ExpiresAt time.Time
	Region    string
	BaseURL   string
}

func (s *Session) authContext() linkup.AuthContext {
	return linkup.AuthContext{Token: s.Token, AccountID: s.AccountID, BaseURL: s.BaseURL}
}

// Status is a point-in-time view of the session, served from memory only.
type Status struct {
	Authenticated bool
	TokenValid    bool
	ExpiresAt     time.Time
}

// Authenticator is what the manager needs from the upstream API client.
type Authenticator interface {
	Login(ctx context.Context, baseURL, email string, password []byte) (*linkup.LoginResult, error)
}

// Manager hands out valid authentication contexts, logging in as needed.
//
// Contract:
//   - EnsureAuthenticated: fast path on a valid in-memory session, else
//     restore from the token store, else a full login. Concurrent callers
//     share one login.
//   - OnUnauthorized: called after an upstream 401; discards the rejected
//     session and logs in once. The caller retries its original call exactly
//     once (see Authed).
//   - ClearSession: forgets the in-memory session and deletes the stored
//     token. Credentials are untouched.
//   - Status: in-memory read, performs no I/O.
type Manager interface {
	EnsureAuthenticated(ctx context.Context) (linkup.AuthContext, error)
	OnUnauthorized(ctx context.Context) (linkup.AuthContext, error)
	ClearSession(ctx context.Context) error
	Status() Status
}

type manager struct {
	cfg    *config.Config
	creds  storage.CredentialStore
	tokens storage.TokenStore
	api    Authenticator
	logger logging.Logger

	// now is the clock; swappable in tests.
	now func() time.Time

	mu      sync.RWMutex
	current *Session

	group singleflight.Group
}

func NewManager(cfg *config.Config, creds storage.CredentialStore, tokens storage.TokenStore, api Authenticator, logger logging.Logger) Manager {
	return &manager{
		cfg:    cfg,
		creds:  creds,
		tokens: tokens,
		api:    api,
		logger: logger,
		now:    time.Now,
	}
}

func (m *manager) EnsureAuthenticated(ctx context.Context) (linkup.AuthContext, error) {
	if auth, ok := m.validAuth(); ok {
		return auth, nil
	}

	v, err, _ := m.group.Do("auth", func() (any, error) {
		// A caller that queued behind a finished flight may find a fresh
		// session already adopted.
		if auth, ok := m.validAuth(); ok {
			return auth, nil
		}
		if auth, ok := m.restore(ctx); ok {
			return auth, nil
		}
		return m.login(ctx)
	})
	if err != nil {
		return linkup.AuthContext{}, err
	}
	return v.(linkup.AuthContext), nil
}

// validAuth returns the in-memory auth context when the session still has
// more than the safety margin left.
func (m *manager) validAuth() (linkup.AuthContext, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return linkup.AuthContext{}, false
	}
	if !m.now().Before(m.current.ExpiresAt.Add(-safetyMargin)) {
		return linkup.AuthContext{}, false
	}
	return m.current.authContext(), true
}

// restore adopts the persisted token bundle when it is still usable: the
// region must match the configuration, the expiry must clear the safety
// margin and the store must have verified the account id. Anything else
// deletes the stale bundle so the next step is a clean login.
func (m *manager) restore(ctx context.Context) (linkup.AuthContext, bool) {
	bundle, err := m.tokens.Load(ctx)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			// Unlike credentials, a token is re-obtainable: discard and
			// let the login path heal the store.
			m.logger.Warn(ctx, "stored token unusable, discarding", "error", err)
			_ = m.tokens.Clear(ctx)
		}
		return linkup.AuthContext{}, false
	}

	if bundle.Region != m.cfg.Region {
		m.logger.Warn(ctx, "stored token belongs to another region, discarding",
			"stored", bundle.Region, "configured", m.cfg.Region)
		_ = m.tokens.Clear(ctx)
		return linkup.AuthContext{}, false
	}

	if !m.now().Before(bundle.Expires.Add(-safetyMargin)) {
		m.logger.Debug(ctx, "stored token expired or inside safety margin, discarding")
		_ = m.tokens.Clear(ctx)
		return linkup.AuthContext{}, false
	}

	sess := &Session{
		Token:     bundle.Token,
		UserID:    bundle.UserID,
		AccountID: bundle.AccountID,
		ExpiresAt: bundle.Expires,
		Region:    bundle.Region,
		BaseURL:   linkup.EndpointFor(bundle.Region),
	}
	m.adopt(sess)
	m.logger.Info(ctx, "session restored", "expires", bundle.Expires, "region", bundle.Region)
	return sess.authContext(), true
}

func (m *manager) OnUnauthorized(ctx context.Context) (linkup.AuthContext, error) {
	v, err, _ := m.group.Do("reauth", func() (any, error) {
		m.logger.Warn(ctx, "upstream rejected session token, re-authenticating")
		m.drop()
		_ = m.tokens.Clear(ctx)
		return m.login(ctx)
	})
	if err != nil {
		return linkup.AuthContext{}, err
	}
	return v.(linkup.AuthContext), nil
}

func (m *manager) ClearSession(ctx context.Context) error {
	m.drop()
	if err := m.tokens.Clear(ctx); err != nil {
		return err
	}
	m.logger.Info(ctx, "session cleared")
	return nil
}

func (m *manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return Status{}
	}
	return Status{
		Authenticated: true,
		TokenValid:    m.now().Before(m.current.ExpiresAt.Add(-safetyMargin)),
		ExpiresAt:     m.current.ExpiresAt,
	}
}

func (m *manager) adopt(s *Session) {
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
}

func (m *manager) drop() {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
}
