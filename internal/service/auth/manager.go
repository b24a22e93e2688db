// Package auth owns the signed-in session: login, registration, logout and
// startup hydration from the local session store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/zhouzirui/z-chat/internal/errs"
	"github.com/zhouzirui/z-chat/internal/model/user"
	sessionstore "github.com/zhouzirui/z-chat/internal/store/session"
)

// Backend is the subset of the API client the manager needs.
type Backend interface {
	Login(ctx context.Context, req user.LoginRequest) (user.Session, error)
	Register(ctx context.Context, req user.RegisterRequest) (user.Session, error)
	Logout(ctx context.Context, token string) error
}

// Store persists the session between runs.
type Store interface {
	Load(ctx context.Context) (user.Session, bool, error)
	Save(ctx context.Context, sess user.Session) error
	Clear(ctx context.Context) error
}

// Manager holds the current session. It is safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	current *user.Session

	backend Backend
	store   Store
	logger  *zap.Logger

	// pending tracks background logout notifications.
	pending sync.WaitGroup
}

// New builds a Manager and hydrates it from store. A malformed or tokenless
// record counts as no session and is deleted.
func New(ctx context.Context, backend Backend, store Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{backend: backend, store: store, logger: logger.Named("auth")}
	m.hydrate(ctx)
	return m
}

func (m *Manager) hydrate(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok, err := m.store.Load(ctx)
	switch {
	case errors.Is(err, sessionstore.ErrMalformed):
		m.logger.Warn("discarding malformed stored session", zap.Error(err))
		m.clearStoreLocked(ctx)
		return
	case err != nil:
		m.logger.Warn("failed to read stored session", zap.Error(err))
		return
	case !ok:
		return
	case !sess.Authenticated():
		m.logger.Warn("discarding stored session without token")
		m.clearStoreLocked(ctx)
		return
	}

	m.current = &sess
	m.logger.Debug("session hydrated", zap.String("username", sess.Username))
}

// Current returns a copy of the active session.
func (m *Manager) Current() (user.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return user.Session{}, false
	}
	return *m.current, true
}

// IsAuthenticated reports whether the active session carries a token.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Authenticated()
}

// Token returns the bearer token, or "" when signed out.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return ""
	}
	return m.current.Token
}

// Login authenticates with a username or email.
func (m *Manager) Login(ctx context.Context, identifier, password string) (user.Session, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return user.Session{}, errs.Validation("Please enter both username/email and password")
	}

	sess, err := m.backend.Login(ctx, user.LoginRequest{Login: identifier, Password: password})
	if err != nil {
		return user.Session{}, err
	}
	if !sess.Authenticated() {
		return user.Session{}, errs.Auth("missing token")
	}

	m.activate(ctx, sess)
	m.logger.Info("signed in", zap.String("username", sess.Username))
	return sess, nil
}

// Register creates an account and signs in. When the register response has no
// token, a login with the same credentials follows; nothing tokenless is
// ever stored.
func (m *Manager) Register(ctx context.Context, username, email, password string) (user.Session, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return user.Session{}, errs.Validation("Please fill in username, email and password")
	}

	sess, err := m.backend.Register(ctx, user.RegisterRequest{Username: username, Email: email, Password: password})
	if err != nil {
		return user.Session{}, err
	}

	if !sess.Authenticated() {
		m.logger.Debug("register response carried no token, signing in", zap.String("username", username))
		sess, err = m.Login(ctx, username, password)
		if err != nil {
			return user.Session{}, fmt.Errorf("account created but sign-in failed: %w", err)
		}
		return sess, nil
	}

	m.activate(ctx, sess)
	m.logger.Info("registered", zap.String("username", sess.Username))
	return sess, nil
}

func (m *Manager) activate(ctx context.Context, sess user.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = &sess
	if err := m.store.Save(ctx, sess); err != nil {
		// The session still works for this run.
		m.logger.Warn("failed to persist session", zap.Error(err))
	}
}

// Logout clears the session locally right away, then tells the backend in the
// background. The notification is fire-and-forget: failures are logged and
// never returned. Call Wait to drain it before exit.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	var token string
	if m.current != nil {
		token = m.current.Token
	}
	m.current = nil
	m.clearStoreLocked(ctx)
	m.mu.Unlock()

	if token == "" {
		return
	}

	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		if err := m.backend.Logout(context.WithoutCancel(ctx), token); err != nil {
			m.logger.Warn("logout notification failed", zap.Error(err))
			return
		}
		m.logger.Debug("logout notification delivered")
	}()
}

// Invalidate drops the session after the backend rejected its token. The
// backend is not notified.
func (m *Manager) Invalidate(ctx context.Context, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = nil
	m.clearStoreLocked(ctx)
	m.logger.Info("session invalidated", zap.String("reason", reason))
}

// Wait blocks until background logout notifications finish.
func (m *Manager) Wait() {
	m.pending.Wait()
}

func (m *Manager) clearStoreLocked(ctx context.Context) {
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Warn("failed to clear stored session", zap.Error(err))
	}
}
