// Package profile resolves the signed-in user's profile, degrading to locally
// known data when the backend cannot be reached.
package profile

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-chat/internal/errs"
	"github.com/zhouzirui/z-chat/internal/model/user"
)

// ErrReauthenticate means the backend rejected the token; the session has been
// wiped and the user must sign in again.
var ErrReauthenticate = errors.New("session expired: please sign in again")

// Fetcher loads the profile behind a token.
type Fetcher interface {
	Me(ctx context.Context, token string) (user.Profile, error)
}

// Sessions exposes the active session and lets the resolver drop it.
type Sessions interface {
	Current() (user.Session, bool)
	Invalidate(ctx context.Context, reason string)
}

// State mirrors what the view renders: {user, loading, error}.
type State struct {
	User    *user.Profile
	Loading bool
	Err     error
}

// Resolver is safe for concurrent use.
type Resolver struct {
	mu    sync.RWMutex
	state State

	fetcher  Fetcher
	sessions Sessions
	logger   *zap.Logger
	now      func() time.Time
}

// NewResolver creates a Resolver. Call Resolve to populate it.
func NewResolver(fetcher Fetcher, sessions Sessions, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		fetcher:  fetcher,
		sessions: sessions,
		logger:   logger.Named("profile"),
		now:      time.Now,
	}
}

// State returns a snapshot.
func (r *Resolver) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := r.state
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}

// Refetch re-runs resolution, e.g. after login.
func (r *Resolver) Refetch(ctx context.Context) (*user.Profile, error) {
	return r.Resolve(ctx)
}

// Resolve fetches the profile. Only ErrReauthenticate is returned as an error;
// any other failure yields a degraded profile.
func (r *Resolver) Resolve(ctx context.Context) (*user.Profile, error) {
	r.mu.Lock()
	r.state.Loading = true
	r.state.Err = nil
	r.mu.Unlock()

	p, err := r.resolve(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = State{User: p, Err: err}
	if p == nil {
		return nil, err
	}
	out := *p
	return &out, err
}

func (r *Resolver) resolve(ctx context.Context) (*user.Profile, error) {
	sess, ok := r.sessions.Current()
	if !ok || sess.Token == "" {
		return nil, nil
	}

	p, err := r.fetcher.Me(ctx, sess.Token)
	if err == nil {
		return &p, nil
	}

	if errs.StatusOf(err) == http.StatusUnauthorized {
		r.logger.Info("token rejected by profile endpoint")
		r.sessions.Invalidate(ctx, "profile endpoint returned 401")
		return nil, ErrReauthenticate
	}

	r.logger.Warn("profile fetch failed, using fallback", zap.Error(err))
	fallback := r.fallback(sess)
	return &fallback, nil
}

// fallback builds a profile from the cached session, then from the token's
// claims, then a placeholder.
func (r *Resolver) fallback(sess user.Session) user.Profile {
	now := r.now().UTC()

	if sess.ID != "" && sess.Username != "" {
		return user.Profile{
			ID:         string(sess.ID),
			Username:   sess.Username,
			Email:      sess.Email,
			CreatedAt:  now,
			ModifiedAt: now,
		}
	}

	p, err := profileFromToken(sess.Token, now)
	if err == nil {
		return p
	}
	r.logger.Debug("token payload unreadable", zap.Error(err))

	return Placeholder(now)
}

// Placeholder is the profile shown when nothing else is known.
func Placeholder(now time.Time) user.Profile {
	return user.Profile{ID: "unknown", Username: "user", Email: "", CreatedAt: now, ModifiedAt: now}
}

// profileFromToken decodes the JWT payload without verifying its signature.
func profileFromToken(token string, now time.Time) (user.Profile, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		// Only the payload matters here; a malformed header is tolerated.
		claims = jwt.MapClaims{}
		if perr := decodePayload(token, claims); perr != nil {
			return user.Profile{}, fmt.Errorf("parse token: %w", errors.Join(err, perr))
		}
	}

	p := user.Profile{ID: "unknown", Username: "user", CreatedAt: now, ModifiedAt: now}
	if sub, ok := claims["sub"]; ok && sub != nil {
		if s := fmt.Sprint(sub); s != "" {
			p.ID = s
		}
	}
	if email, ok := claims["email"].(string); ok {
		p.Email = email
	}
	if name, ok := claims["username"].(string); ok && name != "" {
		p.Username = name
	} else if local, _, found := strings.Cut(p.Email, "@"); found && local != "" {
		p.Username = local
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		p.CreatedAt = iat.UTC()
	}
	return p, nil
}

// decodePayload reads the second dot-separated segment as base64url JSON.
func decodePayload(token string, claims jwt.MapClaims) error {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return errors.New("token has no payload segment")
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if err := json.Unmarshal(raw, &claims); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
