package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/zhouzirui/z-chat/internal/errs"
	"github.com/zhouzirui/z-chat/internal/model/user"
)

// ErrMissingToken is returned when a login succeeds without a token.
var ErrMissingToken = errs.Auth("missing token")

// Login posts credentials and returns the authenticated session.
func (c *Client) Login(ctx context.Context, req user.LoginRequest) (user.Session, error) {
	resp, err := c.do(ctx, http.MethodPost, PathLogin, "", req)
	if err != nil {
		return user.Session{}, err
	}
	if !resp.ok() {
		return user.Session{}, errs.AuthStatus(resp.status, errorMessage(resp.body, "Login failed"))
	}

	session, err := normalizeAuth(resp.body)
	if err != nil {
		return user.Session{}, errs.Protocol(resp.status, fmt.Sprintf("invalid login response: %v", err))
	}
	if session.Token == "" {
		return user.Session{}, ErrMissingToken
	}
	return session, nil
}

// Register creates an account. The returned session may carry no token.
func (c *Client) Register(ctx context.Context, req user.RegisterRequest) (user.Session, error) {
	resp, err := c.do(ctx, http.MethodPost, PathRegister, "", req)
	if err != nil {
		return user.Session{}, err
	}
	if !resp.ok() {
		return user.Session{}, errs.AuthStatus(resp.status, errorMessage(resp.body, "Registration failed"))
	}

	session, err := normalizeAuth(resp.body)
	if err != nil {
		return user.Session{}, errs.Protocol(resp.status, fmt.Sprintf("invalid register response: %v", err))
	}
	return session, nil
}

// Logout notifies the backend that token is no longer in use.
func (c *Client) Logout(ctx context.Context, token string) error {
	resp, err := c.do(ctx, http.MethodPost, PathLogout, token, nil)
	if err != nil {
		return err
	}
	if !resp.ok() {
		return errs.Protocol(resp.status, statusText(resp.status))
	}
	return nil
}

// Me fetches the profile behind token. A 401 is reported as an AuthError.
func (c *Client) Me(ctx context.Context, token string) (user.Profile, error) {
	resp, err := c.do(ctx, http.MethodGet, PathMe, token, nil)
	if err != nil {
		return user.Profile{}, err
	}
	if resp.status == http.StatusUnauthorized {
		return user.Profile{}, errs.AuthStatus(resp.status, "token expired or invalid")
	}
	if !resp.ok() {
		return user.Profile{}, errs.Protocol(resp.status, statusText(resp.status))
	}

	var payload struct {
		ID         user.ID `json:"id"`
		Username   string  `json:"username"`
		Email      string  `json:"email"`
		CreatedAt  string  `json:"createdAt"`
		CreatedAt2 string  `json:"created_at"`
		ModifiedAt string  `json:"modifiedAt"`
		UpdatedAt  string  `json:"updated_at"`
	}
	if err := json.Unmarshal(resp.body, &payload); err != nil {
		return user.Profile{}, errs.Protocol(resp.status, fmt.Sprintf("invalid profile response: %v", err))
	}

	return user.Profile{
		ID:         string(payload.ID),
		Username:   payload.Username,
		Email:      payload.Email,
		CreatedAt:  parseTime(payload.CreatedAt, payload.CreatedAt2),
		ModifiedAt: parseTime(payload.ModifiedAt, payload.UpdatedAt),
	}, nil
}

// authEnvelope covers every login/register shape seen in the wild.
type authEnvelope struct {
	User *struct {
		ID       user.ID `json:"id"`
		Username string  `json:"username"`
		Email    string  `json:"email"`
		Token    string  `json:"token"`
	} `json:"user"`
	ID          user.ID `json:"id"`
	Username    string  `json:"username"`
	Email       string  `json:"email"`
	Token       string  `json:"token"`
	AccessToken string  `json:"access_token"`
}

// normalizeAuth maps a login/register body onto a Session. Each identity field
// prefers the nested user object and falls back to the top level; the token is
// looked up as token, access_token, then user.token.
func normalizeAuth(body []byte) (user.Session, error) {
	var env authEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return user.Session{}, err
	}

	session := user.Session{
		ID:       env.ID,
		Username: env.Username,
		Email:    env.Email,
		Token:    firstNonEmpty(env.Token, env.AccessToken),
	}
	if env.User != nil {
		session.ID = user.ID(firstNonEmpty(string(env.User.ID), string(env.ID)))
		session.Username = firstNonEmpty(env.User.Username, env.Username)
		session.Email = firstNonEmpty(env.User.Email, env.Email)
		session.Token = firstNonEmpty(session.Token, env.User.Token)
	}
	return session, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func parseTime(values ...string) time.Time {
	for _, v := range values {
		if v == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
		// Python isoformat() without zone.
		if t, err := time.Parse("2006-01-02T15:04:05.999999", v); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
