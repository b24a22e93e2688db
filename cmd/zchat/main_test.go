package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-chat/internal/config"
	"github.com/zhouzirui/z-chat/internal/handler"
	"github.com/zhouzirui/z-chat/internal/model/chat"
	"github.com/zhouzirui/z-chat/internal/service/account"
	"github.com/zhouzirui/z-chat/internal/service/history"
	chatService "github.com/zhouzirui/z-chat/internal/service/chat"
)

func setEnv(t *testing.T, apiURL string) {
	t.Helper()
	t.Setenv("ZCHAT_API_URL", apiURL)
	t.Setenv("ZCHAT_CHAT_PATH", "")
	t.Setenv("ZCHAT_REQUEST_TIMEOUT", "5")
	t.Setenv("ZCHAT_STORE", "file")
	t.Setenv("ZCHAT_STORE_PATH", filepath.Join(t.TempDir(), "session.json"))
	t.Setenv("ZCHAT_LOG_LEVEL", "error")
	t.Setenv("ZCHAT_LOG_FILE", "")
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root, closeApp := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := root.Execute()
	require.NoError(t, closeApp())
	return out.String(), err
}

func TestCommandsAgainstChatd(t *testing.T) {
	router := handler.NewRouter(account.NewService("test-secret", time.Hour), history.NewService(), nil, zap.NewNop())
	srv := httptest.NewServer(router)
	defer srv.Close()
	setEnv(t, srv.URL)

	out, err := run(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Not signed in")

	out, err = run(t, "", "send", "hi")
	require.Error(t, err)
	assert.Contains(t, out, "authentication required")

	// chatd's register response carries no token, so the client signs in afterwards
	out, err = run(t, "", "register", "-u", "alice", "-e", "a@x.com", "-p", "secret1")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Registered and signed in as alice")

	out, err = run(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "alice (id ")
	assert.Contains(t, out, "a@x.com")

	out, err = run(t, "", "send", "hi", "there")
	require.NoError(t, err, out)
	assert.Equal(t, "Echo: hi there\n", out)

	out, err = run(t, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out")

	out, err = run(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Not signed in")

	out, err = run(t, "wrong\n", "login", "alice")
	require.Error(t, err)
	assert.Contains(t, out, "Invalid credentials")

	out, err = run(t, "secret1\n", "login", "alice")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Signed in as alice")
}

func TestSendReportsUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	setEnv(t, url)
	t.Setenv("ZCHAT_STORE", "memory")

	ctx := context.Background()
	cfg, err := config.Load()
	require.NoError(t, err)
	a, err := newApp(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	_, err = a.auth.Login(ctx, "alice", "pw")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network error")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func TestLoginThenChatScenario(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/v1/user/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["login"] != "alice" || body["password"] != "pw" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid credentials"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"user":  map[string]any{"id": 1, "username": "alice", "email": "a@x.com"},
			"token": "t1",
		})
	})
	r.Post("/api/v1/chat", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer t1" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Not authenticated"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "hello back"})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()
	setEnv(t, srv.URL)
	t.Setenv("ZCHAT_STORE", "memory")

	ctx := context.Background()
	cfg, err := config.Load()
	require.NoError(t, err)
	a, err := newApp(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	sess, err := a.auth.Login(ctx, "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "t1", sess.Token)
	assert.Equal(t, "1", string(sess.ID))

	require.NoError(t, a.chat.SendMessage(ctx, "hi", "alice"))

	msgs := a.chat.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, chatService.Greeting, msgs[0].Content)
	assert.Equal(t, chat.RoleUser, msgs[1].Role)
	assert.Equal(t, "hi", msgs[1].Content)
	assert.Equal(t, chat.RoleAssistant, msgs[2].Role)
	assert.Equal(t, "hello back", msgs[2].Content)
	assert.Empty(t, a.chat.Err())
	assert.False(t, a.chat.InFlight())
}

func TestStoreFlagOverridesDriver(t *testing.T) {
	setEnv(t, "http://127.0.0.1:1")
	t.Setenv("ZCHAT_STORE_PATH", "")
	t.Setenv("HOME", t.TempDir())

	out, err := run(t, "", "--store", "memory", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Not signed in")

	_, err = run(t, "", "--store", "redis", "whoami")
	require.Error(t, err)
}
