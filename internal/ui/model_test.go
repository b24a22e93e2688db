package ui

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-chat/internal/errs"
	"github.com/zhouzirui/z-chat/internal/model/chat"
	"github.com/zhouzirui/z-chat/internal/model/user"
	chatService "github.com/zhouzirui/z-chat/internal/service/chat"
	"github.com/zhouzirui/z-chat/internal/service/profile"
)

type fakeAuth struct {
	mu       sync.Mutex
	session  *user.Session
	loginErr error
	logins   int
	logouts  int
	register bool
}

func (f *fakeAuth) Current() (user.Session, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil {
		return user.Session{}, false
	}
	return *f.session, true
}

func (f *fakeAuth) IsAuthenticated() bool { return f.Token() != "" }

func (f *fakeAuth) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil {
		return ""
	}
	return f.session.Token
}

func (f *fakeAuth) Login(_ context.Context, identifier, _ string) (user.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins++
	if f.loginErr != nil {
		return user.Session{}, f.loginErr
	}
	f.session = &user.Session{ID: "1", Username: identifier, Token: "t1"}
	return *f.session, nil
}

func (f *fakeAuth) Register(ctx context.Context, username, _, password string) (user.Session, error) {
	f.mu.Lock()
	f.register = true
	f.mu.Unlock()
	return f.Login(ctx, username, password)
}

func (f *fakeAuth) Logout(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts++
	f.session = nil
}

type fakeProfiles struct{}

func (fakeProfiles) Resolve(context.Context) (*user.Profile, error) {
	return &user.Profile{ID: "1", Username: "alice"}, nil
}

type fakeSender struct {
	reply   string
	err     error
	release chan struct{}
}

func (f *fakeSender) SendChat(_ context.Context, _ string, _ chat.Request) (chat.Reply, error) {
	if f.release != nil {
		<-f.release
	}
	return chat.Reply{Message: f.reply}, f.err
}

func (f *fakeSender) BaseURL() string { return "http://localhost:8000" }

func newTestModel(auth *fakeAuth, sender *fakeSender) (Model, *chatService.Service) {
	svc := chatService.NewService(sender, auth, nil, chatService.Seed(time.Now()))
	m := New(context.Background(), auth, fakeProfiles{}, svc, Options{MarkdownStyle: "notty"})
	return m, svc
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

// runBatch executes a command and, for a batch, each command inside it.
// Only use it on commands that return immediately.
func runBatch(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		return []tea.Msg{msg}
	}
	var out []tea.Msg
	for _, c := range batch {
		if c != nil {
			out = append(out, c())
		}
	}
	return out
}

func findMsg[T tea.Msg](t *testing.T, msgs []tea.Msg) T {
	t.Helper()
	for _, msg := range msgs {
		if typed, ok := msg.(T); ok {
			return typed
		}
	}
	var zero T
	t.Fatalf("message %T not produced, got %#v", zero, msgs)
	return zero
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return m
}

func TestStartsOnLoginWithoutSession(t *testing.T) {
	m, _ := newTestModel(&fakeAuth{}, &fakeSender{})

	assert.Equal(t, screenLogin, m.screen)
	assert.Contains(t, m.View(), "Welcome Back")
}

func TestStartsOnChatWithRestoredSession(t *testing.T) {
	m, _ := newTestModel(&fakeAuth{session: &user.Session{Username: "alice", Token: "t1"}}, &fakeSender{})

	assert.Equal(t, screenChat, m.screen)
	view := m.View()
	assert.Contains(t, view, appTitle)
	assert.Contains(t, view, "Signed in as alice")
	assert.Contains(t, view, "How can I help you today?")
}

func TestLoginValidation(t *testing.T) {
	auth := &fakeAuth{}
	m, _ := newTestModel(auth, &fakeSender{})

	// enter on the first field only advances focus
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, fieldPassword, m.login.focus)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Equal(t, "Please enter both username/email and password", m.login.err)
	assert.Equal(t, 0, auth.logins)
	assert.Contains(t, m.View(), "Please enter both username/email and password")
}

func TestLoginSuccessSwitchesToChat(t *testing.T) {
	auth := &fakeAuth{}
	m, svc := newTestModel(auth, &fakeSender{})

	m = typeText(t, m, "alice")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = typeText(t, m, "pw")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.True(t, m.login.busy)

	done := findMsg[authDoneMsg](t, runBatch(cmd))
	require.NoError(t, done.err)

	m, _ = update(t, m, done)
	assert.Equal(t, screenChat, m.screen)
	assert.False(t, m.login.busy)
	assert.Empty(t, m.login.value(fieldPassword), "password is cleared after every attempt")
	assert.Len(t, svc.Messages(), 1)

	msg := m.resolveProfile()()
	m, _ = update(t, m, msg)
	require.NotNil(t, m.profile)
	assert.Equal(t, "alice", m.username())
}

func TestLoginFailureShowsFriendlyError(t *testing.T) {
	auth := &fakeAuth{loginErr: errs.AuthStatus(http.StatusUnauthorized, "Invalid credentials")}
	m, _ := newTestModel(auth, &fakeSender{})

	m.login.inputs[fieldIdentifier].SetValue("alice")
	m.login.inputs[fieldPassword].SetValue("wrong")
	m.login.setFocus(fieldPassword, m.styles)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	done := findMsg[authDoneMsg](t, runBatch(cmd))
	m, _ = update(t, m, done)

	assert.Equal(t, screenLogin, m.screen)
	assert.Equal(t, "Invalid username/email or password. Please try again.", m.login.err)
	assert.Empty(t, m.login.value(fieldPassword))
}

func TestRegisterModeAddsEmailField(t *testing.T) {
	auth := &fakeAuth{}
	m, _ := newTestModel(auth, &fakeSender{})

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	assert.True(t, m.login.register)
	assert.Equal(t, []int{fieldIdentifier, fieldEmail, fieldPassword}, m.login.order())
	assert.Contains(t, m.View(), "Create an account")

	m.login.inputs[fieldIdentifier].SetValue("alice")
	m.login.inputs[fieldPassword].SetValue("pw")
	m.login.setFocus(fieldPassword, m.styles)
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, "Please fill in username, email and password", m.login.err)

	m.login.inputs[fieldEmail].SetValue("a@x.com")
	m.login.inputs[fieldPassword].SetValue("pw")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	done := findMsg[authDoneMsg](t, runBatch(cmd))
	require.NoError(t, done.err)
	assert.True(t, auth.register)
}

func TestFriendlyAuthError(t *testing.T) {
	cases := map[string]struct {
		err  error
		want string
	}{
		"network":    {err: errs.Network(errors.New("dial tcp: connection refused")), want: "Unable to connect to the server. Please check your connection."},
		"validation": {err: errs.Validation("Please fill in username, email and password"), want: "Please fill in username, email and password"},
		"wrapped":    {err: errors.New("account created but sign-in failed: Invalid credentials"), want: "Invalid username/email or password. Please try again."},
		"other":      {err: errs.AuthStatus(http.StatusConflict, "Username already registered"), want: "Username already registered"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, friendlyAuthError(tc.err, false))
		})
	}
}

func TestSendMessageRendersReply(t *testing.T) {
	auth := &fakeAuth{session: &user.Session{Username: "alice", Token: "t1"}}
	m, svc := newTestModel(auth, &fakeSender{reply: "hello back"})

	m = typeText(t, m, "hi")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Empty(t, m.input.Value())

	done := findMsg[sendDoneMsg](t, runBatch(cmd))
	require.NoError(t, done.err)
	m, _ = update(t, m, done)

	msgs := svc.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "hi", msgs[1].Content)
	assert.Equal(t, "alice", msgs[1].User)
	assert.Equal(t, "hello back", msgs[2].Content)

	view := m.View()
	assert.Contains(t, view, "hi")
	assert.Contains(t, view, "hello back")
}

func TestInputDisabledWhileInFlight(t *testing.T) {
	auth := &fakeAuth{session: &user.Session{Username: "alice", Token: "t1"}}
	sender := &fakeSender{reply: "ok", release: make(chan struct{})}
	m, svc := newTestModel(auth, sender)

	done := make(chan tea.Msg, 1)
	go func() { done <- m.sendMessage("first")() }()

	require.Eventually(t, svc.InFlight, time.Second, 5*time.Millisecond)

	m = typeText(t, m, "second")
	assert.Empty(t, m.input.Value())
	assert.Contains(t, m.View(), "Waiting for reply...")

	close(sender.release)
	<-done
	assert.False(t, svc.InFlight())
}

func TestSecondEnterBeforeSendStartsIsBlocked(t *testing.T) {
	auth := &fakeAuth{session: &user.Session{Username: "alice", Token: "t1"}}
	m, svc := newTestModel(auth, &fakeSender{reply: "ok"})

	m = typeText(t, m, "first")
	m, first := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, first)
	require.False(t, svc.InFlight(), "send command has not run yet")

	m = typeText(t, m, "second")
	assert.Empty(t, m.input.Value())
	_, second := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, second)
	assert.Contains(t, m.View(), "Waiting for reply...")

	done := findMsg[sendDoneMsg](t, runBatch(first))
	require.NoError(t, done.err)
	m, _ = update(t, m, done)

	m = typeText(t, m, "third")
	assert.Equal(t, "third", m.input.Value())
}

func TestStaleSendDoneAfterLogoutKeepsNewSendBusy(t *testing.T) {
	auth := &fakeAuth{session: &user.Session{Username: "alice", Token: "t1"}}
	m, _ := newTestModel(auth, &fakeSender{reply: "ok"})

	m = typeText(t, m, "first")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	stale := sendDoneMsg{seq: m.sendSeq}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlL})
	assert.False(t, m.sending)

	m.screen = screenChat
	m.input.Focus()
	auth.session = &user.Session{Username: "bob", Token: "t2"}
	m = typeText(t, m, "next")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.True(t, m.sending)

	m, _ = update(t, m, stale)
	assert.True(t, m.sending)
}

func TestEscDismissesError(t *testing.T) {
	auth := &fakeAuth{session: &user.Session{Username: "alice", Token: "t1"}}
	m, svc := newTestModel(auth, &fakeSender{err: errs.Network(errors.New("connection refused"))})

	_ = m.sendMessage("hi")()
	m, _ = update(t, m, changedMsg{})
	require.NotEmpty(t, svc.Err())
	assert.Contains(t, m.View(), "Failed to send message")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Empty(t, svc.Err())
	assert.NotContains(t, m.View(), "esc to dismiss")
}

func TestLogoutReturnsToLogin(t *testing.T) {
	auth := &fakeAuth{session: &user.Session{Username: "alice", Token: "t1"}}
	m, svc := newTestModel(auth, &fakeSender{reply: "hello back"})
	_ = m.sendMessage("hi")()
	require.Len(t, svc.Messages(), 3)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlL})

	assert.Equal(t, 1, auth.logouts)
	assert.Equal(t, screenLogin, m.screen)
	assert.Len(t, svc.Messages(), 1, "transcript resets to the greeting")
	assert.Contains(t, m.View(), "You have been signed out.")
}

func TestReauthenticateSwitchesToLogin(t *testing.T) {
	auth := &fakeAuth{session: &user.Session{Username: "alice", Token: "t1"}}
	m, _ := newTestModel(auth, &fakeSender{})

	m, _ = update(t, m, profileMsg{err: profile.ErrReauthenticate})

	assert.Equal(t, screenLogin, m.screen)
	assert.True(t, strings.Contains(m.View(), "session has expired"))
}
