package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/zhouzirui/z-chat/internal/model/chat"
	"github.com/zhouzirui/z-chat/internal/model/user"
	chatService "github.com/zhouzirui/z-chat/internal/service/chat"
	"github.com/zhouzirui/z-chat/internal/service/profile"
)

// Auth is the slice of the auth manager the view drives.
type Auth interface {
	Current() (user.Session, bool)
	IsAuthenticated() bool
	Login(ctx context.Context, identifier, password string) (user.Session, error)
	Register(ctx context.Context, username, email, password string) (user.Session, error)
	Logout(ctx context.Context)
}

// Profiles resolves the signed-in user.
type Profiles interface {
	Resolve(ctx context.Context) (*user.Profile, error)
}

// Chat is the transcript owner.
type Chat interface {
	SendMessage(ctx context.Context, text, username string) error
	Messages() []chat.Message
	InFlight() bool
	Err() string
	DismissError()
	ClearMessages(reset ...chat.Message)
	Changes() <-chan struct{}
}

type screen int

const (
	screenLogin screen = iota
	screenChat
)

const (
	appTitle    = "AI Chat Assistant"
	appSubtitle = "Powered by modern AI technology"
)

// Options tunes rendering. The zero value is usable.
type Options struct {
	// MarkdownStyle is a glamour style name; "dark" when empty.
	MarkdownStyle string
}

type (
	authDoneMsg struct {
		err error
	}
	profileMsg struct {
		profile *user.Profile
		err     error
	}
	sendDoneMsg struct {
		seq int
		err error
	}
	changedMsg struct{}
)

// Model is the root Bubble Tea model.
type Model struct {
	ctx      context.Context
	auth     Auth
	profiles Profiles
	chat     Chat

	styles        Styles
	markdownStyle string
	renderer      *glamour.TermRenderer

	screen   screen
	login    loginForm
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	// sending covers the gap between enter and the chat service marking the
	// request in flight. sendSeq ties a sendDoneMsg to the submit that set it.
	sending bool
	sendSeq int

	profile *user.Profile
	width   int
	height  int
	now     func() time.Time
}

// New builds the root model. It starts on the chat screen when a session was restored.
func New(ctx context.Context, auth Auth, profiles Profiles, chatSvc Chat, opts Options) Model {
	styles := DefaultStyles()

	ti := textinput.New()
	ti.Placeholder = "Type your message here..."
	ti.Prompt = "| "
	ti.CharLimit = 4096
	ti.Width = 76

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	m := Model{
		ctx:           ctx,
		auth:          auth,
		profiles:      profiles,
		chat:          chatSvc,
		styles:        styles,
		markdownStyle: opts.MarkdownStyle,
		login:         newLoginForm(styles),
		input:         ti,
		viewport:      viewport.New(80, 20),
		spinner:       sp,
		width:         80,
		height:        24,
		now:           time.Now,
	}
	if m.markdownStyle == "" {
		m.markdownStyle = "dark"
	}
	m.renderer = newRenderer(m.markdownStyle, m.width)

	if auth.IsAuthenticated() {
		m.screen = screenChat
		m.input.Focus()
	}
	m.layout()
	return m
}

func newRenderer(style string, width int) *glamour.TermRenderer {
	wrap := width - 4
	if wrap < 20 {
		wrap = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(style),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return nil
	}
	return r
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.waitForChange()}
	if m.screen == screenChat {
		cmds = append(cmds, m.resolveProfile())
	}
	return tea.Batch(cmds...)
}

func (m Model) waitForChange() tea.Cmd {
	ch := m.chat.Changes()
	return func() tea.Msg {
		<-ch
		return changedMsg{}
	}
}

func (m Model) resolveProfile() tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		p, err := m.profiles.Resolve(ctx)
		return profileMsg{profile: p, err: err}
	}
}

func (m Model) submitAuth() tea.Cmd {
	ctx := m.ctx
	f := m.login
	identifier := strings.TrimSpace(f.value(fieldIdentifier))
	email := strings.TrimSpace(f.value(fieldEmail))
	password := f.value(fieldPassword)
	return func() tea.Msg {
		var err error
		if f.register {
			_, err = m.auth.Register(ctx, identifier, email, password)
		} else {
			_, err = m.auth.Login(ctx, identifier, password)
		}
		return authDoneMsg{err: err}
	}
}

func (m Model) sendMessage(text string) tea.Cmd {
	ctx := m.ctx
	username := m.username()
	seq := m.sendSeq
	return func() tea.Msg {
		return sendDoneMsg{seq: seq, err: m.chat.SendMessage(ctx, text, username)}
	}
}

// busy reports whether a submitted message has not finished yet.
func (m Model) busy() bool {
	return m.sending || m.chat.InFlight()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.renderer = newRenderer(m.markdownStyle, m.width)
		m.layout()
		return m, nil

	case changedMsg:
		m.layout()
		return m, m.waitForChange()

	case spinner.TickMsg:
		if !m.busy() && !m.login.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refreshTranscript()
		return m, cmd

	case authDoneMsg:
		return m.handleAuthDone(msg)

	case profileMsg:
		if m.screen != screenChat {
			return m, nil
		}
		if errors.Is(msg.err, profile.ErrReauthenticate) {
			m.toLogin("Your session has expired. Please sign in again.")
			return m, nil
		}
		m.profile = msg.profile
		return m, nil

	case sendDoneMsg:
		// Failures already live in the chat service's error state and transcript.
		if msg.seq == m.sendSeq {
			m.sending = false
		}
		m.layout()
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.screen == screenLogin {
			return m.updateLogin(msg)
		}
		return m.updateChat(msg)
	}

	return m, nil
}

func (m Model) handleAuthDone(msg authDoneMsg) (tea.Model, tea.Cmd) {
	m.login.busy = false
	m.login.clearPassword()
	if msg.err != nil {
		m.login.err = friendlyAuthError(msg.err, m.login.register)
		return m, nil
	}

	m.login.err = ""
	m.login.notice = ""
	m.login.inputs[fieldEmail].SetValue("")
	m.chat.ClearMessages(chatService.Seed(m.now())...)
	m.screen = screenChat
	m.profile = nil
	cmd := m.input.Focus()
	m.layout()
	return m, tea.Batch(cmd, m.resolveProfile())
}

func (m Model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.login.busy {
		return m, nil
	}

	switch msg.String() {
	case "ctrl+r":
		return m, m.login.toggleMode(m.styles)
	case "tab", "down":
		return m, m.login.move(1, m.styles)
	case "shift+tab", "up":
		return m, m.login.move(-1, m.styles)
	case "enter":
		if !m.login.onLastField() {
			return m, m.login.move(1, m.styles)
		}
		if problem := m.login.validate(); problem != "" {
			m.login.err = problem
			m.login.clearPassword()
			return m, nil
		}
		m.login.err = ""
		m.login.busy = true
		return m, tea.Batch(m.submitAuth(), m.spinner.Tick)
	}

	var cmd tea.Cmd
	m.login.inputs[m.login.focus], cmd = m.login.inputs[m.login.focus].Update(msg)
	return m, cmd
}

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+l":
		m.auth.Logout(m.ctx)
		m.toLogin("You have been signed out.")
		return m, nil
	case "esc":
		m.chat.DismissError()
		return m, nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	// input is disabled while a reply is pending
	if m.busy() {
		return m, nil
	}

	if msg.String() == "enter" {
		text := m.input.Value()
		if strings.TrimSpace(text) == "" {
			return m, nil
		}
		m.input.Reset()
		m.sending = true
		m.sendSeq++
		cmd := m.sendMessage(text)
		m.layout()
		return m, tea.Batch(cmd, m.spinner.Tick)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) toLogin(notice string) {
	m.chat.ClearMessages(chatService.Seed(m.now())...)
	m.profile = nil
	m.screen = screenLogin
	m.sending = false
	m.input.Reset()
	m.input.Blur()
	m.login.busy = false
	m.login.err = ""
	m.login.notice = notice
	m.login.clearPassword()
	m.login.setFocus(fieldIdentifier, m.styles)
}

// username prefers the resolved profile, then the stored session.
func (m Model) username() string {
	if m.profile != nil && m.profile.Username != "" {
		return m.profile.Username
	}
	if sess, ok := m.auth.Current(); ok {
		return sess.Username
	}
	return ""
}

// layout sizes the viewport around the header, banner and input.
func (m *Model) layout() {
	used := lipgloss.Height(m.viewHeader()) + lipgloss.Height(m.viewInput())
	if banner := m.viewBanner(); banner != "" {
		used += lipgloss.Height(banner)
	}
	height := m.height - used
	if height < 3 {
		height = 3
	}
	m.viewport.Width = m.width
	m.viewport.Height = height
	m.input.Width = m.width - 4
	m.refreshTranscript()
}

func (m *Model) refreshTranscript() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

// View implements tea.Model.
func (m Model) View() string {
	if m.screen == screenLogin {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.viewLogin())
	}

	parts := []string{m.viewHeader()}
	if banner := m.viewBanner(); banner != "" {
		parts = append(parts, banner)
	}
	parts = append(parts, m.viewport.View(), m.viewInput())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
