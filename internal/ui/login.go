package ui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/zhouzirui/z-chat/internal/errs"
)

const (
	fieldIdentifier = iota
	fieldEmail
	fieldPassword
)

// loginForm covers both sign-in and registration; register mode adds the email field.
type loginForm struct {
	inputs   [3]textinput.Model
	focus    int
	register bool
	busy     bool
	err      string
	notice   string
}

func newLoginForm(styles Styles) loginForm {
	var f loginForm
	for i := range f.inputs {
		ti := textinput.New()
		ti.CharLimit = 256
		ti.Width = 36
		ti.Prompt = "> "
		ti.PromptStyle = styles.Blurred
		f.inputs[i] = ti
	}
	f.inputs[fieldIdentifier].Placeholder = "Username or email"
	f.inputs[fieldEmail].Placeholder = "Email"
	f.inputs[fieldPassword].Placeholder = "Password"
	f.inputs[fieldPassword].EchoMode = textinput.EchoPassword
	f.inputs[fieldPassword].EchoCharacter = '•'

	f.setFocus(fieldIdentifier, styles)
	return f
}

// order lists the visible fields top to bottom.
func (f loginForm) order() []int {
	if f.register {
		return []int{fieldIdentifier, fieldEmail, fieldPassword}
	}
	return []int{fieldIdentifier, fieldPassword}
}

func (f *loginForm) setFocus(field int, styles Styles) tea.Cmd {
	f.focus = field
	var cmd tea.Cmd
	for i := range f.inputs {
		if i == field {
			cmd = f.inputs[i].Focus()
			f.inputs[i].PromptStyle = styles.Focused
			continue
		}
		f.inputs[i].Blur()
		f.inputs[i].PromptStyle = styles.Blurred
	}
	return cmd
}

func (f *loginForm) move(delta int, styles Styles) tea.Cmd {
	order := f.order()
	pos := 0
	for i, field := range order {
		if field == f.focus {
			pos = i
		}
	}
	pos = (pos + delta + len(order)) % len(order)
	return f.setFocus(order[pos], styles)
}

func (f *loginForm) toggleMode(styles Styles) tea.Cmd {
	f.register = !f.register
	f.err = ""
	if f.register {
		f.inputs[fieldIdentifier].Placeholder = "Username"
	} else {
		f.inputs[fieldIdentifier].Placeholder = "Username or email"
	}
	return f.setFocus(fieldIdentifier, styles)
}

func (f loginForm) onLastField() bool {
	order := f.order()
	return f.focus == order[len(order)-1]
}

func (f loginForm) value(field int) string {
	return f.inputs[field].Value()
}

// validate mirrors the checks the auth manager makes, so the form can answer without a round trip.
func (f loginForm) validate() string {
	identifier := strings.TrimSpace(f.value(fieldIdentifier))
	password := f.value(fieldPassword)
	if f.register {
		if identifier == "" || strings.TrimSpace(f.value(fieldEmail)) == "" || password == "" {
			return "Please fill in username, email and password"
		}
		return ""
	}
	if identifier == "" || password == "" {
		return "Please enter both username/email and password"
	}
	return ""
}

func (f *loginForm) clearPassword() {
	f.inputs[fieldPassword].SetValue("")
}

// friendlyAuthError maps a login or registration failure to the text shown under the form.
func friendlyAuthError(err error, register bool) string {
	if err == nil {
		return ""
	}
	if errs.Is(err, errs.KindNetwork) {
		return "Unable to connect to the server. Please check your connection."
	}

	var typed *errs.Error
	if errs.Is(err, errs.KindValidation) && errors.As(err, &typed) {
		return typed.Message
	}

	msg := err.Error()
	if strings.Contains(strings.ToLower(msg), "credentials") {
		return "Invalid username/email or password. Please try again."
	}
	if msg != "" {
		return msg
	}
	if register {
		return "Registration failed. Please try again."
	}
	return "Login failed. Please try again."
}

func (m Model) viewLogin() string {
	f := m.login
	var b strings.Builder

	title := "Welcome Back"
	subtitle := "Sign in to continue to your chat."
	if f.register {
		title = "Create an account"
		subtitle = "Register to start chatting."
	}
	b.WriteString(m.styles.Title.Render(title))
	b.WriteString("\n")
	b.WriteString(m.styles.Subtitle.Render(subtitle))
	b.WriteString("\n\n")

	if f.notice != "" {
		b.WriteString(m.styles.Notice.Render(f.notice))
		b.WriteString("\n\n")
	}

	for _, field := range f.order() {
		b.WriteString(f.inputs[field].View())
		b.WriteString("\n")
	}

	if f.err != "" {
		b.WriteString("\n")
		b.WriteString(m.styles.FormError.Render(f.err))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case f.busy && f.register:
		b.WriteString(m.spinner.View() + " Creating account...")
	case f.busy:
		b.WriteString(m.spinner.View() + " Signing in...")
	case f.register:
		b.WriteString(m.styles.Hint.Render("enter: register · tab: next field · ctrl+r: back to sign in · ctrl+c: quit"))
	default:
		b.WriteString(m.styles.Hint.Render("enter: sign in · tab: next field · ctrl+r: register · ctrl+c: quit"))
	}

	return m.styles.Form.Render(b.String())
}
