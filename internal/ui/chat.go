package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/zhouzirui/z-chat/internal/model/chat"
)

func (m Model) viewHeader() string {
	left := m.styles.Title.Render(appTitle) + "\n" + m.styles.Subtitle.Render(appSubtitle)

	right := m.styles.Hint.Render("ctrl+l: logout")
	if name := m.username(); name != "" {
		right = m.styles.Subtitle.Render("Signed in as "+name) + "\n" + right
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return m.styles.Header.Render(lipgloss.JoinHorizontal(lipgloss.Top, left, strings.Repeat(" ", gap), right))
}

func (m Model) viewBanner() string {
	msg := m.chat.Err()
	if msg == "" {
		return ""
	}
	return m.styles.Banner.Render("! " + msg + "  (esc to dismiss)")
}

func (m Model) viewInput() string {
	if m.busy() {
		return m.spinner.View() + " " + m.styles.Hint.Render("Waiting for reply...")
	}
	return m.input.View()
}

func (m Model) renderTranscript() string {
	var b strings.Builder
	for i, msg := range m.chat.Messages() {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.renderMessage(msg))
	}
	if m.chat.InFlight() {
		b.WriteString("\n")
		b.WriteString(m.styles.BotLabel.Render("Assistant"))
		b.WriteString("\n  ")
		b.WriteString(m.spinner.View())
		b.WriteString(" Thinking...\n")
	}
	return b.String()
}

func (m Model) renderMessage(msg chat.Message) string {
	label := m.styles.BotLabel.Render("Assistant")
	if msg.Role == chat.RoleUser {
		name := msg.User
		if name == "" {
			name = "You"
		}
		label = m.styles.UserLabel.Render(name)
	}
	if !msg.Timestamp.IsZero() {
		label += " " + m.styles.Timestamp.Render(msg.Timestamp.Local().Format("15:04"))
	}

	var body string
	if msg.Role == chat.RoleAssistant && m.renderer != nil {
		if out, err := m.renderer.Render(msg.Content); err == nil {
			body = strings.Trim(out, "\n")
		}
	}
	if body == "" {
		body = m.styles.UserBubble.Render(msg.Content)
	}
	return label + "\n" + body + "\n"
}
