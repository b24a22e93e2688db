// Package ui is the z-chat terminal front end: a login form and a single chat
// screen rendered from the auth, profile and chat services' state.
package ui

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary     = lipgloss.Color("#7C3AED")
	colorAccent      = lipgloss.Color("#3B82F6")
	colorMuted       = lipgloss.Color("#9CA3AF")
	colorDestructive = lipgloss.Color("#E53935")
	colorBorder      = lipgloss.Color("#374151")
)

// Styles holds every lipgloss style the views use.
type Styles struct {
	Title      lipgloss.Style
	Subtitle   lipgloss.Style
	Header     lipgloss.Style
	Hint       lipgloss.Style
	Banner     lipgloss.Style
	UserLabel  lipgloss.Style
	BotLabel   lipgloss.Style
	UserBubble lipgloss.Style
	Timestamp  lipgloss.Style
	Spinner    lipgloss.Style
	Form       lipgloss.Style
	FormError  lipgloss.Style
	Notice     lipgloss.Style
	Focused    lipgloss.Style
	Blurred    lipgloss.Style
}

// DefaultStyles returns the dark palette.
func DefaultStyles() Styles {
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(colorPrimary),
		Subtitle: lipgloss.NewStyle().Foreground(colorMuted),
		Header: lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(colorBorder).
			Padding(0, 1),
		Hint: lipgloss.NewStyle().Foreground(colorMuted).Italic(true),
		Banner: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(colorDestructive).
			Padding(0, 1),
		UserLabel:  lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
		BotLabel:   lipgloss.NewStyle().Bold(true).Foreground(colorPrimary),
		UserBubble: lipgloss.NewStyle().PaddingLeft(2),
		Timestamp:  lipgloss.NewStyle().Foreground(colorMuted),
		Spinner:    lipgloss.NewStyle().Foreground(colorPrimary),
		Form: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(1, 2),
		FormError: lipgloss.NewStyle().Foreground(colorDestructive),
		Notice:    lipgloss.NewStyle().Foreground(colorAccent),
		Focused:   lipgloss.NewStyle().Foreground(colorPrimary),
		Blurred:   lipgloss.NewStyle().Foreground(colorMuted),
	}
}
