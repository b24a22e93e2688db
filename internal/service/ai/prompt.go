package ai

import (
	"fmt"
	"strings"
)

// 默认助手设定。
var assistantRules = []string{
	"Answer clearly and concisely.",
	"Use Markdown for lists, tables and code; the client renders it.",
	"If you are unsure, say so instead of guessing.",
}

func buildSystemPrompt(username string) string {
	var b strings.Builder
	b.WriteString("You are a helpful AI assistant in a terminal chat application.")
	if name := strings.TrimSpace(username); name != "" {
		fmt.Fprintf(&b, " You are talking with %s.", name)
	}
	b.WriteString("\n\nRules:\n- ")
	b.WriteString(strings.Join(assistantRules, "\n- "))
	return b.String()
}
