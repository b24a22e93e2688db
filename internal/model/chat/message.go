package chat

import "time"

// Role 标识消息发送方。
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry. Insertion order is display order.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user,omitempty"`
}

// Request is the body posted to the chat endpoint.
type Request struct {
	User    string `json:"user"`
	Message string `json:"message"`
}

// Reply is the chat endpoint's success body. Message carries the assistant's answer.
type Reply struct {
	User      string `json:"user,omitempty"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
}
