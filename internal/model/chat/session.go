package chat

import "time"

// Conversation captures the server-side history bound to one account.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}
