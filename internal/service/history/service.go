package history

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/z-chat/internal/model/chat"
)

var (
	ErrUserRequired         = errors.New("user id is required")
	ErrConversationNotFound = errors.New("conversation not found")
)

// Service keeps one running conversation per account in memory.
type Service struct {
	mu            sync.RWMutex
	conversations map[string]chat.Conversation // by user id
	messages      map[string][]chat.Message    // by conversation id
	now           func() time.Time
}

// NewService bootstraps the in-memory history store.
func NewService() *Service {
	return &Service{
		conversations: make(map[string]chat.Conversation),
		messages:      make(map[string][]chat.Message),
		now:           time.Now,
	}
}

// Conversation returns the user's conversation, creating it on first use.
func (s *Service) Conversation(_ context.Context, userID string) (chat.Conversation, error) {
	if userID == "" {
		return chat.Conversation{}, ErrUserRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if conv, ok := s.conversations[userID]; ok {
		return conv, nil
	}

	conv := chat.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: s.now().UTC(),
	}
	s.conversations[userID] = conv
	s.messages[conv.ID] = make([]chat.Message, 0, 16)
	return conv, nil
}

// SaveMessage appends a message to the conversation and returns it with id and timestamp filled.
func (s *Service) SaveMessage(_ context.Context, conversationID string, message chat.Message) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[conversationID]; !ok {
		return chat.Message{}, ErrConversationNotFound
	}

	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = s.now().UTC()
	}

	s.messages[conversationID] = append(s.messages[conversationID], message)
	return message, nil
}

// LoadTranscript returns a copy of the stored messages, oldest first.
func (s *Service) LoadTranscript(_ context.Context, conversationID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.messages[conversationID]
	if !ok {
		return nil, ErrConversationNotFound
	}

	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}
