package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-chat/internal/errs"
	"github.com/zhouzirui/z-chat/internal/model/chat"
)

const (
	// Greeting seeds every new transcript.
	Greeting = "Hello! I'm your AI assistant. How can I help you today?"
	// EmptyReply stands in for a reply without a message field.
	EmptyReply = "Sorry, I received an empty response."
)

var (
	// ErrBusy is returned when a message is sent while another is in flight.
	ErrBusy = errors.New("a message is already being sent")
	// ErrCleared is returned by a send whose transcript was reset before the reply arrived.
	ErrCleared = errors.New("transcript was cleared while the message was in flight")
)

// Sender posts chat messages to the backend.
type Sender interface {
	SendChat(ctx context.Context, token string, req chat.Request) (chat.Reply, error)
	BaseURL() string
}

// Sessions provides the bearer token of the signed-in user.
type Sessions interface {
	Token() string
}

// Service owns the transcript, the in-flight flag and the last error.
type Service struct {
	mu       sync.RWMutex
	messages []chat.Message
	inFlight bool
	lastErr  string

	// generation changes on every ClearMessages; a send only writes back
	// into the generation it started in.
	generation uint64
	cancel     context.CancelFunc

	sender   Sender
	sessions Sessions
	logger   *zap.Logger
	now      func() time.Time
	changes  chan struct{}
}

// Seed returns the initial transcript: the assistant greeting.
func Seed(now time.Time) []chat.Message {
	return []chat.Message{{
		ID:        newMessageID(),
		Role:      chat.RoleAssistant,
		Content:   Greeting,
		Timestamp: now,
	}}
}

// NewService bootstraps a chat service with the given initial transcript.
func NewService(sender Sender, sessions Sessions, logger *zap.Logger, initial []chat.Message) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		messages: append(make([]chat.Message, 0, 16), initial...),
		sender:   sender,
		sessions: sessions,
		logger:   logger.Named("chat"),
		now:      time.Now,
		changes:  make(chan struct{}, 1),
	}
}

// SendMessage appends text as a user message, posts it and appends the
// assistant's reply. Failures are reported twice: as the error state and as an
// assistant message in the transcript.
//
// Blank text is a no-op. A call while another is in flight returns ErrBusy
// without touching state. Without a session it returns errs.ErrAuthRequired
// before anything is appended.
func (s *Service) SendMessage(ctx context.Context, text, username string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return ErrBusy
	}
	token := s.sessions.Token()
	if token == "" {
		s.lastErr = errs.ErrAuthRequired.Message
		s.mu.Unlock()
		s.notify()
		return errs.ErrAuthRequired
	}

	s.messages = append(s.messages, chat.Message{
		ID:        newMessageID(),
		Role:      chat.RoleUser,
		Content:   text,
		Timestamp: s.now(),
		User:      username,
	})
	s.inFlight = true
	s.lastErr = ""
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	gen := s.generation
	s.mu.Unlock()
	s.notify()

	defer func() {
		cancel()
		s.mu.Lock()
		if s.generation == gen {
			s.inFlight = false
			s.cancel = nil
		}
		s.mu.Unlock()
		s.notify()
	}()

	reply, err := s.sender.SendChat(ctx, token, chat.Request{User: username, Message: text})

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen {
		s.logger.Debug("dropping reply for cleared transcript", zap.NamedError("send_error", err))
		return ErrCleared
	}

	if err != nil {
		s.logger.Warn("send message failed", zap.Error(err))
		s.lastErr = fmt.Sprintf("Failed to send message: %v", err)
		s.messages = append(s.messages, chat.Message{
			ID:        newMessageID(),
			Role:      chat.RoleAssistant,
			Content:   fmt.Sprintf("Sorry, I encountered an error: %v. Please check if the backend server is running on %s.", err, s.sender.BaseURL()),
			Timestamp: s.now(),
		})
		return fmt.Errorf("send message: %w", err)
	}

	content := reply.Message
	if strings.TrimSpace(content) == "" {
		content = EmptyReply
	}
	s.messages = append(s.messages, chat.Message{
		ID:        newMessageID(),
		Role:      chat.RoleAssistant,
		Content:   content,
		Timestamp: s.now(),
	})
	return nil
}

// ClearMessages resets the transcript to reset (empty when none) and clears the
// error. A send still in flight is cancelled and its outcome discarded.
func (s *Service) ClearMessages(reset ...chat.Message) {
	s.mu.Lock()
	s.messages = append(make([]chat.Message, 0, 16), reset...)
	s.lastErr = ""
	s.generation++
	s.inFlight = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
	s.notify()
}

// DismissError clears the error banner.
func (s *Service) DismissError() {
	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()
	s.notify()
}

// Messages returns a copy of the transcript.
func (s *Service) Messages() []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := make([]chat.Message, len(s.messages))
	copy(copied, s.messages)
	return copied
}

// InFlight reports whether a request is outstanding.
func (s *Service) InFlight() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inFlight
}

// Err returns the last error text, or "".
func (s *Service) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Changes signals state changes. Signals coalesce; read state via the getters.
func (s *Service) Changes() <-chan struct{} {
	return s.changes
}

func (s *Service) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// newMessageID returns a time-ordered unique id.
func newMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
