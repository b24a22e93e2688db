package ai

import (
	"context"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/z-chat/internal/model/chat"
)

// fakeModel records the prompt it was given and answers with a fixed reply.
type fakeModel struct {
	reply string
	seen  []*schema.Message
}

func (f *fakeModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.seen = input
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeModel) Stream(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.seen = input
	return schema.StreamReaderFromArray([]*schema.Message{schema.AssistantMessage(f.reply, nil)}), nil
}

func (f *fakeModel) BindTools(_ []*schema.ToolInfo) error { return nil }

func TestServiceReplyBuildsPrompt(t *testing.T) {
	fake := &fakeModel{reply: "hello back"}
	svc, err := newWithModel(context.Background(), fake, nil)
	if err != nil {
		t.Fatalf("newWithModel err: %v", err)
	}

	history := []chat.Message{
		{Role: chat.RoleUser, Content: "earlier question"},
		{Role: chat.RoleAssistant, Content: "earlier answer"},
	}
	reply, err := svc.Reply(context.Background(), "alice", history, "hi")
	if err != nil {
		t.Fatalf("Reply err: %v", err)
	}
	if reply != "hello back" {
		t.Fatalf("unexpected reply: %q", reply)
	}

	if len(fake.seen) != 4 {
		t.Fatalf("expected system + 2 history + query, got %d messages", len(fake.seen))
	}
	if fake.seen[0].Role != schema.System || !strings.Contains(fake.seen[0].Content, "alice") {
		t.Fatalf("unexpected system message: %+v", fake.seen[0])
	}
	if fake.seen[3].Role != schema.User || fake.seen[3].Content != "hi" {
		t.Fatalf("unexpected query message: %+v", fake.seen[3])
	}
}

func TestBuildHistoryMessagesKeepsRecentTurns(t *testing.T) {
	messages := make([]chat.Message, 0, 15)
	for i := 0; i < 15; i++ {
		role := chat.RoleUser
		if i%2 == 1 {
			role = chat.RoleAssistant
		}
		messages = append(messages, chat.Message{Role: role, Content: string(rune('a' + i))})
	}

	history := buildHistoryMessages(messages)
	if len(history) != historyLimit {
		t.Fatalf("expected %d messages, got %d", historyLimit, len(history))
	}
	if history[0].Content != "f" {
		t.Fatalf("expected oldest kept turn to be f, got %q", history[0].Content)
	}
	if buildHistoryMessages(nil) != nil {
		t.Fatal("empty history should be nil")
	}
}

func TestEchoReply(t *testing.T) {
	reply, err := Echo{}.Reply(context.Background(), "alice", nil, "  hi  ")
	if err != nil || reply != "Echo: hi" {
		t.Fatalf("unexpected echo reply: %q %v", reply, err)
	}
}
