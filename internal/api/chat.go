package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/zhouzirui/z-chat/internal/errs"
	"github.com/zhouzirui/z-chat/internal/model/chat"
)

// SendChat posts one user message and returns the assistant reply.
func (c *Client) SendChat(ctx context.Context, token string, req chat.Request) (chat.Reply, error) {
	resp, err := c.do(ctx, http.MethodPost, c.chatPath, token, req)
	if err != nil {
		return chat.Reply{}, err
	}
	if resp.status == http.StatusUnauthorized || resp.status == http.StatusForbidden {
		return chat.Reply{}, errs.AuthStatus(resp.status, statusText(resp.status))
	}
	if !resp.ok() {
		return chat.Reply{}, errs.Protocol(resp.status, statusText(resp.status))
	}

	var reply chat.Reply
	if err := json.Unmarshal(resp.body, &reply); err != nil {
		return chat.Reply{}, errs.Protocol(resp.status, fmt.Sprintf("invalid chat response: %v", err))
	}
	return reply, nil
}
