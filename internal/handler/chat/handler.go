package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-chat/internal/middleware"
	"github.com/zhouzirui/z-chat/internal/model/chat"
	"github.com/zhouzirui/z-chat/internal/service/ai"
	"github.com/zhouzirui/z-chat/pkg/utils"
)

// History is the conversation store the handler records turns in.
type History interface {
	Conversation(ctx context.Context, userID string) (chat.Conversation, error)
	SaveMessage(ctx context.Context, conversationID string, message chat.Message) (chat.Message, error)
	LoadTranscript(ctx context.Context, conversationID string) ([]chat.Message, error)
}

// Handler 聊天服务的HTTP处理器
type Handler struct {
	history History
	replier ai.Replier
	logger  *zap.Logger
}

// New 创建聊天处理器
func New(history History, replier ai.Replier, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{history: history, replier: replier, logger: logger}
}

// RegisterRoutes 注册聊天相关的路由，同时兼容旧客户端使用的 /message 路径。
func (h *Handler) RegisterRoutes(r chi.Router, verifier middleware.Verifier) {
	r.With(middleware.RequireAuth(verifier)).Post("/", h.handleSendMessage)
	r.With(middleware.RequireAuth(verifier)).Post("/message", h.handleSendMessage)
}

type replyResponse struct {
	ID        string `json:"id"`
	User      string `json:"user"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// handleSendMessage 处理一轮对话
func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var payload chat.Request
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	text := strings.TrimSpace(payload.Message)
	if text == "" {
		utils.RespondValidation(w, map[string]string{"message": "Message must not be empty"})
		return
	}

	principal, _ := middleware.PrincipalFrom(r.Context())
	username := strings.TrimSpace(payload.User)
	if username == "" {
		username = principal.Account.Username
	}

	ctx := r.Context()
	conv, err := h.history.Conversation(ctx, principal.Account.ID)
	if err != nil {
		h.logger.Error("load conversation failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	transcript, err := h.history.LoadTranscript(ctx, conv.ID)
	if err != nil {
		h.logger.Error("load transcript failed", zap.String("conversation_id", conv.ID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	answer, err := h.replier.Reply(ctx, username, transcript, text)
	if err != nil {
		h.logger.Error("reply failed", zap.String("conversation_id", conv.ID), zap.Error(err))
		utils.RespondError(w, http.StatusBadGateway, "AI service unavailable")
		return
	}

	if _, err := h.history.SaveMessage(ctx, conv.ID, chat.Message{Role: chat.RoleUser, Content: text, User: username}); err != nil {
		h.logger.Warn("save user message failed", zap.Error(err))
	}
	saved, err := h.history.SaveMessage(ctx, conv.ID, chat.Message{Role: chat.RoleAssistant, Content: answer})
	if err != nil {
		h.logger.Warn("save reply failed", zap.Error(err))
		saved = chat.Message{Timestamp: time.Now().UTC()}
	}

	utils.RespondJSON(w, http.StatusOK, replyResponse{
		ID:        saved.ID,
		User:      username,
		Message:   answer,
		Timestamp: saved.Timestamp.Format(time.RFC3339),
	})
}
