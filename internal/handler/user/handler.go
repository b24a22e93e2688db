package user

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-chat/internal/middleware"
	"github.com/zhouzirui/z-chat/internal/model/user"
	"github.com/zhouzirui/z-chat/internal/service/account"
	"github.com/zhouzirui/z-chat/pkg/utils"
)

// Accounts is the slice of the account service the handler needs.
type Accounts interface {
	middleware.Verifier
	Register(ctx context.Context, req user.RegisterRequest) (account.Account, error)
	Authenticate(ctx context.Context, login, password string) (account.Account, string, error)
	Revoke(ctx context.Context, claims *account.Claims)
}

// Handler 用户认证相关的HTTP处理器
type Handler struct {
	accounts     Accounts
	loginLimiter *middleware.RateLimiter
	logger       *zap.Logger
}

// New 创建用户处理器，limiter 可以为 nil。
func New(accounts Accounts, limiter *middleware.RateLimiter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{accounts: accounts, loginLimiter: limiter, logger: logger}
}

// RegisterRoutes mounts /login, /register, /logout and /me.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(public chi.Router) {
		if h.loginLimiter != nil {
			public.Use(h.loginLimiter.Middleware)
		}
		public.Post("/login", h.handleLogin)
		public.Post("/register", h.handleRegister)
	})

	r.Group(func(private chi.Router) {
		private.Use(middleware.RequireAuth(h.accounts))
		private.Post("/logout", h.handleLogout)
		private.Get("/me", h.handleMe)
	})
}

type loginResponse struct {
	User      user.Account `json:"user"`
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		user.LoginRequest
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	login := strings.TrimSpace(payload.Login)
	if login == "" {
		login = strings.TrimSpace(payload.Username)
	}
	if login == "" {
		login = strings.TrimSpace(payload.Email)
	}

	fields := make(map[string]string)
	if login == "" {
		fields["login"] = "Field required"
	}
	if payload.Password == "" {
		fields["password"] = "Field required"
	}
	if len(fields) > 0 {
		utils.RespondValidation(w, fields)
		return
	}

	acc, token, err := h.accounts.Authenticate(r.Context(), login, payload.Password)
	if err != nil {
		if errors.Is(err, account.ErrInvalidCredentials) {
			h.logger.Info("login rejected", zap.String("login", login))
			utils.RespondError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, loginResponse{User: acc.Public(), Token: token, TokenType: "bearer"})
}

// handleRegister creates the account without signing it in; clients log in afterwards.
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var payload user.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	acc, err := h.accounts.Register(r.Context(), payload)
	if err != nil {
		var verr *account.ValidationError
		switch {
		case errors.As(err, &verr):
			utils.RespondValidation(w, verr.Fields)
		case errors.Is(err, account.ErrUsernameTaken):
			utils.RespondError(w, http.StatusConflict, "Username already registered")
		case errors.Is(err, account.ErrEmailTaken):
			utils.RespondError(w, http.StatusConflict, "Email already registered")
		default:
			h.logger.Error("register failed", zap.Error(err))
			utils.RespondError(w, http.StatusInternalServerError, "Registration failed")
		}
		return
	}

	h.logger.Info("account registered", zap.String("user_id", acc.ID), zap.String("username", acc.Username))
	utils.RespondJSON(w, http.StatusCreated, acc.Public())
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	principal, _ := middleware.PrincipalFrom(r.Context())
	h.accounts.Revoke(r.Context(), principal.Claims)
	utils.RespondJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, _ := middleware.PrincipalFrom(r.Context())
	utils.RespondJSON(w, http.StatusOK, principal.Account.Profile())
}
