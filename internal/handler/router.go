package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-chat/internal/handler/chat"
	"github.com/zhouzirui/z-chat/internal/handler/user"
	middlewarePkg "github.com/zhouzirui/z-chat/internal/middleware"
	accountService "github.com/zhouzirui/z-chat/internal/service/account"
	aiService "github.com/zhouzirui/z-chat/internal/service/ai"
	historyService "github.com/zhouzirui/z-chat/internal/service/history"
	"github.com/zhouzirui/z-chat/pkg/utils"
)

const (
	loginAttempts = 20
	loginWindow   = time.Minute
)

// NewRouter wires HTTP routes to core services.
func NewRouter(accounts *accountService.Service, historySvc *historyService.Service, replier aiService.Replier, logger *zap.Logger) http.Handler {
	if replier == nil {
		replier = aiService.Echo{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	userHandler := user.New(accounts, middlewarePkg.NewRateLimiter(loginAttempts, loginWindow), logger.Named("user"))
	chatHandler := chat.New(historySvc, replier, logger.Named("chat"))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/user", userHandler.RegisterRoutes)
		api.Route("/chat", func(cr chi.Router) {
			chatHandler.RegisterRoutes(cr, accounts)
		})
	})

	return r
}
