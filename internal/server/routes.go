package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/arixa/arixa/internal/handler"
	"github.com/arixa/arixa/internal/middleware"
	"github.com/arixa/arixa/internal/security"
)

func (s *Server) setupRoutes() http.Handler {
	cfg := s.app.Config

	// ─── Handlers ─────────────────────────────────────────────────────────────
	healthH := handler.NewHealthHandler(s.app.Backend, s.app.checkers)
	toolsH := handler.NewToolsHandler(s.app.Catalog, s.app.Dispatcher, s.app.Manager, s.app.Executor.WorkingDir())
	chatH := handler.NewChatHandler(
		s.app.Manager,
		security.NewPromptValidator(cfg.MaxPromptLength),
		security.NewAuditLogger(cfg.EnableAuditLogging),
		cfg.AgentTimeout,
	)

	// ─── Router ───────────────────────────────────────────────────────────────
	r := chi.NewRouter()

	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins)))
	r.Use(chiMiddleware.RealIP)

	// Public routes
	r.Get("/health", healthH.Health)
	r.Get("/", healthH.Health)

	// Auth + rate limiting for API routes
	apiMiddleware := []func(http.Handler) http.Handler{
		middleware.RateLimit(cfg.RateLimitPerMinute),
	}
	if cfg.EnableAuth && len(cfg.APIKeys) > 0 {
		apiMiddleware = append(apiMiddleware, middleware.Auth(cfg.APIKeys, cfg.APIKeyHeader))
	}

	r.Group(func(r chi.Router) {
		for _, m := range apiMiddleware {
			r.Use(m)
		}
		r.Route(cfg.APIPrefix, func(r chi.Router) {
			r.Get("/tools", toolsH.List)
			r.Post("/rpc", toolsH.RPC)
			r.Post("/chat", chatH.Chat)
			r.Delete("/chat/{session_id}", chatH.Delete)
		})
	})

	return r
}
