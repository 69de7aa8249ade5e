package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/corvohq/simple-identity/internal/config"
	"github.com/corvohq/simple-identity/internal/http/features/account"
	"github.com/corvohq/simple-identity/internal/http/features/profile"
	"github.com/corvohq/simple-identity/internal/http/features/reset"
	"github.com/corvohq/simple-identity/internal/http/middleware"
	"github.com/corvohq/simple-identity/internal/httputil"
	"github.com/corvohq/simple-identity/pkg/identity"
	"github.com/corvohq/simple-identity/pkg/oauth"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger             *slog.Logger
	Engine             *identity.Engine
	Verifier           *oauth.Verifier
	EmailEnabled       bool
	SecurityHeaders    config.SecurityHeadersConfig
	MaxRequestBodySize int64
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.MaxRequestBodySize))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	accountHandler := account.NewHandler(cfg.Logger, cfg.Engine, cfg.Verifier)
	r.Post("/v1/auth/register", accountHandler.Register)
	r.Post("/v1/auth/login", accountHandler.Login)
	r.Post("/v1/auth/oauth", accountHandler.OAuth)
	r.Post("/v1/auth/change-password", accountHandler.ChangePassword)
	r.Delete("/v1/users/{id}", accountHandler.Delete)

	profileHandler := profile.NewHandler(cfg.Logger, cfg.Engine)
	r.Get("/v1/users/{id}/profile", profileHandler.Get)
	r.Patch("/v1/users/{id}/profile", profileHandler.Set)

	resetHandler := reset.NewHandler(cfg.Logger, cfg.Engine, cfg.EmailEnabled)
	r.Post("/v1/auth/password/reset-request", resetHandler.RequestToken)
	r.Post("/v1/auth/password/reset", resetHandler.Reset)

	return r
}
