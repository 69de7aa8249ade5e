package account

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/corvohq/simple-identity/internal/httputil"
	"github.com/corvohq/simple-identity/pkg/domain"
	"github.com/corvohq/simple-identity/pkg/identity"
	"github.com/corvohq/simple-identity/pkg/oauth"
)

// Handler handles registration, authentication, and account lifecycle
// endpoints.
type Handler struct {
	logger   *slog.Logger
	engine   *identity.Engine
	verifier *oauth.Verifier
}

// NewHandler creates a new account handler. verifier may be nil when no
// OAuth providers are configured.
func NewHandler(logger *slog.Logger, engine *identity.Engine, verifier *oauth.Verifier) *Handler {
	return &Handler{logger: logger, engine: engine, verifier: verifier}
}

// RegisterRequest represents a registration request.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// RegisterResponse represents a successful registration.
type RegisterResponse struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserIDResponse carries only the account identifier; profile data is
// fetched separately.
type UserIDResponse struct {
	UserID string `json:"user_id"`
}

// OAuthRequest represents an OAuth sign-in with a provider assertion.
type OAuthRequest struct {
	Username  string `json:"username"`
	Provider  string `json:"provider"`
	Assertion string `json:"assertion"`
}

// ChangePasswordRequest represents a password change.
type ChangePasswordRequest struct {
	Email       string `json:"email"`
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// Register handles user registration.
// POST /v1/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.engine.Register(r.Context(), req.Username, req.Password, req.Email)
	if err != nil {
		h.logFailure("register", err)
		httputil.EngineError(w, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, RegisterResponse{
		UserID:   res.UserID.String(),
		Username: res.Username,
		Email:    res.Email,
	})
}

// Login handles password authentication.
// POST /v1/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, err := h.engine.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logFailure("login", err)
		httputil.EngineError(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, UserIDResponse{UserID: userID.String()})
}

// OAuth handles provider-assertion sign-in, registering the account on
// first contact.
// POST /v1/auth/oauth
func (h *Handler) OAuth(w http.ResponseWriter, r *http.Request) {
	var req OAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if h.verifier == nil {
		httputil.Error(w, http.StatusServiceUnavailable, "no identity providers configured")
		return
	}

	claims, err := h.verifier.Verify(req.Provider, req.Assertion)
	if err != nil {
		h.logger.Warn("assertion rejected", "provider", req.Provider, "error", err)
		httputil.Error(w, http.StatusUnauthorized, "invalid provider assertion")
		return
	}

	username := req.Username
	if username == "" {
		username = claims.Name
	}

	userID, err := h.engine.AuthenticateOrRegisterOAuth(r.Context(), username, req.Provider, claims.Email)
	if err != nil {
		h.logFailure("oauth", err)
		httputil.EngineError(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, UserIDResponse{UserID: userID.String()})
}

// ChangePassword handles authenticated password changes.
// POST /v1/auth/change-password
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.engine.ChangePassword(r.Context(), req.Email, req.OldPassword, req.NewPassword); err != nil {
		h.logFailure("change-password", err)
		httputil.EngineError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Delete handles account deletion.
// DELETE /v1/users/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := h.engine.DeleteUser(r.Context(), userID); err != nil {
		h.logFailure("delete", err)
		httputil.EngineError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) logFailure(op string, err error) {
	if domain.KindOf(err) == domain.KindInternal {
		h.logger.Error(op+" failed", "error", err)
	}
}
