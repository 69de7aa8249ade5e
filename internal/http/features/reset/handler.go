package reset

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/corvohq/simple-identity/internal/httputil"
	"github.com/corvohq/simple-identity/pkg/domain"
	"github.com/corvohq/simple-identity/pkg/identity"
)

// Handler handles the password-reset flow endpoints.
type Handler struct {
	logger       *slog.Logger
	engine       *identity.Engine
	emailEnabled bool
}

func NewHandler(logger *slog.Logger, engine *identity.Engine, emailEnabled bool) *Handler {
	return &Handler{logger: logger, engine: engine, emailEnabled: emailEnabled}
}

// RequestTokenRequest represents a reset-token request.
type RequestTokenRequest struct {
	Email string `json:"email"`
}

// ResetRequest represents a password reset.
type ResetRequest struct {
	Email       string `json:"email"`
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// MessageResponse represents a simple message response.
type MessageResponse struct {
	Message string `json:"message"`
}

// RequestToken issues a reset token and emails it to the account holder.
// The token itself is never included in the HTTP response.
// POST /v1/auth/password/reset-request
func (h *Handler) RequestToken(w http.ResponseWriter, r *http.Request) {
	var req RequestTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !h.emailEnabled {
		httputil.Error(w, http.StatusServiceUnavailable, "email service not configured")
		return
	}

	if _, err := h.engine.IssueResetToken(r.Context(), req.Email); err != nil {
		if domain.KindOf(err) == domain.KindInternal {
			h.logger.Error("reset token issuance failed", "error", err)
		}
		httputil.EngineError(w, err)
		return
	}

	h.logger.Info("password reset email sent")
	httputil.JSON(w, http.StatusAccepted, MessageResponse{
		Message: "a password reset email has been sent",
	})
}

// Reset consumes a reset token and sets a new password.
// POST /v1/auth/password/reset
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.engine.ResetPassword(r.Context(), req.Email, req.Token, req.NewPassword); err != nil {
		if domain.KindOf(err) == domain.KindInternal {
			h.logger.Error("password reset failed", "error", err)
		}
		httputil.EngineError(w, err)
		return
	}

	h.logger.Info("password reset successful")
	httputil.JSON(w, http.StatusOK, MessageResponse{
		Message: "password reset successful",
	})
}
