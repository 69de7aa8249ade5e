package profile

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/corvohq/simple-identity/internal/httputil"
	"github.com/corvohq/simple-identity/pkg/domain"
	"github.com/corvohq/simple-identity/pkg/identity"
)

// Handler handles profile read and update endpoints.
type Handler struct {
	logger *slog.Logger
	engine *identity.Engine
}

func NewHandler(logger *slog.Logger, engine *identity.Engine) *Handler {
	return &Handler{logger: logger, engine: engine}
}

// Get returns the requested profile fields.
// GET /v1/users/{id}/profile?fields=username,email
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var fields []string
	for _, f := range strings.Split(r.URL.Query().Get("fields"), ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}

	values, err := h.engine.GetProfile(r.Context(), userID, fields)
	if err != nil {
		if domain.KindOf(err) == domain.KindInternal {
			h.logger.Error("profile read failed", "error", err)
		}
		httputil.EngineError(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, values)
}

// Set updates allow-listed profile fields.
// PATCH /v1/users/{id}/profile
func (h *Handler) Set(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var fields map[string]string
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.engine.SetProfile(r.Context(), userID, fields); err != nil {
		if domain.KindOf(err) == domain.KindInternal {
			h.logger.Error("profile update failed", "error", err)
		}
		httputil.EngineError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
