package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quillscribe/portal/internal/auth"
	"github.com/quillscribe/portal/internal/model"
)

// APIKeyManager manages the caller's API keys.
type APIKeyManager interface {
	Create(ctx context.Context, userID string, req model.APIKeyCreateRequest) (*model.APIKeyCreateResponse, error)
	List(ctx context.Context, userID string) ([]model.APIKeyResponse, error)
	Revoke(ctx context.Context, userID, keyID string) error
	Rotate(ctx context.Context, userID, keyID string) (*model.APIKeyRotateResponse, error)
}

// APIKeyHandler handles API key management endpoints.
type APIKeyHandler struct {
	svc    APIKeyManager
	logger *slog.Logger
}

// NewAPIKeyHandler creates a new APIKeyHandler.
func NewAPIKeyHandler(svc APIKeyManager, logger *slog.Logger) *APIKeyHandler {
	return &APIKeyHandler{
		svc:    svc,
		logger: logger,
	}
}

// CreateAPIKey handles POST /api/admin/api-keys. The plaintext key is only
// returned in this response.
func (h *APIKeyHandler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req model.APIKeyCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	resp, err := h.svc.Create(r.Context(), auth.UserIDFromContext(r.Context()), req)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// ListAPIKeys handles GET /api/admin/api-keys.
func (h *APIKeyHandler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.svc.List(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": keys})
}

// RevokeAPIKey handles DELETE /api/admin/api-keys/{id}.
func (h *APIKeyHandler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Revoke(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RotateAPIKey handles POST /api/admin/api-keys/{id}/rotate.
func (h *APIKeyHandler) RotateAPIKey(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.Rotate(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
