package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/quillscribe/portal/internal/auth"
	"github.com/quillscribe/portal/internal/handler/dto"
	"github.com/quillscribe/portal/internal/model"
)

// SettingsManager reads and writes the theme and default models.
type SettingsManager interface {
	Theme(ctx context.Context) (model.ThemeSettings, error)
	UpdateTheme(ctx context.Context, updates map[string]float64, updatedBy string) (model.ThemeSettings, error)
	ResetTheme(ctx context.Context, updatedBy string) (model.ThemeSettings, error)
	DefaultModels(ctx context.Context) (model.DefaultModelSelection, error)
	SetDefaultModels(ctx context.Context, selection model.DefaultModelSelection, updatedBy string) (model.DefaultModelSelection, error)
}

// SettingsHandler handles theme and default model endpoints.
type SettingsHandler struct {
	svc    SettingsManager
	logger *slog.Logger
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(svc SettingsManager, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{svc: svc, logger: logger}
}

// Theme handles GET /api/settings/theme.
func (h *SettingsHandler) Theme(w http.ResponseWriter, r *http.Request) {
	theme, err := h.svc.Theme(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, theme)
}

// UpdateTheme handles PATCH /api/admin/settings/theme.
func (h *SettingsHandler) UpdateTheme(w http.ResponseWriter, r *http.Request) {
	var req dto.ThemeUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	theme, err := h.svc.UpdateTheme(r.Context(), req.ToUpdates(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, theme)
}

// ResetTheme handles POST /api/admin/settings/theme/reset.
func (h *SettingsHandler) ResetTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := h.svc.ResetTheme(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, theme)
}

// DefaultModels handles GET /api/models/defaults.
func (h *SettingsHandler) DefaultModels(w http.ResponseWriter, r *http.Request) {
	selection, err := h.svc.DefaultModels(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, selection)
}

// SetDefaultModels handles PUT /api/models/defaults.
func (h *SettingsHandler) SetDefaultModels(w http.ResponseWriter, r *http.Request) {
	var selection model.DefaultModelSelection
	if err := decodeJSON(r, &selection); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	saved, err := h.svc.SetDefaultModels(r.Context(), selection, auth.UserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}
