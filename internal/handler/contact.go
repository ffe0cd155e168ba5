package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/quillscribe/portal/internal/handler/dto"
	"github.com/quillscribe/portal/internal/model"
)

// ContactSubmitter accepts contact form messages.
type ContactSubmitter interface {
	Submit(ctx context.Context, req model.ContactCreateRequest) (*model.ContactMessage, error)
}

// ContactHandler handles the public contact form.
type ContactHandler struct {
	svc    ContactSubmitter
	logger *slog.Logger
}

// NewContactHandler creates a new ContactHandler.
func NewContactHandler(svc ContactSubmitter, logger *slog.Logger) *ContactHandler {
	return &ContactHandler{svc: svc, logger: logger}
}

// Submit handles POST /api/contact. Delivery happens asynchronously, so a
// stored message is acknowledged with 202.
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req model.ContactCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	msg, err := h.svc.Submit(r.Context(), req)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, dto.ContactResponse{ID: msg.ID, Status: msg.Status})
}
