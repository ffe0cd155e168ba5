package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quillscribe/portal/internal/auth"
	"github.com/quillscribe/portal/internal/handler/dto"
	"github.com/quillscribe/portal/internal/model"
	"github.com/quillscribe/portal/internal/service"
)

// Library is the per-user folder and transcript store.
type Library interface {
	DashboardStats(ctx context.Context, userID string) (*model.DashboardStats, error)
	Folders(ctx context.Context, userID string) ([]*model.Folder, error)
	CreateFolder(ctx context.Context, userID, name string) (*model.Folder, error)
	DeleteFolder(ctx context.Context, userID, id string) error
	Transcripts(ctx context.Context, userID string, filter model.TranscriptFilter) ([]*model.Transcript, error)
	Transcript(ctx context.Context, userID, id string) (*model.Transcript, error)
	CreateTranscript(ctx context.Context, userID string, input service.CreateTranscriptInput) (*model.Transcript, error)
	UpdateTranscript(ctx context.Context, userID, id string, update model.TranscriptUpdate) (*model.Transcript, error)
	DeleteTranscript(ctx context.Context, userID, id string) error
}

// LibraryHandler handles dashboard and library endpoints. Every call is
// scoped to the authenticated user.
type LibraryHandler struct {
	svc    Library
	logger *slog.Logger
}

// NewLibraryHandler creates a new LibraryHandler.
func NewLibraryHandler(svc Library, logger *slog.Logger) *LibraryHandler {
	return &LibraryHandler{svc: svc, logger: logger}
}

// DashboardStats handles GET /api/dashboard/stats.
func (h *LibraryHandler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.DashboardStats(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ListFolders handles GET /api/library/folders.
func (h *LibraryHandler) ListFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := h.svc.Folders(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"folders": folders})
}

// CreateFolder handles POST /api/library/folders.
func (h *LibraryHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateFolderRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	folder, err := h.svc.CreateFolder(r.Context(), auth.UserIDFromContext(r.Context()), req.Name)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, folder)
}

// DeleteFolder handles DELETE /api/library/folders/{id}.
func (h *LibraryHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteFolder(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTranscripts handles GET /api/library/transcripts?folder=&search=.
func (h *LibraryHandler) ListTranscripts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := model.TranscriptFilter{
		FolderID: query.Get("folder"),
		Search:   query.Get("search"),
	}

	transcripts, err := h.svc.Transcripts(r.Context(), auth.UserIDFromContext(r.Context()), filter)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transcripts": transcripts})
}

// CreateTranscript handles POST /api/library/transcripts.
func (h *LibraryHandler) CreateTranscript(w http.ResponseWriter, r *http.Request) {
	var input service.CreateTranscriptInput
	if err := decodeJSON(r, &input); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	t, err := h.svc.CreateTranscript(r.Context(), auth.UserIDFromContext(r.Context()), input)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("transcript_created", "transcript_id", t.ID, "has_folder", t.FolderID != nil)
	writeJSON(w, http.StatusCreated, t)
}

// GetTranscript handles GET /api/library/transcripts/{id}.
func (h *LibraryHandler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Transcript(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// UpdateTranscript handles PATCH /api/library/transcripts/{id}.
func (h *LibraryHandler) UpdateTranscript(w http.ResponseWriter, r *http.Request) {
	var update model.TranscriptUpdate
	if err := decodeJSON(r, &update); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	t, err := h.svc.UpdateTranscript(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "id"), update)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// DeleteTranscript handles DELETE /api/library/transcripts/{id}.
func (h *LibraryHandler) DeleteTranscript(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteTranscript(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
