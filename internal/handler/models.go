package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/quillscribe/portal/internal/catalog"
	"github.com/quillscribe/portal/internal/handler/dto"
	"github.com/quillscribe/portal/internal/model"
	"github.com/quillscribe/portal/internal/service"
)

// ModelReader serves model snapshots.
type ModelReader interface {
	List(ctx context.Context, providerName string, filter catalog.Filter) (*service.ModelList, error)
	Get(ctx context.Context, providerName, modelID string) (*model.AIModel, error)
	Overview(ctx context.Context, filter catalog.Filter) (map[model.Provider]*service.ModelList, error)
}

// Refresher replaces provider snapshots.
type Refresher interface {
	Refresh(ctx context.Context, providerName string) (*service.RefreshResult, error)
	RefreshAll(ctx context.Context) map[model.Provider]service.RefreshOutcome
}

// ModelHandler handles model listing and refresh endpoints.
type ModelHandler struct {
	models    ModelReader
	refresher Refresher
	logger    *slog.Logger
}

// NewModelHandler creates a new ModelHandler.
func NewModelHandler(models ModelReader, refresher Refresher, logger *slog.Logger) *ModelHandler {
	return &ModelHandler{
		models:    models,
		refresher: refresher,
		logger:    logger,
	}
}

// List handles GET /api/models/{provider}.
func (h *ModelHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	list, err := h.models.List(r.Context(), chi.URLParam(r, "provider"), filter)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Get handles GET /api/models/{provider}/{modelId}.
func (h *ModelHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, err := h.models.Get(r.Context(), chi.URLParam(r, "provider"), chi.URLParam(r, "modelId"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Overview handles GET /api/admin/models. Providers without a snapshot
// come back as empty lists.
func (h *ModelHandler) Overview(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	overview, err := h.models.Overview(r.Context(), filter)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

// Refresh handles POST /api/refresh-models/{provider}.
func (h *ModelHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	providerName := chi.URLParam(r, "provider")

	result, err := h.refresher.Refresh(r.Context(), providerName)
	if err != nil {
		status, resp := h.refreshError(providerName, err)
		writeJSON(w, status, resp)
		return
	}

	h.logger.Info("models_refreshed",
		"provider", result.Provider,
		"count", result.Count,
		"source", result.Source,
	)
	writeJSON(w, http.StatusOK, toRefreshResponse(result))
}

// RefreshAll handles POST /api/refresh-models. Every provider is attempted;
// the status is 200 only when all of them succeed.
func (h *ModelHandler) RefreshAll(w http.ResponseWriter, r *http.Request) {
	outcomes := h.refresher.RefreshAll(r.Context())

	resp := dto.RefreshAllResponse{
		Success: true,
		Results: make(map[model.Provider]dto.RefreshResponse, len(outcomes)),
	}
	for p, outcome := range outcomes {
		if outcome.Err != nil {
			_, resp.Results[p] = h.refreshError(string(p), outcome.Err)
			resp.Success = false
			continue
		}
		resp.Results[p] = toRefreshResponse(outcome.Result)
	}

	status := http.StatusOK
	if !resp.Success {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, resp)
}

func (h *ModelHandler) refreshError(providerName string, err error) (int, dto.RefreshResponse) {
	switch {
	case errors.Is(err, service.ErrInvalidProvider):
		return http.StatusBadRequest, dto.RefreshResponse{
			Error: "Invalid provider. Must be openai, anthropic, or gemini",
			Code:  "INVALID_PROVIDER",
		}
	case errors.Is(err, service.ErrRefreshInProgress):
		return http.StatusConflict, dto.RefreshResponse{
			Error: service.ErrRefreshInProgress.Error(),
			Code:  "REFRESH_IN_PROGRESS",
		}
	default:
		h.logger.Error("model_refresh_failed",
			"provider", providerName,
			"error", err,
		)
		return http.StatusInternalServerError, dto.RefreshResponse{Error: err.Error()}
	}
}

func toRefreshResponse(result *service.RefreshResult) dto.RefreshResponse {
	count := result.Count
	return dto.RefreshResponse{
		Success:     true,
		Message:     result.Message,
		Count:       &count,
		LastUpdated: result.LastUpdated,
		Source:      result.Source,
	}
}

// parseFilter reads search, type, status and year from the query string.
func parseFilter(r *http.Request) (catalog.Filter, error) {
	query := r.URL.Query()
	filter := catalog.Filter{
		Search: strings.TrimSpace(query.Get("search")),
		Type:   query.Get("type"),
		Status: query.Get("status"),
	}

	if y := query.Get("year"); y != "" && !strings.EqualFold(y, "all") {
		year, err := strconv.Atoi(y)
		if err != nil || year < 1970 || year > 9999 {
			return catalog.Filter{}, &service.ValidationError{Field: "year", Message: "must be a four digit year"}
		}
		filter.Year = year
	}
	return filter, nil
}
