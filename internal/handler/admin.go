package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/quillscribe/portal/internal/handler/dto"
	"github.com/quillscribe/portal/internal/logbuffer"
	"github.com/quillscribe/portal/internal/metrics"
	"github.com/quillscribe/portal/internal/model"
)

const defaultLogLimit = 100

// StatsProvider builds the admin overview.
type StatsProvider interface {
	Stats(ctx context.Context) (*model.AdminStats, error)
}

// LogSource is the in-memory log ring read by the log viewer.
type LogSource interface {
	Entries(minLevel slog.Level, limit int) []logbuffer.Entry
	Len() int
	Cap() int
}

// AdminHandler provides admin-only overview and operations endpoints.
type AdminHandler struct {
	stats   StatsProvider
	logs    LogSource
	counter metrics.Snapshotter
	started time.Time
	logger  *slog.Logger
}

// NewAdminHandler creates a new AdminHandler. counter may be nil.
func NewAdminHandler(stats StatsProvider, logs LogSource, counter metrics.Snapshotter, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		stats:   stats,
		logs:    logs,
		counter: counter,
		started: time.Now(),
		logger:  logger,
	}
}

// StatsResponse is the admin overview with process counters.
type StatsResponse struct {
	*model.AdminStats
	Metrics *metrics.Snapshot `json:"metrics,omitempty"`
	Uptime  string            `json:"uptime"`
}

// Stats handles GET /api/admin/stats.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	stats, err := h.stats.Stats(ctx)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	resp := StatsResponse{
		AdminStats: stats,
		Uptime:     time.Since(h.started).Round(time.Second).String(),
	}
	if h.counter != nil {
		snap := h.counter.Snapshot()
		resp.Metrics = &snap
	}
	writeJSON(w, http.StatusOK, resp)
}

// Logs handles GET /api/admin/logs?level={debug|info|warn|error}&limit={n}.
// Entries are newest first.
func (h *AdminHandler) Logs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := defaultLogLimit
	if l := query.Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer")
			return
		}
		limit = min(parsed, h.logs.Cap())
	}

	entries := h.logs.Entries(logbuffer.ParseLevel(query.Get("level")), limit)
	writeJSON(w, http.StatusOK, dto.LogsResponse{
		Entries:  entries,
		Count:    len(entries),
		Capacity: h.logs.Cap(),
	})
}
