package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quillscribe/portal/internal/catalog"
	"github.com/quillscribe/portal/internal/metrics"
	"github.com/quillscribe/portal/internal/model"
	"github.com/quillscribe/portal/internal/snapshot"
)

// ModelList is a filtered, sorted view of one provider's snapshot.
type ModelList struct {
	Provider    model.Provider  `json:"provider"`
	Models      []model.AIModel `json:"models"`
	Count       int             `json:"count"`
	Total       int             `json:"total"`
	LastUpdated string          `json:"lastUpdated,omitempty"`
	Source      string          `json:"source,omitempty"`
	Years       []int           `json:"years"`
}

// ModelService reads model snapshots through the Redis cache.
type ModelService struct {
	store    snapshot.Store
	cache    SnapshotCache
	cacheTTL time.Duration
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// NewModelService creates a ModelService. snapshotCache may be nil.
func NewModelService(store snapshot.Store, snapshotCache SnapshotCache, cacheTTL time.Duration, recorder metrics.Recorder, logger *slog.Logger) *ModelService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelService{
		store:    store,
		cache:    snapshotCache,
		cacheTTL: cacheTTL,
		metrics:  recorder,
		logger:   logger.With("component", "models"),
	}
}

// Snapshot returns the stored document for a provider.
func (s *ModelService) Snapshot(ctx context.Context, providerName string) (*snapshot.Document, error) {
	p, ok := model.ParseProvider(providerName)
	if !ok {
		return nil, ErrInvalidProvider
	}
	return s.load(ctx, p)
}

func (s *ModelService) load(ctx context.Context, p model.Provider) (*snapshot.Document, error) {
	if s.cache != nil {
		doc, err := s.cache.GetSnapshot(ctx, p)
		if err == nil {
			s.metrics.IncSnapshotCacheHit(string(p))
			return doc, nil
		}
		s.metrics.IncSnapshotCacheMiss(string(p))
	}

	doc, err := s.store.Load(ctx, p)
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to load %s snapshot: %w", p, err)
	}

	if s.cache != nil {
		stored, err := s.cache.SetSnapshot(ctx, p, doc, s.cacheTTL)
		switch {
		case err != nil:
			s.logger.Warn("failed to cache snapshot",
				slog.String("provider", string(p)),
				slog.String("error", err.Error()),
			)
		case !stored:
			s.logger.Debug("skipped caching older snapshot",
				slog.String("provider", string(p)),
				slog.String("last_updated", doc.LastUpdated),
			)
		}
	}
	return doc, nil
}

// List returns the provider's models matching filter, sorted by type then newest.
func (s *ModelService) List(ctx context.Context, providerName string, filter catalog.Filter) (*ModelList, error) {
	p, ok := model.ParseProvider(providerName)
	if !ok {
		return nil, ErrInvalidProvider
	}
	doc, err := s.load(ctx, p)
	if err != nil {
		return nil, err
	}
	return buildList(p, doc, filter), nil
}

func buildList(p model.Provider, doc *snapshot.Document, filter catalog.Filter) *ModelList {
	models := catalog.SortModels(catalog.FilterModels(doc.Models, filter))
	return &ModelList{
		Provider:    p,
		Models:      models,
		Count:       len(models),
		Total:       len(doc.Models),
		LastUpdated: doc.LastUpdated,
		Source:      doc.Source,
		Years:       catalog.Years(doc.Models),
	}
}

// Get returns a single model from the provider's snapshot.
func (s *ModelService) Get(ctx context.Context, providerName, modelID string) (*model.AIModel, error) {
	doc, err := s.Snapshot(ctx, providerName)
	if err != nil {
		return nil, err
	}
	m, ok := catalog.FindModel(doc.Models, modelID)
	if !ok {
		return nil, ErrModelNotFound
	}
	return &m, nil
}

// Overview loads every provider concurrently. A provider without a snapshot
// yields an empty list.
func (s *ModelService) Overview(ctx context.Context, filter catalog.Filter) (map[model.Provider]*ModelList, error) {
	lists := make([]*ModelList, len(model.Providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range model.Providers {
		g.Go(func() error {
			doc, err := s.load(gctx, p)
			if errors.Is(err, ErrSnapshotNotFound) {
				lists[i] = &ModelList{Provider: p, Models: []model.AIModel{}, Years: []int{}}
				return nil
			}
			if err != nil {
				return err
			}
			lists[i] = buildList(p, doc, filter)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[model.Provider]*ModelList, len(lists))
	for i, p := range model.Providers {
		out[p] = lists[i]
	}
	return out, nil
}

// Summaries returns the count and update time of each provider's snapshot.
func (s *ModelService) Summaries(ctx context.Context) (map[model.Provider]model.SnapshotSummary, error) {
	lists, err := s.Overview(ctx, catalog.Filter{})
	if err != nil {
		return nil, err
	}

	out := make(map[model.Provider]model.SnapshotSummary, len(lists))
	for p, l := range lists {
		summary := model.SnapshotSummary{Count: l.Total, Source: l.Source}
		if l.LastUpdated != "" {
			if t, err := time.Parse(snapshot.TimeFormat, l.LastUpdated); err == nil {
				summary.LastUpdated = &t
			}
		}
		out[p] = summary
	}
	return out, nil
}

// HasModel reports whether modelID exists in the provider's snapshot.
// A provider without a snapshot reports true, since nothing can be checked.
func (s *ModelService) HasModel(ctx context.Context, p model.Provider, modelID string) (bool, error) {
	doc, err := s.load(ctx, p)
	if errors.Is(err, ErrSnapshotNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	_, ok := catalog.FindModel(doc.Models, modelID)
	return ok, nil
}
