package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quillscribe/portal/internal/cache"
	"github.com/quillscribe/portal/internal/catalog"
	"github.com/quillscribe/portal/internal/metrics"
	"github.com/quillscribe/portal/internal/model"
	"github.com/quillscribe/portal/internal/provider"
	"github.com/quillscribe/portal/internal/snapshot"
)

// DefaultRefreshLockTTL bounds how long a crashed instance can hold the refresh lock.
const DefaultRefreshLockTTL = 2 * time.Minute

// SnapshotCache is the read-through cache in front of the snapshot store.
// SetSnapshot must refuse a document older than the cached one and report
// whether it stored doc.
type SnapshotCache interface {
	GetSnapshot(ctx context.Context, p model.Provider) (*snapshot.Document, error)
	SetSnapshot(ctx context.Context, p model.Provider, doc *snapshot.Document, ttl time.Duration) (bool, error)
	DeleteSnapshot(ctx context.Context, p model.Provider) error
}

// Locker acquires cross-instance locks.
type Locker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (*cache.Lock, error)
}

// RefreshResult describes a completed refresh.
type RefreshResult struct {
	Provider    model.Provider
	Message     string
	Count       int
	LastUpdated string
	Source      string
}

// RefreshService fetches provider listings and replaces their snapshots.
type RefreshService struct {
	listers  provider.Registry
	store    snapshot.Store
	cache    SnapshotCache
	locker   Locker
	metrics  metrics.Recorder
	logger   *slog.Logger
	lockTTL  time.Duration
	cacheTTL time.Duration
	now      func() time.Time

	locks map[model.Provider]*sync.Mutex
}

// NewRefreshService creates a RefreshService. cache and locker may be nil.
// Refreshed documents are written to the cache with cacheTTL.
func NewRefreshService(
	listers provider.Registry,
	store snapshot.Store,
	snapshotCache SnapshotCache,
	cacheTTL time.Duration,
	locker Locker,
	recorder metrics.Recorder,
	logger *slog.Logger,
) *RefreshService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}

	locks := make(map[model.Provider]*sync.Mutex, len(model.Providers))
	for _, p := range model.Providers {
		locks[p] = &sync.Mutex{}
	}

	return &RefreshService{
		listers:  listers,
		store:    store,
		cache:    snapshotCache,
		locker:   locker,
		metrics:  recorder,
		logger:   logger.With("component", "refresh"),
		lockTTL:  DefaultRefreshLockTTL,
		cacheTTL: cacheTTL,
		now:      time.Now,
		locks:    locks,
	}
}

// Refresh lists the provider's models, normalizes them and replaces the snapshot.
// OpenAI failures are returned. Anthropic and Gemini failures fall back to the
// static catalog and are reported with source "fallback".
func (s *RefreshService) Refresh(ctx context.Context, providerName string) (*RefreshResult, error) {
	p, ok := model.ParseProvider(providerName)
	if !ok {
		return nil, ErrInvalidProvider
	}

	mu := s.locks[p]
	if !mu.TryLock() {
		return nil, ErrRefreshInProgress
	}
	defer mu.Unlock()

	release, err := s.acquireDistributedLock(ctx, p)
	if err != nil {
		return nil, err
	}
	defer release()

	start := s.now()
	models, source, err := s.fetch(ctx, p)
	if err != nil {
		s.metrics.IncModelRefreshFailure(string(p))
		return nil, err
	}

	doc := snapshot.NewDocument(models, source, s.now())
	if err := s.store.Save(ctx, p, doc); err != nil {
		s.metrics.IncModelRefreshFailure(string(p))
		return nil, fmt.Errorf("failed to save %s snapshot: %w", p, err)
	}

	if s.cache != nil {
		s.writeThrough(ctx, p, doc)
	}

	s.metrics.ObserveModelRefresh(string(p), source, s.now().Sub(start), doc.Count)
	s.logger.Info("models refreshed",
		slog.String("provider", string(p)),
		slog.String("source", source),
		slog.Int("count", doc.Count),
	)

	return &RefreshResult{
		Provider:    p,
		Message:     fmt.Sprintf("Successfully refreshed %d %s models", doc.Count, p.DisplayName()),
		Count:       doc.Count,
		LastUpdated: doc.LastUpdated,
		Source:      source,
	}, nil
}

// RefreshOutcome is one provider's entry in a RefreshAll result.
type RefreshOutcome struct {
	Result *RefreshResult
	Err    error
}

// RefreshAll refreshes every provider concurrently. Each provider is attempted
// independently, so one failure does not cancel the others.
func (s *RefreshService) RefreshAll(ctx context.Context) map[model.Provider]RefreshOutcome {
	outcomes := make([]RefreshOutcome, len(model.Providers))

	var g errgroup.Group
	for i, p := range model.Providers {
		g.Go(func() error {
			res, err := s.Refresh(ctx, string(p))
			outcomes[i] = RefreshOutcome{Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[model.Provider]RefreshOutcome, len(outcomes))
	for i, p := range model.Providers {
		out[p] = outcomes[i]
	}
	return out
}

func (s *RefreshService) fetch(ctx context.Context, p model.Provider) ([]model.AIModel, string, error) {
	lister, err := s.listers.Get(p)
	var models []model.AIModel
	if err == nil {
		models, err = lister.ListModels(ctx)
	}
	if err == nil {
		return models, snapshot.SourceUpstream, nil
	}

	if errors.Is(err, context.Canceled) {
		return nil, "", err
	}

	switch p {
	case model.ProviderAnthropic:
		return s.fallback(p, catalog.AnthropicFallback(), err)
	case model.ProviderGemini:
		return s.fallback(p, catalog.GeminiFallback(), err)
	default:
		return nil, "", fmt.Errorf("failed to list %s models: %w", p, err)
	}
}

func (s *RefreshService) fallback(p model.Provider, models []model.AIModel, cause error) ([]model.AIModel, string, error) {
	s.metrics.IncProviderFallback(string(p))
	s.logger.Warn("provider listing failed, using fallback models",
		slog.String("provider", string(p)),
		slog.String("error", cause.Error()),
		slog.Int("count", len(models)),
	)
	return models, snapshot.SourceFallback, nil
}

// acquireDistributedLock takes the Redis refresh lock. Redis errors other than
// a held lock degrade to the in-process mutex.
func (s *RefreshService) acquireDistributedLock(ctx context.Context, p model.Provider) (func(), error) {
	noop := func() {}
	if s.locker == nil {
		return noop, nil
	}

	lock, err := s.locker.AcquireLock(ctx, "refresh:"+string(p), s.lockTTL)
	if err != nil {
		if errors.Is(err, cache.ErrLockHeld) {
			return nil, ErrRefreshInProgress
		}
		s.logger.Warn("refresh lock unavailable, continuing with local lock only",
			slog.String("provider", string(p)),
			slog.String("error", err.Error()),
		)
		return noop, nil
	}

	return func() {
		// Release with a fresh context so a canceled request still frees the lock.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil {
			s.logger.Warn("failed to release refresh lock",
				slog.String("provider", string(p)),
				slog.String("error", err.Error()),
			)
		}
	}, nil
}

// writeThrough replaces the cached document with doc. A write that fails
// drops the entry so readers go back to the store.
func (s *RefreshService) writeThrough(ctx context.Context, p model.Provider, doc *snapshot.Document) {
	_, err := s.cache.SetSnapshot(ctx, p, doc, s.cacheTTL)
	if err == nil {
		return
	}
	s.logger.Warn("failed to cache refreshed snapshot",
		slog.String("provider", string(p)),
		slog.String("error", err.Error()),
	)
	if err := s.cache.DeleteSnapshot(ctx, p); err != nil {
		s.logger.Warn("failed to invalidate snapshot cache",
			slog.String("provider", string(p)),
			slog.String("error", err.Error()),
		)
	}
}
