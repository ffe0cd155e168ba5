package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/quillscribe/portal/internal/model"
)

// StatsStore provides aggregate counts for the admin overview.
type StatsStore interface {
	GetUserStats(ctx context.Context) (*model.UserStats, error)
	GetLibraryTotals(ctx context.Context) (*model.LibraryTotals, error)
	CountContactMessagesByStatus(ctx context.Context) (map[string]int, error)
}

// SnapshotSummarizer summarizes stored model snapshots per provider.
type SnapshotSummarizer interface {
	Summaries(ctx context.Context) (map[model.Provider]model.SnapshotSummary, error)
}

// AdminService builds the admin overview.
type AdminService struct {
	store     StatsStore
	snapshots SnapshotSummarizer
}

// NewAdminService creates an AdminService.
func NewAdminService(store StatsStore, snapshots SnapshotSummarizer) *AdminService {
	return &AdminService{store: store, snapshots: snapshots}
}

// Stats gathers user, library, contact and snapshot figures concurrently.
func (s *AdminService) Stats(ctx context.Context) (*model.AdminStats, error) {
	var (
		users     *model.UserStats
		library   *model.LibraryTotals
		contact   map[string]int
		snapshots map[model.Provider]model.SnapshotSummary
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if users, err = s.store.GetUserStats(gctx); err != nil {
			return fmt.Errorf("user stats: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if library, err = s.store.GetLibraryTotals(gctx); err != nil {
			return fmt.Errorf("library totals: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if contact, err = s.store.CountContactMessagesByStatus(gctx); err != nil {
			return fmt.Errorf("contact counts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if snapshots, err = s.snapshots.Summaries(gctx); err != nil {
			return fmt.Errorf("snapshot summaries: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load admin stats: %w", err)
	}

	if contact == nil {
		contact = make(map[string]int)
	}
	for _, status := range []string{model.ContactStatusPending, model.ContactStatusDelivered, model.ContactStatusFailed} {
		if _, ok := contact[status]; !ok {
			contact[status] = 0
		}
	}

	return &model.AdminStats{
		Users:     *users,
		Library:   *library,
		Contact:   contact,
		Snapshots: snapshots,
	}, nil
}
