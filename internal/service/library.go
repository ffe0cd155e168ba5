package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/quillscribe/portal/internal/model"
	"github.com/quillscribe/portal/internal/repository"
)

const (
	maxFolderNameLength = 100
	maxTitleLength      = 200
	maxContentLength    = 1 << 20

	// recentWindow is the dashboard "recent transcripts" period.
	recentWindow = 30 * 24 * time.Hour
)

// LibraryStore persists folders and transcripts.
type LibraryStore interface {
	CreateFolder(ctx context.Context, folder *model.Folder) error
	ListFolders(ctx context.Context, userID string) ([]*model.Folder, error)
	GetFolder(ctx context.Context, userID, id string) (*model.Folder, error)
	DeleteFolder(ctx context.Context, userID, id string) error
	CreateTranscript(ctx context.Context, t *model.Transcript) error
	GetTranscript(ctx context.Context, userID, id string) (*model.Transcript, error)
	ListTranscripts(ctx context.Context, userID string, filter model.TranscriptFilter) ([]*model.Transcript, error)
	UpdateTranscript(ctx context.Context, userID, id string, update model.TranscriptUpdate, now time.Time) error
	DeleteTranscript(ctx context.Context, userID, id string) error
	GetDashboardStats(ctx context.Context, userID string, since time.Time) (*model.DashboardStats, error)
}

// LibraryService manages a user's folders and transcripts. Every call is
// scoped to userID.
type LibraryService struct {
	store LibraryStore
	now   func() time.Time
}

// NewLibraryService creates a LibraryService.
func NewLibraryService(store LibraryStore) *LibraryService {
	return &LibraryService{store: store, now: time.Now}
}

// CreateTranscriptInput is the body of a create transcript request.
type CreateTranscriptInput struct {
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	FolderID *string `json:"folderId,omitempty"`
}

// DashboardStats summarizes the user's library over the recent window.
func (s *LibraryService) DashboardStats(ctx context.Context, userID string) (*model.DashboardStats, error) {
	stats, err := s.store.GetDashboardStats(ctx, userID, s.now().UTC().Add(-recentWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to load dashboard stats: %w", err)
	}
	return stats, nil
}

// Folders lists the user's folders with transcript counts.
func (s *LibraryService) Folders(ctx context.Context, userID string) ([]*model.Folder, error) {
	folders, err := s.store.ListFolders(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	if folders == nil {
		folders = []*model.Folder{}
	}
	return folders, nil
}

// CreateFolder adds a folder. Names are unique per user, ignoring case.
func (s *LibraryService) CreateFolder(ctx context.Context, userID, name string) (*model.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "is required")
	}
	if utf8.RuneCountInString(name) > maxFolderNameLength {
		return nil, invalid("name", fmt.Sprintf("must be at most %d characters", maxFolderNameLength))
	}

	folder := &model.Folder{
		ID:        ulid.Make().String(),
		UserID:    userID,
		Name:      name,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateFolder(ctx, folder); err != nil {
		if errors.Is(err, repository.ErrFolderExists) {
			return nil, ErrFolderExists
		}
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}
	return folder, nil
}

// DeleteFolder removes a folder. Its transcripts are kept without a folder.
func (s *LibraryService) DeleteFolder(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteFolder(ctx, userID, id); err != nil {
		if errors.Is(err, repository.ErrFolderNotFound) {
			return ErrFolderNotFound
		}
		return fmt.Errorf("failed to delete folder: %w", err)
	}
	return nil
}

// Transcripts lists the user's transcripts, newest modification first.
func (s *LibraryService) Transcripts(ctx context.Context, userID string, filter model.TranscriptFilter) ([]*model.Transcript, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	transcripts, err := s.store.ListTranscripts(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}
	if transcripts == nil {
		transcripts = []*model.Transcript{}
	}
	return transcripts, nil
}

// Transcript returns one transcript with its content.
func (s *LibraryService) Transcript(ctx context.Context, userID, id string) (*model.Transcript, error) {
	t, err := s.store.GetTranscript(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrTranscriptNotFound) {
			return nil, ErrTranscriptNotFound
		}
		return nil, fmt.Errorf("failed to get transcript: %w", err)
	}
	return t, nil
}

// CreateTranscript stores a transcript, optionally in one of the user's folders.
func (s *LibraryService) CreateTranscript(ctx context.Context, userID string, input CreateTranscriptInput) (*model.Transcript, error) {
	title := strings.TrimSpace(input.Title)
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if len(input.Content) > maxContentLength {
		return nil, invalid("content", "is too large")
	}

	var folderID *string
	if input.FolderID != nil && *input.FolderID != "" {
		if err := s.checkFolder(ctx, userID, *input.FolderID); err != nil {
			return nil, err
		}
		folderID = input.FolderID
	}

	now := s.now().UTC()
	t := &model.Transcript{
		ID:           ulid.Make().String(),
		UserID:       userID,
		FolderID:     folderID,
		Title:        title,
		Content:      input.Content,
		LastModified: now,
		CreatedAt:    now,
	}
	if err := s.store.CreateTranscript(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create transcript: %w", err)
	}
	return s.Transcript(ctx, userID, t.ID)
}

// UpdateTranscript applies a partial update and returns the stored transcript.
func (s *LibraryService) UpdateTranscript(ctx context.Context, userID, id string, update model.TranscriptUpdate) (*model.Transcript, error) {
	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if err := validateTitle(title); err != nil {
			return nil, err
		}
		update.Title = &title
	}
	if update.Content != nil && len(*update.Content) > maxContentLength {
		return nil, invalid("content", "is too large")
	}
	if update.FolderID != nil && *update.FolderID != "" {
		if err := s.checkFolder(ctx, userID, *update.FolderID); err != nil {
			return nil, err
		}
	}

	if err := s.store.UpdateTranscript(ctx, userID, id, update, s.now().UTC()); err != nil {
		if errors.Is(err, repository.ErrTranscriptNotFound) {
			return nil, ErrTranscriptNotFound
		}
		return nil, fmt.Errorf("failed to update transcript: %w", err)
	}
	return s.Transcript(ctx, userID, id)
}

// DeleteTranscript removes a transcript.
func (s *LibraryService) DeleteTranscript(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteTranscript(ctx, userID, id); err != nil {
		if errors.Is(err, repository.ErrTranscriptNotFound) {
			return ErrTranscriptNotFound
		}
		return fmt.Errorf("failed to delete transcript: %w", err)
	}
	return nil
}

// checkFolder ensures folderID belongs to the user.
func (s *LibraryService) checkFolder(ctx context.Context, userID, folderID string) error {
	if _, err := s.store.GetFolder(ctx, userID, folderID); err != nil {
		if errors.Is(err, repository.ErrFolderNotFound) {
			return ErrFolderNotFound
		}
		return fmt.Errorf("failed to get folder: %w", err)
	}
	return nil
}

func validateTitle(title string) error {
	if title == "" {
		return invalid("title", "is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return invalid("title", fmt.Sprintf("must be at most %d characters", maxTitleLength))
	}
	return nil
}
