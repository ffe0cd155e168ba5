package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/quillscribe/portal/internal/model"
)

// Common errors for library repository operations.
var (
	ErrFolderNotFound     = errors.New("folder not found")
	ErrFolderExists       = errors.New("folder already exists")
	ErrTranscriptNotFound = errors.New("transcript not found")
)

// CreateFolder inserts a folder for its owner.
func (r *Repository) CreateFolder(ctx context.Context, folder *model.Folder) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO folders (id, user_id, name, created_at)
		VALUES ($1, $2, $3, $4)
	`, folder.ID, folder.UserID, folder.Name, folder.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrFolderExists
		}
		return fmt.Errorf("failed to create folder: %w", err)
	}
	return nil
}

// ListFolders returns a user's folders with their transcript counts, ordered by name.
func (r *Repository) ListFolders(ctx context.Context, userID string) ([]*model.Folder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT f.id, f.user_id, f.name, COUNT(t.id), f.created_at
		FROM folders f
		LEFT JOIN transcripts t ON t.folder_id = f.id
		WHERE f.user_id = $1
		GROUP BY f.id
		ORDER BY LOWER(f.name), f.created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	defer rows.Close()

	folders := make([]*model.Folder, 0)
	for rows.Next() {
		var f model.Folder
		if err := rows.Scan(&f.ID, &f.UserID, &f.Name, &f.TranscriptCount, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		folders = append(folders, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating folders: %w", err)
	}
	return folders, nil
}

// GetFolder retrieves one of a user's folders.
func (r *Repository) GetFolder(ctx context.Context, userID, id string) (*model.Folder, error) {
	var f model.Folder
	err := r.pool.QueryRow(ctx, `
		SELECT f.id, f.user_id, f.name,
		       (SELECT COUNT(*) FROM transcripts t WHERE t.folder_id = f.id),
		       f.created_at
		FROM folders f
		WHERE f.id = $1 AND f.user_id = $2
	`, id, userID).Scan(&f.ID, &f.UserID, &f.Name, &f.TranscriptCount, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFolderNotFound
		}
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}
	return &f, nil
}

// DeleteFolder removes a folder. Its transcripts move out of the folder.
func (r *Repository) DeleteFolder(ctx context.Context, userID, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM folders WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrFolderNotFound
	}
	return nil
}

// CreateTranscript inserts a transcript for its owner.
func (r *Repository) CreateTranscript(ctx context.Context, t *model.Transcript) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO transcripts (id, user_id, folder_id, title, content, last_modified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, t.ID, t.UserID, t.FolderID, t.Title, t.Content, t.LastModified, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create transcript: %w", err)
	}
	return nil
}

// GetTranscript retrieves one of a user's transcripts with its content.
func (r *Repository) GetTranscript(ctx context.Context, userID, id string) (*model.Transcript, error) {
	query := `
		SELECT t.id, t.user_id, t.folder_id, COALESCE(f.name, ''), t.title, t.content, t.last_modified, t.created_at
		FROM transcripts t
		LEFT JOIN folders f ON f.id = t.folder_id
		WHERE t.id = $1 AND t.user_id = $2
	`

	var t model.Transcript
	err := r.pool.QueryRow(ctx, query, id, userID).Scan(
		&t.ID, &t.UserID, &t.FolderID, &t.Folder, &t.Title, &t.Content, &t.LastModified, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTranscriptNotFound
		}
		return nil, fmt.Errorf("failed to get transcript: %w", err)
	}
	return &t, nil
}

// ListTranscripts returns a user's transcripts without content, newest modification first.
func (r *Repository) ListTranscripts(ctx context.Context, userID string, filter model.TranscriptFilter) ([]*model.Transcript, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT t.id, t.user_id, t.folder_id, COALESCE(f.name, ''), t.title, t.last_modified, t.created_at
		FROM transcripts t
		LEFT JOIN folders f ON f.id = t.folder_id
		WHERE t.user_id = $1`)
	args := []any{userID}

	if filter.FolderID != "" {
		args = append(args, filter.FolderID)
		fmt.Fprintf(&sb, " AND t.folder_id = $%d", len(args))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, likePattern(search))
		fmt.Fprintf(&sb, " AND t.title ILIKE $%d", len(args))
	}
	sb.WriteString(" ORDER BY t.last_modified DESC, t.id")

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}
	defer rows.Close()

	transcripts := make([]*model.Transcript, 0)
	for rows.Next() {
		var t model.Transcript
		if err := rows.Scan(&t.ID, &t.UserID, &t.FolderID, &t.Folder, &t.Title, &t.LastModified, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transcript: %w", err)
		}
		transcripts = append(transcripts, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transcripts: %w", err)
	}
	return transcripts, nil
}

// UpdateTranscript applies the non-nil fields of update and bumps last_modified.
// An empty FolderID clears the folder.
func (r *Repository) UpdateTranscript(ctx context.Context, userID, id string, update model.TranscriptUpdate, now time.Time) error {
	setFolder := update.FolderID != nil
	var folderID *string
	if setFolder && *update.FolderID != "" {
		folderID = update.FolderID
	}

	result, err := r.pool.Exec(ctx, `
		UPDATE transcripts
		SET title = COALESCE($3, title),
		    content = COALESCE($4, content),
		    folder_id = CASE WHEN $5 THEN $6 ELSE folder_id END,
		    last_modified = $7
		WHERE id = $1 AND user_id = $2
	`, id, userID, update.Title, update.Content, setFolder, folderID, now)
	if err != nil {
		return fmt.Errorf("failed to update transcript: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrTranscriptNotFound
	}
	return nil
}

// DeleteTranscript removes one of a user's transcripts.
func (r *Repository) DeleteTranscript(ctx context.Context, userID, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM transcripts WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete transcript: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrTranscriptNotFound
	}
	return nil
}

// GetDashboardStats summarizes a user's library. Recent counts transcripts created since.
func (r *Repository) GetDashboardStats(ctx context.Context, userID string, since time.Time) (*model.DashboardStats, error) {
	var stats model.DashboardStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM transcripts WHERE user_id = $1),
			(SELECT COUNT(*) FROM folders WHERE user_id = $1),
			(SELECT COUNT(*) FROM transcripts WHERE user_id = $1 AND created_at >= $2),
			(SELECT MAX(last_modified) FROM transcripts WHERE user_id = $1)
	`, userID, since).Scan(&stats.Transcripts, &stats.Folders, &stats.RecentTranscripts, &stats.LastModified)
	if err != nil {
		return nil, fmt.Errorf("failed to get dashboard stats: %w", err)
	}
	return &stats, nil
}

// GetLibraryTotals counts folders and transcripts across all users.
func (r *Repository) GetLibraryTotals(ctx context.Context) (*model.LibraryTotals, error) {
	var totals model.LibraryTotals
	err := r.pool.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM transcripts), (SELECT COUNT(*) FROM folders)
	`).Scan(&totals.Transcripts, &totals.Folders)
	if err != nil {
		return nil, fmt.Errorf("failed to get library totals: %w", err)
	}
	return &totals, nil
}
