package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/quillscribe/portal/internal/model"
)

// ErrAPIKeyNotFound covers missing keys, keys owned by someone else and,
// for mutations, keys that are already revoked.
var ErrAPIKeyNotFound = errors.New("API key not found")

// lastUsedResolution bounds how often a busy key rewrites last_used_at.
const lastUsedResolution = time.Minute

const selectAPIKey = `
	SELECT id, user_id, key_hash, key_prefix, scopes, name, revoked_at, last_used_at, created_at
	FROM api_keys`

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// CreateAPIKey stores a freshly generated key.
func (r *Repository) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	if err := insertAPIKey(ctx, r.pool, key); err != nil {
		return fmt.Errorf("failed to create API key: %w", err)
	}
	return nil
}

// GetUserAPIKey loads a key only when userID owns it.
func (r *Repository) GetUserAPIKey(ctx context.Context, userID, id string) (*model.APIKey, error) {
	key, err := scanAPIKey(r.pool.QueryRow(ctx, selectAPIKey+` WHERE id = $1 AND user_id = $2`, id, userID))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, ErrAPIKeyNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to get API key: %w", err)
	}
	return key, nil
}

// GetAPIKeysByPrefix returns the active keys sharing a display prefix.
// Authentication verifies the hash of each candidate.
func (r *Repository) GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error) {
	keys, err := r.queryAPIKeys(ctx, selectAPIKey+` WHERE key_prefix = $1 AND revoked_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to get API keys by prefix: %w", err)
	}
	return keys, nil
}

// ListAPIKeysByUserID returns every key of a user, newest first, revoked
// ones included so the admin page can show their history.
func (r *Repository) ListAPIKeysByUserID(ctx context.Context, userID string) ([]*model.APIKey, error) {
	keys, err := r.queryAPIKeys(ctx, selectAPIKey+` WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list API keys: %w", err)
	}
	return keys, nil
}

// RevokeUserAPIKey marks one of userID's active keys revoked at the given time.
func (r *Repository) RevokeUserAPIKey(ctx context.Context, userID, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE api_keys
		SET revoked_at = $3
		WHERE id = $1 AND user_id = $2 AND revoked_at IS NULL
	`, id, userID, at)
	if err != nil {
		return fmt.Errorf("failed to revoke API key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}

// RotateUserAPIKey revokes oldID and inserts next in one transaction. The
// replacement inherits the name and scopes of the revoked key; they are
// copied onto next before it is inserted.
func (r *Repository) RotateUserAPIKey(ctx context.Context, userID, oldID string, next *model.APIKey, at time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin rotation: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var scopes []string
	err = tx.QueryRow(ctx, `
		UPDATE api_keys
		SET revoked_at = $3
		WHERE id = $1 AND user_id = $2 AND revoked_at IS NULL
		RETURNING name, scopes
	`, oldID, userID, at).Scan(&next.Name, pq.Array(&scopes))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrAPIKeyNotFound
	case err != nil:
		return fmt.Errorf("failed to revoke rotated API key: %w", err)
	}
	next.UserID = userID
	next.Scopes = scopes

	if err := insertAPIKey(ctx, tx, next); err != nil {
		return fmt.Errorf("failed to insert replacement API key: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit rotation: %w", err)
	}
	return nil
}

// UpdateAPIKeyLastUsed records a successful authentication. Writes inside
// lastUsedResolution of the previous one are skipped.
func (r *Repository) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		UPDATE api_keys
		SET last_used_at = $2
		WHERE id = $1 AND revoked_at IS NULL
		  AND (last_used_at IS NULL OR last_used_at < $3)
	`, id, now, now.Add(-lastUsedResolution))
	if err != nil {
		return fmt.Errorf("failed to update API key last used: %w", err)
	}
	return nil
}

func (r *Repository) queryAPIKeys(ctx context.Context, query string, args ...any) ([]*model.APIKey, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.APIKey, error) {
		return scanAPIKey(row)
	})
}

func insertAPIKey(ctx context.Context, db execer, key *model.APIKey) error {
	_, err := db.Exec(ctx, `
		INSERT INTO api_keys (id, user_id, key_hash, key_prefix, scopes, name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, key.ID, key.UserID, key.KeyHash, key.KeyPrefix, pq.Array(key.Scopes), key.Name, key.CreatedAt)
	return err
}

func scanAPIKey(row pgx.Row) (*model.APIKey, error) {
	var key model.APIKey
	err := row.Scan(
		&key.ID, &key.UserID, &key.KeyHash, &key.KeyPrefix, pq.Array(&key.Scopes),
		&key.Name, &key.RevokedAt, &key.LastUsedAt, &key.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &key, nil
}
