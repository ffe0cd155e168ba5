package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/quillscribe/portal/internal/model"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrEmailExists          = errors.New("email already exists")
	ErrConfirmationNotFound = errors.New("confirmation token not found")
	ErrConfirmationExpired  = errors.New("confirmation token expired")
)

const profileColumns = `user_id, role, full_name, avatar_url, metadata, updated_at`

// CreateUserWithProfile inserts a user and its profile in one transaction.
func (r *Repository) CreateUserWithProfile(ctx context.Context, user *model.User, profile *model.Profile) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, email_confirmed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.EmailConfirmedAt,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	profile.UserID = user.ID
	if profile.Role == "" {
		profile.Role = model.RoleUser
	}
	if len(profile.Metadata) == 0 {
		profile.Metadata = json.RawMessage("{}")
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO profiles (user_id, role, full_name, avatar_url, metadata, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		profile.UserID,
		profile.Role,
		profile.FullName,
		profile.AvatarURL,
		[]byte(profile.Metadata),
		profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by their ID.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	query := `
		SELECT id, email, password_hash, email_confirmed_at, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// GetUserByEmail retrieves a user by their email address, ignoring case.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `
		SELECT id, email, password_hash, email_confirmed_at, created_at, updated_at
		FROM users
		WHERE LOWER(email) = LOWER($1)
	`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

// GetProfile retrieves the profile for a user.
func (r *Repository) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = $1`
	return scanProfile(r.pool.QueryRow(ctx, query, userID))
}

// UpdateProfile applies the non-nil fields of update and returns the stored profile.
func (r *Repository) UpdateProfile(ctx context.Context, userID string, update model.ProfileUpdate) (*model.Profile, error) {
	var metadata []byte
	if len(update.Metadata) > 0 {
		metadata = update.Metadata
	}

	query := `
		UPDATE profiles
		SET full_name = COALESCE($2, full_name),
		    avatar_url = COALESCE($3, avatar_url),
		    metadata = COALESCE($4::jsonb, metadata),
		    updated_at = $5
		WHERE user_id = $1
		RETURNING ` + profileColumns

	return scanProfile(r.pool.QueryRow(ctx, query,
		userID,
		update.FullName,
		update.AvatarURL,
		metadata,
		time.Now().UTC(),
	))
}

// SetUserRole changes the role stored on a user's profile.
func (r *Repository) SetUserRole(ctx context.Context, userID, role string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE profiles SET role = $2, updated_at = $3 WHERE user_id = $1
	`, userID, role, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set user role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdatePasswordHash replaces a user's password hash.
func (r *Repository) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1
	`, userID, hash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update password hash: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// MarkEmailConfirmed sets email_confirmed_at if it is not already set.
func (r *Repository) MarkEmailConfirmed(ctx context.Context, userID string, at time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE users
		SET email_confirmed_at = COALESCE(email_confirmed_at, $2), updated_at = $2
		WHERE id = $1
	`, userID, at)
	if err != nil {
		return fmt.Errorf("failed to confirm email: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CreateEmailConfirmation stores a hashed confirmation token.
func (r *Repository) CreateEmailConfirmation(ctx context.Context, c *model.EmailConfirmation) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO email_confirmations (token_hash, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
	`, c.TokenHash, c.UserID, c.ExpiresAt, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create email confirmation: %w", err)
	}
	return nil
}

// ConsumeEmailConfirmation deletes the token and confirms its user.
// Returns the confirmed user ID. Tokens are single use, even when expired.
func (r *Repository) ConsumeEmailConfirmation(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var userID string
	var expiresAt time.Time
	err = tx.QueryRow(ctx, `
		DELETE FROM email_confirmations
		WHERE token_hash = $1
		RETURNING user_id, expires_at
	`, tokenHash).Scan(&userID, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrConfirmationNotFound
		}
		return "", fmt.Errorf("failed to consume confirmation: %w", err)
	}

	if now.After(expiresAt) {
		if err := tx.Commit(ctx); err != nil {
			return "", fmt.Errorf("failed to commit confirmation: %w", err)
		}
		return "", ErrConfirmationExpired
	}

	if _, err := tx.Exec(ctx, `
		UPDATE users
		SET email_confirmed_at = COALESCE(email_confirmed_at, $2), updated_at = $2
		WHERE id = $1
	`, userID, now); err != nil {
		return "", fmt.Errorf("failed to confirm email: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit confirmation: %w", err)
	}
	return userID, nil
}

// GetUserStats counts users for the admin overview.
func (r *Repository) GetUserStats(ctx context.Context) (*model.UserStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE p.role = 'admin'),
			COUNT(*) FILTER (WHERE u.email_confirmed_at IS NOT NULL)
		FROM users u
		LEFT JOIN profiles p ON p.user_id = u.id
	`

	var stats model.UserStats
	if err := r.pool.QueryRow(ctx, query).Scan(&stats.Total, &stats.Admins, &stats.Confirmed); err != nil {
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}
	return &stats, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.EmailConfirmedAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &user, nil
}

func scanProfile(row pgx.Row) (*model.Profile, error) {
	var profile model.Profile
	var metadata []byte
	err := row.Scan(
		&profile.UserID,
		&profile.Role,
		&profile.FullName,
		&profile.AvatarURL,
		&metadata,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan profile: %w", err)
	}
	profile.Metadata = json.RawMessage(metadata)
	return &profile, nil
}
