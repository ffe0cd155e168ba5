package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrSettingNotFound is returned when no row exists for a settings key.
var ErrSettingNotFound = errors.New("setting not found")

// Settings keys stored in app_settings.
const (
	SettingTheme         = "theme"
	SettingDefaultModels = "default_models"
)

// GetSetting loads the raw JSON value stored under key.
func (r *Repository) GetSetting(ctx context.Context, key string) (json.RawMessage, error) {
	var value []byte
	err := r.pool.QueryRow(ctx, `SELECT value FROM app_settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSettingNotFound
		}
		return nil, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return json.RawMessage(value), nil
}

// GetSettingInto decodes the value stored under key into dst.
func (r *Repository) GetSettingInto(ctx context.Context, key string, dst any) error {
	raw, err := r.GetSetting(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode setting %s: %w", key, err)
	}
	return nil
}

// PutSetting upserts the JSON encoding of value under key.
func (r *Repository) PutSetting(ctx context.Context, key string, value any, updatedBy string) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode setting %s: %w", key, err)
	}

	var by *string
	if updatedBy != "" {
		by = &updatedBy
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO app_settings (key, value, updated_by, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at
	`, key, encoded, by, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to put setting %s: %w", key, err)
	}
	return nil
}

// DeleteSetting removes the row stored under key.
func (r *Repository) DeleteSetting(ctx context.Context, key string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM app_settings WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	if result.RowsAffected() == 0 {
		return ErrSettingNotFound
	}
	return nil
}
