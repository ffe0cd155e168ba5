package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/quillscribe/portal/internal/auth"
	"github.com/quillscribe/portal/internal/model"
	"github.com/quillscribe/portal/internal/repository"
)

const maxKeyNameLength = 100

// APIKeyStore persists API keys.
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, key *model.APIKey) error
	ListAPIKeysByUserID(ctx context.Context, userID string) ([]*model.APIKey, error)
	// Revoke and rotate match only active keys owned by userID and report
	// anything else as repository.ErrAPIKeyNotFound.
	RevokeUserAPIKey(ctx context.Context, userID, id string, at time.Time) error
	// RotateUserAPIKey copies the old key's name and scopes onto next.
	RotateUserAPIKey(ctx context.Context, userID, oldID string, next *model.APIKey, at time.Time) error
}

// KeyInvalidator drops cached auth for a key id.
type KeyInvalidator interface {
	InvalidateAPIKey(ctx context.Context, keyID string) error
}

// APIKeyService manages API keys owned by users.
type APIKeyService struct {
	store  APIKeyStore
	cache  KeyInvalidator
	env    string
	logger *slog.Logger
	now    func() time.Time
}

// NewAPIKeyService creates an APIKeyService. env selects the key marker
// ("live" or "test"). cache may be nil.
func NewAPIKeyService(store APIKeyStore, cache KeyInvalidator, env string, logger *slog.Logger) *APIKeyService {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIKeyService{
		store:  store,
		cache:  cache,
		env:    env,
		logger: logger.With("component", "api_keys"),
		now:    time.Now,
	}
}

// Create issues a new key for userID. The plaintext is only returned here.
func (s *APIKeyService) Create(ctx context.Context, userID string, req model.APIKeyCreateRequest) (*model.APIKeyCreateResponse, error) {
	scopes, err := normalizeScopes(req.Scopes)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if len(name) > maxKeyNameLength {
		return nil, invalid("name", fmt.Sprintf("must be at most %d characters", maxKeyNameLength))
	}

	key, generated, err := s.newKey(userID, name, scopes)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateAPIKey(ctx, key); err != nil {
		return nil, fmt.Errorf("failed to create API key: %w", err)
	}

	s.logger.Info("api key created",
		slog.String("key_id", key.ID),
		slog.String("key_prefix", key.KeyPrefix),
		slog.String("user_id", userID),
	)
	return createResponse(key, generated.Plaintext), nil
}

// List returns the caller's keys without secrets.
func (s *APIKeyService) List(ctx context.Context, userID string) ([]model.APIKeyResponse, error) {
	keys, err := s.store.ListAPIKeysByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list API keys: %w", err)
	}
	out := make([]model.APIKeyResponse, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.ToResponse())
	}
	return out, nil
}

// Revoke revokes one of the caller's active keys. Keys of other users look
// missing.
func (s *APIKeyService) Revoke(ctx context.Context, userID, keyID string) error {
	if err := s.store.RevokeUserAPIKey(ctx, userID, keyID, s.now().UTC()); err != nil {
		if errors.Is(err, repository.ErrAPIKeyNotFound) {
			return ErrAPIKeyNotFound
		}
		return fmt.Errorf("failed to revoke API key: %w", err)
	}
	s.invalidate(ctx, keyID)

	s.logger.Info("api key revoked", slog.String("key_id", keyID), slog.String("user_id", userID))
	return nil
}

// Rotate revokes a key and issues a replacement with the same name and scopes.
func (s *APIKeyService) Rotate(ctx context.Context, userID, keyID string) (*model.APIKeyRotateResponse, error) {
	key, generated, err := s.newKey(userID, "", nil)
	if err != nil {
		return nil, err
	}
	revokedAt := s.now().UTC()
	if err := s.store.RotateUserAPIKey(ctx, userID, keyID, key, revokedAt); err != nil {
		if errors.Is(err, repository.ErrAPIKeyNotFound) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, fmt.Errorf("failed to rotate API key: %w", err)
	}
	s.invalidate(ctx, keyID)

	s.logger.Info("api key rotated",
		slog.String("old_key_id", keyID),
		slog.String("new_key_id", key.ID),
		slog.String("user_id", userID),
	)
	return &model.APIKeyRotateResponse{
		OldKeyID:        keyID,
		OldKeyRevokedAt: revokedAt,
		NewKey:          *createResponse(key, generated.Plaintext),
	}, nil
}

func (s *APIKeyService) newKey(userID, name string, scopes []string) (*model.APIKey, *auth.GeneratedKey, error) {
	generated, err := auth.GenerateAPIKey(s.env)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate API key: %w", err)
	}
	return &model.APIKey{
		ID:        ulid.Make().String(),
		UserID:    userID,
		KeyHash:   generated.Hash,
		KeyPrefix: generated.Prefix,
		Scopes:    scopes,
		Name:      name,
		CreatedAt: s.now().UTC(),
	}, generated, nil
}

func (s *APIKeyService) invalidate(ctx context.Context, keyID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAPIKey(ctx, keyID); err != nil {
		s.logger.Warn("failed to invalidate cached api key",
			slog.String("key_id", keyID),
			slog.String("error", err.Error()),
		)
	}
}

func createResponse(key *model.APIKey, plaintext string) *model.APIKeyCreateResponse {
	return &model.APIKeyCreateResponse{
		ID:        key.ID,
		Key:       plaintext,
		Name:      key.Name,
		KeyPrefix: key.KeyPrefix,
		Scopes:    key.Scopes,
		CreatedAt: key.CreatedAt,
	}
}

// normalizeScopes validates scopes, drops duplicates and defaults to read.
func normalizeScopes(scopes []string) ([]string, error) {
	if len(scopes) == 0 {
		return []string{model.ScopeRead}, nil
	}
	out := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		if !slices.Contains(model.ValidScopes, scope) {
			return nil, invalid("scopes", fmt.Sprintf("unknown scope %q", scope))
		}
		if !slices.Contains(out, scope) {
			out = append(out, scope)
		}
	}
	return out, nil
}
