//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quillscribe/portal/internal/model"
	"github.com/quillscribe/portal/internal/testutil"
)

// ============================================================================
// API Key Repository Integration Tests
// ============================================================================

func TestIntegrationAPIKeyRepository_CreateAndGet(t *testing.T) {
	ctx, repo := newTestEnv(t)
	userID := createTestUser(t, ctx, repo)

	key := testutil.NewTestAPIKey(t, userID)
	if err := repo.CreateAPIKey(ctx, key); err != nil {
		t.Fatalf("CreateAPIKey failed: %v", err)
	}

	retrieved, err := repo.GetUserAPIKey(ctx, userID, key.ID)
	if err != nil {
		t.Fatalf("GetUserAPIKey failed: %v", err)
	}

	if retrieved.UserID != userID {
		t.Errorf("UserID mismatch: got %q, want %q", retrieved.UserID, userID)
	}
	if retrieved.KeyHash != key.KeyHash {
		t.Errorf("KeyHash mismatch: got %q, want %q", retrieved.KeyHash, key.KeyHash)
	}
	if len(retrieved.Scopes) != 2 || retrieved.Scopes[0] != model.ScopeRead {
		t.Errorf("Scopes mismatch: got %v", retrieved.Scopes)
	}
}

func TestIntegrationAPIKeyRepository_GetUserAPIKey_Ownership(t *testing.T) {
	ctx, repo := newTestEnv(t)
	owner := createTestUser(t, ctx, repo)
	other := createTestUser(t, ctx, repo)

	key := testutil.NewTestAPIKey(t, owner)
	if err := repo.CreateAPIKey(ctx, key); err != nil {
		t.Fatalf("CreateAPIKey failed: %v", err)
	}

	tests := []struct {
		name   string
		userID string
		keyID  string
	}{
		{"unknown id", owner, "nonexistent-key-id"},
		{"foreign owner", other, key.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := repo.GetUserAPIKey(ctx, tt.userID, tt.keyID); !errors.Is(err, ErrAPIKeyNotFound) {
				t.Errorf("Expected ErrAPIKeyNotFound, got: %v", err)
			}
		})
	}
}

func TestIntegrationAPIKeyRepository_GetByPrefix_SkipsRevoked(t *testing.T) {
	ctx, repo := newTestEnv(t)
	userID := createTestUser(t, ctx, repo)

	active := testutil.NewTestAPIKey(t, userID)
	revoked := testutil.NewTestAPIKey(t, userID)
	revoked.KeyPrefix = active.KeyPrefix
	for _, k := range []*model.APIKey{active, revoked} {
		if err := repo.CreateAPIKey(ctx, k); err != nil {
			t.Fatalf("CreateAPIKey failed: %v", err)
		}
	}
	if err := repo.RevokeUserAPIKey(ctx, userID, revoked.ID, time.Now()); err != nil {
		t.Fatalf("RevokeUserAPIKey failed: %v", err)
	}

	keys, err := repo.GetAPIKeysByPrefix(ctx, active.KeyPrefix)
	if err != nil {
		t.Fatalf("GetAPIKeysByPrefix failed: %v", err)
	}
	if len(keys) != 1 || keys[0].ID != active.ID {
		t.Errorf("expected only the active key, got %d keys", len(keys))
	}
}

func TestIntegrationAPIKeyRepository_Revoke(t *testing.T) {
	ctx, repo := newTestEnv(t)
	owner := createTestUser(t, ctx, repo)
	other := createTestUser(t, ctx, repo)

	key := testutil.NewTestAPIKey(t, owner)
	if err := repo.CreateAPIKey(ctx, key); err != nil {
		t.Fatalf("CreateAPIKey failed: %v", err)
	}

	if err := repo.RevokeUserAPIKey(ctx, other, key.ID, time.Now()); !errors.Is(err, ErrAPIKeyNotFound) {
		t.Errorf("foreign revoke: expected ErrAPIKeyNotFound, got: %v", err)
	}
	if got, _ := repo.GetUserAPIKey(ctx, owner, key.ID); got == nil || got.IsRevoked() {
		t.Fatal("foreign revoke must leave the key active")
	}

	if err := repo.RevokeUserAPIKey(ctx, owner, key.ID, time.Now()); err != nil {
		t.Fatalf("RevokeUserAPIKey failed: %v", err)
	}
	if err := repo.RevokeUserAPIKey(ctx, owner, key.ID, time.Now()); !errors.Is(err, ErrAPIKeyNotFound) {
		t.Errorf("Expected ErrAPIKeyNotFound on second revoke, got: %v", err)
	}
}

func TestIntegrationAPIKeyRepository_Rotate(t *testing.T) {
	ctx, repo := newTestEnv(t)
	userID := createTestUser(t, ctx, repo)
	other := createTestUser(t, ctx, repo)

	oldKey := testutil.NewTestAPIKey(t, userID)
	oldKey.Name = "ci"
	oldKey.Scopes = []string{model.ScopeWrite}
	if err := repo.CreateAPIKey(ctx, oldKey); err != nil {
		t.Fatalf("CreateAPIKey failed: %v", err)
	}

	// A foreign rotation inserts nothing
	stolen := testutil.NewTestAPIKey(t, other)
	if err := repo.RotateUserAPIKey(ctx, other, oldKey.ID, stolen, time.Now()); !errors.Is(err, ErrAPIKeyNotFound) {
		t.Errorf("foreign rotate: expected ErrAPIKeyNotFound, got: %v", err)
	}
	if _, err := repo.GetUserAPIKey(ctx, other, stolen.ID); !errors.Is(err, ErrAPIKeyNotFound) {
		t.Errorf("foreign rotation left a key behind, got: %v", err)
	}

	newKey := testutil.NewTestAPIKey(t, userID)
	newKey.Name, newKey.Scopes = "", nil
	if err := repo.RotateUserAPIKey(ctx, userID, oldKey.ID, newKey, time.Now()); err != nil {
		t.Fatalf("RotateUserAPIKey failed: %v", err)
	}
	if newKey.Name != "ci" || len(newKey.Scopes) != 1 || newKey.Scopes[0] != model.ScopeWrite {
		t.Errorf("replacement did not inherit name and scopes: %q %v", newKey.Name, newKey.Scopes)
	}

	old, err := repo.GetUserAPIKey(ctx, userID, oldKey.ID)
	if err != nil {
		t.Fatalf("GetUserAPIKey failed: %v", err)
	}
	if !old.IsRevoked() {
		t.Error("old key should be revoked after rotation")
	}

	stored, err := repo.GetUserAPIKey(ctx, userID, newKey.ID)
	if err != nil {
		t.Fatalf("GetUserAPIKey(new) failed: %v", err)
	}
	if stored.Name != "ci" || len(stored.Scopes) != 1 || stored.Scopes[0] != model.ScopeWrite {
		t.Errorf("stored replacement = %q %v", stored.Name, stored.Scopes)
	}

	keys, err := repo.ListAPIKeysByUserID(ctx, userID)
	if err != nil {
		t.Fatalf("ListAPIKeysByUserID failed: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("expected 2 keys after rotation, got %d", len(keys))
	}

	// Rotating a revoked key fails and inserts nothing
	again := testutil.NewTestAPIKey(t, userID)
	if err := repo.RotateUserAPIKey(ctx, userID, oldKey.ID, again, time.Now()); !errors.Is(err, ErrAPIKeyNotFound) {
		t.Errorf("Expected ErrAPIKeyNotFound, got: %v", err)
	}
	if _, err := repo.GetUserAPIKey(ctx, userID, again.ID); !errors.Is(err, ErrAPIKeyNotFound) {
		t.Errorf("rolled back key should not exist, got: %v", err)
	}
}

func TestIntegrationAPIKeyRepository_LastUsedIsThrottled(t *testing.T) {
	ctx, repo := newTestEnv(t)
	userID := createTestUser(t, ctx, repo)

	key := testutil.NewTestAPIKey(t, userID)
	if err := repo.CreateAPIKey(ctx, key); err != nil {
		t.Fatalf("CreateAPIKey failed: %v", err)
	}

	if err := repo.UpdateAPIKeyLastUsed(ctx, key.ID); err != nil {
		t.Fatalf("UpdateAPIKeyLastUsed failed: %v", err)
	}
	first, err := repo.GetUserAPIKey(ctx, userID, key.ID)
	if err != nil || first.LastUsedAt == nil {
		t.Fatalf("expected last_used_at to be set, got %v (err %v)", first, err)
	}

	if err := repo.UpdateAPIKeyLastUsed(ctx, key.ID); err != nil {
		t.Fatalf("UpdateAPIKeyLastUsed failed: %v", err)
	}
	second, _ := repo.GetUserAPIKey(ctx, userID, key.ID)
	if !second.LastUsedAt.Equal(*first.LastUsedAt) {
		t.Errorf("last_used_at moved within resolution: %v -> %v", first.LastUsedAt, second.LastUsedAt)
	}
}

// ============================================================================
// Test Environment Setup
// ============================================================================

func newTestEnv(t *testing.T) (context.Context, *Repository) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	repo, err := New(ctx, dbURL, PoolOptions{MaxConns: 4})
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	return ctx, repo
}

func createTestUser(t *testing.T, ctx context.Context, repo *Repository) string {
	t.Helper()
	user, profile := testutil.NewTestUser(t, testutil.UniqueEmail("user"))
	if err := repo.CreateUserWithProfile(ctx, user, profile); err != nil {
		t.Fatalf("CreateUserWithProfile failed: %v", err)
	}
	return user.ID
}
