package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIKey_HasScope(t *testing.T) {
	tests := []struct {
		scopes []string
		check  string
		want   bool
	}{
		{[]string{ScopeRead, ScopeWrite}, ScopeRead, true},
		{[]string{ScopeRead}, ScopeWrite, false},
		{[]string{ScopeAdmin}, ScopeRead, true},
		{[]string{ScopeAdmin}, ScopeWrite, true},
		{nil, ScopeRead, false},
	}
	for _, tt := range tests {
		key := APIKey{Scopes: tt.scopes}
		assert.Equal(t, tt.want, key.HasScope(tt.check), "scopes=%v check=%s", tt.scopes, tt.check)
	}
}

func TestAuthContext_Scopes(t *testing.T) {
	userSession := AuthContext{Method: AuthMethodSession, Role: RoleUser}
	adminSession := AuthContext{Method: AuthMethodSession, Role: RoleAdmin}
	readKey := AuthContext{Method: AuthMethodAPIKey, Role: RoleAdmin, Scopes: []string{ScopeRead}}
	adminKey := AuthContext{Method: AuthMethodAPIKey, Role: RoleAdmin, Scopes: []string{ScopeAdmin}}
	demotedKey := AuthContext{Method: AuthMethodAPIKey, Role: RoleUser, Scopes: []string{ScopeAdmin}}

	tests := []struct {
		name      string
		auth      AuthContext
		read      bool
		write     bool
		adminOnly bool
		isAdmin   bool
	}{
		{"user session", userSession, true, true, false, false},
		{"admin session", adminSession, true, true, true, true},
		{"read key", readKey, true, false, false, false},
		{"admin key", adminKey, true, true, true, true},
		{"admin scope on user key", demotedKey, true, true, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.read, tt.auth.HasScope(ScopeRead), "read")
			assert.Equal(t, tt.write, tt.auth.HasScope(ScopeWrite), "write")
			assert.Equal(t, tt.adminOnly, tt.auth.HasScope(ScopeAdmin), "admin scope")
			assert.Equal(t, tt.isAdmin, tt.auth.IsAdmin(), "IsAdmin")
		})
	}
}

func TestAPIKey_ToResponse(t *testing.T) {
	revoked := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	key := APIKey{
		ID:        "key123",
		UserID:    "u1",
		KeyHash:   "$argon2id$secret",
		Name:      "ci",
		KeyPrefix: "abc123",
		Scopes:    []string{ScopeRead},
	}

	resp := key.ToResponse()
	assert.Equal(t, "key123", resp.ID)
	assert.Equal(t, "abc123", resp.KeyPrefix)
	assert.False(t, resp.Revoked)

	key.RevokedAt = &revoked
	assert.True(t, key.IsRevoked())
	assert.True(t, key.ToResponse().Revoked)
}

func TestAPIKey_JSONOmitsHash(t *testing.T) {
	raw, err := json.Marshal(APIKey{ID: "k", KeyHash: "$argon2id$secret"})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "argon2id")
	assert.NotContains(t, string(raw), "key_hash")
}

func TestValidScopes(t *testing.T) {
	assert.ElementsMatch(t, []string{ScopeRead, ScopeWrite, ScopeAdmin}, ValidScopes)
}
