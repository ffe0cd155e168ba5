package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/quillscribe/portal/internal/cache"
	"github.com/quillscribe/portal/internal/model"
	"github.com/quillscribe/portal/internal/repository"
)

type stubLister struct {
	provider model.Provider
	models   []model.AIModel
	err      error
	calls    int
}

func (s *stubLister) Provider() model.Provider { return s.provider }

func (s *stubLister) ListModels(context.Context) ([]model.AIModel, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]model.AIModel, len(s.models))
	copy(out, s.models)
	return out, nil
}

type heldLocker struct{}

func (heldLocker) AcquireLock(context.Context, string, time.Duration) (*cache.Lock, error) {
	return nil, cache.ErrLockHeld
}

type brokenLocker struct{}

func (brokenLocker) AcquireLock(context.Context, string, time.Duration) (*cache.Lock, error) {
	return nil, errors.New("dial tcp: connection refused")
}

type memUsers struct {
	mu            sync.Mutex
	users         map[string]*model.User
	profiles      map[string]*model.Profile
	confirmations map[string]*model.EmailConfirmation
}

func newMemUsers() *memUsers {
	return &memUsers{
		users:         make(map[string]*model.User),
		profiles:      make(map[string]*model.Profile),
		confirmations: make(map[string]*model.EmailConfirmation),
	}
}

func (m *memUsers) CreateUserWithProfile(_ context.Context, user *model.User, profile *model.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrEmailExists
		}
	}
	u := *user
	p := *profile
	m.users[user.ID] = &u
	m.profiles[user.ID] = &p
	return nil
}

func (m *memUsers) GetUserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *memUsers) GetProfile(_ context.Context, userID string) (*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memUsers) UpdateProfile(_ context.Context, userID string, update model.ProfileUpdate) (*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	if update.FullName != nil {
		p.FullName = *update.FullName
	}
	if update.AvatarURL != nil {
		p.AvatarURL = *update.AvatarURL
	}
	if update.Metadata != nil {
		p.Metadata = update.Metadata
	}
	cp := *p
	return &cp, nil
}

func (m *memUsers) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID].PasswordHash = hash
	return nil
}

func (m *memUsers) MarkEmailConfirmed(_ context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.EmailConfirmedAt = &at
	return nil
}

func (m *memUsers) CreateEmailConfirmation(_ context.Context, c *model.EmailConfirmation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.confirmations[c.TokenHash] = &cp
	return nil
}

func (m *memUsers) ConsumeEmailConfirmation(_ context.Context, tokenHash string, now time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.confirmations[tokenHash]
	if !ok {
		return "", repository.ErrConfirmationNotFound
	}
	delete(m.confirmations, tokenHash)
	if now.After(c.ExpiresAt) {
		return "", repository.ErrConfirmationExpired
	}
	return c.UserID, nil
}

func (m *memUsers) setRole(userID, role string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[userID].Role = role
}

type memKeys struct {
	mu   sync.Mutex
	keys map[string]*model.APIKey
}

func newMemKeys() *memKeys {
	return &memKeys{keys: make(map[string]*model.APIKey)}
}

func (m *memKeys) CreateAPIKey(_ context.Context, key *model.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *key
	m.keys[key.ID] = &cp
	return nil
}

func (m *memKeys) GetAPIKeysByPrefix(_ context.Context, prefix string) ([]*model.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.APIKey
	for _, k := range m.keys {
		if k.KeyPrefix == prefix && k.RevokedAt == nil {
			cp := *k
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memKeys) ListAPIKeysByUserID(_ context.Context, userID string) ([]*model.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.APIKey
	for _, k := range m.keys {
		if k.UserID == userID {
			cp := *k
			out = append(out, &cp)
		}
	}
	return out, nil
}

// active returns the stored key when userID owns it and it is not revoked.
func (m *memKeys) active(userID, id string) (*model.APIKey, bool) {
	k, ok := m.keys[id]
	if !ok || k.UserID != userID || k.RevokedAt != nil {
		return nil, false
	}
	return k, true
}

func (m *memKeys) get(id string) *model.APIKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[id]
	if !ok {
		return nil
	}
	cp := *k
	return &cp
}

func (m *memKeys) RevokeUserAPIKey(_ context.Context, userID, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.active(userID, id)
	if !ok {
		return repository.ErrAPIKeyNotFound
	}
	k.RevokedAt = &at
	return nil
}

func (m *memKeys) RotateUserAPIKey(_ context.Context, userID, oldID string, next *model.APIKey, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.active(userID, oldID)
	if !ok {
		return repository.ErrAPIKeyNotFound
	}
	k.RevokedAt = &at
	next.UserID = userID
	next.Name = k.Name
	next.Scopes = append([]string(nil), k.Scopes...)
	cp := *next
	m.keys[next.ID] = &cp
	return nil
}

func (m *memKeys) UpdateAPIKeyLastUsed(context.Context, string) error { return nil }

type recordingInvalidator struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingInvalidator) InvalidateAPIKey(_ context.Context, keyID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, keyID)
	return nil
}

type memAuthCache struct {
	mu      sync.Mutex
	ctxs    map[string]*model.AuthContext
	revoked map[string]time.Time
}

func newMemAuthCache() *memAuthCache {
	return &memAuthCache{ctxs: make(map[string]*model.AuthContext), revoked: make(map[string]time.Time)}
}

func (c *memAuthCache) GetAuthContext(_ context.Context, key string) (*model.AuthContext, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctxs[key], nil
}

func (c *memAuthCache) SetAuthContext(_ context.Context, key string, a *model.AuthContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ctxs[key] = a
	return nil
}

func (c *memAuthCache) RevokeSession(_ context.Context, id string, expiresAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[id] = expiresAt
	return nil
}

func (c *memAuthCache) IsSessionRevoked(_ context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.revoked[id]
	return ok, nil
}

type memSettings struct {
	mu   sync.Mutex
	rows map[string][]byte
}

func newMemSettings() *memSettings {
	return &memSettings{rows: make(map[string][]byte)}
}

func (m *memSettings) GetSettingInto(_ context.Context, key string, dst any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.rows[key]
	if !ok {
		return repository.ErrSettingNotFound
	}
	return json.Unmarshal(raw, dst)
}

func (m *memSettings) PutSetting(_ context.Context, key string, value any, _ string) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[key] = raw
	return nil
}

func (m *memSettings) DeleteSetting(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[key]; !ok {
		return repository.ErrSettingNotFound
	}
	delete(m.rows, key)
	return nil
}

type staticModels map[model.Provider][]string

func (s staticModels) HasModel(_ context.Context, p model.Provider, id string) (bool, error) {
	ids, ok := s[p]
	if !ok {
		return true, nil
	}
	for _, known := range ids {
		if known == id {
			return true, nil
		}
	}
	return false, nil
}
