//go:build integration

package repository

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/quillscribe/portal/internal/model"
	"github.com/quillscribe/portal/internal/testutil"
)

func TestIntegrationUserRepository_CreateAndLookup(t *testing.T) {
	ctx, repo := newTestEnv(t)

	email := testutil.UniqueEmail("Mixed")
	user, profile := testutil.NewTestUser(t, email)
	if err := repo.CreateUserWithProfile(ctx, user, profile); err != nil {
		t.Fatalf("CreateUserWithProfile failed: %v", err)
	}

	got, err := repo.GetUserByEmail(ctx, strings.ToUpper(email))
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("ID mismatch: got %q, want %q", got.ID, user.ID)
	}
	if !got.IsConfirmed() {
		t.Error("expected user to be confirmed")
	}

	p, err := repo.GetProfile(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if p.Role != model.RoleUser {
		t.Errorf("Role = %q, want %q", p.Role, model.RoleUser)
	}
	if string(p.Metadata) != "{}" {
		t.Errorf("Metadata = %s, want {}", p.Metadata)
	}

	dup, dupProfile := testutil.NewTestUser(t, strings.ToUpper(email))
	if err := repo.CreateUserWithProfile(ctx, dup, dupProfile); !errors.Is(err, ErrEmailExists) {
		t.Errorf("Expected ErrEmailExists, got: %v", err)
	}
}

func TestIntegrationUserRepository_NotFound(t *testing.T) {
	ctx, repo := newTestEnv(t)

	if _, err := repo.GetUserByID(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got: %v", err)
	}
	if err := repo.SetUserRole(ctx, "missing", model.RoleAdmin); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got: %v", err)
	}
}

func TestIntegrationUserRepository_UpdateProfile(t *testing.T) {
	ctx, repo := newTestEnv(t)
	userID := createTestUser(t, ctx, repo)

	name := "Ada Lovelace"
	updated, err := repo.UpdateProfile(ctx, userID, model.ProfileUpdate{
		FullName: &name,
		Metadata: json.RawMessage(`{"company":"Analytical"}`),
	})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if updated.FullName != name {
		t.Errorf("FullName = %q, want %q", updated.FullName, name)
	}

	var meta map[string]string
	if err := json.Unmarshal(updated.Metadata, &meta); err != nil || meta["company"] != "Analytical" {
		t.Errorf("unexpected metadata %s (%v)", updated.Metadata, err)
	}

	// Nil fields are left alone
	again, err := repo.UpdateProfile(ctx, userID, model.ProfileUpdate{})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if again.FullName != name {
		t.Errorf("FullName changed to %q", again.FullName)
	}
}

func TestIntegrationUserRepository_EmailConfirmation(t *testing.T) {
	ctx, repo := newTestEnv(t)

	user, profile := testutil.NewTestUser(t, testutil.UniqueEmail("confirm"))
	user.EmailConfirmedAt = nil
	if err := repo.CreateUserWithProfile(ctx, user, profile); err != nil {
		t.Fatalf("CreateUserWithProfile failed: %v", err)
	}

	now := time.Now().UTC()
	valid := &model.EmailConfirmation{TokenHash: "valid", UserID: user.ID, ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	expired := &model.EmailConfirmation{TokenHash: "expired", UserID: user.ID, ExpiresAt: now.Add(-time.Minute), CreatedAt: now}
	for _, c := range []*model.EmailConfirmation{valid, expired} {
		if err := repo.CreateEmailConfirmation(ctx, c); err != nil {
			t.Fatalf("CreateEmailConfirmation failed: %v", err)
		}
	}

	if _, err := repo.ConsumeEmailConfirmation(ctx, "expired", now); !errors.Is(err, ErrConfirmationExpired) {
		t.Errorf("Expected ErrConfirmationExpired, got: %v", err)
	}

	userID, err := repo.ConsumeEmailConfirmation(ctx, "valid", now)
	if err != nil {
		t.Fatalf("ConsumeEmailConfirmation failed: %v", err)
	}
	if userID != user.ID {
		t.Errorf("userID = %q, want %q", userID, user.ID)
	}

	got, err := repo.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if !got.IsConfirmed() {
		t.Error("user should be confirmed")
	}

	if _, err := repo.ConsumeEmailConfirmation(ctx, "valid", now); !errors.Is(err, ErrConfirmationNotFound) {
		t.Errorf("token should be single use, got: %v", err)
	}
}

func TestIntegrationUserRepository_Stats(t *testing.T) {
	ctx, repo := newTestEnv(t)

	adminID := createTestUser(t, ctx, repo)
	_ = createTestUser(t, ctx, repo)
	if err := repo.SetUserRole(ctx, adminID, model.RoleAdmin); err != nil {
		t.Fatalf("SetUserRole failed: %v", err)
	}

	stats, err := repo.GetUserStats(ctx)
	if err != nil {
		t.Fatalf("GetUserStats failed: %v", err)
	}
	if stats.Total != 2 || stats.Admins != 1 || stats.Confirmed != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestIntegrationSettingsRepository_PutGet(t *testing.T) {
	ctx, repo := newTestEnv(t)

	if _, err := repo.GetSetting(ctx, SettingTheme); !errors.Is(err, ErrSettingNotFound) {
		t.Errorf("Expected ErrSettingNotFound, got: %v", err)
	}

	theme := model.ThemeSettings{"header": {"height": 72}}
	if err := repo.PutSetting(ctx, SettingTheme, theme, "admin-1"); err != nil {
		t.Fatalf("PutSetting failed: %v", err)
	}
	theme["header"]["height"] = 80
	if err := repo.PutSetting(ctx, SettingTheme, theme, ""); err != nil {
		t.Fatalf("PutSetting upsert failed: %v", err)
	}

	var got model.ThemeSettings
	if err := repo.GetSettingInto(ctx, SettingTheme, &got); err != nil {
		t.Fatalf("GetSettingInto failed: %v", err)
	}
	if got["header"]["height"] != 80 {
		t.Errorf("header.height = %v, want 80", got["header"]["height"])
	}

	if err := repo.DeleteSetting(ctx, SettingTheme); err != nil {
		t.Fatalf("DeleteSetting failed: %v", err)
	}
	if err := repo.DeleteSetting(ctx, SettingTheme); !errors.Is(err, ErrSettingNotFound) {
		t.Errorf("Expected ErrSettingNotFound, got: %v", err)
	}
}

func TestIntegrationContactRepository_Lifecycle(t *testing.T) {
	ctx, repo := newTestEnv(t)

	msg := &model.ContactMessage{
		ID:        testutil.UniqueID("msg"),
		Name:      "Grace",
		Email:     "grace@example.com",
		Subject:   "Pricing",
		Message:   "Do you offer team plans?",
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.CreateContactMessage(ctx, msg); err != nil {
		t.Fatalf("CreateContactMessage failed: %v", err)
	}

	counts, err := repo.CountContactMessagesByStatus(ctx)
	if err != nil {
		t.Fatalf("CountContactMessagesByStatus failed: %v", err)
	}
	if counts[model.ContactStatusPending] != 1 || counts[model.ContactStatusDelivered] != 0 {
		t.Errorf("unexpected counts: %v", counts)
	}

	if err := repo.MarkContactDelivered(ctx, msg.ID, 2, time.Now().UTC()); err != nil {
		t.Fatalf("MarkContactDelivered failed: %v", err)
	}
	got, err := repo.GetContactMessage(ctx, msg.ID)
	if err != nil {
		t.Fatalf("GetContactMessage failed: %v", err)
	}
	if got.Status != model.ContactStatusDelivered || got.Attempts != 2 || got.DeliveredAt == nil {
		t.Errorf("unexpected message after delivery: %+v", got)
	}

	if err := repo.MarkContactFailed(ctx, "missing", 1, "boom"); !errors.Is(err, ErrContactNotFound) {
		t.Errorf("Expected ErrContactNotFound, got: %v", err)
	}
}
