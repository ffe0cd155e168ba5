// Package model defines domain entities for the application.
package model

import (
	"encoding/json"
	"time"
)

// Role constants stored on the profile record.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents an account that can sign in to the dashboard.
type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// IsConfirmed reports whether the user has confirmed their email address.
func (u *User) IsConfirmed() bool {
	return u.EmailConfirmedAt != nil
}

// Profile holds user-facing account data and the authorization role.
type Profile struct {
	UserID    string          `json:"user_id"`
	Role      string          `json:"role"`
	FullName  string          `json:"full_name,omitempty"`
	AvatarURL string          `json:"avatar_url,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// IsAdmin returns true if the profile carries the admin role.
func (p *Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// HomePath returns the landing page for the role after sign in.
func (p *Profile) HomePath() string {
	if p.IsAdmin() {
		return "/admin"
	}
	return "/dashboard"
}

// UserWithProfile is the combined view returned by the current-user endpoint.
type UserWithProfile struct {
	User    *User    `json:"user"`
	Profile *Profile `json:"profile"`
}

// EmailConfirmation is a pending email confirmation token.
type EmailConfirmation struct {
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// ProfileUpdate carries optional profile fields for PATCH requests.
type ProfileUpdate struct {
	FullName  *string         `json:"fullName,omitempty"`
	AvatarURL *string         `json:"avatarUrl,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}
