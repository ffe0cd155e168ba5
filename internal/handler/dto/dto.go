// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/quillscribe/portal/internal/logbuffer"
	"github.com/quillscribe/portal/internal/model"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

// RefreshResponse is the body of a model refresh. Successes always carry
// Count, including zero. Failures carry Error and leave Count nil.
type RefreshResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	Count       *int   `json:"count,omitempty"`
	LastUpdated string `json:"lastUpdated,omitempty"`
	Source      string `json:"source,omitempty"`
	Error       string `json:"error,omitempty"`
	Code        string `json:"code,omitempty"`
}

// RefreshAllResponse reports every provider of a refresh-all request.
// Success is true only when every provider succeeded.
type RefreshAllResponse struct {
	Success bool                               `json:"success"`
	Results map[model.Provider]RefreshResponse `json:"results"`
}

// SignupRequest is the body of POST /api/auth/signup.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ConfirmRequest is the body of POST /api/auth/confirm.
type ConfirmRequest struct {
	Token string `json:"token"`
}

// SessionResponse is returned by signup and login. Token and ExpiresAt are
// empty while the email still needs confirming.
type SessionResponse struct {
	User                 *model.User    `json:"user"`
	Profile              *model.Profile `json:"profile"`
	Token                string         `json:"token,omitempty"`
	ExpiresAt            *time.Time     `json:"expiresAt,omitempty"`
	Redirect             string         `json:"redirect,omitempty"`
	ConfirmationRequired bool           `json:"confirmationRequired,omitempty"`
}

// ThemeUpdateRequest accepts a single dotted path or a batch of updates.
type ThemeUpdateRequest struct {
	Path    string             `json:"path,omitempty"`
	Value   *float64           `json:"value,omitempty"`
	Updates map[string]float64 `json:"updates,omitempty"`
}

// ToUpdates merges the single-path form into the batch.
func (r ThemeUpdateRequest) ToUpdates() map[string]float64 {
	updates := make(map[string]float64, len(r.Updates)+1)
	for path, v := range r.Updates {
		updates[path] = v
	}
	if r.Path != "" && r.Value != nil {
		updates[r.Path] = *r.Value
	}
	return updates
}

// CreateFolderRequest is the body of POST /api/library/folders.
type CreateFolderRequest struct {
	Name string `json:"name"`
}

// ContactResponse acknowledges a contact form submission.
type ContactResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// LogsResponse is the body of GET /api/admin/logs.
type LogsResponse struct {
	Entries  []logbuffer.Entry `json:"entries"`
	Count    int               `json:"count"`
	Capacity int               `json:"capacity"`
}
