// Package service provides business logic for the application.
package service

import (
	"errors"
	"fmt"
)

// Service errors.
var (
	ErrInvalidProvider    = errors.New("invalid provider")
	ErrRefreshInProgress  = errors.New("refresh already in progress")
	ErrSnapshotNotFound   = errors.New("snapshot not found")
	ErrModelNotFound      = errors.New("model not found")
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrEmailNotConfirmed  = errors.New("email not confirmed")
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidSettingPath = errors.New("invalid setting path")
	ErrSettingOutOfRange  = errors.New("setting value out of range")
	ErrInvalidDefaults    = errors.New("invalid default model selection")
	ErrUnknownModel       = errors.New("unknown model")
	ErrValidation         = errors.New("validation failed")
	ErrUserNotFound       = errors.New("user not found")
	ErrAPIKeyNotFound     = errors.New("API key not found")
	ErrFolderNotFound     = errors.New("folder not found")
	ErrFolderExists       = errors.New("folder already exists")
	ErrTranscriptNotFound = errors.New("transcript not found")
)

// ValidationError describes one invalid input field. It matches ErrValidation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
