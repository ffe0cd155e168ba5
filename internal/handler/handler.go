// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/quillscribe/portal/internal/handler/dto"
	"github.com/quillscribe/portal/internal/service"
)

var errInvalidJSON = errors.New("invalid request body")

// NotFound handles 404 responses.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
}

// MethodNotAllowed handles 405 responses.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes the {error, code} envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{Error: message, Code: code})
}

// decodeJSON decodes a single JSON object. Unknown fields are rejected so
// typos in setting paths or profile fields surface as 400s.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errInvalidJSON
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errInvalidJSON
	}
	return nil
}

// handleServiceError maps service errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error: verr.Error(),
			Code:  "VALIDATION_ERROR",
			Field: verr.Field,
		})
	case errors.Is(err, errInvalidJSON):
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
	case errors.Is(err, service.ErrInvalidProvider):
		writeError(w, http.StatusBadRequest, "INVALID_PROVIDER", "Invalid provider. Must be openai, anthropic, or gemini")
	case errors.Is(err, service.ErrSnapshotNotFound):
		writeError(w, http.StatusNotFound, "SNAPSHOT_NOT_FOUND", "No model snapshot exists for this provider yet")
	case errors.Is(err, service.ErrModelNotFound):
		writeError(w, http.StatusNotFound, "MODEL_NOT_FOUND", "Model not found")
	case errors.Is(err, service.ErrRefreshInProgress):
		writeError(w, http.StatusConflict, "REFRESH_IN_PROGRESS", "refresh already in progress")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", service.LoginErrorMessage(err))
	case errors.Is(err, service.ErrEmailNotConfirmed):
		writeError(w, http.StatusForbidden, "EMAIL_NOT_CONFIRMED", service.LoginErrorMessage(err))
	case errors.Is(err, service.ErrEmailExists):
		writeError(w, http.StatusConflict, "EMAIL_EXISTS", "An account with this email already exists")
	case errors.Is(err, service.ErrInvalidToken):
		writeError(w, http.StatusBadRequest, "INVALID_TOKEN", "Confirmation link is invalid or has expired")
	case errors.Is(err, service.ErrInvalidSettingPath):
		writeError(w, http.StatusBadRequest, "INVALID_SETTING_PATH", err.Error())
	case errors.Is(err, service.ErrSettingOutOfRange):
		writeError(w, http.StatusBadRequest, "SETTING_OUT_OF_RANGE", err.Error())
	case errors.Is(err, service.ErrInvalidDefaults):
		writeError(w, http.StatusBadRequest, "INVALID_DEFAULTS", err.Error())
	case errors.Is(err, service.ErrUnknownModel):
		writeError(w, http.StatusBadRequest, "UNKNOWN_MODEL", err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
	case errors.Is(err, service.ErrAPIKeyNotFound):
		writeError(w, http.StatusNotFound, "KEY_NOT_FOUND", "API key not found or already revoked")
	case errors.Is(err, service.ErrFolderNotFound):
		writeError(w, http.StatusNotFound, "FOLDER_NOT_FOUND", "Folder not found")
	case errors.Is(err, service.ErrFolderExists):
		writeError(w, http.StatusConflict, "FOLDER_EXISTS", "A folder with this name already exists")
	case errors.Is(err, service.ErrTranscriptNotFound):
		writeError(w, http.StatusNotFound, "TRANSCRIPT_NOT_FOUND", "Transcript not found")
	default:
		logger.Error("internal_error", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}
