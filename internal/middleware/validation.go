package middleware

import (
	"errors"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
)

// Validation errors.
var (
	ErrIDMissing = errors.New("id is required")
	ErrIDInvalid = errors.New("id is not a valid identifier")
)

// ValidateID checks that id is a canonical ULID, the format of every
// resource id the API issues.
func ValidateID(id string) error {
	if id == "" {
		return ErrIDMissing
	}
	if _, err := ulid.ParseStrict(id); err != nil {
		return ErrIDInvalid
	}
	return nil
}

// ValidateIDParams rejects requests whose named chi URL parameters are not
// valid ids. Must be mounted inside the route that declares the params.
func ValidateIDParams(names ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, name := range names {
				if err := ValidateID(chi.URLParam(r, name)); err != nil {
					WriteError(w, http.StatusBadRequest, "INVALID_ID", "Invalid "+name+": "+err.Error())
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireJSON rejects bodies on POST, PUT and PATCH that are not JSON.
// Requests without a body pass through.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength == 0 || r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}

		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "application/json" {
			WriteError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Content-Type must be application/json")
			return
		}
		next.ServeHTTP(w, r)
	})
}
