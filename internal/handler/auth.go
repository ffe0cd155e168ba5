package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/quillscribe/portal/internal/auth"
	"github.com/quillscribe/portal/internal/handler/dto"
	"github.com/quillscribe/portal/internal/middleware"
	"github.com/quillscribe/portal/internal/model"
	"github.com/quillscribe/portal/internal/service"
)

// AccountService is the auth surface used by AuthHandler.
type AccountService interface {
	Signup(ctx context.Context, input service.SignupInput) (*service.SignupResult, error)
	Confirm(ctx context.Context, token string) error
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	Logout(ctx context.Context, authCtx *model.AuthContext) error
	Me(ctx context.Context, userID string) (*model.UserWithProfile, error)
	UpdateProfile(ctx context.Context, userID string, update model.ProfileUpdate) (*model.Profile, error)
}

// AuthHandler handles signup, login and account endpoints.
type AuthHandler struct {
	svc          AccountService
	secureCookie bool
	logger       *slog.Logger
}

// NewAuthHandler creates a new AuthHandler. secureCookie marks the session
// cookie Secure and should be set outside development.
func NewAuthHandler(svc AccountService, secureCookie bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		svc:          svc,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

// Signup handles POST /api/auth/signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req dto.SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	result, err := h.svc.Signup(r.Context(), service.SignupInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	resp := dto.SessionResponse{
		User:                 result.User,
		Profile:              result.Profile,
		ConfirmationRequired: result.ConfirmationRequired,
	}
	if result.Token != "" {
		h.setSessionCookie(w, result.Token, result.Session.ExpiresAt)
		resp.Token = result.Token
		resp.ExpiresAt = &result.Session.ExpiresAt
		resp.Redirect = "/dashboard"
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Confirm handles POST /api/auth/confirm.
func (h *AuthHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req dto.ConfirmRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	if err := h.svc.Confirm(r.Context(), req.Token); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"confirmed": true})
}

// Login handles POST /api/auth/login. Unexpected failures keep the generic
// sign-in message instead of the internal error envelope.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	result, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) || errors.Is(err, service.ErrEmailNotConfirmed) {
			handleServiceError(w, h.logger, err)
			return
		}
		h.logger.Error("login_failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "LOGIN_FAILED", service.LoginErrorMessage(err))
		return
	}

	h.setSessionCookie(w, result.Token, result.Session.ExpiresAt)
	writeJSON(w, http.StatusOK, dto.SessionResponse{
		User:      result.User,
		Profile:   result.Profile,
		Token:     result.Token,
		ExpiresAt: &result.Session.ExpiresAt,
		Redirect:  result.Redirect,
	})
}

// Logout handles POST /api/auth/logout. The cookie is cleared even when
// revocation fails.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearSessionCookie(w)

	authCtx := auth.AuthFromContext(r.Context())
	if authCtx != nil {
		if err := h.svc.Logout(r.Context(), authCtx); err != nil {
			h.logger.Warn("session_revoke_failed",
				slog.String("user_id", authCtx.UserID),
				slog.String("error", err.Error()),
			)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	me, err := h.svc.Me(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, me)
}

// UpdateProfile handles PATCH /api/account/profile.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var update model.ProfileUpdate
	if err := decodeJSON(r, &update); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	profile, err := h.svc.UpdateProfile(r.Context(), auth.UserIDFromContext(r.Context()), update)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
