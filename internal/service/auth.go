package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/quillscribe/portal/internal/auth"
	"github.com/quillscribe/portal/internal/metrics"
	"github.com/quillscribe/portal/internal/model"
	"github.com/quillscribe/portal/internal/repository"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 256
	maxFullNameLength = 100
	maxEmailLength    = 254

	// DefaultConfirmationTTL is how long an email confirmation link stays valid.
	DefaultConfirmationTTL = 24 * time.Hour

	// minLoginDuration keeps login timing flat across unknown users and bad passwords.
	minLoginDuration = 200 * time.Millisecond
)

// Login failure messages shown to the user.
const (
	msgInvalidCredentials = "Invalid email or password"
	msgEmailNotConfirmed  = "Please confirm your email before signing in"
	msgLoginFailed        = "Failed to sign in."
)

// UserStore is the persistence used by AuthService.
type UserStore interface {
	CreateUserWithProfile(ctx context.Context, user *model.User, profile *model.Profile) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	UpdateProfile(ctx context.Context, userID string, update model.ProfileUpdate) (*model.Profile, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
	MarkEmailConfirmed(ctx context.Context, userID string, at time.Time) error
	CreateEmailConfirmation(ctx context.Context, c *model.EmailConfirmation) error
	ConsumeEmailConfirmation(ctx context.Context, tokenHash string, now time.Time) (string, error)
}

// KeyLookup finds API key candidates for authentication.
type KeyLookup interface {
	GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
}

// AuthCache caches API key lookups and tracks signed-out sessions.
type AuthCache interface {
	GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error)
	SetAuthContext(ctx context.Context, cacheKey string, auth *model.AuthContext) error
	RevokeSession(ctx context.Context, sessionID string, expiresAt time.Time) error
	IsSessionRevoked(ctx context.Context, sessionID string) (bool, error)
}

// ConfirmationSender delivers email confirmation links.
type ConfirmationSender interface {
	SendConfirmation(ctx context.Context, email, link string) error
}

// AuthConfig configures AuthService.
type AuthConfig struct {
	Users               UserStore
	Keys                KeyLookup
	Cache               AuthCache
	Sessions            *auth.SessionManager
	Sender              ConfirmationSender
	BaseURL             string
	RequireConfirmation bool
	ConfirmationTTL     time.Duration
	Metrics             metrics.Recorder
	Logger              *slog.Logger
}

// AuthService implements signup, login and request authentication.
type AuthService struct {
	users               UserStore
	keys                KeyLookup
	cache               AuthCache
	sessions            *auth.SessionManager
	sender              ConfirmationSender
	baseURL             string
	requireConfirmation bool
	confirmTTL          time.Duration
	minLogin            time.Duration
	metrics             metrics.Recorder
	logger              *slog.Logger
	now                 func() time.Time
}

// NewAuthService creates an AuthService. Cache and Sender may be nil.
func NewAuthService(cfg AuthConfig) *AuthService {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ConfirmationTTL <= 0 {
		cfg.ConfirmationTTL = DefaultConfirmationTTL
	}
	return &AuthService{
		users:               cfg.Users,
		keys:                cfg.Keys,
		cache:               cfg.Cache,
		sessions:            cfg.Sessions,
		sender:              cfg.Sender,
		baseURL:             strings.TrimSuffix(cfg.BaseURL, "/"),
		requireConfirmation: cfg.RequireConfirmation,
		confirmTTL:          cfg.ConfirmationTTL,
		minLogin:            minLoginDuration,
		metrics:             cfg.Metrics,
		logger:              cfg.Logger.With("component", "auth"),
		now:                 time.Now,
	}
}

// SignupInput is the body of a signup request.
type SignupInput struct {
	Email    string
	Password string
	FullName string
}

// SignupResult reports a created account. Token is empty when the email
// must be confirmed first.
type SignupResult struct {
	User                 *model.User
	Profile              *model.Profile
	Token                string
	Session              *auth.Session
	ConfirmationRequired bool
}

// LoginResult is a successful sign in.
type LoginResult struct {
	User     *model.User
	Profile  *model.Profile
	Token    string
	Session  *auth.Session
	Redirect string
}

// Signup creates a user with the default role.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (*SignupResult, error) {
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}
	fullName := strings.TrimSpace(input.FullName)
	if utf8.RuneCountInString(fullName) > maxFullNameLength {
		return nil, invalid("fullName", fmt.Sprintf("must be at most %d characters", maxFullNameLength))
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now().UTC()
	user := &model.User{
		ID:           ulid.Make().String(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if !s.requireConfirmation {
		user.EmailConfirmedAt = &now
	}
	profile := &model.Profile{
		UserID:    user.ID,
		Role:      model.RoleUser,
		FullName:  fullName,
		UpdatedAt: now,
	}

	if err := s.users.CreateUserWithProfile(ctx, user, profile); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.metrics.IncSignup()

	result := &SignupResult{User: user, Profile: profile}

	if s.requireConfirmation {
		if err := s.startConfirmation(ctx, user); err != nil {
			return nil, err
		}
		result.ConfirmationRequired = true
		s.logger.Info("user signed up, confirmation pending", slog.String("user_id", user.ID))
		return result, nil
	}

	token, session, err := s.sessions.Issue(user.ID, user.Email, profile.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}
	result.Token = token
	result.Session = session
	s.logger.Info("user signed up", slog.String("user_id", user.ID))
	return result, nil
}

func (s *AuthService) startConfirmation(ctx context.Context, user *model.User) error {
	token, err := auth.GenerateConfirmationToken()
	if err != nil {
		return err
	}
	now := s.now().UTC()
	if err := s.users.CreateEmailConfirmation(ctx, &model.EmailConfirmation{
		TokenHash: token.Hash,
		UserID:    user.ID,
		ExpiresAt: now.Add(s.confirmTTL),
		CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("failed to store confirmation: %w", err)
	}

	link := s.baseURL + "/login?confirm=" + url.QueryEscape(token.Plaintext)
	if s.sender == nil {
		s.logger.Info("email confirmation link", slog.String("user_id", user.ID), slog.String("link", link))
		return nil
	}
	if err := s.sender.SendConfirmation(ctx, user.Email, link); err != nil {
		s.logger.Error("failed to send confirmation email",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// Confirm consumes a confirmation token and marks the email confirmed.
func (s *AuthService) Confirm(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}

	now := s.now().UTC()
	userID, err := s.users.ConsumeEmailConfirmation(ctx, auth.HashToken(token), now)
	if err != nil {
		if errors.Is(err, repository.ErrConfirmationNotFound) || errors.Is(err, repository.ErrConfirmationExpired) {
			return ErrInvalidToken
		}
		return fmt.Errorf("failed to consume confirmation: %w", err)
	}

	if err := s.users.MarkEmailConfirmed(ctx, userID, now); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("failed to confirm email: %w", err)
	}
	s.logger.Info("email confirmed", slog.String("user_id", userID))
	return nil
}

// Login verifies credentials and issues a session.
func (s *AuthService) Login(ctx context.Context, email, password string) (result *LoginResult, err error) {
	start := time.Now()
	defer func() {
		waitRemaining(ctx, s.minLogin-time.Since(start))
		outcome := "success"
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			outcome = "invalid"
		case errors.Is(err, ErrEmailNotConfirmed):
			outcome = "unconfirmed"
		case err != nil:
			outcome = "error"
		}
		s.metrics.IncLoginAttempt(outcome)
	}()

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			auth.BurnVerify(password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	ok, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}

	if s.requireConfirmation && !user.IsConfirmed() {
		return nil, ErrEmailNotConfirmed
	}

	profile, err := s.users.GetProfile(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	if auth.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user.ID, password)
	}

	token, session, err := s.sessions.Issue(user.ID, user.Email, profile.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}

	s.logger.Info("user signed in",
		slog.String("user_id", user.ID),
		slog.String("role", profile.Role),
	)

	return &LoginResult{
		User:     user,
		Profile:  profile,
		Token:    token,
		Session:  session,
		Redirect: profile.HomePath(),
	}, nil
}

func (s *AuthService) rehash(ctx context.Context, userID, password string) {
	hash, err := auth.HashPassword(password)
	if err == nil {
		err = s.users.UpdatePasswordHash(ctx, userID, hash)
	}
	if err != nil {
		s.logger.Warn("failed to upgrade password hash",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

// LoginErrorMessage maps a Login error to the message shown on the sign-in form.
func LoginErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return msgInvalidCredentials
	case errors.Is(err, ErrEmailNotConfirmed):
		return msgEmailNotConfirmed
	default:
		return msgLoginFailed
	}
}

// Logout revokes the session until its natural expiry.
func (s *AuthService) Logout(ctx context.Context, authCtx *model.AuthContext) error {
	if authCtx == nil || authCtx.Method != model.AuthMethodSession || s.cache == nil {
		return nil
	}
	if err := s.cache.RevokeSession(ctx, authCtx.SessionID, authCtx.ExpiresAt); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	s.logger.Info("user signed out", slog.String("user_id", authCtx.UserID))
	return nil
}

// Me returns the current user and profile.
func (s *AuthService) Me(ctx context.Context, userID string) (*model.UserWithProfile, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	profile, err := s.users.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return &model.UserWithProfile{User: user, Profile: profile}, nil
}

// UpdateProfile validates and applies a profile update.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, update model.ProfileUpdate) (*model.Profile, error) {
	if err := validateProfileUpdate(&update); err != nil {
		return nil, err
	}
	profile, err := s.users.UpdateProfile(ctx, userID, update)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return profile, nil
}

func validateProfileUpdate(update *model.ProfileUpdate) error {
	if update.FullName != nil {
		name := strings.TrimSpace(*update.FullName)
		if utf8.RuneCountInString(name) > maxFullNameLength {
			return invalid("fullName", fmt.Sprintf("must be at most %d characters", maxFullNameLength))
		}
		update.FullName = &name
	}
	if update.AvatarURL != nil && *update.AvatarURL != "" {
		u, err := url.Parse(*update.AvatarURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return invalid("avatarUrl", "must be an http or https URL")
		}
	}
	if len(update.Metadata) > 0 {
		var obj map[string]any
		if err := json.Unmarshal(update.Metadata, &obj); err != nil || obj == nil {
			return invalid("metadata", "must be a JSON object")
		}
	}
	return nil
}

// AuthenticateSession verifies a session token. The role is read from the
// profile so that role changes apply to existing sessions.
func (s *AuthService) AuthenticateSession(ctx context.Context, token string) (*model.AuthContext, error) {
	session, err := s.sessions.Parse(token)
	if err != nil {
		return nil, ErrInvalidToken
	}

	if s.cache != nil {
		revoked, err := s.cache.IsSessionRevoked(ctx, session.ID)
		if err != nil {
			s.logger.Warn("session revocation check failed",
				slog.String("session_id", session.ID),
				slog.String("error", err.Error()),
			)
		}
		if revoked {
			return nil, ErrInvalidToken
		}
	}

	profile, err := s.users.GetProfile(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	return &model.AuthContext{
		UserID:    session.UserID,
		Email:     session.Email,
		Role:      profile.Role,
		Method:    model.AuthMethodSession,
		SessionID: session.ID,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// AuthenticateAPIKey verifies an API key. Successful lookups are cached by a
// quick hash of the key.
func (s *AuthService) AuthenticateAPIKey(ctx context.Context, key string) (*model.AuthContext, error) {
	parsed, err := auth.ParseAPIKey(key)
	if err != nil {
		return nil, ErrInvalidToken
	}

	cacheKey := auth.QuickHash(key)
	if s.cache != nil {
		if cached, _ := s.cache.GetAuthContext(ctx, cacheKey); cached != nil {
			return cached, nil
		}
	}

	candidates, err := s.keys.GetAPIKeysByPrefix(ctx, parsed.Prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to look up API key: %w", err)
	}

	// Several keys may share a prefix.
	var matched *model.APIKey
	for _, k := range candidates {
		ok, err := auth.VerifyPassword(key, k.KeyHash)
		if err == nil && ok {
			matched = k
			break
		}
	}
	if matched == nil {
		return nil, ErrInvalidToken
	}

	user, err := s.users.GetUserByID(ctx, matched.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to load key owner: %w", err)
	}
	profile, err := s.users.GetProfile(ctx, matched.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load key owner profile: %w", err)
	}

	authCtx := &model.AuthContext{
		UserID:    matched.UserID,
		Email:     user.Email,
		Role:      profile.Role,
		Method:    model.AuthMethodAPIKey,
		KeyID:     matched.ID,
		KeyPrefix: matched.KeyPrefix,
		Scopes:    matched.Scopes,
	}

	if s.cache != nil {
		if err := s.cache.SetAuthContext(ctx, cacheKey, authCtx); err != nil {
			s.logger.Warn("failed to cache auth context",
				slog.String("key_id", matched.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	go func(id string) {
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = s.keys.UpdateAPIKeyLastUsed(bg, id)
	}(matched.ID)

	return authCtx, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", invalid("email", "is required")
	}
	if len(email) > maxEmailLength {
		return "", invalid("email", "is too long")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return "", invalid("email", "must be a valid email address")
	}
	return email, nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return invalid("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	if len(password) > maxPasswordLength {
		return invalid("password", "is too long")
	}
	return nil
}

// waitRemaining blocks for d or until ctx is done, whichever comes first.
func waitRemaining(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
