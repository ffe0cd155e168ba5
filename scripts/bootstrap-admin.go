package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/quillscribe/portal/internal/auth"
	"github.com/quillscribe/portal/internal/model"
	"github.com/quillscribe/portal/internal/repository"
)

const minPasswordLength = 8

type output struct {
	UserID    string   `json:"user_id"`
	Email     string   `json:"email"`
	Created   bool     `json:"created"`
	KeyID     string   `json:"key_id,omitempty"`
	Key       string   `json:"key,omitempty"`
	KeyPrefix string   `json:"key_prefix,omitempty"`
	Scopes    []string `json:"scopes,omitempty"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		email       = flag.String("email", "", "Admin email (required)")
		password    = flag.String("password", os.Getenv("ADMIN_PASSWORD"), "Password for a new admin user")
		fullName    = flag.String("full-name", "", "Full name for a new admin user")
		issueKey    = flag.Bool("issue-key", false, "Also issue an API key for the admin")
		keyName     = flag.String("key-name", "bootstrap", "API key name")
		scopesInput = flag.String("scopes", "admin", "Comma-separated scopes (read,write,admin)")
		appEnv      = flag.String("env", envOr("APP_ENV", "development"), "App environment, selects the live or test key marker")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}
	addr := strings.ToLower(strings.TrimSpace(*email))
	if addr == "" || !strings.Contains(addr, "@") {
		fmt.Fprintln(os.Stderr, "a valid -email is required")
		os.Exit(1)
	}

	scopes, err := parseScopes(*scopesInput)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL, repository.PoolOptions{MaxConns: 2})
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer repo.Close()

	user, created, err := ensureAdmin(ctx, repo, addr, *password, *fullName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	out := output{UserID: user.ID, Email: user.Email, Created: created}

	if *issueKey {
		generated, err := auth.GenerateAPIKey(auth.EnvForAppEnv(*appEnv))
		if err != nil {
			fmt.Fprintln(os.Stderr, "generate api key:", err)
			os.Exit(1)
		}

		apiKey := &model.APIKey{
			ID:        ulid.Make().String(),
			UserID:    user.ID,
			KeyHash:   generated.Hash,
			KeyPrefix: generated.Prefix,
			Scopes:    scopes,
			Name:      *keyName,
			CreatedAt: time.Now().UTC(),
		}
		if err := repo.CreateAPIKey(ctx, apiKey); err != nil {
			fmt.Fprintln(os.Stderr, "create api key:", err)
			os.Exit(1)
		}

		out.KeyID = apiKey.ID
		out.Key = generated.Plaintext
		out.KeyPrefix = apiKey.KeyPrefix
		out.Scopes = scopes
	}

	switch strings.ToLower(*format) {
	case "plain":
		if out.Key != "" {
			fmt.Println(out.Key)
		} else {
			fmt.Println(out.UserID)
		}
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}

// ensureAdmin promotes an existing user or creates a confirmed admin.
func ensureAdmin(ctx context.Context, repo *repository.Repository, email, password, fullName string) (*model.User, bool, error) {
	existing, err := repo.GetUserByEmail(ctx, email)
	if err == nil {
		if err := repo.SetUserRole(ctx, existing.ID, model.RoleAdmin); err != nil {
			return nil, false, fmt.Errorf("promote user: %w", err)
		}
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, false, fmt.Errorf("look up user: %w", err)
	}

	if len(password) < minPasswordLength {
		return nil, false, fmt.Errorf("a password of at least %d characters is required to create %s", minPasswordLength, email)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, false, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:               ulid.Make().String(),
		Email:            email,
		PasswordHash:     hash,
		EmailConfirmedAt: &now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	profile := &model.Profile{
		UserID:    user.ID,
		Role:      model.RoleAdmin,
		FullName:  strings.TrimSpace(fullName),
		UpdatedAt: now,
	}
	if err := repo.CreateUserWithProfile(ctx, user, profile); err != nil {
		return nil, false, fmt.Errorf("create user: %w", err)
	}
	return user, true, nil
}

func parseScopes(input string) ([]string, error) {
	if strings.TrimSpace(input) == "" {
		return []string{model.ScopeAdmin}, nil
	}
	parts := strings.Split(input, ",")
	scopes := make([]string, 0, len(parts))
	for _, part := range parts {
		scope := strings.TrimSpace(part)
		if scope == "" {
			continue
		}
		if !slices.Contains(model.ValidScopes, scope) {
			return nil, fmt.Errorf("invalid scope: %s", scope)
		}
		scopes = append(scopes, scope)
	}
	if len(scopes) == 0 {
		scopes = []string{model.ScopeAdmin}
	}
	return scopes, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
