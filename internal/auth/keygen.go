package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// API keys look like qs_{env}_{prefix}_{secret}, for example
// qs_live_7a9f3c_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b. The prefix is stored in
// clear for lookup. Only an argon2id hash of the whole key is stored.
const (
	KeyPrefixLen = 6
	KeySecretLen = 32

	keyMarker = "qs_"
)

// Key environments. Live keys are issued in production only.
const (
	EnvLive = "live"
	EnvTest = "test"
)

// ErrInvalidKeyFormat is returned for strings that are not API keys.
var ErrInvalidKeyFormat = errors.New("invalid API key format")

var keyFormat = regexp.MustCompile(`^qs_(live|test)_([a-f0-9]{6})_([a-f0-9]{32})$`)

// ParsedKey is an API key split into its parts.
type ParsedKey struct {
	Env    string
	Prefix string
	Secret string
}

// String reassembles the plaintext key.
func (k ParsedKey) String() string {
	return keyMarker + k.Env + "_" + k.Prefix + "_" + k.Secret
}

// GeneratedKey is a new key. Plaintext is shown to the caller once.
type GeneratedKey struct {
	Plaintext string
	Hash      string
	Prefix    string
}

// GenerateAPIKey creates and hashes a key for env. Unknown envs get live keys.
func GenerateAPIKey(env string) (*GeneratedKey, error) {
	parts, err := newKeyParts(env)
	if err != nil {
		return nil, err
	}
	plaintext := parts.String()
	hash, err := HashPassword(plaintext)
	if err != nil {
		return nil, fmt.Errorf("hash key: %w", err)
	}
	return &GeneratedKey{Plaintext: plaintext, Hash: hash, Prefix: parts.Prefix}, nil
}

func newKeyParts(env string) (ParsedKey, error) {
	if env != EnvLive && env != EnvTest {
		env = EnvLive
	}
	prefix, err := randomHex(KeyPrefixLen / 2)
	if err != nil {
		return ParsedKey{}, fmt.Errorf("generate prefix: %w", err)
	}
	secret, err := randomHex(KeySecretLen / 2)
	if err != nil {
		return ParsedKey{}, fmt.Errorf("generate secret: %w", err)
	}
	return ParsedKey{Env: env, Prefix: prefix, Secret: secret}, nil
}

// EnvForAppEnv picks the key environment for an APP_ENV value.
func EnvForAppEnv(appEnv string) string {
	if appEnv == "production" {
		return EnvLive
	}
	return EnvTest
}

// ParseAPIKey splits a plaintext key, rejecting anything off-format.
func ParseAPIKey(key string) (*ParsedKey, error) {
	m := keyFormat.FindStringSubmatch(key)
	if m == nil {
		return nil, ErrInvalidKeyFormat
	}
	return &ParsedKey{Env: m[1], Prefix: m[2], Secret: m[3]}, nil
}

// ValidateKeyFormat reports whether key is a well-formed API key.
func ValidateKeyFormat(key string) bool {
	return keyFormat.MatchString(key)
}

// LooksLikeAPIKey tells API keys apart from session tokens in a bearer
// header without validating either.
func LooksLikeAPIKey(token string) bool {
	return strings.HasPrefix(token, keyMarker)
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
