package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestHashPassword_PHCFormat(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	parts := strings.Split(hash, "$")
	if len(parts) != 6 {
		t.Fatalf("expected 6 PHC segments, got %d in %q", len(parts), hash)
	}
	want := []string{"", "argon2id", "v=19", "m=65536,t=3,p=4"}
	for i, w := range want {
		if parts[i] != w {
			t.Errorf("segment %d = %q, want %q", i, parts[i], w)
		}
	}

	h, err := decodePHC(hash)
	if err != nil {
		t.Fatalf("decodePHC() error = %v", err)
	}
	if len(h.salt) != argon2SaltLen || len(h.key) != argon2KeyLen {
		t.Errorf("salt %d bytes, key %d bytes", len(h.salt), len(h.key))
	}
}

func TestHashPassword_SaltedPerCall(t *testing.T) {
	t.Parallel()

	const password = "same-password-twice"
	a, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	b, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if a == b {
		t.Fatal("hashes of the same password should differ by salt")
	}
	for _, h := range []string{a, b} {
		if ok, err := VerifyPassword(password, h); err != nil || !ok {
			t.Errorf("VerifyPassword(%q) = %v, %v", h, ok, err)
		}
	}
}

func TestVerifyPassword(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("s3cret-Passw0rd")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	tests := []struct {
		name     string
		password string
		hash     string
		want     bool
		wantErr  error
	}{
		{name: "match", password: "s3cret-Passw0rd", hash: hash, want: true},
		{name: "wrong password", password: "s3cret-passw0rd", hash: hash},
		{name: "empty password", password: "", hash: hash},
		{name: "empty hash", password: "x", hash: "", wantErr: ErrInvalidHash},
		{name: "not phc", password: "x", hash: "plaintext", wantErr: ErrInvalidHash},
		{name: "bcrypt", password: "x", hash: "$2a$10$abcdefghijklmnopqrstuv", wantErr: ErrInvalidHash},
		{name: "truncated", password: "x", hash: "$argon2id$v=19$m=65536", wantErr: ErrInvalidHash},
		{name: "bad params", password: "x", hash: "$argon2id$v=19$m=a,t=b,p=c$c2FsdA$a2V5", wantErr: ErrInvalidHash},
		{name: "bad salt", password: "x", hash: "$argon2id$v=19$m=65536,t=3,p=4$!!!$a2V5", wantErr: ErrInvalidHash},
		{
			name: "old version", password: "x",
			hash:    "$argon2id$v=18$m=65536,t=3,p=4$c29tZXNhbHRoZXJl$c29tZWhhc2hoZXJl",
			wantErr: ErrIncompatibleVersion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := VerifyPassword(tt.password, tt.hash)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("VerifyPassword() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("VerifyPassword() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNeedsRehash(t *testing.T) {
	t.Parallel()

	current, err := HashPassword("password")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	tests := []struct {
		name string
		hash string
		want bool
	}{
		{"current parameters", current, false},
		{"weak memory and time", "$argon2id$v=19$m=4096,t=1,p=1$c29tZXNhbHRoZXJl$c29tZWhhc2hoZXJlc29tZWhhc2hoZXJlMTIzNDU2Nzg", true},
		{"short key", "$argon2id$v=19$m=65536,t=3,p=4$c29tZXNhbHRoZXJl$c2hvcnQ", true},
		{"garbage", "garbage", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NeedsRehash(tt.hash); got != tt.want {
				t.Errorf("NeedsRehash() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBurnVerify(t *testing.T) {
	t.Parallel()

	// Must not panic for any input, including the empty password.
	BurnVerify("")
	BurnVerify("unknown-user-password")
}

func TestQuickHash(t *testing.T) {
	t.Parallel()

	key := "qs_live_abc123_0123456789abcdef0123456789abcdef"
	if QuickHash(key) != QuickHash(key) {
		t.Error("QuickHash should be deterministic")
	}
	if QuickHash(key) == QuickHash(key+"x") {
		t.Error("different inputs should hash differently")
	}
	for _, in := range []string{"", "abc", key, strings.Repeat("x", 1000)} {
		if got := len(QuickHash(in)); got != 32 {
			t.Errorf("len(QuickHash(%d bytes)) = %d, want 32", len(in), got)
		}
	}
}
