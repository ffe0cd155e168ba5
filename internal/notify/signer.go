package notify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrReplayWindowExceeded is returned when timestamp is outside replay window.
	ErrReplayWindowExceeded = errors.New("timestamp outside replay window")
	// ErrInvalidSignature is returned when signature verification fails.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrMalformedHeader is returned when the signature header cannot be parsed.
	ErrMalformedHeader = errors.New("malformed signature header")
)

const (
	// DefaultReplayWindow is the default replay protection window.
	DefaultReplayWindow = 5 * time.Minute

	signatureVersion = "v1"
)

// GenerateSignature creates the HMAC-SHA256 signature of a webhook body.
// The canonical string format is: "{timestamp}.{body}"
func GenerateSignature(secret string, timestamp int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeader formats the signature header value: "t={ts},v1={hex}".
func SignatureHeader(secret string, timestamp int64, body []byte) string {
	return fmt.Sprintf("t=%d,%s=%s", timestamp, signatureVersion, GenerateSignature(secret, timestamp, body))
}

// ParseSignatureHeader extracts the timestamp and v1 signatures of a header.
// Unknown fields are ignored so new versions can be added side by side.
func ParseSignatureHeader(header string) (int64, []string, error) {
	var (
		timestamp int64
		haveTS    bool
		sigs      []string
	)
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, ErrMalformedHeader
			}
			timestamp, haveTS = ts, true
		case signatureVersion:
			sigs = append(sigs, value)
		}
	}
	if !haveTS || len(sigs) == 0 {
		return 0, nil, ErrMalformedHeader
	}
	return timestamp, sigs, nil
}

// VerifySignatureHeader verifies a signature header with replay protection.
func VerifySignatureHeader(secret, header string, body []byte, replayWindow time.Duration, now time.Time) error {
	timestamp, sigs, err := ParseSignatureHeader(header)
	if err != nil {
		return err
	}
	if abs(now.Unix()-timestamp) > int64(replayWindow.Seconds()) {
		return ErrReplayWindowExceeded
	}

	expected := []byte(GenerateSignature(secret, timestamp, body))
	for _, sig := range sigs {
		if hmac.Equal(expected, []byte(sig)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

func abs(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}
