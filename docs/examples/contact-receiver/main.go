// Quillscribe Contact Receiver Example
//
// A minimal receiver for the portal's contact.created webhooks.
//
// Usage:
//   export QUILLSCRIBE_WEBHOOK_SECRET="whsec_your_secret_here"
//   go run main.go
//
// Then set CONTACT_WEBHOOK_URL=http://your-server:9000/contact on the portal.

package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

const replayWindow = 5 * time.Minute

// ContactEvent is the webhook body.
type ContactEvent struct {
	Event     string         `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	Message   ContactMessage `json:"message"`
}

type ContactMessage struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

func main() {
	secret := os.Getenv("QUILLSCRIBE_WEBHOOK_SECRET")
	if secret == "" {
		log.Fatal("QUILLSCRIBE_WEBHOOK_SECRET environment variable is required")
	}

	http.HandleFunc("/contact", contactHandler(secret))
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	})

	log.Println("Starting contact receiver on :9000")
	log.Fatal(http.ListenAndServe(":9000", nil))
}

func contactHandler(secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			http.Error(w, "Failed to read body", http.StatusBadRequest)
			return
		}

		if !verifySignature(r.Header.Get("X-Quillscribe-Signature"), body, secret, time.Now()) {
			log.Println("Invalid signature")
			http.Error(w, "Invalid signature", http.StatusUnauthorized)
			return
		}

		var event ContactEvent
		if err := json.Unmarshal(body, &event); err != nil {
			// 4xx is permanent for the sender, so bad payloads are not retried.
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}

		log.Printf("%s delivery=%s from=%q <%s> subject=%q",
			event.Event,
			r.Header.Get("X-Quillscribe-Delivery-Id"),
			event.Message.Name,
			event.Message.Email,
			event.Message.Subject,
		)

		w.WriteHeader(http.StatusOK)
	}
}

// verifySignature checks a "t=<unix>,v1=<hex>" header against
// hmac-sha256(secret, "<unix>.<body>").
func verifySignature(header string, body []byte, secret string, now time.Time) bool {
	var timestamp string
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			sigs = append(sigs, value)
		}
	}
	if timestamp == "" || len(sigs) == 0 {
		return false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	age := now.Sub(time.Unix(ts, 0))
	if age > replayWindow || age < -replayWindow {
		log.Println("Signature timestamp outside replay window")
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range sigs {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return true
		}
	}
	return false
}
