package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quillscribe/portal/internal/model"
)

func testMessage() *model.ContactMessage {
	return &model.ContactMessage{
		ID:        "01HZXCONTACT",
		Name:      "Ada Lovelace",
		Email:     "ada@example.com",
		Subject:   "Pricing",
		Message:   "Do you offer team plans?",
		Status:    model.ContactStatusPending,
		CreatedAt: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
	}
}

func TestWebhookNotifier_SignsRequest(t *testing.T) {
	const secret = "whsec_contact"
	var (
		gotHeader string
		gotBody   []byte
		gotID     string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get(HeaderSignature)
		gotID = r.Header.Get(HeaderDeliveryID)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, secret, srv.Client(), nil)
	if err := n.Notify(context.Background(), testMessage()); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	if gotID != "01HZXCONTACT" {
		t.Errorf("delivery id = %q", gotID)
	}
	if err := VerifySignatureHeader(secret, gotHeader, gotBody, DefaultReplayWindow, time.Now()); err != nil {
		t.Errorf("signature does not verify: %v", err)
	}

	var payload WebhookPayload
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Event != EventContactCreated || payload.Message.Email != "ada@example.com" {
		t.Errorf("unexpected payload: %+v", payload)
	}
}

func TestWebhookNotifier_StatusClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantErr       bool
		wantPermanent bool
	}{
		{"ok", http.StatusOK, false, false},
		{"accepted", http.StatusAccepted, false, false},
		{"bad request", http.StatusBadRequest, true, true},
		{"gone", http.StatusGone, true, true},
		{"timeout", http.StatusRequestTimeout, true, false},
		{"rate limited", http.StatusTooManyRequests, true, false},
		{"server error", http.StatusBadGateway, true, false},
		{"redirect not followed", http.StatusFound, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.status == http.StatusFound {
					w.Header().Set("Location", "https://example.com")
				}
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			n := NewWebhookNotifier(srv.URL, "s", NewHTTPClient(true), nil)
			err := n.Notify(context.Background(), testMessage())
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if IsPermanent(err) != tt.wantPermanent {
				t.Errorf("IsPermanent = %v, want %v", IsPermanent(err), tt.wantPermanent)
			}
		})
	}
}

func TestWebhookNotifier_ConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	n := NewWebhookNotifier(url, "s", NewHTTPClient(true), nil)
	err := n.Notify(context.Background(), testMessage())
	if err == nil {
		t.Fatal("expected error for closed server")
	}
	if IsPermanent(err) {
		t.Error("connection errors should be retryable")
	}
}
