package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/quillscribe/portal/internal/model"
)

type memContacts struct {
	saved []*model.ContactMessage
	err   error
}

func (m *memContacts) CreateContactMessage(_ context.Context, msg *model.ContactMessage) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, msg)
	return nil
}

type stubPublisher struct {
	ids []string
	err error
}

func (p *stubPublisher) Publish(_ context.Context, id string, _ time.Time) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.ids = append(p.ids, id)
	return "1-0", nil
}

func validContact() model.ContactCreateRequest {
	return model.ContactCreateRequest{
		Name:    "Ada",
		Email:   "Ada@Example.com",
		Subject: "Enterprise plan",
		Message: "Do you support SSO?",
	}
}

func TestContactService_Submit(t *testing.T) {
	store := &memContacts{}
	pub := &stubPublisher{}
	svc := NewContactService(store, pub, nil)

	msg, err := svc.Submit(context.Background(), validContact())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if msg.Status != model.ContactStatusPending || msg.Email != "ada@example.com" {
		t.Errorf("unexpected message: %+v", msg)
	}
	if len(store.saved) != 1 || len(pub.ids) != 1 || pub.ids[0] != msg.ID {
		t.Errorf("saved=%d published=%v", len(store.saved), pub.ids)
	}
}

func TestContactService_PublishFailureStillAccepts(t *testing.T) {
	store := &memContacts{}
	svc := NewContactService(store, &stubPublisher{err: errors.New("redis down")}, nil)

	if _, err := svc.Submit(context.Background(), validContact()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(store.saved) != 1 {
		t.Error("message should be stored even when enqueue fails")
	}
}

func TestContactService_WithoutPublisher(t *testing.T) {
	store := &memContacts{}
	svc := NewContactService(store, nil, nil)
	if _, err := svc.Submit(context.Background(), validContact()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
}

func TestContactService_Validation(t *testing.T) {
	svc := NewContactService(&memContacts{}, nil, nil)
	tests := []struct {
		name   string
		mutate func(r *model.ContactCreateRequest)
		field  string
	}{
		{"missing name", func(r *model.ContactCreateRequest) { r.Name = " " }, "name"},
		{"bad email", func(r *model.ContactCreateRequest) { r.Email = "nope" }, "email"},
		{"missing subject", func(r *model.ContactCreateRequest) { r.Subject = "" }, "subject"},
		{"missing message", func(r *model.ContactCreateRequest) { r.Message = "" }, "message"},
		{"long message", func(r *model.ContactCreateRequest) { r.Message = strings.Repeat("a", 5001) }, "message"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validContact()
			tt.mutate(&req)
			_, err := svc.Submit(context.Background(), req)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Field = %s, want %s", verr.Field, tt.field)
			}
		})
	}
}
