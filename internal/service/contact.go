package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/quillscribe/portal/internal/model"
)

const (
	maxContactNameLength    = 100
	maxContactSubjectLength = 200
	maxContactMessageLength = 5000
)

// ContactStore persists contact messages.
type ContactStore interface {
	CreateContactMessage(ctx context.Context, m *model.ContactMessage) error
}

// ContactPublisher hands a stored message to the delivery pipeline.
type ContactPublisher interface {
	Publish(ctx context.Context, messageID string, createdAt time.Time) (string, error)
}

// ContactService accepts contact form submissions.
type ContactService struct {
	store     ContactStore
	publisher ContactPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewContactService creates a ContactService. publisher may be nil when no
// notifier is configured; messages are then only stored.
func NewContactService(store ContactStore, publisher ContactPublisher, logger *slog.Logger) *ContactService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContactService{
		store:     store,
		publisher: publisher,
		logger:    logger.With("component", "contact"),
		now:       time.Now,
	}
}

// Submit validates and stores a message, then enqueues it for delivery.
// A failed enqueue is logged; the message stays pending in the database.
func (s *ContactService) Submit(ctx context.Context, req model.ContactCreateRequest) (*model.ContactMessage, error) {
	msg, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateContactMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to store contact message: %w", err)
	}

	if s.publisher == nil {
		return msg, nil
	}
	if _, err := s.publisher.Publish(ctx, msg.ID, msg.CreatedAt); err != nil {
		s.logger.Warn("failed to enqueue contact message",
			slog.String("message_id", msg.ID),
			slog.String("error", err.Error()),
		)
	}
	return msg, nil
}

func (s *ContactService) validate(req model.ContactCreateRequest) (*model.ContactMessage, error) {
	name := strings.TrimSpace(req.Name)
	subject := strings.TrimSpace(req.Subject)
	body := strings.TrimSpace(req.Message)

	switch {
	case name == "":
		return nil, invalid("name", "is required")
	case utf8.RuneCountInString(name) > maxContactNameLength:
		return nil, invalid("name", fmt.Sprintf("must be at most %d characters", maxContactNameLength))
	case subject == "":
		return nil, invalid("subject", "is required")
	case utf8.RuneCountInString(subject) > maxContactSubjectLength:
		return nil, invalid("subject", fmt.Sprintf("must be at most %d characters", maxContactSubjectLength))
	case body == "":
		return nil, invalid("message", "is required")
	case utf8.RuneCountInString(body) > maxContactMessageLength:
		return nil, invalid("message", fmt.Sprintf("must be at most %d characters", maxContactMessageLength))
	}

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}

	return &model.ContactMessage{
		ID:        ulid.Make().String(),
		Name:      name,
		Email:     email,
		Subject:   subject,
		Message:   body,
		Status:    model.ContactStatusPending,
		CreatedAt: s.now().UTC(),
	}, nil
}
