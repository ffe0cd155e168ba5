package model

import "time"

// Contact message delivery statuses.
const (
	ContactStatusPending   = "pending"
	ContactStatusDelivered = "delivered"
	ContactStatusFailed    = "failed"
)

// ContactMessage is a submission of the public contact form.
type ContactMessage struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Subject     string     `json:"subject"`
	Message     string     `json:"message"`
	Status      string     `json:"status"`
	Attempts    int        `json:"attempts"`
	LastError   string     `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// ContactCreateRequest is the body of the contact form endpoint.
type ContactCreateRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}
