// Package snapshot persists the normalized model listing of each provider
// as a JSON document of the form {models, lastUpdated, count, source}.
package snapshot

import (
	"context"
	"errors"
	"time"

	"github.com/quillscribe/portal/internal/model"
)

// ErrNotFound is returned when no snapshot has been written for a provider.
var ErrNotFound = errors.New("snapshot not found")

// Sources record where the models of a snapshot came from.
const (
	SourceUpstream = "upstream"
	SourceFallback = "fallback"
)

// TimeFormat matches JavaScript's Date.toISOString output.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Document is the on-disk snapshot shape.
type Document struct {
	Models      []model.AIModel `json:"models"`
	LastUpdated string          `json:"lastUpdated"`
	Count       int             `json:"count"`
	Source      string          `json:"source,omitempty"`
}

// NewDocument builds a document stamped with now in UTC.
// A nil model slice is stored as an empty array.
func NewDocument(models []model.AIModel, source string, now time.Time) *Document {
	if models == nil {
		models = []model.AIModel{}
	}
	return &Document{
		Models:      models,
		LastUpdated: now.UTC().Format(TimeFormat),
		Count:       len(models),
		Source:      source,
	}
}

// UpdatedAt parses LastUpdated.
func (d *Document) UpdatedAt() (time.Time, error) {
	return time.Parse(TimeFormat, d.LastUpdated)
}

// Store saves and loads whole snapshots. Save replaces the previous
// snapshot atomically, so Load never observes a partial document.
type Store interface {
	Save(ctx context.Context, p model.Provider, doc *Document) error
	Load(ctx context.Context, p model.Provider) (*Document, error)
}

// FileName returns the snapshot file name for a provider.
func FileName(p model.Provider) string {
	return string(p) + "-models.json"
}
