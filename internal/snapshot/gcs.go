package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"

	"github.com/quillscribe/portal/internal/model"
)

// GCSStore keeps snapshots as objects in a Cloud Storage bucket. An object
// only becomes visible once its writer closes, so readers never see a
// partial snapshot.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSStore creates a store from an existing client. Object names are
// prefix + "{provider}-models.json".
func NewGCSStore(client *storage.Client, bucket, prefix string) *GCSStore {
	return &GCSStore{client: client, bucket: bucket, prefix: prefix}
}

// ObjectName returns the object name for a provider.
func (s *GCSStore) ObjectName(p model.Provider) string {
	return s.prefix + FileName(p)
}

// Save uploads doc, replacing the previous object.
func (s *GCSStore) Save(ctx context.Context, p model.Provider, doc *Document) error {
	w := s.client.Bucket(s.bucket).Object(s.ObjectName(p)).NewWriter(ctx)
	w.ContentType = "application/json"
	w.CacheControl = "no-cache, max-age=0"

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		_ = w.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("upload snapshot %s: %w", s.ObjectName(p), err)
	}
	return nil
}

// Load downloads the snapshot of a provider.
func (s *GCSStore) Load(ctx context.Context, p model.Provider) (*Document, error) {
	r, err := s.client.Bucket(s.bucket).Object(s.ObjectName(p)).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open snapshot %s: %w", s.ObjectName(p), err)
	}
	defer r.Close()

	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", s.ObjectName(p), err)
	}
	return &doc, nil
}
