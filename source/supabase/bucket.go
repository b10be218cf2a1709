package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	storage_go "github.com/supabase-community/storage-go"

	"github.com/creastat/chatcore/source"
)

// objectStore is the subset of the Storage API the bucket source needs.
type objectStore interface {
	ListFiles(bucketId string, queryPath string, options storage_go.FileSearchOptions) ([]storage_go.FileObject, error)
	DownloadFile(bucketId string, filePath string, urlOptions ...storage_go.UrlOptions) ([]byte, error)
}

// Bucket lists and downloads objects from a Storage bucket, ordered by
// object name.
type Bucket struct {
	storage objectStore
	bucket  string
	prefix  string
}

// NewBucket creates a bucket source.
func NewBucket(cfg Config) (*Bucket, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("supabase bucket is required")
	}
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Bucket{storage: client.Storage, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// List implements source.Source.
func (b *Bucket) List(ctx context.Context, limit int) ([]string, error) {
	files, err := b.storage.ListFiles(b.bucket, b.prefix, storage_go.FileSearchOptions{
		Limit:         limit,
		SortByOptions: storage_go.SortBy{Column: "name", Order: "asc"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list bucket %s: %w", b.bucket, err)
	}

	keys := make([]string, 0, len(files))
	for _, f := range files {
		if f.Name == "" {
			continue
		}
		keys = append(keys, path.Join(b.prefix, f.Name))
	}
	return keys, nil
}

// Fetch implements source.Source.
func (b *Bucket) Fetch(ctx context.Context, key string) (string, error) {
	data, err := b.storage.DownloadFile(b.bucket, key)
	if isObjectNotFound(err) {
		return "", fmt.Errorf("%s: %w", key, source.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", key, err)
	}
	return string(data), nil
}

// isObjectNotFound reports whether err is the Storage API's missing
// object error. The API answers 404, or 400 on older deployments, with a
// JSON body whose status field is not always populated, so the message
// is checked too.
func isObjectNotFound(err error) bool {
	var se *storage_go.StorageError
	if !errors.As(err, &se) {
		return false
	}
	if se.Status == http.StatusNotFound {
		return true
	}
	msg := strings.ToLower(se.Message)
	return strings.Contains(msg, "not found") || strings.Contains(msg, "not_found")
}

// Compile-time check that Bucket implements Source
var _ source.Source = (*Bucket)(nil)
