// Package source defines the namespace reference documents are read from
// when the context digest is rebuilt.
package source

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Fetch when a listed key has disappeared.
var ErrNotFound = errors.New("document not found")

// Source is a technology-agnostic, read-only document namespace.
// Implementations can use object storage, a database table, or a vector
// collection's payloads.
type Source interface {
	// List returns up to limit document keys in the source's own, stable
	// listing order.
	List(ctx context.Context, limit int) ([]string, error)

	// Fetch returns the raw content stored under key.
	Fetch(ctx context.Context, key string) (string, error)
}
