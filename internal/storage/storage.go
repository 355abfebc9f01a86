package storage

import (
	"context"
	"io"
)

// ObjectStore stages audio where the batch recognizer can read it by URI.
type ObjectStore interface {
	// Upload stores r under name and returns the object's URI.
	Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error)
	Delete(ctx context.Context, name string) error
}
