package object

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned by Open for a key that holds no object.
var ErrNotFound = errors.New("object not found")

// Info describes a stored object.
type Info struct {
	Key        string    `json:"key"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// ObjectStore archives backup dumps under slash-separated keys.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// List returns the objects whose key starts with prefix, newest first.
	List(ctx context.Context, prefix string) ([]Info, error)
}
