package store

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrNotFound is returned when a key has no live value.
	ErrNotFound = errors.New("store: key not found")
	// ErrConflict is returned by CompareAndSwap when the stored version no
	// longer matches the version the caller read.
	ErrConflict = errors.New("store: version conflict")
	// ErrAlreadyExists is returned by Create when the key holds a live value.
	ErrAlreadyExists = errors.New("store: key already exists")
)

// Record is one versioned document. Version increases by one on every write to
// the key, deletions included, and never goes backwards. A nil Value marks a
// deleted key.
type Record struct {
	Key     string          `json:"key"`
	Value   json.RawMessage `json:"value,omitempty"`
	Version int64           `json:"version"`
}

// Deleted reports whether the record is a deletion marker.
func (r Record) Deleted() bool {
	return r.Value == nil
}

// Store is a key-value document store with compare-and-set writes and change
// subscriptions.
type Store interface {
	// Get returns the live value for key or ErrNotFound.
	Get(ctx context.Context, key string) (Record, error)

	// Create writes value only if key has no live value.
	Create(ctx context.Context, key string, value json.RawMessage) (Record, error)

	// Set writes value unconditionally.
	Set(ctx context.Context, key string, value json.RawMessage) (Record, error)

	// CompareAndSwap writes value only if key is still at version. A nil value
	// deletes the key. Returns ErrConflict if another write landed first and
	// ErrNotFound if the key has no live value.
	CompareAndSwap(ctx context.Context, key string, version int64, value json.RawMessage) (Record, error)

	// Subscribe streams changes to key until ctx is done. The current value, if
	// any, is delivered first. Slow readers only see the latest record.
	Subscribe(ctx context.Context, key string) (<-chan Record, error)

	Close() error
}
