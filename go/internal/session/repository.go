package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcdev12/ludotime/go/internal/models"
	"github.com/mcdev12/ludotime/go/internal/store"
)

// Document is a decoded session together with the store version it was read
// at.
type Document struct {
	Session models.Session
	Version int64
	Deleted bool
}

// Repository maps session documents onto a store.Store, keyed by session code.
type Repository struct {
	store store.Store
}

func NewRepository(st store.Store) *Repository {
	return &Repository{store: st}
}

// Load reads the live session for code.
func (r *Repository) Load(ctx context.Context, code string) (Document, error) {
	rec, err := r.store.Get(ctx, code)
	if err != nil {
		return Document{}, translate(code, err)
	}
	return decode(rec)
}

// Create stores a new session. It fails with store.ErrAlreadyExists if the
// code is taken.
func (r *Repository) Create(ctx context.Context, s models.Session) (Document, error) {
	value, err := json.Marshal(s)
	if err != nil {
		return Document{}, fmt.Errorf("encode session %s: %w", s.Code, err)
	}
	rec, err := r.store.Create(ctx, s.Code, value)
	if err != nil {
		return Document{}, err
	}
	return Document{Session: s, Version: rec.Version}, nil
}

// Swap replaces the session if it is still at version.
func (r *Repository) Swap(ctx context.Context, version int64, s models.Session) (Document, error) {
	value, err := json.Marshal(s)
	if err != nil {
		return Document{}, fmt.Errorf("encode session %s: %w", s.Code, err)
	}
	rec, err := r.store.CompareAndSwap(ctx, s.Code, version, value)
	if err != nil {
		return Document{}, translate(s.Code, err)
	}
	return Document{Session: s, Version: rec.Version}, nil
}

// Delete removes the session if it is still at version.
func (r *Repository) Delete(ctx context.Context, code string, version int64) (Document, error) {
	rec, err := r.store.CompareAndSwap(ctx, code, version, nil)
	if err != nil {
		return Document{}, translate(code, err)
	}
	return Document{Session: models.Session{Code: code}, Version: rec.Version, Deleted: true}, nil
}

// Watch streams decoded documents for code until ctx is done. Undecodable
// records are skipped and reported to onError.
func (r *Repository) Watch(ctx context.Context, code string, onError func(error)) (<-chan Document, error) {
	records, err := r.store.Subscribe(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("watch session %s: %w", code, err)
	}

	docs := make(chan Document)
	go func() {
		defer close(docs)
		for rec := range records {
			doc, err := decode(rec)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			select {
			case docs <- doc:
			case <-ctx.Done():
				return
			}
		}
	}()
	return docs, nil
}

func decode(rec store.Record) (Document, error) {
	if rec.Deleted() {
		return Document{Session: models.Session{Code: rec.Key}, Version: rec.Version, Deleted: true}, nil
	}
	var s models.Session
	if err := json.Unmarshal(rec.Value, &s); err != nil {
		return Document{}, fmt.Errorf("decode session %s: %w", rec.Key, err)
	}
	return Document{Session: s, Version: rec.Version}, nil
}

func translate(code string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrSessionNotFound, code)
	case errors.Is(err, store.ErrConflict):
		return fmt.Errorf("%w: session %s changed", ErrTransactionConflict, code)
	default:
		return err
	}
}
