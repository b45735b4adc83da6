package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mcdev12/ludotime/go/internal/store"
)

// Store is an in-process store.Store. Deleted keys keep a tombstone so their
// version keeps increasing if the key is reused.
type Store struct {
	mu     sync.Mutex
	docs   map[string]store.Record
	broker *store.Broker
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		docs:   make(map[string]store.Record),
		broker: store.NewBroker(),
	}
}

func (s *Store) Get(ctx context.Context, key string) (store.Record, error) {
	if err := ctx.Err(); err != nil {
		return store.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.docs[key]
	if !ok || rec.Deleted() {
		return store.Record{}, fmt.Errorf("get %q: %w", key, store.ErrNotFound)
	}
	return clone(rec), nil
}

func (s *Store) Create(ctx context.Context, key string, value json.RawMessage) (store.Record, error) {
	if err := ctx.Err(); err != nil {
		return store.Record{}, err
	}
	if value == nil {
		return store.Record{}, fmt.Errorf("create %q: nil value", key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.docs[key]; ok && !rec.Deleted() {
		return store.Record{}, fmt.Errorf("create %q: %w", key, store.ErrAlreadyExists)
	}
	return s.writeLocked(key, value), nil
}

func (s *Store) Set(ctx context.Context, key string, value json.RawMessage) (store.Record, error) {
	if err := ctx.Err(); err != nil {
		return store.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.docs[key]; value == nil && (!ok || rec.Deleted()) {
		return store.Record{}, fmt.Errorf("delete %q: %w", key, store.ErrNotFound)
	}
	return s.writeLocked(key, value), nil
}

func (s *Store) CompareAndSwap(ctx context.Context, key string, version int64, value json.RawMessage) (store.Record, error) {
	if err := ctx.Err(); err != nil {
		return store.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.docs[key]
	if !ok || rec.Deleted() {
		return store.Record{}, fmt.Errorf("cas %q: %w", key, store.ErrNotFound)
	}
	if rec.Version != version {
		return store.Record{}, fmt.Errorf("cas %q at version %d, stored %d: %w", key, version, rec.Version, store.ErrConflict)
	}
	return s.writeLocked(key, value), nil
}

func (s *Store) Subscribe(ctx context.Context, key string) (<-chan store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var initial *store.Record
	if rec, ok := s.docs[key]; ok && !rec.Deleted() {
		c := clone(rec)
		initial = &c
	}
	return s.broker.Subscribe(ctx, key, initial), nil
}

func (s *Store) Close() error {
	s.broker.Close()
	return nil
}

// writeLocked stores value as the next version of key and publishes it while
// s.mu is held, so subscribers see commits in order.
func (s *Store) writeLocked(key string, value json.RawMessage) store.Record {
	rec := store.Record{
		Key:     key,
		Value:   clone(store.Record{Value: value}).Value,
		Version: s.docs[key].Version + 1,
	}
	s.docs[key] = rec
	s.broker.Publish(clone(rec))
	return clone(rec)
}

func clone(rec store.Record) store.Record {
	if rec.Value != nil {
		rec.Value = append(make(json.RawMessage, 0, len(rec.Value)), rec.Value...)
	}
	return rec
}
