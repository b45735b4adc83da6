// Package sqlite provides a single-node store.Store on an embedded SQLite
// database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/ludotime/go/internal/sqlutil"
	"github.com/mcdev12/ludotime/go/internal/store"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// Store persists session documents in SQLite. Change notifications are only
// delivered to subscribers in the same process.
type Store struct {
	db     *sql.DB
	broker *store.Broker
	clock  clockwork.Clock
}

var _ store.Store = (*Store)(nil)

type Option func(*Store)

// WithClock sets the clock used for updated_at stamps.
func WithClock(c clockwork.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// Open opens or creates the database at path and applies the schema.
func Open(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection serialises writers so read-check-write
	// transactions never hit SQLITE_BUSY on upgrade.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &Store{
		db:     db,
		broker: store.NewBroker(),
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	log.Info().Str("path", path).Msg("sqlite store opened")
	return s, nil
}

func (s *Store) Get(ctx context.Context, key string) (store.Record, error) {
	rec, ok, err := newQueries(s.db).getDocument(ctx, key)
	if err != nil {
		return store.Record{}, fmt.Errorf("get %q: %w", key, err)
	}
	if !ok || rec.Deleted() {
		return store.Record{}, fmt.Errorf("get %q: %w", key, store.ErrNotFound)
	}
	return rec, nil
}

func (s *Store) Create(ctx context.Context, key string, value json.RawMessage) (store.Record, error) {
	if value == nil {
		return store.Record{}, fmt.Errorf("create %q: nil value", key)
	}
	return s.write(ctx, key, value, func(cur store.Record, ok bool) error {
		if ok && !cur.Deleted() {
			return fmt.Errorf("create %q: %w", key, store.ErrAlreadyExists)
		}
		return nil
	})
}

func (s *Store) Set(ctx context.Context, key string, value json.RawMessage) (store.Record, error) {
	return s.write(ctx, key, value, func(cur store.Record, ok bool) error {
		if value == nil && (!ok || cur.Deleted()) {
			return fmt.Errorf("delete %q: %w", key, store.ErrNotFound)
		}
		return nil
	})
}

func (s *Store) write(ctx context.Context, key string, value json.RawMessage, check func(cur store.Record, ok bool) error) (store.Record, error) {
	var rec store.Record
	err := sqlutil.Run(ctx, s.db, newQueries, func(q *queries) error {
		cur, ok, err := q.getDocument(ctx, key)
		if err != nil {
			return err
		}
		if err := check(cur, ok); err != nil {
			return err
		}
		rec = store.Record{Key: key, Value: value, Version: cur.Version + 1}
		return q.upsertDocument(ctx, key, value, rec.Version, s.clock.Now().UnixMilli())
	})
	if err != nil {
		return store.Record{}, err
	}
	s.broker.Publish(rec)
	return rec, nil
}

func (s *Store) CompareAndSwap(ctx context.Context, key string, version int64, value json.RawMessage) (store.Record, error) {
	err := sqlutil.Run(ctx, s.db, newQueries, func(q *queries) error {
		swapped, err := q.swapDocument(ctx, key, version, value, s.clock.Now().UnixMilli())
		if err != nil {
			return err
		}
		if swapped {
			return nil
		}
		cur, ok, err := q.getDocument(ctx, key)
		if err != nil {
			return err
		}
		if !ok || cur.Deleted() {
			return fmt.Errorf("cas %q: %w", key, store.ErrNotFound)
		}
		return fmt.Errorf("cas %q at version %d, stored %d: %w", key, version, cur.Version, store.ErrConflict)
	})
	if err != nil {
		return store.Record{}, err
	}
	rec := store.Record{Key: key, Value: value, Version: version + 1}
	s.broker.Publish(rec)
	return rec, nil
}

func (s *Store) Subscribe(ctx context.Context, key string) (<-chan store.Record, error) {
	rec, ok, err := newQueries(s.db).getDocument(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("subscribe %q: %w", key, err)
	}
	var initial *store.Record
	if ok && !rec.Deleted() {
		initial = &rec
	}
	return s.broker.Subscribe(ctx, key, initial), nil
}

func (s *Store) Close() error {
	s.broker.Close()
	return s.db.Close()
}
