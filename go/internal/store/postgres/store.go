// Package postgres provides a networked store.Store on Postgres. Writes are
// compare-and-set on a version column and every commit is announced with
// NOTIFY so subscribers in other processes see it.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/mcdev12/ludotime/go/internal/sqlutil"
	"github.com/mcdev12/ludotime/go/internal/store"
	"github.com/rs/zerolog/log"
)

// Schema creates the session_documents table.
//
//go:embed schema.sql
var Schema string

// Store is a Postgres-backed store.Store.
type Store struct {
	db       *sql.DB
	broker   *store.Broker
	listener *Listener
	channel  string
	cancel   context.CancelFunc
	done     chan struct{}
}

var _ store.Store = (*Store)(nil)

// Open connects to Postgres and starts listening for change notifications.
// The session_documents table must already exist.
func Open(ctx context.Context, cfg ListenerConfig) (*Store, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return New(db, cfg)
}

// New wraps an open database handle.
func New(db *sql.DB, cfg ListenerConfig) (*Store, error) {
	s := &Store{
		db:      db,
		broker:  store.NewBroker(),
		channel: cfg.NotifyChannel,
		done:    make(chan struct{}),
	}
	l, err := NewListener(db, s.broker, cfg)
	if err != nil {
		return nil, err
	}
	s.listener = l

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		defer close(s.done)
		if err := l.Start(ctx); err != nil {
			log.Error().Err(err).Msg("postgres listener stopped")
		}
	}()
	return s, nil
}

func (s *Store) Get(ctx context.Context, key string) (store.Record, error) {
	rec, ok, err := newQueries(s.db).getDocument(ctx, key, false)
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
		cur, ok, err := q.getDocument(ctx, key, true)
		if err != nil {
			return err
		}
		if err := check(cur, ok); err != nil {
			return err
		}
		rec = store.Record{Key: key, Value: value, Version: cur.Version + 1}
		if ok {
			if err := q.setDocument(ctx, key, value, rec.Version); err != nil {
				return err
			}
		} else {
			inserted, err := q.insertDocument(ctx, key, value)
			if err != nil {
				return err
			}
			if !inserted {
				// Another transaction created the key after our read.
				return fmt.Errorf("write %q: %w", key, store.ErrAlreadyExists)
			}
		}
		return q.notify(ctx, s.channel, rec)
	})
	if err != nil {
		return store.Record{}, err
	}
	s.broker.Publish(rec)
	return rec, nil
}

func (s *Store) CompareAndSwap(ctx context.Context, key string, version int64, value json.RawMessage) (store.Record, error) {
	rec := store.Record{Key: key, Value: value, Version: version + 1}
	err := sqlutil.Run(ctx, s.db, newQueries, func(q *queries) error {
		swapped, err := q.swapDocument(ctx, key, version, value)
		if err != nil {
			return err
		}
		if swapped {
			return q.notify(ctx, s.channel, rec)
		}
		cur, ok, err := q.getDocument(ctx, key, false)
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
	s.broker.Publish(rec)
	return rec, nil
}

func (s *Store) Subscribe(ctx context.Context, key string) (<-chan store.Record, error) {
	rec, ok, err := newQueries(s.db).getDocument(ctx, key, false)
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
	s.cancel()
	<-s.done
	s.broker.Close()
	return s.db.Close()
}
