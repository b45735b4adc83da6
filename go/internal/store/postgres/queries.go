package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcdev12/ludotime/go/internal/sqlutil"
	"github.com/mcdev12/ludotime/go/internal/store"
	"github.com/sqlc-dev/pqtype"
)

type queries struct {
	db sqlutil.DBTX
}

func newQueries(db sqlutil.DBTX) *queries {
	return &queries{db: db}
}

// notification is the pg_notify payload sent on every committed write.
type notification struct {
	Key     string `json:"key"`
	Version int64  `json:"version"`
}

// getDocument returns the row for key, tombstones included. ok is false when
// the key has never been written. lock takes a row lock for the rest of the
// transaction.
func (q *queries) getDocument(ctx context.Context, key string, lock bool) (rec store.Record, ok bool, err error) {
	query := `SELECT value, version FROM session_documents WHERE key = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	var value pqtype.NullRawMessage
	err = q.db.QueryRowContext(ctx, query, key).Scan(&value, &rec.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Record{Key: key}, false, nil
	}
	if err != nil {
		return store.Record{}, false, err
	}
	rec.Key = key
	rec.Value = sqlutil.FromNullRawMessage(value)
	return rec, true, nil
}

// insertDocument adds a row for a key that has never been written and reports
// whether it won the insert.
func (q *queries) insertDocument(ctx context.Context, key string, value json.RawMessage) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO session_documents (key, value, version, updated_at)
		VALUES ($1, $2, 1, now())
		ON CONFLICT (key) DO NOTHING`,
		key, sqlutil.ToNullRawMessage(value),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// setDocument overwrites a row locked by getDocument.
func (q *queries) setDocument(ctx context.Context, key string, value json.RawMessage, version int64) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE session_documents
		   SET value = $1, version = $2, updated_at = now()
		 WHERE key = $3`,
		sqlutil.ToNullRawMessage(value), version, key,
	)
	return err
}

// swapDocument updates key only if it is live at version and reports whether a
// row changed.
func (q *queries) swapDocument(ctx context.Context, key string, version int64, value json.RawMessage) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE session_documents
		   SET value = $1, version = version + 1, updated_at = now()
		 WHERE key = $2 AND version = $3 AND value IS NOT NULL`,
		sqlutil.ToNullRawMessage(value), key, version,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// notify queues a change notification that Postgres delivers on commit.
func (q *queries) notify(ctx context.Context, channel string, rec store.Record) error {
	payload, err := json.Marshal(notification{Key: rec.Key, Version: rec.Version})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	_, err = q.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, channel, string(payload))
	return err
}
