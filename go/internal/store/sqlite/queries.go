package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/mcdev12/ludotime/go/internal/sqlutil"
	"github.com/mcdev12/ludotime/go/internal/store"
)

type queries struct {
	db sqlutil.DBTX
}

func newQueries(db sqlutil.DBTX) *queries {
	return &queries{db: db}
}

// getDocument returns the row for key, tombstones included. ok is false when
// the key has never been written.
func (q *queries) getDocument(ctx context.Context, key string) (rec store.Record, ok bool, err error) {
	var value []byte
	err = q.db.QueryRowContext(ctx,
		`SELECT value, version FROM session_documents WHERE key = ?`, key,
	).Scan(&value, &rec.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Record{Key: key}, false, nil
	}
	if err != nil {
		return store.Record{}, false, err
	}
	rec.Key = key
	rec.Value = sqlutil.FromNullBytes(value)
	return rec, true, nil
}

func (q *queries) upsertDocument(ctx context.Context, key string, value json.RawMessage, version, updatedAt int64) error {
	var blob any
	if value != nil {
		blob = []byte(value)
	}
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO session_documents (key, value, version, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   value = excluded.value,
		   version = excluded.version,
		   updated_at = excluded.updated_at`,
		key, blob, version, updatedAt,
	)
	return err
}

// swapDocument updates key only if it is live at version. It reports whether a
// row changed.
func (q *queries) swapDocument(ctx context.Context, key string, version int64, value json.RawMessage, updatedAt int64) (bool, error) {
	var blob any
	if value != nil {
		blob = []byte(value)
	}
	res, err := q.db.ExecContext(ctx,
		`UPDATE session_documents
		    SET value = ?, version = version + 1, updated_at = ?
		  WHERE key = ? AND version = ? AND value IS NOT NULL`,
		blob, updatedAt, key, version,
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
