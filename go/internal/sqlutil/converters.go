package sqlutil

import (
	"encoding/json"

	"github.com/sqlc-dev/pqtype"
)

// Helper functions for converting between document values and nullable columns

// ToNullRawMessage converts a document value to pqtype.NullRawMessage.
// A nil value is stored as SQL NULL.
func ToNullRawMessage(val json.RawMessage) pqtype.NullRawMessage {
	if val == nil {
		return pqtype.NullRawMessage{Valid: false}
	}
	return pqtype.NullRawMessage{RawMessage: val, Valid: true}
}

// FromNullRawMessage converts pqtype.NullRawMessage back to a document value,
// nil for SQL NULL.
func FromNullRawMessage(val pqtype.NullRawMessage) json.RawMessage {
	if !val.Valid {
		return nil
	}
	return append(make(json.RawMessage, 0, len(val.RawMessage)), val.RawMessage...)
}

// FromNullBytes converts a scanned nullable BLOB to a document value, nil for
// SQL NULL.
func FromNullBytes(val []byte) json.RawMessage {
	if val == nil {
		return nil
	}
	return append(make(json.RawMessage, 0, len(val)), val...)
}
