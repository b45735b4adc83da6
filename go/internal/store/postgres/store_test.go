package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/mcdev12/ludotime/go/internal/store"
	"github.com/mcdev12/ludotime/go/internal/store/storetest"
)

// TestStore runs the store contract against a real database. It needs
// LUDO_TEST_POSTGRES_DSN pointing at a disposable database.
func TestStore(t *testing.T) {
	dsn := os.Getenv("LUDO_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LUDO_TEST_POSTGRES_DSN not set")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			t.Fatal(err)
		}
		ctx := context.Background()
		if _, err := db.ExecContext(ctx, Schema); err != nil {
			t.Fatalf("apply schema: %v", err)
		}
		if _, err := db.ExecContext(ctx, `TRUNCATE session_documents`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		cfg := DefaultListenerConfig()
		cfg.DatabaseURL = dsn
		s, err := New(db, cfg)
		if err != nil {
			t.Fatal(err)
		}
		return s
	})
}
