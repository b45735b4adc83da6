package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/mcdev12/ludotime/go/internal/dbconfig"
	"github.com/mcdev12/ludotime/go/internal/store/postgres"
)

func main() {
	_ = godotenv.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 1) Connect using shared dbconfig
	cfg, err := dbconfig.NewConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 2) Apply the session store schema
	if _, err := pool.Exec(ctx, postgres.Schema); err != nil {
		fmt.Fprintf(os.Stderr, "apply schema: %v\n", err)
		os.Exit(1)
	}

	// 3) Report what is there
	var live, tombstones int
	err = pool.QueryRow(ctx, `
		SELECT count(*) FILTER (WHERE value IS NOT NULL),
		       count(*) FILTER (WHERE value IS NULL)
		  FROM session_documents`).Scan(&live, &tombstones)
	if err != nil {
		fmt.Fprintf(os.Stderr, "count documents: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Schema applied to %s: %d live sessions, %d deleted\n", cfg.Database, live, tombstones)
}
