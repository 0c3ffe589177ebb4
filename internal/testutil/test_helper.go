// Package testutil sets up a throwaway PostgreSQL schema for tests.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/johndosdos/chatsync/internal/database"
)

// ProjectRoot returns the repository root.
func ProjectRoot() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "../../")
}

// DbInit connects to TEST_DB_URL, resets the schema and migrates it up. The
// test is skipped when TEST_DB_URL is not set. The schema is reset again
// when the test finishes.
func DbInit(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if err := godotenv.Load(filepath.Join(ProjectRoot(), ".env")); err != nil {
		t.Logf("failed to load .env file: %+v", err)
	}

	testURL := os.Getenv("TEST_DB_URL")
	if testURL == "" {
		t.Skip("TEST_DB_URL environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, testURL)
	if err != nil {
		t.Fatalf("could not connect to the postgresql database: %v", err)
	}

	if err := database.Reset(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("database.Reset() error = %+v", err)
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("database.Migrate() error = %+v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := database.Reset(ctx, pool); err != nil {
			t.Errorf("database.Reset() error = %+v", err)
		}
		pool.Close()
	})

	return pool
}
