package database

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestEnsureSchemaRejectsInvalidDimension(t *testing.T) {
	if err := EnsureSchema(context.Background(), nil, 0); err == nil {
		t.Fatal("expected error when dimension is not positive")
	}
}

func TestEnsureSchemaRejectsNilPool(t *testing.T) {
	if err := EnsureSchema(context.Background(), nil, 768); err == nil {
		t.Fatal("expected error for nil pool")
	}
}

func TestTruncateRejectsNilPool(t *testing.T) {
	if err := Truncate(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil pool")
	}
}

func TestPostgresSchemaIntegration(t *testing.T) {
	if os.Getenv("RUN_DB_INTEGRATION_TESTS") != "1" {
		t.Skip("set RUN_DB_INTEGRATION_TESTS=1 to run database checks")
	}

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		dsn = "postgres://localhost:5432/psy?sslmode=disable"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := NewPostgresPool(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to create postgres pool: %v", err)
	}
	defer pool.Close()

	if err := EnsureSchema(ctx, pool, 3); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if err := EnsureSchema(ctx, pool, 3); err != nil {
		t.Fatalf("ensure schema is not idempotent: %v", err)
	}
}
