package inventory

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newCatalogDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	_, err = db.ExecContext(context.Background(), `CREATE TABLE product_stocks (
		id TEXT PRIMARY KEY,
		product_name TEXT NOT NULL,
		product_sku TEXT,
		quantity_available INTEGER NOT NULL,
		unit_cost REAL NOT NULL,
		warehouse_location TEXT,
		is_active INTEGER NOT NULL DEFAULT 1
	)`)
	if err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

func seedProduct(t *testing.T, db *bun.DB, name, sku string, stock int, active bool) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO product_stocks (id, product_name, product_sku, quantity_available, unit_cost, warehouse_location, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id.String(), name, sku, stock, 59.99, "", active)
	if err != nil {
		t.Fatalf("seed product %s: %v", name, err)
	}
	return id
}

func TestGetByIDSkipsInactive(t *testing.T) {
	t.Parallel()

	db := newCatalogDB(t)
	activeID := seedProduct(t, db, "Runner Azul", "RUN-001", 8, true)
	inactiveID := seedProduct(t, db, "Modelo Retirado", "OLD-001", 3, false)
	store := NewStore(db)
	ctx := context.Background()

	got := store.GetByID(ctx, activeID)
	if got == nil || got.Name != "Runner Azul" {
		t.Fatalf("active lookup = %+v, want Runner Azul", got)
	}

	if got := store.GetByID(ctx, inactiveID); got != nil {
		t.Fatalf("inactive product must not resolve, got %+v", got)
	}
	if got := store.GetByID(ctx, uuid.New()); got != nil {
		t.Fatalf("unknown id must not resolve, got %+v", got)
	}
	if got := store.GetByID(ctx, uuid.Nil); got != nil {
		t.Fatalf("nil id must not resolve, got %+v", got)
	}
}

func TestSearchByCode(t *testing.T) {
	t.Parallel()

	db := newCatalogDB(t)
	seedProduct(t, db, "Runner Azul", "RUN-001", 8, true)
	seedProduct(t, db, "Modelo Retirado", "OLD-001", 3, false)
	store := NewStore(db)
	ctx := context.Background()

	got := store.SearchByCode(ctx, "run-001")
	if got == nil || got.Name != "Runner Azul" {
		t.Fatalf("sku lookup = %+v, want Runner Azul", got)
	}

	if got := store.SearchByCode(ctx, "OLD-001"); got != nil {
		t.Fatalf("inactive sku must not resolve, got %+v", got)
	}
	if got := store.SearchByCode(ctx, "  "); got != nil {
		t.Fatalf("blank sku must not resolve, got %+v", got)
	}
}
