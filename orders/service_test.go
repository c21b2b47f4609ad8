package orders

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

var testSchema = []string{
	`CREATE TABLE product_stocks (
		id TEXT PRIMARY KEY,
		product_name TEXT NOT NULL,
		product_sku TEXT,
		quantity_available INTEGER NOT NULL,
		unit_cost REAL NOT NULL,
		warehouse_location TEXT,
		is_active INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		purchaser_id TEXT NOT NULL,
		status TEXT NOT NULL,
		payment_status TEXT NOT NULL,
		subtotal REAL NOT NULL,
		tax_amount REAL NOT NULL,
		shipping_cost REAL NOT NULL,
		discount REAL NOT NULL,
		total REAL NOT NULL,
		shipping_address TEXT,
		notes TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE order_details (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		product_name TEXT NOT NULL,
		unit_price REAL NOT NULL,
		quantity INTEGER NOT NULL,
		subtotal REAL NOT NULL
	)`,
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// a single connection keeps every statement on the same memory db
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	for _, ddl := range testSchema {
		if _, err := db.ExecContext(context.Background(), ddl); err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func seedProduct(t *testing.T, db *bun.DB, name string, stock int, price float64, active bool) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO product_stocks (id, product_name, product_sku, quantity_available, unit_cost, warehouse_location, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id.String(), name, "", stock, price, "", active)
	if err != nil {
		t.Fatalf("seed product %s: %v", name, err)
	}
	return id
}

func stockOf(t *testing.T, db *bun.DB, id uuid.UUID) int {
	t.Helper()

	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT quantity_available FROM product_stocks WHERE id = ?", id.String()).Scan(&n)
	if err != nil {
		t.Fatalf("read stock: %v", err)
	}
	return n
}

func countRows(t *testing.T, db *bun.DB, table string) int {
	t.Helper()

	var n int
	err := db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n)
	if err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestCreateReservesStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	productID := seedProduct(t, db, "Runner Azul", 5, 59.99, true)
	svc := NewService(db)

	order, err := svc.Create(context.Background(), CreateRequest{
		PurchaserID:     "user-1",
		Lines:           []Line{{ProductID: productID, Quantity: 2}},
		ShippingAddress: "Av. Solano 12-34, Cuenca",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if order.Status != StatusConfirmed || order.PaymentStatus != PaymentPending {
		t.Fatalf("status = %s/%s, want CONFIRMED/PENDING", order.Status, order.PaymentStatus)
	}
	if order.Subtotal != 119.98 || order.Total != 119.98 {
		t.Fatalf("subtotal/total = %.2f/%.2f, want 119.98", order.Subtotal, order.Total)
	}
	if got := stockOf(t, db, productID); got != 3 {
		t.Fatalf("stock = %d, want 3", got)
	}
	if got := countRows(t, db, "orders"); got != 1 {
		t.Fatalf("orders rows = %d, want 1", got)
	}
	if got := countRows(t, db, "order_details"); got != 1 {
		t.Fatalf("order_details rows = %d, want 1", got)
	}

	// the snapshot freezes name and price at purchase time
	if len(order.Details) != 1 || order.Details[0].ProductName != "Runner Azul" || order.Details[0].UnitPrice != 59.99 {
		t.Fatalf("unexpected detail snapshot %+v", order.Details)
	}
}

func TestCreateShortStockMutatesNothing(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	okID := seedProduct(t, db, "Runner Azul", 5, 59.99, true)
	shortID := seedProduct(t, db, "Bota Andina", 1, 89.9, true)
	svc := NewService(db)

	_, err := svc.Create(context.Background(), CreateRequest{
		PurchaserID: "user-1",
		Lines: []Line{
			{ProductID: okID, Quantity: 2},
			{ProductID: shortID, Quantity: 3},
		},
	})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("error = %v, want ErrInsufficientStock", err)
	}

	// the rollback must undo any decrement applied before the short line
	if got := stockOf(t, db, okID); got != 5 {
		t.Fatalf("stock of full line = %d, want 5 untouched", got)
	}
	if got := stockOf(t, db, shortID); got != 1 {
		t.Fatalf("stock of short line = %d, want 1 untouched", got)
	}
	if got := countRows(t, db, "orders"); got != 0 {
		t.Fatalf("orders rows = %d, want 0", got)
	}
	if got := countRows(t, db, "order_details"); got != 0 {
		t.Fatalf("order_details rows = %d, want 0", got)
	}
}

func TestCreateRejectsUnsellableProducts(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	inactiveID := seedProduct(t, db, "Modelo Retirado", 10, 45, false)
	svc := NewService(db)

	_, err := svc.Create(context.Background(), CreateRequest{
		PurchaserID: "user-1",
		Lines:       []Line{{ProductID: inactiveID, Quantity: 1}},
	})
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("inactive product: error = %v, want ErrProductNotFound", err)
	}
	if got := stockOf(t, db, inactiveID); got != 10 {
		t.Fatalf("stock = %d, want 10 untouched", got)
	}

	_, err = svc.Create(context.Background(), CreateRequest{
		PurchaserID: "user-1",
		Lines:       []Line{{ProductID: uuid.New(), Quantity: 1}},
	})
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("unknown product: error = %v, want ErrProductNotFound", err)
	}
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateRequest{PurchaserID: "user-1"}); !errors.Is(err, ErrEmptyOrder) {
		t.Fatalf("empty lines: error = %v, want ErrEmptyOrder", err)
	}
	if _, err := svc.Create(ctx, CreateRequest{
		Lines: []Line{{ProductID: uuid.New(), Quantity: 1}},
	}); !errors.Is(err, ErrService) {
		t.Fatalf("missing purchaser: error = %v, want ErrService", err)
	}
	if _, err := svc.Create(ctx, CreateRequest{
		PurchaserID: "user-1",
		Lines:       []Line{{ProductID: uuid.New(), Quantity: 0}},
	}); !errors.Is(err, ErrService) {
		t.Fatalf("zero quantity: error = %v, want ErrService", err)
	}
}

func TestCancelRestoresStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	productID := seedProduct(t, db, "Runner Azul", 5, 59.99, true)
	svc := NewService(db)
	ctx := context.Background()

	order, err := svc.Create(ctx, CreateRequest{
		PurchaserID: "user-1",
		Lines:       []Line{{ProductID: productID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := stockOf(t, db, productID); got != 3 {
		t.Fatalf("stock after create = %d, want 3", got)
	}

	cancelled, err := svc.Cancel(ctx, order.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled || cancelled.PaymentStatus != PaymentRefunded {
		t.Fatalf("status = %s/%s, want CANCELLED/REFUNDED", cancelled.Status, cancelled.PaymentStatus)
	}
	if got := stockOf(t, db, productID); got != 5 {
		t.Fatalf("stock after cancel = %d, want 5 restored", got)
	}

	// cancelled is terminal
	if _, err := svc.Cancel(ctx, order.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second cancel: error = %v, want ErrInvalidTransition", err)
	}
	if got := stockOf(t, db, productID); got != 5 {
		t.Fatalf("stock after failed cancel = %d, want 5", got)
	}
}

func TestCancelUnknownOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := NewService(db)

	if _, err := svc.Cancel(context.Background(), uuid.New()); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("error = %v, want ErrOrderNotFound", err)
	}
}
