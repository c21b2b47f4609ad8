package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/dmquizhpe/ventia/inventory"
	qstashx "github.com/dmquizhpe/ventia/pkg/qstash"
)

const (
	TopicOrderCreated   = "order.created"
	TopicOrderCancelled = "order.cancelled"
)

// Line is one requested line item for a new order.
type Line struct {
	ProductID uuid.UUID
	Quantity  int
}

// CreateRequest describes a new order. Prices come from the catalog rows
// locked inside the transaction, never from the caller.
type CreateRequest struct {
	PurchaserID     string
	Lines           []Line
	ShippingAddress string
	Notes           string
	TaxAmount       float64
	ShippingCost    float64
}

// Service executes order operations atomically. Stock checks, stock
// mutations and order writes share one transaction, so a failed order
// never leaves stock partially decremented.
type Service struct {
	db     *bun.DB
	events *qstashx.Publisher
	now    func() time.Time
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithEvents wires a best-effort event publisher. Publish failures are
// logged and never fail the order operation.
func WithEvents(p *qstashx.Publisher) ServiceOption {
	return func(s *Service) { s.events = p }
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// rowLock adds FOR UPDATE on Postgres. SQLite serializes writers on its
// own and rejects the clause.
func (s *Service) rowLock(q *bun.SelectQuery) *bun.SelectQuery {
	if s.db.Dialect().Name() == dialect.PG {
		return q.For("UPDATE")
	}
	return q
}

func NewService(db *bun.DB, opts ...ServiceOption) *Service {
	s := &Service{
		db:  db,
		now: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Create reserves stock and writes the order in one transaction. The
// order starts CONFIRMED with payment PENDING.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	if strings.TrimSpace(req.PurchaserID) == "" {
		return nil, fmt.Errorf("%w: purchaser id is required", ErrService)
	}
	if len(req.Lines) == 0 {
		return nil, ErrEmptyOrder
	}
	for _, line := range req.Lines {
		if line.ProductID == uuid.Nil || line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: invalid line item", ErrService)
		}
	}

	// lock products in a stable order
	lines := make([]Line, len(req.Lines))
	copy(lines, req.Lines)
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].ProductID.String() < lines[j].ProductID.String()
	})

	now := s.now().UTC()
	order := &Order{
		ID:              uuid.New(),
		PurchaserID:     req.PurchaserID,
		Status:          StatusConfirmed,
		PaymentStatus:   PaymentPending,
		TaxAmount:       round2(req.TaxAmount),
		ShippingCost:    round2(req.ShippingCost),
		ShippingAddress: strings.TrimSpace(req.ShippingAddress),
		Notes:           strings.TrimSpace(req.Notes),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		for _, line := range lines {
			var product inventory.Product
			err := s.rowLock(tx.NewSelect().
				Model(&product).
				Where("ps.id = ?", line.ProductID)).
				Scan(ctx)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %s", ErrProductNotFound, line.ProductID)
			}
			if err != nil {
				return fmt.Errorf("%w: lock product: %v", ErrService, err)
			}
			if !product.IsActive {
				return fmt.Errorf("%w: %s", ErrProductNotFound, line.ProductID)
			}
			if product.QuantityAvailable < line.Quantity {
				return fmt.Errorf("%w: %s has %d, want %d",
					ErrInsufficientStock, product.ProductName, product.QuantityAvailable, line.Quantity)
			}

			product.QuantityAvailable -= line.Quantity
			if _, err := tx.NewUpdate().
				Model(&product).
				Column("quantity_available").
				WherePK().
				Exec(ctx); err != nil {
				return fmt.Errorf("%w: reserve stock: %v", ErrService, err)
			}

			order.Details = append(order.Details, &OrderDetail{
				ID:          uuid.New(),
				OrderID:     order.ID,
				ProductID:   product.ID,
				ProductName: product.ProductName,
				UnitPrice:   product.UnitCost,
				Quantity:    line.Quantity,
			})
		}

		order.RecomputeTotals()

		if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
			return fmt.Errorf("%w: insert order: %v", ErrService, err)
		}
		if _, err := tx.NewInsert().Model(&order.Details).Exec(ctx); err != nil {
			return fmt.Errorf("%w: insert order details: %v", ErrService, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, TopicOrderCreated, order)
	return order, nil
}

// Cancel voids a non-terminal order, restores its stock and refunds the
// payment marker.
func (s *Service) Cancel(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	var order *Order

	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		loaded, err := s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !loaded.Status.CanTransitionTo(StatusCancelled) {
			return fmt.Errorf("%w: %s cannot be cancelled", ErrInvalidTransition, loaded.Status)
		}

		for _, detail := range loaded.Details {
			if _, err := tx.NewUpdate().
				Model((*inventory.Product)(nil)).
				Set("quantity_available = quantity_available + ?", detail.Quantity).
				Where("id = ?", detail.ProductID).
				Exec(ctx); err != nil {
				return fmt.Errorf("%w: restore stock: %v", ErrService, err)
			}
		}

		loaded.Status = StatusCancelled
		loaded.PaymentStatus = PaymentRefunded
		loaded.UpdatedAt = s.now().UTC()

		if _, err := tx.NewUpdate().
			Model(loaded).
			Column("status", "payment_status", "updated_at").
			WherePK().
			Exec(ctx); err != nil {
			return fmt.Errorf("%w: update order: %v", ErrService, err)
		}

		order = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, TopicOrderCancelled, order)
	return order, nil
}

// Confirm moves a draft order to CONFIRMED.
func (s *Service) Confirm(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	return s.ChangeStatus(ctx, orderID, StatusConfirmed)
}

// MarkPaid moves a confirmed order to PAID and records the payment.
func (s *Service) MarkPaid(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	var order *Order
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		loaded, err := s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !loaded.Status.CanTransitionTo(StatusPaid) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, loaded.Status, StatusPaid)
		}

		loaded.Status = StatusPaid
		loaded.PaymentStatus = PaymentPaid
		loaded.UpdatedAt = s.now().UTC()

		if _, err := tx.NewUpdate().
			Model(loaded).
			Column("status", "payment_status", "updated_at").
			WherePK().
			Exec(ctx); err != nil {
			return fmt.Errorf("%w: update order: %v", ErrService, err)
		}
		order = loaded
		return nil
	})
	return order, err
}

// ChangeStatus applies one state machine step. Cancellation must go
// through Cancel so stock is restored.
func (s *Service) ChangeStatus(ctx context.Context, orderID uuid.UUID, target Status) (*Order, error) {
	if target == StatusCancelled {
		return nil, fmt.Errorf("%w: use Cancel to void an order", ErrInvalidTransition)
	}

	var order *Order
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		loaded, err := s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !loaded.Status.CanTransitionTo(target) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, loaded.Status, target)
		}

		loaded.Status = target
		loaded.UpdatedAt = s.now().UTC()

		if _, err := tx.NewUpdate().
			Model(loaded).
			Column("status", "updated_at").
			WherePK().
			Exec(ctx); err != nil {
			return fmt.Errorf("%w: update order: %v", ErrService, err)
		}
		order = loaded
		return nil
	})
	return order, err
}

// SetTax updates the tax amount and recomputes totals.
func (s *Service) SetTax(ctx context.Context, orderID uuid.UUID, tax float64) (*Order, error) {
	return s.adjust(ctx, orderID, func(o *Order) error {
		if tax < 0 {
			return fmt.Errorf("%w: tax must be >= 0", ErrService)
		}
		o.TaxAmount = round2(tax)
		return nil
	})
}

// SetShippingCost updates the shipping cost and recomputes totals.
func (s *Service) SetShippingCost(ctx context.Context, orderID uuid.UUID, cost float64) (*Order, error) {
	return s.adjust(ctx, orderID, func(o *Order) error {
		if cost < 0 {
			return fmt.Errorf("%w: shipping cost must be >= 0", ErrService)
		}
		o.ShippingCost = round2(cost)
		return nil
	})
}

// ApplyDiscount sets the order discount and recomputes totals. The
// discount may not exceed the pre-discount amount.
func (s *Service) ApplyDiscount(ctx context.Context, orderID uuid.UUID, discount float64) (*Order, error) {
	return s.adjust(ctx, orderID, func(o *Order) error {
		if discount < 0 {
			return fmt.Errorf("%w: discount must be >= 0", ErrService)
		}
		if discount > o.Subtotal+o.TaxAmount+o.ShippingCost {
			return fmt.Errorf("%w: discount exceeds order amount", ErrService)
		}
		o.Discount = round2(discount)
		return nil
	})
}

func (s *Service) adjust(ctx context.Context, orderID uuid.UUID, mutate func(*Order) error) (*Order, error) {
	var order *Order
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		loaded, err := s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !loaded.Editable() {
			return fmt.Errorf("%w: status %s", ErrNotEditable, loaded.Status)
		}
		if err := mutate(loaded); err != nil {
			return err
		}

		loaded.RecomputeTotals()
		loaded.UpdatedAt = s.now().UTC()

		if _, err := tx.NewUpdate().
			Model(loaded).
			Column("subtotal", "tax_amount", "shipping_cost", "discount", "total", "updated_at").
			WherePK().
			Exec(ctx); err != nil {
			return fmt.Errorf("%w: update order: %v", ErrService, err)
		}
		order = loaded
		return nil
	})
	return order, err
}

// GetByID loads one order with its line items.
func (s *Service) GetByID(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	var order Order
	err := s.db.NewSelect().
		Model(&order).
		Relation("Details").
		Where("o.id = ?", orderID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load order: %v", ErrService, err)
	}
	return &order, nil
}

// ListByPurchaser returns a page of the purchaser's orders, newest first,
// optionally filtered by status.
func (s *Service) ListByPurchaser(ctx context.Context, purchaserID string, status Status, limit, offset int) ([]*Order, error) {
	if strings.TrimSpace(purchaserID) == "" {
		return nil, fmt.Errorf("%w: purchaser id is required", ErrService)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var out []*Order
	q := s.db.NewSelect().
		Model(&out).
		Relation("Details").
		Where("o.purchaser_id = ?", purchaserID)
	if status != "" {
		q = q.Where("o.status = ?", status)
	}

	err := q.Order("o.created_at DESC").Limit(limit).Offset(offset).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list orders: %v", ErrService, err)
	}
	return out, nil
}

func (s *Service) lockOrder(ctx context.Context, tx bun.Tx, orderID uuid.UUID) (*Order, error) {
	var order Order
	err := s.rowLock(tx.NewSelect().
		Model(&order).
		Where("o.id = ?", orderID)).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lock order: %v", ErrService, err)
	}

	if err := tx.NewSelect().
		Model(&order.Details).
		Where("od.order_id = ?", orderID).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("%w: load order details: %v", ErrService, err)
	}
	return &order, nil
}

func (s *Service) publish(ctx context.Context, topic string, order *Order) {
	if s.events == nil || order == nil {
		return
	}
	payload := map[string]any{
		"order_id":     order.ID.String(),
		"reference":    order.ShortRef(),
		"purchaser_id": order.PurchaserID,
		"status":       string(order.Status),
		"total":        order.Total,
	}
	if err := s.events.PublishJSON(ctx, topic, payload); err != nil {
		log.Warn().Err(err).Str("topic", topic).Str("order_id", order.ID.String()).Msg("order event publish failed")
	}
}
