// Package orders owns the order lifecycle: stock-safe creation,
// cancellation with stock restoration, and the status state machine.
package orders

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Status is the order lifecycle state.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusConfirmed Status = "CONFIRMED"
	StatusPaid      Status = "PAID"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// forward chain; any non-terminal state may also be cancelled
var nextStatus = map[Status]Status{
	StatusDraft:     StatusConfirmed,
	StatusConfirmed: StatusPaid,
	StatusPaid:      StatusShipped,
	StatusShipped:   StatusDelivered,
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransitionTo reports whether the order may move from s to target.
func (s Status) CanTransitionTo(target Status) bool {
	if s.Terminal() {
		return false
	}
	if target == StatusCancelled {
		return true
	}
	return nextStatus[s] == target
}

// PaymentStatus tracks money independently of fulfilment.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// Order is the persisted order header. Monetary fields are recomputed
// from the detail snapshot, never trusted from callers.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID            uuid.UUID     `bun:"id,pk,type:uuid"`
	PurchaserID   string        `bun:"purchaser_id,notnull"`
	Status        Status        `bun:"status,notnull"`
	PaymentStatus PaymentStatus `bun:"payment_status,notnull"`

	Subtotal     float64 `bun:"subtotal,notnull"`
	TaxAmount    float64 `bun:"tax_amount,notnull"`
	ShippingCost float64 `bun:"shipping_cost,notnull"`
	Discount     float64 `bun:"discount,notnull"`
	Total        float64 `bun:"total,notnull"`

	ShippingAddress string `bun:"shipping_address"`
	Notes           string `bun:"notes"`

	Details []*OrderDetail `bun:"rel:has-many,join:id=order_id"`

	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// OrderDetail is a line item snapshot taken at purchase time. Unit price
// and name are frozen here so later catalog edits never change an order.
type OrderDetail struct {
	bun.BaseModel `bun:"table:order_details,alias:od"`

	ID          uuid.UUID `bun:"id,pk,type:uuid"`
	OrderID     uuid.UUID `bun:"order_id,notnull,type:uuid"`
	ProductID   uuid.UUID `bun:"product_id,notnull,type:uuid"`
	ProductName string    `bun:"product_name,notnull"`
	UnitPrice   float64   `bun:"unit_price,notnull"`
	Quantity    int       `bun:"quantity,notnull"`
	Subtotal    float64   `bun:"subtotal,notnull"`
}

// Editable reports whether monetary adjustments are still allowed.
func (o *Order) Editable() bool {
	return o.Status == StatusDraft || o.Status == StatusConfirmed
}

// RecomputeTotals rebuilds subtotal and total from the detail snapshot.
func (o *Order) RecomputeTotals() {
	subtotal := 0.0
	for _, d := range o.Details {
		d.Subtotal = round2(d.UnitPrice * float64(d.Quantity))
		subtotal += d.Subtotal
	}
	o.Subtotal = round2(subtotal)
	o.Total = round2(o.Subtotal + o.TaxAmount + o.ShippingCost - o.Discount)
}

// ShortRef is the human-facing order reference.
func (o *Order) ShortRef() string {
	return ShortRef(o.ID)
}

func ShortRef(id uuid.UUID) string {
	return strings.ToUpper(id.String()[:8])
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
