// Package handlers implements the three conversation handlers: the
// retriever searches the catalog, the advisor persuades and answers
// store questions, and the checkout handler walks the purchase flow.
package handlers

import (
	"context"

	"github.com/google/uuid"

	contractx "github.com/dmquizhpe/ventia/agent/contract"
	"github.com/dmquizhpe/ventia/orders"
)

// Catalog is the read-only product lookup surface, served by the
// inventory store. Lookups degrade to nil or empty on failure.
type Catalog interface {
	SearchByKeyword(ctx context.Context, terms []string) []contractx.Product
	SearchByCode(ctx context.Context, sku string) *contractx.Product
	GetByID(ctx context.Context, id uuid.UUID) *contractx.Product
}

// OrderPlacer commits a purchase. Served by the orders service.
type OrderPlacer interface {
	Create(ctx context.Context, req orders.CreateRequest) (*orders.Order, error)
}
