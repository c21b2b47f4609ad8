// Package inventory reads the product catalog. Searches degrade to empty
// results on error so a catalog hiccup never breaks a conversation.
package inventory

import (
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	contractx "github.com/dmquizhpe/ventia/agent/contract"
)

// Product is a catalog row. Stock mutations live in the orders package;
// this package only reads.
type Product struct {
	bun.BaseModel `bun:"table:product_stocks,alias:ps"`

	ID                uuid.UUID `bun:"id,pk,type:uuid"`
	ProductName       string    `bun:"product_name,notnull"`
	ProductSKU        string    `bun:"product_sku"`
	QuantityAvailable int       `bun:"quantity_available,notnull"`
	UnitCost          float64   `bun:"unit_cost,notnull"`
	WarehouseLocation string    `bun:"warehouse_location"`
	IsActive          bool      `bun:"is_active,notnull,default:true"`
}

// ToContract maps a catalog row to the view the handlers share.
func (p *Product) ToContract() contractx.Product {
	return contractx.Product{
		ID:        p.ID,
		Name:      p.ProductName,
		SKU:       p.ProductSKU,
		UnitPrice: p.UnitCost,
		Stock:     p.QuantityAvailable,
		Location:  p.WarehouseLocation,
	}
}
