package inventory

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"

	contractx "github.com/dmquizhpe/ventia/agent/contract"
)

const (
	searchLimit   = 10
	searchTimeout = 5 * time.Second
)

// Store queries the product catalog.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// SearchByKeyword matches every term against name and SKU with ILIKE.
// Only active rows with stock are returned. Any failure is logged and
// reported as zero results.
func (s *Store) SearchByKeyword(ctx context.Context, terms []string) []contractx.Product {
	cleaned := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t != "" {
			cleaned = append(cleaned, t)
		}
	}
	if len(cleaned) == 0 {
		return nil
	}

	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	var rows []Product
	q := s.db.NewSelect().
		Model(&rows).
		Where("ps.is_active = TRUE").
		Where("ps.quantity_available > 0")

	// union semantics: any term may match name or SKU
	q = q.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
		for _, term := range cleaned {
			pattern := "%" + term + "%"
			sq = sq.
				WhereOr("ps.product_name ILIKE ?", pattern).
				WhereOr("ps.product_sku ILIKE ?", pattern)
		}
		return sq
	})

	if err := q.Order("ps.product_name ASC").Limit(searchLimit).Scan(queryCtx); err != nil {
		log.Error().Err(err).Strs("terms", cleaned).Msg("catalog search failed")
		return nil
	}

	out := make([]contractx.Product, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToContract())
	}
	return out
}

// SearchByCode looks up one product by exact SKU, case-insensitively.
func (s *Store) SearchByCode(ctx context.Context, sku string) *contractx.Product {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil
	}

	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	var row Product
	err := s.db.NewSelect().
		Model(&row).
		Where("ps.is_active = TRUE").
		Where("LOWER(ps.product_sku) = LOWER(?)", sku).
		Limit(1).
		Scan(queryCtx)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Error().Err(err).Str("sku", sku).Msg("catalog lookup by code failed")
		}
		return nil
	}

	product := row.ToContract()
	return &product
}

// GetByID returns one product or nil when missing or on error.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) *contractx.Product {
	if id == uuid.Nil {
		return nil
	}

	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	var row Product
	err := s.db.NewSelect().
		Model(&row).
		Where("ps.is_active = TRUE").
		Where("ps.id = ?", id).
		Limit(1).
		Scan(queryCtx)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Error().Err(err).Str("product_id", id.String()).Msg("catalog lookup failed")
		}
		return nil
	}

	product := row.ToContract()
	return &product
}
