package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/dmquizhpe/ventia/agent/contract"
	statex "github.com/dmquizhpe/ventia/agent/state"
)

// fewResultsThreshold is the result count at or below which the turn is
// handed to the advisor for persuasion.
const fewResultsThreshold = 5

const maxResultsShown = 10

var slotBrands = map[string]struct{}{
	"nike": {}, "adidas": {}, "puma": {}, "reebok": {}, "converse": {},
	"vans": {}, "fila": {}, "skechers": {},
}

var slotColors = map[string]struct{}{
	"negro": {}, "negros": {}, "negra": {}, "negras": {},
	"blanco": {}, "blancos": {}, "blanca": {}, "blancas": {},
	"rojo": {}, "rojos": {}, "roja": {}, "rojas": {},
	"azul": {}, "azules": {}, "verde": {}, "verdes": {},
	"gris": {}, "grises": {}, "amarillo": {}, "amarillos": {},
}

var slotActivities = map[string]struct{}{
	"correr": {}, "running": {}, "fútbol": {}, "futbol": {},
	"básquet": {}, "basquet": {}, "tenis": {}, "gimnasio": {},
	"casual": {}, "trabajo": {}, "senderismo": {},
}

var searchStopwords = map[string]struct{}{
	"el": {}, "la": {}, "de": {}, "que": {}, "y": {}, "un": {}, "una": {},
	"en": {}, "a": {}, "los": {}, "las": {}, "del": {}, "por": {},
	"para": {}, "con": {}, "me": {}, "mi": {}, "tu": {}, "hay": {},
	"tiene": {}, "tienes": {}, "quiero": {}, "busco": {}, "mostrar": {},
	"ver": {},
}

// Retriever searches the catalog. It never uses the language model.
type Retriever struct {
	catalog Catalog
}

func NewRetriever(catalog Catalog) *Retriever {
	return &Retriever{catalog: catalog}
}

func (r *Retriever) ID() contractx.HandlerID { return contractx.HandlerRetriever }

func (r *Retriever) Handle(ctx context.Context, conv *statex.ConversationState) (contractx.HandlerResponse, error) {
	query := strings.TrimSpace(conv.UserQuery)
	terms := extractSearchTerms(query)

	if len(terms) == 0 {
		return contractx.HandlerResponse{
			Handler:    r.ID(),
			Message:    msgNoSearchTerms.For(conv.Style),
			Transfer:   true,
			TransferTo: contractx.HandlerAdvisor,
			ErrorCode:  "no_search_terms",
		}, nil
	}

	products := r.catalog.SearchByKeyword(ctx, terms)
	log.Info().Int("found", len(products)).Strs("terms", terms).Msg("catalog search")

	conv.SearchResults = toSearchHits(products)
	conv.Intent = statex.IntentSearch
	extractSlots(conv, query)

	if len(products) == 0 {
		return contractx.HandlerResponse{
			Handler:    r.ID(),
			Message:    noResultsMessage(conv.Style, query),
			Transfer:   true,
			TransferTo: contractx.HandlerAdvisor,
			Metadata:   map[string]any{"products_found": 0},
		}, nil
	}

	return contractx.HandlerResponse{
		Handler:    r.ID(),
		Message:    formatSearchResults(products, conv.Style),
		Transfer:   len(products) <= fewResultsThreshold,
		TransferTo: contractx.HandlerAdvisor,
		Metadata:   map[string]any{"products_found": len(products)},
	}, nil
}

// extractSearchTerms keeps the significant words of the query. When every
// word is filtered out, the whole query becomes the single term.
func extractSearchTerms(query string) []string {
	if query == "" {
		return nil
	}
	if terms := significantTerms(query); len(terms) > 0 {
		return terms
	}
	return []string{query}
}

// significantTerms filters the query down to words long enough to carry
// meaning, dropping the stopword set.
func significantTerms(query string) []string {
	words := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Trim(w, "¿?¡!.,;:")
		if len([]rune(w)) <= 2 {
			continue
		}
		if _, stop := searchStopwords[w]; stop {
			continue
		}
		terms = append(terms, w)
	}
	return terms
}

// extractSlots caches what the query reveals about the user's
// preferences so later turns do not re-ask. First value per slot wins.
func extractSlots(conv *statex.ConversationState, query string) {
	words := strings.Fields(strings.ToLower(query))
	for i, raw := range words {
		w := strings.Trim(raw, "¿?¡!.,;:")

		if _, ok := slotBrands[w]; ok {
			conv.SetSlot("brand", w)
			continue
		}
		if _, ok := slotColors[w]; ok {
			conv.SetSlot("color", w)
			continue
		}
		if _, ok := slotActivities[w]; ok {
			conv.SetSlot("activity", w)
			continue
		}
		if (w == "talla" || w == "número" || w == "numero") && i+1 < len(words) {
			size := strings.Trim(words[i+1], "¿?¡!.,;:")
			if _, err := strconv.ParseFloat(size, 64); err == nil {
				conv.SetSlot("size", size)
			}
		}
	}
}

func toSearchHits(products []contractx.Product) []statex.SearchHit {
	hits := make([]statex.SearchHit, 0, len(products))
	for _, p := range products {
		hits = append(hits, statex.SearchHit{
			ID:    p.ID.String(),
			Name:  p.Name,
			Price: p.UnitPrice,
			Stock: p.Stock,
			SKU:   p.SKU,
		})
	}
	return hits
}

func formatSearchResults(products []contractx.Product, style statex.Style) string {
	lines := []string{msgSearchGreeting.For(style), ""}

	shown := products
	if len(shown) > maxResultsShown {
		shown = shown[:maxResultsShown]
	}
	for i, p := range shown {
		lines = append(lines, fmt.Sprintf("%d. **%s** - $%.2f (%s)", i+1, p.Name, p.UnitPrice, stockBadge(p.Stock)))
	}

	if len(products) > maxResultsShown {
		lines = append(lines, "", fmt.Sprintf("_...y %d productos más_", len(products)-maxResultsShown))
	}

	return joinLines(lines)
}
