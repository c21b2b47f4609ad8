package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/dmquizhpe/ventia/agent/contract"
	statex "github.com/dmquizhpe/ventia/agent/state"
	"github.com/dmquizhpe/ventia/orders"
)

const minAddressLength = 10

var (
	checkoutAffirmatives = []string{"sí", "si", "ok", "dale", "bueno", "confirmo", "ya"}
	checkoutNegatives    = []string{"no", "cancela", "mejor no", "espera"}
)

// Checkout walks the purchase through confirm, address and payment. It
// never calls the language model; everything here is transactional.
type Checkout struct {
	catalog Catalog
	orders  OrderPlacer
}

func NewCheckout(catalog Catalog, placer OrderPlacer) *Checkout {
	return &Checkout{catalog: catalog, orders: placer}
}

func (c *Checkout) ID() contractx.HandlerID { return contractx.HandlerCheckout }

func (c *Checkout) Handle(ctx context.Context, conv *statex.ConversationState) (contractx.HandlerResponse, error) {
	log.Info().
		Str("session_id", conv.SessionID).
		Str("stage", string(conv.CheckoutStage)).
		Msg("checkout turn")

	switch conv.CheckoutStage {
	case statex.StageConfirm:
		return c.confirmProduct(conv), nil
	case statex.StageAddress:
		return c.processAddress(ctx, conv), nil
	case statex.StagePayment:
		return c.processPayment(ctx, conv), nil
	default:
		// no checkout in flight, or a finished one being restarted
		return c.initiate(ctx, conv), nil
	}
}

// initiate figures out what the user wants to buy and asks for
// confirmation.
func (c *Checkout) initiate(ctx context.Context, conv *statex.ConversationState) contractx.HandlerResponse {
	hit := productFromContext(conv)
	if hit == nil {
		return contractx.HandlerResponse{
			Handler:    c.ID(),
			Message:    msgClarifyProduct.For(conv.Style),
			Transfer:   true,
			TransferTo: contractx.HandlerAdvisor,
			ErrorCode:  "no_product_identified",
		}
	}

	const quantity = 1

	product := c.lookup(ctx, hit)
	if product == nil {
		return contractx.HandlerResponse{
			Handler:    c.ID(),
			Message:    fmt.Sprintf("Lo siento, no pude encontrar '%s' en el sistema. ¿Quieres buscar otro producto?", hit.Name),
			Transfer:   true,
			TransferTo: contractx.HandlerRetriever,
			ErrorCode:  "product_not_found",
		}
	}

	if product.Stock < quantity {
		return contractx.HandlerResponse{
			Handler:    c.ID(),
			Message:    insufficientStockMessage(conv.Style, product.Name, product.Stock),
			Transfer:   true,
			TransferTo: contractx.HandlerAdvisor,
			ErrorCode:  "insufficient_stock",
		}
	}

	conv.SelectedProducts = []statex.CartLine{{
		ProductID: product.ID.String(),
		Name:      product.Name,
		UnitPrice: product.UnitPrice,
		Quantity:  quantity,
		Subtotal:  product.UnitPrice * quantity,
	}}
	conv.CartTotal = product.UnitPrice * quantity
	conv.CheckoutStage = statex.StageConfirm

	return contractx.HandlerResponse{
		Handler: c.ID(),
		Message: confirmationRequest(conv.Style, product.Name, product.UnitPrice, quantity),
	}
}

func (c *Checkout) confirmProduct(conv *statex.ConversationState) contractx.HandlerResponse {
	query := strings.ToLower(strings.TrimSpace(conv.UserQuery))

	if containsAny(query, checkoutNegatives) {
		conv.ResetCheckout()
		return contractx.HandlerResponse{
			Handler:    c.ID(),
			Message:    msgCancellation.For(conv.Style),
			Transfer:   true,
			TransferTo: contractx.HandlerAdvisor,
			Metadata:   map[string]any{"cancelled": true},
		}
	}

	if containsAny(query, checkoutAffirmatives) {
		conv.CheckoutStage = statex.StageAddress
		return contractx.HandlerResponse{
			Handler: c.ID(),
			Message: msgAddressRequest.For(conv.Style),
		}
	}

	return contractx.HandlerResponse{
		Handler: c.ID(),
		Message: "No entendí. ¿Confirmas el pedido? (Responde sí o no)",
	}
}

func (c *Checkout) processAddress(ctx context.Context, conv *statex.ConversationState) contractx.HandlerResponse {
	address := strings.TrimSpace(conv.UserQuery)

	if len([]rune(address)) < minAddressLength {
		return contractx.HandlerResponse{
			Handler: c.ID(),
			Message: "La dirección parece incompleta. Por favor incluye calle, número y ciudad.",
		}
	}

	conv.ShippingAddress = address
	conv.CheckoutStage = statex.StagePayment
	return c.processPayment(ctx, conv)
}

func (c *Checkout) processPayment(ctx context.Context, conv *statex.ConversationState) contractx.HandlerResponse {
	if len(conv.SelectedProducts) == 0 {
		conv.CheckoutStage = statex.StageNone
		return contractx.HandlerResponse{
			Handler:    c.ID(),
			Message:    msgNoProducts.For(conv.Style),
			Transfer:   true,
			TransferTo: contractx.HandlerAdvisor,
			ErrorCode:  "no_products",
		}
	}

	if strings.TrimSpace(conv.ShippingAddress) == "" {
		conv.CheckoutStage = statex.StageAddress
		return contractx.HandlerResponse{
			Handler:   c.ID(),
			Message:   msgAddressRequest.For(conv.Style),
			ErrorCode: "missing_address",
		}
	}

	if strings.TrimSpace(conv.PurchaserID) == "" {
		return contractx.HandlerResponse{
			Handler:    c.ID(),
			Message:    "Necesitas iniciar sesión para completar la compra. Por favor inicia sesión primero.",
			Transfer:   true,
			TransferTo: contractx.HandlerAdvisor,
			ErrorCode:  "no_authenticated_user",
		}
	}

	lines := make([]orders.Line, 0, len(conv.SelectedProducts))
	for _, item := range conv.SelectedProducts {
		id, err := uuid.Parse(item.ProductID)
		if err != nil || item.Quantity <= 0 {
			continue
		}
		lines = append(lines, orders.Line{ProductID: id, Quantity: item.Quantity})
	}
	if len(lines) == 0 {
		conv.CheckoutStage = statex.StageNone
		return contractx.HandlerResponse{
			Handler:    c.ID(),
			Message:    msgNoProducts.For(conv.Style),
			Transfer:   true,
			TransferTo: contractx.HandlerAdvisor,
			ErrorCode:  "invalid_items",
		}
	}

	order, err := c.orders.Create(ctx, orders.CreateRequest{
		PurchaserID:     conv.PurchaserID,
		Lines:           lines,
		ShippingAddress: conv.ShippingAddress,
		Notes:           "session " + conv.SessionID,
	})
	if err != nil {
		code := orders.CodeFor(err)
		log.Warn().Err(err).Str("code", code).Str("session_id", conv.SessionID).Msg("order creation failed")

		// back to confirmation so the user can retry or bail out
		conv.CheckoutStage = statex.StageConfirm
		return contractx.HandlerResponse{
			Handler:   c.ID(),
			Message:   orderErrorMessage(code, conv.Style),
			ErrorCode: code,
		}
	}

	message := c.formatOrderConfirmation(conv, order)

	conv.CheckoutStage = statex.StageComplete
	conv.SelectedProducts = nil
	conv.CartTotal = 0

	return contractx.HandlerResponse{
		Handler:  c.ID(),
		Message:  message,
		Metadata: map[string]any{"order_id": order.ID.String(), "order_ref": order.ShortRef()},
	}
}

func (c *Checkout) formatOrderConfirmation(conv *statex.ConversationState, order *orders.Order) string {
	lines := []string{msgOrderHeader.For(conv.Style), ""}
	lines = append(lines, fmt.Sprintf("📦 **Pedido #%s**", order.ShortRef()), "")

	for _, item := range conv.SelectedProducts {
		lines = append(lines, fmt.Sprintf("• %s x%d - $%.2f", item.Name, item.Quantity, item.Subtotal))
	}

	lines = append(lines, "", fmt.Sprintf("**Total: $%.2f**", order.Total))

	if conv.ShippingAddress != "" {
		lines = append(lines, "", "📍 Envío a: "+conv.ShippingAddress)
	}

	lines = append(lines, "", msgOrderClosing.For(conv.Style))
	return joinLines(lines)
}

// lookup resolves a search hit to a live catalog row, by ID when the hit
// carries one and by name search otherwise.
func (c *Checkout) lookup(ctx context.Context, hit *statex.SearchHit) *contractx.Product {
	if id, err := uuid.Parse(hit.ID); err == nil {
		if p := c.catalog.GetByID(ctx, id); p != nil {
			return p
		}
	}
	if hit.SKU != "" {
		if p := c.catalog.SearchByCode(ctx, hit.SKU); p != nil {
			return p
		}
	}
	found := c.catalog.SearchByKeyword(ctx, strings.Fields(strings.ToLower(hit.Name)))
	if len(found) > 0 {
		return &found[0]
	}
	return nil
}

// productFromContext decides what the user is buying from the search
// results on the table.
func productFromContext(conv *statex.ConversationState) *statex.SearchHit {
	results := conv.SearchResults
	if len(results) == 0 {
		return nil
	}

	if len(results) == 1 {
		return &results[0]
	}

	// the user may have named one of the results
	query := strings.ToLower(conv.UserQuery)
	for i := range results {
		for _, word := range strings.Fields(strings.ToLower(results[i].Name)) {
			if len([]rune(word)) > 3 && strings.Contains(query, word) {
				return &results[i]
			}
		}
	}

	// a short list with no explicit pick means the first option
	if len(results) <= 3 {
		return &results[0]
	}

	return nil
}

// containsAny matches single words against whole tokens so that "no"
// never fires inside "bueno"; multi-word phrases match as substrings.
func containsAny(query string, words []string) bool {
	tokens := strings.Fields(query)
	for i, tok := range tokens {
		tokens[i] = strings.Trim(tok, "¿?¡!.,;:")
	}

	for _, w := range words {
		if strings.Contains(w, " ") {
			if strings.Contains(query, w) {
				return true
			}
			continue
		}
		for _, tok := range tokens {
			if tok == w {
				return true
			}
		}
	}
	return false
}
