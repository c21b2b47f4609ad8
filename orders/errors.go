package orders

import "errors"

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotEditable       = errors.New("order is not editable")
	ErrEmptyOrder        = errors.New("order has no items")
	ErrService           = errors.New("order service failure")
	ErrUnknown           = errors.New("unknown order failure")
)

// error codes shared with the conversation layer
const (
	CodeProductNotFound   = "PRODUCT_NOT_FOUND"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeServiceError      = "SERVICE_ERROR"
	CodeUnknown           = "UNKNOWN_ERROR"
)

// CodeFor maps an order error to its stable code.
func CodeFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrProductNotFound):
		return CodeProductNotFound
	case errors.Is(err, ErrInsufficientStock):
		return CodeInsufficientStock
	case errors.Is(err, ErrService), errors.Is(err, ErrOrderNotFound),
		errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrNotEditable),
		errors.Is(err, ErrEmptyOrder):
		return CodeServiceError
	default:
		return CodeUnknown
	}
}
