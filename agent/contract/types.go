// Package contract holds the shared vocabulary between the orchestrator,
// the conversation handlers and the classification strategies.
package contract

import (
	"github.com/google/uuid"

	statex "github.com/dmquizhpe/ventia/agent/state"
)

// HandlerID identifies one of the fixed conversation handlers.
type HandlerID string

const (
	HandlerRetriever HandlerID = "retriever"
	HandlerAdvisor   HandlerID = "advisor"
	HandlerCheckout  HandlerID = "checkout"
)

func (h HandlerID) Valid() bool {
	switch h {
	case HandlerRetriever, HandlerAdvisor, HandlerCheckout:
		return true
	default:
		return false
	}
}

// HandlerFor maps an intent to the handler that serves it. Persuasion and
// info turns both land on the advisor.
func HandlerFor(i statex.Intent) HandlerID {
	switch i {
	case statex.IntentSearch:
		return HandlerRetriever
	case statex.IntentCheckout:
		return HandlerCheckout
	default:
		return HandlerAdvisor
	}
}

// Product is the catalog view shared by the handlers.
type Product struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	SKU       string    `json:"sku,omitempty"`
	UnitPrice float64   `json:"unit_price"`
	Stock     int       `json:"stock"`
	Location  string    `json:"location,omitempty"`
}

// IntentResult is the outcome of intent classification.
type IntentResult struct {
	Intent     statex.Intent `json:"intent"`
	Confidence float64       `json:"confidence"`
	Reasoning  string        `json:"reasoning,omitempty"`
}

// StyleResult is the outcome of style detection.
type StyleResult struct {
	Style      statex.Style `json:"style"`
	Confidence float64      `json:"confidence"`
	Patterns   []string     `json:"patterns,omitempty"`
}

// HandlerResponse is what a handler hands back to the orchestrator after
// one turn. When Transfer is set the orchestrator re-dispatches the same
// turn to TransferTo, subject to the transfer budget.
type HandlerResponse struct {
	Handler    HandlerID
	Message    string
	Transfer   bool
	TransferTo HandlerID
	ErrorCode  string
	Metadata   map[string]any
}

// TurnRequest is one inbound user utterance.
type TurnRequest struct {
	SessionID   string
	PurchaserID string
	Query       string
}

// TurnResult is the orchestrator's reply for one turn. ErrorCode is the
// last handler's error code, empty on a clean turn.
type TurnResult struct {
	SessionID string
	Handler   HandlerID
	Intent    statex.Intent
	Style     statex.Style
	Message   string
	ErrorCode string
	Transfers int
}
