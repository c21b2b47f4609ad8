package state

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Intent is the classified purpose of a user turn.
type Intent string

const (
	IntentNone       Intent = ""
	IntentSearch     Intent = "search"
	IntentPersuasion Intent = "persuasion"
	IntentCheckout   Intent = "checkout"
	IntentInfo       Intent = "info"
)

func (i Intent) Valid() bool {
	switch i {
	case IntentNone, IntentSearch, IntentPersuasion, IntentCheckout, IntentInfo:
		return true
	default:
		return false
	}
}

// Style is the user's detected communication register. Once a session's
// style is non-neutral it is never re-detected.
type Style string

const (
	StyleNone     Style = ""
	StyleRegional Style = "regional"
	StyleYouthful Style = "youthful"
	StyleFormal   Style = "formal"
	StyleNeutral  Style = "neutral"
)

func (s Style) Valid() bool {
	switch s {
	case StyleNone, StyleRegional, StyleYouthful, StyleFormal, StyleNeutral:
		return true
	default:
		return false
	}
}

// Pinned reports whether style detection should be skipped for the session.
func (s Style) Pinned() bool {
	return s != StyleNone && s != StyleNeutral
}

// Stage is the current step of the checkout flow. The zero value means no
// checkout is in progress.
type Stage string

const (
	StageNone     Stage = ""
	StageConfirm  Stage = "confirm"
	StageAddress  Stage = "address"
	StagePayment  Stage = "payment"
	StageComplete Stage = "complete"
)

func (s Stage) Valid() bool {
	switch s {
	case StageNone, StageConfirm, StageAddress, StagePayment, StageComplete:
		return true
	default:
		return false
	}
}

// Message is one entry of the conversation history window.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SearchHit is a catalog result shown to the user.
type SearchHit struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
	SKU   string  `json:"sku,omitempty"`
}

// CartLine is a checkout candidate built before the order is committed.
type CartLine struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
	Subtotal  float64 `json:"subtotal"`
}

// historyWindow bounds the conversation history kept in the session.
const historyWindow = 20

var (
	ErrInvalidSession = errors.New("session id is empty")
)

// ConversationState is the per-session source of truth, mutated in place
// while a turn is processed and persisted after every turn.
type ConversationState struct {
	SessionID   string `json:"session_id"`
	PurchaserID string `json:"purchaser_id,omitempty"`

	UserQuery string `json:"user_query"`
	Intent    Intent `json:"intent,omitempty"`
	Style     Style  `json:"style,omitempty"`

	CheckoutStage    Stage      `json:"checkout_stage,omitempty"`
	SearchResults    []SearchHit `json:"search_results,omitempty"`
	SelectedProducts []CartLine  `json:"selected_products,omitempty"`
	CartTotal        float64     `json:"cart_total,omitempty"`
	ShippingAddress  string      `json:"shipping_address,omitempty"`

	History        []Message         `json:"history,omitempty"`
	Slots          map[string]string `json:"slots,omitempty"`
	UnansweredCount int              `json:"unanswered_count,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

func NewConversationState(sessionID, purchaserID string, now time.Time) *ConversationState {
	return &ConversationState{
		SessionID:   sessionID,
		PurchaserID: purchaserID,
		Slots:       make(map[string]string, 4),
		UpdatedAt:   now.UTC(),
	}
}

func (s *ConversationState) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

// EnsureSlots makes sure s.Slots is initialized.
func (s *ConversationState) EnsureSlots() {
	if s.Slots == nil {
		s.Slots = make(map[string]string, 4)
	}
}

func (s *ConversationState) SetSlot(key, val string) {
	if strings.TrimSpace(key) == "" || strings.TrimSpace(val) == "" {
		return
	}
	s.EnsureSlots()
	if _, exists := s.Slots[key]; !exists {
		s.Slots[key] = val
	}
}

// AppendHistory appends one message and trims to the history window.
func (s *ConversationState) AppendHistory(role, content string) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}
	s.History = append(s.History, Message{Role: role, Content: content})
	if len(s.History) > historyWindow {
		s.History = s.History[len(s.History)-historyWindow:]
	}
}

// RecentUserMessages returns up to n most recent user utterances.
func (s *ConversationState) RecentUserMessages(n int) []string {
	if s == nil || n <= 0 {
		return nil
	}
	out := make([]string, 0, n)
	for i := len(s.History) - 1; i >= 0 && len(out) < n; i-- {
		if s.History[i].Role == "user" {
			out = append(out, s.History[i].Content)
		}
	}
	// restore chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// ResetCheckout clears the in-flight checkout without touching search
// results or history.
func (s *ConversationState) ResetCheckout() {
	s.CheckoutStage = StageNone
	s.SelectedProducts = nil
	s.CartTotal = 0
}

func (s *ConversationState) Validate() error {
	if s == nil {
		return errors.New("nil conversation state")
	}
	if strings.TrimSpace(s.SessionID) == "" {
		return ErrInvalidSession
	}
	if !s.Intent.Valid() {
		return fmt.Errorf("invalid intent %q", s.Intent)
	}
	if !s.Style.Valid() {
		return fmt.Errorf("invalid style %q", s.Style)
	}
	if !s.CheckoutStage.Valid() {
		return fmt.Errorf("invalid checkout stage %q", s.CheckoutStage)
	}
	// an in-flight checkout must carry its cart, except while completing
	if s.CheckoutStage == StageConfirm || s.CheckoutStage == StagePayment {
		if len(s.SelectedProducts) == 0 {
			return fmt.Errorf("checkout stage %q with empty cart", s.CheckoutStage)
		}
	}
	return nil
}
