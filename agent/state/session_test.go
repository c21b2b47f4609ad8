package state

import (
	"fmt"
	"testing"
	"time"
)

func TestAppendHistoryKeepsWindow(t *testing.T) {
	t.Parallel()

	conv := NewConversationState("s1", "", time.Now())
	for i := 0; i < 30; i++ {
		conv.AppendHistory("user", fmt.Sprintf("mensaje %d", i))
	}

	if got := len(conv.History); got != historyWindow {
		t.Fatalf("history length = %d, want %d", got, historyWindow)
	}
	if conv.History[0].Content != "mensaje 10" {
		t.Fatalf("oldest kept message = %q, want %q", conv.History[0].Content, "mensaje 10")
	}
	if conv.History[len(conv.History)-1].Content != "mensaje 29" {
		t.Fatalf("newest message = %q, want %q", conv.History[len(conv.History)-1].Content, "mensaje 29")
	}
}

func TestAppendHistoryIgnoresBlank(t *testing.T) {
	t.Parallel()

	conv := NewConversationState("s1", "", time.Now())
	conv.AppendHistory("user", "   ")
	conv.AppendHistory("assistant", "")

	if len(conv.History) != 0 {
		t.Fatalf("history length = %d, want 0", len(conv.History))
	}
}

func TestRecentUserMessages(t *testing.T) {
	t.Parallel()

	conv := NewConversationState("s1", "", time.Now())
	conv.AppendHistory("user", "hola")
	conv.AppendHistory("assistant", "buenas")
	conv.AppendHistory("user", "busco zapatos")
	conv.AppendHistory("assistant", "claro")
	conv.AppendHistory("user", "talla 42")

	got := conv.RecentUserMessages(2)
	if len(got) != 2 {
		t.Fatalf("recent messages = %d, want 2", len(got))
	}
	if got[0] != "busco zapatos" || got[1] != "talla 42" {
		t.Fatalf("unexpected recent messages %v", got)
	}
}

func TestSetSlotFirstWriteWins(t *testing.T) {
	t.Parallel()

	conv := NewConversationState("s1", "", time.Now())
	conv.SetSlot("talla", "42")
	conv.SetSlot("talla", "39")
	conv.SetSlot("", "x")
	conv.SetSlot("color", "")

	if got := conv.Slots["talla"]; got != "42" {
		t.Fatalf("slot talla = %q, want %q", got, "42")
	}
	if len(conv.Slots) != 1 {
		t.Fatalf("slots = %v, want only talla", conv.Slots)
	}
}

func TestResetCheckout(t *testing.T) {
	t.Parallel()

	conv := NewConversationState("s1", "", time.Now())
	conv.CheckoutStage = StageConfirm
	conv.SelectedProducts = []CartLine{{ProductID: "p1", Quantity: 1, UnitPrice: 50, Subtotal: 50}}
	conv.CartTotal = 50
	conv.SearchResults = []SearchHit{{ID: "p1", Name: "Runner"}}

	conv.ResetCheckout()

	if conv.CheckoutStage != StageNone {
		t.Fatalf("stage = %q, want none", conv.CheckoutStage)
	}
	if conv.SelectedProducts != nil || conv.CartTotal != 0 {
		t.Fatal("cart not cleared")
	}
	if len(conv.SearchResults) != 1 {
		t.Fatal("search results must survive a checkout reset")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*ConversationState)
		wantErr bool
	}{
		{name: "fresh state", mutate: func(*ConversationState) {}, wantErr: false},
		{name: "missing session id", mutate: func(c *ConversationState) { c.SessionID = " " }, wantErr: true},
		{name: "bad intent", mutate: func(c *ConversationState) { c.Intent = "refund" }, wantErr: true},
		{name: "bad style", mutate: func(c *ConversationState) { c.Style = "pirate" }, wantErr: true},
		{name: "bad stage", mutate: func(c *ConversationState) { c.CheckoutStage = "review" }, wantErr: true},
		{
			name: "confirm stage without cart",
			mutate: func(c *ConversationState) {
				c.CheckoutStage = StageConfirm
			},
			wantErr: true,
		},
		{
			name: "confirm stage with cart",
			mutate: func(c *ConversationState) {
				c.CheckoutStage = StageConfirm
				c.SelectedProducts = []CartLine{{ProductID: "p1", Quantity: 1}}
			},
			wantErr: false,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			conv := NewConversationState("s1", "u1", time.Now())
			tc.mutate(conv)

			err := conv.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestStylePinned(t *testing.T) {
	t.Parallel()

	if StyleNeutral.Pinned() || StyleNone.Pinned() {
		t.Fatal("neutral and empty styles must not pin")
	}
	if !StyleRegional.Pinned() || !StyleFormal.Pinned() {
		t.Fatal("non-neutral styles must pin")
	}
}
