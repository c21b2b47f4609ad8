package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	contractx "github.com/dmquizhpe/ventia/agent/contract"
	statex "github.com/dmquizhpe/ventia/agent/state"
)

type scriptedHandler struct {
	id      contractx.HandlerID
	handle  func(conv *statex.ConversationState) (contractx.HandlerResponse, error)
	calls   int
}

func (s *scriptedHandler) ID() contractx.HandlerID { return s.id }

func (s *scriptedHandler) Handle(_ context.Context, conv *statex.ConversationState) (contractx.HandlerResponse, error) {
	s.calls++
	if s.handle != nil {
		return s.handle(conv)
	}
	return contractx.HandlerResponse{Handler: s.id, Message: "ok desde " + string(s.id)}, nil
}

type fixedIntent struct {
	intent statex.Intent
}

func (f fixedIntent) Classify(context.Context, string, *statex.ConversationState) contractx.IntentResult {
	return contractx.IntentResult{Intent: f.intent, Confidence: 1}
}

type fixedStyle struct {
	style statex.Style
}

func (f fixedStyle) Detect(context.Context, string, []string) contractx.StyleResult {
	return contractx.StyleResult{Style: f.style, Confidence: 1}
}

func defaultHandlers() (retriever, advisor, checkout *scriptedHandler) {
	retriever = &scriptedHandler{id: contractx.HandlerRetriever}
	advisor = &scriptedHandler{id: contractx.HandlerAdvisor}
	checkout = &scriptedHandler{id: contractx.HandlerCheckout}
	return
}

func newTestOrchestrator(t *testing.T, intent statex.Intent, hs ...contractx.Handler) (*Orchestrator, *statex.MemoryStore) {
	t.Helper()

	store := statex.NewMemoryStore()
	o, err := New(store, hs, fixedIntent{intent: intent}, fixedStyle{style: statex.StyleNeutral})
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return o, store
}

func TestProcessTurnRoutesByIntent(t *testing.T) {
	t.Parallel()

	retriever, advisor, checkout := defaultHandlers()
	o, store := newTestOrchestrator(t, statex.IntentSearch, retriever, advisor, checkout)

	result, err := o.ProcessTurn(context.Background(), contractx.TurnRequest{
		SessionID: "s1",
		Query:     "busco zapatillas",
	})
	if err != nil {
		t.Fatalf("process turn: %v", err)
	}

	if result.Handler != contractx.HandlerRetriever {
		t.Fatalf("handler = %q, want retriever", result.Handler)
	}
	if retriever.calls != 1 || advisor.calls != 0 || checkout.calls != 0 {
		t.Fatalf("calls = %d/%d/%d, want 1/0/0", retriever.calls, advisor.calls, checkout.calls)
	}

	saved, err := store.Load(context.Background(), "s1")
	if err != nil {
		t.Fatalf("state not persisted: %v", err)
	}
	if len(saved.History) != 2 {
		t.Fatalf("history = %d entries, want user+assistant", len(saved.History))
	}
	if saved.History[0].Role != "user" || saved.History[1].Role != "assistant" {
		t.Fatalf("unexpected history %v", saved.History)
	}
}

func TestProcessTurnFollowsTransfer(t *testing.T) {
	t.Parallel()

	retriever, advisor, checkout := defaultHandlers()
	retriever.handle = func(*statex.ConversationState) (contractx.HandlerResponse, error) {
		return contractx.HandlerResponse{
			Handler:    contractx.HandlerRetriever,
			Message:    "pocos resultados",
			Transfer:   true,
			TransferTo: contractx.HandlerAdvisor,
		}, nil
	}
	advisor.handle = func(*statex.ConversationState) (contractx.HandlerResponse, error) {
		return contractx.HandlerResponse{Handler: contractx.HandlerAdvisor, Message: "te recomiendo este"}, nil
	}

	o, _ := newTestOrchestrator(t, statex.IntentSearch, retriever, advisor, checkout)

	result, err := o.ProcessTurn(context.Background(), contractx.TurnRequest{SessionID: "s1", Query: "busco botas"})
	if err != nil {
		t.Fatalf("process turn: %v", err)
	}

	if result.Handler != contractx.HandlerAdvisor {
		t.Fatalf("final handler = %q, want advisor", result.Handler)
	}
	if result.Transfers != 1 {
		t.Fatalf("transfers = %d, want 1", result.Transfers)
	}
	if result.Message != "te recomiendo este" {
		t.Fatalf("message = %q", result.Message)
	}
}

func TestProcessTurnStopsTransferLoop(t *testing.T) {
	t.Parallel()

	retriever, advisor, checkout := defaultHandlers()
	retriever.handle = func(*statex.ConversationState) (contractx.HandlerResponse, error) {
		return contractx.HandlerResponse{
			Handler: contractx.HandlerRetriever, Message: "al asesor",
			Transfer: true, TransferTo: contractx.HandlerAdvisor,
		}, nil
	}
	advisor.handle = func(*statex.ConversationState) (contractx.HandlerResponse, error) {
		return contractx.HandlerResponse{
			Handler: contractx.HandlerAdvisor, Message: "al buscador",
			Transfer: true, TransferTo: contractx.HandlerRetriever,
		}, nil
	}

	o, _ := newTestOrchestrator(t, statex.IntentSearch, retriever, advisor, checkout)

	result, err := o.ProcessTurn(context.Background(), contractx.TurnRequest{SessionID: "s1", Query: "busco botas"})
	if err != nil {
		t.Fatalf("process turn: %v", err)
	}

	// the repeated retriever->advisor edge is refused before the budget
	// is spent
	if result.Transfers > maxTransfers {
		t.Fatalf("transfers = %d, exceeds budget %d", result.Transfers, maxTransfers)
	}
	if retriever.calls+advisor.calls > maxTransfers+1 {
		t.Fatalf("handler invocations = %d, want at most %d", retriever.calls+advisor.calls, maxTransfers+1)
	}
	if result.Message == "" {
		t.Fatal("loop must still produce a reply")
	}
}

func TestProcessTurnHandlerFailureApologizes(t *testing.T) {
	t.Parallel()

	retriever, advisor, checkout := defaultHandlers()
	retriever.handle = func(*statex.ConversationState) (contractx.HandlerResponse, error) {
		return contractx.HandlerResponse{}, errors.New("catalog exploded")
	}

	o, _ := newTestOrchestrator(t, statex.IntentSearch, retriever, advisor, checkout)

	result, err := o.ProcessTurn(context.Background(), contractx.TurnRequest{SessionID: "s1", Query: "busco botas"})
	if err != nil {
		t.Fatalf("handler failure must not fail the turn: %v", err)
	}
	if !strings.Contains(result.Message, "Lo siento") {
		t.Fatalf("expected apology, got %q", result.Message)
	}
	if result.ErrorCode != "handler_failure" {
		t.Fatalf("error code = %q, want handler_failure", result.ErrorCode)
	}
}

// brokenStore fails every write so persistence errors reach the caller.
type brokenStore struct{}

func (brokenStore) Load(context.Context, string) (*statex.ConversationState, error) {
	return nil, statex.ErrStateNotFound
}

func (brokenStore) Save(context.Context, *statex.ConversationState) error {
	return errors.New("redis unreachable")
}

func (brokenStore) Delete(context.Context, string) (bool, error) {
	return false, errors.New("redis unreachable")
}

func (brokenStore) Count(context.Context) (int, error) {
	return 0, errors.New("redis unreachable")
}

func TestProcessTurnStoreFailureApologizes(t *testing.T) {
	t.Parallel()

	retriever, advisor, checkout := defaultHandlers()
	o, err := New(brokenStore{}, []contractx.Handler{retriever, advisor, checkout},
		fixedIntent{intent: statex.IntentSearch}, fixedStyle{style: statex.StyleNeutral})
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}

	result, err := o.ProcessTurn(context.Background(), contractx.TurnRequest{SessionID: "s1", Query: "busco botas"})
	if err != nil {
		t.Fatalf("store failure must not fail the turn: %v", err)
	}
	if result.ErrorCode != "internal_error" {
		t.Fatalf("error code = %q, want internal_error", result.ErrorCode)
	}
	if !strings.Contains(result.Message, "Lo siento") {
		t.Fatalf("expected apology, got %q", result.Message)
	}
	if result.SessionID != "s1" {
		t.Fatalf("session id = %q, want s1", result.SessionID)
	}
}

func TestProcessTurnChecksStopPhrase(t *testing.T) {
	t.Parallel()

	retriever, advisor, checkout := defaultHandlers()
	o, store := newTestOrchestrator(t, statex.IntentSearch, retriever, advisor, checkout)

	ctx := context.Background()
	seed := statex.NewConversationState("s1", "u1", time.Now())
	seed.CheckoutStage = statex.StageConfirm
	seed.SelectedProducts = []statex.CartLine{{ProductID: "p1", Quantity: 1}}
	if err := store.Save(ctx, seed); err != nil {
		t.Fatalf("seed state: %v", err)
	}

	result, err := o.ProcessTurn(ctx, contractx.TurnRequest{SessionID: "s1", Query: "ya no quiero nada, chao"})
	if err != nil {
		t.Fatalf("process turn: %v", err)
	}

	if !strings.Contains(result.Message, "Hasta luego") && !strings.Contains(result.Message, "luego") {
		t.Fatalf("expected farewell, got %q", result.Message)
	}
	if retriever.calls+advisor.calls+checkout.calls != 0 {
		t.Fatal("stop phrase must not reach any handler")
	}

	saved, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if saved.CheckoutStage != statex.StageNone || len(saved.SelectedProducts) != 0 {
		t.Fatalf("checkout not cleared: stage=%q cart=%d", saved.CheckoutStage, len(saved.SelectedProducts))
	}
}

func TestProcessTurnChecksCheckoutStage(t *testing.T) {
	t.Parallel()

	retriever, advisor, checkout := defaultHandlers()
	// intent says search, but the in-flight checkout wins
	o, store := newTestOrchestrator(t, statex.IntentSearch, retriever, advisor, checkout)

	ctx := context.Background()
	seed := statex.NewConversationState("s1", "u1", time.Now())
	seed.CheckoutStage = statex.StageAddress
	seed.SelectedProducts = []statex.CartLine{{ProductID: "p1", Quantity: 1}}
	if err := store.Save(ctx, seed); err != nil {
		t.Fatalf("seed state: %v", err)
	}

	result, err := o.ProcessTurn(ctx, contractx.TurnRequest{SessionID: "s1", Query: "Av. Solano 12-34, Cuenca"})
	if err != nil {
		t.Fatalf("process turn: %v", err)
	}
	if result.Handler != contractx.HandlerCheckout {
		t.Fatalf("handler = %q, want checkout", result.Handler)
	}
	if checkout.calls != 1 {
		t.Fatalf("checkout calls = %d, want 1", checkout.calls)
	}
}

func TestProcessTurnStylePinned(t *testing.T) {
	t.Parallel()

	retriever, advisor, checkout := defaultHandlers()
	store := statex.NewMemoryStore()
	o, err := New(store, []contractx.Handler{retriever, advisor, checkout},
		fixedIntent{intent: statex.IntentPersuasion}, fixedStyle{style: statex.StyleYouthful})
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}

	ctx := context.Background()
	seed := statex.NewConversationState("s1", "", time.Now())
	seed.Style = statex.StyleFormal
	if err := store.Save(ctx, seed); err != nil {
		t.Fatalf("seed state: %v", err)
	}

	result, err := o.ProcessTurn(ctx, contractx.TurnRequest{SessionID: "s1", Query: "che bro qué onda"})
	if err != nil {
		t.Fatalf("process turn: %v", err)
	}
	if result.Style != statex.StyleFormal {
		t.Fatalf("style = %q, want pinned formal", result.Style)
	}
}

func TestProcessTurnValidation(t *testing.T) {
	t.Parallel()

	retriever, advisor, checkout := defaultHandlers()
	o, _ := newTestOrchestrator(t, statex.IntentSearch, retriever, advisor, checkout)

	if _, err := o.ProcessTurn(context.Background(), contractx.TurnRequest{SessionID: "s1", Query: "  "}); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("error = %v, want ErrInvalidMessage", err)
	}
	if _, err := o.ProcessTurn(context.Background(), contractx.TurnRequest{SessionID: "", Query: "hola"}); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("error = %v, want ErrInvalidSession", err)
	}
}

func TestNewRequiresAllHandlers(t *testing.T) {
	t.Parallel()

	retriever, advisor, _ := defaultHandlers()
	store := statex.NewMemoryStore()

	_, err := New(store, []contractx.Handler{retriever, advisor},
		fixedIntent{intent: statex.IntentSearch}, fixedStyle{style: statex.StyleNeutral})
	if !errors.Is(err, contractx.ErrUnknownHandler) {
		t.Fatalf("error = %v, want ErrUnknownHandler", err)
	}
}
