// Package orchestrator coordinates one conversation turn: it loads the
// session, detects style, classifies intent, dispatches to a handler and
// follows bounded transfers between handlers.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/dmquizhpe/ventia/agent/contract"
	statex "github.com/dmquizhpe/ventia/agent/state"
)

var (
	ErrInvalidMessage = errors.New("message text is empty")
	ErrInvalidSession = errors.New("session id is empty")
)

// maxTransfers bounds handler hand-offs within a single turn.
const maxTransfers = 3

var stopPhrases = []string{
	"adiós", "chao", "hasta luego", "cancelar todo", "olvídalo", "ya no quiero nada",
}

// IntentClassifier is the infallible classification surface, served by
// the classify chain.
type IntentClassifier interface {
	Classify(ctx context.Context, query string, conv *statex.ConversationState) contractx.IntentResult
}

// StyleDetector mirrors IntentClassifier for register detection.
type StyleDetector interface {
	Detect(ctx context.Context, query string, recent []string) contractx.StyleResult
}

type GraphInput = contractx.TurnRequest

type GraphOutput = contractx.TurnResult

// turnState is threaded through the graph nodes for one turn.
type turnState struct {
	req  contractx.TurnRequest
	conv *statex.ConversationState

	resp      contractx.HandlerResponse
	transfers int

	// done short-circuits the remaining pipeline, set by the farewell
	// check
	done bool
}

type Orchestrator struct {
	store    statex.Store
	handlers map[contractx.HandlerID]contractx.Handler
	intents  IntentClassifier
	styles   StyleDetector

	graphRunner compose.Runnable[GraphInput, GraphOutput]

	now func() time.Time
}

func New(
	store statex.Store,
	handlers []contractx.Handler,
	intents IntentClassifier,
	styles StyleDetector,
) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if intents == nil {
		return nil, errors.New("intent classifier is required")
	}
	if styles == nil {
		return nil, errors.New("style detector is required")
	}

	byID := make(map[contractx.HandlerID]contractx.Handler, len(handlers))
	for _, h := range handlers {
		if h == nil {
			continue
		}
		byID[h.ID()] = h
	}
	for _, id := range []contractx.HandlerID{contractx.HandlerRetriever, contractx.HandlerAdvisor, contractx.HandlerCheckout} {
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("%w: %s", contractx.ErrUnknownHandler, id)
		}
	}

	o := &Orchestrator{
		store:    store,
		handlers: byID,
		intents:  intents,
		styles:   styles,
		now:      time.Now,
	}

	runner, err := o.compileTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = runner

	return o, nil
}

// ProcessTurn runs one user utterance through the turn pipeline. Only
// request validation surfaces as an error; any other pipeline failure
// becomes a generic apology so the conversation stays usable.
func (o *Orchestrator) ProcessTurn(ctx context.Context, req contractx.TurnRequest) (contractx.TurnResult, error) {
	result, err := o.graphRunner.Invoke(ctx, req)
	if err == nil {
		return result, nil
	}
	if errors.Is(err, ErrInvalidSession) || errors.Is(err, ErrInvalidMessage) {
		return contractx.TurnResult{}, err
	}

	log.Error().Err(err).Str("session_id", req.SessionID).Msg("turn pipeline failed")
	return contractx.TurnResult{
		SessionID: req.SessionID,
		Handler:   contractx.HandlerAdvisor,
		Message:   "Lo siento, tuve un problema procesando tu solicitud. ¿Puedes intentar de nuevo?",
		ErrorCode: "internal_error",
	}, nil
}

func (o *Orchestrator) validateRequest(in GraphInput) (*turnState, error) {
	in.SessionID = strings.TrimSpace(in.SessionID)
	in.Query = strings.TrimSpace(in.Query)

	if in.SessionID == "" {
		return nil, ErrInvalidSession
	}
	if in.Query == "" {
		return nil, ErrInvalidMessage
	}
	return &turnState{req: in}, nil
}

func (o *Orchestrator) loadState(ctx context.Context, st *turnState) (*turnState, error) {
	conv, err := o.store.Load(ctx, st.req.SessionID)
	switch {
	case errors.Is(err, statex.ErrStateNotFound):
		conv = statex.NewConversationState(st.req.SessionID, st.req.PurchaserID, o.now())
	case err != nil:
		return nil, fmt.Errorf("load conversation state: %w", err)
	}

	conv.UserQuery = st.req.Query
	if st.req.PurchaserID != "" {
		conv.PurchaserID = st.req.PurchaserID
	}

	st.conv = conv
	return st, nil
}

// checkFarewell ends the conversation on a stop phrase, clearing any
// in-flight checkout.
func (o *Orchestrator) checkFarewell(st *turnState) (*turnState, error) {
	query := strings.ToLower(strings.TrimSpace(st.conv.UserQuery))

	for _, phrase := range stopPhrases {
		if strings.Contains(query, phrase) {
			st.conv.ResetCheckout()
			st.conv.SearchResults = nil
			st.resp = contractx.HandlerResponse{
				Handler: contractx.HandlerAdvisor,
				Message: farewellMessage(st.conv.Style),
			}
			st.done = true
			log.Info().Str("session_id", st.conv.SessionID).Str("phrase", phrase).Msg("conversation closed by stop phrase")
			return st, nil
		}
	}
	return st, nil
}

func (o *Orchestrator) detectStyle(ctx context.Context, st *turnState) (*turnState, error) {
	if st.done || st.conv.Style.Pinned() {
		return st, nil
	}

	result := o.styles.Detect(ctx, st.conv.UserQuery, st.conv.RecentUserMessages(5))
	st.conv.Style = result.Style
	log.Info().
		Str("style", string(result.Style)).
		Float64("confidence", result.Confidence).
		Msg("style detected")
	return st, nil
}

func (o *Orchestrator) classifyIntent(ctx context.Context, st *turnState) (*turnState, error) {
	if st.done {
		return st, nil
	}

	// an in-flight checkout keeps the turn with the checkout handler
	if stageInFlight(st.conv.CheckoutStage) {
		st.conv.Intent = statex.IntentCheckout
		return st, nil
	}

	result := o.intents.Classify(ctx, st.conv.UserQuery, st.conv)
	st.conv.Intent = result.Intent
	log.Info().
		Str("intent", string(result.Intent)).
		Float64("confidence", result.Confidence).
		Msg("intent classified")
	return st, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, st *turnState) (*turnState, error) {
	if st.done {
		return st, nil
	}

	current := contractx.HandlerFor(st.conv.Intent)
	if stageInFlight(st.conv.CheckoutStage) {
		current = contractx.HandlerCheckout
	}

	st.resp = o.invokeHandler(ctx, current, st.conv)

	seenEdges := make(map[[2]contractx.HandlerID]bool, maxTransfers)
	for st.resp.Transfer && st.transfers < maxTransfers {
		target := st.resp.TransferTo
		next, ok := o.handlers[target]
		if !ok {
			log.Error().Str("target", string(target)).Msg("transfer to unknown handler")
			break
		}

		edge := [2]contractx.HandlerID{current, target}
		if seenEdges[edge] {
			log.Warn().
				Str("from", string(current)).
				Str("to", string(target)).
				Msg("transfer loop detected, stopping")
			break
		}
		seenEdges[edge] = true

		st.transfers++
		log.Info().
			Int("transfer", st.transfers).
			Str("from", string(current)).
			Str("to", string(target)).
			Msg("handler transfer")

		current = target
		st.resp = o.invokeHandlerOn(ctx, next, st.conv)
	}

	if st.transfers >= maxTransfers {
		log.Warn().Int("max", maxTransfers).Msg("transfer budget exhausted")
	}

	st.conv.AppendHistory("user", st.conv.UserQuery)
	st.conv.AppendHistory("assistant", st.resp.Message)
	return st, nil
}

func (o *Orchestrator) invokeHandler(ctx context.Context, id contractx.HandlerID, conv *statex.ConversationState) contractx.HandlerResponse {
	handler, ok := o.handlers[id]
	if !ok {
		log.Error().Str("handler", string(id)).Msg("dispatch to unknown handler")
		return fallbackResponse()
	}
	return o.invokeHandlerOn(ctx, handler, conv)
}

// invokeHandlerOn shields the turn from a handler failure: the user gets
// an apology instead of an error.
func (o *Orchestrator) invokeHandlerOn(ctx context.Context, handler contractx.Handler, conv *statex.ConversationState) contractx.HandlerResponse {
	resp, err := handler.Handle(ctx, conv)
	if err != nil {
		log.Error().Err(err).Str("handler", string(handler.ID())).Msg("handler failed")
		return fallbackResponse()
	}
	if !resp.Handler.Valid() {
		resp.Handler = handler.ID()
	}
	return resp
}

func fallbackResponse() contractx.HandlerResponse {
	return contractx.HandlerResponse{
		Handler:   contractx.HandlerAdvisor,
		Message:   "Lo siento, tuve un problema procesando tu solicitud. ¿Puedes intentar de nuevo?",
		ErrorCode: "handler_failure",
	}
}

func (o *Orchestrator) saveState(ctx context.Context, st *turnState) (*turnState, error) {
	st.conv.Touch(o.now())
	if err := st.conv.Validate(); err != nil {
		return nil, fmt.Errorf("conversation state invalid after turn: %w", err)
	}
	if err := o.store.Save(ctx, st.conv); err != nil {
		return nil, fmt.Errorf("save conversation state: %w", err)
	}
	return st, nil
}

func (o *Orchestrator) finalizeReply(st *turnState) (GraphOutput, error) {
	return contractx.TurnResult{
		SessionID: st.conv.SessionID,
		Handler:   st.resp.Handler,
		Intent:    st.conv.Intent,
		Style:     st.conv.Style,
		Message:   st.resp.Message,
		ErrorCode: st.resp.ErrorCode,
		Transfers: st.transfers,
	}, nil
}

func stageInFlight(stage statex.Stage) bool {
	return stage != statex.StageNone && stage != statex.StageComplete
}

func farewellMessage(style statex.Style) string {
	switch style {
	case statex.StyleRegional:
		return "¡Chao ve! Cuando quieras volver, aquí estoy. 👋"
	case statex.StyleYouthful:
		return "¡Chao bro! Vuelve cuando quieras. 👋"
	case statex.StyleFormal:
		return "Ha sido un gusto atenderle. Que tenga un excelente día."
	default:
		return "¡Hasta luego! Aquí estaré cuando me necesites. 👋"
	}
}
