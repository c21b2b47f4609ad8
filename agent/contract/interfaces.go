package contract

import (
	"context"

	statex "github.com/dmquizhpe/ventia/agent/state"
)

// Handler processes one conversation turn against mutable session state.
// Implementations must not return an error for user mistakes; those are
// expressed as messages. An error means the handler itself failed.
type Handler interface {
	ID() HandlerID
	Handle(ctx context.Context, conv *statex.ConversationState) (HandlerResponse, error)
}

// IntentStrategy classifies one utterance. Strategies are chained; a
// failing strategy returns an error and the chain moves on.
type IntentStrategy interface {
	Name() string
	Classify(ctx context.Context, query string, conv *statex.ConversationState) (IntentResult, error)
}

// StyleStrategy detects the user's register from recent utterances.
type StyleStrategy interface {
	Name() string
	Detect(ctx context.Context, query string, recent []string) (StyleResult, error)
}

// LanguageModel is the completion surface the agent needs. Complete sends
// a system prompt plus conversation history and returns the assistant text.
type LanguageModel interface {
	Complete(ctx context.Context, system string, history []statex.Message) (string, error)
}
