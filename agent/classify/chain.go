package classify

import (
	"context"

	"github.com/rs/zerolog/log"

	contractx "github.com/dmquizhpe/ventia/agent/contract"
	statex "github.com/dmquizhpe/ventia/agent/state"
)

// IntentChain tries each strategy in order and returns the first success.
// When every strategy fails it falls back to a low-confidence persuasion
// result, so callers never see an error.
type IntentChain struct {
	strategies []contractx.IntentStrategy
}

func NewIntentChain(strategies ...contractx.IntentStrategy) *IntentChain {
	return &IntentChain{strategies: strategies}
}

func (c *IntentChain) Classify(ctx context.Context, query string, conv *statex.ConversationState) contractx.IntentResult {
	for _, s := range c.strategies {
		if s == nil {
			continue
		}
		result, err := s.Classify(ctx, query, conv)
		if err != nil {
			log.Debug().Err(err).Str("strategy", s.Name()).Msg("intent strategy failed, trying next")
			continue
		}
		return result
	}

	return contractx.IntentResult{
		Intent:     statex.IntentPersuasion,
		Confidence: 0.1,
		Reasoning:  "all strategies failed",
	}
}

// StyleChain mirrors IntentChain for style detection, defaulting to
// neutral when everything fails.
type StyleChain struct {
	strategies []contractx.StyleStrategy
}

func NewStyleChain(strategies ...contractx.StyleStrategy) *StyleChain {
	return &StyleChain{strategies: strategies}
}

func (c *StyleChain) Detect(ctx context.Context, query string, recent []string) contractx.StyleResult {
	for _, s := range c.strategies {
		if s == nil {
			continue
		}
		result, err := s.Detect(ctx, query, recent)
		if err != nil {
			log.Debug().Err(err).Str("strategy", s.Name()).Msg("style strategy failed, trying next")
			continue
		}
		return result
	}

	return contractx.StyleResult{Style: statex.StyleNeutral, Confidence: 1.0}
}
