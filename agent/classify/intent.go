// Package classify turns raw user utterances into an intent and a
// communication style. Strategies are chained: the model-backed strategy
// runs first and the keyword strategy is the fallback, so classification
// itself never fails a turn.
package classify

import (
	"context"
	"strings"

	contractx "github.com/dmquizhpe/ventia/agent/contract"
	statex "github.com/dmquizhpe/ventia/agent/state"
)

var intentKeywords = map[statex.Intent][]string{
	statex.IntentSearch: {
		"buscar", "busco", "mostrar", "muéstrame", "quiero ver", "tienes",
		"hay", "talla", "color", "marca", "modelo", "catálogo",
	},
	statex.IntentCheckout: {
		"comprar", "cómprame", "dámelos", "dámelo", "envíame", "envía",
		"quiero", "lo quiero", "los quiero", "confirma", "procede",
	},
	statex.IntentInfo: {
		"horario", "hora", "ubicación", "dirección", "garantía",
		"devolución", "envío", "delivery", "pago", "tarjeta",
	},
	statex.IntentPersuasion: {
		"caro", "precio", "barato", "descuento", "oferta", "recomienda",
		"mejor", "diferencia", "vale la pena", "duda", "por qué",
	},
}

var affirmatives = []string{"sí", "si", "ok", "dale", "bueno"}

// tie-break order when two intents score the same
var intentPriority = []statex.Intent{
	statex.IntentSearch,
	statex.IntentCheckout,
	statex.IntentInfo,
	statex.IntentPersuasion,
}

// KeywordIntent scores Spanish keyword hits per intent. It is infallible
// and sits last in the chain.
type KeywordIntent struct{}

func NewKeywordIntent() *KeywordIntent { return &KeywordIntent{} }

func (k *KeywordIntent) Name() string { return "keyword" }

func (k *KeywordIntent) Classify(_ context.Context, query string, conv *statex.ConversationState) (contractx.IntentResult, error) {
	q := strings.ToLower(strings.TrimSpace(query))

	scores := make(map[statex.Intent]int, len(intentKeywords))
	for intent, words := range intentKeywords {
		for _, w := range words {
			if strings.Contains(q, w) {
				scores[intent]++
			}
		}
	}

	// with results on the table, short replies lean toward closing or
	// objecting rather than a fresh search
	if conv != nil && len(conv.SearchResults) > 0 {
		switch {
		case scores[statex.IntentCheckout] > 0 || isAffirmative(q):
			scores[statex.IntentCheckout] = 3
		case scores[statex.IntentPersuasion] > 0 || totalScore(scores) == 0:
			scores[statex.IntentPersuasion] = 2
		}
	}

	if totalScore(scores) == 0 {
		scores[statex.IntentPersuasion] = 1
	}

	best := statex.IntentPersuasion
	bestScore := -1
	for _, intent := range intentPriority {
		if scores[intent] > bestScore {
			best = intent
			bestScore = scores[intent]
		}
	}

	confidence := float64(bestScore) / 3
	if confidence > 1 {
		confidence = 1
	}

	return contractx.IntentResult{
		Intent:     best,
		Confidence: confidence,
		Reasoning:  "keyword score",
	}, nil
}

func isAffirmative(q string) bool {
	q = strings.TrimSpace(q)
	for _, a := range affirmatives {
		if q == a || strings.HasPrefix(q, a+" ") || strings.HasPrefix(q, a+",") {
			return true
		}
	}
	return false
}

func totalScore(scores map[statex.Intent]int) int {
	total := 0
	for _, s := range scores {
		total += s
	}
	return total
}
