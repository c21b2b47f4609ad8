package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/dmquizhpe/ventia/agent/contract"
	statex "github.com/dmquizhpe/ventia/agent/state"
)

const advisorTimeout = 10 * time.Second

// unansweredBeforeNudge is how many fruitless turns pass before the
// advisor pushes the user toward the catalog.
const unansweredBeforeNudge = 2

const advisorSystemPrompt = `Eres Alex, asistente de ventas de una tienda de calzado deportivo.

Tu trabajo es ayudar a los clientes con preguntas sobre:
- Políticas de la tienda
- Información de envíos
- Garantías
- Horarios
- Métodos de pago

Responde de manera clara, amable y concisa. Si no sabes algo, di que consultarás con el equipo.`

// purchaseSignals are the phrases that close the sale: a query carrying
// one while results are on the table hands the turn to checkout.
var purchaseSignals = []string{
	"lo quiero", "los quiero", "lo llevo", "me lo llevo", "lo compro",
	"comprar", "confirmo", "dame ese", "dámelo",
}

// Advisor persuades over search results and answers store questions with
// the language model. A model failure degrades to a canned apology, never
// to an error.
type Advisor struct {
	model contractx.LanguageModel
}

func NewAdvisor(model contractx.LanguageModel) *Advisor {
	return &Advisor{model: model}
}

func (a *Advisor) ID() contractx.HandlerID { return contractx.HandlerAdvisor }

func (a *Advisor) Handle(ctx context.Context, conv *statex.ConversationState) (contractx.HandlerResponse, error) {
	query := strings.ToLower(strings.TrimSpace(conv.UserQuery))
	vague := len(significantTerms(query)) == 0

	if len(conv.SearchResults) > 0 && conv.Intent != statex.IntentInfo {
		if wantsToBuy(query) {
			return contractx.HandlerResponse{
				Handler:    a.ID(),
				Message:    msgCheckoutHandoff.For(conv.Style),
				Transfer:   true,
				TransferTo: contractx.HandlerCheckout,
			}, nil
		}

		if vague {
			conv.UnansweredCount++
			if conv.UnansweredCount < unansweredBeforeNudge {
				return contractx.HandlerResponse{
					Handler: a.ID(),
					Message: msgAskPreference.For(conv.Style),
				}, nil
			}
			// enough back and forth, just pitch the best option
		}

		return contractx.HandlerResponse{
			Handler: a.ID(),
			Message: a.recommend(conv),
		}, nil
	}

	if vague {
		conv.UnansweredCount++
	}
	return a.answer(ctx, conv, vague), nil
}

// wantsToBuy reports whether the query is a purchase affirmative.
func wantsToBuy(query string) bool {
	return containsAny(query, purchaseSignals) || containsAny(query, checkoutAffirmatives)
}

// recommend picks the cheapest in-stock result and sells it.
func (a *Advisor) recommend(conv *statex.ConversationState) string {
	var best *statex.SearchHit
	for i := range conv.SearchResults {
		hit := &conv.SearchResults[i]
		if hit.Stock <= 0 {
			continue
		}
		if best == nil || hit.Price < best.Price {
			best = hit
		}
	}
	if best == nil {
		return noResultsMessage(conv.Style, conv.UserQuery)
	}

	conv.UnansweredCount = 0

	var lines []string
	switch conv.Style {
	case statex.StyleRegional:
		lines = append(lines, "👋 ¡Ayayay, mirá lo que tengo para vos ve! 🏆", "")
	case statex.StyleYouthful:
		lines = append(lines, "👋 ¡Che, encontré el mejor para vos! ⭐", "")
	case statex.StyleFormal:
		lines = append(lines, "Le presento mi recomendación:", "")
	default:
		lines = append(lines, fmt.Sprintf("⭐ **Te recomiendo: %s**", best.Name), "")
	}

	if conv.Style != statex.StyleNeutral && conv.Style != statex.StyleNone {
		lines = append(lines, fmt.Sprintf("**%s**", best.Name))
	}
	lines = append(lines, fmt.Sprintf("💰 Precio: $%.2f", best.Price))

	// cheapest option, spell out the savings against the runner-up
	for i := range conv.SearchResults {
		other := &conv.SearchResults[i]
		if other.ID == best.ID || other.Stock <= 0 {
			continue
		}
		if diff := other.Price - best.Price; diff > 0 {
			lines = append(lines, fmt.Sprintf("• vs %s: este ahorra $%.2f", other.Name, diff))
		}
	}

	if best.Stock <= fewResultsThreshold {
		lines = append(lines, "", fmt.Sprintf("⚡ Solo quedan %d unidades", best.Stock))
	}

	lines = append(lines, "", closingQuestion(conv.Style))
	return joinLines(lines)
}

// answer runs the general question through the model with a hard timeout.
func (a *Advisor) answer(ctx context.Context, conv *statex.ConversationState, vague bool) contractx.HandlerResponse {
	resp := contractx.HandlerResponse{Handler: a.ID()}

	if a.model == nil {
		resp.Message = a.apology(conv)
		return resp
	}

	callCtx, cancel := context.WithTimeout(ctx, advisorTimeout)
	defer cancel()

	history := append([]statex.Message{}, conv.History...)
	history = append(history, statex.Message{Role: "user", Content: conv.UserQuery})

	text, err := a.model.Complete(callCtx, advisorSystemPrompt, history)
	if err != nil {
		log.Warn().Err(err).Msg("advisor completion failed")
		resp.Message = a.apology(conv)
		return resp
	}

	// a vague turn stays counted even when the model produced something
	if !vague {
		conv.UnansweredCount = 0
	}
	resp.Message = text
	return resp
}

func (a *Advisor) apology(conv *statex.ConversationState) string {
	conv.UnansweredCount++
	msg := "Disculpa la demora. ¿Puedes repetir tu pregunta?"
	if conv.UnansweredCount >= unansweredBeforeNudge {
		msg += " También puedo mostrarte el catálogo, dime qué tipo de zapato buscas."
	}
	return msg
}
