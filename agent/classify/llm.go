package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	contractx "github.com/dmquizhpe/ventia/agent/contract"
	statex "github.com/dmquizhpe/ventia/agent/state"
)

const intentSystemPrompt = `Eres un clasificador de intenciones para una tienda de zapatos.
Clasifica el mensaje del cliente en exactamente una de estas intenciones:
- "search": busca o quiere ver productos
- "checkout": quiere comprar o confirmar una compra
- "info": pregunta por horarios, envíos, pagos o políticas
- "persuasion": duda, compara precios o pide recomendaciones

Responde SOLO con JSON: {"intent": "...", "confidence": 0.0, "reasoning": "..."}`

const styleSystemPrompt = `Eres un detector de registro de habla para una tienda de zapatos.
Clasifica cómo habla el cliente en exactamente uno de estos estilos:
- "regional": modismos costeños ecuatorianos (ve, full, chevere, pana)
- "youthful": jerga juvenil (bro, che, onda, re)
- "formal": trato de usted, cortesía marcada
- "neutral": ninguno de los anteriores

Responde SOLO con JSON: {"style": "...", "confidence": 0.0, "patterns": []}`

// ModelIntent asks the language model to classify one utterance. A model
// failure or malformed reply is an error so the chain can fall back.
type ModelIntent struct {
	model contractx.LanguageModel
}

func NewModelIntent(model contractx.LanguageModel) *ModelIntent {
	return &ModelIntent{model: model}
}

func (m *ModelIntent) Name() string { return "model" }

func (m *ModelIntent) Classify(ctx context.Context, query string, conv *statex.ConversationState) (contractx.IntentResult, error) {
	if m == nil || m.model == nil {
		return contractx.IntentResult{}, fmt.Errorf("%w: no model configured", contractx.ErrModelInvoke)
	}

	prompt := query
	if conv != nil && len(conv.SearchResults) > 0 {
		prompt = fmt.Sprintf("El cliente ya tiene %d resultados de búsqueda en pantalla.\nMensaje: %s",
			len(conv.SearchResults), query)
	}

	raw, err := m.model.Complete(ctx, intentSystemPrompt, []statex.Message{{Role: "user", Content: prompt}})
	if err != nil {
		return contractx.IntentResult{}, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}

	var out contractx.IntentResult
	if err := json.Unmarshal([]byte(stripFences(raw)), &out); err != nil {
		return contractx.IntentResult{}, fmt.Errorf("%w: %v", contractx.ErrSchemaViolation, err)
	}
	if !out.Intent.Valid() || out.Intent == statex.IntentNone {
		return contractx.IntentResult{}, fmt.Errorf("%w: unknown intent %q", contractx.ErrSchemaViolation, out.Intent)
	}
	if out.Confidence < 0 || out.Confidence > 1 {
		return contractx.IntentResult{}, fmt.Errorf("%w: confidence %v out of range", contractx.ErrSchemaViolation, out.Confidence)
	}

	return out, nil
}

// ModelStyle asks the language model to detect the user's register.
type ModelStyle struct {
	model contractx.LanguageModel
}

func NewModelStyle(model contractx.LanguageModel) *ModelStyle {
	return &ModelStyle{model: model}
}

func (m *ModelStyle) Name() string { return "model" }

func (m *ModelStyle) Detect(ctx context.Context, query string, recent []string) (contractx.StyleResult, error) {
	if m == nil || m.model == nil {
		return contractx.StyleResult{}, fmt.Errorf("%w: no model configured", contractx.ErrModelInvoke)
	}

	var sb strings.Builder
	for _, msg := range recent {
		sb.WriteString("- ")
		sb.WriteString(msg)
		sb.WriteByte('\n')
	}
	sb.WriteString("Mensaje actual: ")
	sb.WriteString(query)

	raw, err := m.model.Complete(ctx, styleSystemPrompt, []statex.Message{{Role: "user", Content: sb.String()}})
	if err != nil {
		return contractx.StyleResult{}, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}

	var out contractx.StyleResult
	if err := json.Unmarshal([]byte(stripFences(raw)), &out); err != nil {
		return contractx.StyleResult{}, fmt.Errorf("%w: %v", contractx.ErrSchemaViolation, err)
	}
	if !out.Style.Valid() || out.Style == statex.StyleNone {
		return contractx.StyleResult{}, fmt.Errorf("%w: unknown style %q", contractx.ErrSchemaViolation, out.Style)
	}

	return out, nil
}

// stripFences removes a markdown code fence the model sometimes wraps
// around its JSON answer.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
