package handlers

import (
	"fmt"
	"strings"

	statex "github.com/dmquizhpe/ventia/agent/state"
)

// styledText holds one message per register. Neutral doubles as the
// fallback for unset styles.
type styledText struct {
	regional string
	youthful string
	formal   string
	neutral  string
}

func (t styledText) For(style statex.Style) string {
	switch style {
	case statex.StyleRegional:
		return t.regional
	case statex.StyleYouthful:
		return t.youthful
	case statex.StyleFormal:
		return t.formal
	default:
		return t.neutral
	}
}

var (
	msgNoSearchTerms = styledText{
		regional: "Ayayay, no entendí bien qué estás buscando ve. ¿Me dices qué marca o tipo de zapato quieres?",
		youthful: "Che, no me quedó claro qué buscás. ¿Qué tipo de zapatillas querés?",
		formal:   "Disculpe, no logré identificar su búsqueda. ¿Podría especificar qué tipo de calzado busca?",
		neutral:  "No pude identificar qué buscas. ¿Podrías especificar marca o tipo de zapato?",
	}

	msgSearchGreeting = styledText{
		regional: "Ayayay, mirá lo que tengo para vos:",
		youthful: "¡Che, mira lo que encontré!",
		formal:   "He encontrado los siguientes productos:",
		neutral:  "Encontré estos productos:",
	}

	msgClarifyProduct = styledText{
		regional: "Ayayay, no entendí qué producto quieres comprar ve. ¿Me dices cuál?",
		youthful: "No me quedó claro qué producto querías. ¿Cuál te interesa?",
		formal:   "Disculpe, no logré identificar el producto que desea adquirir. ¿Podría especificarlo?",
		neutral:  "No identifiqué qué producto quieres comprar. ¿Puedes especificar?",
	}

	msgAddressRequest = styledText{
		regional: "Chevere! ¿A qué dirección te lo mando ve?",
		youthful: "Genial! ¿Cuál es tu dirección de envío?",
		formal:   "Excelente. ¿Podría proporcionarme su dirección de envío?",
		neutral:  "Perfecto. ¿Cuál es tu dirección de envío?",
	}

	msgCancellation = styledText{
		regional: "No hay problema ve! ¿Buscamos otra cosa?",
		youthful: "Dale, sin drama. ¿Algo más que te interese?",
		formal:   "Entendido. ¿Puedo ayudarle con algo más?",
		neutral:  "Ok, pedido cancelado. ¿Necesitas algo más?",
	}

	msgNoProducts = styledText{
		regional: "Ayayay, no veo ningún producto para comprar ve. ¿Buscamos algo primero?",
		youthful: "Che, no hay productos en el carrito bro. ¿Buscamos algo?",
		formal:   "Disculpe, no hay productos seleccionados para procesar. ¿Desea realizar una búsqueda?",
		neutral:  "No hay productos seleccionados. ¿Quieres buscar algo primero?",
	}

	msgCriticalError = styledText{
		regional: "Ayayay, tuve un problema grave con el pedido ve. Lo siento mucho. ¿Intentamos de nuevo o buscas otra cosa?",
		youthful: "Uh, hubo un error grave en el pedido bro. Perdón. ¿Probamos de nuevo?",
		formal:   "Lamento informarle que ha ocurrido un error crítico al procesar su pedido. ¿Desea intentar nuevamente?",
		neutral:  "Hubo un error crítico procesando el pedido. Lo siento. ¿Quieres intentar de nuevo?",
	}

	msgOrderHeader = styledText{
		regional: "¡Ayayay, listo ve! Pedido confirmado:",
		youthful: "¡Listo bro! Tu pedido está confirmado:",
		formal:   "Pedido procesado exitosamente:",
		neutral:  "¡Pedido confirmado!",
	}

	msgAskPreference = styledText{
		regional: "Ayayay, cuéntame un poco más ve. ¿Para qué los quieres? ¿Correr, fútbol, diario?",
		youthful: "Che, dame una pista más. ¿Para qué los querés? ¿Correr, fútbol, salir?",
		formal:   "¿Podría contarme un poco más? ¿Para qué actividad necesita el calzado?",
		neutral:  "Cuéntame un poco más. ¿Para qué los necesitas? ¿Correr, fútbol, uso diario?",
	}

	msgCheckoutHandoff = styledText{
		regional: "¡Dale ve, vamos con ese! 🛒",
		youthful: "¡Dale bro, vamos con ese! 🛒",
		formal:   "Excelente elección. Procedamos con su pedido.",
		neutral:  "¡Excelente elección! Procedamos con tu pedido. 🛒",
	}

	msgOrderClosing = styledText{
		regional: "¡Gracias por tu compra ve! Te llega en 2-3 días. 🎉",
		youthful: "¡Gracias por tu compra! Te llega pronto. 🚀",
		formal:   "Gracias por su compra. Recibirá su pedido en 2-3 días hábiles.",
		neutral:  "¡Gracias por tu compra! Recibirás tu pedido pronto. 📦",
	}
)

// orderErrorMessages is keyed by the stable error codes the orders
// service exposes.
var orderErrorMessages = map[string]styledText{
	"PRODUCT_NOT_FOUND": {
		regional: "Ayayay, uno de los productos ya no está disponible ve. ¿Buscamos otra cosa?",
		youthful: "Uh, no encontré uno de los productos. ¿Probamos con otro?",
		formal:   "Disculpe, uno de los productos no está disponible. ¿Desea buscar alternativas?",
		neutral:  "Uno de los productos no está disponible. ¿Quieres buscar otra opción?",
	},
	"INSUFFICIENT_STOCK": {
		regional: "Ayayay, alguien compró el último justo ahorita ve. ¿Quieres que busque algo similar?",
		youthful: "Uh, se acabó el stock de algo. ¿Buscamos alternativas?",
		formal:   "Lo siento, el stock se ha agotado para uno de los productos. ¿Desea buscar alternativas?",
		neutral:  "Se acabó el stock de un producto. ¿Quieres buscar alternativas?",
	},
	"SERVICE_ERROR": {
		regional: "Ayayay, hay un problemita con el sistema ve. ¿Intentamos en un ratito?",
		youthful: "Che, hay un error del sistema. ¿Probamos de nuevo?",
		formal:   "Disculpe, estamos experimentando problemas técnicos. ¿Desea intentar nuevamente?",
		neutral:  "Hay un problema técnico. ¿Quieres intentar de nuevo?",
	},
}

var orderErrorFallback = styledText{
	regional: "Ayayay, hubo un error procesando el pedido ve. ¿Intentamos de nuevo?",
	youthful: "Uh, hubo un error. ¿Probamos otra vez?",
	formal:   "Disculpe, ocurrió un error procesando su pedido. ¿Desea intentar nuevamente?",
	neutral:  "Hubo un error procesando el pedido. ¿Quieres intentar de nuevo?",
}

func orderErrorMessage(code string, style statex.Style) string {
	if msgs, ok := orderErrorMessages[code]; ok {
		return msgs.For(style)
	}
	return orderErrorFallback.For(style)
}

func noResultsMessage(style statex.Style, query string) string {
	switch style {
	case statex.StyleRegional:
		return fmt.Sprintf("Ayayay, no tengo nada de '%s' ahorita. ¿Buscamos otra cosa?", query)
	case statex.StyleYouthful:
		return fmt.Sprintf("Uh, no tengo '%s' en stock. ¿Algo más que te interese?", query)
	case statex.StyleFormal:
		return fmt.Sprintf("Lo siento, no encontré resultados para '%s'. ¿Puedo ayudarle con otra búsqueda?", query)
	default:
		return fmt.Sprintf("No encontré productos para '%s'. ¿Quieres buscar algo diferente?", query)
	}
}

func insufficientStockMessage(style statex.Style, name string, available int) string {
	switch style {
	case statex.StyleRegional:
		return fmt.Sprintf("Ayayay, solo me quedan %d de %s. ¿Igual los quieres ve?", available, name)
	case statex.StyleYouthful:
		return fmt.Sprintf("Uh, solo quedan %d unidades de %s. ¿Los llevas?", available, name)
	case statex.StyleFormal:
		return fmt.Sprintf("Lo siento, solo tenemos %d unidades disponibles de %s. ¿Desea ajustar la cantidad?", available, name)
	default:
		return fmt.Sprintf("Solo tenemos %d unidades de %s disponibles. ¿Quieres ajustar la cantidad?", available, name)
	}
}

func confirmationRequest(style statex.Style, name string, unitPrice float64, quantity int) string {
	productLine := fmt.Sprintf("**%s** - $%.2f", name, unitPrice)
	if quantity > 1 {
		productLine += fmt.Sprintf(" x %d = $%.2f", quantity, unitPrice*float64(quantity))
	}

	switch style {
	case statex.StyleRegional:
		return fmt.Sprintf("Ayayay, perfecto! Confirmame este pedido:\n\n%s\n\n¿Está bien ve?", productLine)
	case statex.StyleYouthful:
		return fmt.Sprintf("Dale! Vamos a confirmar:\n\n%s\n\n¿Todo ok?", productLine)
	case statex.StyleFormal:
		return fmt.Sprintf("Muy bien, por favor confirme su pedido:\n\n%s\n\n¿Desea proceder?", productLine)
	default:
		return fmt.Sprintf("Perfecto, confirmemos el pedido:\n\n%s\n\n¿Está correcto?", productLine)
	}
}

func stockBadge(stock int) string {
	if stock > 5 {
		return fmt.Sprintf("✅ %d disponibles", stock)
	}
	return fmt.Sprintf("⚠️ ¡Solo quedan %d!", stock)
}

func closingQuestion(style statex.Style) string {
	switch style {
	case statex.StyleRegional:
		return "¿Querés que te los reserve? ¡Dale nomás! 🛒"
	case statex.StyleYouthful:
		return "¿Los llevamos?"
	case statex.StyleFormal:
		return "¿Desea proceder con la compra de este modelo?"
	default:
		return "¿Te gustaría comprar este?"
	}
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}
