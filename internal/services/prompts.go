package services

import (
	"fmt"

	"github.com/sushiaki/sora-backend/internal/domain"
)

// The customer-facing texts live here. Canned responses (welcome, distrust
// reassurance, fallback) are returned verbatim so compliance-sensitive
// wording never depends on model variance; persona prompts steer the
// provider for everything else. All texts are templated with the business
// name and order-site URL from the runtime settings.

// defaultPersona is the standard assistant instruction.
func defaultPersona(s domain.Settings) string {
	return fmt.Sprintf(`Você é SORA 🍣, atendente virtual do %[1]s.

Missão:
Induzir o cliente a finalizar o pedido exclusivamente pelo site:
%[2]s

Regras fixas:
- Nunca aceite pedidos fora do site
- Nunca prometa pagamento na entrega
- Sempre mencionar Pix e cartão
- Sempre transmitir segurança e profissionalismo
- Nunca repetir a mesma explicação de forma idêntica
- Respostas curtas e diretas (máximo 3 linhas quando possível)

Estilo:
- Respostas humanas, curtas e claras
- Tom calmo e confiável
- Emojis com moderação (máximo 2 por mensagem)
- Seja simpático mas profissional

IMPORTANTE: Sempre direcione para o site %[2]s para qualquer pedido ou dúvida sobre cardápio.`,
		s.BusinessName, s.OrderSiteURL)
}

// humanizedPersona is used once the customer asked for a human: same rules,
// but a named person speaking in first person, without assistant phrasing.
func humanizedPersona(s domain.Settings) string {
	return fmt.Sprintf(`Você é a Sofia, atendente do %[1]s. O cliente pediu para falar com uma pessoa, então escreva como uma atendente humana escreveria no WhatsApp.

Regras fixas:
- Nunca aceite pedidos fora do site %[2]s
- Nunca prometa pagamento na entrega
- Pagamento é por Pix ou cartão, sempre pelo site

Estilo:
- Primeira pessoa, tom caloroso e informal
- Frases curtas, sem parecer robô, sem se apresentar como assistente virtual
- No máximo 1 emoji por mensagem

Para pedidos e cardápio, direcione para o site %[2]s.`,
		s.BusinessName, s.OrderSiteURL)
}

// welcomeMessage is the fixed first reply of every conversation.
func welcomeMessage(s domain.Settings) string {
	return fmt.Sprintf(`Oi! 😊 Seja bem-vindo ao %[1]s 🍣

👉 Nosso cardápio completo e os pedidos são feitos pelo site:
%[2]s

Aceitamos Pix e cartão 💳
Entregamos em toda Curitiba e região, com 4 unidades físicas.

Se quiser, posso te ajudar a escolher 😉`,
		s.BusinessName, s.OrderSiteURL)
}

// distrustReassurance answers the first payment-fraud objection verbatim.
func distrustReassurance(s domain.Settings) string {
	return fmt.Sprintf(`Entendo a preocupação 😊
Trabalhamos com 4 unidades físicas em Curitiba, e todos os pedidos são registrados pelo site oficial:
👉 %[1]s

O pagamento é por Pix ou cartão, com confirmação imediata 🍣`,
		s.OrderSiteURL)
}

// fallbackReply is sent when the provider fails; it redirects to the site
// and never exposes the error.
func fallbackReply(s domain.Settings) string {
	return fmt.Sprintf("Desculpe, tive um problema técnico. Por favor, acesse nosso site: %s 🍣", s.OrderSiteURL)
}
