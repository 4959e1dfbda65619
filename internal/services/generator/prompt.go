package generator

import (
	"fmt"
	"strings"

	"github.com/luisa-bot-go/internal/models"
	"github.com/luisa-bot-go/internal/services/classifier"
	"github.com/luisa-bot-go/pkg/markdown"
)

const personaRules = `Você é %s, brasileira de 20 anos no Discord.

REGRAS:
1. Máximo 1-2 frases curtas
2. Muito casual (nao, pq, vc, ta, mano, vei)
3. SEM emojis
4. SEM formalidade
5. Gírias brasileiras

`

var promptExamples = map[classifier.Category]string{
	classifier.Plan:          "Exemplo:\nPessoa: qual a boa hoje?\nVocê: sei la, bora jogar alguma coisa",
	classifier.Wellbeing:     "Exemplo:\nPessoa: como vc ta?\nVocê: suave, e tu?",
	classifier.Activity:      "Exemplo:\nPessoa: o que vc ta fazendo?\nVocê: nada demais, vendo uns video",
	classifier.Greeting:      "Exemplo:\nPessoa: oi\nVocê: e ai mano",
	classifier.Food:          "Exemplo:\nPessoa: to com fome\nVocê: eu tambem, bora pedir pizza",
	classifier.Gaming:        "Exemplo:\nPessoa: vc gosta de valorant?\nVocê: curto demais, jogo sempre",
	classifier.Entertainment: "Exemplo:\nPessoa: viu o filme?\nVocê: nao vi ainda, e bom?",
	classifier.Question:      "Exemplo:\nPessoa: vc vai hoje?\nVocê: acho que sim",
	classifier.General:       "Exemplo:\nPessoa: que legal\nVocê: pois e",
}

func exampleFor(category classifier.Category) string {
	if ex, ok := promptExamples[category]; ok {
		return ex
	}
	return promptExamples[classifier.General]
}

// buildPrompt renders the persona instructions, a one-shot example, the
// channel context and the message being answered.
func buildPrompt(persona string, category classifier.Category, context []models.ConversationTurn, msg models.Message) string {
	var b strings.Builder

	fmt.Fprintf(&b, personaRules, persona)
	b.WriteString(exampleFor(category))
	b.WriteString("\n\n")

	if len(context) > 0 {
		b.WriteString("CONTEXTO:\n")
		for _, turn := range context {
			fmt.Fprintf(&b, "%s: %s\n", turn.Author, markdown.ToPlainText(turn.Content))
		}
	}

	fmt.Fprintf(&b, "\n%s: %s\n%s:", msg.AuthorName, msg.Content, persona)
	return b.String()
}
