// Package reaction picks a contextual emoji reaction for a message.
package reaction

import (
	"regexp"
	"strings"

	"github.com/luisa-bot-go/internal/random"
)

type rule struct {
	pattern *regexp.Regexp
	emojis  []string
}

// Rules are evaluated in order; the last one matches everything.
var defaultRules = []rule{
	{regexp.MustCompile(`te amo|amo|love|coração|❤️`), []string{"❤️", "😊", "🥰", "😍"}},
	{regexp.MustCompile(`kkk|haha|rsrs|lol|engracado|engraçado`), []string{"😂", "🤣", "😆"}},
	{regexp.MustCompile(`pizza|hamburguer|comida|fome|delicia|delícia`), []string{"🍕", "🍔", "🤤", "😋"}},
	{regexp.MustCompile(`jogo|jogar|game|valorant|ganhou|win`), []string{"🎮", "🏆", "🔥", "💪"}},
	{regexp.MustCompile(`triste|sad|chato|ruim|problema`), []string{"😢", "😔", "💔"}},
	{regexp.MustCompile(`odeio|raiva|merda|porra|caralho`), []string{"😡", "👀", "🔥"}},
	{regexp.MustCompile(`nossa|caramba|wtf|serio|sério`), []string{"😱", "😲", "👀"}},
	{regexp.MustCompile(`verdade|exato|concordo|sim|certeza`), []string{"👍", "✅", "💯"}},
	{regexp.MustCompile(`nao|não|nunca|jamais`), []string{"❌", "🚫", "👎"}},
	{regexp.MustCompile(`.*`), []string{"👀", "🔥", "💀", "😎", "🤔"}},
}

// Policy draws reactions from the keyword table.
type Policy struct {
	rules  []rule
	chance float64
	src    random.Source
}

func New(chance float64, src random.Source) *Policy {
	return &Policy{rules: defaultRules, chance: chance, src: src}
}

// Pick returns an emoji from the first set whose keywords match content.
func (p *Policy) Pick(content string) string {
	lower := strings.ToLower(content)
	for _, r := range p.rules {
		if r.pattern.MatchString(lower) {
			return random.Choice(p.src, r.emojis)
		}
	}
	return ""
}

// Maybe reacts with the configured probability.
func (p *Policy) Maybe(content string) (string, bool) {
	if p.src.Float64() >= p.chance {
		return "", false
	}
	return p.Pick(content), true
}
