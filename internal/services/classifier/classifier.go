// Package classifier assigns one canonical category to a chat message. The same
// ordered rule list drives quick replies, prompt examples and fallback replies.
package classifier

import (
	"regexp"
	"strings"
)

// Category is the canonical label of a message.
type Category string

const (
	Affection     Category = "affection"
	Insult        Category = "insult"
	Plan          Category = "plan"
	Wellbeing     Category = "wellbeing"
	Activity      Category = "activity"
	Greeting      Category = "greeting"
	Food          Category = "food"
	Gaming        Category = "gaming"
	Entertainment Category = "entertainment"
	Question      Category = "question"
	General       Category = "general"
)

// DefaultInsults are matched as plain substrings of the lowercased message.
var DefaultInsults = []string{
	"vsf", "fdp", "vai se foder", "vai tomar no cu", "vtmc",
	"burra", "idiota", "imbecil", "otaria",
}

type rule struct {
	category Category
	pattern  *regexp.Regexp
}

// Classifier evaluates its rules in order; the first match wins.
type Classifier struct {
	rules []rule
}

// New builds the classifier. insults replaces DefaultInsults when non-empty.
func New(insults []string) *Classifier {
	if len(insults) == 0 {
		insults = DefaultInsults
	}

	quoted := make([]string, 0, len(insults))
	for _, word := range insults {
		word = strings.ToLower(strings.TrimSpace(word))
		if word != "" {
			quoted = append(quoted, regexp.QuoteMeta(word))
		}
	}

	rules := []rule{
		{Affection, regexp.MustCompile(`eu\s+te\s+amo|te\s+amo|amo\s+(vc|voce|você)`)},
	}
	// an empty alternation would match every message
	if len(quoted) > 0 {
		rules = append(rules, rule{Insult, regexp.MustCompile(strings.Join(quoted, "|"))})
	}
	rules = append(rules,
		rule{Plan, regexp.MustCompile(`qual.*(boa|role|fazer)|o que.*(fazer|rola)|bora.*(fazer|sair)`)},
		rule{Wellbeing, regexp.MustCompile(`como.*(ta|esta|vai)|tudo bem|beleza`)},
		rule{Activity, regexp.MustCompile(`o que.*(fazendo|faz)|ta fazendo|que ce ta`)},
		rule{Greeting, regexp.MustCompile(`\b(oi|ola|olá|e ai|eai|bom dia|boa tarde|boa noite)\b`)},
		rule{Food, regexp.MustCompile(`\b(comida|pizza|fome|comer|hamburguer|lanche)\b`)},
		rule{Gaming, regexp.MustCompile(`\b(jogo|jogar|game|valorant|lol|cs|minecraft)\b`)},
		rule{Entertainment, regexp.MustCompile(`\b(filme|serie|anime|netflix|assistir)\b`)},
		rule{Question, regexp.MustCompile(`\?`)},
	)

	return &Classifier{rules: rules}
}

// Classify returns the category of text, General when no rule matches.
func (c *Classifier) Classify(text string) Category {
	content := strings.ToLower(text)
	for _, r := range c.rules {
		if r.pattern.MatchString(content) {
			return r.category
		}
	}
	return General
}

// IsQuickReply reports whether a category is answered from the fixed sets
// without calling a provider.
func IsQuickReply(c Category) bool {
	return c == Affection || c == Insult
}
