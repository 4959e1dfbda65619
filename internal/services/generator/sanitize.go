package generator

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	wrappingQuotes   = regexp.MustCompile(`^["']+|["']+$`)
	markupTags       = regexp.MustCompile(`</?[^>]+(>|$)`)
	escapedEntities  = regexp.MustCompile(`&lt;|&gt;|&quot;|&amp;`)
	emojiRanges      = regexp.MustCompile(`[\x{1F300}-\x{1FAFF}\x{2600}-\x{27BF}\x{FE0F}\x{200D}]`)
	repeatedBang     = regexp.MustCompile(`!{2,}`)
	repeatedQuestion = regexp.MustCompile(`\?{2,}`)
)

// Sanitizer cleans raw model output into a single short chat line.
type Sanitizer struct {
	speakerPrefix *regexp.Regexp
	maxLen        int
	wordBoundary  int
}

// NewSanitizer strips the persona's own label along with the generic ones.
// maxLen is counted in runes.
func NewSanitizer(personaName string, maxLen int) *Sanitizer {
	labels := []string{"você:", "bot:", "eu:"}
	if personaName != "" {
		labels = append([]string{regexp.QuoteMeta(strings.ToLower(personaName)) + ":"}, labels...)
	}

	return &Sanitizer{
		speakerPrefix: regexp.MustCompile(`(?i)^(` + strings.Join(labels, "|") + `)\s*`),
		maxLen:        maxLen,
		wordBoundary:  maxLen * 3 / 4,
	}
}

// Clean applies the cleanup passes until the text stops changing, so
// Clean(Clean(s)) == Clean(s).
func (s *Sanitizer) Clean(text string) string {
	for {
		next := s.pass(text)
		if next == text {
			return next
		}
		text = next
	}
}

func (s *Sanitizer) pass(text string) string {
	text = strings.TrimSpace(text)
	for {
		trimmed := s.speakerPrefix.ReplaceAllString(text, "")
		if trimmed == text {
			break
		}
		text = trimmed
	}

	text = wrappingQuotes.ReplaceAllString(text, "")
	text = markupTags.ReplaceAllString(text, "")
	text = escapedEntities.ReplaceAllString(text, "")
	text = emojiRanges.ReplaceAllString(text, "")
	text = repeatedBang.ReplaceAllString(text, "!")
	text = repeatedQuestion.ReplaceAllString(text, "?")
	text = strings.Join(strings.Fields(text), " ")

	return s.truncate(text)
}

// truncate cuts to maxLen runes, backing off to the last space when it lies
// past the word boundary.
func (s *Sanitizer) truncate(text string) string {
	if s.maxLen <= 0 || utf8.RuneCountInString(text) <= s.maxLen {
		return text
	}

	runes := []rune(text)
	cut := strings.TrimSpace(string(runes[:s.maxLen]))
	if i := strings.LastIndex(cut, " "); i >= 0 && utf8.RuneCountInString(cut[:i]) > s.wordBoundary {
		cut = cut[:i]
	}
	return cut
}
