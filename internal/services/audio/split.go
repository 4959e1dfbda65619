package audio

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var sentencePattern = regexp.MustCompile(`[^.!?]*[.!?]+`)

// SplitText breaks text into chunks of at most max runes, packing whole
// sentences first and falling back to word boundaries for long sentences.
// A single word longer than max is kept whole.
func SplitText(text string, max int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	sentences := sentencePattern.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{text}
	} else if tail := strings.TrimSpace(text[lastSentenceEnd(text):]); tail != "" {
		sentences = append(sentences, " "+tail)
	}

	var packed []string
	current := ""
	for _, sentence := range sentences {
		if utf8.RuneCountInString(current+sentence) <= max {
			current += sentence
			continue
		}
		if c := strings.TrimSpace(current); c != "" {
			packed = append(packed, c)
		}
		current = sentence
	}
	if c := strings.TrimSpace(current); c != "" {
		packed = append(packed, c)
	}

	var chunks []string
	for _, chunk := range packed {
		if utf8.RuneCountInString(chunk) <= max {
			chunks = append(chunks, chunk)
			continue
		}
		chunks = append(chunks, splitWords(chunk, max)...)
	}
	return chunks
}

func splitWords(text string, max int) []string {
	var chunks []string
	current := ""
	for _, word := range strings.Fields(text) {
		if current == "" {
			current = word
			continue
		}
		if utf8.RuneCountInString(current)+1+utf8.RuneCountInString(word) <= max {
			current += " " + word
			continue
		}
		chunks = append(chunks, current)
		current = word
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

func lastSentenceEnd(text string) int {
	locs := sentencePattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return 0
	}
	return locs[len(locs)-1][1]
}
