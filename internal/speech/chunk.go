package speech

import (
	"strings"
	"unicode/utf8"
)

// DefaultChunkLength keeps each utterance below the length synthesis engines
// reliably accept
const DefaultChunkLength = 200

// Chunk splits text into segments of at most max runes. Segments break at
// sentence ends where possible, then at spaces; a single word longer than max
// is cut.
func Chunk(text string, max int) []string {
	if max <= 0 {
		max = DefaultChunkLength
	}
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
	}
	add := func(piece string) {
		n := utf8.RuneCountInString(piece)
		if currentLen > 0 && currentLen+1+n > max {
			flush()
		}
		if currentLen > 0 {
			current.WriteByte(' ')
			currentLen++
		}
		current.WriteString(piece)
		currentLen += n
	}

	for _, sentence := range splitSentences(text) {
		if utf8.RuneCountInString(sentence) <= max {
			add(sentence)
			continue
		}
		for _, word := range strings.Fields(sentence) {
			if utf8.RuneCountInString(word) <= max {
				add(word)
				continue
			}
			flush()
			runes := []rune(word)
			for len(runes) > max {
				chunks = append(chunks, string(runes[:max]))
				runes = runes[max:]
			}
			add(string(runes))
		}
	}
	flush()
	return chunks
}

// splitSentences cuts after '.', '!' or '?' followed by a space
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text)-1; i++ {
		switch text[i] {
		case '.', '!', '?':
			if text[i+1] == ' ' {
				sentences = append(sentences, text[start:i+1])
				start = i + 2
			}
		}
	}
	if start < len(text) {
		sentences = append(sentences, text[start:])
	}
	return sentences
}
