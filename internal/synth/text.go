package synth

import (
	"strings"
	"unicode"
)

// Speakable strips emoji and other non-speakable symbols from text before it
// is handed to the synthesis engine. Letters, digits, spaces, and common
// punctuation survive; pictographs, symbols, and control characters do not.
// Runs of whitespace collapse to a single space.
func Speakable(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	lastSpace := true

	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsMark(r):
			b.WriteRune(r)
			lastSpace = false
		case speakablePunct(r):
			b.WriteRune(r)
			lastSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}

// speakablePunct reports whether r is punctuation a TTS engine renders as
// prosody rather than reading aloud or choking on.
func speakablePunct(r rune) bool {
	switch r {
	case '.', ',', '!', '?', ';', ':', '\'', '"', '-', '(', ')', '%', '&', '/', '@':
		return true
	}
	return false
}
