package speech

import (
	"strings"
	"unicode"
)

// DefaultSentinel is the token the chat model emits when it has nothing to
// say. It must never reach the synthesis backend.
const DefaultSentinel = "$null$"

// DefaultWordLimit bounds how long a punctuation-free span can grow before
// it is cut into an utterance anyway, so synthesis latency stays bounded.
const DefaultWordLimit = 10

// SentenceBuffer accumulates streamed text fragments, strips the sentinel
// token, and emits complete utterances. Fragments may split anywhere,
// including mid-sentinel, so a tail that could be the start of a sentinel is
// held back until the next fragment resolves it.
type SentenceBuffer struct {
	sentinel  string
	wordLimit int

	held    string // possible sentinel prefix carried to the next fragment
	current string // cleaned text of the utterance in progress
}

func NewSentenceBuffer(sentinel string, wordLimit int) *SentenceBuffer {
	if sentinel == "" {
		sentinel = DefaultSentinel
	}
	if wordLimit <= 0 {
		wordLimit = DefaultWordLimit
	}
	return &SentenceBuffer{sentinel: sentinel, wordLimit: wordLimit}
}

// Write feeds one fragment and returns any utterances completed by it, in
// order. Emitted text is cleaned and never empty.
func (b *SentenceBuffer) Write(fragment string) []string {
	text := b.held + fragment
	b.held = ""

	text = strings.ReplaceAll(text, b.sentinel, "")

	// Hold back a tail that is a proper prefix of the sentinel; the rest of
	// the token may arrive in the next fragment.
	for i := len(b.sentinel) - 1; i > 0; i-- {
		if strings.HasSuffix(text, b.sentinel[:i]) {
			b.held = text[len(text)-i:]
			text = text[:len(text)-i]
			break
		}
	}

	b.current += text
	return b.drain(false)
}

// Flush emits whatever remains at end of stream, terminal punctuation or
// not. A held partial sentinel at stream end is ordinary text after all.
func (b *SentenceBuffer) Flush() []string {
	b.current += b.held
	b.held = ""
	out := b.drain(true)
	return out
}

// drain cuts b.current into utterances. A cut happens after terminal
// punctuation, or mid-span once the word limit is exceeded. When force is
// set the remaining tail is emitted too.
func (b *SentenceBuffer) drain(force bool) []string {
	var out []string
	for {
		cut := -1
		words := 0
		inWord := false
		for i, r := range b.current {
			if unicode.IsSpace(r) {
				inWord = false
			} else if !inWord {
				inWord = true
				words++
			}
			if r == '.' || r == '?' || r == '!' {
				cut = i + 1
				break
			}
			if words > b.wordLimit {
				cut = i
				break
			}
		}
		if cut < 0 {
			break
		}
		if u := CleanText(b.current[:cut]); u != "" {
			out = append(out, u)
		}
		b.current = b.current[cut:]
	}
	if force {
		if u := CleanText(b.current); u != "" {
			out = append(out, u)
		}
		b.current = ""
	}
	return out
}

// Pending returns the cleaned text accumulated but not yet emitted.
func (b *SentenceBuffer) Pending() string {
	return CleanText(b.current + b.held)
}

// CleanText normalizes an utterance for synthesis: newlines become spaces,
// runs of whitespace collapse, and characters outside the small set the
// voice can render are dropped.
func CleanText(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	lastSpace := false
	for _, r := range text {
		switch {
		case r == '\n' || r == '\r' || unicode.IsSpace(r):
			if !lastSpace {
				sb.WriteRune(' ')
				lastSpace = true
			}
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastSpace = false
		case strings.ContainsRune(`$#?!.,;:"'`, r):
			sb.WriteRune(r)
			lastSpace = false
		}
	}
	return strings.TrimSpace(sb.String())
}
