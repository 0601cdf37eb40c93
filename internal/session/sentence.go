package session

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// terminators end a sentence. The CJK variants are boundaries on their own;
// the ASCII ones additionally require following whitespace so that decimal
// points and abbreviations do not split mid-number.
const (
	asciiTerminators = ".!?"
	cjkTerminators   = "。！？"
)

// closers may trail a terminator and stay attached to the sentence.
const closers = `"'」』)】]`

// sentenceBuffer accumulates streamed LLM fragments and yields complete
// sentences. The minimal prefix ending at a terminator is the sentence;
// the remainder stays buffered.
type sentenceBuffer struct {
	buf strings.Builder

	// consumed counts the bytes of reply text already cut into sentences,
	// giving each sentence its offset within the full reply.
	consumed int
}

// Add appends a fragment and returns every sentence completed by it, with
// each sentence's byte offset in the full reply.
func (b *sentenceBuffer) Add(fragment string) []offsetSentence {
	b.buf.WriteString(fragment)

	var out []offsetSentence
	for {
		sentence, rest, skipped, found := nextSentence(b.buf.String())
		if !found {
			break
		}
		out = append(out, offsetSentence{Text: sentence, Offset: b.consumed + skipped})
		b.consumed += len(b.buf.String()) - len(rest)
		b.buf.Reset()
		b.buf.WriteString(rest)
	}
	return out
}

// Flush returns the remaining buffered text as a final sentence, or an
// empty result when nothing is buffered.
func (b *sentenceBuffer) Flush() (offsetSentence, bool) {
	text := strings.TrimSpace(b.buf.String())
	skipped := len(b.buf.String()) - len(strings.TrimLeft(b.buf.String(), " \t\n\r"))
	offset := b.consumed + skipped
	b.consumed += len(b.buf.String())
	b.buf.Reset()
	if text == "" {
		return offsetSentence{}, false
	}
	return offsetSentence{Text: text, Offset: offset}, true
}

// offsetSentence is a completed sentence plus its byte offset in the full
// assistant reply.
type offsetSentence struct {
	Text   string
	Offset int
}

// nextSentence finds the minimal prefix of buf that forms a complete
// sentence. skipped is the count of leading whitespace bytes dropped from
// the front of the sentence. found is false when no boundary exists yet —
// an ASCII terminator at the very end of the buffer is not a boundary
// because closing quotes may still arrive.
func nextSentence(buf string) (sentence, rest string, skipped int, found bool) {
	for i, r := range buf {
		if !isTerminator(r) {
			continue
		}

		// Extend through any trailing closers.
		j := i + utf8.RuneLen(r)
		for j < len(buf) {
			r2, sz := utf8.DecodeRuneInString(buf[j:])
			if !strings.ContainsRune(closers, r2) {
				break
			}
			j += sz
		}

		cjk := strings.ContainsRune(cjkTerminators, r)
		if j >= len(buf) {
			if !cjk {
				return "", buf, 0, false
			}
		} else if !cjk {
			r2, _ := utf8.DecodeRuneInString(buf[j:])
			if !unicode.IsSpace(r2) {
				// Mid-token punctuation (e.g. "3.14"); keep scanning.
				continue
			}
		}

		raw := buf[:j]
		trimmed := strings.TrimLeft(raw, " \t\n\r")
		return strings.TrimSpace(trimmed), strings.TrimLeft(buf[j:], " \t\n\r"), len(raw) - len(trimmed), true
	}
	return "", buf, 0, false
}

// isTerminator reports whether r ends a sentence.
func isTerminator(r rune) bool {
	return strings.ContainsRune(asciiTerminators, r) || strings.ContainsRune(cjkTerminators, r)
}
