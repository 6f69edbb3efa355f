package section

import "unicode/utf8"

// maxWordBytes caps a single buffered word: a run of non-whitespace this
// long (a URL dumped into the text with no spaces, say) is forced to
// flush early so the layout engine never has to measure an unbounded
// string. The continuation that follows stays glued to it.
const maxWordBytes = 200

// paragraphFlushThreshold is how many words accumulate before a paragraph
// is eagerly laid out and every line so far handed to the page
// assembler, so a single pathologically long paragraph doesn't hold the
// whole chapter in memory.
const paragraphFlushThreshold = 750

// wordBuffer accumulates one pending word's bytes across possibly many
// XML text tokens (entities and adjacent text runs all land in the same
// token stream), tracking the style bits it should be stamped with when
// flushed. The continuation flag lives in sectionState.forceContinuation.
type wordBuffer struct {
	buf   []byte
	style byte
}

func (b *wordBuffer) reset() {
	b.buf = b.buf[:0]
}

func (b *wordBuffer) empty() bool {
	return len(b.buf) == 0
}

// appendText feeds one chunk of character data through the buffer,
// flushing completed words to emit as it goes. s.forceContinuation is true
// only when the previous flush was forced (a mid-word byte-cap split or an
// inline-style tag boundary) and no whitespace has been read since.
func (p *Parser) appendText(s *sectionState, text string) {
	for len(text) > 0 {
		r, size := utf8.DecodeRuneInString(text)
		text = text[size:]

		if r == '﻿' { // BOM, anywhere in the stream
			continue
		}

		if isWordBreakSpace(r) {
			// real whitespace always wins over a tag boundary's forced
			// glue, even when there was no pending word to flush.
			p.flushWord(s, false)
			s.forceContinuation = false
			continue
		}

		s.word.buf = append(s.word.buf, string(r)...)
		s.word.style = s.styleMask

		if len(s.word.buf) >= maxWordBytes {
			p.flushWord(s, true)
		}
	}
}

func isWordBreakSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

// flushWord pushes the pending buffered word onto the in-flight
// paragraph's word list, if any is pending, and clears the buffer. forced
// means the flush was not at whitespace (a byte-cap split or an
// inline-style tag boundary), so the next word flushed is marked
// ContinuesPrevious unless whitespace is read before it.
func (p *Parser) flushWord(s *sectionState, forced bool) {
	if s.word.empty() {
		return
	}

	s.para.words = append(s.para.words, pendingWord{
		text:      string(s.word.buf),
		style:     s.word.style,
		continues: s.forceContinuation,
	})
	s.forceContinuation = forced
	s.word.reset()

	if len(s.para.words) >= paragraphFlushThreshold {
		p.eagerFlushParagraph(s)
	}
}
