package section

import "ereader/layout"

// pendingWord is one word accumulated for the in-flight paragraph, before
// it has been measured against any font.
type pendingWord struct {
	text      string
	style     byte
	continues bool
}

// paragraphState is the in-flight paragraph's accumulated words and the
// block style it opened with.
type paragraphState struct {
	words  []pendingWord
	block  resolvedBlock
	active bool
}

func (ps *paragraphState) snapshot() (texts []string, continues []bool, styles []byte) {
	texts = make([]string, len(ps.words))
	continues = make([]bool, len(ps.words))
	styles = make([]byte, len(ps.words))
	for i, w := range ps.words {
		texts[i] = w.text
		continues[i] = w.continues
		styles[i] = w.style
	}
	return texts, continues, styles
}

// beginParagraph opens a new in-flight paragraph and advances the page
// assembler's cursor past the block's top margin/padding.
func (p *Parser) beginParagraph(s *sectionState, block resolvedBlock) {
	s.assembler.beginParagraph(block.BlockStyle, block.MarginTopPx, block.PaddingTopPx)
	s.para = paragraphState{block: block, active: true}
	s.forceContinuation = false
}

// finalizeParagraph flushes any pending word, lays out and emits every
// remaining line, and advances the cursor past the block's bottom
// margin/padding. A no-op if no paragraph is open.
func (p *Parser) finalizeParagraph(s *sectionState) {
	p.flushWord(s, false)
	if !s.para.active {
		return
	}
	p.runLayout(s)
	s.assembler.endParagraph(s.para.block.MarginBottomPx, s.para.block.PaddingBottomPx, p.extraParagraphSpacing)
	s.para = paragraphState{}
	s.forceContinuation = false
}

// eagerFlushParagraph lays out and emits every line accumulated so far in
// a pathologically long paragraph, without closing it: the block's
// margins and indent are zeroed for whatever words arrive next so the
// split lands invisibly in the rendered output.
func (p *Parser) eagerFlushParagraph(s *sectionState) {
	p.runLayout(s)
	s.para.block.HasFirstLineIndent = true
	s.para.block.FirstLineIndentPx = 0
	s.para.block.MarginTopPx = 0
	s.para.block.PaddingTopPx = 0
}

func (p *Parser) runLayout(s *sectionState) {
	if len(s.para.words) == 0 {
		return
	}
	texts, continues, styles := s.para.snapshot()
	words := layout.MeasureWords(p.fontID, texts, continues, styles, p.oracle)

	params := layout.Params{
		FontID:             p.fontID,
		EffectiveWidthPx:   p.effectiveWidthPx,
		Style:              s.para.block.BlockStyle,
		ExtraParaSpacing:   p.extraParagraphSpacing,
		Oracle:             p.oracle,
		Hyphenation:        p.hyphenator,
		HyphenationEnabled: p.hyphenationEnabled,
	}
	layout.LayoutParagraph(words, params, func(l layout.Line) {
		s.assembler.emitLine(l)
	})
	s.para.words = s.para.words[:0]
}
