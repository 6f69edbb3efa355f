package layout

import "ereader/hyphen"

// HyphenAdapter wraps a *hyphen.Hyphenator as a breakSource, translating
// hyphen.BreakInfo into layout's own BreakOffset so this package doesn't
// need to import hyphen's public types into its core algorithms. A nil
// *hyphen.Hyphenator is valid (explicit/soft-hyphen breaks and the
// fallback splitter still work, per hyphen.Hyphenator's own nil-safety).
type HyphenAdapter struct {
	H *hyphen.Hyphenator
}

func (a HyphenAdapter) BreakOffsets(word string, allowFallback bool) []BreakOffset {
	infos := a.H.BreakOffsets(word, allowFallback)
	if infos == nil {
		return nil
	}
	out := make([]BreakOffset, len(infos))
	for i, bi := range infos {
		out[i] = BreakOffset{ByteOffset: bi.ByteOffset, RequiresInsertedHyphen: bi.RequiresInsertedHyphen}
	}
	return out
}

// Params bundles the inputs LayoutParagraph needs beyond the word list
// itself.
type Params struct {
	FontID             string
	EffectiveWidthPx   int
	Style              BlockStyle
	ExtraParaSpacing   bool
	Oracle             Oracle
	Hyphenation        *hyphen.Hyphenator
	HyphenationEnabled bool
}

// LayoutParagraph runs the full §4.4 algorithm: indent resolution, word
// measurement (the caller is expected to have already produced Words via
// MeasureWords), the oversized-first-word guard, line breaking in
// whichever mode hyphenation calls for, and final x-position emission to
// sink.
func LayoutParagraph(words []Word, p Params, sink Sink) {
	if len(words) == 0 {
		return
	}

	indentPx, hasIndent, prependEm := ResolveIndent(
		p.Style.HasFirstLineIndent,
		p.Style.FirstLineIndentPx,
		p.Style.Align,
		p.ExtraParaSpacing,
	)
	if prependEm {
		applyEmSpaceFallback(words, p.FontID, p.Oracle)
	}

	src := HyphenAdapter{H: p.Hyphenation}
	words = EnforceOversizedGuard(words, p.FontID, p.EffectiveWidthPx-indentPx, p.Oracle, src)

	var lines [][]Word
	if p.HyphenationEnabled {
		lines = GreedyBreakWithHyphenation(words, p.FontID, p.EffectiveWidthPx, indentPx, p.Style.SpaceWidthPx, p.Oracle, src)
	} else {
		lines = OptimalBreak(words, p.EffectiveWidthPx, indentPx, p.Style.SpaceWidthPx)
	}

	for idx, line := range lines {
		emitLine(line, idx == 0, idx == len(lines)-1, indentPx, hasIndent, p, sink)
	}
}

// emitLine computes x-positions for one line per the spacing rules in
// §4.4 step 5 and hands the result to sink.
func emitLine(words []Word, isFirst, isLast bool, indentPx int, hasIndent bool, p Params, sink Sink) {
	gaps := 0
	width := 0
	for i, w := range words {
		width += w.WidthPx
		if i > 0 && !w.ContinuesPrevious {
			gaps++
		}
	}

	spare := p.EffectiveWidthPx - width
	if isFirst {
		spare -= indentPx
	}
	if spare < 0 {
		spare = 0
	}

	space := p.Style.SpaceWidthPx
	justify := p.Style.Align == "justify" && !isLast && gaps >= 1
	if justify {
		space = spare / gaps
	}

	var x int
	switch {
	case p.Style.Align == "right":
		x = spare - gaps*space
	case p.Style.Align == "center":
		x = (spare - gaps*space) / 2
	default: // left, justify
		if isFirst && hasIndent {
			x = indentPx
		} else {
			x = 0
		}
	}

	out := Line{Words: make([]PositionedWord, 0, len(words))}
	for i, w := range words {
		if i > 0 && !w.ContinuesPrevious {
			x += space
		}
		out.Words = append(out.Words, PositionedWord{
			Text:              stripSoftHyphen(w.Text),
			X:                 x,
			TrailingHyphen:    w.TrailingHyphen,
			ContinuesPrevious: w.ContinuesPrevious,
			StyleByte:         w.StyleByte,
		})
		x += w.WidthPx
	}

	sink(out)
}
