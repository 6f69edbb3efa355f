package layout

const emSpace = " "

// ResolveIndent decides whether a paragraph gets an explicit first-line
// indent, an em-space visual fallback, or neither, per the indent rule:
// an explicit CSS text-indent wins (recorded as a real pixel field, never
// a synthetic leading word) when alignment is left/justify and extra
// paragraph spacing is off; absent a CSS indent, left/justify paragraphs
// still get a visual nudge via an em-space prepended to the first word.
func ResolveIndent(indentSet bool, indentPx int, align string, extraParagraphSpacing bool) (resolvedIndentPx int, hasIndent bool, prependEmSpace bool) {
	leftOrJustify := align == "left" || align == "justify"

	if indentSet && leftOrJustify && !extraParagraphSpacing {
		return indentPx, true, false
	}
	if !indentSet && leftOrJustify {
		return 0, false, true
	}
	return 0, false, false
}

// applyEmSpaceFallback prepends an em-space to the first word's text and
// re-measures it, mutating words in place.
func applyEmSpaceFallback(words []Word, fontID string, oracle Oracle) {
	if len(words) == 0 {
		return
	}
	words[0].Text = emSpace + words[0].Text
	words[0].WidthPx = MeasureWord(fontID, words[0].Text, oracle)
}
