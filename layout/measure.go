package layout

import "strings"

const softHyphen = "­"

func stripSoftHyphen(s string) string {
	if !strings.Contains(s, softHyphen) {
		return s
	}
	return strings.ReplaceAll(s, softHyphen, "")
}

// MeasureWord measures text under fontID, ignoring soft-hyphen bytes.
func MeasureWord(fontID, text string, oracle Oracle) int {
	return oracle.MeasureWord(fontID, stripSoftHyphen(text))
}

// MeasureWords converts raw word texts into measured Words.
func MeasureWords(fontID string, texts []string, continues []bool, styles []byte, oracle Oracle) []Word {
	words := make([]Word, len(texts))
	for i, t := range texts {
		var styleByte byte
		if i < len(styles) {
			styleByte = styles[i]
		}
		words[i] = Word{
			Text:              t,
			WidthPx:           MeasureWord(fontID, t, oracle),
			ContinuesPrevious: continues[i],
			StyleByte:         styleByte,
		}
	}
	return words
}

// breakSource abstracts the hyphenator for the oversized-word guard and
// the greedy inline-hyphenation path, so both can share one splitting
// routine without layout importing a concrete *hyphen.Hyphenator type
// when all it needs is break offsets.
type breakSource interface {
	BreakOffsets(word string, allowFallback bool) []BreakOffset
}

// BreakOffset mirrors hyphen.BreakInfo; kept as a separate type here so
// layout has no hard dependency on the hyphen package's internals beyond
// this shape, which the caller's adapter converts to/from.
type BreakOffset struct {
	ByteOffset             int
	RequiresInsertedHyphen bool
}

// EnforceOversizedGuard recursively splits any word wider than limit
// using src, until every resulting fragment fits alone (or the break
// source is exhausted, in which case the oversized fragment is left as
// is — the caller will simply render it wider than the viewport, the
// only possible outcome when a single unbreakable token outsizes the
// page).
func EnforceOversizedGuard(words []Word, fontID string, limit int, oracle Oracle, src breakSource) []Word {
	out := make([]Word, 0, len(words))
	for _, w := range words {
		out = append(out, splitOversized(w, fontID, limit, oracle, src)...)
	}
	return out
}

func splitOversized(w Word, fontID string, limit int, oracle Oracle, src breakSource) []Word {
	if w.WidthPx <= limit {
		return []Word{w}
	}
	offs := src.BreakOffsets(w.Text, true)
	if len(offs) == 0 {
		return []Word{w}
	}

	chosen := offs[0]
	for _, o := range offs {
		if splitPieceWidth(w.Text[:o.ByteOffset], o.RequiresInsertedHyphen, fontID, oracle) <= limit {
			chosen = o
		} else {
			break
		}
	}

	prefixText := w.Text[:chosen.ByteOffset]
	suffixText := w.Text[chosen.ByteOffset:]

	prefix := Word{
		Text:              prefixText,
		WidthPx:           MeasureWord(fontID, prefixText, oracle),
		ContinuesPrevious: w.ContinuesPrevious,
		TrailingHyphen:    chosen.RequiresInsertedHyphen,
		StyleByte:         w.StyleByte,
	}
	suffix := Word{
		Text:              suffixText,
		WidthPx:           MeasureWord(fontID, suffixText, oracle),
		ContinuesPrevious: true,
		StyleByte:         w.StyleByte,
	}

	result := []Word{prefix}
	return append(result, splitOversized(suffix, fontID, limit, oracle, src)...)
}

func splitPieceWidth(prefix string, requiresHyphen bool, fontID string, oracle Oracle) int {
	w := MeasureWord(fontID, prefix, oracle)
	if requiresHyphen {
		w += oracle.MeasureWord(fontID, "-")
	}
	return w
}
