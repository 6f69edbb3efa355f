package layout

// OptimalBreak runs the Knuth-style minimum-badness break: cost of a
// non-final line is (space_remaining)^2, a final line costs 0 regardless
// of raggedness. Computed bottom-up over prefixes of words (equivalent to
// the suffix recurrence: dp[k] is the minimum cost to lay out words[0:k]
// as complete lines, built up from dp[i] for each candidate last-line
// start i). A break after word j is illegal when words[j+1] continues
// word j, so such an i is never considered as a line start.
func OptimalBreak(words []Word, effectiveWidthPx, firstLineIndentPx, spaceWidthPx int) [][]Word {
	n := len(words)
	if n == 0 {
		return nil
	}

	prefixWidth := make([]int64, n+1)
	gapBefore := make([]int, n) // gapBefore[j]=1 if a space precedes word j (j>=1, not a continuation)
	for i, w := range words {
		prefixWidth[i+1] = prefixWidth[i] + int64(w.WidthPx)
		if i > 0 && !w.ContinuesPrevious {
			gapBefore[i] = 1
		}
	}
	prefixGaps := make([]int, n+1)
	for i := 0; i < n; i++ {
		prefixGaps[i+1] = prefixGaps[i] + gapBefore[i]
	}

	dpCost := make([]int64, n+1)
	dpBreak := make([]int, n+1)
	for k := 1; k <= n; k++ {
		dpCost[k] = maxCost
		dpBreak[k] = -1
	}

	for k := 1; k <= n; k++ {
		for i := 0; i < k; i++ {
			if i > 0 && words[i].ContinuesPrevious {
				continue // illegal: can't start a line with a continuation fragment
			}
			if dpCost[i] >= maxCost {
				continue
			}

			widthSum := prefixWidth[k] - prefixWidth[i]
			gaps := prefixGaps[k] - prefixGaps[i+1]
			avail := int64(effectiveWidthPx)
			if i == 0 {
				avail -= int64(firstLineIndentPx)
			}
			spare := avail - widthSum - int64(gaps*spaceWidthPx)

			isFinal := k == n
			if spare < 0 {
				if k-i == 1 {
					// Lone oversized word (the guard couldn't split it
					// further): emit it alone, inheriting the cost of
					// whatever precedes it.
					if dpCost[i] < dpCost[k] {
						dpCost[k] = dpCost[i]
						dpBreak[k] = i
					}
				}
				continue
			}

			cost := int64(0)
			if !isFinal {
				cost = spare * spare
				if cost > maxCost {
					cost = maxCost
				}
			}
			cand := dpCost[i] + cost
			if cand > maxCost {
				cand = maxCost
			}
			if cand < dpCost[k] {
				dpCost[k] = cand
				dpBreak[k] = i
			}
		}
	}

	var starts []int
	for k := n; k > 0; {
		i := dpBreak[k]
		if i < 0 {
			// Safety: force a single-word advance if the DP somehow
			// found nothing (shouldn't happen given the k-i==1 fallback
			// above, but an infinite-loop guard costs nothing).
			i = k - 1
		}
		starts = append(starts, i)
		k = i
	}

	lines := make([][]Word, 0, len(starts))
	for idx := len(starts) - 1; idx >= 0; idx-- {
		i := starts[idx]
		var end int
		if idx == 0 {
			end = n
		} else {
			end = starts[idx-1]
		}
		lines = append(lines, words[i:end])
	}
	return lines
}

// GreedyBreakWithHyphenation packs words left to right, splitting the
// word that would overflow via src when hyphenation is enabled.
func GreedyBreakWithHyphenation(words []Word, fontID string, effectiveWidthPx, firstLineIndentPx, spaceWidthPx int, oracle Oracle, src breakSource) [][]Word {
	queue := make([]Word, len(words))
	copy(queue, words)

	var lines [][]Word
	var current []Word
	curWidth := 0
	firstLine := true

	avail := func() int {
		if firstLine {
			return effectiveWidthPx - firstLineIndentPx
		}
		return effectiveWidthPx
	}

	flush := func() {
		if len(current) == 0 {
			return
		}
		lines = append(lines, current)
		current = nil
		curWidth = 0
		firstLine = false
	}

	i := 0
	for i < len(queue) {
		w := queue[i]
		gap := 0
		if len(current) > 0 && !w.ContinuesPrevious {
			gap = spaceWidthPx
		}

		if len(current) == 0 || curWidth+gap+w.WidthPx <= avail() {
			current = append(current, w)
			curWidth += gap + w.WidthPx
			i++
			continue
		}

		remaining := avail() - curWidth - gap
		isFirstWordOfLine := len(current) == 0
		offs := src.BreakOffsets(w.Text, isFirstWordOfLine)

		bestIdx := -1
		for oi, o := range offs {
			if splitPieceWidth(w.Text[:o.ByteOffset], o.RequiresInsertedHyphen, fontID, oracle) <= remaining {
				bestIdx = oi
			} else {
				break
			}
		}

		if bestIdx < 0 {
			// Doesn't fit even hyphenated: close out this line and
			// retry w against a fresh one, which always succeeds
			// (the oversized-word guard already ensures every word
			// fits alone).
			flush()
			continue
		}

		o := offs[bestIdx]
		prefixText := w.Text[:o.ByteOffset]
		suffixText := w.Text[o.ByteOffset:]

		current = append(current, Word{
			Text:              prefixText,
			WidthPx:           MeasureWord(fontID, prefixText, oracle),
			ContinuesPrevious: w.ContinuesPrevious,
			TrailingHyphen:    o.RequiresInsertedHyphen,
			StyleByte:         w.StyleByte,
		})
		flush()

		queue[i] = Word{
			Text:              suffixText,
			WidthPx:           MeasureWord(fontID, suffixText, oracle),
			ContinuesPrevious: true,
			StyleByte:         w.StyleByte,
		}
		// i stays put: re-process the remainder against the new line.
	}
	flush()

	return lines
}
