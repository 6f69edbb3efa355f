// Package hyphen implements break_offsets: legal hyphenation points inside
// a word, combining explicit hyphens and soft hyphens already present in
// the text with TeX-style pattern hyphenation and, as a last resort, a
// fixed-window fallback splitter.
package hyphen

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/language"
)

const softHyphen = '­'

// minLeft/minRight mirror the classic TeX hyphenation minimums: never
// break within the first two or last two characters of a segment.
const (
	minLeft  = 2
	minRight = 2
)

// BreakInfo describes one legal break point inside a word.
type BreakInfo struct {
	ByteOffset             int
	RequiresInsertedHyphen bool
}

// Hyphenator holds the compiled pattern trie and exception list for one
// language. A nil *Hyphenator is valid and behaves as if no language
// patterns were available: BreakOffsets still finds explicit/soft
// hyphens and still honors allowFallback.
type Hyphenator struct {
	patterns *trie
	excepts  map[string]string
	name     string
}

// resolveLangName finds the registry key to use for tag, per the BCP-47
// lookup-then-remap-then-base-lookup chain.
func resolveLangName(tag language.Tag) string {
	name := strings.ToLower(tag.String())
	if _, ok := registry[name]; ok {
		return name
	}
	if mapped, ok := langMap[name]; ok {
		if _, ok := registry[mapped]; ok {
			return mapped
		}
	}

	base, confidence := tag.Base()
	if confidence == language.No {
		return ""
	}
	baseName := strings.ToLower(base.String())
	if _, ok := registry[baseName]; ok {
		return baseName
	}
	if mapped, ok := langMap[baseName]; ok {
		if _, ok := registry[mapped]; ok {
			return mapped
		}
	}
	return ""
}

// NewHyphenator builds a Hyphenator for the given language hint. It
// returns nil (a valid, pattern-less hyphenator) when no registry entry
// matches, logging why at warn level.
func NewHyphenator(tag language.Tag, log *zap.Logger) *Hyphenator {
	name := resolveLangName(tag)
	if name == "" {
		log.Warn("no hyphenation patterns registered for language, pattern hyphenation disabled",
			zap.Stringer("language", tag))
		return nil
	}

	set := registry[name]
	h := &Hyphenator{
		patterns: newTrie(),
		excepts:  set.exceptions,
		name:     name,
	}
	for _, p := range set.patterns {
		h.patterns.addPatternString(p)
	}
	return h
}

// BreakOffsets implements the break_offsets contract: explicit
// hyphens/soft hyphens first, pattern hyphenation merged in next, and
// the fixed-window fallback only when both are empty and allowFallback
// is set.
func (h *Hyphenator) BreakOffsets(word string, allowFallback bool) []BreakInfo {
	explicit := explicitBreaks(word)

	var pattern []BreakInfo
	if h != nil {
		pattern = h.patternBreaks(word)
	}

	merged := mergeBreaks(explicit, pattern)
	if len(merged) > 0 {
		return merged
	}

	if allowFallback {
		return fallbackBreaks(word)
	}
	return nil
}

// explicitBreaks finds every '-' or soft hyphen sitting between two
// alphabetic code points.
func explicitBreaks(word string) []BreakInfo {
	var out []BreakInfo
	runes := []rune(word)
	byteOff := make([]int, len(runes)+1)
	off := 0
	for i, r := range runes {
		byteOff[i] = off
		off += utf8.RuneLen(r)
	}
	byteOff[len(runes)] = off

	for i, r := range runes {
		if r != '-' && r != softHyphen {
			continue
		}
		if i == 0 || i+1 >= len(runes) {
			continue
		}
		if !unicode.IsLetter(runes[i-1]) || !unicode.IsLetter(runes[i+1]) {
			continue
		}
		out = append(out, BreakInfo{
			ByteOffset:             byteOff[i+1],
			RequiresInsertedHyphen: r == softHyphen,
		})
	}
	return out
}

// patternBreaks applies the hyphenation patterns to each alphabetic
// segment of word delimited by explicit hyphens/soft hyphens, returning
// break offsets expressed against the full word.
func (h *Hyphenator) patternBreaks(word string) []BreakInfo {
	var out []BreakInfo

	segStart := 0
	flush := func(end int) {
		seg := word[segStart:end]
		if seg == "" {
			return
		}
		for _, off := range h.hyphenateSegment(seg) {
			out = append(out, BreakInfo{ByteOffset: segStart + off, RequiresInsertedHyphen: true})
		}
	}

	for i, r := range word {
		if r == '-' || r == softHyphen {
			flush(i)
			segStart = i + utf8.RuneLen(r)
		}
	}
	flush(len(word))

	return out
}

// hyphenateSegment runs the Liang pattern algorithm over a single
// hyphen-free segment, consulting the exception list first.
func (h *Hyphenator) hyphenateSegment(seg string) []int {
	lower := strings.ToLower(seg)
	if exc, ok := h.excepts[lower]; ok {
		return offsetsFromExceptionForm(exc, seg)
	}
	return hyphenateWord(seg, h.patterns)
}

// offsetsFromExceptionForm converts an exception dictionary entry like
// "base-ball" back into byte offsets against the original (unhyphenated)
// segment, preserving its original casing.
func offsetsFromExceptionForm(exc, original string) []int {
	var offsets []int
	pos := 0
	for _, r := range exc {
		if r == '-' {
			offsets = append(offsets, pos)
			continue
		}
		pos += utf8.RuneLen(r)
	}
	if pos != len(original) {
		// Casing-only exceptions are the common case; a length mismatch
		// means the exception doesn't actually apply to this spelling.
		return nil
	}
	return offsets
}

// hyphenateWord runs the classic Liang/TeX algorithm: wrap the word in
// boundary dots, accumulate the maximum pattern weight at every
// inter-letter position, then keep the odd-weighted positions outside
// the first/last minLeft/minRight characters.
func hyphenateWord(s string, patterns *trie) []int {
	if patterns == nil {
		return nil
	}

	testStr := "." + s + "."
	runes := []rune(testStr)
	v := make([]int, len(runes))

	for pos := range runes {
		t := string(runes[pos:])
		strs, vals := patterns.allSubstringsAndValues(t)
		for i := range vals {
			matched := []rune(strs[i])
			weights := vals[i].([]int)
			diff := len(weights) - len(matched)
			start := pos - diff
			if start < 0 {
				continue
			}
			for j, w := range weights {
				if start+j >= len(v) {
					break
				}
				if w > v[start+j] {
					v[start+j] = w
				}
			}
		}
	}

	markers := v[1 : len(v)-1]
	byteOff := make([]int, len(markers)+1)
	off := 0
	wordRunes := []rune(s)
	for i, r := range wordRunes {
		byteOff[i] = off
		off += utf8.RuneLen(r)
	}
	byteOff[len(wordRunes)] = off

	var offsets []int
	for i := 0; i < len(markers); i++ {
		if i < minLeft-1 || i >= len(markers)-minRight {
			continue
		}
		if markers[i]%2 != 0 {
			offsets = append(offsets, byteOff[i+1])
		}
	}
	return offsets
}

// fallbackBreaks emits every rune offset from minLeft to
// len(word)-minRight inclusive whose neighbours on both sides are
// letters, used only when no explicit or pattern break exists and the
// caller opted into the fallback splitter.
func fallbackBreaks(word string) []BreakInfo {
	runes := []rune(word)
	if len(runes) < minLeft+minRight {
		return nil
	}

	byteOff := make([]int, len(runes)+1)
	off := 0
	for i, r := range runes {
		byteOff[i] = off
		off += utf8.RuneLen(r)
	}
	byteOff[len(runes)] = off

	var out []BreakInfo
	for i := minLeft; i <= len(runes)-minRight; i++ {
		if !unicode.IsLetter(runes[i-1]) || !unicode.IsLetter(runes[i]) {
			continue
		}
		out = append(out, BreakInfo{ByteOffset: byteOff[i], RequiresInsertedHyphen: true})
	}
	return out
}

// mergeBreaks combines explicit and pattern break lists into one
// ascending, offset-deduplicated list.
func mergeBreaks(a, b []BreakInfo) []BreakInfo {
	if len(a) == 0 {
		sort.Slice(b, func(i, j int) bool { return b[i].ByteOffset < b[j].ByteOffset })
		return b
	}
	if len(b) == 0 {
		sort.Slice(a, func(i, j int) bool { return a[i].ByteOffset < a[j].ByteOffset })
		return a
	}

	seen := make(map[int]BreakInfo, len(a)+len(b))
	for _, bi := range a {
		seen[bi.ByteOffset] = bi
	}
	for _, bi := range b {
		if _, ok := seen[bi.ByteOffset]; !ok {
			seen[bi.ByteOffset] = bi
		}
	}

	out := make([]BreakInfo, 0, len(seen))
	for _, bi := range seen {
		out = append(out, bi)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ByteOffset < out[j].ByteOffset })
	return out
}
