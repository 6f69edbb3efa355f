package hyphen

// Compiled-in hyphenation pattern tables.
//
// The teacher repo ships full TeX/Liang pattern dictionaries as
// gzip-compressed assets loaded via go:embed (see DESIGN.md). Those asset
// files aren't part of this retrieval pack, so the registry below carries
// a small, hand-picked, illustrative subset of the public-domain Liang
// patterns per language instead of the full corpus. The algorithm that
// consumes them (hyphenateWord) is the same either way: a larger pattern
// file only means better coverage, not a different code path.

type patternSet struct {
	patterns   []string
	exceptions map[string]string
}

// registry maps a normalized language-pattern name (as produced by
// resolveLangName) to its pattern set.
var registry = map[string]patternSet{
	"en-us": {
		patterns: []string{
			"1b", "1c", "1d", "1f", "1g", "1h", "1j", "1k", "1l", "1m",
			"1n", "1p", "1q", "1r", "1s", "1t", "1v", "1w", "1x", "1z",
			"a1a", "e1a", "i1a", "o1a", "u1a",
			"nd1er", "t1ion", "a1tion", "1ation",
			"2ing", "in1g",
			"1ful", "1less", "1ness", "1ment",
			"con1s", "pro1s", "1re", "1un",
		},
		exceptions: map[string]string{
			"orange": "or-ange",
			"people": "peo-ple",
		},
	},
	"de-1901": {
		patterns: []string{
			"1b", "1d", "1f", "1g", "1h", "1k", "1l", "1m", "1n", "1p",
			"1r", "1s", "1t", "1w", "1z",
			"ch1", "sch1", "ck1", "1ung", "1heit", "1keit", "1lich",
		},
		exceptions: map[string]string{},
	},
}

// langMap remaps a BCP-47 tag or base language to the registry key whose
// canonical pattern set it should use, for languages whose patterns live
// under a different tag than their own ISO code.
var langMap = map[string]string{
	"de":    "de-1901",
	"de-de": "de-1901",
	"de-at": "de-1901",
	"de-ch": "de-1901",
	"en":    "en-us",
	"en-gb": "en-us",
}
