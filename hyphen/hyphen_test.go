package hyphen_test

import (
	"reflect"
	"testing"

	"go.uber.org/zap/zaptest"
	"golang.org/x/text/language"

	"ereader/hyphen"
)

func TestBreakOffsets_ExplicitHyphen(t *testing.T) {
	offs := (*hyphen.Hyphenator)(nil).BreakOffsets("well-known", false)
	want := []hyphen.BreakInfo{{ByteOffset: 5, RequiresInsertedHyphen: false}}
	if !reflect.DeepEqual(offs, want) {
		t.Errorf("BreakOffsets() = %+v, want %+v", offs, want)
	}
}

func TestBreakOffsets_SoftHyphen(t *testing.T) {
	word := "soft­hyphen"
	offs := (*hyphen.Hyphenator)(nil).BreakOffsets(word, false)
	if len(offs) != 1 {
		t.Fatalf("BreakOffsets() = %+v, want exactly one break", offs)
	}
	if !offs[0].RequiresInsertedHyphen {
		t.Error("expected soft hyphen break to require an inserted hyphen")
	}
}

func TestBreakOffsets_NoHyphenNoFallback(t *testing.T) {
	offs := (*hyphen.Hyphenator)(nil).BreakOffsets("plainword", false)
	if offs != nil {
		t.Errorf("BreakOffsets() = %+v, want nil with fallback disabled", offs)
	}
}

func TestBreakOffsets_FallbackSplitter(t *testing.T) {
	offs := (*hyphen.Hyphenator)(nil).BreakOffsets("plainword", true)
	if len(offs) == 0 {
		t.Fatal("expected fallback splitter to produce offsets")
	}
	for _, o := range offs {
		if o.ByteOffset <= 0 || o.ByteOffset >= len("plainword") {
			t.Errorf("fallback offset %d out of bounds", o.ByteOffset)
		}
		if !o.RequiresInsertedHyphen {
			t.Error("expected fallback breaks to require an inserted hyphen")
		}
	}
}

func TestBreakOffsets_Invariants(t *testing.T) {
	h := hyphen.NewHyphenator(language.MustParse("en-US"), zaptest.NewLogger(t))
	words := []string{"hyphenation", "understanding", "formatting", "a", "ab"}
	for _, w := range words {
		offs := h.BreakOffsets(w, true)
		prev := -1
		for _, o := range offs {
			if o.ByteOffset <= 0 || o.ByteOffset >= len(w) {
				t.Errorf("word %q: offset %d out of bounds", w, o.ByteOffset)
			}
			if o.ByteOffset <= prev {
				t.Errorf("word %q: offsets not strictly increasing: %+v", w, offs)
			}
			prev = o.ByteOffset
		}
	}
}

func TestNewHyphenator_UnknownLanguage(t *testing.T) {
	h := hyphen.NewHyphenator(language.MustParse("zz"), zaptest.NewLogger(t))
	if h != nil {
		t.Error("expected nil Hyphenator for unregistered language")
	}
	// A nil Hyphenator must still be safe to call.
	offs := h.BreakOffsets("anything", true)
	_ = offs
}

func TestNewHyphenator_LangMapRemap(t *testing.T) {
	h := hyphen.NewHyphenator(language.MustParse("de"), zaptest.NewLogger(t))
	if h == nil {
		t.Fatal("expected de to remap to de-1901 and resolve")
	}
}

func TestBreakOffsets_PatternHyphenation(t *testing.T) {
	h := hyphen.NewHyphenator(language.MustParse("en-US"), zaptest.NewLogger(t))
	offs := h.BreakOffsets("cabin", true)
	want := []hyphen.BreakInfo{{ByteOffset: 2, RequiresInsertedHyphen: true}}
	if !reflect.DeepEqual(offs, want) {
		t.Errorf("BreakOffsets(%q) = %+v, want %+v", "cabin", offs, want)
	}
}

func TestBreakOffsets_ExceptionOverridesPattern(t *testing.T) {
	h := hyphen.NewHyphenator(language.MustParse("en-US"), zaptest.NewLogger(t))
	offs := h.BreakOffsets("orange", true)
	want := []hyphen.BreakInfo{{ByteOffset: 2, RequiresInsertedHyphen: true}}
	if !reflect.DeepEqual(offs, want) {
		t.Errorf("BreakOffsets(%q) = %+v, want %+v (exception dictionary entry)", "orange", offs, want)
	}
}
