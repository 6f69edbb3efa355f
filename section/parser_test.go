package section

import (
	"context"
	"strings"
	"testing"

	"ereader/css"

	"go.uber.org/zap/zaptest"
)

// fixedOracle measures every rune at a constant width, so tests can
// predict exact pixel positions without a real font.
type fixedOracle struct {
	runeWidth  int
	spaceWidth int
}

func (o fixedOracle) MeasureWord(fontID, text string) int {
	return o.runeWidth * len([]rune(text))
}

func (o fixedOracle) SpaceWidth(fontID string) int {
	return o.spaceWidth
}

func newTestParser(t *testing.T, cssCompiler *css.Compiler, opts Options) *Parser {
	t.Helper()
	if cssCompiler == nil {
		cssCompiler = css.NewCompiler(zaptest.NewLogger(t))
	}
	if opts.FontID == "" {
		opts.FontID = "body@12"
	}
	if opts.ViewportWidthPx == 0 {
		opts.ViewportWidthPx = 400
	}
	if opts.ViewportHeightPx == 0 {
		opts.ViewportHeightPx = 1000
	}
	if opts.LineHeightPx == 0 {
		opts.LineHeightPx = 20
	}
	return NewParser(cssCompiler, fixedOracle{runeWidth: 10, spaceWidth: 10}, nil, opts, zaptest.NewLogger(t))
}

func collectPages(t *testing.T, p *Parser, xhtml string) []Page {
	t.Helper()
	var pages []Page
	err := p.ParseChapter(context.Background(), strings.NewReader(xhtml), func(pg Page) {
		pages = append(pages, pg)
	})
	if err != nil {
		t.Fatalf("ParseChapter() error = %v", err)
	}
	return pages
}

func lineText(l PageLine) []string {
	out := make([]string, len(l.Words))
	for i, w := range l.Words {
		out[i] = w.Text
	}
	return out
}

func TestParseChapter_SimpleParagraph(t *testing.T) {
	p := newTestParser(t, nil, Options{})
	pages := collectPages(t, p, `<html><body><p>Hello world</p></body></html>`)

	if len(pages) != 1 {
		t.Fatalf("got %d pages, want 1", len(pages))
	}
	if len(pages[0].Lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(pages[0].Lines))
	}
	got := lineText(pages[0].Lines[0])
	want := []string{"Hello", "world"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("line words = %v, want %v", got, want)
	}
}

func TestParseChapter_HeadIsSkipped(t *testing.T) {
	p := newTestParser(t, nil, Options{})
	pages := collectPages(t, p, `<html><head><title>Ignore me</title></head><body><p>Visible</p></body></html>`)

	if len(pages) != 1 {
		t.Fatalf("got %d pages, want 1", len(pages))
	}
	for _, l := range pages[0].Lines {
		for _, w := range l.Words {
			if w.Text == "Ignore" || w.Text == "me" {
				t.Errorf("head content leaked into output: %q", w.Text)
			}
		}
	}
}

func TestParseChapter_TextIndentRemResolvesAgainstLineHeight(t *testing.T) {
	cssCompiler := css.NewCompiler(zaptest.NewLogger(t))
	if err := cssCompiler.LoadStream(strings.NewReader("p { text-indent: 1rem; }")); err != nil {
		t.Fatalf("LoadStream() error = %v", err)
	}
	p := newTestParser(t, cssCompiler, Options{})
	pages := collectPages(t, p, `<html><body><p>Hello world</p></body></html>`)

	if len(pages) != 1 || len(pages[0].Lines) == 0 {
		t.Fatalf("got %d pages, want 1 with at least one line", len(pages))
	}
	// LineHeightPx defaults to 20 in newTestParser; 1rem resolves against
	// it the same way 1em does, so the first word should be indented by
	// exactly that many pixels.
	if len(pages[0].Lines[0].Words) == 0 {
		t.Fatal("first line has no words")
	}
	if got := pages[0].Lines[0].Words[0].X; got != 20 {
		t.Errorf("first word X = %d, want 20 (1rem of a 20px line height)", got)
	}
}

func TestParseChapter_BoldInlineGluesAcrossTagWithoutWhitespace(t *testing.T) {
	cssCompiler := css.NewCompiler(zaptest.NewLogger(t))
	if err := cssCompiler.LoadStream(strings.NewReader("b { font-weight: bold; }")); err != nil {
		t.Fatalf("LoadStream() error = %v", err)
	}
	p := newTestParser(t, cssCompiler, Options{})
	pages := collectPages(t, p, `<p>Hello <b>bold</b>world after</p>`)

	if len(pages) != 1 || len(pages[0].Lines) != 1 {
		t.Fatalf("unexpected page/line shape: %+v", pages)
	}
	words := pages[0].Lines[0].Words
	var boldIdx, afterIdx = -1, -1
	for i, w := range words {
		if w.Text == "bold" {
			boldIdx = i
		}
		if w.Text == "world" {
			afterIdx = i
		}
	}
	if boldIdx == -1 || afterIdx == -1 {
		t.Fatalf("expected words 'bold' and 'world' in %v", lineText(pages[0].Lines[0]))
	}
	if words[boldIdx].StyleByte&StyleBold == 0 {
		t.Errorf("word %q missing StyleBold", words[boldIdx].Text)
	}
	if !words[afterIdx].ContinuesPrevious {
		t.Errorf("word %q following </b> with no source whitespace should continue the previous word", words[afterIdx].Text)
	}
	if words[boldIdx].ContinuesPrevious {
		t.Errorf("word %q follows a real space in the source and should not continue", words[boldIdx].Text)
	}
}

func TestParseChapter_ImageBecomesAltTextPlaceholder(t *testing.T) {
	p := newTestParser(t, nil, Options{})
	pages := collectPages(t, p, `<p>Before</p><img src="cover.jpg" alt="A castle"/><p>After</p>`)

	var allWords []string
	for _, pg := range pages {
		for _, l := range pg.Lines {
			allWords = append(allWords, lineText(l)...)
		}
	}
	found := false
	for i, w := range allWords {
		if w == "A" && i+1 < len(allWords) && allWords[i+1] == "castle" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected alt text words in output, got %v", allWords)
	}
}

func TestParseChapter_TableIsOmitted(t *testing.T) {
	p := newTestParser(t, nil, Options{})
	pages := collectPages(t, p, `<p>Before</p><table><tr><td>Secret data</td></tr></table><p>After</p>`)

	for _, pg := range pages {
		for _, l := range pg.Lines {
			for _, w := range l.Words {
				if w.Text == "Secret" || w.Text == "data" {
					t.Errorf("table content leaked into output: %q", w.Text)
				}
			}
		}
	}
}

func TestParseChapter_PagebreakSubtreeSkipped(t *testing.T) {
	p := newTestParser(t, nil, Options{})
	pages := collectPages(t, p, `<p>Before</p><div role="doc-pagebreak"><p>Hidden</p></div><p>After</p>`)

	for _, pg := range pages {
		for _, l := range pg.Lines {
			for _, w := range l.Words {
				if w.Text == "Hidden" {
					t.Errorf("pagebreak subtree content leaked into output: %q", w.Text)
				}
			}
		}
	}
}

func TestParseChapter_ListItemGetsBullet(t *testing.T) {
	p := newTestParser(t, nil, Options{})
	pages := collectPages(t, p, `<ul><li>First item</li></ul>`)

	if len(pages) == 0 || len(pages[0].Lines) == 0 {
		t.Fatalf("expected at least one line, got %+v", pages)
	}
	words := lineText(pages[0].Lines[0])
	if len(words) == 0 || words[0] != "•" {
		t.Errorf("line words = %v, want bullet first", words)
	}
}

func TestParseChapter_PaginatesAcrossViewportHeight(t *testing.T) {
	p := newTestParser(t, nil, Options{ViewportHeightPx: 50, LineHeightPx: 20})
	var body strings.Builder
	for i := 0; i < 10; i++ {
		body.WriteString("<p>Line</p>")
	}
	pages := collectPages(t, p, body.String())

	if len(pages) < 2 {
		t.Fatalf("got %d pages, want at least 2 for a short viewport", len(pages))
	}
}
