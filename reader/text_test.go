package reader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
)

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

func writeTempText(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "book.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestOpenText_BuildsAndPaginates(t *testing.T) {
	// 10 words of 5 runes each ("word0".."word9"), runeWidth=10 -> each
	// word is 50px wide, space is 10px; viewport 120px fits two words per
	// line ("word0 word1" = 50+10+50=110 <= 120, a third would overflow).
	words := make([]string, 10)
	for i := range words {
		words[i] = "word" + string(rune('0'+i))
	}
	content := strings.Join(words, " ")
	path := writeTempText(t, content)
	cacheDir := filepath.Dir(path)

	oracle := fixedOracle{runeWidth: 10, spaceWidth: 10}
	opts := TextOptions{FontID: "body", ViewportWidthPx: 120, LineHeightPx: 20, LinesPerPage: 2}

	tr, err := OpenText(path, cacheDir, oracle, opts, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("OpenText: %v", err)
	}
	if tr.PageCount() == 0 {
		t.Fatal("PageCount() = 0")
	}

	var rebuilt strings.Builder
	for i := 0; i < tr.PageCount(); i++ {
		text, err := tr.PageText(i)
		if err != nil {
			t.Fatalf("PageText(%d): %v", i, err)
		}
		rebuilt.WriteString(text)
	}
	if rebuilt.String() != content {
		t.Errorf("reassembled pages = %q, want %q", rebuilt.String(), content)
	}
}

func TestOpenText_CachedOnSecondOpen(t *testing.T) {
	path := writeTempText(t, "one two three four five six seven eight")
	cacheDir := filepath.Dir(path)
	oracle := fixedOracle{runeWidth: 10, spaceWidth: 10}
	opts := TextOptions{FontID: "body", ViewportWidthPx: 100, LineHeightPx: 20, LinesPerPage: 1}

	first, err := OpenText(path, cacheDir, oracle, opts, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("OpenText (build): %v", err)
	}
	second, err := OpenText(path, cacheDir, oracle, opts, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("OpenText (cached): %v", err)
	}
	if first.PageCount() != second.PageCount() {
		t.Errorf("page counts differ between build and cached open: %d vs %d", first.PageCount(), second.PageCount())
	}
}

func TestOpenText_ParamChangeInvalidatesCache(t *testing.T) {
	path := writeTempText(t, "one two three four five six seven eight")
	cacheDir := filepath.Dir(path)
	oracle := fixedOracle{runeWidth: 10, spaceWidth: 10}

	narrow := TextOptions{FontID: "body", ViewportWidthPx: 60, LineHeightPx: 20, LinesPerPage: 1}
	wide := TextOptions{FontID: "body", ViewportWidthPx: 600, LineHeightPx: 20, LinesPerPage: 1}

	n, err := OpenText(path, cacheDir, oracle, narrow, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("OpenText(narrow): %v", err)
	}
	w, err := OpenText(path, cacheDir, oracle, wide, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("OpenText(wide): %v", err)
	}
	if n.PageCount() == w.PageCount() {
		t.Errorf("expected different page counts for narrow vs wide viewport, got %d for both", n.PageCount())
	}
}
