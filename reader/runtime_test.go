package reader

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"ereader/pub"
)

const runtimeTestContainerXML = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const runtimeTestOPF = `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Sample</dc:title>
    <dc:creator>Author</dc:creator>
    <dc:language>en</dc:language>
  </metadata>
  <manifest>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
    <item id="css1" href="style.css" media-type="text/css"/>
    <item id="ch1" href="chapter1.xhtml" media-type="application/xhtml+xml"/>
    <item id="ch2" href="chapter2.xhtml" media-type="application/xhtml+xml"/>
    <item id="ch3" href="chapter3.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine>
    <itemref idref="ch1"/>
    <itemref idref="ch2"/>
    <itemref idref="ch3"/>
  </spine>
</package>`

const runtimeTestNav = `<?xml version="1.0"?>
<html xmlns:epub="http://www.idpf.org/2007/ops"><body>
  <nav epub:type="toc"><ol>
    <li><a href="chapter1.xhtml">Chapter One</a></li>
    <li><a href="chapter2.xhtml">Chapter Two</a></li>
    <li><a href="chapter3.xhtml">Chapter Three</a></li>
  </ol></nav>
</body></html>`

type noopCoverExtractor struct{}

func (noopCoverExtractor) ExtractCover(data []byte, cacheDir string) error { return nil }

func writeRuntimeTestEPUB(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create epub: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	files := map[string]string{
		"META-INF/container.xml": runtimeTestContainerXML,
		"OEBPS/content.opf":      runtimeTestOPF,
		"OEBPS/nav.xhtml":        runtimeTestNav,
		"OEBPS/style.css":        "p { text-align: justify; }",
		"OEBPS/chapter1.xhtml":   "<html><body><p>Chapter one text, just long enough to wrap across more than one line in a narrow viewport.</p></body></html>",
		"OEBPS/chapter2.xhtml":   "<html><body><p>Chapter two text, somewhat longer than chapter one so it spans a couple of pages too.</p></body></html>",
		"OEBPS/chapter3.xhtml":   "<html><body><p>Chapter three, the last one in the book.</p></body></html>",
	}
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
}

func buildRuntimeTestPublication(t *testing.T) (*pub.Publication, string) {
	t.Helper()
	dir := t.TempDir()
	epubPath := filepath.Join(dir, "sample.epub")
	writeRuntimeTestEPUB(t, epubPath)

	cacheRoot := filepath.Join(dir, "cache")
	p, err := pub.Build(context.Background(), epubPath, cacheRoot, noopCoverExtractor{}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("pub.Build: %v", err)
	}
	return p, filepath.Join(cacheRoot, p.CacheDirName)
}

func testRuntimeOptions() Options {
	return Options{
		FontID:           "body",
		ViewportWidthPx:  200,
		ViewportHeightPx: 300,
		LineHeightPx:     20,
		Align:            "left",
		RefreshFrequency: 2,
	}
}

func TestRuntimeOpen_StartsAtFirstSpineWithoutSavedProgress(t *testing.T) {
	p, cacheDir := buildRuntimeTestPublication(t)
	oracle := fixedOracle{runeWidth: 8, spaceWidth: 6}

	rt, err := Open(context.Background(), p, cacheDir, oracle, testRuntimeOptions(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if rt.Spine() != 0 {
		t.Errorf("Spine() = %d, want 0", rt.Spine())
	}
	if rt.PageIndex() != 0 {
		t.Errorf("PageIndex() = %d, want 0", rt.PageIndex())
	}
	if rt.PageCount() == 0 {
		t.Error("PageCount() = 0")
	}
	if _, err := rt.CurrentPage(); err != nil {
		t.Errorf("CurrentPage: %v", err)
	}
}

func TestRuntimeNextPrevPage_CrossSectionBoundaries(t *testing.T) {
	p, cacheDir := buildRuntimeTestPublication(t)
	oracle := fixedOracle{runeWidth: 8, spaceWidth: 6}

	rt, err := Open(context.Background(), p, cacheDir, oracle, testRuntimeOptions(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	for rt.Spine() == 0 {
		if _, err := rt.NextPage(context.Background()); err != nil {
			t.Fatalf("NextPage: %v", err)
		}
	}
	if rt.Spine() != 1 {
		t.Fatalf("Spine() = %d, want 1 after crossing section boundary", rt.Spine())
	}
	if rt.PageIndex() != 0 {
		t.Errorf("PageIndex() = %d, want 0 on the new section's first page", rt.PageIndex())
	}

	if _, err := rt.PrevPage(context.Background()); err != nil {
		t.Fatalf("PrevPage: %v", err)
	}
	if rt.Spine() != 0 {
		t.Fatalf("Spine() = %d, want 0 after crossing back", rt.Spine())
	}
}

func TestRuntimePrevPage_AtFirstPageErrors(t *testing.T) {
	p, cacheDir := buildRuntimeTestPublication(t)
	oracle := fixedOracle{runeWidth: 8, spaceWidth: 6}

	rt, err := Open(context.Background(), p, cacheDir, oracle, testRuntimeOptions(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := rt.PrevPage(context.Background()); err == nil {
		t.Fatal("expected error retreating before the first page")
	}
}

func TestRuntimeGoToSpine_ResetsPageToZero(t *testing.T) {
	p, cacheDir := buildRuntimeTestPublication(t)
	oracle := fixedOracle{runeWidth: 8, spaceWidth: 6}

	rt, err := Open(context.Background(), p, cacheDir, oracle, testRuntimeOptions(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := rt.GoToSpine(context.Background(), 2); err != nil {
		t.Fatalf("GoToSpine: %v", err)
	}
	if rt.Spine() != 2 || rt.PageIndex() != 0 {
		t.Errorf("Spine()=%d PageIndex()=%d, want 2,0", rt.Spine(), rt.PageIndex())
	}
}

func TestRuntimeGoToPercent_MonotonicWithTarget(t *testing.T) {
	p, cacheDir := buildRuntimeTestPublication(t)
	oracle := fixedOracle{runeWidth: 8, spaceWidth: 6}

	rt, err := Open(context.Background(), p, cacheDir, oracle, testRuntimeOptions(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := rt.GoToPercent(context.Background(), 0); err != nil {
		t.Fatalf("GoToPercent(0): %v", err)
	}
	lowSpine := rt.Spine()

	if err := rt.GoToPercent(context.Background(), 99); err != nil {
		t.Fatalf("GoToPercent(99): %v", err)
	}
	highSpine := rt.Spine()

	if highSpine < lowSpine {
		t.Errorf("GoToPercent(99) spine %d < GoToPercent(0) spine %d", highSpine, lowSpine)
	}
	if highSpine != len(p.Spine)-1 {
		t.Errorf("GoToPercent(99) spine = %d, want last spine index %d", highSpine, len(p.Spine)-1)
	}
}

func TestRuntimeGoToPercent_PositionsProportionallyWithinSection(t *testing.T) {
	p, cacheDir := buildRuntimeTestPublication(t)
	oracle := fixedOracle{runeWidth: 8, spaceWidth: 6}

	// A short viewport height forces each chapter to paginate across
	// several pages, so landing "mid-section" is distinguishable from
	// always landing on page 0.
	opts := testRuntimeOptions()
	opts.ViewportHeightPx = 40

	rt, err := Open(context.Background(), p, cacheDir, oracle, opts, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := rt.GoToSpine(context.Background(), 1); err != nil {
		t.Fatalf("GoToSpine(1): %v", err)
	}
	pageCount := rt.PageCount()
	if pageCount < 2 {
		t.Fatalf("test fixture needs spine 1 to paginate to more than 1 page, got %d", pageCount)
	}

	sectionStart := float64(p.Spine[0].CumulativeSize)
	sectionEnd := float64(p.Spine[1].CumulativeSize)
	mid := sectionStart + 0.5*(sectionEnd-sectionStart)
	percent := 100 * mid / float64(p.TotalSize())

	if err := rt.GoToPercent(context.Background(), percent); err != nil {
		t.Fatalf("GoToPercent(%v): %v", percent, err)
	}
	if rt.Spine() != 1 {
		t.Fatalf("GoToPercent(%v) landed on spine %d, want 1", percent, rt.Spine())
	}
	if rt.PageIndex() == 0 {
		t.Errorf("GoToPercent(%v) landed on page 0 of %d, want a proportional mid-section page", percent, pageCount)
	}
	if rt.PageIndex() >= pageCount {
		t.Errorf("GoToPercent(%v) landed on page %d, out of range for %d pages", percent, rt.PageIndex(), pageCount)
	}
}

func TestRuntimeProgressFraction_BoundsAndOrder(t *testing.T) {
	p, cacheDir := buildRuntimeTestPublication(t)
	oracle := fixedOracle{runeWidth: 8, spaceWidth: 6}

	rt, err := Open(context.Background(), p, cacheDir, oracle, testRuntimeOptions(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	start := rt.ProgressFraction(0)
	end := rt.ProgressFraction(1)
	if start < 0 || end > 1 {
		t.Errorf("fractions out of [0,1] range: start=%v end=%v", start, end)
	}
	if end < start {
		t.Errorf("end fraction %v < start fraction %v", end, start)
	}
}

func TestRuntimeSaveProgress_ReopenResumesPosition(t *testing.T) {
	p, cacheDir := buildRuntimeTestPublication(t)
	oracle := fixedOracle{runeWidth: 8, spaceWidth: 6}
	opts := testRuntimeOptions()

	rt, err := Open(context.Background(), p, cacheDir, oracle, opts, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := rt.GoToSpine(context.Background(), 1); err != nil {
		t.Fatalf("GoToSpine: %v", err)
	}
	if err := rt.SaveProgress(); err != nil {
		t.Fatalf("SaveProgress: %v", err)
	}

	reopened, err := Open(context.Background(), p, cacheDir, oracle, opts, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Open (reopen): %v", err)
	}
	if reopened.Spine() != 1 {
		t.Errorf("reopened Spine() = %d, want 1", reopened.Spine())
	}
}

func TestRuntimeRefreshModeForRender_FullEveryNthPage(t *testing.T) {
	p, cacheDir := buildRuntimeTestPublication(t)
	oracle := fixedOracle{runeWidth: 8, spaceWidth: 6}
	opts := testRuntimeOptions()
	opts.RefreshFrequency = 3
	// two lines per page, so the fixture has enough pages for three turns
	opts.ViewportHeightPx = 40

	rt, err := Open(context.Background(), p, cacheDir, oracle, opts, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	var modes []string
	for i := 0; i < 3; i++ {
		mode, err := rt.NextPage(context.Background())
		if err != nil {
			t.Fatalf("NextPage(%d): %v", i, err)
		}
		modes = append(modes, mode.String())
	}
	sawFull := false
	for _, m := range modes {
		if m == "full" {
			sawFull = true
		}
	}
	if !sawFull {
		t.Errorf("expected a full refresh among the first three pages, got %v", modes)
	}
}
