package pub

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"
)

const testContainerXML = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const testOPF = `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Sample</dc:title>
    <dc:creator>Author</dc:creator>
    <dc:language>en</dc:language>
  </metadata>
  <manifest>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
    <item id="cover-image" href="cover.jpg" media-type="image/jpeg" properties="cover-image"/>
    <item id="css1" href="style.css" media-type="text/css"/>
    <item id="ch1" href="chapter1.xhtml" media-type="application/xhtml+xml"/>
    <item id="ch2" href="chapter2.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine>
    <itemref idref="ch1"/>
    <itemref idref="ch2"/>
  </spine>
</package>`

const testNav = `<?xml version="1.0"?>
<html xmlns:epub="http://www.idpf.org/2007/ops"><body>
  <nav epub:type="toc"><ol>
    <li><a href="chapter1.xhtml">Chapter One</a></li>
    <li><a href="chapter2.xhtml">Chapter Two</a></li>
  </ol></nav>
</body></html>`

type fakeCoverExtractor struct {
	gotData     []byte
	gotCacheDir string
}

func (f *fakeCoverExtractor) ExtractCover(data []byte, cacheDir string) error {
	f.gotData = data
	f.gotCacheDir = cacheDir
	return nil
}

func writeTestEPUB(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create epub: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	files := map[string]string{
		"META-INF/container.xml": testContainerXML,
		"OEBPS/content.opf":      testOPF,
		"OEBPS/nav.xhtml":        testNav,
		"OEBPS/style.css":        "p { text-align: justify; }",
		"OEBPS/chapter1.xhtml":  "<html><body><p>Chapter one text.</p></body></html>",
		"OEBPS/chapter2.xhtml":  "<html><body><p>Chapter two text, somewhat longer.</p></body></html>",
		"OEBPS/cover.jpg":        "\xff\xd8\xff\xe0fakejpegbytes",
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

func TestBuild_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	epubPath := filepath.Join(dir, "sample.epub")
	writeTestEPUB(t, epubPath)

	cacheRoot := filepath.Join(dir, "cache")
	cover := &fakeCoverExtractor{}

	pub, err := Build(context.Background(), epubPath, cacheRoot, cover, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if pub.Meta.Title != "Sample" || pub.Meta.Author != "Author" || pub.Meta.Language != "en" {
		t.Errorf("meta = %+v", pub.Meta)
	}
	if len(pub.Spine) != 2 {
		t.Fatalf("len(Spine) = %d, want 2", len(pub.Spine))
	}
	if pub.Spine[0].CumulativeSize == 0 || pub.Spine[1].CumulativeSize <= pub.Spine[0].CumulativeSize {
		t.Errorf("cumulative sizes not strictly increasing: %+v", pub.Spine)
	}
	if len(pub.TOC) != 2 {
		t.Fatalf("len(TOC) = %d, want 2", len(pub.TOC))
	}
	if pub.Spine[0].TOCIndex != 0 || pub.Spine[1].TOCIndex != 1 {
		t.Errorf("spine TOC cross-link = %+v", pub.Spine)
	}

	bookPath := filepath.Join(cacheRoot, pub.CacheDirName, "book.bin")
	if _, err := os.Stat(bookPath); err != nil {
		t.Errorf("book.bin not written: %v", err)
	}
	stylePath := filepath.Join(cacheRoot, pub.CacheDirName, "style.cache")
	if _, err := os.Stat(stylePath); err != nil {
		t.Errorf("style.cache not written: %v", err)
	}

	if len(cover.gotData) == 0 {
		t.Error("cover extractor never received cover bytes")
	}
}

func TestBuild_MissingContainerIsNotAnEpub(t *testing.T) {
	dir := t.TempDir()
	badPath := filepath.Join(dir, "notanepub.epub")
	f, err := os.Create(badPath)
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	zw := zip.NewWriter(f)
	w, _ := zw.Create("hello.txt")
	_, _ = w.Write([]byte("not an epub"))
	_ = zw.Close()
	_ = f.Close()

	_, err = Build(context.Background(), badPath, filepath.Join(dir, "cache"), nil, zaptest.NewLogger(t))
	if err == nil {
		t.Fatal("expected an error building a non-EPUB zip")
	}
}
