package pub

import (
	"strings"
	"testing"
)

func TestRootfilePath_FindsFullPath(t *testing.T) {
	xml := `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`
	got, err := rootfilePath(strings.NewReader(xml), "book.epub")
	if err != nil {
		t.Fatalf("rootfilePath() error = %v", err)
	}
	if got != "OEBPS/content.opf" {
		t.Errorf("rootfilePath() = %q, want %q", got, "OEBPS/content.opf")
	}
}

func TestRootfilePath_MissingRootfilesIsNotAnEpub(t *testing.T) {
	xml := `<container version="1.0"></container>`
	if _, err := rootfilePath(strings.NewReader(xml), "book.epub"); err == nil {
		t.Fatal("expected an error for a container with no <rootfiles>")
	}
}

func TestRootfilePath_GarbageIsNotAnEpub(t *testing.T) {
	if _, err := rootfilePath(strings.NewReader("not xml at all"), "book.epub"); err == nil {
		t.Fatal("expected an error for unparseable container.xml")
	}
}
