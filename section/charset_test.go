package section

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestTranscodeToUTF8_PlainASCIIPassesThrough(t *testing.T) {
	in := `<html><body><p>Hello world</p></body></html>`
	r, err := transcodeToUTF8(strings.NewReader(in), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("transcodeToUTF8() error = %v", err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(got) != in {
		t.Errorf("got %q, want %q", got, in)
	}
}

func TestTranscodeToUTF8_MisdeclaredButActuallyUTF8IsLeftAlone(t *testing.T) {
	// Declares windows-1251 but the body is valid, genuinely non-ASCII
	// UTF-8 — the known FB2-tooling mismatch this sniff exists for.
	in := `<?xml version="1.0" encoding="windows-1251"?><p>Привет мир</p>`
	r, err := transcodeToUTF8(strings.NewReader(in), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("transcodeToUTF8() error = %v", err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(got) != in {
		t.Errorf("valid UTF-8 body should pass through unmangled, got %q", got)
	}
}

func TestTrimIncompleteUTF8_DropsSplitTrailingRune(t *testing.T) {
	full := []byte("caf\xc3\xa9") // "café"
	split := full[:len(full)-1]   // chops the continuation byte off 'é'

	trimmed := trimIncompleteUTF8(split)
	if !bytes.Equal(trimmed, []byte("caf")) {
		t.Errorf("trimIncompleteUTF8(%q) = %q, want %q", split, trimmed, "caf")
	}
}

func TestContainsNonASCII(t *testing.T) {
	if containsNonASCII([]byte("plain ascii")) {
		t.Error("containsNonASCII() = true for pure ASCII")
	}
	if !containsNonASCII([]byte("caf\xc3\xa9")) {
		t.Error("containsNonASCII() = false for UTF-8 with a multi-byte rune")
	}
}
