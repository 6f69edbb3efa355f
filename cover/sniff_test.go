package cover

import (
	"errors"
	"testing"

	"ereader/rerror"
)

// gif89a1x1 is a complete, valid 1x1 pixel GIF89a image — small enough to
// hand-encode and real enough that image/gif actually decodes it.
var gif89a1x1 = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, // "GIF89a"
	0x01, 0x00, 0x01, 0x00, // 1x1 logical screen
	0x80, 0x00, 0x00, // global color table flag, bg color, aspect
	0x00, 0x00, 0x00, // color 0: black
	0xff, 0xff, 0xff, // color 1: white
	0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, // graphic control extension
	0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, // image descriptor
	0x02, 0x02, 0x44, 0x01, 0x00, // image data
	0x3b, // trailer
}

func padded(prefix []byte) []byte {
	buf := make([]byte, 32)
	copy(buf, prefix)
	return buf
}

func TestSniffFormat_RecognizesMagicBytes(t *testing.T) {
	cases := []struct {
		name   string
		data   []byte
		expect string
	}{
		{"jpeg", padded([]byte{0xff, 0xd8, 0xff, 0xe0}), "jpg"},
		{"png", padded([]byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}), "png"},
		{"gif", gif89a1x1, "gif"},
		{"bmp", padded([]byte{0x42, 0x4d}), "bmp"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			format, err := sniffFormat(c.data)
			if err != nil {
				t.Fatalf("sniffFormat(%s): %v", c.name, err)
			}
			if format != c.expect {
				t.Errorf("sniffFormat(%s) = %q, want %q", c.name, format, c.expect)
			}
		})
	}
}

func TestSniffFormat_GarbageIsUnsupportedImage(t *testing.T) {
	_, err := sniffFormat([]byte("this is not image data at all, just plain text"))
	if err == nil {
		t.Fatal("expected error for garbage bytes")
	}
	if !errors.Is(err, rerror.Of(rerror.UnsupportedImage)) {
		t.Errorf("got %v, want UnsupportedImage", err)
	}
}

func TestDecode_ValidGIFDecodes(t *testing.T) {
	img, err := decode(gif89a1x1)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 1 || b.Dy() != 1 {
		t.Errorf("decoded bounds = %v, want 1x1", b)
	}
}

func TestDecode_SniffableButTruncatedIsCoverMissing(t *testing.T) {
	// A PNG signature with no actual chunk data sniffs fine but fails to
	// decode.
	_, err := decode(padded([]byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}))
	if err == nil {
		t.Fatal("expected decode error")
	}
	if !errors.Is(err, rerror.Of(rerror.CoverMissing)) {
		t.Errorf("got %v, want CoverMissing", err)
	}
}

const svgCoverFixture = `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 200">
  <rect width="100" height="200" fill="#ffffff"/>
</svg>`

func TestSniffFormat_RecognizesSVGPreamble(t *testing.T) {
	format, err := sniffFormat([]byte(svgCoverFixture))
	if err != nil {
		t.Fatalf("sniffFormat(svg): %v", err)
	}
	if format != "svg" {
		t.Errorf("sniffFormat(svg) = %q, want %q", format, "svg")
	}
}

func TestDecode_ValidSVGRasterizes(t *testing.T) {
	img, err := decode([]byte(svgCoverFixture))
	if err != nil {
		t.Fatalf("decode(svg): %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 100 || b.Dy() != 200 {
		t.Errorf("rasterized bounds = %v, want 100x200", b)
	}
}

func TestDecode_MalformedSVGIsCoverMissing(t *testing.T) {
	_, err := decode([]byte("<svg this is not well-formed xml"))
	if err == nil {
		t.Fatal("expected decode error for malformed SVG")
	}
	if !errors.Is(err, rerror.Of(rerror.CoverMissing)) {
		t.Errorf("got %v, want CoverMissing", err)
	}
}
