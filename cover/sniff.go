// Package cover extracts an EPUB's embedded cover image and renders the
// display-ready cover and thumbnail bitmaps a session restores and a
// library view lists.
package cover

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"

	"ereader/rerror"
)

// svgSniffWindow is how much of the leading bytes looksLikeSVG inspects;
// EPUB cover SVGs always open with an XML declaration and/or <svg> within
// the first few hundred bytes.
const svgSniffWindow = 512

// looksLikeSVG reports whether data opens with an XML/SVG preamble.
// h2non/filetype has no magic-byte signature for SVG (it's markup, not a
// binary format), so it is sniffed separately before falling back to
// filetype.Match for the raster formats.
func looksLikeSVG(data []byte) bool {
	if len(data) > svgSniffWindow {
		data = data[:svgSniffWindow]
	}
	return bytes.Contains(data, []byte("<svg"))
}

// sniffFormat identifies data's real image format from magic bytes (or,
// for SVG, its markup preamble), independent of whatever extension or
// media-type the manifest claimed.
func sniffFormat(data []byte) (string, error) {
	if looksLikeSVG(data) {
		return "svg", nil
	}
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return "", rerror.New(rerror.UnsupportedImage, "cover.sniffFormat", "", fmt.Errorf("unrecognized image data"))
	}
	switch kind.Extension {
	case "jpg", "png", "gif", "bmp":
		return kind.Extension, nil
	default:
		return "", rerror.New(rerror.UnsupportedImage, "cover.sniffFormat", "", fmt.Errorf("unsupported image format %q", kind.Extension))
	}
}

// decode sniffs and decodes data into an image.Image, failing with
// UnsupportedImage for an unrecognized format or CoverMissing for bytes
// that sniff as an image but fail to actually decode (truncated/corrupt).
func decode(data []byte) (image.Image, error) {
	format, err := sniffFormat(data)
	if err != nil {
		return nil, err
	}
	if format == "svg" {
		img, err := rasterizeSVG(data)
		if err != nil {
			return nil, rerror.New(rerror.CoverMissing, "cover.decode", format, err)
		}
		return img, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, rerror.New(rerror.CoverMissing, "cover.decode", format, err)
	}
	return img, nil
}
