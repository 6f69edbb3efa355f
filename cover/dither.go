package cover

import (
	"image"
	"image/color"
	"image/draw"

	"ereader/common"
)

// palette1Bit and palette2Bit are the display's native grayscale levels,
// in increasing-darkness order. draw.FloydSteinberg dithers the source
// image onto whichever one applies, spreading quantization error the way
// a real e-ink or LCD panel's limited depth demands.
var (
	palette1Bit = color.Palette{color.Gray{Y: 255}, color.Gray{Y: 0}}
	palette2Bit = color.Palette{
		color.Gray{Y: 255}, // 0 = white
		color.Gray{Y: 170}, // 1 = dark-gray
		color.Gray{Y: 85},  // 2 = light-gray
		color.Gray{Y: 0},   // 3 = black
	}
)

// ditherToPlanes dithers img to the target plane format and packs the
// result per §4.9's bit layout, returning one slice for 1-bit planes or
// two (P1, P2) for 2-bit planes.
func ditherToPlanes(img image.Image, format common.PlaneFormat) (w, h int, planes [][]byte) {
	b := img.Bounds()
	w, h = b.Dx(), b.Dy()

	var pal color.Palette
	if format == common.Plane2Bit {
		pal = palette2Bit
	} else {
		pal = palette1Bit
	}

	dst := image.NewPaletted(image.Rect(0, 0, w, h), pal)
	draw.FloydSteinberg.Draw(dst, dst.Bounds(), img, b.Min)

	if format == common.Plane2Bit {
		p1, p2 := pack2BitColumnMajor(dst, w, h)
		return w, h, [][]byte{p1, p2}
	}
	return w, h, [][]byte{pack1BitRowMajor(dst, w, h)}
}

// pack1BitRowMajor packs a 2-color paletted image row-major, bit 7 = the
// leftmost pixel of each byte, 0 = black (palette index 1).
func pack1BitRowMajor(dst *image.Paletted, w, h int) []byte {
	stride := (w + 7) / 8
	out := make([]byte, stride*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := dst.ColorIndexAt(x, y)
			if idx == 0 { // white: bit set
				out[y*stride+x/8] |= 1 << (7 - uint(x%8))
			}
		}
	}
	return out
}

// pack2BitColumnMajor packs a 4-level paletted image into two column-major
// bit planes P1 (high bit) and P2 (low bit), per §4.9: value =
// (bit1<<1)|bit2, 0=white .. 3=black, palette index already in that order.
// Within a plane, bytes are packed column by column, bit 7 = topmost pixel
// of each 8-row group — the same top-to-bottom bit order §4.9 establishes
// for the 1-bit row-major layout, just transposed to columns.
func pack2BitColumnMajor(dst *image.Paletted, w, h int) (p1, p2 []byte) {
	stride := (h + 7) / 8
	p1 = make([]byte, stride*w)
	p2 = make([]byte, stride*w)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			idx := int(dst.ColorIndexAt(x, y))
			bit1 := byte((idx >> 1) & 1)
			bit2 := byte(idx & 1)
			byteOff := x*stride + y/8
			shift := 7 - uint(y%8)
			if bit1 != 0 {
				p1[byteOff] |= 1 << shift
			}
			if bit2 != 0 {
				p2[byteOff] |= 1 << shift
			}
		}
	}
	return p1, p2
}
