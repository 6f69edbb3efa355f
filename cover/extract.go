package cover

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"ereader/common"
	"ereader/config"
	"ereader/rerror"
)

const (
	bitmapSignature = "RCVR"
	bitmapVersion   = 1
)

// Extractor implements pub.CoverExtractor: decode, resize, grayscale, and
// dither an EPUB's cover image into the display's native bitmap format,
// writing cover.bmp (screen-sized) and thumb_<h>.bmp (library-listing
// size) cache artifacts. A decode failure is returned to the caller
// (pub.Build logs it and carries on); a failure rendering or writing
// either bitmap is logged and swallowed. Either way, per §4.10 a missing
// or undecodable cover is never fatal to publication open.
type Extractor struct {
	screenWidth, screenHeight int
	thumbnailHeight           int
	format                    common.PlaneFormat
	log                       *zap.Logger
}

// New builds an Extractor from the reader's viewport and cover
// configuration.
func New(viewport config.ViewportConfig, cover config.CoverConfig, log *zap.Logger) *Extractor {
	w, h := viewport.EffectiveViewport()
	return &Extractor{
		screenWidth:     w,
		screenHeight:    h,
		thumbnailHeight: cover.ThumbnailHeight,
		format:          cover.PlaneFormat,
		log:             log,
	}
}

// ExtractCover satisfies pub.CoverExtractor.
func (e *Extractor) ExtractCover(data []byte, cacheDir string) error {
	img, err := decode(data)
	if err != nil {
		return err
	}

	// Most SVG and scanned-photo covers arrive in color and genuinely need
	// imaging.Grayscale; a cover already rendered in grayscale (common for
	// e-ink-targeted source EPUBs) skips that pass entirely.
	gray := img
	if !isGrayscale(img) {
		gray = imaging.Grayscale(img)
	}

	fullPath := filepath.Join(cacheDir, "cover.bmp")
	if err := e.renderAndWrite(gray, e.screenHeight, fullPath); err != nil {
		e.log.Warn("failed to render cover bitmap", zap.Error(err))
	}

	if e.thumbnailHeight > 0 {
		thumbPath := filepath.Join(cacheDir, fmt.Sprintf("thumb_%d.bmp", e.thumbnailHeight))
		if err := e.renderAndWrite(gray, e.thumbnailHeight, thumbPath); err != nil {
			e.log.Warn("failed to render cover thumbnail", zap.Error(err))
		}
	}
	return nil
}

// renderAndWrite resizes src to targetHeight (preserving aspect ratio,
// width 0 lets imaging compute it), dithers it to the configured plane
// format, and writes the resulting bitmap artifact to path.
func (e *Extractor) renderAndWrite(src image.Image, targetHeight int, path string) error {
	resized := imaging.Resize(src, 0, targetHeight, imaging.Lanczos)
	w, h, planes := ditherToPlanes(resized, e.format)
	return writeBitmap(path, e.format, w, h, planes)
}

func writeBitmap(path string, format common.PlaneFormat, w, h int, planes [][]byte) error {
	var buf bytes.Buffer
	buf.WriteString(bitmapSignature)
	if err := binary.Write(&buf, binary.LittleEndian, uint32(bitmapVersion)); err != nil {
		return err
	}
	if err := binary.Write(&buf, binary.LittleEndian, uint8(format)); err != nil {
		return err
	}
	if err := binary.Write(&buf, binary.LittleEndian, uint32(w)); err != nil {
		return err
	}
	if err := binary.Write(&buf, binary.LittleEndian, uint32(h)); err != nil {
		return err
	}
	if err := binary.Write(&buf, binary.LittleEndian, uint8(len(planes))); err != nil {
		return err
	}
	for _, p := range planes {
		if err := binary.Write(&buf, binary.LittleEndian, uint32(len(p))); err != nil {
			return err
		}
		buf.Write(p)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return rerror.New(rerror.CacheBuildFailed, "cover.writeBitmap", path, err)
	}
	return nil
}

// isGrayscale reports whether every pixel of img has R==G==B.
func isGrayscale(img image.Image) bool {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return true
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if c.R != c.G || c.G != c.B {
				return false
			}
		}
	}
	return true
}
