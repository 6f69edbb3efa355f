package reader

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"ereader/common"
	"ereader/rerror"
)

// Pre-rendered container framing: a fixed header (signature, version,
// pixel format, width, height, page count) followed by each page's
// plane bytes back to back, with a trailing page-offset LUT — the same
// header-then-pages-then-trailer-LUT shape section.CacheWriter/
// CacheReader use for chapter pages, generalized to whole pre-rendered
// page images instead of laid-out text lines.
const (
	prerenderedSignature = "RPGC"
	prerenderedVersion   = 1
)

// PrerenderedReader gives random access to a container whose pages are
// already bitmap planes (§4.9): no layout, no CSS, no hyphenation, just
// page count/width/height and a page loader.
type PrerenderedReader struct {
	path      string
	format    common.PlaneFormat
	width     int
	height    int
	pageCount int
	lutOffset int64
}

// OpenPrerendered validates the container header at path and returns a
// reader over it.
func OpenPrerendered(path string) (*PrerenderedReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, rerror.New(rerror.CacheBuildFailed, "reader.OpenPrerendered", path, err)
	}
	defer f.Close()

	sig := make([]byte, len(prerenderedSignature))
	if _, err := io.ReadFull(f, sig); err != nil || string(sig) != prerenderedSignature {
		return nil, rerror.New(rerror.CorruptCache, "reader.OpenPrerendered", path, fmt.Errorf("bad signature"))
	}
	var version uint16
	if err := binary.Read(f, binary.LittleEndian, &version); err != nil || version != prerenderedVersion {
		return nil, rerror.New(rerror.CorruptCache, "reader.OpenPrerendered", path, fmt.Errorf("version mismatch"))
	}
	var format uint8
	if err := binary.Read(f, binary.LittleEndian, &format); err != nil {
		return nil, rerror.New(rerror.CorruptCache, "reader.OpenPrerendered", path, err)
	}
	var width, height, pageCount, lutOffset uint32
	for _, v := range []*uint32{&width, &height, &pageCount, &lutOffset} {
		if err := binary.Read(f, binary.LittleEndian, v); err != nil {
			return nil, rerror.New(rerror.CorruptCache, "reader.OpenPrerendered", path, err)
		}
	}

	return &PrerenderedReader{
		path:      path,
		format:    common.PlaneFormat(format),
		width:     int(width),
		height:    int(height),
		pageCount: int(pageCount),
		lutOffset: int64(lutOffset),
	}, nil
}

func (r *PrerenderedReader) PageCount() int { return r.pageCount }
func (r *PrerenderedReader) Width() int     { return r.width }
func (r *PrerenderedReader) Height() int    { return r.height }

func (r *PrerenderedReader) Format() common.PlaneFormat { return r.format }

// LoadPage reads page idx's plane bytes: one slice for Plane1Bit, two
// (P1, P2) for Plane2Bit, per §4.9's two pixel formats.
func (r *PrerenderedReader) LoadPage(idx int) ([][]byte, error) {
	if idx < 0 || idx >= r.pageCount {
		return nil, rerror.New(rerror.PageOutOfRange, "reader.PrerenderedReader.LoadPage", r.path, fmt.Errorf("index %d of %d", idx, r.pageCount))
	}

	f, err := os.Open(r.path)
	if err != nil {
		return nil, rerror.New(rerror.CacheBuildFailed, "reader.PrerenderedReader.LoadPage", r.path, err)
	}
	defer f.Close()

	if _, err := f.Seek(r.lutOffset+4*int64(idx), io.SeekStart); err != nil {
		return nil, err
	}
	var pageStart uint32
	if err := binary.Read(f, binary.LittleEndian, &pageStart); err != nil {
		return nil, rerror.New(rerror.CorruptCache, "reader.PrerenderedReader.LoadPage", r.path, err)
	}
	if _, err := f.Seek(int64(pageStart), io.SeekStart); err != nil {
		return nil, err
	}

	planeCount := 1
	if r.format == common.Plane2Bit {
		planeCount = 2
	}
	planes := make([][]byte, planeCount)
	for i := range planes {
		var n uint32
		if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
			return nil, rerror.New(rerror.CorruptCache, "reader.PrerenderedReader.LoadPage", r.path, err)
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(f, buf); err != nil {
			return nil, rerror.New(rerror.CorruptCache, "reader.PrerenderedReader.LoadPage", r.path, err)
		}
		planes[i] = buf
	}
	return planes, nil
}

// PrerenderedWriter builds a pre-rendered container, used by tooling
// that pre-paginates a book into bitmap pages ahead of time (outside the
// reader runtime's own HTML/text pipelines).
type PrerenderedWriter struct {
	f             *os.File
	format        common.PlaneFormat
	width, height int
	headerPatchAt int64
	pageOffsets   []uint32
}

// CreatePrerendered truncates (or creates) the file at path and writes
// the header, with page-count and LUT-offset left as placeholders.
func CreatePrerendered(path string, format common.PlaneFormat, width, height int) (*PrerenderedWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, rerror.New(rerror.CacheBuildFailed, "reader.CreatePrerendered", path, err)
	}
	w := &PrerenderedWriter{f: f, format: format, width: width, height: height}
	if err := w.writeHeader(); err != nil {
		f.Close()
		os.Remove(path)
		return nil, rerror.New(rerror.CacheBuildFailed, "reader.CreatePrerendered", path, err)
	}
	return w, nil
}

func (w *PrerenderedWriter) writeHeader() error {
	if _, err := io.WriteString(w.f, prerenderedSignature); err != nil {
		return err
	}
	if err := binary.Write(w.f, binary.LittleEndian, uint16(prerenderedVersion)); err != nil {
		return err
	}
	if err := binary.Write(w.f, binary.LittleEndian, uint8(w.format)); err != nil {
		return err
	}
	if err := binary.Write(w.f, binary.LittleEndian, uint32(w.width)); err != nil {
		return err
	}
	if err := binary.Write(w.f, binary.LittleEndian, uint32(w.height)); err != nil {
		return err
	}

	var err error
	w.headerPatchAt, err = w.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	// placeholders: page-count, lut-offset
	if err := binary.Write(w.f, binary.LittleEndian, uint32(0)); err != nil {
		return err
	}
	return binary.Write(w.f, binary.LittleEndian, uint32(0))
}

// WritePage appends one page's plane bytes (one for Plane1Bit, two for
// Plane2Bit) to the container, recording its start offset.
func (w *PrerenderedWriter) WritePage(planes [][]byte) error {
	offset, err := w.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	w.pageOffsets = append(w.pageOffsets, uint32(offset))
	for _, p := range planes {
		if err := binary.Write(w.f, binary.LittleEndian, uint32(len(p))); err != nil {
			return err
		}
		if _, err := w.f.Write(p); err != nil {
			return err
		}
	}
	return nil
}

// Finish writes the trailing LUT and patches the header placeholders.
func (w *PrerenderedWriter) Finish() error {
	lutOffset, err := w.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	for _, off := range w.pageOffsets {
		if err := binary.Write(w.f, binary.LittleEndian, off); err != nil {
			return err
		}
	}

	if _, err := w.f.Seek(w.headerPatchAt, io.SeekStart); err != nil {
		return err
	}
	if err := binary.Write(w.f, binary.LittleEndian, uint32(len(w.pageOffsets))); err != nil {
		return err
	}
	if err := binary.Write(w.f, binary.LittleEndian, uint32(lutOffset)); err != nil {
		return err
	}
	return w.f.Close()
}
