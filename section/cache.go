package section

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"ereader/layout"
	"ereader/rerror"
)

const (
	cacheSignature = "RSEC"
	cacheVersion   = 13

	// maxElementsPerPage guards against a corrupt or truncated cache file
	// being read as a page with an implausible element count.
	maxElementsPerPage = 10000

	elementKindLine  = uint8(1)
	elementKindImage = uint8(2)
)

// CacheKey is the subset of layout configuration a section cache was
// built against. OpenCache rejects a cache file whose stored key doesn't
// match the caller's current configuration as stale, per §4.6: a cache
// keyed to one font/viewport/hyphenation combination must never be read
// back under another.
type CacheKey struct {
	FontID                string
	ViewportWidthPx       int
	ViewportHeightPx      int
	LineHeightPx          int
	LineCompression       float64
	Align                 string
	ExtraParagraphSpacing bool
	HyphenationEnabled    bool
}

func (k CacheKey) equal(o CacheKey) bool {
	return k == o
}

// CacheWriter serializes a chapter's pages to a single file as they are
// produced, with a page-count/LUT-offset header that starts as a
// placeholder and is overwritten once every page has been written.
type CacheWriter struct {
	f             *os.File
	key           CacheKey
	headerPatchAt int64
	pageOffsets   []uint32
}

// CreateCache truncates (or creates) the file at path and writes the
// header, with page-count and LUT-offset left as placeholders.
func CreateCache(path string, key CacheKey) (*CacheWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create section cache: %w", err)
	}

	w := &CacheWriter{f: f, key: key}
	if err := w.writeHeader(); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return w, nil
}

func (w *CacheWriter) writeHeader() error {
	if _, err := io.WriteString(w.f, cacheSignature); err != nil {
		return err
	}
	if err := binary.Write(w.f, binary.LittleEndian, uint16(cacheVersion)); err != nil {
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
	if err := binary.Write(w.f, binary.LittleEndian, uint32(0)); err != nil {
		return err
	}

	return writeKey(w.f, w.key)
}

// WritePage appends one page to the cache, recording its start offset for
// the trailing lookup table.
func (w *CacheWriter) WritePage(p Page) error {
	offset, err := w.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	w.pageOffsets = append(w.pageOffsets, uint32(offset))
	return writePage(w.f, p)
}

// Finish writes the lookup table and patches the header's page-count and
// LUT-offset placeholders, then closes the file.
func (w *CacheWriter) Finish() error {
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

// Abort closes and removes the in-progress cache file, for when chapter
// parsing fails partway through.
func (w *CacheWriter) Abort(path string) {
	w.f.Close()
	os.Remove(path)
}

// CacheReader gives random access to a section cache written by
// CacheWriter. Per the decision to keep the write and read paths on
// separate handles (§9), OpenCache opens a handle only long enough to
// validate the header and read the page count, then closes it; every
// Page call opens its own fresh read-only handle.
type CacheReader struct {
	path      string
	pageCount uint32
	lutOffset uint32
}

// OpenCache validates the cache file at path against want and returns a
// CacheReader, or a *rerror.Error wrapping rerror.CacheStale /
// rerror.CorruptCache if the file doesn't match or can't be parsed — both
// of which the caller treats as a cache miss and rebuilds from source.
func OpenCache(path string, want CacheKey) (*CacheReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open section cache: %w", err)
	}
	defer f.Close()

	sig := make([]byte, len(cacheSignature))
	if _, err := io.ReadFull(f, sig); err != nil {
		return nil, rerror.New(rerror.CacheStale, "section.OpenCache", path, err)
	}
	if string(sig) != cacheSignature {
		return nil, rerror.New(rerror.CacheStale, "section.OpenCache", path, fmt.Errorf("bad signature %q", sig))
	}

	var version uint16
	if err := binary.Read(f, binary.LittleEndian, &version); err != nil {
		return nil, rerror.New(rerror.CacheStale, "section.OpenCache", path, err)
	}
	if version != cacheVersion {
		return nil, rerror.New(rerror.CacheStale, "section.OpenCache", path, fmt.Errorf("version %d", version))
	}

	var pageCount, lutOffset uint32
	if err := binary.Read(f, binary.LittleEndian, &pageCount); err != nil {
		return nil, rerror.New(rerror.CorruptCache, "section.OpenCache", path, err)
	}
	if err := binary.Read(f, binary.LittleEndian, &lutOffset); err != nil {
		return nil, rerror.New(rerror.CorruptCache, "section.OpenCache", path, err)
	}

	key, err := readKey(f)
	if err != nil {
		return nil, rerror.New(rerror.CorruptCache, "section.OpenCache", path, err)
	}
	if !key.equal(want) {
		return nil, rerror.New(rerror.CacheStale, "section.OpenCache", path, fmt.Errorf("key mismatch"))
	}

	return &CacheReader{path: path, pageCount: pageCount, lutOffset: lutOffset}, nil
}

// PageCount reports how many pages the cache holds.
func (r *CacheReader) PageCount() int {
	return int(r.pageCount)
}

// Page deserializes and returns the page at idx, opening a fresh
// read-only handle for the lookup.
func (r *CacheReader) Page(idx int) (Page, error) {
	if idx < 0 || idx >= int(r.pageCount) {
		return Page{}, rerror.New(rerror.PageOutOfRange, "section.CacheReader.Page", r.path, fmt.Errorf("index %d of %d", idx, r.pageCount))
	}

	f, err := os.Open(r.path)
	if err != nil {
		return Page{}, fmt.Errorf("open section cache: %w", err)
	}
	defer f.Close()

	if _, err := f.Seek(int64(r.lutOffset)+4*int64(idx), io.SeekStart); err != nil {
		return Page{}, err
	}
	var pageStart uint32
	if err := binary.Read(f, binary.LittleEndian, &pageStart); err != nil {
		return Page{}, rerror.New(rerror.CorruptCache, "section.CacheReader.Page", r.path, err)
	}
	if _, err := f.Seek(int64(pageStart), io.SeekStart); err != nil {
		return Page{}, err
	}

	p, err := readPage(f)
	if err != nil {
		return Page{}, rerror.New(rerror.CorruptCache, "section.CacheReader.Page", r.path, err)
	}
	return p, nil
}

func writeKey(w io.Writer, k CacheKey) error {
	if err := writeString16(w, k.FontID); err != nil {
		return err
	}
	for _, v := range []int32{int32(k.ViewportWidthPx), int32(k.ViewportHeightPx), int32(k.LineHeightPx)} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, k.LineCompression); err != nil {
		return err
	}
	if err := writeString16(w, k.Align); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, packBools(k.ExtraParagraphSpacing, k.HyphenationEnabled))
}

func readKey(r io.Reader) (CacheKey, error) {
	var k CacheKey
	var err error
	if k.FontID, err = readString16(r); err != nil {
		return k, err
	}
	var w, h, lh int32
	if err := binary.Read(r, binary.LittleEndian, &w); err != nil {
		return k, err
	}
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return k, err
	}
	if err := binary.Read(r, binary.LittleEndian, &lh); err != nil {
		return k, err
	}
	k.ViewportWidthPx, k.ViewportHeightPx, k.LineHeightPx = int(w), int(h), int(lh)

	if err := binary.Read(r, binary.LittleEndian, &k.LineCompression); err != nil {
		return k, err
	}
	if k.Align, err = readString16(r); err != nil {
		return k, err
	}
	var flags uint8
	if err := binary.Read(r, binary.LittleEndian, &flags); err != nil {
		return k, err
	}
	k.ExtraParagraphSpacing = flags&1 != 0
	k.HyphenationEnabled = flags&2 != 0
	return k, nil
}

func packBools(a, b bool) uint8 {
	var f uint8
	if a {
		f |= 1
	}
	if b {
		f |= 2
	}
	return f
}

func writePage(w io.Writer, p Page) error {
	count := len(p.Lines) + len(p.Images)
	if err := binary.Write(w, binary.LittleEndian, uint16(count)); err != nil {
		return err
	}
	for _, l := range p.Lines {
		if err := binary.Write(w, binary.LittleEndian, elementKindLine); err != nil {
			return err
		}
		if err := writeLine(w, l); err != nil {
			return err
		}
	}
	for _, img := range p.Images {
		if err := binary.Write(w, binary.LittleEndian, elementKindImage); err != nil {
			return err
		}
		if err := writeImage(w, img); err != nil {
			return err
		}
	}
	return nil
}

func readPage(r io.Reader) (Page, error) {
	var count uint16
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return Page{}, err
	}
	if count > maxElementsPerPage {
		return Page{}, fmt.Errorf("implausible element count %d", count)
	}

	var p Page
	for i := uint16(0); i < count; i++ {
		var kind uint8
		if err := binary.Read(r, binary.LittleEndian, &kind); err != nil {
			return Page{}, err
		}
		switch kind {
		case elementKindLine:
			l, err := readLine(r)
			if err != nil {
				return Page{}, err
			}
			p.Lines = append(p.Lines, l)
		case elementKindImage:
			img, err := readImage(r)
			if err != nil {
				return Page{}, err
			}
			p.Images = append(p.Images, img)
		default:
			return Page{}, fmt.Errorf("unknown element kind %d", kind)
		}
	}
	return p, nil
}

func writeLine(w io.Writer, l PageLine) error {
	for _, v := range []int32{int32(l.X), int32(l.Y)} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(l.Words))); err != nil {
		return err
	}
	for _, wd := range l.Words {
		if err := binary.Write(w, binary.LittleEndian, int32(wd.X)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, wd.StyleByte); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, packBools(wd.TrailingHyphen, wd.ContinuesPrevious)); err != nil {
			return err
		}
		if err := writeString16(w, wd.Text); err != nil {
			return err
		}
	}
	return nil
}

func readLine(r io.Reader) (PageLine, error) {
	var l PageLine
	var x, y int32
	if err := binary.Read(r, binary.LittleEndian, &x); err != nil {
		return l, err
	}
	if err := binary.Read(r, binary.LittleEndian, &y); err != nil {
		return l, err
	}
	l.X, l.Y = int(x), int(y)

	var wordCount uint16
	if err := binary.Read(r, binary.LittleEndian, &wordCount); err != nil {
		return l, err
	}
	if wordCount > maxElementsPerPage {
		return l, fmt.Errorf("implausible word count %d", wordCount)
	}

	l.Words = make([]layout.PositionedWord, 0, wordCount)
	for i := uint16(0); i < wordCount; i++ {
		var wx int32
		if err := binary.Read(r, binary.LittleEndian, &wx); err != nil {
			return l, err
		}
		var styleByte, flags uint8
		if err := binary.Read(r, binary.LittleEndian, &styleByte); err != nil {
			return l, err
		}
		if err := binary.Read(r, binary.LittleEndian, &flags); err != nil {
			return l, err
		}
		text, err := readString16(r)
		if err != nil {
			return l, err
		}
		l.Words = append(l.Words, layout.PositionedWord{
			Text:              text,
			X:                 int(wx),
			StyleByte:         styleByte,
			TrailingHyphen:    flags&1 != 0,
			ContinuesPrevious: flags&2 != 0,
		})
	}
	return l, nil
}

func writeImage(w io.Writer, img PageImage) error {
	for _, v := range []int32{int32(img.X), int32(img.Y), int32(img.W), int32(img.H)} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return writeString16(w, img.Path)
}

func readImage(r io.Reader) (PageImage, error) {
	var img PageImage
	var x, y, width, height int32
	for _, dst := range []*int32{&x, &y, &width, &height} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return img, err
		}
	}
	img.X, img.Y, img.W, img.H = int(x), int(y), int(width), int(height)
	var err error
	img.Path, err = readString16(r)
	return img, err
}

func writeString16(w io.Writer, s string) error {
	if len(s) > 0xffff {
		s = s[:0xffff]
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString16(r io.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
