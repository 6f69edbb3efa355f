package reader

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"ereader/layout"
	"ereader/rerror"
	"ereader/section"
)

// writeString16/readString16 frame a string with a u16 byte-length
// prefix, the same idiom css.parser.go and pub/book.go use for their own
// cache formats, kept package-local rather than shared across packages.
func writeString16(w io.Writer, s string) error {
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

const (
	textIndexSignature = "TXTI"
	textIndexVersion   = 1
	textIndexFileName  = "index.bin"
)

// TextOptions is the subset of reader Options a plain-text source is
// laid out against; there is no markup, so no CSS cascade or inline
// style state applies, only the same viewport/font/alignment math as the
// HTML reader.
type TextOptions struct {
	FontID          string
	ViewportWidthPx int
	LineHeightPx    int
	LinesPerPage    int
	Align           string
}

// textIndexKey is the subset of TextOptions (plus the source file's size)
// that keys index.bin; any mismatch invalidates the cache, per §4.8.
type textIndexKey struct {
	fileSize        int64
	fontID          string
	viewportWidthPx int
	lineHeightPx    int
	linesPerPage    int
	align           string
}

// TextReader is the plain-text reader of §4.8: it paginates a source
// file with no surrounding markup by greedily word-wrapping transcoded
// text into fixed line counts, caching the resulting page boundaries
// (as byte offsets into the transcoded stream) rather than the
// rendered lines themselves.
type TextReader struct {
	path        string
	cachePath   string
	key         textIndexKey
	oracle      layout.Oracle
	log         *zap.Logger
	pageOffsets []uint32
	totalLen    uint32
}

// OpenText loads or builds the page index for path under cacheDir.
func OpenText(path, cacheDir string, oracle layout.Oracle, opts TextOptions, log *zap.Logger) (*TextReader, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.LinesPerPage <= 0 {
		opts.LinesPerPage = 1
	}

	fi, err := os.Stat(path)
	if err != nil {
		return nil, rerror.New(rerror.CacheBuildFailed, "reader.OpenText", path, err)
	}
	key := textIndexKey{
		fileSize:        fi.Size(),
		fontID:          opts.FontID,
		viewportWidthPx: opts.ViewportWidthPx,
		lineHeightPx:    opts.LineHeightPx,
		linesPerPage:    opts.LinesPerPage,
		align:           opts.Align,
	}

	tr := &TextReader{path: path, cachePath: cacheDir + "/" + textIndexFileName, key: key, oracle: oracle, log: log.Named("text-reader")}

	if offsets, total, err := loadTextIndex(tr.cachePath, key); err == nil {
		tr.pageOffsets = offsets
		tr.totalLen = total
		return tr, nil
	}

	if err := tr.build(opts); err != nil {
		return nil, err
	}
	return tr, nil
}

// PageCount reports how many pages the index holds.
func (tr *TextReader) PageCount() int { return len(tr.pageOffsets) }

// build streams the source file through the shared charset transcoder
// and greedily word-wraps it into lines of at most opts.ViewportWidthPx,
// grouping opts.LinesPerPage lines per page and recording each page's
// start offset in the transcoded byte stream.
func (tr *TextReader) build(opts TextOptions) error {
	f, err := os.Open(tr.path)
	if err != nil {
		return rerror.New(rerror.CacheBuildFailed, "reader.TextReader.build", tr.path, err)
	}
	defer f.Close()

	transcoded, err := section.TranscodeToUTF8(f, tr.log)
	if err != nil {
		return rerror.New(rerror.CacheBuildFailed, "reader.TextReader.build", tr.path, err)
	}
	br := bufio.NewReaderSize(transcoded, 8192)

	spaceWidth := tr.oracle.SpaceWidth(opts.FontID)

	var offsets []uint32
	var byteOffset uint32
	pageStart := uint32(0)
	lineCount := 0
	lineWidth := 0
	wordStarted := false
	wordStartOffset := uint32(0)
	var word strings.Builder

	// flushWord measures the just-completed word and either appends it to
	// the in-progress line or, if it doesn't fit, starts a new line;
	// wordStartOffset (captured when this word's first rune was read) is
	// the byte offset a new page begins at if this word also overflows
	// the page's line budget.
	flushWord := func() {
		if word.Len() == 0 {
			return
		}
		w := layout.MeasureWord(opts.FontID, word.String(), tr.oracle)
		gap := 0
		if lineWidth > 0 {
			gap = spaceWidth
		}
		if lineWidth > 0 && lineWidth+gap+w > opts.ViewportWidthPx {
			lineCount++
			lineWidth = 0
			if lineCount >= opts.LinesPerPage {
				offsets = append(offsets, pageStart)
				pageStart = wordStartOffset
				lineCount = 0
			}
		}
		if lineWidth > 0 {
			lineWidth += spaceWidth
		}
		lineWidth += w
		word.Reset()
	}

	for {
		runeStart := byteOffset
		r, size, err := br.ReadRune()
		if err == io.EOF {
			flushWord()
			break
		}
		if err != nil {
			return rerror.New(rerror.CacheBuildFailed, "reader.TextReader.build", tr.path, err)
		}
		byteOffset += uint32(size)

		if r == ' ' || r == '\n' || r == '\t' || r == '\r' {
			if wordStarted {
				flushWord()
				wordStarted = false
			}
			continue
		}
		if !wordStarted {
			wordStartOffset = runeStart
		}
		word.WriteRune(r)
		wordStarted = true
	}
	if lineCount > 0 || lineWidth > 0 {
		offsets = append(offsets, pageStart)
	}
	if len(offsets) == 0 {
		offsets = []uint32{0}
	}

	tr.pageOffsets = offsets
	tr.totalLen = byteOffset
	return saveTextIndex(tr.cachePath, tr.key, offsets, tr.totalLen)
}

// PageText returns the raw transcoded text belonging to page idx,
// reconstructing it by re-transcoding the source file and discarding
// bytes up to the page's recorded start offset; the caller re-wraps it
// with the same viewport width to get positioned lines, the same
// deterministic wrap the index was built against.
func (tr *TextReader) PageText(idx int) (string, error) {
	if idx < 0 || idx >= len(tr.pageOffsets) {
		return "", rerror.New(rerror.PageOutOfRange, "reader.TextReader.PageText", tr.path, fmt.Errorf("index %d of %d", idx, len(tr.pageOffsets)))
	}
	start := tr.pageOffsets[idx]
	end := tr.totalLen
	if idx+1 < len(tr.pageOffsets) {
		end = tr.pageOffsets[idx+1]
	}

	f, err := os.Open(tr.path)
	if err != nil {
		return "", rerror.New(rerror.CacheBuildFailed, "reader.TextReader.PageText", tr.path, err)
	}
	defer f.Close()

	transcoded, err := section.TranscodeToUTF8(f, tr.log)
	if err != nil {
		return "", rerror.New(rerror.CacheBuildFailed, "reader.TextReader.PageText", tr.path, err)
	}
	if _, err := io.CopyN(io.Discard, transcoded, int64(start)); err != nil && err != io.EOF {
		return "", rerror.New(rerror.CorruptCache, "reader.TextReader.PageText", tr.path, err)
	}

	var buf strings.Builder
	if _, err := io.CopyN(&buf, transcoded, int64(end-start)); err != nil && err != io.EOF {
		return "", rerror.New(rerror.CorruptCache, "reader.TextReader.PageText", tr.path, err)
	}
	return buf.String(), nil
}

func saveTextIndex(path string, key textIndexKey, offsets []uint32, totalLen uint32) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return rerror.New(rerror.CacheBuildFailed, "reader.saveTextIndex", path, err)
	}

	write := func() error {
		if _, err := io.WriteString(f, textIndexSignature); err != nil {
			return err
		}
		if err := binary.Write(f, binary.LittleEndian, uint16(textIndexVersion)); err != nil {
			return err
		}
		if err := binary.Write(f, binary.LittleEndian, key.fileSize); err != nil {
			return err
		}
		if err := binary.Write(f, binary.LittleEndian, int32(key.viewportWidthPx)); err != nil {
			return err
		}
		if err := binary.Write(f, binary.LittleEndian, int32(key.lineHeightPx)); err != nil {
			return err
		}
		if err := binary.Write(f, binary.LittleEndian, int32(key.linesPerPage)); err != nil {
			return err
		}
		if err := writeString16(f, key.fontID); err != nil {
			return err
		}
		if err := writeString16(f, key.align); err != nil {
			return err
		}
		if err := binary.Write(f, binary.LittleEndian, totalLen); err != nil {
			return err
		}
		if err := binary.Write(f, binary.LittleEndian, uint32(len(offsets))); err != nil {
			return err
		}
		for _, off := range offsets {
			if err := binary.Write(f, binary.LittleEndian, off); err != nil {
				return err
			}
		}
		return nil
	}

	if err := write(); err != nil {
		f.Close()
		os.Remove(tmp)
		return rerror.New(rerror.CacheBuildFailed, "reader.saveTextIndex", path, err)
	}
	if err := f.Close(); err != nil {
		return rerror.New(rerror.CacheBuildFailed, "reader.saveTextIndex", path, err)
	}
	return os.Rename(tmp, path)
}

func loadTextIndex(path string, want textIndexKey) ([]uint32, uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	sig := make([]byte, len(textIndexSignature))
	if _, err := io.ReadFull(f, sig); err != nil || string(sig) != textIndexSignature {
		return nil, 0, rerror.New(rerror.CacheStale, "reader.loadTextIndex", path, fmt.Errorf("bad signature"))
	}
	var version uint16
	if err := binary.Read(f, binary.LittleEndian, &version); err != nil || version != textIndexVersion {
		return nil, 0, rerror.New(rerror.CacheStale, "reader.loadTextIndex", path, fmt.Errorf("version mismatch"))
	}

	var got textIndexKey
	if err := binary.Read(f, binary.LittleEndian, &got.fileSize); err != nil {
		return nil, 0, rerror.New(rerror.CorruptCache, "reader.loadTextIndex", path, err)
	}
	var w, lh, lpp int32
	if err := binary.Read(f, binary.LittleEndian, &w); err != nil {
		return nil, 0, rerror.New(rerror.CorruptCache, "reader.loadTextIndex", path, err)
	}
	if err := binary.Read(f, binary.LittleEndian, &lh); err != nil {
		return nil, 0, rerror.New(rerror.CorruptCache, "reader.loadTextIndex", path, err)
	}
	if err := binary.Read(f, binary.LittleEndian, &lpp); err != nil {
		return nil, 0, rerror.New(rerror.CorruptCache, "reader.loadTextIndex", path, err)
	}
	got.viewportWidthPx, got.lineHeightPx, got.linesPerPage = int(w), int(lh), int(lpp)
	if got.fontID, err = readString16(f); err != nil {
		return nil, 0, rerror.New(rerror.CorruptCache, "reader.loadTextIndex", path, err)
	}
	if got.align, err = readString16(f); err != nil {
		return nil, 0, rerror.New(rerror.CorruptCache, "reader.loadTextIndex", path, err)
	}

	var totalLen uint32
	if err := binary.Read(f, binary.LittleEndian, &totalLen); err != nil {
		return nil, 0, rerror.New(rerror.CorruptCache, "reader.loadTextIndex", path, err)
	}
	var count uint32
	if err := binary.Read(f, binary.LittleEndian, &count); err != nil {
		return nil, 0, rerror.New(rerror.CorruptCache, "reader.loadTextIndex", path, err)
	}
	if count > 10_000_000 {
		return nil, 0, rerror.New(rerror.CorruptCache, "reader.loadTextIndex", path, fmt.Errorf("implausible page count %d", count))
	}
	offsets := make([]uint32, count)
	for i := range offsets {
		if err := binary.Read(f, binary.LittleEndian, &offsets[i]); err != nil {
			return nil, 0, rerror.New(rerror.CorruptCache, "reader.loadTextIndex", path, err)
		}
	}

	if got != want {
		return nil, 0, rerror.New(rerror.CacheStale, "reader.loadTextIndex", path, fmt.Errorf("key mismatch"))
	}
	return offsets, totalLen, nil
}
