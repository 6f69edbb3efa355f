package pub

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"ereader/rerror"
)

const (
	bookSignature = "RPUB"
	bookVersion   = 1
)

// SaveBook serializes core metadata, the spine, and the TOC to path's
// book.bin in a single self-describing pass: signature, version, metadata,
// then length-prefixed spine and TOC arrays.
func SaveBook(path string, meta CoreMetadata, spine []SpineEntry, toc []TOCEntry) error {
	f, err := os.Create(path)
	if err != nil {
		return rerror.New(rerror.CacheBuildFailed, "pub.SaveBook", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := io.WriteString(w, bookSignature); err != nil {
		return rerror.New(rerror.CacheBuildFailed, "pub.SaveBook", path, err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(bookVersion)); err != nil {
		return rerror.New(rerror.CacheBuildFailed, "pub.SaveBook", path, err)
	}
	if err := writeMeta(w, meta); err != nil {
		return rerror.New(rerror.CacheBuildFailed, "pub.SaveBook", path, err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(spine))); err != nil {
		return rerror.New(rerror.CacheBuildFailed, "pub.SaveBook", path, err)
	}
	for _, s := range spine {
		if err := writeSpineEntry(w, s); err != nil {
			return rerror.New(rerror.CacheBuildFailed, "pub.SaveBook", path, err)
		}
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(toc))); err != nil {
		return rerror.New(rerror.CacheBuildFailed, "pub.SaveBook", path, err)
	}
	for _, t := range toc {
		if err := writeTOCEntry(w, t); err != nil {
			return rerror.New(rerror.CacheBuildFailed, "pub.SaveBook", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return rerror.New(rerror.CacheBuildFailed, "pub.SaveBook", path, err)
	}
	return nil
}

// LoadBook reads back a book.bin written by SaveBook.
func LoadBook(path string) (CoreMetadata, []SpineEntry, []TOCEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return CoreMetadata{}, nil, nil, rerror.New(rerror.CorruptCache, "pub.LoadBook", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	sig := make([]byte, len(bookSignature))
	if _, err := io.ReadFull(r, sig); err != nil || string(sig) != bookSignature {
		return CoreMetadata{}, nil, nil, rerror.New(rerror.CorruptCache, "pub.LoadBook", path, fmt.Errorf("bad signature"))
	}
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil || version != bookVersion {
		return CoreMetadata{}, nil, nil, rerror.New(rerror.CorruptCache, "pub.LoadBook", path, fmt.Errorf("unsupported version %d", version))
	}
	meta, err := readMeta(r)
	if err != nil {
		return CoreMetadata{}, nil, nil, rerror.New(rerror.CorruptCache, "pub.LoadBook", path, err)
	}

	var spineCount uint32
	if err := binary.Read(r, binary.LittleEndian, &spineCount); err != nil {
		return CoreMetadata{}, nil, nil, rerror.New(rerror.CorruptCache, "pub.LoadBook", path, err)
	}
	spine := make([]SpineEntry, 0, spineCount)
	for i := uint32(0); i < spineCount; i++ {
		s, err := readSpineEntry(r)
		if err != nil {
			return CoreMetadata{}, nil, nil, rerror.New(rerror.CorruptCache, "pub.LoadBook", path, err)
		}
		spine = append(spine, s)
	}

	var tocCount uint32
	if err := binary.Read(r, binary.LittleEndian, &tocCount); err != nil {
		return CoreMetadata{}, nil, nil, rerror.New(rerror.CorruptCache, "pub.LoadBook", path, err)
	}
	toc := make([]TOCEntry, 0, tocCount)
	for i := uint32(0); i < tocCount; i++ {
		t, err := readTOCEntry(r)
		if err != nil {
			return CoreMetadata{}, nil, nil, rerror.New(rerror.CorruptCache, "pub.LoadBook", path, err)
		}
		toc = append(toc, t)
	}

	return meta, spine, toc, nil
}

func writeMeta(w io.Writer, m CoreMetadata) error {
	for _, s := range []string{m.Title, m.Author, m.Language, m.CoverRelPath, m.TextStartRelPath} {
		if err := writeString16(w, s); err != nil {
			return err
		}
	}
	return nil
}

func readMeta(r io.Reader) (CoreMetadata, error) {
	var m CoreMetadata
	fields := make([]*string, 5)
	fields[0], fields[1], fields[2], fields[3], fields[4] = &m.Title, &m.Author, &m.Language, &m.CoverRelPath, &m.TextStartRelPath
	for _, f := range fields {
		s, err := readString16(r)
		if err != nil {
			return m, err
		}
		*f = s
	}
	return m, nil
}

func writeSpineEntry(w io.Writer, s SpineEntry) error {
	if err := writeString16(w, s.Href); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, s.CumulativeSize); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, s.TOCIndex)
}

func readSpineEntry(r io.Reader) (SpineEntry, error) {
	var s SpineEntry
	var err error
	if s.Href, err = readString16(r); err != nil {
		return s, err
	}
	if err := binary.Read(r, binary.LittleEndian, &s.CumulativeSize); err != nil {
		return s, err
	}
	if err := binary.Read(r, binary.LittleEndian, &s.TOCIndex); err != nil {
		return s, err
	}
	return s, nil
}

func writeTOCEntry(w io.Writer, t TOCEntry) error {
	if err := writeString16(w, t.Title); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, t.Level); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, t.SpineIndex)
}

func readTOCEntry(r io.Reader) (TOCEntry, error) {
	var t TOCEntry
	var err error
	if t.Title, err = readString16(r); err != nil {
		return t, err
	}
	if err := binary.Read(r, binary.LittleEndian, &t.Level); err != nil {
		return t, err
	}
	if err := binary.Read(r, binary.LittleEndian, &t.SpineIndex); err != nil {
		return t, err
	}
	return t, nil
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
