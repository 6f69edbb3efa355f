// Package reader implements the session-facing runtimes built on top of
// pub, css, and section: the HTML/EPUB reader runtime (§4.7), the
// plain-text reader (§4.8), and the pre-rendered bitmap reader (§4.9),
// plus the shared reading-progress record each of them persists.
package reader

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"ereader/rerror"
)

// Progress is the 6-byte little-endian record persisted as
// "<cache>/progress.bin": current spine index, current page within that
// section, and the section's page count at the time of the last save.
// PageCount is carried alongside Page so a reload under a configuration
// that changes pagination (font size, viewport) can reposition
// proportionally instead of landing on an unrelated page.
type Progress struct {
	Spine     uint16
	Page      uint16
	PageCount uint16
}

const progressFileName = "progress.bin"

// LoadProgress reads the progress record from cacheDir, returning the
// zero value (not an error) if no record has been saved yet.
func LoadProgress(cacheDir string) (Progress, error) {
	path := filepath.Join(cacheDir, progressFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Progress{}, nil
	}
	if err != nil {
		return Progress{}, err
	}
	if len(data) != 6 {
		return Progress{}, rerror.New(rerror.CorruptCache, "reader.LoadProgress", path, fmt.Errorf("want 6 bytes, got %d", len(data)))
	}
	return Progress{
		Spine:     binary.LittleEndian.Uint16(data[0:2]),
		Page:      binary.LittleEndian.Uint16(data[2:4]),
		PageCount: binary.LittleEndian.Uint16(data[4:6]),
	}, nil
}

// SaveProgress writes p to cacheDir atomically: the record is written to
// a temporary file in the same directory, then renamed over the target
// path, so a crash mid-write never leaves a truncated progress file
// behind.
func SaveProgress(cacheDir string, p Progress) error {
	path := filepath.Join(cacheDir, progressFileName)
	tmp := path + ".tmp"

	var buf [6]byte
	binary.LittleEndian.PutUint16(buf[0:2], p.Spine)
	binary.LittleEndian.PutUint16(buf[2:4], p.Page)
	binary.LittleEndian.PutUint16(buf[4:6], p.PageCount)

	if err := os.WriteFile(tmp, buf[:], 0o644); err != nil {
		return fmt.Errorf("write progress temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename progress file: %w", err)
	}
	return nil
}

// Reposition rescales p.Page from p.PageCount onto newPageCount,
// per §8 scenario 6: reload under a configuration that changed
// pagination repositions proportionally rather than landing on an
// unrelated page.
func (p Progress) Reposition(newPageCount uint16) Progress {
	if p.PageCount == 0 || newPageCount == 0 {
		return Progress{Spine: p.Spine, Page: 0, PageCount: newPageCount}
	}
	page := uint16((uint32(p.Page)*uint32(newPageCount) + uint32(p.PageCount)/2) / uint32(p.PageCount))
	if page >= newPageCount {
		page = newPageCount - 1
	}
	return Progress{Spine: p.Spine, Page: page, PageCount: newPageCount}
}
