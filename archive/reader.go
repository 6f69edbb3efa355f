// Package archive reads EPUB containers (plain zip archives) through a
// small interface built on top of "archive/zip", guarding every entry
// against Zip Slip path traversal.
package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
)

// isSafePath returns false for paths that could escape the extraction
// directory: absolute paths and those containing ".." components.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}

// Reader gives the indexer and section parser random, streamed and bulk
// access to the entries of an opened EPUB (zip) archive.
type Reader struct {
	path  string
	zr    *zip.ReadCloser
	byRel map[string]*zip.File
}

// Open opens the zip archive at path and indexes its entries by
// archive-relative path, rejecting any entry that fails the Zip Slip guard.
func Open(path string) (*Reader, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	byRel := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		name := f.FileHeader.Name
		if !isSafePath(name) {
			zr.Close()
			return nil, fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", name)
		}
		if !f.FileInfo().IsDir() {
			byRel[name] = f
		}
	}
	return &Reader{path: path, zr: zr, byRel: byRel}, nil
}

// Close releases the underlying zip file handle.
func (r *Reader) Close() error {
	return r.zr.Close()
}

// Exists reports whether relPath names a regular entry in the archive.
func (r *Reader) Exists(relPath string) bool {
	_, ok := r.byRel[relPath]
	return ok
}

// InflatedSize returns the uncompressed size of the entry at relPath, used
// by the indexer to build the publication's cumulative byte-size index
// without inflating every chapter up front.
func (r *Reader) InflatedSize(relPath string) (uint64, error) {
	f, ok := r.byRel[relPath]
	if !ok {
		return 0, fmt.Errorf("archive entry not found: %s", relPath)
	}
	return f.FileHeader.UncompressedSize64, nil
}

// ReadAll inflates and returns the full contents of the entry at relPath.
func (r *Reader) ReadAll(relPath string) ([]byte, error) {
	f, ok := r.byRel[relPath]
	if !ok {
		return nil, fmt.Errorf("archive entry not found: %s", relPath)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open archive entry %s: %w", relPath, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read archive entry %s: %w", relPath, err)
	}
	return data, nil
}

// ReadStream inflates the entry at relPath and copies it to sink in
// chunkSize-sized pieces, checking ctx between chunks so a long chapter
// read can be cancelled cooperatively.
func (r *Reader) ReadStream(ctx context.Context, relPath string, sink io.Writer, chunkSize int) error {
	f, ok := r.byRel[relPath]
	if !ok {
		return fmt.Errorf("archive entry not found: %s", relPath)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open archive entry %s: %w", relPath, err)
	}
	defer rc.Close()

	if chunkSize <= 0 {
		chunkSize = 64 * 1024
	}
	buf := make([]byte, chunkSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, readErr := rc.Read(buf)
		if n > 0 {
			if _, writeErr := sink.Write(buf[:n]); writeErr != nil {
				return fmt.Errorf("write archive entry %s: %w", relPath, writeErr)
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("read archive entry %s: %w", relPath, readErr)
		}
	}
}
