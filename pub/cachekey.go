package pub

import (
	"fmt"
	"hash/fnv"
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"
)

// cacheKey returns the 8-lowercase-hex-digit FNV-1a hash of archivePath,
// the same hash family the manifest-offset index uses.
func cacheKey(archivePath string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(archivePath))
	return fmt.Sprintf("%08x", h.Sum32())
}

// cacheDirName returns the cache directory name for archivePath:
// "epub_<hash>_<slug-of-basename>", readable during debugging while still
// keyed uniquely to the archive's full path.
func cacheDirName(archivePath string) string {
	base := strings.TrimSuffix(filepath.Base(archivePath), filepath.Ext(archivePath))
	s := slug.Make(base)
	if s == "" {
		s = "book"
	}
	return fmt.Sprintf("epub_%s_%s", cacheKey(archivePath), s)
}

// fnv1aID hashes id to a 32-bit FNV-1a value combined with its length as a
// disambiguator, for the large-manifest offset index (§4.1 step 2).
func fnv1aID(id string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	sum := h.Sum32()
	return sum ^ (uint32(len(id)) * 0x9e3779b1)
}
