// Package pub indexes an EPUB container into a Publication: its package
// document, stylesheets, spine, and table of contents, cached to disk so
// a book is only ever parsed once.
package pub

// CoreMetadata is the book-level metadata written once per book.
type CoreMetadata struct {
	Title            string
	Author           string
	Language         string // BCP-47 primary subtag
	CoverRelPath     string // archive-relative (content base joined in), empty if none
	TextStartRelPath string // archive-relative (content base joined in), empty if none
}

// SpineEntry is one ordered, 0-indexed reading-order item.
type SpineEntry struct {
	Href           string // archive-relative (content base joined in)
	CumulativeSize uint32
	TOCIndex       int32 // -1 if no TOC entry maps here
}

// TOCEntry is one flattened table-of-contents entry in document order.
type TOCEntry struct {
	Title      string
	Level      uint8 // >= 1
	SpineIndex int32 // -1 if unresolved
}

// Publication is the immutable, read-only result of indexing one EPUB
// archive.
type Publication struct {
	ArchivePath  string
	ContentBase  string // directory inside the archive holding the package document
	Stylesheets  []string
	NCXPath      string // archive-relative (content base joined in), empty if none
	NavPath      string // archive-relative (content base joined in), empty if none
	CacheKey     string // 8 lowercase hex digits, FNV-1a of ArchivePath
	CacheDirName string // "epub_<CacheKey>_<slug>"

	Meta  CoreMetadata
	Spine []SpineEntry
	TOC   []TOCEntry
}

// TotalSize is the book's total inflated content size, the last spine
// entry's cumulative size, or 0 for an empty spine.
func (p *Publication) TotalSize() uint32 {
	if len(p.Spine) == 0 {
		return 0
	}
	return p.Spine[len(p.Spine)-1].CumulativeSize
}

// manifestItem is the transient per-entry record built while parsing the
// package document's <manifest>; it never outlives Build.
type manifestItem struct {
	id         string
	href       string
	mediaType  string
	properties string
}
