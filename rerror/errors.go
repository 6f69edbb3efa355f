// Package rerror defines the closed set of error kinds the core surfaces
// to its caller, per the error handling design: a handful of sentinel
// kinds, each wrapped with enough context to log, and each carrying a
// fixed fatal/non-fatal policy that callers can rely on via errors.Is.
package rerror

import (
	"errors"
	"fmt"
)

// Kind is one of the closed set of error kinds the core produces.
type Kind int

const (
	// NotAnEpub: missing container.xml or rootfile. Fatal.
	NotAnEpub Kind = iota
	// CacheBuildFailed: any I/O or parse error while indexing. Fatal.
	CacheBuildFailed
	// CacheStale: header mismatch on section/CSS cache. Recoverable.
	CacheStale
	// ParseWarning: recoverable HTML malformation. Logged, not returned.
	ParseWarning
	// TocMissing: neither NCX nor Nav present or parseable. Non-fatal.
	TocMissing
	// CoverMissing: no cover image found. Non-fatal.
	CoverMissing
	// PageOutOfRange: page index >= page_count. Clamp and log.
	PageOutOfRange
	// CorruptCache: trailer offset or element count implausible. Treated as stale.
	CorruptCache
	// UnsupportedImage: cover is not a supported raster format. Non-fatal.
	UnsupportedImage
)

func (k Kind) String() string {
	switch k {
	case NotAnEpub:
		return "NotAnEpub"
	case CacheBuildFailed:
		return "CacheBuildFailed"
	case CacheStale:
		return "CacheStale"
	case ParseWarning:
		return "ParseWarning"
	case TocMissing:
		return "TocMissing"
	case CoverMissing:
		return "CoverMissing"
	case PageOutOfRange:
		return "PageOutOfRange"
	case CorruptCache:
		return "CorruptCache"
	case UnsupportedImage:
		return "UnsupportedImage"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Fatal reports whether errors of this kind must abort the operation that
// produced them, as opposed to degrading gracefully.
func (k Kind) Fatal() bool {
	switch k {
	case NotAnEpub, CacheBuildFailed:
		return true
	default:
		return false
	}
}

// Error wraps an underlying cause with one of the closed set of kinds.
type Error struct {
	Kind    Kind
	Op      string // component/operation that produced the error, e.g. "pub.parseOPF"
	Path    string // file or archive entry path involved, if any
	Err     error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Path != "":
		return fmt.Sprintf("%s: %s (%s): %v", e.Op, e.Kind, e.Path, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Path != "":
		return fmt.Sprintf("%s: %s (%s)", e.Op, e.Kind, e.Path)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, rerror.NotAnEpub) style matching work by
// comparing kinds rather than requiring a shared sentinel value.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New constructs an *Error for the given kind, tagging it with the
// producing operation for logs.
func New(kind Kind, op string, path string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: cause}
}

// Of returns a sentinel-only *Error usable as a comparison target for
// errors.Is, e.g. errors.Is(err, rerror.Of(rerror.CacheStale)).
func Of(kind Kind) *Error {
	return &Error{Kind: kind}
}
