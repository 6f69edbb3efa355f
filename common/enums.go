// Package common holds small enumerations shared between configuration,
// layout and the reader runtime. Kept separate from those packages the
// same way the codebase this design is grounded on carries its cross-
// cutting enums in one small leaf package with no other dependencies.
package common

import "fmt"

// Alignment is the paragraph-level text alignment requested by user
// configuration or resolved from CSS. AlignmentBookStyle means "defer to
// whatever the stylesheet/viewer default says" rather than forcing one.
type Alignment int

const (
	AlignmentJustify Alignment = iota
	AlignmentLeft
	AlignmentCenter
	AlignmentRight
	AlignmentBookStyle
)

func (a Alignment) String() string {
	switch a {
	case AlignmentJustify:
		return "justify"
	case AlignmentLeft:
		return "left"
	case AlignmentCenter:
		return "center"
	case AlignmentRight:
		return "right"
	case AlignmentBookStyle:
		return "book-style"
	default:
		return fmt.Sprintf("Alignment(%d)", int(a))
	}
}

// ParseAlignment accepts the lowercase names produced by String, used when
// decoding configuration.
func ParseAlignment(s string) (Alignment, error) {
	switch s {
	case "justify":
		return AlignmentJustify, nil
	case "left":
		return AlignmentLeft, nil
	case "center":
		return AlignmentCenter, nil
	case "right":
		return AlignmentRight, nil
	case "book-style":
		return AlignmentBookStyle, nil
	default:
		return 0, fmt.Errorf("unknown alignment %q", s)
	}
}

// RefreshMode is the hint returned to the display driver on each rendered
// page.
type RefreshMode int

const (
	RefreshFull RefreshMode = iota
	RefreshPartial
	RefreshFast
)

func (r RefreshMode) String() string {
	switch r {
	case RefreshFull:
		return "full"
	case RefreshPartial:
		return "partial"
	case RefreshFast:
		return "fast"
	default:
		return fmt.Sprintf("RefreshMode(%d)", int(r))
	}
}

// PlaneFormat is the pixel packing used by the bitmap display and by
// pre-rendered containers (§4.9 of the design).
type PlaneFormat int

const (
	Plane1Bit PlaneFormat = iota
	Plane2Bit
)

func (p PlaneFormat) String() string {
	switch p {
	case Plane1Bit:
		return "1bit"
	case Plane2Bit:
		return "2bit"
	default:
		return fmt.Sprintf("PlaneFormat(%d)", int(p))
	}
}
