package css

import (
	"fmt"
	"strconv"
	"strings"
)

// Length is a CSS length value with its original unit, left unresolved
// until the layout engine converts it against the font metrics it has at
// hand (em/percent are relative; px/pt are not).
type Length struct {
	Value float64
	Unit  string // "px", "pt", "em", "rem", "%", or "" for unitless (treated as px)
}

func (l Length) String() string {
	return fmt.Sprintf("%g%s", l.Value, l.Unit)
}

// Declaration is a single normalized property:value pair, as it appears
// inside a rule body or a style="" attribute.
type Declaration struct {
	Property string
	Value    string
}

// Style is the merged set of recognized text-formatting properties this
// reader honors. Each field has a companion *Set flag: resolve/parse_inline
// only ever set fields a declaration actually named, so callers can tell
// "unset" apart from "explicitly set to the zero value".
type Style struct {
	Align    string // "left", "right", "center", "justify"
	AlignSet bool

	Italic    bool
	ItalicSet bool

	Bold    bool
	BoldSet bool

	Underline    bool
	UnderlineSet bool

	TextIndent    Length
	TextIndentSet bool

	MarginTop, MarginBottom, MarginLeft, MarginRight       Length
	MarginTopSet, MarginBottomSet, MarginLeftSet, MarginRightSet bool

	PaddingTop, PaddingBottom, PaddingLeft, PaddingRight       Length
	PaddingTopSet, PaddingBottomSet, PaddingLeftSet, PaddingRightSet bool
}

// apply overlays decl onto the style, property by property. Declarations
// with unrecognized names or unparseable values are silently ignored, per
// the compiler's parsing policy.
func (s *Style) apply(d Declaration) {
	switch d.Property {
	case "text-align":
		switch d.Value {
		case "left", "right", "center", "justify":
			s.Align = d.Value
			s.AlignSet = true
		}
	case "font-style":
		switch d.Value {
		case "italic", "oblique":
			s.Italic = true
			s.ItalicSet = true
		case "normal":
			s.Italic = false
			s.ItalicSet = true
		}
	case "font-weight":
		if b, ok := parseFontWeight(d.Value); ok {
			s.Bold = b
			s.BoldSet = true
		}
	case "text-decoration", "text-decoration-line":
		switch d.Value {
		case "underline":
			s.Underline = true
			s.UnderlineSet = true
		case "none":
			s.Underline = false
			s.UnderlineSet = true
		}
	case "text-indent":
		if l, ok := parseLength(d.Value); ok {
			s.TextIndent = l
			s.TextIndentSet = true
		}
	case "margin":
		applyShorthand(d.Value, &s.MarginTop, &s.MarginRight, &s.MarginBottom, &s.MarginLeft,
			&s.MarginTopSet, &s.MarginRightSet, &s.MarginBottomSet, &s.MarginLeftSet)
	case "margin-top":
		if l, ok := parseLength(d.Value); ok {
			s.MarginTop, s.MarginTopSet = l, true
		}
	case "margin-bottom":
		if l, ok := parseLength(d.Value); ok {
			s.MarginBottom, s.MarginBottomSet = l, true
		}
	case "margin-left":
		if l, ok := parseLength(d.Value); ok {
			s.MarginLeft, s.MarginLeftSet = l, true
		}
	case "margin-right":
		if l, ok := parseLength(d.Value); ok {
			s.MarginRight, s.MarginRightSet = l, true
		}
	case "padding":
		applyShorthand(d.Value, &s.PaddingTop, &s.PaddingRight, &s.PaddingBottom, &s.PaddingLeft,
			&s.PaddingTopSet, &s.PaddingRightSet, &s.PaddingBottomSet, &s.PaddingLeftSet)
	case "padding-top":
		if l, ok := parseLength(d.Value); ok {
			s.PaddingTop, s.PaddingTopSet = l, true
		}
	case "padding-bottom":
		if l, ok := parseLength(d.Value); ok {
			s.PaddingBottom, s.PaddingBottomSet = l, true
		}
	case "padding-left":
		if l, ok := parseLength(d.Value); ok {
			s.PaddingLeft, s.PaddingLeftSet = l, true
		}
	case "padding-right":
		if l, ok := parseLength(d.Value); ok {
			s.PaddingRight, s.PaddingRightSet = l, true
		}
	}
}

// applyShorthand distributes a 1-4 value margin/padding shorthand onto the
// four sides in CSS order (top, right, bottom, left), same expansion rule
// the box model uses: 1 value -> all sides, 2 -> vertical/horizontal,
// 3 -> top/horizontal/bottom, 4 -> top/right/bottom/left.
func applyShorthand(raw string, top, right, bottom, left *Length, topSet, rightSet, bottomSet, leftSet *bool) {
	fields := strings.Fields(raw)
	vals := make([]Length, 0, len(fields))
	for _, f := range fields {
		l, ok := parseLength(f)
		if !ok {
			return
		}
		vals = append(vals, l)
	}

	switch len(vals) {
	case 1:
		*top, *right, *bottom, *left = vals[0], vals[0], vals[0], vals[0]
	case 2:
		*top, *bottom = vals[0], vals[0]
		*right, *left = vals[1], vals[1]
	case 3:
		*top, *right, *left = vals[0], vals[1], vals[1]
		*bottom = vals[2]
	case 4:
		*top, *right, *bottom, *left = vals[0], vals[1], vals[2], vals[3]
	default:
		return
	}
	*topSet, *rightSet, *bottomSet, *leftSet = true, true, true, true
}

// parseFontWeight recognizes named weights and the 100-900 numeric scale;
// weights of 700 and above are bold.
func parseFontWeight(v string) (bold bool, ok bool) {
	switch v {
	case "bold", "bolder":
		return true, true
	case "normal", "lighter":
		return false, true
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 100 && n <= 900 {
		return n >= 700, true
	}
	return false, false
}

// parseLength parses a CSS length like "1.2em", "4px", "12pt", "10%" or a
// bare unitless number (treated as pixels).
func parseLength(v string) (Length, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return Length{}, false
	}
	if v == "0" {
		return Length{Value: 0}, true
	}

	numEnd := 0
	for i, r := range v {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' || r == '+' {
			numEnd = i + 1
		} else {
			break
		}
	}
	if numEnd == 0 {
		return Length{}, false
	}
	num, err := strconv.ParseFloat(v[:numEnd], 64)
	if err != nil {
		return Length{}, false
	}
	unit := strings.ToLower(strings.TrimSpace(v[numEnd:]))
	switch unit {
	case "", "px", "pt", "em", "rem", "%":
		return Length{Value: num, Unit: unit}, true
	default:
		return Length{}, false
	}
}

// Merge layers other on top of s, field by field, returning the result.
// Used to layer an inline style="" declaration over the cascade result,
// keeping "last write wins" semantics at the field level.
func (s Style) Merge(other Style) Style {
	if other.AlignSet {
		s.Align, s.AlignSet = other.Align, true
	}
	if other.ItalicSet {
		s.Italic, s.ItalicSet = other.Italic, true
	}
	if other.BoldSet {
		s.Bold, s.BoldSet = other.Bold, true
	}
	if other.UnderlineSet {
		s.Underline, s.UnderlineSet = other.Underline, true
	}
	if other.TextIndentSet {
		s.TextIndent, s.TextIndentSet = other.TextIndent, true
	}
	if other.MarginTopSet {
		s.MarginTop, s.MarginTopSet = other.MarginTop, true
	}
	if other.MarginBottomSet {
		s.MarginBottom, s.MarginBottomSet = other.MarginBottom, true
	}
	if other.MarginLeftSet {
		s.MarginLeft, s.MarginLeftSet = other.MarginLeft, true
	}
	if other.MarginRightSet {
		s.MarginRight, s.MarginRightSet = other.MarginRight, true
	}
	if other.PaddingTopSet {
		s.PaddingTop, s.PaddingTopSet = other.PaddingTop, true
	}
	if other.PaddingBottomSet {
		s.PaddingBottom, s.PaddingBottomSet = other.PaddingBottom, true
	}
	if other.PaddingLeftSet {
		s.PaddingLeft, s.PaddingLeftSet = other.PaddingLeft, true
	}
	if other.PaddingRightSet {
		s.PaddingRight, s.PaddingRightSet = other.PaddingRight, true
	}
	return s
}
