package section

import (
	"ereader/css"
	"ereader/layout"
)

// resolvedBlock is a block style with every length already converted to
// pixels, ready for layout.BlockStyle and the page assembler's margin
// bookkeeping.
type resolvedBlock struct {
	layout.BlockStyle
	MarginTopPx, MarginBottomPx   int
	PaddingTopPx, PaddingBottomPx int
}

// resolvePx converts a css.Length to pixels: em and rem both resolve
// against line-height scaled by the configured line-compression factor —
// this engine tracks no per-element font-size cascade, so lineHeightPx is
// already the root/base size rem is defined relative to — percent
// resolves against the viewport width, px/pt pass through (pt at the
// standard 96/72 dpi ratio).
func resolvePx(l css.Length, lineHeightPx int, lineCompression float64, viewportWidthPx int) int {
	switch l.Unit {
	case "em", "rem":
		return int(l.Value * float64(lineHeightPx) * lineCompression)
	case "%":
		return int(l.Value / 100 * float64(viewportWidthPx))
	case "pt":
		return int(l.Value * 96 / 72)
	default: // "px" or unitless
		return int(l.Value)
	}
}

// resolveBlockStyle computes the block style for an opening block-level
// element per §4.5's "Block-style computation at element entry": resolve
// the cascade for tag/class, overlay the inline style="" attribute, then
// convert lengths to pixels and pick alignment (user preference unless
// CSS overrides it).
func (p *Parser) resolveBlockStyle(tag, class, styleAttr string, defaultAlign string) resolvedBlock {
	style := p.css.Resolve(tag, class)
	if styleAttr != "" {
		style = style.Merge(p.css.ParseInline(styleAttr))
	}

	align := defaultAlign
	if align == "" {
		align = p.userAlignment
	}
	if style.AlignSet {
		align = style.Align
	}

	rb := resolvedBlock{}
	rb.Align = align
	rb.SpaceWidthPx = p.oracle.SpaceWidth(p.fontID)

	if style.TextIndentSet {
		rb.FirstLineIndentPx = resolvePx(style.TextIndent, p.lineHeightPx, p.lineCompression, p.effectiveWidthPx)
		rb.HasFirstLineIndent = true
	}

	if style.MarginTopSet {
		rb.MarginTopPx = resolvePx(style.MarginTop, p.lineHeightPx, p.lineCompression, p.effectiveWidthPx)
	}
	if style.MarginBottomSet {
		rb.MarginBottomPx = resolvePx(style.MarginBottom, p.lineHeightPx, p.lineCompression, p.effectiveWidthPx)
	}
	if style.PaddingTopSet {
		rb.PaddingTopPx = resolvePx(style.PaddingTop, p.lineHeightPx, p.lineCompression, p.effectiveWidthPx)
	}
	if style.PaddingBottomSet {
		rb.PaddingBottomPx = resolvePx(style.PaddingBottom, p.lineHeightPx, p.lineCompression, p.effectiveWidthPx)
	}

	return rb
}

// inlineStyleBits reports which StyleBold/StyleItalic/StyleUnderline bits
// an inline element's resolved CSS turns on, for the "inline generic"
// tag-group rule: push an entry only when the element's CSS actually sets
// weight/style/decoration.
func (p *Parser) inlineStyleBits(tag, class, styleAttr string) (bits byte, pushed bool) {
	style := p.css.Resolve(tag, class)
	if styleAttr != "" {
		style = style.Merge(p.css.ParseInline(styleAttr))
	}

	if style.BoldSet && style.Bold {
		bits |= StyleBold
		pushed = true
	}
	if style.ItalicSet && style.Italic {
		bits |= StyleItalic
		pushed = true
	}
	if style.UnderlineSet && style.Underline {
		bits |= StyleUnderline
		pushed = true
	}
	return bits, pushed
}
