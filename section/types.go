// Package section streams a single XHTML chapter through a token-at-a-
// time pull parser, resolves CSS against the cascade, hands paragraphs to
// the layout engine, and assembles the resulting lines into fixed-size
// pages — then serializes those pages into a versioned binary cache.
package section

import "ereader/layout"

// Inline style bits stamped onto layout.Word.StyleByte by the parser and
// read back by the renderer.
const (
	StyleBold byte = 1 << iota
	StyleItalic
	StyleUnderline
)

// PageLine is one line positioned on a page, already stripped of
// soft-hyphen bytes by the layout engine.
type PageLine struct {
	X, Y  int
	Words []layout.PositionedWord
}

// PageImage is a block-level image reference positioned on a page.
type PageImage struct {
	X, Y       int
	Path       string
	W, H       int
}

// Page is one screen's worth of content.
type Page struct {
	Lines  []PageLine
	Images []PageImage
}

// PageSink receives each completed Page in order.
type PageSink func(Page)
