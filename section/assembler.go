package section

import "ereader/layout"

// pageAssembler tracks the vertical cursor across an in-flight page and
// flushes to sink whenever content would overflow the viewport, per
// §4.5's page assembly rules.
type pageAssembler struct {
	viewportWidthPx  int
	viewportHeightPx int
	leftInsetPx      int
	lineHeightPx     int

	sink PageSink

	cur   Page
	nextY int
}

func newPageAssembler(viewportWidthPx, viewportHeightPx, leftInsetPx, lineHeightPx int, sink PageSink) *pageAssembler {
	return &pageAssembler{
		viewportWidthPx:  viewportWidthPx,
		viewportHeightPx: viewportHeightPx,
		leftInsetPx:      leftInsetPx,
		lineHeightPx:     lineHeightPx,
		sink:             sink,
	}
}

// beginParagraph advances the cursor by the block's top margin and
// padding, ahead of its first line.
func (a *pageAssembler) beginParagraph(style layout.BlockStyle, marginTopPx, paddingTopPx int) {
	a.nextY += marginTopPx + paddingTopPx
}

// endParagraph advances the cursor by the block's bottom margin and
// padding, plus half a line height when extra paragraph spacing is on.
func (a *pageAssembler) endParagraph(marginBottomPx, paddingBottomPx int, extraParagraphSpacing bool) {
	a.nextY += marginBottomPx + paddingBottomPx
	if extraParagraphSpacing {
		a.nextY += a.lineHeightPx / 2
	}
}

// emitLine pushes one layout.Line onto the current page, rolling over to
// a fresh page first if it would overflow the viewport height.
func (a *pageAssembler) emitLine(line layout.Line) {
	if a.nextY+a.lineHeightPx > a.viewportHeightPx {
		a.flush()
	}
	a.cur.Lines = append(a.cur.Lines, PageLine{X: a.leftInsetPx, Y: a.nextY, Words: line.Words})
	a.nextY += a.lineHeightPx
}

// emitImage pushes a block image of height hPx, rolling to a fresh page
// first if needed.
func (a *pageAssembler) emitImage(path string, w, h int) {
	if a.nextY+h > a.viewportHeightPx {
		a.flush()
	}
	x := (a.viewportWidthPx - w) / 2
	if x < 0 {
		x = 0
	}
	a.cur.Images = append(a.cur.Images, PageImage{X: a.leftInsetPx + x, Y: a.nextY, Path: path, W: w, H: h})
	a.nextY += h
}

// flush finishes the current page (if non-empty) and starts a new one at
// Y=0.
func (a *pageAssembler) flush() {
	if len(a.cur.Lines) > 0 || len(a.cur.Images) > 0 {
		a.sink(a.cur)
	}
	a.cur = Page{}
	a.nextY = 0
}

// finish flushes any in-flight page at end-of-document.
func (a *pageAssembler) finish() {
	a.flush()
}
