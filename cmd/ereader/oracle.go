package main

import (
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// basicOracle answers layout.Oracle queries against a real, fixed-size
// bitmap font face (golang.org/x/image/font/basicfont.Face7x13) rather
// than a made-up per-rune width table — every font id measures through
// the same face, since the CLI harness has no font-selection UI of its
// own; a host embedding this core would supply an Oracle backed by
// whatever font engine its platform ships.
type basicOracle struct {
	face font.Face
}

func newBasicOracle() *basicOracle {
	return &basicOracle{face: basicfont.Face7x13}
}

func (o *basicOracle) MeasureWord(fontID, text string) int {
	width := 0
	for _, r := range text {
		adv, ok := o.face.GlyphAdvance(r)
		if !ok {
			adv, _ = o.face.GlyphAdvance('?')
		}
		width += adv.Round()
	}
	return width
}

func (o *basicOracle) SpaceWidth(fontID string) int {
	adv, _ := o.face.GlyphAdvance(' ')
	return adv.Round()
}
