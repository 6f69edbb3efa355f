package section

import (
	"context"
	"fmt"
	"io"
	"strings"

	"ereader/css"
	"ereader/hyphen"
	"ereader/layout"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/xml"
	"go.uber.org/zap"
)

var (
	blockTags      = map[string]bool{"p": true, "div": true, "blockquote": true, "li": true, "br": true}
	headerTags     = map[string]bool{"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true}
	boldTags       = map[string]bool{"b": true, "strong": true}
	italicTags     = map[string]bool{"i": true, "em": true}
	underlineTags  = map[string]bool{"u": true, "ins": true}
)

// Options configures a Parser's target viewport and reading preferences.
type Options struct {
	FontID                string
	ViewportWidthPx       int
	ViewportHeightPx      int
	LeftInsetPx           int
	LineHeightPx          int
	LineCompression       float64
	Align                 string
	ExtraParagraphSpacing bool
	HyphenationEnabled    bool
}

// Parser streams one XHTML chapter at a time, turning its markup into
// pages via the layout engine and a pageAssembler.
type Parser struct {
	css        *css.Compiler
	oracle     layout.Oracle
	hyphenator *hyphen.Hyphenator

	fontID                string
	effectiveWidthPx      int
	effectiveHeightPx     int
	leftInsetPx           int
	lineHeightPx          int
	lineCompression       float64
	userAlignment         string
	extraParagraphSpacing bool
	hyphenationEnabled    bool

	log *zap.Logger
}

// NewParser builds a Parser bound to a resolved cascade, a font metrics
// oracle and (optionally) a hyphenator for the chapter's language.
func NewParser(cssCompiler *css.Compiler, oracle layout.Oracle, hyphenator *hyphen.Hyphenator, opts Options, log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	align := opts.Align
	if align == "" {
		align = "left"
	}
	compression := opts.LineCompression
	if compression == 0 {
		compression = 1
	}
	return &Parser{
		css:                   cssCompiler,
		oracle:                oracle,
		hyphenator:            hyphenator,
		fontID:                opts.FontID,
		effectiveWidthPx:      opts.ViewportWidthPx - opts.LeftInsetPx,
		effectiveHeightPx:     opts.ViewportHeightPx,
		leftInsetPx:           opts.LeftInsetPx,
		lineHeightPx:          opts.LineHeightPx,
		lineCompression:       compression,
		userAlignment:         align,
		extraParagraphSpacing: opts.ExtraParagraphSpacing,
		hyphenationEnabled:    opts.HyphenationEnabled && hyphenator != nil,
		log:                   log.Named("section-parser"),
	}
}

// styleFrame records the depth an inline style bit was pushed at, so it
// can be popped when that same element closes regardless of how deeply
// further elements nest inside it.
type styleFrame struct {
	depth int
	bits  byte
}

// sectionState is the mutable parse state threaded through one
// ParseChapter call.
type sectionState struct {
	word              wordBuffer
	forceContinuation bool

	para paragraphState

	styleMask  byte
	styleStack []styleFrame

	skipDepth int
	depth     int

	assembler *pageAssembler
}

// ParseChapter streams r (one XHTML chapter, after charset sniffing) and
// delivers each completed Page to sink in order.
func (p *Parser) ParseChapter(ctx context.Context, r io.Reader, sink PageSink) error {
	transcoded, err := transcodeToUTF8(r, p.log)
	if err != nil {
		return fmt.Errorf("transcode chapter: %w", err)
	}

	s := &sectionState{
		assembler: newPageAssembler(p.effectiveWidthPx, p.effectiveHeightPx, p.leftInsetPx, p.lineHeightPx, sink),
	}

	l := xml.NewLexer(parse.NewInput(transcoded))
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		tt, data := l.Next()
		switch tt {
		case xml.ErrorToken:
			if lerr := l.Err(); lerr != nil && lerr != io.EOF {
				return fmt.Errorf("parse chapter: %w", lerr)
			}
			p.finalizeParagraph(s)
			s.assembler.finish()
			return nil

		case xml.StartTagToken:
			name, attrs, void := p.readStartTag(l, data)
			p.handleStartTag(s, name, attrs)
			if void {
				p.handleEndTag(s, name)
			}

		case xml.EndTagToken:
			p.handleEndTag(s, normalizeTag(data))

		case xml.TextToken, xml.CDATAToken:
			if s.skipDepth == 0 {
				p.appendText(s, string(data))
			}
		}
	}
}

// readStartTag consumes the attribute tokens that follow a StartTagToken,
// returning the lowercased tag name, its attributes, and whether the tag
// is self-closing.
func (p *Parser) readStartTag(l *xml.Lexer, nameData []byte) (name string, attrs map[string]string, void bool) {
	name = strings.ToLower(normalizeTag(nameData))
	attrs = map[string]string{}
	for {
		tt, data := l.Next()
		switch tt {
		case xml.AttributeToken:
			key := strings.ToLower(string(l.Text()))
			val := strings.Trim(string(l.AttrVal()), `"'`)
			attrs[key] = val
		case xml.StartTagCloseVoidToken:
			return name, attrs, true
		default:
			return name, attrs, false
		}
	}
}

func normalizeTag(data []byte) string {
	return strings.Trim(string(data), "<>/ \t\n\r")
}

func isPagebreak(attrs map[string]string) bool {
	return attrs["role"] == "doc-pagebreak" || attrs["epub:type"] == "pagebreak" || attrs["type"] == "pagebreak"
}

func (p *Parser) handleStartTag(s *sectionState, name string, attrs map[string]string) {
	s.depth++
	depth := s.depth

	if s.skipDepth != 0 {
		return
	}

	if isPagebreak(attrs) {
		s.skipDepth = depth
		return
	}

	switch {
	case name == "head":
		s.skipDepth = depth
	case blockTags[name]:
		p.handleBlockStart(s, name, attrs)
	case headerTags[name]:
		p.handleHeaderStart(s, name, attrs)
	case name == "img":
		p.handleImage(s, attrs)
		s.skipDepth = depth
	case name == "table":
		p.handleTablePlaceholder(s)
		s.skipDepth = depth
	case boldTags[name]:
		p.pushInlineStyle(s, depth, StyleBold)
	case italicTags[name]:
		p.pushInlineStyle(s, depth, StyleItalic)
	case underlineTags[name]:
		p.pushInlineStyle(s, depth, StyleUnderline)
	default:
		p.handleGenericInline(s, name, attrs, depth)
	}
}

func (p *Parser) handleEndTag(s *sectionState, name string) {
	if s.skipDepth != 0 {
		if s.depth == s.skipDepth {
			s.skipDepth = 0
		}
		s.depth--
		return
	}

	for len(s.styleStack) > 0 && s.styleStack[len(s.styleStack)-1].depth == s.depth {
		p.flushWord(s, true)
		top := s.styleStack[len(s.styleStack)-1]
		s.styleStack = s.styleStack[:len(s.styleStack)-1]
		s.styleMask &^= top.bits
	}

	if blockTags[name] || headerTags[name] {
		p.finalizeParagraph(s)
	}

	s.depth--
}

// handleBlockStart finalizes whatever paragraph is open and opens a new
// one for the block tag just entered. <br> is special: it finalizes and
// reopens without resolving any CSS of its own, carrying only the
// alignment of the paragraph it split.
func (p *Parser) handleBlockStart(s *sectionState, name string, attrs map[string]string) {
	inheritedAlign := p.userAlignment
	if s.para.active {
		inheritedAlign = s.para.block.Align
	}
	p.finalizeParagraph(s)

	if name == "br" {
		p.beginParagraph(s, resolvedBlock{
			BlockStyle: layout.BlockStyle{Align: inheritedAlign, SpaceWidthPx: p.oracle.SpaceWidth(p.fontID)},
		})
		return
	}

	block := p.resolveBlockStyle(name, attrs["class"], attrs["style"], "")
	p.beginParagraph(s, block)

	if name == "li" {
		s.para.words = append(s.para.words, pendingWord{text: "•"})
	}
}

func (p *Parser) handleHeaderStart(s *sectionState, name string, attrs map[string]string) {
	p.finalizeParagraph(s)
	block := p.resolveBlockStyle(name, attrs["class"], attrs["style"], "center")
	p.beginParagraph(s, block)
}

// handleImage emits a centered paragraph carrying the image's alt text
// (or a placeholder) in place of the image itself; its subtree is then
// skipped by the caller.
func (p *Parser) handleImage(s *sectionState, attrs map[string]string) {
	alt := strings.TrimSpace(attrs["alt"])
	if alt == "" {
		alt = "[Image]"
	}
	p.finalizeParagraph(s)
	p.beginParagraph(s, p.centeredPlaceholderBlock())
	for _, w := range strings.Fields(alt) {
		s.para.words = append(s.para.words, pendingWord{text: w})
	}
	p.finalizeParagraph(s)
}

func (p *Parser) handleTablePlaceholder(s *sectionState) {
	p.finalizeParagraph(s)
	p.beginParagraph(s, p.centeredPlaceholderBlock())
	s.para.words = append(s.para.words, pendingWord{text: "[Table"}, pendingWord{text: "omitted]"})
	p.finalizeParagraph(s)
}

func (p *Parser) centeredPlaceholderBlock() resolvedBlock {
	return resolvedBlock{BlockStyle: layout.BlockStyle{Align: "center", SpaceWidthPx: p.oracle.SpaceWidth(p.fontID)}}
}

// pushInlineStyle flushes whatever word was pending before the tag
// (marking the next one as a forced continuation, since no whitespace
// separates them in the source), then turns the style bit on for
// everything read until the matching close tag.
func (p *Parser) pushInlineStyle(s *sectionState, depth int, bit byte) {
	p.flushWord(s, true)
	s.styleStack = append(s.styleStack, styleFrame{depth: depth, bits: bit})
	s.styleMask |= bit
}

func (p *Parser) handleGenericInline(s *sectionState, name string, attrs map[string]string, depth int) {
	bits, pushed := p.inlineStyleBits(name, attrs["class"], attrs["style"])
	if !pushed {
		return
	}
	p.pushInlineStyle(s, depth, bits)
}
