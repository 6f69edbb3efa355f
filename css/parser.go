// Package css implements the reader's CSS subset: a streaming tokenizer
// over manifest stylesheets, a three-tier cascade (tag, class, tag.class)
// and a versioned binary cache so the cascade never needs to be rebuilt
// from source text on a warm cache hit.
package css

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// maxInputBytes bounds how much of a single stylesheet is tokenized; any
// excess is silently dropped, matching the compiler's parsing policy.
const maxInputBytes = 64 * 1024

const (
	cacheSignature = "RCSS"
	cacheVersion   = 2
)

// Compiler accumulates rules from one or more stylesheets into a cascade
// keyed by tag, by class, and by tag.class, and resolves per-element
// styles against it.
type Compiler struct {
	log *zap.Logger

	byTag      map[string][]Declaration
	byClass    map[string][]Declaration
	byTagClass map[string][]Declaration
}

// NewCompiler creates an empty Compiler ready to accept LoadStream calls.
func NewCompiler(log *zap.Logger) *Compiler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Compiler{
		log:        log.Named("css-compiler"),
		byTag:      make(map[string][]Declaration),
		byClass:    make(map[string][]Declaration),
		byTagClass: make(map[string][]Declaration),
	}
}

// LoadStream tokenizes r as a CSS stylesheet and appends its rules to the
// cascade. Input beyond maxInputBytes is truncated without error. Skipped
// @-rules are logged at debug level; unsupported selectors and
// unrecognized declarations are dropped without logging. None of these
// fail the call.
func (c *Compiler) LoadStream(r io.Reader) error {
	data, err := io.ReadAll(io.LimitReader(r, maxInputBytes))
	if err != nil {
		return fmt.Errorf("read stylesheet: %w", err)
	}

	input := parse.NewInput(bytes.NewReader(stripComments(data)))
	p := css.NewParser(input, false)

	var currentSelectors []string
	for {
		gt, _, tokData := p.Next()

		switch gt {
		case css.ErrorGrammar:
			return nil

		case css.BeginAtRuleGrammar:
			atRule := string(tokData)
			if atRule == "@media" && mediaApplies(p.Values()) {
				c.loadMediaBlockRules(p)
			} else {
				skipAtRuleBlock(p)
				c.log.Debug("skipping at-rule", zap.String("rule", atRule))
			}

		case css.AtRuleGrammar:
			c.log.Debug("skipping at-rule", zap.String("rule", string(tokData)))

		case css.BeginRulesetGrammar, css.QualifiedRuleGrammar:
			currentSelectors = splitSelectors(tokData, p.Values())
			decls := parseDeclarations(p)
			c.addRules(currentSelectors, decls)
		}
	}
}

// addRules adds decls to the cascade tier matching each selector: tag-only,
// class-only, or tag.class. Anything else (combinators, IDs, attribute or
// pseudo-class selectors) is silently dropped.
func (c *Compiler) addRules(selectors []string, decls []Declaration) {
	if len(decls) == 0 {
		return
	}
	for _, sel := range selectors {
		tag, class, ok := parseSimpleSelector(sel)
		if !ok {
			continue
		}
		switch {
		case tag != "" && class != "":
			key := tag + "." + class
			c.byTagClass[key] = append(c.byTagClass[key], decls...)
		case class != "":
			c.byClass[class] = append(c.byClass[class], decls...)
		case tag != "":
			c.byTag[tag] = append(c.byTag[tag], decls...)
		}
	}
}

// loadMediaBlockRules reads the ruleset bodies of an already-entered
// @media block and folds them into the cascade exactly as if they had
// appeared unwrapped at the top level.
func (c *Compiler) loadMediaBlockRules(p *css.Parser) {
	for {
		gt, _, tokData := p.Next()
		switch gt {
		case css.ErrorGrammar, css.EndAtRuleGrammar:
			return
		case css.BeginRulesetGrammar, css.QualifiedRuleGrammar:
			selectors := splitSelectors(tokData, p.Values())
			decls := parseDeclarations(p)
			c.addRules(selectors, decls)
		}
	}
}

// Resolve returns the cascaded style for an element with the given tag
// name and raw class attribute value, applying tag rules first, then each
// class named in the attribute (in whitespace order), then each
// tag.class combination — later declarations of the same property
// overwrite earlier ones within and across these tiers.
func (c *Compiler) Resolve(tag, classAttr string) Style {
	var style Style

	tag = strings.ToLower(strings.TrimSpace(tag))
	for _, d := range c.byTag[tag] {
		style.apply(d)
	}

	classes := strings.Fields(strings.ToLower(classAttr))
	for _, cls := range classes {
		for _, d := range c.byClass[cls] {
			style.apply(d)
		}
	}
	for _, cls := range classes {
		key := tag + "." + cls
		for _, d := range c.byTagClass[key] {
			style.apply(d)
		}
	}
	return style
}

// ParseInline parses a single inline style="" declaration block (no
// selector, no braces) into a Style.
func (c *Compiler) ParseInline(styleAttr string) Style {
	var style Style
	for _, d := range parseDeclarationList(styleAttr) {
		style.apply(d)
	}
	return style
}

// SaveCache writes the accumulated cascade to w in the versioned binary
// format; LoadCache rejects anything with a different version byte as a
// stale cache rather than attempting to interpret it.
func (c *Compiler) SaveCache(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(cacheSignature); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint16(cacheVersion)); err != nil {
		return err
	}
	for _, section := range []map[string][]Declaration{c.byTag, c.byClass, c.byTagClass} {
		if err := writeSection(bw, section); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// LoadCache replaces the compiler's cascade with the contents of r,
// previously written by SaveCache. A version mismatch or truncated/corrupt
// stream returns an error; the caller treats that as a cache miss and
// rebuilds from source.
func (c *Compiler) LoadCache(r io.Reader) error {
	br := bufio.NewReader(r)

	sig := make([]byte, len(cacheSignature))
	if _, err := io.ReadFull(br, sig); err != nil {
		return fmt.Errorf("read cache signature: %w", err)
	}
	if string(sig) != cacheSignature {
		return fmt.Errorf("bad cache signature %q", sig)
	}

	var version uint16
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return fmt.Errorf("read cache version: %w", err)
	}
	if version != cacheVersion {
		return fmt.Errorf("unsupported cache version %d", version)
	}

	byTag, err := readSection(br)
	if err != nil {
		return fmt.Errorf("read tag section: %w", err)
	}
	byClass, err := readSection(br)
	if err != nil {
		return fmt.Errorf("read class section: %w", err)
	}
	byTagClass, err := readSection(br)
	if err != nil {
		return fmt.Errorf("read tag.class section: %w", err)
	}

	c.byTag, c.byClass, c.byTagClass = byTag, byClass, byTagClass
	return nil
}

func writeSection(w io.Writer, section map[string][]Declaration) error {
	keys := make([]string, 0, len(section))
	for k := range section {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if err := binary.Write(w, binary.LittleEndian, uint32(len(keys))); err != nil {
		return err
	}
	for _, key := range keys {
		if err := writeString16(w, key); err != nil {
			return err
		}
		decls := section[key]
		if err := binary.Write(w, binary.LittleEndian, uint16(len(decls))); err != nil {
			return err
		}
		for _, d := range decls {
			if err := writeString8(w, d.Property); err != nil {
				return err
			}
			if err := writeString16(w, d.Value); err != nil {
				return err
			}
		}
	}
	return nil
}

func readSection(r io.Reader) (map[string][]Declaration, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	section := make(map[string][]Declaration, count)
	for i := uint32(0); i < count; i++ {
		key, err := readString16(r)
		if err != nil {
			return nil, err
		}
		var declCount uint16
		if err := binary.Read(r, binary.LittleEndian, &declCount); err != nil {
			return nil, err
		}
		decls := make([]Declaration, 0, declCount)
		for j := uint16(0); j < declCount; j++ {
			prop, err := readString8(r)
			if err != nil {
				return nil, err
			}
			val, err := readString16(r)
			if err != nil {
				return nil, err
			}
			decls = append(decls, Declaration{Property: prop, Value: val})
		}
		section[key] = decls
	}
	return section, nil
}

func writeString8(w io.Writer, s string) error {
	if len(s) > 0xff {
		s = s[:0xff]
	}
	if err := binary.Write(w, binary.LittleEndian, uint8(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func writeString16(w io.Writer, s string) error {
	if len(s) > 0xffff {
		s = s[:0xffff]
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString8(r io.Reader) (string, error) {
	var n uint8
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readString16(r io.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// stripComments removes /* ... */ comments before tokenizing, so that a
// stray brace or semicolon inside a comment never confuses the grammar
// parser's block tracking.
func stripComments(data []byte) []byte {
	if !bytes.Contains(data, []byte("/*")) {
		return data
	}
	var out bytes.Buffer
	out.Grow(len(data))
	for i := 0; i < len(data); {
		if i+1 < len(data) && data[i] == '/' && data[i+1] == '*' {
			end := bytes.Index(data[i+2:], []byte("*/"))
			if end == -1 {
				break
			}
			i += 2 + end + 2
			continue
		}
		out.WriteByte(data[i])
		i++
	}
	return out.Bytes()
}

// splitSelectors reconstructs the selector list text from grammar tokens
// and splits it on commas.
func splitSelectors(data []byte, values []css.Token) []string {
	var sb strings.Builder
	sb.Write(data)
	for _, v := range values {
		sb.Write(v.Data)
	}

	var selectors []string
	for s := range strings.SplitSeq(sb.String(), ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			selectors = append(selectors, s)
		}
	}
	return selectors
}

// parseSimpleSelector accepts only bare tag selectors ("p"), bare class
// selectors (".note") and tag.class selectors ("p.note"); anything with a
// combinator, pseudo-class, attribute selector or ID is rejected.
func parseSimpleSelector(sel string) (tag, class string, ok bool) {
	sel = strings.TrimSpace(sel)
	if sel == "" {
		return "", "", false
	}
	if strings.ContainsAny(sel, " \t\n+~>:[]#") {
		return "", "", false
	}
	if before, after, found := strings.Cut(sel, "."); found {
		return strings.ToLower(before), strings.ToLower(after), true
	}
	return strings.ToLower(sel), "", true
}

// parseDeclarations reads property:value pairs until the enclosing
// ruleset ends or the parser reports an error.
func parseDeclarations(p *css.Parser) []Declaration {
	var decls []Declaration
	for {
		gt, _, data := p.Next()
		switch gt {
		case css.ErrorGrammar, css.EndRulesetGrammar:
			return decls
		case css.DeclarationGrammar:
			name := strings.ToLower(string(data))
			val := joinValueTokens(p.Values())
			if val != "" {
				decls = append(decls, Declaration{Property: name, Value: val})
			}
		}
	}
}

func joinValueTokens(tokens []css.Token) string {
	var parts []string
	for _, t := range tokens {
		if t.TokenType == css.WhitespaceToken {
			if len(parts) > 0 {
				parts = append(parts, " ")
			}
			continue
		}
		parts = append(parts, string(t.Data))
	}
	return strings.ToLower(strings.TrimSpace(strings.Join(parts, "")))
}

// parseDeclarationList parses a bare "prop: value; prop2: value2" string,
// as found in a style="" attribute, without any selector or braces.
func parseDeclarationList(s string) []Declaration {
	var decls []Declaration
	for _, part := range strings.Split(s, ";") {
		prop, val, found := strings.Cut(part, ":")
		if !found {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		val = strings.ToLower(strings.TrimSpace(val))
		if prop == "" || val == "" {
			continue
		}
		decls = append(decls, Declaration{Property: prop, Value: val})
	}
	return decls
}

// skipAtRuleBlock advances past an unsupported @-rule's block.
func skipAtRuleBlock(p *css.Parser) {
	depth := 1
	for depth > 0 {
		gt, _, _ := p.Next()
		switch gt {
		case css.ErrorGrammar:
			return
		case css.BeginAtRuleGrammar, css.BeginRulesetGrammar:
			depth++
		case css.EndAtRuleGrammar, css.EndRulesetGrammar:
			depth--
		}
	}
}

// mediaApplies reports whether an @media prelude names "screen", "all",
// or no media type at all — the only conditions this reader folds in.
func mediaApplies(tokens []css.Token) bool {
	var idents []string
	for _, t := range tokens {
		if t.TokenType == css.IdentToken {
			idents = append(idents, strings.ToLower(string(t.Data)))
		}
	}
	if len(idents) == 0 {
		return true
	}
	for _, id := range idents {
		if id == "screen" || id == "all" {
			return true
		}
	}
	return false
}
