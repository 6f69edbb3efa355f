package pub

import (
	"bytes"
	"path"
	"strings"

	"github.com/beevik/etree"
)

// tocSourceEntry is one TOC entry before its href has been resolved to a
// spine index.
type tocSourceEntry struct {
	title string
	level uint8
	href  string // archive-relative (content base joined in), fragment stripped
}

// parseNCX walks an EPUB2 NCX's <navMap> into a flat, document-order list.
// NCX has no inherent nesting depth signal beyond <navPoint> nesting, so
// level tracks recursion depth directly.
func parseNCX(data []byte, contentBase string) ([]tocSourceEntry, error) {
	doc, err := readXML(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	navMap := doc.SelectElement("navMap")
	if navMap == nil {
		if root := doc.Root(); root != nil {
			navMap = root.SelectElement("navMap")
		}
	}
	if navMap == nil {
		return nil, nil
	}
	var out []tocSourceEntry
	walkNavPoints(navMap, 1, contentBase, &out)
	return out, nil
}

func walkNavPoints(parent *etree.Element, level uint8, contentBase string, out *[]tocSourceEntry) {
	for _, np := range parent.ChildElements() {
		if localName(np.Tag) != "navPoint" {
			continue
		}
		var title, src string
		if labelEl := np.SelectElement("navLabel"); labelEl != nil {
			if textEl := labelEl.SelectElement("text"); textEl != nil {
				title = strings.TrimSpace(textEl.Text())
			}
		}
		if contentEl := np.SelectElement("content"); contentEl != nil {
			src = contentEl.SelectAttrValue("src", "")
		}
		if src != "" {
			*out = append(*out, tocSourceEntry{
				title: title,
				level: level,
				href:  path.Join(contentBase, stripFragment(src)),
			})
		}
		walkNavPoints(np, level+1, contentBase, out)
	}
}

// parseNav walks an EPUB3 Nav document's toc <nav>, tracking nested <ol>
// depth as the TOC level.
func parseNav(data []byte, contentBase string) ([]tocSourceEntry, error) {
	doc, err := readXML(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var tocNav *etree.Element
	for _, nav := range doc.FindElements("//nav") {
		typ := nav.SelectAttrValue("epub:type", nav.SelectAttrValue("type", ""))
		if strings.Contains(typ, "toc") {
			tocNav = nav
			break
		}
	}
	if tocNav == nil {
		return nil, nil
	}
	ol := tocNav.SelectElement("ol")
	if ol == nil {
		return nil, nil
	}
	var out []tocSourceEntry
	walkNavList(ol, 1, contentBase, &out)
	return out, nil
}

func walkNavList(ol *etree.Element, level uint8, contentBase string, out *[]tocSourceEntry) {
	for _, li := range ol.ChildElements() {
		if localName(li.Tag) != "li" {
			continue
		}
		var title, href string
		if a := li.SelectElement("a"); a != nil {
			title = strings.TrimSpace(a.Text())
			href = a.SelectAttrValue("href", "")
		}
		if href != "" {
			*out = append(*out, tocSourceEntry{
				title: title,
				level: level,
				href:  path.Join(contentBase, stripFragment(href)),
			})
		}
		if childOl := li.SelectElement("ol"); childOl != nil {
			walkNavList(childOl, level+1, contentBase, out)
		}
	}
}

// resolveTOC cross-links TOC source entries to spine indices by href
// suffix match (the fragment is already stripped), and fills each spine
// entry's TOCIndex with the smallest TOC index mapping there.
func resolveTOC(sources []tocSourceEntry, spineHrefs []string) []TOCEntry {
	entries := make([]TOCEntry, len(sources))
	for i, src := range sources {
		entries[i] = TOCEntry{
			Title:      src.title,
			Level:      src.level,
			SpineIndex: resolveSpineIndex(src.href, spineHrefs),
		}
	}
	return entries
}

func resolveSpineIndex(href string, spineHrefs []string) int32 {
	for i, sh := range spineHrefs {
		if sh == href || strings.HasSuffix(sh, "/"+href) || strings.HasSuffix(href, "/"+sh) {
			return int32(i)
		}
	}
	return -1
}

// crossLinkSpine fills each spine entry's TOCIndex with the smallest TOC
// index that maps to it, leaving -1 where no TOC entry resolved there.
func crossLinkSpine(spine []SpineEntry, toc []TOCEntry) {
	for i := range spine {
		spine[i].TOCIndex = -1
	}
	for ti, t := range toc {
		if t.SpineIndex < 0 || int(t.SpineIndex) >= len(spine) {
			continue
		}
		si := spine[t.SpineIndex]
		if si.TOCIndex == -1 || int32(ti) < si.TOCIndex {
			spine[t.SpineIndex].TOCIndex = int32(ti)
		}
	}
}
