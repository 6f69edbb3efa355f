package pub

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/beevik/etree"

	"ereader/rerror"
)

// opfResult is everything parseOPF extracts from the package document
// before the TOC and book binary passes run.
type opfResult struct {
	meta        CoreMetadata
	manifest    map[string]manifestItem // keyed by manifest item id
	index       *manifestIndex          // non-nil only above manifestIndexThreshold items
	contentBase string
	spineHrefs  []string // archive-relative (content base joined in), in spine order
	stylesheets []string // archive-relative (content base joined in)
	ncxPath     string   // archive-relative (content base joined in), resolved from spine's toc attribute
	navPath     string   // archive-relative (content base joined in), resolved from a manifest item with properties="nav"
	coverHref   string   // archive-relative (content base joined in), empty if undetected
}

// findItem resolves a manifest item by id, through the offset index for
// large manifests or the eager map otherwise. The index path returns a raw,
// un-joined href, so it is normalized against contentBase here, matching
// what the eager map already stores.
func (r *opfResult) findItem(id string) (manifestItem, bool) {
	if r.index != nil {
		mi, ok := r.index.resolve(id)
		if ok {
			mi.href = path.Join(r.contentBase, mi.href)
		}
		return mi, ok
	}
	mi, ok := r.manifest[id]
	return mi, ok
}

// parseOPF parses the package document at data (the rootfile contents) and
// returns everything needed to build spine, TOC, and metadata. contentBase
// is the directory portion of the rootfile path; every href in the manifest
// and spine is relative to it, and every returned path has contentBase
// joined in, so it is relative to the archive root rather than to
// contentBase.
func parseOPF(data []byte, contentBase, archivePath string) (*opfResult, error) {
	doc, err := readXML(bytes.NewReader(data))
	if err != nil {
		return nil, rerror.New(rerror.CacheBuildFailed, "pub.parseOPF", archivePath, err)
	}
	pkg := doc.SelectElement("package")
	if pkg == nil {
		return nil, rerror.New(rerror.CacheBuildFailed, "pub.parseOPF", archivePath, fmt.Errorf("missing <package> root"))
	}

	res := &opfResult{manifest: make(map[string]manifestItem), contentBase: contentBase}

	metadataEl := pkg.SelectElement("metadata")
	if metadataEl != nil {
		res.meta = parseMetadata(metadataEl)
	}

	var manifestEl, spineEl, guideEl *etree.Element
	for _, child := range pkg.ChildElements() {
		switch localName(child.Tag) {
		case "manifest":
			manifestEl = child
		case "spine":
			spineEl = child
		case "guide":
			guideEl = child
		}
	}
	if manifestEl == nil {
		return nil, rerror.New(rerror.CacheBuildFailed, "pub.parseOPF", archivePath, fmt.Errorf("missing <manifest>"))
	}
	if spineEl == nil {
		return nil, rerror.New(rerror.CacheBuildFailed, "pub.parseOPF", archivePath, fmt.Errorf("missing <spine>"))
	}

	var coverItemID string
	for _, item := range manifestEl.ChildElements() {
		if localName(item.Tag) != "item" {
			continue
		}
		id := item.SelectAttrValue("id", "")
		href := item.SelectAttrValue("href", "")
		if id == "" || href == "" {
			continue
		}
		mi := manifestItem{
			id:         id,
			href:       path.Join(contentBase, href),
			mediaType:  item.SelectAttrValue("media-type", ""),
			properties: item.SelectAttrValue("properties", ""),
		}
		res.manifest[id] = mi

		if strings.Contains(mi.mediaType, "css") {
			res.stylesheets = append(res.stylesheets, mi.href)
		}
		if hasProperty(mi.properties, "nav") {
			res.navPath = mi.href
		}
		if hasProperty(mi.properties, "cover-image") {
			coverItemID = id
		}
		if id == "cover" && strings.HasPrefix(mi.mediaType, "image/") && coverItemID == "" {
			coverItemID = id
		}
	}

	if len(res.manifest) > manifestIndexThreshold {
		res.index = buildManifestIndex(data)
	}

	if tocAttr := spineEl.SelectAttrValue("toc", ""); tocAttr != "" {
		if mi, ok := res.findItem(tocAttr); ok {
			res.ncxPath = mi.href
		}
	}

	for _, itemref := range spineEl.ChildElements() {
		if localName(itemref.Tag) != "itemref" {
			continue
		}
		idref := itemref.SelectAttrValue("idref", "")
		mi, ok := res.findItem(idref)
		if !ok {
			continue
		}
		res.spineHrefs = append(res.spineHrefs, mi.href)
	}

	if coverItemID == "" && guideEl != nil {
		for _, ref := range guideEl.ChildElements() {
			if localName(ref.Tag) != "reference" {
				continue
			}
			if ref.SelectAttrValue("type", "") == "cover" {
				href := ref.SelectAttrValue("href", "")
				if href != "" {
					res.coverHref = path.Join(contentBase, stripFragment(href))
				}
			}
		}
	}
	if coverItemID != "" {
		res.coverHref = res.manifest[coverItemID].href
	}

	return res, nil
}

func parseMetadata(el *etree.Element) CoreMetadata {
	var m CoreMetadata
	for _, child := range el.ChildElements() {
		switch localName(child.Tag) {
		case "title":
			if m.Title == "" {
				m.Title = strings.TrimSpace(child.Text())
			}
		case "creator":
			if m.Author == "" {
				m.Author = strings.TrimSpace(child.Text())
			}
		case "language":
			if m.Language == "" {
				m.Language = strings.TrimSpace(child.Text())
			}
		}
	}
	return m
}

// localName strips a namespace prefix ("dc:title" -> "title").
func localName(tag string) string {
	if i := strings.IndexByte(tag, ':'); i >= 0 {
		return tag[i+1:]
	}
	return tag
}

func hasProperty(properties, want string) bool {
	for _, p := range strings.Fields(properties) {
		if p == want {
			return true
		}
	}
	return false
}

func stripFragment(href string) string {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		return href[:i]
	}
	return href
}
