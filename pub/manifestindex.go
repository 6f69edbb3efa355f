package pub

import "bytes"

// manifestIndexThreshold is the manifest item count above which parseOPF
// resolves item lookups through an offset index instead of a fully eager
// map — large, image-heavy EPUBs can carry thousands of manifest entries
// and only a handful (spine hrefs, cover, nav/ncx, stylesheets) are ever
// looked up by id.
const manifestIndexThreshold = 256

// manifestOffset locates one raw "<item ...>" start tag's byte range
// within the package document, keyed by the FNV-1a hash of its id.
type manifestOffset struct {
	start, end int
}

// manifestIndex resolves manifest items lazily by re-slicing and
// attribute-scanning the package document's raw bytes, rather than
// retaining every item's attributes parsed up front.
type manifestIndex struct {
	raw     []byte
	offsets map[uint32]manifestOffset
}

// buildManifestIndex scans raw for every "<item" start tag and records its
// byte range keyed by id hash.
func buildManifestIndex(raw []byte) *manifestIndex {
	idx := &manifestIndex{raw: raw, offsets: make(map[uint32]manifestOffset)}
	base := 0
	for {
		rel := bytes.Index(raw[base:], []byte("<item"))
		if rel < 0 {
			break
		}
		start := base + rel
		relEnd := bytes.IndexByte(raw[start:], '>')
		if relEnd < 0 {
			break
		}
		end := start + relEnd + 1
		if id := attrValue(raw[start:end], "id"); id != "" {
			idx.offsets[fnv1aID(id)] = manifestOffset{start: start, end: end}
		}
		base = end
	}
	return idx
}

// resolve looks up id's manifest item by re-parsing its raw byte range. A
// hash collision (two distinct ids landing on the same bucket) falls back
// to a linear scan so correctness never depends on the hash being unique.
func (idx *manifestIndex) resolve(id string) (manifestItem, bool) {
	if off, ok := idx.offsets[fnv1aID(id)]; ok {
		tag := idx.raw[off.start:off.end]
		if attrValue(tag, "id") == id {
			return manifestItemFromTag(id, tag), true
		}
	}
	return idx.linearResolve(id)
}

func (idx *manifestIndex) linearResolve(id string) (manifestItem, bool) {
	base := 0
	for {
		rel := bytes.Index(idx.raw[base:], []byte("<item"))
		if rel < 0 {
			return manifestItem{}, false
		}
		start := base + rel
		relEnd := bytes.IndexByte(idx.raw[start:], '>')
		if relEnd < 0 {
			return manifestItem{}, false
		}
		end := start + relEnd + 1
		tag := idx.raw[start:end]
		if attrValue(tag, "id") == id {
			return manifestItemFromTag(id, tag), true
		}
		base = end
	}
}

func manifestItemFromTag(id string, tag []byte) manifestItem {
	return manifestItem{
		id:         id,
		href:       attrValue(tag, "href"),
		mediaType:  attrValue(tag, "media-type"),
		properties: attrValue(tag, "properties"),
	}
}

// attrValue extracts a double-quoted attribute value from a single raw
// start tag's bytes with a plain substring scan: manifest items are
// simple, attribute-only elements, so a full XML parse per lookup would
// be pure overhead.
func attrValue(tag []byte, name string) string {
	needle := []byte(name + `="`)
	i := bytes.Index(tag, needle)
	if i < 0 {
		return ""
	}
	rest := tag[i+len(needle):]
	end := bytes.IndexByte(rest, '"')
	if end < 0 {
		return ""
	}
	return string(rest[:end])
}
