package pub

import (
	"bytes"
	"context"
	"os"
	"path"
	"path/filepath"

	"go.uber.org/zap"

	"ereader/archive"
	"ereader/css"
	"ereader/rerror"
)

// CoverExtractor is implemented by the cover/thumbnail package and invoked
// with the raw cover image bytes once Build has located them. Declared here
// rather than imported from a concrete package so pub never depends on
// cover's decoding/resizing stack — only the orchestration order does.
type CoverExtractor interface {
	ExtractCover(data []byte, cacheDir string) error
}

// Build indexes the EPUB archive at archivePath into a Publication, writing
// its cache (book.bin, compiled stylesheet, cover artifact) under
// cacheRoot/<CacheDirName>. Following §4.1: locate the rootfile, parse the
// package document, resolve the TOC, build the book binary with cumulative
// spine sizes, compile CSS, then extract the cover — the last two steps are
// best-effort and never fail the whole build.
func Build(ctx context.Context, archivePath, cacheRoot string, cover CoverExtractor, log *zap.Logger) (*Publication, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ar, err := archive.Open(archivePath)
	if err != nil {
		return nil, rerror.New(rerror.NotAnEpub, "pub.Build", archivePath, err)
	}
	defer ar.Close()

	containerData, err := ar.ReadAll("META-INF/container.xml")
	if err != nil {
		return nil, rerror.New(rerror.NotAnEpub, "pub.Build", archivePath, err)
	}
	rootfile, err := rootfilePath(bytes.NewReader(containerData), archivePath)
	if err != nil {
		return nil, err
	}

	opfData, err := ar.ReadAll(rootfile)
	if err != nil {
		return nil, rerror.New(rerror.NotAnEpub, "pub.Build", archivePath, err)
	}
	contentBase := path.Dir(rootfile)
	if contentBase == "." {
		contentBase = ""
	}

	opf, err := parseOPF(opfData, contentBase, archivePath)
	if err != nil {
		return nil, err
	}

	var tocSources []tocSourceEntry
	if opf.navPath != "" {
		if data, err := ar.ReadAll(opf.navPath); err == nil {
			tocSources, _ = parseNav(data, contentBase)
		}
	}
	if len(tocSources) == 0 && opf.ncxPath != "" {
		if data, err := ar.ReadAll(opf.ncxPath); err == nil {
			tocSources, _ = parseNCX(data, contentBase)
		}
	}

	spine := make([]SpineEntry, len(opf.spineHrefs))
	var cumulative uint64
	for i, href := range opf.spineHrefs {
		size, err := ar.InflatedSize(href)
		if err != nil {
			log.Warn("spine entry missing from archive, treating as zero-length", zap.String("href", href))
		}
		cumulative += size
		spine[i] = SpineEntry{Href: href, CumulativeSize: uint32(cumulative), TOCIndex: -1}
	}

	toc := resolveTOC(tocSources, opf.spineHrefs)
	crossLinkSpine(spine, toc)

	meta := opf.meta
	meta.CoverRelPath = opf.coverHref
	if len(spine) > 0 {
		meta.TextStartRelPath = spine[0].Href
	}

	pub := &Publication{
		ArchivePath:  archivePath,
		ContentBase:  contentBase,
		Stylesheets:  opf.stylesheets,
		NCXPath:      opf.ncxPath,
		NavPath:      opf.navPath,
		CacheKey:     cacheKey(archivePath),
		CacheDirName: cacheDirName(archivePath),
		Meta:         meta,
		Spine:        spine,
		TOC:          toc,
	}

	cacheDir := filepath.Join(cacheRoot, pub.CacheDirName)
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, rerror.New(rerror.CacheBuildFailed, "pub.Build", archivePath, err)
	}

	bookPath := filepath.Join(cacheDir, "book.bin")
	if err := SaveBook(bookPath, pub.Meta, pub.Spine, pub.TOC); err != nil {
		_ = os.RemoveAll(cacheDir)
		return nil, rerror.New(rerror.CacheBuildFailed, "pub.Build", archivePath, err)
	}

	if err := compileCSS(ar, pub.Stylesheets, cacheDir, log); err != nil {
		log.Warn("css compile failed, continuing without styles", zap.Error(err))
	}

	if cover != nil && pub.Meta.CoverRelPath != "" {
		data, err := ar.ReadAll(pub.Meta.CoverRelPath)
		if err != nil {
			log.Warn("cover declared but unreadable", zap.String("path", pub.Meta.CoverRelPath), zap.Error(err))
		} else if err := cover.ExtractCover(data, cacheDir); err != nil {
			log.Warn("cover extraction failed, continuing without a cover", zap.Error(err))
		}
	}

	return pub, nil
}

// compileCSS streams every stylesheet into one css.Compiler and persists
// the merged cascade to cacheDir/style.cache, so later section parses
// never re-parse CSS source.
func compileCSS(ar *archive.Reader, stylesheets []string, cacheDir string, log *zap.Logger) error {
	compiler := css.NewCompiler(log)
	for _, sheet := range stylesheets {
		data, err := ar.ReadAll(sheet)
		if err != nil {
			log.Warn("stylesheet missing from archive, skipping", zap.String("path", sheet))
			continue
		}
		if err := compiler.LoadStream(bytes.NewReader(data)); err != nil {
			log.Warn("stylesheet failed to parse, skipping", zap.String("path", sheet), zap.Error(err))
		}
	}
	f, err := os.Create(filepath.Join(cacheDir, "style.cache"))
	if err != nil {
		return err
	}
	defer f.Close()
	return compiler.SaveCache(f)
}
