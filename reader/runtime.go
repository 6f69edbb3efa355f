package reader

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/text/language"

	"go.uber.org/zap"

	"ereader/archive"
	"ereader/common"
	"ereader/css"
	"ereader/hyphen"
	"ereader/layout"
	"ereader/pub"
	"ereader/rerror"
	"ereader/section"
)

// Options carries the caller's viewport and reading preferences (§6's
// "CLI / user configuration (produced)" struct), resolved once per
// session and reused for every section the runtime opens.
type Options struct {
	FontID                string
	ViewportWidthPx       int
	ViewportHeightPx      int
	LineHeightPx          int
	LineCompression       float64
	Align                 string
	ExtraParagraphSpacing bool
	HyphenationEnabled    bool
	RefreshFrequency      int
}

// Runtime is the reader runtime of §4.7: it tracks the current
// publication, the current spine index and page, and the pages-until-
// full-refresh counter, opening and caching one section at a time.
type Runtime struct {
	pub      *pub.Publication
	cacheDir string
	opts     Options
	oracle   layout.Oracle
	log      *zap.Logger

	cssCompiler *css.Compiler

	spine         int
	page          int
	pageCount     int
	refreshCount  int
	refreshPeriod int
}

// Open builds a Runtime for p, loading the compiled stylesheet cache and
// any saved progress. If no progress has been saved and the publication
// declares a text-start reference, the runtime starts there instead of
// at spine 0.
func Open(ctx context.Context, p *pub.Publication, cacheDir string, oracle layout.Oracle, opts Options, log *zap.Logger) (*Runtime, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.RefreshFrequency <= 0 {
		opts.RefreshFrequency = 1
	}

	cssCompiler := css.NewCompiler(log)
	if f, err := os.Open(filepath.Join(cacheDir, "style.cache")); err == nil {
		err := cssCompiler.LoadCache(f)
		f.Close()
		if err != nil {
			log.Warn("discarding unreadable style cache", zap.Error(err))
			cssCompiler = css.NewCompiler(log)
		}
	}

	rt := &Runtime{
		pub:           p,
		cacheDir:      cacheDir,
		opts:          opts,
		oracle:        oracle,
		log:           log.Named("reader"),
		cssCompiler:   cssCompiler,
		refreshPeriod: opts.RefreshFrequency,
		refreshCount:  opts.RefreshFrequency,
	}

	prog, err := LoadProgress(cacheDir)
	if err != nil {
		return nil, err
	}
	if prog.PageCount == 0 && p.Meta.TextStartRelPath != "" {
		if idx := spineIndexOf(p, p.Meta.TextStartRelPath); idx >= 0 {
			prog.Spine = uint16(idx)
		}
	}
	rt.spine = int(prog.Spine)
	if rt.spine >= len(p.Spine) {
		rt.spine = 0
	}

	if err := rt.openSection(ctx, rt.spine); err != nil {
		return nil, err
	}
	rt.page = int(prog.Page)
	if uint16(rt.pageCount) != prog.PageCount && prog.PageCount > 0 {
		rt.page = int(prog.Reposition(uint16(rt.pageCount)).Page)
	}
	if rt.page >= rt.pageCount {
		rt.page = maxInt(rt.pageCount-1, 0)
	}
	return rt, nil
}

func spineIndexOf(p *pub.Publication, relHref string) int {
	for i, s := range p.Spine {
		if s.Href == relHref {
			return i
		}
	}
	return -1
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// cacheKey is the section-cache keying struct for the runtime's current
// Options, shared by every section this session opens.
func (rt *Runtime) cacheKey() section.CacheKey {
	return section.CacheKey{
		FontID:                rt.opts.FontID,
		ViewportWidthPx:       rt.opts.ViewportWidthPx,
		ViewportHeightPx:      rt.opts.ViewportHeightPx,
		LineHeightPx:          rt.opts.LineHeightPx,
		LineCompression:       rt.opts.LineCompression,
		Align:                 rt.opts.Align,
		ExtraParagraphSpacing: rt.opts.ExtraParagraphSpacing,
		HyphenationEnabled:    rt.opts.HyphenationEnabled,
	}
}

func (rt *Runtime) sectionPath(idx int) string {
	return filepath.Join(rt.cacheDir, "sections", fmt.Sprintf("%d.bin", idx))
}

// openSection loads the section cache for spine index idx, building it
// from the archive if the cache is missing or stale, and sets
// rt.pageCount. It does not move rt.page; callers reposition afterward.
func (rt *Runtime) openSection(ctx context.Context, idx int) error {
	if idx < 0 || idx >= len(rt.pub.Spine) {
		return rerror.New(rerror.PageOutOfRange, "reader.Runtime.openSection", "", fmt.Errorf("spine index %d of %d", idx, len(rt.pub.Spine)))
	}

	sectionPath := rt.sectionPath(idx)
	want := rt.cacheKey()

	cache, err := section.OpenCache(sectionPath, want)
	if err != nil {
		// Missing file, stale key, or corrupt trailer are all treated the
		// same way: rebuild from the archive (§4.6/§9 cache staleness is
		// always "delete and rebuild", never a fatal error).
		if err := rt.buildSection(ctx, idx, sectionPath, want); err != nil {
			return err
		}
		cache, err = section.OpenCache(sectionPath, want)
		if err != nil {
			return err
		}
	}

	rt.pageCount = cache.PageCount()
	rt.spine = idx
	return nil
}

// buildSection streams the chapter at spine index idx through the
// section parser and writes a fresh cache file.
func (rt *Runtime) buildSection(ctx context.Context, idx int, sectionPath string, key section.CacheKey) error {
	if err := os.MkdirAll(filepath.Dir(sectionPath), 0o755); err != nil {
		return fmt.Errorf("create sections dir: %w", err)
	}

	ar, err := archive.Open(rt.pub.ArchivePath)
	if err != nil {
		return rerror.New(rerror.CacheBuildFailed, "reader.Runtime.buildSection", rt.pub.ArchivePath, err)
	}
	defer ar.Close()

	entry := rt.pub.Spine[idx]
	relPath := entry.Href
	data, err := ar.ReadAll(relPath)
	if err != nil {
		return rerror.New(rerror.CacheBuildFailed, "reader.Runtime.buildSection", relPath, err)
	}

	writer, err := section.CreateCache(sectionPath, key)
	if err != nil {
		return rerror.New(rerror.CacheBuildFailed, "reader.Runtime.buildSection", sectionPath, err)
	}

	var lang language.Tag
	if rt.pub.Meta.Language != "" {
		if t, err := language.Parse(rt.pub.Meta.Language); err == nil {
			lang = t
		}
	}
	var hyphenator *hyphen.Hyphenator
	if rt.opts.HyphenationEnabled {
		hyphenator = hyphen.NewHyphenator(lang, rt.log)
	}

	parser := section.NewParser(rt.cssCompiler, rt.oracle, hyphenator, section.Options{
		FontID:                rt.opts.FontID,
		ViewportWidthPx:       rt.opts.ViewportWidthPx,
		ViewportHeightPx:      rt.opts.ViewportHeightPx,
		LineHeightPx:          rt.opts.LineHeightPx,
		LineCompression:       rt.opts.LineCompression,
		Align:                 rt.opts.Align,
		ExtraParagraphSpacing: rt.opts.ExtraParagraphSpacing,
		HyphenationEnabled:    rt.opts.HyphenationEnabled,
	}, rt.log)

	transcoded, err := section.TranscodeToUTF8(bytes.NewReader(data), rt.log)
	if err != nil {
		writer.Abort(sectionPath)
		return rerror.New(rerror.CacheBuildFailed, "reader.Runtime.buildSection", relPath, err)
	}

	var writeErr error
	parseErr := parser.ParseChapter(ctx, transcoded, func(p section.Page) {
		if writeErr != nil {
			return
		}
		writeErr = writer.WritePage(p)
	})
	if parseErr != nil || writeErr != nil {
		writer.Abort(sectionPath)
		if parseErr != nil {
			return rerror.New(rerror.CacheBuildFailed, "reader.Runtime.buildSection", relPath, parseErr)
		}
		return rerror.New(rerror.CacheBuildFailed, "reader.Runtime.buildSection", sectionPath, writeErr)
	}

	if err := writer.Finish(); err != nil {
		return rerror.New(rerror.CacheBuildFailed, "reader.Runtime.buildSection", sectionPath, err)
	}
	return nil
}

// CurrentPage returns the Page at the runtime's current position.
func (rt *Runtime) CurrentPage() (section.Page, error) {
	cache, err := section.OpenCache(rt.sectionPath(rt.spine), rt.cacheKey())
	if err != nil {
		return section.Page{}, err
	}
	return cache.Page(rt.page)
}

// Spine, PageIndex, and PageCount report the runtime's current position.
func (rt *Runtime) Spine() int     { return rt.spine }
func (rt *Runtime) PageIndex() int { return rt.page }
func (rt *Runtime) PageCount() int { return rt.pageCount }

// refreshModeForRender reports the refresh hint for the page about to
// render and advances the counter, resetting it to the configured
// frequency on every full refresh.
func (rt *Runtime) refreshModeForRender() common.RefreshMode {
	rt.refreshCount--
	if rt.refreshCount <= 0 {
		rt.refreshCount = rt.refreshPeriod
		return common.RefreshFull
	}
	return common.RefreshPartial
}

// NextPage advances to the next page, crossing a section boundary when
// the current section is exhausted.
func (rt *Runtime) NextPage(ctx context.Context) (common.RefreshMode, error) {
	if rt.page+1 < rt.pageCount {
		rt.page++
		return rt.refreshModeForRender(), nil
	}
	if rt.spine+1 >= len(rt.pub.Spine) {
		return common.RefreshPartial, rerror.New(rerror.PageOutOfRange, "reader.Runtime.NextPage", "", fmt.Errorf("already at last page"))
	}
	if err := rt.openSection(ctx, rt.spine+1); err != nil {
		return common.RefreshPartial, err
	}
	rt.page = 0
	return rt.refreshModeForRender(), nil
}

// PrevPage retreats to the previous page, crossing a section boundary
// backward when already at the first page of the current section (in
// which case it lands on the new section's last page).
func (rt *Runtime) PrevPage(ctx context.Context) (common.RefreshMode, error) {
	if rt.page > 0 {
		rt.page--
		return rt.refreshModeForRender(), nil
	}
	if rt.spine == 0 {
		return common.RefreshPartial, rerror.New(rerror.PageOutOfRange, "reader.Runtime.PrevPage", "", fmt.Errorf("already at first page"))
	}
	if err := rt.openSection(ctx, rt.spine-1); err != nil {
		return common.RefreshPartial, err
	}
	rt.page = maxInt(rt.pageCount-1, 0)
	return rt.refreshModeForRender(), nil
}

// GoToSpine jumps to spine index idx, resetting the page to 0.
func (rt *Runtime) GoToSpine(ctx context.Context, idx int) error {
	if err := rt.openSection(ctx, idx); err != nil {
		return err
	}
	rt.page = 0
	return nil
}

// GoToPercent jumps to the spine index whose cumulative content offset
// first reaches p percent of the book's total size, then positions the
// page proportionally within that section once its page count is known,
// per §4.7.
func (rt *Runtime) GoToPercent(ctx context.Context, p float64) error {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	target := p / 100 * float64(rt.pub.TotalSize())

	idx := sort.Search(len(rt.pub.Spine), func(i int) bool {
		return float64(rt.pub.Spine[i].CumulativeSize) >= target
	})
	if idx >= len(rt.pub.Spine) {
		idx = len(rt.pub.Spine) - 1
	}

	var sectionStart float64
	if idx > 0 {
		sectionStart = float64(rt.pub.Spine[idx-1].CumulativeSize)
	}
	sectionBytes := float64(rt.pub.Spine[idx].CumulativeSize) - sectionStart
	var fraction float64
	if sectionBytes > 0 {
		fraction = (target - sectionStart) / sectionBytes
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	if err := rt.openSection(ctx, idx); err != nil {
		return err
	}
	rt.page = int(fraction * float64(rt.pageCount))
	if rt.page >= rt.pageCount {
		rt.page = maxInt(rt.pageCount-1, 0)
	}
	return nil
}

// ProgressFraction reports reading progress in [0,1] for a page at
// fractional position pageFraction (pageIndex/pageCount) within the
// current spine section, per §4.7.
func (rt *Runtime) ProgressFraction(pageFraction float64) float64 {
	total := rt.pub.TotalSize()
	if total == 0 {
		return 0
	}
	var prevCumulative uint32
	if rt.spine > 0 {
		prevCumulative = rt.pub.Spine[rt.spine-1].CumulativeSize
	}
	sectionBytes := rt.pub.Spine[rt.spine].CumulativeSize - prevCumulative
	frac := (float64(prevCumulative) + pageFraction*float64(sectionBytes)) / float64(total)
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return frac
}

// SaveProgress persists the runtime's current position.
func (rt *Runtime) SaveProgress() error {
	return SaveProgress(rt.cacheDir, Progress{
		Spine:     uint16(rt.spine),
		Page:      uint16(rt.page),
		PageCount: uint16(rt.pageCount),
	})
}
