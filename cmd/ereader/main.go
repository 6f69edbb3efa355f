package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"ereader/config"
	"ereader/cover"
	"ereader/misc"
	"ereader/pub"
	"ereader/reader"
	"ereader/state"
	"ereader/utils/debug"
)

// initializeAppContext prepares the application context before command
// execution, the same two-phase shape as the teacher's fbc harness:
// parse flags, resolve configuration, stand up logging/reporting, then
// hand a populated LocalEnv down through ctx.
func initializeAppContext(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	var err error

	if cmd.NArg() == 0 {
		return ctx, nil
	}

	env := state.EnvFromContext(ctx)

	configFile := cmd.String("config")
	if env.Cfg, err = config.LoadConfiguration(configFile); err != nil {
		return ctx, fmt.Errorf("unable to prepare configuration: %w", err)
	}

	if root := cmd.String("cache-root"); root != "" {
		env.CacheRoot = root
		env.Cfg.Cache.Root = root
	}
	if w := cmd.Int("viewport-width"); w > 0 {
		env.Cfg.Viewport.Width = int(w)
	}
	if h := cmd.Int("viewport-height"); h > 0 {
		env.Cfg.Viewport.Height = int(h)
	}
	if fontID := cmd.Int("font-id"); fontID >= 0 {
		env.Cfg.Layout.FontID = int(fontID)
	}
	if cmd.IsSet("hyphenation") {
		env.Cfg.Layout.HyphenationEnabled = cmd.Bool("hyphenation")
	}
	if lvl := cmd.String("log-level"); lvl != "" {
		env.Cfg.Logging.ConsoleLogger.Level = lvl
	}

	env.Debug = cmd.Bool("debug")
	if env.Debug {
		if env.Rpt, err = env.Cfg.Reporting.Prepare(); err != nil {
			return ctx, fmt.Errorf("unable to prepare debug reporter: %w", err)
		}
	}
	if env.Log, err = env.Cfg.Logging.Prepare(env.Rpt); err != nil {
		return ctx, fmt.Errorf("unable to prepare logs: %w", err)
	}
	env.RedirectStdLog()

	env.Log.Debug("Program started", zap.Strings("args", os.Args), zap.String("ver", misc.GetVersion()), zap.String("runtime", runtime.Version()), zap.String("hash", misc.GetGitHash()))
	return ctx, nil
}

func destroyAppContext(ctx context.Context, cmd *cli.Command) (err error) {
	env := state.EnvFromContext(ctx)
	if env.Log != nil {
		env.Log.Debug("Program ended", zap.Duration("elapsed", env.Uptime()))
	}
	env.RestoreStdLog()
	if env.Rpt != nil {
		if er := env.Rpt.Close(); er != nil {
			err = multierr.Append(err, fmt.Errorf("unable to close debug report: %w", er))
		}
	}
	return err
}

var errWasHandled bool

func exitErrHandler(ctx context.Context, _ *cli.Command, err error) {
	env := state.EnvFromContext(ctx)
	if env.Log != nil {
		env.Log.Error("Program ended with error", zap.Error(err))
		errWasHandled = true
	}
}

func usageErrorHandler(_ context.Context, _ *cli.Command, err error, _ bool) error {
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(state.ContextWithEnv(context.Background()), os.Interrupt, syscall.SIGTERM)

	app := &cli.Command{
		Name:            misc.GetAppName(),
		Usage:           "scriptable harness for the e-reader core: index, paginate, and inspect rendered pages",
		Version:         misc.GetVersion() + " (" + runtime.Version() + ")",
		HideHelpCommand: true,
		Before:          initializeAppContext,
		After:           destroyAppContext,
		OnUsageError:    usageErrorHandler,
		ExitErrHandler:  exitErrHandler,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "load configuration from `FILE` (YAML)"},
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "produce a debug report archive alongside the requested operation"},
			&cli.StringFlag{Name: "cache-root", Usage: "override the persisted-state cache root `DIR`"},
			&cli.IntFlag{Name: "viewport-width", Usage: "override configured viewport width in pixels"},
			&cli.IntFlag{Name: "viewport-height", Usage: "override configured viewport height in pixels"},
			&cli.IntFlag{Name: "font-id", Value: -1, Usage: "override configured font id"},
			&cli.BoolFlag{Name: "hyphenation", Usage: "override configured hyphenation setting"},
			&cli.StringFlag{Name: "log-level", Usage: "console log level: none, normal, debug"},
		},
		Commands: []*cli.Command{
			{
				Name:         "index",
				Usage:        "Index an EPUB and print its metadata, spine, and table of contents",
				ArgsUsage:    "EPUB",
				OnUsageError: usageErrorHandler,
				Action:       runIndex,
			},
			{
				Name:         "paginate",
				Usage:        "Paginate one spine section against the configured viewport and print page counts",
				ArgsUsage:    "EPUB SPINE-INDEX",
				OnUsageError: usageErrorHandler,
				Action:       runPaginate,
			},
			{
				Name:         "page",
				Usage:        "Print one rendered page's lines and images",
				ArgsUsage:    "EPUB SPINE-INDEX PAGE-INDEX",
				OnUsageError: usageErrorHandler,
				Action:       runPage,
			},
		},
	}

	var err error
	defer func() {
		stop()
		if err != nil {
			if !errWasHandled {
				fmt.Fprintf(os.Stderr, "Program ended with error: %v\n", err)
			}
			os.Exit(1)
		}
	}()
	err = app.Run(ctx, os.Args)
}

// openPublication builds (or reuses, via the existing book/style caches)
// the Publication for the EPUB at path, wiring the cover extractor the
// same way pub.Build expects from any caller.
func openPublication(ctx context.Context, env *state.LocalEnv, path string) (*pub.Publication, error) {
	cacheRoot := env.Cfg.Cache.Root
	if env.CacheRoot != "" {
		cacheRoot = env.CacheRoot
	}
	coverExtractor := cover.New(env.Cfg.Viewport, env.Cfg.Cover, env.Log)
	return pub.Build(ctx, path, cacheRoot, coverExtractor, env.Log)
}

func runIndex(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	if cmd.Args().Len() < 1 {
		return fmt.Errorf("index requires an EPUB path")
	}
	epubPath := cmd.Args().Get(0)

	p, err := openPublication(ctx, env, epubPath)
	if err != nil {
		return fmt.Errorf("unable to index %q: %w", epubPath, err)
	}

	fmt.Printf("Title:    %s\n", p.Meta.Title)
	fmt.Printf("Author:   %s\n", p.Meta.Author)
	fmt.Printf("Language: %s\n", p.Meta.Language)
	fmt.Printf("Spine (%d entries):\n", len(p.Spine))
	for i, s := range p.Spine {
		fmt.Printf("  [%d] %s (cumulative size %d)\n", i, s.Href, s.CumulativeSize)
	}
	tw := debug.NewTreeWriter()
	tw.Line(0, "Table of contents (%d entries):", len(p.TOC))
	for _, e := range p.TOC {
		tw.Line(int(e.Level), "%s -> spine %d", e.Title, e.SpineIndex)
	}
	fmt.Print(tw.String())
	return nil
}

func runtimeOptionsFromConfig(env *state.LocalEnv) reader.Options {
	w, h := env.Cfg.Viewport.EffectiveViewport()
	return reader.Options{
		FontID:                strconv.Itoa(env.Cfg.Layout.FontID),
		ViewportWidthPx:       w,
		ViewportHeightPx:      h,
		LineHeightPx:          int(16 * env.Cfg.Layout.LineCompression),
		LineCompression:       float64(env.Cfg.Layout.LineCompression),
		Align:                 env.Cfg.Layout.Alignment.String(),
		ExtraParagraphSpacing: env.Cfg.Layout.ExtraParagraphSpacing,
		HyphenationEnabled:    env.Cfg.Layout.HyphenationEnabled,
		RefreshFrequency:      env.Cfg.Refresh.Frequency,
	}
}

func openRuntime(ctx context.Context, env *state.LocalEnv, epubPath string) (*reader.Runtime, *pub.Publication, error) {
	p, err := openPublication(ctx, env, epubPath)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to index %q: %w", epubPath, err)
	}
	cacheRoot := env.Cfg.Cache.Root
	if env.CacheRoot != "" {
		cacheRoot = env.CacheRoot
	}
	cacheDir := filepath.Join(cacheRoot, p.CacheDirName)

	rt, err := reader.Open(ctx, p, cacheDir, newBasicOracle(), runtimeOptionsFromConfig(env), env.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to open reader runtime: %w", err)
	}
	return rt, p, nil
}

func runPaginate(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	if cmd.Args().Len() < 2 {
		return fmt.Errorf("paginate requires EPUB and SPINE-INDEX")
	}
	epubPath := cmd.Args().Get(0)
	spineIdx, err := strconv.Atoi(cmd.Args().Get(1))
	if err != nil {
		return fmt.Errorf("invalid spine index %q: %w", cmd.Args().Get(1), err)
	}

	rt, _, err := openRuntime(ctx, env, epubPath)
	if err != nil {
		return err
	}
	if err := rt.GoToSpine(ctx, spineIdx); err != nil {
		return fmt.Errorf("unable to go to spine %d: %w", spineIdx, err)
	}

	count := rt.PageCount()
	fmt.Printf("Spine %d: %d page(s)\n", spineIdx, count)
	for i := 0; i < count; i++ {
		page, err := rt.CurrentPage()
		if err != nil {
			return fmt.Errorf("unable to load page %d: %w", i, err)
		}
		fmt.Printf("  page %d: %d line(s), %d image(s)\n", i, len(page.Lines), len(page.Images))
		for _, line := range page.Lines {
			var text strings.Builder
			for _, w := range line.Words {
				if text.Len() > 0 {
					text.WriteByte(' ')
				}
				text.WriteString(w.Text)
			}
			env.Log.Debug("line", zap.Int("page", i), zap.Int("x", line.X), zap.Int("y", line.Y), zap.String("text", text.String()))
		}
		if i < count-1 {
			if _, err := rt.NextPage(ctx); err != nil {
				return fmt.Errorf("unable to advance past page %d: %w", i, err)
			}
		}
	}
	return nil
}

func runPage(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	if cmd.Args().Len() < 3 {
		return fmt.Errorf("page requires EPUB, SPINE-INDEX, and PAGE-INDEX")
	}
	epubPath := cmd.Args().Get(0)
	spineIdx, err := strconv.Atoi(cmd.Args().Get(1))
	if err != nil {
		return fmt.Errorf("invalid spine index %q: %w", cmd.Args().Get(1), err)
	}
	pageIdx, err := strconv.Atoi(cmd.Args().Get(2))
	if err != nil {
		return fmt.Errorf("invalid page index %q: %w", cmd.Args().Get(2), err)
	}

	rt, _, err := openRuntime(ctx, env, epubPath)
	if err != nil {
		return err
	}
	if err := rt.GoToSpine(ctx, spineIdx); err != nil {
		return fmt.Errorf("unable to go to spine %d: %w", spineIdx, err)
	}
	if pageIdx >= rt.PageCount() {
		return fmt.Errorf("page %d out of range (spine %d has %d pages)", pageIdx, spineIdx, rt.PageCount())
	}
	for rt.PageIndex() < pageIdx {
		if _, err := rt.NextPage(ctx); err != nil {
			return fmt.Errorf("unable to advance to page %d: %w", pageIdx, err)
		}
	}

	page, err := rt.CurrentPage()
	if err != nil {
		return fmt.Errorf("unable to load page %d: %w", pageIdx, err)
	}
	fmt.Printf("Spine %d, page %d: %d line(s), %d image(s)\n", spineIdx, pageIdx, len(page.Lines), len(page.Images))
	for _, line := range page.Lines {
		var text strings.Builder
		for _, w := range line.Words {
			if text.Len() > 0 {
				text.WriteByte(' ')
			}
			text.WriteString(w.Text)
		}
		fmt.Printf("  [%d,%d] %s\n", line.X, line.Y, text.String())
	}
	for _, img := range page.Images {
		fmt.Printf("  image [%d,%d] %dx%d %s\n", img.X, img.Y, img.W, img.H, img.Path)
	}
	return nil
}
