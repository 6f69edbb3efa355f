package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"ereader/common"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	// ViewportConfig is the display geometry the layout engine lays pages
	// out against, before the reader runtime subtracts screen margin and
	// chrome (status bar, progress bar) to compute the final effective
	// viewport (see SPEC_FULL.md §9 on keeping those concerns separate).
	ViewportConfig struct {
		Width  int `yaml:"width" validate:"min=1"`
		Height int `yaml:"height" validate:"min=1"`
		Margin int `yaml:"screen_margin" validate:"min=0"`
		// StatusBarHeight and ProgressBarHeight are chrome rows reserved
		// by the caller's UI; the core never draws them, but subtracts
		// them once, up front, from the viewport it paginates against.
		StatusBarHeight   int `yaml:"status_bar_height" validate:"min=0"`
		ProgressBarHeight int `yaml:"progress_bar_height" validate:"min=0"`
	}

	// LayoutConfig controls the font and paragraph-shaping parameters
	// that key the section cache (§3 "Section cache file").
	LayoutConfig struct {
		FontID                int             `yaml:"font_id" validate:"min=0"`
		LineCompression       float32         `yaml:"line_compression" validate:"gt=0"`
		ExtraParagraphSpacing bool            `yaml:"extra_paragraph_spacing"`
		Alignment             common.Alignment `yaml:"-"`
		AlignmentName         string          `yaml:"alignment"`
		HyphenationEnabled    bool            `yaml:"hyphenation_enabled"`
		EmbeddedStyle         bool            `yaml:"embedded_style"`
		ForceBold             bool            `yaml:"force_bold"`
	}

	// RefreshConfig controls how often the reader asks the display for a
	// full (flicker, clean) refresh versus a fast partial one.
	RefreshConfig struct {
		Frequency int `yaml:"refresh_frequency" validate:"min=1"`
	}

	// CacheConfig locates the persisted-state root directory (§6
	// "Persisted state layout").
	CacheConfig struct {
		Root string `yaml:"root" validate:"required"`
	}

	// CoverConfig controls cover-thumbnail generation (§4.10).
	CoverConfig struct {
		ThumbnailHeight int         `yaml:"thumbnail_height" validate:"min=0"`
		PlaneFormat     common.PlaneFormat `yaml:"-"`
		PlaneFormatName string      `yaml:"plane_format"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Viewport  ViewportConfig `yaml:"viewport"`
		Layout    LayoutConfig   `yaml:"layout"`
		Refresh   RefreshConfig  `yaml:"refresh"`
		Cache     CacheConfig    `yaml:"cache"`
		Cover     CoverConfig    `yaml:"cover"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

// EffectiveViewport returns the final rectangle layout and the section
// parser are allowed to paginate against: screen size minus screen margin
// minus reserved chrome rows. Computing this once here, rather than inside
// layout or the section parser, is the fix for the legacy mixed-margin
// behavior called out in SPEC_FULL.md §9.
func (c *ViewportConfig) EffectiveViewport() (width, height int) {
	width = c.Width - 2*c.Margin
	height = c.Height - 2*c.Margin - c.StatusBarHeight - c.ProgressBarHeight
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return width, height
}

func unmarshalConfig(data []byte, cfg *Config) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	return cfg, nil
}

// resolveEnums converts the human-readable yaml enum names into their
// typed values and validates the whole struct. Kept as an explicit pass
// (rather than a generated sanitize/validate step) since this repo has no
// equivalent of a struct-tag validation generator to lean on.
func resolveEnums(cfg *Config) error {
	align, err := common.ParseAlignment(cfg.Layout.AlignmentName)
	if err != nil {
		return fmt.Errorf("layout.alignment: %w", err)
	}
	cfg.Layout.Alignment = align

	switch cfg.Cover.PlaneFormatName {
	case "", "1bit":
		cfg.Cover.PlaneFormat = common.Plane1Bit
	case "2bit":
		cfg.Cover.PlaneFormat = common.Plane2Bit
	default:
		return fmt.Errorf("cover.plane_format: unknown value %q", cfg.Cover.PlaneFormatName)
	}
	return Validate(cfg)
}

// Validate performs the hand-rolled equivalent of the struct-tag
// validation a generated validator would have done, checking the
// invariants the `validate:` tags above document.
func Validate(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d", cfg.Version)
	}
	if cfg.Viewport.Width < 1 || cfg.Viewport.Height < 1 {
		return fmt.Errorf("viewport dimensions must be positive")
	}
	if cfg.Viewport.Margin < 0 || cfg.Viewport.StatusBarHeight < 0 || cfg.Viewport.ProgressBarHeight < 0 {
		return fmt.Errorf("viewport margins must not be negative")
	}
	if cfg.Layout.FontID < 0 {
		return fmt.Errorf("layout.font_id must not be negative")
	}
	if cfg.Layout.LineCompression <= 0 {
		return fmt.Errorf("layout.line_compression must be positive")
	}
	if cfg.Refresh.Frequency < 1 {
		return fmt.Errorf("refresh.refresh_frequency must be at least 1")
	}
	if cfg.Cache.Root == "" {
		return fmt.Errorf("cache.root must not be empty")
	}
	if cfg.Cover.ThumbnailHeight < 0 {
		return fmt.Errorf("cover.thumbnail_height must not be negative")
	}
	return nil
}

// LoadConfiguration reads the configuration from the file at the given
// path, superimposing its values on top of the expanded default template
// to provide sane defaults, then validates the result. An empty path
// loads defaults only.
func LoadConfiguration(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := unmarshalConfig(ConfigTmpl, cfg); err != nil {
		return nil, fmt.Errorf("failed to process default configuration: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if _, err := unmarshalConfig(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to process configuration file: %w", err)
		}
	}

	if err := resolveEnums(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Dump renders the in-memory configuration back to YAML, for inclusion in
// debug reports.
func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %w", err)
	}
	return data, nil
}
