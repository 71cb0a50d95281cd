package internal

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/tramite/internal/extract"
	"github.com/starford/tramite/internal/pipeline"
	"github.com/starford/tramite/internal/resolver"
	"github.com/starford/tramite/internal/senate"
	"github.com/starford/tramite/internal/similarity"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Input      InputConfig       `yaml:"input"`
	Similarity SimilarityConfig  `yaml:"similarity"`
	Resolver   ResolverConfig    `yaml:"resolver"`
	Senate     SenateConfig      `yaml:"senate"`
	Output     OutputConfig      `yaml:"output"`
	SQLite     SQLiteConfig      `yaml:"sqlite"`
	Auth       AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.Input, &c.Similarity, &c.Resolver, &c.Senate, &c.SQLite, &c.Auth,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// PipelineConfig maps the configuration onto the batch settings.
func (c *Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		Extract: extract.Config{
			MaxDocumentBytes: c.Input.MaxDocumentBytes,
			RootPaths:        c.Input.rootPaths(),
		},
		Similarity: similarity.Config{
			Weights: similarity.Weights{
				JaroWinkler: c.Similarity.JaroWinklerWeight,
				Levenshtein: c.Similarity.LevenshteinWeight,
			},
			Threshold:     c.Similarity.Threshold,
			CacheCapacity: c.Similarity.CacheCapacity,
		},
		Resolver:       resolver.Config{TitleThreshold: c.Resolver.TitleThreshold},
		MaxConcurrency: c.Senate.MaxConcurrency,
	}
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// InputConfig describes the export documents directory.
type InputConfig struct {
	Dir              string        `yaml:"dir"`
	MaxDocumentBytes int64         `yaml:"max_document_bytes"`
	WatchDebounce    time.Duration `yaml:"watch_debounce"`
	// RootPaths overrides the probed nesting shapes, e.g. "results/result".
	RootPaths []string `yaml:"root_paths"`
}

// Validate validates the input configuration.
func (c *InputConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
		validation.Field(&c.MaxDocumentBytes, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.RootPaths, validation.Each(validation.By(func(v any) error {
			if p, _ := v.(string); len(strings.Split(strings.Trim(p, "/"), "/")) < 2 {
				return fmt.Errorf("root path %q needs a parent and an entry element", p)
			}
			return nil
		}))),
	)
}

func (c *InputConfig) rootPaths() [][]string {
	if len(c.RootPaths) == 0 {
		return nil
	}
	out := make([][]string, 0, len(c.RootPaths))
	for _, p := range c.RootPaths {
		out = append(out, strings.Split(strings.Trim(p, "/"), "/"))
	}
	return out
}

// SimilarityConfig holds the fuzzy-matching parameters.
type SimilarityConfig struct {
	JaroWinklerWeight float64 `yaml:"jaro_winkler_weight"`
	LevenshteinWeight float64 `yaml:"levenshtein_weight"`
	Threshold         float64 `yaml:"threshold"`
	CacheCapacity     int     `yaml:"cache_capacity"`
}

// Validate validates the similarity configuration. Weights must sum to 1.
func (c *SimilarityConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.JaroWinklerWeight, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.LevenshteinWeight, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.Threshold, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.CacheCapacity, validation.Required, validation.Min(1)),
	); err != nil {
		return err
	}
	if sum := c.JaroWinklerWeight + c.LevenshteinWeight; math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("similarity: weights sum to %g, want 1", sum)
	}
	return nil
}

// ResolverConfig holds the cross-source matching parameters.
type ResolverConfig struct {
	TitleThreshold float64 `yaml:"title_threshold"`
}

// Validate validates the resolver configuration.
func (c *ResolverConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TitleThreshold, validation.Required, validation.Min(0.0), validation.Max(1.0)),
	)
}

// SenateConfig lists the approved-law corpus sources.
type SenateConfig struct {
	ExportURLs     []string      `yaml:"export_urls"`
	ExportFiles    []string      `yaml:"export_files"`
	ScrapeURLs     []string      `yaml:"scrape_urls"`
	ScrapeSelector string        `yaml:"scrape_selector"`
	MaxConcurrency int           `yaml:"max_concurrency"`
	RateInterval   time.Duration `yaml:"rate_interval"`
	Timeout        time.Duration `yaml:"timeout"`
	UserAgent      string        `yaml:"user_agent"`
}

// Validate validates the senate configuration.
func (c *SenateConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxConcurrency, validation.Required, validation.Min(1)),
		validation.Field(&c.RateInterval, validation.Min(time.Duration(0))),
		validation.Field(&c.Timeout, validation.Required),
		validation.Field(&c.ExportURLs, validation.Each(validation.By(httpURL))),
		validation.Field(&c.ScrapeURLs, validation.Each(validation.By(httpURL))),
	)
}

func httpURL(v any) error {
	s, _ := v.(string)
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return fmt.Errorf("%q is not an http(s) URL", s)
	}
	return nil
}

// Sources builds the configured corpus sources over one shared client.
// Structured exports come first.
func (c *SenateConfig) Sources() []senate.Source {
	client := senate.NewClient(senate.ClientConfig{
		Timeout:   c.Timeout,
		Interval:  c.RateInterval,
		UserAgent: c.UserAgent,
	})
	var out []senate.Source
	for _, loc := range append(append([]string{}, c.ExportURLs...), c.ExportFiles...) {
		out = append(out, senate.NewExportSource(loc, client))
	}
	for _, u := range c.ScrapeURLs {
		out = append(out, senate.NewScrapeSource(u, c.ScrapeSelector, client))
	}
	return out
}

// OutputConfig controls the records JSON written after each batch.
type OutputConfig struct {
	// Path of the JSON file. Empty disables the file output.
	Path string `yaml:"path"`
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	sim := similarity.DefaultConfig()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Input: InputConfig{
			Dir:              "./data/exports",
			MaxDocumentBytes: extract.DefaultMaxDocumentBytes,
			WatchDebounce:    pipeline.DefaultDebounce,
		},
		Similarity: SimilarityConfig{
			JaroWinklerWeight: sim.Weights.JaroWinkler,
			LevenshteinWeight: sim.Weights.Levenshtein,
			Threshold:         sim.Threshold,
			CacheCapacity:     sim.CacheCapacity,
		},
		Resolver: ResolverConfig{
			TitleThreshold: resolver.DefaultTitleThreshold,
		},
		Senate: SenateConfig{
			ScrapeSelector: senate.DefaultRowSelector,
			MaxConcurrency: senate.DefaultMaxConcurrency,
			RateInterval:   time.Second,
			Timeout:        30 * time.Second,
			UserAgent:      "tramite/1.0",
		},
		Output: OutputConfig{
			Path: "./data/records.json",
		},
		SQLite: SQLiteConfig{
			Path: "./tramite.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
