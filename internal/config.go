package internal

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/readmore/internal/format"
	"github.com/starford/readmore/internal/index"
	"github.com/starford/readmore/internal/marker"
	"github.com/starford/readmore/internal/pagination"
	"github.com/starford/readmore/internal/postservice"
	"github.com/starford/readmore/internal/query"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth"`
	Site    SiteConfig        `yaml:"site"`
	Marker  MarkerConfig      `yaml:"marker"`
	Search  SearchConfig      `yaml:"search"`
	Batch   BatchConfig       `yaml:"batch"`
	Content ContentConfig     `yaml:"content"`
	Cache   CacheConfig       `yaml:"cache"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.SQLite, &c.Auth, &c.Site, &c.Search, &c.Batch, &c.Content, &c.Cache,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
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

var baseURLRe = regexp.MustCompile(`^https?://[^\s/]+`)

// SiteConfig describes the public site posts link to.
type SiteConfig struct {
	BaseURL string `yaml:"base_url"`
	// Label prefixes the post title in rendered read-more links.
	Label string `yaml:"label"`
}

// Validate validates the site configuration.
func (c *SiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, validation.Match(baseURLRe)),
	)
}

// MarkerConfig names the block whose presence is tracked.
type MarkerConfig struct {
	Block string `yaml:"block"`
}

// SearchConfig tunes the interactive search.
type SearchConfig struct {
	PageSize      int `yaml:"page_size"`
	WindowSize    int `yaml:"window_size"`
	ContextWords  int `yaml:"context_words"`
	ExcerptBudget int `yaml:"excerpt_budget"`
}

// Validate validates the search configuration.
func (c *SearchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.PageSize, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.WindowSize, validation.Min(0)),
		validation.Field(&c.ContextWords, validation.Min(0)),
		validation.Field(&c.ExcerptBudget, validation.Min(0)),
	)
}

// BatchConfig tunes the marker scan.
type BatchConfig struct {
	PageSize    int           `yaml:"page_size"`
	Delay       time.Duration `yaml:"delay"`
	DefaultDays int           `yaml:"default_days"`
	LockPath    string        `yaml:"lock_path"`
}

// Validate validates the batch configuration.
func (c *BatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.PageSize, validation.Required, validation.Min(1)),
		validation.Field(&c.Delay, validation.Min(time.Duration(0))),
		validation.Field(&c.DefaultDays, validation.Required, validation.Min(1)),
		validation.Field(&c.LockPath, validation.Required),
	)
}

// ContentConfig holds the optional content directory imported as posts.
// An empty Path disables the importer.
type ContentConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// Validate validates the content configuration.
func (c *ContentConfig) Validate() error {
	if c.Watch && c.Path == "" {
		return fmt.Errorf("content: watch is enabled but path is empty")
	}
	return nil
}

// Enabled reports whether a content directory is configured.
func (c *ContentConfig) Enabled() bool {
	return c.Path != ""
}

// CacheConfig sizes the post summary cache. Zero disables it.
type CacheConfig struct {
	Size int `yaml:"size"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Size, validation.Min(0)),
	)
}

// IndexOptions returns the datastore options implied by the configuration.
func (c *Config) IndexOptions() []index.Option {
	return []index.Option{
		index.WithDetector(marker.NewDetector(c.Marker.Block)),
		index.WithCacheSize(c.Cache.Size),
	}
}

// ServiceConfig returns the post service settings implied by the configuration.
func (c *Config) ServiceConfig() postservice.Config {
	return postservice.Config{
		BaseURL:    c.Site.BaseURL,
		Label:      c.Site.Label,
		PageSize:   c.Search.PageSize,
		WindowSize: c.Search.WindowSize,
		Excerpt: format.Options{
			ContextWords: c.Search.ContextWords,
			Budget:       c.Search.ExcerptBudget,
		},
		BatchPageSize: c.Batch.PageSize,
		BatchDelay:    c.Batch.Delay,
		DefaultDays:   c.Batch.DefaultDays,
		LockPath:      c.Batch.LockPath,
	}
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./readmore.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Site: SiteConfig{
			BaseURL: "http://localhost:8080",
			Label:   format.DefaultLabel,
		},
		Marker: MarkerConfig{
			Block: marker.DefaultBlock,
		},
		Search: SearchConfig{
			PageSize:      query.DefaultEditorPageSize,
			WindowSize:    pagination.DefaultSize,
			ContextWords:  format.DefaultContextWords,
			ExcerptBudget: format.DefaultBudget,
		},
		Batch: BatchConfig{
			PageSize:    query.DefaultBatchPageSize,
			Delay:       time.Second,
			DefaultDays: query.DefaultRangeDays,
			LockPath:    "./readmore-scan.lock",
		},
		Cache: CacheConfig{
			Size: index.DefaultCacheSize,
		},
	}
}
