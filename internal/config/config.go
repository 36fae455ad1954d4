// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration. Every tunable the
// pipeline consumes lives here; components receive the section they need at
// construction time so independent runs and tests never share state.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Site      SiteConfig      `mapstructure:"site" yaml:"site"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Login     LoginConfig     `mapstructure:"login" yaml:"login"`
	Retrieval RetrievalConfig `mapstructure:"retrieval" yaml:"retrieval"`
	Backend   BackendConfig   `mapstructure:"backend" yaml:"backend"`
}

// LoggerConfig controls the zap logger bootstrap.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// SiteConfig describes the upstream marketplace site.
type SiteConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// LoginPath is appended to BaseURL to reach the login entry point.
	LoginPath string `mapstructure:"login_path" yaml:"login_path"`
	// FavoritesPathTemplate receives the user id via fmt.Sprintf.
	FavoritesPathTemplate string `mapstructure:"favorites_path_template" yaml:"favorites_path_template"`
	// FavoritesPagePath is the HTML page used as the authenticated-fetch
	// success probe after login.
	FavoritesPagePath string `mapstructure:"favorites_page_path" yaml:"favorites_page_path"`
	// CookieDomain filters the harvested cookie jar; substring match.
	CookieDomain string `mapstructure:"cookie_domain" yaml:"cookie_domain"`
	UserID       string `mapstructure:"user_id" yaml:"user_id"`
	UserAgent    string `mapstructure:"user_agent" yaml:"user_agent"`
	Locale       string `mapstructure:"locale" yaml:"locale"`
}

// LoginURL joins the base URL and login path.
func (s SiteConfig) LoginURL() string {
	return strings.TrimRight(s.BaseURL, "/") + s.LoginPath
}

// FavoritesPageURL joins the base URL and the favorites HTML page path.
func (s SiteConfig) FavoritesPageURL() string {
	return strings.TrimRight(s.BaseURL, "/") + s.FavoritesPagePath
}

// BrowserConfig controls the chromedp allocator and per-run contexts.
type BrowserConfig struct {
	Headless       bool          `mapstructure:"headless" yaml:"headless"`
	Args           []string      `mapstructure:"args" yaml:"args"`
	NavTimeout     time.Duration `mapstructure:"nav_timeout" yaml:"nav_timeout"`
	SettleWait     time.Duration `mapstructure:"settle_wait" yaml:"settle_wait"`
	ScreenshotDir  string        `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
	WindowWidth    int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight   int           `mapstructure:"window_height" yaml:"window_height"`
}

// LoginConfig bounds the navigator and the post-submit classifier.
type LoginConfig struct {
	// MaxNavSteps caps the number of pre-login navigation steps (consent,
	// account chooser, sign-up interstitial) before the navigator gives up.
	MaxNavSteps int           `mapstructure:"max_nav_steps" yaml:"max_nav_steps"`
	StepWait    time.Duration `mapstructure:"step_wait" yaml:"step_wait"`
	// SubmitSettle is how long the classifier lets the page settle after
	// the credential form is submitted.
	SubmitSettle time.Duration `mapstructure:"submit_settle" yaml:"submit_settle"`
	// ClassifyRetries bounds the internal retries of an unclassifiable
	// post-submit state (element not yet rendered).
	ClassifyRetries int           `mapstructure:"classify_retries" yaml:"classify_retries"`
	ClassifyDelay   time.Duration `mapstructure:"classify_delay" yaml:"classify_delay"`
}

// RetrievalConfig bounds the paginated favorites walk.
type RetrievalConfig struct {
	PerPage int `mapstructure:"per_page" yaml:"per_page"`
	// MaxPages is the safety ceiling against runaway pagination. Reaching
	// it produces a capped run, which is reported, never silent.
	MaxPages       int           `mapstructure:"max_pages" yaml:"max_pages"`
	InterPageDelay time.Duration `mapstructure:"inter_page_delay" yaml:"inter_page_delay"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	// RefreshTokens enables the pre-flight access-token freshness check and
	// the single 401 refresh-and-retry.
	RefreshTokens bool `mapstructure:"refresh_tokens" yaml:"refresh_tokens"`
	// EnrichItems enables the per-item detail pass that fills in the category
	// from the item endpoint. Off by default: it costs one request per
	// favorite and the detail endpoint rate-limits aggressively.
	EnrichItems bool `mapstructure:"enrich_items" yaml:"enrich_items"`
	// EnrichDelay is the pause between detail requests.
	EnrichDelay time.Duration `mapstructure:"enrich_delay" yaml:"enrich_delay"`
	// MaxEnrichBatch caps how many favorites are enriched in one run.
	MaxEnrichBatch int `mapstructure:"max_enrich_batch" yaml:"max_enrich_batch"`
}

// BackendConfig describes the storage collaborator.
type BackendConfig struct {
	URL            string        `mapstructure:"url" yaml:"url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "favsync")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Site --
	v.SetDefault("site.base_url", "https://www.vinted.fr")
	v.SetDefault("site.login_path", "/auth/login")
	v.SetDefault("site.favorites_path_template", "/api/v2/users/%s/items/favourites")
	v.SetDefault("site.favorites_page_path", "/member/items/favourites")
	v.SetDefault("site.cookie_domain", "vinted")
	v.SetDefault("site.user_id", "")
	v.SetDefault("site.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36")
	v.SetDefault("site.locale", "fr-FR")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.nav_timeout", 60*time.Second)
	v.SetDefault("browser.settle_wait", 2*time.Second)
	v.SetDefault("browser.screenshot_dir", "")
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)

	// -- Login --
	v.SetDefault("login.max_nav_steps", 4)
	v.SetDefault("login.step_wait", 2*time.Second)
	v.SetDefault("login.submit_settle", 5*time.Second)
	v.SetDefault("login.classify_retries", 3)
	v.SetDefault("login.classify_delay", 1500*time.Millisecond)

	// -- Retrieval --
	v.SetDefault("retrieval.per_page", 20)
	v.SetDefault("retrieval.max_pages", 50)
	v.SetDefault("retrieval.inter_page_delay", 1200*time.Millisecond)
	v.SetDefault("retrieval.request_timeout", 30*time.Second)
	v.SetDefault("retrieval.refresh_tokens", true)
	v.SetDefault("retrieval.enrich_items", false)
	v.SetDefault("retrieval.enrich_delay", 2*time.Second)
	v.SetDefault("retrieval.max_enrich_batch", 20)

	// -- Backend --
	v.SetDefault("backend.url", "http://localhost:8080")
	v.SetDefault("backend.request_timeout", 30*time.Second)
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static; a failure here is a programmer error.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a validated configuration from a viper instance.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if _, err := url.ParseRequestURI(c.Site.BaseURL); err != nil {
		return fmt.Errorf("site.base_url must be a valid URL: %w", err)
	}
	if !strings.Contains(c.Site.FavoritesPathTemplate, "%s") {
		return fmt.Errorf("site.favorites_path_template must contain a %%s placeholder for the user id")
	}
	if c.Login.MaxNavSteps <= 0 {
		return fmt.Errorf("login.max_nav_steps must be a positive integer")
	}
	if c.Login.ClassifyRetries < 0 {
		return fmt.Errorf("login.classify_retries must not be negative")
	}
	if c.Retrieval.PerPage <= 0 {
		return fmt.Errorf("retrieval.per_page must be a positive integer")
	}
	if c.Retrieval.MaxPages <= 0 {
		return fmt.Errorf("retrieval.max_pages must be a positive integer")
	}
	if c.Retrieval.EnrichItems && c.Retrieval.MaxEnrichBatch <= 0 {
		return fmt.Errorf("retrieval.max_enrich_batch must be a positive integer when enrichment is enabled")
	}
	if c.Backend.URL != "" {
		if _, err := url.ParseRequestURI(c.Backend.URL); err != nil {
			return fmt.Errorf("backend.url must be a valid URL: %w", err)
		}
	}
	return nil
}
