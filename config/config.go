package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Browser   BrowserConfig   `toml:"browser"`
	TPDB      TPDBConfig      `toml:"tpdb"`
	TMDB      TMDBConfig      `toml:"tmdb"`
	Jellyfin  JellyfinConfig  `toml:"jellyfin"`
	Posters   PosterConfig    `toml:"posters"`
	Auth      AuthConfig      `toml:"auth"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Cache     CacheConfig     `toml:"cache"`
	Webhook   WebhookConfig   `toml:"webhook"`
	Log       LogConfig       `toml:"log"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string `toml:"host"` // default: "0.0.0.0"
	Port int    `toml:"port"` // default: 5000
	Mode string `toml:"mode"` // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool `toml:"headless"` // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool `toml:"no_sandbox"` // default: true

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string `toml:"browser_bin"`

	// Proxy is an optional proxy URL for the browser.
	Proxy string `toml:"proxy"`

	// NavigationTimeout bounds a single page load.
	NavigationTimeout Duration `toml:"navigation_timeout"` // default: 20s

	// LoginTimeout bounds locating the login form and reaching the
	// authenticated state after submitting it.
	LoginTimeout Duration `toml:"login_timeout"` // default: 15s

	// ReadyTimeout is how long dependent requests wait for the session.
	ReadyTimeout Duration `toml:"ready_timeout"` // default: 30s, never lower
}

// TPDBConfig points at the poster site and carries its service credential.
type TPDBConfig struct {
	BaseURL           string `toml:"base_url"`            // default: "https://theposterdb.com"
	SearchURLTemplate string `toml:"search_url_template"` // default: "{base}/search?term={query}"
	Email             string `toml:"email"`
	Password          string `toml:"password"`

	// ImageHosts are extra hosts that serve the site's images and need the
	// session cookies. The site's own host and subdomains are implied.
	ImageHosts []string `toml:"image_hosts"`
}

// TMDBConfig controls the metadata lookup used to canonicalise titles.
type TMDBConfig struct {
	APIKey   string   `toml:"api_key"`
	BaseURL  string   `toml:"base_url"` // default: "https://api.themoviedb.org/3"
	Language string   `toml:"language"` // default: "en-US"
	Timeout  Duration `toml:"timeout"`  // default: 10s
}

// JellyfinConfig locates the media server.
type JellyfinConfig struct {
	URL     string   `toml:"url"`
	APIKey  string   `toml:"api_key"`
	Timeout Duration `toml:"timeout"` // default: 15s
}

// PosterConfig controls candidate extraction.
type PosterConfig struct {
	// MaxPerItem bounds the candidates returned for one title.
	MaxPerItem int `toml:"max_per_item"` // default: 18

	// PreviewConcurrency bounds parallel preview downloads.
	PreviewConcurrency int `toml:"preview_concurrency"` // default: 4
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool `toml:"enabled"` // default: false

	// APIKey is the single shared service credential.
	APIKey string `toml:"api_key"`
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 `toml:"requests_per_second"` // default: 5

	// Burst is the maximum burst size per API key.
	Burst int `toml:"burst"` // default: 10
}

// CacheConfig controls the poster result cache.
type CacheConfig struct {
	MaxEntries int      `toml:"max_entries"` // default: 500
	TTL        Duration `toml:"ttl"`         // default: 10m
}

// WebhookConfig controls batch completion notifications.
type WebhookConfig struct {
	URL    string `toml:"url"`
	Secret string `toml:"secret"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `toml:"level"`  // default: "info"
	Format string `toml:"format"` // "json", "text" or "" (auto); default: ""
}

// Duration decodes TOML strings such as "15s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(b), err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// MinReadyTimeout is the floor for BrowserConfig.ReadyTimeout.
const MinReadyTimeout = 30 * time.Second

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 5000, Mode: "release"},
		Browser: BrowserConfig{
			Headless:          true,
			NoSandbox:         true,
			NavigationTimeout: Duration{20 * time.Second},
			LoginTimeout:      Duration{15 * time.Second},
			ReadyTimeout:      Duration{MinReadyTimeout},
		},
		TPDB: TPDBConfig{
			BaseURL:           "https://theposterdb.com",
			SearchURLTemplate: "https://theposterdb.com/search?term={query}",
		},
		TMDB: TMDBConfig{
			BaseURL:  "https://api.themoviedb.org/3",
			Language: "en-US",
			Timeout:  Duration{10 * time.Second},
		},
		Jellyfin:  JellyfinConfig{Timeout: Duration{15 * time.Second}},
		Posters:   PosterConfig{MaxPerItem: 18, PreviewConcurrency: 4},
		RateLimit: RateLimitConfig{RequestsPerSecond: 5, Burst: 10},
		Cache:     CacheConfig{MaxEntries: 500, TTL: Duration{10 * time.Minute}},
		Log:       LogConfig{Level: "info"},
	}
}

// Load builds the configuration from defaults, an optional TOML file and
// POSTERBRIDGE_* environment variables, in that order of precedence.
// An empty path falls back to POSTERBRIDGE_CONFIG; a missing file is only
// an error when the path was given explicitly.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv("POSTERBRIDGE_CONFIG")
	}
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}

	applyEnv(&cfg)
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	if err := toml.NewDecoder(file).Decode(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Host = envOr("POSTERBRIDGE_HOST", cfg.Server.Host)
	cfg.Server.Port = envIntOr("POSTERBRIDGE_PORT", cfg.Server.Port)
	cfg.Server.Mode = envOr("POSTERBRIDGE_MODE", cfg.Server.Mode)

	cfg.Browser.Headless = envBoolOr("POSTERBRIDGE_HEADLESS", cfg.Browser.Headless)
	cfg.Browser.NoSandbox = envBoolOr("POSTERBRIDGE_NO_SANDBOX", cfg.Browser.NoSandbox)
	cfg.Browser.BrowserBin = envOr("POSTERBRIDGE_BROWSER_BIN", cfg.Browser.BrowserBin)
	cfg.Browser.Proxy = envOr("POSTERBRIDGE_PROXY", cfg.Browser.Proxy)
	cfg.Browser.NavigationTimeout.Duration = envDurationOr("POSTERBRIDGE_NAV_TIMEOUT", cfg.Browser.NavigationTimeout.Duration)
	cfg.Browser.LoginTimeout.Duration = envDurationOr("POSTERBRIDGE_LOGIN_TIMEOUT", cfg.Browser.LoginTimeout.Duration)
	cfg.Browser.ReadyTimeout.Duration = envDurationOr("POSTERBRIDGE_READY_TIMEOUT", cfg.Browser.ReadyTimeout.Duration)

	cfg.TPDB.BaseURL = envOr("POSTERBRIDGE_TPDB_URL", cfg.TPDB.BaseURL)
	cfg.TPDB.SearchURLTemplate = envOr("POSTERBRIDGE_TPDB_SEARCH_TEMPLATE", cfg.TPDB.SearchURLTemplate)
	cfg.TPDB.Email = envOr("POSTERBRIDGE_TPDB_EMAIL", cfg.TPDB.Email)
	cfg.TPDB.Password = envOr("POSTERBRIDGE_TPDB_PASSWORD", cfg.TPDB.Password)
	cfg.TPDB.ImageHosts = envListOr("POSTERBRIDGE_TPDB_IMAGE_HOSTS", cfg.TPDB.ImageHosts)

	cfg.TMDB.APIKey = envOr("POSTERBRIDGE_TMDB_API_KEY", cfg.TMDB.APIKey)
	cfg.TMDB.BaseURL = envOr("POSTERBRIDGE_TMDB_URL", cfg.TMDB.BaseURL)
	cfg.TMDB.Language = envOr("POSTERBRIDGE_TMDB_LANGUAGE", cfg.TMDB.Language)
	cfg.TMDB.Timeout.Duration = envDurationOr("POSTERBRIDGE_TMDB_TIMEOUT", cfg.TMDB.Timeout.Duration)

	cfg.Jellyfin.URL = envOr("POSTERBRIDGE_JELLYFIN_URL", cfg.Jellyfin.URL)
	cfg.Jellyfin.APIKey = envOr("POSTERBRIDGE_JELLYFIN_API_KEY", cfg.Jellyfin.APIKey)
	cfg.Jellyfin.Timeout.Duration = envDurationOr("POSTERBRIDGE_JELLYFIN_TIMEOUT", cfg.Jellyfin.Timeout.Duration)

	cfg.Posters.MaxPerItem = envIntOr("POSTERBRIDGE_MAX_POSTERS", cfg.Posters.MaxPerItem)
	cfg.Posters.PreviewConcurrency = envIntOr("POSTERBRIDGE_PREVIEW_CONCURRENCY", cfg.Posters.PreviewConcurrency)

	cfg.Auth.Enabled = envBoolOr("POSTERBRIDGE_AUTH_ENABLED", cfg.Auth.Enabled)
	cfg.Auth.APIKey = envOr("POSTERBRIDGE_API_KEY", cfg.Auth.APIKey)

	cfg.RateLimit.RequestsPerSecond = envFloatOr("POSTERBRIDGE_RATE_RPS", cfg.RateLimit.RequestsPerSecond)
	cfg.RateLimit.Burst = envIntOr("POSTERBRIDGE_RATE_BURST", cfg.RateLimit.Burst)

	cfg.Cache.MaxEntries = envIntOr("POSTERBRIDGE_CACHE_MAX_ENTRIES", cfg.Cache.MaxEntries)
	cfg.Cache.TTL.Duration = envDurationOr("POSTERBRIDGE_CACHE_TTL", cfg.Cache.TTL.Duration)

	cfg.Webhook.URL = envOr("POSTERBRIDGE_WEBHOOK_URL", cfg.Webhook.URL)
	cfg.Webhook.Secret = envOr("POSTERBRIDGE_WEBHOOK_SECRET", cfg.Webhook.Secret)

	cfg.Log.Level = envOr("POSTERBRIDGE_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envOr("POSTERBRIDGE_LOG_FORMAT", cfg.Log.Format)
}

func (c *Config) normalize() {
	c.TPDB.BaseURL = strings.TrimRight(strings.TrimSpace(c.TPDB.BaseURL), "/")
	c.TMDB.BaseURL = strings.TrimRight(strings.TrimSpace(c.TMDB.BaseURL), "/")
	c.Jellyfin.URL = strings.TrimRight(strings.TrimSpace(c.Jellyfin.URL), "/")
	c.TPDB.SearchURLTemplate = strings.ReplaceAll(c.TPDB.SearchURLTemplate, "{base}", c.TPDB.BaseURL)

	if c.Browser.ReadyTimeout.Duration < MinReadyTimeout {
		c.Browser.ReadyTimeout.Duration = MinReadyTimeout
	}
	if c.Posters.MaxPerItem <= 0 {
		c.Posters.MaxPerItem = 18
	}
	if c.Posters.PreviewConcurrency <= 0 {
		c.Posters.PreviewConcurrency = 1
	}
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
}

// Validate reports configuration that cannot work at all.
func (c *Config) Validate() error {
	if c.TPDB.BaseURL == "" {
		return errors.New("tpdb.base_url is required")
	}
	if !strings.Contains(c.TPDB.SearchURLTemplate, "{query}") {
		return fmt.Errorf("tpdb.search_url_template must contain {query}: %q", c.TPDB.SearchURLTemplate)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return errors.New("auth.api_key is required when auth is enabled")
	}
	switch c.Log.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text: %q", c.Log.Format)
	}
	return nil
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// envListOr splits a comma-separated value, dropping empty entries.
func envListOr(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
