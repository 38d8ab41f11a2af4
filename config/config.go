package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/caarlos0/env/v9"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
	DB        DBConfig
	Browser   BrowserConfig
	Engine    EngineConfig
	Crawl     CrawlConfig
	Events    EventsConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string `env:"SW_HOST" envDefault:"127.0.0.1"`
	Port int    `env:"SW_PORT" envDefault:"8080"`
	Mode string `env:"SW_MODE" envDefault:"release"` // "debug", "release", "test"
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	Enabled bool     `env:"SW_AUTH_ENABLED" envDefault:"false"`
	APIKeys []string `env:"SW_API_KEYS" envSeparator:","`
}

// RateLimitConfig controls per-key rate limiting of the HTTP API.
type RateLimitConfig struct {
	RequestsPerSecond float64 `env:"SW_RATE_RPS" envDefault:"5"`
	Burst             int     `env:"SW_RATE_BURST" envDefault:"10"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `env:"SW_LOG_LEVEL" envDefault:"info"`
	Format string `env:"SW_LOG_FORMAT" envDefault:"json"` // "json" or "text"

	// File enables a rotating log file in addition to stdout.
	File       string `env:"SW_LOG_FILE"`
	MaxSizeMB  int    `env:"SW_LOG_MAX_SIZE_MB" envDefault:"50"`
	MaxBackups int    `env:"SW_LOG_MAX_BACKUPS" envDefault:"7"`
	MaxAgeDays int    `env:"SW_LOG_MAX_AGE_DAYS" envDefault:"30"`
}

// DBConfig selects and configures the persistence backend.
type DBConfig struct {
	Type string `env:"SW_DB_TYPE" envDefault:"sqlite"` // sqlite, postgres, mysql

	// DSN is the driver DSN; for sqlite it is the database file path.
	DSN string `env:"SW_DB_DSN" envDefault:"task.db"`

	MaxOpenConns int  `env:"SW_DB_MAX_OPEN_CONNS" envDefault:"4"`
	Debug        bool `env:"SW_DB_DEBUG" envDefault:"false"`
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	Headless   bool   `env:"SW_HEADLESS" envDefault:"true"`
	NoSandbox  bool   `env:"SW_NO_SANDBOX" envDefault:"true"`
	BrowserBin string `env:"SW_BROWSER_BIN"`

	// Stealth injects anti-detection JS into every page before navigation.
	Stealth bool `env:"SW_STEALTH" envDefault:"true"`

	// BlockedResourceTypes lists resource types the pages never load.
	BlockedResourceTypes []string `env:"SW_BLOCKED_RESOURCES" envSeparator:"," envDefault:"Image,Font,Media"`

	AcceptLanguage string `env:"SW_ACCEPT_LANGUAGE" envDefault:"zh-TW,zh;q=0.9,ja;q=0.8"`

	LaunchAttempts int `env:"SW_LAUNCH_ATTEMPTS" envDefault:"3"`
}

// EngineConfig controls the orchestrator.
type EngineConfig struct {
	// Interval is the trigger cadence of `serve`.
	Interval time.Duration `env:"SW_INTERVAL" envDefault:"60s"`

	// Cooldown is the minimum time between two executions of a task.
	Cooldown time.Duration `env:"SW_COOLDOWN" envDefault:"30m"`

	TaskConcurrency int           `env:"SW_TASK_CONCURRENCY" envDefault:"3"`
	TaskTimeout     time.Duration `env:"SW_TASK_TIMEOUT" envDefault:"30m"`

	// EnforceGuard rejects overlapping ExecuteTasks invocations.
	EnforceGuard bool `env:"SW_ENFORCE_GUARD" envDefault:"true"`

	// RequireProxy aborts a run when no active proxy is configured.
	RequireProxy bool `env:"SW_REQUIRE_PROXY" envDefault:"false"`

	// Timezone is used to compute the snapshot calendar day.
	Timezone string `env:"SW_TIMEZONE" envDefault:"Local"`
}

// CrawlConfig is the extraction contract against the target site.
type CrawlConfig struct {
	// ListingURLTemplate is formatted with the merchant id.
	ListingURLTemplate string `env:"SW_LISTING_URL" envDefault:"https://jp.mercari.com/zh-TW/user/profile/%s"`

	ItemSelector     string `env:"SW_ITEM_SELECTOR" envDefault:"li[data-testid=\"item-cell\"]"`
	PriceSelector    string `env:"SW_PRICE_SELECTOR" envDefault:".merPrice"`
	LinkSelector     string `env:"SW_LINK_SELECTOR" envDefault:"a"`
	LoadMoreSelector string `env:"SW_LOAD_MORE_SELECTOR" envDefault:"section.no-border button"`
	LikeSelector     string `env:"SW_LIKE_SELECTOR" envDefault:"div[data-testid=\"icon-heart-button\"] span.merText"`
	LikeWaitSelector string `env:"SW_LIKE_WAIT_SELECTOR" envDefault:"div[data-testid=\"icon-heart-button\"]"`
	CommentSelector  string `env:"SW_COMMENT_SELECTOR" envDefault:"div[data-location=\"item_details:item_info:comment_icon_button\"] span.merText"`

	// ProductIDPattern extracts the product id from a detail URL (group 1).
	ProductIDPattern string `env:"SW_PRODUCT_ID_PATTERN" envDefault:"/item/(m\\d+)"`

	NavigationTimeout  time.Duration `env:"SW_NAV_TIMEOUT" envDefault:"60s"`
	ListingWaitTimeout time.Duration `env:"SW_LISTING_WAIT_TIMEOUT" envDefault:"60s"`
	DetailWaitTimeout  time.Duration `env:"SW_DETAIL_WAIT_TIMEOUT" envDefault:"60s"`

	ClickDelay  time.Duration `env:"SW_CLICK_DELAY" envDefault:"1s"`
	LoadWait    time.Duration `env:"SW_LOAD_WAIT" envDefault:"2s"`
	MaxLoadMore int           `env:"SW_MAX_LOAD_MORE" envDefault:"200"`

	ItemConcurrency int `env:"SW_ITEM_CONCURRENCY" envDefault:"10"`

	// ItemDelay is the minimum spacing between detail page visits of one
	// task; zero disables pacing.
	ItemDelay time.Duration `env:"SW_ITEM_DELAY" envDefault:"0s"`
}

// EventsConfig controls outbound event delivery.
type EventsConfig struct {
	WebhookURL    string `env:"SW_WEBHOOK_URL"`
	WebhookSecret string `env:"SW_WEBHOOK_SECRET"`

	// Buffer is the per-subscriber channel size; slow subscribers drop events.
	Buffer int `env:"SW_EVENT_BUFFER" envDefault:"64"`
}

// Load reads configuration from environment variables with sane defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and compiles every CSS selector so a typo
// fails at boot instead of silently matching nothing.
func (c *Config) Validate() error {
	if c.Engine.TaskConcurrency < 1 {
		return fmt.Errorf("config: SW_TASK_CONCURRENCY must be >= 1, got %d", c.Engine.TaskConcurrency)
	}
	if c.Crawl.ItemConcurrency < 1 {
		return fmt.Errorf("config: SW_ITEM_CONCURRENCY must be >= 1, got %d", c.Crawl.ItemConcurrency)
	}
	if c.Crawl.MaxLoadMore < 0 {
		return fmt.Errorf("config: SW_MAX_LOAD_MORE must be >= 0, got %d", c.Crawl.MaxLoadMore)
	}
	if c.Engine.Interval <= 0 {
		return fmt.Errorf("config: SW_INTERVAL must be positive")
	}
	if c.Engine.Cooldown < 0 {
		return fmt.Errorf("config: SW_COOLDOWN must not be negative")
	}
	if !strings.Contains(c.Crawl.ListingURLTemplate, "%s") {
		return fmt.Errorf("config: SW_LISTING_URL must contain %%s for the merchant id")
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	selectors := map[string]string{
		"SW_ITEM_SELECTOR":      c.Crawl.ItemSelector,
		"SW_PRICE_SELECTOR":     c.Crawl.PriceSelector,
		"SW_LINK_SELECTOR":      c.Crawl.LinkSelector,
		"SW_LOAD_MORE_SELECTOR": c.Crawl.LoadMoreSelector,
		"SW_LIKE_SELECTOR":      c.Crawl.LikeSelector,
		"SW_LIKE_WAIT_SELECTOR": c.Crawl.LikeWaitSelector,
		"SW_COMMENT_SELECTOR":   c.Crawl.CommentSelector,
	}
	for key, sel := range selectors {
		if _, err := cascadia.Compile(sel); err != nil {
			return fmt.Errorf("config: %s %q: %w", key, sel, err)
		}
	}

	switch c.DB.Type {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("config: unsupported SW_DB_TYPE %q", c.DB.Type)
	}
	return nil
}

// Location resolves the configured snapshot timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Engine.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: SW_TIMEZONE %q: %w", c.Engine.Timezone, err)
	}
	return loc, nil
}
