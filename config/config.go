package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Workflow  WorkflowConfig
	Scheduler SchedulerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Store     StoreConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8000
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the headless browser session.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// ViewportWidth/ViewportHeight fix the page viewport. The checkbox
	// locator's region rectangles are calibrated against this size, so
	// changing it requires re-measuring the regions.
	ViewportWidth  int // default: 1300
	ViewportHeight int // default: 768
}

// WorkflowConfig controls the per-domain scrape workflow.
type WorkflowConfig struct {
	// URLTemplate is the target page, with %s replaced by the domain.
	URLTemplate string // default: "https://ahrefs.com/website-authority-checker/?input=%s"

	// NavTimeout is the deadline for a single navigation attempt.
	NavTimeout time.Duration // default: 30s

	// NavRetries is how many navigation attempts are made before the
	// domain is treated as failed.
	NavRetries int // default: 3

	// NavRetryPause is the pause between navigation attempts.
	NavRetryPause time.Duration // default: 1s

	// NetworkIdleTimeout bounds every wait-for-network-idle.
	NetworkIdleTimeout time.Duration // default: 90s

	// SettleDelay is the fixed wait after page load and after the first
	// checkbox click, covering client-side rendering that network idle
	// does not signal.
	SettleDelay time.Duration // default: 10s

	// FinalSettleDelay is the longer wait after the second checkbox click.
	FinalSettleDelay time.Duration // default: 15s
}

// SchedulerConfig controls task admission.
type SchedulerConfig struct {
	// MaxActive is the concurrency ceiling: how many domains may be
	// in flight at once.
	MaxActive int // default: 2

	// RestartThreshold is the number of consecutive timeout-class
	// failures after which NeedsRestart reports true.
	RestartThreshold int // default: 5
}

// StoreConfig controls task record retention.
type StoreConfig struct {
	// TTL is how long finished task records are kept.
	TTL time.Duration // default: 1h
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("DOMAINRANK_HOST", "0.0.0.0"),
			Port: envIntOr("DOMAINRANK_PORT", 8000),
			Mode: envOr("DOMAINRANK_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:       envBoolOr("DOMAINRANK_HEADLESS", true),
			NoSandbox:      envBoolOr("DOMAINRANK_NO_SANDBOX", false),
			BrowserBin:     os.Getenv("DOMAINRANK_BROWSER_BIN"),
			ViewportWidth:  envIntOr("DOMAINRANK_VIEWPORT_WIDTH", 1300),
			ViewportHeight: envIntOr("DOMAINRANK_VIEWPORT_HEIGHT", 768),
		},
		Workflow: WorkflowConfig{
			URLTemplate:        envOr("DOMAINRANK_URL_TEMPLATE", "https://ahrefs.com/website-authority-checker/?input=%s"),
			NavTimeout:         envDurationOr("DOMAINRANK_NAV_TIMEOUT", 30*time.Second),
			NavRetries:         envIntOr("DOMAINRANK_NAV_RETRIES", 3),
			NavRetryPause:      envDurationOr("DOMAINRANK_NAV_RETRY_PAUSE", 1*time.Second),
			NetworkIdleTimeout: envDurationOr("DOMAINRANK_IDLE_TIMEOUT", 90*time.Second),
			SettleDelay:        envDurationOr("DOMAINRANK_SETTLE_DELAY", 10*time.Second),
			FinalSettleDelay:   envDurationOr("DOMAINRANK_FINAL_SETTLE_DELAY", 15*time.Second),
		},
		Scheduler: SchedulerConfig{
			MaxActive:        envIntOr("DOMAINRANK_MAX_ACTIVE", 2),
			RestartThreshold: envIntOr("DOMAINRANK_RESTART_THRESHOLD", 5),
		},
		Store: StoreConfig{
			TTL: envDurationOr("DOMAINRANK_STORE_TTL", 1*time.Hour),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("DOMAINRANK_AUTH_ENABLED", false),
			APIKeys: envSliceOr("DOMAINRANK_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("DOMAINRANK_RATE_RPS", 5.0),
			Burst:             envIntOr("DOMAINRANK_RATE_BURST", 10),
		},
		Log: LogConfig{
			Level:  envOr("DOMAINRANK_LOG_LEVEL", "info"),
			Format: envOr("DOMAINRANK_LOG_FORMAT", "json"),
		},
	}
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

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
