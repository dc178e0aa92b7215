package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	LMS     LMSConfig
	Browser BrowserConfig
	Store   StoreConfig
	Publish PublishConfig
	Webhook WebhookConfig
	Server  ServerConfig
	Log     LogConfig
}

// LMSConfig describes the portal being scraped and the bounds on every wait.
type LMSConfig struct {
	// BaseURL is the portal origin, e.g. "https://acme.docebosaas.com".
	BaseURL string

	Username string
	Password string

	// MaxPageAttempts bounds pagination advances plus faulted attempts.
	MaxPageAttempts int // default: 50

	// WaitTimeout bounds every explicit wait for an element or URL.
	WaitTimeout time.Duration // default: 10s

	// NavigationTimeout bounds a single page.Navigate call.
	NavigationTimeout time.Duration // default: 30s

	// DetailRPS paces report-page navigations. Zero or negative disables pacing.
	DetailRPS float64 // default: 1

	// Headers are extra HTTP headers sent by every tab.
	Headers map[string]string
}

// LoginURL is the course-management page that redirects to the login form.
func (c LMSConfig) LoginURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/course/manage"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is the proxy URL for all tabs.
	Proxy string

	// Stealth injects the go-rod/stealth evasions before every navigation.
	Stealth bool // default: true

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string

	// BlockTrackers fails requests to known analytics and tracking hosts.
	BlockTrackers bool // default: true
}

// StoreConfig controls where the course history is persisted.
type StoreConfig struct {
	// DataFile is the CSV history file, rewritten on every run.
	DataFile string // default: "courses_data.csv"

	// SQLitePath, when set, mirrors every snapshot into a SQLite database.
	SQLitePath string

	// ArchiveDir, when set, receives a brotli copy of the previous CSV before it is overwritten.
	ArchiveDir string

	// RefreshMetadata overwrites Type/Creation Date/Days Since Creation/Training
	// Materials on re-sighting of a known title. Off keeps the first-seen values.
	RefreshMetadata bool // default: false
}

// PublishConfig controls the optional SFTP upload of the CSV after a run.
type PublishConfig struct {
	SFTPHost              string
	SFTPPort              int // default: 22
	SFTPUser              string
	SFTPPass              string
	SFTPRemoteDir         string // default: "/"
	InsecureIgnoreHostKey bool

	// KnownHostsFile verifies the server key; empty means ~/.ssh/known_hosts.
	KnownHostsFile string
}

// Enabled reports whether an SFTP destination is configured.
func (c PublishConfig) Enabled() bool {
	return c.SFTPHost != ""
}

// WebhookConfig controls run notifications.
type WebhookConfig struct {
	URL    string
	Secret string
}

// ServerConfig controls the read API started by "lmstrack serve".
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"

	// APIKeys guards the API; empty means open access.
	APIKeys []string

	RequestsPerSecond float64 // default: 5
	Burst             int     // default: 10

	// Interval between scheduled scrapes. Zero disables the schedule.
	Interval time.Duration // default: 24h
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		LMS: LMSConfig{
			BaseURL:           "https://example.docebosaas.com",
			MaxPageAttempts:   50,
			WaitTimeout:       10 * time.Second,
			NavigationTimeout: 30 * time.Second,
			DetailRPS:         1,
		},
		Browser: BrowserConfig{
			Headless:             true,
			Stealth:              true,
			BlockedResourceTypes: []string{"Image", "Font", "Media"},
			BlockTrackers:        true,
		},
		Store: StoreConfig{
			DataFile: "courses_data.csv",
		},
		Publish: PublishConfig{
			SFTPPort:      22,
			SFTPRemoteDir: "/",
		},
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8080,
			Mode:              "release",
			RequestsPerSecond: 5,
			Burst:             10,
			Interval:          24 * time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	cfg := Defaults()
	applyEnv(cfg)
	return cfg
}

// applyEnv overlays LMSTRACK_* variables; unset variables keep the current value.
func applyEnv(c *Config) {
	c.LMS.BaseURL = envOr("LMSTRACK_BASE_URL", c.LMS.BaseURL)
	c.LMS.Username = envOr("LMSTRACK_USERNAME", c.LMS.Username)
	c.LMS.Password = envOr("LMSTRACK_PASSWORD", c.LMS.Password)
	c.LMS.MaxPageAttempts = envIntOr("LMSTRACK_MAX_PAGE_ATTEMPTS", c.LMS.MaxPageAttempts)
	c.LMS.WaitTimeout = envDurationOr("LMSTRACK_WAIT_TIMEOUT", c.LMS.WaitTimeout)
	c.LMS.NavigationTimeout = envDurationOr("LMSTRACK_NAV_TIMEOUT", c.LMS.NavigationTimeout)
	c.LMS.DetailRPS = envFloatOr("LMSTRACK_DETAIL_RPS", c.LMS.DetailRPS)
	c.LMS.Headers = envMapOr("LMSTRACK_HEADERS", c.LMS.Headers)

	c.Browser.Headless = envBoolOr("LMSTRACK_HEADLESS", c.Browser.Headless)
	c.Browser.NoSandbox = envBoolOr("LMSTRACK_NO_SANDBOX", c.Browser.NoSandbox)
	c.Browser.BrowserBin = envOr("LMSTRACK_BROWSER_BIN", c.Browser.BrowserBin)
	c.Browser.Proxy = envOr("LMSTRACK_PROXY", c.Browser.Proxy)
	c.Browser.Stealth = envBoolOr("LMSTRACK_STEALTH", c.Browser.Stealth)
	c.Browser.BlockedResourceTypes = envSliceOr("LMSTRACK_BLOCKED_RESOURCES", c.Browser.BlockedResourceTypes)
	c.Browser.BlockTrackers = envBoolOr("LMSTRACK_BLOCK_TRACKERS", c.Browser.BlockTrackers)

	c.Store.DataFile = envOr("LMSTRACK_DATA_FILE", c.Store.DataFile)
	c.Store.SQLitePath = envOr("LMSTRACK_SQLITE_PATH", c.Store.SQLitePath)
	c.Store.ArchiveDir = envOr("LMSTRACK_ARCHIVE_DIR", c.Store.ArchiveDir)
	c.Store.RefreshMetadata = envBoolOr("LMSTRACK_REFRESH_METADATA", c.Store.RefreshMetadata)

	c.Publish.SFTPHost = envOr("SFTP_HOST", c.Publish.SFTPHost)
	c.Publish.SFTPPort = envIntOr("SFTP_PORT", c.Publish.SFTPPort)
	c.Publish.SFTPUser = envOr("SFTP_USER", c.Publish.SFTPUser)
	c.Publish.SFTPPass = envOr("SFTP_PASS", c.Publish.SFTPPass)
	c.Publish.SFTPRemoteDir = envOr("SFTP_REMOTE_DIR", c.Publish.SFTPRemoteDir)
	c.Publish.InsecureIgnoreHostKey = envBoolOr("SFTP_INSECURE_IGNORE_HOST_KEY", c.Publish.InsecureIgnoreHostKey)
	c.Publish.KnownHostsFile = envOr("SFTP_KNOWN_HOSTS", c.Publish.KnownHostsFile)

	c.Webhook.URL = envOr("LMSTRACK_WEBHOOK_URL", c.Webhook.URL)
	c.Webhook.Secret = envOr("LMSTRACK_WEBHOOK_SECRET", c.Webhook.Secret)

	c.Server.Host = envOr("LMSTRACK_HOST", c.Server.Host)
	c.Server.Port = envIntOr("LMSTRACK_PORT", c.Server.Port)
	c.Server.Mode = envOr("LMSTRACK_MODE", c.Server.Mode)
	c.Server.APIKeys = envSliceOr("LMSTRACK_API_KEYS", c.Server.APIKeys)
	c.Server.RequestsPerSecond = envFloatOr("LMSTRACK_RATE_RPS", c.Server.RequestsPerSecond)
	c.Server.Burst = envIntOr("LMSTRACK_RATE_BURST", c.Server.Burst)
	c.Server.Interval = envDurationOr("LMSTRACK_INTERVAL", c.Server.Interval)

	c.Log.Level = envOr("LMSTRACK_LOG_LEVEL", c.Log.Level)
	c.Log.Format = envOr("LMSTRACK_LOG_FORMAT", c.Log.Format)
}

// Validate checks the settings every command depends on.
func (c *Config) Validate() error {
	if c.Store.DataFile == "" {
		return fmt.Errorf("config: data file path is empty")
	}
	if c.LMS.MaxPageAttempts <= 0 {
		return fmt.Errorf("config: max page attempts must be positive, got %d", c.LMS.MaxPageAttempts)
	}
	if c.LMS.WaitTimeout <= 0 {
		return fmt.Errorf("config: wait timeout must be positive, got %s", c.LMS.WaitTimeout)
	}
	if c.LMS.NavigationTimeout <= 0 {
		return fmt.Errorf("config: navigation timeout must be positive, got %s", c.LMS.NavigationTimeout)
	}
	return nil
}

// RequireCredentials checks the settings a scrape needs on top of Validate.
func (c *Config) RequireCredentials() error {
	if err := c.Validate(); err != nil {
		return err
	}
	u, err := url.Parse(c.LMS.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: invalid base URL %q", c.LMS.BaseURL)
	}
	if c.LMS.Username == "" || c.LMS.Password == "" {
		return fmt.Errorf("config: LMSTRACK_USERNAME and LMSTRACK_PASSWORD are required")
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

// envMapOr parses "Key=Value,Key2=Value2".
func envMapOr(key string, fallback map[string]string) map[string]string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	result := make(map[string]string)
	for _, pair := range strings.Split(v, ",") {
		k, val, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		if k = strings.TrimSpace(k); k != "" {
			result[k] = strings.TrimSpace(val)
		}
	}
	if len(result) == 0 {
		return fallback
	}
	return result
}
