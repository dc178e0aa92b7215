package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// fileConfig is the JSON5 shape of a config file. Durations are Go duration strings.
type fileConfig struct {
	BaseURL         string            `json:"base_url"`
	Username        string            `json:"username"`
	Password        string            `json:"password"`
	MaxPageAttempts int               `json:"max_page_attempts"`
	WaitTimeout     string            `json:"wait_timeout"`
	NavTimeout      string            `json:"navigation_timeout"`
	DetailRPS       float64           `json:"detail_rps"`
	Headers         map[string]string `json:"headers"`

	BrowserBin string `json:"browser_bin"`
	Proxy      string `json:"proxy"`
	NoSandbox  bool   `json:"no_sandbox"`

	DataFile        string `json:"data_file"`
	SQLitePath      string `json:"sqlite_path"`
	ArchiveDir      string `json:"archive_dir"`
	RefreshMetadata bool   `json:"refresh_metadata"`

	SFTP struct {
		Host      string `json:"host"`
		Port      int    `json:"port"`
		User      string `json:"user"`
		Pass      string `json:"pass"`
		RemoteDir string `json:"remote_dir"`
	} `json:"sftp"`

	WebhookURL    string `json:"webhook_url"`
	WebhookSecret string `json:"webhook_secret"`

	APIKeys  []string `json:"api_keys"`
	Interval string   `json:"interval"`
}

// LoadFile builds a Config from defaults, then the JSON5 file at path merged
// with its "<name>.local.<ext>" sibling, then environment variables.
//
// Only non-zero file values override defaults, so a file cannot switch a
// default-true boolean off; use the environment for that.
func LoadFile(path string) (*Config, error) {
	fc, err := readFileConfig(path)
	if err != nil {
		return nil, err
	}

	override, err := fc.toConfig()
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	cfg := Defaults()
	if err := mergo.Merge(cfg, override, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("config: merge %s: %w", path, err)
	}
	applyEnv(cfg)
	return cfg, nil
}

func readFileConfig(path string) (fileConfig, error) {
	var out fileConfig

	base, err := os.ReadFile(path)
	if err != nil {
		return out, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := json5.Unmarshal(base, &out); err != nil {
		return out, fmt.Errorf("config: parse %s: %w", path, err)
	}

	localPath := localSibling(path)
	local, err := os.ReadFile(localPath)
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("config: read %s: %w", localPath, err)
	}

	var override fileConfig
	if err := json5.Unmarshal(local, &override); err != nil {
		return out, fmt.Errorf("config: parse %s: %w", localPath, err)
	}
	if err := mergo.Merge(&out, override, mergo.WithOverride); err != nil {
		return out, fmt.Errorf("config: merge %s: %w", localPath, err)
	}
	slog.Info("merging config with local overrides", "local", localPath)
	return out, nil
}

// localSibling maps "dir/lmstrack.json5" to "dir/lmstrack.local.json5".
func localSibling(path string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, name+".local"+ext)
}

func (fc fileConfig) toConfig() (*Config, error) {
	wait, err := parseDuration("wait_timeout", fc.WaitTimeout)
	if err != nil {
		return nil, err
	}
	nav, err := parseDuration("navigation_timeout", fc.NavTimeout)
	if err != nil {
		return nil, err
	}
	interval, err := parseDuration("interval", fc.Interval)
	if err != nil {
		return nil, err
	}

	return &Config{
		LMS: LMSConfig{
			BaseURL:           fc.BaseURL,
			Username:          fc.Username,
			Password:          fc.Password,
			MaxPageAttempts:   fc.MaxPageAttempts,
			WaitTimeout:       wait,
			NavigationTimeout: nav,
			DetailRPS:         fc.DetailRPS,
			Headers:           fc.Headers,
		},
		Browser: BrowserConfig{
			BrowserBin: fc.BrowserBin,
			Proxy:      fc.Proxy,
			NoSandbox:  fc.NoSandbox,
		},
		Store: StoreConfig{
			DataFile:        fc.DataFile,
			SQLitePath:      fc.SQLitePath,
			ArchiveDir:      fc.ArchiveDir,
			RefreshMetadata: fc.RefreshMetadata,
		},
		Publish: PublishConfig{
			SFTPHost:      fc.SFTP.Host,
			SFTPPort:      fc.SFTP.Port,
			SFTPUser:      fc.SFTP.User,
			SFTPPass:      fc.SFTP.Pass,
			SFTPRemoteDir: fc.SFTP.RemoteDir,
		},
		Webhook: WebhookConfig{
			URL:    fc.WebhookURL,
			Secret: fc.WebhookSecret,
		},
		Server: ServerConfig{
			APIKeys:  fc.APIKeys,
			Interval: interval,
		},
	}, nil
}

func parseDuration(field, v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return d, nil
}
