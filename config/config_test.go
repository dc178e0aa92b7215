package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	require.Equal(t, 50, cfg.LMS.MaxPageAttempts)
	require.Equal(t, 10*time.Second, cfg.LMS.WaitTimeout)
	require.Equal(t, "courses_data.csv", cfg.Store.DataFile)
	require.False(t, cfg.Store.RefreshMetadata)
	require.True(t, cfg.Browser.Headless)
	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LMSTRACK_BASE_URL", "https://acme.docebosaas.com")
	t.Setenv("LMSTRACK_MAX_PAGE_ATTEMPTS", "7")
	t.Setenv("LMSTRACK_WAIT_TIMEOUT", "3s")
	t.Setenv("LMSTRACK_HEADLESS", "false")
	t.Setenv("LMSTRACK_API_KEYS", "a, b,,c")
	t.Setenv("LMSTRACK_HEADERS", "Accept-Language=en-US, X-Trace = 1")

	cfg := Load()

	require.Equal(t, "https://acme.docebosaas.com", cfg.LMS.BaseURL)
	require.Equal(t, "https://acme.docebosaas.com/course/manage", cfg.LMS.LoginURL())
	require.Equal(t, 7, cfg.LMS.MaxPageAttempts)
	require.Equal(t, 3*time.Second, cfg.LMS.WaitTimeout)
	require.False(t, cfg.Browser.Headless)
	require.Equal(t, []string{"a", "b", "c"}, cfg.Server.APIKeys)
	require.Equal(t, map[string]string{"Accept-Language": "en-US", "X-Trace": "1"}, cfg.LMS.Headers)
}

func TestLoad_InvalidEnvFallsBack(t *testing.T) {
	t.Setenv("LMSTRACK_MAX_PAGE_ATTEMPTS", "many")
	t.Setenv("LMSTRACK_WAIT_TIMEOUT", "soon")

	cfg := Load()

	require.Equal(t, 50, cfg.LMS.MaxPageAttempts)
	require.Equal(t, 10*time.Second, cfg.LMS.WaitTimeout)
}

func TestRequireCredentials(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"ok", func(c *Config) { c.LMS.Username, c.LMS.Password = "u", "p" }, false},
		{"missing password", func(c *Config) { c.LMS.Username = "u" }, true},
		{"bad base url", func(c *Config) {
			c.LMS.Username, c.LMS.Password = "u", "p"
			c.LMS.BaseURL = "not a url"
		}, true},
		{"zero attempts", func(c *Config) {
			c.LMS.Username, c.LMS.Password = "u", "p"
			c.LMS.MaxPageAttempts = 0
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.RequireCredentials()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoadFile_MergesLocalAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lmstrack.json5")

	base := `{
		// shared settings
		base_url: 'https://acme.docebosaas.com',
		username: 'ops@acme.test',
		wait_timeout: '5s',
		data_file: 'history.csv',
		sftp: { host: 'sftp.acme.test', port: 2222 },
	}`
	local := `{ password: 'hunter2', data_file: 'local.csv' }`
	require.NoError(t, os.WriteFile(path, []byte(base), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lmstrack.local.json5"), []byte(local), 0o600))

	t.Setenv("LMSTRACK_USERNAME", "env-user")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	require.Equal(t, "https://acme.docebosaas.com", cfg.LMS.BaseURL)
	require.Equal(t, "env-user", cfg.LMS.Username)
	require.Equal(t, "hunter2", cfg.LMS.Password)
	require.Equal(t, 5*time.Second, cfg.LMS.WaitTimeout)
	require.Equal(t, 30*time.Second, cfg.LMS.NavigationTimeout)
	require.Equal(t, "local.csv", cfg.Store.DataFile)
	require.Equal(t, "sftp.acme.test", cfg.Publish.SFTPHost)
	require.Equal(t, 2222, cfg.Publish.SFTPPort)
	require.Equal(t, "/", cfg.Publish.SFTPRemoteDir)
	require.True(t, cfg.Publish.Enabled())
	require.Equal(t, 50, cfg.LMS.MaxPageAttempts)
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(filepath.Join(dir, "missing.json5"))
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.json5")
	require.NoError(t, os.WriteFile(bad, []byte(`{ wait_timeout: 'ten seconds' }`), 0o600))
	_, err = LoadFile(bad)
	require.ErrorContains(t, err, "wait_timeout")
}
