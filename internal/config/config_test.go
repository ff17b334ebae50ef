package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "http://localhost:5000", cfg.URL)
	assert.Equal(t, "/home/jules/verification", cfg.OutDir)
	assert.Equal(t, "TESTCODE", cfg.InviteCode)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 5*time.Second, cfg.Timeouts.Expect)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Action)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Navigation)
	assert.Equal(t, 2*time.Minute, cfg.Timeouts.Run)
	assert.False(t, cfg.Strict)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_DefaultFileInWorkingDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, DefaultFile, "url: http://localhost:8080\n")
	chdir(t, dir)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.URL)
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "cfg.yaml", `
url: http://app.test:3000
out_dir: /tmp/evidence
invite_code: VIPPASS
browser:
  headless: false
  chrome_path: /opt/chrome/chrome
timeouts:
  expect: 2s
  run: 1m30s
output: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://app.test:3000", cfg.URL)
	assert.Equal(t, "/tmp/evidence", cfg.OutDir)
	assert.Equal(t, "VIPPASS", cfg.InviteCode)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "/opt/chrome/chrome", cfg.Browser.ChromePath)
	assert.Equal(t, 2*time.Second, cfg.Timeouts.Expect)
	assert.Equal(t, 90*time.Second, cfg.Timeouts.Run)
	assert.Equal(t, OutputJSON, cfg.Output)

	// Untouched values keep their defaults
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Action)
	assert.Equal(t, 1280, cfg.Browser.Width)
}

func TestLoad_EmptyFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "empty.yaml", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	path := writeFile(t, t.TempDir(), "typo.yaml", "ulr: http://x\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "cfg.yaml", "url: http://from-file:1\ninvite_code: FILECODE\n")
	t.Setenv("VELVETCHECK_URL", "http://from-env:2")
	t.Setenv("VELVETCHECK_EXPECT_TIMEOUT", "750ms")
	t.Setenv("VELVETCHECK_HEADLESS", "false")
	t.Setenv("VELVETCHECK_STRICT", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://from-env:2", cfg.URL)
	assert.Equal(t, "FILECODE", cfg.InviteCode)
	assert.Equal(t, 750*time.Millisecond, cfg.Timeouts.Expect)
	assert.False(t, cfg.Browser.Headless)
	assert.True(t, cfg.Strict)
}

func TestApplyEnv_UnsetLeavesValues(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.applyEnv(map[string]string{
		"VELVETCHECK_OUT_DIR":          "/srv/shots",
		"VELVETCHECK_DOWNLOAD_BROWSER": "true",
		"UNRELATED":                    "x",
	}))

	assert.Equal(t, "/srv/shots", cfg.OutDir)
	assert.True(t, cfg.Browser.Download)
	assert.Equal(t, "http://localhost:5000", cfg.URL)
	assert.Equal(t, "TESTCODE", cfg.InviteCode)
}

func TestApplyEnv_BadDuration(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(map[string]string{"VELVETCHECK_TIMEOUT": "soon"})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative url", func(c *Config) { c.URL = "localhost:5000" }},
		{"ftp url", func(c *Config) { c.URL = "ftp://localhost" }},
		{"empty out dir", func(c *Config) { c.OutDir = " " }},
		{"empty invite code", func(c *Config) { c.InviteCode = "" }},
		{"zero viewport", func(c *Config) { c.Browser.Width = 0 }},
		{"zero expect timeout", func(c *Config) { c.Timeouts.Expect = 0 }},
		{"negative run timeout", func(c *Config) { c.Timeouts.Run = -time.Second }},
		{"bad output", func(c *Config) { c.Output = "xml" }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSlogLevel(t *testing.T) {
	cfg := Default()

	cfg.LogLevel = "debug"
	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	cfg.LogLevel = "WARN"
	level, err = cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)
}
