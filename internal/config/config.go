// Package config loads run settings from defaults, an optional YAML file and
// VELVETCHECK_* environment variables. Command-line flags are applied on top
// by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read from the working directory when no file is named.
const DefaultFile = "velvetcheck.yaml"

// EnvPrefix prefixes every environment variable the config reads.
const EnvPrefix = "VELVETCHECK_"

// Output formats.
const (
	OutputText = "text"
	OutputJSON = "json"
)

// Config holds everything a verification run needs.
type Config struct {
	URL        string   `yaml:"url" env:"URL"`
	OutDir     string   `yaml:"out_dir" env:"OUT_DIR"`
	InviteCode string   `yaml:"invite_code" env:"INVITE_CODE"`
	Browser    Browser  `yaml:"browser"`
	Timeouts   Timeouts `yaml:"timeouts"`
	LogLevel   string   `yaml:"log_level" env:"LOG_LEVEL"`
	Output     string   `yaml:"output" env:"OUTPUT"`
	// Strict turns a failed verification into a non-zero exit status.
	Strict bool `yaml:"strict" env:"STRICT"`
}

// Browser configures how Chrome is found and started.
type Browser struct {
	Headless   bool   `yaml:"headless" env:"HEADLESS"`
	ChromePath string `yaml:"chrome_path" env:"CHROME_PATH"`
	// Download fetches a Chromium build when none is installed.
	Download bool `yaml:"download" env:"DOWNLOAD_BROWSER"`
	Width    int  `yaml:"width" env:"VIEWPORT_WIDTH"`
	Height   int  `yaml:"height" env:"VIEWPORT_HEIGHT"`
}

// Timeouts bound each kind of wait.
type Timeouts struct {
	Run        time.Duration `yaml:"run" env:"TIMEOUT"`
	Expect     time.Duration `yaml:"expect" env:"EXPECT_TIMEOUT"`
	Action     time.Duration `yaml:"action" env:"ACTION_TIMEOUT"`
	Navigation time.Duration `yaml:"navigation" env:"NAVIGATION_TIMEOUT"`
}

// Default returns the settings of a run with no file, environment or flags.
func Default() *Config {
	return &Config{
		URL:        "http://localhost:5000",
		OutDir:     "/home/jules/verification",
		InviteCode: "TESTCODE",
		Browser: Browser{
			Headless: true,
			Width:    1280,
			Height:   720,
		},
		Timeouts: Timeouts{
			Run:        2 * time.Minute,
			Expect:     5 * time.Second,
			Action:     30 * time.Second,
			Navigation: 30 * time.Second,
		},
		LogLevel: "info",
		Output:   OutputText,
	}
}

// Load returns the defaults overlaid with the YAML file at path and then the
// environment. An empty path reads DefaultFile if it exists; a named file
// must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := cfg.applyYAML(data); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// no config file
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := cfg.applyEnv(nil); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyYAML(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnv overlays VELVETCHECK_* variables. A nil environment means the
// process environment. Unset variables leave fields untouched.
func (c *Config) applyEnv(environ map[string]string) error {
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(c, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url %q must be an absolute http(s) URL", c.URL)
	}
	if strings.TrimSpace(c.OutDir) == "" {
		return errors.New("out_dir must not be empty")
	}
	if c.InviteCode == "" {
		return errors.New("invite_code must not be empty")
	}
	if c.Browser.Width <= 0 || c.Browser.Height <= 0 {
		return fmt.Errorf("viewport %dx%d must be positive", c.Browser.Width, c.Browser.Height)
	}
	for _, t := range []struct {
		name string
		d    time.Duration
	}{
		{"run", c.Timeouts.Run},
		{"expect", c.Timeouts.Expect},
		{"action", c.Timeouts.Action},
		{"navigation", c.Timeouts.Navigation},
	} {
		if t.d <= 0 {
			return fmt.Errorf("%s timeout must be positive, got %s", t.name, t.d)
		}
	}
	if c.Output != OutputText && c.Output != OutputJSON {
		return fmt.Errorf("output %q must be %q or %q", c.Output, OutputText, OutputJSON)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses LogLevel ("debug", "info", "warn", "error").
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level %q: %w", c.LogLevel, err)
	}
	return level, nil
}
