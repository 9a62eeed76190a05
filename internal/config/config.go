package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// APIConfig describes the lesson-schedule backend.
type APIConfig struct {
	// BaseURL is the API root without the /lesson-schedules/ suffix.
	BaseURL string `yaml:"base_url" json:"base_url"`
	// Token is the bearer credential. Usually left empty in the file and
	// supplied via TUTORCAL_API_TOKEN or the OS keyring instead.
	Token string `yaml:"token,omitempty" json:"-"`
	// TimeoutSeconds bounds every HTTP exchange with the backend.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
	// LoginURL is where users are sent after a 401.
	LoginURL string `yaml:"login_url" json:"login_url"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// CaptureConfig controls the headless PNG preview.
type CaptureConfig struct {
	Output string `yaml:"output" json:"output"`
	Width  int    `yaml:"width" json:"width"`
	Height int    `yaml:"height" json:"height"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone whose wall clock the calendar shows.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// RefreshCron is the cron schedule for background re-fetches.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	API APIConfig `yaml:"api" json:"api"`

	// HolidaysICS optionally points at a local .ics file whose all-day
	// events are layered over the built-in holiday table.
	HolidaysICS string `yaml:"holidays_ics,omitempty" json:"holidays_ics,omitempty"`

	// DefaultColor is the swatch preselected in the add form.
	DefaultColor string `yaml:"default_color" json:"default_color"`

	Capture CaptureConfig `yaml:"capture" json:"capture"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen   = "127.0.0.1:8080"
	defaultTimezone = "Asia/Tokyo"
	defaultRefresh  = "*/15 * * * *"
	defaultBaseURL  = "http://localhost:8000"
	defaultTimeout  = 5
	defaultLoginURL = "/login"
	defaultColor    = "#FFDDC1"
	defaultPreview  = "./cache/preview.png"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      defaultListen,
		Timezone:    defaultTimezone,
		LogLevel:    "info",
		RefreshCron: defaultRefresh,
		API: APIConfig{
			BaseURL:        defaultBaseURL,
			TimeoutSeconds: defaultTimeout,
			LoginURL:       defaultLoginURL,
		},
		DefaultColor: defaultColor,
		Capture: CaptureConfig{
			Output: defaultPreview,
			Width:  1280,
			Height: 960,
		},
	}
}

// Normalize fills in missing/zero values so partially-filled configs still
// behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	if c.API.BaseURL == "" {
		c.API.BaseURL = defaultBaseURL
	}
	if c.API.TimeoutSeconds <= 0 {
		c.API.TimeoutSeconds = defaultTimeout
	}
	if c.API.LoginURL == "" {
		c.API.LoginURL = defaultLoginURL
	}
	if c.DefaultColor == "" {
		c.DefaultColor = defaultColor
	}
	if c.Capture.Output == "" {
		c.Capture.Output = defaultPreview
	}
	if c.Capture.Width <= 0 {
		c.Capture.Width = 1280
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = 960
	}
	if c.BasicAuth != nil && (c.BasicAuth.Username == "" || c.BasicAuth.Password == "") {
		c.BasicAuth = nil
	}
}

// Timeout returns the API timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, err
	}
	return loc, nil
}

// Load loads configuration from the given YAML path.
//
// A missing file is created with defaults (0600). An existing file is
// parsed and normalized. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				ApplyEnv(cfg)
				return cfg, err
			}
			ApplyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	ApplyEnv(&cfg)

	return &cfg, nil
}

// Save writes cfg atomically (temp file + rename) with 0600 permissions.
// The in-memory token is never written back.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	onDisk := *cfg
	onDisk.API.Token = ""
	data, err := yaml.Marshal(&onDisk)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tutorcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
