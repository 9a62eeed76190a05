package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	appLog "tutorcal/internal/log"
)

const (
	EnvBaseURL  = "TUTORCAL_API_BASE_URL"
	EnvToken    = "TUTORCAL_API_TOKEN"
	EnvListen   = "TUTORCAL_LISTEN"
	EnvLogLevel = "TUTORCAL_LOG_LEVEL"
)

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
		appLog.Debug("loaded env file", "path", f)
	}
	return nil
}

// ApplyEnv overlays TUTORCAL_* environment variables onto c.
func ApplyEnv(c *Config) {
	if v := os.Getenv(EnvBaseURL); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv(EnvToken); v != "" {
		c.API.Token = v
	}
	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	c.Normalize()
}
