// Package cliconfig holds CLI configuration for eventspool: defaults, a
// TOML config file, EVENTSPOOL_* environment overrides, and flag precedence.
package cliconfig

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// DefaultEndpoint is the default ingestion API base URL.
const DefaultEndpoint = "https://api.spool.dev"

// DefaultCDN is the default settings CDN base URL.
const DefaultCDN = "https://cdn.spool.dev"

// Config holds CLI configuration for eventspool.
type Config struct {
	WriteKey string

	// Dir is the queue directory; derived from the user home when empty.
	Dir      string
	BaseName string

	Endpoint  string
	CDN       string
	AuthToken string

	MaxFileSize   int
	FlushInterval time.Duration
	MaxFetchFiles int
	MaxFetchBytes int
	HTTPTimeout   time.Duration

	// IndexBackend selects the index counter store: "file" or "sqlite".
	IndexBackend string

	// S3 archive for terminally rejected batches; disabled when Bucket is
	// empty.
	ArchiveRegion string
	ArchiveBucket string
	ArchivePrefix string

	LogLevel  string
	LogPretty bool

	Verify bool
	Once   bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		BaseName:      "events",
		Endpoint:      DefaultEndpoint,
		CDN:           DefaultCDN,
		MaxFileSize:   475 * 1024,
		FlushInterval: 30 * time.Second,
		MaxFetchFiles: 10,
		MaxFetchBytes: 4 << 20, // 4MB
		HTTPTimeout:   30 * time.Second,
		IndexBackend:  "file",
		ArchivePrefix: "eventspool-rejected",
		LogLevel:      "info",
		LogPretty:     true,
		AuthToken:     os.Getenv("EVENTSPOOL_AUTH_TOKEN"),
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.WriteKey == "" {
		return fmt.Errorf("write-key is required")
	}
	if c.Dir == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("dir is required (home directory unavailable: %w)", err)
		}
		c.Dir = h + "/.eventspool/" + c.WriteKey
	}
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.CDN == "" {
		c.CDN = DefaultCDN
	}
	if c.IndexBackend != "file" && c.IndexBackend != "sqlite" {
		return fmt.Errorf("index-backend must be \"file\" or \"sqlite\", got %q", c.IndexBackend)
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("flush interval must be positive")
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("max file size must be positive")
	}
	return nil
}

// Logger builds the CLI zerolog logger from the logging settings.
func (c *Config) Logger() zerolog.Logger {
	level := zerolog.InfoLevel
	if l, err := zerolog.ParseLevel(c.LogLevel); err == nil {
		level = l
	}
	if c.LogPretty {
		output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		return zerolog.New(output).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}

// configSetter helps apply configuration values while respecting flag
// precedence. It only applies values if the corresponding flag has not been
// explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not
// changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
