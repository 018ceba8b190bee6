package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to stay TOML
// friendly.
type FileConfig struct {
	WriteKey string `toml:"write_key"`
	Dir      string `toml:"dir"`
	BaseName string `toml:"base_name"`

	Endpoint  string `toml:"endpoint"`
	CDN       string `toml:"cdn"`
	AuthToken string `toml:"auth_token"`

	MaxFileSize   int    `toml:"max_file_size"`
	FlushInterval string `toml:"flush_interval"`
	MaxFetchFiles int    `toml:"max_fetch_files"`
	MaxFetchBytes int    `toml:"max_fetch_bytes"`
	HTTPTimeout   string `toml:"http_timeout"`

	IndexBackend string `toml:"index_backend"`

	ArchiveRegion string `toml:"archive_region"`
	ArchiveBucket string `toml:"archive_bucket"`
	ArchivePrefix string `toml:"archive_prefix"`

	LogLevel  string `toml:"log_level"`
	LogPretty *bool  `toml:"log_pretty"`

	Verify *bool `toml:"verify"`
	Once   *bool `toml:"once"`
}

// LoadFileConfig reads and parses a TOML config file.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.eventspool/config.toml if the user home
// directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".eventspool", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("write-key", fc.WriteKey, &cfg.WriteKey)
	s.setString("dir", fc.Dir, &cfg.Dir)
	s.setString("base-name", fc.BaseName, &cfg.BaseName)
	s.setString("endpoint", fc.Endpoint, &cfg.Endpoint)
	s.setString("cdn", fc.CDN, &cfg.CDN)
	s.setString("auth-token", fc.AuthToken, &cfg.AuthToken)
	s.setString("index-backend", fc.IndexBackend, &cfg.IndexBackend)
	s.setString("archive-region", fc.ArchiveRegion, &cfg.ArchiveRegion)
	s.setString("archive-bucket", fc.ArchiveBucket, &cfg.ArchiveBucket)
	s.setString("archive-prefix", fc.ArchivePrefix, &cfg.ArchivePrefix)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	if err := s.setDuration("flush-interval", fc.FlushInterval, &cfg.FlushInterval); err != nil {
		return err
	}
	if err := s.setDuration("timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}

	s.setInt("max-file-size", fc.MaxFileSize, &cfg.MaxFileSize)
	s.setInt("max-fetch-files", fc.MaxFetchFiles, &cfg.MaxFetchFiles)
	s.setInt("max-fetch-bytes", fc.MaxFetchBytes, &cfg.MaxFetchBytes)

	s.setBool("log-pretty", fc.LogPretty, &cfg.LogPretty)
	s.setBool("verify", fc.Verify, &cfg.Verify)
	s.setBool("once", fc.Once, &cfg.Once)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
