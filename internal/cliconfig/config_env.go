package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables
// (EVENTSPOOL_*). It respects flags that have been explicitly set (changed
// map). Returns an error if any variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("write-key", os.Getenv("EVENTSPOOL_WRITE_KEY"), &cfg.WriteKey)
	s.setString("dir", os.Getenv("EVENTSPOOL_DIR"), &cfg.Dir)
	s.setString("base-name", os.Getenv("EVENTSPOOL_BASE_NAME"), &cfg.BaseName)
	s.setString("endpoint", os.Getenv("EVENTSPOOL_ENDPOINT"), &cfg.Endpoint)
	s.setString("cdn", os.Getenv("EVENTSPOOL_CDN"), &cfg.CDN)
	s.setString("auth-token", os.Getenv("EVENTSPOOL_AUTH_TOKEN"), &cfg.AuthToken)
	s.setString("index-backend", os.Getenv("EVENTSPOOL_INDEX_BACKEND"), &cfg.IndexBackend)
	s.setString("archive-region", os.Getenv("EVENTSPOOL_ARCHIVE_REGION"), &cfg.ArchiveRegion)
	s.setString("archive-bucket", os.Getenv("EVENTSPOOL_ARCHIVE_BUCKET"), &cfg.ArchiveBucket)
	s.setString("archive-prefix", os.Getenv("EVENTSPOOL_ARCHIVE_PREFIX"), &cfg.ArchivePrefix)
	s.setString("log-level", os.Getenv("EVENTSPOOL_LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("flush-interval", os.Getenv("EVENTSPOOL_FLUSH_INTERVAL"), &cfg.FlushInterval); err != nil {
		return err
	}
	if err := s.setDuration("timeout", os.Getenv("EVENTSPOOL_HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}

	if err := s.setIntFromString("max-file-size", os.Getenv("EVENTSPOOL_MAX_FILE_SIZE"), &cfg.MaxFileSize); err != nil {
		return err
	}
	if err := s.setIntFromString("max-fetch-files", os.Getenv("EVENTSPOOL_MAX_FETCH_FILES"), &cfg.MaxFetchFiles); err != nil {
		return err
	}
	if err := s.setIntFromString("max-fetch-bytes", os.Getenv("EVENTSPOOL_MAX_FETCH_BYTES"), &cfg.MaxFetchBytes); err != nil {
		return err
	}

	s.setBoolFromString("log-pretty", os.Getenv("EVENTSPOOL_LOG_PRETTY"), &cfg.LogPretty)
	s.setBoolFromString("verify", os.Getenv("EVENTSPOOL_VERIFY"), &cfg.Verify)
	s.setBoolFromString("once", os.Getenv("EVENTSPOOL_ONCE"), &cfg.Once)

	return nil
}
