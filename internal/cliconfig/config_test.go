package cliconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	if c.Endpoint != DefaultEndpoint || c.CDN != DefaultCDN {
		t.Fatalf("endpoints = %q %q", c.Endpoint, c.CDN)
	}
	if c.MaxFileSize != 475*1024 {
		t.Fatalf("max file size = %d", c.MaxFileSize)
	}
	if c.FlushInterval != 30*time.Second {
		t.Fatalf("flush interval = %v", c.FlushInterval)
	}
	if c.IndexBackend != "file" {
		t.Fatalf("index backend = %q", c.IndexBackend)
	}
}

func TestValidateRequiresWriteKey(t *testing.T) {
	c := DefaultConfig()
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "write-key") {
		t.Fatalf("err = %v, want write-key error", err)
	}
}

func TestValidateDerivesDirFromHome(t *testing.T) {
	c := DefaultConfig()
	c.WriteKey = "wk_abc"
	if err := c.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.HasSuffix(c.Dir, "/.eventspool/wk_abc") {
		t.Fatalf("dir = %q", c.Dir)
	}
}

func TestValidateChecksIndexBackend(t *testing.T) {
	for _, backend := range []string{"file", "sqlite"} {
		c := DefaultConfig()
		c.WriteKey = "wk"
		c.IndexBackend = backend
		if err := c.Validate(); err != nil {
			t.Fatalf("%s: %v", backend, err)
		}
	}
	c := DefaultConfig()
	c.WriteKey = "wk"
	c.IndexBackend = "redis"
	if err := c.Validate(); err == nil {
		t.Fatal("expected index-backend error")
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFileConfig(t *testing.T) {
	path := writeConfigFile(t, `
write_key = "wk_file"
endpoint = "https://api.internal.example.com"
flush_interval = "10s"
max_fetch_files = 5
log_pretty = false
verify = true
`)
	fc, err := LoadFileConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if fc.WriteKey != "wk_file" || fc.FlushInterval != "10s" || fc.MaxFetchFiles != 5 {
		t.Fatalf("parsed badly: %+v", fc)
	}
	if fc.LogPretty == nil || *fc.LogPretty {
		t.Fatal("log_pretty = false should survive as an explicit false")
	}
	if fc.Verify == nil || !*fc.Verify {
		t.Fatal("verify = true not parsed")
	}
}

func TestApplyFileConfigRespectsChangedFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WriteKey = "wk_flag"
	fc := FileConfig{
		WriteKey:      "wk_file",
		Endpoint:      "https://file.example.com",
		FlushInterval: "10s",
		MaxFetchFiles: 5,
	}
	changed := map[string]bool{"write-key": true}

	if err := ApplyFileConfig(&cfg, fc, changed); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.WriteKey != "wk_flag" {
		t.Fatalf("explicit flag overridden by file: %q", cfg.WriteKey)
	}
	if cfg.Endpoint != "https://file.example.com" {
		t.Fatalf("endpoint not applied: %q", cfg.Endpoint)
	}
	if cfg.FlushInterval != 10*time.Second {
		t.Fatalf("flush interval = %v", cfg.FlushInterval)
	}
	if cfg.MaxFetchFiles != 5 {
		t.Fatalf("max fetch files = %d", cfg.MaxFetchFiles)
	}
}

func TestApplyFileConfigBadDuration(t *testing.T) {
	cfg := DefaultConfig()
	fc := FileConfig{FlushInterval: "soon"}
	if err := ApplyFileConfig(&cfg, fc, nil); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestApplyFileConfigExplicitFalse(t *testing.T) {
	cfg := DefaultConfig()
	f := false
	if err := ApplyFileConfig(&cfg, FileConfig{LogPretty: &f}, nil); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.LogPretty {
		t.Fatal("explicit false should override the default true")
	}
}

func TestApplyEnvConfig(t *testing.T) {
	t.Setenv("EVENTSPOOL_WRITE_KEY", "wk_env")
	t.Setenv("EVENTSPOOL_FLUSH_INTERVAL", "15s")
	t.Setenv("EVENTSPOOL_MAX_FETCH_FILES", "7")
	t.Setenv("EVENTSPOOL_LOG_PRETTY", "false")

	cfg := DefaultConfig()
	if err := ApplyEnvConfig(&cfg, nil); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.WriteKey != "wk_env" || cfg.FlushInterval != 15*time.Second || cfg.MaxFetchFiles != 7 {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.LogPretty {
		t.Fatal("EVENTSPOOL_LOG_PRETTY=false not applied")
	}
}

func TestApplyEnvConfigFlagWins(t *testing.T) {
	t.Setenv("EVENTSPOOL_ENDPOINT", "https://env.example.com")

	cfg := DefaultConfig()
	cfg.Endpoint = "https://flag.example.com"
	changed := map[string]bool{"endpoint": true}
	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.Endpoint != "https://flag.example.com" {
		t.Fatalf("explicit flag overridden by env: %q", cfg.Endpoint)
	}
}

func TestApplyEnvConfigBadInt(t *testing.T) {
	t.Setenv("EVENTSPOOL_MAX_FETCH_BYTES", "lots")
	cfg := DefaultConfig()
	if err := ApplyEnvConfig(&cfg, nil); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFileExists(t *testing.T) {
	path := writeConfigFile(t, "")
	if !FileExists(path) {
		t.Fatal("existing file reported missing")
	}
	if FileExists(filepath.Join(t.TempDir(), "nope.toml")) {
		t.Fatal("missing file reported present")
	}
}
