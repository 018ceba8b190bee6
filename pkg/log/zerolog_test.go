package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func captureLine(t *testing.T, emit func(Logger)) map[string]interface{} {
	t.Helper()
	var buf bytes.Buffer
	emit(NewZerologAdapterWithLogger(zerolog.New(&buf)))

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, buf.Bytes())
	}
	return line
}

func TestZerologAdapterFields(t *testing.T) {
	line := captureLine(t, func(l Logger) {
		l.Info("shipped",
			Str("file", "0-events.json"),
			Int("status", 200),
			Int64("bytes", 1024),
			Bool("sealed", true),
			Dur("took", 250*time.Millisecond))
	})

	if line["message"] != "shipped" || line["level"] != "info" {
		t.Fatalf("unexpected line: %v", line)
	}
	if line["file"] != "0-events.json" {
		t.Fatalf("file = %v", line["file"])
	}
	if line["status"] != float64(200) || line["bytes"] != float64(1024) {
		t.Fatalf("numeric fields: %v", line)
	}
	if line["sealed"] != true {
		t.Fatalf("sealed = %v", line["sealed"])
	}
}

func TestZerologAdapterError(t *testing.T) {
	line := captureLine(t, func(l Logger) {
		l.Error("flush failed", Err(errors.New("disk full")))
	})
	if line["level"] != "error" || line["error"] != "disk full" {
		t.Fatalf("unexpected line: %v", line)
	}
}

func TestZerologAdapterAnyFallsBackToInterface(t *testing.T) {
	line := captureLine(t, func(l Logger) {
		l.Warn("odd value", Any("payload", map[string]int{"n": 1}))
	})
	payload, ok := line["payload"].(map[string]interface{})
	if !ok || payload["n"] != float64(1) {
		t.Fatalf("payload = %v", line["payload"])
	}
}

func TestNoopLoggerIsSilent(t *testing.T) {
	// Must not panic with nil fields or errors.
	l := NewNoopLogger()
	l.Debug("x")
	l.Info("x", Err(nil))
	l.Warn("x", Any("v", nil))
	l.Error("x")
}
