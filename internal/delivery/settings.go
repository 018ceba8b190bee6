package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"

	"github.com/spool-labs/eventspool/internal/ports"
)

// ErrSettingsDecode marks a settings payload that arrived but could not be
// decoded, as opposed to a network or status failure.
var ErrSettingsDecode = errors.New("delivery: settings decode failed")

// Settings is the remote project configuration served by the CDN.
type Settings struct {
	Integrations map[string]json.RawMessage `json:"integrations"`
	Plan         json.RawMessage            `json:"plan,omitempty"`
	EdgeFunction json.RawMessage            `json:"edgeFunction,omitempty"`
}

// FetchSettings issues a GET against the per-project settings endpoint. It
// carries no retry guidance: any status above 300 or transport error is
// plain failure and the caller decides what to do. Decode failures are
// reported as ErrSettingsDecode, distinct from network failures.
func (p *Pipeline) FetchSettings(ctx context.Context, done func(*Settings, error)) (ports.Task, error) {
	if p.cfg.CDN == "" {
		return nil, fmt.Errorf("%w: cdn is required for settings", ErrInvalidConfig)
	}
	url := fmt.Sprintf("%s/projects/%s/settings", p.cfg.CDN, p.cfg.WriteKey)
	req, err := p.ConfiguredRequest(ctx, http.MethodGet, url)
	if err != nil {
		return nil, err
	}
	return p.session.Fetch(req, func(body []byte, status int, err error) {
		if err != nil {
			done(nil, fmt.Errorf("settings fetch: %w", err))
			return
		}
		if status > 300 {
			done(nil, fmt.Errorf("settings fetch: unexpected status %d", status))
			return
		}
		data, err := inflate(body)
		if err != nil {
			done(nil, fmt.Errorf("%w: %v", ErrSettingsDecode, err))
			return
		}
		var s Settings
		if err := json.Unmarshal(data, &s); err != nil {
			done(nil, fmt.Errorf("%w: %v", ErrSettingsDecode, err))
			return
		}
		done(&s, nil)
	})
}

// inflate decompresses gzip payloads. We ask for gzip by hand, which turns
// off net/http's transparent decompression, so the raw bytes may arrive
// compressed; sniff the magic rather than trust a header we cannot see.
func inflate(body []byte) ([]byte, error) {
	if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
		return body, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
