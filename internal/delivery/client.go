package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spool-labs/eventspool/internal/ports"
	"github.com/spool-labs/eventspool/pkg/log"
)

const (
	batchEndpoint = "/b"

	// Version is reported in the User-Agent of every request.
	Version = "1.2.0"
)

// ErrInvalidConfig is returned when pipeline configuration validation fails.
var ErrInvalidConfig = errors.New("delivery: invalid configuration")

// Config holds the immutable settings of a Pipeline.
type Config struct {
	// Endpoint is the base URL of the ingestion API, e.g. "https://api.example.com".
	Endpoint string

	// CDN is the base URL serving per-project settings.
	CDN string

	// WriteKey identifies the project on both hosts.
	WriteKey string

	// UserAgent overrides the default "eventspool/<version>".
	UserAgent string

	// DecorateRequest, when set, is applied to every outgoing request as
	// the final construction step. It is how callers inject auth headers
	// without the pipeline knowing auth details.
	DecorateRequest func(*http.Request) *http.Request
}

// Validate checks the configuration and fills derived defaults.
func (c *Config) Validate() error {
	if c.WriteKey == "" {
		return fmt.Errorf("%w: write key is required", ErrInvalidConfig)
	}
	if c.Endpoint == "" {
		return fmt.Errorf("%w: endpoint is required", ErrInvalidConfig)
	}
	c.Endpoint = strings.TrimSuffix(c.Endpoint, "/")
	c.CDN = strings.TrimSuffix(c.CDN, "/")
	if c.UserAgent == "" {
		c.UserAgent = "eventspool/" + Version
	}
	return nil
}

// Pipeline builds outbound requests, streams sealed batch files as request
// bodies, and classifies every transfer outcome. It performs exactly one
// attempt per call; the caller owns retry scheduling, and it never writes
// to a batch file.
type Pipeline struct {
	cfg     Config
	session ports.Session
	logger  log.Logger
}

// PipelineOption configures optional Pipeline collaborators.
type PipelineOption func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(l log.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline creates a Pipeline using the given session capability.
func NewPipeline(cfg Config, session ports.Session, opts ...PipelineOption) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("%w: session is required", ErrInvalidConfig)
	}
	p := &Pipeline{
		cfg:     cfg,
		session: session,
		logger:  log.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// ConfiguredRequest builds a request with the fixed header set, applying the
// caller's decorator last.
func (p *Pipeline) ConfiguredRequest(ctx context.Context, method, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept-Encoding", "gzip")
	if p.cfg.DecorateRequest != nil {
		req = p.cfg.DecorateRequest(req)
	}
	return req, nil
}

// UploadBatchFile issues a single delivery attempt for the sealed batch file
// at path. The returned task must be resumed to begin the transfer; done
// receives the classified outcome exactly once. The file is only ever read.
func (p *Pipeline) UploadBatchFile(ctx context.Context, path string, done func(Outcome)) (ports.Task, error) {
	req, err := p.ConfiguredRequest(ctx, http.MethodPost, p.cfg.Endpoint+batchEndpoint)
	if err != nil {
		return nil, err
	}
	return p.session.UploadFile(req, path, p.complete(done))
}

// UploadBatchBytes is UploadBatchFile for a payload already in memory.
func (p *Pipeline) UploadBatchBytes(ctx context.Context, data []byte, done func(Outcome)) (ports.Task, error) {
	req, err := p.ConfiguredRequest(ctx, http.MethodPost, p.cfg.Endpoint+batchEndpoint)
	if err != nil {
		return nil, err
	}
	return p.session.UploadBytes(req, data, p.complete(done))
}

func (p *Pipeline) complete(done func(Outcome)) ports.Completion {
	return func(body []byte, status int, err error) {
		out := Classify(status, err)
		switch {
		case out.Err != nil:
			p.logger.Warn("batch transport failure", log.Err(out.Err))
		case out.Kind == KindTerminal:
			// The response body often names the offending payload; keep it.
			p.logger.Error("batch rejected",
				log.Int("status", out.Status),
				log.Str("reason", out.Reason.String()),
				log.Str("body", string(body)))
		}
		done(out)
	}
}
