// Package httpsession implements ports.Session over net/http.
//
// Transfers are modeled as tasks: nothing happens until Resume, and Cancel
// aborts the request through its context. A cancelled or failed task never
// touches the source file.
package httpsession

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/spool-labs/eventspool/internal/ports"
	"github.com/spool-labs/eventspool/pkg/log"
)

// maxResponseBytes bounds how much of a response body is buffered for the
// completion callback. Ingestion responses are tiny; settings fit easily.
const maxResponseBytes = 1 << 20

// Session issues HTTP transfers using an injected client. The client owns
// the per-request deadline.
type Session struct {
	client ports.HTTPClient
	logger log.Logger
}

// Option configures optional Session collaborators.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l log.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// New creates a Session around client.
func New(client ports.HTTPClient, opts ...Option) *Session {
	s := &Session{client: client, logger: log.NewNoopLogger()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UploadFile posts the file at path as the request body. The file is opened
// lazily when the task is resumed, so a fetched-then-cancelled task leaves
// no open handle behind.
func (s *Session) UploadFile(req *http.Request, path string, done ports.Completion) (ports.Task, error) {
	return s.newTask(req, func() (io.ReadCloser, int64, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, 0, fmt.Errorf("open %s: %w", path, err)
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, 0, fmt.Errorf("stat %s: %w", path, err)
		}
		return f, info.Size(), nil
	}, done), nil
}

// UploadBytes posts data as the request body.
func (s *Session) UploadBytes(req *http.Request, data []byte, done ports.Completion) (ports.Task, error) {
	return s.newTask(req, func() (io.ReadCloser, int64, error) {
		return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
	}, done), nil
}

// Fetch performs the request as-is and delivers the response body.
func (s *Session) Fetch(req *http.Request, done ports.Completion) (ports.Task, error) {
	return s.newTask(req, nil, done), nil
}

type task struct {
	once   sync.Once
	run    func()
	cancel context.CancelFunc
}

// Resume starts the transfer. Resuming twice is a no-op.
func (t *task) Resume() {
	t.once.Do(func() { go t.run() })
}

// Cancel aborts the transfer; the completion callback still fires with a
// transport error if the request was in flight.
func (t *task) Cancel() {
	t.cancel()
}

func (s *Session) newTask(req *http.Request, body func() (io.ReadCloser, int64, error), done ports.Completion) *task {
	ctx, cancel := context.WithCancel(req.Context())
	t := &task{cancel: cancel}
	t.run = func() {
		r := req.Clone(ctx)
		if body != nil {
			rc, size, err := body()
			if err != nil {
				done(nil, 0, err)
				return
			}
			r.Body = rc
			r.ContentLength = size
		}
		resp, err := s.client.Do(r)
		if err != nil {
			done(nil, 0, err)
			return
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			s.logger.Debug("response body read failed", log.Err(err))
			done(nil, 0, err)
			return
		}
		done(data, resp.StatusCode, nil)
	}
	return t
}
