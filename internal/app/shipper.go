// Package app orchestrates the queue and delivery pipeline into the
// shipping loop the daemon runs.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spool-labs/eventspool/internal/delivery"
	"github.com/spool-labs/eventspool/internal/ports"
	"github.com/spool-labs/eventspool/internal/queue"
	"github.com/spool-labs/eventspool/pkg/log"
)

// ShipperConfig tunes the delivery loop.
type ShipperConfig struct {
	// FlushInterval is how often ready batches are fetched and shipped.
	FlushInterval time.Duration

	// MaxFetchFiles caps how many sealed files one flush takes; 0 is
	// unbounded.
	MaxFetchFiles int

	// MaxFetchBytes caps the cumulative size one flush takes; 0 is
	// unbounded.
	MaxFetchBytes int64

	// Once drains the queue with a single flush and returns.
	Once bool
}

// Shipper periodically fetches sealed batch files and drives each through
// one delivery attempt, removing delivered and terminally rejected files
// and retaining retriable ones for the next cycle.
type Shipper struct {
	store    *queue.Store
	pipeline *delivery.Pipeline
	archiver ports.Archiver
	logger   log.Logger
	backoff  *backoff

	mu  sync.Mutex
	cfg ShipperConfig
}

// ShipperOption configures optional Shipper collaborators.
type ShipperOption func(*Shipper)

// WithLogger sets the shipper logger.
func WithLogger(l log.Logger) ShipperOption {
	return func(s *Shipper) { s.logger = l }
}

// WithArchiver routes terminally rejected batch files to an archive before
// they are dropped.
func WithArchiver(a ports.Archiver) ShipperOption {
	return func(s *Shipper) { s.archiver = a }
}

// NewShipper creates a Shipper over the given store and pipeline.
func NewShipper(cfg ShipperConfig, store *queue.Store, pipeline *delivery.Pipeline, opts ...ShipperOption) *Shipper {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 30 * time.Second
	}
	s := &Shipper{
		cfg:      cfg,
		store:    store,
		pipeline: pipeline,
		logger:   log.NewNoopLogger(),
		backoff:  newBackoff(DefaultBackoffInitial, DefaultBackoffMax),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetTuning updates the hot-reloadable loop parameters; the next cycle
// picks them up.
func (s *Shipper) SetTuning(interval time.Duration, maxFiles int, maxBytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if interval > 0 {
		s.cfg.FlushInterval = interval
	}
	s.cfg.MaxFetchFiles = maxFiles
	s.cfg.MaxFetchBytes = maxBytes
}

func (s *Shipper) tuning() (time.Duration, int, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.FlushInterval, s.cfg.MaxFetchFiles, s.cfg.MaxFetchBytes
}

// Run executes the shipping loop until the context is canceled. On shutdown
// it attempts one final flush with a short grace period.
func (s *Shipper) Run(ctx context.Context) error {
	s.mu.Lock()
	once := s.cfg.Once
	s.mu.Unlock()
	if once {
		return s.drain(ctx)
	}

	for {
		interval, _, _ := s.tuning()
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			grace, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.Flush(grace); err != nil {
				s.logger.Warn("final flush failed", log.Err(err))
			}
			return ctx.Err()
		case <-timer.C:
			if err := s.Flush(ctx); err != nil {
				s.logger.Error("flush failed", log.Err(err))
			}
		}
	}
}

// drain flushes until the queue reports nothing ready or a retriable
// failure stops progress.
func (s *Shipper) drain(ctx context.Context) error {
	for {
		_, maxFiles, maxBytes := s.tuning()
		res, err := s.store.Fetch(maxFiles, maxBytes)
		if err != nil {
			return err
		}
		if res == nil {
			return nil
		}
		if done, err := s.shipAll(ctx, res.Files); err != nil || !done {
			return err
		}
	}
}

// Flush seals the active file, fetches ready batches within the configured
// bounds, and ships them in index order.
func (s *Shipper) Flush(ctx context.Context) error {
	_, maxFiles, maxBytes := s.tuning()
	res, err := s.store.Fetch(maxFiles, maxBytes)
	if err != nil {
		return err
	}
	if res == nil {
		return nil
	}
	_, err = s.shipAll(ctx, res.Files)
	return err
}

// shipAll uploads files sequentially. A retriable failure stops the pass;
// the remaining files stay queued for the next flush. Returns whether the
// whole list was delivered.
func (s *Shipper) shipAll(ctx context.Context, files []string) (bool, error) {
	for _, path := range files {
		attempt := uuid.NewString()
		start := time.Now()
		out := s.shipOne(ctx, path)

		switch {
		case out.Success():
			s.store.Remove([]string{path})
			s.backoff.Reset()
			s.logger.Info("batch delivered",
				log.Str("file", filepath.Base(path)),
				log.Str("attempt", attempt),
				log.Dur("duration", time.Since(start)))

		case out.Retriable():
			s.logger.Warn("batch retained for retry",
				log.Str("file", filepath.Base(path)),
				log.Str("attempt", attempt),
				log.Str("reason", out.Reason.String()),
				log.Int("status", out.Status),
				log.Err(out.Err))
			if err := s.backoff.Wait(ctx); err != nil {
				return false, err
			}
			return false, nil

		default:
			s.dropTerminal(path, out)
		}
	}
	return true, nil
}

// dropTerminal archives (when configured) and removes a batch the server
// will never accept.
func (s *Shipper) dropTerminal(path string, out delivery.Outcome) {
	if s.archiver != nil {
		if err := s.archiver.Archive(path, filepath.Base(path)); err != nil {
			s.logger.Error("archive failed", log.Str("file", filepath.Base(path)), log.Err(err))
		}
	}
	s.logger.Error("batch dropped",
		log.Str("file", filepath.Base(path)),
		log.Str("reason", out.Reason.String()),
		log.Int("status", out.Status))
	s.store.Remove([]string{path})
}

// shipOne performs a single delivery attempt and blocks until its outcome
// arrives. Cancellation aborts the task; the file is untouched either way.
func (s *Shipper) shipOne(ctx context.Context, path string) delivery.Outcome {
	ch := make(chan delivery.Outcome, 1)
	task, err := s.pipeline.UploadBatchFile(ctx, path, func(o delivery.Outcome) {
		ch <- o
	})
	if err != nil {
		return delivery.Outcome{
			Kind:   delivery.KindRetriable,
			Reason: delivery.ReasonUnknown,
			Err:    fmt.Errorf("start upload: %w", err),
		}
	}
	task.Resume()
	select {
	case out := <-ch:
		return out
	case <-ctx.Done():
		task.Cancel()
		// Completion still fires with a transport error.
		return <-ch
	}
}
