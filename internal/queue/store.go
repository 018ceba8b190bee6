package queue

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spool-labs/eventspool/internal/ports"
	"github.com/spool-labs/eventspool/pkg/log"
)

const (
	// headerLine opens the batch document. Everything written after it must
	// keep the file a valid JSON-array prefix until the footer lands.
	headerLine = `{ "batch": [`

	// sealedExt marks a batch file as complete and ready for delivery.
	sealedExt = ".json"

	// tailScanSize bounds the backward scan that decides whether the next
	// item needs a separating comma.
	tailScanSize = 256
)

// DefaultMaxFileSize is the rotation threshold when Config leaves it unset.
const DefaultMaxFileSize = 475 * 1024

// ErrInvalidConfig is returned when store configuration validation fails.
var ErrInvalidConfig = errors.New("queue: invalid configuration")

// Config holds the immutable settings of a Store.
type Config struct {
	// WriteKey scopes the queue and is stamped into every sealed batch.
	WriteKey string

	// Directory is the queue directory. The store owns its file set.
	Directory string

	// BaseName is the filename stem, e.g. "events".
	BaseName string

	// MaxFileSize is the rotation threshold in bytes. A single event larger
	// than the cap is still accepted and may itself exceed it.
	MaxFileSize int64

	// IndexKey names the persisted index counter. Defaults to a key derived
	// from the write key.
	IndexKey string
}

// Validate checks the configuration and fills derived defaults.
func (c *Config) Validate() error {
	if c.WriteKey == "" {
		return fmt.Errorf("%w: write key is required", ErrInvalidConfig)
	}
	if c.Directory == "" {
		return fmt.Errorf("%w: directory is required", ErrInvalidConfig)
	}
	if c.BaseName == "" {
		c.BaseName = "events"
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
	if c.IndexKey == "" {
		c.IndexKey = "eventspool.index." + c.WriteKey
	}
	return nil
}

// FetchResult lists sealed batch files ready for delivery. Removable mirrors
// Files; every returned file may be handed to Remove once its delivery is
// acknowledged or terminally rejected.
type FetchResult struct {
	Files     []string
	Removable []string
}

// Store is a directory-scoped durable queue of batch files. It owns the
// directory's file set and the single active writer; Append calls are
// serialized internally, so one Store is safe for concurrent use.
type Store struct {
	cfg       Config
	index     ports.IndexStore
	validator ports.BatchValidator
	report    ports.ErrorReporter
	logger    log.Logger

	mu          sync.Mutex
	writer      *LineWriter
	activePath  string
	activeIndex int
}

// Option configures optional Store collaborators.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithValidator sets the post-seal validation hook.
func WithValidator(v ports.BatchValidator) Option {
	return func(s *Store) { s.validator = v }
}

// WithErrorReporter sets the hook observing errors swallowed on the append
// path.
func WithErrorReporter(r ports.ErrorReporter) Option {
	return func(s *Store) { s.report = r }
}

// NewStore creates a Store over the given directory, creating it if needed.
func NewStore(cfg Config, index ports.IndexStore, opts ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if index == nil {
		return nil, fmt.Errorf("%w: index store is required", ErrInvalidConfig)
	}
	if err := os.MkdirAll(cfg.Directory, 0o700); err != nil {
		return nil, fmt.Errorf("create %s: %w", cfg.Directory, err)
	}
	s := &Store{
		cfg:       cfg,
		index:     index,
		validator: ports.NoopValidator{},
		logger:    log.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Append adds one already-serialized event to the active batch file,
// starting or rotating files as needed. I/O failures drop the event rather
// than destabilize the caller; they surface only through the error reporter.
func (s *Store) Append(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.appendLocked(event, true); err != nil {
		s.reportErr(err)
	}
}

func (s *Store) appendLocked(event string, allowRotate bool) error {
	if err := s.startFileIfNeeded(); err != nil {
		return err
	}

	// Seal and rotate before the triggering event is written, so every
	// append lands in a file under the cap (barring oversized events).
	if allowRotate && s.writer.BytesWritten() >= s.cfg.MaxFileSize {
		if err := s.finishFileLocked(); err != nil {
			return err
		}
		return s.appendLocked(event, false)
	}

	needed, err := s.needsComma()
	if err != nil {
		return err
	}
	if needed {
		event = "," + event
	}
	return s.writer.WriteLine(event)
}

// startFileIfNeeded ensures an active file and writer exist. A reopened
// non-empty file has its header validated; a corrupt header truncates the
// file back to zero, sacrificing uncommitted events over unparsable output.
func (s *Store) startFileIfNeeded() error {
	if s.writer != nil {
		return nil
	}
	idx, err := s.index.Get(s.cfg.IndexKey)
	if err != nil {
		return fmt.Errorf("read index: %w", err)
	}
	path := filepath.Join(s.cfg.Directory, fmt.Sprintf("%d-%s", idx, s.cfg.BaseName))
	w, err := OpenLineWriter(path)
	if err != nil {
		return err
	}
	if w.BytesWritten() == 0 {
		if err := w.WriteLine(headerLine); err != nil {
			w.Close()
			return err
		}
	} else if err := s.recoverHeader(w, path); err != nil {
		w.Close()
		return err
	}
	s.writer = w
	s.activePath = path
	s.activeIndex = idx
	return nil
}

func (s *Store) recoverHeader(w *LineWriter, path string) error {
	head, err := w.Head(len(headerLine))
	if err != nil {
		return err
	}
	if string(head) == headerLine {
		return nil
	}
	s.logger.Warn("batch header invalid, truncating", log.Str("file", filepath.Base(path)))
	if err := w.Truncate(0); err != nil {
		return err
	}
	return w.WriteLine(headerLine)
}

// needsComma decides whether the next item needs a separating comma by
// scanning backward over a fixed window at the end of the file: first
// non-whitespace byte equal to the opening bracket means first item.
func (s *Store) needsComma() (bool, error) {
	tail, err := s.writer.Tail(tailScanSize)
	if err != nil {
		return false, err
	}
	for i := len(tail) - 1; i >= 0; i-- {
		switch tail[i] {
		case ' ', '\t', '\n', '\r':
			continue
		case '[':
			return false, nil
		default:
			return true, nil
		}
	}
	return false, nil
}

// FinishFile seals the active batch file, if any, making it ready for
// delivery.
func (s *Store) FinishFile() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishFileLocked()
}

func (s *Store) finishFileLocked() error {
	if s.writer == nil {
		return nil
	}
	footer := fmt.Sprintf(`],"sentAt":%q,"writeKey":%q}`,
		time.Now().UTC().Format(time.RFC3339), s.cfg.WriteKey)
	if err := s.writer.WriteLine(footer); err != nil {
		return err
	}
	if err := s.writer.Sync(); err != nil {
		return err
	}
	if err := s.writer.TruncateToCurrentSize(); err != nil {
		return err
	}
	if err := s.writer.Close(); err != nil {
		return err
	}
	s.validator.ValidateBatch(s.activePath)

	sealed := s.activePath + sealedExt
	if err := os.Rename(s.activePath, sealed); err != nil {
		return fmt.Errorf("seal %s: %w", s.activePath, err)
	}
	s.writer = nil
	s.activePath = ""

	if err := s.index.Set(s.cfg.IndexKey, s.activeIndex+1); err != nil {
		return fmt.Errorf("advance index: %w", err)
	}
	s.logger.Debug("sealed batch file",
		log.Str("file", filepath.Base(sealed)),
		log.Int("index", s.activeIndex))
	return nil
}

// Fetch seals any in-progress file and returns ready batch files in index
// order, bounded by a cumulative byte budget and a file count. Zero values
// leave a bound unset. Returns nil when nothing is ready.
func (s *Store) Fetch(count int, maxBytes int64) (*FetchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.finishFileLocked(); err != nil {
		return nil, err
	}
	files, err := s.listFiles(true)
	if err != nil {
		return nil, err
	}
	if maxBytes > 0 {
		files, err = capByBytes(files, maxBytes)
		if err != nil {
			return nil, err
		}
	}
	if count > 0 && len(files) > count {
		files = files[:count]
	}
	if len(files) == 0 {
		return nil, nil
	}
	return &FetchResult{Files: files, Removable: files}, nil
}

// capByBytes keeps the leading files whose sizes accumulate under budget.
// A file that would reach the budget is excluded whole, never split.
func capByBytes(files []string, budget int64) ([]string, error) {
	var total int64
	kept := files[:0]
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", f, err)
		}
		if total+info.Size() >= budget {
			break
		}
		total += info.Size()
		kept = append(kept, f)
	}
	return kept, nil
}

// listFiles returns paths under the queue directory. With onlyReady it
// filters to sealed batch files sorted by their embedded index; otherwise
// it returns every entry, active file included.
func (s *Store) listFiles(onlyReady bool) ([]string, error) {
	entries, err := os.ReadDir(s.cfg.Directory)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.cfg.Directory, err)
	}
	type indexed struct {
		idx  int
		path string
	}
	var ready []indexed
	var all []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		full := filepath.Join(s.cfg.Directory, name)
		all = append(all, full)
		if !onlyReady {
			continue
		}
		idx, ok := s.parseSealedName(name)
		if !ok {
			continue
		}
		ready = append(ready, indexed{idx: idx, path: full})
	}
	if !onlyReady {
		sort.Strings(all)
		return all, nil
	}
	// Indices are not zero-padded, so lexicographic order breaks past 9.
	sort.Slice(ready, func(i, j int) bool { return ready[i].idx < ready[j].idx })
	out := make([]string, len(ready))
	for i, r := range ready {
		out[i] = r.path
	}
	return out, nil
}

// parseSealedName extracts the index from "<idx>-<base>.json" names.
func (s *Store) parseSealedName(name string) (int, bool) {
	if !strings.HasSuffix(name, sealedExt) {
		return 0, false
	}
	stem := strings.TrimSuffix(name, sealedExt)
	sep := strings.IndexByte(stem, '-')
	if sep <= 0 || stem[sep+1:] != s.cfg.BaseName {
		return 0, false
	}
	idx, err := strconv.Atoi(stem[:sep])
	if err != nil {
		return 0, false
	}
	return idx, true
}

// Remove deletes the given files from disk, best-effort. A file already
// gone is not an error and does not stop the remaining removals.
func (s *Store) Remove(files []string) {
	for _, f := range files {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			s.reportErr(fmt.Errorf("remove %s: %w", f, err))
		}
	}
}

// Reset wipes the queue: the active file is abandoned and every file in the
// directory, sealed or not, is removed.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer != nil {
		if err := s.writer.Close(); err != nil {
			s.reportErr(err)
		}
		s.writer = nil
		s.activePath = ""
	}
	files, err := s.listFiles(false)
	if err != nil {
		return err
	}
	s.Remove(files)
	return nil
}

// Close flushes and closes the active writer, leaving the in-progress file
// on disk for recovery on next open.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer == nil {
		return nil
	}
	err := s.writer.Close()
	s.writer = nil
	s.activePath = ""
	return err
}

func (s *Store) reportErr(err error) {
	s.logger.Error("queue error", log.Err(err))
	if s.report != nil {
		s.report(err)
	}
}
