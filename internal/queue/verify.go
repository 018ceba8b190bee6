package queue

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spool-labs/eventspool/pkg/log"
)

// Verifier is a BatchValidator that streams a sealed batch file and checks
// its structural frame: header line first, footer closing the document last.
// It never loads the whole file; wiring it is optional and mainly useful
// under --verify.
type Verifier struct {
	logger log.Logger
}

// NewVerifier creates a Verifier logging findings through logger.
func NewVerifier(logger log.Logger) *Verifier {
	return &Verifier{logger: logger}
}

// ValidateBatch checks the file at path. Problems are logged, never fatal;
// validation runs after the batch content is already durable.
func (v *Verifier) ValidateBatch(path string) {
	if err := verifyBatchFile(path); err != nil {
		v.logger.Warn("batch verification failed", log.Str("file", path), log.Err(err))
	}
}

func verifyBatchFile(path string) error {
	r, err := OpenLineReader(path)
	if err != nil {
		return err
	}
	defer r.Close()

	first, err := r.ReadLine()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if first != headerLine {
		return fmt.Errorf("unexpected header %q", first)
	}
	last := first
	for {
		line, err := r.ReadLine()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if line != "" {
			last = line
		}
	}
	if !strings.HasPrefix(last, "]") || !strings.HasSuffix(last, "}") {
		return fmt.Errorf("unexpected footer %q", last)
	}
	return nil
}
