package queue

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// defaultChunkSize is how much the reader pulls from the file per refill.
const defaultChunkSize = 4096

// LineReader streams a file as delimiter-separated lines through a bounded
// internal buffer, so memory use stays at chunk size plus the longest line
// regardless of file size. Batch files can be large; never slurp them.
type LineReader struct {
	f     *os.File
	buf   []byte
	chunk []byte
	delim byte
	eof   bool // physical end of file reached
	done  bool // end-of-stream delivered
}

// OpenLineReader opens path for newline-delimited streaming.
func OpenLineReader(path string) (*LineReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &LineReader{
		f:     f,
		chunk: make([]byte, defaultChunkSize),
		delim: '\n',
	}, nil
}

// ReadLine returns the next line without its delimiter. At physical end of
// file any remaining buffered bytes are returned as a final line, even
// without a trailing delimiter. Subsequent calls return io.EOF.
func (r *LineReader) ReadLine() (string, error) {
	if r.done {
		return "", io.EOF
	}
	for {
		if i := bytes.IndexByte(r.buf, r.delim); i >= 0 {
			line := string(r.buf[:i])
			r.buf = r.buf[i+1:]
			return line, nil
		}
		if r.eof {
			r.done = true
			if len(r.buf) > 0 {
				line := string(r.buf)
				r.buf = nil
				return line, nil
			}
			return "", io.EOF
		}
		n, err := r.f.Read(r.chunk)
		if n > 0 {
			r.buf = append(r.buf, r.chunk[:n]...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.eof = true
				continue
			}
			return "", fmt.Errorf("read chunk: %w", err)
		}
		if n == 0 {
			r.eof = true
		}
	}
}

// Reset seeks back to offset zero and clears buffered state, making the
// reader restartable.
func (r *LineReader) Reset() error {
	if _, err := r.f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	r.buf = nil
	r.eof = false
	r.done = false
	return nil
}

// Close releases the underlying file.
func (r *LineReader) Close() error {
	return r.f.Close()
}
