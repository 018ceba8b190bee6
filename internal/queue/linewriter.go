package queue

import (
	"fmt"
	"io"
	"os"
)

// LineWriter appends newline-terminated lines to a single file while
// tracking the exact number of bytes at the logical end of the file.
// The offset is taken from the filesystem on open, never assumed.
type LineWriter struct {
	f            *os.File
	path         string
	bytesWritten int64
}

// OpenLineWriter opens path for appending, creating it if needed, and seeks
// to the file's true current size.
func OpenLineWriter(path string) (*LineWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	size := info.Size()
	if _, err := f.Seek(size, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("seek %s: %w", path, err)
	}
	return &LineWriter{f: f, path: path, bytesWritten: size}, nil
}

// WriteLine appends text plus a single newline delimiter and advances the
// logical offset by the exact byte count written.
func (w *LineWriter) WriteLine(text string) error {
	n, err := w.f.WriteString(text + "\n")
	w.bytesWritten += int64(n)
	if err != nil {
		return fmt.Errorf("write %s: %w", w.path, err)
	}
	return nil
}

// BytesWritten returns the logical size of the file in bytes.
func (w *LineWriter) BytesWritten() int64 {
	return w.bytesWritten
}

// Head returns up to n bytes from the start of the file.
func (w *LineWriter) Head(n int) ([]byte, error) {
	if int64(n) > w.bytesWritten {
		n = int(w.bytesWritten)
	}
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := w.f.ReadAt(buf, 0); err != nil {
		return nil, fmt.Errorf("read head %s: %w", w.path, err)
	}
	return buf, nil
}

// Tail returns up to n bytes from the logical end of the file.
func (w *LineWriter) Tail(n int) ([]byte, error) {
	if int64(n) > w.bytesWritten {
		n = int(w.bytesWritten)
	}
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := w.f.ReadAt(buf, w.bytesWritten-int64(n)); err != nil {
		return nil, fmt.Errorf("read tail %s: %w", w.path, err)
	}
	return buf, nil
}

// Truncate cuts the file to size and moves the logical offset there.
// Used for crash recovery when the header does not validate.
func (w *LineWriter) Truncate(size int64) error {
	if err := w.f.Truncate(size); err != nil {
		return fmt.Errorf("truncate %s: %w", w.path, err)
	}
	if _, err := w.f.Seek(size, io.SeekStart); err != nil {
		return fmt.Errorf("seek %s: %w", w.path, err)
	}
	w.bytesWritten = size
	return nil
}

// TruncateToCurrentSize strips any filesystem slack beyond the logical byte
// count, guarding against sparse-file artifacts from prior seeks.
func (w *LineWriter) TruncateToCurrentSize() error {
	return w.Truncate(w.bytesWritten)
}

// Sync flushes buffered writes to stable storage.
func (w *LineWriter) Sync() error {
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", w.path, err)
	}
	return nil
}

// Close synchronizes to stable storage and closes the file. If the process
// dies before this completes, the file is re-validated on next open.
func (w *LineWriter) Close() error {
	if w.f == nil {
		return nil
	}
	syncErr := w.f.Sync()
	closeErr := w.f.Close()
	w.f = nil
	if syncErr != nil {
		return fmt.Errorf("sync %s: %w", w.path, syncErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close %s: %w", w.path, closeErr)
	}
	return nil
}
