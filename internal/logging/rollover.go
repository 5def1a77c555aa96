package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// rolloverWriter is an io.Writer that keeps at most two generations of a
// log file: the live file and a single "<path>.old" predecessor. When the
// live file reaches the size cap it replaces the predecessor wholesale.
// Debug logs here are short-lived diagnostics; "current run plus the one
// before it" is the whole retention policy, so there is no numbered
// rotation chain to manage.
type rolloverWriter struct {
	path    string
	maxSize int64

	mu      sync.Mutex
	file    *os.File
	written int64
}

// newRolloverWriter opens (or creates) the log file. A file already at or
// over the cap is rolled immediately so every session starts with room.
func newRolloverWriter(path string, maxSizeMB int) (*rolloverWriter, error) {
	w := &rolloverWriter{
		path:    path,
		maxSize: int64(maxSizeMB) * 1024 * 1024,
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	if info, err := os.Stat(path); err == nil && info.Size() >= w.maxSize {
		if err := w.roll(); err != nil {
			return nil, err
		}
	}
	if w.file == nil {
		if err := w.open(); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// oldPath is the single retained predecessor.
func (w *rolloverWriter) oldPath() string {
	return w.path + ".old"
}

// Write implements io.Writer, rolling over when the cap is crossed.
func (w *rolloverWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.written+int64(len(p)) > w.maxSize {
		if err := w.roll(); err != nil {
			// Rollover failure must not lose log lines; reopen the live
			// file if roll closed it, keep appending to it, and report
			// each failed attempt on stderr.
			_, _ = fmt.Fprintf(os.Stderr, "log rollover failed: %v\n", err)
			if w.file == nil {
				if oerr := w.open(); oerr != nil {
					return 0, oerr
				}
			}
		}
	}

	n, err := w.file.Write(p)
	w.written += int64(n)
	return n, err
}

// roll demotes the live file to "<path>.old" (replacing any previous
// generation) and starts a fresh one.
func (w *rolloverWriter) roll() error {
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			return fmt.Errorf("failed to close log file: %w", err)
		}
		w.file = nil
	}

	if _, err := os.Stat(w.path); err == nil {
		// os.Rename replaces the destination, which is exactly the
		// retention policy: the previous generation is overwritten.
		if err := os.Rename(w.path, w.oldPath()); err != nil {
			return fmt.Errorf("failed to roll log file: %w", err)
		}
	}
	return w.open()
}

func (w *rolloverWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}

	w.file = f
	w.written = info.Size()
	return nil
}

// Sync flushes the live file to disk.
func (w *rolloverWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file != nil {
		return w.file.Sync()
	}
	return nil
}

// Close closes the live file.
func (w *rolloverWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file != nil {
		err := w.file.Close()
		w.file = nil
		return err
	}
	return nil
}
