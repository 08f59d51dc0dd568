// Package logfile keeps a local record of CLI deploys in a size-capped log
// file. When the file would grow past its limit it is renamed to {path}.1,
// older generations shift up by one, and generations beyond Keep are removed.
package logfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Options bound the on-disk footprint of the log.
type Options struct {
	// MaxBytes caps the size of the active file.
	MaxBytes int64
	// Keep is how many rotated generations are retained.
	Keep int
}

// DefaultOptions suits interactive deploys: a handful of runs per file.
func DefaultOptions() Options {
	return Options{MaxBytes: 8 << 20, Keep: 3}
}

// Writer is a goroutine-safe io.WriteCloser over the active log file.
type Writer struct {
	path string
	opts Options

	mu   sync.Mutex
	file *os.File
	size int64
}

// Open opens path for appending, creating its directory if needed. The
// existing size counts toward MaxBytes so successive runs share one budget.
//
//	w, err := logfile.Open(".sitedeploy/deploy.log", logfile.DefaultOptions())
//	if err != nil { ... }
//	defer w.Close()
//	logger := slog.New(slog.NewTextHandler(io.MultiWriter(os.Stderr, w), nil))
func Open(path string, opts Options) (*Writer, error) {
	if opts.MaxBytes <= 0 || opts.Keep < 1 {
		return nil, fmt.Errorf("logfile: invalid options %+v", opts)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logfile: mkdir %s: %w", filepath.Dir(path), err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logfile: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("logfile: stat %s: %w", path, err)
	}
	return &Writer{path: path, opts: opts, file: f, size: info.Size()}, nil
}

// Write appends p, rotating first when p would push the file past MaxBytes.
// A record larger than MaxBytes still lands whole in a fresh file.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, fmt.Errorf("logfile: %s is closed", w.path)
	}
	if w.size > 0 && w.size+int64(len(p)) > w.opts.MaxBytes {
		if err := w.rotateLocked(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// Close closes the active file. Closing twice is not an error.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *Writer) rotateLocked() error {
	_ = w.file.Close()
	w.file = nil

	_ = os.Remove(generation(w.path, w.opts.Keep))
	for i := w.opts.Keep - 1; i >= 1; i-- {
		_ = os.Rename(generation(w.path, i), generation(w.path, i+1))
	}
	if err := os.Rename(w.path, generation(w.path, 1)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("logfile: rotate %s: %w", w.path, err)
	}

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("logfile: reopen %s: %w", w.path, err)
	}
	w.file = f
	w.size = 0
	return nil
}

func generation(path string, n int) string {
	return fmt.Sprintf("%s.%d", path, n)
}
