package logging

import (
	"compress/gzip"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// RotationConfig controls size-based rotation of the debug log.
type RotationConfig struct {
	// MaxSizeMB rotates the file once a write would push it past this many
	// megabytes. Zero disables rotation.
	MaxSizeMB int

	// MaxBackups is how many rotated files to keep, numbered .1 (newest)
	// through .N (oldest). Zero keeps none.
	MaxBackups int

	// Compress gzips rotated files in the background.
	Compress bool
}

// DefaultRotationConfig returns the rotation settings used when the caller
// supplies none.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{
		MaxSizeMB:  10,
		MaxBackups: 3,
	}
}

// RotatingWriter is an io.Writer over a single log file. When a write would
// exceed the size limit it renames the file aside, shifts older backups up
// one number, and reopens a fresh file at the same path. Safe for concurrent
// use.
type RotatingWriter struct {
	mu sync.Mutex

	path     string
	limit    int64
	keep     int
	compress bool

	file *os.File
	size int64
}

// NewRotatingWriter opens (or creates) the log file at path. The parent
// directory is created if missing.
func NewRotatingWriter(path string, cfg RotationConfig) (*RotatingWriter, error) {
	rw := &RotatingWriter{
		path:     path,
		limit:    int64(cfg.MaxSizeMB) * 1024 * 1024,
		keep:     cfg.MaxBackups,
		compress: cfg.Compress,
	}
	if err := rw.open(); err != nil {
		return nil, err
	}
	return rw, nil
}

// open creates the log file and records its current size. Caller holds the
// mutex (or owns the writer exclusively, as in NewRotatingWriter).
func (rw *RotatingWriter) open() error {
	if err := os.MkdirAll(filepath.Dir(rw.path), 0755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	file, err := os.OpenFile(rw.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	rw.file = file
	rw.size = info.Size()
	return nil
}

// Write appends to the log file, rotating first when the write would push
// the file past the limit. A failed rotation is reported on stderr and the
// write proceeds against the current file rather than dropping log data.
func (rw *RotatingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.file == nil {
		return 0, fmt.Errorf("log file is closed")
	}
	if rw.limit > 0 && rw.size+int64(len(p)) > rw.limit {
		if err := rw.rotate(); err != nil {
			fmt.Fprintf(os.Stderr, "log rotation failed: %v\n", err)
		}
	}

	n, err := rw.file.Write(p)
	rw.size += int64(n)
	return n, err
}

// rotate closes the current file, renames it to .1 after shifting existing
// backups, and reopens a fresh file. Caller holds the mutex.
func (rw *RotatingWriter) rotate() error {
	if err := rw.file.Sync(); err != nil {
		return fmt.Errorf("sync before rotate: %w", err)
	}
	if err := rw.file.Close(); err != nil {
		return fmt.Errorf("close before rotate: %w", err)
	}
	rw.file = nil

	rw.shiftBackups()

	backup := rw.backupName(1)
	if err := os.Rename(rw.path, backup); err != nil {
		// The un-renamed file is still the live log; reopen it so
		// writes keep landing somewhere.
		if openErr := rw.open(); openErr != nil {
			return fmt.Errorf("rename failed and reopen failed: %w", openErr)
		}
		return fmt.Errorf("renaming log file: %w", err)
	}
	if rw.compress {
		go gzipAndRemove(backup)
	}

	return rw.open()
}

// shiftBackups renumbers existing backups up by one, dropping the oldest so
// the rename in rotate can take the .1 slot. Backups may exist in plain or
// gzipped form depending on when the compressor last ran.
func (rw *RotatingWriter) shiftBackups() {
	if rw.keep <= 0 {
		os.Remove(rw.backupName(1))
		os.Remove(rw.backupName(1) + ".gz")
		return
	}

	oldest := rw.backupName(rw.keep)
	os.Remove(oldest)
	os.Remove(oldest + ".gz")

	for i := rw.keep - 1; i >= 1; i-- {
		from, to := rw.backupName(i), rw.backupName(i+1)
		if _, err := os.Stat(from + ".gz"); err == nil {
			os.Rename(from+".gz", to+".gz")
		} else if _, err := os.Stat(from); err == nil {
			os.Rename(from, to)
		}
	}
}

func (rw *RotatingWriter) backupName(n int) string {
	return fmt.Sprintf("%s.%d", rw.path, n)
}

// gzipAndRemove compresses one rotated backup and deletes the original.
// It runs off the write path; on any failure the plain backup is left in
// place and a note goes to stderr.
func gzipAndRemove(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading backup for compression %s: %v\n", path, err)
		return
	}

	gzPath := path + ".gz"
	out, err := os.Create(gzPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating compressed backup %s: %v\n", gzPath, err)
		return
	}
	defer out.Close()

	zw := gzip.NewWriter(out)
	if _, err := zw.Write(data); err != nil {
		os.Remove(gzPath)
		fmt.Fprintf(os.Stderr, "writing compressed backup %s: %v\n", gzPath, err)
		return
	}
	if err := zw.Close(); err != nil {
		os.Remove(gzPath)
		fmt.Fprintf(os.Stderr, "finalizing compressed backup %s: %v\n", gzPath, err)
		return
	}

	os.Remove(path)
}

// Close syncs and closes the log file. Closing twice is a no-op.
func (rw *RotatingWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.file == nil {
		return nil
	}
	if err := rw.file.Sync(); err != nil {
		return fmt.Errorf("syncing log file: %w", err)
	}
	if err := rw.file.Close(); err != nil {
		return fmt.Errorf("closing log file: %w", err)
	}
	rw.file = nil
	return nil
}

// CurrentSize returns the live log file's size in bytes.
func (rw *RotatingWriter) CurrentSize() int64 {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.size
}
