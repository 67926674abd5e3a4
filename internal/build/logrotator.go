package build

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"
)

const (
	// DefaultMaxLogFiles is how many rotated files are kept.
	DefaultMaxLogFiles = 10

	// DefaultMaxLogFileSize is the rotation threshold in MB.
	DefaultMaxLogFileSize = 20

	// DefaultLogFilename is the daemon's log file inside the log dir.
	DefaultLogFilename = "lampd.log"
)

// RotatorConfig locates and bounds the daemon log file.
type RotatorConfig struct {
	Dir string

	// Filename defaults to DefaultLogFilename.
	Filename string

	// MaxFiles of 0 keeps a single file that grows without bound.
	MaxFiles int

	// MaxFileSizeMB defaults to DefaultMaxLogFileSize.
	MaxFileSizeMB int
}

// Path is the active log file.
func (c RotatorConfig) Path() string {
	name := c.Filename
	if name == "" {
		name = DefaultLogFilename
	}

	return filepath.Join(c.Dir, name)
}

// RotatingLogWriter feeds log output through a pipe into a jrick/logrotate
// rotator. Rotated files are gzipped.
type RotatingLogWriter struct {
	pipe *io.PipeWriter
	done chan error
}

// NewRotatingLogWriter creates the log directory and starts the rotator.
func NewRotatingLogWriter(cfg RotatorConfig) (*RotatingLogWriter, error) {
	if cfg.Dir == "" {
		return nil, errors.New("log rotator needs a directory")
	}
	if cfg.MaxFileSizeMB <= 0 {
		cfg.MaxFileSizeMB = DefaultMaxLogFileSize
	}

	path := cfg.Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	// The rotator threshold is in KB.
	rot, err := rotator.New(
		path, int64(cfg.MaxFileSizeMB)*1024, false, cfg.MaxFiles,
	)
	if err != nil {
		return nil, fmt.Errorf("create log rotator: %w", err)
	}
	rot.SetCompressor(gzip.NewWriter(nil), ".gz")

	pr, pw := io.Pipe()
	w := &RotatingLogWriter{
		pipe: pw,
		done: make(chan error, 1),
	}
	go func() {
		err := rot.Run(pr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log rotator stopped: %v\n", err)
		}
		w.done <- err
	}()

	return w, nil
}

// Write implements io.Writer.
func (w *RotatingLogWriter) Write(b []byte) (int, error) {
	return w.pipe.Write(b)
}

// Close ends the pipe and waits for the rotator to flush the file.
func (w *RotatingLogWriter) Close() error {
	if err := w.pipe.Close(); err != nil {
		return err
	}

	return <-w.done
}
