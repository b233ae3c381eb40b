package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileLogger appends events to a capture file. Each event goes out in a
// single write on an O_APPEND descriptor, so a daemon and a client may
// share one file without splitting each other's records.
type FileLogger struct {
	path string

	mu   sync.Mutex
	file *os.File
}

// NewFileLogger opens path for appending, creating it and its directory
// when missing.
func NewFileLogger(path string) (*FileLogger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating protocol log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileLogger{path: path, file: f}, nil
}

// Path is the file being written.
func (l *FileLogger) Path() string { return l.path }

// Log appends event. Encoding and write errors are dropped; protocol
// capture never fails a request.
func (l *FileLogger) Log(event Event) {
	data, err := EncodeEvent(event)
	if err != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		_, _ = l.file.Write(data)
	}
}

// Close closes the file. Later Log calls are no-ops.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

var _ Logger = (*FileLogger)(nil)
