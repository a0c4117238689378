package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileSink appends newline-delimited JSON records to a log file. Writes are
// serialized behind a mutex so concurrent requests never interleave records.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileSink opens (creating if needed) the audit log at path in append mode.
func NewFileSink(path string) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create audit log directory: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640) // #nosec G304 -- path is configured at startup
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	return &FileSink{file: file}, nil
}

// Record masks the event's free-text fields and appends one JSON line.
func (s *FileSink) Record(_ context.Context, event Event) error {
	if event.Timestamp == "" {
		event.Timestamp = NewTimestamp(time.Now())
	}

	line, err := json.Marshal(event.Masked())
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.file.Write(line); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
