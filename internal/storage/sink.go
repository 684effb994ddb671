// Package storage persists crawl output: the append-only URL list and the
// optional SQLite journal.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var errSinkClosed = errors.New("sink closed")

// SinkWriteError reports a failure to open, write or sync the URL list.
// It is fatal to the crawl.
type SinkWriteError struct {
	Path string
	Err  error
}

func (e *SinkWriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *SinkWriteError) Unwrap() error {
	return e.Err
}

// URLSink appends one URL per line to a file. Each line is synced to disk
// before Append returns, and existing content is never truncated.
type URLSink struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// OpenURLSink opens path for appending, creating it and its directory if needed
func OpenURLSink(path string) (*URLSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &SinkWriteError{Path: path, Err: err}
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, &SinkWriteError{Path: path, Err: err}
	}

	return &URLSink{
		path: path,
		file: file,
	}, nil
}

// Append writes line and a trailing newline, then syncs the file
func (s *URLSink) Append(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return &SinkWriteError{Path: s.path, Err: errSinkClosed}
	}
	if _, err := s.file.WriteString(line + "\n"); err != nil {
		return &SinkWriteError{Path: s.path, Err: err}
	}
	if err := s.file.Sync(); err != nil {
		return &SinkWriteError{Path: s.path, Err: err}
	}
	return nil
}

// Path returns the file the sink appends to
func (s *URLSink) Path() string {
	return s.path
}

// Close closes the underlying file. Further appends fail.
func (s *URLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
