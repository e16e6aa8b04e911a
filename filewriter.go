// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// filewriter.go — append-to-file writer emitting one JSON record per line,
// written immediately so an interrupted run leaves a valid prefix of the
// stream.

package meterbus

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// FileWriter appends each record to a file as one JSON array per line:
// [name, batch_or_null, result]. Nothing is buffered.
type FileWriter struct {
	mu     sync.Mutex
	path   string
	f      *os.File
	closed bool
}

// NewFileWriter creates or truncates the record file at path.
func NewFileWriter(path string) (*FileWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("meterbus: open record file: %w", err)
	}
	return &FileWriter{path: path, f: f}, nil
}

// Path returns the record file path.
func (w *FileWriter) Path() string { return w.path }

// Write appends the record as one newline-terminated JSON line.
func (w *FileWriter) Write(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("meterbus: encode record: %w", err)
	}
	if _, err := w.f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("meterbus: append record: %w", err)
	}
	return nil
}

// Close closes the underlying file. Idempotent.
func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.f.Close()
}
