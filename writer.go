// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// writer.go — the output-sink contract and the stateless writer variants:
// discard, console print, and leveled structured log.

package meterbus

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Writer is the sink contract for computed records. Write is called once
// per record; Close flushes any buffered state and is idempotent, called
// at most once per run by the hub.
type Writer interface {
	Write(Record) error
	Close() error
}

// NullWriter discards every record.
type NullWriter struct{}

// Write discards the record.
func (NullWriter) Write(Record) error { return nil }

// Close does nothing.
func (NullWriter) Close() error { return nil }

// PrintWriter formats each record as one line of text.
type PrintWriter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewPrintWriter writes to out, or os.Stdout when out is nil.
func NewPrintWriter(out io.Writer) *PrintWriter {
	if out == nil {
		out = os.Stdout
	}
	return &PrintWriter{out: out}
}

// Write emits the record as a single formatted line.
func (w *PrintWriter) Write(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := fmt.Fprintf(w.out, "meter record: name=%s batch=%s result=%v\n",
		rec.Name, batchLabel(rec), rec.Result)
	return err
}

// Close does nothing.
func (w *PrintWriter) Close() error { return nil }

func batchLabel(rec Record) string {
	if !rec.HasBatch {
		return "none"
	}
	return strconv.Itoa(rec.Batch)
}

// LogWriter emits each record through a Logger at a fixed severity.
type LogWriter struct {
	emit func(msg string, keysAndValues ...any)
}

// NewLogWriter creates a writer emitting at the given level, one of
// "debug", "info", "warn", or "error". An empty level means "info".
func NewLogWriter(logger Logger, level string) (*LogWriter, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	w := &LogWriter{}
	switch strings.ToLower(level) {
	case "debug":
		w.emit = logger.Debug
	case "info", "":
		w.emit = logger.Info
	case "warn":
		w.emit = logger.Warn
	case "error":
		w.emit = logger.Error
	default:
		return nil, fmt.Errorf("%w: %q", ErrLogLevel, level)
	}
	return w, nil
}

// Write logs the record at the configured severity.
func (w *LogWriter) Write(rec Record) error {
	w.emit("meter record", "name", rec.Name, "batch", batchLabel(rec), "result", rec.Result)
	return nil
}

// Close does nothing.
func (w *LogWriter) Close() error { return nil }
