// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// resultswriter.go — collate-then-persist writer. Records are buffered in
// memory keyed by metric name and serialized as one name→results map in a
// single write at close time.

package meterbus

import (
	"fmt"
	"os"
	"sync"

	"github.com/AndrewDonelson/meterbus/internal/codec"
)

// Codec serializes the collated results map. Re-exported so callers only
// import this package.
type Codec = codec.Codec

// Codec instances selectable through ResultsWriterOptions.
var (
	CodecJSON    Codec = codec.JSON{}
	CodecMsgPack Codec = codec.MsgPack{}
)

// KeepMode selects which records a ResultsWriter retains per metric name.
type KeepMode string

const (
	// KeepAll retains every record. The only implemented mode.
	KeepAll KeepMode = "all"
	// KeepFirst is declared but not implemented.
	KeepFirst KeepMode = "first"
	// KeepLast is declared but not implemented.
	KeepLast KeepMode = "last"
)

// ResultsWriterOptions configures a ResultsWriter.
type ResultsWriterOptions struct {
	// Keep defaults to KeepAll. KeepFirst and KeepLast are rejected at
	// construction until implemented.
	Keep KeepMode

	// Codec serializes the collated map on Close; defaults to CodecJSON.
	Codec Codec
}

// ResultsWriter buffers every record in memory and, on Close, writes one
// serialized map of metric name to ordered results as the full file
// content. Batch numbers are discarded in this format.
type ResultsWriter struct {
	mu      sync.Mutex
	path    string
	codec   Codec
	records []Record
	closed  bool
}

// NewResultsWriter creates a collating writer targeting path.
func NewResultsWriter(path string, opts ResultsWriterOptions) (*ResultsWriter, error) {
	if opts.Keep == "" {
		opts.Keep = KeepAll
	}
	switch opts.Keep {
	case KeepAll:
	case KeepFirst, KeepLast:
		return nil, fmt.Errorf("%w: %q not implemented, use %q", ErrKeepMode, opts.Keep, KeepAll)
	default:
		return nil, fmt.Errorf("%w: %q", ErrKeepMode, opts.Keep)
	}
	c := opts.Codec
	if c == nil {
		c = codec.Default
	}
	return &ResultsWriter{path: path, codec: c}, nil
}

// SetPath retargets the output file; useful when the final location is
// only known late in a run.
func (w *ResultsWriter) SetPath(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.path = path
}

// Write buffers the record in arrival order.
func (w *ResultsWriter) Write(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	w.records = append(w.records, rec)
	return nil
}

// Collate returns metric name → results in arrival order.
func (w *ResultsWriter) Collate() map[string][]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.collateLocked()
}

func (w *ResultsWriter) collateLocked() map[string][]any {
	out := make(map[string][]any)
	for _, rec := range w.records {
		out[rec.Name] = append(out[rec.Name], rec.Result)
	}
	return out
}

// Close serializes the collated results to the file in one shot. Idempotent.
func (w *ResultsWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	data, err := w.codec.Marshal(w.collateLocked())
	if err != nil {
		return fmt.Errorf("meterbus: encode results: %w", err)
	}
	if err := os.WriteFile(w.path, data, 0o644); err != nil {
		return fmt.Errorf("meterbus: write results: %w", err)
	}
	return nil
}
