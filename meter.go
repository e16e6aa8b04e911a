// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// meter.go — the per-metric buffering and aggregation unit. A Meter holds
// one in-flight value per declared argument, fires its metric when a
// batch-consistent snapshot is complete, and fans the resulting record out
// to its attached writers.

package meterbus

import (
	"errors"
	"fmt"
	"sync"
)

// MetricFunc computes a metric from the buffered values, given in declared
// argument order, plus the constant kwargs captured at construction.
type MetricFunc func(values []any, kwargs map[string]any) (any, error)

// FinalFunc summarises a meter's retained history at finalize time.
// History entries are full records; RecordValues unwraps bare results.
type FinalFunc func(history []Record, kwargs map[string]any) (any, error)

// MeterOptions configures optional Meter behaviour. The zero value gives
// an auto-measuring meter that retains its history.
type MeterOptions struct {
	// Kwargs are constant keyword arguments passed to every metric call.
	Kwargs map[string]any

	// Manual disables auto-measure; Measure must then be called explicitly.
	Manual bool

	// DiscardResults disables history retention. Forced back on when Final
	// is set, since the finalizer consumes the history.
	DiscardResults bool

	// Final, if set, runs over the retained history when the hub closes.
	Final FinalFunc

	// FinalName names the finalizer's record; defaults to "final_"+name.
	FinalName string

	// FinalKwargs are constant keyword arguments for the finalizer.
	FinalKwargs map[string]any

	// Logger receives soft-condition warnings; defaults to a noop.
	Logger Logger
}

// Meter buffers one in-flight value per declared argument and computes its
// metric once every argument has been set under the same batch. A meter is
// created once at setup, connected to a hub, fed by Set across the run, and
// finalized at most once when the run closes.
type Meter struct {
	mu sync.Mutex

	name     string
	metric   MetricFunc
	argNames []string
	argKeys  []argKey
	argIndex map[string]int
	kwargs   map[string]any

	values    []any
	valuesSet []bool
	batches   []int

	autoMeasure bool
	keepResults bool
	results     []Record

	final       FinalFunc
	finalName   string
	finalKwargs map[string]any
	finalResult any
	finalized   bool

	writers []Writer
	logger  Logger
	warned  bool
}

// NewMeter creates a meter named name over the given metric and declared
// argument names. Argument order defines the order values are passed to the
// metric. Each argument is parsed for an optional "[stage]" filter here,
// once, so malformed declarations fail at setup time.
func NewMeter(name string, metric MetricFunc, argNames []string, opts MeterOptions) (*Meter, error) {
	if metric == nil {
		return nil, fmt.Errorf("%w (meter %q)", ErrNilMetric, name)
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	if len(argNames) == 0 {
		logger.Warn("meter declared with no argument names", "meter", name)
	}

	m := &Meter{
		name:        name,
		metric:      metric,
		argNames:    append([]string(nil), argNames...),
		argIndex:    make(map[string]int, len(argNames)),
		kwargs:      opts.Kwargs,
		autoMeasure: !opts.Manual,
		final:       opts.Final,
		finalName:   opts.FinalName,
		finalKwargs: opts.FinalKwargs,
		logger:      logger,
	}
	for i, arg := range argNames {
		key, err := parseArgKey(arg)
		if err != nil {
			return nil, fmt.Errorf("meter %q: %w", name, err)
		}
		if _, dup := m.argIndex[arg]; dup {
			return nil, fmt.Errorf("%w: duplicate argument %q in meter %q", ErrArgSyntax, arg, name)
		}
		m.argIndex[arg] = i
		m.argKeys = append(m.argKeys, key)
	}

	m.keepResults = !opts.DiscardResults
	if m.final != nil {
		if !m.keepResults {
			logger.Warn("finalizer requires retained results, overriding DiscardResults", "meter", name)
			m.keepResults = true
		}
		if m.finalName == "" {
			m.finalName = "final_" + name
		}
	}
	m.clearLocked()
	return m, nil
}

// Name returns the meter's name.
func (m *Meter) Name() string { return m.name }

// ArgNames returns the declared argument names in invocation order.
func (m *Meter) ArgNames() []string {
	return append([]string(nil), m.argNames...)
}

// AddWriter attaches a writer to receive this meter's records. Attaching
// the same writer twice is a no-op.
func (m *Meter) AddWriter(w Writer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, have := range m.writers {
		if have == w {
			return
		}
	}
	m.writers = append(m.writers, w)
}

// Set stores value for the declared argument under the given batch. When
// auto-measure is on and the buffer becomes ready, the metric fires
// immediately; the store and the fire are a single critical section.
func (m *Meter) Set(arg string, value any, batch int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.argIndex[arg]
	if !ok {
		return fmt.Errorf("%w: %q (meter %q declares %v)", ErrUnknownArg, arg, m.name, m.argNames)
	}
	m.values[i] = value
	m.valuesSet[i] = true
	m.batches[i] = batch
	if m.autoMeasure && m.readyLocked() == nil {
		return m.measureLocked(true)
	}
	return nil
}

// Ready returns nil when every argument has been set under one batch.
// Otherwise it returns ErrValuesMissing or ErrBatchMismatch, the two
// distinct causes that block measurement.
func (m *Meter) Ready() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readyLocked()
}

// IsReady reports whether the meter holds a complete, batch-consistent
// snapshot.
func (m *Meter) IsReady() bool {
	return m.Ready() == nil
}

func (m *Meter) readyLocked() error {
	for i, set := range m.valuesSet {
		if !set {
			return fmt.Errorf("%w: meter %q is missing %q", ErrValuesMissing, m.name, m.argNames[i])
		}
	}
	for _, b := range m.batches {
		if b != m.batches[0] {
			return fmt.Errorf("%w: meter %q has batches %v", ErrBatchMismatch, m.name, m.batches)
		}
	}
	return nil
}

// Measure computes the metric over the buffered snapshot, appends the
// record to the retained history, fans it out to every attached writer in
// attachment order, and clears the buffer for the next batch.
func (m *Meter) Measure() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.measureLocked(true)
}

// MeasureAndHold is Measure without clearing, allowing repeated manual
// measurement of the same snapshot.
func (m *Meter) MeasureAndHold() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.measureLocked(false)
}

func (m *Meter) measureLocked(clear bool) error {
	if err := m.readyLocked(); err != nil {
		return err
	}
	values := make([]any, len(m.values))
	copy(values, m.values)
	result, err := m.metric(values, m.kwargs)
	if err != nil {
		return fmt.Errorf("meterbus: meter %q: %w", m.name, err)
	}
	batch := 0
	if len(m.batches) > 0 {
		batch = m.batches[0]
	}
	rec := NewRecord(m.name, batch, result)
	if m.keepResults {
		m.results = append(m.results, rec)
	}
	var errs []error
	for _, w := range m.writers {
		if err := w.Write(rec); err != nil {
			errs = append(errs, err)
		}
	}
	if !m.keepResults && len(m.writers) == 0 && !m.warned {
		m.logger.Warn("meter has no writer and does not retain results", "meter", m.name)
		m.warned = true
	}
	if clear {
		m.clearLocked()
	}
	return errors.Join(errs...)
}

// Clear resets the buffer so a new batch can begin accumulating.
func (m *Meter) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearLocked()
}

func (m *Meter) clearLocked() {
	n := len(m.argNames)
	m.values = make([]any, n)
	m.valuesSet = make([]bool, n)
	m.batches = make([]int, n)
}

// Finalize runs the configured finalizer over the retained history and
// emits its batchless record to every attached writer. Without a finalizer
// it is a no-op. The hub calls this once on Close; later calls are no-ops.
func (m *Meter) Finalize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.final == nil || m.finalized {
		return nil
	}
	m.finalized = true
	history := make([]Record, len(m.results))
	copy(history, m.results)
	result, err := m.final(history, m.finalKwargs)
	if err != nil {
		return fmt.Errorf("meterbus: finalizer %q: %w", m.finalName, err)
	}
	m.finalResult = result
	rec := NewFinalRecord(m.finalName, result)
	var errs []error
	for _, w := range m.writers {
		if err := w.Write(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FinalResult returns the result stored by Finalize, or nil before it runs.
func (m *Meter) FinalResult() any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finalResult
}

// Results returns the retained history of full records in arrival order.
// It fails when the meter was configured to discard results.
func (m *Meter) Results() ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.keepResults {
		return nil, fmt.Errorf("%w (meter %q)", ErrResultsNotKept, m.name)
	}
	return append([]Record(nil), m.results...), nil
}
