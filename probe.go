// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// probe.go — the lightweight named emitter placed inside producer code.
// A probe prefixes value names with its own namespace and forwards them to
// its sink only when something is measuring them, so unobserved values
// never pay preprocessing cost.

package meterbus

import (
	"errors"
	"fmt"
	"go/token"
	"sync"
)

// Sink receives namespace-prefixed values from a probe. *Hub implements it.
type Sink interface {
	// IsMeasuring reports whether anything subscribes to the variable.
	IsMeasuring(variable string) bool
	// Update delivers a value for the variable.
	Update(variable string, value any) error
}

// Preprocessor transforms a value before it reaches the sink.
type Preprocessor func(any) any

// ProbeOptions configures a standalone Probe. Probes obtained from a
// registry are wired to the registry's hub automatically.
type ProbeOptions struct {
	// Sink receives the probe's values. A nil sink drops every value with
	// a single warning.
	Sink Sink

	// Logger receives soft-condition warnings; defaults to a noop.
	Logger Logger
}

// Probe is a named namespace-prefixing emitter.
type Probe struct {
	mu     sync.Mutex
	name   string
	sink   Sink
	logger Logger
	warned bool
	hooks  map[Hookable]hookEntry
}

// NewProbe creates a probe. The name must be empty or a valid identifier;
// it becomes the dotted prefix of every value the probe emits.
func NewProbe(name string, opts ProbeOptions) (*Probe, error) {
	if name != "" && !token.IsIdentifier(name) {
		return nil, fmt.Errorf("%w: probe %q", ErrInvalidName, name)
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Probe{name: name, sink: opts.Sink, logger: logger}, nil
}

// Name returns the probe's name.
func (p *Probe) Name() string { return p.name }

// SetSink replaces the probe's sink.
func (p *Probe) SetSink(s Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sink = s
}

// Update emits named values. Each name is prefixed with the probe name;
// preprocessing functions run in order, and only for values something is
// currently measuring. With no sink set, everything is dropped and a
// warning is logged once per probe.
func (p *Probe) Update(values map[string]any, preprocessing ...Preprocessor) error {
	p.mu.Lock()
	sink := p.sink
	if sink == nil {
		if !p.warned {
			p.logger.Warn("no sink set up for probe", "probe", p.name)
			p.warned = true
		}
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	var errs []error
	for local, value := range values {
		full := local
		if p.name != "" {
			full = p.name + "." + local
		}
		if !sink.IsMeasuring(full) {
			continue
		}
		for _, fn := range preprocessing {
			value = fn(value)
		}
		if err := sink.Update(full, value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
