// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// registry.go — explicit Registry of one hub plus named probes, and the
// lazily created process-wide default reached through the package-level
// convenience functions.

package meterbus

import "sync"

// Registry owns a hub and a name-keyed set of probes. Most programs use
// the process-wide default through the package-level functions; explicit
// registries give tests and multi-run tools isolated hubs.
type Registry struct {
	mu     sync.Mutex
	hub    *Hub
	probes map[string]*Probe
	logger Logger
}

// NewRegistry creates a registry with a fresh hub.
func NewRegistry(cfg HubConfig) *Registry {
	cfg.defaults()
	return &Registry{
		hub:    NewHub(cfg),
		probes: make(map[string]*Probe),
		logger: cfg.Logger,
	}
}

// Hub returns the registry's hub.
func (r *Registry) Hub() *Hub { return r.hub }

// GetProbe returns the probe with the given name, creating it wired to the
// registry's hub on first access. Repeated calls return the same instance.
func (r *Registry) GetProbe(name string) (*Probe, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.probes[name]; ok {
		return p, nil
	}
	p, err := NewProbe(name, ProbeOptions{Sink: r.hub, Logger: r.logger})
	if err != nil {
		return nil, err
	}
	r.probes[name] = p
	return p, nil
}

// Process-wide default registry; created on first access, first caller
// wins, alive for the rest of the process.
var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// DefaultRegistry returns the process-wide registry, creating it on first
// access.
func DefaultRegistry() *Registry {
	defaultOnce.Do(func() {
		defaultReg = NewRegistry(HubConfig{})
	})
	return defaultReg
}

// GetHub returns the process-wide hub.
func GetHub() *Hub {
	return DefaultRegistry().Hub()
}

// GetProbe returns a named probe on the process-wide registry, creating it
// if needed.
func GetProbe(name string) (*Probe, error) {
	return DefaultRegistry().GetProbe(name)
}

// ConnectMeter connects a meter to the process-wide hub.
func ConnectMeter(m *Meter) {
	GetHub().ConnectMeter(m)
}

// AddMeter constructs a meter and connects it to the process-wide hub.
func AddMeter(name string, metric MetricFunc, argNames []string, opts MeterOptions) (*Meter, error) {
	m, err := NewMeter(name, metric, argNames, opts)
	if err != nil {
		return nil, err
	}
	GetHub().ConnectMeter(m)
	return m, nil
}

// AddWriter attaches a writer to the process-wide hub.
func AddWriter(w Writer) {
	GetHub().AddWriter(w)
}

// Meters returns the meters connected to the process-wide hub.
func Meters() []*Meter {
	return GetHub().Meters()
}
