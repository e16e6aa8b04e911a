// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// hub.go — the run-scoped measurement hub. The hub holds the current stage
// and batch, owns the routing table, and fans records out between meters
// and writers. It is the sink probes normally point at.

package meterbus

import (
	"errors"
	"fmt"
	"sync"
)

// HubConfig configures a Hub.
type HubConfig struct {
	// Name identifies the hub in diagnostics. Defaults to "global".
	Name string

	// Logger receives soft-condition warnings; defaults to a noop.
	Logger Logger
}

func (c *HubConfig) defaults() {
	if c.Name == "" {
		c.Name = "global"
	}
	if c.Logger == nil {
		c.Logger = noopLogger{}
	}
}

// Hub routes incoming named values to the meters subscribed to them under
// the current stage, tagging each delivery with the current batch. The
// owning evaluation loop advances stage and batch; everything else reads
// them. A Hub is a Sink.
type Hub struct {
	mu      sync.RWMutex
	name    string
	batch   int
	stage   string
	mapper  *probeMapper
	meters  []*Meter
	writers []Writer
	closed  bool
	logger  Logger
}

var _ Sink = (*Hub)(nil)

// NewHub creates a Hub from the provided config.
func NewHub(cfg HubConfig) *Hub {
	cfg.defaults()
	return &Hub{
		name:   cfg.Name,
		batch:  -1,
		mapper: newProbeMapper(cfg.Logger),
		logger: cfg.Logger,
	}
}

// Name returns the hub's name.
func (h *Hub) Name() string { return h.name }

// SetStage sets the current stage label.
func (h *Hub) SetStage(stage string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stage = stage
}

// Stage returns the current stage label.
func (h *Hub) Stage() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stage
}

// SetBatch sets the current batch identifier.
func (h *Hub) SetBatch(batch int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.batch = batch
}

// IncrementBatch advances the batch identifier by one.
func (h *Hub) IncrementBatch() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.batch++
}

// Batch returns the current batch identifier.
func (h *Hub) Batch() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.batch
}

// IsMeasuring reports whether any meter subscribes to the probe variable
// under the current stage. Probes check this before paying preprocessing
// cost.
func (h *Hub) IsMeasuring(variable string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.mapper.resolve(variable, h.stage)) > 0
}

// Update routes a probe value to every meter subscribed to the variable
// under the current stage. Routing to zero subscribers is a wiring bug:
// callers are expected to have checked IsMeasuring first.
func (h *Hub) Update(variable string, value any) error {
	h.mu.RLock()
	subs := h.mapper.resolve(variable, h.stage)
	batch := h.batch
	stage := h.stage
	h.mu.RUnlock()

	if len(subs) == 0 {
		return fmt.Errorf("%w: variable %q, stage %q", ErrNoSubscribers, variable, stage)
	}
	var errs []error
	for _, s := range subs {
		if err := s.meter.Set(s.arg, value, batch); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ConnectMeter registers a meter with the hub and its routing table, and
// retroactively attaches every writer already known to the hub. Connecting
// a connected meter is a no-op.
func (h *Hub) ConnectMeter(m *Meter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, have := range h.meters {
		if have == m {
			return
		}
	}
	h.meters = append(h.meters, m)
	h.mapper.connect(m)
	for _, w := range h.writers {
		m.AddWriter(w)
	}
}

// DisconnectMeter removes the meter and all of its routing entries; a
// subsequent Update for its variables finds no subscribers. Disconnecting
// an unconnected meter is a no-op.
func (h *Hub) DisconnectMeter(m *Meter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, have := range h.meters {
		if have == m {
			h.meters = append(h.meters[:i:i], h.meters[i+1:]...)
			break
		}
	}
	h.mapper.disconnect(m)
}

// Meters returns the connected meters in connection order.
func (h *Hub) Meters() []*Meter {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]*Meter(nil), h.meters...)
}

// AddWriter attaches a writer to the hub and to every currently connected
// meter; meters connected later receive it too, so attachment order does
// not matter. A duplicate attach warns and is a no-op.
func (h *Hub) AddWriter(w Writer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, have := range h.writers {
		if have == w {
			h.logger.Warn("writer already attached to hub", "hub", h.name)
			return
		}
	}
	h.writers = append(h.writers, w)
	for _, m := range h.meters {
		m.AddWriter(w)
	}
}

// Close finalizes every meter, then closes every writer exactly once.
// A failing finalizer never prevents the writer closes. Close is
// idempotent; only the first call does anything.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	meters := append([]*Meter(nil), h.meters...)
	writers := append([]Writer(nil), h.writers...)
	h.mu.Unlock()

	var errs []error
	for _, m := range meters {
		if err := m.Finalize(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, w := range writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
