// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// hook.go — the capability interface for attaching a probe to a live
// computation. The core never depends on a concrete framework type;
// per-framework adapters implement Hookable.

package meterbus

import "fmt"

// HookFunc is the callback shape a hookable source invokes at its defined
// lifecycle point, passing itself plus the input and output values.
type HookFunc func(source, input, output any)

// Hookable is the capability a source must expose to be instrumented by
// Probe.Hook: register a callback, get back a detach function.
type Hookable interface {
	RegisterHook(fn HookFunc) (detach func(), err error)
}

// HookMode selects the hooking strategy.
type HookMode string

// HookModeForward fires after the source produces its output. It is the
// only supported mode; any other mode is rejected with ErrHookMode.
const HookModeForward HookMode = "forward"

// HookConfig configures Probe.Hook. At least one of Input and Output must
// be a non-empty name.
type HookConfig struct {
	// Input, if non-empty, names the value under which the source's input
	// is emitted.
	Input string

	// Output, if non-empty, names the value under which the source's
	// output is emitted.
	Output string

	// Mode defaults to HookModeForward.
	Mode HookMode

	// Preprocessing runs on each emitted value, in order.
	Preprocessing []Preprocessor
}

type hookEntry struct {
	detach func()
	mode   HookMode
}

// Hook attaches the probe to a hookable source: whenever the source fires,
// its input and/or output are forwarded through Update under the configured
// names. Hooking an already-hooked source is an error. Sources are tracked
// by identity, so the dynamic type behind the interface must be comparable.
func (p *Probe) Hook(source Hookable, cfg HookConfig) error {
	if cfg.Mode == "" {
		cfg.Mode = HookModeForward
	}
	if cfg.Mode != HookModeForward {
		return fmt.Errorf("%w: %q (only %q is supported)", ErrHookMode, cfg.Mode, HookModeForward)
	}
	if cfg.Input == "" && cfg.Output == "" {
		return ErrHookNoNames
	}

	p.mu.Lock()
	if p.hooks == nil {
		p.hooks = make(map[Hookable]hookEntry)
	}
	if _, ok := p.hooks[source]; ok {
		p.mu.Unlock()
		return fmt.Errorf("%w: probe %q", ErrAlreadyHooked, p.name)
	}
	// Reserve the slot before registering so a concurrent Hook on the same
	// source fails instead of double-registering.
	p.hooks[source] = hookEntry{}
	p.mu.Unlock()

	fn := func(_, input, output any) {
		values := make(map[string]any, 2)
		if cfg.Input != "" {
			values[cfg.Input] = input
		}
		if cfg.Output != "" {
			values[cfg.Output] = output
		}
		_ = p.Update(values, cfg.Preprocessing...)
	}
	detach, err := source.RegisterHook(fn)
	if err != nil {
		p.mu.Lock()
		delete(p.hooks, source)
		p.mu.Unlock()
		return fmt.Errorf("meterbus: register hook: %w", err)
	}

	p.mu.Lock()
	p.hooks[source] = hookEntry{detach: detach, mode: cfg.Mode}
	p.mu.Unlock()
	return nil
}

// Unhook detaches the probe from a hooked source. Unhooking a source that
// was never hooked is an error.
func (p *Probe) Unhook(source Hookable) error {
	p.mu.Lock()
	entry, ok := p.hooks[source]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("%w: probe %q", ErrNotHooked, p.name)
	}
	delete(p.hooks, source)
	p.mu.Unlock()

	if entry.detach != nil {
		entry.detach()
	}
	return nil
}
