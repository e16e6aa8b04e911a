// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// mapper.go — meter-argument parsing and the probe→meter routing table.
// Argument strings like "model.x_post[benign]" are parsed once at meter
// construction into structured keys; the mapper never re-parses at lookup.

package meterbus

import (
	"fmt"
	"strings"
)

// argKey is the parsed form of a declared meter argument: the probe
// variable it subscribes to and an optional stage filter.
type argKey struct {
	variable  string
	filter    string
	hasFilter bool
}

// parseArgKey splits "model.x_post[benign]" into the probe variable and
// stage filter. At most one bracket pair is allowed, the string must end
// immediately after the closing bracket, and the filter must be non-empty
// after trimming.
func parseArgKey(arg string) (argKey, error) {
	open := strings.IndexByte(arg, '[')
	if open < 0 {
		if strings.IndexByte(arg, ']') >= 0 {
			return argKey{}, fmt.Errorf("%w: %q has ']' without '['", ErrArgSyntax, arg)
		}
		if arg == "" {
			return argKey{}, fmt.Errorf("%w: empty argument", ErrArgSyntax)
		}
		return argKey{variable: arg}, nil
	}
	if strings.Count(arg, "[") != 1 || strings.Count(arg, "]") != 1 {
		return argKey{}, fmt.Errorf("%w: %q must have a single matching [] or none", ErrArgSyntax, arg)
	}
	if arg[len(arg)-1] != ']' {
		return argKey{}, fmt.Errorf("%w: %q cannot have characters after the final ']'", ErrArgSyntax, arg)
	}
	variable := arg[:open]
	if variable == "" {
		return argKey{}, fmt.Errorf("%w: %q has no variable name", ErrArgSyntax, arg)
	}
	filter := strings.TrimSpace(arg[open+1 : len(arg)-1])
	if filter == "" {
		return argKey{}, fmt.Errorf("%w: %q has an empty stage filter", ErrArgSyntax, arg)
	}
	return argKey{variable: variable, filter: filter, hasFilter: true}, nil
}

// subscription pairs a meter with the declared argument string that routed
// to it; the argument string is what Meter.Set expects back.
type subscription struct {
	meter *Meter
	arg   string
}

// filterMap holds the subscriptions for one probe variable. Unfiltered
// subscriptions live in their own bucket so a stage literally named ""
// can never collide with "no filter".
type filterMap struct {
	byStage    map[string][]subscription
	unfiltered []subscription
}

func (fm *filterMap) empty() bool {
	return len(fm.byStage) == 0 && len(fm.unfiltered) == 0
}

// probeMapper is the routing table from probe variables to meter arguments.
type probeMapper struct {
	table  map[string]*filterMap
	logger Logger
}

func newProbeMapper(logger Logger) *probeMapper {
	return &probeMapper{table: make(map[string]*filterMap), logger: logger}
}

// count returns the number of (meter, arg) subscriptions in the table.
func (pm *probeMapper) count() int {
	n := 0
	for _, fm := range pm.table {
		for _, subs := range fm.byStage {
			n += len(subs)
		}
		n += len(fm.unfiltered)
	}
	return n
}

// connect registers every declared argument of the meter. Connecting an
// already-present (meter, arg) pair warns and is a no-op.
func (pm *probeMapper) connect(m *Meter) {
	for i, key := range m.argKeys {
		arg := m.argNames[i]
		fm := pm.table[key.variable]
		if fm == nil {
			fm = &filterMap{byStage: make(map[string][]subscription)}
			pm.table[key.variable] = fm
		}
		var bucket []subscription
		if key.hasFilter {
			bucket = fm.byStage[key.filter]
		} else {
			bucket = fm.unfiltered
		}
		if hasSubscription(bucket, m, arg) {
			pm.logger.Warn("subscription already connected, not adding",
				"meter", m.name, "arg", arg)
			continue
		}
		bucket = append(bucket, subscription{meter: m, arg: arg})
		if key.hasFilter {
			fm.byStage[key.filter] = bucket
		} else {
			fm.unfiltered = bucket
		}
	}
}

func hasSubscription(subs []subscription, m *Meter, arg string) bool {
	for _, s := range subs {
		if s.meter == m && s.arg == arg {
			return true
		}
	}
	return false
}

// disconnect removes every (meter, arg) pair declared by the meter and
// prunes empty buckets. Disconnecting an unconnected meter is a no-op.
func (pm *probeMapper) disconnect(m *Meter) {
	for i, key := range m.argKeys {
		arg := m.argNames[i]
		fm := pm.table[key.variable]
		if fm == nil {
			continue
		}
		if key.hasFilter {
			fm.byStage[key.filter] = removeSubscription(fm.byStage[key.filter], m, arg)
			if len(fm.byStage[key.filter]) == 0 {
				delete(fm.byStage, key.filter)
			}
		} else {
			fm.unfiltered = removeSubscription(fm.unfiltered, m, arg)
		}
		if fm.empty() {
			delete(pm.table, key.variable)
		}
	}
}

func removeSubscription(subs []subscription, m *Meter, arg string) []subscription {
	for i, s := range subs {
		if s.meter == m && s.arg == arg {
			return append(subs[:i:i], subs[i+1:]...)
		}
	}
	return subs
}

// resolve returns the subscriptions active for the variable under the
// stage: stage-filtered entries plus unfiltered entries. A stage filter
// narrows delivery; it never displaces unfiltered subscribers. The result
// is a fresh slice.
func (pm *probeMapper) resolve(variable, stage string) []subscription {
	fm := pm.table[variable]
	if fm == nil {
		return nil
	}
	staged := fm.byStage[stage]
	subs := make([]subscription, 0, len(staged)+len(fm.unfiltered))
	subs = append(subs, staged...)
	subs = append(subs, fm.unfiltered...)
	return subs
}
