// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// errors.go — sentinel error variables returned by the public meterbus API,
// covering construction, meter-argument parsing, routing, readiness checks,
// probe hooking, and writer lifecycle.

// Package meterbus routes named measurements from lightweight probes to
// declared meters and forwards the computed records to pluggable writers.
package meterbus

import "errors"

// Construction errors
var (
	ErrInvalidName = errors.New("meterbus: name must be empty or a valid identifier")
	ErrNilMetric   = errors.New("meterbus: metric function must not be nil")
	ErrArgSyntax   = errors.New("meterbus: malformed meter argument")
	ErrLogLevel    = errors.New("meterbus: unknown log level")
	ErrKeepMode    = errors.New("meterbus: unsupported keep mode")
)

// Routing errors
var (
	ErrNoSubscribers = errors.New("meterbus: no meters are measuring")
	ErrUnknownArg    = errors.New("meterbus: not a declared argument name")
)

// Readiness errors
var (
	ErrValuesMissing  = errors.New("meterbus: not all values have been set")
	ErrBatchMismatch  = errors.New("meterbus: batch numbers are mismatched")
	ErrResultsNotKept = errors.New("meterbus: results were not retained")
)

// Hook errors
var (
	ErrHookMode      = errors.New("meterbus: unsupported hook mode")
	ErrHookNoNames   = errors.New("meterbus: hook needs an input or output name")
	ErrAlreadyHooked = errors.New("meterbus: source is already hooked")
	ErrNotHooked     = errors.New("meterbus: source is not hooked")
)

// Lifecycle errors
var (
	ErrClosed = errors.New("meterbus: writer is closed")
)
