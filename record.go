// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// record.go — the immutable Record triple produced by meters, with its
// line-JSON wire form ([name, batch_or_null, result]) used by FileWriter.

package meterbus

import (
	"encoding/json"
	"fmt"
)

// Record is one computed metric result. Finalizer records carry no batch;
// HasBatch is false and the wire form encodes the batch as null.
type Record struct {
	Name     string
	Batch    int
	HasBatch bool
	Result   any
}

// NewRecord builds a record tagged with a batch number.
func NewRecord(name string, batch int, result any) Record {
	return Record{Name: name, Batch: batch, HasBatch: true, Result: result}
}

// NewFinalRecord builds a batchless record, as produced by finalizers.
func NewFinalRecord(name string, result any) Record {
	return Record{Name: name, Result: result}
}

// MarshalJSON encodes the record as a 3-element array: [name, batch|null, result].
func (r Record) MarshalJSON() ([]byte, error) {
	var batch any
	if r.HasBatch {
		batch = r.Batch
	}
	return json.Marshal([3]any{r.Name, batch, r.Result})
}

// UnmarshalJSON decodes the 3-element array form. The result is decoded
// with encoding/json defaults, so numbers come back as float64.
func (r *Record) UnmarshalJSON(data []byte) error {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("meterbus: record must be a JSON array: %w", err)
	}
	if len(arr) != 3 {
		return fmt.Errorf("meterbus: record must have 3 elements, got %d", len(arr))
	}
	if err := json.Unmarshal(arr[0], &r.Name); err != nil {
		return fmt.Errorf("meterbus: record name: %w", err)
	}
	if string(arr[1]) == "null" {
		r.Batch = 0
		r.HasBatch = false
	} else {
		if err := json.Unmarshal(arr[1], &r.Batch); err != nil {
			return fmt.Errorf("meterbus: record batch: %w", err)
		}
		r.HasBatch = true
	}
	var result any
	if err := json.Unmarshal(arr[2], &result); err != nil {
		return fmt.Errorf("meterbus: record result: %w", err)
	}
	r.Result = result
	return nil
}

// RecordValues extracts the bare results from a slice of records, in order.
// Finalizers that operate on plain values use this to unwrap the history.
func RecordValues(history []Record) []any {
	values := make([]any, len(history))
	for i, rec := range history {
		values[i] = rec.Result
	}
	return values
}
