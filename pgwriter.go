// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// pgwriter.go — writer inserting each record into a PostgreSQL table as it
// arrives, with the result stored as JSONB and a recorded_at timestamp.

package meterbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AndrewDonelson/meterbus/internal/clock"
)

// PostgresWriterOptions configures a PostgresWriter.
type PostgresWriterOptions struct {
	// Table defaults to "meter_records".
	Table string

	// Clock stamps recorded_at; defaults to the system clock.
	Clock clock.Clock
}

// PostgresWriter persists each record as one row. Unlike ResultsWriter it
// writes immediately, so partial runs leave partial valid data.
type PostgresWriter struct {
	mu     sync.Mutex
	pool   *pgxpool.Pool
	table  string
	clock  clock.Clock
	closed bool
}

// NewPostgresWriter connects to dsn and ensures the records table exists.
func NewPostgresWriter(ctx context.Context, dsn string, opts PostgresWriterOptions) (*PostgresWriter, error) {
	if opts.Table == "" {
		opts.Table = "meter_records"
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("meterbus: postgres connect: %w", err)
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		batch INTEGER,
		result JSONB,
		recorded_at TIMESTAMPTZ NOT NULL
	)`, pgx.Identifier{opts.Table}.Sanitize())
	if _, err := pool.Exec(ctx, ddl); err != nil {
		pool.Close()
		return nil, fmt.Errorf("meterbus: create records table: %w", err)
	}
	return &PostgresWriter{pool: pool, table: opts.Table, clock: opts.Clock}, nil
}

// Table returns the destination table name.
func (w *PostgresWriter) Table() string { return w.table }

// Write inserts the record. Finalizer records insert a NULL batch.
func (w *PostgresWriter) Write(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	result, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("meterbus: encode result: %w", err)
	}
	var batch *int
	if rec.HasBatch {
		b := rec.Batch
		batch = &b
	}
	stmt := fmt.Sprintf(
		"INSERT INTO %s (name, batch, result, recorded_at) VALUES ($1, $2, $3, $4)",
		pgx.Identifier{w.table}.Sanitize())
	if _, err := w.pool.Exec(context.Background(), stmt, rec.Name, batch, result, w.clock.Now()); err != nil {
		return fmt.Errorf("meterbus: insert record: %w", err)
	}
	return nil
}

// Close releases the connection pool. Idempotent.
func (w *PostgresWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	w.pool.Close()
	return nil
}
