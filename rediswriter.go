// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// rediswriter.go — writer appending each record to a Redis list as line
// JSON, giving the same stream shape as FileWriter but readable by other
// processes while the run is still going.

package meterbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisWriterOptions configures a RedisWriter.
type RedisWriterOptions struct {
	// Addr, Password, DB configure the client when Client is nil.
	Addr     string
	Password string
	DB       int

	// Key is the list records are appended to. Defaults to
	// "meterbus:records".
	Key string

	// Client overrides Addr/Password/DB with an existing client. The
	// writer takes ownership and closes it.
	Client *redis.Client
}

// RedisWriter appends each record to a Redis list via RPUSH, preserving
// arrival order.
type RedisWriter struct {
	mu     sync.Mutex
	client *redis.Client
	key    string
	closed bool
}

// NewRedisWriter connects and verifies the server is reachable.
func NewRedisWriter(ctx context.Context, opts RedisWriterOptions) (*RedisWriter, error) {
	client := opts.Client
	if client == nil {
		client = redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("meterbus: redis unavailable: %w", err)
	}
	key := opts.Key
	if key == "" {
		key = "meterbus:records"
	}
	return &RedisWriter{client: client, key: key}, nil
}

// Key returns the list key records are appended to.
func (w *RedisWriter) Key() string { return w.key }

// Write appends the record to the list as its JSON array form.
func (w *RedisWriter) Write(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("meterbus: encode record: %w", err)
	}
	if err := w.client.RPush(context.Background(), w.key, data).Err(); err != nil {
		return fmt.Errorf("meterbus: redis append: %w", err)
	}
	return nil
}

// Close closes the underlying client. Idempotent.
func (w *RedisWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.client.Close()
}
