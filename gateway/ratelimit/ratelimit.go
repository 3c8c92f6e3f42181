// Copyright 2025 MCPGate
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ratelimit enforces a per-client fixed-window request limit
// backed by a shared Redis counter store.
//
// The limiter fails open: if the store is unreachable or times out, the
// request is allowed. A limiter outage must never take down the service.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"mcpgate/platform/shared/logger"
)

const (
	keyPrefix = "rate_limit:"
	window    = time.Minute
	opTimeout = 2 * time.Second
)

// Limiter counts requests per client key within a fixed 60-second window.
//
// Counter updates are read-then-increment: under concurrent access the
// count can exceed the threshold by at most the number of concurrent
// racers, never unboundedly. Strict serialization is deliberately not
// required (no distributed lock).
type Limiter struct {
	client *redis.Client // nil in standalone mode
	limit  int
	log    *logger.Logger

	// Standalone in-memory counters. Single-instance only: each replica
	// would count independently.
	mu      sync.Mutex
	entries map[string]*windowEntry
}

type windowEntry struct {
	count     int
	resetTime time.Time
}

// New creates a Limiter backed by the shared Redis store.
func New(client *redis.Client, limitPerMinute int) *Limiter {
	return &Limiter{
		client:  client,
		limit:   limitPerMinute,
		log:     logger.New("ratelimit"),
		entries: make(map[string]*windowEntry),
	}
}

// NewStandalone creates a Limiter with process-local counters, for
// deployments without a shared counter store.
func NewStandalone(limitPerMinute int) *Limiter {
	return New(nil, limitPerMinute)
}

// Limit returns the configured per-minute threshold.
func (l *Limiter) Limit() int {
	return l.limit
}

// Allow reports whether a request from clientKey is permitted in the
// current window. A permitted request increments the counter; a denied
// request does not increment further.
func (l *Limiter) Allow(ctx context.Context, clientKey string) bool {
	if l.limit <= 0 {
		return true
	}
	if l.client == nil {
		return l.allowInMemory(clientKey)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	key := keyPrefix + clientKey

	current, err := l.client.Get(ctx, key).Int()
	if err == redis.Nil {
		// First request in this window. SetNX loses the race to a
		// concurrent creator; fall through to INCR in that case.
		created, err := l.client.SetNX(ctx, key, 1, window).Result()
		if err != nil {
			l.failOpen(clientKey, err)
			return true
		}
		if created {
			return true
		}
		if err := l.client.Incr(ctx, key).Err(); err != nil {
			l.failOpen(clientKey, err)
		}
		return true
	}
	if err != nil {
		l.failOpen(clientKey, err)
		return true
	}

	if current >= l.limit {
		return false
	}

	if err := l.client.Incr(ctx, key).Err(); err != nil {
		l.failOpen(clientKey, err)
	}
	return true
}

// Status returns the current count and window reset time for a client.
// Used for the Retry-After hint on denials.
func (l *Limiter) Status(ctx context.Context, clientKey string) (int, time.Time) {
	if l.client == nil {
		return l.statusInMemory(clientKey)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	key := keyPrefix + clientKey

	count, err := l.client.Get(ctx, key).Int()
	if err != nil {
		return 0, time.Now()
	}

	ttl, err := l.client.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}

	return count, time.Now().Add(ttl)
}

// Reset removes the counter for a client (admin/test operation).
func (l *Limiter) Reset(ctx context.Context, clientKey string) error {
	if l.client == nil {
		l.mu.Lock()
		delete(l.entries, clientKey)
		l.mu.Unlock()
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return l.client.Del(ctx, keyPrefix+clientKey).Err()
}

func (l *Limiter) allowInMemory(clientKey string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.entries[clientKey]
	if !exists || now.After(entry.resetTime) {
		l.entries[clientKey] = &windowEntry{
			count:     1,
			resetTime: now.Add(window),
		}
		return true
	}

	if entry.count >= l.limit {
		return false
	}

	entry.count++
	return true
}

func (l *Limiter) statusInMemory(clientKey string) (int, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.entries[clientKey]
	if !exists || time.Now().After(entry.resetTime) {
		return 0, time.Now()
	}
	return entry.count, entry.resetTime
}

func (l *Limiter) failOpen(clientKey string, err error) {
	l.log.Warn("", "", "counter store unavailable, failing open", map[string]interface{}{
		"client_key": clientKey,
		"error":      err.Error(),
	})
}
