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

// Package cache provides a best-effort Redis-backed response cache keyed
// by deterministic request fingerprints.
//
// The cache must never turn an outage into a request failure: when the
// store is unavailable every lookup is a miss and every write is a no-op.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"mcpgate/platform/shared/logger"
)

const (
	keyPrefix = "cache:"
	opTimeout = 2 * time.Second

	// DefaultTTL applies to cached agent results.
	DefaultTTL = 300 * time.Second

	// ListingTTL applies to the agent descriptor listing.
	ListingTTL = 600 * time.Second
)

// Cache is a TTL key-value store for computed results.
type Cache struct {
	client *redis.Client // nil when caching is disabled
	log    *logger.Logger
}

// New creates a Cache backed by the given Redis client. A nil client
// yields a disabled cache where every Get is a miss.
func New(client *redis.Client) *Cache {
	return &Cache{
		client: client,
		log:    logger.New("cache"),
	}
}

// Available reports whether a cache store is configured.
func (c *Cache) Available() bool {
	return c.client != nil
}

// Fingerprint computes the deterministic cache key for a handler
// invocation. Two calls with identical semantic input produce the same
// key regardless of map key ordering: encoding/json writes map keys in
// sorted order, giving a canonical serialization.
func Fingerprint(agentName, prompt string, reqContext, parameters map[string]interface{}) string {
	payload := struct {
		Agent      string                 `json:"agent"`
		Prompt     string                 `json:"prompt"`
		Context    map[string]interface{} `json:"context"`
		Parameters map[string]interface{} `json:"parameters"`
	}{
		Agent:      agentName,
		Prompt:     prompt,
		Context:    reqContext,
		Parameters: parameters,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		// Maps of JSON-decoded values always marshal; guard anyway.
		data = []byte(agentName + "\x00" + prompt)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Get returns the cached result for key, if present and unexpired.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	if c.client == nil {
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	value, err := c.client.Get(ctx, keyPrefix+key).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		c.degrade("get", err)
		return "", false
	}

	return value, true
}

// Put stores a result under key with the given TTL. Failures are logged
// and dropped; the caller already has the computed result.
func (c *Cache) Put(ctx context.Context, key, result string, ttl time.Duration) {
	if c.client == nil {
		return
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := c.client.Set(ctx, keyPrefix+key, result, ttl).Err(); err != nil {
		c.degrade("put", err)
	}
}

// Clear removes all cache entries immediately (administrative operation).
// Only cache-prefixed keys are deleted: the rate limiter shares the
// logical database.
func (c *Cache) Clear(ctx context.Context) error {
	if c.client == nil {
		return redis.Nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (c *Cache) degrade(op string, err error) {
	c.log.Warn("", "", "cache store unavailable, degrading to miss", map[string]interface{}{
		"op":    op,
		"error": err.Error(),
	})
}
