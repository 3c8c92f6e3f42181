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

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return New(client), mr
}

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint("agent", "prompt", map[string]interface{}{"x": 1, "y": 2}, nil)
	b := Fingerprint("agent", "prompt", map[string]interface{}{"y": 2, "x": 1}, nil)
	assert.Equal(t, a, b, "map key order must not affect the fingerprint")
}

func TestFingerprintDistinguishesInputs(t *testing.T) {
	base := Fingerprint("agent", "prompt", nil, nil)

	tests := []struct {
		name string
		key  string
	}{
		{"different agent", Fingerprint("other", "prompt", nil, nil)},
		{"different prompt", Fingerprint("agent", "other", nil, nil)},
		{"different context", Fingerprint("agent", "prompt", map[string]interface{}{"a": 1}, nil)},
		{"different parameters", Fingerprint("agent", "prompt", nil, map[string]interface{}{"b": 2})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, base, tt.key)
		})
	}
}

func TestGetPutRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	key := Fingerprint("agent", "prompt", nil, nil)

	_, hit := c.Get(ctx, key)
	assert.False(t, hit)

	c.Put(ctx, key, "computed result", DefaultTTL)

	value, hit := c.Get(ctx, key)
	require.True(t, hit)
	assert.Equal(t, "computed result", value)
}

func TestEntryExpires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.Put(ctx, "k1", "v1", 10*time.Second)
	mr.FastForward(11 * time.Second)

	_, hit := c.Get(ctx, "k1")
	assert.False(t, hit)
}

func TestClearRemovesAllEntries(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.Put(ctx, "k1", "v1", DefaultTTL)
	c.Put(ctx, "k2", "v2", DefaultTTL)

	require.NoError(t, c.Clear(ctx))

	_, hit := c.Get(ctx, "k1")
	assert.False(t, hit)
	_, hit = c.Get(ctx, "k2")
	assert.False(t, hit)
}

func TestClearLeavesOtherKeysAlone(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	// Simulate a rate-limit counter sharing the database.
	mr.Set("rate_limit:client-1", "3")
	c.Put(ctx, "k1", "v1", DefaultTTL)

	require.NoError(t, c.Clear(ctx))

	counter, err := mr.Get("rate_limit:client-1")
	require.NoError(t, err)
	assert.Equal(t, "3", counter)
}

func TestDegradeToMissOnOutage(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	c := New(client)

	c.Put(context.Background(), "k1", "v1", DefaultTTL)
	mr.Close()

	_, hit := c.Get(context.Background(), "k1")
	assert.False(t, hit, "store outage must read as a miss")

	// Writes during the outage are dropped, not errors.
	c.Put(context.Background(), "k2", "v2", DefaultTTL)
}

func TestDisabledCache(t *testing.T) {
	c := New(nil)

	assert.False(t, c.Available())

	_, hit := c.Get(context.Background(), "k1")
	assert.False(t, hit)

	c.Put(context.Background(), "k1", "v1", DefaultTTL)
	_, hit = c.Get(context.Background(), "k1")
	assert.False(t, hit)

	assert.Error(t, c.Clear(context.Background()))
}
