// Copyright © 2024 Kaleido, Inc.
//
// SPDX-License-Identifier: Apache-2.0
//
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
	"sync/atomic"
	"time"

	cacheimpl "github.com/Code-Hex/go-generics-cache"
	"github.com/Code-Hex/go-generics-cache/policy/lru"
	"github.com/kaleido-io/ioweyou/internal/confutil"
	"github.com/kaleido-io/ioweyou/internal/iouconf"
)

// Cache is a bounded LRU, with optional expiry of entries
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, val V)
	Delete(key K)
	Capacity() int
	TTL() time.Duration
	Stats() Stats
	Clear()
}

type Stats struct {
	Hits   uint64
	Misses uint64
}

type cache[K comparable, V any] struct {
	lru      atomic.Pointer[cacheimpl.Cache[K, V]]
	capacity int
	ttl      time.Duration
	hits     atomic.Uint64
	misses   atomic.Uint64
}

func NewCache[K comparable, V any](conf *iouconf.CacheConfig, defs *iouconf.CacheConfig) Cache[K, V] {
	c := &cache[K, V]{
		capacity: confutil.IntMin(conf.Capacity, 1, *defs.Capacity),
		ttl:      confutil.DurationMin(conf.TTL, 0, confutil.StringNotEmpty(defs.TTL, "0")),
	}
	c.Clear()
	return c
}

func (c *cache[K, V]) Get(key K) (V, bool) {
	v, ok := c.lru.Load().Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

func (c *cache[K, V]) Set(key K, val V) {
	if c.ttl > 0 {
		c.lru.Load().Set(key, val, cacheimpl.WithExpiration(c.ttl))
		return
	}
	c.lru.Load().Set(key, val)
}

func (c *cache[K, V]) Delete(key K) {
	c.lru.Load().Delete(key)
}

// Clear swaps in an empty LRU, as the implementation has no reset
func (c *cache[K, V]) Clear() {
	c.lru.Store(cacheimpl.New[K, V](cacheimpl.AsLRU[K, V](
		lru.WithCapacity(c.capacity),
	)))
}

func (c *cache[K, V]) Capacity() int {
	return c.capacity
}

func (c *cache[K, V]) TTL() time.Duration {
	return c.ttl
}

func (c *cache[K, V]) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}
