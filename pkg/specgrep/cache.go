// Copyright 2026 The Specgrep Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package specgrep

import (
	"sync"
	"time"
)

// Cache is used by the server to avoid repeating a selection for identical
// requests.
type Cache interface {
	// Get returns the cached selection for the key, if any.
	Get(key string) (*Selection, bool)

	// Set stores the selection under the key, replacing any previous value.
	Set(key string, sel *Selection)

	// Stop stops the cache. When Stop returns, the cache must not perform any
	// additional processing.
	Stop()
}

type cacheEntry struct {
	sel *Selection
}

// timerCache is a Cache implementation that caches items for a configurable
// period of time.
type timerCache struct {
	lock     sync.RWMutex
	data     map[string]*cacheEntry
	lifetime time.Duration

	stopCh  chan struct{}
	stopped bool
}

var _ Cache = (*timerCache)(nil)

// NewTimerCache creates a new timer-based cache.
func NewTimerCache(lifetime time.Duration) *timerCache {
	return &timerCache{
		data:     make(map[string]*cacheEntry),
		lifetime: lifetime,
		stopCh:   make(chan struct{}),
	}
}

// Stop stops the cache.
func (c *timerCache) Stop() {
	c.lock.Lock()
	if !c.stopped {
		close(c.stopCh)
		c.stopped = true
	}
	c.lock.Unlock()
}

func (c *timerCache) Get(key string) (*Selection, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	e, ok := c.data[key]
	if !ok {
		return nil, false
	}
	return e.sel, true
}

func (c *timerCache) Set(key string, sel *Selection) {
	e := &cacheEntry{sel: sel}

	c.lock.Lock()
	if c.stopped {
		c.lock.Unlock()
		return
	}
	c.data[key] = e
	c.lock.Unlock()

	// Start a timeout to delete the item from the cache.
	go c.timeout(key, e)
}

// timeout removes the entry once its lifetime passes, unless it has been
// replaced in the meantime.
func (c *timerCache) timeout(key string, e *cacheEntry) {
	select {
	case <-time.After(c.lifetime):
		c.lock.Lock()
		if c.data[key] == e {
			delete(c.data, key)
		}
		c.lock.Unlock()
	case <-c.stopCh:
	}
}
