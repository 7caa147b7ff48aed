// Package cache is a keyed query-result cache with TTL staleness,
// stale-while-revalidate reads, per-key request de-duplication and
// prefix invalidation.
package cache

import (
	"context"
	"sync"
	"time"
)

// FetchFunc loads the authoritative value for one key.
type FetchFunc func(ctx context.Context) ([]byte, error)

type flight struct {
	done    chan struct{}
	payload []byte
	err     error
}

type entry struct {
	payload    []byte
	hasValue   bool
	fetchedAt  time.Time
	staleAfter time.Duration
	lastErr    error

	// fetch is the most recently registered loader, kept so an
	// invalidation can refetch without waiting for the next caller.
	fetch   FetchFunc
	flight  *flight
	subs    map[int]func([]byte)
	nextSub int
}

// Cache holds query results keyed by Key. All access is serialized on
// one mutex; fetches run outside it. At most one fetch per key is in
// flight at a time.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]*entry
	clock   func() time.Time
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[Key]*entry), clock: time.Now}
}

func (c *Cache) entryLocked(key Key) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{subs: make(map[int]func([]byte))}
		c.entries[key] = e
	}
	return e
}

// Fetch returns the cached value for key, loading it with fn when
// needed. A value younger than ttl is returned as-is. An older value is
// returned immediately while a background refetch refreshes the entry.
// Concurrent callers for an absent key share one underlying fetch.
func (c *Cache) Fetch(ctx context.Context, key Key, ttl time.Duration, fn FetchFunc) ([]byte, error) {
	c.mu.Lock()
	e := c.entryLocked(key)
	e.fetch = fn
	e.staleAfter = ttl

	if e.hasValue {
		payload := e.payload
		if c.clock().Sub(e.fetchedAt) >= ttl && e.flight == nil {
			f := &flight{done: make(chan struct{})}
			e.flight = f
			go c.run(key, f, fn)
		}
		c.mu.Unlock()
		return payload, nil
	}

	if f := e.flight; f != nil {
		c.mu.Unlock()
		select {
		case <-f.done:
			return f.payload, f.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f := &flight{done: make(chan struct{})}
	e.flight = f
	c.mu.Unlock()

	payload, err := fn(ctx)
	c.complete(key, f, payload, err)
	return payload, err
}

// run performs a background refetch. The fetch deliberately uses a
// fresh context: the caller that triggered it may be gone before the
// remote store answers.
func (c *Cache) run(key Key, f *flight, fn FetchFunc) {
	payload, err := fn(context.Background())
	c.complete(key, f, payload, err)
}

func (c *Cache) complete(key Key, f *flight, payload []byte, err error) {
	f.payload = payload
	f.err = err

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && e.flight == f {
		e.flight = nil
		e.lastErr = err
		if err == nil {
			e.payload = payload
			e.hasValue = true
			e.fetchedAt = c.clock()
		}
	}
	var subs []func([]byte)
	if ok && err == nil {
		for _, cb := range e.subs {
			subs = append(subs, cb)
		}
	}
	c.mu.Unlock()

	close(f.done)
	for _, cb := range subs {
		cb(payload)
	}
}

// Invalidate drops every entry under prefix and immediately refetches
// the ones with a registered loader, so dependent views see the write
// on their next read rather than a stale value. It returns the number
// of keys hit.
func (c *Cache) Invalidate(prefix Key) int {
	c.mu.Lock()
	count := 0
	for key, e := range c.entries {
		if !key.HasPrefix(prefix) {
			continue
		}
		count++
		e.payload = nil
		e.hasValue = false
		e.lastErr = nil
		if e.fetch != nil && e.flight == nil {
			f := &flight{done: make(chan struct{})}
			e.flight = f
			go c.run(key, f, e.fetch)
		} else if e.fetch == nil && e.flight == nil && len(e.subs) == 0 {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
	return count
}

// Subscribe registers cb to run after every successful load of key. The
// returned function removes the subscription.
func (c *Cache) Subscribe(key Key, cb func([]byte)) func() {
	c.mu.Lock()
	e := c.entryLocked(key)
	id := e.nextSub
	e.nextSub++
	e.subs[id] = cb
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		if e, ok := c.entries[key]; ok {
			delete(e.subs, id)
		}
		c.mu.Unlock()
	}
}

// Set stores a value directly, bypassing any fetch. Used by snapshot
// restore and by tests.
func (c *Cache) Set(key Key, payload []byte, ttl time.Duration) {
	c.mu.Lock()
	e := c.entryLocked(key)
	e.payload = payload
	e.hasValue = true
	e.fetchedAt = c.clock()
	e.staleAfter = ttl
	var subs []func([]byte)
	for _, cb := range e.subs {
		subs = append(subs, cb)
	}
	c.mu.Unlock()
	for _, cb := range subs {
		cb(payload)
	}
}

// Peek returns the cached payload without triggering any fetch.
func (c *Cache) Peek(key Key) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !e.hasValue {
		return nil, false
	}
	return e.payload, true
}

// Len reports the number of resident entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
