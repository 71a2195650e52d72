// Copyright 2024 The Lumen Authors
// This file is part of Lumen.
//
// Lumen is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Lumen is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Lumen. If not, see <http://www.gnu.org/licenses/>.

// Package classcache caches compiled class artifacts so the executor does
// not re-derive CASM from Sierra on every invocation of a previously-seen
// class: a bounded, reference-count-pinned map plus a background compile
// pool of goroutines in place of rayon.
package classcache

import (
	"container/list"
	"sync"

	"github.com/lumenhq/lumen/primitives/class"
)

const defaultSize = 100

// Compiler turns a declared Class into its CompiledClass, the expensive
// operation this cache exists to amortize (Sierra -> CASM compilation).
type Compiler interface {
	Compile(c class.Class) (class.CompiledClass, error)
}

// entry is one cached compiled class. refcount counts live Handles from
// Get; elem is its node in the recency list while refcount == 0, and nil
// while pinned (pinned entries are not eviction candidates).
type entry struct {
	hash     class.Hash
	compiled class.CompiledClass
	refcount int
	elem     *list.Element
}

// Cache is a bounded map from ClassHash to CompiledClass, with
// reference-count-based pinning so an entry held by an in-flight executor
// is never evicted: insertion only evicts from the unpinned tail of the
// recency list, and an entry returns to that list on its last Release.
// Background compilation lets callers already holding one entry proceed
// without blocking behind another hash's compile.
type Cache struct {
	mu       sync.Mutex
	size     int
	entries  map[class.Hash]*entry
	order    *list.List // recency order of refcount==0 entries, MRU at front
	compiler Compiler
	jobs     chan compileJob
}

type compileJob struct {
	hash   class.Hash
	class  class.Class
	result chan<- compileResult
}

type compileResult struct {
	compiled class.CompiledClass
	err      error
}

// Handle is a pinned reference to a cached compiled class: the entry it
// points at cannot be evicted until Release is called, mirroring the
// original's Arc-backed RunnableCompiledClass staying alive for as long as
// an execution holds it.
type Handle struct {
	cache    *Cache
	hash     class.Hash
	compiled class.CompiledClass
	released bool
}

// Compiled returns the pinned compiled class.
func (h *Handle) Compiled() class.CompiledClass { return h.compiled }

// Release unpins the entry. Once every Handle obtained for a hash has been
// released, the entry becomes an eviction candidate again. Release is
// idempotent.
func (h *Handle) Release() {
	if h.released {
		return
	}
	h.released = true
	h.cache.release(h.hash)
}

// Option configures a Cache at construction time, mirroring
// ClassCacheBuilder's with_cache_size/with_thread_count knobs.
type Option func(*options)

type options struct {
	size    int
	workers int
}

func WithCacheSize(size int) Option { return func(o *options) { o.size = size } }
func WithWorkers(n int) Option      { return func(o *options) { o.workers = n } }

// New builds a Cache backed by compiler, starting a small worker pool for
// background compilation (default: 100 entries, 3 workers, matching the
// original's defaults).
func New(compiler Compiler, opts ...Option) *Cache {
	o := options{size: defaultSize, workers: 3}
	for _, opt := range opts {
		opt(&o)
	}
	if o.size <= 0 {
		panic("classcache: size must be positive")
	}
	c := &Cache{
		size:     o.size,
		entries:  make(map[class.Hash]*entry),
		order:    list.New(),
		compiler: compiler,
		jobs:     make(chan compileJob, o.workers*4),
	}
	for i := 0; i < o.workers; i++ {
		go c.worker()
	}
	return c
}

func (c *Cache) worker() {
	for job := range c.jobs {
		compiled, err := c.compiler.Compile(job.class)
		if err == nil {
			c.mu.Lock()
			c.insertLocked(job.hash, compiled)
			c.mu.Unlock()
		}
		job.result <- compileResult{compiled: compiled, err: err}
	}
}

// Get returns a pinned Handle to hash's compiled class, compiling (and
// caching) on miss. Unlike the original's fire-and-forget background
// compile, Get blocks on the result: the executor always needs the class
// before it can proceed, so there is no benefit to an async miss path here
// — the worker pool's value is letting independent class hashes compile
// concurrently, not deferring any single caller's own result. The returned
// Handle must be released when the caller is done executing against it.
func (c *Cache) Get(hash class.Hash, source class.Class) (*Handle, error) {
	c.mu.Lock()
	if e, ok := c.entries[hash]; ok {
		c.pinLocked(e)
		compiled := e.compiled
		c.mu.Unlock()
		return &Handle{cache: c, hash: hash, compiled: compiled}, nil
	}
	c.mu.Unlock()

	result := make(chan compileResult, 1)
	c.jobs <- compileJob{hash: hash, class: source, result: result}
	r := <-result
	if r.err != nil {
		return nil, r.err
	}

	c.mu.Lock()
	e := c.entries[hash]
	if e == nil {
		// The worker's own insertLocked lost a race with an eviction of an
		// entry this same Get call never pinned; reinsert and pin fresh.
		e = c.insertLocked(hash, r.compiled)
	}
	c.pinLocked(e)
	c.mu.Unlock()
	return &Handle{cache: c, hash: hash, compiled: r.compiled}, nil
}

// Peek reports whether hash is cached without pinning it or affecting its
// recency.
func (c *Cache) Peek(hash class.Hash) (class.CompiledClass, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[hash]
	if !ok {
		return class.CompiledClass{}, false
	}
	return e.compiled, true
}

// Len reports the current number of cached entries, pinned or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// insertLocked adds or refreshes hash's compiled class and evicts from the
// unpinned tail until the cache is back at size, or every remaining entry
// is pinned. Must be called with c.mu held.
func (c *Cache) insertLocked(hash class.Hash, compiled class.CompiledClass) *entry {
	if e, ok := c.entries[hash]; ok {
		e.compiled = compiled
		if e.elem != nil {
			c.order.MoveToFront(e.elem)
		}
		return e
	}
	e := &entry{hash: hash, compiled: compiled}
	e.elem = c.order.PushFront(e)
	c.entries[hash] = e
	c.evictLocked()
	return e
}

func (c *Cache) evictLocked() {
	for len(c.entries) > c.size {
		back := c.order.Back()
		if back == nil {
			// Every remaining entry is pinned; insertion never evicts an
			// entry currently held by an in-flight executor, so the cache
			// is allowed to temporarily exceed size here.
			return
		}
		victim := back.Value.(*entry)
		c.order.Remove(back)
		delete(c.entries, victim.hash)
	}
}

// pinLocked increments hash's refcount, removing it from the eviction
// candidate list on its first pin. Must be called with c.mu held.
func (c *Cache) pinLocked(e *entry) {
	e.refcount++
	if e.elem != nil {
		c.order.Remove(e.elem)
		e.elem = nil
	}
}

// release decrements hash's refcount, returning the entry to the eviction
// candidate list (and running eviction) once no Handle holds it anymore.
func (c *Cache) release(hash class.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[hash]
	if !ok {
		return
	}
	e.refcount--
	if e.refcount < 0 {
		e.refcount = 0
	}
	if e.refcount == 0 {
		e.elem = c.order.PushFront(e)
		c.evictLocked()
	}
}
