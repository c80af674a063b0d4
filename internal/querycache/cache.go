// Package querycache is the process-wide keyed cache of server-derived view
// state. Reads of one key share a single in-flight fetch, writes patch
// entries synchronously, and invalidation schedules a coalesced background
// refetch.
package querycache

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/starford/talentflow/internal/metrics"
)

// Fetcher loads the authoritative value of a key.
type Fetcher func(ctx context.Context) (any, error)

// Updater derives a new value from the current one. It must not modify old.
type Updater func(old any) any

// Snapshot is a point-in-time copy of an entry's data.
type Snapshot struct {
	Data any
	OK   bool
}

// Status is the read state of an entry.
type Status int

const (
	Missing Status = iota
	Pending
	Ready
	Failed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return "missing"
}

// State describes an entry for observers.
type State struct {
	Status Status
	Data   any
	Err    error
	Stale  bool
	Held   bool
}

type entry struct {
	key     Key
	data    any
	has     bool
	err     error
	stale   bool
	gen     uint64
	fetcher Fetcher
	running int

	holds    int
	deferred bool

	refetching bool
	queued     bool
}

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	group   singleflight.Group
	wg      sync.WaitGroup
	base    context.Context
	log     *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for background refetch failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.log = l }
}

// WithContext sets the context background refetches run under.
func WithContext(ctx context.Context) Option {
	return func(c *Cache) { c.base = ctx }
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		base:    context.Background(),
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Cache) lookup(key Key) (string, *entry) {
	s := key.String()
	e, ok := c.entries[s]
	if !ok {
		e = &entry{key: slices.Clone(key)}
		c.entries[s] = e
	}
	return s, e
}

// Get returns the cached value of key, fetching it when absent. Cached data
// is returned even while stale; the refetch scheduled by Invalidate replaces
// it. ctx bounds this caller's wait only, never the shared fetch.
func Get[T any](ctx context.Context, c *Cache, key Key, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	v, err := c.Read(ctx, key, func(ctx context.Context) (any, error) { return fetch(ctx) })
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("querycache: %s holds %T, not %T", key, v, zero)
	}
	return t, nil
}

// Read is the untyped form of Get.
func (c *Cache) Read(ctx context.Context, key Key, fetch Fetcher) (any, error) {
	c.mu.Lock()
	s, e := c.lookup(key)
	e.fetcher = fetch
	if e.has {
		v, stale := e.data, e.stale
		if stale && !e.refetching {
			c.invalidateLocked(s, e)
		}
		c.mu.Unlock()
		if stale {
			metrics.CacheRequests.WithLabelValues("stale").Inc()
		} else {
			metrics.CacheRequests.WithLabelValues("hit").Inc()
		}
		return v, nil
	}
	ch := c.startLocked(context.WithoutCancel(ctx), s, e)
	c.mu.Unlock()
	metrics.CacheRequests.WithLabelValues("miss").Inc()

	select {
	case res := <-ch:
		if res.Shared {
			metrics.CacheRequests.WithLabelValues("shared").Inc()
		}
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// startLocked joins or starts the fetch of s. The result is stored only if
// the entry's generation is unchanged and no mutation holds it.
func (c *Cache) startLocked(ctx context.Context, s string, e *entry) <-chan singleflight.Result {
	gen, fetch := e.gen, e.fetcher
	return c.group.DoChan(s, func() (any, error) {
		c.mu.Lock()
		e.running++
		c.mu.Unlock()

		v, err := fetch(ctx)

		c.mu.Lock()
		defer c.mu.Unlock()
		e.running--
		switch {
		case e.gen != gen || e.holds > 0:
			if e.holds > 0 {
				e.deferred = true
			}
			metrics.CacheFetches.WithLabelValues("discarded").Inc()
		case err != nil:
			e.err = err
			metrics.CacheFetches.WithLabelValues("error").Inc()
		default:
			e.data, e.has, e.stale, e.err = v, true, false, nil
			metrics.CacheFetches.WithLabelValues("ok").Inc()
		}
		return v, err
	})
}

// Write replaces the data of key with fn(current). It does nothing and
// returns false when key holds no data.
func (c *Cache) Write(key Key, fn Updater) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, e := c.lookup(key)
	if !e.has {
		return false
	}
	e.data = fn(e.data)
	e.gen++
	return true
}

// Set stores v as the data of key.
func (c *Cache) Set(key Key, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, e := c.lookup(key)
	e.data, e.has, e.err = v, true, nil
	e.gen++
}

// Snapshot returns the current data of key.
func (c *Cache) Snapshot(key Key) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok || !e.has {
		return Snapshot{}
	}
	return Snapshot{Data: e.data, OK: true}
}

// Restore puts s back as the data of key. A snapshot without data empties
// the entry.
func (c *Cache) Restore(key Key, s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, e := c.lookup(key)
	e.data, e.has = s.Data, s.OK
	e.gen++
}

// Cancel makes any in-flight fetch of key unable to store its result. The
// fetch itself keeps running; its callers still receive the response.
func (c *Cache) Cancel(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked(key)
}

func (c *Cache) cancelLocked(key Key) {
	s := key.String()
	if e, ok := c.entries[s]; ok {
		e.gen++
		c.group.Forget(s)
	}
}

// Hold opens a mutation window on key: fetch results are discarded and
// invalidations deferred until the matching Release.
func (c *Cache) Hold(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, e := c.lookup(key)
	e.holds++
}

// Acquire cancels, holds and snapshots key in one step.
func (c *Cache) Acquire(key Key) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked(key)
	_, e := c.lookup(key)
	e.holds++
	if !e.has {
		return Snapshot{}
	}
	return Snapshot{Data: e.data, OK: true}
}

// Release closes one mutation window on key and runs a deferred invalidation
// once no window remains.
func (c *Cache) Release(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, e := c.lookup(key)
	if e.holds == 0 {
		return
	}
	e.holds--
	if e.holds == 0 && e.deferred {
		e.deferred = false
		c.invalidateLocked(s, e)
	}
}

// Invalidate marks every entry under prefix stale and schedules one
// background refetch per entry. An invalidation arriving while a refetch runs
// queues at most one more.
func (c *Cache) Invalidate(prefix Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for s, e := range c.entries {
		if e.key.HasPrefix(prefix) {
			c.invalidateLocked(s, e)
		}
	}
}

func (c *Cache) invalidateLocked(s string, e *entry) {
	if e.holds > 0 {
		e.deferred = true
		return
	}
	e.stale = true
	if e.fetcher == nil {
		return
	}
	if e.refetching {
		e.queued = true
		return
	}
	e.refetching = true
	e.gen++
	c.group.Forget(s)
	c.wg.Add(1)
	go c.refetch(s, e)
}

func (c *Cache) refetch(s string, e *entry) {
	defer c.wg.Done()
	for {
		c.mu.Lock()
		ch := c.startLocked(c.base, s, e)
		c.mu.Unlock()

		if res := <-ch; res.Err != nil {
			c.log.Warn("background refetch failed",
				slog.String("key", s), slog.String("error", res.Err.Error()))
		}

		c.mu.Lock()
		if !e.queued {
			e.refetching = false
			c.mu.Unlock()
			return
		}
		e.queued = false
		if e.holds > 0 {
			e.deferred = true
			e.refetching = false
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
	}
}

// Wait blocks until every background refetch scheduled so far has finished.
func (c *Cache) Wait() {
	c.wg.Wait()
}

// Keys returns the keys under prefix that currently hold data, in encoding order.
func (c *Cache) Keys(prefix Key) []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	var names []string
	for s, e := range c.entries {
		if e.has && e.key.HasPrefix(prefix) {
			names = append(names, s)
		}
	}
	slices.Sort(names)
	out := make([]Key, len(names))
	for i, s := range names {
		out[i] = slices.Clone(c.entries[s].key)
	}
	return out
}

// State reports the read state of key.
func (c *Cache) State(key Key) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok {
		return State{}
	}
	st := State{Data: e.data, Err: e.err, Stale: e.stale, Held: e.holds > 0}
	switch {
	case e.has:
		st.Status = Ready
	case e.running > 0:
		st.Status = Pending
	case e.err != nil:
		st.Status = Failed
	}
	return st
}
