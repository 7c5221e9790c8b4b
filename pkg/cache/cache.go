package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/trajview/internal/logging"
	"github.com/aretw0/trajview/pkg/domain"
)

// Status is the lifecycle state of a cache entry.
type Status string

const (
	StatusFetching Status = "fetching"
	StatusReady    Status = "ready"
	StatusFailed   Status = "failed"
)

// Producer computes the value for a key. It is invoked at most once per
// generation, detached from the cancellation of the callers waiting on it.
type Producer[K comparable, V any] func(ctx context.Context, key K) (V, error)

// Entry is a snapshot of a cached key.
// A failed or re-fetching entry keeps the last successful value (HasValue).
type Entry[V any] struct {
	Value      V
	HasValue   bool
	Status     Status
	Err        error
	UpdatedAt  time.Time
	Generation uint64
}

// IsLoading reports whether a fetch for the entry's current generation is outstanding.
func (e Entry[V]) IsLoading() bool {
	return e.Status == StatusFetching
}

// call is one generation of a fetch. Waiters block on done.
type call[V any] struct {
	gen  uint64
	done chan struct{}
	val  V
	err  error
}

type entry[V any] struct {
	Entry[V]
	inflight   *call[V]
	refs       int
	lastAccess time.Time
}

// Cache is a process-wide key/value store with a freshness policy and request
// coalescing: at most one fetch is outstanding per key, and only the outcome of
// the most recently issued generation is ever stored.
// Safe for concurrent use.
type Cache[K comparable, V any] struct {
	name   string
	policy Policy
	now    func() time.Time
	hooks  domain.LifecycleHooks
	logger *slog.Logger

	mu      sync.Mutex
	entries map[K]*entry[V]
	seq     uint64 // generation counter, shared by all keys so evicted keys never reuse a token

	subMu       sync.RWMutex
	subscribers map[*Subscription[K]]struct{}
}

// New creates an empty cache.
func New[K comparable, V any](opts ...Option) *Cache[K, V] {
	o := options{
		name:   "cache",
		now:    time.Now,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[K, V]{
		name:        o.name,
		policy:      o.policy,
		now:         o.now,
		hooks:       o.hooks,
		logger:      o.logger.With("cache", o.name),
		entries:     make(map[K]*entry[V]),
		subscribers: make(map[*Subscription[K]]struct{}),
	}
}

// Name returns the cache name used in events and logs.
func (c *Cache[K, V]) Name() string {
	return c.name
}

// Policy returns the freshness policy of the cache.
func (c *Cache[K, V]) Policy() Policy {
	return c.policy
}

// Len returns the number of entries currently held.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Get returns a snapshot of the entry for key without triggering a fetch.
func (c *Cache[K, V]) Get(key K) (Entry[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Entry[V]{}, false
	}
	return e.Entry, true
}

// FetchIfNeeded returns the cached value when it is fresh, joins the in-flight
// fetch for key when there is one, and otherwise starts a new fetch.
// Cancelling ctx only stops this caller from waiting; the fetch itself continues.
func (c *Cache[K, V]) FetchIfNeeded(ctx context.Context, key K, producer Producer[K, V]) (V, error) {
	c.mu.Lock()
	e := c.entryLocked(key)
	now := c.now()
	e.lastAccess = now
	if c.policy.fresh(e.state(), now) {
		v := e.Value
		c.mu.Unlock()
		return v, nil
	}
	cl, started := c.joinOrStartLocked(ctx, key, e, producer)
	c.mu.Unlock()

	c.afterJoin(ctx, key, cl, started)
	return wait(ctx, cl)
}

// Ensure starts a fetch for key if the entry is missing or stale and no fetch
// is in flight, then returns the current snapshot without waiting. A failed
// entry keeps its error until Restart or FetchIfNeeded issues a new generation.
func (c *Cache[K, V]) Ensure(key K, producer Producer[K, V]) Entry[V] {
	ctx := context.Background()
	c.mu.Lock()
	e := c.entryLocked(key)
	now := c.now()
	e.lastAccess = now
	if c.policy.fresh(e.state(), now) || e.inflight != nil || e.Status == StatusFailed {
		snap := e.Entry
		c.mu.Unlock()
		return snap
	}
	cl, started := c.joinOrStartLocked(ctx, key, e, producer)
	snap := e.Entry
	c.mu.Unlock()

	c.afterJoin(ctx, key, cl, started)
	return snap
}

// Restart always issues a new generation for key, superseding any in-flight
// fetch, and returns a handle on it without waiting. The superseded outcome is
// delivered to its own waiters but never stored.
func (c *Cache[K, V]) Restart(key K, producer Producer[K, V]) *Pending[V] {
	c.mu.Lock()
	e := c.entryLocked(key)
	e.lastAccess = c.now()
	cl := c.startLocked(context.Background(), key, e, producer)
	c.mu.Unlock()

	c.afterJoin(context.Background(), key, cl, true)
	return &Pending[V]{call: cl}
}

// Pending is a handle on a fetch generation.
type Pending[V any] struct {
	call *call[V]
}

// Generation returns the generation token of the fetch.
func (p *Pending[V]) Generation() uint64 {
	return p.call.gen
}

// Wait blocks until the fetch completes or ctx is done.
func (p *Pending[V]) Wait(ctx context.Context) (V, error) {
	return wait(ctx, p.call)
}

// Retain registers an observer of key. Observed entries are never evicted.
// The returned function releases the reference; calling it more than once is a no-op.
func (c *Cache[K, V]) Retain(key K) (release func()) {
	c.mu.Lock()
	e := c.entryLocked(key)
	e.refs++
	e.lastAccess = c.now()
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if e.refs > 0 {
				e.refs--
				e.lastAccess = c.now()
			}
		})
	}
}

// Sweep evicts entries that have no observers, no in-flight fetch, and have not
// been accessed for longer than the retention window. It returns the number of
// evicted entries. A zero retention disables eviction.
func (c *Cache[K, V]) Sweep(now time.Time) int {
	if c.policy.Retention <= 0 {
		return 0
	}

	var evicted []evictedKey[K]
	c.mu.Lock()
	for key, e := range c.entries {
		if e.refs > 0 || e.inflight != nil {
			continue
		}
		if now.Sub(e.lastAccess) < c.policy.Retention {
			continue
		}
		delete(c.entries, key)
		evicted = append(evicted, evictedKey[K]{key: key, gen: e.Generation})
	}
	c.mu.Unlock()

	for _, ev := range evicted {
		c.emit(c.hooks.OnEvict, domain.EventEvict, ev.key, ev.gen, 0, nil)
		c.notify(ev.key)
	}
	if len(evicted) > 0 {
		c.logger.Debug("Evicted cache entries", "count", len(evicted))
	}
	return len(evicted)
}

type evictedKey[K comparable] struct {
	key K
	gen uint64
}

// RunJanitor sweeps the cache every interval until ctx is done.
func (c *Cache[K, V]) RunJanitor(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("janitor interval must be positive, got %v", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.Sweep(c.now())
		}
	}
}

// Subscription accumulates the keys whose entries changed (fetch started,
// completed or evicted) until they are drained. No change is ever lost: a
// key changing several times before a drain is reported once.
type Subscription[K comparable] struct {
	mu      sync.Mutex
	pending map[K]struct{}
	ready   chan struct{}
	closed  bool
}

// Ready receives a value whenever keys are pending.
func (s *Subscription[K]) Ready() <-chan struct{} {
	return s.ready
}

// Drain returns the pending keys and clears them.
func (s *Subscription[K]) Drain() []K {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}
	keys := make([]K, 0, len(s.pending))
	for key := range s.pending {
		keys = append(keys, key)
	}
	clear(s.pending)
	return keys
}

func (s *Subscription[K]) push(key K) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending[key] = struct{}{}
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// Subscribe registers a change subscription. The cancel function
// unsubscribes; pending keys are discarded.
func (c *Cache[K, V]) Subscribe() (*Subscription[K], func()) {
	sub := &Subscription[K]{
		pending: make(map[K]struct{}),
		ready:   make(chan struct{}, 1),
	}
	c.subMu.Lock()
	c.subscribers[sub] = struct{}{}
	c.subMu.Unlock()

	var once sync.Once
	return sub, func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subscribers, sub)
			c.subMu.Unlock()

			sub.mu.Lock()
			sub.closed = true
			clear(sub.pending)
			sub.mu.Unlock()
		})
	}
}

func (c *Cache[K, V]) notify(key K) {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	for sub := range c.subscribers {
		sub.push(key)
	}
}

// entryLocked returns the entry for key, creating an empty one. Caller holds c.mu.
func (c *Cache[K, V]) entryLocked(key K) *entry[V] {
	e, ok := c.entries[key]
	if !ok {
		e = &entry[V]{}
		c.entries[key] = e
	}
	return e
}

// joinOrStartLocked attaches to the in-flight call or starts a new one. Caller holds c.mu.
func (c *Cache[K, V]) joinOrStartLocked(ctx context.Context, key K, e *entry[V], producer Producer[K, V]) (*call[V], bool) {
	if e.inflight != nil {
		return e.inflight, false
	}
	return c.startLocked(ctx, key, e, producer), true
}

// startLocked issues a new generation for key. Caller holds c.mu.
func (c *Cache[K, V]) startLocked(ctx context.Context, key K, e *entry[V], producer Producer[K, V]) *call[V] {
	c.seq++
	cl := &call[V]{gen: c.seq, done: make(chan struct{})}
	e.inflight = cl
	e.Status = StatusFetching
	e.Generation = cl.gen

	go c.run(context.WithoutCancel(ctx), key, cl, producer)
	return cl
}

func (c *Cache[K, V]) afterJoin(ctx context.Context, key K, cl *call[V], started bool) {
	if started {
		c.emit(c.hooks.OnFetchStart, domain.EventFetchStart, key, cl.gen, 0, nil)
		c.notify(key)
		return
	}
	c.emit(c.hooks.OnCoalesced, domain.EventCoalesced, key, cl.gen, 0, nil)
}

// run executes the producer for one generation and stores the outcome only if
// that generation is still the current one for key.
func (c *Cache[K, V]) run(ctx context.Context, key K, cl *call[V], producer Producer[K, V]) {
	start := c.now()
	v, err := safeProduce(ctx, key, producer)
	elapsed := c.now().Sub(start)

	c.mu.Lock()
	e, ok := c.entries[key]
	current := ok && e.Generation == cl.gen
	if current {
		e.inflight = nil
		e.UpdatedAt = c.now()
		e.lastAccess = e.UpdatedAt
		if err != nil {
			e.Status = StatusFailed
			e.Err = err
		} else {
			e.Value = v
			e.HasValue = true
			e.Status = StatusReady
			e.Err = nil
		}
	}
	cl.val, cl.err = v, err
	close(cl.done)
	c.mu.Unlock()

	if !current {
		c.logger.Debug("Discarded superseded fetch outcome", "key", fmt.Sprint(key), "generation", cl.gen)
		c.emit(c.hooks.OnDiscard, domain.EventDiscard, key, cl.gen, elapsed, err)
		return
	}
	c.emit(c.hooks.OnFetchDone, domain.EventFetchDone, key, cl.gen, elapsed, err)
	c.notify(key)
}

func (c *Cache[K, V]) emit(hook func(context.Context, *domain.CacheEvent), typ domain.EventType, key K, gen uint64, d time.Duration, err error) {
	if hook == nil {
		return
	}
	hook(context.Background(), &domain.CacheEvent{
		EventBase:  domain.EventBase{Timestamp: c.now(), Type: typ},
		Cache:      c.name,
		Key:        fmt.Sprint(key),
		Generation: gen,
		Duration:   d,
		Err:        err,
	})
}

func safeProduce[K comparable, V any](ctx context.Context, key K, producer Producer[K, V]) (v V, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cache producer panicked: %v", r)
		}
	}()
	return producer(ctx, key)
}

func wait[V any](ctx context.Context, cl *call[V]) (V, error) {
	select {
	case <-cl.done:
		return cl.val, cl.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

func (e *entry[V]) state() entryState {
	return entryState{Status: e.Status, HasValue: e.HasValue, UpdatedAt: e.UpdatedAt}
}
