// Package cache holds the query cache: keyed, de-duplicated, retried reads
// with staleness tracking, invalidation and garbage collection.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/mycheff/engine/internal/domain"
	"go.uber.org/zap"
)

const (
	DefaultStaleTime  = 5 * time.Minute
	DefaultGCTime     = 10 * time.Minute
	DefaultGCInterval = time.Minute
)

// Fetcher loads the value for one key
type Fetcher func(ctx context.Context) (any, error)

// Status is the lifecycle status of an entry
type Status string

const (
	StatusIdle    Status = "idle"
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Config holds the cache-wide defaults. Zero values fall back to the
// package defaults.
type Config struct {
	StaleTime  time.Duration
	GCTime     time.Duration
	GCInterval time.Duration
	Retry      *RetryPolicy
	Now        func() time.Time
}

// Options are the per-fetch settings
type Options struct {
	StaleTime            time.Duration
	GCTime               time.Duration
	Retry                RetryPolicy
	StaleWhileRevalidate bool
}

// Option overrides one per-fetch setting
type Option func(*Options)

// WithStaleTime sets how long fetched data is served without refetching
func WithStaleTime(d time.Duration) Option {
	return func(o *Options) { o.StaleTime = d }
}

// WithGCTime sets how long an unused entry is kept
func WithGCTime(d time.Duration) Option {
	return func(o *Options) { o.GCTime = d }
}

// WithRetry replaces the retry policy
func WithRetry(p RetryPolicy) Option {
	return func(o *Options) { o.Retry = p }
}

// WithStaleWhileRevalidate returns stale data immediately and refreshes it
// in the background
func WithStaleWhileRevalidate() Option {
	return func(o *Options) { o.StaleWhileRevalidate = true }
}

// State is a point-in-time view of one entry
type State struct {
	Data        any
	HasData     bool
	Err         error
	Status      Status
	FetchedAt   time.Time
	StaleAt     time.Time
	Invalidated bool
	Fetching    bool
}

// IsStale reports whether the data must be refetched on next access
func (s State) IsStale(now time.Time) bool {
	return !s.HasData || s.Invalidated || !now.Before(s.StaleAt)
}

// Stats is a snapshot of the cache counters
type Stats struct {
	Entries     int    `json:"entries"`
	InFlight    int    `json:"inFlight"`
	Subscribers int    `json:"subscribers"`
	Hits        uint64 `json:"hits"`
	Misses      uint64 `json:"misses"`
	Deduped     uint64 `json:"deduped"`
	Evictions   uint64 `json:"evictions"`
}

type entry struct {
	key   QueryKey
	parts []string
	state State
	gcAt  time.Time
	call  *call
	subs  map[int]func(State)
}

// call is one in-flight fetch shared by every waiter of a key
type call struct {
	done        chan struct{}
	val         any
	err         error
	waiters     int
	cancel      context.CancelFunc
	staleTime   time.Duration
	invalidated bool
	// superseded calls are detached from their entry but still owe their
	// waiters an answer
	superseded bool
}

// QueryCache is a thread-safe cache of query results keyed by QueryKey.
// At most one fetch per key is in flight at any time.
type QueryCache struct {
	cfg     Config
	now     func() time.Time
	logger  *zap.Logger
	entries map[string]*entry
	mutex   sync.Mutex
	nextSub int
	closed  bool
	stop    chan struct{}
	stopped chan struct{}

	hits, misses, deduped, evictions uint64
}

// New creates a cache and starts its garbage collection loop
func New(cfg Config, logger *zap.Logger) *QueryCache {
	if cfg.StaleTime == 0 {
		cfg.StaleTime = DefaultStaleTime
	}
	if cfg.GCTime == 0 {
		cfg.GCTime = DefaultGCTime
	}
	if cfg.GCInterval == 0 {
		cfg.GCInterval = DefaultGCInterval
	}
	if cfg.Retry == nil {
		p := DefaultRetryPolicy()
		cfg.Retry = &p
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &QueryCache{
		cfg:     cfg,
		now:     now,
		logger:  logger.Named("cache"),
		entries: make(map[string]*entry),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	go c.cleanupExpired()

	return c
}

func (c *QueryCache) options(opts []Option) Options {
	o := Options{
		StaleTime: c.cfg.StaleTime,
		GCTime:    c.cfg.GCTime,
		Retry:     *c.cfg.Retry,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Fetch returns the cached value for key when it is fresh. Otherwise it
// loads it with fetcher, joining the fetch already in flight for key if
// there is one. If ctx is cancelled the caller stops waiting; the fetch
// itself is aborted once no caller is waiting for it.
func (c *QueryCache) Fetch(ctx context.Context, key QueryKey, fetcher Fetcher, opts ...Option) (any, error) {
	return c.fetch(ctx, key, fetcher, false, c.options(opts))
}

// Refetch loads key even when the cached value is fresh. A fetch already
// in flight is joined rather than duplicated.
func (c *QueryCache) Refetch(ctx context.Context, key QueryKey, fetcher Fetcher, opts ...Option) (any, error) {
	return c.fetch(ctx, key, fetcher, true, c.options(opts))
}

func (c *QueryCache) fetch(ctx context.Context, key QueryKey, fetcher Fetcher, force bool, o Options) (any, error) {
	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return nil, domain.ErrCacheClosed
	}

	now := c.now()
	e := c.entryLocked(key)
	e.touch(now, o.GCTime)

	if !force && !e.state.IsStale(now) {
		c.hits++
		data := e.state.Data
		c.mutex.Unlock()
		return data, nil
	}

	cl := e.call
	if cl == nil {
		c.misses++
		cl = c.startLocked(e, fetcher, o)
	} else {
		c.deduped++
	}

	if o.StaleWhileRevalidate && !force && e.state.HasData {
		data := e.state.Data
		c.mutex.Unlock()
		return data, nil
	}

	cl.waiters++
	c.mutex.Unlock()

	select {
	case <-cl.done:
		return cl.val, cl.err
	case <-ctx.Done():
		c.leave(e, cl)
		return nil, domain.AsError(ctx.Err())
	}
}

func (c *QueryCache) entryLocked(key QueryKey) *entry {
	id := key.String()
	e, ok := c.entries[id]
	if !ok {
		e = &entry{
			key:   append(QueryKey(nil), key...),
			parts: key.encode(),
			state: State{Status: StatusIdle},
		}
		c.entries[id] = e
	}
	return e
}

func (e *entry) touch(now time.Time, gcTime time.Duration) {
	gcAt := now.Add(gcTime)
	if gcAt.After(e.gcAt) {
		e.gcAt = gcAt
	}
}

func (c *QueryCache) startLocked(e *entry, fetcher Fetcher, o Options) *call {
	ctx, cancel := context.WithCancel(context.Background())
	cl := &call{
		done:      make(chan struct{}),
		cancel:    cancel,
		staleTime: o.StaleTime,
	}
	e.call = cl
	e.state.Status = StatusPending
	e.state.Fetching = true

	c.logger.Debug("fetch started", zap.Stringer("key", e.key))
	go c.run(ctx, e, cl, fetcher, o.Retry)
	return cl
}

func (c *QueryCache) run(ctx context.Context, e *entry, cl *call, fetcher Fetcher, policy RetryPolicy) {
	defer cl.cancel()

	val, err := policy.Do(ctx, fetcher, func(attempt int, err error) {
		c.logger.Debug("fetch attempt failed",
			zap.Stringer("key", e.key),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	})

	cl.val, cl.err = val, err

	c.mutex.Lock()
	var notify []func(State)
	var st State
	if e.call == cl {
		e.call = nil
		now := c.now()
		e.state.Fetching = false
		if err != nil {
			e.state.Status = StatusError
			e.state.Err = err
			c.logger.Warn("fetch failed", zap.Stringer("key", e.key), zap.Error(err))
		} else {
			e.state.Data = val
			e.state.HasData = true
			e.state.Err = nil
			e.state.Status = StatusSuccess
			e.state.FetchedAt = now
			e.state.StaleAt = now.Add(cl.staleTime)
			e.state.Invalidated = cl.invalidated
		}
		notify, st = e.subscribers(), e.state
	} else if cl.superseded && e.state.HasData {
		cl.val, cl.err = e.state.Data, nil
	}
	c.mutex.Unlock()

	for _, fn := range notify {
		fn(st)
	}
	close(cl.done)
}

// leave removes one waiter from cl and aborts the fetch when none remain
func (c *QueryCache) leave(e *entry, cl *call) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	cl.waiters--
	if cl.waiters > 0 {
		return
	}
	if e.call != cl {
		if cl.superseded {
			cl.cancel()
		}
		return
	}
	c.detachLocked(e)
	c.logger.Debug("fetch abandoned", zap.Stringer("key", e.key))
}

// detachLocked cancels the entry's in-flight fetch; its result is discarded
func (c *QueryCache) detachLocked(e *entry) {
	if e.call == nil {
		return
	}
	e.call.cancel()
	c.releaseLocked(e)
}

// releaseLocked unlinks the entry's call and settles its status
func (c *QueryCache) releaseLocked(e *entry) {
	e.call = nil
	e.state.Fetching = false
	switch {
	case e.state.Err != nil:
		e.state.Status = StatusError
	case e.state.HasData:
		e.state.Status = StatusSuccess
	default:
		e.state.Status = StatusIdle
	}
}

func (e *entry) subscribers() []func(State) {
	if len(e.subs) == 0 {
		return nil
	}
	fns := make([]func(State), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	return fns
}

// GetData returns the cached value for key, fresh or stale
func (c *QueryCache) GetData(key QueryKey) (any, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	e, ok := c.entries[key.String()]
	if !ok || !e.state.HasData {
		return nil, false
	}
	return e.state.Data, true
}

// GetState returns the state of the entry for key
func (c *QueryCache) GetState(key QueryKey) (State, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	e, ok := c.entries[key.String()]
	if !ok {
		return State{}, false
	}
	return e.state, true
}

// SetData stores value as fresh data for key and notifies subscribers
func (c *QueryCache) SetData(key QueryKey, value any) {
	c.mutex.Lock()
	now := c.now()
	e := c.entryLocked(key)
	e.touch(now, c.cfg.GCTime)
	e.state.Data = value
	e.state.HasData = true
	e.state.Err = nil
	e.state.FetchedAt = now
	e.state.StaleAt = now.Add(c.cfg.StaleTime)
	e.state.Invalidated = false
	if e.call == nil {
		e.state.Status = StatusSuccess
	}
	notify, st := e.subscribers(), e.state
	c.mutex.Unlock()

	for _, fn := range notify {
		fn(st)
	}
}

// Restore puts the entry for key back to a state captured with GetState.
// When existed is false the entry is dropped.
func (c *QueryCache) Restore(key QueryKey, st State, existed bool) {
	c.mutex.Lock()
	id := key.String()
	e, ok := c.entries[id]
	if !ok && !existed {
		c.mutex.Unlock()
		return
	}
	if !ok {
		e = c.entryLocked(key)
		e.touch(c.now(), c.cfg.GCTime)
	}
	if !existed {
		st = State{Status: StatusIdle}
	}
	st.Fetching = e.call != nil
	if st.Fetching {
		st.Status = StatusPending
	}
	e.state = st
	if !existed && len(e.subs) == 0 && e.call == nil {
		delete(c.entries, id)
	}
	notify := e.subscribers()
	c.mutex.Unlock()

	for _, fn := range notify {
		fn(st)
	}
}

// Invalidate marks every entry whose key starts with prefix as stale, so the
// next Fetch loads it again. Fetches in flight for those keys still store
// their result, but it stays stale. Returns the number of entries marked.
func (c *QueryCache) Invalidate(prefix QueryKey) int {
	p := prefix.encode()
	type pending struct {
		fns []func(State)
		st  State
	}
	var notify []pending

	c.mutex.Lock()
	n := 0
	for _, e := range c.entries {
		if !hasPrefix(e.parts, p) {
			continue
		}
		n++
		e.state.Invalidated = true
		if e.call != nil {
			e.call.invalidated = true
		}
		if fns := e.subscribers(); fns != nil {
			notify = append(notify, pending{fns, e.state})
		}
	}
	c.mutex.Unlock()

	for _, pn := range notify {
		for _, fn := range pn.fns {
			fn(pn.st)
		}
	}
	c.logger.Debug("invalidated", zap.Stringer("prefix", prefix), zap.Int("entries", n))
	return n
}

// Cancel detaches the fetches in flight for keys under prefix so their
// results are never stored. A fetch nobody waits for is aborted. Callers
// already waiting on one are answered with the entry's data at the time the
// fetch settles, or with the fetch result when the entry has no data.
func (c *QueryCache) Cancel(prefix QueryKey) {
	p := prefix.encode()

	c.mutex.Lock()
	defer c.mutex.Unlock()

	for _, e := range c.entries {
		if e.call == nil || !hasPrefix(e.parts, p) {
			continue
		}
		if e.call.waiters == 0 {
			c.detachLocked(e)
			continue
		}
		e.call.superseded = true
		c.releaseLocked(e)
	}
}

// Subscribe registers fn to be called with the new state whenever the
// entry for key changes. An entry with subscribers is never evicted.
func (c *QueryCache) Subscribe(key QueryKey, fn func(State)) (unsubscribe func()) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	e := c.entryLocked(key)
	if e.subs == nil {
		e.subs = make(map[int]func(State))
	}
	id := c.nextSub
	c.nextSub++
	e.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mutex.Lock()
			defer c.mutex.Unlock()
			delete(e.subs, id)
			e.touch(c.now(), c.cfg.GCTime)
		})
	}
}

// Remove drops every entry whose key starts with prefix, aborting their fetches
func (c *QueryCache) Remove(prefix QueryKey) int {
	p := prefix.encode()

	c.mutex.Lock()
	defer c.mutex.Unlock()

	n := 0
	for id, e := range c.entries {
		if hasPrefix(e.parts, p) {
			c.detachLocked(e)
			delete(c.entries, id)
			n++
		}
	}
	return n
}

// Clear removes all entries
func (c *QueryCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for _, e := range c.entries {
		c.detachLocked(e)
	}
	c.entries = make(map[string]*entry)
	c.logger.Debug("cleared")
}

// CollectGarbage evicts entries that have no subscribers, no fetch in
// flight and were not used within their gc time
func (c *QueryCache) CollectGarbage() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	n := 0
	for id, e := range c.entries {
		if len(e.subs) == 0 && e.call == nil && now.After(e.gcAt) {
			delete(c.entries, id)
			n++
		}
	}
	c.evictions += uint64(n)
	return n
}

// cleanupExpired runs CollectGarbage periodically until Close
func (c *QueryCache) cleanupExpired() {
	defer close(c.stopped)

	ticker := time.NewTicker(c.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := c.CollectGarbage(); n > 0 {
				c.logger.Debug("evicted entries", zap.Int("count", n))
			}
		case <-c.stop:
			return
		}
	}
}

// Size returns the current number of entries
func (c *QueryCache) Size() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.entries)
}

// Stats returns the current counters
func (c *QueryCache) Stats() Stats {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	s := Stats{
		Entries:   len(c.entries),
		Hits:      c.hits,
		Misses:    c.misses,
		Deduped:   c.deduped,
		Evictions: c.evictions,
	}
	for _, e := range c.entries {
		if e.call != nil {
			s.InFlight++
		}
		s.Subscribers += len(e.subs)
	}
	return s
}

// Close stops the garbage collector and aborts every fetch in flight.
// Later fetches fail with ErrCacheClosed.
func (c *QueryCache) Close() {
	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return
	}
	c.closed = true
	for _, e := range c.entries {
		c.detachLocked(e)
	}
	c.mutex.Unlock()

	close(c.stop)
	<-c.stopped
}
