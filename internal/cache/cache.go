// Package cache provides the request cache used by the fetch layer.
//
// Entries expire after their TTL and are treated as absent from that moment,
// whether or not a sweep has removed them yet. Concurrent requests for one
// key share a single pending Promise. The newest entries are persisted to a
// Store on every write and reloaded on construction.
package cache

import (
	"encoding/json"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/rs/zerolog"

	"github.com/aaanmmoool/finboard/internal/jsonvalue"
)

const (
	// DefaultTTL applies when Set is called without a positive TTL.
	DefaultTTL = 30 * time.Second
	// PendingStaleAfter bounds how long a pending request survives a sweep.
	PendingStaleAfter = 30 * time.Second
	// DefaultPersistLimit is the number of newest entries kept in the snapshot.
	DefaultPersistLimit = 50
	// SnapshotKey is the Store key holding the persisted snapshot.
	SnapshotKey = "finboard-api-cache"
)

// Store is durable key-value storage for the snapshot.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

type entry struct {
	payload  jsonvalue.Value
	storedAt time.Time
	ttl      time.Duration
}

func (e entry) expired(now time.Time) bool {
	return now.Sub(e.storedAt) > e.ttl
}

type pendingRequest struct {
	promise   *Promise
	startedAt time.Time
}

// Stats is a point-in-time view of the cache.
type Stats struct {
	Size    int      `json:"size"`
	Keys    []string `json:"keys"`
	Pending int      `json:"pendingRequests"`
}

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	pending map[string]pendingRequest

	// persistMu serializes snapshot writes so an older snapshot never lands last.
	persistMu    sync.Mutex
	store        Store
	persistLimit int

	clock  clock.Clock
	closed chan struct{}
	once   sync.Once
	log    zerolog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(cc *Cache) { cc.clock = c }
}

// WithPersistLimit sets how many entries the snapshot keeps.
func WithPersistLimit(n int) Option {
	return func(cc *Cache) {
		if n > 0 {
			cc.persistLimit = n
		}
	}
}

// New creates a cache and loads any persisted snapshot from store.
// A nil store disables persistence.
func New(store Store, log zerolog.Logger, opts ...Option) *Cache {
	c := &Cache{
		entries:      make(map[string]entry),
		pending:      make(map[string]pendingRequest),
		store:        store,
		persistLimit: DefaultPersistLimit,
		clock:        clock.New(),
		closed:       make(chan struct{}),
		log:          log.With().Str("component", "cache").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.load()
	return c
}

// Get returns the payload stored under key if it has not expired.
// An expired entry is evicted.
func (c *Cache) Get(key string) (jsonvalue.Value, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return jsonvalue.Value{}, false
	}
	if e.expired(c.clock.Now()) {
		delete(c.entries, key)
		return jsonvalue.Value{}, false
	}
	return e.payload, true
}

// Set stores payload under key and persists the snapshot.
func (c *Cache) Set(key string, payload jsonvalue.Value, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c.mu.Lock()
	c.entries[key] = entry{payload: payload, storedAt: c.clock.Now(), ttl: ttl}
	c.mu.Unlock()

	c.persist()
}

// HasPending reports whether a request for key is in flight.
func (c *Cache) HasPending(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.pending[key]
	return ok
}

// GetPending returns the in-flight promise for key.
func (c *Cache) GetPending(key string) (*Promise, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pending[key]
	if !ok {
		return nil, false
	}
	return p.promise, true
}

// SetPending registers p as the in-flight request for key. The registration
// is removed when p settles, unless it has been replaced in the meantime.
func (c *Cache) SetPending(key string, p *Promise) {
	c.mu.Lock()
	c.registerLocked(key, p)
	c.mu.Unlock()
}

// AcquirePending returns the in-flight promise for key, or registers a new
// one. owner is true when the caller registered it and must resolve it.
func (c *Cache) AcquirePending(key string) (p *Promise, owner bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.pending[key]; ok {
		return existing.promise, false
	}
	p = NewPromise()
	c.registerLocked(key, p)
	return p, true
}

// Settle removes the pending registration of p under key, if still current,
// and then resolves p. Callers that settle through here never observe a
// resolved promise still registered as in flight.
func (c *Cache) Settle(key string, p *Promise, r Result) {
	c.mu.Lock()
	if cur, ok := c.pending[key]; ok && cur.promise == p {
		delete(c.pending, key)
	}
	c.mu.Unlock()

	p.Resolve(r)
}

func (c *Cache) registerLocked(key string, p *Promise) {
	c.pending[key] = pendingRequest{promise: p, startedAt: c.clock.Now()}

	go func() {
		select {
		case <-p.Done():
		case <-c.closed:
			return
		}
		c.mu.Lock()
		if cur, ok := c.pending[key]; ok && cur.promise == p {
			delete(c.pending, key)
		}
		c.mu.Unlock()
	}()
}

// Invalidate removes key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()

	c.persist()
}

// InvalidateByPattern removes every key matching re and returns how many were removed.
func (c *Cache) InvalidateByPattern(re *regexp.Regexp) int {
	c.mu.Lock()
	removed := 0
	for key := range c.entries {
		if re.MatchString(key) {
			delete(c.entries, key)
			removed++
		}
	}
	c.mu.Unlock()

	c.persist()
	return removed
}

// Clear drops all entries and pending requests and wipes the persisted snapshot.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.pending = make(map[string]pendingRequest)
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	if err := c.store.Delete(SnapshotKey); err != nil {
		c.log.Debug().Err(err).Msg("Failed to delete cache snapshot")
	}
}

// Sweep removes expired entries and pending requests older than
// PendingStaleAfter, independent of reads.
func (c *Cache) Sweep() (expired, stale int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			expired++
		}
	}
	for key, p := range c.pending {
		if now.Sub(p.startedAt) > PendingStaleAfter {
			delete(c.pending, key)
			stale++
		}
	}
	return expired, stale
}

// Stats returns the entry count, sorted keys and pending request count.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return Stats{Size: len(c.entries), Keys: keys, Pending: len(c.pending)}
}

// Close writes a final snapshot and stops pending-request watchers.
func (c *Cache) Close() {
	c.once.Do(func() {
		close(c.closed)
		c.persist()
	})
}

// Key derives the cache key for a request. A body is appended JSON-encoded
// so requests to one URL with different bodies do not collide.
func Key(url string, body []byte) string {
	if len(body) == 0 {
		return url
	}
	encoded, err := json.Marshal(string(body))
	if err != nil {
		return url + ":" + string(body)
	}
	return url + ":" + string(encoded)
}
