// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package cache implements the positive-result cache (spec.md §4.4): a
// process-global, size-capped, short-TTL mapping from hostname to a
// resolved address record, whose job is to coalesce request bursts rather
// than to serve as a durable resolver. It holds only successful results
// (spec.md §1 Non-goals: no negative-result caching).
package cache

import (
	"math"
	"strings"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

const (
	// MaxEntries is the cache's size cap (spec.md §3, §6: 25).
	MaxEntries = 25
	// TTL is how long an entry may be served after admission (spec.md
	// §3, §6: 1.0s).
	TTL = time.Second
)

// Record is the resolved payload a cache entry holds: the full set of
// names the host is known by (the cache is keyed by each of them) and its
// resolved addresses, stored as opaque per-address byte buffers per
// spec.md §4.2's materialisation rule.
type Record struct {
	Names     []string
	Addresses [][]byte
}

// Clone returns a deep copy of r, matching the original's
// _CFArrayCreateDeepCopy at the cache-hit path (spec.md §4.4 "Lookup").
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	names := append([]string(nil), r.Names...)
	addrs := make([][]byte, len(r.Addresses))
	for i, a := range r.Addresses {
		addrs[i] = append([]byte(nil), a...)
	}
	return &Record{Names: names, Addresses: addrs}
}

type entry struct {
	record   *Record
	admitted time.Time
}

// Cache is the positive-result cache. The zero value is not usable; build
// one with New. A Cache is safe for concurrent use; the resolver core
// shares one Cache instance with the master registry, mirroring the
// original's single _HostLock guarding both _HostLookups and _HostCache
// (spec.md §4.4, §5).
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	clock   clock.Clock
}

// Option configures a Cache at construction.
type Option func(*Cache)

// WithClock overrides the cache's notion of time, for deterministic tests
// of TTL expiry (e.g. clock.NewFakeClock from k8s.io/utils/clock/testing).
func WithClock(c clock.Clock) Option {
	return func(ca *Cache) { ca.clock = c }
}

// New creates an empty Cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		clock:   clock.RealClock{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var (
	defaultOnce  sync.Once
	defaultCache *Cache
)

// Default returns the process-wide Cache singleton, created on first
// access (spec.md §9: "a process-wide singleton... initialised once on
// first type access").
func Default() *Cache {
	defaultOnce.Do(func() { defaultCache = New() })
	return defaultCache
}

// Key normalises a hostname into its cache key: lowercased, with exactly
// one trailing dot stripped. This resolves the Open Question in spec.md §9
// ("whether the cache should be keyed by normalised names") by normalising
// centrally rather than placing the obligation on callers.
func Key(name string) string {
	name = strings.ToLower(name)
	name = strings.TrimSuffix(name, ".")
	return name
}

// Lookup returns the cached Record for name if one exists and has not
// exceeded TTL (spec.md invariant C3), along with whether it was found.
// The caller receives the live *Record and must Clone it before mutating
// or retaining it past the call that seeded a handle's info map.
func (c *Cache) Lookup(name string) (*Record, bool) {
	key := Key(name)
	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()
	if !ok {
		misses.Inc()
		return nil, false
	}
	age := math.Abs(c.clock.Since(e.admitted).Seconds())
	if age >= TTL.Seconds() {
		misses.Inc()
		return nil, false
	}
	hits.Inc()
	return e.record, true
}

// Admit inserts rec under every name it carries, all sharing one
// (record, admissionTime) tuple (spec.md §3 Cache Entry, §4.3 step 3).
// Before inserting, it runs Expire (spec.md §4.4 Admission), preserving
// the original's two specific choices exactly: track the
// GREATEST-age survivor (not least), and measure age by absolute value so
// a backward wall-clock jump does not make every entry look fresh forever
// (spec.md §9).
func (c *Cache) Admit(rec *Record) {
	if rec == nil || len(rec.Names) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.expireLocked()

	now := c.clock.Now()
	e := &entry{record: rec, admitted: now}
	for _, n := range rec.Names {
		c.entries[Key(n)] = e
	}
	size.Set(float64(len(c.entries)))
}

// expireLocked must be called with mu held. It mirrors
// _ExpireCacheEntries in the original: delete every entry whose absolute
// age has reached TTL, and if the survivors still meet or exceed
// MaxEntries, delete the single survivor with the greatest age.
func (c *Cache) expireLocked() {
	now := c.clock.Now()
	var (
		oldestKey  string
		oldestAge  float64
		haveOldest bool
	)
	for key, e := range c.entries {
		age := math.Abs(now.Sub(e.admitted).Seconds())
		if age >= TTL.Seconds() {
			delete(c.entries, key)
			evictions.WithLabelValues("expired").Inc()
			continue
		}
		if !haveOldest || age > oldestAge {
			oldestKey, oldestAge, haveOldest = key, age, true
		}
	}
	if haveOldest && len(c.entries) >= MaxEntries {
		delete(c.entries, oldestKey)
		evictions.WithLabelValues("capacity").Inc()
	}
	size.Set(float64(len(c.entries)))
}

// Len returns the current number of name keys held (spec.md invariant P3
// observation point).
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear removes every entry, for test teardown.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	size.Set(0)
}
