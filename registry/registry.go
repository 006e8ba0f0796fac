// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package registry implements the Master Registry (spec.md §4.3): the
// process-global name→group map that deduplicates concurrent kAddresses
// lookups for the same name into one underlying resolution, fanning the
// result out to every subscriber. Grounded on the per-name locking set in
// pkg/dnsman2/dns/state/dnsnamelocking.go and the job-registry-with-fanout
// shape of pkg/dnsman2/controller/controlplane/dnsentry/lookup/processor.go.
package registry

import (
	"sync"

	"github.com/go-logr/logr"
	"go.uber.org/atomic"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/gardener/hostresolver/cache"
	"github.com/gardener/hostresolver/host"
	"github.com/gardener/hostresolver/hostkind"
	"github.com/gardener/hostresolver/hosterrors"
	"github.com/gardener/hostresolver/loop"
)

// subscriber is one handle waiting on a group's primary to complete. Its
// result/err fields are written exactly once, by Registry.complete,
// strictly before the stub that delivers them is signalled — so the
// perform closure reading them afterwards never races the write.
type subscriber struct {
	handle *host.Handle
	query  hostkind.Query
	stub   *loop.Stub // concrete, not loop.Token: only this package signals it
	result [][]byte
	err    *hosterrors.Error
}

type group struct {
	name        string
	primary     *host.Handle
	subscribers []*subscriber
	generation  int64
}

// Registry is the Master Registry. The zero value is not usable; build
// one with New, then bind a Driver with SetDriver before first use — the
// two-step construction breaks what would otherwise be an init-order
// cycle between Registry (which creates primary host.Handles) and the
// driver (which creates Registry-joining subscriptions).
type Registry struct {
	mu     sync.Mutex
	groups map[string]*group
	names  sets.Set[string]

	cache      *cache.Cache
	driver     host.Driver
	log        logr.Logger
	generation atomic.Int64

	// internalLoop dispatches completions for primary handles. Primaries
	// are internal-only (never exposed to a caller), so there is no
	// caller-owned loop to schedule them on; the original relays the
	// primary's token onto each subscriber's own loop instead
	// (AddressLookupSchedule), but since this module's lookup tokens
	// already run their network I/O on a private goroutine rather than
	// being polled by the loop itself, a single dedicated dispatch loop
	// for every primary in the process is simpler and observably
	// equivalent: it only ever needs to run one perform closure per
	// completed primary.
	internalLoop *loop.ChannelLoop
	stop         chan struct{}
}

const internalMode loop.ModeName = "io.github.gardener.hostresolver.registry"

// New creates an empty Registry backed by c, and starts its internal
// dispatch loop in a background goroutine. c is shared with the driver's
// cache-lookup path, mirroring the original's single mutex guarding both
// the Master Registry and the Positive Cache (spec.md §4.3, §5) — here
// expressed as two mutexes over the same semantic domain rather than one,
// since cache.Cache already owns its own lock; Admit/complete never hold
// both at once.
func New(c *cache.Cache, log logr.Logger) *Registry {
	r := &Registry{
		groups:       make(map[string]*group),
		names:        sets.New[string](),
		cache:        c,
		log:          log,
		internalLoop: loop.NewChannelLoop(),
		stop:         make(chan struct{}),
	}
	go r.internalLoop.Run(internalMode, r.stop)
	return r
}

// SetDriver binds the Driver used to create and drive primary handles.
// Must be called exactly once, before any call to Admit.
func (r *Registry) SetDriver(d host.Driver) {
	r.driver = d
}

// Close stops the registry's internal dispatch loop. Safe to call once,
// at process shutdown.
func (r *Registry) Close() {
	close(r.stop)
}

// Admit implements the Master Registry's admission procedure (spec.md
// §4.3) for subscriber h's kAddresses resolution of h.Name(). On success
// it has already called h.BeginLookup with the installed token.
func (r *Registry) Admit(h *host.Handle, query hostkind.Query) bool {
	name := h.Name()

	r.mu.Lock()
	if g, exists := r.groups[name]; exists {
		sub := r.newSubscriber(h, query)
		g.subscribers = append(g.subscribers, sub)
		r.mu.Unlock()
		r.log.V(1).Info("joined in-flight master lookup group", "name", name, "generation", g.generation)
		h.BeginLookup(query, sub.stub)
		return true
	}

	g := &group{name: name, generation: r.generation.Inc()}
	r.groups[name] = g
	r.names.Insert(name)
	groupsCreated.Inc()
	groupsActive.Set(float64(len(r.groups)))
	r.log.V(1).Info("creating master lookup group", "name", name, "generation", g.generation)

	// r.mu stays held from here through the subscriber append below: the
	// group is reachable via r.groups[name] the instant it was inserted
	// above, so until it also carries the creator's own subscriber, a
	// concurrent Admit-then-Withdraw for the same name must not be able
	// to observe it as subscriber-less and evict it out from under us
	// (that left the primary started with nobody left to deliver to).
	// Every call between here and the unlock below only touches the
	// freshly created primary's own lock, never r.mu, and
	// StartInfoResolution on it is always asynchronous since a callback
	// was just installed — so holding the lock across them cannot
	// deadlock.
	primary, cerr := host.CreateWithName(name, r.driver, r.log)
	if cerr != nil {
		delete(r.groups, name)
		r.names.Delete(name)
		groupsActive.Set(float64(len(r.groups)))
		r.mu.Unlock()
		h.FailStart(cerr)
		return false
	}
	host.SetClient(primary, func(ph *host.Handle, _ hostkind.Query, perr *hosterrors.Error) {
		r.complete(name, ph, perr)
	}, nil)
	host.ScheduleWithRunLoop(primary, r.internalLoop, internalMode)

	g.primary = primary
	sub := r.newSubscriber(h, query)
	g.subscribers = append(g.subscribers, sub)

	ok, startErr := host.StartInfoResolution(primary, hostkind.Of(hostkind.MasterAddressLookup), nil)
	if !ok {
		// Contract (spec.md §4.3 step 3): the primary's Start is required
		// to have set an error on failure.
		delete(r.groups, name)
		r.names.Delete(name)
		groupsActive.Set(float64(len(r.groups)))
		r.mu.Unlock()
		h.FailStart(startErr)
		return false
	}
	r.mu.Unlock()

	h.BeginLookup(query, sub.stub)
	return true
}

func (r *Registry) newSubscriber(h *host.Handle, query hostkind.Query) *subscriber {
	sub := &subscriber{handle: h, query: query}
	sub.stub = loop.NewStub(func() {
		h.Deliver(sub.query, cloneAddrs(sub.result), sub.err)
	})
	return sub
}

// complete implements the Master Registry's completion procedure (spec.md
// §4.3), invoked as the primary handle's own callback when its
// kMasterAddressLookup settles.
func (r *Registry) complete(name string, primary *host.Handle, perr *hosterrors.Error) {
	// Step 1: detach the primary's client so its teardown is silent.
	// The primary's own lookup has already been torn down by Deliver
	// before this callback ran, so this clears callback/client only.
	host.SetClient(primary, nil, nil)

	r.mu.Lock()
	g, ok := r.groups[name]
	if ok {
		delete(r.groups, name)
		r.names.Delete(name)
		groupsActive.Set(float64(len(r.groups)))
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	var addrs [][]byte
	if hosterrors.IsZero(perr) {
		v, _ := host.GetInfo(primary, hostkind.Of(hostkind.MasterAddressLookup))
		if a, ok := v.([][]byte); ok {
			addrs = a
		}
		// Step 3: admit the primary's result into the Positive Cache
		// before any subscriber observes completion (happens-before
		// guarantee, spec.md §5 "Ordering guarantees").
		r.cache.Admit(&cache.Record{Names: []string{name}, Addresses: addrs})
	}

	// Step 4: fan out to every subscriber, signalling only after each
	// one's result/err is finalised.
	fanout.Observe(float64(len(g.subscribers)))
	for _, sub := range g.subscribers {
		sub.result = addrs
		sub.err = perr
		sub.stub.Signal()
	}
}

// Withdraw implements the Master Registry's withdrawal procedure (spec.md
// §4.3), called when a subscriber cancels or clears its client while
// type == kAddresses. If it was the last subscriber, the primary is
// cancelled and the group removed (invariant M3).
func (r *Registry) Withdraw(h *host.Handle) {
	name := h.Name()

	r.mu.Lock()
	g, ok := r.groups[name]
	if !ok {
		r.mu.Unlock()
		return
	}
	idx := -1
	for i, sub := range g.subscribers {
		if sub.handle == h {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return
	}
	g.subscribers = append(g.subscribers[:idx], g.subscribers[idx+1:]...)
	lastSubscriberGone := len(g.subscribers) == 0
	primary := g.primary
	if lastSubscriberGone {
		delete(r.groups, name)
		r.names.Delete(name)
		groupsActive.Set(float64(len(r.groups)))
	}
	r.mu.Unlock()

	if lastSubscriberGone && primary != nil {
		host.CancelInfoResolution(primary, hostkind.Of(hostkind.MasterAddressLookup))
	}
}

func cloneAddrs(addrs [][]byte) [][]byte {
	if addrs == nil {
		return nil
	}
	out := make([][]byte, len(addrs))
	for i, a := range addrs {
		out[i] = append([]byte(nil), a...)
	}
	return out
}
