// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package driver implements the Lookup Driver (spec.md §4.1 "Resolution
// selection"): given a query kind and a handle's current contents, it
// selects one of the cache/registry/reverse/reachability/generic-DNS
// paths and produces an asynchronous lookup token the handle can
// schedule. Grounded directly on _HostLookup in
// _examples/original_source/Host/CFHost.c for the branch order.
package driver

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/gardener/hostresolver/cache"
	"github.com/gardener/hostresolver/diagnostics"
	"github.com/gardener/hostresolver/host"
	"github.com/gardener/hostresolver/hostkind"
	"github.com/gardener/hostresolver/hosterrors"
	"github.com/gardener/hostresolver/loop"
	"github.com/gardener/hostresolver/registry"
	"github.com/gardener/hostresolver/resolve"
)

// Registry is the subset of *registry.Registry the driver depends on,
// declared here so the driver package, not registry, owns the decision of
// what it needs from its collaborator (keeps the dependency direction
// driver -> registry -> host explicit and one-way).
type Registry interface {
	Admit(h *host.Handle, query hostkind.Query) bool
	Withdraw(h *host.Handle)
}

// Driver is the Lookup Driver. It implements host.Driver, and is the
// collaborator that must be bound to every Handle's Driver field and to
// the Registry's SetDriver, so that a registry-created primary handle's
// own StartInfoResolution call routes back through the same path
// selection as any other handle.
type Driver struct {
	cache    *cache.Cache
	registry Registry
	resolver resolve.Resolver
	dns      resolve.Resolver // optional, used only for GenericDNS if set
	log      logr.Logger
	activity *diagnostics.ActivityRecorder

	mu      sync.Mutex
	cancels map[*host.Handle]context.CancelFunc
}

var _ host.Driver = (*Driver)(nil)

// New builds a Driver over c (the shared Positive Cache), r (the Master
// Registry), and resolver (the platform-resolver collaborator used for
// forward/reverse lookups). dnsResolver, if non-nil, is used for the
// GenericDNS path instead of resolver; pass nil to reuse resolver (only
// valid if resolver also implements generic queries, i.e. is a
// *resolve.DNSResolver). A resolver failure is logged through a dedicated
// ActivityRecorder so a persistently-failing name does not spam the log
// on every retry.
func New(c *cache.Cache, r Registry, resolver resolve.Resolver, dnsResolver resolve.Resolver, log logr.Logger) *Driver {
	if dnsResolver == nil {
		dnsResolver = resolver
	}
	return &Driver{
		cache:    c,
		registry: r,
		resolver: resolver,
		dns:      dnsResolver,
		log:      log,
		activity: diagnostics.NewActivityRecorder(log, time.Minute),
		cancels:  make(map[*host.Handle]context.CancelFunc),
	}
}

// Close releases the Driver's background resources.
func (d *Driver) Close() {
	d.activity.Close()
}

// Start implements host.Driver by dispatching on query.Kind per spec.md
// §4.1's resolution-selection rules.
func (d *Driver) Start(h *host.Handle, query hostkind.Query) bool {
	switch query.Kind {
	case hostkind.Addresses:
		return d.startAddresses(h, query)
	case hostkind.IPv4Addresses:
		return d.startDirectAddresses(h, query, resolve.FamilyIPv4)
	case hostkind.IPv6Addresses:
		return d.startDirectAddresses(h, query, resolve.FamilyIPv6)
	case hostkind.MasterAddressLookup, hostkind.ByPassMasterAddressLookup:
		return d.startDirectAddresses(h, query, resolve.FamilyUnspecified)
	case hostkind.Names:
		return d.startNames(h, query)
	case hostkind.Reachability:
		return d.startReachability(h, query)
	case hostkind.GenericDNS:
		return d.startGenericDNS(h, query)
	default:
		h.FailStart(hosterrors.NotSupported(query.String()))
		return false
	}
}

// Cancel implements host.Driver: for the kAddresses path it withdraws
// from the Master Registry (spec.md §4.3 Withdrawal); for every other
// in-flight path it cancels the background goroutine's context.
func (d *Driver) Cancel(h *host.Handle, query hostkind.Query) {
	if query.Kind == hostkind.Addresses {
		d.registry.Withdraw(h)
		return
	}
	d.mu.Lock()
	cancel, ok := d.cancels[h]
	if ok {
		delete(d.cancels, h)
	}
	d.mu.Unlock()
	if ok {
		cancel()
	}
}

// startAsync runs work in a goroutine against a cancellable context, then
// delivers its result through h.Deliver once work returns. The stub is
// installed as h's lookup token before the goroutine is spawned, so
// cancellation racing a fast completion never finds h.lookup nil.
//
// The result/err locals are written by the goroutine strictly before
// Signal is called, and read by the stub's perform closure only after a
// Loop has dispatched it — the Loop's own notify/dispatch path is relied
// upon to provide the happens-before edge (true of loop.ChannelLoop's
// channel send/receive; any other Loop implementation must offer an
// equivalent ordering guarantee to remain safe).
func (d *Driver) startAsync(h *host.Handle, query hostkind.Query, work func(ctx context.Context) (any, *hosterrors.Error)) bool {
	ctx, cancel := context.WithCancel(context.Background())

	var (
		result any
		rerr   *hosterrors.Error
	)
	stub := loop.NewStub(func() { h.Deliver(query, result, rerr) })
	h.BeginLookup(query, stub)

	d.mu.Lock()
	d.cancels[h] = cancel
	d.mu.Unlock()

	go func() {
		v, e := work(ctx)
		result, rerr = v, e
		if !hosterrors.IsZero(rerr) {
			d.activity.Warnf(h.Name(), "resolving %s for %q failed: %s", query.Kind, h.String(), rerr.Error())
		}
		d.mu.Lock()
		delete(d.cancels, h)
		d.mu.Unlock()
		stub.Signal()
	}()
	return true
}

// startImmediate installs a stub that is signalled before returning,
// synthesising a completion that never touches the network (cache hits,
// reachability on an already-literal address).
func startImmediate(h *host.Handle, query hostkind.Query, value any) bool {
	stub := loop.NewStub(func() { h.Deliver(query, value, nil) })
	h.BeginLookup(query, stub)
	stub.Signal()
	return true
}
