// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"time"

	"github.com/gardener/hostresolver/hostkind"
	"github.com/gardener/hostresolver/hosterrors"
	"github.com/gardener/hostresolver/loop"
)

// SetClient replaces h's callback and client context atomically (spec.md
// §4.1). Passing a nil callback and nil client cancels any active lookup
// by applying the withdrawal protocol (steps a-d of §4.5) without
// installing a cancel stub, then clears both fields. Setting a non-nil
// callback where there was none, while a lookup is active, schedules that
// lookup onto every (loop, mode) already registered on h. Always returns
// true, matching the original's unconditional-success contract.
func SetClient(h *Handle, cb Callback, client *Context) bool {
	h.mu.Lock()
	oldClient := h.client

	if cb == nil && client == nil {
		lookupExisted := h.lookup != nil
		q := h.queryKind
		if lookupExisted {
			h.teardownLookupLocked()
		}
		h.callback = nil
		h.client = nil
		h.mu.Unlock()

		if lookupExisted {
			h.driver.Cancel(h, q)
		}
		releaseContext(oldClient)
		return true
	}

	hadCallback := h.callback != nil
	h.callback = cb
	h.client = client
	shouldSchedule := !hadCallback && cb != nil && h.lookup != nil
	tok := h.lookup
	pairs := h.schedules.UnsortedList()
	h.mu.Unlock()

	releaseContext(oldClient)
	retainContext(client)

	if shouldSchedule && tok != nil {
		for _, p := range pairs {
			tok.Schedule(p.loop, p.mode)
		}
	}
	return true
}

func releaseContext(c *Context) {
	if c != nil && c.Release != nil {
		c.Release(c.Value)
	}
}

func retainContext(c *Context) {
	if c != nil && c.Retain != nil {
		c.Retain(c.Value)
	}
}

// ScheduleWithRunLoop adds (l, mode) to h's schedule set. If the pair is
// newly added and a lookup is active, the lookup is also scheduled on it.
// Duplicate adds are idempotent (spec.md §4.1, invariant I3).
func ScheduleWithRunLoop(h *Handle, l loop.Loop, mode loop.ModeName) {
	h.mu.Lock()
	pair := schedulePair{loop: l, mode: mode}
	if h.schedules.Has(pair) {
		h.mu.Unlock()
		return
	}
	h.schedules.Insert(pair)
	tok := h.lookup
	h.mu.Unlock()
	if tok != nil {
		tok.Schedule(l, mode)
	}
}

// UnscheduleFromRunLoop removes (l, mode) from h's schedule set, also
// unscheduling the active lookup from it if one exists.
func UnscheduleFromRunLoop(h *Handle, l loop.Loop, mode loop.ModeName) {
	h.mu.Lock()
	pair := schedulePair{loop: l, mode: mode}
	if !h.schedules.Has(pair) {
		h.mu.Unlock()
		return
	}
	h.schedules.Delete(pair)
	tok := h.lookup
	h.mu.Unlock()
	if tok != nil {
		tok.Unschedule(l, mode)
	}
}

// BeginLookup installs tok as h's in-flight lookup for query and schedules
// it onto every (loop, mode) pair already registered on h. Drivers call
// this from Start before returning true (spec.md §4.1 invariant I1: lookup
// and type change together).
func (h *Handle) BeginLookup(query hostkind.Query, tok loop.Token) {
	h.mu.Lock()
	h.queryKind = query
	h.lookup = tok
	h.lookupStarted = time.Now()
	pairs := h.schedules.UnsortedList()
	h.mu.Unlock()
	activeLookups.Inc()
	for _, p := range pairs {
		tok.Schedule(p.loop, p.mode)
	}
}

// FailStart records err as h's completion error without starting a
// lookup. Drivers call this from Start before returning false.
func (h *Handle) FailStart(err *hosterrors.Error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
}

// StartOption carries optional, non-default parameters for a single
// StartInfoResolution call (spec.md §10 supplemental).
type StartOption struct {
	// Forced, when true and query.Kind is Addresses, skips the Positive
	// Cache and Master Registry and resolves the name directly, the way
	// CFHostStartInfoResolution's bypassCache flag does in the original.
	// Has no effect on any other query kind.
	Forced bool
}

// StartInfoResolution begins resolving query (spec.md §4.1). If h has no
// callback (synchronous mode), the call blocks on syncLoop in a reserved
// private mode until the lookup completes, then returns true iff no error
// occurred. If h has a callback (asynchronous mode), syncLoop is ignored
// and the call returns immediately, true iff the lookup started.
//
// Re-entry while a lookup is already active fails (returns false, nil
// error) without mutating state, per invariant I2.
func StartInfoResolution(h *Handle, query hostkind.Query, syncLoop loop.Loop, opts ...StartOption) (bool, *hosterrors.Error) {
	for _, opt := range opts {
		if opt.Forced && query.Kind == hostkind.Addresses {
			query = hostkind.Of(hostkind.ByPassMasterAddressLookup)
		}
	}

	h.mu.Lock()
	if h.lookup != nil {
		h.mu.Unlock()
		return false, nil
	}
	async := h.callback != nil
	h.mu.Unlock()

	if !h.driver.Start(h, query) {
		h.mu.Lock()
		err := h.err
		h.mu.Unlock()
		return false, err
	}

	if async {
		return true, nil
	}

	done := make(chan struct{})
	h.mu.Lock()
	h.syncDone = done
	h.mu.Unlock()

	ScheduleWithRunLoop(h, syncLoop, privateBlockingMode)
	syncLoop.Run(privateBlockingMode, done)
	UnscheduleFromRunLoop(h, syncLoop, privateBlockingMode)

	h.mu.Lock()
	err := h.err
	h.mu.Unlock()
	return hosterrors.IsZero(err), err
}

// GetInfo returns the resolved value for query, or nil if none, alongside
// whether query has ever been resolved (success, recorded failure, or the
// NULL sentinel all count as resolved).
func GetInfo(h *Handle, query hostkind.Query) (any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.info[query]
	if !ok {
		return nil, false
	}
	if _, isNull := v.(nullSentinel); isNull {
		return nil, true
	}
	return v, true
}

// CancelInfoResolution cancels h's active lookup for query (spec.md §4.5).
// It tears the lookup down locally, lets the driver withdraw from any
// shared resolution path (e.g. a master-registry subscription), then
// installs a fresh self-signalling stub that, once fired, delivers a
// synthetic completion to the caller's callback exactly as a real
// completion would. This is how a synchronous waiter on another thread is
// woken.
func CancelInfoResolution(h *Handle, query hostkind.Query) {
	h.mu.Lock()
	if h.lookup == nil {
		h.mu.Unlock()
		return
	}
	q := h.queryKind
	h.teardownLookupLocked()
	cb := h.callback
	errSnapshot := h.err
	h.mu.Unlock()

	h.driver.Cancel(h, q)

	stub := loop.NewStub(func() {
		h.mu.Lock()
		h.teardownLookupLocked()
		done := h.syncDone
		h.syncDone = nil
		h.mu.Unlock()
		if done != nil {
			close(done)
		}
		if cb != nil {
			cb(h, q, errSnapshot)
		}
	})

	h.mu.Lock()
	h.lookup = stub
	h.queryKind = q
	h.lookupStarted = time.Now()
	pairs := h.schedules.UnsortedList()
	h.mu.Unlock()
	activeLookups.Inc()

	for _, p := range pairs {
		stub.Schedule(p.loop, p.mode)
	}
	stub.Signal()
	for _, p := range pairs {
		p.loop.Wake()
	}
}

// teardownLookupLocked must be called with h.mu held. It implements §4.5
// steps a-c: unschedule the current lookup from every (loop, mode),
// invalidate it, release it, and reset lookup/type to the idle state.
func (h *Handle) teardownLookupLocked() {
	tok := h.lookup
	if tok != nil {
		for _, p := range h.schedules.UnsortedList() {
			tok.Unschedule(p.loop, p.mode)
		}
		tok.Invalidate()
		tok.Release()
		lookupDuration.WithLabelValues(h.queryKind.String()).Observe(time.Since(h.lookupStarted).Seconds())
		activeLookups.Dec()
		h.lookupStarted = time.Time{}
	}
	h.lookup = nil
	h.queryKind = hostkind.Of(hostkind.Null)
}
