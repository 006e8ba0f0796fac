// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"github.com/gardener/hostresolver/hostkind"
	"github.com/gardener/hostresolver/hosterrors"
)

// Deliver runs the completion merge (spec.md §4.2) for query: it replaces
// any prior info[query] with value (or the NULL sentinel, if err is
// non-nil), tears down the now-finished lookup, and invokes the callback
// outside h's lock. Drivers call this from the perform closure of
// whatever token they scheduled, i.e. on whichever loop thread the token
// fired on — never synchronously from within Start.
//
// A Deliver that arrives after h's lookup has already been torn down
// (cancelled, or a second completion for a stale token) is a no-op,
// matching "if lookup == NULL, skip to step 8".
func (h *Handle) Deliver(query hostkind.Query, value any, err *hosterrors.Error) {
	h.mu.Lock()
	if h.lookup == nil {
		h.mu.Unlock()
		return
	}

	delete(h.info, query)
	if err != nil {
		h.info[query] = Null
		h.err = err
	} else {
		if value == nil {
			h.info[query] = Null
		} else {
			h.info[query] = value
		}
		h.err = nil
	}

	cb := h.callback
	capturedErr := h.err
	h.teardownLookupLocked()
	done := h.syncDone
	h.syncDone = nil
	h.mu.Unlock()

	if done != nil {
		close(done)
	}
	if cb != nil {
		cb(h, query, capturedErr)
	}
}
