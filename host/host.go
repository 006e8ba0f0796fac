// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package host implements the Host Handle (spec.md §4.1, §4.2, §4.5): the
// user-facing resolution request context. A Handle owns a small state
// machine (idle/running), a map of resolved results keyed by query kind,
// and the bookkeeping needed to schedule its in-flight lookup token onto
// zero or more caller-owned event loops.
//
// The Handle itself never decides HOW to resolve a query kind; that
// decision belongs to whatever Driver it was constructed with (path
// selection across the positive cache, the master registry, reverse DNS,
// reachability, or generic DNS — see package driver). This keeps host
// free of an import cycle back to driver/registry, which both need the
// *Handle type.
package host

import (
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/gardener/hostresolver/hostkind"
	"github.com/gardener/hostresolver/hosterrors"
	"github.com/gardener/hostresolver/loop"
)

// nullSentinel is the comparable stand-in for "resolution performed, no
// data returned" (spec.md §3 Host Handle: info's distinguished NULL value).
type nullSentinel struct{}

// Null is the sentinel Deliver stores in a handle's info map when a
// completed resolution carried no payload (an error, or a nil value).
// GetInfo reports such an entry as a nil value alongside resolved=true.
var Null any = nullSentinel{}

// Context is the owned, caller-supplied opaque value a Handle carries
// alongside its callback, with optional retain/release hooks run on
// assignment and replacement (spec.md §4.1 SetClient).
type Context struct {
	Value   any
	Retain  func(any)
	Release func(any)
}

// Callback is invoked, always outside the handle's lock, when a started
// resolution completes or is cancelled.
type Callback func(h *Handle, query hostkind.Query, err *hosterrors.Error)

// privateBlockingMode is the reserved, process-unique mode name
// StartInfoResolution schedules onto in synchronous mode (spec.md §4.1,
// §6: "a private blocking-mode string literal reserved for synchronous
// waits"). Generated once so it can never collide with a caller's mode.
var privateBlockingMode = loop.ModeName("io.github.gardener.hostresolver.sync." + uuid.New().String())

// schedulePair is one (loop, mode) registration a Handle's lookup token is
// scheduled on. It is comparable (loop.Loop implementations are held by
// pointer), so the set of pairs a Handle carries can be deduplicated with
// sets.Set rather than a hand-scanned slice — the same library
// package registry already uses for its in-flight name set.
type schedulePair struct {
	loop loop.Loop
	mode loop.ModeName
}

// Handle is one user-facing resolution request context (spec.md §3 "Host
// Handle"). The zero value is not usable; build one with CreateWithName,
// CreateWithAddress, or CreateCopy. A Handle is safe for concurrent use.
type Handle struct {
	mu sync.Mutex

	info          map[hostkind.Query]any
	lookup        loop.Token
	queryKind     hostkind.Query
	schedules     sets.Set[schedulePair]
	callback      Callback
	client        *Context
	err           *hosterrors.Error
	syncDone      chan struct{}
	lookupStarted time.Time

	name   string
	addr   []byte
	driver Driver
	log    logr.Logger
}

// Driver is the collaborator a Handle delegates resolution-path selection
// to. Implementations live in package driver, which imports host for the
// *Handle type; host never imports driver, breaking what would otherwise
// be a host→driver→registry→host cycle.
type Driver interface {
	// Start begins resolving query for h. On success it must have called
	// h.BeginLookup to install the in-flight token before returning true.
	// On failure it must call h.FailStart with the error before returning
	// false (spec.md §4.3 "Contract: the primary's start is required to
	// set an error on failure").
	Start(h *Handle, query hostkind.Query) bool
	// Cancel notifies the driver that h is withdrawing from query's
	// resolution path (spec.md §4.5 step d), so e.g. a master-registry
	// subscription can be torn down. Called after the handle's own
	// lookup has already been torn down locally.
	Cancel(h *Handle, query hostkind.Query)
}

// CreateWithName constructs a handle seeded with name, the way
// CFHostCreateWithName seeds info[kCFHostNames] with the name the caller
// already supplied (spec.md §3, §4.1).
func CreateWithName(name string, drv Driver, log logr.Logger) (*Handle, *hosterrors.Error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	h := newHandle(drv, log)
	h.name = name
	h.info[hostkind.Of(hostkind.Names)] = []string{name}
	return h, nil
}

// CreateWithAddress constructs a handle seeded with addr, mirroring
// CFHostCreateWithAddress's info[kCFHostAddressing] seed.
func CreateWithAddress(addr []byte, drv Driver, log logr.Logger) (*Handle, *hosterrors.Error) {
	h := newHandle(drv, log)
	h.addr = append([]byte(nil), addr...)
	h.info[hostkind.Of(hostkind.Addresses)] = [][]byte{h.addr}
	return h, nil
}

// CreateCopy snapshots h's info map under h's lock into a fresh handle.
// Schedules, callback, client, and any in-flight lookup are not copied
// (spec.md §4.1).
func CreateCopy(h *Handle) *Handle {
	h.mu.Lock()
	infoCopy := make(map[hostkind.Query]any, len(h.info))
	for k, v := range h.info {
		infoCopy[k] = v
	}
	name, addr, drv, log := h.name, h.addr, h.driver, h.log
	h.mu.Unlock()

	c := newHandle(drv, log)
	c.name = name
	c.addr = append([]byte(nil), addr...)
	c.info = infoCopy
	return c
}

func newHandle(drv Driver, log logr.Logger) *Handle {
	return &Handle{
		info:      make(map[hostkind.Query]any),
		queryKind: hostkind.Of(hostkind.Null),
		schedules: sets.New[schedulePair](),
		driver:    drv,
		log:       log,
	}
}

func validateName(name string) *hosterrors.Error {
	for i := 0; i < len(name); i++ {
		if name[i] == 0 {
			return hosterrors.HostNotFound(fmt.Errorf("name contains an embedded NUL"))
		}
	}
	if !utf8.ValidString(name) {
		return hosterrors.HostNotFound(fmt.Errorf("name is not valid UTF-8"))
	}
	return nil
}

// Name returns the name a Names-seeded handle was created with, or the
// empty string for an address-seeded handle.
func (h *Handle) Name() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.name
}

// Address returns the address an Addresses-seeded handle was created
// with, or nil for a name-seeded handle.
func (h *Handle) Address() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.addr
}

// Logger returns the logr.Logger this handle was constructed with.
func (h *Handle) Logger() logr.Logger {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.log
}

// String renders a debug description of the handle (spec.md §10
// supplemental: debug-description rendering).
func (h *Handle) String() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fmt.Sprintf("host.Handle{name=%q, addr=%x, active=%s, resolved=%d, scheduled=%d}",
		h.name, h.addr, h.queryKind, len(h.info), len(h.schedules))
}

// MarshalLog implements logr's structured-value convention so logging a
// Handle directly produces a compact, field-oriented representation
// instead of calling String() at the wrong verbosity.
func (h *Handle) MarshalLog() any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return struct {
		Name      string `json:"name,omitempty"`
		Active    string `json:"active"`
		Resolved  int    `json:"resolved"`
		Scheduled int    `json:"scheduled"`
	}{
		Name:      h.name,
		Active:    h.queryKind.String(),
		Resolved:  len(h.info),
		Scheduled: len(h.schedules),
	}
}
