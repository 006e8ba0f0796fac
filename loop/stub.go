// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package loop

import "sync"

// Stub is the self-signalling token primitive (spec.md §6, glossary): a
// one-shot source whose firing is triggered by an explicit Signal rather
// than an external I/O event. It backs the positive-cache hit path, the
// reachability immediate-result path, the master-registry subscriber
// fan-out, and the cancellation stub.
type Stub struct {
	mu        sync.Mutex
	perform   func()
	regs      map[Loop]map[ModeName]struct{}
	invalid   bool
	released  bool
	fireCount int
}

var _ Token = (*Stub)(nil)

// NewStub creates a self-signalling token that invokes perform once per
// Signal, for as long as it remains registered on at least one loop and
// has not been Invalidate()d.
func NewStub(perform func()) *Stub {
	return &Stub{
		perform: perform,
		regs:    make(map[Loop]map[ModeName]struct{}),
	}
}

// Schedule implements Token.
//
// If Signal was already called before this registration — the cache-hit
// and reachability-literal paths build and signal a Stub before the
// caller's handle has had a chance to schedule it — the pending fire is
// delivered immediately rather than being lost, by notifying the loop
// right after registering.
func (s *Stub) Schedule(l Loop, mode ModeName) {
	s.mu.Lock()
	if s.invalid {
		s.mu.Unlock()
		return
	}
	modes, ok := s.regs[l]
	if !ok {
		modes = make(map[ModeName]struct{})
		s.regs[l] = modes
	}
	modes[mode] = struct{}{}
	pending := s.fireCount > 0
	s.mu.Unlock()
	l.Register(s, mode)
	if pending {
		l.Notify(s)
	}
}

// Unschedule implements Token.
func (s *Stub) Unschedule(l Loop, mode ModeName) {
	s.mu.Lock()
	if modes, ok := s.regs[l]; ok {
		delete(modes, mode)
		if len(modes) == 0 {
			delete(s.regs, l)
		}
	}
	s.mu.Unlock()
	l.Deregister(s, mode)
}

// Invalidate implements Token.
func (s *Stub) Invalidate() {
	s.mu.Lock()
	s.invalid = true
	regs := s.regs
	s.regs = make(map[Loop]map[ModeName]struct{})
	s.mu.Unlock()
	for l, modes := range regs {
		for mode := range modes {
			l.Deregister(s, mode)
		}
	}
}

// Signal implements Token.
func (s *Stub) Signal() {
	s.mu.Lock()
	if s.invalid {
		s.mu.Unlock()
		return
	}
	s.fireCount++
	loops := make([]Loop, 0, len(s.regs))
	for l := range s.regs {
		loops = append(loops, l)
	}
	s.mu.Unlock()
	for _, l := range loops {
		l.Notify(s)
	}
}

// Release implements Token.
func (s *Stub) Release() {
	s.mu.Lock()
	s.released = true
	s.mu.Unlock()
}

// Fire invokes the perform callback exactly once per pending Signal. Loop
// implementations call this when they decide to run the token.
func (s *Stub) Fire() {
	s.mu.Lock()
	if s.invalid || s.fireCount == 0 {
		s.mu.Unlock()
		return
	}
	s.fireCount--
	perform := s.perform
	s.mu.Unlock()
	if perform != nil {
		perform()
	}
}
