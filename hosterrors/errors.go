// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package hosterrors maps the resolver core's error taxonomy (spec.md §7)
// onto Go's error model: a small domain+code struct that wraps the
// underlying cause so callers can still errors.Is/errors.As through to it.
package hosterrors

import (
	"errors"
	"fmt"
	"net"
)

// Domain distinguishes the two error namespaces the original resolver uses.
type Domain int

const (
	// DomainPOSIX carries numeric errno-style codes.
	DomainPOSIX Domain = iota
	// DomainNetDB carries EAI_*-style resolver status codes.
	DomainNetDB
)

func (d Domain) String() string {
	if d == DomainNetDB {
		return "NetDB"
	}
	return "POSIX"
}

// Kind names the taxonomy entries from spec.md §7.
type Kind int

const (
	// KindNone indicates no error occurred.
	KindNone Kind = iota
	// KindHostNotFound means the name contained bytes that failed UTF-8
	// conversion, embedded NULs, or the resolver reported NXDOMAIN.
	KindHostNotFound
	// KindResolverStatus wraps a nonzero resolver return code verbatim.
	KindResolverStatus
	// KindSystemErrnoPassthrough means the resolver indicated a system
	// error and the real code must be read from the wrapped cause.
	KindSystemErrnoPassthrough
	// KindInternalNetDB means a nonzero status was reported but no
	// specific code is available.
	KindInternalNetDB
	// KindNotSupported covers reachability probing and other platform
	// gaps (POSIX EOPNOTSUPP in the original).
	KindNotSupported
	// KindOutOfMemory exists only for taxonomy completeness: Go does not
	// expose allocator failure as a catchable error the way the
	// original's CFAllocator does, so this kind is never constructed by
	// this module. See DESIGN.md.
	KindOutOfMemory
)

// Error is the resolver core's error type: a coded (domain, kind) pair plus
// the underlying cause, if any.
type Error struct {
	Domain Domain
	Kind   Kind
	Code   int
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("hostresolver: %s error (domain=%s, code=%d): %v", kindName(e.Kind), e.Domain, e.Code, e.cause)
	}
	return fmt.Sprintf("hostresolver: %s error (domain=%s, code=%d)", kindName(e.Kind), e.Domain, e.Code)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

func kindName(k Kind) string {
	switch k {
	case KindNone:
		return "none"
	case KindHostNotFound:
		return "host-not-found"
	case KindResolverStatus:
		return "resolver-status"
	case KindSystemErrnoPassthrough:
		return "system-errno"
	case KindInternalNetDB:
		return "internal-netdb"
	case KindNotSupported:
		return "not-supported"
	case KindOutOfMemory:
		return "out-of-memory"
	default:
		return "unknown"
	}
}

// HostNotFound builds the error GetInfo's NULL-sentinel pairs with when a
// name fails to validate (embedded NUL, non-UTF-8 bytes) before any network
// activity occurs.
func HostNotFound(cause error) *Error {
	return &Error{Domain: DomainNetDB, Kind: KindHostNotFound, cause: cause}
}

// NotSupported builds the error for a platform gap, e.g. reachability
// probing on a platform that lacks it.
func NotSupported(op string) *Error {
	return &Error{Domain: DomainPOSIX, Kind: KindNotSupported, cause: fmt.Errorf("%s: not supported", op)}
}

// InternalNetDB builds the error for "nonzero status claimed, no code
// available".
func InternalNetDB() *Error {
	return &Error{Domain: DomainNetDB, Kind: KindInternalNetDB}
}

// FromResolverError maps an error returned by the underlying platform
// resolver (net.Resolver, miekg/dns) onto the taxonomy.
func FromResolverError(err error) *Error {
	if err == nil {
		return nil
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsNotFound {
			return &Error{Domain: DomainNetDB, Kind: KindHostNotFound, cause: err}
		}
		if dnsErr.IsTimeout {
			return &Error{Domain: DomainNetDB, Kind: KindResolverStatus, Code: 1, cause: err}
		}
		return &Error{Domain: DomainPOSIX, Kind: KindSystemErrnoPassthrough, cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &Error{Domain: DomainPOSIX, Kind: KindSystemErrnoPassthrough, cause: err}
	}
	return &Error{Domain: DomainNetDB, Kind: KindResolverStatus, cause: err}
}

// IsZero reports whether e represents "no error", mirroring the original's
// CFStreamError{error: 0}.
func IsZero(e *Error) bool {
	return e == nil
}
