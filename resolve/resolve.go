// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package resolve supplies the concrete platform-resolver collaborator the
// core consumes (spec.md §1, §6: out of scope for the core itself, which
// only depends on the interfaces here). It plays the role
// getaddrinfo_async_start/getnameinfo_async_start play in the original:
// the actual network I/O, kept swappable so the core's own tests never
// touch a real network.
package resolve

import "context"

// Family restricts a forward lookup to a particular address family, or
// leaves it unrestricted.
type Family int

const (
	// FamilyUnspecified returns both IPv4 and IPv6 addresses.
	FamilyUnspecified Family = iota
	// FamilyIPv4 restricts to AF_INET.
	FamilyIPv4
	// FamilyIPv6 restricts to AF_INET6.
	FamilyIPv6
)

// Record is a single generic-DNS answer record: the raw RDATA bytes as
// decoded by the resolver, tagged with the class/type it answers.
type Record struct {
	Class uint16
	Type  uint16
	Data  []byte
}

// Resolver is the collaborator package driver consumes for every network
// operation. Two implementations are provided: StdResolver (net.Resolver)
// and DNSResolver (github.com/miekg/dns). Tests supply their own
// implementations of this interface (driver_test.go's mockResolver, for
// example).
type Resolver interface {
	// LookupAddresses resolves name to its addresses, restricted to
	// family, as opaque big-endian network-order byte buffers (4 bytes
	// for AF_INET, 16 for AF_INET6) — spec.md §4.2 "Address
	// materialisation rules".
	LookupAddresses(ctx context.Context, name string, family Family) ([][]byte, error)
	// LookupNames resolves addr (a 4- or 16-byte network-order buffer)
	// back to the names it is known by (reverse DNS).
	LookupNames(ctx context.Context, addr []byte) ([]string, error)
	// LookupGeneric issues a direct (class, type) query for name and
	// returns the decoded answer records.
	LookupGeneric(ctx context.Context, name string, class, typ uint16) ([]Record, error)
}
