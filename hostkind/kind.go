// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package hostkind defines the tagged query-kind taxonomy a host handle can
// resolve: which facet of a host (its names, its addresses, its
// reachability, a raw DNS record) a given resolution is for.
package hostkind

import "fmt"

// Kind selects which facet of a host is being resolved.
type Kind uint8

const (
	// Null marks a handle with no in-flight or requested resolution.
	Null Kind = iota
	// Names resolves an address to the names it is known by (reverse lookup).
	Names
	// Addresses resolves a name to its addresses (forward lookup), served
	// through the positive cache and the master registry.
	Addresses
	// Reachability probes whether a host is reachable.
	Reachability
	// IPv4Addresses restricts a forward lookup to the INET family.
	IPv4Addresses
	// IPv6Addresses restricts a forward lookup to the INET6 family.
	IPv6Addresses
	// GenericDNS performs a direct query for an arbitrary (class, type) pair.
	// Class and Type on Query are only meaningful for this kind.
	GenericDNS

	// privateBase is the first value in the range reserved for the
	// "master"-family kinds. These are strictly above the public range and
	// must never appear in documentation or be returned from GetInfo to a
	// caller that didn't ask for them.
	privateBase Kind = 0xF0
)

const (
	// MasterAddressLookup is the sentinel kind the master registry's
	// primary handle resolves under; it bypasses the registry itself
	// (spec: "a master-family kind with a name creates a primary
	// master-address lookup directly, bypassing the group").
	MasterAddressLookup Kind = privateBase + iota
	// ByPassMasterAddressLookup forces a forward lookup to skip both the
	// positive cache and the master registry.
	ByPassMasterAddressLookup
)

// IsPrivate reports whether k is one of the master-family kinds that must
// never be exposed to, or accepted from, an external caller of GetInfo.
func (k Kind) IsPrivate() bool {
	return k >= privateBase
}

// String renders k for logging.
func (k Kind) String() string {
	switch k {
	case Null:
		return "Null"
	case Names:
		return "Names"
	case Addresses:
		return "Addresses"
	case Reachability:
		return "Reachability"
	case IPv4Addresses:
		return "IPv4Addresses"
	case IPv6Addresses:
		return "IPv6Addresses"
	case GenericDNS:
		return "GenericDNS"
	case MasterAddressLookup:
		return "masterAddressLookup"
	case ByPassMasterAddressLookup:
		return "byPassMasterAddressLookup"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Query is a single resolution request: a Kind plus, for GenericDNS, the
// DNS class/type pair it targets. Query is comparable and safe to use as a
// map key, mirroring the role CFHostInfoType plays as a dictionary key in
// the original implementation.
type Query struct {
	Kind  Kind
	Class uint16
	Type  uint16
}

// Of builds a Query for any kind other than GenericDNS.
func Of(k Kind) Query {
	return Query{Kind: k}
}

// GenericDNSQuery builds a Query for a direct (class, type) DNS lookup.
func GenericDNSQuery(class, typ uint16) Query {
	return Query{Kind: GenericDNS, Class: class, Type: typ}
}

// String renders q for logging.
func (q Query) String() string {
	if q.Kind == GenericDNS {
		return fmt.Sprintf("GenericDNS(class=%d,type=%d)", q.Class, q.Type)
	}
	return q.Kind.String()
}
