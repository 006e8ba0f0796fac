// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package resolve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"

	"golang.org/x/sync/errgroup"
)

// StdResolver implements Resolver on top of the standard library's
// net.Resolver. It is the default collaborator for the kAddresses and
// kNames paths.
type StdResolver struct {
	resolver *net.Resolver
}

var _ Resolver = (*StdResolver)(nil)

// NewStdResolver wraps r (nil selects net.DefaultResolver) as a Resolver.
func NewStdResolver(r *net.Resolver) *StdResolver {
	if r == nil {
		r = net.DefaultResolver
	}
	return &StdResolver{resolver: r}
}

// LookupAddresses resolves name via net.Resolver.LookupNetIP, fanning the
// IPv4 and IPv6 queries out concurrently when family is unspecified
// (mirrors processor.go's LookupAllHostnamesIPs concurrent-lookup shape,
// expressed with errgroup instead of a raw semaphore since there is no
// bounded worker pool here).
func (r *StdResolver) LookupAddresses(ctx context.Context, name string, family Family) ([][]byte, error) {
	networks := familyNetworks(family)

	var (
		mu   sync.Mutex
		addr []netip.Addr
	)
	g, ctx := errgroup.WithContext(ctx)
	for _, network := range networks {
		network := network
		g.Go(func() error {
			ips, err := r.resolver.LookupNetIP(ctx, network, name)
			if err != nil {
				if len(networks) > 1 && isNoSuchHost(err) {
					// One family coming up empty is not fatal when both
					// were requested; if neither family yields anything
					// the result is an empty list with no error (the
					// empty-result, no-error contract of P9).
					return nil
				}
				return err
			}
			mu.Lock()
			addr = append(addr, ips...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([][]byte, 0, len(addr))
	for _, a := range addr {
		out = append(out, a.Unmap().AsSlice())
	}
	return out, nil
}

func isNoSuchHost(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}

func familyNetworks(family Family) []string {
	switch family {
	case FamilyIPv4:
		return []string{"ip4"}
	case FamilyIPv6:
		return []string{"ip6"}
	default:
		return []string{"ip4", "ip6"}
	}
}

// LookupNames resolves addr back to its names via net.Resolver.LookupAddr.
func (r *StdResolver) LookupNames(ctx context.Context, addr []byte) ([]string, error) {
	a, ok := netip.AddrFromSlice(addr)
	if !ok {
		return nil, fmt.Errorf("resolve: invalid address length %d", len(addr))
	}
	return r.resolver.LookupAddr(ctx, a.String())
}

// LookupGeneric is not implemented by StdResolver: net.Resolver has no
// generic-query surface. Use DNSResolver for kGenericDNS.
func (r *StdResolver) LookupGeneric(_ context.Context, _ string, _, _ uint16) ([]Record, error) {
	return nil, fmt.Errorf("resolve: generic DNS queries require a DNSResolver")
}
