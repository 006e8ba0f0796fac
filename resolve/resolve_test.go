// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package resolve_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/gardener/hostresolver/resolve"
)

func TestResolve(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "resolve Suite")
}

var _ = Describe("StdResolver", func() {
	It("resolves loopback forward to a 4-byte IPv4 address", func() {
		r := resolve.NewStdResolver(nil)

		addrs, err := r.LookupAddresses(context.Background(), "localhost", resolve.FamilyIPv4)
		Expect(err).NotTo(HaveOccurred())
		Expect(addrs).NotTo(BeEmpty())
		Expect(addrs[0]).To(HaveLen(4))
	})

	It("rejects a malformed address for reverse lookup", func() {
		r := resolve.NewStdResolver(nil)
		_, err := r.LookupNames(context.Background(), []byte{1, 2, 3})
		Expect(err).To(HaveOccurred())
	})

	It("reports generic DNS as unsupported", func() {
		r := resolve.NewStdResolver(nil)
		_, err := r.LookupGeneric(context.Background(), "example.test", 1, 1)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("StaticNameservers", func() {
	It("rejects an empty list", func() {
		var ns resolve.StaticNameservers
		_, err := ns.Nameservers(context.Background())
		Expect(err).To(HaveOccurred())
	})

	It("returns the configured addresses", func() {
		ns := resolve.StaticNameservers{"127.0.0.1:53"}
		got, err := ns.Nameservers(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal([]string{"127.0.0.1:53"}))
	})
})
