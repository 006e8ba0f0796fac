// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package hostkind_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/gardener/hostresolver/hostkind"
)

func TestHostkind(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "hostkind Suite")
}

var _ = Describe("Kind", func() {
	It("marks only the master-family kinds as private", func() {
		for _, k := range []hostkind.Kind{hostkind.Null, hostkind.Names, hostkind.Addresses,
			hostkind.Reachability, hostkind.IPv4Addresses, hostkind.IPv6Addresses, hostkind.GenericDNS} {
			Expect(k.IsPrivate()).To(BeFalse(), k.String())
		}
		Expect(hostkind.MasterAddressLookup.IsPrivate()).To(BeTrue())
		Expect(hostkind.ByPassMasterAddressLookup.IsPrivate()).To(BeTrue())
	})

	It("renders a recognisable name for every public kind", func() {
		Expect(hostkind.Addresses.String()).To(Equal("Addresses"))
		Expect(hostkind.Names.String()).To(Equal("Names"))
		Expect(hostkind.Reachability.String()).To(Equal("Reachability"))
		Expect(hostkind.Null.String()).To(Equal("Null"))
		Expect(hostkind.IPv4Addresses.String()).To(Equal("IPv4Addresses"))
		Expect(hostkind.IPv6Addresses.String()).To(Equal("IPv6Addresses"))
		Expect(hostkind.GenericDNS.String()).To(Equal("GenericDNS"))
	})

	It("builds a GenericDNS query carrying its class/type", func() {
		q := hostkind.GenericDNSQuery(1, 28)
		Expect(q.Kind).To(Equal(hostkind.GenericDNS))
		Expect(q.String()).To(Equal("GenericDNS(class=1,type=28)"))
	})

	It("builds a non-GenericDNS query with zeroed class/type", func() {
		q := hostkind.Of(hostkind.Addresses)
		Expect(q.Class).To(BeZero())
		Expect(q.Type).To(BeZero())
		Expect(q.String()).To(Equal("Addresses"))
	})
})
