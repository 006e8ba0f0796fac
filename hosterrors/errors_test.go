// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package hosterrors_test

import (
	"errors"
	"net"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/gardener/hostresolver/hosterrors"
)

func TestHosterrors(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "hosterrors Suite")
}

var _ = Describe("Error", func() {
	It("treats nil as zero", func() {
		Expect(hosterrors.IsZero(nil)).To(BeTrue())
	})

	It("treats a constructed error as non-zero", func() {
		Expect(hosterrors.IsZero(hosterrors.InternalNetDB())).To(BeFalse())
	})

	It("unwraps to the underlying cause", func() {
		cause := errors.New("boom")
		err := hosterrors.HostNotFound(cause)
		Expect(errors.Unwrap(err)).To(Equal(cause))
	})

	It("includes the kind and domain in its message", func() {
		err := hosterrors.NotSupported("reachability")
		Expect(err.Error()).To(ContainSubstring("not-supported"))
		Expect(err.Error()).To(ContainSubstring("POSIX"))
	})

	Describe("FromResolverError", func() {
		It("returns nil for a nil cause", func() {
			Expect(hosterrors.FromResolverError(nil)).To(BeNil())
		})

		It("maps a not-found DNS error to KindHostNotFound", func() {
			err := hosterrors.FromResolverError(&net.DNSError{Err: "no such host", IsNotFound: true})
			Expect(err.Kind).To(Equal(hosterrors.KindHostNotFound))
			Expect(err.Domain).To(Equal(hosterrors.DomainNetDB))
		})

		It("maps a timeout DNS error to KindResolverStatus", func() {
			err := hosterrors.FromResolverError(&net.DNSError{Err: "i/o timeout", IsTimeout: true})
			Expect(err.Kind).To(Equal(hosterrors.KindResolverStatus))
		})

		It("maps any other DNS error to KindSystemErrnoPassthrough", func() {
			err := hosterrors.FromResolverError(&net.DNSError{Err: "server misbehaving"})
			Expect(err.Kind).To(Equal(hosterrors.KindSystemErrnoPassthrough))
		})

		It("maps an opaque error to KindResolverStatus", func() {
			err := hosterrors.FromResolverError(errors.New("unexpected"))
			Expect(err.Kind).To(Equal(hosterrors.KindResolverStatus))
			Expect(err.Domain).To(Equal(hosterrors.DomainNetDB))
		})
	})
})
