// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package loop_test

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/gardener/hostresolver/loop"
)

func TestLoop(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "loop Suite")
}

var _ = Describe("ChannelLoop and Stub", func() {
	It("fires a stub scheduled before it is signalled", func() {
		fired := make(chan struct{}, 1)
		s := loop.NewStub(func() { fired <- struct{}{} })

		l := loop.NewChannelLoop()
		stop := make(chan struct{})
		defer close(stop)
		go l.Run("default", stop)

		s.Schedule(l, "default")
		s.Signal()

		Eventually(fired).Should(Receive())
	})

	It("delivers a signal that arrives before scheduling (pending-fire-on-schedule)", func() {
		fired := make(chan struct{}, 1)
		s := loop.NewStub(func() { fired <- struct{}{} })

		l := loop.NewChannelLoop()
		stop := make(chan struct{})
		defer close(stop)
		go l.Run("default", stop)

		s.Signal()
		s.Schedule(l, "default")

		Eventually(fired).Should(Receive())
	})

	It("never fires once invalidated", func() {
		fired := make(chan struct{}, 1)
		s := loop.NewStub(func() { fired <- struct{}{} })

		l := loop.NewChannelLoop()
		stop := make(chan struct{})
		defer close(stop)
		go l.Run("default", stop)

		s.Schedule(l, "default")
		s.Invalidate()
		s.Signal()

		Consistently(fired, 200*time.Millisecond).ShouldNot(Receive())
	})

	It("does not fire a stub scheduled only in a different mode", func() {
		fired := make(chan struct{}, 1)
		s := loop.NewStub(func() { fired <- struct{}{} })

		l := loop.NewChannelLoop()
		stop := make(chan struct{})
		defer close(stop)
		go l.Run("default", stop)

		s.Schedule(l, "other")
		s.Signal()

		Consistently(fired, 200*time.Millisecond).ShouldNot(Receive())
	})

	It("stops Run once stop is closed", func() {
		l := loop.NewChannelLoop()
		stop := make(chan struct{})
		done := make(chan struct{})
		go func() {
			l.Run("default", stop)
			close(done)
		}()

		Eventually(l.IsWaiting).Should(BeTrue())
		close(stop)
		Eventually(done).Should(BeClosed())
	})

	It("reports ContainsSource only while scheduled", func() {
		s := loop.NewStub(nil)
		l := loop.NewChannelLoop()
		Expect(l.ContainsSource(s, "default")).To(BeFalse())

		s.Schedule(l, "default")
		Expect(l.ContainsSource(s, "default")).To(BeTrue())

		s.Unschedule(l, "default")
		Expect(l.ContainsSource(s, "default")).To(BeFalse())
	})
})
