// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package registry_test

import (
	"testing"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/gardener/hostresolver/cache"
	"github.com/gardener/hostresolver/host"
	"github.com/gardener/hostresolver/hostkind"
	"github.com/gardener/hostresolver/hosterrors"
	"github.com/gardener/hostresolver/loop"
	"github.com/gardener/hostresolver/registry"
)

func TestRegistry(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "registry Suite")
}

// recordingDriver lets the test control exactly when the primary's
// kMasterAddressLookup completes, and counts how many times a primary
// lookup was actually started — the mock-resolver-call-count stand-in
// from spec.md scenario S2.
type recordingDriver struct {
	starts   int
	lastH    *host.Handle
	canceled int
	// block, if non-nil, is read from before a primary's Start returns,
	// so a test can hold Admit inside the registry's critical section
	// for as long as it needs.
	block chan struct{}
}

func (d *recordingDriver) Start(h *host.Handle, q hostkind.Query) bool {
	if q.Kind == hostkind.MasterAddressLookup {
		d.starts++
		d.lastH = h
		if d.block != nil {
			<-d.block
		}
	}
	h.BeginLookup(q, loop.NewStub(nil))
	return true
}

func (d *recordingDriver) Cancel(*host.Handle, hostkind.Query) {
	d.canceled++
}

var _ = Describe("Registry", func() {
	var (
		c   *cache.Cache
		drv *recordingDriver
		r   *registry.Registry
	)

	BeforeEach(func() {
		c = cache.New()
		drv = &recordingDriver{}
		r = registry.New(c, logr.Discard())
		r.SetDriver(drv)
	})

	It("coalesces three subscribers into one underlying lookup and fans out identically (S2)", func() {
		var (
			h1, h2, h3 *host.Handle
		)
		h1, _ = host.CreateWithName("example.test", drv, logr.Discard())
		h2, _ = host.CreateWithName("example.test", drv, logr.Discard())
		h3, _ = host.CreateWithName("example.test", drv, logr.Discard())

		results := map[*host.Handle][][]byte{}
		for _, h := range []*host.Handle{h1, h2, h3} {
			h := h
			host.SetClient(h, func(hh *host.Handle, _ hostkind.Query, _ *hosterrors.Error) {
				v, _ := host.GetInfo(hh, hostkind.Of(hostkind.Addresses))
				if addrs, ok := v.([][]byte); ok {
					results[hh] = addrs
				}
			}, nil)
			l := loop.NewChannelLoop()
			host.ScheduleWithRunLoop(h, l, "default")
			stop := make(chan struct{})
			go l.Run("default", stop)
			defer close(stop)

			ok := r.Admit(h, hostkind.Of(hostkind.Addresses))
			Expect(ok).To(BeTrue())
		}

		Expect(drv.starts).To(Equal(1))

		// Complete the primary: this is what the primary's own
		// MasterLookupCallback would observe.
		drv.lastH.Deliver(hostkind.Of(hostkind.MasterAddressLookup), [][]byte{{10, 0, 0, 1}}, nil)

		Eventually(func() int { return len(results) }).Should(Equal(3))
		for _, addrs := range results {
			Expect(addrs).To(Equal([][]byte{{10, 0, 0, 1}}))
		}
		Expect(c.Len()).To(Equal(1))
	})

	It("starts a second underlying lookup once the cache entry expires (S3)", func() {
		h1, _ := host.CreateWithName("example.test", drv, logr.Discard())
		host.SetClient(h1, func(*host.Handle, hostkind.Query, *hosterrors.Error) {}, nil)
		l := loop.NewChannelLoop()
		host.ScheduleWithRunLoop(h1, l, "default")
		stop := make(chan struct{})
		go l.Run("default", stop)
		defer close(stop)

		Expect(r.Admit(h1, hostkind.Of(hostkind.Addresses))).To(BeTrue())
		drv.lastH.Deliver(hostkind.Of(hostkind.MasterAddressLookup), [][]byte{{10, 0, 0, 1}}, nil)
		Eventually(func() int { return c.Len() }).Should(Equal(1))

		c.Clear() // simulate TTL expiry without sleeping in the test
		h2, _ := host.CreateWithName("example.test", drv, logr.Discard())
		host.SetClient(h2, func(*host.Handle, hostkind.Query, *hosterrors.Error) {}, nil)
		host.ScheduleWithRunLoop(h2, l, "default")

		Expect(r.Admit(h2, hostkind.Of(hostkind.Addresses))).To(BeTrue())
		Expect(drv.starts).To(Equal(2))
	})

	It("cancels the primary once the last subscriber withdraws (M3)", func() {
		h1, _ := host.CreateWithName("example.test", drv, logr.Discard())
		host.SetClient(h1, func(*host.Handle, hostkind.Query, *hosterrors.Error) {}, nil)
		l := loop.NewChannelLoop()
		host.ScheduleWithRunLoop(h1, l, "default")

		Expect(r.Admit(h1, hostkind.Of(hostkind.Addresses))).To(BeTrue())
		r.Withdraw(h1)

		Expect(drv.canceled).To(Equal(1))
	})

	It("never exposes a group without the creator's own subscriber (Admit/Withdraw race regression)", func() {
		// drv.Start blocks on drv.block while a primary is being started,
		// holding Admit inside the window in which the group is already
		// inserted and r.mu is still held. A concurrent
		// Admit-then-Withdraw for the same name must not be able to see
		// the group as subscriber-less during that window: r.mu is held
		// across the whole sequence, so the second caller simply waits.
		drv.block = make(chan struct{})

		h1, _ := host.CreateWithName("example.test", drv, logr.Discard())
		calls := 0
		host.SetClient(h1, func(*host.Handle, hostkind.Query, *hosterrors.Error) { calls++ }, nil)
		l := loop.NewChannelLoop()
		host.ScheduleWithRunLoop(h1, l, "default")
		stop := make(chan struct{})
		go l.Run("default", stop)
		defer close(stop)

		admitDone := make(chan bool, 1)
		go func() { admitDone <- r.Admit(h1, hostkind.Of(hostkind.Addresses)) }()

		// h1's Admit is now blocked inside driver.Start, holding r.mu.
		Consistently(admitDone, 100*time.Millisecond).ShouldNot(Receive())

		h2, _ := host.CreateWithName("example.test", drv, logr.Discard())
		host.SetClient(h2, func(*host.Handle, hostkind.Query, *hosterrors.Error) {}, nil)
		host.ScheduleWithRunLoop(h2, l, "default")

		joinWithdrawDone := make(chan struct{})
		go func() {
			defer close(joinWithdrawDone)
			r.Admit(h2, hostkind.Of(hostkind.Addresses))
			r.Withdraw(h2)
		}()

		// h2 cannot even join until r.mu is released, which only happens
		// once h1's own subscriber entry already exists.
		Consistently(joinWithdrawDone, 100*time.Millisecond).ShouldNot(BeClosed())

		close(drv.block)
		Eventually(admitDone).Should(Receive(BeTrue()))
		Eventually(joinWithdrawDone).Should(BeClosed())

		// h2 joining and withdrawing mid-creation must not have evicted
		// the group or cancelled the primary: h1 is still subscribed.
		Expect(drv.canceled).To(Equal(0))

		drv.lastH.Deliver(hostkind.Of(hostkind.MasterAddressLookup), [][]byte{{10, 0, 0, 2}}, nil)
		Eventually(func() int { return calls }).Should(Equal(1))
		Consistently(func() int { return calls }).Should(Equal(1))
	})
})
