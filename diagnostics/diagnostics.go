// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package diagnostics provides a log-message dedup window for the
// components in this module that would otherwise log the same warning on
// every retry of a persistently-failing resolution (spec.md Non-goals
// rule out a negative result cache, but say nothing about log noise).
// Grounded on pkg/dnsman2/controller/source/common/deduprecorder.go,
// which solves the identical problem for Kubernetes events.
package diagnostics

import (
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/jellydator/ttlcache/v3"
)

// ActivityRecorder wraps a logr.Logger so that repeated calls with the
// same key and message within ttl are suppressed after the first. It
// never suppresses the first occurrence of a message and never delays
// delivery; it only drops exact repeats.
type ActivityRecorder struct {
	log   logr.Logger
	cache *ttlcache.Cache[string, string]
}

// NewActivityRecorder builds an ActivityRecorder that logs through log,
// deduplicating identical messages for the same key within ttl.
func NewActivityRecorder(log logr.Logger, ttl time.Duration) *ActivityRecorder {
	c := ttlcache.New[string, string](
		ttlcache.WithTTL[string, string](ttl),
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	go c.Start()
	return &ActivityRecorder{log: log, cache: c}
}

// Close stops the recorder's background eviction goroutine. Safe to call
// once, at process shutdown.
func (r *ActivityRecorder) Close() {
	r.cache.Stop()
}

// Warnf logs a warning for key at the given message/args, unless an
// identical message was already recorded for key within the dedup
// window, in which case it is silently dropped.
func (r *ActivityRecorder) Warnf(key string, messageFmt string, args ...any) {
	msg := fmt.Sprintf(messageFmt, args...)
	if item := r.cache.Get(key); item != nil && item.Value() == msg {
		return
	}
	r.log.Info(msg, "key", key, "level", "warn")
	r.cache.Set(key, msg, ttlcache.DefaultTTL)
	r.cache.DeleteExpired()
}

// Errorf logs an error for key at the given message/args, unless an
// identical message was already recorded for key within the dedup
// window.
func (r *ActivityRecorder) Errorf(key string, err error, messageFmt string, args ...any) {
	msg := fmt.Sprintf(messageFmt, args...)
	if item := r.cache.Get(key); item != nil && item.Value() == msg {
		return
	}
	r.log.Error(err, msg, "key", key)
	r.cache.Set(key, msg, ttlcache.DefaultTTL)
	r.cache.DeleteExpired()
}
