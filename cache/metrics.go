// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package cache

import "github.com/prometheus/client_golang/prometheus"

func init() {
	prometheus.MustRegister(hits)
	prometheus.MustRegister(misses)
	prometheus.MustRegister(evictions)
	prometheus.MustRegister(size)
}

var (
	hits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hostresolver_positive_cache_hits_total",
			Help: "Total positive-cache hits served without contacting the master registry.",
		},
	)

	misses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hostresolver_positive_cache_misses_total",
			Help: "Total positive-cache misses that fell through to the master registry.",
		},
	)

	evictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostresolver_positive_cache_evictions_total",
			Help: "Total positive-cache entries removed, by reason.",
		},
		[]string{"reason"},
	)

	size = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hostresolver_positive_cache_size",
			Help: "Current number of name keys held in the positive cache.",
		},
	)
)
