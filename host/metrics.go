// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package host

import "github.com/prometheus/client_golang/prometheus"

func init() {
	prometheus.MustRegister(activeLookups)
	prometheus.MustRegister(lookupDuration)
}

var (
	activeLookups = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hostresolver_host_active_lookups",
			Help: "Current number of handles with an in-flight lookup token.",
		},
	)

	lookupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hostresolver_host_lookup_duration_seconds",
			Help:    "Time from a handle's lookup starting to it being torn down, by query kind.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
)
