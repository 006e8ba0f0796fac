// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package registry

import "github.com/prometheus/client_golang/prometheus"

func init() {
	prometheus.MustRegister(groupsActive)
	prometheus.MustRegister(groupsCreated)
	prometheus.MustRegister(fanout)
}

var (
	groupsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hostresolver_registry_groups_active",
			Help: "Current number of in-flight master lookup groups.",
		},
	)

	groupsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hostresolver_registry_groups_created_total",
			Help: "Total master lookup groups created (one per distinct in-flight name).",
		},
	)

	fanout = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hostresolver_registry_group_fanout",
			Help:    "Number of subscribers a completed master lookup group fanned its result out to.",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		},
	)
)
