// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package treeadapter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "treesync"

// Metrics counts adapter traffic. A nil *Metrics records nothing.
type Metrics struct {
	// CommandsSent counts commands handed to the sender, by kind.
	CommandsSent *prometheus.CounterVec

	// CommandsCoalesced counts pending commands superseded before
	// they were sent, by kind.
	CommandsCoalesced *prometheus.CounterVec

	// CommandsDropped counts commands the sender rejected, by kind.
	CommandsDropped *prometheus.CounterVec

	// DeltasApplied counts inbound deltas by kind and outcome
	// (applied, inconsistent, error).
	DeltasApplied *prometheus.CounterVec
}

// NewMetrics creates the adapter metrics and registers them with
// registerer. A nil registerer creates unregistered metrics, which
// tests read with prometheus/testutil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		CommandsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "adapter",
			Name:      "commands_sent_total",
			Help:      "Commands sent to the authority.",
		}, []string{"kind"}),
		CommandsCoalesced: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "adapter",
			Name:      "commands_coalesced_total",
			Help:      "Pending commands replaced by a newer command of the same class.",
		}, []string{"kind"}),
		CommandsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "adapter",
			Name:      "commands_dropped_total",
			Help:      "Commands the sender failed to deliver.",
		}, []string{"kind"}),
		DeltasApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "adapter",
			Name:      "deltas_applied_total",
			Help:      "Inbound deltas by kind and outcome.",
		}, []string{"kind", "outcome"}),
	}
}

func (m *Metrics) sent(kind string) {
	if m != nil {
		m.CommandsSent.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) coalesced(kind string) {
	if m != nil {
		m.CommandsCoalesced.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) dropped(kind string) {
	if m != nil {
		m.CommandsDropped.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) applied(kind, outcome string) {
	if m != nil {
		m.DeltasApplied.WithLabelValues(kind, outcome).Inc()
	}
}
