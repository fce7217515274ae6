// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package metrics exports topology monitoring events as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ikmak/mongo-topology/description"
	"github.com/ikmak/mongo-topology/event"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Collector holds the topology metrics. It is fed by the event.ServerMonitor
// returned from Monitor.
type Collector struct {
	Heartbeats        *prometheus.CounterVec
	HeartbeatDuration *prometheus.HistogramVec
	ServerKind        *prometheus.GaugeVec
	Servers           prometheus.Gauge
	TopologyChanges   *prometheus.CounterVec
	Selections        *prometheus.CounterVec
	SelectionDuration *prometheus.HistogramVec
}

// New creates the metrics with the given namespace. They are not registered.
func New(namespace string) *Collector {
	return &Collector{
		Heartbeats: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "heartbeats_total",
				Help:      "Total number of heartbeats by server and outcome",
			},
			[]string{"address", "outcome"},
		),

		HeartbeatDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "heartbeat_duration_seconds",
				Help:      "Round trip time of heartbeats in seconds",
				Buckets:   []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"address"},
		),

		ServerKind: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "server_kind",
				Help:      "Current kind of each monitored server, 1 for the reported kind",
			},
			[]string{"address", "kind"},
		),

		Servers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "servers",
				Help:      "Number of servers in the topology description",
			},
		),

		TopologyChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "topology_changes_total",
				Help:      "Total number of topology description changes by resulting kind",
			},
			[]string{"kind"},
		),

		Selections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "server_selections_total",
				Help:      "Total number of server selections by selector and outcome",
			},
			[]string{"selector", "outcome"},
		),

		SelectionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "server_selection_duration_seconds",
				Help:      "Time spent selecting a server in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
	}
}

// Register registers every metric with reg.
func (c *Collector) Register(reg prometheus.Registerer) error {
	for _, col := range []prometheus.Collector{
		c.Heartbeats,
		c.HeartbeatDuration,
		c.ServerKind,
		c.Servers,
		c.TopologyChanges,
		c.Selections,
		c.SelectionDuration,
	} {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}

// Monitor returns the event monitor that updates the metrics. Pass it to
// topology.WithServerMonitor.
func (c *Collector) Monitor() *event.ServerMonitor {
	return &event.ServerMonitor{
		ServerHeartbeatSucceeded: func(e *event.ServerHeartbeatSucceededEvent) {
			addr := e.Address.String()
			c.Heartbeats.WithLabelValues(addr, OutcomeSuccess).Inc()
			c.HeartbeatDuration.WithLabelValues(addr).Observe(e.Duration.Seconds())
		},
		ServerHeartbeatFailed: func(e *event.ServerHeartbeatFailedEvent) {
			c.Heartbeats.WithLabelValues(e.Address.String(), OutcomeFailure).Inc()
		},
		ServerDescriptionChanged: func(e *event.ServerDescriptionChangedEvent) {
			c.setServerKind(e.NewDescription)
		},
		ServerClosed: func(e *event.ServerClosedEvent) {
			c.ServerKind.DeletePartialMatch(prometheus.Labels{"address": e.Address.String()})
		},
		TopologyDescriptionChanged: func(e *event.TopologyDescriptionChangedEvent) {
			c.TopologyChanges.WithLabelValues(e.NewDescription.Kind.String()).Inc()
			c.Servers.Set(float64(len(e.NewDescription.Servers)))
		},
		ServerSelectionSucceeded: func(e *event.ServerSelectionSucceededEvent) {
			c.Selections.WithLabelValues(e.Selector, OutcomeSuccess).Inc()
			c.SelectionDuration.WithLabelValues(OutcomeSuccess).Observe(e.Duration.Seconds())
		},
		ServerSelectionFailed: func(e *event.ServerSelectionFailedEvent) {
			c.Selections.WithLabelValues(e.Selector, OutcomeFailure).Inc()
			c.SelectionDuration.WithLabelValues(OutcomeFailure).Observe(e.Duration.Seconds())
		},
	}
}

func (c *Collector) setServerKind(desc description.Server) {
	addr := desc.Addr.String()
	c.ServerKind.DeletePartialMatch(prometheus.Labels{"address": addr})
	c.ServerKind.WithLabelValues(addr, desc.Kind.String()).Set(1)
}
