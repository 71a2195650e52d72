// Copyright 2024 The Lumen Authors
// This file is part of Lumen.
//
// Lumen is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Lumen is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Lumen. If not, see <http://www.gnu.org/licenses/>.

// Package lumenmetrics collects the Prometheus metrics each subsystem
// exposes, one registry per component in the manner of erigon's
// per-package metrics files.
package lumenmetrics

import "github.com/prometheus/client_golang/prometheus"

// Registry is a namespaced Prometheus registerer; each subsystem
// constructs its own collectors against its Registry rather than reaching
// for prometheus.DefaultRegisterer directly, so tests can spin up
// independent instances.
type Registry struct {
	namespace string
	reg       *prometheus.Registry
}

// NewRegistry builds an empty registry scoped to namespace (e.g. "txpool",
// "sync", "rpc").
func NewRegistry(namespace string) *Registry {
	return &Registry{namespace: namespace, reg: prometheus.NewRegistry()}
}

// Gatherer exposes the underlying prometheus.Gatherer for an HTTP /metrics
// handler to serve.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

func (r *Registry) Counter(name, help string) prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{Namespace: r.namespace, Name: name, Help: help})
	r.reg.MustRegister(c)
	return c
}

func (r *Registry) CounterVec(name, help string, labels ...string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: r.namespace, Name: name, Help: help}, labels)
	r.reg.MustRegister(c)
	return c
}

func (r *Registry) Gauge(name, help string) prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: r.namespace, Name: name, Help: help})
	r.reg.MustRegister(g)
	return g
}

func (r *Registry) Histogram(name, help string, buckets []float64) prometheus.Histogram {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: r.namespace, Name: name, Help: help, Buckets: buckets})
	r.reg.MustRegister(h)
	return h
}

// TxPoolMetrics are the collectors implies an operator needs:
// pool size, validation outcomes, and time-to-inclusion.
type TxPoolMetrics struct {
	PendingCount   prometheus.Gauge
	QueuedCount    prometheus.Gauge
	ValidationByOutcome *prometheus.CounterVec
	TimeToInclusion prometheus.Histogram
}

// NewTxPoolMetrics registers the pool's collectors against reg.
func NewTxPoolMetrics(reg *Registry) *TxPoolMetrics {
	return &TxPoolMetrics{
		PendingCount:        reg.Gauge("pending_transactions", "transactions ready for inclusion"),
		QueuedCount:         reg.Gauge("queued_transactions", "transactions waiting on a dependency"),
		ValidationByOutcome: reg.CounterVec("validation_total", "validation outcomes", "outcome"),
		TimeToInclusion:     reg.Histogram("time_to_inclusion_seconds", "submit-to-inclusion latency", prometheus.DefBuckets),
	}
}

// SyncMetrics track the staged-sync pipeline's per-stage progress
//.
type SyncMetrics struct {
	StageHeight   *prometheus.GaugeVec
	StageDuration *prometheus.HistogramVec
	UnwindTotal   prometheus.Counter
}

// NewSyncMetrics registers the pipeline's collectors against reg.
func NewSyncMetrics(reg *Registry) *SyncMetrics {
	height := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: reg.namespace, Name: "stage_height", Help: "last block number processed by each stage",
	}, []string{"stage"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: reg.namespace, Name: "stage_duration_seconds", Help: "stage execution duration", Buckets: prometheus.DefBuckets,
	}, []string{"stage"})
	reg.reg.MustRegister(height, duration)

	return &SyncMetrics{
		StageHeight:   height,
		StageDuration: duration,
		UnwindTotal:   reg.Counter("unwind_total", "number of unwind operations performed"),
	}
}

// RPCMetrics are the collectors the RPC core's metrics middleware records
// against.
type RPCMetrics struct {
	RequestsByMethod *prometheus.CounterVec
	DurationByMethod *prometheus.HistogramVec
	ErrorsByKind      *prometheus.CounterVec
}

// NewRPCMetrics registers the RPC core's collectors against reg.
func NewRPCMetrics(reg *Registry) *RPCMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: reg.namespace, Name: "requests_total", Help: "JSON-RPC requests handled, by method",
	}, []string{"method"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: reg.namespace, Name: "request_duration_seconds", Help: "JSON-RPC request handling latency", Buckets: prometheus.DefBuckets,
	}, []string{"method"})
	errors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: reg.namespace, Name: "errors_total", Help: "JSON-RPC error responses, by error kind",
	}, []string{"method", "kind"})
	reg.reg.MustRegister(requests, duration, errors)

	return &RPCMetrics{RequestsByMethod: requests, DurationByMethod: duration, ErrorsByKind: errors}
}
