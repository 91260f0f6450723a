// Copyright 2026 The bluestreak-go Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exposes Prometheus counters and gauges for the engine's
// claim/dispatch/finalize transitions. Nothing here mounts an HTTP handler;
// embedding applications register promhttp.Handler() themselves against the
// default registry these metrics are registered to.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	claimsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bluestreak_claims_total",
			Help: "Total instances claimed by the poller.",
		},
	)

	dispatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bluestreak_dispatches_total",
			Help: "Total runner invocations dispatched by the poller.",
		},
	)

	finishesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bluestreak_finishes_total",
			Help: "Total instances transitioned to finished, by handler id.",
		},
		[]string{"handler_id"},
	)

	failuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bluestreak_failures_total",
			Help: "Total handler failures recorded, by handler id.",
		},
		[]string{"handler_id"},
	)

	abortsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bluestreak_aborts_total",
			Help: "Total instances transitioned to aborted, by handler id.",
		},
		[]string{"handler_id"},
	)

	stepCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bluestreak_step_cache_hits_total",
			Help: "Total step calls short-circuited by a pre-existing record.",
		},
	)

	napEntriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bluestreak_nap_entries_total",
			Help: "Total first-time sleep entries that committed a wake instant.",
		},
	)

	activeRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bluestreak_active_runs",
			Help: "Number of runner invocations currently in flight.",
		},
	)
)

// RecordClaim increments the claims counter.
func RecordClaim() { claimsTotal.Inc() }

// RecordDispatch increments the dispatch counter and the active-runs gauge.
func RecordDispatch() {
	dispatchesTotal.Inc()
	activeRuns.Inc()
}

// RecordRunEnd decrements the active-runs gauge. Call once per dispatched
// run regardless of outcome.
func RecordRunEnd() { activeRuns.Dec() }

// RecordFinish increments the per-handler finish counter.
func RecordFinish(handlerID string) { finishesTotal.WithLabelValues(handlerID).Inc() }

// RecordFailure increments the per-handler failure counter.
func RecordFailure(handlerID string) { failuresTotal.WithLabelValues(handlerID).Inc() }

// RecordAbort increments the per-handler abort counter.
func RecordAbort(handlerID string) { abortsTotal.WithLabelValues(handlerID).Inc() }

// RecordStepCacheHit increments the step-cache-hit counter.
func RecordStepCacheHit() { stepCacheHitsTotal.Inc() }

// RecordNapEntry increments the nap-entry counter.
func RecordNapEntry() { napEntriesTotal.Inc() }
