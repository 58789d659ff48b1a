// Forge is a parametric 3D-model build service.
// Copyright (C) 2025  Matthew Burns
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mu  sync.RWMutex
	reg *prometheus.Registry

	cacheRequests  *prometheus.CounterVec
	cacheEvictions prometheus.Counter
	buildDuration  prometheus.Histogram
	restoreResults *prometheus.CounterVec
)

// Cache request outcomes.
const (
	OutcomeHit  = "hit"
	OutcomeMiss = "miss"
)

// Restore outcomes per snapshot row.
const (
	RestoreSkipped = "skipped"
	RestoreRebuilt = "rebuilt"
	RestoreDropped = "dropped"
)

func init() {
	resetLocked()
}

// Reset clears and reinitializes all metrics collectors.
// Primarily used by tests to ensure clean state.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	resetLocked()
}

func resetLocked() {
	reg = prometheus.NewRegistry()

	cacheRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forge_cache_requests_total",
		Help: "Generate requests by cache outcome.",
	}, []string{"outcome"})

	cacheEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "forge_cache_evictions_total",
		Help: "Artifacts evicted to admit a new instance.",
	})

	buildDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "forge_build_duration_seconds",
		Help:    "Wall time of external compiler runs.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	restoreResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forge_restore_instances_total",
		Help: "Snapshot rows processed by the restore protocol, by result.",
	}, []string{"result"})

	reg.MustRegister(cacheRequests, cacheEvictions, buildDuration, restoreResults)
}

// Handler returns an HTTP handler that exposes metrics in Prometheus format.
func Handler() http.Handler {
	mu.RLock()
	registry := reg
	mu.RUnlock()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ObserveCacheRequest records a completed generate request.
func ObserveCacheRequest(outcome string) {
	mu.RLock()
	defer mu.RUnlock()
	cacheRequests.WithLabelValues(outcome).Inc()
}

// ObserveEviction records one evict-then-admit.
func ObserveEviction() {
	mu.RLock()
	defer mu.RUnlock()
	cacheEvictions.Inc()
}

// ObserveBuild records the duration of one compiler run.
func ObserveBuild(d time.Duration) {
	mu.RLock()
	defer mu.RUnlock()
	buildDuration.Observe(d.Seconds())
}

// ObserveRestore records the result for one snapshot row.
func ObserveRestore(result string) {
	mu.RLock()
	defer mu.RUnlock()
	restoreResults.WithLabelValues(result).Inc()
}
