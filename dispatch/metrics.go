/* Copyright 2024 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics receives dispatch measurements.
type Metrics interface {
	// Batch is called once per Resolve with the number of
	// messages after unpacking.
	Batch(messages int)

	// Delivered is called with the number of accepted deliveries.
	Delivered(n int)

	// Malformed is called for each message skipped because of its
	// address.
	Malformed()

	// CacheSize reports the number of cached matchers.
	CacheSize(n int)
}

type nopMetrics struct{}

func (nopMetrics) Batch(int)     {}
func (nopMetrics) Delivered(int) {}
func (nopMetrics) Malformed()    {}
func (nopMetrics) CacheSize(int) {}

// NopMetrics discards everything.
var NopMetrics Metrics = nopMetrics{}

type promMetrics struct {
	batches    prometheus.Counter
	messages   prometheus.Counter
	deliveries prometheus.Counter
	malformed  prometheus.Counter
	cacheSize  prometheus.Gauge
}

// NewPrometheusMetrics makes Metrics backed by Prometheus collectors,
// which are registered with the given Registerer.
func NewPrometheusMetrics(reg prometheus.Registerer) Metrics {
	m := &promMetrics{
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oscroute_dispatch_batches_total",
			Help: "Total number of dispatched packet batches",
		}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oscroute_dispatch_messages_total",
			Help: "Total number of messages after bundle unpacking",
		}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oscroute_dispatch_deliveries_total",
			Help: "Total number of messages accepted by methods",
		}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oscroute_dispatch_malformed_total",
			Help: "Total number of messages skipped because of a malformed address pattern",
		}),
		cacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "oscroute_pattern_cache_size",
			Help: "Number of compiled address patterns in the cache",
		}),
	}

	reg.MustRegister(
		m.batches,
		m.messages,
		m.deliveries,
		m.malformed,
		m.cacheSize,
	)

	return m
}

func (m *promMetrics) Batch(messages int) {
	m.batches.Inc()
	m.messages.Add(float64(messages))
}

func (m *promMetrics) Delivered(n int) {
	m.deliveries.Add(float64(n))
}

func (m *promMetrics) Malformed() {
	m.malformed.Inc()
}

func (m *promMetrics) CacheSize(n int) {
	m.cacheSize.Set(float64(n))
}
