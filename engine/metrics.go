// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package engine

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	promEngineResponseTime = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "axonflow_engine_response_time_ms",
			Help: "Latest recorded response time per engine",
		},
		[]string{"engine_id"},
	)
	promEngineCPUUsage = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "axonflow_engine_cpu_usage_percent",
			Help: "Latest recorded CPU usage percent per engine",
		},
		[]string{"engine_id"},
	)
	promEngineErrorRate = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "axonflow_engine_error_rate_percent",
			Help: "Latest recorded error rate percent per engine",
		},
		[]string{"engine_id"},
	)
	promEngineAvailability = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "axonflow_engine_availability_percent",
			Help: "Latest recorded availability percent per engine",
		},
		[]string{"engine_id"},
	)
	promSwitchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "axonflow_engine_switches_total",
			Help: "Total engine switch attempts by outcome",
		},
		[]string{"success"},
	)

	registerMetricsOnce sync.Once
)

func registerMetrics() {
	registerMetricsOnce.Do(func() {
		prometheus.MustRegister(
			promEngineResponseTime,
			promEngineCPUUsage,
			promEngineErrorRate,
			promEngineAvailability,
			promSwitchTotal,
		)
	})
}

// Collector stores per-engine Metrics snapshots and per-switch outcomes
// (§4.I). Updates replace a stored snapshot wholesale rather than mutating
// it in place, so a concurrent reader never observes a torn update; a
// missing engine yields ok=false rather than a stale zero-value reading.
// Every update is additionally mirrored onto the package's Prometheus
// gauge vectors, keyed by engine_id, for an integrator's /metrics scrape.
type Collector struct {
	mu      sync.RWMutex
	byEngine map[string]Metrics
}

// NewCollector constructs a Collector and registers its Prometheus
// collectors exactly once per process.
func NewCollector() *Collector {
	registerMetrics()
	return &Collector{byEngine: make(map[string]Metrics)}
}

// Update replaces engineID's stored snapshot and mirrors it to Prometheus.
func (c *Collector) Update(engineID string, m Metrics) {
	if m.LastUpdated.IsZero() {
		m.LastUpdated = time.Now()
	}

	c.mu.Lock()
	c.byEngine[engineID] = m
	c.mu.Unlock()

	promEngineResponseTime.WithLabelValues(engineID).Set(m.ResponseTimeMS)
	promEngineCPUUsage.WithLabelValues(engineID).Set(m.CPUUsagePercent)
	promEngineErrorRate.WithLabelValues(engineID).Set(m.ErrorRatePercent)
	promEngineAvailability.WithLabelValues(engineID).Set(m.AvailabilityPercent)
}

// Get returns engineID's latest snapshot, or ok=false if none was ever
// recorded.
func (c *Collector) Get(engineID string) (Metrics, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.byEngine[engineID]
	return m, ok
}

// RecordSwitch mirrors a completed switch attempt's outcome.
func (c *Collector) RecordSwitch(result Result) {
	label := "false"
	if result.Success {
		label = "true"
	}
	promSwitchTotal.WithLabelValues(label).Inc()
}
