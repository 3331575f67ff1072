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
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// PolicyEvaluator runs a background loop that ticks at Interval and
// evaluates enabled Policies priority-ascending (lower Priority = higher
// urgency) against the current Primary's metrics, initiating a switch for
// the first triggering policy each tick and skipping the rest that tick
// (§4.H). Resolves original_source's unimplemented
// `TriggerCondition::Scheduled` TODO using cron.ParseStandard purely for
// boundary computation -- the tick loop already owns timing, so the
// evaluator never runs cron's own scheduler goroutine.
type PolicyEvaluator struct {
	active       *ActiveManager
	collector    *Collector
	orchestrator *Orchestrator

	mu       sync.RWMutex
	policies []Policy
	enabled  bool

	scheduleCache map[string]cron.Schedule
	lastFired     map[string]time.Time

	cancel context.CancelFunc
}

// NewPolicyEvaluator constructs an evaluator wired to the given
// components, enabled by default.
func NewPolicyEvaluator(active *ActiveManager, collector *Collector, orchestrator *Orchestrator) *PolicyEvaluator {
	return &PolicyEvaluator{
		active:        active,
		collector:     collector,
		orchestrator:  orchestrator,
		enabled:       true,
		scheduleCache: make(map[string]cron.Schedule),
		lastFired:     make(map[string]time.Time),
	}
}

// SetEnabled toggles automatic switching without tearing down the loop.
func (e *PolicyEvaluator) SetEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = enabled
}

// AddPolicy appends a policy to the evaluated set.
func (e *PolicyEvaluator) AddPolicy(p Policy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policies = append(e.policies, p)
}

// Run starts the tick loop at the given interval; it returns once ctx is
// canceled or Stop is called.
func (e *PolicyEvaluator) Run(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.evaluateOnce()
		}
	}
}

// Stop cancels a running loop started via Run.
func (e *PolicyEvaluator) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

// evaluateOnce evaluates every enabled policy, priority ascending,
// stopping at the first one that triggers -- §4.H's "first triggering
// policy per tick initiates a switch; subsequent policies skip evaluation
// that tick."
func (e *PolicyEvaluator) evaluateOnce() {
	e.mu.RLock()
	if !e.enabled {
		e.mu.RUnlock()
		return
	}
	policies := append([]Policy(nil), e.policies...)
	e.mu.RUnlock()

	sort.SliceStable(policies, func(i, j int) bool { return policies[i].Priority < policies[j].Priority })

	for _, p := range policies {
		if !p.Enabled {
			continue
		}
		if e.shouldTrigger(p) {
			log.Printf("engine: auto-switch triggered by policy %q -> %s", p.Name, p.TargetEngine)
			if _, err := e.orchestrator.ExecuteSwitch(p.TargetEngine, p.Strategy); err != nil {
				log.Printf("engine: auto-switch for policy %q failed: %v", p.Name, err)
			}
			return
		}
	}
}

func (e *PolicyEvaluator) shouldTrigger(p Policy) bool {
	currentID, _, ok := e.active.GetPrimary()
	if !ok {
		return false
	}
	metrics, ok := e.collector.Get(currentID)

	switch p.Trigger.Kind {
	case TriggerPerformanceDegradation:
		return ok && metrics.ResponseTimeMS > float64(p.Trigger.ResponseTimeThresholdMS)
	case TriggerLoadThreshold:
		return ok && (metrics.CPUUsagePercent > p.Trigger.CPUThreshold || metrics.MemoryUsagePercent > p.Trigger.MemoryThreshold)
	case TriggerErrorRate:
		return ok && metrics.ErrorRatePercent > p.Trigger.ErrorRateThreshold
	case TriggerManual:
		return false // never auto-fires
	case TriggerScheduled:
		return e.scheduledBoundaryPassed(p)
	default:
		return false
	}
}

// scheduledBoundaryPassed reports whether a cron boundary for p's
// expression has passed since it was last observed, firing at most once
// per boundary. The schedule is parsed (and cached) once per policy name;
// a malformed expression never triggers rather than panicking the loop.
func (e *PolicyEvaluator) scheduledBoundaryPassed(p Policy) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	schedule, ok := e.scheduleCache[p.Name]
	if !ok {
		parsed, err := cron.ParseStandard(p.Trigger.CronExpression)
		if err != nil {
			log.Printf("engine: invalid cron expression for policy %q: %v", p.Name, err)
			e.scheduleCache[p.Name] = nil
			return false
		}
		schedule = parsed
		e.scheduleCache[p.Name] = schedule
	}
	if schedule == nil {
		return false
	}

	last, seen := e.lastFired[p.Name]
	if !seen {
		last = time.Now()
		e.lastFired[p.Name] = last
		return false
	}

	next := schedule.Next(last)
	now := time.Now()
	if !next.After(now) {
		e.lastFired[p.Name] = now
		return true
	}
	return false
}
