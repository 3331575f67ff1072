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

package masking

import (
	"sort"
	"sync"
	"time"
)

// PolicyGate is the optional external check consulted before a rule is
// applied (§4.D step 1's policy gating), satisfied by policy.Engine's
// AllowsMasking without masking importing policy directly.
type PolicyGate interface {
	AllowsMasking(tenantID, columnName string) bool
}

// AuditEntry records one masking application, mirroring the original's
// AuditEntry shape.
type AuditEntry struct {
	Timestamp  time.Time
	ColumnName string
	RuleName   string
	Kind       Kind
	Roles      []string
}

// Engine selects and applies masking rules to query result rows. Grounded
// on original_source's DataMaskingEngine: a policy list, a per-
// (column, context-fingerprint) rule cache invalidated on policy mutation,
// and a shared Formatter.
type Engine struct {
	mu        sync.RWMutex
	policies  []Policy
	ruleCache map[string][]Rule // key: column + "|" + context fingerprint

	formatter *Formatter
	gate      PolicyGate

	auditMu sync.Mutex
	audit   []AuditEntry
}

// NewEngine constructs an Engine. gate may be nil to disable policy
// gating (every enabled rule applies unconditionally).
func NewEngine(formatter *Formatter, gate PolicyGate) *Engine {
	return &Engine{
		ruleCache: make(map[string][]Rule),
		formatter: formatter,
		gate:      gate,
	}
}

// AddPolicy appends a policy and invalidates the rule cache.
func (e *Engine) AddPolicy(p Policy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policies = append(e.policies, p)
	e.ruleCache = make(map[string][]Rule)
}

// LoadPolicies replaces the policy set wholesale and invalidates the cache.
func (e *Engine) LoadPolicies(policies []Policy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policies = policies
	e.ruleCache = make(map[string][]Rule)
}

// MaskRow masks every string leaf value in row whose key has an
// applicable rule, recursing into nested maps and slices without changing
// their shape, per §4.D's "masking never changes shape" invariant.
func (e *Engine) MaskRow(row map[string]interface{}, ctx Context) {
	for key, value := range row {
		switch v := value.(type) {
		case string:
			if rule, ok := e.ruleFor(key, ctx); ok {
				masked := e.formatter.Mask(v, rule.Spec)
				row[key] = masked
				e.logMasking(key, rule.Name, rule.Spec.Kind, ctx.Roles)
			}
		case map[string]interface{}:
			e.MaskRow(v, ctx)
		case []interface{}:
			for _, item := range v {
				if nested, ok := item.(map[string]interface{}); ok {
					e.MaskRow(nested, ctx)
				}
			}
		}
	}
}

// MaskRows masks a slice of result rows in place.
func (e *Engine) MaskRows(rows []map[string]interface{}, ctx Context) {
	for _, row := range rows {
		e.MaskRow(row, ctx)
	}
}

// ruleFor returns the highest-priority applicable rule for column under
// ctx, consulting (and populating) the per-(column, fingerprint) cache.
func (e *Engine) ruleFor(column string, ctx Context) (Rule, bool) {
	cacheKey := column + "|" + ctx.fingerprint()

	e.mu.RLock()
	if rules, ok := e.ruleCache[cacheKey]; ok {
		e.mu.RUnlock()
		if len(rules) == 0 {
			return Rule{}, false
		}
		return rules[0], true
	}
	policies := e.policies
	e.mu.RUnlock()

	var applicable []Rule
	for i := range policies {
		for _, rule := range policies[i].selectRules(ctx) {
			if rule.ColumnPattern.Matches(column) {
				applicable = append(applicable, rule)
			}
		}
	}
	if e.gate != nil && !e.gate.AllowsMasking(ctx.TenantID, column) {
		applicable = nil
	}

	// Priority descending; stable sort preserves insertion order as the
	// tiebreaker ("first inserted wins") per §4.D step 3.
	sort.SliceStable(applicable, func(i, j int) bool { return applicable[i].Priority > applicable[j].Priority })

	e.mu.Lock()
	e.ruleCache[cacheKey] = applicable
	e.mu.Unlock()

	if len(applicable) == 0 {
		return Rule{}, false
	}
	return applicable[0], true
}

func (e *Engine) logMasking(column, ruleName string, kind Kind, roles []string) {
	e.auditMu.Lock()
	defer e.auditMu.Unlock()
	e.audit = append(e.audit, AuditEntry{
		Timestamp:  time.Now(),
		ColumnName: column,
		RuleName:   ruleName,
		Kind:       kind,
		Roles:      append([]string(nil), roles...),
	})
}

// AuditLog returns up to limit of the most recent masking applications,
// newest first. limit<=0 returns the full log.
func (e *Engine) AuditLog(limit int) []AuditEntry {
	e.auditMu.Lock()
	defer e.auditMu.Unlock()
	n := len(e.audit)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]AuditEntry, limit)
	for i := 0; i < limit; i++ {
		out[i] = e.audit[n-1-i]
	}
	return out
}
