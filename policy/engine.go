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

package policy

import (
	"regexp"
	"sync"
)

// Engine evaluates the resolved, effective policy set against a query or
// masking context. It satisfies security.PolicyHook and the Masking
// Engine's context-gate contract without either package importing this
// one's concrete type, keeping the dependency direction
// security/masking -> (narrow interface) <- policy.
type Engine struct {
	resolver *Resolver

	mu      sync.Mutex
	compile map[string]*regexp.Regexp // Pattern string -> compiled, memoized
}

// NewEngine constructs an Engine over resolver.
func NewEngine(resolver *Resolver) *Engine {
	return &Engine{resolver: resolver, compile: make(map[string]*regexp.Regexp)}
}

// CheckQuery implements security.PolicyHook: it evaluates every enabled,
// security/pii-category effective policy in Priority order and reports the
// first whose pattern matches and whose effective action is ActionBlock.
func (e *Engine) CheckQuery(sessionID, tenantID, normalizedQuery string) (blocked bool, reason string) {
	for _, eff := range e.resolver.Resolve("", tenantID) {
		if !eff.EffectiveEnabled() {
			continue
		}
		if eff.Category != CategorySQLInjection && eff.Category != CategoryAdminAccess && eff.Category != CategoryPII {
			continue
		}
		re := e.compiled(eff.Pattern)
		if re == nil || !re.MatchString(normalizedQuery) {
			continue
		}
		if eff.EffectiveAction() == ActionBlock {
			return true, eff.Name
		}
	}
	return false, ""
}

// AllowsMasking implements the Masking Engine's context gate (§4.D step 1):
// a CategoryMasking policy disabled for this tenant suppresses masking for
// columns it names via Pattern (matched against the column name).
func (e *Engine) AllowsMasking(tenantID, columnName string) bool {
	for _, eff := range e.resolver.Resolve("", tenantID) {
		if eff.Category != CategoryMasking || !eff.EffectiveEnabled() {
			continue
		}
		re := e.compiled(eff.Pattern)
		if re != nil && re.MatchString(columnName) && eff.EffectiveAction() == ActionLog {
			return false
		}
	}
	return true
}

func (e *Engine) compiled(pattern string) *regexp.Regexp {
	e.mu.Lock()
	defer e.mu.Unlock()
	if re, ok := e.compile[pattern]; ok {
		return re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		e.compile[pattern] = nil
		return nil
	}
	e.compile[pattern] = re
	return re
}
