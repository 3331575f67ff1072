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

// Package policy resolves the three-tier (system/organization/tenant)
// policy hierarchy and its overrides into an effective decision, consumed
// by the Security Validator's policy hook (§4.C step 6) and the Masking
// Engine's policy gating (§4.D step 1). Adapted from the teacher's
// agent.StaticPolicy/PolicyOverride family, trimmed to the fields this
// control plane's pipeline actually reads and generalized away from its
// HTTP-API request/response wrapper types.
package policy

import "time"

// Tier is the level in the policy hierarchy a policy belongs to.
type Tier string

const (
	TierSystem       Tier = "system"       // immutable, platform-managed
	TierOrganization Tier = "organization" // full CRUD, applies org-wide
	TierTenant       Tier = "tenant"       // full CRUD, cannot weaken org/system
)

// Category classifies a policy for filtering and for the Validator's
// pattern-blacklist correlation (Category mirrors security.Pattern.Category).
type Category string

const (
	CategorySQLInjection Category = "security-sqli"
	CategoryAdminAccess  Category = "security-admin"
	CategoryPII          Category = "pii-global"
	CategoryMasking      Category = "masking-gate"
)

// Action is the enforcement behavior a policy (or its override) selects.
type Action string

const (
	ActionBlock  Action = "block"
	ActionRedact Action = "redact"
	ActionWarn   Action = "warn"
	ActionLog    Action = "log"
)

// restrictiveness ranks Action from least to most restrictive; overrides
// are rejected (see Resolver.ApplyOverride) if they would rank lower than
// the tier they apply against, mirroring the teacher's
// IsMoreRestrictive/ActionRestrictiveness invariant: overrides may only
// tighten enforcement, never loosen a system or organization policy.
var restrictiveness = map[Action]int{
	ActionLog:   1,
	ActionWarn:  2,
	ActionRedact: 3,
	ActionBlock: 4,
}

// IsAtLeastAsRestrictive reports whether a is at least as restrictive as b.
func IsAtLeastAsRestrictive(a, b Action) bool {
	return restrictiveness[a] >= restrictiveness[b]
}

// StaticPolicy is one pattern-based rule in the hierarchy.
type StaticPolicy struct {
	ID             string
	Name           string
	Category       Category
	Tier           Tier
	Pattern        string // RE2 regex evaluated against the normalized query
	Action         Action
	Severity       string
	Priority       int // higher evaluates first among policies of the same tier
	Enabled        bool
	OrganizationID string
	TenantID       string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CanModifyPattern reports whether this policy's Pattern/Action may be
// edited directly. System-tier policies are immutable; only an Override
// record may adjust their enforcement.
func (p *StaticPolicy) CanModifyPattern() bool {
	return p.Tier != TierSystem
}

// Override adjusts a system or organization policy's Action/Enabled state
// for one organization or tenant scope, without touching the underlying
// Pattern.
type Override struct {
	ID              string
	PolicyID        string
	OrganizationID  string // empty when tenant-scoped
	TenantID        string // empty when organization-scoped
	ActionOverride  *Action
	EnabledOverride *bool
	Reason          string
	ExpiresAt       *time.Time
	CreatedAt       time.Time
}

// IsExpired reports whether the override's ExpiresAt has passed.
func (o *Override) IsExpired() bool {
	if o.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*o.ExpiresAt)
}

// Effective is a StaticPolicy with any applicable, unexpired Override
// folded in. override is nil when no override applies.
type Effective struct {
	StaticPolicy
	override *Override
}

// HasOverride reports whether an unexpired override is in force.
func (e *Effective) HasOverride() bool {
	return e.override != nil
}

// OverrideReason returns the in-force override's governance reason, or "".
func (e *Effective) OverrideReason() string {
	if e.override == nil {
		return ""
	}
	return e.override.Reason
}

// EffectiveAction returns the override's action if one is in force,
// otherwise the policy's own action.
func (e *Effective) EffectiveAction() Action {
	if e.override != nil && e.override.ActionOverride != nil {
		return *e.override.ActionOverride
	}
	return e.StaticPolicy.Action
}

// EffectiveEnabled returns the override's enabled flag if one is in
// force, otherwise the policy's own enabled flag.
func (e *Effective) EffectiveEnabled() bool {
	if e.override != nil && e.override.EnabledOverride != nil {
		return *e.override.EnabledOverride
	}
	return e.StaticPolicy.Enabled
}
