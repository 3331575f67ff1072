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
	"fmt"
	"sort"
	"sync"

	"securedb/platform/shared/coreerr"
)

// Resolver holds the in-memory policy and override catalogs and computes
// the effective policy set for a given organization/tenant scope. A
// database-backed store can sit behind the same interface by reloading
// Resolver's maps on a refresh tick, mirroring the teacher's
// LoadPoliciesFromDB cache-and-refresh pattern.
type Resolver struct {
	mu        sync.RWMutex
	policies  map[string]*StaticPolicy // keyed by PolicyID
	overrides map[string][]*Override   // keyed by PolicyID, most-specific-first after sort
}

// NewResolver constructs an empty Resolver.
func NewResolver() *Resolver {
	return &Resolver{
		policies:  make(map[string]*StaticPolicy),
		overrides: make(map[string][]*Override),
	}
}

// AddPolicy registers or replaces a policy.
func (r *Resolver) AddPolicy(p *StaticPolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[p.ID] = p
}

// ApplyOverride registers an override after validating it cannot weaken a
// system-tier policy's enforcement, per the teacher's IsMoreRestrictive
// invariant: an override's action must be at least as restrictive as the
// policy it targets.
func (r *Resolver) ApplyOverride(o *Override) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	base, ok := r.policies[o.PolicyID]
	if !ok {
		return coreerr.New(coreerr.NotFound, "policy.ApplyOverride", "no such policy: "+o.PolicyID)
	}
	if base.Tier == TierSystem && o.ActionOverride != nil {
		if !IsAtLeastAsRestrictive(*o.ActionOverride, base.Action) {
			return coreerr.New(coreerr.InvalidParams, "policy.ApplyOverride",
				fmt.Sprintf("override action %q is less restrictive than system policy action %q", *o.ActionOverride, base.Action))
		}
	}
	r.overrides[o.PolicyID] = append(r.overrides[o.PolicyID], o)
	return nil
}

// Resolve returns the effective policy set for orgID/tenantID, applying
// the most specific unexpired override (tenant-scoped over
// organization-scoped) to each policy and sorting by Priority descending.
func (r *Resolver) Resolve(orgID, tenantID string) []Effective {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Effective, 0, len(r.policies))
	for id, p := range r.policies {
		eff := Effective{StaticPolicy: *p}
		if ov := r.bestOverride(id, orgID, tenantID); ov != nil {
			eff.override = ov
		}
		out = append(out, eff)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

// bestOverride picks the most specific unexpired override for policyID:
// a tenant-scoped override beats an organization-scoped one.
func (r *Resolver) bestOverride(policyID, orgID, tenantID string) *Override {
	var orgMatch, tenantMatch *Override
	for _, o := range r.overrides[policyID] {
		if o.IsExpired() {
			continue
		}
		switch {
		case o.TenantID != "" && o.TenantID == tenantID:
			tenantMatch = o
		case o.OrganizationID != "" && o.OrganizationID == orgID && o.TenantID == "":
			orgMatch = o
		}
	}
	if tenantMatch != nil {
		return tenantMatch
	}
	return orgMatch
}
