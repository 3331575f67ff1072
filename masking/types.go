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

// Package masking implements the Masking Engine (§4.D): result-time
// rewriting of sensitive column values, gated by role/permission/time/
// network context and selected by column-pattern priority. Re-expressed in
// Go from original_source's data_masking.rs/masking_rules.rs/
// masking_formatters.rs -- sync.RWMutex in place of tokio::sync::RwLock,
// plain structs in place of serde-tagged enums.
package masking

import (
	"regexp"
	"strings"
	"time"
)

// Kind selects which Masker variant a Rule applies.
type Kind string

const (
	KindFull             Kind = "full"
	KindPartial          Kind = "partial"
	KindHash             Kind = "hash"
	KindFormatPreserving Kind = "format_preserving"
	KindToken            Kind = "token"
)

// HashAlgorithm is the digest used by a Hash masker.
type HashAlgorithm string

const (
	HashSHA256 HashAlgorithm = "sha256"
	HashSHA512 HashAlgorithm = "sha512"
)

// MaskSpec parameterizes one Kind's behavior.
type MaskSpec struct {
	Kind Kind

	// Partial
	PrefixVisible int
	SuffixVisible int

	// Hash
	Algorithm     HashAlgorithm
	DisplayLength int

	// FormatPreserving: pattern uses '#' for a masked digit, any other
	// rune must match the corresponding input rune literally (e.g.
	// "###-##-####" for an SSN) or the masker falls back to Full.
	FormatPattern string
	MaskChar      rune

	// Token
	TokenPrefix string
}

// ColumnPattern decides whether a Rule applies to a given column name.
type ColumnPattern struct {
	ExactMatch      []string
	WildcardPattern []string // '*' glob, e.g. "*_email", "credit_*"
	RegexPattern    []string
}

// Matches reports whether columnName satisfies any of the pattern's
// clauses (exact, wildcard, or regex -- first match wins).
func (p ColumnPattern) Matches(columnName string) bool {
	for _, exact := range p.ExactMatch {
		if exact == columnName {
			return true
		}
	}
	for _, pattern := range p.WildcardPattern {
		if wildcardMatch(pattern, columnName) {
			return true
		}
	}
	for _, pattern := range p.RegexPattern {
		if re, err := regexp.Compile(pattern); err == nil && re.MatchString(columnName) {
			return true
		}
	}
	return false
}

// wildcardMatch supports a single '*' glob on either or both ends, e.g.
// "*_email", "credit_*", "*_secret_*".
func wildcardMatch(pattern, text string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == text
	}
	pos := 0
	for i, part := range parts {
		if part == "" {
			continue
		}
		switch {
		case i == 0 && !strings.HasPrefix(pattern, "*"):
			if !strings.HasPrefix(text, part) {
				return false
			}
			pos = len(part)
		case i == len(parts)-1 && !strings.HasSuffix(pattern, "*"):
			if !strings.HasSuffix(text, part) {
				return false
			}
		default:
			idx := strings.Index(text[pos:], part)
			if idx < 0 {
				return false
			}
			pos += idx + len(part)
		}
	}
	return true
}

// Rule is one column-targeted masking rule within a Policy.
type Rule struct {
	Name          string
	Description   string
	Spec          MaskSpec
	ColumnPattern ColumnPattern
	Priority      int // higher wins among applicable rules
	Enabled       bool
}

// TimeRange is an inclusive "HH:MM"-"HH:MM" window.
type TimeRange struct {
	Start string
	End   string
}

// TimeConstraints gates a Policy to specific weekdays/time windows.
type TimeConstraints struct {
	AllowedWeekdays   []time.Weekday
	AllowedTimeRanges []TimeRange
}

func (c *TimeConstraints) allows(ts time.Time) bool {
	allowedDay := false
	for _, d := range c.AllowedWeekdays {
		if d == ts.Weekday() {
			allowedDay = true
			break
		}
	}
	if !allowedDay {
		return false
	}
	clock := ts.Format("15:04")
	for _, r := range c.AllowedTimeRanges {
		if clock >= r.Start && clock <= r.End {
			return true
		}
	}
	return false
}

// NetworkConstraints gates a Policy to specific source IP prefixes.
type NetworkConstraints struct {
	AllowedIPs []string
	DeniedIPs  []string
}

func (c *NetworkConstraints) allows(ip string) bool {
	for _, denied := range c.DeniedIPs {
		if strings.HasPrefix(ip, denied) {
			return false
		}
	}
	if len(c.AllowedIPs) == 0 {
		return true
	}
	for _, allowed := range c.AllowedIPs {
		if strings.HasPrefix(ip, allowed) {
			return true
		}
	}
	return false
}

// Purpose records why a caller is reading masked data, for audit context.
type Purpose string

const (
	PurposeNormal   Purpose = "normal"
	PurposeAnalysis Purpose = "analysis"
	PurposeAudit    Purpose = "audit"
)

// Context carries the gating inputs for one masking invocation (§4.D
// step 1's "context gates").
type Context struct {
	Roles       []string
	Permissions []string
	SourceIP    string
	Timestamp   time.Time
	Purpose     Purpose
	TenantID    string
}

// fingerprint derives the cache key component contributed by a Context:
// the same column under two different role sets must not share a cached
// rule selection, since role gating can change which rule applies.
func (c Context) fingerprint() string {
	return strings.Join(c.Roles, ",") + "|" + strings.Join(c.Permissions, ",")
}

// Policy groups Rules under shared role/permission/time/network gates.
type Policy struct {
	Name               string
	Roles              []string // empty = applies to all roles
	Permissions        []string // empty = applies to all permissions
	TimeConstraints    *TimeConstraints
	NetworkConstraints *NetworkConstraints
	Rules              []Rule
}

// selectRules returns this policy's enabled rules if ctx satisfies every
// configured gate, or nil otherwise.
func (p *Policy) selectRules(ctx Context) []Rule {
	if len(p.Roles) > 0 && !anyContains(p.Roles, ctx.Roles) {
		return nil
	}
	if len(p.Permissions) > 0 && !anyContains(p.Permissions, ctx.Permissions) {
		return nil
	}
	if p.TimeConstraints != nil && !p.TimeConstraints.allows(ctx.Timestamp) {
		return nil
	}
	if p.NetworkConstraints != nil && ctx.SourceIP != "" && !p.NetworkConstraints.allows(ctx.SourceIP) {
		return nil
	}
	out := make([]Rule, 0, len(p.Rules))
	for _, r := range p.Rules {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out
}

func anyContains(needles, haystack []string) bool {
	for _, n := range needles {
		for _, h := range haystack {
			if n == h {
				return true
			}
		}
	}
	return false
}
