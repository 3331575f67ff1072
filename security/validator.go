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

// Package security implements the Security Validator: the single,
// mandatory path by which a query reaches a driver. It is grounded on the
// teacher's agent.DatabasePolicyEngine (ordered, short-circuiting checks
// over cached regex policies) generalized into a fixed six-step pipeline
// with a shared tokenizer backing both the parameterization mandate and
// the semantic injection detectors, per this repo's token-level
// false-positive policy.
package security

import (
	"sync"
	"time"

	"securedb/platform/shared/coreerr"
)

// Config bounds the Validator's static checks.
type Config struct {
	MaxQueryLength int
	AllowedVerbs   []string // e.g. "select", "insert", "update", "delete"
}

// DefaultConfig mirrors the teacher's own defaults: a generous length
// ceiling and the four DML verbs most control-plane callers need.
func DefaultConfig() Config {
	return Config{
		MaxQueryLength: 8192,
		AllowedVerbs:   []string{"select", "insert", "update", "delete"},
	}
}

// PolicyHook is the optional, per-session/per-tenant check 6. It is
// satisfied by the policy package's PolicyOverride/PolicyTier resolution;
// Validator only depends on this narrow interface to avoid an import
// cycle between security and policy.
type PolicyHook interface {
	CheckQuery(sessionID, tenantID, normalizedQuery string) (blocked bool, reason string)
}

// ValidationRecord is produced for every query the Validator evaluates,
// accepted or rejected, and consumed asynchronously by the Audit Log.
type ValidationRecord struct {
	Query         string
	Normalized    string
	Accepted      bool
	FailedCheck   string
	Reason        string
	TriggeredID   string
	Severity      string
	ProcessingTime time.Duration
	Timestamp     time.Time
}

// Validator runs the ordered, short-circuiting check pipeline.
type Validator struct {
	cfg      Config
	mu       sync.RWMutex
	patterns []Pattern
	hook     PolicyHook
}

// NewValidator constructs a Validator seeded with the default pattern set.
// Patterns can later be replaced wholesale by SetPatterns, mirroring the
// teacher's database-backed policy refresh.
func NewValidator(cfg Config, hook PolicyHook) *Validator {
	return &Validator{cfg: cfg, patterns: append([]Pattern(nil), defaultPatterns...), hook: hook}
}

// SetPatterns atomically replaces the active pattern blacklist.
func (v *Validator) SetPatterns(patterns []Pattern) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.patterns = patterns
}

// Validate runs query through the six ordered checks, returning a
// ValidationRecord and, on rejection, a coreerr of Kind SecurityViolation.
// ThreatDetected is reserved for session-level anomaly breaches raised by
// the continuous-auth engine, not for per-query rejections here.
func (v *Validator) Validate(sessionID, tenantID, query string) (*ValidationRecord, error) {
	start := time.Now()
	rec := &ValidationRecord{Query: query, Timestamp: start}

	// 1. Length ceiling.
	if len(query) > v.cfg.MaxQueryLength {
		return v.reject(rec, start, "length_ceiling", "critical", "",
			"query exceeds maximum length of "+itoa(v.cfg.MaxQueryLength)+" bytes")
	}

	tokens := Tokenize(query)

	// 2. Query-type allow-list.
	verb := LeadingVerb(tokens)
	if !v.verbAllowed(verb) {
		return v.reject(rec, start, "verb_allowlist", "high", "",
			"query verb '"+verb+"' is not in the allowed list")
	}

	// 3. Parameterization mandate: string literals must arrive as bound
	// placeholders, never inlined into the statement text.
	if lit := firstDisallowedLiteral(tokens); lit != nil {
		return v.reject(rec, start, "parameterization", "critical", "",
			"inline string literal where a bound placeholder was expected: "+lit.Text)
	}

	// 4. Pattern blacklist against the normalized query.
	normalized := Normalize(query)
	rec.Normalized = normalized
	v.mu.RLock()
	patterns := v.patterns
	v.mu.RUnlock()
	if p := MatchPatterns(normalized, patterns); p != nil {
		return v.reject(rec, start, p.Category, p.Severity, p.ID, p.Description)
	}

	// 5. Semantic injection detectors over the token stream.
	if finding := RunSemanticDetectors(tokens); finding != nil {
		return v.reject(rec, start, finding.Detector, "critical", "", finding.Description)
	}

	// 6. Policy hook.
	if v.hook != nil {
		if blocked, reason := v.hook.CheckQuery(sessionID, tenantID, normalized); blocked {
			return v.reject(rec, start, "policy_hook", "high", "", reason)
		}
	}

	rec.Accepted = true
	rec.ProcessingTime = time.Since(start)
	return rec, nil
}

func (v *Validator) reject(rec *ValidationRecord, start time.Time, check, severity, patternID, reason string) (*ValidationRecord, error) {
	rec.Accepted = false
	rec.FailedCheck = check
	rec.Severity = severity
	rec.TriggeredID = patternID
	rec.Reason = reason
	rec.ProcessingTime = time.Since(start)
	return rec, coreerr.New(coreerr.SecurityViolation, "security.Validate", reason)
}

func (v *Validator) verbAllowed(verb string) bool {
	for _, allowed := range v.cfg.AllowedVerbs {
		if verb == allowed {
			return true
		}
	}
	return false
}

// firstDisallowedLiteral returns the first inline string literal token
// found anywhere in the statement. Numeric literals are exempt: unlike
// strings they cannot carry an unescaped quote to break out of the
// surrounding clause, and rejecting them would block common, harmless
// constructs like LIMIT 10.
func firstDisallowedLiteral(tokens []Token) *Token {
	for i := range tokens {
		if tokens[i].Type == TokenString {
			return &tokens[i]
		}
	}
	return nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	if neg {
		b = append([]byte{'-'}, b...)
	}
	return string(b)
}
