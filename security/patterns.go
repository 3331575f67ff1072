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

package security

import (
	"regexp"
	"strings"
)

// Pattern is one blacklist entry evaluated against the normalized query
// (check 4). Carried forward from the teacher's PolicyPattern, generalized
// from a single fixed category list to an arbitrary Category string so
// callers can add organization-specific entries without a schema change.
type Pattern struct {
	ID          string
	Category    string
	Description string
	Severity    string // "critical", "high", "medium"
	Regex       *regexp.Regexp
}

// defaultPatterns mirrors the teacher's loadDefaultPolicies fallback set,
// generalized with additional entries for obfuscated UNION and
// out-of-band indicators. These are the patterns active when no
// database-backed policy store overrides them.
var defaultPatterns = []Pattern{
	{
		ID:          "sqli-union-select",
		Category:    "sql_injection",
		Description: "UNION SELECT based injection",
		Severity:    "critical",
		Regex:       regexp.MustCompile(`union\s+(all\s+)?select`),
	},
	{
		ID:          "sqli-comment-terminator",
		Category:    "sql_injection",
		Description: "SQL comment used to truncate a statement",
		Severity:    "critical",
		Regex:       regexp.MustCompile(`--|\*/|/\*`),
	},
	{
		ID:          "sqli-or-tautology",
		Category:    "sql_injection",
		Description: "constant tautology (OR 1=1 style)",
		Severity:    "critical",
		Regex:       regexp.MustCompile(`\bor\b\s*['"]?\s*\d+\s*['"]?\s*=\s*['"]?\s*\d+`),
	},
	{
		ID:          "sqli-stacked-statement",
		Category:    "sql_injection",
		Description: "stacked statement (semicolon followed by a second DML/DDL verb)",
		Severity:    "critical",
		Regex:       regexp.MustCompile(`;\s*(select|insert|update|delete|drop|alter|create|exec|execute)\b`),
	},
	{
		ID:          "dangerous-drop-table",
		Category:    "dangerous_query",
		Description: "DROP TABLE",
		Severity:    "critical",
		Regex:       regexp.MustCompile(`drop\s+table`),
	},
	{
		ID:          "dangerous-truncate",
		Category:    "dangerous_query",
		Description: "TRUNCATE TABLE",
		Severity:    "critical",
		Regex:       regexp.MustCompile(`truncate\s+table`),
	},
	{
		ID:          "admin-system-tables",
		Category:    "admin_access",
		Description: "access to system configuration tables",
		Severity:    "high",
		Regex:       regexp.MustCompile(`system_config|admin_settings|pg_shadow|mysql\.user`),
	},
	{
		ID:          "pii-ssn",
		Category:    "pii_detection",
		Description: "US Social Security Number pattern in literal",
		Severity:    "critical",
		Regex:       regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	},
	{
		ID:          "pii-credit-card",
		Category:    "pii_detection",
		Description: "credit card number pattern in literal",
		Severity:    "critical",
		Regex:       regexp.MustCompile(`\b\d{4}[ -]?\d{4}[ -]?\d{4}[ -]?\d{4}\b`),
	},
}

// hasRegexMeta reports whether s contains characters that make it worth
// compiling as a pattern rather than matching as a plain substring -- per
// the false-positive policy, a blacklist entry without metacharacters is
// a literal substring match, not a regex search over token boundaries.
func hasRegexMeta(s string) bool {
	return strings.ContainsAny(s, `\^$.|?*+()[]{}`)
}

// MatchPatterns returns the first pattern (in list order) whose Regex
// matches the normalized query, or nil if none match.
func MatchPatterns(normalized string, patterns []Pattern) *Pattern {
	for i := range patterns {
		if patterns[i].Regex.MatchString(normalized) {
			return &patterns[i]
		}
	}
	return nil
}
