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
	"strings"
	"testing"

	"securedb/platform/shared/coreerr"
)

func TestValidate_AcceptsParameterizedSelect(t *testing.T) {
	v := NewValidator(DefaultConfig(), nil)
	rec, err := v.Validate("sess-1", "tenant-a", "SELECT id, name FROM users WHERE id = ?")
	if err != nil {
		t.Fatalf("expected acceptance, got error: %v", err)
	}
	if !rec.Accepted {
		t.Fatalf("expected Accepted=true, got record %+v", rec)
	}
}

func TestValidate_RejectsOverLengthQuery(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxQueryLength = 20
	v := NewValidator(cfg, nil)
	_, err := v.Validate("s", "t", "SELECT * FROM a_very_long_table_name_here")
	assertKind(t, err, coreerr.SecurityViolation)
}

func TestValidate_RejectsDisallowedVerb(t *testing.T) {
	v := NewValidator(DefaultConfig(), nil)
	_, err := v.Validate("s", "t", "DROP TABLE users")
	assertKind(t, err, coreerr.SecurityViolation)
}

func TestValidate_RejectsInlineStringLiteral(t *testing.T) {
	v := NewValidator(DefaultConfig(), nil)
	_, err := v.Validate("s", "t", "SELECT * FROM users WHERE name = 'ada'")
	assertKind(t, err, coreerr.SecurityViolation)
}

func TestValidate_AllowsNumericLiteralInLimit(t *testing.T) {
	v := NewValidator(DefaultConfig(), nil)
	rec, err := v.Validate("s", "t", "SELECT * FROM users LIMIT 10")
	if err != nil {
		t.Fatalf("expected acceptance, got error: %v", err)
	}
	if !rec.Accepted {
		t.Fatal("expected numeric literal to be accepted")
	}
}

func TestValidate_RejectsUnionSelectPattern(t *testing.T) {
	v := NewValidator(DefaultConfig(), nil)
	_, err := v.Validate("s", "t", "SELECT id FROM a WHERE id = ? UNION SELECT password FROM admin_users")
	assertKind(t, err, coreerr.SecurityViolation)
}

func TestValidate_DoesNotFlagIdentifierContainingUnion(t *testing.T) {
	v := NewValidator(DefaultConfig(), nil)
	rec, err := v.Validate("s", "t", "SELECT union_member FROM teams WHERE id = ?")
	if err != nil {
		t.Fatalf("expected acceptance for identifier containing 'union', got error: %v", err)
	}
	if !rec.Accepted {
		t.Fatal("expected acceptance")
	}
}

func TestValidate_RejectsStackedStatement(t *testing.T) {
	v := NewValidator(DefaultConfig(), nil)
	_, err := v.Validate("s", "t", "SELECT id FROM a WHERE id = ?; DROP TABLE a")
	assertKind(t, err, coreerr.SecurityViolation)
}

func TestValidate_RejectsTimeBasedBlindProbe(t *testing.T) {
	v := NewValidator(DefaultConfig(), nil)
	_, err := v.Validate("s", "t", "SELECT sleep(5) FROM a WHERE id = ?")
	assertKind(t, err, coreerr.SecurityViolation)
}

func TestValidate_RejectsErrorBasedProbe(t *testing.T) {
	v := NewValidator(DefaultConfig(), nil)
	_, err := v.Validate("s", "t", "SELECT extractvalue(1, concat(0x7e, version())) FROM a")
	assertKind(t, err, coreerr.SecurityViolation)
}

func TestValidate_RejectsBooleanTautology(t *testing.T) {
	v := NewValidator(DefaultConfig(), nil)
	_, err := v.Validate("s", "t", "SELECT * FROM users WHERE id = 1 OR 1=1")
	assertKind(t, err, coreerr.SecurityViolation)
}

type fakeHook struct {
	blocked bool
	reason  string
}

func (f *fakeHook) CheckQuery(sessionID, tenantID, normalizedQuery string) (bool, string) {
	return f.blocked, f.reason
}

func TestValidate_PolicyHookRejection(t *testing.T) {
	v := NewValidator(DefaultConfig(), &fakeHook{blocked: true, reason: "tenant override forbids SELECT"})
	_, err := v.Validate("s", "tenant-b", "SELECT id FROM a WHERE id = ?")
	assertKind(t, err, coreerr.SecurityViolation)
	if !strings.Contains(err.Error(), "tenant override") {
		t.Errorf("expected policy hook reason in error, got: %v", err)
	}
}

func assertKind(t *testing.T, err error, want coreerr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatal("expected rejection, got nil error")
	}
	if got := coreerr.KindOf(err); got != want {
		t.Errorf("KindOf(err) = %q, want %q (err=%v)", got, want, err)
	}
}

func TestTokenize_RespectsQuotedUnionIdentifier(t *testing.T) {
	tokens := Tokenize(`SELECT "union" FROM t`)
	found := false
	for _, tok := range tokens {
		if tok.Type == TokenIdentifier && tok.Text == `"union"` {
			found = true
		}
	}
	if !found {
		t.Error("expected double-quoted union to tokenize as an identifier, not a keyword")
	}
}

func TestNormalize_DecodesHexRunOn(t *testing.T) {
	got := Normalize("SELECT 0x554e494f4e")
	if !strings.Contains(got, "union") {
		t.Errorf("expected hex run-on to decode to 'union', got %q", got)
	}
}
