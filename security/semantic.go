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

import "strings"

// SemanticFinding is one detector's verdict (check 5). Detectors run over
// the token stream, not raw text, so an identifier like union_member never
// satisfies the "UNION after a predicate" detector -- it only fires on an
// actual TokenKeyword "union".
type SemanticFinding struct {
	Detector    string
	Description string
}

var timeBenchFuncs = map[string]bool{
	"sleep": true, "benchmark": true, "pg_sleep": true, "waitfor": true,
}

var errorProbeFuncs = map[string]bool{
	"extractvalue": true, "updatexml": true,
}

// RunSemanticDetectors evaluates every detector against tokens and returns
// the first finding, short-circuiting like the rest of the pipeline.
func RunSemanticDetectors(tokens []Token) *SemanticFinding {
	nt := NonTrivial(tokens)

	if f := detectTautology(nt); f != nil {
		return f
	}
	if f := detectStackedStatements(nt); f != nil {
		return f
	}
	if f := detectTimeBenchmark(nt); f != nil {
		return f
	}
	if f := detectUnionAfterPredicate(nt); f != nil {
		return f
	}
	if f := detectErrorBasedProbe(nt); f != nil {
		return f
	}
	return nil
}

// detectTautology looks for <value> <op> <value> where both sides are
// identical literals/identifiers flanking = inside a WHERE/ON/AND/OR
// context, e.g. 1=1 or 'a'='a'.
func detectTautology(tokens []Token) *SemanticFinding {
	for i := 0; i+2 < len(tokens); i++ {
		left, op, right := tokens[i], tokens[i+1], tokens[i+2]
		if op.Type != TokenOperator || op.Text != "=" {
			continue
		}
		if (left.Type == TokenNumber || left.Type == TokenString) && left.Text == right.Text {
			return &SemanticFinding{Detector: "tautology", Description: "constant equality tautology detected"}
		}
	}
	return nil
}

// detectStackedStatements flags a second statement-leading keyword
// (SELECT/INSERT/UPDATE/DELETE/DROP/ALTER/CREATE/EXEC) following a
// statement-terminating semicolon -- the token-level equivalent of the
// regex stacked-statement pattern, immune to comment/whitespace padding.
func detectStackedStatements(tokens []Token) *SemanticFinding {
	leadVerbs := map[string]bool{
		"select": true, "insert": true, "update": true, "delete": true,
		"drop": true, "alter": true, "create": true, "exec": true, "execute": true,
	}
	for i, t := range tokens {
		if t.Type != TokenPunctuation || t.Text != ";" {
			continue
		}
		for j := i + 1; j < len(tokens); j++ {
			if tokens[j].Type != TokenKeyword && tokens[j].Type != TokenIdentifier {
				continue
			}
			if leadVerbs[strings.ToLower(tokens[j].Text)] {
				return &SemanticFinding{Detector: "stacked_statement", Description: "statement stacked after semicolon"}
			}
			break
		}
	}
	return nil
}

// detectTimeBenchmark flags calls to time-delay / benchmark functions used
// for blind-injection timing oracles.
func detectTimeBenchmark(tokens []Token) *SemanticFinding {
	for i, t := range tokens {
		name := strings.ToLower(t.Text)
		if (t.Type == TokenKeyword || t.Type == TokenIdentifier) && timeBenchFuncs[name] {
			if i+1 < len(tokens) && tokens[i+1].Type == TokenPunctuation && tokens[i+1].Text == "(" {
				return &SemanticFinding{Detector: "time_blind", Description: "time/benchmark function call: " + name}
			}
			if name == "waitfor" {
				return &SemanticFinding{Detector: "time_blind", Description: "WAITFOR DELAY construct"}
			}
		}
	}
	return nil
}

// detectUnionAfterPredicate flags a UNION keyword that follows a WHERE
// clause predicate, the structural shape of a classic UNION-based
// injection appended to an otherwise well-formed query.
func detectUnionAfterPredicate(tokens []Token) *SemanticFinding {
	sawWhere := false
	sawPredicateOp := false
	for _, t := range tokens {
		lower := strings.ToLower(t.Text)
		switch {
		case t.Type == TokenKeyword && lower == "where":
			sawWhere = true
		case sawWhere && t.Type == TokenOperator:
			sawPredicateOp = true
		case t.Type == TokenKeyword && lower == "union":
			if sawWhere && sawPredicateOp {
				return &SemanticFinding{Detector: "union_after_predicate", Description: "UNION appended after a WHERE predicate"}
			}
		}
	}
	return nil
}

// detectErrorBasedProbe flags MySQL/Postgres error-based extraction
// functions (ExtractValue/UpdateXML) and version-signature CONCAT probes
// used to exfiltrate data via crafted error messages.
func detectErrorBasedProbe(tokens []Token) *SemanticFinding {
	for i, t := range tokens {
		name := strings.ToLower(t.Text)
		if (t.Type == TokenKeyword || t.Type == TokenIdentifier) && errorProbeFuncs[name] {
			if i+1 < len(tokens) && tokens[i+1].Type == TokenPunctuation && tokens[i+1].Text == "(" {
				return &SemanticFinding{Detector: "error_based_probe", Description: "error-based extraction function: " + name}
			}
		}
		if name == "concat" && i+1 < len(tokens) && tokens[i+1].Text == "(" {
			if containsVersionProbe(tokens[i:]) {
				return &SemanticFinding{Detector: "error_based_probe", Description: "version-signature CONCAT probe"}
			}
		}
	}
	return nil
}

func containsVersionProbe(tokens []Token) bool {
	for j := 0; j < len(tokens) && j < 12; j++ {
		lower := strings.ToLower(tokens[j].Text)
		if lower == "version" || lower == "@@version" {
			return true
		}
	}
	return false
}
