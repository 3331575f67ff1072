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

// TokenType classifies one lexical unit of a SQL statement. The Security
// Validator's parameterization mandate (check 3) and semantic detectors
// (check 5) both operate on this token stream rather than on raw substrings,
// so that identifiers like union_member never trip a pattern meant for the
// UNION keyword.
type TokenType int

const (
	TokenKeyword TokenType = iota
	TokenIdentifier
	TokenString
	TokenNumber
	TokenOperator
	TokenPlaceholder
	TokenComment
	TokenPunctuation
	TokenWhitespace
)

// Token is one lexical unit produced by Tokenize.
type Token struct {
	Type TokenType
	Text string
}

// sqlKeywords is the set of reserved words recognized as TokenKeyword. It is
// intentionally broad: a superset keeps identifier-vs-keyword ambiguity
// resolved in favor of "keyword", which only affects classification, not
// whether a query is blocked.
var sqlKeywords = map[string]bool{
	"select": true, "insert": true, "update": true, "delete": true,
	"from": true, "where": true, "join": true, "inner": true, "outer": true,
	"left": true, "right": true, "on": true, "and": true, "or": true,
	"not": true, "null": true, "true": true, "false": true, "as": true,
	"order": true, "by": true, "group": true, "having": true, "union": true,
	"all": true, "distinct": true, "limit": true, "offset": true,
	"into": true, "values": true, "set": true, "create": true, "drop": true,
	"alter": true, "table": true, "database": true, "index": true,
	"grant": true, "revoke": true, "truncate": true, "cascade": true,
	"exec": true, "execute": true, "declare": true, "case": true,
	"when": true, "then": true, "else": true, "end": true, "like": true,
	"in": true, "between": true, "is": true, "exists": true, "begin": true,
	"commit": true, "rollback": true, "sleep": true, "benchmark": true,
	"waitfor": true, "delay": true,
}

// IsKeyword reports whether word (case-insensitive) is a recognized SQL
// keyword.
func IsKeyword(word string) bool {
	return sqlKeywords[strings.ToLower(word)]
}

// Tokenize lexes a SQL statement into a token stream, respecting quoted
// string literals, bracketed/backtick/double-quoted identifiers, line and
// block comments, and both `?` and `$1`/`:name` placeholder styles. It never
// panics on malformed input: an unterminated quote consumes to end of input
// as a single string token, which is the safe (fail-closed) reading.
func Tokenize(query string) []Token {
	var tokens []Token
	runes := []rune(query)
	i, n := 0, len(runes)

	for i < n {
		c := runes[i]

		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			j := i
			for j < n && isSpace(runes[j]) {
				j++
			}
			tokens = append(tokens, Token{TokenWhitespace, string(runes[i:j])})
			i = j

		case c == '-' && i+1 < n && runes[i+1] == '-':
			j := i
			for j < n && runes[j] != '\n' {
				j++
			}
			tokens = append(tokens, Token{TokenComment, string(runes[i:j])})
			i = j

		case c == '/' && i+1 < n && runes[i+1] == '*':
			j := i + 2
			for j+1 < n && !(runes[j] == '*' && runes[j+1] == '/') {
				j++
			}
			end := j + 2
			if end > n {
				end = n
			}
			tokens = append(tokens, Token{TokenComment, string(runes[i:end])})
			i = end

		case c == '\'' || c == '"' || c == '`':
			j := consumeQuoted(runes, i, c)
			typ := TokenString
			if c != '\'' {
				typ = TokenIdentifier
			}
			tokens = append(tokens, Token{typ, string(runes[i:j])})
			i = j

		case c == '?':
			tokens = append(tokens, Token{TokenPlaceholder, "?"})
			i++

		case c == '$' && i+1 < n && isDigit(runes[i+1]):
			j := i + 1
			for j < n && isDigit(runes[j]) {
				j++
			}
			tokens = append(tokens, Token{TokenPlaceholder, string(runes[i:j])})
			i = j

		case c == ':' && i+1 < n && isIdentStart(runes[i+1]):
			j := i + 1
			for j < n && isIdentPart(runes[j]) {
				j++
			}
			tokens = append(tokens, Token{TokenPlaceholder, string(runes[i:j])})
			i = j

		case isDigit(c):
			j := i
			for j < n && (isDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			tokens = append(tokens, Token{TokenNumber, string(runes[i:j])})
			i = j

		case isIdentStart(c):
			j := i
			for j < n && isIdentPart(runes[j]) {
				j++
			}
			word := string(runes[i:j])
			typ := TokenIdentifier
			if IsKeyword(word) {
				typ = TokenKeyword
			}
			tokens = append(tokens, Token{typ, word})
			i = j

		case strings.ContainsRune("=<>!+-*/%|&^~", c):
			j := i
			for j < n && strings.ContainsRune("=<>!", runes[j]) {
				j++
			}
			if j == i {
				j = i + 1
			}
			tokens = append(tokens, Token{TokenOperator, string(runes[i:j])})
			i = j

		default:
			tokens = append(tokens, Token{TokenPunctuation, string(c)})
			i++
		}
	}
	return tokens
}

// consumeQuoted returns the index just past a quoted run starting at i,
// honoring doubled-quote escaping (the SQL-standard way to embed a literal
// quote character) and falling back to end-of-input if unterminated.
func consumeQuoted(runes []rune, i int, quote rune) int {
	n := len(runes)
	j := i + 1
	for j < n {
		if runes[j] == quote {
			if j+1 < n && runes[j+1] == quote {
				j += 2
				continue
			}
			return j + 1
		}
		if runes[j] == '\\' && j+1 < n {
			j += 2
			continue
		}
		j++
	}
	return n
}

func isSpace(r rune) bool      { return r == ' ' || r == '\t' || r == '\n' || r == '\r' }
func isDigit(r rune) bool      { return r >= '0' && r <= '9' }
func isIdentStart(r rune) bool { return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') }
func isIdentPart(r rune) bool  { return isIdentStart(r) || isDigit(r) }

// NonTrivial filters whitespace and comment tokens, the stream most checks
// actually want to reason about.
func NonTrivial(tokens []Token) []Token {
	out := make([]Token, 0, len(tokens))
	for _, t := range tokens {
		if t.Type == TokenWhitespace || t.Type == TokenComment {
			continue
		}
		out = append(out, t)
	}
	return out
}

// LeadingVerb returns the lowercased first keyword/identifier token, used by
// the query-type allow-list (check 2).
func LeadingVerb(tokens []Token) string {
	for _, t := range NonTrivial(tokens) {
		if t.Type == TokenKeyword || t.Type == TokenIdentifier {
			return strings.ToLower(t.Text)
		}
		return ""
	}
	return ""
}
