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
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	hexRunOn      = regexp.MustCompile(`0x[0-9a-fA-F]{2,}`)
	blockComment  = regexp.MustCompile(`/\*.*?\*/`)
	lineComment   = regexp.MustCompile(`--[^\n]*`)
)

// Normalize prepares a query for the pattern blacklist (check 4): it
// decodes common obfuscation encodings, strips comments, collapses
// whitespace runs, and lowercases. It never touches the tokenizer's own
// notion of string/identifier boundaries -- normalization is purely a
// text-level pass used by the regex blacklist, not by the token-level
// checks, which keeps the two passes' false-positive behavior independent.
func Normalize(query string) string {
	s := query

	if decoded, err := url.QueryUnescape(s); err == nil {
		s = decoded
	}

	s = decodeHexRunOns(s)

	// Doubled backslashes are a common evasion for pattern-based filters
	// that look for a single escape character.
	s = strings.ReplaceAll(s, `\\`, `\`)

	s = blockComment.ReplaceAllString(s, " ")
	s = lineComment.ReplaceAllString(s, " ")
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = strings.ToLower(strings.TrimSpace(s))
	return s
}

// decodeHexRunOns replaces 0x-prefixed hex literals with their decoded
// ASCII text when printable, a common way to smuggle keywords like UNION
// past naive substring filters (0x554e494f4e).
func decodeHexRunOns(s string) string {
	return hexRunOn.ReplaceAllStringFunc(s, func(match string) string {
		digits := match[2:]
		if len(digits)%2 != 0 {
			return match
		}
		var b strings.Builder
		for i := 0; i < len(digits); i += 2 {
			v, err := strconv.ParseUint(digits[i:i+2], 16, 8)
			if err != nil {
				return match
			}
			if v < 0x20 || v > 0x7e {
				return match
			}
			b.WriteByte(byte(v))
		}
		return b.String()
	})
}
