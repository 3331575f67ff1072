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

package zerotrust

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"securedb/platform/shared/coreerr"
)

// TokenIssuer mints and validates session bearer tokens, binding
// session_id/user_id/security_level into HMAC-signed JWT claims per
// §4.K. Grounded on the teacher's support-demo login handler
// (jwt.NewWithClaims(jwt.SigningMethodHS256, ...)) and agent/run.go's
// jwt.Parse/MapClaims validation idiom.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer constructs a TokenIssuer signing with secret and
// issuing tokens valid for ttl.
func NewTokenIssuer(secret []byte, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{secret: secret, ttl: ttl}
}

// Issue mints a bearer token for an authenticated session.
func (i *TokenIssuer) Issue(sessionID, userID string, securityLevel string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"session_id":     sessionID,
		"user_id":        userID,
		"security_level": securityLevel,
		"iat":            time.Now().Unix(),
		"exp":            time.Now().Add(i.ttl).Unix(),
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("zerotrust: sign token: %w", err)
	}
	return signed, nil
}

// Claims is the parsed content of a session bearer token.
type Claims struct {
	SessionID     string
	UserID        string
	SecurityLevel string
}

// Validate parses and verifies tokenString, returning its bound claims.
func (i *TokenIssuer) Validate(tokenString string) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return Claims{}, coreerr.New(coreerr.SecurityViolation, "zerotrust.Validate", "invalid or expired token")
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, coreerr.New(coreerr.SecurityViolation, "zerotrust.Validate", "invalid token claims")
	}

	return Claims{
		SessionID:     claimString(mapClaims, "session_id"),
		UserID:        claimString(mapClaims, "user_id"),
		SecurityLevel: claimString(mapClaims, "security_level"),
	}, nil
}

func claimString(claims jwt.MapClaims, key string) string {
	if val, ok := claims[key].(string); ok {
		return val
	}
	return ""
}
