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

// Package zerotrust implements Continuous Authentication (§4.K): a
// trust-score/risk-bucket model layered over the Session Manager, with
// idle and reauthentication-interval expiry and JWT bearer token
// issuance. Re-expressed in Go from original_source's
// zero_trust/continuous_auth.rs (ContinuousAuth, SessionInfo, RiskLevel)
// and agent/db_auth.go's JWT claims idiom.
package zerotrust

import "time"

// TrustScore is a 0-100 confidence measure, mirroring the original's
// TrustScore type alias (u8).
type TrustScore int

// RiskLevel buckets a TrustScore for policy decisions.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// EventType classifies an AuthEvent.
type EventType string

const (
	EventLogin              EventType = "login"
	EventReauthentication   EventType = "reauthentication"
	EventDeviceChange       EventType = "device_change"
	EventLocationChange     EventType = "location_change"
	EventAnomalousActivity  EventType = "anomalous_activity"
	EventSessionTimeout     EventType = "session_timeout"
	EventManualVerification EventType = "manual_verification"
)

// AuthEvent records one trust-affecting occurrence in a tracked
// session's history.
type AuthEvent struct {
	EventType EventType
	Timestamp time.Time
	RiskScore TrustScore
	Details   string
}

// TrackedSession is the continuous-auth view of a session: an
// authentication/trust history layered on top of session.Session,
// keyed by the same session ID.
type TrackedSession struct {
	SessionID         string
	UserID            string
	DeviceID          string
	InitialAuthTime   time.Time
	LastAuthTime      time.Time
	LastActivityTime  time.Time
	CurrentTrustScore TrustScore
	AuthEvents        []AuthEvent
	RiskLevel         RiskLevel
}

// IsExpired reports whether the session has been idle longer than
// maxIdleDuration, evaluated as of now.
func (t *TrackedSession) IsExpired(now time.Time, maxIdleDuration time.Duration) bool {
	return now.Sub(t.LastActivityTime) > maxIdleDuration
}

func (t *TrackedSession) recordActivity(now time.Time) {
	t.LastActivityTime = now
}

func (t *TrackedSession) addAuthEvent(event AuthEvent) {
	t.LastAuthTime = event.Timestamp
	t.AuthEvents = append(t.AuthEvents, event)
}

// VerificationResult is the outcome of a continuous-auth check.
type VerificationResult struct {
	Success    bool
	TrustScore TrustScore
	Reason     string
	Details    map[string]string
}
