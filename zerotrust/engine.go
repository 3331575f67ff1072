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
	"sync"
	"time"

	"securedb/platform/shared/coreerr"
)

// Default thresholds, carried over unchanged from the original's
// ContinuousAuth::new().
const (
	DefaultMaxIdleDuration          = 30 * time.Minute
	DefaultReauthenticationInterval = time.Hour
	DefaultLowRiskThreshold         TrustScore = 70
	DefaultMediumRiskThreshold      TrustScore = 50
	DefaultHighRiskThreshold        TrustScore = 30

	// anomalyPenalty is the trust score deduction applied by
	// HandleAnomaly, saturating at 0.
	anomalyPenalty TrustScore = 30
)

// Engine is the continuous authentication engine (§4.K): it tracks a
// trust score per session and enforces idle/reauthentication expiry on
// top of whatever the Session Manager already enforces for raw TTL.
type Engine struct {
	mu       sync.RWMutex
	sessions map[string]*TrackedSession

	maxIdleDuration          time.Duration
	reauthenticationInterval time.Duration
	lowRiskThreshold         TrustScore
	mediumRiskThreshold      TrustScore
	highRiskThreshold        TrustScore
}

// New constructs an Engine with the default thresholds.
func New() *Engine {
	return &Engine{
		sessions:                 make(map[string]*TrackedSession),
		maxIdleDuration:          DefaultMaxIdleDuration,
		reauthenticationInterval: DefaultReauthenticationInterval,
		lowRiskThreshold:         DefaultLowRiskThreshold,
		mediumRiskThreshold:      DefaultMediumRiskThreshold,
		highRiskThreshold:        DefaultHighRiskThreshold,
	}
}

// StartSession begins trust tracking for a session, seeded with an
// initial Login auth event.
func (e *Engine) StartSession(sessionID, userID, deviceID string, initialTrustScore TrustScore) {
	now := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessions[sessionID] = &TrackedSession{
		SessionID:         sessionID,
		UserID:            userID,
		DeviceID:          deviceID,
		InitialAuthTime:   now,
		LastAuthTime:      now,
		LastActivityTime:  now,
		CurrentTrustScore: initialTrustScore,
		AuthEvents: []AuthEvent{{
			EventType: EventLogin,
			Timestamp: now,
			RiskScore: 0,
			Details:   "Initial authentication",
		}},
		RiskLevel: RiskLow,
	}
}

// GetSession returns a copy of the tracked session state.
func (e *Engine) GetSession(sessionID string) (TrackedSession, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.sessions[sessionID]
	if !ok {
		return TrackedSession{}, false
	}
	return *s, true
}

// EndSession stops trust tracking for a session.
func (e *Engine) EndSession(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sessions, sessionID)
}

// RecordActivity marks a session as active at the current time,
// resetting its idle clock.
func (e *Engine) RecordActivity(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.sessions[sessionID]; ok {
		s.recordActivity(time.Now())
	}
}

// VerifySession checks a session's continuous-auth standing: idle
// expiry, reauthentication-interval expiry, and trust-score floor, in
// that order.
func (e *Engine) VerifySession(sessionID string) VerificationResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[sessionID]
	if !ok {
		return VerificationResult{Success: false, Reason: "Session not found"}
	}

	now := time.Now()
	if s.IsExpired(now, e.maxIdleDuration) {
		delete(e.sessions, sessionID)
		return VerificationResult{Success: false, Reason: "Session expired"}
	}

	if now.Sub(s.LastAuthTime) > e.reauthenticationInterval {
		return VerificationResult{
			Success:    false,
			TrustScore: s.CurrentTrustScore,
			Reason:     "Reauthentication required",
		}
	}

	if s.CurrentTrustScore < e.highRiskThreshold {
		return VerificationResult{Success: false, TrustScore: s.CurrentTrustScore, Reason: "Trust score too low"}
	}

	return VerificationResult{Success: true, TrustScore: s.CurrentTrustScore, Reason: "Session valid"}
}

// UpdateTrustScore records a new trust score and the event that caused
// the change, recomputing the session's risk level.
func (e *Engine) UpdateTrustScore(sessionID string, newScore TrustScore, eventType EventType, details string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[sessionID]
	if !ok {
		return coreerr.New(coreerr.NotFound, "zerotrust.UpdateTrustScore", "session not found: "+sessionID)
	}

	delta := s.CurrentTrustScore - newScore
	if delta < 0 {
		delta = -delta
	}

	s.addAuthEvent(AuthEvent{EventType: eventType, Timestamp: time.Now(), RiskScore: delta, Details: details})
	s.CurrentTrustScore = newScore
	s.RiskLevel = e.riskLevelFor(newScore)
	return nil
}

// HandleAnomaly applies the fixed anomaly penalty to a session's trust
// score, saturating at 0, and forces its risk level to Critical.
func (e *Engine) HandleAnomaly(sessionID, anomalyDetails string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[sessionID]
	if !ok {
		return coreerr.New(coreerr.NotFound, "zerotrust.HandleAnomaly", "session not found: "+sessionID)
	}

	newScore := s.CurrentTrustScore - anomalyPenalty
	if newScore < 0 {
		newScore = 0
	}

	s.addAuthEvent(AuthEvent{
		EventType: EventAnomalousActivity,
		Timestamp: time.Now(),
		RiskScore: anomalyPenalty,
		Details:   anomalyDetails,
	})
	s.CurrentTrustScore = newScore
	s.RiskLevel = RiskCritical
	return nil
}

// CleanupExpiredSessions removes every session past its idle deadline,
// returning the count removed.
func (e *Engine) CleanupExpiredSessions() int {
	now := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	var expired []string
	for id, s := range e.sessions {
		if s.IsExpired(now, e.maxIdleDuration) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(e.sessions, id)
	}
	return len(expired)
}

func (e *Engine) riskLevelFor(score TrustScore) RiskLevel {
	switch {
	case score >= e.lowRiskThreshold:
		return RiskLow
	case score >= e.mediumRiskThreshold:
		return RiskMedium
	case score >= e.highRiskThreshold:
		return RiskHigh
	default:
		return RiskCritical
	}
}
