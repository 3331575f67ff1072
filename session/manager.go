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

package session

import (
	"time"

	"github.com/google/uuid"

	"securedb/platform/audit"
	"securedb/platform/shared/coreerr"
)

// Manager is the Session Manager's public API (§4.J), wrapping a Store
// with ID generation, TTL defaulting, and audit emission.
type Manager struct {
	store     Store
	auditLog  *audit.Log
	defaultTTL time.Duration
}

// NewManager constructs a Manager over store. auditLog may be nil, in
// which case session events are not recorded.
func NewManager(store Store, auditLog *audit.Log) *Manager {
	return &Manager{store: store, auditLog: auditLog, defaultTTL: DefaultTTL}
}

// Create allocates a new session in state Pending, returning its ID.
func (m *Manager) Create(req CreateRequest) (string, error) {
	if req.UserID == "" {
		return "", coreerr.New(coreerr.InvalidParams, "session.Manager.Create", "user_id is required")
	}

	ttl := req.TTL
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	securityLevel := req.SecurityLevel
	if securityLevel == "" {
		securityLevel = SecurityMedium
	}

	now := time.Now()
	sess := Session{
		ID:            uuid.NewString(),
		UserID:        req.UserID,
		State:         StatePending,
		SecurityLevel: securityLevel,
		Data:          req.Data,
		Metadata: Metadata{
			LastAccessed: now,
			IPAddress:    req.IPAddress,
			UserAgent:    req.UserAgent,
		},
		CreatedAt:     now,
		UpdatedAt:     now,
		ExpiresAt:     now.Add(ttl),
		MaxViolations: 5,
	}
	if sess.Data == nil {
		sess.Data = make(map[string]interface{})
	}

	if err := m.store.Create(sess); err != nil {
		return "", err
	}
	m.recordEvent(sess.ID, req.UserID, "created")
	return sess.ID, nil
}

// Get returns a session by ID without mutating its state.
func (m *Manager) Get(id string) (Session, error) {
	sess, ok, err := m.store.Get(id)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		return Session{}, coreerr.New(coreerr.NotFound, "session.Manager.Get", "session not found: "+id)
	}
	return sess, nil
}

// Update atomically replaces a session's stored state, bumping its
// LastAccessed and UpdatedAt.
func (m *Manager) Update(sess Session) error {
	sess.Metadata.LastAccessed = time.Now()
	return m.store.Update(sess)
}

// Touch marks a session as accessed, incrementing RequestCount and
// BytesTransferred without requiring the caller to round-trip the full
// Session value.
func (m *Manager) Touch(id string, bytesTransferred uint64) error {
	sess, err := m.Get(id)
	if err != nil {
		return err
	}
	sess.Metadata.LastAccessed = time.Now()
	sess.Metadata.RequestCount++
	sess.Metadata.BytesTransferred += bytesTransferred
	if sess.State == StatePending {
		sess.State = StateActive
	}
	return m.store.Update(sess)
}

// Delete removes a session, recording an audit event for the deletion.
func (m *Manager) Delete(id string) error {
	sess, err := m.Get(id)
	if err != nil {
		return err
	}
	if err := m.store.Delete(id); err != nil {
		return err
	}
	m.recordEvent(sess.ID, sess.UserID, "deleted")
	return nil
}

// Invalidate transitions a session to Invalidated in place, e.g. on
// continuous-auth revocation, rather than deleting it outright.
func (m *Manager) Invalidate(id string, reason string) error {
	sess, err := m.Get(id)
	if err != nil {
		return err
	}
	sess.State = StateInvalidated
	if err := m.store.Update(sess); err != nil {
		return err
	}
	m.recordEvent(sess.ID, sess.UserID, "invalidated: "+reason)
	return nil
}

// Find lists sessions matching filter.
func (m *Manager) Find(filter Filter) ([]Session, error) {
	return m.store.Find(filter)
}

// CleanupExpired sweeps expired/invalidated sessions past their expiry.
func (m *Manager) CleanupExpired() (int, error) {
	return m.store.CleanupExpired(time.Now())
}

// GetStats returns an aggregate snapshot of the session population.
func (m *Manager) GetStats() (Stats, error) {
	return m.store.Stats(time.Now())
}

func (m *Manager) recordEvent(sessionID, userID, decision string) {
	if m.auditLog == nil {
		return
	}
	m.auditLog.Record(audit.Entry{
		Kind:      audit.KindSessionEvent,
		Timestamp: time.Now(),
		SessionID: sessionID,
		Actor:     userID,
		Decision:  decision,
	})
}
