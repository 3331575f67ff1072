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
	"sort"
	"sync"
	"time"

	"securedb/platform/shared/coreerr"
)

// MemoryStore is the in-process Store implementation -- the default when
// no durable backend is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (m *MemoryStore) Create(s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[s.ID]; exists {
		return coreerr.New(coreerr.InvalidParams, "session.Create", "session id already exists: "+s.ID)
	}
	m.sessions[s.ID] = s
	return nil
}

func (m *MemoryStore) Get(id string) (Session, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok, nil
}

func (m *MemoryStore) Update(s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[s.ID]; !exists {
		return coreerr.New(coreerr.NotFound, "session.Update", "session not found: "+s.ID)
	}
	s.UpdatedAt = time.Now()
	m.sessions[s.ID] = s
	return nil
}

func (m *MemoryStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[id]; !exists {
		return coreerr.New(coreerr.NotFound, "session.Delete", "session not found: "+id)
	}
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) Find(filter Filter) ([]Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Session
	for _, s := range m.sessions {
		if filter.UserID != "" && s.UserID != filter.UserID {
			continue
		}
		if filter.State != "" && s.State != filter.State {
			continue
		}
		if !filter.ExpiredBefore.IsZero() && !s.ExpiresAt.Before(filter.ExpiredBefore) {
			continue
		}
		if !filter.CreatedAfter.IsZero() && !s.CreatedAt.After(filter.CreatedAfter) {
			continue
		}
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// CleanupExpired deletes every session in {Expired, Invalidated} whose
// ExpiresAt has passed as of now, returning the count removed.
func (m *MemoryStore) CleanupExpired(now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if (s.State == StateExpired || s.State == StateInvalidated) && now.After(s.ExpiresAt) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryStore) Stats(now time.Time) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var s Stats
	var totalDuration time.Duration
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	for _, sess := range m.sessions {
		s.Total++
		switch {
		case sess.IsExpired(now):
			s.Expired++
		case sess.State == StateActive:
			s.Active++
		}
		if !sess.CreatedAt.Before(todayStart) {
			s.CreatedToday++
		}
		totalDuration += sess.UpdatedAt.Sub(sess.CreatedAt)
		s.TotalBytes += sess.Metadata.BytesTransferred
	}
	if s.Total > 0 {
		s.AvgDurationSecs = totalDuration.Seconds() / float64(s.Total)
	}
	return s, nil
}
