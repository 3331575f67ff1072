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

package engine

import (
	"sync"
	"time"

	"securedb/platform/connectors/base"
	"securedb/platform/shared/coreerr"
)

// ActiveManager holds the Primary/Secondary/Standby engine registry and
// enforces the at-most-one-Primary invariant (§4.F). Mutations take the
// write lock; reads take the shared lock, matching original_source's
// ActiveEngineManager under a tokio::sync::RwLock.
type ActiveManager struct {
	mu sync.RWMutex

	primaryID string // empty when no Primary is set
	handles   map[string]base.Connector
	info      map[string]Info
}

// NewActiveManager constructs an empty ActiveManager.
func NewActiveManager() *ActiveManager {
	return &ActiveManager{
		handles: make(map[string]base.Connector),
		info:    make(map[string]Info),
	}
}

// AddEngine registers handle under id with the given role. Adding a
// second engine with RolePrimary does not evict the existing Primary --
// callers wanting to replace the Primary use SwitchPrimary.
func (m *ActiveManager) AddEngine(id string, handle base.Connector, role Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.handles[id]; exists {
		return coreerr.New(coreerr.InvalidParams, "engine.AddEngine", "engine id already registered: "+id)
	}

	m.handles[id] = handle
	m.info[id] = Info{
		ID:      id,
		Kind:    handle.Kind(),
		Role:    role,
		State:   StateActive,
		AddedAt: time.Now(),
	}
	if role == RolePrimary && m.primaryID == "" {
		m.primaryID = id
	}
	return nil
}

// GetPrimary returns the current Primary's id and handle, or ok=false if
// none is set.
func (m *ActiveManager) GetPrimary() (string, base.Connector, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.primaryID == "" {
		return "", nil, false
	}
	return m.primaryID, m.handles[m.primaryID], true
}

// HasEngine reports whether id is registered.
func (m *ActiveManager) HasEngine(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.handles[id]
	return ok
}

// ListEngines returns a snapshot of every registered engine's Info.
func (m *ActiveManager) ListEngines() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Info, 0, len(m.info))
	for _, info := range m.info {
		out = append(out, info)
	}
	return out
}

// SwitchPrimary atomically demotes the current Primary to Secondary and
// promotes newPrimaryID, rejecting unknown targets. This is the only
// mutation path that can change which engine is Primary, so the
// at-most-one-Primary invariant holds by construction.
func (m *ActiveManager) SwitchPrimary(newPrimaryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	newInfo, ok := m.info[newPrimaryID]
	if !ok {
		return coreerr.New(coreerr.NotFound, "engine.SwitchPrimary", "engine not found: "+newPrimaryID)
	}

	if m.primaryID != "" {
		if old, ok := m.info[m.primaryID]; ok {
			old.Role = RoleSecondary
			m.info[m.primaryID] = old
		}
	}

	newInfo.Role = RolePrimary
	m.info[newPrimaryID] = newInfo
	m.primaryID = newPrimaryID
	return nil
}
