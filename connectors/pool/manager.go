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

package pool

import (
	"context"
	"sync"

	"securedb/platform/connectors/base"
	"securedb/platform/shared/coreerr"
)

// Manager owns one Pool per engine name, mirroring the teacher's
// registry.go map-of-named-instances pattern.
type Manager struct {
	mu    sync.RWMutex
	pools map[string]*Pool
}

// NewManager constructs an empty pool Manager.
func NewManager() *Manager {
	return &Manager{pools: make(map[string]*Pool)}
}

// CreatePool builds and registers a new pool for engineName, pre-warming it
// to MinConnections before returning.
func (m *Manager) CreatePool(ctx context.Context, engineName string, factory Factory, connConfig *base.ConnectorConfig, cfg Config) *Pool {
	p := New(engineName, factory, connConfig, cfg)
	p.EnsureMinConnections(ctx)
	m.Register(engineName, p)
	return p
}

// Get returns the pool registered under engineName.
func (m *Manager) Get(engineName string) (*Pool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pools[engineName]
	if !ok {
		return nil, coreerr.New(coreerr.NotFound, "pool.Manager.Get", "no pool registered for engine "+engineName)
	}
	return p, nil
}

// Register adds a pre-built pool under engineName, closing and replacing
// any pool already registered there.
func (m *Manager) Register(engineName string, p *Pool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.pools[engineName]; ok {
		old.Close(context.Background())
	}
	m.pools[engineName] = p
}

// Remove closes and unregisters the pool for engineName.
func (m *Manager) Remove(ctx context.Context, engineName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pools[engineName]; ok {
		p.Close(ctx)
		delete(m.pools, engineName)
	}
}

// HealthCheckAll returns the HealthState of every registered pool.
func (m *Manager) HealthCheckAll() map[string]HealthState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]HealthState, len(m.pools))
	for name, p := range m.pools {
		out[name] = p.Health()
	}
	return out
}

// SnapshotAll returns an Info snapshot for every registered pool.
func (m *Manager) SnapshotAll() map[string]Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Info, len(m.pools))
	for name, p := range m.pools {
		out[name] = p.Snapshot()
	}
	return out
}

// CloseAll closes every registered pool.
func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pools {
		p.Close(ctx)
	}
	m.pools = make(map[string]*Pool)
}
