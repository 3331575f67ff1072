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

// Package pool implements the per-engine bounded Connection Pool: semaphore
// admission control, a FIFO idle queue, and maintenance-tick eviction of
// idle and over-age connections. It sits one layer above database/sql's own
// pooling so that non-database/sql engines (Redis, MongoDB, Cassandra) get
// the same admission contract as the SQL-backed ones.
package pool

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"securedb/platform/connectors/base"
	"securedb/platform/shared/coreerr"
)

// Config bounds a single engine's pool.
type Config struct {
	MaxConnections int           // hard ceiling on concurrently-admitted connections
	MinConnections int           // floor maintained by the maintenance tick
	MaxIdleTime    time.Duration // connections idle longer than this are evicted
	MaxLifetime    time.Duration // connections older than this are evicted regardless of use
	AcquireTimeout time.Duration // how long Acquire waits for a free slot
	MaintenanceTick time.Duration // how often the maintenance loop runs
}

// DefaultConfig mirrors the teacher's own per-connector pool sizing
// (connectors/postgres: 25 max open, 5 idle, 5m lifetime), generalized.
func DefaultConfig() Config {
	return Config{
		MaxConnections:  25,
		MinConnections:  5,
		MaxIdleTime:     5 * time.Minute,
		MaxLifetime:     30 * time.Minute,
		AcquireTimeout:  5 * time.Second,
		MaintenanceTick: 60 * time.Second,
	}
}

// pooledConn wraps a live base.Connector with bookkeeping used by eviction.
type pooledConn struct {
	conn      base.Connector
	createdAt time.Time
	lastUsed  time.Time
}

func (p *pooledConn) idleSeconds() float64 { return time.Since(p.lastUsed).Seconds() }
func (p *pooledConn) ageSeconds() float64  { return time.Since(p.createdAt).Seconds() }

// Info is a point-in-time snapshot of pool occupancy, returned by Snapshot
// and used by the Metrics Collector.
type Info struct {
	EngineName string
	Active     int
	Idle       int
	Total      int
	MaxSize    int
}

// HealthState classifies a pool's ability to serve new work.
type HealthState string

const (
	HealthHealthy  HealthState = "healthy"
	HealthWarning  HealthState = "warning"
	HealthCritical HealthState = "critical"
)

// Factory creates a new, unconnected Connector instance for an engine. Pool
// calls Factory and then Connect when it needs to grow the idle queue.
type Factory func() base.Connector

// Pool bounds admission to a single engine via a buffered-channel semaphore,
// holds idle connections in a FIFO queue, and evicts idle/over-age
// connections on a maintenance tick.
type Pool struct {
	engineName string
	factory    Factory
	connConfig *base.ConnectorConfig
	cfg        Config

	sem  chan struct{}
	mu   sync.Mutex
	idle []*pooledConn
	active int

	logger *log.Logger
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New constructs a Pool for one engine and starts its maintenance loop. The
// caller must call Close to stop the maintenance goroutine.
func New(engineName string, factory Factory, connConfig *base.ConnectorConfig, cfg Config) *Pool {
	p := &Pool{
		engineName: engineName,
		factory:    factory,
		connConfig: connConfig,
		cfg:        cfg,
		sem:        make(chan struct{}, cfg.MaxConnections),
		logger:     log.New(os.Stdout, "[POOL:"+engineName+"] ", log.LstdFlags),
		stopCh:     make(chan struct{}),
	}
	p.wg.Add(1)
	go p.maintenanceLoop()
	return p
}

// Acquire admits a caller into the pool (blocking on the semaphore up to
// AcquireTimeout), then returns an idle connection if one is healthy and
// available, or creates a new one.
func (p *Pool) Acquire(ctx context.Context) (base.Connector, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
	defer cancel()

	select {
	case p.sem <- struct{}{}:
	case <-acquireCtx.Done():
		return nil, coreerr.Wrap(coreerr.PoolError, "pool.Acquire",
			"timed out waiting for a free connection slot", acquireCtx.Err())
	}

	p.mu.Lock()
	p.active++
	p.mu.Unlock()

	if conn := p.tryTakeIdle(ctx); conn != nil {
		return conn, nil
	}

	conn, err := p.createNew(ctx)
	if err != nil {
		p.mu.Lock()
		p.active--
		p.mu.Unlock()
		<-p.sem
		return nil, err
	}
	return conn, nil
}

// tryTakeIdle pops idle connections FIFO, pinging each; the first healthy
// one is returned, unhealthy ones are discarded (and their semaphore slot
// from their original Acquire is already accounted for by active count).
func (p *Pool) tryTakeIdle(ctx context.Context) base.Connector {
	for {
		p.mu.Lock()
		if len(p.idle) == 0 {
			p.mu.Unlock()
			return nil
		}
		pc := p.idle[0]
		p.idle = p.idle[1:]
		p.mu.Unlock()

		status, err := pc.conn.HealthCheck(ctx)
		if err == nil && status.Healthy {
			pc.lastUsed = time.Now()
			return pc.conn
		}
		_ = pc.conn.Disconnect(ctx)
	}
}

func (p *Pool) createNew(ctx context.Context) (base.Connector, error) {
	conn := p.factory()
	if err := conn.Connect(ctx, p.connConfig); err != nil {
		return nil, coreerr.Wrap(coreerr.ConnectionFailed, "pool.createNew",
			"failed to establish new connection for "+p.engineName, err)
	}
	return conn, nil
}

// Release returns a connection to the idle queue if there is room under
// MaxConnections, or discards it (closing the underlying connection).
func (p *Pool) Release(ctx context.Context, conn base.Connector) {
	p.mu.Lock()
	p.active--
	capacity := p.cfg.MaxConnections
	full := len(p.idle) >= capacity
	if !full {
		p.idle = append(p.idle, &pooledConn{conn: conn, createdAt: time.Now(), lastUsed: time.Now()})
	}
	p.mu.Unlock()
	<-p.sem

	if full {
		_ = conn.Disconnect(ctx)
	}
}

// EnsureMinConnections tops up the idle queue to MinConnections, used at
// startup and by the maintenance loop after eviction.
func (p *Pool) EnsureMinConnections(ctx context.Context) {
	p.mu.Lock()
	deficit := p.cfg.MinConnections - (len(p.idle) + p.active)
	p.mu.Unlock()

	for i := 0; i < deficit; i++ {
		conn, err := p.createNew(ctx)
		if err != nil {
			p.logger.Printf("failed to pre-warm connection: %v", err)
			return
		}
		p.mu.Lock()
		p.idle = append(p.idle, &pooledConn{conn: conn, createdAt: time.Now(), lastUsed: time.Now()})
		p.mu.Unlock()
	}
}

// maintenanceLoop runs every MaintenanceTick, evicting idle connections that
// have exceeded MaxIdleTime or MaxLifetime, then re-topping to MinConnections.
// Unlike the original_source reference implementation (whose equivalent
// cleanup task is an unimplemented no-op), eviction here actually removes
// stale connections per the pool's documented invariant.
func (p *Pool) maintenanceLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.MaintenanceTick)
	defer ticker.Stop()

	ctx := context.Background()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.evictStale(ctx)
			p.EnsureMinConnections(ctx)
		}
	}
}

func (p *Pool) evictStale(ctx context.Context) {
	p.mu.Lock()
	kept := make([]*pooledConn, 0, len(p.idle))
	var stale []*pooledConn
	for _, pc := range p.idle {
		if pc.idleSeconds() > p.cfg.MaxIdleTime.Seconds() || pc.ageSeconds() > p.cfg.MaxLifetime.Seconds() {
			stale = append(stale, pc)
		} else {
			kept = append(kept, pc)
		}
	}
	p.idle = kept
	p.mu.Unlock()

	for _, pc := range stale {
		_ = pc.conn.Disconnect(ctx)
	}
	if len(stale) > 0 {
		p.logger.Printf("evicted %d stale connection(s)", len(stale))
	}
}

// Snapshot returns a point-in-time view of pool occupancy.
func (p *Pool) Snapshot() Info {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Info{
		EngineName: p.engineName,
		Active:     p.active,
		Idle:       len(p.idle),
		Total:      p.active + len(p.idle),
		MaxSize:    p.cfg.MaxConnections,
	}
}

// Health classifies the pool: Critical when empty, Warning when no idle
// slack remains at full capacity, Healthy otherwise.
func (p *Pool) Health() HealthState {
	info := p.Snapshot()
	switch {
	case info.Total == 0:
		return HealthCritical
	case info.Idle == 0 && info.Active >= info.MaxSize:
		return HealthWarning
	default:
		return HealthHealthy
	}
}

// Close stops the maintenance loop and disconnects every idle connection.
func (p *Pool) Close(ctx context.Context) {
	close(p.stopCh)
	p.wg.Wait()

	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, pc := range idle {
		_ = pc.conn.Disconnect(ctx)
	}
}
