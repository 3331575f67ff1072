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

// Package main is the entry point for the secure database access and
// session control plane.
//
// It wires storage-agnostic engine pools, the security validator, the
// masking engine, the audit log, the session manager, continuous-auth
// trust scoring, and the JSON-RPC tool dispatcher into one process, then
// exposes a readiness-aware health endpoint while the transport that
// actually carries JSON-RPC requests (stdio, TCP, or otherwise) is wired
// in by the embedding caller — see spec.md §1 for the transport boundary.
//
// Usage:
//
//	./controlplane
//
// Environment Variables:
//
//	PORT              - health endpoint port (default: 8080)
//	DATABASE_URL      - PostgreSQL connection string for durable session/
//	                    audit/token storage; when unset, sessions and
//	                    token mappings are kept in-process only
//	JWT_SECRET        - secret for continuous-auth bearer token issuance
//	ENGINE_NAMES      - comma-separated list of MCP_<NAME>_URL-configured
//	                    connectors to register as pools at startup
//	AUDIT_FALLBACK_PATH - JSONL file the audit log spills to if its sink
//	                    is unavailable (default: ./audit-fallback.jsonl)
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"securedb/platform/audit"
	"securedb/platform/connectors/base"
	"securedb/platform/connectors/cassandra"
	"securedb/platform/connectors/config"
	"securedb/platform/connectors/mongodb"
	"securedb/platform/connectors/mysql"
	"securedb/platform/connectors/pool"
	"securedb/platform/connectors/postgres"
	"securedb/platform/connectors/redis"
	"securedb/platform/connectors/sqlite"
	"securedb/platform/dispatch"
	"securedb/platform/engine"
	"securedb/platform/masking"
	"securedb/platform/policy"
	"securedb/platform/security"
	"securedb/platform/session"
	"securedb/platform/zerotrust"
)

var appReady atomic.Bool

// initServerImmediately starts the health listener before the rest of the
// plane is wired up, mirroring the teacher's never-shut-down health
// endpoint so orchestration health checks pass during initialization.
func initServerImmediately(port string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", readinessAwareHealthHandler)

	go func() {
		log.Printf("🚀 control plane starting on port %s (status: starting)", port)
		if err := http.ListenAndServe(":"+port, mux); err != nil {
			log.Fatalf("health server error: %v", err)
		}
	}()

	time.Sleep(50 * time.Millisecond)
	log.Println("✅ health endpoint ready - initialization can proceed safely")
}

func readinessAwareHealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	status := "starting"
	if appReady.Load() {
		status = "healthy"
	}
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    status,
		"service":   "securedb-controlplane",
		"timestamp": time.Now().UTC(),
	}); err != nil {
		log.Printf("error encoding health response: %v", err)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// connectorFactory maps an engine type name to the pool.Factory that
// builds its (unconnected) connector, following connectors/registry's
// named-instance pattern generalized across all six backends.
func connectorFactory(engineType string) (pool.Factory, bool) {
	switch engineType {
	case "postgres":
		return func() base.Connector { return postgres.NewPostgresConnector() }, true
	case "mysql":
		return func() base.Connector { return mysql.NewMySQLConnector() }, true
	case "cassandra":
		return func() base.Connector { return cassandra.NewCassandraConnector() }, true
	case "redis":
		return func() base.Connector { return redis.NewRedisConnector() }, true
	case "mongodb":
		return func() base.Connector { return mongodb.NewMongoDBConnector() }, true
	case "sqlite":
		return func() base.Connector { return sqlite.NewSQLiteConnector() }, true
	default:
		return nil, false
	}
}

// wireEngines reads ENGINE_NAMES (e.g. "primary,replica-1") and, for each
// name, loads its MCP_<NAME>_URL/MCP_<NAME>_TYPE env configuration,
// builds a pool, and registers it as both a pool.Manager pool and an
// engine.ActiveManager entry so Dynamic Engine Switching (§4.F-G) has
// something to switch between.
func wireEngines(ctx context.Context, pools *pool.Manager, active *engine.ActiveManager) {
	namesEnv := os.Getenv("ENGINE_NAMES")
	if namesEnv == "" {
		log.Println("ℹ️  ENGINE_NAMES not set - starting with no registered engines")
		return
	}

	for i, name := range strings.Split(namesEnv, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		engineType := getEnv("MCP_"+strings.ToUpper(name)+"_TYPE", "postgres")
		factory, ok := connectorFactory(engineType)
		if !ok {
			log.Printf("⚠️  unknown engine type %q for %s - skipping", engineType, name)
			continue
		}

		connConfig, err := config.LoadFromEnv(strings.ToUpper(name), engineType)
		if err != nil {
			log.Printf("⚠️  failed to load config for engine %s: %v - skipping", name, err)
			continue
		}

		p := pools.CreatePool(ctx, name, factory, connConfig, pool.DefaultConfig())
		conn, err := p.Acquire(ctx)
		if err != nil {
			log.Printf("⚠️  engine %s registered pool but has no live connection yet: %v", name, err)
			continue
		}

		role := engine.RoleSecondary
		if i == 0 {
			role = engine.RolePrimary
		}
		if err := active.AddEngine(name, conn, role); err != nil {
			log.Printf("⚠️  failed to register engine %s with active manager: %v", name, err)
			p.Release(ctx, conn)
			continue
		}
		p.Release(ctx, conn)
		log.Printf("✅ engine %s (%s) registered as %s", name, engineType, role)
	}
}

func main() {
	port := getEnv("PORT", "8080")
	initServerImmediately(port)

	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")

	var sessionStore session.Store = session.NewMemoryStore()
	var auditSink audit.Sink
	var tokenStore masking.TokenStore

	if dbURL != "" {
		log.Println("Connecting durable stores to DATABASE_URL...")
		if pgSessions, err := session.NewPostgresStore(dbURL); err != nil {
			log.Printf("⚠️  session Postgres store unavailable, falling back to in-memory: %v", err)
		} else {
			sessionStore = pgSessions
			log.Println("✅ session store backed by Postgres")
		}

		if sink, err := audit.NewPostgresSink(dbURL); err != nil {
			log.Printf("⚠️  audit Postgres sink unavailable, audit log runs fallback-file-only: %v", err)
		} else {
			auditSink = sink
			log.Println("✅ audit log backed by Postgres")
		}

		masterSecret := []byte(getEnv("MASKING_TOKEN_SECRET", "dev-only-insecure-secret"))
		if store, err := masking.NewPostgresTokenStore(dbURL, masterSecret); err != nil {
			log.Printf("⚠️  masking token store unavailable, tokens stay in-process: %v", err)
		} else {
			tokenStore = store
			log.Println("✅ masking token map backed by Postgres")
		}
	} else {
		log.Println("ℹ️  DATABASE_URL not set - sessions, audit, and token maps are in-process only")
	}

	auditLog, err := audit.New(1000, auditSink, 4, getEnv("AUDIT_FALLBACK_PATH", "./audit-fallback.jsonl"))
	if err != nil {
		log.Fatalf("failed to start audit log: %v", err)
	}

	policyResolver := policy.NewResolver()
	policyEngine := policy.NewEngine(policyResolver)

	validator := security.NewValidator(security.DefaultConfig(), policyEngine)
	formatter := masking.NewFormatter(tokenStore)
	maskingEngine := masking.NewEngine(formatter, policyEngine)

	pools := pool.NewManager()
	active := engine.NewActiveManager()
	collector := engine.NewCollector()
	orchestrator := engine.NewOrchestrator(active, collector)
	policyEvaluator := engine.NewPolicyEvaluator(active, collector, orchestrator)

	wireEngines(ctx, pools, active)
	policyEvaluator.Run(ctx, 30*time.Second)
	defer policyEvaluator.Stop()

	sessions := session.NewManager(sessionStore, auditLog)

	jwtSecret := []byte(getEnv("JWT_SECRET", ""))
	if len(jwtSecret) == 0 {
		log.Println("⚠️  JWT_SECRET not set - continuous-auth token issuance will use an empty secret")
	}
	tokenIssuer := zerotrust.NewTokenIssuer(jwtSecret, time.Hour)
	authEngine := zerotrust.New()

	dispatcher := dispatch.NewControlPlaneDispatcher(dispatch.Dependencies{
		Pools:        pools,
		Validator:    validator,
		Masking:      maskingEngine,
		Active:       active,
		Collector:    collector,
		Orchestrator: orchestrator,
		PolicyEval:   policyEvaluator,
		Sessions:     sessions,
		Auth:         authEngine,
		Tokens:       tokenIssuer,
	})

	appReady.Store(true)
	log.Println("✅ control plane initialized - dispatcher ready for transport wiring")

	serveDispatcher(dispatcher)
}

// serveDispatcher blocks, keeping the process alive while whatever embeds
// this binary drives dispatcher.Dispatch over its own transport (stdio,
// TCP, or an in-process call) — the transport loop itself is out of
// scope for this plane (spec.md §1).
func serveDispatcher(dispatcher *dispatch.Dispatcher) {
	_ = dispatcher
	select {}
}
