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

package dispatch

import (
	"context"
	"time"

	"securedb/platform/connectors/base"
	"securedb/platform/connectors/pool"
	"securedb/platform/engine"
	"securedb/platform/masking"
	"securedb/platform/security"
	"securedb/platform/session"
	"securedb/platform/shared/coreerr"
	"securedb/platform/zerotrust"
)

// Dependencies wires a Dispatcher's tool catalog to the control plane's
// core components. Every field is required except Masking, Auth, and
// Tokens: Masking is nil-safe (query results pass through unmasked if no
// masking.Engine is configured); Auth/Tokens are nil-safe (session
// creation skips continuous-auth tracking and bearer-token issuance
// when unset, and the verify_session/report_anomaly tools become
// unavailable unless Auth is provided).
type Dependencies struct {
	Pools        *pool.Manager
	Validator    *security.Validator
	Masking      *masking.Engine
	Active       *engine.ActiveManager
	Collector    *engine.Collector
	Orchestrator *engine.Orchestrator
	PolicyEval   *engine.PolicyEvaluator
	Sessions     *session.Manager
	Auth         *zerotrust.Engine
	Tokens       *zerotrust.TokenIssuer
}

// NewControlPlaneDispatcher builds the full §4.L tool catalog: query,
// execute, list_engines, switch_engine, engine_metrics, switch_history,
// configure_policy, validate_switch_readiness, create_session,
// touch_session, invalidate_session, session_stats.
func NewControlPlaneDispatcher(deps Dependencies) *Dispatcher {
	d := NewDispatcher()

	d.Register(Tool{
		Name:        "query",
		Description: "Run a read query against an engine through the security validator and masking engine.",
		InputSchema: schemaObject([]string{"engine", "session_id", "statement"}, map[string]string{
			"engine":     "string",
			"session_id": "string",
			"tenant_id":  "string",
			"statement":  "string",
			"roles":      "array",
		}),
	}, deps.handleQuery)

	d.Register(Tool{
		Name:        "execute",
		Description: "Run a write command against an engine through the security validator.",
		InputSchema: schemaObject([]string{"engine", "session_id", "action", "statement"}, map[string]string{
			"engine":     "string",
			"session_id": "string",
			"tenant_id":  "string",
			"action":     "string",
			"statement":  "string",
		}),
	}, deps.handleExecute)

	d.Register(Tool{
		Name:        "list_engines",
		Description: "List every engine registered with the Active Engine Manager.",
		InputSchema: schemaObject(nil, nil),
	}, deps.handleListEngines)

	d.Register(Tool{
		Name:        "switch_engine",
		Description: "Switch the active Primary engine using a named strategy.",
		InputSchema: schemaObject([]string{"target_engine", "strategy"}, map[string]string{
			"target_engine": "string",
			"strategy":      "string",
		}),
	}, deps.handleSwitchEngine)

	d.Register(Tool{
		Name:        "engine_metrics",
		Description: "Read the latest health/load snapshot for an engine.",
		InputSchema: schemaObject([]string{"engine"}, map[string]string{"engine": "string"}),
	}, deps.handleEngineMetrics)

	d.Register(Tool{
		Name:        "switch_history",
		Description: "List recent switch events, newest first.",
		InputSchema: schemaObject(nil, map[string]string{"limit": "number"}),
	}, deps.handleSwitchHistory)

	d.Register(Tool{
		Name:        "configure_policy",
		Description: "Register an auto-switch policy with the Policy Evaluator.",
		InputSchema: schemaObject([]string{"name", "target_engine", "trigger_kind"}, map[string]string{
			"name":          "string",
			"target_engine": "string",
			"trigger_kind":  "string",
			"priority":      "number",
			"enabled":       "boolean",
		}),
	}, deps.handleConfigurePolicy)

	d.Register(Tool{
		Name:        "validate_switch_readiness",
		Description: "Check whether a target engine is ready to receive a switch.",
		InputSchema: schemaObject([]string{"target_engine"}, map[string]string{"target_engine": "string"}),
	}, deps.handleValidateSwitchReadiness)

	d.Register(Tool{
		Name:        "create_session",
		Description: "Create a new session, start continuous-auth trust tracking, and issue a bearer token.",
		InputSchema: schemaObject([]string{"user_id"}, map[string]string{
			"user_id":        "string",
			"security_level": "string",
			"ttl_seconds":    "number",
			"device_id":      "string",
		}),
	}, deps.handleCreateSession)

	d.Register(Tool{
		Name:        "verify_session",
		Description: "Check a session's continuous-auth status: idle/reauth expiry and trust-score floor.",
		InputSchema: schemaObject([]string{"session_id"}, map[string]string{"session_id": "string"}),
	}, deps.handleVerifySession)

	d.Register(Tool{
		Name:        "report_anomaly",
		Description: "Apply a trust-score penalty for anomalous session activity, forcing critical risk.",
		InputSchema: schemaObject([]string{"session_id", "details"}, map[string]string{
			"session_id": "string",
			"details":    "string",
		}),
	}, deps.handleReportAnomaly)

	d.Register(Tool{
		Name:        "touch_session",
		Description: "Record activity against a session.",
		InputSchema: schemaObject([]string{"session_id"}, map[string]string{
			"session_id":        "string",
			"bytes_transferred": "number",
		}),
	}, deps.handleTouchSession)

	d.Register(Tool{
		Name:        "invalidate_session",
		Description: "Invalidate a session in place.",
		InputSchema: schemaObject([]string{"session_id"}, map[string]string{
			"session_id": "string",
			"reason":     "string",
		}),
	}, deps.handleInvalidateSession)

	d.Register(Tool{
		Name:        "session_stats",
		Description: "Return an aggregate snapshot of the session population.",
		InputSchema: schemaObject(nil, nil),
	}, deps.handleSessionStats)

	return d
}

func schemaObject(required []string, properties map[string]string) map[string]interface{} {
	props := make(map[string]interface{}, len(properties))
	for field, typ := range properties {
		props[field] = map[string]interface{}{"type": typ}
	}
	schema := map[string]interface{}{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func (deps Dependencies) handleQuery(args map[string]interface{}) (interface{}, error) {
	engineName, _ := args["engine"].(string)
	sessionID, _ := args["session_id"].(string)
	tenantID, _ := args["tenant_id"].(string)
	statement, _ := args["statement"].(string)

	if deps.Validator != nil {
		rec, err := deps.Validator.Validate(sessionID, tenantID, statement)
		if err != nil {
			return nil, err
		}
		if !rec.Accepted {
			return nil, coreerr.New(coreerr.SecurityViolation, "dispatch.query", rec.Reason)
		}
	}

	p, err := deps.Pools.Get(engineName)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.NotFound, "dispatch.query", "engine not found: "+engineName, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := p.Acquire(ctx)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.PoolError, "dispatch.query", "acquire connection failed", err)
	}
	defer p.Release(ctx, conn)

	result, err := conn.Query(ctx, &base.Query{Statement: statement})
	if err != nil {
		return nil, coreerr.Wrap(coreerr.ConnectionFailed, "dispatch.query", "query execution failed", err)
	}

	if deps.Masking != nil {
		var roles []string
		if rawRoles, ok := args["roles"].([]interface{}); ok {
			for _, r := range rawRoles {
				if s, ok := r.(string); ok {
					roles = append(roles, s)
				}
			}
		}
		deps.Masking.MaskRows(result.Rows, masking.Context{Roles: roles, TenantID: tenantID, Timestamp: time.Now()})
	}

	return map[string]interface{}{
		"rows":        result.Rows,
		"row_count":   result.RowCount,
		"duration_ms": result.Duration.Milliseconds(),
	}, nil
}

func (deps Dependencies) handleExecute(args map[string]interface{}) (interface{}, error) {
	engineName, _ := args["engine"].(string)
	sessionID, _ := args["session_id"].(string)
	tenantID, _ := args["tenant_id"].(string)
	action, _ := args["action"].(string)
	statement, _ := args["statement"].(string)

	if deps.Validator != nil {
		rec, err := deps.Validator.Validate(sessionID, tenantID, statement)
		if err != nil {
			return nil, err
		}
		if !rec.Accepted {
			return nil, coreerr.New(coreerr.SecurityViolation, "dispatch.execute", rec.Reason)
		}
	}

	p, err := deps.Pools.Get(engineName)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.NotFound, "dispatch.execute", "engine not found: "+engineName, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := p.Acquire(ctx)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.PoolError, "dispatch.execute", "acquire connection failed", err)
	}
	defer p.Release(ctx, conn)

	result, err := conn.Execute(ctx, &base.Command{Action: action, Statement: statement})
	if err != nil {
		return nil, coreerr.Wrap(coreerr.ConnectionFailed, "dispatch.execute", "command execution failed", err)
	}

	return map[string]interface{}{
		"success":       result.Success,
		"rows_affected": result.RowsAffected,
		"message":       result.Message,
	}, nil
}

func (deps Dependencies) handleListEngines(map[string]interface{}) (interface{}, error) {
	return deps.Active.ListEngines(), nil
}

func (deps Dependencies) handleSwitchEngine(args map[string]interface{}) (interface{}, error) {
	target, _ := args["target_engine"].(string)
	strategyName, _ := args["strategy"].(string)

	strategy := engine.Strategy{Kind: engine.StrategyKind(strategyName)}
	event, err := deps.Orchestrator.ExecuteSwitch(target, strategy)
	if err != nil {
		return nil, err
	}
	return event, nil
}

func (deps Dependencies) handleEngineMetrics(args map[string]interface{}) (interface{}, error) {
	engineName, _ := args["engine"].(string)
	m, ok := deps.Collector.Get(engineName)
	if !ok {
		return nil, coreerr.New(coreerr.NotFound, "dispatch.engine_metrics", "no metrics for engine: "+engineName)
	}
	return m, nil
}

func (deps Dependencies) handleSwitchHistory(args map[string]interface{}) (interface{}, error) {
	limit := 0
	if raw, ok := args["limit"].(float64); ok {
		limit = int(raw)
	}
	return deps.Orchestrator.History(limit), nil
}

func (deps Dependencies) handleConfigurePolicy(args map[string]interface{}) (interface{}, error) {
	name, _ := args["name"].(string)
	target, _ := args["target_engine"].(string)
	triggerKind, _ := args["trigger_kind"].(string)
	priority := 0
	if raw, ok := args["priority"].(float64); ok {
		priority = int(raw)
	}
	enabled := true
	if raw, ok := args["enabled"].(bool); ok {
		enabled = raw
	}

	deps.PolicyEval.AddPolicy(engine.Policy{
		Name:         name,
		Trigger:      engine.Trigger{Kind: engine.TriggerKind(triggerKind)},
		TargetEngine: target,
		Priority:     priority,
		Enabled:      enabled,
	})
	return map[string]interface{}{"registered": name}, nil
}

func (deps Dependencies) handleValidateSwitchReadiness(args map[string]interface{}) (interface{}, error) {
	target, _ := args["target_engine"].(string)
	if err := deps.Orchestrator.ValidateReadiness(target); err != nil {
		return map[string]interface{}{"ready": false, "reason": err.Error()}, nil
	}
	return map[string]interface{}{"ready": true}, nil
}

func (deps Dependencies) handleCreateSession(args map[string]interface{}) (interface{}, error) {
	userID, _ := args["user_id"].(string)
	securityLevel, _ := args["security_level"].(string)
	var ttl time.Duration
	if raw, ok := args["ttl_seconds"].(float64); ok {
		ttl = time.Duration(raw) * time.Second
	}

	id, err := deps.Sessions.Create(session.CreateRequest{
		UserID:        userID,
		SecurityLevel: session.SecurityLevel(securityLevel),
		TTL:           ttl,
	})
	if err != nil {
		return nil, err
	}

	result := map[string]interface{}{"session_id": id}

	if deps.Auth != nil {
		deviceID, _ := args["device_id"].(string)
		deps.Auth.StartSession(id, userID, deviceID, zerotrust.TrustScore(100))
	}
	if deps.Tokens != nil {
		token, err := deps.Tokens.Issue(id, userID, securityLevel)
		if err != nil {
			return nil, coreerr.Wrap(coreerr.Internal, "dispatch.create_session", "token issuance failed", err)
		}
		result["token"] = token
	}
	return result, nil
}

func (deps Dependencies) handleVerifySession(args map[string]interface{}) (interface{}, error) {
	sessionID, _ := args["session_id"].(string)
	if deps.Auth == nil {
		return nil, coreerr.New(coreerr.UnsupportedOperation, "dispatch.verify_session", "continuous-auth engine is not configured")
	}
	return deps.Auth.VerifySession(sessionID), nil
}

func (deps Dependencies) handleReportAnomaly(args map[string]interface{}) (interface{}, error) {
	sessionID, _ := args["session_id"].(string)
	details, _ := args["details"].(string)
	if deps.Auth == nil {
		return nil, coreerr.New(coreerr.UnsupportedOperation, "dispatch.report_anomaly", "continuous-auth engine is not configured")
	}
	if err := deps.Auth.HandleAnomaly(sessionID, details); err != nil {
		return nil, err
	}
	return map[string]interface{}{"session_id": sessionID, "anomaly_recorded": true}, nil
}

func (deps Dependencies) handleTouchSession(args map[string]interface{}) (interface{}, error) {
	sessionID, _ := args["session_id"].(string)
	var bytesTransferred uint64
	if raw, ok := args["bytes_transferred"].(float64); ok {
		bytesTransferred = uint64(raw)
	}
	if err := deps.Sessions.Touch(sessionID, bytesTransferred); err != nil {
		return nil, err
	}
	return map[string]interface{}{"touched": sessionID}, nil
}

func (deps Dependencies) handleInvalidateSession(args map[string]interface{}) (interface{}, error) {
	sessionID, _ := args["session_id"].(string)
	reason, _ := args["reason"].(string)
	if reason == "" {
		reason = "manual invalidation"
	}
	if err := deps.Sessions.Invalidate(sessionID, reason); err != nil {
		return nil, err
	}
	return map[string]interface{}{"invalidated": sessionID}, nil
}

func (deps Dependencies) handleSessionStats(map[string]interface{}) (interface{}, error) {
	return deps.Sessions.GetStats()
}
