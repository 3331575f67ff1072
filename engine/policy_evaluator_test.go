// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package engine

import "testing"

func TestPolicyEvaluator_EvaluateOnce_TriggersHighestPriorityFirst(t *testing.T) {
	active := NewActiveManager()
	_ = active.AddEngine("pg-1", &fakeConnector{}, RolePrimary)
	_ = active.AddEngine("pg-2", &fakeConnector{}, RoleSecondary)
	_ = active.AddEngine("pg-3", &fakeConnector{}, RoleSecondary)

	collector := NewCollector()
	collector.Update("pg-1", Metrics{ErrorRatePercent: 10.0, ResponseTimeMS: 50})

	orch := NewOrchestrator(active, collector)
	ev := NewPolicyEvaluator(active, collector, orch)
	ev.AddPolicy(Policy{
		Name:         "low-priority-error-rate",
		Trigger:      Trigger{Kind: TriggerErrorRate, ErrorRateThreshold: 1.0},
		TargetEngine: "pg-3",
		Strategy:     Strategy{Kind: StrategyImmediate},
		Priority:     5,
		Enabled:      true,
	})
	ev.AddPolicy(Policy{
		Name:         "high-priority-error-rate",
		Trigger:      Trigger{Kind: TriggerErrorRate, ErrorRateThreshold: 1.0},
		TargetEngine: "pg-2",
		Strategy:     Strategy{Kind: StrategyImmediate},
		Priority:     1,
		Enabled:      true,
	})

	ev.evaluateOnce()

	id, _, _ := active.GetPrimary()
	if id != "pg-2" {
		t.Errorf("expected the priority-1 policy's target to win, got primary=%q", id)
	}
}

func TestPolicyEvaluator_EvaluateOnce_ManualNeverFires(t *testing.T) {
	active := NewActiveManager()
	_ = active.AddEngine("pg-1", &fakeConnector{}, RolePrimary)
	_ = active.AddEngine("pg-2", &fakeConnector{}, RoleSecondary)

	collector := NewCollector()
	orch := NewOrchestrator(active, collector)
	ev := NewPolicyEvaluator(active, collector, orch)
	ev.AddPolicy(Policy{
		Name:         "manual-only",
		Trigger:      Trigger{Kind: TriggerManual},
		TargetEngine: "pg-2",
		Strategy:     Strategy{Kind: StrategyImmediate},
		Priority:     1,
		Enabled:      true,
	})

	ev.evaluateOnce()

	id, _, _ := active.GetPrimary()
	if id != "pg-1" {
		t.Errorf("expected Manual trigger to never auto-fire, got primary=%q", id)
	}
}

func TestPolicyEvaluator_SetEnabled_SuppressesEvaluation(t *testing.T) {
	active := NewActiveManager()
	_ = active.AddEngine("pg-1", &fakeConnector{}, RolePrimary)
	_ = active.AddEngine("pg-2", &fakeConnector{}, RoleSecondary)

	collector := NewCollector()
	collector.Update("pg-1", Metrics{ErrorRatePercent: 10.0})

	orch := NewOrchestrator(active, collector)
	ev := NewPolicyEvaluator(active, collector, orch)
	ev.SetEnabled(false)
	ev.AddPolicy(Policy{
		Name:         "error-rate",
		Trigger:      Trigger{Kind: TriggerErrorRate, ErrorRateThreshold: 1.0},
		TargetEngine: "pg-2",
		Strategy:     Strategy{Kind: StrategyImmediate},
		Priority:     1,
		Enabled:      true,
	})

	ev.evaluateOnce()

	id, _, _ := active.GetPrimary()
	if id != "pg-1" {
		t.Errorf("expected disabled evaluator to never switch, got primary=%q", id)
	}
}
