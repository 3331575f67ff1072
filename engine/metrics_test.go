// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package engine

import "testing"

func TestCollector_Update_GetRoundTrips(t *testing.T) {
	c := NewCollector()
	c.Update("pg-1", Metrics{ResponseTimeMS: 12.5, AvailabilityPercent: 99.9})

	m, ok := c.Get("pg-1")
	if !ok {
		t.Fatal("expected a stored snapshot for pg-1")
	}
	if m.ResponseTimeMS != 12.5 || m.AvailabilityPercent != 99.9 {
		t.Errorf("Get() = %+v, want ResponseTimeMS=12.5 AvailabilityPercent=99.9", m)
	}
}

func TestCollector_Get_MissingEngineYieldsFalse(t *testing.T) {
	c := NewCollector()
	if _, ok := c.Get("never-registered"); ok {
		t.Error("expected ok=false for an engine with no recorded snapshot")
	}
}

func TestCollector_RecordSwitch_DoesNotPanic(t *testing.T) {
	c := NewCollector()
	c.RecordSwitch(Result{Success: true})
	c.RecordSwitch(Result{Success: false})
}
