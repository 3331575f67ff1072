// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package zerotrust

import (
	"testing"
	"time"
)

func TestEngine_StartSession_SeedsLoginEvent(t *testing.T) {
	e := New()
	e.StartSession("session1", "user1", "device1", 80)

	s, ok := e.GetSession("session1")
	if !ok {
		t.Fatal("GetSession() not found")
	}
	if s.UserID != "user1" {
		t.Errorf("UserID = %q, want user1", s.UserID)
	}
	if s.CurrentTrustScore != 80 {
		t.Errorf("CurrentTrustScore = %d, want 80", s.CurrentTrustScore)
	}
	if s.RiskLevel != RiskLow {
		t.Errorf("RiskLevel = %q, want low", s.RiskLevel)
	}
	if len(s.AuthEvents) != 1 || s.AuthEvents[0].EventType != EventLogin {
		t.Errorf("AuthEvents = %+v, want single Login event", s.AuthEvents)
	}
}

func TestEngine_VerifySession_Succeeds(t *testing.T) {
	e := New()
	e.StartSession("session1", "user1", "device1", 80)

	result := e.VerifySession("session1")
	if !result.Success {
		t.Errorf("VerifySession() = %+v, want success", result)
	}
}

func TestEngine_VerifySession_UnknownFails(t *testing.T) {
	e := New()
	result := e.VerifySession("ghost")
	if result.Success {
		t.Fatal("expected failure for unknown session")
	}
	if result.Reason != "Session not found" {
		t.Errorf("Reason = %q, want 'Session not found'", result.Reason)
	}
}

func TestEngine_VerifySession_ExpiresOnIdle(t *testing.T) {
	e := New()
	e.maxIdleDuration = 0
	e.StartSession("session1", "user1", "device1", 80)
	time.Sleep(10 * time.Millisecond)

	result := e.VerifySession("session1")
	if result.Success {
		t.Fatal("expected failure for idle-expired session")
	}
	if result.Reason != "Session expired" {
		t.Errorf("Reason = %q, want 'Session expired'", result.Reason)
	}
	if _, ok := e.GetSession("session1"); ok {
		t.Error("expired session should have been removed")
	}
}

func TestEngine_VerifySession_RequiresReauthAfterInterval(t *testing.T) {
	e := New()
	e.reauthenticationInterval = 0
	e.StartSession("session1", "user1", "device1", 80)
	time.Sleep(10 * time.Millisecond)

	result := e.VerifySession("session1")
	if result.Success {
		t.Fatal("expected failure requiring reauthentication")
	}
	if result.Reason != "Reauthentication required" {
		t.Errorf("Reason = %q, want 'Reauthentication required'", result.Reason)
	}
}

func TestEngine_VerifySession_FailsBelowHighRiskThreshold(t *testing.T) {
	e := New()
	e.StartSession("session1", "user1", "device1", DefaultHighRiskThreshold-1)

	result := e.VerifySession("session1")
	if result.Success {
		t.Fatal("expected failure for trust score below high-risk threshold")
	}
}

func TestEngine_UpdateTrustScore_RecomputesRiskLevel(t *testing.T) {
	e := New()
	e.StartSession("session1", "user1", "device1", 80)

	if err := e.UpdateTrustScore("session1", 60, EventLocationChange, "Location changed"); err != nil {
		t.Fatalf("UpdateTrustScore: %v", err)
	}

	s, _ := e.GetSession("session1")
	if s.CurrentTrustScore != 60 {
		t.Errorf("CurrentTrustScore = %d, want 60", s.CurrentTrustScore)
	}
	if s.RiskLevel != RiskMedium {
		t.Errorf("RiskLevel = %q, want medium", s.RiskLevel)
	}
}

func TestEngine_UpdateTrustScore_UnknownSessionErrors(t *testing.T) {
	e := New()
	if err := e.UpdateTrustScore("ghost", 50, EventLogin, ""); err == nil {
		t.Fatal("expected error for unknown session, got nil")
	}
}

func TestEngine_HandleAnomaly_AppliesSaturatingPenalty(t *testing.T) {
	e := New()
	e.StartSession("session1", "user1", "device1", 80)

	if err := e.HandleAnomaly("session1", "Suspicious activity detected"); err != nil {
		t.Fatalf("HandleAnomaly: %v", err)
	}
	s, _ := e.GetSession("session1")
	if s.CurrentTrustScore != 50 {
		t.Errorf("CurrentTrustScore = %d, want 50", s.CurrentTrustScore)
	}
	if s.RiskLevel != RiskCritical {
		t.Errorf("RiskLevel = %q, want critical", s.RiskLevel)
	}
}

func TestEngine_HandleAnomaly_SaturatesAtZero(t *testing.T) {
	e := New()
	e.StartSession("session1", "user1", "device1", 10)

	if err := e.HandleAnomaly("session1", "repeat anomaly"); err != nil {
		t.Fatalf("HandleAnomaly: %v", err)
	}
	s, _ := e.GetSession("session1")
	if s.CurrentTrustScore != 0 {
		t.Errorf("CurrentTrustScore = %d, want 0 (saturated)", s.CurrentTrustScore)
	}
}

func TestEngine_CleanupExpiredSessions_RemovesIdleSessions(t *testing.T) {
	e := New()
	e.maxIdleDuration = 0
	e.StartSession("session1", "user1", "device1", 80)
	e.StartSession("session2", "user2", "device2", 70)
	time.Sleep(10 * time.Millisecond)

	cleaned := e.CleanupExpiredSessions()
	if cleaned != 2 {
		t.Errorf("cleaned = %d, want 2", cleaned)
	}
	if _, ok := e.GetSession("session1"); ok {
		t.Error("session1 should have been cleaned up")
	}
	if _, ok := e.GetSession("session2"); ok {
		t.Error("session2 should have been cleaned up")
	}
}

func TestEngine_RecordActivity_AdvancesLastActivityTime(t *testing.T) {
	e := New()
	e.StartSession("session1", "user1", "device1", 80)
	before, _ := e.GetSession("session1")
	time.Sleep(10 * time.Millisecond)

	e.RecordActivity("session1")
	after, _ := e.GetSession("session1")
	if !after.LastActivityTime.After(before.LastActivityTime) {
		t.Error("LastActivityTime did not advance after RecordActivity")
	}
}
