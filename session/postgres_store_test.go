// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package session

import (
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

// getTestDBURL skips the test unless DATABASE_URL is set, matching the
// connectors/registry integration test convention.
func getTestDBURL(t *testing.T) string {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("Skipping integration test - DATABASE_URL not set")
	}
	return dbURL
}

func TestPostgresStore_Integration_CreateGetUpdateDelete(t *testing.T) {
	dbURL := getTestDBURL(t)

	store, err := NewPostgresStore(dbURL)
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	defer func() { _ = store.Close() }()

	id := uuid.NewString()
	now := time.Now().Truncate(time.Millisecond)
	sess := Session{
		ID: id, UserID: "integration-user", State: StatePending, SecurityLevel: SecurityHigh,
		Data:      map[string]interface{}{"role": "analyst"},
		Metadata:  Metadata{LastAccessed: now, IPAddress: "10.0.0.1"},
		CreatedAt: now, UpdatedAt: now, ExpiresAt: now.Add(time.Hour), MaxViolations: 5,
	}
	if err := store.Create(sess); err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer func() { _ = store.Delete(id) }()

	got, ok, err := store.Get(id)
	if err != nil || !ok {
		t.Fatalf("Get() = (_, %v, %v), want ok", ok, err)
	}
	if got.UserID != "integration-user" || got.Data["role"] != "analyst" {
		t.Errorf("Get() = %+v, unexpected contents", got)
	}

	got.State = StateActive
	if err := store.Update(got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	reloaded, _, _ := store.Get(id)
	if reloaded.State != StateActive {
		t.Errorf("State after update = %q, want active", reloaded.State)
	}

	if err := store.Delete(id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := store.Get(id); ok {
		t.Error("session should not exist after delete")
	}
}

func TestPostgresStore_Integration_CleanupExpired(t *testing.T) {
	dbURL := getTestDBURL(t)

	store, err := NewPostgresStore(dbURL)
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	defer func() { _ = store.Close() }()

	now := time.Now().Truncate(time.Millisecond)
	id := uuid.NewString()
	sess := Session{
		ID: id, UserID: "cleanup-user", State: StateExpired,
		CreatedAt: now.Add(-2 * time.Hour), UpdatedAt: now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(-time.Hour), MaxViolations: 5,
	}
	if err := store.Create(sess); err != nil {
		t.Fatalf("Create: %v", err)
	}

	removed, err := store.CleanupExpired(now)
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if removed < 1 {
		t.Errorf("removed = %d, want >= 1", removed)
	}
	if _, ok, _ := store.Get(id); ok {
		t.Error("expired session should have been removed")
	}
}
