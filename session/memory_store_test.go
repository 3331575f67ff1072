// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package session

import (
	"testing"
	"time"
)

func TestMemoryStore_CreateGet_RoundTrips(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	sess := Session{
		ID: "s1", UserID: "u1", State: StatePending, SecurityLevel: SecurityMedium,
		CreatedAt: now, UpdatedAt: now, ExpiresAt: now.Add(time.Hour),
	}
	if err := store.Create(sess); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, ok, err := store.Get("s1")
	if err != nil || !ok {
		t.Fatalf("Get() = (_, %v, %v), want ok", ok, err)
	}
	if got.UserID != "u1" {
		t.Errorf("UserID = %q, want u1", got.UserID)
	}
}

func TestMemoryStore_Create_DuplicateIDRejected(t *testing.T) {
	store := NewMemoryStore()
	sess := Session{ID: "s1", UserID: "u1"}
	if err := store.Create(sess); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if err := store.Create(sess); err == nil {
		t.Fatal("expected error on duplicate ID, got nil")
	}
}

func TestMemoryStore_Update_MissingRejected(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Update(Session{ID: "ghost"}); err == nil {
		t.Fatal("expected error updating missing session, got nil")
	}
}

func TestMemoryStore_Delete_MissingRejected(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Delete("ghost"); err == nil {
		t.Fatal("expected error deleting missing session, got nil")
	}
}

func TestMemoryStore_Find_OrdersByCreatedAtDescending(t *testing.T) {
	store := NewMemoryStore()
	base := time.Now()
	_ = store.Create(Session{ID: "old", UserID: "u1", CreatedAt: base, ExpiresAt: base.Add(time.Hour)})
	_ = store.Create(Session{ID: "new", UserID: "u1", CreatedAt: base.Add(time.Minute), ExpiresAt: base.Add(time.Hour)})

	got, err := store.Find(Filter{UserID: "u1"})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(got) != 2 || got[0].ID != "new" || got[1].ID != "old" {
		t.Fatalf("Find() = %+v, want [new, old]", got)
	}
}

func TestMemoryStore_Find_RespectsLimit(t *testing.T) {
	store := NewMemoryStore()
	base := time.Now()
	for i := 0; i < 5; i++ {
		_ = store.Create(Session{
			ID: string(rune('a' + i)), UserID: "u1",
			CreatedAt: base.Add(time.Duration(i) * time.Minute), ExpiresAt: base.Add(time.Hour),
		})
	}
	got, err := store.Find(Filter{UserID: "u1", Limit: 2})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(Find()) = %d, want 2", len(got))
	}
}

func TestMemoryStore_CleanupExpired_OnlyRemovesExpiredOrInvalidated(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	_ = store.Create(Session{ID: "expired", State: StateExpired, ExpiresAt: now.Add(-time.Hour)})
	_ = store.Create(Session{ID: "invalidated", State: StateInvalidated, ExpiresAt: now.Add(-time.Hour)})
	_ = store.Create(Session{ID: "active", State: StateActive, ExpiresAt: now.Add(-time.Hour)})
	_ = store.Create(Session{ID: "not-yet-expired", State: StateExpired, ExpiresAt: now.Add(time.Hour)})

	removed, err := store.CleanupExpired(now)
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if _, ok, _ := store.Get("active"); !ok {
		t.Error("active session should survive cleanup")
	}
	if _, ok, _ := store.Get("not-yet-expired"); !ok {
		t.Error("not-yet-expired session should survive cleanup")
	}
}

func TestMemoryStore_Stats_Aggregates(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	_ = store.Create(Session{
		ID: "a", State: StateActive, CreatedAt: now, UpdatedAt: now.Add(time.Minute),
		ExpiresAt: now.Add(time.Hour), Metadata: Metadata{BytesTransferred: 100},
	})
	_ = store.Create(Session{
		ID: "b", State: StateExpired, CreatedAt: now, UpdatedAt: now,
		ExpiresAt: now.Add(-time.Hour), Metadata: Metadata{BytesTransferred: 50},
	})

	stats, err := store.Stats(now)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 2 {
		t.Errorf("Total = %d, want 2", stats.Total)
	}
	if stats.Active != 1 {
		t.Errorf("Active = %d, want 1", stats.Active)
	}
	if stats.Expired != 1 {
		t.Errorf("Expired = %d, want 1", stats.Expired)
	}
	if stats.TotalBytes != 150 {
		t.Errorf("TotalBytes = %d, want 150", stats.TotalBytes)
	}
}
