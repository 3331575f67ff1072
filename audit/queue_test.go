// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package audit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLog_Record_RecentReturnsNewestFirst(t *testing.T) {
	l, err := New(3, nil, 0, "")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	l.Record(Entry{Kind: KindGeneric, Reason: "first"})
	l.Record(Entry{Kind: KindGeneric, Reason: "second"})
	l.Record(Entry{Kind: KindGeneric, Reason: "third"})

	got := l.Recent(0)
	if len(got) != 3 {
		t.Fatalf("Recent(0) len = %d, want 3", len(got))
	}
	if got[0].Reason != "third" || got[2].Reason != "first" {
		t.Errorf("Recent() not newest-first: %+v", got)
	}
}

func TestLog_Record_RingOverwritesOldest(t *testing.T) {
	l, err := New(2, nil, 0, "")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	l.Record(Entry{Kind: KindGeneric, Reason: "a"})
	l.Record(Entry{Kind: KindGeneric, Reason: "b"})
	l.Record(Entry{Kind: KindGeneric, Reason: "c"})

	got := l.Recent(0)
	if len(got) != 2 {
		t.Fatalf("expected ring capped at 2, got %d", len(got))
	}
	if got[0].Reason != "c" || got[1].Reason != "b" {
		t.Errorf("expected [c, b] after overwrite, got %+v", got)
	}
}

type fakeSink struct {
	calls int
	fail  bool
}

func (f *fakeSink) Write(entry Entry) error {
	f.calls++
	if f.fail {
		return errors.New("sink unavailable")
	}
	return nil
}

func TestLog_Record_DrainsToSink(t *testing.T) {
	sink := &fakeSink{}
	l, err := New(10, sink, 1, "")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	l.Record(Entry{Kind: KindSecurityRejection, Reason: "blocked"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	if sink.calls != 1 {
		t.Errorf("expected sink.Write called once, got %d", sink.calls)
	}
}

func TestLog_Shutdown_NilSinkIsNoop(t *testing.T) {
	l, err := New(10, nil, 0, "")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	l.Record(Entry{Kind: KindGeneric})

	if err := l.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown with nil sink should be a no-op, got %v", err)
	}
}
