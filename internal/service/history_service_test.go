package service

import (
	"context"
	"testing"

	"github.com/okozhin/icewheel/internal/domain"
	"github.com/okozhin/icewheel/internal/wheel"
)

const historySize = 18

func newHistoryService(store *fakeHistoryStore, locks *fakeLocks) *HistoryService {
	return NewHistoryService(testClock(), wheel.NewOracle("test-seed"), store, locks, historySize, discardLogger())
}

func checkContiguous(t *testing.T, entries []domain.HistoryEntry, first, last int64) {
	t.Helper()
	want := int(last - first + 1)
	if len(entries) != want {
		t.Fatalf("got %d entries, want %d (%d..%d)", len(entries), want, first, last)
	}
	oracle := wheel.NewOracle("test-seed")
	for i, e := range entries {
		wantRound := first + int64(i)
		if e.RoundID != wantRound {
			t.Fatalf("entry %d has round %d, want %d", i, e.RoundID, wantRound)
		}
		if e.WinnerIndex != oracle.Winner(wantRound) {
			t.Errorf("entry %d winner %d, want %d", i, e.WinnerIndex, oracle.Winner(wantRound))
		}
	}
}

func TestEnsureUpTo_BuildsFromScratch(t *testing.T) {
	ctx := context.Background()
	store := newFakeHistoryStore()
	svc := newHistoryService(store, newFakeLocks())

	if err := svc.EnsureUpTo(ctx, 100); err != nil {
		t.Fatalf("EnsureUpTo: %v", err)
	}

	entries, err := svc.Read(ctx, 100)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	checkContiguous(t, entries, 100-historySize+1, 100)
}

func TestEnsureUpTo_AppendsMissingRounds(t *testing.T) {
	ctx := context.Background()
	store := newFakeHistoryStore()
	svc := newHistoryService(store, newFakeLocks())

	if err := svc.EnsureUpTo(ctx, 100); err != nil {
		t.Fatalf("EnsureUpTo(100): %v", err)
	}
	if err := svc.EnsureUpTo(ctx, 105); err != nil {
		t.Fatalf("EnsureUpTo(105): %v", err)
	}

	entries, err := svc.Read(ctx, 105)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	checkContiguous(t, entries, 105-historySize+1, 105)
}

func TestEnsureUpTo_RebuildsOnClockRegression(t *testing.T) {
	ctx := context.Background()
	store := newFakeHistoryStore()
	svc := newHistoryService(store, newFakeLocks())

	if err := svc.EnsureUpTo(ctx, 100); err != nil {
		t.Fatalf("EnsureUpTo(100): %v", err)
	}
	// Target behind the recorded head: the wall clock regressed.
	if err := svc.EnsureUpTo(ctx, 90); err != nil {
		t.Fatalf("EnsureUpTo(90): %v", err)
	}

	entries, err := svc.Read(ctx, 90)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	checkContiguous(t, entries, 90-historySize+1, 90)
}

func TestEnsureUpTo_RebuildsOnLargeDrift(t *testing.T) {
	ctx := context.Background()
	store := newFakeHistoryStore()
	svc := newHistoryService(store, newFakeLocks())

	if err := svc.EnsureUpTo(ctx, 100); err != nil {
		t.Fatalf("EnsureUpTo(100): %v", err)
	}
	target := int64(100 + maxRoundDrift + 10)
	if err := svc.EnsureUpTo(ctx, target); err != nil {
		t.Fatalf("EnsureUpTo(drifted): %v", err)
	}

	entries, err := svc.Read(ctx, target)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	checkContiguous(t, entries, target-historySize+1, target)
}

func TestEnsureUpTo_LockHeldIsNoOp(t *testing.T) {
	ctx := context.Background()
	store := newFakeHistoryStore()
	locks := newFakeLocks()
	svc := newHistoryService(store, locks)

	// Simulate another caller holding the update lock.
	if _, err := locks.Acquire(ctx, "wheel:history:100", 0); err != nil {
		t.Fatalf("pre-acquire: %v", err)
	}

	if err := svc.EnsureUpTo(ctx, 100); err != nil {
		t.Fatalf("EnsureUpTo under held lock: %v", err)
	}
	if entries, _ := store.Entries(ctx); len(entries) != 0 {
		t.Errorf("history mutated while lock was held: %d entries", len(entries))
	}
}

func TestEnsureUpTo_NegativeTargetIsNoOp(t *testing.T) {
	store := newFakeHistoryStore()
	svc := newHistoryService(store, newFakeLocks())
	if err := svc.EnsureUpTo(context.Background(), -1); err != nil {
		t.Fatalf("EnsureUpTo(-1): %v", err)
	}
}

func TestRead_SortsAndDeduplicates(t *testing.T) {
	ctx := context.Background()
	store := newFakeHistoryStore()
	svc := newHistoryService(store, newFakeLocks())

	store.entries = []domain.HistoryEntry{
		{RoundID: 7, WinnerIndex: 1},
		{RoundID: 5, WinnerIndex: 2},
		{RoundID: 7, WinnerIndex: 1},
		{RoundID: 6, WinnerIndex: 3},
	}

	entries, err := svc.Read(ctx, 7)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	for i, want := range []int64{5, 6, 7} {
		if entries[i].RoundID != want {
			t.Errorf("entry %d round = %d, want %d", i, entries[i].RoundID, want)
		}
	}
}

func TestRead_RebuildsCorruptHistory(t *testing.T) {
	ctx := context.Background()
	store := newFakeHistoryStore()
	svc := newHistoryService(store, newFakeLocks())

	store.corrupt = true

	entries, err := svc.Read(ctx, 50)
	if err != nil {
		t.Fatalf("Read with corrupt store: %v", err)
	}
	checkContiguous(t, entries, 50-historySize+1, 50)
}
