// Package service contains the icewheel use cases: round history upkeep,
// bet placement, settlement, deposit reconciliation, and the balance/admin
// operations. Services are stateless; every invocation is independent and
// all coordination happens through the store primitives they are given.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/okozhin/icewheel/internal/domain"
	"github.com/okozhin/icewheel/internal/wheel"
)

// maxRoundDrift bounds how far the recorded head may lag the target before
// the history is rebuilt from scratch instead of appended to.
const maxRoundDrift = 3600

// HistoryService maintains the bounded, self-healing cache of the last K
// completed outcomes.
type HistoryService struct {
	clock  *wheel.Clock
	oracle *wheel.Oracle
	store  domain.HistoryStore
	locks  domain.LockManager
	size   int
	logger *slog.Logger
}

// NewHistoryService creates a HistoryService keeping the last size entries.
func NewHistoryService(
	clock *wheel.Clock,
	oracle *wheel.Oracle,
	store domain.HistoryStore,
	locks domain.LockManager,
	size int,
	logger *slog.Logger,
) *HistoryService {
	return &HistoryService{
		clock:  clock,
		oracle: oracle,
		store:  store,
		locks:  locks,
		size:   size,
		logger: logger.With(slog.String("component", "history")),
	}
}

// EnsureUpTo brings the stored history up to lastCompleted. The update runs
// under an advisory lock keyed by the target round; losing the acquisition
// race returns immediately without mutating: another caller is already
// updating, and staleness is bounded by one round period.
func (s *HistoryService) EnsureUpTo(ctx context.Context, lastCompleted int64) error {
	if lastCompleted < 0 {
		return nil
	}

	lockTTL := s.clock.Period() + time.Second
	unlock, err := s.locks.Acquire(ctx, fmt.Sprintf("wheel:history:%d", lastCompleted), lockTTL)
	if errors.Is(err, domain.ErrLockHeld) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("history: acquire update lock: %w", err)
	}
	defer unlock()

	head, err := s.store.Head(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return s.rebuild(ctx, lastCompleted)
	}
	if err != nil {
		return fmt.Errorf("history: read head: %w", err)
	}

	// A head ahead of the target means the wall clock regressed relative
	// to whoever wrote it; a huge lag means appending one-by-one is
	// pointless. Both cases rebuild.
	if head > lastCompleted || lastCompleted-head > maxRoundDrift {
		s.logger.WarnContext(ctx, "rebuilding drifted history",
			slog.Int64("head", head),
			slog.Int64("target", lastCompleted),
		)
		return s.rebuild(ctx, lastCompleted)
	}

	if head < lastCompleted {
		missing := make([]domain.HistoryEntry, 0, lastCompleted-head)
		for r := head + 1; r <= lastCompleted; r++ {
			missing = append(missing, domain.HistoryEntry{RoundID: r, WinnerIndex: s.oracle.Winner(r)})
		}
		if err := s.store.Append(ctx, missing...); err != nil {
			return fmt.Errorf("history: append: %w", err)
		}
		if err := s.store.Trim(ctx, s.size); err != nil {
			return fmt.Errorf("history: trim: %w", err)
		}
		if err := s.store.SetHead(ctx, lastCompleted); err != nil {
			return fmt.Errorf("history: set head: %w", err)
		}
		return nil
	}

	// Already up to date; keep the list bounded anyway.
	if err := s.store.Trim(ctx, s.size); err != nil {
		return fmt.Errorf("history: trim: %w", err)
	}
	return nil
}

// rebuild destroys the stored history and regenerates the last K entries
// ending at target from the oracle.
func (s *HistoryService) rebuild(ctx context.Context, target int64) error {
	from := target - int64(s.size) + 1
	if from < 0 {
		from = 0
	}

	entries := make([]domain.HistoryEntry, 0, target-from+1)
	for r := from; r <= target; r++ {
		entries = append(entries, domain.HistoryEntry{RoundID: r, WinnerIndex: s.oracle.Winner(r)})
	}

	if err := s.store.Replace(ctx, entries); err != nil {
		return fmt.Errorf("history: replace: %w", err)
	}
	if err := s.store.SetHead(ctx, target); err != nil {
		return fmt.Errorf("history: set head: %w", err)
	}
	return nil
}

// Read returns the stored history ascending by round id with duplicates
// removed, capped at the configured size. Corrupted entries trigger a
// rebuild up to lastCompleted before reading again.
func (s *HistoryService) Read(ctx context.Context, lastCompleted int64) ([]domain.HistoryEntry, error) {
	entries, err := s.store.Entries(ctx)
	if errors.Is(err, domain.ErrCorruptHistory) {
		s.logger.WarnContext(ctx, "corrupt history detected, rebuilding")
		if lastCompleted < 0 {
			return nil, nil
		}
		if err := s.rebuild(ctx, lastCompleted); err != nil {
			return nil, err
		}
		entries, err = s.store.Entries(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("history: read: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].RoundID < entries[j].RoundID })

	deduped := entries[:0]
	var prev int64 = -1
	for _, e := range entries {
		if e.RoundID == prev {
			continue
		}
		deduped = append(deduped, e)
		prev = e.RoundID
	}

	if len(deduped) > s.size {
		deduped = deduped[len(deduped)-s.size:]
	}
	return deduped, nil
}
