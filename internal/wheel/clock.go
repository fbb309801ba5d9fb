package wheel

import (
	"time"

	"github.com/okozhin/icewheel/internal/domain"
)

// Clock maps wall-clock time onto round ids and phase boundaries. Every
// process instance derives identical round ids purely from its own clock;
// no coordination is involved.
type Clock struct {
	spin time.Duration
	post time.Duration

	// countActiveEnd controls the "last completed round" policy: when true
	// the current round counts as completed as soon as its active phase
	// ends; when false only strictly previous rounds count.
	countActiveEnd bool
}

// NewClock creates a Clock with the given spin (active) and post-spin
// (cooldown) durations.
func NewClock(spin, post time.Duration, countActiveEnd bool) *Clock {
	return &Clock{spin: spin, post: post, countActiveEnd: countActiveEnd}
}

// Period returns the full round length.
func (c *Clock) Period() time.Duration {
	return c.spin + c.post
}

// RoundID returns the round containing now.
func (c *Clock) RoundID(now time.Time) int64 {
	return now.UnixMilli() / c.Period().Milliseconds()
}

// RoundStart returns the instant the given round begins.
func (c *Clock) RoundStart(roundID int64) time.Time {
	return time.UnixMilli(roundID * c.Period().Milliseconds())
}

// ActiveEnd returns the instant the given round's active phase ends. Bets
// lock at this boundary.
func (c *Clock) ActiveEnd(roundID int64) time.Time {
	return c.RoundStart(roundID).Add(c.spin)
}

// Phase returns the phase of the round containing now.
func (c *Clock) Phase(now time.Time) domain.Phase {
	if now.Before(c.ActiveEnd(c.RoundID(now))) {
		return domain.PhaseActive
	}
	return domain.PhaseCooldown
}

// LastCompleted returns the newest round whose outcome is settleable at
// now. With the countActiveEnd policy the current round qualifies once its
// active phase has ended; otherwise it is always the previous round. Never
// negative results below -1 are clamped to -1 (no round completed yet).
func (c *Clock) LastCompleted(now time.Time) int64 {
	cur := c.RoundID(now)
	if c.countActiveEnd && !now.Before(c.ActiveEnd(cur)) {
		return cur
	}
	if cur-1 < -1 {
		return -1
	}
	return cur - 1
}

// State assembles the full round snapshot at now, with the outcome preview
// supplied by the oracle.
func (c *Clock) State(now time.Time, oracle *Oracle) domain.RoundState {
	id := c.RoundID(now)
	return domain.RoundState{
		ServerNow:     now,
		RoundID:       id,
		Phase:         c.Phase(now),
		StartAt:       c.RoundStart(id),
		ActiveEndAt:   c.ActiveEnd(id),
		NextRoundAt:   c.RoundStart(id + 1),
		WinnerIndex:   oracle.Winner(id),
		LastCompleted: c.LastCompleted(now),
	}
}
