// Package domain defines the core types, store interfaces, and sentinel
// errors shared by every icewheel component. Concrete implementations live
// in internal/cache/redis, internal/store/postgres, and
// internal/platform/tonapi.
package domain

import "time"

// Phase identifies where the wall clock sits inside the current round.
type Phase string

const (
	// PhaseActive is the spin window: bets are open and the outcome is not
	// yet settleable.
	PhaseActive Phase = "active"
	// PhaseCooldown is the pause between the spin end and the next round.
	PhaseCooldown Phase = "cooldown"
)

// HistoryEntry is one completed round's recorded outcome.
type HistoryEntry struct {
	RoundID     int64 `json:"roundId"`
	WinnerIndex int   `json:"winnerIndex"`
}

// RoundState is the full public snapshot of the wheel at a point in time.
type RoundState struct {
	ServerNow     time.Time
	RoundID       int64
	Phase         Phase
	StartAt       time.Time
	ActiveEndAt   time.Time
	NextRoundAt   time.Time
	WinnerIndex   int
	LastCompleted int64
}
