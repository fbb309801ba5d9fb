package domain

// SettledRound reports the result of settling one pending round for one
// account. CreditedNano is zero when none of the account's buckets matched
// the winning kind, and also when another caller had already settled the
// round (the marker-miss branch).
type SettledRound struct {
	RoundID      int64  `json:"roundId"`
	WinnerIndex  int    `json:"winnerIndex"`
	WinnerKind   string `json:"winnerKind"`
	CreditedNano int64  `json:"creditedNano"`
}

// SettlementResult aggregates a single settlePending invocation.
type SettlementResult struct {
	LastCompleted int64
	Settled       []SettledRound
	CreditedNano  int64
}
