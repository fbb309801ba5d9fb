// Package wheel implements the deterministic wheel mechanics: the
// seed-keyed outcome oracle, the sector partition with its payout table,
// and the wall-clock round arithmetic. Everything here is pure; no store
// access, no side effects.
package wheel

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"strconv"
)

// SectorCount is the number of sectors on the wheel.
const SectorCount = 53

// Oracle maps a round id to its winning sector. The mapping is keyed by a
// secret seed so clients cannot derive future outcomes, and is fixed
// forever for a given (seed, roundId) pair.
type Oracle struct {
	seed []byte
}

// NewOracle creates an Oracle from the secret seed.
func NewOracle(seed string) *Oracle {
	return &Oracle{seed: []byte(seed)}
}

// Winner returns the winning sector index for the given round:
// HMAC-SHA256(seed, decimal roundId), first four bytes big-endian, reduced
// modulo SectorCount.
func (o *Oracle) Winner(roundID int64) int {
	mac := hmac.New(sha256.New, o.seed)
	mac.Write([]byte(strconv.FormatInt(roundID, 10)))
	sum := mac.Sum(nil)
	return int(binary.BigEndian.Uint32(sum[:4]) % SectorCount)
}
