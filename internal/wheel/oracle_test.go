package wheel_test

import (
	"testing"

	"github.com/okozhin/icewheel/internal/wheel"
)

func TestOracle_KnownWinners(t *testing.T) {
	// Pinned values: the oracle output for a given (seed, roundId) must
	// never change across releases, or recorded history would be rewritten.
	o := wheel.NewOracle("test-seed")

	cases := []struct {
		roundID int64
		want    int
	}{
		{0, 52},
		{1, 45},
		{42, 13},
		{123456789, 5},
	}
	for _, tc := range cases {
		if got := o.Winner(tc.roundID); got != tc.want {
			t.Errorf("Winner(%d) = %d, want %d", tc.roundID, got, tc.want)
		}
	}
}

func TestOracle_SeedChangesOutcome(t *testing.T) {
	a := wheel.NewOracle("test-seed")
	b := wheel.NewOracle("other-seed")

	if a.Winner(42) == b.Winner(42) {
		t.Errorf("different seeds produced the same winner %d for round 42", a.Winner(42))
	}
	if got := b.Winner(42); got != 0 {
		t.Errorf("Winner(42) with other-seed = %d, want 0", got)
	}
}

func TestOracle_StableAndInRange(t *testing.T) {
	o := wheel.NewOracle("test-seed")
	for r := int64(0); r < 500; r++ {
		first := o.Winner(r)
		if first < 0 || first >= wheel.SectorCount {
			t.Fatalf("Winner(%d) = %d out of range [0,%d)", r, first, wheel.SectorCount)
		}
		if again := o.Winner(r); again != first {
			t.Fatalf("Winner(%d) not stable: %d then %d", r, first, again)
		}
	}
}

func TestKindForSector(t *testing.T) {
	cases := []struct {
		sector int
		want   string
	}{
		{0, wheel.KindHugeRed},
		{13, wheel.KindBigOranges},
		{39, wheel.KindBigOranges},
		{7, wheel.KindLilBlues},
		{20, wheel.KindLilBlues},
		{33, wheel.KindLilBlues},
		{46, wheel.KindLilBlues},
		{2, wheel.KindLeaf1},
		{44, wheel.KindLeaf1},
		{1, wheel.KindLeaf2},
		{51, wheel.KindLeaf2},
	}
	for _, tc := range cases {
		if got := wheel.KindForSector(tc.sector); got != tc.want {
			t.Errorf("KindForSector(%d) = %q, want %q", tc.sector, got, tc.want)
		}
	}
}

func TestMultiplier(t *testing.T) {
	cases := []struct {
		kind string
		want int64
	}{
		{wheel.KindLeaf1, 2},
		{wheel.KindLeaf2, 2},
		{wheel.KindHugeRed, 1},
		{wheel.KindBigOranges, 1},
		{wheel.KindLilBlues, 1},
		{"bogus", 0},
	}
	for _, tc := range cases {
		if got := wheel.Multiplier(tc.kind); got != tc.want {
			t.Errorf("Multiplier(%q) = %d, want %d", tc.kind, got, tc.want)
		}
	}
}

func TestValidKind(t *testing.T) {
	for _, kind := range []string{
		wheel.KindHugeRed, wheel.KindBigOranges, wheel.KindLilBlues,
		wheel.KindLeaf1, wheel.KindLeaf2,
	} {
		if !wheel.ValidKind(kind) {
			t.Errorf("ValidKind(%q) = false, want true", kind)
		}
	}
	for _, kind := range []string{"", "leaf3", "LEAF1", "fish"} {
		if wheel.ValidKind(kind) {
			t.Errorf("ValidKind(%q) = true, want false", kind)
		}
	}
}
