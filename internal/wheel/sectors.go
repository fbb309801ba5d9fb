package wheel

// Bet kinds. The fish kinds return the stake (x1); leaves pay double; a bet
// on anything other than the winning kind pays nothing.
const (
	KindHugeRed    = "hugered"
	KindBigOranges = "bigoranges"
	KindLilBlues   = "lilblues"
	KindLeaf1      = "leaf1"
	KindLeaf2      = "leaf2"
)

var orangeSectors = map[int]bool{13: true, 39: true}

var blueSectors = map[int]bool{7: true, 20: true, 33: true, 46: true}

// KindForSector maps a sector index to its bet kind. Sector 0 is the huge
// red fish; fixed sectors hold the orange and blue fish; the remaining
// sectors alternate leaf1 (even) and leaf2 (odd).
func KindForSector(i int) string {
	switch {
	case i == 0:
		return KindHugeRed
	case orangeSectors[i]:
		return KindBigOranges
	case blueSectors[i]:
		return KindLilBlues
	case i%2 == 0:
		return KindLeaf1
	default:
		return KindLeaf2
	}
}

// Multiplier returns the payout multiplier for a bet kind. Unknown kinds
// pay zero.
func Multiplier(kind string) int64 {
	switch kind {
	case KindLeaf1, KindLeaf2:
		return 2
	case KindHugeRed, KindBigOranges, KindLilBlues:
		return 1
	default:
		return 0
	}
}

// ValidKind reports whether kind is one of the allowed bet kinds.
func ValidKind(kind string) bool {
	switch kind {
	case KindHugeRed, KindBigOranges, KindLilBlues, KindLeaf1, KindLeaf2:
		return true
	default:
		return false
	}
}
