package rating

type Tier string

const (
	TierUnranked Tier = "unranked"
	TierRookie   Tier = "rookie"
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
	TierLegend   Tier = "legend"
)

type tierBand struct {
	tier Tier
	max  float64
}

// Ordered lowest to highest skill. Bands are inclusive on the upper bound,
// so a score sitting exactly on a boundary classifies into the lower tier.
var tierBands = []tierBand{
	{TierRookie, 2.0},
	{TierBronze, 4.0},
	{TierSilver, 6.0},
	{TierGold, 8.0},
	{TierPlatinum, 9.0},
	{TierLegend, 10.0},
}

// Classify maps a composite score onto its tier. A nil score means the
// player has no counted technique yet and is unranked.
func Classify(score *float64) Tier {
	if score == nil {
		return TierUnranked
	}
	for _, band := range tierBands {
		if *score <= band.max {
			return band.tier
		}
	}
	return tierBands[len(tierBands)-1].tier
}

// tierIndex returns the position of a tier in the skill order. Unranked is
// not part of the order.
func tierIndex(t Tier) (int, bool) {
	for i, band := range tierBands {
		if band.tier == t {
			return i, true
		}
	}
	return 0, false
}

// IsAllowed reports whether a player's tier falls within an inclusive range.
// An unrecognized player tier is never allowed, while an unrecognized bound
// is ignored and that side treated as unbounded. Misconfigured tournament
// bounds stay lenient, an unknown player tier does not.
func IsAllowed(playerTier Tier, minTier, maxTier Tier) bool {
	idx, ok := tierIndex(playerTier)
	if !ok {
		return false
	}
	if min, ok := tierIndex(minTier); ok && idx < min {
		return false
	}
	if max, ok := tierIndex(maxTier); ok && idx > max {
		return false
	}
	return true
}

// Tiers returns the full skill order, lowest first, without unranked.
func Tiers() []Tier {
	out := make([]Tier, len(tierBands))
	for i, band := range tierBands {
		out[i] = band.tier
	}
	return out
}
