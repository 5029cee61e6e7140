package server

import (
	"hash/fnv"
	"math/rand"
)

// levelScaling is the per-level multiplier applied on top of base damage.
const levelScaling = 0.08

// castDamageSeed derives the deterministic roll seed for one (cast, target)
// pair so replays and combat logs reproduce the exact damage numbers.
func castDamageSeed(castID, targetID string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(castID))
	h.Write([]byte{':'})
	h.Write([]byte(targetID))
	return h.Sum64()
}

// rollDamage computes the damage one target takes from an ability. The same
// seed always yields the same roll; variance stays within ±10% of the
// level-scaled base.
func rollDamage(base float64, casterLevel int, seed uint64) float64 {
	if base <= 0 {
		return 0
	}
	if casterLevel < 1 {
		casterLevel = 1
	}
	rng := rand.New(rand.NewSource(int64(seed)))
	variance := 0.9 + rng.Float64()*0.2
	return base * (1 + levelScaling*float64(casterLevel-1)) * variance
}
