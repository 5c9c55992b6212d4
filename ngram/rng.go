package ngram

import (
	"fmt"
	"math"
)

// layerSeedStride separates per-layer multiplier streams. Large prime,
// so distinct layer ids never fold onto the same stream seed.
const layerSeedStride = 1_000_000_007

// splitmix64 is the fixed generator behind multiplier derivation.
//
// The multiplier stream must reproduce identically across runs,
// processes and language ports, so the generator is pinned to a
// published algorithm rather than the standard library (whose stream
// is stable per version but not portable across implementations).
type splitmix64 struct {
	state uint64
}

func (s *splitmix64) next() uint64 {
	s.state += 0x9E3779B97F4A7C15
	z := s.state
	z ^= z >> 30
	z *= 0xBF58476D1CE4E5B9
	z ^= z >> 27
	z *= 0x94D049BB133111EB
	z ^= z >> 31

	return z
}

// HalfBound returns the multiplier draw bound for a target vocabulary
// size: MaxInt64 / target / 2. A non-positive result means the target
// is too large relative to the 64-bit hash range.
func HalfBound(maxTarget int) (int64, error) {
	if maxTarget <= 0 {
		return 0, fmt.Errorf("ngram: target vocabulary size must be positive, got %d", maxTarget)
	}

	hb := math.MaxInt64 / int64(maxTarget) / 2
	if hb <= 0 {
		return 0, fmt.Errorf("ngram: target vocabulary size %d leaves no multiplier range (half bound %d)", maxTarget, hb)
	}

	return hb, nil
}

// Multipliers derives the per-layer multiplier vector: maxNgram odd
// int64s, deterministic given (seed, layerID).
//
// Each draw is 2r+1 with r in [0, halfBound); forcing the low bit keeps
// the multiply step from collapsing into an even-only, lower-entropy
// hash.
func Multipliers(seed int64, layerID, maxNgram int, halfBound int64) []int64 {
	rng := splitmix64{state: uint64(seed + layerSeedStride*int64(layerID))}

	out := make([]int64, maxNgram)
	for i := range out {
		r := rng.next() % uint64(halfBound)
		out[i] = 2*int64(r) + 1
	}

	return out
}
