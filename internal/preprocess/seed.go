package preprocess

import (
	"errors"
	"math/rand/v2"
)

// ErrNoSeed reports that a random seed could not be derived for a call.
var ErrNoSeed = errors.New("no generated seed available for random seed fallback")

// DeriveSeed combines the primary and sub seed into the preprocessing seed.
// A seed of -1 falls back to the first generated seed; other negatives
// clamp to zero. The sum wraps modulo 2^32.
func DeriveSeed(seed, subseed int64, allSeeds []int64) (uint32, error) {
	resolve := func(v int64) (uint64, error) {
		if v == -1 {
			if len(allSeeds) == 0 {
				return 0, ErrNoSeed
			}
			return uint64(allSeeds[0]), nil
		}
		return uint64(max(v, 0)), nil
	}
	primary, err := resolve(seed)
	if err != nil {
		return 0, err
	}
	sub, err := resolve(subseed)
	if err != nil {
		return 0, err
	}
	return uint32((primary + sub) & 0xFFFFFFFF), nil
}

// NewRand returns a deterministic generator for seed.
func NewRand(seed uint32) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
}

// Unseeded returns a generator seeded from the runtime's entropy source.
func Unseeded() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}
