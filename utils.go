package fibers

import (
	"math"
	"math/rand"
)

//////
// Helper functions.
//////

// Helper function used by the residual scorer to compute the cumulative
// distribution function of the standard normal distribution.
//
// Returns:
// - Probability that a standard normal random variable is less than x.
func normalCDF(x float64) float64 {
	return 0.5 * (1.0 + math.Erf(x/math.Sqrt2))
}

// newRNG constructs a seeded generator. Every stochastic operation in the
// engine draws from an explicit generator built here, never from hidden
// global state, which is what makes fixed-seed runs byte-reproducible.
func newRNG(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// subSeeds derives n child seeds from a parent generator, so each nested
// stochastic step runs under its own reproducible seed.
func subSeeds(rng *rand.Rand, n int) []int64 {
	seeds := make([]int64, n)
	for i := range seeds {
		seeds[i] = rng.Int63()
	}

	return seeds
}

// roundHalfUp rounds to the nearest integer with halves away from zero.
func roundHalfUp(x float64) int {
	return int(math.Round(x))
}

// sampleStrings draws k elements from pool uniformly without replacement,
// preserving no particular order beyond the permutation. Panics if k exceeds
// the pool; callers guarantee bounds.
func sampleStrings(rng *rand.Rand, pool []string, k int) []string {
	perm := rng.Perm(len(pool))

	out := make([]string, k)
	for i := 0; i < k; i++ {
		out[i] = pool[perm[i]]
	}

	return out
}

// dedupeStrings removes repeated elements preserving first-occurrence order.
func dedupeStrings(items []string) []string {
	seen := make(map[string]struct{}, len(items))

	unique := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}

		seen[item] = struct{}{}
		unique = append(unique, item)
	}

	return unique
}

// stringsNotIn returns the elements of universe absent from exclude,
// preserving universe order.
func stringsNotIn(universe, exclude []string) []string {
	present := make(map[string]struct{}, len(exclude))
	for _, item := range exclude {
		present[item] = struct{}{}
	}

	out := make([]string, 0, len(universe))
	for _, item := range universe {
		if _, ok := present[item]; !ok {
			out = append(out, item)
		}
	}

	return out
}

// containsString reports whether items contains target.
func containsString(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}

	return false
}

// equalStrings reports element-wise equality of two slices.
func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
