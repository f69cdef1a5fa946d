package fibers

import "fmt"

//////
// Population initialization.
//////

// randomFeatureGrouping builds the first generation by random assignment of
// the usable features into bins, with repeat-multiplicity control so a
// feature may start out in several bins.
//
// Protocol (deterministic for a fixed seed):
//  1. Each feature draws a repeat count uniformly in [0, maxRepeats) from
//     its own derived seed and contributes that many extra copies to a
//     working pool.
//  2. The pool is shuffled under the top-level seed.
//  3. The first minPerGroup*groups pool entries are dealt round-robin into
//     groups of exactly minPerGroup.
//  4. Every remaining pool entry lands in a uniformly random group, each
//     draw under its own derived seed. Running out of entries here simply
//     stops the step; it is not an error.
//  5. Each group's membership is deduplicated, first occurrence kept.
//
// Returns the (possibly repeat-containing) working pool and the bins,
// labeled "Bin 1".."Bin G".
func randomFeatureGrouping(universe []string, groups, minPerGroup, maxRepeats int, seed int64, threshold int) ([]string, []*Bin) {
	repeatSeeds := subSeeds(newRNG(seed), len(universe))

	pooled := append([]string(nil), universe...)
	for w, feature := range universe {
		repeats := newRNG(repeatSeeds[w]).Intn(maxRepeats)
		for r := 0; r < repeats; r++ {
			pooled = append(pooled, feature)
		}
	}

	shuffled := append([]string(nil), pooled...)
	newRNG(seed).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	members := make([][]string, groups)

	assigned := minPerGroup * groups
	for j := 0; j < assigned && j < len(shuffled); j++ {
		members[j%groups] = append(members[j%groups], shuffled[j])
	}

	if assigned < len(shuffled) {
		remainderSeeds := subSeeds(newRNG(seed), len(shuffled)-assigned)
		for i, feature := range shuffled[assigned:] {
			g := newRNG(remainderSeeds[i]).Intn(groups)
			members[g] = append(members[g], feature)
		}
	}

	bins := make([]*Bin, groups)
	for i := range members {
		name := fmt.Sprintf("Bin %d", i+1)
		bins[i] = newBin(dedupeStrings(members[i]), threshold, name)
	}

	return pooled, bins
}

// seededFeatureGrouping wraps an externally supplied starting configuration:
// each starting bin's membership is deduplicated and wrapped with the
// configured starting threshold under its given name.
func seededFeatureGrouping(starting []StartingBin, threshold int) []*Bin {
	bins := make([]*Bin, len(starting))
	for i, sb := range starting {
		bins[i] = newBin(dedupeStrings(sb.Features), threshold, sb.Name)
	}

	return bins
}
