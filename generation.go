package fibers

import (
	"fmt"
	"math/rand"
)

//////
// Generational replacement.
//////

// nextGeneration keeps the top round(target*elitism) bins by score and
// appends the offspring. It deliberately does not trim: repair owns the
// final population size.
func nextGeneration(pop *Population, target int, elitism float64, offspring []*Bin) []*Bin {
	sorted := append([]*Bin(nil), pop.Bins()...)
	sortByScoreDesc(sorted)

	elites := roundHalfUp(float64(target) * elitism)
	if elites > len(sorted) {
		elites = len(sorted)
	}

	combined := make([]*Bin, 0, elites+len(offspring))
	combined = append(combined, sorted[:elites]...)
	combined = append(combined, offspring...)

	return combined
}

//////
// Regrouping / repair.
//////

// regroupFeatureMatrix repairs a combined elite+offspring bin list and
// re-derives the bin-feature matrix:
//
//  1. Empty bins and membership-duplicate bins are dropped.
//  2. Each dropped bin is replaced by a fresh random bin of the mean
//     surviving size, resampled (bounded) until its membership is unique in
//     the list; the population is then padded or trimmed to exactly target.
//  3. Surviving bins lose in-bin feature repeats and are backfilled with
//     absent features to their pre-dedup size; a changed membership marks
//     the bin unseen so it is re-scored and re-thresholded.
//  4. Bins are renamed "Bin 1".."Bin N" in list order and the bin-feature
//     matrix is rebuilt from the original feature matrix.
//
// Post-conditions: population size == target, no empty bins, no
// membership-duplicate bins, no in-bin repeats.
func regroupFeatureMatrix(universe []string, featureMatrix *Matrix, combined []*Bin, seed int64, threshold, target int) (*Matrix, *Population, error) {
	rng := newRNG(seed)

	survivors := make([]*Bin, 0, len(combined))
	dropped := 0

	for _, bin := range combined {
		if bin.Len() == 0 {
			dropped++
			continue
		}

		duplicate := false
		for _, kept := range survivors {
			if SameMembership(bin, kept) {
				duplicate = true
				break
			}
		}

		if duplicate {
			dropped++
			continue
		}

		survivors = append(survivors, bin)
	}

	// Mean member count over surviving bins; the driver never lets the
	// whole population empty out, so guard only against the degenerate
	// zero-survivor case.
	replacementLength := 1
	if len(survivors) > 0 {
		total := 0
		for _, bin := range survivors {
			total += bin.Len()
		}

		replacementLength = roundHalfUp(float64(total) / float64(len(survivors)))
	}

	if replacementLength < 1 {
		replacementLength = 1
	}

	if replacementLength > len(universe) {
		replacementLength = len(universe)
	}

	// Replace what was dropped, then correct any size drift left by the
	// elite/offspring split back to the target.
	needed := dropped
	if len(survivors)+needed < target {
		needed = target - len(survivors)
	}

	for i := 0; i < needed; i++ {
		replacement, err := synthesizeBin(rng, universe, replacementLength, threshold, survivors)
		if err != nil {
			return nil, nil, err
		}

		survivors = append(survivors, replacement)
	}

	if len(survivors) > target {
		survivors = survivors[:target]
	}

	for _, bin := range survivors {
		repairMembership(rng, bin, universe)
	}

	for i, bin := range survivors {
		bin.SetName(fmt.Sprintf("Bin %d", i+1))
	}

	binMatrix := featureMatrix.aggregateBins(survivors)

	return binMatrix, newPopulation(survivors), nil
}

// synthesizeBin samples a fresh random bin whose membership is not already
// present in existing. Resampling is bounded; exhausting the budget means
// the universe cannot support the requested diversity.
func synthesizeBin(rng *rand.Rand, universe []string, length, threshold int, existing []*Bin) (*Bin, error) {
	maxAttempts := 2*len(existing) + 2

	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate := newBin(sampleStrings(rng, universe, length), threshold, "")

		unique := true
		for _, bin := range existing {
			if SameMembership(candidate, bin) {
				unique = false
				break
			}
		}

		if unique {
			return candidate, nil
		}
	}

	return nil, ErrUniverseTooSmall
}

// repairMembership removes in-bin feature repeats and backfills with
// randomly sampled absent features to restore the pre-dedup count (or with
// every absent feature when the universe runs short). Only an actual
// membership change marks the bin unseen.
func repairMembership(rng *rand.Rand, bin *Bin, universe []string) {
	features := bin.Features()
	unique := dedupeStrings(features)

	replace := len(features) - len(unique)

	repaired := unique
	if replace > 0 {
		notIn := stringsNotIn(universe, unique)
		if len(notIn) > replace {
			repaired = append(repaired, sampleStrings(rng, notIn, replace)...)
		} else {
			repaired = append(repaired, notIn...)
		}
	}

	if !equalStrings(features, repaired) {
		bin.SetFeatures(repaired)
	}
}
