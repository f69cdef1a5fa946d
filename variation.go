package fibers

import "math/rand"

//////
// Variation operators.
//////

// numReplacementSets is the number of parent pairs drawn per generation:
// each pair produces two offspring, enough to replace the non-elite part of
// the population. The division truncates; repair fills any leftover slot.
func numReplacementSets(target int, elitism float64) int {
	return int((float64(target) - elitism*float64(target)) / 2)
}

// crossoverAndMutationRegular produces 2*numReplacementSets offspring using
// the Regular strategy: tournament parent selection, uniform crossover,
// offspring size balancing, independent per-feature deletion and addition
// mutation, optional threshold crossover/mutation, and a cleanup pass that
// deduplicates membership and backfills to the pre-dedup size.
//
// Each replacement set runs under its own seed derived from seed, so a
// fixed seed yields an identical offspring set.
func crossoverAndMutationRegular(cfg Config, universe []string, pop *Population, seed int64, evolveThreshold bool) []*Bin {
	sets := numReplacementSets(cfg.PopulationSize, cfg.ElitismFraction)
	setSeeds := subSeeds(newRNG(seed), sets)

	offspring := make([]*Bin, 0, 2*sets)

	for i := 0; i < sets; i++ {
		rng := newRNG(setSeeds[i])

		parent1, parent2 := tournamentSelection(pop, rng.Int63())

		o1, o2 := uniformCrossover(rng, parent1.Features(), parent2.Features(), cfg.CrossoverProbability)

		// Size balance: move random features from the larger offspring to
		// the smaller until sizes match (one leftover for odd totals).
		for len(o1) > len(o2) {
			idx := rng.Intn(len(o1))
			o2 = append(o2, o1[idx])
			o1 = append(o1[:idx], o1[idx+1:]...)
		}

		for len(o2) > len(o1) {
			idx := rng.Intn(len(o2))
			o1 = append(o1, o2[idx])
			o2 = append(o2[:idx], o2[idx+1:]...)
		}

		t1, t2 := crossoverThresholds(rng, cfg, parent1, parent2, evolveThreshold)

		o1 = mutateRegular(rng, o1, universe, cfg.MutationProbability)
		o2 = mutateRegular(rng, o2, universe, cfg.MutationProbability)

		t1, t2 = mutateThresholds(rng, cfg, t1, t2, evolveThreshold)

		o1 = cleanupOffspring(rng, o1, universe)
		o2 = cleanupOffspring(rng, o2, universe)

		offspring = append(offspring,
			newBin(o1, t1, ""),
			newBin(o2, t2, ""))
	}

	return offspring
}

// crossoverAndMutationSimple produces 2*numReplacementSets offspring using
// the Simple strategy: the same selection and uniform crossover (no size
// balancing), then a growth-biased mutation that inserts a not-yet-present
// feature in front of a mutated one, drawn from a shuffled pool consumed in
// order. Threshold handling matches the Regular strategy.
func crossoverAndMutationSimple(cfg Config, universe []string, pop *Population, seed int64, evolveThreshold bool) []*Bin {
	sets := numReplacementSets(cfg.PopulationSize, cfg.ElitismFraction)
	setSeeds := subSeeds(newRNG(seed), sets)

	offspring := make([]*Bin, 0, 2*sets)

	for i := 0; i < sets; i++ {
		rng := newRNG(setSeeds[i])

		parent1, parent2 := tournamentSelection(pop, rng.Int63())

		o1, o2 := uniformCrossover(rng, parent1.Features(), parent2.Features(), cfg.CrossoverProbability)

		o1 = dedupeStrings(o1)
		pool1 := stringsNotIn(universe, o1)
		rng.Shuffle(len(pool1), func(i, j int) {
			pool1[i], pool1[j] = pool1[j], pool1[i]
		})

		o2 = dedupeStrings(o2)
		pool2 := stringsNotIn(universe, o2)
		rng.Shuffle(len(pool2), func(i, j int) {
			pool2[i], pool2[j] = pool2[j], pool2[i]
		})

		t1, t2 := crossoverThresholds(rng, cfg, parent1, parent2, evolveThreshold)

		o1 = mutateSimple(rng, o1, pool1, len(universe), cfg.MutationProbability)
		o2 = mutateSimple(rng, o2, pool2, len(universe), cfg.MutationProbability)

		t1, t2 = mutateThresholds(rng, cfg, t1, t2, evolveThreshold)

		offspring = append(offspring,
			newBin(o1, t1, ""),
			newBin(o2, t2, ""))
	}

	return offspring
}

//////
// Shared pieces.
//////

// uniformCrossover sends each of parent 1's features to offspring 2 with
// probability pCross (otherwise offspring 1), and symmetrically each of
// parent 2's features to offspring 1 with probability pCross.
func uniformCrossover(rng *rand.Rand, parent1, parent2 []string, pCross float64) (o1, o2 []string) {
	for _, feature := range parent1 {
		if pCross > rng.Float64() {
			o2 = append(o2, feature)
		} else {
			o1 = append(o1, feature)
		}
	}

	for _, feature := range parent2 {
		if pCross > rng.Float64() {
			o1 = append(o1, feature)
		} else {
			o2 = append(o2, feature)
		}
	}

	return o1, o2
}

// crossoverThresholds assigns parent thresholds to offspring: straight with
// probability pCross, cross-wise otherwise. Without threshold evolution both
// offspring get the configured starting threshold.
func crossoverThresholds(rng *rand.Rand, cfg Config, parent1, parent2 *Bin, evolveThreshold bool) (t1, t2 int) {
	t1, t2 = cfg.StartingThreshold, cfg.StartingThreshold

	if !evolveThreshold {
		return t1, t2
	}

	if cfg.CrossoverProbability > rng.Float64() {
		t1, t2 = parent1.Threshold(), parent2.Threshold()
	} else {
		t2, t1 = parent1.Threshold(), parent2.Threshold()
	}

	return t1, t2
}

// mutateThresholds replaces each offspring threshold with a uniform draw
// from the threshold range when the random draw exceeds the mutation
// probability. The inverted polarity (mutate when draw > probability) is
// load-bearing for seeded reproducibility; do not flip it without a product
// decision.
func mutateThresholds(rng *rand.Rand, cfg Config, t1, t2 int, evolveThreshold bool) (int, int) {
	if !evolveThreshold {
		return t1, t2
	}

	span := cfg.Threshold.Max - cfg.Threshold.Min + 1

	if cfg.MutationProbability < rng.Float64() {
		t1 = cfg.Threshold.Min + rng.Intn(span)
	}

	if cfg.MutationProbability < rng.Float64() {
		t2 = cfg.Threshold.Min + rng.Intn(span)
	}

	return t1, t2
}

// mutateRegular applies deletion then addition mutation to one offspring.
// The addition probability is scaled by the pre-deletion bin size so the
// expected size stays near its current size: pMut * |bin| / (|universe| -
// |bin|), flat pMut for an empty bin, zero for a bin equal to the universe.
func mutateRegular(rng *rand.Rand, offspring, universe []string, pMut float64) []string {
	var addProb float64

	switch {
	case len(offspring) == len(universe):
		addProb = 0
	case len(offspring) == 0:
		addProb = pMut
	default:
		addProb = pMut * float64(len(offspring)) / float64(len(universe)-len(offspring))
	}

	kept := make([]string, 0, len(offspring))
	for _, feature := range offspring {
		if pMut > rng.Float64() {
			continue // deleted
		}

		kept = append(kept, feature)
	}

	for _, feature := range stringsNotIn(universe, kept) {
		if addProb > rng.Float64() {
			kept = append(kept, feature)
		}
	}

	return kept
}

// mutateSimple walks the offspring and, with probability pMut per feature,
// inserts the next feature from the shuffled not-present pool right before
// it, keeping both. No insertion happens when the offspring already spans
// the universe or the pool is consumed, so mutation tends to grow bins.
func mutateSimple(rng *rand.Rand, offspring, pool []string, universeSize int, pMut float64) []string {
	out := make([]string, 0, len(offspring)+len(pool))

	idx := 0
	for _, feature := range offspring {
		if pMut > rng.Float64() && len(offspring) < universeSize && idx < len(pool) {
			out = append(out, pool[idx])
			idx++
		}

		out = append(out, feature)
	}

	return out
}

// cleanupOffspring deduplicates membership and backfills with uniformly
// sampled absent features to restore the pre-dedup size, or with every
// remaining absent feature when fewer exist than needed.
func cleanupOffspring(rng *rand.Rand, offspring, universe []string) []string {
	unique := dedupeStrings(offspring)

	replace := len(offspring) - len(unique)
	if replace == 0 {
		return unique
	}

	notIn := stringsNotIn(universe, unique)
	if len(notIn) > replace {
		return append(unique, sampleStrings(rng, notIn, replace)...)
	}

	return append(unique, notIn...)
}
