package fibers

//////
// Selection operator.
//////

// tournamentSelection picks two parent bins: it samples 5% of the
// population (rounded) without replacement, or 50% when 5% would round
// below two, then returns the two best-scoring bins of the sample.
//
// Callers guarantee the population is large enough for the chosen branch to
// yield at least two bins; Config.Validate enforces a minimum population of
// three, which makes the 50% branch safe.
func tournamentSelection(pop *Population, seed int64) (*Bin, *Bin) {
	rng := newRNG(seed)

	sampleSize := roundHalfUp(0.05 * float64(pop.Len()))
	if sampleSize < 2 {
		sampleSize = roundHalfUp(0.5 * float64(pop.Len()))
	}

	bins := pop.Bins()
	perm := rng.Perm(len(bins))

	sample := make([]*Bin, sampleSize)
	for i := 0; i < sampleSize; i++ {
		sample[i] = bins[perm[i]]
	}

	sortByScoreDesc(sample)

	return sample[0], sample[1]
}
