package fibers

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// variationPopulation builds four disjoint scored bins over a 12-feature
// universe.
func variationPopulation() (*Population, []string) {
	universe := testUniverse(12)

	bins := make([]*Bin, 4)
	for i := range bins {
		bins[i] = newBin(universe[i*3:i*3+3], i, fmt.Sprintf("Bin %d", i+1))
		bins[i].SetScore(Score{Value: float64(i + 1), Valid: true})
	}

	return newPopulation(bins), universe
}

func variationConfig() Config {
	cfg := DefaultConfig()
	cfg.PopulationSize = 4
	cfg.ElitismFraction = 0.5
	cfg.CrossoverProbability = 0.5
	cfg.MutationProbability = 0
	cfg.StartingThreshold = 0
	cfg.Threshold = Range[int]{Min: 0, Max: 5}

	return cfg
}

func TestNumReplacementSets(t *testing.T) {
	assert.Equal(t, 1, numReplacementSets(4, 0.5))
	assert.Equal(t, 5, numReplacementSets(50, 0.8))

	// Odd non-elite counts truncate; repair pads the population back.
	assert.Equal(t, 1, numReplacementSets(5, 0.4))
}

func TestRegularStrategyOffspringCount(t *testing.T) {
	pop, universe := variationPopulation()
	cfg := variationConfig()

	offspring := crossoverAndMutationRegular(cfg, universe, pop, 42, false)

	assert.Len(t, offspring, 2)
}

func TestRegularStrategySizeBalance(t *testing.T) {
	pop, universe := variationPopulation()
	cfg := variationConfig()

	// With mutation off and disjoint parents, offspring sizes are exactly
	// what crossover plus balancing produced.
	for seed := int64(0); seed < 30; seed++ {
		offspring := crossoverAndMutationRegular(cfg, universe, pop, seed, false)

		require.Len(t, offspring, 2)
		diff := math.Abs(float64(offspring[0].Len() - offspring[1].Len()))
		assert.LessOrEqual(t, diff, 1.0, "seed %d", seed)
	}
}

func TestRegularStrategyDeterministic(t *testing.T) {
	pop, universe := variationPopulation()
	cfg := variationConfig()
	cfg.MutationProbability = 0.3

	a := crossoverAndMutationRegular(cfg, universe, pop, 7, true)
	b := crossoverAndMutationRegular(cfg, universe, pop, 7, true)

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Features(), b[i].Features())
		assert.Equal(t, a[i].Threshold(), b[i].Threshold())
	}
}

func TestRegularStrategyNoRepeatsAfterCleanup(t *testing.T) {
	pop, universe := variationPopulation()
	cfg := variationConfig()
	cfg.MutationProbability = 0.4

	for seed := int64(0); seed < 20; seed++ {
		for _, o := range crossoverAndMutationRegular(cfg, universe, pop, seed, false) {
			features := o.Features()
			assert.Equal(t, dedupeStrings(features), features)
		}
	}
}

func TestThresholdMutationPolarity(t *testing.T) {
	pop, universe := variationPopulation()
	cfg := variationConfig()

	// Mutation probability 1 means the draw never exceeds it, so offspring
	// keep the crossed-over parent thresholds.
	cfg.MutationProbability = 1

	for seed := int64(0); seed < 10; seed++ {
		for _, o := range crossoverAndMutationRegular(cfg, universe, pop, seed, true) {
			assert.Contains(t, []int{0, 1, 2, 3}, o.Threshold())
		}
	}

	// Mutation probability 0 means every draw exceeds it: thresholds are
	// always re-drawn uniformly from the configured range.
	cfg.MutationProbability = 0
	cfg.Threshold = Range[int]{Min: 4, Max: 6}

	for seed := int64(0); seed < 10; seed++ {
		for _, o := range crossoverAndMutationRegular(cfg, universe, pop, seed, true) {
			assert.GreaterOrEqual(t, o.Threshold(), 4)
			assert.LessOrEqual(t, o.Threshold(), 6)
		}
	}
}

func TestSimpleStrategyGrowsBins(t *testing.T) {
	pop, universe := variationPopulation()
	cfg := variationConfig()
	cfg.Strategy = StrategySimple
	cfg.MutationProbability = 1

	// Insertion-only mutation never shrinks an offspring below its
	// post-crossover size.
	for seed := int64(0); seed < 20; seed++ {
		offspring := crossoverAndMutationSimple(cfg, universe, pop, seed, false)

		require.Len(t, offspring, 2)
		total := offspring[0].Len() + offspring[1].Len()
		assert.GreaterOrEqual(t, total, 6, "seed %d", seed)

		for _, o := range offspring {
			features := o.Features()
			assert.Equal(t, dedupeStrings(features), features)
		}
	}
}

func TestSimpleStrategyDeterministic(t *testing.T) {
	pop, universe := variationPopulation()
	cfg := variationConfig()
	cfg.MutationProbability = 0.5

	a := crossoverAndMutationSimple(cfg, universe, pop, 11, true)
	b := crossoverAndMutationSimple(cfg, universe, pop, 11, true)

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Features(), b[i].Features())
		assert.Equal(t, a[i].Threshold(), b[i].Threshold())
	}
}

func TestMutateRegularAtUniverse(t *testing.T) {
	universe := testUniverse(5)
	rng := newRNG(1)

	// A bin spanning the whole universe has addition probability zero and
	// with deletion off stays intact.
	out := mutateRegular(rng, append([]string(nil), universe...), universe, 0)
	assert.Equal(t, universe, out)
}
