package fibers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// repairTestMatrix builds a small feature matrix over the given universe
// with deterministic count values.
func repairTestMatrix(t *testing.T, universe []string, rows int) *Matrix {
	t.Helper()

	data := make([]float64, 0, rows*len(universe))
	events := make([]float64, rows)
	durations := make([]float64, rows)

	for i := 0; i < rows; i++ {
		for j := range universe {
			data = append(data, float64((i+j)%3))
		}

		events[i] = float64(i % 2)
		durations[i] = float64(i + 1)
	}

	m, err := NewMatrix(universe, data, "Censoring", "Duration", events, durations)
	require.NoError(t, err)

	return m
}

func TestNextGenerationKeepsElites(t *testing.T) {
	pop := scoredPopulation(3, 9, 1, 7, 5)
	offspring := []*Bin{
		newBin([]string{"F9"}, 0, ""),
		newBin([]string{"F10"}, 0, ""),
	}

	combined := nextGeneration(pop, 5, 0.4, offspring)

	// round(5*0.4)=2 elites, best first, then the offspring untouched.
	require.Len(t, combined, 4)
	assert.Equal(t, 9.0, combined[0].Score().Value)
	assert.Equal(t, 7.0, combined[1].Score().Value)
	assert.Equal(t, []string{"F9"}, combined[2].Features())
	assert.Equal(t, []string{"F10"}, combined[3].Features())
}

func TestRegroupReplacesEmptyAndDuplicateBins(t *testing.T) {
	universe := testUniverse(20)
	m := repairTestMatrix(t, universe, 8)

	// One empty bin and a membership-duplicate pair: both defects must be
	// replaced by fresh random bins.
	combined := []*Bin{
		newBin(nil, 0, ""),
		newBin([]string{"F1", "F2"}, 0, ""),
		newBin([]string{"F2", "F1"}, 3, ""),
	}

	binMatrix, pop, err := regroupFeatureMatrix(universe, m, combined, 42, 0, 3)
	require.NoError(t, err)

	require.Equal(t, 3, pop.Len())

	bins := pop.Bins()
	for i, bin := range bins {
		assert.Positive(t, bin.Len())

		features := bin.Features()
		assert.Equal(t, dedupeStrings(features), features)

		for j := 0; j < i; j++ {
			assert.False(t, SameMembership(bin, bins[j]), "bins %d and %d share membership", i, j)
		}
	}

	// Sequential renaming and a rebuilt bin-feature matrix in list order.
	assert.Equal(t, []string{"Bin 1", "Bin 2", "Bin 3"}, binMatrix.ColumnNames())
	assert.Equal(t, "Bin 1", bins[0].Name())

	// The survivor kept its membership; the replacements match the mean
	// surviving size of two members.
	assert.ElementsMatch(t, []string{"F1", "F2"}, bins[0].Features())
	assert.Equal(t, 2, bins[1].Len())
	assert.Equal(t, 2, bins[2].Len())
}

func TestRegroupPadsPopulationToTarget(t *testing.T) {
	universe := testUniverse(12)
	m := repairTestMatrix(t, universe, 6)

	combined := []*Bin{
		newBin([]string{"F1", "F2", "F3"}, 0, ""),
		newBin([]string{"F4", "F5"}, 0, ""),
	}

	_, pop, err := regroupFeatureMatrix(universe, m, combined, 7, 0, 5)
	require.NoError(t, err)

	assert.Equal(t, 5, pop.Len())
}

func TestRegroupTrimsPopulationToTarget(t *testing.T) {
	universe := testUniverse(12)
	m := repairTestMatrix(t, universe, 6)

	combined := []*Bin{
		newBin([]string{"F1"}, 0, ""),
		newBin([]string{"F2"}, 0, ""),
		newBin([]string{"F3"}, 0, ""),
		newBin([]string{"F4"}, 0, ""),
	}

	_, pop, err := regroupFeatureMatrix(universe, m, combined, 7, 0, 3)
	require.NoError(t, err)

	assert.Equal(t, 3, pop.Len())
}

func TestRegroupRepairsInBinRepeats(t *testing.T) {
	universe := testUniverse(10)
	m := repairTestMatrix(t, universe, 6)

	withRepeat := newBin([]string{"F1", "F2", "F1"}, 0, "")
	withRepeat.SetScore(Score{Value: 4, Valid: true})

	clean := newBin([]string{"F3", "F4"}, 0, "")
	clean.SetScore(Score{Value: 2, Valid: true})

	other := newBin([]string{"F5", "F6"}, 0, "")
	other.SetScore(Score{Value: 1, Valid: true})

	_, pop, err := regroupFeatureMatrix(universe, m, []*Bin{withRepeat, clean, other}, 3, 0, 3)
	require.NoError(t, err)

	// The repeat is gone, the bin backfilled to its pre-dedup size and
	// marked stale; untouched bins keep their scores.
	assert.Len(t, withRepeat.Features(), 3)
	assert.Equal(t, dedupeStrings(withRepeat.Features()), withRepeat.Features())
	assert.False(t, withRepeat.Seen())
	assert.True(t, clean.Seen())
	assert.True(t, other.Seen())

	assert.Equal(t, 3, pop.Len())
}

func TestRegroupFailsWhenUniverseCannotDiversify(t *testing.T) {
	universe := []string{"F1"}
	m := repairTestMatrix(t, universe, 4)

	// Every synthesized replacement over a single-feature universe is the
	// same bin, so duplicate avoidance must give up with a clear error.
	combined := []*Bin{
		newBin([]string{"F1"}, 0, ""),
		newBin(nil, 0, ""),
	}

	_, _, err := regroupFeatureMatrix(universe, m, combined, 1, 0, 2)
	assert.ErrorIs(t, err, ErrUniverseTooSmall)
}
