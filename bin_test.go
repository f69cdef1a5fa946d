package fibers

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// peakScorer prefers thresholds close to its peak; always informative.
type peakScorer struct {
	peak int
}

func (s peakScorer) ScoreBin(_ []float64, threshold int) (float64, bool, error) {
	return 10 - math.Abs(float64(threshold-s.peak)), true, nil
}

func TestBinSettersMarkUnseen(t *testing.T) {
	b := newBin([]string{"F1", "F2"}, 0, "Bin 1")
	assert.False(t, b.Seen())

	b.SetScore(Score{Value: 1.5, Valid: true})
	assert.True(t, b.Seen())

	// Changing membership invalidates the cached score.
	b.SetFeatures([]string{"F1", "F3"})
	assert.False(t, b.Seen())

	b.SetScore(Score{Value: 2.0, Valid: true})
	b.SetThreshold(2)
	assert.False(t, b.Seen())

	// Renaming is cosmetic and keeps the score current.
	b.SetScore(Score{Value: 2.0, Valid: true})
	b.SetName("Bin 7")
	assert.True(t, b.Seen())
}

func TestBinFeaturesAreCopied(t *testing.T) {
	b := newBin([]string{"F1", "F2"}, 0, "Bin 1")

	got := b.Features()
	got[0] = "clobbered"

	assert.Equal(t, []string{"F1", "F2"}, b.Features())
}

func TestSameMembership(t *testing.T) {
	a := newBin([]string{"F1", "F2", "F3"}, 0, "Bin 1")
	b := newBin([]string{"F3", "F1", "F2"}, 5, "Bin 2")
	c := newBin([]string{"F1", "F2"}, 0, "Bin 3")
	d := newBin([]string{"F1", "F2", "F4"}, 0, "Bin 4")

	// Order and threshold are ignored; only membership counts.
	assert.True(t, SameMembership(a, b))
	assert.False(t, SameMembership(a, c))
	assert.False(t, SameMembership(a, d))

	// Multiset semantics: repeats are not collapsed.
	e := newBin([]string{"F1", "F1", "F2"}, 0, "Bin 5")
	f := newBin([]string{"F1", "F2", "F2"}, 0, "Bin 6")
	assert.False(t, SameMembership(e, f))
}

func TestSortByScoreDesc(t *testing.T) {
	scored := func(name string, value float64) *Bin {
		b := newBin([]string{"F1"}, 0, name)
		b.SetScore(Score{Value: value, Valid: true})
		return b
	}

	unscored := newBin([]string{"F2"}, 0, "unscored")

	bins := []*Bin{scored("low", 1), unscored, scored("high", 9), scored("mid", 4)}
	sortByScoreDesc(bins)

	assert.Equal(t, "high", bins[0].Name())
	assert.Equal(t, "mid", bins[1].Name())
	assert.Equal(t, "low", bins[2].Name())

	// Unscored bins order below every scored bin.
	assert.Equal(t, "unscored", bins[3].Name())
}

func TestTryAllThresholdsPicksBest(t *testing.T) {
	b := newBin([]string{"F1", "F2"}, 0, "Bin 1")
	column := []float64{0, 1, 2, 3, 4}

	require.NoError(t, b.TryAllThresholds(Range[int]{Min: 1, Max: 5}, column, peakScorer{peak: 3}))

	assert.Equal(t, 3, b.Threshold())
	assert.Equal(t, 10.0, b.Score().Value)
	assert.True(t, b.Score().Valid)
	assert.True(t, b.Seen())
}

// uninformativeScorer never finds signal at any threshold.
type uninformativeScorer struct{}

func (uninformativeScorer) ScoreBin(_ []float64, _ int) (float64, bool, error) {
	return 0, false, nil
}

func TestTryAllThresholdsAllUninformative(t *testing.T) {
	b := newBin([]string{"F1"}, 2, "Bin 1")

	require.NoError(t, b.TryAllThresholds(Range[int]{Min: 0, Max: 4}, []float64{1, 1, 1}, uninformativeScorer{}))

	// Every threshold ties at zero; the first one in the range wins and the
	// bin is marked scored-but-uninformative rather than failing.
	assert.Equal(t, 0, b.Threshold())
	assert.True(t, b.Score().Valid)
	assert.False(t, b.Score().Informative)
	assert.Zero(t, b.Score().Value)
}
