package fibers

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestFitCoxNullModel(t *testing.T) {
	events := []float64{1, 1, 0}
	durations := []float64{1, 2, 3}

	model, err := fitCox(nil, events, durations)
	require.NoError(t, err)

	assert.Empty(t, model.beta)

	// Breslow partial log-likelihood of the null model: -log(3) - log(2).
	assert.InDelta(t, -math.Log(6), model.logLikelihood, 1e-12)

	// Nelson-Aalen steps: 1/3 at t=1, 1/2 at t=2, nothing at t=3.
	assert.InDelta(t, 1.0/3.0, model.cumHazard[0], 1e-12)
	assert.InDelta(t, 1.0/3.0+1.0/2.0, model.cumHazard[1], 1e-12)
	assert.InDelta(t, 1.0/3.0+1.0/2.0, model.cumHazard[2], 1e-12)

	assert.InDelta(t, -2*model.logLikelihood, model.aic(), 1e-12)
}

func TestFitCoxRecoversHazardDirection(t *testing.T) {
	// Alternating exposure where the exposed instance of each pair fails
	// first: the fitted coefficient must come out positive and improve on
	// the null likelihood.
	design := mat.NewDense(6, 1, []float64{1, 0, 1, 0, 1, 0})
	events := []float64{1, 1, 1, 1, 1, 1}
	durations := []float64{1, 2, 3, 4, 5, 6}

	model, err := fitCox(design, events, durations)
	require.NoError(t, err)
	require.Len(t, model.beta, 1)

	assert.Positive(t, model.beta[0])

	null, err := fitCox(nil, events, durations)
	require.NoError(t, err)

	assert.Greater(t, model.logLikelihood, null.logLikelihood)
	assert.Less(t, model.aic(), null.aic()+2)
}

func TestFitCoxTiedTimes(t *testing.T) {
	// Two events tied at t=2 with everyone still at risk: Breslow gives
	// each the full risk-set denominator.
	events := []float64{1, 1, 0, 0}
	durations := []float64{2, 2, 5, 5}

	model, err := fitCox(nil, events, durations)
	require.NoError(t, err)

	assert.InDelta(t, -2*math.Log(4), model.logLikelihood, 1e-12)
	assert.InDelta(t, 0.5, model.cumHazard[0], 1e-12)
	assert.InDelta(t, 0.5, model.cumHazard[3], 1e-12)
}

func TestFitCoxSingularDesign(t *testing.T) {
	// A constant column carries no information within any risk set.
	design := mat.NewDense(4, 1, []float64{1, 1, 1, 1})
	events := []float64{1, 0, 1, 0}
	durations := []float64{1, 2, 3, 4}

	_, err := fitCox(design, events, durations)
	assert.ErrorIs(t, err, ErrSingularFit)
}

func TestDevianceResidualSigns(t *testing.T) {
	events := []float64{1, 1, 0, 0, 1, 0}
	durations := []float64{1, 3, 4, 6, 7, 9}

	model, err := fitCox(nil, events, durations)
	require.NoError(t, err)

	residuals := model.devianceResiduals(events)
	require.Len(t, residuals, len(events))

	for i, r := range residuals {
		require.False(t, math.IsNaN(r), "residual %d is NaN", i)

		// A censored instance can only under-shoot its expected hazard.
		if events[i] == 0 {
			assert.LessOrEqual(t, r, 0.0, "censored residual %d", i)
		}
	}

	// The earliest event beats a near-zero cumulative hazard: positive.
	assert.Positive(t, residuals[0])
}

func TestComputeResiduals(t *testing.T) {
	m, err := NewMatrix(
		[]string{"Age"},
		[]float64{50, 60, 70, 55, 65},
		"Censoring", "Duration",
		[]float64{1, 0, 1, 1, 0},
		[]float64{2, 4, 1, 5, 3},
	)
	require.NoError(t, err)

	residuals, err := computeResiduals(m, []string{"Age"})
	require.NoError(t, err)
	assert.Len(t, residuals, 5)

	nullResiduals, err := computeResiduals(m, nil)
	require.NoError(t, err)
	assert.Len(t, nullResiduals, 5)

	_, err = computeResiduals(m, []string{"Missing"})
	assert.ErrorIs(t, err, ErrBadMatrix)
}
