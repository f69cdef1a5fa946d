package fibers

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

//////
// Available importance scorers.
// Each maps a bin's aggregated column, binarized at the bin's threshold, to
// an importance score and an informativeness flag. The engine treats all
// three as behaviorally equivalent and dispatches on the configured method
// exactly once per run.
//////

// newScorer constructs the configured Scorer, capturing the survival
// columns, cutoff, and method-specific inputs (residuals or covariates) so
// nothing is re-branched inside the generation loop.
func newScorer(cfg Config, m *Matrix, residuals []float64, covariates *mat.Dense) (Scorer, error) {
	switch cfg.Method {
	case ScoreLogRank:
		return &logRankScorer{
			events:    m.events,
			durations: m.durations,
			cutoff:    cfg.InformativeCutoff,
		}, nil

	case ScoreResiduals:
		if len(residuals) != m.Rows() {
			return nil, fmt.Errorf("residual scorer: %d residuals for %d instances", len(residuals), m.Rows())
		}

		return &residualScorer{
			residuals: residuals,
			cutoff:    cfg.InformativeCutoff,
		}, nil

	case ScoreAIC:
		baseline, err := fitCox(covariates, m.events, m.durations)
		if err != nil {
			return nil, fmt.Errorf("AIC scorer baseline fit: %w", err)
		}

		return &aicScorer{
			events:     m.events,
			durations:  m.durations,
			covariates: covariates,
			baseline:   baseline,
			cutoff:     cfg.InformativeCutoff,
		}, nil

	default:
		return nil, fmt.Errorf("%w: unknown scoring method %q", ErrInvalidConfig, cfg.Method)
	}
}

// binarize splits a bin's aggregated column at the threshold: 1 for values
// strictly greater, 0 otherwise.
func binarize(column []float64, threshold int) []float64 {
	out := make([]float64, len(column))
	for i, v := range column {
		if v > float64(threshold) {
			out[i] = 1
		}
	}

	return out
}

// degenerate reports whether a binarized column puts every instance in one
// group, which no scorer can use.
func degenerate(group []float64) bool {
	ones := 0
	for _, g := range group {
		if g == 1 {
			ones++
		}
	}

	return ones == 0 || ones == len(group)
}

//////
// Log-rank scorer.
//////

// logRankScorer scores a bin with the two-group log-rank test: the
// chi-squared statistic comparing the survival experience of instances
// above versus at-or-below the threshold. Informative when the 1-df
// p-value is at or below the cutoff; uninformative bins score zero.
type logRankScorer struct {
	events, durations []float64
	cutoff            float64
}

func (s *logRankScorer) ScoreBin(column []float64, threshold int) (float64, bool, error) {
	if len(column) != len(s.events) {
		return 0, false, fmt.Errorf("log-rank scorer: column has %d values for %d instances", len(column), len(s.events))
	}

	group := binarize(column, threshold)
	if degenerate(group) {
		return 0, false, nil
	}

	chi2, ok := logRankStatistic(group, s.events, s.durations)
	if !ok {
		return 0, false, nil
	}

	p := distuv.ChiSquared{K: 1}.Survival(chi2)
	if p <= s.cutoff {
		return chi2, true, nil
	}

	return 0, false, nil
}

// logRankStatistic computes the log-rank chi-squared statistic between
// group 1 and group 0. Returns ok=false when the variance term is zero
// (no comparable event structure).
func logRankStatistic(group, events, durations []float64) (float64, bool) {
	n := len(group)

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	sort.SliceStable(order, func(a, b int) bool {
		return durations[order[a]] < durations[order[b]]
	})

	atRisk := float64(n)
	atRisk1 := 0.0
	for _, g := range group {
		atRisk1 += g
	}

	observedMinusExpected := 0.0
	variance := 0.0

	for i := 0; i < n; {
		// One pass per distinct event time: count events by group, then
		// retire everyone tied at this time from the risk sets.
		j := i
		d, d1 := 0.0, 0.0
		removed1 := 0.0

		for j < n && durations[order[j]] == durations[order[i]] {
			k := order[j]
			if events[k] == 1 {
				d++
				d1 += group[k]
			}

			removed1 += group[k]
			j++
		}

		if d > 0 {
			expected1 := d * atRisk1 / atRisk
			observedMinusExpected += d1 - expected1

			if atRisk > 1 {
				variance += d * (atRisk1 / atRisk) * (1 - atRisk1/atRisk) * (atRisk - d) / (atRisk - 1)
			}
		}

		atRisk -= float64(j - i)
		atRisk1 -= removed1
		i = j
	}

	if variance == 0 {
		return 0, false
	}

	return observedMinusExpected * observedMinusExpected / variance, true
}

//////
// Residual scorer.
//////

// residualScorer scores a bin by the point-biserial correlation between its
// binarized column and the precomputed Cox deviance residuals. The score is
// the absolute t statistic of the correlation; informative when the
// normal-approximation p-value is at or below the cutoff.
type residualScorer struct {
	residuals []float64
	cutoff    float64
}

func (s *residualScorer) ScoreBin(column []float64, threshold int) (float64, bool, error) {
	if len(column) != len(s.residuals) {
		return 0, false, fmt.Errorf("residual scorer: column has %d values for %d instances", len(column), len(s.residuals))
	}

	group := binarize(column, threshold)
	if degenerate(group) {
		return 0, false, nil
	}

	r := stat.Correlation(group, s.residuals, nil)
	if math.IsNaN(r) {
		return 0, false, nil
	}

	n := float64(len(group))

	denom := 1 - r*r
	if denom < 1e-12 {
		denom = 1e-12
	}

	t := math.Abs(r) * math.Sqrt((n-2)/denom)

	p := 2 * (1 - normalCDF(t))
	if p <= s.cutoff {
		return t, true, nil
	}

	return 0, false, nil
}

//////
// AIC scorer.
//////

// aicScorer scores a bin by the AIC improvement of a Cox model that adds
// the binarized column to the configured covariates, against the cached
// covariates-only baseline fit. Informative when the 1-df likelihood-ratio
// p-value is at or below the cutoff. A singular per-bin fit degrades to
// uninformative, never fatal.
type aicScorer struct {
	events, durations []float64
	covariates        *mat.Dense // nil for the null baseline
	baseline          *coxModel
	cutoff            float64
}

func (s *aicScorer) ScoreBin(column []float64, threshold int) (float64, bool, error) {
	if len(column) != len(s.events) {
		return 0, false, fmt.Errorf("AIC scorer: column has %d values for %d instances", len(column), len(s.events))
	}

	group := binarize(column, threshold)
	if degenerate(group) {
		return 0, false, nil
	}

	n := len(group)

	p := 0
	if s.covariates != nil {
		_, p = s.covariates.Dims()
	}

	design := mat.NewDense(n, p+1, nil)
	for j := 0; j < p; j++ {
		for i := 0; i < n; i++ {
			design.Set(i, j, s.covariates.At(i, j))
		}
	}

	design.SetCol(p, group)

	full, err := fitCox(design, s.events, s.durations)
	if err != nil {
		if errors.Is(err, ErrSingularFit) {
			return 0, false, nil
		}

		return 0, false, err
	}

	lrt := 2 * (full.logLikelihood - s.baseline.logLikelihood)
	if lrt < 0 {
		lrt = 0
	}

	pValue := distuv.ChiSquared{K: 1}.Survival(lrt)
	if pValue <= s.cutoff {
		return s.baseline.aic() - full.aic(), true, nil
	}

	return 0, false, nil
}
