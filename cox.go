package fibers

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

//////
// Const, vars, types.
//////

// ErrSingularFit is returned when the Cox partial-likelihood Hessian is not
// positive definite, typically because a column is constant or collinear
// within the risk sets. Scorers degrade this to "uninformative".
var ErrSingularFit = errors.New("singular cox model fit")

const (
	// coxMaxIterations bounds the Newton-Raphson loop.
	coxMaxIterations = 50

	// coxTolerance is the convergence bound on the coefficient step.
	coxTolerance = 1e-8
)

// coxModel holds a fitted Cox proportional-hazards model: coefficients,
// maximized Breslow partial log-likelihood, per-instance linear predictors
// and the Breslow baseline cumulative hazard evaluated at each instance's
// time. A model with zero covariates is the null model (Nelson-Aalen
// baseline only).
type coxModel struct {
	// beta holds the fitted coefficients, one per design column.
	beta []float64

	// logLikelihood is the maximized partial log-likelihood.
	logLikelihood float64

	// eta is the per-instance linear predictor x_i . beta.
	eta []float64

	// cumHazard is the baseline cumulative hazard at each instance's
	// observed time.
	cumHazard []float64
}

//////
// Fitting.
//////

// fitCox maximizes the Breslow partial likelihood of a Cox proportional
// hazards model by Newton-Raphson. design is an instances-by-p block and
// may be nil for the null model (p = 0). events are 0/1 indicators and
// durations the time-to-event values, one per instance.
//
// Returns ErrSingularFit when the information matrix cannot be factorized;
// callers treat that as a local statistical degeneracy, not a fatal error.
func fitCox(design *mat.Dense, events, durations []float64) (*coxModel, error) {
	n := len(events)

	p := 0
	if design != nil {
		_, p = design.Dims()
	}

	// Instances ordered by descending time so the risk set accumulates as
	// the sweep advances.
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	sort.SliceStable(order, func(a, b int) bool {
		return durations[order[a]] > durations[order[b]]
	})

	x := func(i, j int) float64 { return design.At(i, j) }

	beta := make([]float64, p)
	eta := make([]float64, n)

	refreshEta := func() {
		for i := 0; i < n; i++ {
			eta[i] = 0
			for j := 0; j < p; j++ {
				eta[i] += x(i, j) * beta[j]
			}
		}
	}

	// sweep walks the instances from latest to earliest time, accumulating
	// the risk set, and evaluates the Breslow partial log-likelihood with
	// its gradient and information matrix at the current coefficients.
	// Instances tied at one time all join the risk set before that time's
	// events are handled.
	sweep := func() (float64, []float64, *mat.SymDense) {
		ll := 0.0
		grad := make([]float64, p)
		info := mat.NewSymDense(max(p, 1), nil)

		riskSum := 0.0
		riskX := make([]float64, p)
		riskXX := make([]float64, p*p)

		for i := 0; i < n; {
			j := i
			for j < n && durations[order[j]] == durations[order[i]] {
				k := order[j]
				w := math.Exp(eta[k])
				riskSum += w

				for a := 0; a < p; a++ {
					riskX[a] += w * x(k, a)
					for b := 0; b < p; b++ {
						riskXX[a*p+b] += w * x(k, a) * x(k, b)
					}
				}

				j++
			}

			d := 0
			for t := i; t < j; t++ {
				k := order[t]
				if events[k] == 0 {
					continue
				}

				d++
				ll += eta[k]
				for a := 0; a < p; a++ {
					grad[a] += x(k, a)
				}
			}

			if d > 0 {
				ll -= float64(d) * math.Log(riskSum)

				for a := 0; a < p; a++ {
					grad[a] -= float64(d) * riskX[a] / riskSum

					for b := a; b < p; b++ {
						cur := info.At(a, b)
						cur += float64(d) * (riskXX[a*p+b]/riskSum - riskX[a]*riskX[b]/(riskSum*riskSum))
						info.SetSym(a, b, cur)
					}
				}
			}

			i = j
		}

		return ll, grad, info
	}

	refreshEta()
	logLikelihood, grad, info := sweep()

	for iter := 0; p > 0 && iter < coxMaxIterations; iter++ {
		var chol mat.Cholesky
		if !chol.Factorize(info) {
			return nil, ErrSingularFit
		}

		step := mat.NewVecDense(p, nil)
		if err := chol.SolveVecTo(step, mat.NewVecDense(p, grad)); err != nil {
			return nil, ErrSingularFit
		}

		maxStep := 0.0
		for a := 0; a < p; a++ {
			beta[a] += step.AtVec(a)
			if s := math.Abs(step.AtVec(a)); s > maxStep {
				maxStep = s
			}
		}

		refreshEta()
		logLikelihood, grad, info = sweep()

		if maxStep < coxTolerance {
			break
		}
	}

	return &coxModel{
		beta:          beta,
		logLikelihood: logLikelihood,
		eta:           eta,
		cumHazard:     breslowCumulativeHazard(order, eta, events, durations),
	}, nil
}

// breslowCumulativeHazard evaluates the Breslow baseline cumulative hazard
// at each instance's observed time. order is the instance index list in
// descending time order.
func breslowCumulativeHazard(order []int, eta, events, durations []float64) []float64 {
	n := len(events)

	type hazardStep struct {
		time      float64
		increment float64
	}

	// Sweep descending, accumulating the risk set and one increment per
	// distinct time: d_t / sum_{risk set} exp(eta).
	steps := make([]hazardStep, 0, n)
	riskSum := 0.0

	for i := 0; i < n; {
		j := i
		for j < n && durations[order[j]] == durations[order[i]] {
			riskSum += math.Exp(eta[order[j]])
			j++
		}

		d := 0
		for t := i; t < j; t++ {
			if events[order[t]] == 1 {
				d++
			}
		}

		steps = append(steps, hazardStep{
			time:      durations[order[i]],
			increment: float64(d) / riskSum,
		})

		i = j
	}

	// steps is in descending time order; accumulate from the earliest time
	// upwards so cumulative[s] covers every event time at or before it.
	cumulative := make([]float64, len(steps))
	running := 0.0
	for s := len(steps) - 1; s >= 0; s-- {
		running += steps[s].increment
		cumulative[s] = running
	}

	// order and steps descend in lockstep.
	out := make([]float64, n)
	s := 0
	for _, k := range order {
		for durations[k] != steps[s].time {
			s++
		}
		out[k] = cumulative[s]
	}

	return out
}

//////
// Derived quantities.
//////

// aic returns the Akaike information criterion of the fit: 2p - 2ll.
func (m *coxModel) aic() float64 {
	return 2*float64(len(m.beta)) - 2*m.logLikelihood
}

// devianceResiduals returns the per-instance deviance residuals: the
// signed, variance-stabilized transform of the martingale residuals against
// the Breslow baseline.
func (m *coxModel) devianceResiduals(events []float64) []float64 {
	out := make([]float64, len(events))

	for i := range events {
		martingale := events[i] - m.cumHazard[i]*math.Exp(m.eta[i])

		inner := martingale
		if events[i] == 1 {
			arg := events[i] - martingale
			if arg < 1e-10 {
				// An event with essentially zero expected hazard; clamp
				// so the residual stays finite.
				arg = 1e-10
			}
			inner += math.Log(arg)
		}

		dev := math.Sqrt(math.Max(0, -2*inner))
		if martingale < 0 {
			dev = -dev
		}

		out[i] = dev
	}

	return out
}

// computeResiduals fits a covariates-only Cox model once and returns its
// deviance residuals, the per-instance vector reused by the residual scorer
// every generation. With no covariates configured the null model is fit.
func computeResiduals(m *Matrix, covariates []string) ([]float64, error) {
	design, err := m.selectColumns(covariates)
	if err != nil {
		return nil, err
	}

	model, err := fitCox(design, m.events, m.durations)
	if err != nil {
		return nil, err
	}

	return model.devianceResiduals(m.events), nil
}
