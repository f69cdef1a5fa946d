package fibers

import (
	"errors"
	"fmt"

	"golang.org/x/exp/constraints"
)

//////
// Const, vars, types.
//////

// VariationStrategy selects which crossover+mutation operator produces
// offspring each generation. The two strategies are interchangeable: both
// consume the current population and emit the same number of offspring under
// the same seeding contract.
type VariationStrategy string

const (
	// StrategyRegular applies uniform crossover with offspring size
	// balancing, independent per-feature deletion/addition mutation, and a
	// post-mutation cleanup that backfills removed duplicates.
	StrategyRegular VariationStrategy = "Regular"

	// StrategySimple applies uniform crossover without size balancing and a
	// growth-biased mutation that inserts a not-yet-present feature next to
	// an existing one.
	StrategySimple VariationStrategy = "Simple"
)

// ScoringMethod selects which of the three importance scorers the engine
// uses. The engine treats all three as behaviorally equivalent: each maps a
// binarized bin column to an importance score and an informativeness flag.
type ScoringMethod string

const (
	// ScoreLogRank scores a bin with the two-group log-rank test statistic.
	ScoreLogRank ScoringMethod = "log_rank"

	// ScoreResiduals scores a bin by correlating its binarized column with
	// precomputed Cox deviance residuals.
	ScoreResiduals ScoringMethod = "residuals"

	// ScoreAIC scores a bin by the AIC improvement of a Cox model that adds
	// the binarized column to the configured covariates.
	ScoreAIC ScoringMethod = "AIC"
)

// Range defines an inclusive [Min, Max] interval for a search parameter.
// The engine uses Range[int] for the binarization threshold search space.
//
// Type Parameter:
//   - T: The numeric type for this range (integer or float)
//
// Validation:
// - Min must be less than or equal to Max
// - The range is inclusive of both Min and Max values
type Range[T constraints.Integer | constraints.Float] struct {
	// Min defines the minimum allowed value (inclusive).
	Min T

	// Max defines the maximum allowed value (inclusive).
	Max T
}

// Scorer computes an importance score and an informativeness flag for a
// single bin. Implementations capture everything else they need (event
// indicators, durations, residuals, covariates, the informative cutoff) at
// construction time, so the engine dispatches on the configured scoring
// method exactly once per run.
//
// Contract:
//   - column is the bin's aggregated per-instance values; threshold is the
//     binarization cutoff (value > threshold falls in the upper group).
//   - A degenerate binarization (all instances in one group) or a failed
//     statistical fit must return (0, false, nil): uninformative, not fatal.
//   - A non-nil error is reserved for inputs the engine guarantees never to
//     produce (e.g. mismatched lengths) and aborts the run.
type Scorer interface {
	ScoreBin(column []float64, threshold int) (score float64, informative bool, err error)
}

// Score is the tagged scoring state of a bin. A zero Score means the bin has
// not been scored yet; it is never confused with a legitimate zero-valued
// importance, which carries Valid=true.
type Score struct {
	// Value is the importance score. Meaningless unless Valid is true.
	Value float64

	// Valid reports whether Value was produced by a scorer.
	Valid bool

	// Informative reports whether the scorer flagged the bin as passing the
	// configured informativeness cutoff.
	Informative bool
}

// StartingBin is one externally supplied bin for the seeded initialization
// mode. Membership is deduplicated on construction; the configured starting
// threshold is applied.
type StartingBin struct {
	// Name is the display label the bin keeps until the first repair pass
	// renames the population sequentially.
	Name string

	// Features is the bin's member feature list.
	Features []string
}

// ProgressUpdate reports the state of the search after one generation. Sent
// best-effort on Config.ProgressChan; updates are dropped when the channel
// is full so a slow consumer never stalls the generation loop.
type ProgressUpdate struct {
	// Generation is the 1-based generation just completed.
	Generation int

	// TotalGenerations is the configured iteration count.
	TotalGenerations int

	// BestScore is the best valid score in the repaired population, if any.
	BestScore float64

	// ThresholdEvolved reports whether this generation evolved thresholds
	// genetically instead of searching them exhaustively.
	ThresholdEvolved bool
}

// Config holds every knob of the evolutionary bin search. Construct it with
// DefaultConfig and override what you need; Validate rejects malformed
// configurations before the first generation runs.
type Config struct {
	// PopulationSize is the fixed number of bins per generation. Repair
	// corrects any drift back to this target. Must be at least 3 so
	// tournament selection can always draw two parents.
	PopulationSize int

	// MinFeaturesPerBin is the minimum member count assigned to each bin by
	// random initialization. MinFeaturesPerBin*PopulationSize must not
	// exceed the usable feature universe.
	MinFeaturesPerBin int

	// MaxRepeatsPerFeature bounds how many bins a feature may initially
	// appear in: each feature draws an extra-copy count uniformly in
	// [0, MaxRepeatsPerFeature). Must be at least 1.
	MaxRepeatsPerFeature int

	// Iterations is the number of generations to run.
	Iterations int

	// InformativeCutoff is the scoring-method-specific significance bound
	// at or below which a bin's p-value marks it informative.
	InformativeCutoff float64

	// CrossoverProbability is the per-feature chance of crossing over to
	// the other offspring during uniform crossover.
	CrossoverProbability float64

	// MutationProbability drives per-feature deletion/addition mutation and
	// threshold mutation.
	MutationProbability float64

	// ElitismFraction is the fraction of the population carried unchanged,
	// by score rank, into the next generation. round(PopulationSize *
	// ElitismFraction) must leave room for at least one offspring pair.
	ElitismFraction float64

	// Strategy selects the variation operator.
	Strategy VariationStrategy

	// Method selects the importance scorer.
	Method ScoringMethod

	// RandomSeed makes the whole run byte-reproducible: two runs with equal
	// seeds, inputs and parameters produce identical populations, scores
	// and matrices.
	RandomSeed int64

	// StartingThreshold is the binarization threshold assigned to newly
	// created bins before any threshold search or evolution.
	StartingThreshold int

	// Threshold is the inclusive range searched exhaustively (and sampled
	// by threshold mutation) when AdaptiveThreshold is on.
	Threshold Range[int]

	// EvolvingProbability is the per-generation chance that offspring
	// thresholds are evolved genetically instead of searched exhaustively.
	// Only meaningful when AdaptiveThreshold is on.
	EvolvingProbability float64

	// AdaptiveThreshold enables per-bin threshold adaptation. When off,
	// every bin keeps StartingThreshold.
	AdaptiveThreshold bool

	// Covariates names feature-matrix columns treated as covariates: they
	// are stripped from the binnable features and handed to the residual
	// precomputation and the AIC scorer.
	Covariates []string

	// StartingBins, when non-empty, seeds the initial population instead of
	// random grouping. At least 3 bins are required, the same floor as
	// PopulationSize.
	StartingBins []StartingBin

	// ResidualPlotPath, when non-empty and Method is ScoreResiduals, is
	// where the duration-vs-residual scatterplot PNG is written. Plot
	// failures never fail the run.
	ResidualPlotPath string

	// ProgressChan receives per-generation updates. If nil, no updates are
	// sent.
	ProgressChan chan<- ProgressUpdate
}

// Result is the terminal output of a search run.
type Result struct {
	// BinMatrix is the final bin-feature matrix: one column per bin, the
	// event and duration columns carried through.
	BinMatrix *Matrix

	// Bins maps bin name to bin for the final population.
	Bins map[string]*Bin

	// Scores maps bin name to its final score.
	Scores map[string]Score

	// DroppedFeatures lists the zero-variance features removed during
	// preprocessing.
	DroppedFeatures []string
}

//////
// Errors.
//////

// ErrInvalidConfig wraps every construction-time contract violation detected
// by Config.Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// ErrUniverseTooSmall is returned when duplicate-avoidance resampling during
// repair exhausts its bounded retry budget: the feature universe cannot
// support the requested bin diversity.
var ErrUniverseTooSmall = errors.New("feature universe too small for requested bin diversity")

//////
// Exported functionalities.
//////

// DefaultConfig returns a configuration with sensible defaults. The
// scoring method defaults to the log-rank test and variation to the Regular
// strategy.
func DefaultConfig() Config {
	return Config{
		PopulationSize:       50,
		MinFeaturesPerBin:    2,
		MaxRepeatsPerFeature: 4,
		Iterations:           100,
		InformativeCutoff:    0.05,
		CrossoverProbability: 0.8,
		MutationProbability:  0.1,
		ElitismFraction:      0.8,
		Strategy:             StrategyRegular,
		Method:               ScoreLogRank,
		RandomSeed:           42,
		StartingThreshold:    0,
		Threshold:            Range[int]{Min: 0, Max: 3},
		EvolvingProbability:  0.5,
		AdaptiveThreshold:    false,
	}
}

// Validate checks the construction-time contracts: malformed
// configurations are rejected here, before the first generation, never
// discovered mid-loop. universeSize is the number of usable (non-zero
// variance, non-covariate) features.
func (c Config) Validate(universeSize int) error {
	if c.PopulationSize < 3 {
		return fmt.Errorf("%w: population size %d, need at least 3 for tournament selection", ErrInvalidConfig, c.PopulationSize)
	}

	if c.MinFeaturesPerBin < 1 {
		return fmt.Errorf("%w: min features per bin %d, need at least 1", ErrInvalidConfig, c.MinFeaturesPerBin)
	}

	if c.MaxRepeatsPerFeature < 1 {
		return fmt.Errorf("%w: max repeats per feature %d, need at least 1", ErrInvalidConfig, c.MaxRepeatsPerFeature)
	}

	if c.Iterations < 0 {
		return fmt.Errorf("%w: iterations %d", ErrInvalidConfig, c.Iterations)
	}

	// A seeded start is the first generation's whole population, so it is
	// held to the same minimum as PopulationSize.
	if n := len(c.StartingBins); n > 0 && n < 3 {
		return fmt.Errorf("%w: %d starting bins, need at least 3 for tournament selection", ErrInvalidConfig, n)
	}

	if len(c.StartingBins) == 0 && c.MinFeaturesPerBin*c.PopulationSize > universeSize {
		return fmt.Errorf("%w: min features per bin (%d) x population size (%d) exceeds the %d-feature universe",
			ErrInvalidConfig, c.MinFeaturesPerBin, c.PopulationSize, universeSize)
	}

	if c.CrossoverProbability < 0 || c.CrossoverProbability > 1 {
		return fmt.Errorf("%w: crossover probability %v outside [0,1]", ErrInvalidConfig, c.CrossoverProbability)
	}

	if c.MutationProbability < 0 || c.MutationProbability > 1 {
		return fmt.Errorf("%w: mutation probability %v outside [0,1]", ErrInvalidConfig, c.MutationProbability)
	}

	if c.EvolvingProbability < 0 || c.EvolvingProbability > 1 {
		return fmt.Errorf("%w: evolving probability %v outside [0,1]", ErrInvalidConfig, c.EvolvingProbability)
	}

	if c.ElitismFraction < 0 || c.ElitismFraction > 1 {
		return fmt.Errorf("%w: elitism fraction %v outside [0,1]", ErrInvalidConfig, c.ElitismFraction)
	}

	// Elites must leave room for at least one offspring pair, otherwise
	// variation could never produce a replacement set.
	if elites := roundHalfUp(float64(c.PopulationSize) * c.ElitismFraction); c.PopulationSize-elites < 2 {
		return fmt.Errorf("%w: elitism fraction %v keeps %d of %d bins, leaving no room for offspring",
			ErrInvalidConfig, c.ElitismFraction, elites, c.PopulationSize)
	}

	if c.Threshold.Min > c.Threshold.Max {
		return fmt.Errorf("%w: threshold range [%d,%d]", ErrInvalidConfig, c.Threshold.Min, c.Threshold.Max)
	}

	switch c.Strategy {
	case StrategyRegular, StrategySimple:
	default:
		return fmt.Errorf("%w: unknown variation strategy %q", ErrInvalidConfig, c.Strategy)
	}

	switch c.Method {
	case ScoreLogRank, ScoreResiduals, ScoreAIC:
	default:
		return fmt.Errorf("%w: unknown scoring method %q", ErrInvalidConfig, c.Method)
	}

	return nil
}
