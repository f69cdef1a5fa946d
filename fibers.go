package fibers

import (
	"fmt"
)

//////
// Exported functionalities.
//////

// Search runs the evolutionary bin search: it groups correlated features
// into candidate bins and evolves the population toward bins whose
// aggregated, binarized values associate with the time-to-event outcome.
//
// Parameters:
// - cfg: Search configuration; validated before the first generation
// - data: The feature matrix, with event and duration columns
//
// Returns:
// - *Result: Final bin-feature matrix, population, scores and the list of
//   zero-variance features dropped during preprocessing
// - error: Construction-time contract violations and fatal input problems;
//   per-threshold statistical degeneracies never surface here
//
// How it works:
//  1. Preprocessing strips configured covariates, removes zero-variance
//     features, and (for the residual method) fits the Cox model once to
//     precompute per-instance deviance residuals.
//  2. The population initializes from the configured starting bins or by
//     random grouping, and the bin-feature matrix is derived.
//  3. Each generation scores stale bins, flips a seeded coin to decide
//     whether thresholds evolve genetically or are searched exhaustively,
//     produces offspring with the configured variation strategy, keeps the
//     elite fraction, and repairs the population back to the target size.
//  4. A final scoring pass covers any bin left unscored.
//
// Determinism: with a fixed Config.RandomSeed and identical inputs, two
// runs produce identical populations, scores and matrices. Every stochastic
// step draws from an explicit generator derived from the seed.
//
// The run is strictly sequential; Search is safe for concurrent calls with
// independent configurations and matrices, but a single population is never
// shared.
func Search(cfg Config, data *Matrix) (*Result, error) {
	if data == nil {
		return nil, fmt.Errorf("%w: nil feature matrix", ErrBadMatrix)
	}

	// Covariates must exist before they can be stripped; building the
	// design block up front also serves the AIC scorer.
	covariates, err := data.selectColumns(cfg.Covariates)
	if err != nil {
		return nil, err
	}

	working := data
	if len(cfg.Covariates) > 0 {
		working = working.dropColumns(cfg.Covariates)
	}

	working, droppedFeatures := working.removeZeroVariance()

	universe := working.ColumnNames()
	if len(universe) == 0 {
		return nil, fmt.Errorf("%w: no usable features after preprocessing", ErrBadMatrix)
	}

	if err := cfg.Validate(len(universe)); err != nil {
		return nil, err
	}

	var residuals []float64
	if cfg.Method == ScoreResiduals {
		residuals, err = computeResiduals(data, cfg.Covariates)
		if err != nil {
			return nil, fmt.Errorf("residual precomputation: %w", err)
		}

		if cfg.ResidualPlotPath != "" {
			// Best effort; the plot is a diagnostic side channel.
			_ = saveResidualScatter(cfg.ResidualPlotPath, data.durations, residuals)
		}
	}

	scorer, err := newScorer(cfg, working, residuals, covariates)
	if err != nil {
		return nil, err
	}

	bins, err := initialBins(cfg, universe)
	if err != nil {
		return nil, err
	}

	pop := newPopulation(bins)
	binMatrix := working.aggregateBins(bins)

	if cfg.AdaptiveThreshold {
		if err := searchAllThresholds(cfg, binMatrix, pop, scorer); err != nil {
			return nil, err
		}
	}

	seedRNG := newRNG(cfg.RandomSeed)
	variationSeeds := subSeeds(seedRNG, cfg.Iterations)
	regroupSeeds := subSeeds(seedRNG, cfg.Iterations)
	evolveRNG := newRNG(cfg.RandomSeed)

	for i := 0; i < cfg.Iterations; i++ {
		if err := scorePopulation(binMatrix, pop, scorer); err != nil {
			return nil, err
		}

		// Per-generation coin flip: evolve offspring thresholds
		// genetically, or search them exhaustively after repair.
		thresholdEvolving := cfg.AdaptiveThreshold && cfg.EvolvingProbability > evolveRNG.Float64()

		var offspring []*Bin
		switch cfg.Strategy {
		case StrategySimple:
			offspring = crossoverAndMutationSimple(cfg, universe, pop, variationSeeds[i], thresholdEvolving)
		default:
			offspring = crossoverAndMutationRegular(cfg, universe, pop, variationSeeds[i], thresholdEvolving)
		}

		combined := nextGeneration(pop, cfg.PopulationSize, cfg.ElitismFraction, offspring)

		binMatrix, pop, err = regroupFeatureMatrix(universe, working, combined, regroupSeeds[i], cfg.StartingThreshold, cfg.PopulationSize)
		if err != nil {
			return nil, err
		}

		if cfg.AdaptiveThreshold && !thresholdEvolving {
			if err := searchAllThresholds(cfg, binMatrix, pop, scorer); err != nil {
				return nil, err
			}
		}

		sendProgress(cfg, i+1, bestScore(pop), thresholdEvolving)
	}

	if err := scorePopulation(binMatrix, pop, scorer); err != nil {
		return nil, err
	}

	scores := make(map[string]Score, pop.Len())
	for _, bin := range pop.Bins() {
		scores[bin.Name()] = bin.Score()
	}

	return &Result{
		BinMatrix:       binMatrix,
		Bins:            pop.asMap(),
		Scores:          scores,
		DroppedFeatures: droppedFeatures,
	}, nil
}

//////
// Driver pieces.
//////

// initialBins builds the first generation: the externally supplied starting
// configuration when present, random feature grouping otherwise.
func initialBins(cfg Config, universe []string) ([]*Bin, error) {
	if len(cfg.StartingBins) == 0 {
		_, bins := randomFeatureGrouping(universe, cfg.PopulationSize, cfg.MinFeaturesPerBin,
			cfg.MaxRepeatsPerFeature, cfg.RandomSeed, cfg.StartingThreshold)

		return bins, nil
	}

	names := make(map[string]struct{}, len(cfg.StartingBins))
	for _, sb := range cfg.StartingBins {
		if sb.Name == "" {
			return nil, fmt.Errorf("%w: starting bin with empty name", ErrInvalidConfig)
		}

		if _, ok := names[sb.Name]; ok {
			return nil, fmt.Errorf("%w: duplicate starting bin name %q", ErrInvalidConfig, sb.Name)
		}
		names[sb.Name] = struct{}{}

		if len(sb.Features) == 0 {
			return nil, fmt.Errorf("%w: starting bin %q has no features", ErrInvalidConfig, sb.Name)
		}

		for _, feature := range sb.Features {
			if !containsString(universe, feature) {
				return nil, fmt.Errorf("%w: starting bin %q references unknown or unusable feature %q",
					ErrInvalidConfig, sb.Name, feature)
			}
		}
	}

	return seededFeatureGrouping(cfg.StartingBins, cfg.StartingThreshold), nil
}

// scorePopulation refreshes the score of every stale bin. Bins whose
// membership and threshold are unchanged since their last scoring keep
// their score, which is what lets elites carry fitness across generations.
func scorePopulation(binMatrix *Matrix, pop *Population, scorer Scorer) error {
	for _, bin := range pop.Bins() {
		if bin.Seen() {
			continue
		}

		column, err := binMatrix.Column(bin.Name())
		if err != nil {
			return err
		}

		value, informative, err := scorer.ScoreBin(column, bin.Threshold())
		if err != nil {
			return err
		}

		bin.SetScore(Score{Value: value, Valid: true, Informative: informative})
	}

	return nil
}

// searchAllThresholds runs the exhaustive threshold search on every bin in
// the population against the current bin-feature matrix.
func searchAllThresholds(cfg Config, binMatrix *Matrix, pop *Population, scorer Scorer) error {
	for _, bin := range pop.Bins() {
		column, err := binMatrix.Column(bin.Name())
		if err != nil {
			return err
		}

		if err := bin.TryAllThresholds(cfg.Threshold, column, scorer); err != nil {
			return err
		}
	}

	return nil
}

// bestScore returns the best valid score in the population, or zero when
// nothing is scored yet.
func bestScore(pop *Population) float64 {
	best := 0.0
	found := false

	for _, bin := range pop.Bins() {
		if s := bin.Score(); s.Valid && (!found || s.Value > best) {
			best = s.Value
			found = true
		}
	}

	return best
}

// sendProgress delivers a generation update without ever blocking the loop:
// when the channel is full the update is dropped.
func sendProgress(cfg Config, generation int, best float64, thresholdEvolved bool) {
	if cfg.ProgressChan == nil {
		return
	}

	update := ProgressUpdate{
		Generation:       generation,
		TotalGenerations: cfg.Iterations,
		BestScore:        best,
		ThresholdEvolved: thresholdEvolved,
	}

	select {
	case cfg.ProgressChan <- update:
	default:
		// Skip update if channel is full.
	}
}
