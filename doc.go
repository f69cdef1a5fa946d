// Package fibers provides an evolutionary search for small groups ("bins")
// of correlated categorical or count features that jointly associate with a
// time-to-event outcome. It targets wide feature matrices, such as genomic
// variant counts, where individual features are too weak or too numerous to
// model directly: grouping them into bins reduces dimensionality while
// preserving signal for survival-analysis modeling.
//
// # Features
//
// The package includes the following key features:
//
//   - Genetic-algorithm core: tournament selection, uniform crossover,
//     feature-level mutation, elitism-based generational replacement, and
//     population repair with bin deduplication
//   - Two interchangeable variation strategies ("Regular" and "Simple"),
//     selectable at runtime
//   - Adaptive per-bin binarization thresholds: exhaustively searched or
//     genetically evolved, decided by a per-generation coin flip
//   - Three interchangeable importance scorers: the log-rank test, Cox
//     deviance-residual correlation, and Cox model AIC comparison
//   - Built-in Cox proportional-hazards fitting (Breslow partial
//     likelihood) for residual precomputation and AIC scoring
//   - Byte-reproducible runs: all randomness derives from one explicit seed
//   - Progress monitoring via an optional channel
//   - Optional residual scatterplot diagnostics
//
// # Usage
//
// Build a feature matrix, configure the search, and run it:
//
//	m, err := fibers.NewMatrix(
//	    featureNames, values,
//	    "Censoring", "Duration",
//	    events, durations,
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	cfg := fibers.DefaultConfig()
//	cfg.PopulationSize = 50
//	cfg.Iterations = 200
//	cfg.Method = fibers.ScoreLogRank
//	cfg.RandomSeed = 42
//
//	result, err := fibers.Search(cfg, m)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for name, score := range result.Scores {
//	    fmt.Println(name, score.Value, score.Informative)
//	}
//
// # Scoring methods
//
// The three scorers are behaviorally equivalent at the engine boundary:
// each maps a bin's aggregated column, binarized at the bin's threshold, to
// an importance score and an informativeness flag.
//
// 1. Log-rank (ScoreLogRank):
//
//   - Two-group log-rank chi-squared statistic, above versus at-or-below
//     threshold
//
//   - Default choice; no covariates needed
//
// 2. Residuals (ScoreResiduals):
//
//   - Fits a covariates-only Cox model once, then correlates each bin's
//     binarized column with the deviance residuals
//
//   - Use when covariate effects should be factored out before binning
//
// 3. AIC (ScoreAIC):
//
//   - Compares the AIC of a Cox model with and without the bin column on
//     top of the covariates
//
//   - The most expensive method: one model fit per bin per generation
//
// # Determinism
//
// For a fixed Config.RandomSeed, identical inputs and parameters, two runs
// produce identical final populations, scores and bin-feature matrices.
// Every stochastic operation draws from an explicit generator derived from
// the seed; there is no hidden global randomness.
//
// # Concurrency
//
// A run is single-threaded and strictly sequential: generation i+1 begins
// only after generation i's repair completes. Search is safe to call
// concurrently with independent configurations and matrices; no component
// may be invoked concurrently against a shared population.
package fibers
