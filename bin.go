package fibers

import "sort"

//////
// Const, vars, types.
//////

// Bin is the unit of evolution: a candidate grouping of original features
// together with its binarization threshold and scoring state.
//
// A bin's feature list may only be mutated through SetFeatures (or
// SetThreshold for the cutoff), which flips the seen flag so downstream
// stages know the cached score is stale. Membership may be empty or contain
// repeats only transiently, between variation and repair.
type Bin struct {
	// features is the ordered member feature list.
	features []string

	// threshold is the integer binarization cutoff: aggregated values
	// strictly greater than threshold fall in the upper group.
	threshold int

	// score is the tagged scoring state; the zero value means unscored.
	score Score

	// name is the display label, reassigned sequentially by repair.
	name string

	// seen is false whenever features or threshold changed after the last
	// scoring pass.
	seen bool
}

//////
// Factory.
//////

// newBin wraps a feature group as an unscored, unseen bin with the given
// threshold. The feature slice is copied.
func newBin(features []string, threshold int, name string) *Bin {
	b := &Bin{threshold: threshold, name: name}
	b.SetFeatures(features)

	return b
}

//////
// Methods.
//////

// Features returns a copy of the member feature list; mutating the returned
// slice does not affect the bin.
func (b *Bin) Features() []string {
	out := make([]string, len(b.features))
	copy(out, b.features)

	return out
}

// Len returns the member count.
func (b *Bin) Len() int {
	return len(b.features)
}

// SetFeatures replaces the member feature list and marks the bin unseen so
// its score and threshold are recomputed downstream.
func (b *Bin) SetFeatures(features []string) {
	b.features = make([]string, len(features))
	copy(b.features, features)
	b.seen = false
}

// Threshold returns the current binarization cutoff.
func (b *Bin) Threshold() int {
	return b.threshold
}

// SetThreshold replaces the binarization cutoff and marks the bin unseen.
func (b *Bin) SetThreshold(threshold int) {
	b.threshold = threshold
	b.seen = false
}

// Score returns the bin's scoring state.
func (b *Bin) Score() Score {
	return b.score
}

// SetScore records a scorer result and marks the bin seen.
func (b *Bin) SetScore(score Score) {
	b.score = score
	b.seen = true
}

// Name returns the display label.
func (b *Bin) Name() string {
	return b.name
}

// SetName replaces the display label. Renaming does not invalidate the
// score: identity for scoring purposes is membership and threshold.
func (b *Bin) SetName(name string) {
	b.name = name
}

// Seen reports whether the bin's score is current for its membership and
// threshold.
func (b *Bin) Seen() bool {
	return b.seen
}

// TryAllThresholds exhaustively evaluates every integer threshold in
// thresholds (inclusive on both ends) against the bin's aggregated column
// and keeps the best-scoring threshold/score pair in place.
//
// A threshold the scorer cannot evaluate (degenerate binarization, singular
// fit) scores as uninformative zero, never fatal. Ties keep the earliest
// threshold in the range, so an all-uninformative sweep settles on
// thresholds.Min. The bin is marked seen afterwards.
func (b *Bin) TryAllThresholds(thresholds Range[int], column []float64, scorer Scorer) error {
	best := Score{}
	bestThreshold := b.threshold
	found := false

	for t := thresholds.Min; t <= thresholds.Max; t++ {
		value, informative, err := scorer.ScoreBin(column, t)
		if err != nil {
			return err
		}

		candidate := Score{Value: value, Valid: true, Informative: informative}
		if !found || candidate.Value > best.Value {
			best = candidate
			bestThreshold = t
			found = true
		}
	}

	b.threshold = bestThreshold
	b.SetScore(best)

	return nil
}

//////
// Comparisons.
//////

// SameMembership reports whether two bins contain the same multiset of
// features, independent of order. Thresholds are deliberately ignored: this
// is the equality used for duplicate elimination, which is a different
// operation from score ordering.
func SameMembership(a, b *Bin) bool {
	if len(a.features) != len(b.features) {
		return false
	}

	as := a.Features()
	bs := b.Features()
	sort.Strings(as)
	sort.Strings(bs)

	return equalStrings(as, bs)
}

// sortByScoreDesc stable-sorts bins best score first. Unscored bins order
// below any scored bin; ties keep their relative order.
func sortByScoreDesc(bins []*Bin) {
	sort.SliceStable(bins, func(i, j int) bool {
		si, sj := bins[i].score, bins[j].score

		if si.Valid != sj.Valid {
			return si.Valid
		}

		return si.Value > sj.Value
	})
}
