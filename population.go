package fibers

//////
// Const, vars, types.
//////

// Population is the name-to-bin collection for one generation. Iteration
// order is the insertion order, which keeps every stochastic operation over
// the population deterministic under a fixed seed (a plain map would not).
//
// The search driver exclusively owns the population reference for a run;
// bins are value-like and freely replaced between generations.
type Population struct {
	bins  []*Bin
	index map[string]*Bin
}

//////
// Factory.
//////

// newPopulation wraps an ordered bin list. Bin names are assumed unique;
// repair guarantees that by renaming sequentially.
func newPopulation(bins []*Bin) *Population {
	p := &Population{
		bins:  bins,
		index: make(map[string]*Bin, len(bins)),
	}

	for _, b := range bins {
		p.index[b.Name()] = b
	}

	return p
}

//////
// Methods.
//////

// Len returns the number of bins.
func (p *Population) Len() int {
	return len(p.bins)
}

// Bins returns the bins in insertion order. The slice is shared; callers
// treat it as read-only.
func (p *Population) Bins() []*Bin {
	return p.bins
}

// ByName returns the named bin, or nil.
func (p *Population) ByName(name string) *Bin {
	return p.index[name]
}

// asMap returns a fresh name-to-bin map of the current population.
func (p *Population) asMap() map[string]*Bin {
	out := make(map[string]*Bin, len(p.bins))
	for _, b := range p.bins {
		out[b.Name()] = b
	}

	return out
}
