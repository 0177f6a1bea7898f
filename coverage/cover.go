// Package coverage implements functional coverage over executed
// transactions: cover points with enumerated bins, crosses over the
// Cartesian product of point bins, and incremental covered-bin tracking.
// All state lives in an explicit Registry instance; there is no global
// coverage database.
package coverage

import (
	"strings"

	"github.com/rocklab/rocktb/bus"
)

// Predicate decides whether a transaction hits a bin of a point.
type Predicate func(*bus.Transaction, string) bool

// A CoverPoint is a single coverage dimension: an ordered bin set, a
// relevance predicate, and a hit threshold. A bin becomes covered the
// moment its hit count reaches the threshold, exactly once.
type CoverPoint struct {
	name    string
	bins    []string
	rel     Predicate
	atLeast uint64

	hits       map[string]uint64
	covered    []string
	coveredSet map[string]bool
}

// NewCoverPoint creates a point. atLeast below 1 is treated as 1.
func NewCoverPoint(name string, bins []string, atLeast uint64, rel Predicate) *CoverPoint {
	if atLeast < 1 {
		atLeast = 1
	}
	return &CoverPoint{
		name:       name,
		bins:       bins,
		rel:        rel,
		atLeast:    atLeast,
		hits:       make(map[string]uint64, len(bins)),
		coveredSet: make(map[string]bool, len(bins)),
	}
}

// Name returns the point's name.
func (p *CoverPoint) Name() string { return p.name }

// Bins returns the ordered bin set.
func (p *CoverPoint) Bins() []string { return p.bins }

// Hits returns the hit count of a bin.
func (p *CoverPoint) Hits(bin string) uint64 { return p.hits[bin] }

// CoveredBins returns the bins covered so far, in covering order. The
// set only ever grows.
func (p *CoverPoint) CoveredBins() []string { return p.covered }

// Percent returns covered bins over total bins, in percent.
func (p *CoverPoint) Percent() float64 {
	if len(p.bins) == 0 {
		return 100
	}
	return float64(len(p.covered)) / float64(len(p.bins)) * 100
}

// Sample evaluates every bin's relevance against the transaction and
// counts the hits. A bin enters the covered set exactly when its count
// reaches the threshold; later hits never re-append it.
func (p *CoverPoint) Sample(trx *bus.Transaction) {
	for _, bin := range p.bins {
		if !p.rel(trx, bin) {
			continue
		}
		p.hits[bin]++
		if p.hits[bin] == p.atLeast {
			p.covered = append(p.covered, bin)
			p.coveredSet[bin] = true
		}
	}
}

// relevantBins returns the bins this transaction hits, for joint-bin
// construction by crosses.
func (p *CoverPoint) relevantBins(trx *bus.Transaction) []string {
	var out []string
	for _, bin := range p.bins {
		if p.rel(trx, bin) {
			out = append(out, bin)
		}
	}
	return out
}

// Tuple is one joint bin of a cross, one bin label per dimension.
type Tuple []string

func (t Tuple) key() string { return strings.Join(t, "\x1f") }

// String renders the tuple the way reports show joint bins.
func (t Tuple) String() string { return strings.Join([]string(t), " x ") }

// A CoverCross covers the Cartesian product of its dimensions' bin sets.
// Beyond joint-bin hit counting it tracks, per dimension, how many
// not-yet-covered joint bins still depend on each single-dimension bin;
// when that count drains to zero the bin is covered for that dimension.
type CoverCross struct {
	name    string
	dims    []*CoverPoint
	atLeast uint64

	tuples  []Tuple
	ignored map[string]bool

	jointHits     map[string]uint64
	coveredJoints int

	// descendants[dim][bin] is the number of non-ignored joint bins
	// containing bin in that dimension that have not reached the
	// threshold yet.
	descendants map[string]map[string]uint64
	dimCovered  map[string][]string
	dimSet      map[string]map[string]bool
}

// NewCoverCross creates a cross over the given points, pre-enumerating
// every non-ignored joint bin and the per-dimension descendant counts.
// Bins with no descendants at all start out covered for their dimension.
func NewCoverCross(
	name string,
	dims []*CoverPoint,
	atLeast uint64,
	ignore []Tuple,
) *CoverCross {
	if atLeast < 1 {
		atLeast = 1
	}

	c := &CoverCross{
		name:        name,
		dims:        dims,
		atLeast:     atLeast,
		ignored:     make(map[string]bool, len(ignore)),
		jointHits:   make(map[string]uint64),
		descendants: make(map[string]map[string]uint64, len(dims)),
		dimCovered:  make(map[string][]string, len(dims)),
		dimSet:      make(map[string]map[string]bool, len(dims)),
	}
	for _, t := range ignore {
		c.ignored[t.key()] = true
	}
	for _, d := range dims {
		c.descendants[d.Name()] = make(map[string]uint64, len(d.Bins()))
		c.dimSet[d.Name()] = make(map[string]bool, len(d.Bins()))
	}

	c.enumerate(nil)

	for _, d := range dims {
		for _, bin := range d.Bins() {
			if c.descendants[d.Name()][bin] == 0 {
				c.markDimCovered(d.Name(), bin)
			}
		}
	}

	return c
}

// enumerate walks the cross product depth-first, collecting non-ignored
// tuples and tallying per-dimension descendant counts.
func (c *CoverCross) enumerate(prefix Tuple) {
	if len(prefix) == len(c.dims) {
		if c.ignored[prefix.key()] {
			return
		}
		t := append(Tuple(nil), prefix...)
		c.tuples = append(c.tuples, t)
		for i, bin := range t {
			c.descendants[c.dims[i].Name()][bin]++
		}
		return
	}

	for _, bin := range c.dims[len(prefix)].Bins() {
		c.enumerate(append(prefix, bin))
	}
}

// Name returns the cross's name.
func (c *CoverCross) Name() string { return c.name }

// Tuples returns every non-ignored joint bin in enumeration order.
func (c *CoverCross) Tuples() []Tuple { return c.tuples }

// JointHits returns the hit count of a joint bin.
func (c *CoverCross) JointHits(t Tuple) uint64 { return c.jointHits[t.key()] }

// Descendants returns the remaining descendant count for a dimension bin.
func (c *CoverCross) Descendants(dim, bin string) uint64 {
	return c.descendants[dim][bin]
}

// DimCoveredBins returns the covered bins of one dimension, in covering
// order. The set only ever grows.
func (c *CoverCross) DimCoveredBins(dim string) []string {
	return c.dimCovered[dim]
}

// Percent returns covered joint bins over total non-ignored joint bins,
// in percent.
func (c *CoverCross) Percent() float64 {
	if len(c.tuples) == 0 {
		return 100
	}
	return float64(c.coveredJoints) / float64(len(c.tuples)) * 100
}

// Sample builds the joint bin from each dimension's relevant bins and
// counts it. When a joint bin reaches the threshold, the descendant
// count of each of its single-dimension bins is decremented; a count
// reaching zero covers that bin for its dimension. A transaction
// irrelevant to any dimension produces no joint bin.
func (c *CoverCross) Sample(trx *bus.Transaction) {
	perDim := make([][]string, len(c.dims))
	for i, d := range c.dims {
		perDim[i] = d.relevantBins(trx)
		if len(perDim[i]) == 0 {
			return
		}
	}
	c.sampleTuples(perDim, nil)
}

func (c *CoverCross) sampleTuples(perDim [][]string, prefix Tuple) {
	if len(prefix) == len(c.dims) {
		c.hitTuple(prefix)
		return
	}
	for _, bin := range perDim[len(prefix)] {
		c.sampleTuples(perDim, append(prefix, bin))
	}
}

func (c *CoverCross) hitTuple(t Tuple) {
	key := t.key()
	if c.ignored[key] {
		return
	}

	c.jointHits[key]++
	if c.jointHits[key] != c.atLeast {
		return
	}

	c.coveredJoints++
	for i, bin := range t {
		dim := c.dims[i].Name()
		c.descendants[dim][bin]--
		if c.descendants[dim][bin] == 0 {
			c.markDimCovered(dim, bin)
		}
	}
}

func (c *CoverCross) markDimCovered(dim, bin string) {
	if c.dimSet[dim][bin] {
		return
	}
	c.dimSet[dim][bin] = true
	c.dimCovered[dim] = append(c.dimCovered[dim], bin)
}
