package coverage

import (
	"fmt"
	"strings"

	"github.com/rocklab/rocktb/bus"
)

// Registry owns an ordered set of coverage primitives and samples them
// sequentially. It is an explicit instance passed by reference; two
// registries never share state.
type Registry struct {
	points  []*CoverPoint
	crosses []*CoverCross

	pointByName map[string]*CoverPoint
	crossByName map[string]*CoverCross
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		pointByName: make(map[string]*CoverPoint),
		crossByName: make(map[string]*CoverCross),
	}
}

// AddPoint registers a point. Names must be unique.
func (r *Registry) AddPoint(p *CoverPoint) error {
	if _, ok := r.pointByName[p.Name()]; ok {
		return fmt.Errorf("coverage: duplicate point %s", p.Name())
	}
	r.points = append(r.points, p)
	r.pointByName[p.Name()] = p
	return nil
}

// AddCross registers a cross. Names must be unique.
func (r *Registry) AddCross(c *CoverCross) error {
	if _, ok := r.crossByName[c.Name()]; ok {
		return fmt.Errorf("coverage: duplicate cross %s", c.Name())
	}
	r.crosses = append(r.crosses, c)
	r.crossByName[c.Name()] = c
	return nil
}

// Point returns a registered point by name.
func (r *Registry) Point(name string) (*CoverPoint, bool) {
	p, ok := r.pointByName[name]
	return p, ok
}

// Cross returns a registered cross by name.
func (r *Registry) Cross(name string) (*CoverCross, bool) {
	c, ok := r.crossByName[name]
	return c, ok
}

// Sample feeds the transaction through every point, then every cross,
// in registration order.
func (r *Registry) Sample(trx *bus.Transaction) {
	for _, p := range r.points {
		p.Sample(trx)
	}
	for _, c := range r.crosses {
		c.Sample(trx)
	}
}

// ReportItem summarizes one point or cross at the end of a run.
type ReportItem struct {
	Name    string
	Kind    string // "point" or "cross"
	Percent float64

	// Bins maps bin (or joint-bin) labels to hit counts.
	Bins map[string]uint64

	// CoveredBins lists covered bins in covering order. For crosses,
	// per-dimension covered bins are listed under "dim:bin" labels in
	// DimCovered instead.
	CoveredBins []string
	DimCovered  map[string][]string
}

// Report is the coverage summary of a run.
type Report struct {
	Items []ReportItem
}

// Report builds the coverage summary in registration order.
func (r *Registry) Report() *Report {
	rep := &Report{}

	for _, p := range r.points {
		item := ReportItem{
			Name:        p.Name(),
			Kind:        "point",
			Percent:     p.Percent(),
			Bins:        make(map[string]uint64, len(p.Bins())),
			CoveredBins: append([]string(nil), p.CoveredBins()...),
		}
		for _, bin := range p.Bins() {
			item.Bins[bin] = p.Hits(bin)
		}
		rep.Items = append(rep.Items, item)
	}

	for _, c := range r.crosses {
		item := ReportItem{
			Name:       c.Name(),
			Kind:       "cross",
			Percent:    c.Percent(),
			Bins:       make(map[string]uint64, len(c.Tuples())),
			DimCovered: make(map[string][]string, len(c.dims)),
		}
		for _, t := range c.Tuples() {
			item.Bins[t.String()] = c.JointHits(t)
		}
		for _, d := range c.dims {
			item.DimCovered[d.Name()] =
				append([]string(nil), c.DimCoveredBins(d.Name())...)
		}
		rep.Items = append(rep.Items, item)
	}

	return rep
}

// String renders the report for the end-of-run log.
func (rep *Report) String() string {
	var b strings.Builder
	for _, item := range rep.Items {
		fmt.Fprintf(&b, "%s %s: %.2f%%\n", item.Kind, item.Name, item.Percent)
		if len(item.CoveredBins) > 0 {
			fmt.Fprintf(&b, "  covered: %s\n",
				strings.Join(item.CoveredBins, ", "))
		}
		for dim, bins := range item.DimCovered {
			if len(bins) > 0 {
				fmt.Fprintf(&b, "  covered %s: %s\n",
					dim, strings.Join(bins, ", "))
			}
		}
	}
	return b.String()
}
