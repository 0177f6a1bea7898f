// Package stimulus produces constrained-random register transactions.
// The randomizer solves its three variables in a fixed order: register
// name, then direction, then data-range class. The only hard constraints
// are that read-only registers force a read and that the range class only
// shapes data on writes; everything else is weighting.
package stimulus

import (
	"math/rand"

	"github.com/rocklab/rocktb/bus"
	"github.com/rocklab/rocktb/regmodel"
)

// Weights applied to register-name selection. Fully covered registers
// stay selectable so coverage closure cannot stall on a starved queue;
// they are merely down-weighted.
const (
	weightUncovered = 4
	weightCovered   = 1
)

// Generator is a restartable pull-based transaction source. The caller
// evaluates the stop condition; Next never fails to produce.
type Generator struct {
	rand *rand.Rand
}

// NewGenerator creates a generator drawing from rnd.
func NewGenerator(rnd *rand.Rand) *Generator {
	return &Generator{rand: rnd}
}

// Next randomizes one transaction over the model. covered marks register
// names whose coverage goal is already met; they are down-weighted, not
// excluded. The expected read data is left unset for the bench to fill
// in from the model just before transmission.
func (g *Generator) Next(
	model *regmodel.Model,
	covered map[string]bool,
) *bus.Transaction {
	name := g.pickRegister(model.Names(), covered)
	entry, _ := model.Lookup(name)

	dir := bus.Write
	if entry.Access == regmodel.ReadOnly || g.rand.Intn(2) == 0 {
		dir = bus.Read
	}

	class := bus.RangeClasses[g.rand.Intn(len(bus.RangeClasses))]

	trx := &bus.Transaction{
		Register: name,
		Dir:      dir,
		Range:    class,
	}
	g.postRandomize(trx, entry)

	return trx
}

// pickRegister weight-samples a register name.
func (g *Generator) pickRegister(names []string, covered map[string]bool) string {
	total := 0
	for _, name := range names {
		total += g.weight(name, covered)
	}

	pick := g.rand.Intn(total)
	for _, name := range names {
		pick -= g.weight(name, covered)
		if pick < 0 {
			return name
		}
	}
	return names[len(names)-1]
}

func (g *Generator) weight(name string, covered map[string]bool) int {
	if covered[name] {
		return weightCovered
	}
	return weightUncovered
}

// postRandomize derives the address and data from the solved variables.
func (g *Generator) postRandomize(trx *bus.Transaction, entry *regmodel.RegisterEntry) {
	trx.Addr = entry.Addr

	if trx.Dir != bus.Write {
		trx.Data = 0 // irrelevant on a read
		return
	}

	max := entry.MaxValue()
	switch trx.Range {
	case bus.Min0:
		trx.Data = 0
	case bus.Min1:
		trx.Data = 1
	case bus.Max0:
		trx.Data = max
	case bus.Max1:
		if max >= 1 {
			trx.Data = max - 1
		}
	case bus.Mid:
		trx.Data = g.midValue(max)
	}
}

// midValue draws a value away from the boundary classes when the
// register is wide enough to have a middle.
func (g *Generator) midValue(max uint16) uint16 {
	if max < 4 {
		return uint16(g.rand.Intn(int(max) + 1))
	}
	return 2 + uint16(g.rand.Intn(int(max)-3)) // [2, max-2]
}
