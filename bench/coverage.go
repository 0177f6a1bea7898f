package bench

import (
	"github.com/rocklab/rocktb/bus"
	"github.com/rocklab/rocktb/coverage"
	"github.com/rocklab/rocktb/regmodel"
)

// Names of the coverage primitives the bench registers.
const (
	PointRegName   = "reg_name"
	PointDirection = "direction"
	PointDataRange = "data_range"

	// CrossRegDir is the completion goal: every register crossed with
	// every legal direction.
	CrossRegDir = "reg_name_x_direction"

	// CrossDirRange crosses direction with the written data-range class.
	CrossDirRange = "direction_x_data_range"
)

// buildCoverage assembles the default coverage plan over the register
// model and returns the registry plus the goal cross.
//
// Read-only registers can never see a write, so their (register, write)
// joint bins are ignored in the goal cross. This is the write-ignored
// policy: reads stay covered for every register, including read-only
// ones. Likewise the data-range class is meaningless on reads, so every
// (read, class) joint bin of the direction cross is ignored.
func buildCoverage(
	model *regmodel.Model,
	atLeast uint64,
) (*coverage.Registry, *coverage.CoverCross, error) {
	regPoint := coverage.NewCoverPoint(
		PointRegName, model.Names(), atLeast,
		func(t *bus.Transaction, bin string) bool {
			return t.Register == bin
		})

	dirPoint := coverage.NewCoverPoint(
		PointDirection,
		[]string{bus.Read.String(), bus.Write.String()}, atLeast,
		func(t *bus.Transaction, bin string) bool {
			return t.Dir.String() == bin
		})

	rangeBins := make([]string, 0, len(bus.RangeClasses))
	for _, c := range bus.RangeClasses {
		rangeBins = append(rangeBins, c.String())
	}
	rangePoint := coverage.NewCoverPoint(
		PointDataRange, rangeBins, atLeast,
		func(t *bus.Transaction, bin string) bool {
			return t.Dir == bus.Write && t.Range.String() == bin
		})

	var regDirIgnore []coverage.Tuple
	for _, name := range model.Names() {
		e, _ := model.Lookup(name)
		if e.Access == regmodel.ReadOnly {
			regDirIgnore = append(regDirIgnore,
				coverage.Tuple{name, bus.Write.String()})
		}
	}
	regDirCross := coverage.NewCoverCross(
		CrossRegDir,
		[]*coverage.CoverPoint{regPoint, dirPoint},
		atLeast, regDirIgnore)

	var dirRangeIgnore []coverage.Tuple
	for _, bin := range rangeBins {
		dirRangeIgnore = append(dirRangeIgnore,
			coverage.Tuple{bus.Read.String(), bin})
	}
	dirRangeCross := coverage.NewCoverCross(
		CrossDirRange,
		[]*coverage.CoverPoint{dirPoint, rangePoint},
		atLeast, dirRangeIgnore)

	registry := coverage.NewRegistry()
	for _, err := range []error{
		registry.AddPoint(regPoint),
		registry.AddPoint(dirPoint),
		registry.AddPoint(rangePoint),
		registry.AddCross(regDirCross),
		registry.AddCross(dirRangeCross),
	} {
		if err != nil {
			return nil, nil, err
		}
	}

	return registry, regDirCross, nil
}
