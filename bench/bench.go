// Package bench wires the testbench together and runs the sequencing
// loop: generate a transaction, predict the expected result, transmit,
// observe, score, sample coverage, repeat until the coverage goal or the
// run limit is reached.
package bench

import (
	"fmt"
	"io"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/rocklab/rocktb/bus"
	"github.com/rocklab/rocktb/coverage"
	"github.com/rocklab/rocktb/dut"
	"github.com/rocklab/rocktb/regmodel"
	"github.com/rocklab/rocktb/scoreboard"
	"github.com/rocklab/rocktb/spi"
	"github.com/rocklab/rocktb/stimulus"
	"github.com/rocklab/rocktb/wire"
)

// Config holds the knobs of one bench run.
type Config struct {
	// MaxRuns bounds the number of transactions.
	MaxRuns int

	// AtLeast is the per-bin coverage threshold.
	AtLeast uint64

	// Seed drives every random stream of the run.
	Seed int64

	// Mode selects fail-fast or accumulate-and-report scoreboarding.
	Mode scoreboard.Mode

	// ChipAddr is the 3-bit chip address strapped on the chip's inputs.
	ChipAddr uint8

	// WatchdogSim aborts the run past this much simulated time. Zero
	// disables the simulated watchdog.
	WatchdogSim sim.VTimeInSec

	// WatchdogWall aborts the run past this much wall-clock time. Zero
	// disables the wall-clock watchdog.
	WatchdogWall time.Duration

	// LogWriter receives component logs; nil discards them.
	LogWriter io.Writer

	// TraceEvents attaches the engine's event logger to LogWriter.
	TraceEvents bool
}

// DefaultConfig returns the configuration used by the command-line
// runner.
func DefaultConfig() Config {
	return Config{
		MaxRuns:      5000,
		AtLeast:      2,
		Seed:         1,
		Mode:         scoreboard.Accumulate,
		ChipAddr:     regmodel.ChipAddr,
		WatchdogSim:  0.05, // 50 ms simulated
		WatchdogWall: 2 * time.Minute,
	}
}

// Verdict is the outcome of a run.
type Verdict struct {
	Passed      bool
	Runs        int
	GoalReached bool
	GoalPercent float64
	Err         error
	Mismatches  []scoreboard.Mismatch
	Coverage    *coverage.Report
}

// String renders the verdict for the end-of-run log.
func (v *Verdict) String() string {
	var b strings.Builder
	if v.Passed {
		fmt.Fprintf(&b, "PASS: %d transactions, goal cross %.2f%%\n",
			v.Runs, v.GoalPercent)
	} else {
		fmt.Fprintf(&b, "FAIL: %d transactions, goal cross %.2f%%: %v\n",
			v.Runs, v.GoalPercent, v.Err)
	}
	for _, m := range v.Mismatches {
		fmt.Fprintf(&b, "  %s\n", m)
	}
	return b.String()
}

// TestBench owns every component of the run. Everything shares one
// serial event engine; there is no parallelism and at most one
// transaction is in flight at a time.
type TestBench struct {
	cfg    Config
	engine sim.Engine
	log    *log.Logger

	model    *regmodel.Model
	sigs     *wire.Bundle
	rock     *dut.Rock
	driver   *spi.Driver
	monitor  *spi.Monitor
	gen      *stimulus.Generator
	registry *coverage.Registry
	goal     *coverage.CoverCross
	sb       *scoreboard.Scoreboard
	resetDet *scoreboard.ResetDetector
	pulser   *Pulser

	runs     int
	current  *bus.Transaction
	done     bool
	fatalErr error
	started  time.Time
}

// New builds a testbench from a register map file and a configuration.
// The chip model gets its own expansion of the map, so bench-side and
// chip-side register state stay independent.
func New(mf *regmodel.MapFile, cfg Config) (*TestBench, error) {
	model, err := mf.Expand()
	if err != nil {
		return nil, err
	}
	chipRegs, err := mf.Expand()
	if err != nil {
		return nil, err
	}

	logw := cfg.LogWriter
	if logw == nil {
		logw = io.Discard
	}

	tb := &TestBench{
		cfg:    cfg,
		engine: sim.NewSerialEngine(),
		log:    log.New(logw, "bench: ", 0),
		model:  model,
		sigs:   wire.NewBundle(0),
	}

	if cfg.TraceEvents {
		tb.engine.AcceptHook(sim.NewEventLogger(log.New(logw, "event: ", 0)))
	}

	tb.rock = dut.NewRock(
		tb.sigs, chipRegs, cfg.ChipAddr, log.New(logw, "rock: ", 0))
	tb.driver = spi.NewDriver(
		tb.engine, tb.sigs, cfg.ChipAddr,
		rand.New(rand.NewSource(cfg.Seed)),
		log.New(logw, "driver: ", 0))
	tb.monitor = spi.NewMonitor(
		tb.engine, tb.sigs, log.New(logw, "monitor: ", 0),
		tb.onObservation, tb.onProtocolError)
	tb.gen = stimulus.NewGenerator(rand.New(rand.NewSource(cfg.Seed + 1)))
	tb.pulser = NewPulser(
		tb.engine, tb.sigs.Mce,
		rand.New(rand.NewSource(cfg.Seed+2)),
		func() bool { return tb.done })

	tb.registry, tb.goal, err = buildCoverage(model, cfg.AtLeast)
	if err != nil {
		return nil, err
	}

	tb.sb = scoreboard.New(cfg.Mode, nil, log.New(logw, "scoreboard: ", 0))

	rstEntry, ok := model.Lookup(regmodel.SoftResetRegister)
	if ok {
		tb.resetDet = scoreboard.NewResetDetector(
			rstEntry.Addr, regmodel.SoftResetCode, model,
			log.New(logw, "reset: ", 0))
	}

	return tb, nil
}

// Model exposes the bench-side register model, mainly for tests and the
// end-of-run statistics.
func (tb *TestBench) Model() *regmodel.Model {
	return tb.model
}

// Registry exposes the coverage registry.
func (tb *TestBench) Registry() *coverage.Registry {
	return tb.registry
}

// Run executes the loop until the goal condition holds and returns the
// verdict. The run terminates only at transaction boundaries; the
// watchdogs are the sole exception.
func (tb *TestBench) Run() *Verdict {
	tb.started = time.Now()

	tb.pulser.Start()
	if tb.cfg.WatchdogSim > 0 {
		tb.engine.Schedule(watchdogEvent{
			EventBase: sim.NewEventBase(tb.cfg.WatchdogSim, &watchdog{tb: tb}),
		})
	}

	tb.issueNext()

	if err := tb.engine.Run(); err != nil {
		tb.fail(fmt.Errorf("bench: engine: %w", err))
	}

	return tb.verdict()
}

// issueNext is one iteration of the sequencing loop. It re-arms itself
// through the driver's completion callback.
func (tb *TestBench) issueNext() {
	if tb.done {
		return
	}
	if tb.cfg.WatchdogWall > 0 && time.Since(tb.started) > tb.cfg.WatchdogWall {
		tb.fail(fmt.Errorf(
			"bench: did not complete within %s wall time", tb.cfg.WatchdogWall))
		return
	}
	if tb.runs >= tb.cfg.MaxRuns || tb.goal.Percent() >= 100 {
		tb.done = true
		return
	}

	covered := make(map[string]bool)
	for _, bin := range tb.goal.DimCoveredBins(PointRegName) {
		covered[bin] = true
	}

	trx := tb.gen.Next(tb.model, covered)
	tb.log.Printf("test case #%d: %s", tb.runs, trx)

	now := tb.engine.CurrentTime()
	if trx.Dir == bus.Write {
		tb.sb.Push(scoreboard.Expectation{
			Register: trx.Register,
			Dir:      bus.Write,
			Addr:     trx.Addr,
			Data:     trx.Data,
		})
		if err := tb.model.ApplyWrite(trx.Register, trx.Data, now); err != nil {
			tb.fail(err)
			return
		}
	} else {
		val, known := tb.model.PredictRead(trx.Register)
		trx.ExpectedData = val
		trx.HasExpected = known
		tb.sb.Push(scoreboard.Expectation{
			Register: trx.Register,
			Dir:      bus.Read,
			Addr:     trx.Addr,
			Data:     val,
			DontCare: !known,
		})
	}

	tb.current = trx
	if err := tb.driver.Send(trx, tb.issueNext); err != nil {
		tb.fail(err)
		return
	}
	tb.runs++
}

// onObservation scores and samples one decoded access. The monitor runs
// on the same clock edges as the driver, so the observation always
// belongs to the transaction currently in flight.
func (tb *TestBench) onObservation(o spi.Observation) {
	if err := tb.sb.Check(o); err != nil {
		tb.fail(err)
		return
	}

	if tb.resetDet != nil {
		tb.resetDet.Observe(o)
	}

	if o.Dir == bus.Read {
		if e, ok := tb.model.LookupAddr(o.Addr); ok {
			tb.model.RecordRead(e.Name, o.Data, o.Time)
		}
	}

	if tb.current != nil {
		tb.registry.Sample(tb.current)
	}
}

func (tb *TestBench) onProtocolError(err error) {
	tb.fail(err)
}

// fail records the first fatal error and stops the loop at the next
// boundary.
func (tb *TestBench) fail(err error) {
	tb.log.Printf("fatal: %v", err)
	if tb.fatalErr == nil {
		tb.fatalErr = err
	}
	tb.done = true
}

func (tb *TestBench) verdict() *Verdict {
	v := &Verdict{
		Runs:        tb.runs,
		GoalPercent: tb.goal.Percent(),
		GoalReached: tb.goal.Percent() >= 100,
		Mismatches:  tb.sb.Mismatches(),
		Coverage:    tb.registry.Report(),
		Err:         tb.fatalErr,
	}
	if v.Err == nil {
		v.Err = tb.sb.Result()
	}
	v.Passed = v.Err == nil
	return v
}

// UnderAccessed lists registers with fewer modeled reads or writes than
// min, the end-of-run statistic the coverage goal should have driven to
// empty.
func (tb *TestBench) UnderAccessed(min int) map[string][2]int {
	out := make(map[string][2]int)
	counts := tb.model.AccessCounts()
	for _, name := range tb.model.SortedNames() {
		c := counts[name]
		e, _ := tb.model.Lookup(name)
		wrOK := c[1] >= min || e.Access == regmodel.ReadOnly
		if c[0] < min || !wrOK {
			out[name] = c
		}
	}
	return out
}

type watchdogEvent struct {
	*sim.EventBase
}

// watchdog aborts the run when the simulated-time bound passes before
// the goal is reached.
type watchdog struct {
	tb *TestBench
}

func (w *watchdog) Handle(e sim.Event) error {
	if w.tb.done {
		return nil
	}
	w.tb.fail(fmt.Errorf(
		"bench: did not complete within %.3fs simulated time",
		float64(e.Time())))
	return nil
}
