// Package main provides the entry point for rocktb, the Rock SPI
// register-verification testbench. It runs randomized register accesses
// over the simulated serial bus until the coverage goal is met and
// reports the verdict.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/rocklab/rocktb/bench"
	"github.com/rocklab/rocktb/regmodel"
	"github.com/rocklab/rocktb/scoreboard"
)

var (
	mapPath  = flag.String("map", "", "Path to a register map JSON file (default: built-in Rock map)")
	maxRuns  = flag.Int("max-runs", 5000, "Maximum number of transactions")
	seed     = flag.Int64("seed", 1, "Random seed")
	atLeast  = flag.Uint64("at-least", 2, "Per-bin coverage threshold")
	failFast = flag.Bool("fail-fast", false, "Abort on the first scoreboard mismatch")
	watchdog = flag.Float64("watchdog", 0.05, "Simulated-time bound in seconds (0 disables)")
	wallTime = flag.Duration("wall-time", 2*time.Minute, "Wall-clock bound (0 disables)")
	verbose  = flag.Bool("v", false, "Verbose component logs")
	trace    = flag.Bool("trace", false, "Log every simulation event (implies -v)")
)

func main() {
	flag.Parse()

	mapFile := regmodel.DefaultMap()
	if *mapPath != "" {
		var err error
		mapFile, err = regmodel.LoadMapFile(*mapPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading register map: %v\n", err)
			os.Exit(1)
		}
	}

	cfg := bench.DefaultConfig()
	cfg.MaxRuns = *maxRuns
	cfg.Seed = *seed
	cfg.AtLeast = *atLeast
	cfg.WatchdogSim = sim.VTimeInSec(*watchdog)
	cfg.WatchdogWall = *wallTime
	if *failFast {
		cfg.Mode = scoreboard.FailFast
	}
	if *verbose || *trace {
		cfg.LogWriter = os.Stderr
	}
	cfg.TraceEvents = *trace

	tb, err := bench.New(mapFile, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building testbench: %v\n", err)
		os.Exit(1)
	}

	verdict := tb.Run()

	fmt.Print(verdict)
	fmt.Print(verdict.Coverage)

	if under := tb.UnderAccessed(int(*atLeast)); len(under) > 0 {
		fmt.Println("registers under the access goal:")
		for name, c := range under {
			fmt.Printf("  %-20s reads=%d writes=%d\n", name, c[0], c[1])
		}
	}

	if !verdict.Passed {
		os.Exit(1)
	}
}
