// Package scoreboard compares the register accesses observed on the wire
// against the model-predicted expectations queued before each
// transmission.
package scoreboard

import (
	"fmt"
	"io"
	"log"

	"github.com/rocklab/rocktb/bus"
	"github.com/rocklab/rocktb/regmodel"
	"github.com/rocklab/rocktb/spi"
)

// Mode selects how a mismatch is surfaced.
type Mode uint8

const (
	// Accumulate collects mismatches and reports them all at run end.
	Accumulate Mode = iota
	// FailFast raises the first mismatch immediately, halting the run.
	FailFast
)

// Expectation is one predicted access, queued before transmission.
type Expectation struct {
	Register string
	Dir      bus.Direction
	Addr     uint8

	// Data is the predicted value. DontCare marks it wildcard, used
	// whenever the prior register state is unknown (for example right
	// after a detected reset, before any write).
	Data     uint16
	DontCare bool
}

// String renders the expectation for mismatch reports.
func (e Expectation) String() string {
	if e.DontCare {
		return fmt.Sprintf("%s %s addr=0x%02X data=don't-care",
			e.Dir, e.Register, e.Addr)
	}
	return fmt.Sprintf("%s %s addr=0x%02X data=0x%04X",
		e.Dir, e.Register, e.Addr, e.Data)
}

// Mismatch pairs an expectation with the observation that violated it.
type Mismatch struct {
	Expected Expectation
	Got      spi.Observation
}

// String renders the mismatch.
func (m Mismatch) String() string {
	return fmt.Sprintf("expected %s, got %s", m.Expected, m.Got)
}

// EqualFunc decides whether an observation satisfies an expectation.
type EqualFunc func(Expectation, spi.Observation) bool

// DefaultEqual matches direction and address always and data unless the
// expectation is don't-care.
func DefaultEqual(e Expectation, o spi.Observation) bool {
	if e.Dir != o.Dir || e.Addr != o.Addr {
		return false
	}
	return e.DontCare || e.Data == o.Data
}

// Scoreboard holds the ordered expectation queue of one monitored
// channel. Expectations are checked in FIFO order against observations.
type Scoreboard struct {
	mode  Mode
	equal EqualFunc
	log   *log.Logger

	queue      []Expectation
	matched    int
	mismatches []Mismatch
}

// New creates a scoreboard. equal nil selects DefaultEqual.
func New(mode Mode, equal EqualFunc, logger *log.Logger) *Scoreboard {
	if equal == nil {
		equal = DefaultEqual
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Scoreboard{mode: mode, equal: equal, log: logger}
}

// Push queues the expectation for the next transmission.
func (s *Scoreboard) Push(e Expectation) {
	s.queue = append(s.queue, e)
}

// Pending returns the number of unchecked expectations.
func (s *Scoreboard) Pending() int {
	return len(s.queue)
}

// Matched returns the number of successful comparisons.
func (s *Scoreboard) Matched() int {
	return s.matched
}

// Mismatches returns the mismatches collected so far.
func (s *Scoreboard) Mismatches() []Mismatch {
	return s.mismatches
}

// Check pops the oldest expectation and compares it against the
// observation. In FailFast mode the first mismatch is returned as an
// error; in Accumulate mode mismatches are collected and surfaced by
// Result. An observation with no queued expectation is always an error.
func (s *Scoreboard) Check(o spi.Observation) error {
	if len(s.queue) == 0 {
		return fmt.Errorf("scoreboard: unexpected observation %s", o)
	}

	exp := s.queue[0]
	s.queue = s.queue[1:]

	if s.equal(exp, o) {
		s.matched++
		s.log.Printf("match: %s", exp)
		return nil
	}

	m := Mismatch{Expected: exp, Got: o}
	if s.mode == FailFast {
		return fmt.Errorf("scoreboard: %s", m)
	}
	s.log.Printf("mismatch: %s", m)
	s.mismatches = append(s.mismatches, m)
	return nil
}

// Result is the end-of-run verdict: nil when every observation matched
// and no expectation is left hanging.
func (s *Scoreboard) Result() error {
	if len(s.mismatches) > 0 {
		return fmt.Errorf("scoreboard: %d mismatch(es), first: %s",
			len(s.mismatches), s.mismatches[0])
	}
	if len(s.queue) > 0 {
		return fmt.Errorf("scoreboard: %d expectation(s) never observed",
			len(s.queue))
	}
	return nil
}

// ResetDetector recognizes the soft-reset control write and invalidates
// the model's written state so subsequent reads fall back to reset
// values. Reset is a recognized control signal, not an error.
type ResetDetector struct {
	addr  uint8
	code  uint16
	model *regmodel.Model
	log   *log.Logger

	detected int
}

// NewResetDetector watches for writes of code to the control register at
// addr.
func NewResetDetector(
	addr uint8,
	code uint16,
	model *regmodel.Model,
	logger *log.Logger,
) *ResetDetector {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &ResetDetector{addr: addr, code: code, model: model, log: logger}
}

// Observe inspects one observation. On a reset write it clears every
// last-written value in the model and reports true.
func (d *ResetDetector) Observe(o spi.Observation) bool {
	if o.Dir != bus.Write || o.Addr != d.addr || o.Data != d.code {
		return false
	}
	d.log.Printf("soft reset detected at %.9f", float64(o.Time))
	d.model.ResetAll()
	d.detected++
	return true
}

// Detected counts recognized resets.
func (d *ResetDetector) Detected() int {
	return d.detected
}
