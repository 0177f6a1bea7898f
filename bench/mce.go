package bench

import (
	"math/rand"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/rocklab/rocktb/wire"
)

// MCE frame pulse timing, in nanoseconds. The pulse runs concurrently
// with SPI traffic to exercise the chip's postponed register-update path.
const (
	mceStartDelayNs = 20
	mceHighMinNs    = 1900
	mceHighMaxNs    = 2100
	mceLowMinNs     = 50
	mceLowMaxNs     = 250
)

type pulserEvent struct {
	*sim.EventBase
}

// Pulser emulates the periodic MCE frame signal with randomized high and
// low phases. It shares no state with the protocol tasks and never
// touches the register model; it only toggles its signal.
type Pulser struct {
	engine sim.Engine
	sig    *wire.Signal
	rand   *rand.Rand
	stop   func() bool
}

// NewPulser creates a pulser for sig. stop is polled before each toggle;
// once it reports true the pulser schedules nothing further.
func NewPulser(
	engine sim.Engine,
	sig *wire.Signal,
	rnd *rand.Rand,
	stop func() bool,
) *Pulser {
	return &Pulser{engine: engine, sig: sig, rand: rnd, stop: stop}
}

// Start drives the signal low and schedules the first rising toggle.
func (p *Pulser) Start() {
	p.sig.Set(wire.Low)
	p.schedule(mceStartDelayNs)
}

// Handle toggles the signal and schedules the next phase. It implements
// sim.Handler.
func (p *Pulser) Handle(e sim.Event) error {
	if p.stop != nil && p.stop() {
		return nil
	}

	if p.sig.Value() != wire.High {
		p.sig.Set(wire.High)
		p.schedule(p.randBetween(mceHighMinNs, mceHighMaxNs))
	} else {
		p.sig.Set(wire.Low)
		p.schedule(p.randBetween(mceLowMinNs, mceLowMaxNs))
	}

	return nil
}

func (p *Pulser) randBetween(min, max int) int {
	return min + p.rand.Intn(max-min+1)
}

func (p *Pulser) schedule(delayNs int) {
	t := p.engine.CurrentTime() + sim.VTimeInSec(delayNs)*1e-9
	p.engine.Schedule(pulserEvent{EventBase: sim.NewEventBase(t, p)})
}
