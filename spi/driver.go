package spi

import (
	"fmt"
	"io"
	"log"
	"math/rand"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/rocklab/rocktb/bus"
	"github.com/rocklab/rocktb/wire"
)

// DefaultFreq is the SPI clock frequency of the Rock serial port.
const DefaultFreq = 12.5 * sim.MHz

const (
	nsPerSec = sim.VTimeInSec(1e-9)

	// csHoldTime keeps sclk low before cs_n is released.
	csHoldTime = 20 * nsPerSec

	// interFramePause separates a request frame from whatever follows.
	interFramePause = 200 * nsPerSec

	// Bounds of the randomized pause after a read's response frame.
	minReadPause = 10
	maxReadPause = 200
)

type driverStage uint8

const (
	stageClockHigh driverStage = iota
	stageClockLow
	stageStop
	stageFrameStart
	stageDone
)

type driverEvent struct {
	*sim.EventBase
	stage driverStage
}

// Driver transmits request frames onto the SPI inputs of the chip. It is
// a clock-synchronous state machine scheduled on the simulation engine;
// one transaction is in flight at a time.
type Driver struct {
	engine   sim.Engine
	sigs     *wire.Bundle
	chipAddr uint8
	freq     sim.Freq
	rand     *rand.Rand
	log      *log.Logger

	// in-flight transmission state
	trx        *bus.Transaction
	word       uint32
	bitIdx     int
	strobeOnly bool
	onDone     func()
}

// NewDriver creates a driver for one SPI channel and parks the bus in its
// idle state: sclk low, cs_n high, mosi released.
func NewDriver(
	engine sim.Engine,
	sigs *wire.Bundle,
	chipAddr uint8,
	rnd *rand.Rand,
	logger *log.Logger,
) *Driver {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	d := &Driver{
		engine:   engine,
		sigs:     sigs,
		chipAddr: chipAddr,
		freq:     DefaultFreq,
		rand:     rnd,
		log:      logger,
	}

	d.sigs.SClk.Set(wire.Low)
	d.sigs.CsN.Set(wire.High)
	d.sigs.Mosi.Release()

	return d
}

// Busy reports whether a transaction is still being transmitted.
func (d *Driver) Busy() bool {
	return d.trx != nil
}

// Send transmits a transaction and invokes onDone once the bus is idle
// again. A read transaction is two frames: the request, then a clock-only
// frame that strobes the chip's response out, followed by a randomized
// inter-frame pause.
func (d *Driver) Send(trx *bus.Transaction, onDone func()) error {
	if err := trx.Validate(); err != nil {
		return fmt.Errorf("spi: refusing to send: %w", err)
	}
	if d.trx != nil {
		return fmt.Errorf("spi: driver busy, cannot send %s", trx)
	}

	d.log.Printf("sending %s", trx)

	d.trx = trx
	d.word = EncodeRequest(d.chipAddr, trx)
	d.bitIdx = NBits - 1
	d.strobeOnly = false
	d.onDone = onDone

	d.sigs.CsN.Set(wire.Low)
	d.schedule(stageClockHigh, d.halfPeriod())

	return nil
}

// Handle advances the transmit state machine. It implements sim.Handler.
func (d *Driver) Handle(e sim.Event) error {
	evt := e.(driverEvent)

	switch evt.stage {
	case stageClockHigh:
		d.clockHigh()
	case stageClockLow:
		d.clockLow()
	case stageStop:
		d.stop()
	case stageFrameStart:
		d.frameStart()
	case stageDone:
		d.done()
	}

	return nil
}

// clockHigh raises sclk and drives the current request bit. The monitor
// and the chip both sample on the following falling edge.
func (d *Driver) clockHigh() {
	if !d.strobeOnly {
		d.sigs.Mosi.Set(wire.FromBit(Bit(d.word, d.bitIdx)))
		d.log.Printf("%s : %d : %s",
			fieldName(d.bitIdx), d.bitIdx, d.sigs.Mosi.Value())
	}
	d.sigs.SClk.Set(wire.High)
	d.schedule(stageClockLow, d.halfPeriod())
}

func (d *Driver) clockLow() {
	d.sigs.SClk.Set(wire.Low)
	d.bitIdx--
	if d.bitIdx >= 0 {
		d.schedule(stageClockHigh, d.halfPeriod())
		return
	}
	d.schedule(stageStop, csHoldTime)
}

// stop releases the bus at the end of a frame and schedules what follows:
// the strobe frame for a read, or the end of the transaction.
func (d *Driver) stop() {
	d.sigs.CsN.Set(wire.High)
	d.sigs.Mosi.Release()

	switch {
	case !d.strobeOnly && d.trx.Dir == bus.Read:
		d.strobeOnly = true
		d.schedule(stageFrameStart, interFramePause)
	case d.strobeOnly:
		pause := minReadPause + d.rand.Intn(maxReadPause-minReadPause+1)
		d.schedule(stageDone, sim.VTimeInSec(pause)*nsPerSec)
	default:
		d.schedule(stageDone, interFramePause)
	}
}

// frameStart opens the clock-only frame that lets the chip shift its
// response out on miso.
func (d *Driver) frameStart() {
	d.log.Printf("starting read response frame")
	d.bitIdx = NBits - 1
	d.sigs.CsN.Set(wire.Low)
	d.schedule(stageClockHigh, d.halfPeriod())
}

func (d *Driver) done() {
	d.log.Printf("finished %s", d.trx)
	cb := d.onDone
	d.trx = nil
	d.onDone = nil
	if cb != nil {
		cb()
	}
}

func (d *Driver) halfPeriod() sim.VTimeInSec {
	return d.freq.Period() / 2
}

func (d *Driver) schedule(stage driverStage, delay sim.VTimeInSec) {
	d.engine.Schedule(driverEvent{
		EventBase: sim.NewEventBase(d.engine.CurrentTime()+delay, d),
		stage:     stage,
	})
}
