package spi

import (
	"fmt"
	"io"
	"log"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/rocklab/rocktb/bus"
	"github.com/rocklab/rocktb/wire"
)

// Observation is one decoded register access as seen on the wire,
// delivered to the scoreboard and the coverage engine.
type Observation struct {
	Dir  bus.Direction
	Addr uint8
	Data uint16
	Time sim.VTimeInSec
}

// String renders the observation for logs.
func (o Observation) String() string {
	return fmt.Sprintf("%s addr=0x%02X data=0x%04X @%.9f",
		o.Dir, o.Addr, o.Data, float64(o.Time))
}

type monitorState uint8

const (
	stateIdle monitorState = iota
	stateReceiving
	stateAwaitResponse
	stateReceivingResponse
	stateFatal
)

// Monitor decodes the frames exchanged on one SPI channel. It is a
// perpetual state machine armed by cs_n falling edges and clocked by sclk
// falling edges, the same edges the driver and the chip use, so every bit
// is observed on the edge that drove it.
//
// Any protocol violation (an undefined sampled bit, a chip-address echo
// mismatch, a non-Ok response status) is fatal: the violation is passed
// to the error sink and the monitor stops following the bus.
type Monitor struct {
	time sim.TimeTeller
	sigs *wire.Bundle
	log  *log.Logger

	state   monitorState
	bitIdx  int
	reqWord uint32
	rspWord uint32
	request RequestFields

	onObservation func(Observation)
	onError       func(error)
}

// NewMonitor creates a monitor and subscribes it to the channel's edges.
// onObservation receives every decoded access; onError receives fatal
// protocol violations (nil panics on violation).
func NewMonitor(
	time sim.TimeTeller,
	sigs *wire.Bundle,
	logger *log.Logger,
	onObservation func(Observation),
	onError func(error),
) *Monitor {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if onError == nil {
		onError = func(err error) { log.Panic(err) }
	}

	m := &Monitor{
		time:          time,
		sigs:          sigs,
		log:           logger,
		state:         stateIdle,
		onObservation: onObservation,
		onError:       onError,
	}

	sigs.CsN.OnEdge(wire.Falling, m.onFrameStart)
	sigs.SClk.OnEdge(wire.Falling, m.onSClkFall)

	return m
}

// onFrameStart arms the monitor for the next 32 bits.
func (m *Monitor) onFrameStart() {
	switch m.state {
	case stateIdle:
		m.state = stateReceiving
		m.bitIdx = NBits - 1
		m.reqWord = 0
	case stateAwaitResponse:
		m.log.Printf("starting reading response")
		m.state = stateReceivingResponse
		m.bitIdx = NBits - 1
		m.rspWord = 0
	}
}

func (m *Monitor) onSClkFall() {
	switch m.state {
	case stateReceiving:
		m.receiveBit(m.sigs.Mosi, &m.reqWord, m.finishRequest)
	case stateReceivingResponse:
		m.receiveBit(m.sigs.Miso, &m.rspWord, m.finishResponse)
	}
}

// receiveBit samples one bit into word and calls finish after bit 0.
func (m *Monitor) receiveBit(sig *wire.Signal, word *uint32, finish func()) {
	v := sig.Value()
	if !v.Defined() {
		m.fatal(fmt.Errorf("%w: %s bit %d is %s",
			ErrUndefinedBit, sig.Name(), m.bitIdx, v))
		return
	}

	*word |= v.Bit() << uint(m.bitIdx)
	m.bitIdx--
	if m.bitIdx < 0 {
		finish()
	}
}

func (m *Monitor) finishRequest() {
	m.request = DecodeRequest(m.reqWord)

	if m.request.Dir == bus.Read {
		m.log.Printf("read request detected: addr=0x%02X", m.request.Addr)
		m.state = stateAwaitResponse
		return
	}

	m.state = stateIdle
	m.emit(Observation{
		Dir:  bus.Write,
		Addr: m.request.Addr,
		Data: m.request.Data,
		Time: m.time.CurrentTime(),
	})
}

func (m *Monitor) finishResponse() {
	rsp := DecodeResponse(m.rspWord)

	if rsp.ChipAddr != m.request.ChipAddr {
		m.fatal(fmt.Errorf("%w: request 0x%X, response 0x%X",
			ErrChipAddrMismatch, m.request.ChipAddr, rsp.ChipAddr))
		return
	}
	if rsp.Status != StatusOk {
		m.fatal(fmt.Errorf("%w: addr 0x%02X status %s",
			ErrBadStatus, m.request.Addr, rsp.Status))
		return
	}

	m.log.Printf("read response: chip addr=%d data=0x%04X status=%s",
		rsp.ChipAddr, rsp.Data, rsp.Status)

	m.state = stateIdle
	m.emit(Observation{
		Dir:  bus.Read,
		Addr: m.request.Addr,
		Data: rsp.Data,
		Time: m.time.CurrentTime(),
	})
}

func (m *Monitor) emit(o Observation) {
	m.log.Printf("observed %s", o)
	if m.onObservation != nil {
		m.onObservation(o)
	}
}

func (m *Monitor) fatal(err error) {
	m.state = stateFatal
	m.onError(err)
}
