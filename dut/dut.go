// Package dut is the behavioral model of the Rock chip's SPI slave: a
// register file behind the serial port, standing in for the RTL the
// testbench normally drives. It consumes the same clock and chip-select
// edges as the monitor and answers read requests with response frames.
package dut

import (
	"io"
	"log"
	"strings"

	"github.com/rocklab/rocktb/bus"
	"github.com/rocklab/rocktb/regmodel"
	"github.com/rocklab/rocktb/spi"
	"github.com/rocklab/rocktb/wire"
)

type rockState uint8

const (
	rockIdle rockState = iota
	rockRequest
	rockRespondWait
	rockResponding
	rockIgnoring
)

// Rock models the chip. Register metadata (addresses, widths, access
// modes, reset values) comes from its own expansion of the register map;
// the stored values are the chip's, independent of the bench-side shadow
// model.
type Rock struct {
	sigs     *wire.Bundle
	regs     *regmodel.Model
	chipAddr uint8
	log      *log.Logger

	values  map[uint8]uint16
	pending map[uint8]uint16

	state   rockState
	bitIdx  int
	reqWord uint32
	rspWord uint32
	ignored int
}

// NewRock creates the chip model and wires it to the channel's signals.
// regs must be a dedicated Model instance; the chip initializes every
// register to its reset value.
func NewRock(
	sigs *wire.Bundle,
	regs *regmodel.Model,
	chipAddr uint8,
	logger *log.Logger,
) *Rock {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	r := &Rock{
		sigs:     sigs,
		regs:     regs,
		chipAddr: chipAddr,
		log:      logger,
		values:   make(map[uint8]uint16),
		pending:  make(map[uint8]uint16),
	}
	r.resetRegisters()

	sigs.CsN.OnEdge(wire.Falling, r.onFrameStart)
	sigs.CsN.OnEdge(wire.Rising, r.onFrameEnd)
	sigs.SClk.OnEdge(wire.Falling, r.onSClkFall)
	sigs.SClk.OnEdge(wire.Rising, r.onSClkRise)
	sigs.Mce.OnEdge(wire.Falling, r.commitPending)

	return r
}

// Ignored counts frames addressed to another chip.
func (r *Rock) Ignored() int {
	return r.ignored
}

// Value returns the chip's current value of a register, preferring a
// pending postponed write.
func (r *Rock) Value(addr uint8) (uint16, bool) {
	if v, ok := r.pending[addr]; ok {
		return v, true
	}
	v, ok := r.values[addr]
	return v, ok
}

func (r *Rock) resetRegisters() {
	r.pending = make(map[uint8]uint16)
	for _, name := range r.regs.Names() {
		e, _ := r.regs.Lookup(name)
		if v, ok := e.ResetValue(); ok {
			r.values[e.Addr] = v
		} else {
			r.values[e.Addr] = 0
		}
	}
}

func (r *Rock) onFrameStart() {
	switch r.state {
	case rockIdle:
		r.state = rockRequest
		r.bitIdx = spi.NBits - 1
		r.reqWord = 0
	case rockRespondWait:
		r.state = rockResponding
		r.bitIdx = spi.NBits - 1
	}
}

func (r *Rock) onFrameEnd() {
	if r.state == rockResponding {
		r.sigs.Miso.Release()
	}
	if r.state != rockRespondWait {
		r.state = rockIdle
	}
}

// onSClkFall samples one request bit; the driver staged it on the
// preceding rising edge.
func (r *Rock) onSClkFall() {
	if r.state != rockRequest {
		return
	}

	v := r.sigs.Mosi.Value()
	if v.Defined() {
		r.reqWord |= v.Bit() << uint(r.bitIdx)
	}
	r.bitIdx--
	if r.bitIdx < 0 {
		r.processRequest()
	}
}

// onSClkRise shifts the response onto miso, one bit ahead of the
// monitor's falling-edge sample.
func (r *Rock) onSClkRise() {
	if r.state != rockResponding || r.bitIdx < 0 {
		return
	}
	r.sigs.Miso.Set(wire.FromBit(spi.Bit(r.rspWord, r.bitIdx)))
	r.bitIdx--
}

func (r *Rock) processRequest() {
	req := spi.DecodeRequest(r.reqWord)

	if req.ChipAddr != r.chipAddr && !req.Broadcast {
		r.ignored++
		r.log.Printf("ignoring frame for chip %d", req.ChipAddr)
		r.state = rockIgnoring
		return
	}

	if req.Dir == bus.Write {
		r.applyWrite(req.Addr, req.Data)
		r.state = rockIdle
		return
	}

	data, st := r.readRegister(req.Addr)
	r.rspWord = spi.EncodeResponse(req.ChipAddr, bus.Read, data, st)
	r.state = rockRespondWait
}

func (r *Rock) applyWrite(addr uint8, data uint16) {
	e, ok := r.regs.LookupAddr(addr)
	if !ok {
		r.log.Printf("write to unsupported addr 0x%02X dropped", addr)
		return
	}
	if e.Access == regmodel.ReadOnly {
		r.log.Printf("write to read-only %s dropped", e.Name)
		return
	}

	masked := data & e.MaxValue()

	if e.Name == regmodel.SoftResetRegister && masked == regmodel.SoftResetCode {
		r.log.Printf("soft reset")
		r.resetRegisters()
		return
	}

	// Writes into the MCE domain are postponed while the frame pulse is
	// high and committed on its falling edge.
	if r.mceDomain(e.Name) && r.sigs.Mce.Value() == wire.High {
		r.log.Printf("postponing write %s=0x%04X", e.Name, masked)
		r.pending[addr] = masked
		return
	}

	r.values[addr] = masked
}

func (r *Rock) readRegister(addr uint8) (uint16, spi.Status) {
	if _, ok := r.regs.LookupAddr(addr); !ok {
		return 0, spi.StatusError
	}
	v, _ := r.Value(addr)
	return v, spi.StatusOk
}

func (r *Rock) commitPending() {
	for addr, v := range r.pending {
		r.values[addr] = v
	}
	r.pending = make(map[uint8]uint16)
}

// mceDomain tells whether a register belongs to the MCE-synchronized
// update domain.
func (r *Rock) mceDomain(name string) bool {
	return strings.HasPrefix(name, "ANODE_BIAS")
}
