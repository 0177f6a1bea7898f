package spi_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/rocklab/rocktb/bus"
	"github.com/rocklab/rocktb/spi"
	"github.com/rocklab/rocktb/wire"
)

// clockWord shifts a 32-bit word onto sig, MSB first, toggling sclk so
// the monitor samples each bit on the falling edge.
func clockWord(sigs *wire.Bundle, sig *wire.Signal, word uint32) {
	sigs.CsN.Set(wire.Low)
	for i := spi.NBits - 1; i >= 0; i-- {
		sig.Set(wire.FromBit(spi.Bit(word, i)))
		sigs.SClk.Set(wire.High)
		sigs.SClk.Set(wire.Low)
	}
	sigs.CsN.Set(wire.High)
}

var _ = Describe("Monitor", func() {
	var (
		sigs     *wire.Bundle
		engine   sim.Engine
		observed []spi.Observation
		errs     []error
	)

	BeforeEach(func() {
		sigs = wire.NewBundle(0)
		engine = sim.NewSerialEngine()
		observed = nil
		errs = nil

		spi.NewMonitor(engine, sigs, nil,
			func(o spi.Observation) { observed = append(observed, o) },
			func(err error) { errs = append(errs, err) })

		sigs.SClk.Set(wire.Low)
		sigs.CsN.Set(wire.High)
	})

	It("should decode a write request frame", func() {
		trx := &bus.Transaction{
			Register: "R", Addr: 0x42, Data: 0x1234, Dir: bus.Write,
		}
		clockWord(sigs, sigs.Mosi, spi.EncodeRequest(0, trx))

		Expect(errs).To(BeEmpty())
		Expect(observed).To(HaveLen(1))
		Expect(observed[0].Dir).To(Equal(bus.Write))
		Expect(observed[0].Addr).To(Equal(uint8(0x42)))
		Expect(observed[0].Data).To(Equal(uint16(0x1234)))
	})

	It("should hold a read request until the response frame", func() {
		trx := &bus.Transaction{Register: "R", Addr: 0x10, Dir: bus.Read}
		clockWord(sigs, sigs.Mosi, spi.EncodeRequest(0, trx))
		Expect(observed).To(BeEmpty())

		clockWord(sigs, sigs.Miso,
			spi.EncodeResponse(0, bus.Read, 0x00FF, spi.StatusOk))

		Expect(errs).To(BeEmpty())
		Expect(observed).To(HaveLen(1))
		Expect(observed[0].Dir).To(Equal(bus.Read))
		Expect(observed[0].Addr).To(Equal(uint8(0x10)))
		Expect(observed[0].Data).To(Equal(uint16(0x00FF)))
	})

	It("should decode back-to-back write frames", func() {
		for i := 0; i < 3; i++ {
			trx := &bus.Transaction{
				Register: "R", Addr: uint8(i), Data: uint16(i * 7),
				Dir: bus.Write,
			}
			clockWord(sigs, sigs.Mosi, spi.EncodeRequest(0, trx))
		}
		Expect(observed).To(HaveLen(3))
		Expect(observed[2].Data).To(Equal(uint16(14)))
	})

	It("should flag an undefined sampled bit as fatal", func() {
		sigs.CsN.Set(wire.Low)
		sigs.Mosi.Release()
		sigs.SClk.Set(wire.High)
		sigs.SClk.Set(wire.Low)

		Expect(errs).To(HaveLen(1))
		Expect(errs[0]).To(MatchError(spi.ErrUndefinedBit))
		Expect(observed).To(BeEmpty())
	})

	It("should flag a chip-address mismatch in the response as fatal", func() {
		trx := &bus.Transaction{Register: "R", Addr: 0x10, Dir: bus.Read}
		clockWord(sigs, sigs.Mosi, spi.EncodeRequest(0, trx))
		clockWord(sigs, sigs.Miso,
			spi.EncodeResponse(1, bus.Read, 0, spi.StatusOk))

		Expect(errs).To(HaveLen(1))
		Expect(errs[0]).To(MatchError(spi.ErrChipAddrMismatch))
	})

	It("should flag a non-Ok response status as fatal", func() {
		trx := &bus.Transaction{Register: "R", Addr: 0x10, Dir: bus.Read}
		clockWord(sigs, sigs.Mosi, spi.EncodeRequest(0, trx))
		clockWord(sigs, sigs.Miso,
			spi.EncodeResponse(0, bus.Read, 0, spi.StatusError))

		Expect(errs).To(HaveLen(1))
		Expect(errs[0]).To(MatchError(spi.ErrBadStatus))
	})

	It("should stop following the bus after a violation", func() {
		sigs.CsN.Set(wire.Low)
		sigs.SClk.Set(wire.High)
		sigs.SClk.Set(wire.Low) // mosi undefined -> fatal
		sigs.CsN.Set(wire.High)

		trx := &bus.Transaction{
			Register: "R", Addr: 1, Data: 2, Dir: bus.Write,
		}
		clockWord(sigs, sigs.Mosi, spi.EncodeRequest(0, trx))

		Expect(errs).To(HaveLen(1))
		Expect(observed).To(BeEmpty())
	})
})
