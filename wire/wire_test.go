package wire_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rocklab/rocktb/wire"
)

var _ = Describe("Signal", func() {
	var (
		sig      *wire.Signal
		risings  int
		fallings int
	)

	BeforeEach(func() {
		sig = wire.NewSignal("I_SCLK_0")
		risings = 0
		fallings = 0
		sig.OnEdge(wire.Rising, func() { risings++ })
		sig.OnEdge(wire.Falling, func() { fallings++ })
	})

	It("should start undefined", func() {
		Expect(sig.Value()).To(Equal(wire.X))
		Expect(sig.Value().Defined()).To(BeFalse())
	})

	It("should fire rising subscribers on a transition to high", func() {
		sig.Set(wire.Low)
		sig.Set(wire.High)
		Expect(risings).To(Equal(1))
		Expect(fallings).To(Equal(1)) // the X -> Low transition counts
	})

	It("should not fire on a write of the same value", func() {
		sig.Set(wire.High)
		sig.Set(wire.High)
		Expect(risings).To(Equal(1))
	})

	It("should count edges over a clock burst", func() {
		sig.Set(wire.Low)
		for i := 0; i < 32; i++ {
			sig.Set(wire.High)
			sig.Set(wire.Low)
		}
		Expect(risings).To(Equal(32))
		Expect(fallings).To(Equal(33))
	})

	It("should release to X without firing edges", func() {
		sig.Set(wire.High)
		sig.Release()
		Expect(sig.Value()).To(Equal(wire.X))
		Expect(fallings).To(BeZero())
	})

	Describe("Logic", func() {
		It("should convert bits both ways", func() {
			Expect(wire.FromBit(1)).To(Equal(wire.High))
			Expect(wire.FromBit(0)).To(Equal(wire.Low))
			Expect(wire.High.Bit()).To(Equal(uint32(1)))
			Expect(wire.Low.Bit()).To(Equal(uint32(0)))
		})

		It("should print like a waveform", func() {
			Expect(wire.X.String()).To(Equal("x"))
			Expect(wire.Low.String()).To(Equal("0"))
			Expect(wire.High.String()).To(Equal("1"))
		})
	})

	Describe("Bundle", func() {
		It("should name signals by SPI index", func() {
			b := wire.NewBundle(0)
			Expect(b.SClk.Name()).To(Equal("I_SCLK_0"))
			Expect(b.CsN.Name()).To(Equal("I_CS_N_0"))
			Expect(b.Mosi.Name()).To(Equal("I_MOSI_0"))
			Expect(b.Miso.Name()).To(Equal("O_MISO_0"))
			Expect(b.Mce.Name()).To(Equal("I_MCE"))
		})
	})
})
