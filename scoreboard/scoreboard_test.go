package scoreboard_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rocklab/rocktb/bus"
	"github.com/rocklab/rocktb/regmodel"
	"github.com/rocklab/rocktb/scoreboard"
	"github.com/rocklab/rocktb/spi"
)

func expect(dir bus.Direction, addr uint8, data uint16) scoreboard.Expectation {
	return scoreboard.Expectation{
		Register: "REG", Dir: dir, Addr: addr, Data: data,
	}
}

func observe(dir bus.Direction, addr uint8, data uint16) spi.Observation {
	return spi.Observation{Dir: dir, Addr: addr, Data: data}
}

var _ = Describe("Scoreboard", func() {
	var sb *scoreboard.Scoreboard

	Describe("in accumulate mode", func() {
		BeforeEach(func() {
			sb = scoreboard.New(scoreboard.Accumulate, nil, nil)
		})

		It("should match expectations in queue order", func() {
			sb.Push(expect(bus.Write, 0x02, 0x5A))
			sb.Push(expect(bus.Read, 0x02, 0x5A))

			Expect(sb.Check(observe(bus.Write, 0x02, 0x5A))).To(Succeed())
			Expect(sb.Check(observe(bus.Read, 0x02, 0x5A))).To(Succeed())
			Expect(sb.Matched()).To(Equal(2))
			Expect(sb.Pending()).To(BeZero())
			Expect(sb.Result()).To(Succeed())
		})

		It("should collect data mismatches without erroring", func() {
			sb.Push(expect(bus.Read, 0x02, 0x5A))

			Expect(sb.Check(observe(bus.Read, 0x02, 0xFF))).To(Succeed())
			Expect(sb.Mismatches()).To(HaveLen(1))
			Expect(sb.Result()).To(MatchError(ContainSubstring("1 mismatch")))
		})

		It("should flag a direction mismatch", func() {
			sb.Push(expect(bus.Write, 0x02, 0x5A))
			Expect(sb.Check(observe(bus.Read, 0x02, 0x5A))).To(Succeed())
			Expect(sb.Mismatches()).To(HaveLen(1))
		})

		It("should error on an observation with nothing queued", func() {
			err := sb.Check(observe(bus.Read, 0x02, 0))
			Expect(err).To(MatchError(ContainSubstring("unexpected observation")))
		})

		It("should flag expectations never observed", func() {
			sb.Push(expect(bus.Read, 0x02, 0x5A))
			Expect(sb.Result()).To(
				MatchError(ContainSubstring("never observed")))
		})

		It("should accept any data for a don't-care expectation", func() {
			e := expect(bus.Read, 0x02, 0)
			e.DontCare = true
			sb.Push(e)

			Expect(sb.Check(observe(bus.Read, 0x02, 0xBEE))).To(Succeed())
			Expect(sb.Matched()).To(Equal(1))
			Expect(sb.Result()).To(Succeed())
		})

		It("should still match address on a don't-care expectation", func() {
			e := expect(bus.Read, 0x02, 0)
			e.DontCare = true
			sb.Push(e)

			Expect(sb.Check(observe(bus.Read, 0x03, 0))).To(Succeed())
			Expect(sb.Mismatches()).To(HaveLen(1))
		})

		It("should honor a custom comparison", func() {
			loose := func(e scoreboard.Expectation, o spi.Observation) bool {
				return e.Dir == o.Dir
			}
			sb = scoreboard.New(scoreboard.Accumulate, loose, nil)
			sb.Push(expect(bus.Read, 0x02, 0x5A))

			Expect(sb.Check(observe(bus.Read, 0x7F, 0))).To(Succeed())
			Expect(sb.Matched()).To(Equal(1))
		})
	})

	Describe("in fail-fast mode", func() {
		BeforeEach(func() {
			sb = scoreboard.New(scoreboard.FailFast, nil, nil)
		})

		It("should return the first mismatch as an error", func() {
			sb.Push(expect(bus.Read, 0x02, 0x5A))

			err := sb.Check(observe(bus.Read, 0x02, 0xFF))
			Expect(err).To(MatchError(ContainSubstring("expected")))
			Expect(sb.Mismatches()).To(BeEmpty())
		})

		It("should keep matching after successes", func() {
			sb.Push(expect(bus.Write, 0x02, 0x5A))
			Expect(sb.Check(observe(bus.Write, 0x02, 0x5A))).To(Succeed())
			Expect(sb.Result()).To(Succeed())
		})
	})
})

var _ = Describe("ResetDetector", func() {
	var (
		model *regmodel.Model
		det   *scoreboard.ResetDetector
	)

	BeforeEach(func() {
		model = regmodel.DefaultModel()
		det = scoreboard.NewResetDetector(
			0x01, regmodel.SoftResetCode, model, nil)
	})

	It("should reset the model on the reset code", func() {
		Expect(model.ApplyWrite("SPI_CFG", 0x5A, 0)).To(Succeed())

		hit := det.Observe(observe(bus.Write, 0x01, regmodel.SoftResetCode))
		Expect(hit).To(BeTrue())
		Expect(det.Detected()).To(Equal(1))

		v, known := model.PredictRead("SPI_CFG")
		Expect(known).To(BeTrue())
		Expect(v).To(Equal(uint16(0))) // back to the reset value
	})

	It("should ignore ordinary writes to the control register", func() {
		Expect(model.ApplyWrite("SPI_CFG", 0x5A, 0)).To(Succeed())

		Expect(det.Observe(observe(bus.Write, 0x01, 0x1234))).To(BeFalse())
		Expect(det.Detected()).To(BeZero())

		v, _ := model.PredictRead("SPI_CFG")
		Expect(v).To(Equal(uint16(0x5A)))
	})

	It("should ignore reads of the reset code", func() {
		Expect(det.Observe(
			observe(bus.Read, 0x01, regmodel.SoftResetCode))).To(BeFalse())
	})
})
