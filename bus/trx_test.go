package bus_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rocklab/rocktb/bus"
)

var _ = Describe("Transaction", func() {
	var trx *bus.Transaction

	BeforeEach(func() {
		trx = &bus.Transaction{
			Register: "SPI_CFG",
			Addr:     0x02,
			Data:     0x00FF,
			Dir:      bus.Write,
			Range:    bus.Max0,
		}
	})

	Describe("Validate", func() {
		It("should accept a well-formed transaction", func() {
			Expect(trx.Validate()).To(Succeed())
		})

		It("should reject a nil transaction", func() {
			var nilTrx *bus.Transaction
			Expect(nilTrx.Validate()).To(HaveOccurred())
		})

		It("should reject an empty register name", func() {
			trx.Register = ""
			Expect(trx.Validate()).To(HaveOccurred())
		})

		It("should reject an invalid direction", func() {
			trx.Dir = bus.Direction(7)
			Expect(trx.Validate()).To(HaveOccurred())
		})

		It("should reject an invalid range class", func() {
			trx.Range = bus.RangeClass(42)
			Expect(trx.Validate()).To(HaveOccurred())
		})
	})

	Describe("String", func() {
		It("should name direction and range by their bin labels", func() {
			Expect(trx.String()).To(ContainSubstring("write"))
			Expect(trx.String()).To(ContainSubstring("max0"))
			Expect(trx.String()).To(ContainSubstring("SPI_CFG"))
		})
	})

	Describe("RangeClasses", func() {
		It("should enumerate all five classes in declaration order", func() {
			Expect(bus.RangeClasses).To(Equal([]bus.RangeClass{
				bus.Min0, bus.Min1, bus.Mid, bus.Max0, bus.Max1,
			}))
		})
	})
})
