package regmodel_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rocklab/rocktb/regmodel"
)

var _ = Describe("MapFile", func() {
	Describe("Expand", func() {
		It("should expand array groups into indexed registers", func() {
			mf := &regmodel.MapFile{Regs: map[string]regmodel.MapEntry{
				"BIAS": {Addr: 0x10, BitWidth: 10, Count: 4},
			}}

			model, err := mf.Expand()
			Expect(err).NotTo(HaveOccurred())
			Expect(model.Names()).To(Equal(
				[]string{"BIAS_0", "BIAS_1", "BIAS_2", "BIAS_3"}))

			e, ok := model.Lookup("BIAS_3")
			Expect(ok).To(BeTrue())
			Expect(e.Addr).To(Equal(uint8(0x13)))
			Expect(e.BitWidth).To(Equal(uint8(10)))
		})

		It("should apply a width pattern cyclically across a group", func() {
			mf := &regmodel.MapFile{Regs: map[string]regmodel.MapEntry{
				"MBIST": {Addr: 0x20, Count: 6, BitWidths: []uint8{12, 9, 9}},
			}}

			model, err := mf.Expand()
			Expect(err).NotTo(HaveOccurred())

			widths := make([]uint8, 0, 6)
			for _, name := range model.Names() {
				e, _ := model.Lookup(name)
				widths = append(widths, e.BitWidth)
			}
			Expect(widths).To(Equal([]uint8{12, 9, 9, 12, 9, 9}))
		})

		It("should reject a count that does not fit the width pattern", func() {
			mf := &regmodel.MapFile{Regs: map[string]regmodel.MapEntry{
				"MBIST": {Addr: 0x20, Count: 5, BitWidths: []uint8{12, 9, 9}},
			}}
			_, err := mf.Expand()
			Expect(err).To(HaveOccurred())
		})

		It("should reject an unknown access mode", func() {
			mf := &regmodel.MapFile{Regs: map[string]regmodel.MapEntry{
				"X": {Addr: 0, BitWidth: 8, Access: "wo"},
			}}
			_, err := mf.Expand()
			Expect(err).To(HaveOccurred())
		})

		It("should order registers by address", func() {
			mf := &regmodel.MapFile{Regs: map[string]regmodel.MapEntry{
				"B": {Addr: 0x02, BitWidth: 8},
				"A": {Addr: 0x01, BitWidth: 8},
				"C": {Addr: 0x03, BitWidth: 8},
			}}
			model, err := mf.Expand()
			Expect(err).NotTo(HaveOccurred())
			Expect(model.Names()).To(Equal([]string{"A", "B", "C"}))
		})
	})

	Describe("DefaultMap", func() {
		It("should expand without error", func() {
			model := regmodel.DefaultModel()
			Expect(len(model.Names())).To(Equal(18))
		})

		It("should hard-wire the chip identification register", func() {
			model := regmodel.DefaultModel()
			e, ok := model.Lookup("CHIP_ID")
			Expect(ok).To(BeTrue())
			Expect(e.Access).To(Equal(regmodel.ReadOnly))

			v, known := e.ResetValue()
			Expect(known).To(BeTrue())
			Expect(v).To(Equal(uint16(regmodel.ChipID<<4 | regmodel.ChipAddr)))
		})

		It("should split the MBIST result group into 12/9/9 widths", func() {
			model := regmodel.DefaultModel()
			for i, want := range []uint8{12, 9, 9, 12, 9, 9} {
				e, ok := model.Lookup(
					[]string{"MBIST_RES_0", "MBIST_RES_1", "MBIST_RES_2",
						"MBIST_RES_3", "MBIST_RES_4", "MBIST_RES_5"}[i])
				Expect(ok).To(BeTrue())
				Expect(e.BitWidth).To(Equal(want))
			}
		})
	})

	Describe("LoadMap", func() {
		It("should parse a JSON map from disk", func() {
			path := filepath.Join(GinkgoT().TempDir(), "regs.json")
			content := `{
				"regs": {
					"CTRL": {"addr": 1, "bit_width": 8},
					"DATA": {"addr": 16, "bit_width": 12, "count": 2,
						"access": "ro", "reset": 7, "has_reset": true}
				}
			}`
			Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())

			model, err := regmodel.LoadMap(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(model.Names()).To(Equal([]string{"CTRL", "DATA_0", "DATA_1"}))

			e, _ := model.Lookup("DATA_1")
			Expect(e.Access).To(Equal(regmodel.ReadOnly))
			v, known := e.ResetValue()
			Expect(known).To(BeTrue())
			Expect(v).To(Equal(uint16(7)))
		})

		It("should fail on a missing file", func() {
			_, err := regmodel.LoadMap("does-not-exist.json")
			Expect(err).To(HaveOccurred())
		})
	})
})
