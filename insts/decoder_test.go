package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/r3ksim/insts"
)

var _ = Describe("Decoder", func() {
	var decoder *insts.Decoder

	BeforeEach(func() {
		decoder = insts.NewDecoder()
	})

	Describe("SPECIAL instructions", func() {
		It("should decode addu $v0, $a0, $a1", func() {
			inst := decoder.Decode(insts.ADDU(2, 4, 5))

			Expect(inst.Op).To(Equal(insts.OpADDU))
			Expect(inst.Format).To(Equal(insts.FormatR))
			Expect(inst.Rd).To(Equal(uint8(2)))
			Expect(inst.Rs).To(Equal(uint8(4)))
			Expect(inst.Rt).To(Equal(uint8(5)))
		})

		It("should decode sll with a shift amount", func() {
			inst := decoder.Decode(insts.SLL(8, 9, 4))

			Expect(inst.Op).To(Equal(insts.OpSLL))
			Expect(inst.Shamt).To(Equal(uint8(4)))
		})

		It("should decode jr $ra as a return", func() {
			inst := decoder.Decode(insts.JR(31))

			Expect(inst.Op).To(Equal(insts.OpJR))
			Expect(inst.IsBranch()).To(BeTrue())
			Expect(inst.IsReturn()).To(BeTrue())
			Expect(inst.IsCall()).To(BeFalse())
		})

		It("should decode jalr as a call", func() {
			inst := decoder.Decode(insts.JALR(31, 8))

			Expect(inst.Op).To(Equal(insts.OpJALR))
			Expect(inst.IsCall()).To(BeTrue())
		})

		It("should leave unassigned function codes unknown", func() {
			inst := decoder.Decode(0x00000001)

			Expect(inst.Op).To(Equal(insts.OpUnknown))
			Expect(inst.Format).To(Equal(insts.FormatUnknown))
		})
	})

	Describe("REGIMM instructions", func() {
		DescribeTable("rt decoding",
			func(rt uint8, expected insts.Op) {
				word := uint32(0x01)<<26 | uint32(rt)<<16
				Expect(decoder.Decode(word).Op).To(Equal(expected))
			},
			Entry("bltz", uint8(0x00), insts.OpBLTZ),
			Entry("bgez", uint8(0x01), insts.OpBGEZ),
			Entry("bltzal", uint8(0x10), insts.OpBLTZAL),
			Entry("bgezal", uint8(0x11), insts.OpBGEZAL),
			Entry("odd rt selects bgez", uint8(0x03), insts.OpBGEZ),
			Entry("even rt selects bltz", uint8(0x0E), insts.OpBLTZ),
			Entry("rt 0x13 links and tests gez", uint8(0x13), insts.OpBGEZAL),
			Entry("rt 0x12 links and tests ltz", uint8(0x12), insts.OpBLTZAL),
			Entry("rt 0x14 does not link", uint8(0x14), insts.OpBLTZ),
		)
	})

	Describe("immediate instructions", func() {
		It("should sign-extend addiu immediates", func() {
			inst := decoder.Decode(0x27BDFFE8)

			Expect(inst.Op).To(Equal(insts.OpADDIU))
			Expect(inst.Rs).To(Equal(uint8(29)))
			Expect(inst.Rt).To(Equal(uint8(29)))
			Expect(inst.SImm).To(Equal(int32(-24)))
			Expect(inst.Imm).To(Equal(uint32(0xFFE8)))
		})

		It("should zero-extend ori immediates", func() {
			inst := decoder.Decode(insts.ORI(8, 0, 0x8000))

			Expect(inst.Op).To(Equal(insts.OpORI))
			Expect(inst.Imm).To(Equal(uint32(0x8000)))
		})

		It("should compute branch targets relative to the delay slot", func() {
			inst := decoder.Decode(insts.BEQ(1, 2, -1))

			Expect(inst.Op).To(Equal(insts.OpBEQ))
			Expect(inst.BranchTarget(0x80010000)).To(Equal(uint32(0x80010000)))
		})

		It("should compute jump targets within the current 256 MiB region", func() {
			inst := decoder.Decode(insts.JAL(0x00012340))

			Expect(inst.Op).To(Equal(insts.OpJAL))
			Expect(inst.Format).To(Equal(insts.FormatJ))
			Expect(inst.JumpTarget(0x80010000)).To(Equal(uint32(0x80012340)))
		})
	})

	Describe("loads and stores", func() {
		It("should classify lw as a load", func() {
			inst := decoder.Decode(insts.LW(8, 29, 16))

			Expect(inst.Op).To(Equal(insts.OpLW))
			Expect(inst.IsLoad()).To(BeTrue())
			Expect(inst.IsStore()).To(BeFalse())
		})

		It("should classify swr as a store", func() {
			inst := decoder.Decode(insts.SWR(8, 29, 3))

			Expect(inst.Op).To(Equal(insts.OpSWR))
			Expect(inst.IsStore()).To(BeTrue())
		})

		It("should record the coprocessor of lwc2", func() {
			inst := decoder.Decode(insts.LWC2(0, 4, 0))

			Expect(inst.Op).To(Equal(insts.OpLWC))
			Expect(inst.Cop).To(Equal(uint8(2)))
		})
	})

	Describe("coprocessor instructions", func() {
		It("should decode mtc0", func() {
			inst := decoder.Decode(insts.MTC0(8, 12))

			Expect(inst.Op).To(Equal(insts.OpMTC))
			Expect(inst.Cop).To(Equal(uint8(0)))
			Expect(inst.Rd).To(Equal(uint8(12)))
		})

		It("should decode rfe", func() {
			Expect(decoder.Decode(insts.RFE()).Op).To(Equal(insts.OpRFE))
		})

		It("should decode GTE commands", func() {
			inst := decoder.Decode(insts.COP2(0x0180001))

			Expect(inst.IsGTECommand()).To(BeTrue())
			Expect(inst.GTEFunction()).To(Equal(uint8(0x01)))
		})

		It("should decode COP1 moves with their coprocessor number", func() {
			inst := decoder.Decode(0x44000000)

			Expect(inst.Op).To(Equal(insts.OpMFC))
			Expect(inst.Cop).To(Equal(uint8(1)))
		})
	})
})
