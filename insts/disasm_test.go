package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/r3ksim/insts"
)

var _ = Describe("Disassemble", func() {
	var decoder *insts.Decoder

	BeforeEach(func() {
		decoder = insts.NewDecoder()
	})

	disasm := func(word, pc uint32) string {
		return insts.Disassemble(decoder.Decode(word), pc)
	}

	It("should render nop", func() {
		Expect(disasm(insts.NOP, 0)).To(Equal("nop"))
	})

	It("should render negative immediates in hex", func() {
		Expect(disasm(0x27BDFFE8, 0)).To(Equal("addiu $sp, $sp, -0x18"))
	})

	It("should render loads with base and offset", func() {
		Expect(disasm(insts.LW(8, 29, 16), 0)).To(Equal("lw $t0, 0x10($sp)"))
	})

	It("should render absolute branch targets", func() {
		Expect(disasm(insts.BNE(4, 0, 3), 0x80010000)).To(Equal("bne $a0, $zero, 0x80010010"))
	})

	It("should render system control moves by name", func() {
		Expect(disasm(insts.MFC0(26, 13), 0)).To(Equal("mfc0 $k0, $CAUSE"))
	})

	It("should render GTE commands by mnemonic", func() {
		Expect(disasm(insts.COP2(0x0280030), 0)).To(Equal("rtpt"))
	})

	It("should render unknown words as data", func() {
		Expect(disasm(0xFC000000, 0)).To(Equal(".word 0xfc000000"))
	})
})
