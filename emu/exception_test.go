package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/r3ksim/emu"
	"github.com/sarchlab/r3ksim/insts"
)

var _ = Describe("Exceptions", func() {
	It("should raise Ov without writing the destination", func() {
		cpu, _ := newTestCPU([]uint32{insts.ADDI(regT1, regT0, 1)})
		cpu.WriteReg(regT0, 0x7FFFFFFF)
		cpu.WriteReg(regT1, 99)

		result := cpu.SingleStep()

		Expect(result.Code).To(Equal(emu.ExceptionOv))
		Expect(cpu.ReadReg(regT1)).To(Equal(uint32(99)))
		Expect(cpu.State().Cop0.EPC).To(Equal(programBase))
		Expect(cpu.State().PC).To(Equal(uint32(0xBFC00180)))
	})

	It("should use the RAM vector when BEV is clear", func() {
		cpu, _ := newTestCPU([]uint32{insts.SYSCALL()})
		cpu.State().Cop0.SR &^= emu.SRBEV

		cpu.SingleStep()

		Expect(excCode(cpu)).To(Equal(emu.ExceptionSyscall))
		Expect(cpu.State().PC).To(Equal(uint32(0x80000080)))
	})

	It("should push the mode stack and let RFE pop it", func() {
		cpu, _ := newTestCPU([]uint32{insts.BREAK()})
		s := cpu.State()
		s.Cop0.SR = s.Cop0.SR&^0x3F | emu.SRIEc | emu.SRKUc | emu.SRCU0

		cpu.SingleStep()

		Expect(excCode(cpu)).To(Equal(emu.ExceptionBP))
		Expect(s.Cop0.SR & 0x3F).To(Equal(uint32(0x0C)))

		cpu2, _ := newTestCPU([]uint32{insts.RFE()})
		s2 := cpu2.State()
		s2.Cop0.SR = s2.Cop0.SR&^0x3F | 0x0C

		cpu2.SingleStep()

		Expect(s2.Cop0.SR & 0x3F).To(Equal(uint32(0x03)))
	})

	It("should point EPC at the branch for a delay slot exception", func() {
		cpu, _ := newTestCPU([]uint32{insts.BEQ(0, 0, 3), insts.SYSCALL()})

		steps(cpu, 2)

		s := cpu.State()
		Expect(excCode(cpu)).To(Equal(emu.ExceptionSyscall))
		Expect(s.Cop0.EPC).To(Equal(programBase))
		Expect(s.Cop0.CAUSE & (1 << 31)).NotTo(BeZero())
		Expect(s.Cop0.CAUSE & (1 << 30)).NotTo(BeZero())
		Expect(s.Cop0.TAR).To(Equal(programBase + 16))
	})

	It("should raise RI for unknown encodings and unimplemented cop0 registers", func() {
		cpu, _ := newTestCPU([]uint32{0xFC000000})
		cpu.SingleStep()
		Expect(excCode(cpu)).To(Equal(emu.ExceptionRI))

		cpu2, _ := newTestCPU([]uint32{insts.MFC0(regT0, 0)})
		cpu2.SingleStep()
		Expect(excCode(cpu2)).To(Equal(emu.ExceptionRI))
	})

	It("should raise CpU for cop0 in user mode and cop2 while disabled", func() {
		cpu, _ := newTestCPU([]uint32{insts.MFC0(regT0, 12)})
		cpu.State().Cop0.SR |= emu.SRKUc
		cpu.SingleStep()
		Expect(excCode(cpu)).To(Equal(emu.ExceptionCpU))

		cpu2, _ := newTestCPU([]uint32{insts.MFC2(regT0, 0)})
		cpu2.SingleStep()
		Expect(excCode(cpu2)).To(Equal(emu.ExceptionCpU))
		Expect((cpu2.State().Cop0.CAUSE >> 28) & 3).To(Equal(uint32(2)))
	})

	It("should move cop0 registers through their write masks", func() {
		cpu, _ := newTestCPU([]uint32{
			insts.MTC0(regT0, 13),
			insts.MFC0(regT1, 13),
			insts.NOP,
			insts.MTC0(regT0, 15),
		})
		cpu.WriteReg(regT0, 0xFFFFFFFF)

		steps(cpu, 4)

		Expect(cpu.ReadReg(regT1)).To(Equal(uint32(0x300)))
		Expect(cpu.State().Cop0.PRID).To(Equal(emu.PRIDValue))
	})

	It("should raise AdEL and DBE on bad data addresses", func() {
		cpu, _ := newTestCPU([]uint32{insts.LW(regT0, regA0, 2)})
		cpu.WriteReg(regA0, dataBase)
		cpu.SingleStep()
		Expect(excCode(cpu)).To(Equal(emu.ExceptionAdEL))
		Expect(cpu.State().Cop0.BadVaddr).To(Equal(dataBase + 2))

		cpu2, _ := newTestCPU([]uint32{insts.SW(regT0, regA0, 0)})
		cpu2.WriteReg(regA0, 0xFFFE0000)
		cpu2.SingleStep()
		Expect(excCode(cpu2)).To(Equal(emu.ExceptionDBE))
		Expect(cpu2.State().BusError).To(BeTrue())

		cpu3, _ := newTestCPU([]uint32{insts.LW(regT0, regA0, 0)})
		cpu3.WriteReg(regA0, dataBase)
		cpu3.State().Cop0.SR |= emu.SRKUc
		cpu3.SingleStep()
		Expect(excCode(cpu3)).To(Equal(emu.ExceptionAdEL))
	})

	It("should raise IBE when the next fetch faults", func() {
		cpu, _ := newTestCPU([]uint32{insts.J(0x8F000000), insts.NOP})

		steps(cpu, 2)

		Expect(excCode(cpu)).To(Equal(emu.ExceptionIBE))
		Expect(cpu.State().Cop0.EPC).To(Equal(uint32(0x8F000000)))
	})

	Describe("Interrupts", func() {
		var cpu *emu.CPU

		enable := func(c *emu.CPU) {
			s := c.State()
			s.Cop0.SR |= emu.SRIEc | 1<<10
			c.SetExternalInterrupt(2)
		}

		It("should take a pending interrupt before the next instruction", func() {
			cpu, _ = newTestCPU([]uint32{insts.NOP, insts.NOP})
			enable(cpu)

			result := cpu.SingleStep()

			s := cpu.State()
			Expect(result.Code).To(Equal(emu.ExceptionINT))
			Expect(s.Cop0.EPC).To(Equal(programBase))
			Expect(s.CurrentInstructionPC).To(Equal(uint32(0xBFC00180)))
			Expect(s.Cop0.SR & 0x3F).To(Equal(uint32(0x04)))
		})

		It("should not take a masked interrupt", func() {
			cpu, _ = newTestCPU([]uint32{insts.NOP})
			cpu.SetExternalInterrupt(2)
			cpu.State().Cop0.SR |= emu.SRIEc

			result := cpu.SingleStep()

			Expect(result.Exception).To(BeFalse())
		})

		It("should hold the interrupt off across a GTE command", func() {
			cpu, _ = newTestCPU([]uint32{insts.COP2(0x0000001), insts.NOP})
			cpu.State().Cop0.SR |= emu.SRCU2
			enable(cpu)

			first := cpu.SingleStep()
			second := cpu.SingleStep()

			Expect(first.Exception).To(BeFalse())
			Expect(first.PC).To(Equal(programBase))
			Expect(second.Code).To(Equal(emu.ExceptionINT))
			Expect(cpu.State().Cop0.EPC).To(Equal(programBase + 4))
		})

		It("should map interrupt bit n onto CAUSE.Ip bit n", func() {
			cpu, _ = newTestCPU([]uint32{insts.NOP})

			cpu.SetExternalInterrupt(3)
			Expect(cpu.State().Cop0.CAUSE).To(Equal(uint32(1 << 11)))

			cpu.SetExternalInterrupt(0)
			Expect(cpu.State().Cop0.CAUSE).To(Equal(uint32(1<<11 | 1<<8)))

			cpu.ClearExternalInterrupt(3)
			cpu.ClearExternalInterrupt(0)
			Expect(cpu.State().Cop0.CAUSE).To(BeZero())
		})

		It("should take interrupt 3 when its mask bit is set", func() {
			cpu, _ = newTestCPU([]uint32{insts.NOP, insts.NOP})
			cpu.State().Cop0.SR |= emu.SRIEc | 1<<11
			cpu.SetExternalInterrupt(3)

			result := cpu.SingleStep()

			Expect(result.Code).To(Equal(emu.ExceptionINT))
			Expect(cpu.State().Cop0.EPC).To(Equal(programBase))
			Expect(cpu.State().CurrentInstructionPC).To(Equal(uint32(0xBFC00180)))
		})

		It("should not take interrupt 3 under the mask bit of another line", func() {
			cpu, _ = newTestCPU([]uint32{insts.NOP})
			cpu.State().Cop0.SR |= emu.SRIEc | 1<<12
			cpu.SetExternalInterrupt(3)

			result := cpu.SingleStep()

			Expect(result.Exception).To(BeFalse())
		})
	})
})
