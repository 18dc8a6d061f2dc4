package emu_test

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/r3ksim/emu"
	"github.com/sarchlab/r3ksim/insts"
)

var _ = Describe("Debugging", func() {
	Describe("Breakpoints", func() {
		It("should stop before the instruction and resume past it", func() {
			cpu, _ := newTestCPU(make([]uint32, 16))
			Expect(cpu.AddBreakpoint(programBase+8, false, true)).To(BeTrue())
			Expect(cpu.AddBreakpoint(programBase+8, false, true)).To(BeFalse())

			cpu.Execute()

			Expect(cpu.BreakpointHit()).To(BeTrue())
			Expect(cpu.State().PC).To(Equal(programBase + 8))
			Expect(cpu.InstructionCount()).To(Equal(uint64(2)))

			Expect(cpu.AddBreakpoint(programBase+20, false, true)).To(BeTrue())
			cpu.Execute()

			Expect(cpu.State().PC).To(Equal(programBase + 20))
			list := cpu.GetBreakpointList(false, false)
			Expect(list).To(HaveLen(2))
			Expect(list[0].HitCount).To(Equal(uint32(1)))
			Expect(list[0].Number).To(Equal(uint32(1)))
		})

		It("should remove a breakpoint whose condition fails", func() {
			cpu, _ := newTestCPU(make([]uint32, 16))
			hits := 0
			cpu.AddBreakpointWithCondition(programBase+4, emu.ConditionFunc(func(uint32) bool {
				hits++
				return false
			}))
			cpu.AddBreakpoint(programBase+12, true, true)

			cpu.Execute()

			Expect(hits).To(Equal(1))
			Expect(cpu.State().PC).To(Equal(programBase + 12))
			Expect(cpu.HasBreakpointAtAddress(programBase + 4)).To(BeFalse())
			Expect(cpu.HasBreakpointAtAddress(programBase + 12)).To(BeFalse())
			Expect(cpu.HasAnyBreakpoints()).To(BeFalse())
		})

		It("should retire the instruction when SingleStep lands on a breakpoint", func() {
			cpu, _ := newTestCPU([]uint32{insts.ADDIU(regT0, 0, 1), insts.NOP})
			cpu.AddBreakpoint(programBase, false, true)

			r := cpu.SingleStep()
			Expect(r.BreakpointHit).To(BeTrue())
			Expect(r.Retired).To(BeTrue())
			Expect(r.PC).To(Equal(programBase))
			Expect(cpu.ReadReg(regT0)).To(Equal(uint32(1)))
			Expect(cpu.GetBreakpointList(true, true)[0].HitCount).To(Equal(uint32(1)))

			next := cpu.SingleStep()
			Expect(next.BreakpointHit).To(BeFalse())
			Expect(next.PC).To(Equal(programBase + 4))
		})

		It("should step over a call and its delay slot", func() {
			cpu, _ := newTestCPU([]uint32{insts.JAL(programBase + 0x100), insts.NOP})

			Expect(cpu.AddStepOverBreakpoint()).To(BeTrue())

			list := cpu.GetBreakpointList(true, false)
			Expect(list).To(HaveLen(1))
			Expect(list[0].Address).To(Equal(programBase + 8))
			Expect(list[0].AutoClear).To(BeTrue())
			Expect(cpu.GetBreakpointList(false, false)).To(BeEmpty())
		})

		It("should refuse to step over a branch in a delay slot", func() {
			cpu, _ := newTestCPU([]uint32{insts.JAL(programBase + 0x100), insts.BEQ(0, 0, 4)})

			Expect(cpu.AddStepOverBreakpoint()).To(BeFalse())
		})

		It("should step out to the next return", func() {
			cpu, _ := newTestCPU([]uint32{insts.NOP, insts.NOP, insts.JR(regRA), insts.NOP})

			Expect(cpu.AddStepOutBreakpoint(emu.DefaultStepOutSearchLimit)).To(BeTrue())
			Expect(cpu.HasBreakpointAtAddress(programBase + 8)).To(BeTrue())

			cpu.ClearBreakpoints()
			Expect(cpu.AddStepOutBreakpoint(1)).To(BeFalse())
		})
	})

	Describe("Trace", func() {
		It("should log executed instructions only while enabled", func() {
			var log bytes.Buffer
			cpu, _ := newTestCPU([]uint32{
				insts.ADDIU(regT0, 0, 1),
				insts.ADDU(regT1, regT0, regT0),
			}, emu.WithTraceWriter(&log))

			cpu.StartTrace()
			Expect(cpu.IsTraceEnabled()).To(BeTrue())
			steps(cpu, 2)
			cpu.StopTrace()
			steps(cpu, 1)

			lines := strings.Split(strings.TrimSpace(log.String()), "\n")
			Expect(lines).To(HaveLen(2))
			Expect(lines[0]).To(ContainSubstring("addiu $t0, $zero, 0x1"))
			Expect(lines[1]).To(ContainSubstring("$t0=0x00000001"))
		})

		It("should append free-form lines to the execution log", func() {
			var log bytes.Buffer
			cpu, _ := newTestCPU([]uint32{insts.NOP}, emu.WithTraceWriter(&log))

			cpu.WriteToExecutionLog("frame %d", 3)
			cpu.WriteToExecutionLog("done\n")

			Expect(log.String()).To(Equal("frame 3\ndone\n"))
		})

		It("should print a disassembly window", func() {
			var out bytes.Buffer
			cpu, _ := newTestCPU([]uint32{insts.NOP, insts.NOP, insts.NOP}, emu.WithStdout(&out))
			steps(cpu, 2)

			cpu.DisassembleAndPrintRange(programBase+4, 1, 1)

			lines := strings.Split(strings.TrimSpace(out.String()), "\n")
			Expect(lines).To(HaveLen(3))
			Expect(lines[1]).To(HavePrefix("->"))
		})
	})

	Describe("Safe accessors", func() {
		var cpu *emu.CPU

		BeforeEach(func() {
			cpu, _ = newTestCPU(nil)
		})

		It("should read and write without side effects", func() {
			ticks := cpu.State().PendingTicks

			Expect(cpu.SafeWriteMemoryWord(dataBase, 0x64636261)).To(BeTrue())
			Expect(cpu.SafeWriteMemoryByte(dataBase+4, 0)).To(BeTrue())

			w, ok := cpu.SafeReadMemoryWord(dataBase)
			Expect(ok).To(BeTrue())
			Expect(w).To(Equal(uint32(0x64636261)))

			h, ok := cpu.SafeReadMemoryHalfWord(dataBase + 1)
			Expect(ok).To(BeTrue())
			Expect(h).To(Equal(uint16(0x6362)))

			s, ok := cpu.SafeReadMemoryCString(dataBase, 64)
			Expect(ok).To(BeTrue())
			Expect(s).To(Equal("abcd"))

			Expect(cpu.State().PendingTicks).To(Equal(ticks))
		})

		It("should fail on unmapped addresses", func() {
			_, ok := cpu.SafeReadMemoryWord(0x1F000000)
			Expect(ok).To(BeFalse())
			Expect(cpu.SafeWriteMemoryWord(0xFFFE0000, 1)).To(BeFalse())
		})
	})

	Describe("Debugger registers", func() {
		It("should expose live pointers into the state", func() {
			cpu, _ := newTestCPU(nil)

			regs := cpu.DebuggerRegisters()

			Expect(regs).To(HaveLen(emu.NumDebuggerRegisters))
			Expect(regs[0].Name).To(Equal("zero"))
			Expect(regs[34].Name).To(Equal("pc"))
			Expect(regs[40].Name).To(Equal("GTE_V0_XY"))
			Expect(regs[103].Name).To(Equal("GTE_FLAG"))

			*regs[8].Value = 0x1234
			Expect(cpu.ReadReg(regT0)).To(Equal(uint32(0x1234)))
		})
	})
})
