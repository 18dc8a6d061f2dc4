package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/r3ksim/bus"
	"github.com/sarchlab/r3ksim/emu"
	"github.com/sarchlab/r3ksim/insts"
)

var _ = Describe("CPU", func() {
	Describe("Reset", func() {
		It("should prefetch the reset vector in kernel mode", func() {
			cpu := emu.NewCPU(bus.NewMemory(), emu.WithLogger(quietLogger()))
			s := cpu.State()

			Expect(s.PC).To(Equal(emu.ResetVector))
			Expect(s.NPC).To(Equal(emu.ResetVector + 4))
			Expect(s.Cop0.SR & emu.SRBEV).NotTo(BeZero())
			Expect(s.InUserMode()).To(BeFalse())
			Expect(s.Cop0.PRID).To(Equal(emu.PRIDValue))
			Expect(s.PendingTicks).To(BeZero())
			Expect(s.LoadDelay.Empty()).To(BeTrue())
			Expect(cpu.LastFetch().Address).To(Equal(emu.ResetVector))
			Expect(cpu.LastFetch().Hit).To(BeFalse())
		})
	})

	Describe("ALU instructions", func() {
		It("should execute immediate and register arithmetic", func() {
			cpu, _ := newTestCPU([]uint32{
				insts.ADDIU(regT0, 0, 40),
				insts.ADDIU(regT1, 0, 2),
				insts.ADDU(regT2, regT0, regT1),
				insts.SLL(regT2, regT2, 4),
			})

			steps(cpu, 4)

			Expect(cpu.ReadReg(regT0)).To(Equal(uint32(40)))
			Expect(cpu.ReadReg(regT2)).To(Equal(uint32(42 << 4)))
			Expect(cpu.InstructionCount()).To(Equal(uint64(4)))
		})

		It("should ignore writes to $zero", func() {
			cpu, _ := newTestCPU([]uint32{insts.ADDIU(0, 0, 5)})

			steps(cpu, 1)

			Expect(cpu.ReadReg(0)).To(BeZero())
		})

		It("should charge the instruction and fetch ticks", func() {
			cpu, _ := newTestCPU([]uint32{insts.NOP})

			result := cpu.SingleStep()

			Expect(result.Retired).To(BeTrue())
			Expect(result.PC).To(Equal(programBase))
			Expect(result.Ticks).To(Equal(int32(1) + bus.DefaultRAMTicks))
		})
	})

	Describe("Load delay slot", func() {
		var cpu *emu.CPU

		BeforeEach(func() {
			var mem *bus.Memory
			cpu, mem = newTestCPU([]uint32{
				insts.LW(regT0, regA0, 0),
				insts.ADDU(regT1, regT0, 0),
				insts.ADDU(regT2, regT0, 0),
			})
			mem.Write32(dataBase&emu.PhysicalAddressMask, 0xDEADBEEF)
			cpu.WriteReg(regA0, dataBase)
			cpu.WriteReg(regT0, 5)
		})

		It("should hide the loaded value from the next instruction", func() {
			steps(cpu, 1)
			Expect(cpu.ReadReg(regT0)).To(Equal(uint32(5)))

			steps(cpu, 1)
			Expect(cpu.ReadReg(regT1)).To(Equal(uint32(5)))
			Expect(cpu.ReadReg(regT0)).To(Equal(uint32(0xDEADBEEF)))

			steps(cpu, 1)
			Expect(cpu.ReadReg(regT2)).To(Equal(uint32(0xDEADBEEF)))
		})

		It("should let a direct write in the delay slot win", func() {
			c2, mem := newTestCPU([]uint32{
				insts.LW(regT0, regA0, 0),
				insts.ADDIU(regT0, 0, 1),
				insts.NOP,
			})
			mem.Write32(dataBase&emu.PhysicalAddressMask, 0xDEADBEEF)
			c2.WriteReg(regA0, dataBase)

			steps(c2, 3)

			Expect(c2.ReadReg(regT0)).To(Equal(uint32(1)))
		})

		It("should merge LWR and LWL back to back", func() {
			c2, mem := newTestCPU([]uint32{
				insts.LWR(regT0, regA0, 1),
				insts.LWL(regT0, regA0, 4),
				insts.NOP,
			})
			phys := dataBase & emu.PhysicalAddressMask
			Expect(mem.LoadWords(phys, 0x44332211, 0x88776655)).To(Succeed())
			c2.WriteReg(regA0, dataBase)

			steps(c2, 3)

			Expect(c2.ReadReg(regT0)).To(Equal(uint32(0x55443322)))
		})
	})

	Describe("Stores", func() {
		It("should write bytes, halfwords and unaligned words", func() {
			cpu, mem := newTestCPU([]uint32{
				insts.SB(regT0, regA0, 0),
				insts.SH(regT0, regA0, 2),
				insts.SWL(regT1, regA0, 5),
				insts.SWR(regT1, regA0, 6),
			})
			cpu.WriteReg(regA0, dataBase)
			cpu.WriteReg(regT0, 0x1234ABCD)
			cpu.WriteReg(regT1, 0xAABBCCDD)

			steps(cpu, 4)

			phys := dataBase & emu.PhysicalAddressMask
			Expect(mem.Read32(phys)).To(Equal(uint32(0xABCD00CD)))
			Expect(mem.Read32(phys + 4)).To(Equal(uint32(0xCCDDAABB)))
		})
	})

	Describe("Branches", func() {
		It("should execute the delay slot of a taken branch", func() {
			cpu, _ := newTestCPU([]uint32{
				insts.BEQ(0, 0, 2),
				insts.ADDIU(regT0, 0, 1),
				insts.ADDIU(regT1, 0, 1),
				insts.ADDIU(regT2, 0, 1),
			})

			steps(cpu, 3)

			Expect(cpu.ReadReg(regT0)).To(Equal(uint32(1)))
			Expect(cpu.ReadReg(regT1)).To(BeZero())
			Expect(cpu.ReadReg(regT2)).To(Equal(uint32(1)))
		})

		It("should link past the delay slot", func() {
			cpu, _ := newTestCPU([]uint32{insts.JAL(programBase + 0x100), insts.NOP})

			steps(cpu, 2)

			Expect(cpu.ReadReg(regRA)).To(Equal(programBase + 8))
			Expect(cpu.State().PC).To(Equal(programBase + 0x100))
		})

		It("should link on a conditional call that is not taken", func() {
			cpu, _ := newTestCPU([]uint32{insts.BGEZAL(regT0, 8), insts.NOP, insts.NOP})
			cpu.WriteReg(regT0, 0xFFFFFFFF)

			steps(cpu, 3)

			Expect(cpu.ReadReg(regRA)).To(Equal(programBase + 8))
			Expect(cpu.State().CurrentInstructionPC).To(Equal(programBase + 8))
		})

		It("should raise AdEL on a misaligned target", func() {
			cpu, _ := newTestCPU([]uint32{insts.JR(regT0), insts.NOP})
			cpu.WriteReg(regT0, programBase+0x102)

			result := cpu.SingleStep()

			Expect(result.Exception).To(BeTrue())
			Expect(result.Code).To(Equal(emu.ExceptionAdEL))
			Expect(cpu.State().Cop0.BadVaddr).To(Equal(programBase + 0x102))
			Expect(cpu.State().Cop0.EPC).To(Equal(programBase + 0x102))
			Expect(cpu.State().PC).To(Equal(uint32(0xBFC00180)))
		})
	})

	Describe("Multiply and divide", func() {
		It("should compute products and quotients", func() {
			cpu, _ := newTestCPU([]uint32{
				insts.MULT(regT0, regT1),
				insts.MFHI(regT2),
				insts.DIV(regT0, regT1),
				insts.MFLO(regA0),
			})
			cpu.WriteReg(regT0, 0xFFFFFFF9) // -7
			cpu.WriteReg(regT1, 2)

			steps(cpu, 4)

			Expect(cpu.ReadReg(regT2)).To(Equal(uint32(0xFFFFFFFF)))
			Expect(cpu.ReadReg(regA0)).To(Equal(uint32(0xFFFFFFFD)))
			Expect(cpu.Regs().HI).To(Equal(uint32(0xFFFFFFFF)))
		})

		It("should stall MFLO until the divider finishes", func() {
			cpu, _ := newTestCPU([]uint32{
				insts.DIV(regT0, regT1),
				insts.MFLO(regT2),
			})
			cpu.WriteReg(regT0, 7)
			cpu.WriteReg(regT1, 0)

			first := cpu.SingleStep()
			second := cpu.SingleStep()

			Expect(first.Ticks).To(Equal(int32(7)))
			Expect(second.Ticks).To(Equal(int32(36)))
			Expect(cpu.ReadReg(regT2)).To(Equal(uint32(0xFFFFFFFF)))
			Expect(cpu.Regs().HI).To(Equal(uint32(7)))
		})
	})

	Describe("GTE transfers", func() {
		DescribeTable("should wait for a running GTE command",
			func(word uint32) {
				run := func(busy int32) emu.StepResult {
					cpu, _ := newTestCPU([]uint32{word, insts.NOP})
					cpu.WriteReg(regA0, dataBase)
					s := cpu.State()
					s.Cop0.SR |= emu.SRCU2
					s.GTECompletionTick = s.PendingTicks + busy
					return cpu.SingleStep()
				}

				idle := run(0)
				busy := run(40)

				Expect(idle.Ticks).To(BeNumerically("<", 40))
				Expect(busy.Ticks).To(BeNumerically(">=", 40))
			},
			Entry("MTC2", insts.MTC2(regT0, 0)),
			Entry("CTC2", insts.CTC2(regT0, 0)),
			Entry("LWC2", insts.LWC2(0, regA0, 0)),
			Entry("MFC2", insts.MFC2(regT0, 0)),
			Entry("SWC2", insts.SWC2(0, regA0, 0)),
		)
	})

	Describe("Pending ticks", func() {
		It("should add up the ticks of every step", func() {
			cpu, _ := newTestCPU([]uint32{
				insts.LW(regT0, regA0, 0),
				insts.MULT(regT0, regT1),
				insts.MFLO(regT2),
				insts.SW(regT2, regA0, 4),
				insts.ADDU(regT1, regT1, regT2),
				insts.NOP,
			})
			cpu.WriteReg(regA0, dataBase)
			cpu.WriteReg(regT1, 3)
			cpu.SetDowncount(1 << 20)
			start := cpu.State().PendingTicks

			var sum int32
			for i := 0; i < 6; i++ {
				sum += cpu.SingleStep().Ticks
			}

			Expect(sum).To(BeNumerically(">", 6))
			Expect(cpu.State().PendingTicks - start).To(Equal(sum))
		})

		It("should rebase completion ticks", func() {
			cpu, _ := newTestCPU(nil)
			s := cpu.State()
			s.PendingTicks = 10
			s.MulDivCompletionTick = 30
			s.GTECompletionTick = 4

			cpu.ResetPendingTicks()

			Expect(s.PendingTicks).To(BeZero())
			Expect(s.MulDivCompletionTick).To(Equal(int32(20)))
			Expect(s.GTECompletionTick).To(BeZero())
		})
	})

	Describe("Execute", func() {
		It("should hand elapsed ticks to the scheduler", func() {
			sched := &countingScheduler{budget: 50, stopAfter: 3}
			cpu, _ := newTestCPU(nil, emu.WithScheduler(sched))
			sched.cpu = cpu

			cpu.Execute()

			Expect(sched.calls).To(Equal(3))
			Expect(sched.elapsed[1]).To(BeNumerically(">=", 50))
			Expect(cpu.InstructionCount()).To(BeNumerically(">", 0))
		})
	})

	Describe("Profiler", func() {
		It("should receive one event per instruction", func() {
			prof := &recordingProfiler{}
			cpu, _ := newTestCPU([]uint32{
				insts.LW(regT0, regA0, 0),
				insts.SW(regT0, regA0, 4),
			}, emu.WithProfiler(prof))
			cpu.WriteReg(regA0, dataBase)

			steps(cpu, 2)

			Expect(prof.events).To(HaveLen(2))
			Expect(prof.events[0].PC).To(Equal(programBase))
			Expect(prof.events[0].DataReads).To(Equal(uint32(1)))
			Expect(prof.events[1].DataWrites).To(Equal(uint32(1)))
			Expect(prof.events[1].FetchPC).To(Equal(programBase + 8))
		})
	})
})

type countingScheduler struct {
	cpu       *emu.CPU
	budget    int32
	stopAfter int
	calls     int
	elapsed   []int32
}

func (s *countingScheduler) RunEvents(elapsed int32) int32 {
	s.calls++
	s.elapsed = append(s.elapsed, elapsed)
	if s.calls >= s.stopAfter {
		s.cpu.ExitExecution()
	}
	return s.budget
}

type recordingProfiler struct {
	events []emu.RetireEvent
}

func (p *recordingProfiler) Retire(ev emu.RetireEvent) {
	p.events = append(p.events, ev)
}
