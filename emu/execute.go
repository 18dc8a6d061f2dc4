package emu

import (
	"github.com/sarchlab/r3ksim/bus"
	"github.com/sarchlab/r3ksim/insts"
)

// executeInstruction executes the current instruction. The instruction at
// PC has already been fetched into the delay slot.
func (c *CPU) executeInstruction() {
	s := &c.state
	inst := s.CurrentInstruction

	switch inst.Op {
	case insts.OpSLL:
		c.alu.SLL(inst.Rd, inst.Rt, inst.Shamt)
	case insts.OpSRL:
		c.alu.SRL(inst.Rd, inst.Rt, inst.Shamt)
	case insts.OpSRA:
		c.alu.SRA(inst.Rd, inst.Rt, inst.Shamt)
	case insts.OpSLLV:
		c.alu.SLLV(inst.Rd, inst.Rt, inst.Rs)
	case insts.OpSRLV:
		c.alu.SRLV(inst.Rd, inst.Rt, inst.Rs)
	case insts.OpSRAV:
		c.alu.SRAV(inst.Rd, inst.Rt, inst.Rs)

	case insts.OpADD:
		if !c.alu.ADD(inst.Rd, inst.Rs, inst.Rt) {
			c.RaiseException(ExceptionOv)
		}
	case insts.OpADDU:
		c.alu.ADDU(inst.Rd, inst.Rs, inst.Rt)
	case insts.OpSUB:
		if !c.alu.SUB(inst.Rd, inst.Rs, inst.Rt) {
			c.RaiseException(ExceptionOv)
		}
	case insts.OpSUBU:
		c.alu.SUBU(inst.Rd, inst.Rs, inst.Rt)
	case insts.OpAND:
		c.alu.AND(inst.Rd, inst.Rs, inst.Rt)
	case insts.OpOR:
		c.alu.OR(inst.Rd, inst.Rs, inst.Rt)
	case insts.OpXOR:
		c.alu.XOR(inst.Rd, inst.Rs, inst.Rt)
	case insts.OpNOR:
		c.alu.NOR(inst.Rd, inst.Rs, inst.Rt)
	case insts.OpSLT:
		c.alu.SLT(inst.Rd, inst.Rs, inst.Rt)
	case insts.OpSLTU:
		c.alu.SLTU(inst.Rd, inst.Rs, inst.Rt)

	case insts.OpMULT, insts.OpMULTU:
		c.executeMultiply(inst)
	case insts.OpDIV, insts.OpDIVU:
		c.executeDivide(inst)
	case insts.OpMFHI:
		c.stallUntilMulDivComplete()
		c.WriteReg(inst.Rd, s.Regs.HI)
	case insts.OpMFLO:
		c.stallUntilMulDivComplete()
		c.WriteReg(inst.Rd, s.Regs.LO)
	case insts.OpMTHI:
		s.Regs.HI = c.ReadReg(inst.Rs)
	case insts.OpMTLO:
		s.Regs.LO = c.ReadReg(inst.Rs)

	case insts.OpSYSCALL:
		c.RaiseException(ExceptionSyscall)
	case insts.OpBREAK:
		c.RaiseException(ExceptionBP)

	case insts.OpJ, insts.OpJAL, insts.OpJR, insts.OpJALR,
		insts.OpBEQ, insts.OpBNE, insts.OpBLEZ, insts.OpBGTZ,
		insts.OpBLTZ, insts.OpBGEZ, insts.OpBLTZAL, insts.OpBGEZAL:
		c.executeBranch(inst)

	case insts.OpADDI:
		if !c.alu.ADDI(inst.Rt, inst.Rs, inst.SImm) {
			c.RaiseException(ExceptionOv)
		}
	case insts.OpADDIU:
		c.alu.ADDIU(inst.Rt, inst.Rs, inst.SImm)
	case insts.OpSLTI:
		c.alu.SLTI(inst.Rt, inst.Rs, inst.SImm)
	case insts.OpSLTIU:
		c.alu.SLTIU(inst.Rt, inst.Rs, inst.SImm)
	case insts.OpANDI:
		c.alu.ANDI(inst.Rt, inst.Rs, inst.Imm)
	case insts.OpORI:
		c.alu.ORI(inst.Rt, inst.Rs, inst.Imm)
	case insts.OpXORI:
		c.alu.XORI(inst.Rt, inst.Rs, inst.Imm)
	case insts.OpLUI:
		c.alu.LUI(inst.Rt, inst.Imm)

	case insts.OpLB, insts.OpLBU, insts.OpLH, insts.OpLHU, insts.OpLW:
		c.lsu.Load(inst)
	case insts.OpLWL, insts.OpLWR:
		c.lsu.LoadUnaligned(inst)
	case insts.OpSB, insts.OpSH, insts.OpSW:
		c.lsu.Store(inst)
	case insts.OpSWL, insts.OpSWR:
		c.lsu.StoreUnaligned(inst)

	case insts.OpMFC, insts.OpCFC, insts.OpMTC, insts.OpCTC, insts.OpRFE, insts.OpCOPCommand:
		c.executeCop(inst)
	case insts.OpLWC:
		c.executeLWC(inst)
	case insts.OpSWC:
		c.executeSWC(inst)

	default:
		c.RaiseException(ExceptionRI)
	}
}

// executeBranch marks the next instruction as a delay slot and redirects
// NPC when the branch is taken. The link register is written whether or
// not a conditional branch is taken.
func (c *CPU) executeBranch(inst insts.Instruction) {
	s := &c.state
	s.Branch.Branch(false)

	taken := c.branchUnit.Condition(inst)
	target := c.branchUnit.Target(inst, s.CurrentInstructionPC)

	if link, ok := c.branchUnit.LinkRegister(inst); ok {
		c.WriteReg(link, s.NPC)
	}

	if !taken {
		return
	}

	if target&3 != 0 {
		s.Cop0.BadVaddr = target
		cause := MakeCauseValue(ExceptionAdEL, false, false, 0)
		c.raiseException(cause, target, c.ExceptionVector())
		return
	}

	s.NPC = target
	s.Branch.Take()
}

func (c *CPU) executeMultiply(inst insts.Instruction) {
	rs := c.ReadReg(inst.Rs)
	signed := inst.Op == insts.OpMULT
	if signed {
		c.alu.MULT(inst.Rs, inst.Rt)
	} else {
		c.alu.MULTU(inst.Rs, inst.Rt)
	}
	c.state.MulDivCompletionTick = c.state.PendingTicks + c.timing.MultTicks(rs, signed)
}

func (c *CPU) executeDivide(inst insts.Instruction) {
	if inst.Op == insts.OpDIV {
		c.alu.DIV(inst.Rs, inst.Rt)
	} else {
		c.alu.DIVU(inst.Rs, inst.Rt)
	}
	c.state.MulDivCompletionTick = c.state.PendingTicks + c.timing.DivTicks()
}

func (c *CPU) stallUntilMulDivComplete() {
	s := &c.state
	if s.PendingTicks < s.MulDivCompletionTick {
		c.AddPendingTicks(s.MulDivCompletionTick - s.PendingTicks)
	}
}

func (c *CPU) stallUntilGTEComplete() {
	s := &c.state
	if s.PendingTicks < s.GTECompletionTick {
		c.AddPendingTicks(s.GTECompletionTick - s.PendingTicks)
	}
}

func (c *CPU) executeCop(inst insts.Instruction) {
	switch inst.Cop {
	case 0:
		c.executeCop0(inst)
	case 2:
		c.executeCop2(inst)
	default:
		c.RaiseException(ExceptionCpU)
	}
}

func (c *CPU) executeCop0(inst insts.Instruction) {
	s := &c.state
	if s.InUserMode() && s.Cop0.SR&SRCU0 == 0 {
		c.RaiseException(ExceptionCpU)
		return
	}

	switch inst.Op {
	case insts.OpMFC:
		value, ok := c.ReadCop0Reg(inst.Rd)
		if !ok {
			c.RaiseException(ExceptionRI)
			return
		}
		c.WriteRegDelayed(inst.Rt, value)
	case insts.OpMTC:
		c.WriteCop0Reg(inst.Rd, c.ReadReg(inst.Rt))
	case insts.OpRFE:
		c.executeRFE()
	default:
		c.RaiseException(ExceptionRI)
	}
}

func (c *CPU) executeCop2(inst insts.Instruction) {
	s := &c.state
	if s.Cop0.SR&SRCU2 == 0 {
		c.RaiseException(ExceptionCpU)
		return
	}

	switch inst.Op {
	case insts.OpCOPCommand:
		c.stallUntilGTEComplete()
		ticks := c.gte.Execute(&s.GTERegs, inst.Word&0x1FFFFFF)
		s.GTECompletionTick = s.PendingTicks + ticks
	case insts.OpMFC:
		c.stallUntilGTEComplete()
		c.WriteRegDelayed(inst.Rt, c.gte.Read(&s.GTERegs, inst.Rd))
	case insts.OpCFC:
		c.stallUntilGTEComplete()
		c.WriteRegDelayed(inst.Rt, c.gte.Read(&s.GTERegs, inst.Rd+32))
	case insts.OpMTC:
		c.stallUntilGTEComplete()
		c.gte.Write(&s.GTERegs, inst.Rd, c.ReadReg(inst.Rt))
	case insts.OpCTC:
		c.stallUntilGTEComplete()
		c.gte.Write(&s.GTERegs, inst.Rd+32, c.ReadReg(inst.Rt))
	default:
		c.RaiseException(ExceptionRI)
	}
}

func (c *CPU) executeLWC(inst insts.Instruction) {
	s := &c.state
	if inst.Cop != 2 || s.Cop0.SR&SRCU2 == 0 {
		c.RaiseException(ExceptionCpU)
		return
	}

	value, ok := c.readMemory(c.lsu.EffectiveAddress(inst), bus.Word)
	if !ok {
		return
	}
	c.stallUntilGTEComplete()
	c.gte.Write(&s.GTERegs, inst.Rt, value)
}

func (c *CPU) executeSWC(inst insts.Instruction) {
	s := &c.state
	if inst.Cop != 2 || s.Cop0.SR&SRCU2 == 0 {
		c.RaiseException(ExceptionCpU)
		return
	}

	c.stallUntilGTEComplete()
	c.writeMemory(c.lsu.EffectiveAddress(inst), bus.Word, c.gte.Read(&s.GTERegs, inst.Rt))
}
