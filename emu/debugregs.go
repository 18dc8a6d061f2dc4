package emu

import "github.com/sarchlab/r3ksim/insts"

// DebuggerRegister names one register exposed to debuggers. Value points
// into the core state and is live.
type DebuggerRegister struct {
	Name  string
	Value *uint32
}

// NumDebuggerRegisters is the length of the debugger register list.
const NumDebuggerRegisters = 104

// DebuggerRegisters returns the 32 general purpose registers, HI, LO, PC,
// the SR, CAUSE, EPC, BadVaddr and DCIC system registers, and the 64 GTE
// registers.
func (c *CPU) DebuggerRegisters() []DebuggerRegister {
	s := &c.state
	regs := make([]DebuggerRegister, 0, NumDebuggerRegisters)

	for i := range s.Regs.R {
		regs = append(regs, DebuggerRegister{insts.RegisterName(uint8(i)), &s.Regs.R[i]})
	}

	regs = append(regs,
		DebuggerRegister{"hi", &s.Regs.HI},
		DebuggerRegister{"lo", &s.Regs.LO},
		DebuggerRegister{"pc", &s.PC},
		DebuggerRegister{"COP0_SR", &s.Cop0.SR},
		DebuggerRegister{"COP0_CAUSE", &s.Cop0.CAUSE},
		DebuggerRegister{"COP0_EPC", &s.Cop0.EPC},
		DebuggerRegister{"COP0_BadVAddr", &s.Cop0.BadVaddr},
		DebuggerRegister{"COP0_DCIC", &s.Cop0.DCIC},
	)

	for i, name := range insts.GTEDataRegisterNames {
		regs = append(regs, DebuggerRegister{"GTE_" + name, &s.GTERegs[i]})
	}
	for i, name := range insts.GTEControlRegisterNames {
		regs = append(regs, DebuggerRegister{"GTE_" + name, &s.GTERegs[32+i]})
	}

	return regs
}
