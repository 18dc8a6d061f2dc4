package emu

import "github.com/sarchlab/r3ksim/insts"

// BranchUnit evaluates MIPS-I branch conditions and targets.
type BranchUnit struct {
	regFile *RegFile
}

// NewBranchUnit creates a new BranchUnit connected to the given register file.
func NewBranchUnit(regFile *RegFile) *BranchUnit {
	return &BranchUnit{regFile: regFile}
}

// Condition returns whether a conditional branch is taken. Unconditional
// jumps always return true.
func (b *BranchUnit) Condition(inst insts.Instruction) bool {
	rs := int32(b.regFile.ReadReg(inst.Rs))

	switch inst.Op {
	case insts.OpBEQ:
		return b.regFile.ReadReg(inst.Rs) == b.regFile.ReadReg(inst.Rt)
	case insts.OpBNE:
		return b.regFile.ReadReg(inst.Rs) != b.regFile.ReadReg(inst.Rt)
	case insts.OpBLEZ:
		return rs <= 0
	case insts.OpBGTZ:
		return rs > 0
	case insts.OpBLTZ, insts.OpBLTZAL:
		return rs < 0
	case insts.OpBGEZ, insts.OpBGEZAL:
		return rs >= 0
	case insts.OpJ, insts.OpJAL, insts.OpJR, insts.OpJALR:
		return true
	default:
		return false
	}
}

// Target returns the destination of a branch located at pc.
func (b *BranchUnit) Target(inst insts.Instruction, pc uint32) uint32 {
	switch inst.Op {
	case insts.OpJ, insts.OpJAL:
		return inst.JumpTarget(pc)
	case insts.OpJR, insts.OpJALR:
		return b.regFile.ReadReg(inst.Rs)
	default:
		return inst.BranchTarget(pc)
	}
}

// LinkRegister returns the register a branch writes its return address to,
// or false if it does not link.
func (b *BranchUnit) LinkRegister(inst insts.Instruction) (uint8, bool) {
	switch inst.Op {
	case insts.OpJAL, insts.OpBLTZAL, insts.OpBGEZAL:
		return RegRA, true
	case insts.OpJALR:
		return inst.Rd, true
	default:
		return 0, false
	}
}
