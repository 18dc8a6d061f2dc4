package emu

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Exception is a CAUSE.ExcCode value.
type Exception uint8

// Exception codes.
const (
	ExceptionINT     Exception = 0x00 // Interrupt
	ExceptionMOD     Exception = 0x01 // TLB modification
	ExceptionTLBL    Exception = 0x02 // TLB load
	ExceptionTLBS    Exception = 0x03 // TLB store
	ExceptionAdEL    Exception = 0x04 // Address error, load or fetch
	ExceptionAdES    Exception = 0x05 // Address error, store
	ExceptionIBE     Exception = 0x06 // Bus error on instruction fetch
	ExceptionDBE     Exception = 0x07 // Bus error on data access
	ExceptionSyscall Exception = 0x08
	ExceptionBP      Exception = 0x09 // Breakpoint
	ExceptionRI      Exception = 0x0A // Reserved instruction
	ExceptionCpU     Exception = 0x0B // Coprocessor unusable
	ExceptionOv      Exception = 0x0C // Arithmetic overflow
)

var exceptionNames = map[Exception]string{
	ExceptionINT: "INT", ExceptionMOD: "MOD", ExceptionTLBL: "TLBL",
	ExceptionTLBS: "TLBS", ExceptionAdEL: "AdEL", ExceptionAdES: "AdES",
	ExceptionIBE: "IBE", ExceptionDBE: "DBE", ExceptionSyscall: "Syscall",
	ExceptionBP: "BP", ExceptionRI: "RI", ExceptionCpU: "CpU", ExceptionOv: "Ov",
}

func (e Exception) String() string {
	if name, ok := exceptionNames[e]; ok {
		return name
	}
	return fmt.Sprintf("Exception(%d)", uint8(e))
}

// MakeCauseValue builds the CAUSE bits an exception records.
func MakeCauseValue(code Exception, inDelaySlot, branchTaken bool, cop uint8) uint32 {
	v := uint32(code) << causeExcCodeShift & causeExcCodeMask
	v |= uint32(cop&0x3) << causeCEShift
	if inDelaySlot {
		v |= causeBD
	}
	if branchTaken {
		v |= causeBT
	}
	return v
}

// ExceptionVector returns the general exception vector selected by SR.BEV.
func (c *CPU) ExceptionVector() uint32 {
	if c.state.Cop0.SR&SRBEV != 0 {
		return 0xBFC00180
	}
	return 0x80000080
}

// RaiseException enters the exception handler for an exception caused by
// the current instruction.
func (c *CPU) RaiseException(code Exception) {
	s := &c.state
	cause := MakeCauseValue(code,
		s.CurrentInstructionInBranchDelaySlot,
		s.CurrentInstructionWasBranchTaken,
		uint8(s.CurrentInstruction.Word>>26))
	c.raiseException(cause, s.CurrentInstructionPC, c.ExceptionVector())
}

func (c *CPU) raiseAddressError(code Exception, addr uint32) {
	c.state.Cop0.BadVaddr = addr
	c.RaiseException(code)
}

// raiseException records cause and epc, pushes the mode stack and
// redirects fetch to vector.
func (c *CPU) raiseException(cause, epc, vector uint32) {
	s := &c.state
	cop0 := &s.Cop0

	cop0.EPC = epc
	cop0.CAUSE = cop0.CAUSE&^causeExceptionMask | cause&causeExceptionMask

	if cause&causeBD != 0 {
		// EPC names the branch; TAR keeps the address that was about to
		// be fetched.
		cop0.EPC -= 4
		cop0.TAR = s.PC
	}

	code := Exception((cause & causeExcCodeMask) >> causeExcCodeShift)
	if code != ExceptionINT && code != ExceptionSyscall && code != ExceptionBP {
		c.logger.WithFields(logrus.Fields{
			"code":     code.String(),
			"epc":      fmt.Sprintf("0x%08X", cop0.EPC),
			"badvaddr": fmt.Sprintf("0x%08X", cop0.BadVaddr),
			"bd":       cause&causeBD != 0,
		}).Debug("CPU exception")
	}

	mode := cop0.SR & srModeMask
	cop0.SR = cop0.SR&^srModeMask | (mode<<2)&srModeMask

	s.ExceptionRaised = true
	c.stepException = true
	c.stepCode = code
	s.NPC = vector
	c.FlushPipeline()
}

// SetExternalInterrupt sets pending bit n (0-7) of CAUSE.Ip. Bits 0 and 1
// are the software interrupts and 2-7 the hardware lines.
func (c *CPU) SetExternalInterrupt(n uint8) {
	c.state.Cop0.CAUSE |= 1 << (causeIpShift + uint32(n&7))
}

// ClearExternalInterrupt clears pending bit n (0-7) of CAUSE.Ip.
func (c *CPU) ClearExternalInterrupt(n uint8) {
	c.state.Cop0.CAUSE &^= 1 << (causeIpShift + uint32(n&7))
}

func (c *CPU) hasPendingInterrupt() bool {
	cop0 := &c.state.Cop0
	return cop0.SR&SRIEc != 0 && (cop0.CAUSE&cop0.SR&causeIpMask) != 0
}

// dispatchInterrupt takes a pending interrupt before the next instruction
// starts. A GTE command about to execute holds the interrupt off by one
// instruction.
func (c *CPU) dispatchInterrupt() {
	s := &c.state

	next := c.decoder.Decode(s.NextInstruction)
	if next.IsGTECommand() {
		return
	}

	cause := MakeCauseValue(ExceptionINT, s.Branch.NextIsDelaySlot, s.Branch.Taken,
		uint8(s.NextInstruction>>26))
	c.raiseException(cause, s.PC, c.ExceptionVector())
}

// FlushPipeline commits the visible load, drops any pending branch and
// prefetches the instruction at NPC.
func (c *CPU) FlushPipeline() {
	s := &c.state
	s.LoadDelay.Flush(&s.Regs.R)
	s.Branch.Clear()
	s.CurrentInstructionPC = s.PC
	c.prefetch()
}

func (c *CPU) executeRFE() {
	sr := &c.state.Cop0.SR
	mode := *sr & srModeMask
	*sr = *sr&^srModeMask | mode&0x30 | mode>>2
}

// ReadCop0Reg returns a system control register. Unimplemented registers
// return false.
func (c *CPU) ReadCop0Reg(reg uint8) (uint32, bool) {
	cop0 := &c.state.Cop0
	switch reg {
	case 3:
		return cop0.BPC, true
	case 5:
		return cop0.BDA, true
	case 6:
		return cop0.TAR, true
	case 7:
		return cop0.DCIC, true
	case 8:
		return cop0.BadVaddr, true
	case 9:
		return cop0.BDAM, true
	case 11:
		return cop0.BPCM, true
	case 12:
		return cop0.SR, true
	case 13:
		return cop0.CAUSE, true
	case 14:
		return cop0.EPC, true
	case 15:
		return cop0.PRID, true
	default:
		return 0, false
	}
}

// WriteCop0Reg writes a system control register through its write mask.
func (c *CPU) WriteCop0Reg(reg uint8, value uint32) {
	cop0 := &c.state.Cop0
	switch reg {
	case 3:
		cop0.BPC = value
	case 5:
		cop0.BDA = value
	case 7:
		cop0.DCIC = cop0.DCIC&^dcicWriteMask | value&dcicWriteMask
	case 9:
		cop0.BDAM = value
	case 11:
		cop0.BPCM = value
	case 12:
		old := cop0.SR
		cop0.SR = cop0.SR&^srWriteMask | value&srWriteMask
		if (old^cop0.SR)&SRIsC != 0 {
			c.logger.WithField("isolated", cop0.SR&SRIsC != 0).Debug("cache isolation changed")
			c.UpdateMemoryPointers()
		}
	case 13:
		cop0.CAUSE = cop0.CAUSE&^causeWriteMask | value&causeWriteMask
	case 6, 8, 14, 15:
		// Read-only.
	default:
		c.logger.WithFields(logrus.Fields{
			"reg":   reg,
			"value": fmt.Sprintf("0x%08X", value),
		}).Warn("write to unknown cop0 register")
	}
}
