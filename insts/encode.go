package insts

// Encoding helpers used by the benchmark programs and by tests to build
// machine code without an external assembler.

// EncodeR encodes a SPECIAL (R-format) instruction.
func EncodeR(funct, rs, rt, rd, shamt uint8) uint32 {
	return uint32(rs&0x1F)<<21 | uint32(rt&0x1F)<<16 | uint32(rd&0x1F)<<11 |
		uint32(shamt&0x1F)<<6 | uint32(funct&0x3F)
}

// EncodeI encodes an I-format instruction with primary opcode op.
func EncodeI(op, rs, rt uint8, imm uint16) uint32 {
	return uint32(op&0x3F)<<26 | uint32(rs&0x1F)<<21 | uint32(rt&0x1F)<<16 | uint32(imm)
}

// EncodeJ encodes a J-format instruction jumping to target.
func EncodeJ(op uint8, target uint32) uint32 {
	return uint32(op&0x3F)<<26 | (target>>2)&0x03FFFFFF
}

// NOP is the canonical no-op (sll $zero, $zero, 0).
const NOP uint32 = 0

// ADDIU returns "addiu rt, rs, imm".
func ADDIU(rt, rs uint8, imm int16) uint32 { return EncodeI(opcodeADDIU, rs, rt, uint16(imm)) }

// ADDI returns "addi rt, rs, imm".
func ADDI(rt, rs uint8, imm int16) uint32 { return EncodeI(opcodeADDI, rs, rt, uint16(imm)) }

// ORI returns "ori rt, rs, imm".
func ORI(rt, rs uint8, imm uint16) uint32 { return EncodeI(opcodeORI, rs, rt, imm) }

// ANDI returns "andi rt, rs, imm".
func ANDI(rt, rs uint8, imm uint16) uint32 { return EncodeI(opcodeANDI, rs, rt, imm) }

// LUI returns "lui rt, imm".
func LUI(rt uint8, imm uint16) uint32 { return EncodeI(opcodeLUI, 0, rt, imm) }

// SLTI returns "slti rt, rs, imm".
func SLTI(rt, rs uint8, imm int16) uint32 { return EncodeI(opcodeSLTI, rs, rt, uint16(imm)) }

// ADDU returns "addu rd, rs, rt".
func ADDU(rd, rs, rt uint8) uint32 { return EncodeR(0x21, rs, rt, rd, 0) }

// ADD returns "add rd, rs, rt".
func ADD(rd, rs, rt uint8) uint32 { return EncodeR(0x20, rs, rt, rd, 0) }

// SUBU returns "subu rd, rs, rt".
func SUBU(rd, rs, rt uint8) uint32 { return EncodeR(0x23, rs, rt, rd, 0) }

// OR returns "or rd, rs, rt".
func OR(rd, rs, rt uint8) uint32 { return EncodeR(0x25, rs, rt, rd, 0) }

// SLL returns "sll rd, rt, shamt".
func SLL(rd, rt, shamt uint8) uint32 { return EncodeR(0x00, 0, rt, rd, shamt) }

// MULT returns "mult rs, rt".
func MULT(rs, rt uint8) uint32 { return EncodeR(0x18, rs, rt, 0, 0) }

// DIV returns "div rs, rt".
func DIV(rs, rt uint8) uint32 { return EncodeR(0x1A, rs, rt, 0, 0) }

// MFLO returns "mflo rd".
func MFLO(rd uint8) uint32 { return EncodeR(0x12, 0, 0, rd, 0) }

// MFHI returns "mfhi rd".
func MFHI(rd uint8) uint32 { return EncodeR(0x10, 0, 0, rd, 0) }

// JR returns "jr rs".
func JR(rs uint8) uint32 { return EncodeR(0x08, rs, 0, 0, 0) }

// JALR returns "jalr rd, rs".
func JALR(rd, rs uint8) uint32 { return EncodeR(0x09, rs, 0, rd, 0) }

// SYSCALL returns "syscall".
func SYSCALL() uint32 { return EncodeR(0x0C, 0, 0, 0, 0) }

// BREAK returns "break".
func BREAK() uint32 { return EncodeR(0x0D, 0, 0, 0, 0) }

// J returns "j target".
func J(target uint32) uint32 { return EncodeJ(opcodeJ, target) }

// JAL returns "jal target".
func JAL(target uint32) uint32 { return EncodeJ(opcodeJAL, target) }

// BEQ returns "beq rs, rt, offset" where offset counts instructions from the
// delay slot.
func BEQ(rs, rt uint8, offset int16) uint32 { return EncodeI(opcodeBEQ, rs, rt, uint16(offset)) }

// BNE returns "bne rs, rt, offset".
func BNE(rs, rt uint8, offset int16) uint32 { return EncodeI(opcodeBNE, rs, rt, uint16(offset)) }

// BGEZAL returns "bgezal rs, offset".
func BGEZAL(rs uint8, offset int16) uint32 { return EncodeI(opcodeRegImm, rs, 0x11, uint16(offset)) }

// LW returns "lw rt, offset(base)".
func LW(rt, base uint8, offset int16) uint32 { return EncodeI(opcodeLW, base, rt, uint16(offset)) }

// LB returns "lb rt, offset(base)".
func LB(rt, base uint8, offset int16) uint32 { return EncodeI(opcodeLB, base, rt, uint16(offset)) }

// LBU returns "lbu rt, offset(base)".
func LBU(rt, base uint8, offset int16) uint32 { return EncodeI(opcodeLBU, base, rt, uint16(offset)) }

// LH returns "lh rt, offset(base)".
func LH(rt, base uint8, offset int16) uint32 { return EncodeI(opcodeLH, base, rt, uint16(offset)) }

// LWL returns "lwl rt, offset(base)".
func LWL(rt, base uint8, offset int16) uint32 { return EncodeI(opcodeLWL, base, rt, uint16(offset)) }

// LWR returns "lwr rt, offset(base)".
func LWR(rt, base uint8, offset int16) uint32 { return EncodeI(opcodeLWR, base, rt, uint16(offset)) }

// SW returns "sw rt, offset(base)".
func SW(rt, base uint8, offset int16) uint32 { return EncodeI(opcodeSW, base, rt, uint16(offset)) }

// SH returns "sh rt, offset(base)".
func SH(rt, base uint8, offset int16) uint32 { return EncodeI(opcodeSH, base, rt, uint16(offset)) }

// SB returns "sb rt, offset(base)".
func SB(rt, base uint8, offset int16) uint32 { return EncodeI(opcodeSB, base, rt, uint16(offset)) }

// SWL returns "swl rt, offset(base)".
func SWL(rt, base uint8, offset int16) uint32 { return EncodeI(opcodeSWL, base, rt, uint16(offset)) }

// SWR returns "swr rt, offset(base)".
func SWR(rt, base uint8, offset int16) uint32 { return EncodeI(opcodeSWR, base, rt, uint16(offset)) }

// MFC0 returns "mfc0 rt, rd".
func MFC0(rt, rd uint8) uint32 { return copMove(0, 0x00, rt, rd) }

// MTC0 returns "mtc0 rt, rd".
func MTC0(rt, rd uint8) uint32 { return copMove(0, 0x04, rt, rd) }

// MFC2 returns "mfc2 rt, rd".
func MFC2(rt, rd uint8) uint32 { return copMove(2, 0x00, rt, rd) }

// MTC2 returns "mtc2 rt, rd".
func MTC2(rt, rd uint8) uint32 { return copMove(2, 0x04, rt, rd) }

// CFC2 returns "cfc2 rt, rd".
func CFC2(rt, rd uint8) uint32 { return copMove(2, 0x02, rt, rd) }

// CTC2 returns "ctc2 rt, rd".
func CTC2(rt, rd uint8) uint32 { return copMove(2, 0x06, rt, rd) }

// RFE returns "rfe".
func RFE() uint32 { return uint32(opcodeCOP0)<<26 | 1<<25 | 0x10 }

// COP2 returns a GTE command word with the given 25-bit command field.
func COP2(command uint32) uint32 { return uint32(opcodeCOP0+2)<<26 | 1<<25 | command&0x1FFFFFF }

// LWC2 returns "lwc2 rt, offset(base)".
func LWC2(rt, base uint8, offset int16) uint32 {
	return EncodeI(opcodeLWC0+2, base, rt, uint16(offset))
}

// SWC2 returns "swc2 rt, offset(base)".
func SWC2(rt, base uint8, offset int16) uint32 {
	return EncodeI(opcodeSWC0+2, base, rt, uint16(offset))
}

func copMove(cop, rs, rt, rd uint8) uint32 {
	return uint32(opcodeCOP0+cop)<<26 | uint32(rs)<<21 | uint32(rt&0x1F)<<16 | uint32(rd&0x1F)<<11
}
