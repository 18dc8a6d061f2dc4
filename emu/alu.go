package emu

// ALU implements MIPS-I arithmetic, logic and multiply/divide operations.
// Register writes go through write so they supersede a pending load to the
// same register.
type ALU struct {
	regFile *RegFile
	write   func(reg uint8, value uint32)
}

// NewALU creates a new ALU connected to the given register file. write is
// called for every general-purpose register result.
func NewALU(regFile *RegFile, write func(reg uint8, value uint32)) *ALU {
	return &ALU{regFile: regFile, write: write}
}

// addOverflows reports signed overflow of a + b = result.
func addOverflows(a, b, result uint32) bool {
	return (^(a ^ b) & (a ^ result) & 0x80000000) != 0
}

// subOverflows reports signed overflow of a - b = result.
func subOverflows(a, b, result uint32) bool {
	return ((a ^ b) & (a ^ result) & 0x80000000) != 0
}

// ADD performs rd = rs + rt and returns false without writing on signed
// overflow.
func (a *ALU) ADD(rd, rs, rt uint8) bool {
	op1 := a.regFile.ReadReg(rs)
	op2 := a.regFile.ReadReg(rt)
	result := op1 + op2
	if addOverflows(op1, op2, result) {
		return false
	}
	a.write(rd, result)
	return true
}

// ADDU performs rd = rs + rt.
func (a *ALU) ADDU(rd, rs, rt uint8) {
	a.write(rd, a.regFile.ReadReg(rs)+a.regFile.ReadReg(rt))
}

// SUB performs rd = rs - rt and returns false without writing on signed
// overflow.
func (a *ALU) SUB(rd, rs, rt uint8) bool {
	op1 := a.regFile.ReadReg(rs)
	op2 := a.regFile.ReadReg(rt)
	result := op1 - op2
	if subOverflows(op1, op2, result) {
		return false
	}
	a.write(rd, result)
	return true
}

// SUBU performs rd = rs - rt.
func (a *ALU) SUBU(rd, rs, rt uint8) {
	a.write(rd, a.regFile.ReadReg(rs)-a.regFile.ReadReg(rt))
}

// AND performs rd = rs & rt.
func (a *ALU) AND(rd, rs, rt uint8) {
	a.write(rd, a.regFile.ReadReg(rs)&a.regFile.ReadReg(rt))
}

// OR performs rd = rs | rt.
func (a *ALU) OR(rd, rs, rt uint8) {
	a.write(rd, a.regFile.ReadReg(rs)|a.regFile.ReadReg(rt))
}

// XOR performs rd = rs ^ rt.
func (a *ALU) XOR(rd, rs, rt uint8) {
	a.write(rd, a.regFile.ReadReg(rs)^a.regFile.ReadReg(rt))
}

// NOR performs rd = ^(rs | rt).
func (a *ALU) NOR(rd, rs, rt uint8) {
	a.write(rd, ^(a.regFile.ReadReg(rs) | a.regFile.ReadReg(rt)))
}

// SLT performs a signed set-on-less-than.
func (a *ALU) SLT(rd, rs, rt uint8) {
	a.write(rd, boolToWord(int32(a.regFile.ReadReg(rs)) < int32(a.regFile.ReadReg(rt))))
}

// SLTU performs an unsigned set-on-less-than.
func (a *ALU) SLTU(rd, rs, rt uint8) {
	a.write(rd, boolToWord(a.regFile.ReadReg(rs) < a.regFile.ReadReg(rt)))
}

// ADDI performs rt = rs + simm and returns false without writing on signed
// overflow.
func (a *ALU) ADDI(rt, rs uint8, simm int32) bool {
	op1 := a.regFile.ReadReg(rs)
	op2 := uint32(simm)
	result := op1 + op2
	if addOverflows(op1, op2, result) {
		return false
	}
	a.write(rt, result)
	return true
}

// ADDIU performs rt = rs + simm.
func (a *ALU) ADDIU(rt, rs uint8, simm int32) {
	a.write(rt, a.regFile.ReadReg(rs)+uint32(simm))
}

// SLTI compares rs with the sign-extended immediate as signed values.
func (a *ALU) SLTI(rt, rs uint8, simm int32) {
	a.write(rt, boolToWord(int32(a.regFile.ReadReg(rs)) < simm))
}

// SLTIU compares rs with the sign-extended immediate as unsigned values.
func (a *ALU) SLTIU(rt, rs uint8, simm int32) {
	a.write(rt, boolToWord(a.regFile.ReadReg(rs) < uint32(simm)))
}

// ANDI performs rt = rs & imm with a zero-extended immediate.
func (a *ALU) ANDI(rt, rs uint8, imm uint32) {
	a.write(rt, a.regFile.ReadReg(rs)&imm)
}

// ORI performs rt = rs | imm with a zero-extended immediate.
func (a *ALU) ORI(rt, rs uint8, imm uint32) {
	a.write(rt, a.regFile.ReadReg(rs)|imm)
}

// XORI performs rt = rs ^ imm with a zero-extended immediate.
func (a *ALU) XORI(rt, rs uint8, imm uint32) {
	a.write(rt, a.regFile.ReadReg(rs)^imm)
}

// LUI loads imm into the upper half of rt.
func (a *ALU) LUI(rt uint8, imm uint32) {
	a.write(rt, imm<<16)
}

// SLL, SRL and SRA shift rt by a constant amount.
func (a *ALU) SLL(rd, rt, shamt uint8) {
	a.write(rd, a.regFile.ReadReg(rt)<<(shamt&31))
}

func (a *ALU) SRL(rd, rt, shamt uint8) {
	a.write(rd, a.regFile.ReadReg(rt)>>(shamt&31))
}

func (a *ALU) SRA(rd, rt, shamt uint8) {
	a.write(rd, uint32(int32(a.regFile.ReadReg(rt))>>(shamt&31)))
}

// SLLV, SRLV and SRAV shift rt by the low five bits of rs.
func (a *ALU) SLLV(rd, rt, rs uint8) {
	a.write(rd, a.regFile.ReadReg(rt)<<(a.regFile.ReadReg(rs)&31))
}

func (a *ALU) SRLV(rd, rt, rs uint8) {
	a.write(rd, a.regFile.ReadReg(rt)>>(a.regFile.ReadReg(rs)&31))
}

func (a *ALU) SRAV(rd, rt, rs uint8) {
	a.write(rd, uint32(int32(a.regFile.ReadReg(rt))>>(a.regFile.ReadReg(rs)&31)))
}

// MULT performs a signed 32x32 multiply into HI:LO.
func (a *ALU) MULT(rs, rt uint8) {
	result := uint64(int64(int32(a.regFile.ReadReg(rs))) * int64(int32(a.regFile.ReadReg(rt))))
	a.regFile.HI = uint32(result >> 32)
	a.regFile.LO = uint32(result)
}

// MULTU performs an unsigned 32x32 multiply into HI:LO.
func (a *ALU) MULTU(rs, rt uint8) {
	result := uint64(a.regFile.ReadReg(rs)) * uint64(a.regFile.ReadReg(rt))
	a.regFile.HI = uint32(result >> 32)
	a.regFile.LO = uint32(result)
}

// DIV performs a signed divide. Division by zero and the single
// unrepresentable quotient produce the hardware's fixed results instead of
// trapping.
func (a *ALU) DIV(rs, rt uint8) {
	num := int32(a.regFile.ReadReg(rs))
	denom := int32(a.regFile.ReadReg(rt))

	switch {
	case denom == 0:
		if num >= 0 {
			a.regFile.LO = 0xFFFFFFFF
		} else {
			a.regFile.LO = 1
		}
		a.regFile.HI = uint32(num)
	case uint32(num) == 0x80000000 && denom == -1:
		a.regFile.LO = 0x80000000
		a.regFile.HI = 0
	default:
		a.regFile.LO = uint32(num / denom)
		a.regFile.HI = uint32(num % denom)
	}
}

// DIVU performs an unsigned divide. Division by zero yields LO = 0xFFFFFFFF
// and HI = rs.
func (a *ALU) DIVU(rs, rt uint8) {
	num := a.regFile.ReadReg(rs)
	denom := a.regFile.ReadReg(rt)

	if denom == 0 {
		a.regFile.LO = 0xFFFFFFFF
		a.regFile.HI = num
		return
	}
	a.regFile.LO = num / denom
	a.regFile.HI = num % denom
}

func boolToWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
