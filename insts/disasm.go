package insts

import (
	"fmt"
	"strings"
)

var gprNames = [32]string{
	"zero", "at", "v0", "v1", "a0", "a1", "a2", "a3",
	"t0", "t1", "t2", "t3", "t4", "t5", "t6", "t7",
	"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7",
	"t8", "t9", "k0", "k1", "gp", "sp", "fp", "ra",
}

var cop0Names = [32]string{
	3: "BPC", 5: "BDA", 6: "TAR", 7: "DCIC", 8: "BadVaddr",
	9: "BDAM", 11: "BPCM", 12: "SR", 13: "CAUSE", 14: "EPC", 15: "PRID",
}

// GTEDataRegisterNames lists the 32 GTE data registers in index order.
var GTEDataRegisterNames = [32]string{
	"V0_XY", "V0_Z", "V1_XY", "V1_Z", "V2_XY", "V2_Z", "RGBC", "OTZ",
	"IR0", "IR1", "IR2", "IR3", "SXY0", "SXY1", "SXY2", "SXYP",
	"SZ0", "SZ1", "SZ2", "SZ3", "RGB0", "RGB1", "RGB2", "RES1",
	"MAC0", "MAC1", "MAC2", "MAC3", "IRGB", "ORGB", "LZCS", "LZCR",
}

// GTEControlRegisterNames lists the 32 GTE control registers in index order.
var GTEControlRegisterNames = [32]string{
	"RT_0", "RT_1", "RT_2", "RT_3", "RT_4", "TRX", "TRY", "TRZ",
	"LLM_0", "LLM_1", "LLM_2", "LLM_3", "LLM_4", "RBK", "GBK", "BBK",
	"LCM_0", "LCM_1", "LCM_2", "LCM_3", "LCM_4", "RFC", "GFC", "BFC",
	"OFX", "OFY", "H", "DQA", "DQB", "ZSF3", "ZSF4", "FLAG",
}

var gteCommandNames = map[uint8]string{
	0x01: "RTPS", 0x06: "NCLIP", 0x0C: "OP", 0x10: "DPCS",
	0x11: "INTPL", 0x12: "MVMVA", 0x13: "NCDS", 0x14: "CDP",
	0x16: "NCDT", 0x1B: "NCCS", 0x1C: "CC", 0x1E: "NCS",
	0x20: "NCT", 0x28: "SQR", 0x29: "DCPL", 0x2A: "DPCT",
	0x2D: "AVSZ3", 0x2E: "AVSZ4", 0x30: "RTPT", 0x3D: "GPF",
	0x3E: "GPL", 0x3F: "NCCT",
}

// RegisterName returns the conventional ABI name of a general purpose register.
func RegisterName(r uint8) string {
	return gprNames[r&0x1F]
}

// Cop0RegisterName returns the name of a system control register, or
// "cop0rN" for unnamed indices.
func Cop0RegisterName(r uint8) string {
	if name := cop0Names[r&0x1F]; name != "" {
		return name
	}
	return fmt.Sprintf("cop0r%d", r&0x1F)
}

// GTECommandName returns the mnemonic of a GTE command number, or "" if the
// number does not name a command.
func GTECommandName(function uint8) string {
	return gteCommandNames[function&0x3F]
}

// GTECommandNames returns every known GTE command mnemonic keyed by number.
func GTECommandNames() map[uint8]string {
	names := make(map[uint8]string, len(gteCommandNames))
	for k, v := range gteCommandNames {
		names[k] = v
	}
	return names
}

var opNames = map[Op]string{
	OpSLL: "sll", OpSRL: "srl", OpSRA: "sra", OpSLLV: "sllv", OpSRLV: "srlv",
	OpSRAV: "srav", OpJR: "jr", OpJALR: "jalr", OpSYSCALL: "syscall",
	OpBREAK: "break", OpMFHI: "mfhi", OpMTHI: "mthi", OpMFLO: "mflo",
	OpMTLO: "mtlo", OpMULT: "mult", OpMULTU: "multu", OpDIV: "div",
	OpDIVU: "divu", OpADD: "add", OpADDU: "addu", OpSUB: "sub", OpSUBU: "subu",
	OpAND: "and", OpOR: "or", OpXOR: "xor", OpNOR: "nor", OpSLT: "slt",
	OpSLTU: "sltu", OpBLTZ: "bltz", OpBGEZ: "bgez", OpBLTZAL: "bltzal",
	OpBGEZAL: "bgezal", OpJ: "j", OpJAL: "jal", OpBEQ: "beq", OpBNE: "bne",
	OpBLEZ: "blez", OpBGTZ: "bgtz", OpADDI: "addi", OpADDIU: "addiu",
	OpSLTI: "slti", OpSLTIU: "sltiu", OpANDI: "andi", OpORI: "ori",
	OpXORI: "xori", OpLUI: "lui", OpLB: "lb", OpLH: "lh", OpLWL: "lwl",
	OpLW: "lw", OpLBU: "lbu", OpLHU: "lhu", OpLWR: "lwr", OpSB: "sb",
	OpSH: "sh", OpSWL: "swl", OpSW: "sw", OpSWR: "swr", OpRFE: "rfe",
}

// String returns the lower-case mnemonic of the operation.
func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	switch op {
	case OpMFC:
		return "mfc"
	case OpCFC:
		return "cfc"
	case OpMTC:
		return "mtc"
	case OpCTC:
		return "ctc"
	case OpCOPCommand:
		return "cop"
	case OpLWC:
		return "lwc"
	case OpSWC:
		return "swc"
	}
	return "unknown"
}

func hex16(v int32) string {
	if v < 0 {
		return fmt.Sprintf("-0x%x", -v)
	}
	return fmt.Sprintf("0x%x", v)
}

// Disassemble renders inst, located at pc, in conventional assembler syntax.
func Disassemble(inst Instruction, pc uint32) string {
	rs, rt, rd := RegisterName(inst.Rs), RegisterName(inst.Rt), RegisterName(inst.Rd)
	op := inst.Op.String()

	switch inst.Op {
	case OpUnknown:
		return fmt.Sprintf(".word 0x%08x", inst.Word)
	case OpSLL, OpSRL, OpSRA:
		if inst.Word == 0 {
			return "nop"
		}
		return fmt.Sprintf("%s $%s, $%s, %d", op, rd, rt, inst.Shamt)
	case OpSLLV, OpSRLV, OpSRAV:
		return fmt.Sprintf("%s $%s, $%s, $%s", op, rd, rt, rs)
	case OpJR:
		return fmt.Sprintf("jr $%s", rs)
	case OpJALR:
		return fmt.Sprintf("jalr $%s, $%s", rd, rs)
	case OpSYSCALL, OpBREAK:
		return fmt.Sprintf("%s 0x%x", op, (inst.Word>>6)&0xFFFFF)
	case OpMFHI, OpMFLO:
		return fmt.Sprintf("%s $%s", op, rd)
	case OpMTHI, OpMTLO:
		return fmt.Sprintf("%s $%s", op, rs)
	case OpMULT, OpMULTU, OpDIV, OpDIVU:
		return fmt.Sprintf("%s $%s, $%s", op, rs, rt)
	case OpADD, OpADDU, OpSUB, OpSUBU, OpAND, OpOR, OpXOR, OpNOR, OpSLT, OpSLTU:
		return fmt.Sprintf("%s $%s, $%s, $%s", op, rd, rs, rt)
	case OpBLTZ, OpBGEZ, OpBLTZAL, OpBGEZAL, OpBLEZ, OpBGTZ:
		return fmt.Sprintf("%s $%s, 0x%08x", op, rs, inst.BranchTarget(pc))
	case OpBEQ, OpBNE:
		return fmt.Sprintf("%s $%s, $%s, 0x%08x", op, rs, rt, inst.BranchTarget(pc))
	case OpJ, OpJAL:
		return fmt.Sprintf("%s 0x%08x", op, inst.JumpTarget(pc))
	case OpADDI, OpADDIU, OpSLTI, OpSLTIU:
		return fmt.Sprintf("%s $%s, $%s, %s", op, rt, rs, hex16(inst.SImm))
	case OpANDI, OpORI, OpXORI:
		return fmt.Sprintf("%s $%s, $%s, 0x%x", op, rt, rs, inst.Imm)
	case OpLUI:
		return fmt.Sprintf("lui $%s, 0x%x", rt, inst.Imm)
	case OpLB, OpLH, OpLWL, OpLW, OpLBU, OpLHU, OpLWR, OpSB, OpSH, OpSWL, OpSW, OpSWR:
		return fmt.Sprintf("%s $%s, %s($%s)", op, rt, hex16(inst.SImm), rs)
	case OpLWC, OpSWC:
		return fmt.Sprintf("%s%d $%d, %s($%s)", op, inst.Cop, inst.Rt, hex16(inst.SImm), rs)
	case OpMFC, OpMTC:
		if inst.Cop == 0 {
			return fmt.Sprintf("%s0 $%s, $%s", op, rt, Cop0RegisterName(inst.Rd))
		}
		if inst.Cop == 2 {
			return fmt.Sprintf("%s2 $%s, $%s", op, rt, GTEDataRegisterNames[inst.Rd])
		}
		return fmt.Sprintf("%s%d $%s, $%d", op, inst.Cop, rt, inst.Rd)
	case OpCFC, OpCTC:
		if inst.Cop == 2 {
			return fmt.Sprintf("%s2 $%s, $%s", op, rt, GTEControlRegisterNames[inst.Rd])
		}
		return fmt.Sprintf("%s%d $%s, $%d", op, inst.Cop, rt, inst.Rd)
	case OpRFE:
		return "rfe"
	case OpCOPCommand:
		if inst.Cop == 2 {
			if name := GTECommandName(inst.GTEFunction()); name != "" {
				return strings.ToLower(name)
			}
		}
		return fmt.Sprintf("cop%d 0x%07x", inst.Cop, inst.Word&0x1FFFFFF)
	}

	return fmt.Sprintf(".word 0x%08x", inst.Word)
}
