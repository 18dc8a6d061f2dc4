// Package insts provides MIPS-I instruction definitions and decoding.
package insts

// Op represents a MIPS-I opcode.
type Op uint8

// MIPS-I opcodes.
const (
	OpUnknown Op = iota

	// SPECIAL
	OpSLL
	OpSRL
	OpSRA
	OpSLLV
	OpSRLV
	OpSRAV
	OpJR
	OpJALR
	OpSYSCALL
	OpBREAK
	OpMFHI
	OpMTHI
	OpMFLO
	OpMTLO
	OpMULT
	OpMULTU
	OpDIV
	OpDIVU
	OpADD
	OpADDU
	OpSUB
	OpSUBU
	OpAND
	OpOR
	OpXOR
	OpNOR
	OpSLT
	OpSLTU

	// REGIMM
	OpBLTZ
	OpBGEZ
	OpBLTZAL
	OpBGEZAL

	// Jumps, compare branches and immediate ALU
	OpJ
	OpJAL
	OpBEQ
	OpBNE
	OpBLEZ
	OpBGTZ
	OpADDI
	OpADDIU
	OpSLTI
	OpSLTIU
	OpANDI
	OpORI
	OpXORI
	OpLUI

	// Coprocessor
	OpMFC
	OpCFC
	OpMTC
	OpCTC
	OpRFE
	OpCOPCommand

	// Loads and stores
	OpLB
	OpLH
	OpLWL
	OpLW
	OpLBU
	OpLHU
	OpLWR
	OpSB
	OpSH
	OpSWL
	OpSW
	OpSWR
	OpLWC
	OpSWC
)

// Format represents an instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatUnknown Format = iota
	FormatR              // Register (SPECIAL)
	FormatI              // Immediate, REGIMM, loads and stores
	FormatJ              // Jump (26-bit target)
	FormatCop            // Coprocessor move or command
)

// Primary opcode field values (bits [31:26]).
const (
	opcodeSpecial = 0x00
	opcodeRegImm  = 0x01
	opcodeJ       = 0x02
	opcodeJAL     = 0x03
	opcodeBEQ     = 0x04
	opcodeBNE     = 0x05
	opcodeBLEZ    = 0x06
	opcodeBGTZ    = 0x07
	opcodeADDI    = 0x08
	opcodeADDIU   = 0x09
	opcodeSLTI    = 0x0A
	opcodeSLTIU   = 0x0B
	opcodeANDI    = 0x0C
	opcodeORI     = 0x0D
	opcodeXORI    = 0x0E
	opcodeLUI     = 0x0F
	opcodeCOP0    = 0x10
	opcodeCOP3    = 0x13
	opcodeLB      = 0x20
	opcodeLH      = 0x21
	opcodeLWL     = 0x22
	opcodeLW      = 0x23
	opcodeLBU     = 0x24
	opcodeLHU     = 0x25
	opcodeLWR     = 0x26
	opcodeSB      = 0x28
	opcodeSH      = 0x29
	opcodeSWL     = 0x2A
	opcodeSW      = 0x2B
	opcodeSWR     = 0x2E
	opcodeLWC0    = 0x30
	opcodeLWC3    = 0x33
	opcodeSWC0    = 0x38
	opcodeSWC3    = 0x3B
)

// RegRA is the link register written by JAL and the REGIMM link branches.
const RegRA = 31

// Instruction represents a decoded MIPS-I instruction.
type Instruction struct {
	Word   uint32 // Raw instruction word
	Op     Op     // Operation code
	Format Format // Encoding format

	Rs    uint8 // Source register (bits [25:21])
	Rt    uint8 // Target register (bits [20:16])
	Rd    uint8 // Destination register (bits [15:11])
	Shamt uint8 // Shift amount (bits [10:6])

	Imm    uint32 // Zero-extended 16-bit immediate
	SImm   int32  // Sign-extended 16-bit immediate
	Target uint32 // 26-bit jump target

	Cop uint8 // Coprocessor number for COPz, LWCz and SWCz
}

// Decoder decodes MIPS-I machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new MIPS-I instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit MIPS-I instruction word.
// The result is returned by value so the dispatcher can decode without
// allocating.
func (d *Decoder) Decode(word uint32) Instruction {
	inst := Instruction{
		Word:   word,
		Rs:     uint8((word >> 21) & 0x1F),
		Rt:     uint8((word >> 16) & 0x1F),
		Rd:     uint8((word >> 11) & 0x1F),
		Shamt:  uint8((word >> 6) & 0x1F),
		Imm:    word & 0xFFFF,
		SImm:   int32(int16(word & 0xFFFF)),
		Target: word & 0x03FFFFFF,
	}

	opcode := word >> 26
	switch {
	case opcode == opcodeSpecial:
		d.decodeSpecial(word, &inst)
	case opcode == opcodeRegImm:
		d.decodeRegImm(&inst)
	case opcode >= opcodeCOP0 && opcode <= opcodeCOP3:
		d.decodeCop(word, &inst)
	case opcode >= opcodeLWC0 && opcode <= opcodeLWC3:
		inst.Op = OpLWC
		inst.Format = FormatI
		inst.Cop = uint8(opcode - opcodeLWC0)
	case opcode >= opcodeSWC0 && opcode <= opcodeSWC3:
		inst.Op = OpSWC
		inst.Format = FormatI
		inst.Cop = uint8(opcode - opcodeSWC0)
	default:
		d.decodePrimary(opcode, &inst)
	}

	return inst
}

var specialOps = [64]Op{
	0x00: OpSLL, 0x02: OpSRL, 0x03: OpSRA,
	0x04: OpSLLV, 0x06: OpSRLV, 0x07: OpSRAV,
	0x08: OpJR, 0x09: OpJALR,
	0x0C: OpSYSCALL, 0x0D: OpBREAK,
	0x10: OpMFHI, 0x11: OpMTHI, 0x12: OpMFLO, 0x13: OpMTLO,
	0x18: OpMULT, 0x19: OpMULTU, 0x1A: OpDIV, 0x1B: OpDIVU,
	0x20: OpADD, 0x21: OpADDU, 0x22: OpSUB, 0x23: OpSUBU,
	0x24: OpAND, 0x25: OpOR, 0x26: OpXOR, 0x27: OpNOR,
	0x2A: OpSLT, 0x2B: OpSLTU,
}

func (d *Decoder) decodeSpecial(word uint32, inst *Instruction) {
	inst.Op = specialOps[word&0x3F]
	if inst.Op != OpUnknown {
		inst.Format = FormatR
	}
}

// decodeRegImm follows the console CPU rather than the architecture manual:
// bit 0 of rt selects BGEZ over BLTZ for every rt value, and the link forms
// are selected whenever rt[4:1] == 0b1000.
func (d *Decoder) decodeRegImm(inst *Instruction) {
	inst.Format = FormatI
	geZero := inst.Rt&0x01 != 0
	link := inst.Rt&0x1E == 0x10

	switch {
	case geZero && link:
		inst.Op = OpBGEZAL
	case geZero:
		inst.Op = OpBGEZ
	case link:
		inst.Op = OpBLTZAL
	default:
		inst.Op = OpBLTZ
	}
}

var primaryOps = [64]Op{
	opcodeJ: OpJ, opcodeJAL: OpJAL,
	opcodeBEQ: OpBEQ, opcodeBNE: OpBNE, opcodeBLEZ: OpBLEZ, opcodeBGTZ: OpBGTZ,
	opcodeADDI: OpADDI, opcodeADDIU: OpADDIU, opcodeSLTI: OpSLTI, opcodeSLTIU: OpSLTIU,
	opcodeANDI: OpANDI, opcodeORI: OpORI, opcodeXORI: OpXORI, opcodeLUI: OpLUI,
	opcodeLB: OpLB, opcodeLH: OpLH, opcodeLWL: OpLWL, opcodeLW: OpLW,
	opcodeLBU: OpLBU, opcodeLHU: OpLHU, opcodeLWR: OpLWR,
	opcodeSB: OpSB, opcodeSH: OpSH, opcodeSWL: OpSWL, opcodeSW: OpSW, opcodeSWR: OpSWR,
}

func (d *Decoder) decodePrimary(opcode uint32, inst *Instruction) {
	inst.Op = primaryOps[opcode]
	switch inst.Op {
	case OpUnknown:
		inst.Format = FormatUnknown
	case OpJ, OpJAL:
		inst.Format = FormatJ
	default:
		inst.Format = FormatI
	}
}

func (d *Decoder) decodeCop(word uint32, inst *Instruction) {
	inst.Format = FormatCop
	inst.Cop = uint8((word >> 26) & 0x3)

	// Bit 25 set marks a coprocessor command; the low 25 bits are passed
	// through to the coprocessor.
	if word&(1<<25) != 0 {
		if inst.Cop == 0 && word&0x3F == 0x10 {
			inst.Op = OpRFE
			return
		}
		inst.Op = OpCOPCommand
		return
	}

	switch inst.Rs {
	case 0x00:
		inst.Op = OpMFC
	case 0x02:
		inst.Op = OpCFC
	case 0x04:
		inst.Op = OpMTC
	case 0x06:
		inst.Op = OpCTC
	default:
		inst.Op = OpUnknown
		inst.Format = FormatUnknown
	}
}

// IsBranch returns true for every instruction that owns a branch delay slot.
func (i Instruction) IsBranch() bool {
	switch i.Op {
	case OpJ, OpJAL, OpJR, OpJALR,
		OpBEQ, OpBNE, OpBLEZ, OpBGTZ,
		OpBLTZ, OpBGEZ, OpBLTZAL, OpBGEZAL:
		return true
	default:
		return false
	}
}

// IsCall returns true for branches that write a return address.
func (i Instruction) IsCall() bool {
	switch i.Op {
	case OpJAL, OpJALR, OpBLTZAL, OpBGEZAL:
		return true
	default:
		return false
	}
}

// IsReturn returns true for "jr $ra".
func (i Instruction) IsReturn() bool {
	return i.Op == OpJR && i.Rs == RegRA
}

// IsLoad returns true if the instruction reads data memory.
func (i Instruction) IsLoad() bool {
	switch i.Op {
	case OpLB, OpLH, OpLWL, OpLW, OpLBU, OpLHU, OpLWR, OpLWC:
		return true
	default:
		return false
	}
}

// IsStore returns true if the instruction writes data memory.
func (i Instruction) IsStore() bool {
	switch i.Op {
	case OpSB, OpSH, OpSWL, OpSW, OpSWR, OpSWC:
		return true
	default:
		return false
	}
}

// IsGTECommand returns true for a COP2 command (as opposed to a COP2 move).
func (i Instruction) IsGTECommand() bool {
	return i.Op == OpCOPCommand && i.Cop == 2
}

// GTEFunction returns the command number of a GTE command (bits [5:0]).
func (i Instruction) GTEFunction() uint8 {
	return uint8(i.Word & 0x3F)
}

// BranchTarget returns the destination of a PC-relative branch located at pc.
func (i Instruction) BranchTarget(pc uint32) uint32 {
	return pc + 4 + uint32(i.SImm<<2)
}

// JumpTarget returns the destination of a J/JAL located at pc.
func (i Instruction) JumpTarget(pc uint32) uint32 {
	return ((pc + 4) & 0xF0000000) | (i.Target << 2)
}
