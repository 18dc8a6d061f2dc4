// Package emu provides the cycle-accurate R3000A CPU core.
package emu

// General purpose register numbers with an ABI role.
const (
	RegZero uint8 = 0
	RegAT   uint8 = 1
	RegV0   uint8 = 2
	RegA0   uint8 = 4
	RegGP   uint8 = 28
	RegSP   uint8 = 29
	RegFP   uint8 = 30
	RegRA   uint8 = 31
)

// RegFile represents the MIPS-I integer register file.
// It contains 32 general-purpose registers and the multiply/divide
// result registers HI and LO.
type RegFile struct {
	// R holds general-purpose registers. R[0] always reads as 0.
	R [32]uint32

	// HI holds the high word of a product or the remainder of a division.
	HI uint32

	// LO holds the low word of a product or the quotient of a division.
	LO uint32
}

// ReadReg reads a register value.
func (r *RegFile) ReadReg(reg uint8) uint32 {
	return r.R[reg&31]
}

// WriteReg writes a value to a register. Writes to $zero are ignored.
func (r *RegFile) WriteReg(reg uint8, value uint32) {
	if reg == 0 {
		return
	}
	r.R[reg&31] = value
}
