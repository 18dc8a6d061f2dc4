// Package insts provides MIPS-I instruction definitions and decoding.
//
// This package implements decoding of R3000A machine code into structured
// instruction representations. It supports:
//   - SPECIAL (register) operations: shifts, HI/LO moves, multiply/divide, ALU
//   - REGIMM branches, including the console's relaxed rt decoding
//   - Immediate ALU operations, jumps and compare branches
//   - Loads and stores, including the unaligned LWL/LWR/SWL/SWR pairs
//   - Coprocessor moves, RFE and coprocessor commands (COP0, COP2)
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0x27BDFFE8) // addiu $sp, $sp, -24
//	fmt.Printf("Op: %v, Rt: %d, Rs: %d, Imm: %d\n", inst.Op, inst.Rt, inst.Rs, inst.SImm)
package insts
