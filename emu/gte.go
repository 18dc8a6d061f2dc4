package emu

import (
	"github.com/sarchlab/r3ksim/timing/latency"
)

// GTE is the geometry transformation coprocessor (COP2). Its registers
// live in the core state: indices 0-31 are data registers and 32-63 are
// control registers.
type GTE interface {
	// Read returns register index.
	Read(regs *[64]uint32, index uint8) uint32

	// Write stores value into register index.
	Write(regs *[64]uint32, index uint8, value uint32)

	// Execute runs a command and returns its latency in ticks.
	Execute(regs *[64]uint32, command uint32) int32
}

// PassiveGTE stores register writes and charges command latencies without
// computing results.
type PassiveGTE struct {
	timing *latency.Table
}

// NewPassiveGTE creates a PassiveGTE charging the latencies of t.
func NewPassiveGTE(t *latency.Table) *PassiveGTE {
	return &PassiveGTE{timing: t}
}

// Read returns the stored register value.
func (g *PassiveGTE) Read(regs *[64]uint32, index uint8) uint32 {
	return regs[index&63]
}

// Write stores the register value.
func (g *PassiveGTE) Write(regs *[64]uint32, index uint8, value uint32) {
	regs[index&63] = value
}

// Execute returns the latency of the command's function.
func (g *PassiveGTE) Execute(_ *[64]uint32, command uint32) int32 {
	return g.timing.GTECommandTicks(uint8(command & 0x3F))
}
