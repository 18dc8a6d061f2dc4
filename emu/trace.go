package emu

import (
	"fmt"
	"io"
	"strings"

	"github.com/sarchlab/r3ksim/insts"
)

// StartTrace enables the execution log.
func (c *CPU) StartTrace() {
	if c.traceOn {
		return
	}
	c.traceOn = true
	c.ExecutionModeChanged()
}

// StopTrace disables the execution log.
func (c *CPU) StopTrace() {
	if !c.traceOn {
		return
	}
	c.traceOn = false
	c.ExecutionModeChanged()
}

// IsTraceEnabled returns true while the execution log is enabled.
func (c *CPU) IsTraceEnabled() bool {
	return c.traceOn
}

// SetTraceWriter redirects the execution log.
func (c *CPU) SetTraceWriter(w io.Writer) {
	c.traceWriter = w
}

// FormatInstruction renders one trace line: address, raw word, disassembly
// and the values of the registers the instruction reads.
func (c *CPU) FormatInstruction(word, pc uint32) string {
	inst := c.decoder.Decode(word)
	line := fmt.Sprintf("%08x: %08x  %-32s", pc, word, insts.Disassemble(inst, pc))
	if operands := c.operandValues(inst); operands != "" {
		line += " ; " + operands
	}
	return strings.TrimRight(line, " ")
}

func (c *CPU) operandValues(inst insts.Instruction) string {
	var regs []uint8
	switch inst.Format {
	case insts.FormatR:
		regs = []uint8{inst.Rs, inst.Rt}
	case insts.FormatI:
		regs = []uint8{inst.Rs}
		if inst.IsStore() || inst.Op == insts.OpBEQ || inst.Op == insts.OpBNE ||
			inst.Op == insts.OpLWL || inst.Op == insts.OpLWR {
			regs = append(regs, inst.Rt)
		}
	case insts.FormatCop:
		if inst.Op == insts.OpMTC || inst.Op == insts.OpCTC {
			regs = []uint8{inst.Rt}
		}
	}

	var parts []string
	seen := map[uint8]bool{}
	for _, r := range regs {
		if r == 0 || seen[r] {
			continue
		}
		seen[r] = true
		parts = append(parts, fmt.Sprintf("$%s=0x%08x", insts.RegisterName(r), c.ReadReg(r)))
	}
	return strings.Join(parts, ", ")
}

// WriteToExecutionLog appends a formatted line to the execution log.
func (c *CPU) WriteToExecutionLog(format string, args ...any) {
	fmt.Fprintf(c.traceWriter, format, args...)
	if !strings.HasSuffix(format, "\n") {
		fmt.Fprintln(c.traceWriter)
	}
}

func (c *CPU) traceInstruction() {
	s := &c.state
	fmt.Fprintln(c.traceWriter, c.FormatInstruction(s.CurrentInstruction.Word, s.CurrentInstructionPC))
}

// DisassembleAndPrint writes the instruction at addr to the console.
func (c *CPU) DisassembleAndPrint(addr uint32) {
	c.disassembleTo(c.stdout, addr)
}

// DisassembleAndPrintRange writes the instructions from before words ahead
// of addr to after words past it. The current instruction is marked.
func (c *CPU) DisassembleAndPrintRange(addr uint32, before, after uint32) {
	start := addr - before*4
	for i := uint32(0); i <= before+after; i++ {
		c.disassembleTo(c.stdout, start+i*4)
	}
}

// DisassembleAndLog writes the instruction at addr to the execution log.
func (c *CPU) DisassembleAndLog(addr uint32) {
	c.disassembleTo(c.traceWriter, addr)
}

func (c *CPU) disassembleTo(w io.Writer, addr uint32) {
	marker := "  "
	if addr == c.state.CurrentInstructionPC {
		marker = "->"
	}

	word, ok := c.SafeReadInstruction(addr)
	if !ok {
		fmt.Fprintf(w, "%s%08x: <unreadable>\n", marker, addr)
		return
	}
	fmt.Fprintf(w, "%s%s\n", marker, c.FormatInstruction(word, addr))
}
