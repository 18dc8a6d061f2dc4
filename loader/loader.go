// Package loader provides executable loading for the MIPS core: PS-X EXE
// images and 32-bit little-endian MIPS ELF binaries.
package loader

import (
	"bytes"
	"fmt"
	"os"

	"github.com/sarchlab/r3ksim/bus"
	"github.com/sarchlab/r3ksim/emu"
)

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// DefaultStackTop is the stack pointer used when an executable does not
// name one: the top of main RAM minus a small red zone, in KSEG0.
const DefaultStackTop uint32 = 0x801FFFF0

// Segment represents a loadable segment.
type Segment struct {
	// VirtAddr is the virtual address where this segment should be loaded.
	VirtAddr uint32
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint32
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// Format names the container an executable was read from.
type Format string

// Supported formats.
const (
	FormatPSEXE Format = "psexe"
	FormatELF   Format = "elf"
)

// Program represents a loaded program ready for execution.
type Program struct {
	Format Format
	// EntryPoint is the virtual address where execution should begin.
	EntryPoint uint32
	// Segments contains all loadable segments.
	Segments []Segment
	// InitialSP is the initial stack pointer value.
	InitialSP uint32
	// InitialGP is the initial global pointer value. Zero leaves $gp alone.
	InitialGP uint32
}

// Load reads an executable and picks the loader from its magic bytes.
func Load(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open executable: %w", err)
	}

	switch {
	case bytes.HasPrefix(data, []byte(psexeMagic)):
		return ParsePSEXE(data)
	case bytes.HasPrefix(data, []byte("\x7fELF")):
		return ParseELF(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("%s: not a PS-X EXE or ELF file", path)
	}
}

// Size returns the number of bytes the program occupies in memory.
func (p *Program) Size() uint32 {
	var n uint32
	for _, seg := range p.Segments {
		n += seg.MemSize
	}
	return n
}

// Install copies the segments into memory, zero-fills their BSS tails and
// points the CPU at the entry point with $sp and $gp set.
func (p *Program) Install(mem *bus.Memory, cpu *emu.CPU) error {
	for _, seg := range p.Segments {
		phys := emu.VirtualToPhysical(seg.VirtAddr)
		if err := mem.LoadProgram(phys, seg.Data); err != nil {
			return fmt.Errorf("loading segment at 0x%08X: %w", seg.VirtAddr, err)
		}
		if seg.MemSize > uint32(len(seg.Data)) {
			bss := make([]byte, seg.MemSize-uint32(len(seg.Data)))
			if err := mem.LoadProgram(phys+uint32(len(seg.Data)), bss); err != nil {
				return fmt.Errorf("clearing bss at 0x%08X: %w", seg.VirtAddr, err)
			}
		}
	}

	cpu.WriteReg(emu.RegSP, p.InitialSP)
	cpu.WriteReg(emu.RegFP, p.InitialSP)
	if p.InitialGP != 0 {
		cpu.WriteReg(emu.RegGP, p.InitialGP)
	}
	cpu.SetPC(p.EntryPoint)

	return nil
}
