package loader

import (
	"encoding/binary"
	"fmt"
)

const (
	psexeMagic      = "PS-X EXE"
	psexeHeaderSize = 0x800
)

// PSEXEHeader is the fixed header at the start of a PS-X EXE image.
type PSEXEHeader struct {
	PC0       uint32
	GP0       uint32
	TextAddr  uint32
	TextSize  uint32
	DataAddr  uint32
	DataSize  uint32
	BSSAddr   uint32
	BSSSize   uint32
	StackAddr uint32
	StackSize uint32
}

// ParsePSEXEHeader decodes the header fields of a PS-X EXE image.
func ParsePSEXEHeader(data []byte) (PSEXEHeader, error) {
	if len(data) < psexeHeaderSize {
		return PSEXEHeader{}, fmt.Errorf("PS-X EXE is %d bytes, header needs %d", len(data), psexeHeaderSize)
	}
	if string(data[:len(psexeMagic)]) != psexeMagic {
		return PSEXEHeader{}, fmt.Errorf("missing PS-X EXE magic")
	}

	word := func(off int) uint32 {
		return binary.LittleEndian.Uint32(data[off:])
	}

	return PSEXEHeader{
		PC0:       word(0x10),
		GP0:       word(0x14),
		TextAddr:  word(0x18),
		TextSize:  word(0x1C),
		DataAddr:  word(0x20),
		DataSize:  word(0x24),
		BSSAddr:   word(0x28),
		BSSSize:   word(0x2C),
		StackAddr: word(0x30),
		StackSize: word(0x34),
	}, nil
}

// ParsePSEXE parses a PS-X EXE image. The text section follows the 2 KiB
// header and is loaded at t_addr; the BSS range becomes a zero-filled
// segment.
func ParsePSEXE(data []byte) (*Program, error) {
	h, err := ParsePSEXEHeader(data)
	if err != nil {
		return nil, err
	}

	body := data[psexeHeaderSize:]
	if uint64(h.TextSize) > uint64(len(body)) {
		return nil, fmt.Errorf("PS-X EXE text is %d bytes, file holds %d", h.TextSize, len(body))
	}
	if h.TextAddr&3 != 0 || h.PC0&3 != 0 {
		return nil, fmt.Errorf("misaligned PS-X EXE addresses: t_addr 0x%08X pc0 0x%08X", h.TextAddr, h.PC0)
	}

	prog := &Program{
		Format:     FormatPSEXE,
		EntryPoint: h.PC0,
		InitialGP:  h.GP0,
		InitialSP:  DefaultStackTop,
	}
	if h.StackAddr != 0 {
		prog.InitialSP = h.StackAddr + h.StackSize
	}

	prog.Segments = append(prog.Segments, Segment{
		VirtAddr: h.TextAddr,
		Data:     body[:h.TextSize],
		MemSize:  h.TextSize,
		Flags:    SegmentFlagRead | SegmentFlagWrite | SegmentFlagExecute,
	})

	if h.BSSSize > 0 {
		prog.Segments = append(prog.Segments, Segment{
			VirtAddr: h.BSSAddr,
			MemSize:  h.BSSSize,
			Flags:    SegmentFlagRead | SegmentFlagWrite,
		})
	}

	return prog, nil
}
