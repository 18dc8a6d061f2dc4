package emu

import (
	"strings"

	"github.com/sarchlab/r3ksim/bus"
)

// Safe accessors read and write guest memory for debuggers and loaders.
// They never raise exceptions, never charge ticks and never trigger device
// side effects.

func (c *CPU) safeAccess(addr uint32, w bus.Width, write bool, value uint32) (uint32, bool) {
	s := &c.state

	switch addr >> 29 {
	case 0x0, 0x4, 0x5:
		phys := addr & PhysicalAddressMask
		if addr>>29 != 0x5 && c.inScratchpad(phys) {
			off := phys & ScratchpadOffsetMask
			if write {
				bus.WriteBacking(s.DCache[:], off, w, value)
				return 0, true
			}
			return bus.ReadBacking(s.DCache[:], off, w), true
		}
		if write {
			return 0, c.bus.SafeWrite(phys, w, value)
		}
		return c.bus.SafeRead(phys, w)
	case 0x6, 0x7:
		if addr != CacheControlAddress {
			return 0, false
		}
		if write {
			c.SetCacheControl(value)
			return 0, true
		}
		return c.CacheControlValue(), true
	default:
		return 0, false
	}
}

// safeRead reads an access of width w. Misaligned accesses are assembled
// from byte reads.
func (c *CPU) safeRead(addr uint32, w bus.Width) (uint32, bool) {
	if addr&(uint32(w)-1) == 0 {
		return c.safeAccess(addr, w, false, 0)
	}

	var value uint32
	for i := uint32(0); i < uint32(w); i++ {
		b, ok := c.safeAccess(addr+i, bus.Byte, false, 0)
		if !ok {
			return 0, false
		}
		value |= b << (8 * i)
	}
	return value, true
}

func (c *CPU) safeWrite(addr uint32, w bus.Width, value uint32) bool {
	if addr&(uint32(w)-1) == 0 {
		_, ok := c.safeAccess(addr, w, true, value)
		return ok
	}

	for i := uint32(0); i < uint32(w); i++ {
		if _, ok := c.safeAccess(addr+i, bus.Byte, true, (value>>(8*i))&0xFF); !ok {
			return false
		}
	}
	return true
}

// SafeReadMemoryByte reads a byte.
func (c *CPU) SafeReadMemoryByte(addr uint32) (uint8, bool) {
	v, ok := c.safeRead(addr, bus.Byte)
	return uint8(v), ok
}

// SafeReadMemoryHalfWord reads a halfword.
func (c *CPU) SafeReadMemoryHalfWord(addr uint32) (uint16, bool) {
	v, ok := c.safeRead(addr, bus.HalfWord)
	return uint16(v), ok
}

// SafeReadMemoryWord reads a word.
func (c *CPU) SafeReadMemoryWord(addr uint32) (uint32, bool) {
	return c.safeRead(addr, bus.Word)
}

// SafeReadMemoryCString reads a NUL-terminated string of at most maxLength
// bytes. A string without a terminator within the limit is returned
// truncated.
func (c *CPU) SafeReadMemoryCString(addr uint32, maxLength int) (string, bool) {
	var sb strings.Builder
	for i := 0; i < maxLength; i++ {
		b, ok := c.SafeReadMemoryByte(addr + uint32(i))
		if !ok {
			return "", false
		}
		if b == 0 {
			break
		}
		sb.WriteByte(b)
	}
	return sb.String(), true
}

// SafeReadInstruction reads an instruction word from memory, bypassing
// the instruction cache.
func (c *CPU) SafeReadInstruction(addr uint32) (uint32, bool) {
	return c.safeRead(addr, bus.Word)
}

// SafeWriteMemoryByte writes a byte.
func (c *CPU) SafeWriteMemoryByte(addr uint32, value uint8) bool {
	return c.safeWrite(addr, bus.Byte, uint32(value))
}

// SafeWriteMemoryHalfWord writes a halfword.
func (c *CPU) SafeWriteMemoryHalfWord(addr uint32, value uint16) bool {
	return c.safeWrite(addr, bus.HalfWord, uint32(value))
}

// SafeWriteMemoryWord writes a word.
func (c *CPU) SafeWriteMemoryWord(addr uint32, value uint32) bool {
	return c.safeWrite(addr, bus.Word, value)
}

// SafeReadMemory fills data from addr.
func (c *CPU) SafeReadMemory(addr uint32, data []byte) bool {
	for i := range data {
		b, ok := c.SafeReadMemoryByte(addr + uint32(i))
		if !ok {
			return false
		}
		data[i] = b
	}
	return true
}

// SafeWriteMemory copies data to addr.
func (c *CPU) SafeWriteMemory(addr uint32, data []byte) bool {
	for i, b := range data {
		if !c.SafeWriteMemoryByte(addr+uint32(i), b) {
			return false
		}
	}
	return true
}
