package emu

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/r3ksim/bus"
	"github.com/sarchlab/r3ksim/timing/cache"
)

// UpdateMemoryPointers rebuilds the fast memory map from the bus. The map
// is left empty while the cache is isolated or the data cache caches RAM,
// so every access takes the full path.
func (c *CPU) UpdateMemoryPointers() {
	s := &c.state
	if s.Cop0.SR&SRIsC != 0 || s.CacheControl.TrueDataCache() {
		c.fastMap.Clear()
	} else {
		c.fastMap.Rebuild(c.bus.Regions())
	}
	c.lastHandle = bus.Handle{}
}

// CacheControlValue returns the packed cache control register.
func (c *CPU) CacheControlValue() uint32 {
	return c.state.CacheControl.Pack()
}

// SetCacheControl writes the cache control register.
func (c *CPU) SetCacheControl(value uint32) {
	s := &c.state
	old := s.CacheControl
	s.CacheControl = UnpackCacheControl(value)

	if old.ICacheEnable && !s.CacheControl.ICacheEnable {
		s.ICache.Clear()
	}
	if old.TrueDataCache() != s.CacheControl.TrueDataCache() {
		c.dcache.Reset()
	}

	c.logger.WithFields(logrus.Fields{
		"value":      fmt.Sprintf("0x%08X", value),
		"icache":     s.CacheControl.ICacheEnable,
		"scratchpad": s.CacheControl.DCacheScratchpad,
		"dcache":     s.CacheControl.DCacheEnable,
	}).Debug("cache control write")

	c.UpdateMemoryPointers()
}

// ClearICache invalidates every instruction cache line.
func (c *CPU) ClearICache() {
	c.state.ICache.Clear()
}

// readPhysical reads through the fast map and falls back to the bus.
// The handle of the last fetched page is reused until the map is rebuilt.
func (c *CPU) readPhysical(phys uint32, w bus.Width) (uint32, int32, bool) {
	page := phys >> bus.PageShift
	if page != c.lastPage || !c.lastHandle.Valid() {
		if h, ok := c.fastMap.Lookup(phys); ok {
			c.lastPage, c.lastHandle = page, h
		} else {
			c.lastHandle = bus.Handle{}
		}
	}

	if c.lastHandle.Valid() {
		if v, ticks, ok := c.fastMap.Read(c.lastHandle, phys, w); ok {
			return v, ticks, true
		}
		c.lastHandle = bus.Handle{}
	}

	v, ticks, err := c.bus.Read(phys, w)
	if err != nil {
		return 0, 0, false
	}
	return v, ticks, true
}

// fetchWord reads an instruction word. Fetches from KUSEG and KSEG0 go
// through the instruction cache while it is enabled.
func (c *CPU) fetchWord(addr uint32) (FetchInfo, uint32, bool) {
	info := FetchInfo{Address: addr}

	switch addr >> 29 {
	case 0x0, 0x4:
		if !c.state.CacheControl.ICacheEnable {
			break
		}
		info.Cached = true

		if word, ok := c.state.ICache.Lookup(addr); ok {
			info.Hit = true
			info.Ticks = c.timing.ICacheHitTicks()
			return info, word, true
		}

		phys := addr & PhysicalAddressMask
		n := cache.FillWords(addr)
		words := c.fillBuf[:n]
		var firstTicks int32
		for i := range words {
			w, ticks, ok := c.readPhysical(phys+uint32(i)*4, bus.Word)
			if !ok {
				return info, 0, false
			}
			if i == 0 {
				firstTicks = ticks
			}
			words[i] = w
		}
		c.state.ICache.Fill(addr, words)
		info.Ticks = c.timing.ICacheFillTicks(firstTicks, n)
		return info, words[0], true
	case 0x5:
	default:
		return info, 0, false
	}

	word, ticks, ok := c.readPhysical(addr&PhysicalAddressMask, bus.Word)
	info.Ticks = ticks
	return info, word, ok
}

// fetchInstruction fetches the instruction at NPC. A failed fetch raises a
// bus error exception.
func (c *CPU) fetchInstruction() bool {
	s := &c.state
	addr := s.NPC

	info, word, ok := c.fetchWord(addr)
	c.lastFetch = info
	c.retire.FetchPC = addr
	c.retire.FetchMiss = !info.Hit

	if !ok {
		s.BusError = true
		cause := MakeCauseValue(ExceptionIBE, false, false, 0)
		c.raiseException(cause, addr, c.ExceptionVector())
		return false
	}

	c.AddPendingTicks(info.Ticks)
	s.NextInstruction = word
	s.PC = addr
	s.NPC = addr + 4
	return true
}

// prefetch fills the next instruction slot after a redirect. A fault here
// cannot raise another exception, so the slot is filled with a nop.
func (c *CPU) prefetch() {
	s := &c.state
	addr := s.NPC

	info, word, ok := c.fetchWord(addr)
	c.lastFetch = info
	if !ok {
		s.BusError = true
		c.logger.WithField("addr", fmt.Sprintf("0x%08X", addr)).Error("instruction prefetch failed")
		word = 0
	} else {
		c.AddPendingTicks(info.Ticks)
	}

	s.NextInstruction = word
	s.PC = addr
	s.NPC = addr + 4
}

// isolatedAccess services a KUSEG/KSEG0 data access while SR.IsC isolates
// the cache. Stores land in the instruction cache instead of memory.
func (c *CPU) isolatedAccess(addr uint32, write bool, value uint32) uint32 {
	s := &c.state
	tagTest := s.CacheControl.TagTestMode

	if write {
		if tagTest {
			s.ICache.WriteTag(addr)
		} else {
			s.ICache.WriteData(addr, value)
		}
		return 0
	}

	if tagTest {
		return s.ICache.ReadTag(addr)
	}
	return s.ICache.ReadData(addr)
}
