package emu

import (
	"github.com/sarchlab/r3ksim/bus"
	"github.com/sarchlab/r3ksim/insts"
	"github.com/sarchlab/r3ksim/timing/cache"
)

// memoryResult classifies how a data access was served.
type memoryResult uint8

const (
	accessBus memoryResult = iota
	accessScratchpad
	accessCacheHit
	accessCacheMiss
	accessInternal
)

// LoadStoreUnit implements MIPS-I loads and stores on top of the CPU's
// data access path.
type LoadStoreUnit struct {
	cpu *CPU
}

// NewLoadStoreUnit creates a new LoadStoreUnit for cpu.
func NewLoadStoreUnit(cpu *CPU) *LoadStoreUnit {
	return &LoadStoreUnit{cpu: cpu}
}

// EffectiveAddress returns base + sign-extended offset.
func (lsu *LoadStoreUnit) EffectiveAddress(inst insts.Instruction) uint32 {
	return lsu.cpu.ReadReg(inst.Rs) + uint32(inst.SImm)
}

// Load executes LB, LBU, LH, LHU and LW. The result goes through the load
// delay slot.
func (lsu *LoadStoreUnit) Load(inst insts.Instruction) {
	c := lsu.cpu
	addr := lsu.EffectiveAddress(inst)

	var (
		value uint32
		ok    bool
	)
	switch inst.Op {
	case insts.OpLB:
		value, ok = c.readMemory(addr, bus.Byte)
		value = uint32(int32(int8(value)))
	case insts.OpLBU:
		value, ok = c.readMemory(addr, bus.Byte)
	case insts.OpLH:
		value, ok = c.readMemory(addr, bus.HalfWord)
		value = uint32(int32(int16(value)))
	case insts.OpLHU:
		value, ok = c.readMemory(addr, bus.HalfWord)
	case insts.OpLW:
		value, ok = c.readMemory(addr, bus.Word)
	}

	if ok {
		c.WriteRegDelayed(inst.Rt, value)
	}
}

// Store executes SB, SH and SW.
func (lsu *LoadStoreUnit) Store(inst insts.Instruction) {
	c := lsu.cpu
	addr := lsu.EffectiveAddress(inst)
	value := c.ReadReg(inst.Rt)

	switch inst.Op {
	case insts.OpSB:
		c.writeMemory(addr, bus.Byte, value&0xFF)
	case insts.OpSH:
		c.writeMemory(addr, bus.HalfWord, value&0xFFFF)
	case insts.OpSW:
		c.writeMemory(addr, bus.Word, value)
	}
}

// MergeLWL merges a word loaded by LWL into the existing register value.
func MergeLWL(existing, aligned, addr uint32) uint32 {
	shift := (addr & 3) * 8
	mask := uint32(0x00FFFFFF) >> shift
	return existing&mask | aligned<<(24-shift)
}

// MergeLWR merges a word loaded by LWR into the existing register value.
func MergeLWR(existing, aligned, addr uint32) uint32 {
	shift := (addr & 3) * 8
	mask := uint32(0xFFFFFF00) << (24 - shift)
	return existing&mask | aligned>>shift
}

// MergeSWL returns the memory word SWL writes.
func MergeSWL(mem, reg, addr uint32) uint32 {
	shift := (addr & 3) * 8
	mask := uint32(0xFFFFFF00) << shift
	return mem&mask | reg>>(24-shift)
}

// MergeSWR returns the memory word SWR writes.
func MergeSWR(mem, reg, addr uint32) uint32 {
	shift := (addr & 3) * 8
	mask := uint32(0x00FFFFFF) >> (24 - shift)
	return mem&mask | reg<<shift
}

// LoadUnaligned executes LWL and LWR. The register being merged into is
// read through a visible load to the same register, so an LWL/LWR pair
// works without a gap.
func (lsu *LoadStoreUnit) LoadUnaligned(inst insts.Instruction) {
	c := lsu.cpu
	addr := lsu.EffectiveAddress(inst)

	aligned, ok := c.readMemory(addr&^3, bus.Word)
	if !ok {
		return
	}

	existing, pending := c.state.LoadDelay.Pending(inst.Rt)
	if !pending {
		existing = c.ReadReg(inst.Rt)
	}

	if inst.Op == insts.OpLWL {
		c.WriteRegDelayed(inst.Rt, MergeLWL(existing, aligned, addr))
	} else {
		c.WriteRegDelayed(inst.Rt, MergeLWR(existing, aligned, addr))
	}
}

// StoreUnaligned executes SWL and SWR as a read-modify-write of the
// aligned word.
func (lsu *LoadStoreUnit) StoreUnaligned(inst insts.Instruction) {
	c := lsu.cpu
	addr := lsu.EffectiveAddress(inst)
	reg := c.ReadReg(inst.Rt)

	mem, ok := c.readMemory(addr&^3, bus.Word)
	if !ok {
		return
	}

	if inst.Op == insts.OpSWL {
		c.writeMemory(addr&^3, bus.Word, MergeSWL(mem, reg, addr))
	} else {
		c.writeMemory(addr&^3, bus.Word, MergeSWR(mem, reg, addr))
	}
}

// readMemory performs a data load for the current instruction. It raises
// AdEL on a misaligned or privileged address and DBE on a bus error.
func (c *CPU) readMemory(addr uint32, w bus.Width) (uint32, bool) {
	if addr&(uint32(w)-1) != 0 || (c.state.InUserMode() && addr >= 0x80000000) {
		c.raiseAddressError(ExceptionAdEL, addr)
		return 0, false
	}

	value, result, ticks, ok := c.dataAccess(addr, w, false, 0)
	c.retire.DataReads++
	if result == accessBus || result == accessCacheMiss {
		c.retire.DataReadMisses++
	}
	if !ok {
		c.state.BusError = true
		c.RaiseException(ExceptionDBE)
		return 0, false
	}

	c.AddPendingTicks(ticks)
	return value, true
}

// writeMemory performs a data store for the current instruction. It raises
// AdES on a misaligned or privileged address and DBE on a bus error.
func (c *CPU) writeMemory(addr uint32, w bus.Width, value uint32) bool {
	if addr&(uint32(w)-1) != 0 || (c.state.InUserMode() && addr >= 0x80000000) {
		c.raiseAddressError(ExceptionAdES, addr)
		return false
	}

	_, result, ticks, ok := c.dataAccess(addr, w, true, value)
	c.retire.DataWrites++
	if result == accessBus || result == accessCacheMiss {
		c.retire.DataWriteMisses++
	}
	if !ok {
		c.state.BusError = true
		c.RaiseException(ExceptionDBE)
		return false
	}

	c.AddPendingTicks(ticks)
	return true
}

func (c *CPU) inScratchpad(phys uint32) bool {
	return c.state.CacheControl.DCacheScratchpad && phys&ScratchpadLocationMask == ScratchpadBase
}

// dataAccess routes a data access by segment: isolated cache, scratchpad,
// data cache, fast map and finally the bus.
func (c *CPU) dataAccess(addr uint32, w bus.Width, write bool, value uint32) (uint32, memoryResult, int32, bool) {
	s := &c.state

	switch addr >> 29 {
	case 0x0, 0x4:
		if s.Cop0.SR&SRIsC != 0 {
			return c.isolatedAccess(addr, write, value), accessInternal, 0, true
		}

		phys := addr & PhysicalAddressMask
		if c.inScratchpad(phys) {
			off := phys & ScratchpadOffsetMask
			ticks := c.timing.ScratchpadTicks()
			if write {
				bus.WriteBacking(s.DCache[:], off, w, value)
				return 0, accessScratchpad, ticks, true
			}
			return bus.ReadBacking(s.DCache[:], off, w), accessScratchpad, ticks, true
		}

		if s.CacheControl.TrueDataCache() {
			return c.cachedAccess(phys, w, write, value)
		}
		return c.busAccess(phys, w, write, value)
	case 0x5:
		return c.busAccess(addr&PhysicalAddressMask, w, write, value)
	case 0x6, 0x7:
		if addr != CacheControlAddress {
			return 0, accessBus, 0, false
		}
		if write {
			c.SetCacheControl(value)
			return 0, accessInternal, 0, true
		}
		return c.CacheControlValue(), accessInternal, 0, true
	default:
		return 0, accessBus, 0, false
	}
}

func (c *CPU) cachedAccess(phys uint32, w bus.Width, write bool, value uint32) (uint32, memoryResult, int32, bool) {
	var (
		res cache.AccessResult
		err error
	)
	if write {
		res, err = c.dcache.Write(phys, int(w), value)
	} else {
		res, err = c.dcache.Read(phys, int(w))
	}
	if err != nil {
		return 0, accessBus, 0, false
	}

	if res.Hit {
		return res.Data, accessCacheHit, res.Ticks, true
	}
	return res.Data, accessCacheMiss, res.Ticks, true
}

func (c *CPU) busAccess(phys uint32, w bus.Width, write bool, value uint32) (uint32, memoryResult, int32, bool) {
	if !write {
		v, ticks, ok := c.readPhysical(phys, w)
		return v, accessBus, ticks, ok
	}

	if h, ok := c.fastMap.Lookup(phys); ok && c.fastMap.Write(h, phys, w, value) {
		return 0, accessBus, 0, true
	}

	ticks, err := c.bus.Write(phys, w, value)
	if err != nil {
		return 0, accessBus, 0, false
	}
	return 0, accessBus, ticks, true
}
