// Package profiler aggregates per-address execution counters from the CPU
// core and exports them to SQLite.
package profiler

import (
	"github.com/sarchlab/r3ksim/bus"
	"github.com/sarchlab/r3ksim/emu"
)

// CountSet holds the counters kept for one instruction address.
type CountSet struct {
	InstructionFetch uint64
	InstrFetchMiss   uint64
	DataReadAccess   uint64
	DataReadMiss     uint64
	DataWriteAccess  uint64
	DataWriteMiss    uint64
	Cycles           uint64
}

// Add returns the element-wise sum of s and o.
func (s CountSet) Add(o CountSet) CountSet {
	return CountSet{
		InstructionFetch: s.InstructionFetch + o.InstructionFetch,
		InstrFetchMiss:   s.InstrFetchMiss + o.InstrFetchMiss,
		DataReadAccess:   s.DataReadAccess + o.DataReadAccess,
		DataReadMiss:     s.DataReadMiss + o.DataReadMiss,
		DataWriteAccess:  s.DataWriteAccess + o.DataWriteAccess,
		DataWriteMiss:    s.DataWriteMiss + o.DataWriteMiss,
		Cycles:           s.Cycles + o.Cycles,
	}
}

// Sub returns the element-wise difference s - o.
func (s CountSet) Sub(o CountSet) CountSet {
	return CountSet{
		InstructionFetch: s.InstructionFetch - o.InstructionFetch,
		InstrFetchMiss:   s.InstrFetchMiss - o.InstrFetchMiss,
		DataReadAccess:   s.DataReadAccess - o.DataReadAccess,
		DataReadMiss:     s.DataReadMiss - o.DataReadMiss,
		DataWriteAccess:  s.DataWriteAccess - o.DataWriteAccess,
		DataWriteMiss:    s.DataWriteMiss - o.DataWriteMiss,
		Cycles:           s.Cycles - o.Cycles,
	}
}

// IsZero returns true if every counter is zero.
func (s CountSet) IsZero() bool {
	return s == CountSet{}
}

// Area identifies which counter table an address falls into.
type Area uint8

// Counter areas.
const (
	AreaOther Area = iota
	AreaRAM
	AreaROM
)

func (a Area) String() string {
	switch a {
	case AreaRAM:
		return "ram"
	case AreaROM:
		return "rom"
	default:
		return "other"
	}
}

// Classify maps a virtual address to its counter area and word index.
// RAM mirrors share counters.
func Classify(addr uint32) (Area, uint32) {
	phys := emu.VirtualToPhysical(addr)
	switch {
	case phys < bus.RAMWindowSize:
		return AreaRAM, (phys & (bus.RAMSize - 1)) >> 2
	case phys-bus.BIOSBase < bus.BIOSSize:
		return AreaROM, (phys - bus.BIOSBase) >> 2
	default:
		return AreaOther, 0
	}
}

// Summary holds the totals of a profile.
type Summary struct {
	Total CountSet
	RAM   CountSet
	ROM   CountSet
	Other CountSet

	// Addresses is the number of instruction addresses with a non-zero
	// count set.
	Addresses int
}

// Profiler implements emu.Profiler with one CountSet per instruction word
// of RAM and BIOS ROM. Retirements outside those areas are only totalled.
type Profiler struct {
	ram   []CountSet
	rom   []CountSet
	other CountSet
}

// New creates an empty profiler.
func New() *Profiler {
	return &Profiler{
		ram: make([]CountSet, bus.RAMSize/4),
		rom: make([]CountSet, bus.BIOSSize/4),
	}
}

func (p *Profiler) slot(addr uint32) *CountSet {
	area, idx := Classify(addr)
	switch area {
	case AreaRAM:
		return &p.ram[idx]
	case AreaROM:
		return &p.rom[idx]
	default:
		return &p.other
	}
}

// Retire implements emu.Profiler.
func (p *Profiler) Retire(ev emu.RetireEvent) {
	cs := p.slot(ev.PC)

	cs.InstructionFetch++
	if ev.FetchMiss {
		cs.InstrFetchMiss++
	}
	cs.DataReadAccess += uint64(ev.DataReads)
	cs.DataReadMiss += uint64(ev.DataReadMisses)
	cs.DataWriteAccess += uint64(ev.DataWrites)
	cs.DataWriteMiss += uint64(ev.DataWriteMisses)
	if ev.Ticks > 0 {
		cs.Cycles += uint64(ev.Ticks)
	}
}

// Counts returns the counters of the instruction at addr. Addresses outside
// RAM and ROM return the shared "other" totals.
func (p *Profiler) Counts(addr uint32) CountSet {
	return *p.slot(addr)
}

// Reset clears every counter.
func (p *Profiler) Reset() {
	clear(p.ram)
	clear(p.rom)
	p.other = CountSet{}
}

// Summary totals the profile.
func (p *Profiler) Summary() Summary {
	var s Summary
	for _, cs := range p.ram {
		if !cs.IsZero() {
			s.RAM = s.RAM.Add(cs)
			s.Addresses++
		}
	}
	for _, cs := range p.rom {
		if !cs.IsZero() {
			s.ROM = s.ROM.Add(cs)
			s.Addresses++
		}
	}
	s.Other = p.other
	s.Total = s.RAM.Add(s.ROM).Add(s.Other)
	return s
}

// Entry is the count set of one address.
type Entry struct {
	Address uint32
	Area    Area
	Counts  CountSet
}

// Entries returns every non-zero RAM and ROM count set in address order.
// RAM entries use KSEG0 addresses and ROM entries KSEG1 addresses.
func (p *Profiler) Entries() []Entry {
	var out []Entry
	for i, cs := range p.ram {
		if !cs.IsZero() {
			out = append(out, Entry{
				Address: 0x80000000 | uint32(i)<<2,
				Area:    AreaRAM,
				Counts:  cs,
			})
		}
	}
	for i, cs := range p.rom {
		if !cs.IsZero() {
			out = append(out, Entry{
				Address: 0xA0000000 | (bus.BIOSBase + uint32(i)<<2),
				Area:    AreaROM,
				Counts:  cs,
			})
		}
	}
	return out
}
