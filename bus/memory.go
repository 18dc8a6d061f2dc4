package bus

import (
	"encoding/binary"
	"fmt"
)

// Physical layout of the reference memory map.
const (
	RAMBase       uint32 = 0x00000000
	RAMSize       uint32 = 0x00200000 // 2 MiB of storage
	RAMWindowSize uint32 = 0x00800000 // mirrored four times
	BIOSBase      uint32 = 0x1FC00000
	BIOSSize      uint32 = 0x00080000
)

// Default access costs in ticks.
const (
	DefaultRAMTicks  int32 = 6
	DefaultBIOSTicks int32 = 24
)

// Device is a memory-mapped peripheral reachable through a window.
// Offsets are relative to the window start.
type Device interface {
	ReadDevice(offset uint32, w Width) (uint32, error)
	WriteDevice(offset uint32, w Width, value uint32) error
}

// PeekableDevice is a Device that can report register contents without
// side effects. Only such devices are visible to SafeRead.
type PeekableDevice interface {
	Device
	PeekDevice(offset uint32, w Width) (uint32, bool)
}

type deviceWindow struct {
	region Region
	device Device
}

// Memory is the reference Bus: RAM, BIOS ROM and device windows.
type Memory struct {
	ram     []byte
	bios    []byte
	devices []deviceWindow

	ramTicks  int32
	biosTicks int32
}

// MemoryOption is a functional option for configuring Memory.
type MemoryOption func(*Memory)

// WithRAMTicks sets the cost of a RAM access.
func WithRAMTicks(ticks int32) MemoryOption {
	return func(m *Memory) {
		m.ramTicks = ticks
	}
}

// WithBIOSTicks sets the cost of a BIOS access.
func WithBIOSTicks(ticks int32) MemoryOption {
	return func(m *Memory) {
		m.biosTicks = ticks
	}
}

// NewMemory creates an empty memory map with zeroed RAM and BIOS.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		ram:       make([]byte, RAMSize),
		bios:      make([]byte, BIOSSize),
		ramTicks:  DefaultRAMTicks,
		biosTicks: DefaultBIOSTicks,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// MapDevice maps dev at [start, start+size). Windows must not overlap RAM,
// BIOS or another device.
func (m *Memory) MapDevice(name string, start, size uint32, dev Device, ticks int32) error {
	win := Region{Name: name, Kind: KindDevice, Start: start, Size: size, AccessTicks: ticks}

	for _, r := range m.allRegions() {
		if start < r.Start+r.Size && r.Start < start+size {
			return fmt.Errorf("device %s at 0x%08X overlaps %s", name, start, r.Name)
		}
	}

	m.devices = append(m.devices, deviceWindow{region: win, device: dev})
	return nil
}

// Regions returns the RAM and BIOS windows.
func (m *Memory) Regions() []Region {
	return []Region{
		{Name: "RAM", Kind: KindRAM, Start: RAMBase, Size: RAMWindowSize, Backing: m.ram, AccessTicks: m.ramTicks},
		{Name: "BIOS", Kind: KindROM, Start: BIOSBase, Size: BIOSSize, Backing: m.bios, AccessTicks: m.biosTicks},
	}
}

func (m *Memory) allRegions() []Region {
	regions := m.Regions()
	for _, d := range m.devices {
		regions = append(regions, d.region)
	}
	return regions
}

// RAM returns the RAM storage.
func (m *Memory) RAM() []byte {
	return m.ram
}

// BIOS returns the BIOS storage.
func (m *Memory) BIOS() []byte {
	return m.bios
}

func (m *Memory) storage(phys uint32) (Region, bool) {
	switch {
	case phys-RAMBase < RAMWindowSize:
		return Region{Kind: KindRAM, Start: RAMBase, Size: RAMWindowSize, Backing: m.ram, AccessTicks: m.ramTicks}, true
	case phys-BIOSBase < BIOSSize:
		return Region{Kind: KindROM, Start: BIOSBase, Size: BIOSSize, Backing: m.bios, AccessTicks: m.biosTicks}, true
	}
	return Region{}, false
}

func (m *Memory) device(phys uint32) (*deviceWindow, bool) {
	for i := range m.devices {
		if m.devices[i].region.Contains(phys) {
			return &m.devices[i], true
		}
	}
	return nil, false
}

// Read implements Bus.
func (m *Memory) Read(phys uint32, w Width) (uint32, int32, error) {
	if r, ok := m.storage(phys); ok {
		return ReadBacking(r.Backing, r.Offset(phys), w), r.AccessTicks, nil
	}

	if d, ok := m.device(phys); ok {
		v, err := d.device.ReadDevice(phys-d.region.Start, w)
		if err != nil {
			return 0, d.region.AccessTicks, fmt.Errorf("%s read at 0x%08X: %w", d.region.Name, phys, err)
		}
		return v & w.Mask(), d.region.AccessTicks, nil
	}

	return 0, 0, fmt.Errorf("read at 0x%08X: %w", phys, ErrBusError)
}

// Write implements Bus. Writes to ROM are accepted and discarded.
func (m *Memory) Write(phys uint32, w Width, value uint32) (int32, error) {
	if r, ok := m.storage(phys); ok {
		if r.Kind == KindRAM {
			WriteBacking(r.Backing, r.Offset(phys), w, value)
		}
		return 0, nil
	}

	if d, ok := m.device(phys); ok {
		if err := d.device.WriteDevice(phys-d.region.Start, w, value&w.Mask()); err != nil {
			return d.region.AccessTicks, fmt.Errorf("%s write at 0x%08X: %w", d.region.Name, phys, err)
		}
		return d.region.AccessTicks, nil
	}

	return 0, fmt.Errorf("write at 0x%08X: %w", phys, ErrBusError)
}

// SafeRead implements Bus.
func (m *Memory) SafeRead(phys uint32, w Width) (uint32, bool) {
	if r, ok := m.storage(phys); ok {
		return ReadBacking(r.Backing, r.Offset(phys), w), true
	}

	if d, ok := m.device(phys); ok {
		if p, ok := d.device.(PeekableDevice); ok {
			return p.PeekDevice(phys-d.region.Start, w)
		}
	}

	return 0, false
}

// SafeWrite implements Bus. ROM storage is writable here so debuggers can
// patch the BIOS image.
func (m *Memory) SafeWrite(phys uint32, w Width, value uint32) bool {
	r, ok := m.storage(phys)
	if !ok {
		return false
	}
	WriteBacking(r.Backing, r.Offset(phys), w, value)
	return true
}

// Read8 reads a byte, returning 0 for unmapped addresses.
func (m *Memory) Read8(phys uint32) uint8 {
	v, _ := m.SafeRead(phys, Byte)
	return uint8(v)
}

// Read32 reads a word, returning 0 for unmapped addresses.
func (m *Memory) Read32(phys uint32) uint32 {
	v, _ := m.SafeRead(phys, Word)
	return v
}

// Write8 writes a byte to RAM or ROM storage.
func (m *Memory) Write8(phys uint32, value uint8) {
	m.SafeWrite(phys, Byte, uint32(value))
}

// Write32 writes a word to RAM or ROM storage.
func (m *Memory) Write32(phys uint32, value uint32) {
	m.SafeWrite(phys, Word, value)
}

// LoadProgram copies data into storage starting at phys.
func (m *Memory) LoadProgram(phys uint32, data []byte) error {
	for i, b := range data {
		if !m.SafeWrite(phys+uint32(i), Byte, uint32(b)) {
			return fmt.Errorf("load at 0x%08X: %w", phys+uint32(i), ErrBusError)
		}
	}
	return nil
}

// LoadBIOS replaces the BIOS image. Shorter images are zero padded.
func (m *Memory) LoadBIOS(image []byte) error {
	if len(image) > len(m.bios) {
		return fmt.Errorf("BIOS image is %d bytes, maximum is %d", len(image), len(m.bios))
	}
	clear(m.bios)
	copy(m.bios, image)
	return nil
}

// LoadWords writes consecutive little-endian words starting at phys.
func (m *Memory) LoadWords(phys uint32, words ...uint32) error {
	for i, word := range words {
		if !m.SafeWrite(phys+uint32(i)*4, Word, word) {
			return fmt.Errorf("load at 0x%08X: %w", phys+uint32(i)*4, ErrBusError)
		}
	}
	return nil
}

// ReadBacking reads a little-endian value of width w at off.
func ReadBacking(b []byte, off uint32, w Width) uint32 {
	switch w {
	case Byte:
		return uint32(b[off])
	case HalfWord:
		return uint32(binary.LittleEndian.Uint16(b[off:]))
	default:
		return binary.LittleEndian.Uint32(b[off:])
	}
}

// WriteBacking writes a little-endian value of width w at off.
func WriteBacking(b []byte, off uint32, w Width, value uint32) {
	switch w {
	case Byte:
		b[off] = uint8(value)
	case HalfWord:
		binary.LittleEndian.PutUint16(b[off:], uint16(value))
	default:
		binary.LittleEndian.PutUint32(b[off:], value)
	}
}
