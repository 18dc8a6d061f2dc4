// Package bus provides the physical address space seen by the CPU core.
//
// The core consumes the Bus interface; Memory is a reference implementation
// with the console's RAM and BIOS layout plus pluggable device windows.
// FastMap is an acceleration table that lets the core reach RAM and ROM
// backing storage without going through the interface on every access.
package bus

import "errors"

// ErrBusError is returned when an access reaches no mapped region or a
// device refuses it. The CPU turns it into an IBE or DBE exception.
var ErrBusError = errors.New("bus error")

// Width is the size of a bus access in bytes.
type Width uint8

// Access widths.
const (
	Byte     Width = 1
	HalfWord Width = 2
	Word     Width = 4
)

// Mask returns the value mask for the width.
func (w Width) Mask() uint32 {
	switch w {
	case Byte:
		return 0xFF
	case HalfWord:
		return 0xFFFF
	default:
		return 0xFFFFFFFF
	}
}

// Kind classifies a region of the physical address space.
type Kind uint8

// Region kinds.
const (
	KindRAM Kind = iota
	KindROM
	KindDevice
)

func (k Kind) String() string {
	switch k {
	case KindRAM:
		return "RAM"
	case KindROM:
		return "ROM"
	default:
		return "device"
	}
}

// Region describes a window of the physical address space.
type Region struct {
	Name  string
	Kind  Kind
	Start uint32 // First physical address of the window
	Size  uint32 // Window size in bytes

	// Backing is the storage behind a RAM or ROM window. It is nil for
	// devices. Offsets into the window are masked with len(Backing)-1, so a
	// window larger than its storage mirrors it.
	Backing []byte

	// AccessTicks is the cost of a single access of any width.
	AccessTicks int32
}

// Contains returns true if phys lies inside the window.
func (r *Region) Contains(phys uint32) bool {
	return phys-r.Start < r.Size
}

// Offset returns the backing offset of phys.
func (r *Region) Offset(phys uint32) uint32 {
	return (phys - r.Start) & uint32(len(r.Backing)-1)
}

// Bus is the physical memory interface consumed by the CPU core.
type Bus interface {
	// Read performs a read with full side effects and returns the value
	// and its cost in ticks.
	Read(phys uint32, w Width) (value uint32, ticks int32, err error)

	// Write performs a write with full side effects and returns its cost.
	Write(phys uint32, w Width, value uint32) (ticks int32, err error)

	// SafeRead reads without device side effects. It returns false for
	// unmapped addresses and devices that cannot be read safely.
	SafeRead(phys uint32, w Width) (uint32, bool)

	// SafeWrite writes RAM or ROM storage without device side effects.
	SafeWrite(phys uint32, w Width, value uint32) bool

	// Regions returns the RAM and ROM windows eligible for direct access.
	Regions() []Region
}
