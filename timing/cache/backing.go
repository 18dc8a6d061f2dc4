package cache

import (
	"github.com/sarchlab/r3ksim/bus"
)

// BusBacking adapts a bus.Bus as a BackingStore.
type BusBacking struct {
	bus bus.Bus
}

// NewBusBacking creates a new BusBacking adapter.
func NewBusBacking(b bus.Bus) *BusBacking {
	return &BusBacking{bus: b}
}

// ReadBlock fills data word by word and returns the cost of the first read.
func (b *BusBacking) ReadBlock(addr uint32, data []byte) (int32, error) {
	var first int32
	for off := 0; off+4 <= len(data); off += 4 {
		v, ticks, err := b.bus.Read(addr+uint32(off), bus.Word)
		if err != nil {
			return 0, err
		}
		if off == 0 {
			first = ticks
		}
		bus.WriteBacking(data, uint32(off), bus.Word, v)
	}
	return first, nil
}

// WriteThrough forwards a store to the bus.
func (b *BusBacking) WriteThrough(addr uint32, size int, value uint32) (int32, error) {
	return b.bus.Write(addr, bus.Width(size), value)
}
