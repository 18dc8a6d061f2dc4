// Package cache provides the CPU cache models: the tagged instruction cache
// and an Akita-directory data cache.
package cache

import (
	"fmt"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// Config holds data cache configuration parameters.
type Config struct {
	// Size in bytes
	Size int
	// Associativity (number of ways)
	Associativity int
	// BlockSize in bytes (cache line size)
	BlockSize int
	// HitTicks is the cost of a hit
	HitTicks int32
	// FillWordTicks is the cost of each line word after the first on a fill
	FillWordTicks int32
}

// DefaultDCacheConfig returns the data cache geometry: 1 KiB, direct
// mapped, 16-byte lines.
func DefaultDCacheConfig() Config {
	return Config{
		Size:          1024,
		Associativity: 1,
		BlockSize:     16,
		HitTicks:      0,
		FillWordTicks: 1,
	}
}

// AccessResult contains the result of a cache access.
type AccessResult struct {
	// Hit indicates whether the access was a cache hit.
	Hit bool
	// Ticks is the cost of this access.
	Ticks int32
	// Data is the value read (for load operations).
	Data uint32
}

// Cache is a write-through, read-allocate data cache using Akita cache
// components.
type Cache struct {
	config Config

	// Akita cache directory for tag/state management
	directory *akitacache.DirectoryImpl

	// Data storage - indexed by (setID * associativity + wayID)
	dataStore [][]byte

	stats Statistics

	backing BackingStore
}

// Statistics holds cache performance statistics.
type Statistics struct {
	Reads      uint64
	Writes     uint64
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	Writebacks uint64
}

// BackingStore is the memory behind the cache.
type BackingStore interface {
	// ReadBlock fills data from addr and returns the cost of the first
	// access. Subsequent words are charged by the cache.
	ReadBlock(addr uint32, data []byte) (ticks int32, err error)

	// WriteThrough forwards a store to memory.
	WriteThrough(addr uint32, size int, value uint32) (ticks int32, err error)
}

// New creates a new cache with the given configuration.
func New(config Config, backing BackingStore) *Cache {
	numSets := config.Size / (config.Associativity * config.BlockSize)
	totalBlocks := numSets * config.Associativity

	dataStore := make([][]byte, totalBlocks)
	for i := range dataStore {
		dataStore[i] = make([]byte, config.BlockSize)
	}

	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
		dataStore: dataStore,
		backing:   backing,
	}
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// ResetStats clears cache statistics.
func (c *Cache) ResetStats() {
	c.stats = Statistics{}
}

func (c *Cache) blockIndex(block *akitacache.Block) int {
	return block.SetID*c.config.Associativity + block.WayID
}

func (c *Cache) blockAddr(addr uint32) uint64 {
	return uint64(addr) / uint64(c.config.BlockSize) * uint64(c.config.BlockSize)
}

// Read performs a cache read of size bytes at addr.
func (c *Cache) Read(addr uint32, size int) (AccessResult, error) {
	c.stats.Reads++

	block := c.directory.Lookup(0, c.blockAddr(addr))
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)

		offset := uint64(addr) % uint64(c.config.BlockSize)
		data := extractData(c.dataStore[c.blockIndex(block)], offset, size)

		return AccessResult{Hit: true, Ticks: c.config.HitTicks, Data: data}, nil
	}

	c.stats.Misses++
	return c.handleMiss(addr, size)
}

// Write forwards a store to the backing store and updates the line if it
// is resident. Misses do not allocate.
func (c *Cache) Write(addr uint32, size int, data uint32) (AccessResult, error) {
	c.stats.Writes++

	result := AccessResult{}
	block := c.directory.Lookup(0, c.blockAddr(addr))
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)

		offset := uint64(addr) % uint64(c.config.BlockSize)
		storeData(c.dataStore[c.blockIndex(block)], offset, size, data)
		result.Hit = true
	} else {
		c.stats.Misses++
	}

	if c.backing != nil {
		ticks, err := c.backing.WriteThrough(addr, size, data)
		if err != nil {
			if result.Hit {
				block.IsValid = false
			}
			return result, fmt.Errorf("write through at 0x%08X: %w", addr, err)
		}
		result.Ticks = ticks
		c.stats.Writebacks++
	}

	return result, nil
}

func (c *Cache) handleMiss(addr uint32, size int) (AccessResult, error) {
	blockAddr := c.blockAddr(addr)

	victim := c.directory.FindVictim(blockAddr)
	if victim == nil {
		return AccessResult{}, fmt.Errorf("no victim for 0x%08X", addr)
	}
	if victim.IsValid {
		c.stats.Evictions++
	}

	victimData := c.dataStore[c.blockIndex(victim)]
	result := AccessResult{}

	if c.backing != nil {
		ticks, err := c.backing.ReadBlock(uint32(blockAddr), victimData)
		if err != nil {
			victim.IsValid = false
			return AccessResult{}, fmt.Errorf("line fill at 0x%08X: %w", blockAddr, err)
		}
		words := c.config.BlockSize / 4
		result.Ticks = ticks + int32(words-1)*c.config.FillWordTicks
	} else {
		clear(victimData)
	}

	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = false
	c.directory.Visit(victim)

	offset := uint64(addr) % uint64(c.config.BlockSize)
	result.Data = extractData(victimData, offset, size)

	return result, nil
}

// Invalidate marks a cache line as invalid.
func (c *Cache) Invalidate(addr uint32) {
	block := c.directory.Lookup(0, c.blockAddr(addr))
	if block != nil && block.IsValid {
		block.IsValid = false
		block.IsDirty = false
	}
}

// ValidLines returns the number of resident lines.
func (c *Cache) ValidLines() int {
	n := 0
	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			if block.IsValid {
				n++
			}
		}
	}
	return n
}

// Line is the saved form of one cache line.
type Line struct {
	Tag   uint32
	Valid bool
	Data  []byte
}

// Lines returns a copy of every line, indexed by set and way.
func (c *Cache) Lines() []Line {
	lines := make([]Line, len(c.dataStore))
	for i := range lines {
		lines[i].Data = make([]byte, c.config.BlockSize)
	}

	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			i := c.blockIndex(block)
			lines[i].Tag = uint32(block.Tag)
			lines[i].Valid = block.IsValid
			copy(lines[i].Data, c.dataStore[i])
		}
	}
	return lines
}

// SetLines replaces every line with the contents returned by Lines.
func (c *Cache) SetLines(lines []Line) error {
	if len(lines) != len(c.dataStore) {
		return fmt.Errorf("%d cache lines, expected %d", len(lines), len(c.dataStore))
	}
	for i, l := range lines {
		if len(l.Data) != c.config.BlockSize {
			return fmt.Errorf("cache line %d is %d bytes, expected %d", i, len(l.Data), c.config.BlockSize)
		}
	}

	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			i := c.blockIndex(block)
			block.Tag = uint64(lines[i].Tag)
			block.IsValid = lines[i].Valid
			block.IsDirty = false
			copy(c.dataStore[i], lines[i].Data)
		}
	}
	return nil
}

// Reset invalidates all cache lines and clears statistics.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.stats = Statistics{}
}

func extractData(data []byte, offset uint64, size int) uint32 {
	if data == nil || int(offset)+size > len(data) {
		return 0
	}

	var result uint32
	for i := 0; i < size; i++ {
		result |= uint32(data[int(offset)+i]) << (i * 8)
	}
	return result
}

func storeData(data []byte, offset uint64, size int, value uint32) {
	if data == nil || int(offset)+size > len(data) {
		return
	}

	for i := 0; i < size; i++ {
		data[int(offset)+i] = byte(value >> (i * 8))
	}
}
