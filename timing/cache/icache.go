package cache

// Instruction cache geometry.
const (
	ICacheLines        = 256
	ICacheLineSize     = 16
	ICacheWordsPerLine = ICacheLineSize / 4
	ICacheWords        = ICacheLines * ICacheWordsPerLine

	// ICacheTagAddressMask selects the address part of a tag.
	ICacheTagAddressMask uint32 = 0xFFFFFFF0
	// ICacheInvalidBits marks every word of a line invalid.
	ICacheInvalidBits uint32 = 0x0F
)

// ICache models the instruction cache. Each tag holds the line address
// in its upper bits and one invalid bit per word in its low nibble.
type ICache struct {
	Tags [ICacheLines]uint32
	Data [ICacheWords]uint32

	stats Statistics
}

// NewICache creates an instruction cache with every line invalid.
func NewICache() *ICache {
	c := &ICache{}
	c.Clear()
	return c
}

// LineIndex returns the line addr maps to.
func LineIndex(addr uint32) uint32 {
	return (addr >> 4) & (ICacheLines - 1)
}

// WordIndex returns the word of the line addr maps to.
func WordIndex(addr uint32) uint32 {
	return (addr >> 2) & (ICacheWordsPerLine - 1)
}

// Stats returns cache statistics.
func (c *ICache) Stats() Statistics {
	return c.stats
}

// ResetStats clears cache statistics.
func (c *ICache) ResetStats() {
	c.stats = Statistics{}
}

// Clear invalidates every line.
func (c *ICache) Clear() {
	for i := range c.Tags {
		c.Tags[i] = ICacheInvalidBits
	}
	clear(c.Data[:])
}

// Lookup returns the cached word at addr if its line tag matches and the
// word is valid.
func (c *ICache) Lookup(addr uint32) (uint32, bool) {
	c.stats.Reads++

	line := LineIndex(addr)
	word := WordIndex(addr)
	tag := c.Tags[line]

	if tag&ICacheTagAddressMask != addr&ICacheTagAddressMask || tag&(1<<word) != 0 {
		c.stats.Misses++
		return 0, false
	}

	c.stats.Hits++
	return c.Data[line*ICacheWordsPerLine+word], true
}

// FillWords returns how many words a miss at addr streams into the line.
func FillWords(addr uint32) int {
	return ICacheWordsPerLine - int(WordIndex(addr))
}

// Fill installs words, fetched from addr to the end of its line. Words of
// the line before addr are marked invalid.
func (c *ICache) Fill(addr uint32, words []uint32) {
	line := LineIndex(addr)
	start := WordIndex(addr)

	copy(c.Data[line*ICacheWordsPerLine+start:(line+1)*ICacheWordsPerLine], words)
	c.Tags[line] = addr&ICacheTagAddressMask | (1<<start - 1)
}

// WriteTag replaces the tag of addr's line with an all-invalid tag for addr.
func (c *ICache) WriteTag(addr uint32) {
	c.stats.Writes++
	c.Tags[LineIndex(addr)] = addr&ICacheTagAddressMask | ICacheInvalidBits
}

// WriteData replaces the cached word at addr without touching its tag.
func (c *ICache) WriteData(addr uint32, value uint32) {
	c.stats.Writes++
	c.Data[LineIndex(addr)*ICacheWordsPerLine+WordIndex(addr)] = value
}

// ReadTag returns the raw tag of addr's line.
func (c *ICache) ReadTag(addr uint32) uint32 {
	return c.Tags[LineIndex(addr)]
}

// ReadData returns the raw cached word at addr regardless of validity.
func (c *ICache) ReadData(addr uint32) uint32 {
	return c.Data[LineIndex(addr)*ICacheWordsPerLine+WordIndex(addr)]
}
