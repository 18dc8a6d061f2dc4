package bus

// PageShift is the log2 of the FastMap page size.
const PageShift = 12

const numPages = 1 << (29 - PageShift) // 512 MiB physical space

// Handle names a directly accessible region as of a FastMap generation.
// A handle taken before the last Rebuild or Clear is stale and refused.
type Handle struct {
	region     int16
	generation uint32
}

// Valid returns true if the handle names a region.
func (h Handle) Valid() bool {
	return h.region > 0
}

// FastMap is a page table over the physical address space that resolves
// RAM and ROM pages to their backing storage.
type FastMap struct {
	pages      []int16 // 1-based region index, 0 for none
	regions    []Region
	generation uint32
}

// NewFastMap creates an empty table.
func NewFastMap() *FastMap {
	return &FastMap{pages: make([]int16, numPages)}
}

// Generation returns the current table generation.
func (m *FastMap) Generation() uint32 {
	return m.generation
}

// Rebuild repopulates the table from regions and invalidates every
// outstanding handle. Device regions are ignored.
func (m *FastMap) Rebuild(regions []Region) {
	m.Clear()

	for _, r := range regions {
		if r.Kind == KindDevice || len(r.Backing) == 0 {
			continue
		}
		m.regions = append(m.regions, r)
		idx := int16(len(m.regions))

		first := r.Start >> PageShift
		last := (r.Start + r.Size - 1) >> PageShift
		for p := first; p <= last && p < numPages; p++ {
			m.pages[p] = idx
		}
	}
}

// Clear empties the table and invalidates every outstanding handle.
func (m *FastMap) Clear() {
	m.generation++
	m.regions = m.regions[:0]
	clear(m.pages)
}

// Lookup resolves the page containing phys.
func (m *FastMap) Lookup(phys uint32) (Handle, bool) {
	page := phys >> PageShift
	if page >= numPages {
		return Handle{}, false
	}
	idx := m.pages[page]
	if idx == 0 {
		return Handle{}, false
	}
	return Handle{region: idx, generation: m.generation}, true
}

func (m *FastMap) resolve(h Handle) (*Region, bool) {
	if h.region <= 0 || h.generation != m.generation || int(h.region) > len(m.regions) {
		return nil, false
	}
	return &m.regions[h.region-1], true
}

// Region returns the region behind a live handle.
func (m *FastMap) Region(h Handle) (Region, bool) {
	r, ok := m.resolve(h)
	if !ok {
		return Region{}, false
	}
	return *r, true
}

// Read reads phys through h. It returns false for stale handles and
// addresses outside the handle's region.
func (m *FastMap) Read(h Handle, phys uint32, w Width) (value uint32, ticks int32, ok bool) {
	r, ok := m.resolve(h)
	if !ok || !r.Contains(phys) {
		return 0, 0, false
	}
	return ReadBacking(r.Backing, r.Offset(phys), w), r.AccessTicks, true
}

// Write writes phys through h. Only RAM accepts direct writes.
func (m *FastMap) Write(h Handle, phys uint32, w Width, value uint32) bool {
	r, ok := m.resolve(h)
	if !ok || r.Kind != KindRAM || !r.Contains(phys) {
		return false
	}
	WriteBacking(r.Backing, r.Offset(phys), w, value)
	return true
}
