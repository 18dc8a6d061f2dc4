package bus_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/r3ksim/bus"
)

var _ = Describe("FastMap", func() {
	var (
		memory  *bus.Memory
		fastMap *bus.FastMap
	)

	BeforeEach(func() {
		memory = bus.NewMemory()
		fastMap = bus.NewFastMap()
		fastMap.Rebuild(memory.Regions())
	})

	It("should resolve RAM and BIOS pages", func() {
		_, ok := fastMap.Lookup(0x00001000)
		Expect(ok).To(BeTrue())

		_, ok = fastMap.Lookup(bus.BIOSBase + 0x1000)
		Expect(ok).To(BeTrue())

		_, ok = fastMap.Lookup(0x1F801000)
		Expect(ok).To(BeFalse())
	})

	It("should share storage with the bus", func() {
		h, ok := fastMap.Lookup(0x2000)
		Expect(ok).To(BeTrue())
		Expect(fastMap.Write(h, 0x2000, bus.Word, 0xCAFEBABE)).To(BeTrue())

		Expect(memory.Read32(0x2000)).To(Equal(uint32(0xCAFEBABE)))

		v, ticks, ok := fastMap.Read(h, 0x2000, bus.Word)
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(uint32(0xCAFEBABE)))
		Expect(ticks).To(Equal(bus.DefaultRAMTicks))
	})

	It("should refuse direct writes to ROM", func() {
		h, ok := fastMap.Lookup(bus.BIOSBase)
		Expect(ok).To(BeTrue())
		Expect(fastMap.Write(h, bus.BIOSBase, bus.Word, 1)).To(BeFalse())
	})

	It("should refuse stale handles after a rebuild", func() {
		h, _ := fastMap.Lookup(0x2000)
		gen := fastMap.Generation()

		fastMap.Rebuild(memory.Regions())

		Expect(fastMap.Generation()).To(BeNumerically(">", gen))
		_, _, ok := fastMap.Read(h, 0x2000, bus.Word)
		Expect(ok).To(BeFalse())
	})

	It("should resolve nothing after a clear", func() {
		fastMap.Clear()

		_, ok := fastMap.Lookup(0x2000)
		Expect(ok).To(BeFalse())
	})
})
