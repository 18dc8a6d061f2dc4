package cache_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/r3ksim/bus"
	"github.com/sarchlab/r3ksim/timing/cache"
)

var _ = Describe("Cache", func() {
	var (
		c       *cache.Cache
		memory  *bus.Memory
		backing *cache.BusBacking
	)

	BeforeEach(func() {
		memory = bus.NewMemory()
		backing = cache.NewBusBacking(memory)
		c = cache.New(cache.DefaultDCacheConfig(), backing)
	})

	Describe("Read operations", func() {
		It("should miss on cold cache and charge a line fill", func() {
			memory.Write32(0x1000, 0xDEADBEEF)

			result, err := c.Read(0x1000, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Hit).To(BeFalse())
			Expect(result.Ticks).To(Equal(bus.DefaultRAMTicks + 3))
			Expect(result.Data).To(Equal(uint32(0xDEADBEEF)))

			stats := c.Stats()
			Expect(stats.Reads).To(Equal(uint64(1)))
			Expect(stats.Misses).To(Equal(uint64(1)))
		})

		It("should hit on different addresses in same cache line", func() {
			memory.Write32(0x1000, 0x11111111)
			memory.Write32(0x100C, 0x22222222)

			_, err := c.Read(0x1000, 4)
			Expect(err).NotTo(HaveOccurred())

			result, err := c.Read(0x100C, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Hit).To(BeTrue())
			Expect(result.Ticks).To(BeZero())
			Expect(result.Data).To(Equal(uint32(0x22222222)))
		})

		It("should read sub-word values", func() {
			memory.Write32(0x1000, 0xAABBCCDD)

			result, err := c.Read(0x1001, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Data).To(Equal(uint32(0xCC)))
		})

		It("should evict conflicting lines in a direct mapped cache", func() {
			memory.Write32(0x1000, 1)
			memory.Write32(0x1400, 2)

			_, _ = c.Read(0x1000, 4)
			result, err := c.Read(0x1400, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Data).To(Equal(uint32(2)))

			result, _ = c.Read(0x1000, 4)
			Expect(result.Hit).To(BeFalse())
			Expect(c.Stats().Evictions).To(Equal(uint64(2)))
		})

		It("should report fill failures", func() {
			_, err := c.Read(0x1F000000, 4)
			Expect(errors.Is(err, bus.ErrBusError)).To(BeTrue())
			Expect(c.ValidLines()).To(BeZero())
		})
	})

	Describe("Write operations", func() {
		It("should write through without allocating", func() {
			result, err := c.Write(0x2000, 4, 0x12345678)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Hit).To(BeFalse())

			Expect(memory.Read32(0x2000)).To(Equal(uint32(0x12345678)))
			Expect(c.ValidLines()).To(BeZero())
		})

		It("should update resident lines", func() {
			_, _ = c.Read(0x2000, 4)

			result, err := c.Write(0x2000, 2, 0xBEEF)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Hit).To(BeTrue())

			read, _ := c.Read(0x2000, 4)
			Expect(read.Hit).To(BeTrue())
			Expect(read.Data).To(Equal(uint32(0xBEEF)))
			Expect(memory.Read32(0x2000)).To(Equal(uint32(0xBEEF)))
		})
	})

	Describe("Invalidation", func() {
		It("should miss after invalidating a line", func() {
			_, _ = c.Read(0x3000, 4)
			c.Invalidate(0x3000)

			result, _ := c.Read(0x3000, 4)
			Expect(result.Hit).To(BeFalse())
		})

		It("should clear everything on reset", func() {
			_, _ = c.Read(0x3000, 4)
			_, _ = c.Read(0x3010, 4)
			Expect(c.ValidLines()).To(Equal(2))

			c.Reset()

			Expect(c.ValidLines()).To(BeZero())
			Expect(c.Stats()).To(Equal(cache.Statistics{}))
		})
	})

	Describe("Line snapshots", func() {
		It("should restore resident lines into another cache", func() {
			memory.Write32(0x2004, 0x12345678)
			_, _ = c.Read(0x2004, 4)

			lines := c.Lines()
			Expect(lines).To(HaveLen(64))

			other := cache.New(cache.DefaultDCacheConfig(), backing)
			Expect(other.SetLines(lines)).To(Succeed())
			Expect(other.ValidLines()).To(Equal(1))

			memory.Write32(0x2004, 0)
			result, err := other.Read(0x2004, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Hit).To(BeTrue())
			Expect(result.Data).To(Equal(uint32(0x12345678)))
		})

		It("should copy line data", func() {
			_, _ = c.Read(0x2000, 4)
			lines := c.Lines()
			lines[0].Data[0] = 0xFF

			result, _ := c.Read(0x2000, 1)
			Expect(result.Data).To(BeZero())
		})

		It("should reject a snapshot of another geometry", func() {
			Expect(c.SetLines(make([]cache.Line, 3))).NotTo(Succeed())

			lines := c.Lines()
			lines[5].Data = lines[5].Data[:4]
			Expect(c.SetLines(lines)).NotTo(Succeed())
		})
	})
})
