package bus_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/r3ksim/bus"
)

type registerDevice struct {
	regs   map[uint32]uint32
	reads  int
	writes int
}

func (d *registerDevice) ReadDevice(offset uint32, w bus.Width) (uint32, error) {
	d.reads++
	if offset == 0xFC {
		return 0, errors.New("unimplemented register")
	}
	return d.regs[offset], nil
}

func (d *registerDevice) WriteDevice(offset uint32, w bus.Width, value uint32) error {
	d.writes++
	d.regs[offset] = value
	return nil
}

type peekableDevice struct {
	registerDevice
}

func (d *peekableDevice) PeekDevice(offset uint32, w bus.Width) (uint32, bool) {
	return d.regs[offset], true
}

var _ = Describe("Memory", func() {
	var memory *bus.Memory

	BeforeEach(func() {
		memory = bus.NewMemory()
	})

	It("should read back little-endian words", func() {
		_, err := memory.Write(0x100, bus.Word, 0xDEADBEEF)
		Expect(err).NotTo(HaveOccurred())

		v, ticks, err := memory.Read(0x100, bus.Word)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(uint32(0xDEADBEEF)))
		Expect(ticks).To(Equal(bus.DefaultRAMTicks))
		Expect(memory.Read8(0x100)).To(Equal(uint8(0xEF)))
	})

	It("should mirror RAM across the 8 MiB window", func() {
		memory.Write32(0x00000010, 0x12345678)

		v, _, err := memory.Read(0x00600010, bus.Word)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(uint32(0x12345678)))
	})

	It("should discard bus writes to the BIOS", func() {
		Expect(memory.LoadBIOS([]byte{1, 2, 3, 4})).To(Succeed())

		_, err := memory.Write(bus.BIOSBase, bus.Word, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(memory.Read32(bus.BIOSBase)).To(Equal(uint32(0x04030201)))
	})

	It("should charge BIOS ticks on BIOS reads", func() {
		_, ticks, err := memory.Read(bus.BIOSBase+0x100, bus.Word)
		Expect(err).NotTo(HaveOccurred())
		Expect(ticks).To(Equal(bus.DefaultBIOSTicks))
	})

	It("should honor tick options", func() {
		memory = bus.NewMemory(bus.WithRAMTicks(3), bus.WithBIOSTicks(9))

		Expect(memory.Regions()[0].AccessTicks).To(Equal(int32(3)))
		Expect(memory.Regions()[1].AccessTicks).To(Equal(int32(9)))
	})

	It("should report bus errors for unmapped addresses", func() {
		_, _, err := memory.Read(0x1F000000, bus.Word)
		Expect(errors.Is(err, bus.ErrBusError)).To(BeTrue())

		_, err = memory.Write(0x1F000000, bus.Word, 0)
		Expect(errors.Is(err, bus.ErrBusError)).To(BeTrue())
	})

	It("should reject oversized BIOS images", func() {
		Expect(memory.LoadBIOS(make([]byte, bus.BIOSSize+1))).NotTo(Succeed())
	})

	Describe("device windows", func() {
		var dev *registerDevice

		BeforeEach(func() {
			dev = &registerDevice{regs: map[uint32]uint32{}}
			Expect(memory.MapDevice("timers", 0x1F801100, 0x100, dev, 2)).To(Succeed())
		})

		It("should route accesses to the device with window offsets", func() {
			ticks, err := memory.Write(0x1F801104, bus.Word, 0xAB)
			Expect(err).NotTo(HaveOccurred())
			Expect(ticks).To(Equal(int32(2)))

			v, _, err := memory.Read(0x1F801104, bus.Word)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(uint32(0xAB)))
			Expect(dev.regs).To(HaveKeyWithValue(uint32(4), uint32(0xAB)))
		})

		It("should wrap device errors", func() {
			_, _, err := memory.Read(0x1F8011FC, bus.Word)
			Expect(err).To(MatchError(ContainSubstring("timers read")))
		})

		It("should refuse safe reads from devices without a peek", func() {
			_, ok := memory.SafeRead(0x1F801104, bus.Word)
			Expect(ok).To(BeFalse())
			Expect(dev.reads).To(BeZero())
		})

		It("should refuse overlapping windows", func() {
			Expect(memory.MapDevice("dup", 0x1F801180, 0x10, dev, 0)).NotTo(Succeed())
			Expect(memory.MapDevice("ram", 0x00000000, 0x10, dev, 0)).NotTo(Succeed())
		})

		It("should peek devices that support it", func() {
			peek := &peekableDevice{registerDevice{regs: map[uint32]uint32{0: 7}}}
			Expect(memory.MapDevice("spu", 0x1F801C00, 0x400, peek, 0)).To(Succeed())

			v, ok := memory.SafeRead(0x1F801C00, bus.Word)
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal(uint32(7)))
			Expect(peek.reads).To(BeZero())
		})
	})
})
