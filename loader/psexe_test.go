package loader_test

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/r3ksim/bus"
	"github.com/sarchlab/r3ksim/emu"
	"github.com/sarchlab/r3ksim/insts"
	"github.com/sarchlab/r3ksim/loader"
)

type psexeFields struct {
	pc0, gp0     uint32
	tAddr        uint32
	bAddr, bSize uint32
	sAddr, sSize uint32
}

func buildPSEXE(f psexeFields, text []byte) []byte {
	img := make([]byte, 0x800+len(text))
	copy(img, "PS-X EXE")
	put := func(off int, v uint32) {
		binary.LittleEndian.PutUint32(img[off:], v)
	}
	put(0x10, f.pc0)
	put(0x14, f.gp0)
	put(0x18, f.tAddr)
	put(0x1C, uint32(len(text)))
	put(0x28, f.bAddr)
	put(0x2C, f.bSize)
	put(0x30, f.sAddr)
	put(0x34, f.sSize)
	copy(img[0x800:], text)
	return img
}

var _ = Describe("PS-X EXE Loader", func() {
	text := codeBytes(
		insts.ADDIU(2, 0, 7),
		insts.NOP,
	)

	It("should decode the header", func() {
		img := buildPSEXE(psexeFields{pc0: 0x80010000, gp0: 0x80018000, tAddr: 0x80010000}, text)

		h, err := loader.ParsePSEXEHeader(img)
		Expect(err).NotTo(HaveOccurred())
		Expect(h.PC0).To(Equal(uint32(0x80010000)))
		Expect(h.GP0).To(Equal(uint32(0x80018000)))
		Expect(h.TextAddr).To(Equal(uint32(0x80010000)))
		Expect(h.TextSize).To(Equal(uint32(len(text))))
	})

	It("should build the program from text and bss", func() {
		img := buildPSEXE(psexeFields{
			pc0: 0x80010000, tAddr: 0x80010000,
			bAddr: 0x80020000, bSize: 0x100,
			sAddr: 0x801FFF00, sSize: 0xF0,
		}, text)

		prog, err := loader.ParsePSEXE(img)
		Expect(err).NotTo(HaveOccurred())
		Expect(prog.Format).To(Equal(loader.FormatPSEXE))
		Expect(prog.EntryPoint).To(Equal(uint32(0x80010000)))
		Expect(prog.InitialSP).To(Equal(uint32(0x801FFFF0)))
		Expect(prog.Segments).To(HaveLen(2))
		Expect(prog.Segments[0].Data).To(Equal(text))
		Expect(prog.Segments[1].VirtAddr).To(Equal(uint32(0x80020000)))
		Expect(prog.Segments[1].MemSize).To(Equal(uint32(0x100)))
	})

	It("should use the default stack without s_addr", func() {
		img := buildPSEXE(psexeFields{pc0: 0x80010000, tAddr: 0x80010000}, text)

		prog, err := loader.ParsePSEXE(img)
		Expect(err).NotTo(HaveOccurred())
		Expect(prog.InitialSP).To(Equal(loader.DefaultStackTop))
	})

	It("should reject truncated images", func() {
		img := buildPSEXE(psexeFields{pc0: 0x80010000, tAddr: 0x80010000}, text)

		_, err := loader.ParsePSEXE(img[:0x400])
		Expect(err).To(HaveOccurred())

		binary.LittleEndian.PutUint32(img[0x1C:], 0x1000)
		_, err = loader.ParsePSEXE(img)
		Expect(err).To(HaveOccurred())
	})

	It("should reject misaligned entry points", func() {
		img := buildPSEXE(psexeFields{pc0: 0x80010002, tAddr: 0x80010000}, text)

		_, err := loader.ParsePSEXE(img)
		Expect(err).To(HaveOccurred())
	})

	It("should be picked by Load from its magic", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "prog.exe")
		img := buildPSEXE(psexeFields{pc0: 0x80010000, tAddr: 0x80010000}, text)
		Expect(os.WriteFile(path, img, 0644)).To(Succeed())

		prog, err := loader.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(prog.Format).To(Equal(loader.FormatPSEXE))
	})
})

var _ = Describe("Program.Install", func() {
	It("should copy segments, clear bss and point the CPU at the entry", func() {
		mem := bus.NewMemory()
		Expect(mem.LoadWords(0x20000, 0xDEADBEEF)).To(Succeed())

		logger := logrus.New()
		logger.SetOutput(io.Discard)
		cpu := emu.NewCPU(mem, emu.WithLogger(logger))

		img := buildPSEXE(psexeFields{
			pc0: 0x80010000, gp0: 0x80018000, tAddr: 0x80010000,
			bAddr: 0x80020000, bSize: 0x10,
		}, codeBytes(insts.ADDIU(2, 0, 7), insts.NOP))
		prog, err := loader.ParsePSEXE(img)
		Expect(err).NotTo(HaveOccurred())

		Expect(prog.Install(mem, cpu)).To(Succeed())

		Expect(mem.Read32(0x10000)).To(Equal(insts.ADDIU(2, 0, 7)))
		Expect(mem.Read32(0x20000)).To(BeZero())
		Expect(cpu.State().PC).To(Equal(uint32(0x80010000)))
		Expect(cpu.ReadReg(emu.RegSP)).To(Equal(loader.DefaultStackTop))
		Expect(cpu.ReadReg(emu.RegGP)).To(Equal(uint32(0x80018000)))

		cpu.SingleStep()
		Expect(cpu.ReadReg(emu.RegV0)).To(Equal(uint32(7)))
	})
})
