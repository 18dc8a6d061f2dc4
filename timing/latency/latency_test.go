package latency_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/r3ksim/timing/latency"
)

var _ = Describe("Latency", func() {
	var table *latency.Table

	BeforeEach(func() {
		table = latency.NewTable()
	})

	Describe("Default Timing Values", func() {
		It("should charge one tick per instruction", func() {
			Expect(table.InstructionTicks()).To(Equal(int32(1)))
		})

		It("should have free cache hits", func() {
			Expect(table.ICacheHitTicks()).To(BeZero())
			Expect(table.DCacheHitTicks()).To(BeZero())
			Expect(table.ScratchpadTicks()).To(BeZero())
		})

		It("should have the console divider latency", func() {
			Expect(table.DivTicks()).To(Equal(int32(36)))
		})

		It("should validate", func() {
			Expect(table.Config().Validate()).To(Succeed())
		})
	})

	Describe("Cache fills", func() {
		It("should charge one access plus streamed words", func() {
			Expect(table.ICacheFillTicks(6, 4)).To(Equal(int32(9)))
			Expect(table.ICacheFillTicks(24, 1)).To(Equal(int32(24)))
			Expect(table.DCacheFillTicks(6, 4)).To(Equal(int32(9)))
		})

		It("should charge nothing for empty fills", func() {
			Expect(table.ICacheFillTicks(6, 0)).To(BeZero())
		})
	})

	Describe("Multiplier latency", func() {
		DescribeTable("by operand width",
			func(rs uint32, signed bool, expected int32) {
				Expect(table.MultTicks(rs, signed)).To(Equal(expected))
			},
			Entry("small unsigned", uint32(0x7FF), false, int32(6)),
			Entry("medium unsigned", uint32(0x800), false, int32(9)),
			Entry("large unsigned", uint32(0x100000), false, int32(13)),
			Entry("small negative signed", uint32(0xFFFFFFFF), true, int32(6)),
			Entry("large negative unsigned", uint32(0xFFFFFFFF), false, int32(13)),
			Entry("medium negative signed", uint32(0xFFFF0000), true, int32(9)),
		)
	})

	Describe("GTE command latency", func() {
		It("should look up named commands", func() {
			Expect(table.GTECommandTicks(0x01)).To(Equal(int32(15)))
			Expect(table.GTECommandTicks(0x30)).To(Equal(int32(23)))
			Expect(table.GTECommandTicks(0x3F)).To(Equal(int32(39)))
		})

		It("should fall back to the default for unnamed commands", func() {
			Expect(table.GTECommandTicks(0x02)).To(Equal(int32(8)))
		})

		It("should honor overrides", func() {
			config := latency.DefaultTimingConfig()
			config.GTECommandTicks["RTPS"] = 99
			table = latency.NewTableWithConfig(config)

			Expect(table.GTECommandTicks(0x01)).To(Equal(int32(99)))
		})
	})

	Describe("TimingConfig", func() {
		var tmpDir string

		BeforeEach(func() {
			var err error
			tmpDir, err = os.MkdirTemp("", "latency-test")
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			os.RemoveAll(tmpDir)
		})

		It("should round trip through JSON", func() {
			config := latency.DefaultTimingConfig()
			config.DivTicks = 40
			path := filepath.Join(tmpDir, "timing.json")

			Expect(config.SaveConfig(path)).To(Succeed())
			loaded, err := latency.LoadConfig(path)

			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(config))
		})

		It("should load partial YAML over the defaults", func() {
			path := filepath.Join(tmpDir, "timing.yaml")
			yamlData := "ram_read_ticks: 5\ngte_command_ticks:\n  NCLIP: 2\n"
			Expect(os.WriteFile(path, []byte(yamlData), 0644)).To(Succeed())

			loaded, err := latency.LoadConfig(path)

			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.RAMReadTicks).To(Equal(int32(5)))
			Expect(loaded.BIOSReadTicks).To(Equal(int32(24)))
			Expect(loaded.GTECommandTicks["NCLIP"]).To(Equal(int32(2)))
			Expect(loaded.GTECommandTicks["RTPS"]).To(Equal(int32(15)))
		})

		It("should report missing files", func() {
			_, err := latency.LoadConfig(filepath.Join(tmpDir, "missing.json"))
			Expect(err).To(MatchError(ContainSubstring("failed to read")))
		})

		It("should report malformed files", func() {
			path := filepath.Join(tmpDir, "bad.json")
			Expect(os.WriteFile(path, []byte("{"), 0644)).To(Succeed())

			_, err := latency.LoadConfig(path)
			Expect(err).To(MatchError(ContainSubstring("failed to parse")))
		})

		It("should reject a zero instruction cost", func() {
			config := latency.DefaultTimingConfig()
			config.InstructionTicks = 0
			Expect(config.Validate()).To(MatchError(ContainSubstring("instruction_ticks")))
		})

		It("should reject unknown GTE commands", func() {
			config := latency.DefaultTimingConfig()
			config.GTECommandTicks["FOO"] = 1
			Expect(config.Validate()).To(MatchError(ContainSubstring("FOO")))
		})

		It("should reject misordered multiplier latencies", func() {
			config := latency.DefaultTimingConfig()
			config.MultTicksSmall = 20
			Expect(config.Validate()).NotTo(Succeed())
		})

		It("should deep copy on Clone", func() {
			config := latency.DefaultTimingConfig()
			clone := config.Clone()
			clone.GTECommandTicks["RTPS"] = 1

			Expect(config.GTECommandTicks["RTPS"]).To(Equal(int32(15)))
		})
	})
})
