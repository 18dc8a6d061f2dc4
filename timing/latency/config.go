package latency

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/r3ksim/insts"
)

// TimingConfig holds tick costs for the CPU core and its caches.
// Values default to the console's measured behavior.
type TimingConfig struct {
	// InstructionTicks is the base cost charged for every retired
	// instruction. Default: 1 tick.
	InstructionTicks int32 `json:"instruction_ticks" yaml:"instruction_ticks"`

	// ICacheHitTicks is the extra cost of an instruction cache hit.
	// Default: 0 ticks.
	ICacheHitTicks int32 `json:"icache_hit_ticks" yaml:"icache_hit_ticks"`

	// ICacheFillWordTicks is the cost of each additional word streamed
	// into an instruction cache line after the first. Default: 1 tick.
	ICacheFillWordTicks int32 `json:"icache_fill_word_ticks" yaml:"icache_fill_word_ticks"`

	// DCacheHitTicks is the extra cost of a data cache hit. Default: 0 ticks.
	DCacheHitTicks int32 `json:"dcache_hit_ticks" yaml:"dcache_hit_ticks"`

	// DCacheFillWordTicks is the cost of each additional word of a data
	// cache line fill. Default: 1 tick.
	DCacheFillWordTicks int32 `json:"dcache_fill_word_ticks" yaml:"dcache_fill_word_ticks"`

	// ScratchpadTicks is the cost of a scratchpad access. Default: 0 ticks.
	ScratchpadTicks int32 `json:"scratchpad_ticks" yaml:"scratchpad_ticks"`

	// RAMReadTicks is the bus cost of a main RAM read. Default: 6 ticks.
	RAMReadTicks int32 `json:"ram_read_ticks" yaml:"ram_read_ticks"`

	// BIOSReadTicks is the bus cost of a BIOS ROM read. Default: 24 ticks.
	BIOSReadTicks int32 `json:"bios_read_ticks" yaml:"bios_read_ticks"`

	// MultTicksSmall, MultTicksMedium and MultTicksLarge are the multiplier
	// latencies for operands of up to 11 bits, up to 20 bits, and wider.
	MultTicksSmall  int32 `json:"mult_ticks_small" yaml:"mult_ticks_small"`
	MultTicksMedium int32 `json:"mult_ticks_medium" yaml:"mult_ticks_medium"`
	MultTicksLarge  int32 `json:"mult_ticks_large" yaml:"mult_ticks_large"`

	// DivTicks is the divider latency. Default: 36 ticks.
	DivTicks int32 `json:"div_ticks" yaml:"div_ticks"`

	// GTEDefaultTicks is the latency of a GTE command with no entry in
	// GTECommandTicks. Default: 8 ticks.
	GTEDefaultTicks int32 `json:"gte_default_ticks" yaml:"gte_default_ticks"`

	// GTECommandTicks maps GTE command mnemonics to their latency.
	GTECommandTicks map[string]int32 `json:"gte_command_ticks" yaml:"gte_command_ticks"`
}

// DefaultGTECommandTicks returns the console's GTE command latencies.
func DefaultGTECommandTicks() map[string]int32 {
	return map[string]int32{
		"RTPS": 15, "NCLIP": 8, "OP": 6, "DPCS": 8, "INTPL": 8, "MVMVA": 8,
		"NCDS": 19, "CDP": 13, "NCDT": 44, "NCCS": 17, "CC": 11, "NCS": 14,
		"NCT": 30, "SQR": 5, "DCPL": 8, "DPCT": 17, "AVSZ3": 5, "AVSZ4": 6,
		"RTPT": 23, "GPF": 5, "GPL": 5, "NCCT": 39,
	}
}

// DefaultTimingConfig returns a TimingConfig with the console's default values.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		InstructionTicks:    1,
		ICacheHitTicks:      0,
		ICacheFillWordTicks: 1,
		DCacheHitTicks:      0,
		DCacheFillWordTicks: 1,
		ScratchpadTicks:     0,
		RAMReadTicks:        6,
		BIOSReadTicks:       24,
		MultTicksSmall:      6,
		MultTicksMedium:     9,
		MultTicksLarge:      13,
		DivTicks:            36,
		GTEDefaultTicks:     8,
		GTECommandTicks:     DefaultGTECommandTicks(),
	}
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// LoadConfig loads a TimingConfig from a JSON or YAML file, chosen by the
// file extension. Fields missing from the file keep their defaults.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON or YAML file.
func (c *TimingConfig) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that all tick values are usable.
func (c *TimingConfig) Validate() error {
	if c.InstructionTicks <= 0 {
		return fmt.Errorf("instruction_ticks must be > 0")
	}

	nonNegative := map[string]int32{
		"icache_hit_ticks":       c.ICacheHitTicks,
		"icache_fill_word_ticks": c.ICacheFillWordTicks,
		"dcache_hit_ticks":       c.DCacheHitTicks,
		"dcache_fill_word_ticks": c.DCacheFillWordTicks,
		"scratchpad_ticks":       c.ScratchpadTicks,
		"ram_read_ticks":         c.RAMReadTicks,
		"bios_read_ticks":        c.BIOSReadTicks,
		"div_ticks":              c.DivTicks,
		"gte_default_ticks":      c.GTEDefaultTicks,
	}
	for name, v := range nonNegative {
		if v < 0 {
			return fmt.Errorf("%s must be >= 0", name)
		}
	}

	if c.MultTicksSmall > c.MultTicksMedium || c.MultTicksMedium > c.MultTicksLarge {
		return fmt.Errorf("mult ticks must be ordered small <= medium <= large")
	}

	known := make(map[string]bool)
	for _, name := range insts.GTECommandNames() {
		known[name] = true
	}
	for name, v := range c.GTECommandTicks {
		if !known[name] {
			return fmt.Errorf("unknown GTE command %q in gte_command_ticks", name)
		}
		if v < 0 {
			return fmt.Errorf("gte_command_ticks[%s] must be >= 0", name)
		}
	}

	return nil
}

// Clone returns a deep copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	clone.GTECommandTicks = make(map[string]int32, len(c.GTECommandTicks))
	for k, v := range c.GTECommandTicks {
		clone.GTECommandTicks[k] = v
	}
	return &clone
}
