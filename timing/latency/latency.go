// Package latency provides tick cost models for cycle-accurate simulation.
//
// The tick values follow the console's measured behavior and can be
// configured via TimingConfig.
package latency

import (
	"github.com/sarchlab/r3ksim/insts"
)

// Table provides tick cost lookups.
type Table struct {
	config *TimingConfig
	gte    [64]int32
}

// NewTable creates a new latency table with default timing values.
func NewTable() *Table {
	return NewTableWithConfig(DefaultTimingConfig())
}

// NewTableWithConfig creates a new latency table with custom timing configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	t := &Table{config: config}

	for fn := range t.gte {
		t.gte[fn] = config.GTEDefaultTicks
		if name := insts.GTECommandName(uint8(fn)); name != "" {
			if ticks, ok := config.GTECommandTicks[name]; ok {
				t.gte[fn] = ticks
			}
		}
	}

	return t
}

// InstructionTicks returns the base cost of one retired instruction.
func (t *Table) InstructionTicks() int32 {
	return t.config.InstructionTicks
}

// ICacheHitTicks returns the extra cost of an instruction cache hit.
func (t *Table) ICacheHitTicks() int32 {
	return t.config.ICacheHitTicks
}

// ICacheFillTicks returns the cost of filling words of a line from a
// region whose single access costs accessTicks.
func (t *Table) ICacheFillTicks(accessTicks int32, words int) int32 {
	if words <= 0 {
		return 0
	}
	return accessTicks + int32(words-1)*t.config.ICacheFillWordTicks
}

// DCacheHitTicks returns the extra cost of a data cache hit.
func (t *Table) DCacheHitTicks() int32 {
	return t.config.DCacheHitTicks
}

// DCacheFillTicks returns the cost of a data cache line fill.
func (t *Table) DCacheFillTicks(accessTicks int32, words int) int32 {
	if words <= 0 {
		return 0
	}
	return accessTicks + int32(words-1)*t.config.DCacheFillWordTicks
}

// ScratchpadTicks returns the cost of a scratchpad access.
func (t *Table) ScratchpadTicks() int32 {
	return t.config.ScratchpadTicks
}

// MultTicks returns the multiplier latency for the rs operand. Signed
// negative operands are timed by their one's complement.
func (t *Table) MultTicks(rs uint32, signed bool) int32 {
	v := rs
	if signed && int32(rs) < 0 {
		v = ^rs
	}

	switch {
	case v < 1<<11:
		return t.config.MultTicksSmall
	case v < 1<<20:
		return t.config.MultTicksMedium
	default:
		return t.config.MultTicksLarge
	}
}

// DivTicks returns the divider latency.
func (t *Table) DivTicks() int32 {
	return t.config.DivTicks
}

// GTECommandTicks returns the latency of a GTE command number.
func (t *Table) GTECommandTicks(function uint8) int32 {
	return t.gte[function&0x3F]
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
