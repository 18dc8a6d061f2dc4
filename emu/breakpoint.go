package emu

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// DefaultStepOutSearchLimit bounds the scan for a return instruction.
const DefaultStepOutSearchLimit = 1000

// Condition decides whether a breakpoint stays installed after a hit.
type Condition interface {
	// Evaluate is called with the breakpoint address. Returning false
	// removes the breakpoint.
	Evaluate(addr uint32) bool
}

// ConditionFunc adapts a function to Condition.
type ConditionFunc func(addr uint32) bool

// Evaluate calls f(addr).
func (f ConditionFunc) Evaluate(addr uint32) bool {
	return f(addr)
}

// Breakpoint is an execution breakpoint.
type Breakpoint struct {
	Address   uint32
	Condition Condition
	Number    uint32
	HitCount  uint32
	AutoClear bool
	Enabled   bool
}

// AddBreakpoint installs a breakpoint at addr. It returns false if one
// already exists there.
func (c *CPU) AddBreakpoint(addr uint32, autoClear, enabled bool) bool {
	return c.addBreakpoint(&Breakpoint{
		Address:   addr,
		AutoClear: autoClear,
		Enabled:   enabled,
	})
}

// AddBreakpointWithCondition installs an enabled breakpoint whose condition
// is evaluated on every hit instead of stopping the core.
func (c *CPU) AddBreakpointWithCondition(addr uint32, cond Condition) bool {
	return c.addBreakpoint(&Breakpoint{
		Address:   addr,
		Condition: cond,
		Enabled:   true,
	})
}

func (c *CPU) addBreakpoint(bp *Breakpoint) bool {
	if _, ok := c.breakpoints.Get(bp.Address); ok {
		return false
	}

	c.breakpointCounter++
	bp.Number = c.breakpointCounter
	c.breakpoints.Set(bp.Address, bp)

	if bp.Condition == nil && !bp.AutoClear {
		c.logger.WithFields(logrus.Fields{
			"number": bp.Number,
			"addr":   fmt.Sprintf("0x%08X", bp.Address),
		}).Info("added breakpoint")
	}

	c.ExecutionModeChanged()
	return true
}

// RemoveBreakpoint removes the breakpoint at addr.
func (c *CPU) RemoveBreakpoint(addr uint32) bool {
	if _, ok := c.breakpoints.Delete(addr); !ok {
		return false
	}
	if addr == c.lastBreakpointCheckPC {
		c.lastBreakpointCheckPC = invalidPC
	}
	c.ExecutionModeChanged()
	return true
}

// ClearBreakpoints removes every breakpoint.
func (c *CPU) ClearBreakpoints() {
	var addrs []uint32
	for pair := c.breakpoints.Oldest(); pair != nil; pair = pair.Next() {
		addrs = append(addrs, pair.Key)
	}
	for _, addr := range addrs {
		c.breakpoints.Delete(addr)
	}
	c.breakpointCounter = 0
	c.lastBreakpointCheckPC = invalidPC
	c.ExecutionModeChanged()
}

// HasAnyBreakpoints returns true if any breakpoint is installed.
func (c *CPU) HasAnyBreakpoints() bool {
	return c.breakpoints.Len() > 0
}

// HasBreakpointAtAddress returns true if a breakpoint is installed at addr.
func (c *CPU) HasBreakpointAtAddress(addr uint32) bool {
	_, ok := c.breakpoints.Get(addr)
	return ok
}

// GetBreakpointList returns copies of the installed breakpoints in the
// order they were added.
func (c *CPU) GetBreakpointList(includeAutoClear, includeConditions bool) []Breakpoint {
	var list []Breakpoint
	for pair := c.breakpoints.Oldest(); pair != nil; pair = pair.Next() {
		bp := pair.Value
		if bp.AutoClear && !includeAutoClear {
			continue
		}
		if bp.Condition != nil && !includeConditions {
			continue
		}
		list = append(list, *bp)
	}
	return list
}

// AddStepOverBreakpoint installs an auto-clear breakpoint after the call at
// PC and its delay slot, or on the next instruction if PC is not a call.
// It fails if the instruction cannot be read or the delay slot holds a
// branch.
func (c *CPU) AddStepOverBreakpoint() bool {
	pc := c.state.PC

	word, ok := c.SafeReadInstruction(pc)
	if !ok {
		return false
	}
	if !c.decoder.Decode(word).IsCall() {
		return c.AddBreakpoint(pc+4, true, true)
	}

	slot, ok := c.SafeReadInstruction(pc + 4)
	if !ok {
		return false
	}
	if c.decoder.Decode(slot).IsBranch() {
		c.logger.WithField("pc", fmt.Sprintf("0x%08X", pc)).
			Warn("cannot step over a branch in a delay slot")
		return false
	}

	c.logger.WithField("target", fmt.Sprintf("0x%08X", pc+8)).Info("stepping over")
	return c.AddBreakpoint(pc+8, true, true)
}

// AddStepOutBreakpoint scans up to maxInstructions forward from PC for
// "jr $ra" and installs an auto-clear breakpoint on it.
func (c *CPU) AddStepOutBreakpoint(maxInstructions uint32) bool {
	addr := c.state.PC
	for i := uint32(0); i < maxInstructions; i++ {
		addr += 4

		word, ok := c.SafeReadInstruction(addr)
		if !ok {
			c.logger.WithField("addr", fmt.Sprintf("0x%08X", addr)).
				Warn("instruction read failed while searching for function end")
			return false
		}

		if c.decoder.Decode(word).IsReturn() {
			c.logger.WithField("target", fmt.Sprintf("0x%08X", addr)).Info("stepping out")
			return c.AddBreakpoint(addr, true, true)
		}
	}

	c.logger.WithFields(logrus.Fields{
		"pc":    fmt.Sprintf("0x%08X", c.state.PC),
		"limit": maxInstructions,
	}).Warn("no return instruction found for step-out")
	return false
}

// checkBreakpoint evaluates the breakpoint at pc and returns true if the
// core must stop. A pc that just stopped the core is skipped once so that
// execution can resume past it.
func (c *CPU) checkBreakpoint(pc uint32) bool {
	if pc == c.lastBreakpointCheckPC {
		return false
	}
	c.lastBreakpointCheckPC = pc

	bp, ok := c.breakpoints.Get(pc)
	if !ok || !bp.Enabled {
		return false
	}

	bp.HitCount++

	stop := false
	remove := bp.AutoClear
	if bp.Condition != nil {
		if !bp.Condition.Evaluate(pc) {
			remove = true
		}
	} else {
		stop = true
		c.logger.WithFields(logrus.Fields{
			"number": bp.Number,
			"addr":   fmt.Sprintf("0x%08X", pc),
			"hits":   bp.HitCount,
		}).Info("hit breakpoint")
	}

	if remove {
		c.breakpoints.Delete(pc)
		c.ExecutionModeChanged()
	}

	return stop
}
