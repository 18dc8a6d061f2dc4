package emu

import (
	"fmt"
	"io"

	"github.com/sarchlab/r3ksim/statewrap"
	"github.com/sarchlab/r3ksim/timing/cache"
	"github.com/sarchlab/r3ksim/timing/pipeline"
)

// StateVersion is the save-state layout version of the core.
const StateVersion uint32 = 2

func doRegFile(sw *statewrap.StateWrapper, r *RegFile) {
	sw.DoMarker("regs")
	sw.DoUint32Array(r.R[:])
	sw.DoUint32(&r.HI)
	sw.DoUint32(&r.LO)
}

func doCop0(sw *statewrap.StateWrapper, cop0 *Cop0) {
	sw.DoMarker("cop0")
	for _, v := range []*uint32{
		&cop0.BPC, &cop0.BDA, &cop0.TAR, &cop0.DCIC, &cop0.BadVaddr,
		&cop0.BDAM, &cop0.BPCM, &cop0.SR, &cop0.CAUSE, &cop0.EPC, &cop0.PRID,
	} {
		sw.DoUint32(v)
	}
}

func doLoadDelay(sw *statewrap.StateWrapper, l *pipeline.LoadDelay) {
	sw.DoMarker("load_delay")
	sw.DoUint8(&l.Reg)
	sw.DoUint32(&l.Value)
	sw.DoUint8(&l.NextReg)
	sw.DoUint32(&l.NextValue)
}

// doDataCache walks the true data cache lines. lines must have the cache's
// geometry.
func doDataCache(sw *statewrap.StateWrapper, lines []cache.Line) {
	sw.DoMarker("data_cache")
	sw.DoLength(len(lines))
	for i := range lines {
		sw.DoUint32(&lines[i].Tag)
		sw.DoBool(&lines[i].Valid)
		sw.DoBytes(lines[i].Data)
	}
}

// doState describes the layout of State. Reads and writes use the same
// sequence.
func (c *CPU) doState(sw *statewrap.StateWrapper, s *State) {
	sw.DoMarker("cpu")
	sw.DoInt32(&s.PendingTicks)
	sw.DoInt32(&s.Downcount)
	sw.DoInt32(&s.GTECompletionTick)
	sw.DoInt32(&s.MulDivCompletionTick)

	doRegFile(sw, &s.Regs)
	doCop0(sw, &s.Cop0)

	sw.DoMarker("pipeline")
	sw.DoUint32(&s.PC)
	sw.DoUint32(&s.NPC)

	current := s.CurrentInstruction.Word
	sw.DoUint32(&current)
	if sw.IsReading() {
		s.CurrentInstruction = c.decoder.Decode(current)
	}
	sw.DoUint32(&s.CurrentInstructionPC)
	sw.DoBool(&s.CurrentInstructionInBranchDelaySlot)
	sw.DoBool(&s.CurrentInstructionWasBranchTaken)
	sw.DoUint32(&s.NextInstruction)
	sw.DoBool(&s.Branch.NextIsDelaySlot)
	sw.DoBool(&s.Branch.Taken)
	sw.DoBool(&s.ExceptionRaised)
	sw.DoBool(&s.BusError)
	doLoadDelay(sw, &s.LoadDelay)

	sw.DoMarker("cache_control")
	cc := s.CacheControl.Pack()
	sw.DoUint32(&cc)
	if sw.IsReading() {
		s.CacheControl = UnpackCacheControl(cc)
	}

	sw.DoMarker("gte")
	sw.DoUint32Array(s.GTERegs[:])

	sw.DoMarker("dcache")
	sw.DoBytes(s.DCache[:])

	sw.DoMarker("icache")
	sw.DoUint32Array(s.ICache.Tags[:])
	sw.DoUint32Array(s.ICache.Data[:])
}

func validateState(s *State) error {
	l := &s.LoadDelay
	if l.Reg > pipeline.NoReg || l.NextReg > pipeline.NoReg {
		return fmt.Errorf("load delay register out of range: %w", statewrap.ErrShapeMismatch)
	}
	if s.PC&3 != 0 || s.NPC&3 != 0 {
		return fmt.Errorf("misaligned program counter 0x%08X: %w", s.PC, statewrap.ErrShapeMismatch)
	}
	return nil
}

// DoState captures or restores the core state. A restore that does not
// match the stream leaves the core untouched and returns an error wrapping
// statewrap.ErrShapeMismatch or statewrap.ErrVersionMismatch.
func (c *CPU) DoState(sw *statewrap.StateWrapper) error {
	if !sw.IsReading() {
		c.doState(sw, &c.state)
		doDataCache(sw, c.dcache.Lines())
		if err := sw.Err(); err != nil {
			return fmt.Errorf("saving CPU state: %w", err)
		}
		return nil
	}

	restored := c.state
	c.doState(sw, &restored)
	lines := c.dcache.Lines()
	doDataCache(sw, lines)
	if err := sw.Err(); err != nil {
		return fmt.Errorf("restoring CPU state: %w", err)
	}
	if err := validateState(&restored); err != nil {
		return fmt.Errorf("restoring CPU state: %w", err)
	}

	if err := c.dcache.SetLines(lines); err != nil {
		return fmt.Errorf("restoring CPU state: %w: %w", statewrap.ErrShapeMismatch, err)
	}
	c.state = restored
	c.UpdateMemoryPointers()
	c.lastBreakpointCheckPC = invalidPC
	c.ExecutionModeChanged()
	return nil
}

// SaveState writes a versioned snapshot of the core to w.
func (c *CPU) SaveState(w io.Writer) error {
	return c.DoState(statewrap.NewWriter(w, StateVersion))
}

// LoadState restores a snapshot written by SaveState.
func (c *CPU) LoadState(r io.Reader) error {
	sw, err := statewrap.NewReader(r, StateVersion)
	if err != nil {
		return fmt.Errorf("restoring CPU state: %w", err)
	}
	return c.DoState(sw)
}
