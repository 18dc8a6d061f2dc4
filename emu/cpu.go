package emu

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/sarchlab/r3ksim/bus"
	"github.com/sarchlab/r3ksim/insts"
	"github.com/sarchlab/r3ksim/timing/cache"
	"github.com/sarchlab/r3ksim/timing/latency"
)

// DefaultTimeslice is the tick budget of one pass when no scheduler is
// attached.
const DefaultTimeslice int32 = 1 << 16

// PRIDValue is the processor revision reported by cop0r15.
const PRIDValue uint32 = 0x00000002

// invalidPC never matches a fetch address because fetches are aligned.
const invalidPC uint32 = 0xFFFFFFFF

// EventScheduler receives elapsed ticks whenever the downcount runs out and
// returns the tick budget until its next event.
type EventScheduler interface {
	RunEvents(elapsed int32) (next int32)
}

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Retired is false when a breakpoint stopped the core before the
	// instruction executed, or when the fetch behind it faulted.
	Retired bool

	// PC is the address of the instruction the step executed.
	PC uint32

	// Ticks is the number of ticks the step consumed.
	Ticks int32

	// Exception is true if the step raised an exception or took an
	// interrupt; Code identifies it.
	Exception bool
	Code      Exception

	// BreakpointHit is true if a breakpoint stopped the core.
	BreakpointHit bool
}

// FetchInfo describes the most recent instruction fetch.
type FetchInfo struct {
	Address uint32
	Ticks   int32
	Cached  bool
	Hit     bool
}

// CPU is the R3000A execution core.
type CPU struct {
	state State

	bus     bus.Bus
	fastMap *bus.FastMap
	dcache  *cache.Cache
	decoder *insts.Decoder
	timing  *latency.Table

	alu        *ALU
	branchUnit *BranchUnit
	lsu        *LoadStoreUnit

	gte       GTE
	scheduler EventScheduler
	profiler  Profiler
	logger    logrus.FieldLogger

	stdout      io.Writer
	traceWriter io.Writer
	traceOn     bool

	breakpoints           *orderedmap.OrderedMap[uint32, *Breakpoint]
	breakpointCounter     uint32
	lastBreakpointCheckPC uint32
	breakpointHit         bool
	singleStepping        bool

	exitRequested atomic.Bool
	modeChanged   atomic.Bool

	lastPage   uint32
	lastHandle bus.Handle
	fillBuf    [cache.ICacheWordsPerLine]uint32
	lastFetch  FetchInfo

	retire           RetireEvent
	stepException    bool
	stepCode         Exception
	instructionCount uint64
}

// CPUOption is a functional option for configuring the CPU.
type CPUOption func(*CPU)

// WithLogger sets the logger used for exceptions, cache control and
// debugger messages.
func WithLogger(l logrus.FieldLogger) CPUOption {
	return func(c *CPU) {
		c.logger = l
	}
}

// WithGTE attaches a geometry coprocessor implementation.
func WithGTE(g GTE) CPUOption {
	return func(c *CPU) {
		c.gte = g
	}
}

// WithProfiler attaches a profiler that is notified of every retirement.
func WithProfiler(p Profiler) CPUOption {
	return func(c *CPU) {
		c.profiler = p
	}
}

// WithScheduler attaches the event scheduler that refills the downcount.
func WithScheduler(s EventScheduler) CPUOption {
	return func(c *CPU) {
		c.scheduler = s
	}
}

// WithTraceWriter sets the execution log destination.
func WithTraceWriter(w io.Writer) CPUOption {
	return func(c *CPU) {
		c.traceWriter = w
	}
}

// WithStdout sets the writer used by DisassembleAndPrint.
func WithStdout(w io.Writer) CPUOption {
	return func(c *CPU) {
		c.stdout = w
	}
}

// WithTimingTable sets the tick costs.
func WithTimingTable(t *latency.Table) CPUOption {
	return func(c *CPU) {
		c.timing = t
	}
}

// NewCPU creates a CPU attached to b and resets it.
func NewCPU(b bus.Bus, opts ...CPUOption) *CPU {
	c := &CPU{
		bus:         b,
		fastMap:     bus.NewFastMap(),
		decoder:     insts.NewDecoder(),
		timing:      latency.NewTable(),
		logger:      logrus.StandardLogger(),
		stdout:      os.Stdout,
		traceWriter: io.Discard,
		breakpoints: orderedmap.New[uint32, *Breakpoint](),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.gte == nil {
		c.gte = NewPassiveGTE(c.timing)
	}

	cfg := c.timing.Config()
	dcfg := cache.DefaultDCacheConfig()
	dcfg.HitTicks = cfg.DCacheHitTicks
	dcfg.FillWordTicks = cfg.DCacheFillWordTicks
	c.dcache = cache.New(dcfg, cache.NewBusBacking(b))

	c.alu = NewALU(&c.state.Regs, c.WriteReg)
	c.branchUnit = NewBranchUnit(&c.state.Regs)
	c.lsu = NewLoadStoreUnit(c)

	c.Reset()
	return c
}

// Reset puts the core in its power-on state and prefetches the instruction
// at the reset vector.
func (c *CPU) Reset() {
	s := &c.state
	s.PendingTicks = 0
	s.Downcount = 0
	s.GTECompletionTick = 0
	s.MulDivCompletionTick = 0

	s.Regs = RegFile{}
	s.Cop0 = Cop0{
		SR:   SRCU0 | SRBEV,
		PRID: PRIDValue,
	}
	s.CacheControl = CacheControl{}
	s.GTERegs = [64]uint32{}
	s.DCache = [ScratchpadSize]byte{}
	s.ICache.Clear()
	s.LoadDelay.Reset()
	s.Branch.Clear()
	s.ExceptionRaised = false
	s.BusError = false

	s.CurrentInstruction = c.decoder.Decode(0)
	s.CurrentInstructionPC = 0
	s.CurrentInstructionInBranchDelaySlot = false
	s.CurrentInstructionWasBranchTaken = false

	c.dcache.Reset()
	c.UpdateMemoryPointers()
	c.lastBreakpointCheckPC = invalidPC
	c.instructionCount = 0

	s.NPC = ResetVector
	c.FlushPipeline()
	s.PendingTicks = 0
	s.Downcount = 0
}

// State returns the core state. Callers may inspect and modify it between
// steps.
func (c *CPU) State() *State {
	return &c.state
}

// Regs returns the integer register file.
func (c *CPU) Regs() *RegFile {
	return &c.state.Regs
}

// Bus returns the bus the core is attached to.
func (c *CPU) Bus() bus.Bus {
	return c.bus
}

// DataCache returns the data cache model used in true cache mode.
func (c *CPU) DataCache() *cache.Cache {
	return c.dcache
}

// Timing returns the tick cost table.
func (c *CPU) Timing() *latency.Table {
	return c.timing
}

// Logger returns the core's logger.
func (c *CPU) Logger() logrus.FieldLogger {
	return c.logger
}

// InstructionCount returns the number of retired instructions.
func (c *CPU) InstructionCount() uint64 {
	return c.instructionCount
}

// LastFetch describes the most recent instruction fetch.
func (c *CPU) LastFetch() FetchInfo {
	return c.lastFetch
}

// SetProfiler attaches or detaches (nil) the profiler.
func (c *CPU) SetProfiler(p Profiler) {
	c.profiler = p
}

// SetScheduler attaches or detaches (nil) the event scheduler.
func (c *CPU) SetScheduler(s EventScheduler) {
	c.scheduler = s
}

// SetPC redirects execution to pc. The instruction at pc is prefetched
// and pending loads and branches are dropped.
func (c *CPU) SetPC(pc uint32) {
	c.state.NPC = pc
	c.FlushPipeline()
}

// ReadReg reads a general-purpose register.
func (c *CPU) ReadReg(reg uint8) uint32 {
	return c.state.Regs.ReadReg(reg)
}

// WriteReg writes a register immediately and cancels a visible load to the
// same register.
func (c *CPU) WriteReg(reg uint8, value uint32) {
	c.state.LoadDelay.Supersede(reg)
	c.state.Regs.WriteReg(reg, value)
}

// WriteRegDelayed stages a load result. It becomes visible after the next
// instruction.
func (c *CPU) WriteRegDelayed(reg uint8, value uint32) {
	c.state.LoadDelay.Stage(reg, value)
}

// GetPendingTicks returns the ticks executed since the scheduler last ran.
func (c *CPU) GetPendingTicks() int32 {
	return c.state.PendingTicks
}

// AddPendingTicks charges n ticks to the current pass.
func (c *CPU) AddPendingTicks(n int32) {
	c.state.PendingTicks += n
	c.state.Downcount -= n
}

// ResetPendingTicks rebases the coprocessor completion ticks and clears the
// pending tick count.
func (c *CPU) ResetPendingTicks() {
	s := &c.state
	s.GTECompletionTick = max(0, s.GTECompletionTick-s.PendingTicks)
	s.MulDivCompletionTick = max(0, s.MulDivCompletionTick-s.PendingTicks)
	s.PendingTicks = 0
}

// SetDowncount sets the tick budget until the next scheduler call.
func (c *CPU) SetDowncount(n int32) {
	c.state.Downcount = n
}

// ExitExecution asks Execute to return at the next retirement boundary.
// It is safe to call from any goroutine.
func (c *CPU) ExitExecution() {
	c.exitRequested.Store(true)
}

// ExecutionModeChanged asks Execute to re-select its dispatcher between
// passes. It is safe to call from any goroutine.
func (c *CPU) ExecutionModeChanged() {
	c.modeChanged.Store(true)
}

// BreakpointHit returns true if the last Execute call stopped at a
// breakpoint.
func (c *CPU) BreakpointHit() bool {
	return c.breakpointHit
}

func (c *CPU) checkedMode() bool {
	return c.traceOn || c.breakpoints.Len() > 0
}

// Execute runs until ExitExecution is requested or a breakpoint stops the
// core. The checked dispatcher, which evaluates breakpoints and writes the
// trace, is only selected while one of them is active.
func (c *CPU) Execute() {
	c.exitRequested.Store(false)
	c.breakpointHit = false

	for !c.exitRequested.Load() {
		c.modeChanged.Store(false)
		c.runPass(c.checkedMode())
	}
}

func (c *CPU) runPass(checked bool) {
	for !c.exitRequested.Load() && !c.modeChanged.Load() {
		for c.state.Downcount > 0 {
			if !c.step(checked) {
				c.ExitExecution()
				return
			}
			if c.exitRequested.Load() {
				return
			}
		}
		c.runEvents()
	}
}

func (c *CPU) runEvents() {
	next := DefaultTimeslice
	if c.scheduler != nil {
		next = c.scheduler.RunEvents(c.state.PendingTicks)
	}
	c.ResetPendingTicks()
	c.state.Downcount = max(next, 1)
}

// SingleStep executes exactly one instruction with breakpoints and tracing
// enabled and runs due events afterwards. A breakpoint on the instruction is
// counted and reported but does not hold it back.
func (c *CPU) SingleStep() StepResult {
	before := c.state.PendingTicks
	c.breakpointHit = false

	c.singleStepping = true
	c.step(true)
	c.singleStepping = false

	result := StepResult{
		Retired:       c.retire.Retired,
		PC:            c.state.CurrentInstructionPC,
		Ticks:         c.state.PendingTicks - before,
		Exception:     c.stepException,
		Code:          c.stepCode,
		BreakpointHit: c.breakpointHit,
	}

	if c.state.Downcount <= 0 {
		c.runEvents()
	}

	return result
}

// step executes one instruction. It returns false if a breakpoint stopped
// the core before the instruction ran. While single stepping a hit is
// recorded and the instruction still executes.
func (c *CPU) step(checked bool) bool {
	s := &c.state
	c.stepException = false
	c.retire = RetireEvent{}

	if c.hasPendingInterrupt() {
		c.dispatchInterrupt()
	}

	if checked && c.breakpoints.Len() > 0 && c.checkBreakpoint(s.PC) {
		c.breakpointHit = true
		if !c.singleStepping {
			return false
		}
	}

	startTicks := s.PendingTicks
	c.AddPendingTicks(c.timing.InstructionTicks())

	s.CurrentInstruction = c.decoder.Decode(s.NextInstruction)
	s.CurrentInstructionPC = s.PC
	s.CurrentInstructionInBranchDelaySlot, s.CurrentInstructionWasBranchTaken = s.Branch.Shift()
	s.ExceptionRaised = false
	s.BusError = false

	c.retire = RetireEvent{PC: s.PC}

	if !c.fetchInstruction() {
		c.finishRetire(startTicks)
		return true
	}

	if checked && c.traceOn {
		c.traceInstruction()
	}

	c.executeInstruction()
	s.LoadDelay.Retire(&s.Regs.R)

	c.retire.Retired = true
	c.instructionCount++
	c.finishRetire(startTicks)
	return true
}

func (c *CPU) finishRetire(startTicks int32) {
	if c.profiler == nil {
		return
	}
	c.retire.Ticks = c.state.PendingTicks - startTicks
	c.profiler.Retire(c.retire)
}
