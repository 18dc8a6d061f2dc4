// Package core provides the scheduler-facing wrapper around the CPU core.
// It owns the global tick counter and a tick-ordered event queue, and
// drives emu.CPU through the EventScheduler contract.
package core

import (
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/r3ksim/emu"
)

// TickFreq is the core clock. Event times handed to the akita queue are
// tick counts converted through it.
const TickFreq = 33868800 * sim.Hz

// Stats holds performance statistics for the core.
type Stats struct {
	// Ticks is the total number of ticks simulated.
	Ticks uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// Events is the number of event callbacks that ran.
	Events uint64
	// DCacheHits and DCacheMisses count true data cache accesses.
	DCacheHits   uint64
	DCacheMisses uint64
}

// CPI returns ticks per retired instruction.
func (s Stats) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Ticks) / float64(s.Instructions)
}

// EventFunc is called when an event becomes due. now is the global tick
// count at which the event runs.
type EventFunc func(now uint64)

// Event is a scheduled callback.
type Event struct {
	*sim.EventBase

	Name string
	When uint64

	// Period re-arms the event after it runs. Zero means one-shot.
	Period uint64

	fn        EventFunc
	queued    bool
	cancelled bool
}

// Scheduled returns true while the event is in the queue.
func (e *Event) Scheduled() bool {
	return e.queued && !e.cancelled
}

// TickTime converts a tick count to simulated time.
func TickTime(tick uint64) sim.VTimeInSec {
	return sim.VTimeInSec(float64(tick) / float64(TickFreq))
}

// Core represents the CPU together with the event scheduler it runs
// against.
type Core struct {
	// CPU is the underlying execution core.
	CPU *emu.CPU

	now      uint64
	queue    *sim.InsertionQueue
	live     int
	events   uint64
	inEvents bool

	haltPC  uint32
	hasHalt bool
	halted  bool

	logger logrus.FieldLogger
}

// NewCore creates a Core and attaches it to cpu as its scheduler.
func NewCore(cpu *emu.CPU) *Core {
	c := &Core{
		CPU:    cpu,
		queue:  sim.NewInsertionQueue(),
		logger: cpu.Logger(),
	}
	cpu.SetScheduler(c)
	return c
}

// SetPC sets the program counter.
func (c *Core) SetPC(pc uint32) {
	c.CPU.SetPC(pc)
}

// Now returns the global tick count, including ticks the CPU has not yet
// reported.
func (c *Core) Now() uint64 {
	if c.inEvents {
		return c.now
	}
	return c.now + uint64(max(c.CPU.GetPendingTicks(), 0))
}

// Time returns Now as simulated time.
func (c *Core) Time() sim.VTimeInSec {
	return TickTime(c.Now())
}

// Schedule queues fn to run delay ticks from now.
func (c *Core) Schedule(delay uint64, name string, fn EventFunc) *Event {
	return c.schedule(delay, 0, name, fn)
}

// SchedulePeriodic queues fn to run every period ticks, starting one period
// from now.
func (c *Core) SchedulePeriodic(period uint64, name string, fn EventFunc) *Event {
	if period == 0 {
		period = 1
	}
	return c.schedule(period, period, name, fn)
}

func (c *Core) schedule(delay, period uint64, name string, fn EventFunc) *Event {
	e := &Event{
		Name:   name,
		When:   c.Now() + delay,
		Period: period,
		fn:     fn,
	}
	c.push(e)

	// Outside of RunEvents the CPU is mid-slice and must come back early
	// enough to run the new event.
	if !c.inEvents {
		s := c.CPU.State()
		if delay < uint64(max(s.Downcount, 0)) {
			c.CPU.SetDowncount(int32(max(delay, 1)))
		}
	}

	return e
}

// push queues e behind every event due at the same tick.
func (c *Core) push(e *Event) {
	e.EventBase = sim.NewEventBase(TickTime(e.When), c)
	e.queued = true
	c.live++
	c.queue.Push(e)
}

// front drops cancelled events from the head of the queue and returns the
// next live one.
func (c *Core) front() (*Event, bool) {
	for c.queue.Len() > 0 {
		e := c.queue.Peek().(*Event)
		if !e.cancelled {
			return e, true
		}
		c.queue.Pop()
		e.queued = false
	}
	return nil, false
}

// Cancel removes a queued event. The entry stays in the queue until it
// reaches the head and is skipped there.
func (c *Core) Cancel(e *Event) {
	if e == nil || !e.Scheduled() {
		return
	}
	e.cancelled = true
	c.live--
}

// PendingEvents returns the number of queued events.
func (c *Core) PendingEvents() int {
	return c.live
}

// Handle implements sim.Handler. It runs a due event and re-arms it when
// it is periodic.
func (c *Core) Handle(evt sim.Event) error {
	e := evt.(*Event)
	e.fn(c.now)
	c.events++

	if e.Period > 0 && !e.cancelled {
		e.When += e.Period
		c.push(e)
	}
	return nil
}

// RaiseInterruptAfter sets CAUSE.Ip bit line after delay ticks.
func (c *Core) RaiseInterruptAfter(delay uint64, line uint8) *Event {
	return c.Schedule(delay, "irq", func(now uint64) {
		c.logger.WithFields(logrus.Fields{
			"line": line,
			"tick": now,
		}).Debug("interrupt asserted")
		c.CPU.SetExternalInterrupt(line)
	})
}

// RunEvents implements emu.EventScheduler. It advances the global tick
// count, runs every due event and returns the ticks until the next one.
func (c *Core) RunEvents(elapsed int32) int32 {
	c.now += uint64(max(elapsed, 0))
	c.inEvents = true

	for {
		e, ok := c.front()
		if !ok || e.When > c.now {
			break
		}
		c.queue.Pop()
		e.queued = false
		c.live--
		if err := e.Handler().Handle(e); err != nil {
			c.logger.WithError(err).WithField("event", e.Name).Error("event failed")
		}
	}

	c.inEvents = false

	next := emu.DefaultTimeslice
	if e, ok := c.front(); ok {
		if d := e.When - c.now; d < uint64(next) {
			next = int32(d)
		}
	}
	return next
}

// SetHaltAddress makes Run stop when execution reaches pc.
func (c *Core) SetHaltAddress(pc uint32) {
	if c.hasHalt {
		c.CPU.RemoveBreakpoint(c.haltPC)
	}
	c.haltPC = pc
	c.hasHalt = true
	c.CPU.AddBreakpoint(pc, false, true)
}

// Halted returns true if execution reached the halt address.
func (c *Core) Halted() bool {
	return c.halted
}

// ExitCode returns $v0, the return value register.
func (c *Core) ExitCode() uint32 {
	return c.CPU.ReadReg(emu.RegV0)
}

// Run executes until the halt address is reached or another breakpoint
// stops the CPU. It returns the exit code.
func (c *Core) Run() uint32 {
	c.execute()
	return c.ExitCode()
}

// RunTicks executes for at least ticks ticks. Returns true if still
// running, false if halted.
func (c *Core) RunTicks(ticks uint64) bool {
	if c.halted {
		return false
	}

	stop := c.Schedule(ticks, "stop", func(uint64) {
		c.CPU.ExitExecution()
	})
	c.execute()
	c.Cancel(stop)

	return !c.halted
}

func (c *Core) execute() {
	c.CPU.Execute()

	if c.CPU.BreakpointHit() {
		pc := c.CPU.State().PC
		if c.hasHalt && pc == c.haltPC {
			c.halted = true
		}
		c.logger.WithFields(logrus.Fields{
			"pc":     pc,
			"halted": c.halted,
		}).Info("execution stopped at breakpoint")
	}
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	dc := c.CPU.DataCache().Stats()
	return Stats{
		Ticks:        c.Now(),
		Instructions: c.CPU.InstructionCount(),
		Events:       c.events,
		DCacheHits:   dc.Hits,
		DCacheMisses: dc.Misses,
	}
}

// Reset clears the CPU, the tick counter and the event queue. The halt
// address is kept.
func (c *Core) Reset() {
	c.CPU.Reset()
	for c.queue.Len() > 0 {
		c.queue.Pop().(*Event).queued = false
	}
	c.live = 0
	c.now = 0
	c.events = 0
	c.halted = false
	if c.hasHalt {
		c.CPU.AddBreakpoint(c.haltPC, false, true)
	}
}
