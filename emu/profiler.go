package emu

// RetireEvent describes one pass through the dispatcher. It is delivered
// to the profiler after every instruction, including ones aborted by a
// fetch fault.
type RetireEvent struct {
	// PC is the address of the executed instruction.
	PC uint32

	// Retired is false when the instruction did not execute.
	Retired bool

	// FetchPC is the address prefetched during the instruction, and
	// FetchMiss is true if that fetch did not hit the instruction cache.
	FetchPC   uint32
	FetchMiss bool

	DataReads       uint32
	DataReadMisses  uint32
	DataWrites      uint32
	DataWriteMisses uint32

	// Ticks is the number of ticks the instruction consumed.
	Ticks int32
}

// Profiler observes retirements. A nil profiler costs nothing.
type Profiler interface {
	Retire(ev RetireEvent)
}
