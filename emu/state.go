package emu

import (
	"github.com/sarchlab/r3ksim/insts"
	"github.com/sarchlab/r3ksim/timing/cache"
	"github.com/sarchlab/r3ksim/timing/pipeline"
)

// Fixed addresses of the core.
const (
	// ResetVector is where execution starts after Reset.
	ResetVector uint32 = 0xBFC00000

	// ScratchpadBase is the physical address of the data cache when it is
	// used as scratchpad RAM.
	ScratchpadBase         uint32 = 0x1F800000
	ScratchpadLocationMask uint32 = 0xFFFFFC00
	ScratchpadOffsetMask   uint32 = 0x000003FF
	ScratchpadSize                = 0x400

	// CacheControlAddress is the KSEG2 address of the cache control register.
	CacheControlAddress uint32 = 0xFFFE0130

	// PhysicalAddressMask strips the segment bits of a KUSEG/KSEG0/KSEG1
	// address.
	PhysicalAddressMask uint32 = 0x1FFFFFFF
)

// Status register (SR) bits.
const (
	SRIEc uint32 = 1 << 0 // Interrupt enable, current
	SRKUc uint32 = 1 << 1 // User mode, current
	SRIEp uint32 = 1 << 2
	SRKUp uint32 = 1 << 3
	SRIEo uint32 = 1 << 4
	SRKUo uint32 = 1 << 5
	SRIsC uint32 = 1 << 16 // Isolate cache
	SRSwC uint32 = 1 << 17
	SRBEV uint32 = 1 << 22 // Boot exception vectors
	SRCU0 uint32 = 1 << 28
	SRCU1 uint32 = 1 << 29
	SRCU2 uint32 = 1 << 30
	SRCU3 uint32 = 1 << 31

	srModeMask  uint32 = 0x3F
	srImShift          = 8
	srWriteMask uint32 = 0xF27FFF3F
)

// CAUSE register fields.
const (
	causeExcCodeShift        = 2
	causeExcCodeMask  uint32 = 0x1F << causeExcCodeShift
	causeIpShift             = 8
	causeIpMask       uint32 = 0xFF << causeIpShift
	causeCEShift             = 28
	causeCEMask       uint32 = 0x3 << causeCEShift
	causeBT           uint32 = 1 << 30
	causeBD           uint32 = 1 << 31

	causeExceptionMask uint32 = causeBD | causeBT | causeCEMask | causeExcCodeMask
	causeWriteMask     uint32 = 0x3 << causeIpShift // software interrupts
	dcicWriteMask      uint32 = 0xFF80F03F
)

// Cop0 holds the system control coprocessor registers.
type Cop0 struct {
	BPC      uint32 // Breakpoint on execute address
	BDA      uint32 // Breakpoint on data access address
	TAR      uint32 // Target address of the branch in front of a faulting delay slot
	DCIC     uint32 // Debug and cache invalidate control
	BadVaddr uint32 // Faulting address of the last address error
	BDAM     uint32 // Data access breakpoint mask
	BPCM     uint32 // Execute breakpoint mask
	SR       uint32 // Status register
	CAUSE    uint32 // Cause of the last exception
	EPC      uint32 // Exception return address
	PRID     uint32 // Processor revision
}

// CacheControl is the decoded cache control register.
type CacheControl struct {
	LockMode         bool  // bit 0
	InvalidateMode   bool  // bit 1
	TagTestMode      bool  // bit 2
	DCacheScratchpad bool  // bit 3
	DCacheEnable     bool  // bit 7
	ICacheFillSize   uint8 // bits 8-9
	ICacheEnable     bool  // bit 11

	// Other keeps the unnamed bits so reads return what was written.
	Other uint32
}

const cacheControlNamedBits uint32 = 0x0000_0B8F

func bit(v bool, n uint) uint32 {
	if v {
		return 1 << n
	}
	return 0
}

// Pack encodes the register as the guest sees it.
func (cc CacheControl) Pack() uint32 {
	return bit(cc.LockMode, 0) | bit(cc.InvalidateMode, 1) | bit(cc.TagTestMode, 2) |
		bit(cc.DCacheScratchpad, 3) | bit(cc.DCacheEnable, 7) |
		uint32(cc.ICacheFillSize&0x3)<<8 | bit(cc.ICacheEnable, 11) |
		cc.Other&^cacheControlNamedBits
}

// UnpackCacheControl decodes a guest value of the cache control register.
func UnpackCacheControl(v uint32) CacheControl {
	return CacheControl{
		LockMode:         v&(1<<0) != 0,
		InvalidateMode:   v&(1<<1) != 0,
		TagTestMode:      v&(1<<2) != 0,
		DCacheScratchpad: v&(1<<3) != 0,
		DCacheEnable:     v&(1<<7) != 0,
		ICacheFillSize:   uint8(v>>8) & 0x3,
		ICacheEnable:     v&(1<<11) != 0,
		Other:            v &^ cacheControlNamedBits,
	}
}

// TrueDataCache returns true when the data cache caches RAM instead of
// acting as scratchpad.
func (cc CacheControl) TrueDataCache() bool {
	return cc.DCacheEnable && !cc.DCacheScratchpad
}

// State is the complete architectural and microarchitectural state of the
// core. It is captured and restored field by field in declaration order.
type State struct {
	// PendingTicks counts ticks executed since the scheduler last ran.
	PendingTicks int32
	// Downcount is the tick budget left before the scheduler runs.
	Downcount int32
	// GTECompletionTick is the pending tick at which the last GTE command
	// finishes.
	GTECompletionTick int32
	// MulDivCompletionTick is the pending tick at which the last
	// multiply or divide finishes.
	MulDivCompletionTick int32

	Regs RegFile
	Cop0 Cop0

	// PC is the address of the fetched instruction that executes next.
	PC uint32
	// NPC is the address of the instruction to fetch next.
	NPC uint32

	CurrentInstruction                  insts.Instruction
	CurrentInstructionPC                uint32
	CurrentInstructionInBranchDelaySlot bool
	CurrentInstructionWasBranchTaken    bool

	// NextInstruction is the raw word fetched from PC.
	NextInstruction uint32

	Branch          pipeline.BranchDelay
	ExceptionRaised bool
	BusError        bool
	LoadDelay       pipeline.LoadDelay
	CacheControl    CacheControl

	GTERegs [64]uint32
	DCache  [ScratchpadSize]byte
	ICache  cache.ICache
}

// InUserMode returns true when SR.KUc selects user mode.
func (s *State) InUserMode() bool {
	return s.Cop0.SR&SRKUc != 0
}

// Segment identifies a region of the virtual address space.
type Segment uint8

// Virtual address segments.
const (
	SegmentKUSEG Segment = iota
	SegmentKSEG0
	SegmentKSEG1
	SegmentKSEG2
)

// GetSegment returns the segment of a virtual address.
func GetSegment(addr uint32) Segment {
	switch addr >> 29 {
	case 4:
		return SegmentKSEG0
	case 5:
		return SegmentKSEG1
	case 6, 7:
		return SegmentKSEG2
	default:
		return SegmentKUSEG
	}
}

// VirtualToPhysical translates a virtual address. KSEG2 is not mirrored
// and passes through unchanged.
func VirtualToPhysical(addr uint32) uint32 {
	if addr >= 0xC0000000 {
		return addr
	}
	return addr & PhysicalAddressMask
}
