// Package pipeline provides the hazard state of the five-stage integer
// pipeline: the load delay slot and the branch delay slot.
package pipeline

// NoReg marks an empty load delay slot.
const NoReg uint8 = 32

// LoadDelay tracks loads whose results are not yet visible to the
// instruction that follows them.
//
// A load writes the staged slot. At the end of that instruction the staged
// slot moves to the visible slot, and the instruction in the delay slot
// still reads the old register value. At the end of the delay slot the
// visible slot is written back.
type LoadDelay struct {
	Reg       uint8  // Register of the load retiring after this instruction
	Value     uint32 // Value of that load
	NextReg   uint8  // Register of the load issued by this instruction
	NextValue uint32 // Value of that load
}

// NewLoadDelay creates an empty load delay.
func NewLoadDelay() LoadDelay {
	return LoadDelay{Reg: NoReg, NextReg: NoReg}
}

// Reset empties both slots.
func (l *LoadDelay) Reset() {
	*l = NewLoadDelay()
}

// Stage records a delayed write of v to r. A visible load to the same
// register is cancelled, so back-to-back loads to one register keep only
// the second value. Loads to $zero are discarded.
func (l *LoadDelay) Stage(r uint8, v uint32) {
	if r == 0 {
		return
	}
	if l.Reg == r {
		l.Reg = NoReg
	}
	l.NextReg = r
	l.NextValue = v
}

// Supersede cancels a visible load to r because the current instruction
// writes r directly.
func (l *LoadDelay) Supersede(r uint8) {
	if l.Reg == r {
		l.Reg = NoReg
	}
}

// Retire writes the visible slot into regs and promotes the staged slot.
func (l *LoadDelay) Retire(regs *[32]uint32) {
	if l.Reg != NoReg {
		regs[l.Reg] = l.Value
	}
	l.Reg = l.NextReg
	l.Value = l.NextValue
	l.NextReg = NoReg
}

// Flush commits the visible slot and drops the staged one.
func (l *LoadDelay) Flush(regs *[32]uint32) {
	l.NextReg = NoReg
	if l.Reg != NoReg {
		regs[l.Reg] = l.Value
		l.Reg = NoReg
	}
}

// Pending returns the value of a visible load to r.
func (l *LoadDelay) Pending(r uint8) (uint32, bool) {
	if l.Reg == r && r != NoReg {
		return l.Value, true
	}
	return 0, false
}

// Empty returns true if neither slot holds a load.
func (l *LoadDelay) Empty() bool {
	return l.Reg == NoReg && l.NextReg == NoReg
}

// BranchDelay tracks the branch delay slot of the instruction being fetched.
type BranchDelay struct {
	// NextIsDelaySlot is set by every branch: the next instruction executes
	// in its delay slot.
	NextIsDelaySlot bool
	// Taken is set when the branch in front of the delay slot was taken.
	Taken bool
}

// Branch marks the next instruction as a delay slot of a branch that was
// or was not taken.
func (b *BranchDelay) Branch(taken bool) {
	b.NextIsDelaySlot = true
	b.Taken = taken
}

// Take marks the pending branch as taken.
func (b *BranchDelay) Take() {
	b.Taken = true
}

// Shift hands the flags to the instruction about to execute and clears them.
func (b *BranchDelay) Shift() (inDelaySlot, branchTaken bool) {
	inDelaySlot, branchTaken = b.NextIsDelaySlot, b.Taken
	b.Clear()
	return inDelaySlot, branchTaken
}

// Clear removes any pending branch.
func (b *BranchDelay) Clear() {
	b.NextIsDelaySlot = false
	b.Taken = false
}
