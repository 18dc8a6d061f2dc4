package benchmarks

import (
	"github.com/sarchlab/r3ksim/bus"
	"github.com/sarchlab/r3ksim/emu"
	"github.com/sarchlab/r3ksim/insts"
)

// Registers used by the benchmark programs.
const (
	regV0 uint8 = 2
	regA0 uint8 = 4
	regT0 uint8 = 8
	regT1 uint8 = 9
	regT2 uint8 = 10
	regT3 uint8 = 11
	regT4 uint8 = 12
	regT5 uint8 = 13
	regT6 uint8 = 14
	regT7 uint8 = 15
	regS0 uint8 = 16
	regS1 uint8 = 17
	regS2 uint8 = 18
	regS3 uint8 = 19
)

// GetMicrobenchmarks returns the standard set of microbenchmarks for timing
// calibration. Each benchmark targets a specific CPU characteristic.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		dependencyChain(),
		memorySequential(),
		loadDelay(),
		functionCalls(),
		branchTaken(),
		multiplyDivide(),
		matrixMultiply2x2(),
		unalignedAccess(),
		scratchpadAccess(),
		loopSimulation(),
	}
}

// GetCoreBenchmarks returns a minimal set of 3 core benchmarks for quick validation.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		loopSimulation(),
		matrixMultiply2x2(),
		branchTaken(),
	}
}

func repeat(n int, words ...uint32) []uint32 {
	out := make([]uint32, 0, n*len(words))
	for i := 0; i < n; i++ {
		out = append(out, words...)
	}
	return out
}

// dataAddress loads the high half of DataBase into base.
func dataAddress(base uint8) uint32 {
	return insts.LUI(base, uint16(DataBase>>16))
}

// 1. Arithmetic Sequential - Tests ALU throughput with independent operations
func arithmeticSequential() Benchmark {
	var program []uint32
	for i := 0; i < 20; i++ {
		r := regT0 + uint8(i%5)
		program = append(program, insts.ADDIU(r, r, 1))
	}
	program = append(program, insts.ADDU(regV0, regT0, regT1))

	return Benchmark{
		Name:         "arithmetic_sequential",
		Description:  "20 independent ADDIU operations - measures ALU throughput",
		Program:      program,
		ExpectedExit: 8,
	}
}

// 2. Dependency Chain - Every instruction reads the previous result
func dependencyChain() Benchmark {
	return Benchmark{
		Name:         "dependency_chain",
		Description:  "20 dependent ADDIU operations on $v0",
		Program:      repeat(20, insts.ADDIU(regV0, regV0, 1)),
		ExpectedExit: 20,
	}
}

// 3. Memory Sequential - Stores then reloads a small array
func memorySequential() Benchmark {
	program := []uint32{dataAddress(regT0)}
	for i := 0; i < 8; i++ {
		program = append(program,
			insts.ADDIU(regT1, 0, int16(i+1)),
			insts.SW(regT1, regT0, int16(i*4)),
		)
	}
	for i := 0; i < 8; i++ {
		program = append(program,
			insts.LW(regT2, regT0, int16(i*4)),
			insts.NOP,
			insts.ADDU(regV0, regV0, regT2),
		)
	}

	return Benchmark{
		Name:         "memory_sequential",
		Description:  "8 stores followed by 8 loads - measures memory access cost",
		Program:      program,
		ExpectedExit: 36,
	}
}

// 4. Load Delay - The instruction after a load still sees the old value
func loadDelay() Benchmark {
	return Benchmark{
		Name:        "load_delay",
		Description: "Loads whose delay slot reads the destination - checks the load delay",
		Setup: func(cpu *emu.CPU, memory *bus.Memory) {
			_ = memory.LoadWords(emu.VirtualToPhysical(DataBase), 100)
		},
		Program: append([]uint32{dataAddress(regT0)},
			repeat(4,
				insts.ADDIU(regT1, 0, 1),
				insts.LW(regT1, regT0, 0),
				insts.ADDU(regV0, regV0, regT1),
			)...),
		// Each delay slot sees the 1 written before the load, not 100.
		ExpectedExit: 4,
	}
}

// 5. Function Calls - JAL/JR pairs with delay slots
func functionCalls() Benchmark {
	function := ProgramBase + 8
	main := ProgramBase + 20

	program := []uint32{
		insts.J(main),
		insts.NOP,
		// function
		insts.ADDIU(regV0, regV0, 1),
		insts.JR(31),
		insts.NOP,
	}
	program = append(program, repeat(5, insts.JAL(function), insts.NOP)...)

	return Benchmark{
		Name:         "function_calls",
		Description:  "5 calls to a leaf function - measures call/return overhead",
		Program:      program,
		ExpectedExit: 5,
	}
}

// 6. Branch Taken - Taken branches that skip one instruction each
func branchTaken() Benchmark {
	return Benchmark{
		Name:        "branch_taken",
		Description: "5 taken BEQ branches over a skipped ADDIU",
		Program: repeat(5,
			insts.BEQ(0, 0, 2),
			insts.NOP,
			insts.ADDIU(regV0, regV0, 100),
			insts.ADDIU(regV0, regV0, 1),
		),
		ExpectedExit: 5,
	}
}

// 7. Multiply/Divide - MFLO interlocks on the multiplier and divider
func multiplyDivide() Benchmark {
	return Benchmark{
		Name:        "multiply_divide",
		Description: "MULT and DIV followed by an immediate MFLO - measures interlock stalls",
		Program: []uint32{
			insts.ADDIU(regT0, 0, 100),
			insts.ADDIU(regT1, 0, 7),
			insts.MULT(regT0, regT1),
			insts.MFLO(regT2),
			insts.DIV(regT2, regT1),
			insts.MFLO(regV0),
		},
		ExpectedExit: 100,
	}
}

// 8. Matrix Multiply 2x2 - Loads, multiplies and a store
func matrixMultiply2x2() Benchmark {
	return Benchmark{
		Name:        "matrix_operations",
		Description: "Trace of a 2x2 matrix product - mixes loads, MULT and MFLO",
		Setup: func(cpu *emu.CPU, memory *bus.Memory) {
			_ = memory.LoadWords(emu.VirtualToPhysical(DataBase),
				1, 2, 3, 4, // A
				5, 6, 7, 8, // B
			)
		},
		Program: []uint32{
			dataAddress(regT0),
			insts.LW(regT1, regT0, 0),
			insts.LW(regT2, regT0, 4),
			insts.LW(regT3, regT0, 8),
			insts.LW(regT4, regT0, 12),
			insts.LW(regT5, regT0, 16),
			insts.LW(regT6, regT0, 20),
			insts.LW(regT7, regT0, 24),
			insts.LW(regS0, regT0, 28),
			insts.NOP,
			// C00 = a00*b00 + a01*b10
			insts.MULT(regT1, regT5),
			insts.MFLO(regS1),
			insts.MULT(regT2, regT7),
			insts.MFLO(regS2),
			insts.ADDU(regV0, regS1, regS2),
			// C11 = a10*b01 + a11*b11
			insts.MULT(regT3, regT6),
			insts.MFLO(regS1),
			insts.MULT(regT4, regS0),
			insts.MFLO(regS2),
			insts.ADDU(regS3, regS1, regS2),
			insts.ADDU(regV0, regV0, regS3),
			insts.SW(regV0, regT0, 32),
		},
		ExpectedExit: 69,
	}
}

// 9. Unaligned Access - LWR/LWL pair merging through the load delay
func unalignedAccess() Benchmark {
	return Benchmark{
		Name:        "unaligned_access",
		Description: "Back-to-back LWR/LWL reading an unaligned word",
		Setup: func(cpu *emu.CPU, memory *bus.Memory) {
			_ = memory.LoadWords(emu.VirtualToPhysical(DataBase), 0x44332211, 0x88776655)
		},
		Program: []uint32{
			dataAddress(regT0),
			insts.LWR(regT1, regT0, 1),
			insts.LWL(regT1, regT0, 4),
			insts.NOP,
			insts.ADDU(regV0, regT1, 0),
		},
		ExpectedExit: 0x55443322,
	}
}

// 10. Scratchpad Access - Loads and stores to the data scratchpad
func scratchpadAccess() Benchmark {
	return Benchmark{
		Name:        "scratchpad_access",
		Description: "Stores and loads to the 1 KiB scratchpad",
		Setup: func(cpu *emu.CPU, memory *bus.Memory) {
			cc := emu.UnpackCacheControl(cpu.CacheControlValue())
			cc.DCacheEnable = true
			cc.DCacheScratchpad = true
			cpu.SetCacheControl(cc.Pack())
		},
		Program: append([]uint32{
			insts.LUI(regA0, uint16(emu.ScratchpadBase>>16)),
			insts.ADDIU(regT1, 0, 42),
		}, append(repeat(4,
			insts.SW(regT1, regA0, 0),
			insts.LW(regV0, regA0, 0),
		), insts.NOP)...),
		ExpectedExit: 42,
	}
}

// 11. Loop Simulation - A counted loop with a delay slot
func loopSimulation() Benchmark {
	return Benchmark{
		Name:        "loop_simulation",
		Description: "10-iteration counted loop - measures branch and delay slot cost",
		Program: []uint32{
			insts.ADDIU(regT0, 0, 10),
			// loop:
			insts.ADDIU(regV0, regV0, 1),
			insts.ADDIU(regT0, regT0, -1),
			insts.BNE(regT0, 0, -3),
			insts.NOP,
		},
		ExpectedExit: 10,
	}
}
