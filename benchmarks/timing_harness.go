// Package benchmarks provides timing benchmark infrastructure for r3ksim
// calibration.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/r3ksim/bus"
	"github.com/sarchlab/r3ksim/emu"
	"github.com/sarchlab/r3ksim/profiler"
	"github.com/sarchlab/r3ksim/timing/core"
	"github.com/sarchlab/r3ksim/timing/latency"
)

// ProgramBase is the KSEG0 address benchmark programs are loaded at.
const ProgramBase uint32 = 0x80010000

// DataBase is the KSEG0 address of the benchmark data area.
const DataBase uint32 = 0x80040000

// DefaultMaxTicks bounds a single benchmark run.
const DefaultMaxTicks uint64 = 1 << 26

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// SimulatedTicks is the total tick count from the core
	SimulatedTicks uint64 `json:"simulated_ticks"`

	// InstructionsRetired is the number of completed instructions
	InstructionsRetired uint64 `json:"instructions_retired"`

	// CPI is ticks per instruction
	CPI float64 `json:"cpi"`

	// ICacheHits/Misses count instruction fetches through the icache
	ICacheHits   uint64 `json:"icache_hits,omitempty"`
	ICacheMisses uint64 `json:"icache_misses,omitempty"`

	// DCacheHits/Misses count true data cache accesses
	DCacheHits   uint64 `json:"dcache_hits,omitempty"`
	DCacheMisses uint64 `json:"dcache_misses,omitempty"`

	// DataReads/DataWrites count load and store accesses
	DataReads  uint64 `json:"data_reads"`
	DataWrites uint64 `json:"data_writes"`

	// Halted is false if the run hit the tick limit
	Halted bool `json:"halted"`

	// ExitCode is $v0 when the program reached its end
	ExitCode uint32 `json:"exit_code"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Setup prepares the core state (e.g., initialize registers, memory)
	Setup func(cpu *emu.CPU, memory *bus.Memory)

	// Program is the MIPS machine code to execute, loaded at ProgramBase.
	// Execution ends when the PC reaches the word after the program.
	Program []uint32

	// ExpectedExit is the expected $v0 at the end (for validation)
	ExpectedExit uint32
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// EnableICache enables the instruction cache
	EnableICache bool

	// EnableDCache enables the data cache as a true cache
	EnableDCache bool

	// Timing overrides the default timing table
	Timing *latency.TimingConfig

	// MaxTicks bounds each run (default: DefaultMaxTicks)
	MaxTicks uint64

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Logger receives core logs (default: discarded)
	Logger logrus.FieldLogger

	// Verbose enables detailed output
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		EnableICache: true,
		EnableDCache: false,
		MaxTicks:     DefaultMaxTicks,
		Output:       os.Stdout,
		Verbose:      false,
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.MaxTicks == 0 {
		config.MaxTicks = DefaultMaxTicks
	}
	if config.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		config.Logger = l
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results.
func (h *Harness) RunAll() ([]BenchmarkResult, error) {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		result, err := h.RunBenchmark(bench)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}

	return results, nil
}

func (h *Harness) cacheControl() uint32 {
	cc := emu.CacheControl{
		ICacheEnable: h.config.EnableICache,
		DCacheEnable: h.config.EnableDCache,
	}
	return cc.Pack()
}

// RunBenchmark executes a single benchmark on a fresh core.
func (h *Harness) RunBenchmark(bench Benchmark) (BenchmarkResult, error) {
	memory := bus.NewMemory()
	if err := memory.LoadWords(emu.VirtualToPhysical(ProgramBase), bench.Program...); err != nil {
		return BenchmarkResult{}, fmt.Errorf("loading %s: %w", bench.Name, err)
	}

	opts := []emu.CPUOption{
		emu.WithLogger(h.config.Logger),
		emu.WithStdout(io.Discard),
	}
	if h.config.Timing != nil {
		if err := h.config.Timing.Validate(); err != nil {
			return BenchmarkResult{}, fmt.Errorf("timing config: %w", err)
		}
		opts = append(opts, emu.WithTimingTable(latency.NewTableWithConfig(h.config.Timing)))
	}

	prof := profiler.New()
	opts = append(opts, emu.WithProfiler(prof))

	cpu := emu.NewCPU(memory, opts...)
	c := core.NewCore(cpu)

	cpu.SetCacheControl(h.cacheControl())
	cpu.WriteReg(emu.RegSP, 0x801FFFF0)
	if bench.Setup != nil {
		bench.Setup(cpu, memory)
	}

	c.SetPC(ProgramBase)
	c.SetHaltAddress(ProgramBase + uint32(len(bench.Program))*4)

	start := time.Now()
	c.RunTicks(h.config.MaxTicks)
	wallTime := time.Since(start)

	stats := c.Stats()
	icache := cpu.State().ICache.Stats()
	summary := prof.Summary()

	result := BenchmarkResult{
		Name:                bench.Name,
		Description:         bench.Description,
		SimulatedTicks:      stats.Ticks,
		InstructionsRetired: stats.Instructions,
		CPI:                 stats.CPI(),
		ICacheHits:          icache.Hits,
		ICacheMisses:        icache.Misses,
		DCacheHits:          stats.DCacheHits,
		DCacheMisses:        stats.DCacheMisses,
		DataReads:           summary.Total.DataReadAccess,
		DataWrites:          summary.Total.DataWriteAccess,
		Halted:              c.Halted(),
		ExitCode:            c.ExitCode(),
		WallTime:            wallTime,
	}

	if h.config.Verbose {
		h.config.Logger.WithFields(logrus.Fields{
			"benchmark": bench.Name,
			"ticks":     result.SimulatedTicks,
			"cpi":       result.CPI,
		}).Info("benchmark finished")
	}

	return result, nil
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== r3ksim Timing Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(h.config.Output, "  Exit Code: %d\n", r.ExitCode)
		if !r.Halted {
			_, _ = fmt.Fprintln(h.config.Output, "  (tick limit reached)")
		}
		_, _ = fmt.Fprintln(h.config.Output, "  --- Timing ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Simulated Ticks:      %d\n", r.SimulatedTicks)
		_, _ = fmt.Fprintf(h.config.Output, "  Instructions Retired: %d\n", r.InstructionsRetired)
		_, _ = fmt.Fprintf(h.config.Output, "  CPI:                  %.3f\n", r.CPI)
		_, _ = fmt.Fprintf(h.config.Output, "  Data Reads:           %d\n", r.DataReads)
		_, _ = fmt.Fprintf(h.config.Output, "  Data Writes:          %d\n", r.DataWrites)

		if r.ICacheHits > 0 || r.ICacheMisses > 0 {
			_, _ = fmt.Fprintln(h.config.Output, "  --- I-Cache ---")
			_, _ = fmt.Fprintf(h.config.Output, "  Hits:   %d\n", r.ICacheHits)
			_, _ = fmt.Fprintf(h.config.Output, "  Misses: %d\n", r.ICacheMisses)
		}

		if r.DCacheHits > 0 || r.DCacheMisses > 0 {
			_, _ = fmt.Fprintln(h.config.Output, "  --- D-Cache ---")
			_, _ = fmt.Fprintf(h.config.Output, "  Hits:   %d\n", r.DCacheHits)
			_, _ = fmt.Fprintf(h.config.Output, "  Misses: %d\n", r.DCacheMisses)
		}

		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,ticks,instructions,cpi,icache_hits,icache_misses,dcache_hits,dcache_misses,data_reads,data_writes,exit_code")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%.3f,%d,%d,%d,%d,%d,%d,%d\n",
			r.Name,
			r.SimulatedTicks,
			r.InstructionsRetired,
			r.CPI,
			r.ICacheHits,
			r.ICacheMisses,
			r.DCacheHits,
			r.DCacheMisses,
			r.DataReads,
			r.DataWrites,
			r.ExitCode,
		)
	}
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	// Metadata about the benchmark run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results
	Results []BenchmarkResult `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// Version of the simulator
	Version string `json:"version"`

	// Config describes the benchmark configuration
	Config BenchmarkConfig `json:"config"`
}

// BenchmarkConfig describes the harness configuration used.
type BenchmarkConfig struct {
	ICacheEnabled bool `json:"icache_enabled"`
	DCacheEnabled bool `json:"dcache_enabled"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	// TotalBenchmarks is the number of benchmarks run
	TotalBenchmarks int `json:"total_benchmarks"`

	// TotalTicks is the sum of all simulated ticks
	TotalTicks uint64 `json:"total_ticks"`

	// TotalInstructions is the sum of all instructions retired
	TotalInstructions uint64 `json:"total_instructions"`

	// AverageCPI is the average ticks per instruction
	AverageCPI float64 `json:"average_cpi"`

	// TotalWallTime is the total wall clock time for all benchmarks
	TotalWallTime time.Duration `json:"total_wall_time_ns"`
}

// Version is reported in benchmark metadata.
const Version = "0.1.0"

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	var totalTicks, totalInstructions uint64
	var totalWallTime time.Duration
	for _, r := range results {
		totalTicks += r.SimulatedTicks
		totalInstructions += r.InstructionsRetired
		totalWallTime += r.WallTime
	}

	avgCPI := float64(0)
	if totalInstructions > 0 {
		avgCPI = float64(totalTicks) / float64(totalInstructions)
	}

	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   Version,
			Config: BenchmarkConfig{
				ICacheEnabled: h.config.EnableICache,
				DCacheEnabled: h.config.EnableDCache,
			},
		},
		Results: results,
		Summary: ReportSummary{
			TotalBenchmarks:   len(results),
			TotalTicks:        totalTicks,
			TotalInstructions: totalInstructions,
			AverageCPI:        avgCPI,
			TotalWallTime:     totalWallTime,
		},
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
