package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"runtime/pprof"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/r3ksim/bus"
	"github.com/sarchlab/r3ksim/emu"
	"github.com/sarchlab/r3ksim/loader"
	"github.com/sarchlab/r3ksim/timing/core"
	"github.com/sarchlab/r3ksim/timing/latency"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	biosPath   string
	logLevel   string
	cpuProfile string
	noICache   bool
	dcache     bool
}

func (g *globalFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&g.configPath, "config", "", "timing configuration file (.json or .yaml)")
	fs.StringVar(&g.biosPath, "bios", "", "BIOS ROM image (512 KiB)")
	fs.StringVar(&g.logLevel, "log-level", "warning", "log level (debug, info, warning, error)")
	fs.StringVar(&g.cpuProfile, "cpuprofile", "", "write a host CPU profile to file")
	fs.BoolVar(&g.noICache, "no-icache", false, "start with the instruction cache disabled")
	fs.BoolVar(&g.dcache, "dcache", false, "start with the data cache in true-cache mode")
}

func (g *globalFlags) logger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(g.logLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(level)
	return l, nil
}

func (g *globalFlags) timing() (*latency.TimingConfig, error) {
	if g.configPath == "" {
		return latency.DefaultTimingConfig(), nil
	}

	config, err := latency.LoadConfig(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading timing config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("timing config %s: %w", g.configPath, err)
	}
	return config, nil
}

// startProfile begins host CPU profiling when -cpuprofile is set. The
// returned function stops it.
func (g *globalFlags) startProfile() (func(), error) {
	if g.cpuProfile == "" {
		return func() {}, nil
	}

	f, err := os.Create(g.cpuProfile)
	if err != nil {
		return nil, fmt.Errorf("creating CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("starting CPU profile: %w", err)
	}

	return func() {
		pprof.StopCPUProfile()
		_ = f.Close()
	}, nil
}

// machine is a loaded program on a fresh core.
type machine struct {
	program *loader.Program
	memory  *bus.Memory
	cpu     *emu.CPU
	core    *core.Core
	logger  *logrus.Logger
}

// newMachine loads path and installs it on a new core. Extra CPU options
// are applied after the ones derived from the global flags.
func (g *globalFlags) newMachine(path string, opts ...emu.CPUOption) (*machine, error) {
	logger, err := g.logger()
	if err != nil {
		return nil, err
	}

	config, err := g.timing()
	if err != nil {
		return nil, err
	}

	prog, err := loader.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading program: %w", err)
	}

	memory := bus.NewMemory(
		bus.WithRAMTicks(config.RAMReadTicks),
		bus.WithBIOSTicks(config.BIOSReadTicks),
	)
	if g.biosPath != "" {
		image, err := os.ReadFile(g.biosPath)
		if err != nil {
			return nil, fmt.Errorf("reading BIOS: %w", err)
		}
		if err := memory.LoadBIOS(image); err != nil {
			return nil, fmt.Errorf("loading BIOS: %w", err)
		}
	}

	cpuOpts := []emu.CPUOption{
		emu.WithLogger(logger),
		emu.WithTimingTable(latency.NewTableWithConfig(config)),
		emu.WithTraceWriter(io.Discard),
	}
	cpuOpts = append(cpuOpts, opts...)

	cpu := emu.NewCPU(memory, cpuOpts...)
	c := core.NewCore(cpu)

	cc := emu.CacheControl{
		ICacheEnable: !g.noICache,
		DCacheEnable: g.dcache,
	}
	cpu.SetCacheControl(cc.Pack())

	if err := prog.Install(memory, cpu); err != nil {
		return nil, fmt.Errorf("installing program: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"path":     path,
		"format":   prog.Format,
		"entry":    fmt.Sprintf("0x%08X", prog.EntryPoint),
		"segments": len(prog.Segments),
	}).Info("program loaded")

	return &machine{
		program: prog,
		memory:  memory,
		cpu:     cpu,
		core:    c,
		logger:  logger,
	}, nil
}
