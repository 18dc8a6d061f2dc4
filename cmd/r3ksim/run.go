package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/davecgh/go-spew/spew"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/sarchlab/r3ksim/emu"
)

// runSlice bounds how long the core runs before the context is checked.
const runSlice = 1 << 20

type runFlags struct {
	ticks     uint64
	halt      string
	tracePath string
	dump      bool
}

func (r *runFlags) register(fs *flag.FlagSet) {
	fs.Uint64Var(&r.ticks, "ticks", 1<<30, "maximum ticks to simulate")
	fs.StringVar(&r.halt, "halt", "", "stop when execution reaches this address (hex)")
	fs.StringVar(&r.tracePath, "trace", "", "write an instruction trace to file")
	fs.BoolVar(&r.dump, "dump", false, "dump the register state when execution stops")
}

func parseAddress(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return uint32(v), nil
}

func runCommand(g *globalFlags) *ffcli.Command {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	r := &runFlags{}
	r.register(fs)

	return &ffcli.Command{
		Name:       "run",
		ShortUsage: "r3ksim run [flags] <program>",
		ShortHelp:  "Execute a PS-X EXE or ELF program",
		FlagSet:    fs,
		Options:    []ff.Option{ff.WithEnvVarPrefix(envPrefix)},
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return flag.ErrHelp
			}
			return r.exec(ctx, g, args[0], nil)
		},
	}
}

// exec runs the program at path. extra CPU options let other subcommands
// attach observers.
func (r *runFlags) exec(ctx context.Context, g *globalFlags, path string, opts []emu.CPUOption) error {
	stop, err := g.startProfile()
	if err != nil {
		return err
	}
	defer stop()

	m, err := g.newMachine(path, opts...)
	if err != nil {
		return err
	}

	if r.halt != "" {
		pc, err := parseAddress(r.halt)
		if err != nil {
			return err
		}
		m.core.SetHaltAddress(pc)
	}

	if r.tracePath != "" {
		f, err := os.Create(r.tracePath)
		if err != nil {
			return fmt.Errorf("creating trace file: %w", err)
		}
		defer func() { _ = f.Close() }()
		m.cpu.SetTraceWriter(f)
		m.cpu.StartTrace()
	}

	if err := r.execute(ctx, m); err != nil {
		return err
	}

	stats := m.core.Stats()
	fmt.Printf("\nProgram: %s\n", path)
	fmt.Printf("Ticks:        %d\n", stats.Ticks)
	fmt.Printf("Instructions: %d\n", stats.Instructions)
	fmt.Printf("CPI:          %.3f\n", stats.CPI())
	fmt.Printf("Final PC:     0x%08X\n", m.cpu.State().PC)
	if m.core.Halted() {
		fmt.Printf("Exit code:    %d\n", m.core.ExitCode())
	}

	if r.dump {
		s := m.cpu.State()
		spew.Dump(s.Regs, s.Cop0, s.CacheControl)
	}

	return nil
}

func (r *runFlags) execute(ctx context.Context, m *machine) error {
	remaining := r.ticks
	for remaining > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		start := m.core.Now()
		if !m.core.RunTicks(min(remaining, runSlice)) {
			return nil
		}
		remaining -= min(m.core.Now()-start, remaining)
	}
	return nil
}
