package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/sarchlab/r3ksim/emu"
	"github.com/sarchlab/r3ksim/profiler"
)

func profileCommand(g *globalFlags) *ffcli.Command {
	fs := flag.NewFlagSet("profile", flag.ExitOnError)
	r := &runFlags{}
	r.register(fs)

	var (
		dsn      string
		top      int
		sqlDebug bool
	)
	fs.StringVar(&dsn, "db", "r3ksim-profile.db", "SQLite database to export counters to")
	fs.IntVar(&top, "top", 20, "number of hottest addresses to print")
	fs.BoolVar(&sqlDebug, "sql-debug", false, "log every SQL query")

	return &ffcli.Command{
		Name:       "profile",
		ShortUsage: "r3ksim profile [flags] <program>",
		ShortHelp:  "Execute a program and export per-address counters",
		FlagSet:    fs,
		Options:    []ff.Option{ff.WithEnvVarPrefix(envPrefix)},
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return flag.ErrHelp
			}

			prof := profiler.New()
			if err := r.exec(ctx, g, args[0], []emu.CPUOption{emu.WithProfiler(prof)}); err != nil {
				return err
			}

			summary := prof.Summary()
			fmt.Printf("\nProfile:\n")
			fmt.Printf("  Addresses:     %d\n", summary.Addresses)
			fmt.Printf("  Fetches:       %d (%d misses)\n", summary.Total.InstructionFetch, summary.Total.InstrFetchMiss)
			fmt.Printf("  Data reads:    %d (%d misses)\n", summary.Total.DataReadAccess, summary.Total.DataReadMiss)
			fmt.Printf("  Data writes:   %d (%d misses)\n", summary.Total.DataWriteAccess, summary.Total.DataWriteMiss)
			fmt.Printf("  RAM cycles:    %d\n", summary.RAM.Cycles)
			fmt.Printf("  ROM cycles:    %d\n", summary.ROM.Cycles)
			fmt.Printf("  Other cycles:  %d\n", summary.Other.Cycles)

			db, err := profiler.OpenDB(dsn, sqlDebug)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			n, err := prof.Export(ctx, db)
			if err != nil {
				return fmt.Errorf("exporting profile: %w", err)
			}
			fmt.Printf("\nExported %d rows to %s\n", n, dsn)

			if top <= 0 {
				return nil
			}
			rows, err := profiler.Top(ctx, db, top)
			if err != nil {
				return fmt.Errorf("querying profile: %w", err)
			}

			fmt.Printf("\n%-10s  %-5s  %10s  %10s  %10s\n", "address", "area", "cycles", "fetches", "misses")
			for _, row := range rows {
				fmt.Printf("0x%08X  %-5s  %10d  %10d  %10d\n",
					row.Address, row.Area, row.Cycles, row.InstructionFetch, row.InstrFetchMiss)
			}
			return nil
		},
	}
}
