package main

import (
	"context"
	"flag"
	"os"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/sarchlab/r3ksim/benchmarks"
)

func benchCommand(g *globalFlags) *ffcli.Command {
	fs := flag.NewFlagSet("bench", flag.ExitOnError)
	var (
		csvOutput  bool
		jsonOutput bool
		coreOnly   bool
		verbose    bool
	)
	fs.BoolVar(&csvOutput, "csv", false, "output results in CSV format")
	fs.BoolVar(&jsonOutput, "json", false, "output results in JSON format")
	fs.BoolVar(&coreOnly, "core", false, "run only the core benchmark subset")
	fs.BoolVar(&verbose, "v", false, "log each finished benchmark")

	return &ffcli.Command{
		Name:       "bench",
		ShortUsage: "r3ksim bench [flags]",
		ShortHelp:  "Run the microbenchmark harness",
		FlagSet:    fs,
		Options:    []ff.Option{ff.WithEnvVarPrefix(envPrefix)},
		Exec: func(ctx context.Context, args []string) error {
			stop, err := g.startProfile()
			if err != nil {
				return err
			}
			defer stop()

			logger, err := g.logger()
			if err != nil {
				return err
			}
			timing, err := g.timing()
			if err != nil {
				return err
			}

			config := benchmarks.DefaultConfig()
			config.EnableICache = !g.noICache
			config.EnableDCache = g.dcache
			config.Timing = timing
			config.Logger = logger
			config.Verbose = verbose
			config.Output = os.Stdout

			harness := benchmarks.NewHarness(config)
			if coreOnly {
				harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())
			} else {
				harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())
			}

			results, err := harness.RunAll()
			if err != nil {
				return err
			}

			switch {
			case jsonOutput:
				return harness.PrintJSON(results)
			case csvOutput:
				harness.PrintCSV(results)
			default:
				harness.PrintResults(results)
			}
			return nil
		},
	}
}
