// Command r3ksim runs programs on the cycle-accurate R3000A core.
//
// Usage:
//
//	r3ksim [flags] <subcommand> [flags] <program>
//
// Subcommands:
//
//	run      execute a PS-X EXE or ELF program
//	disasm   disassemble the text of a program
//	profile  execute a program and export per-address counters to SQLite
//	serve    expose the debugger HTTP API for a loaded program
//	bench    run the microbenchmark harness
//
// Every flag can also be set from the environment with the R3KSIM_ prefix,
// for example R3KSIM_CONFIG=timing.yaml.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
)

const envPrefix = "R3KSIM"

func main() {
	appName := filepath.Base(os.Args[0])

	rootFlagSet := flag.NewFlagSet(appName, flag.ExitOnError)
	global := &globalFlags{}
	global.register(rootFlagSet)

	ctx := context.Background()
	// trap Ctrl+C and call cancel on the context
	ctx, cancel := context.WithCancel(ctx)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)

	defer func() {
		signal.Stop(quit)
		cancel()
	}()

	go func() {
		<-quit
		cancel()
	}()

	root := &ffcli.Command{
		ShortUsage: appName + " [flags] <subcommand>",
		FlagSet:    rootFlagSet,
		Options:    []ff.Option{ff.WithEnvVarPrefix(envPrefix)},
		Subcommands: []*ffcli.Command{
			runCommand(global),
			disasmCommand(global),
			profileCommand(global),
			serveCommand(global),
			benchCommand(global),
		},
		Exec: func(context.Context, []string) error {
			return flag.ErrHelp
		},
	}

	err := root.ParseAndRun(ctx, os.Args[1:])
	if err != nil && !errors.Is(err, flag.ErrHelp) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
