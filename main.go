// Package main provides the entry point for r3ksim.
// r3ksim is a cycle-accurate R3000A CPU core simulator.
//
// For the full CLI, use: go run ./cmd/r3ksim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("r3ksim - R3000A CPU Core Simulator")
	fmt.Println("")
	fmt.Println("Usage: r3ksim [flags] <subcommand> [flags] <program>")
	fmt.Println("")
	fmt.Println("Subcommands:")
	fmt.Println("  run      Execute a PS-X EXE or ELF program")
	fmt.Println("  disasm   Disassemble the text of a program")
	fmt.Println("  profile  Execute a program and export per-address counters")
	fmt.Println("  serve    Serve the debugger HTTP API")
	fmt.Println("  bench    Run the microbenchmark harness")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/r3ksim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/r3ksim' instead.")
	}
}
