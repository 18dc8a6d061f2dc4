package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/sarchlab/r3ksim/insts"
	"github.com/sarchlab/r3ksim/loader"
)

var (
	addrColor   = color.New(color.FgYellow)
	branchColor = color.New(color.FgGreen)
	callColor   = color.New(color.FgMagenta, color.Bold)
	memColor    = color.New(color.FgCyan)
)

func disasmCommand(g *globalFlags) *ffcli.Command {
	fs := flag.NewFlagSet("disasm", flag.ExitOnError)
	var (
		count   uint
		noColor bool
	)
	fs.UintVar(&count, "n", 0, "number of instructions per segment, 0 = all")
	fs.BoolVar(&noColor, "no-color", false, "disable highlighting")

	return &ffcli.Command{
		Name:       "disasm",
		ShortUsage: "r3ksim disasm [flags] <program>",
		ShortHelp:  "Disassemble the loadable segments of a program",
		FlagSet:    fs,
		Options:    []ff.Option{ff.WithEnvVarPrefix(envPrefix)},
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return flag.ErrHelp
			}
			if noColor {
				color.NoColor = true
			}

			prog, err := loader.Load(args[0])
			if err != nil {
				return fmt.Errorf("loading program: %w", err)
			}

			fmt.Printf("%s %s, entry 0x%08X\n", args[0], prog.Format, prog.EntryPoint)
			for _, seg := range prog.Segments {
				if seg.Flags&loader.SegmentFlagExecute == 0 {
					continue
				}
				disassembleSegment(os.Stdout, seg, int(count))
			}
			return nil
		},
	}
}

func disassembleSegment(w io.Writer, seg loader.Segment, count int) {
	decoder := insts.NewDecoder()
	n := len(seg.Data) / 4
	if count > 0 {
		n = min(n, count)
	}

	_, _ = fmt.Fprintf(w, "\nsegment 0x%08X (%d bytes):\n", seg.VirtAddr, len(seg.Data))
	for i := 0; i < n; i++ {
		pc := seg.VirtAddr + uint32(i)*4
		word := binary.LittleEndian.Uint32(seg.Data[i*4:])
		inst := decoder.Decode(word)

		text := insts.Disassemble(inst, pc)
		switch {
		case inst.IsCall():
			text = callColor.Sprint(text)
		case inst.IsBranch():
			text = branchColor.Sprint(text)
		case inst.IsLoad(), inst.IsStore():
			text = memColor.Sprint(text)
		}

		_, _ = fmt.Fprintf(w, "%s  %08X  %s\n", addrColor.Sprintf("%08X", pc), word, text)
	}
}
