package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/sarchlab/r3ksim/debugserver"
)

func serveCommand(g *globalFlags) *ffcli.Command {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	var addr string
	fs.StringVar(&addr, "addr", "localhost:8080", "listen address")

	return &ffcli.Command{
		Name:       "serve",
		ShortUsage: "r3ksim serve [flags] <program>",
		ShortHelp:  "Load a program and serve the debugger API",
		FlagSet:    fs,
		Options:    []ff.Option{ff.WithEnvVarPrefix(envPrefix)},
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return flag.ErrHelp
			}

			m, err := g.newMachine(args[0])
			if err != nil {
				return err
			}

			server := debugserver.New(m.core)
			errc := make(chan error, 1)
			go func() {
				errc <- server.Start(addr)
			}()

			fmt.Printf("Debugger listening on %s\n", addr)

			select {
			case <-ctx.Done():
				if err := server.Close(); err != nil {
					return fmt.Errorf("closing server: %w", err)
				}
				return nil
			case err := <-errc:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}
}
