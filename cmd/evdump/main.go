// Package main provides the evdump CLI: decode event streams and print
// their events and klass definitions.
//
// Usage:
//
//	evdump <command> [options] [file...]
//
// Exit codes:
//   - 0: every stream ended on a frame boundary
//   - 1: usage or I/O error
//   - 2: a stream was fatal or truncated
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// version is set via ldflags at build time.
var version = "dev"

func main() {
	app := newApp()
	app.ExitErrHandler = exitErrHandler
	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "evdump",
		Usage:   "Decode self-describing binary event streams",
		Version: version,
		Commands: []*cli.Command{
			dumpCommand(),
			schemasCommand(),
			statsCommand(),
			sampleCommand(),
		},
	}
}

// exitErrHandler preserves exit codes from cli.Exit.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
