package main

import (
	"io"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/oy3o/evstream"
	"github.com/oy3o/evstream/internal/logging"
)

const exitStreamError = 2

// Shared flags for commands that decode input.
var (
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "YAML decoder config (limits, redefine policy, preloaded klasses)",
	}
	ChunkFlag = &cli.IntFlag{
		Name:  "chunk",
		Usage: "Read size in bytes",
		Value: evstream.ChunkSize,
	}
	FailFastFlag = &cli.BoolFlag{
		Name:  "fail-fast",
		Usage: "Stop at the first bad frame",
	}
	LogLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "Diagnostics level on stderr: debug, info, warn, error",
		Value: "error",
	}
)

func decodeFlags() []cli.Flag {
	return []cli.Flag{ConfigFlag, ChunkFlag, FailFastFlag, LogLevelFlag}
}

// decoderOptions builds decoder options from --config and the flags.
func decoderOptions(c *cli.Context) ([]evstream.Option, *zap.Logger, error) {
	opts := evstream.DefaultOptions()
	if path := c.String(ConfigFlag.Name); path != "" {
		var err error
		if opts, err = evstream.LoadConfig(path); err != nil {
			return nil, nil, err
		}
	}
	log, err := logging.New(os.Stderr, c.String(LogLevelFlag.Name))
	if err != nil {
		return nil, nil, err
	}
	set := []evstream.Option{evstream.WithOptions(opts), evstream.WithLogger(log)}
	if c.Bool(FailFastFlag.Name) {
		set = append(set, evstream.WithFailFast(true))
	}
	return set, log, nil
}

// inputs yields the named files, or stdin when there are none or the name is "-".
// Compressed files are unwrapped by openInput.
func inputs(c *cli.Context, fn func(name string, r io.Reader) error) error {
	names := c.Args().Slice()
	if len(names) == 0 {
		names = []string{"-"}
	}
	for _, name := range names {
		if name == "-" {
			if err := fn("<stdin>", os.Stdin); err != nil {
				return err
			}
			continue
		}
		f, err := openInput(name)
		if err != nil {
			return err
		}
		err = fn(name, f)
		f.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
