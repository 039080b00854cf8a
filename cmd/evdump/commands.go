package main

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/urfave/cli/v2"

	"github.com/oy3o/evstream"
	"github.com/oy3o/evstream/internal/framegen"
)

var formatFlag = &cli.StringFlag{
	Name:    "format",
	Aliases: []string{"f"},
	Usage:   "Output format: text, json, yaml",
	Value:   "text",
}

func dumpCommand() *cli.Command {
	return &cli.Command{
		Name:      "dump",
		Usage:     "Print every decoded event and frame error",
		ArgsUsage: "[file...]",
		Flags: append(decodeFlags(),
			formatFlag,
			&cli.BoolFlag{Name: "metadata", Usage: "Also print metadata frames"},
			&cli.BoolFlag{Name: "schemas", Usage: "Print the klass registry after each stream"},
		),
		Action: dumpAction,
	}
}

func dumpAction(c *cli.Context) error {
	opts, log, err := decoderOptions(c)
	if err != nil {
		return err
	}
	defer log.Sync()
	if c.Bool("metadata") {
		opts = append(opts, evstream.WithEmitMetadata(true))
	}
	out, err := newRenderer(c.App.Writer, c.String(formatFlag.Name))
	if err != nil {
		return err
	}

	failed := false
	err = inputs(c, func(name string, r io.Reader) error {
		rd, err := evstream.NewReaderSize(r, c.Int(ChunkFlag.Name), opts...)
		if err != nil {
			return err
		}
		for {
			item, err := rd.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				var fe *evstream.FrameError
				if !errors.As(err, &fe) {
					return fmt.Errorf("%s: %w", name, err)
				}
				fmt.Fprintf(c.App.ErrWriter, "%s: %v\n", name, err)
				failed = true
				break
			}
			if err := out.item(name, item); err != nil {
				return err
			}
		}
		if c.Bool("schemas") {
			return out.klasses(name, rd.Assembler().Registry().Klasses())
		}
		return nil
	})
	if err != nil {
		return err
	}
	if failed {
		return cli.Exit("", exitStreamError)
	}
	return nil
}

func schemasCommand() *cli.Command {
	return &cli.Command{
		Name:      "schemas",
		Usage:     "Print the klass definitions a stream declares",
		ArgsUsage: "[file...]",
		Flags:     append(decodeFlags(), formatFlag),
		Action:    schemasAction,
	}
}

func schemasAction(c *cli.Context) error {
	opts, log, err := decoderOptions(c)
	if err != nil {
		return err
	}
	defer log.Sync()
	out, err := newRenderer(c.App.Writer, c.String(formatFlag.Name))
	if err != nil {
		return err
	}

	failed := false
	err = inputs(c, func(name string, r io.Reader) error {
		rd, err := evstream.NewReaderSize(r, c.Int(ChunkFlag.Name), opts...)
		if err != nil {
			return err
		}
		for {
			if _, err = rd.Next(); err != nil {
				break
			}
		}
		if !errors.Is(err, io.EOF) {
			var fe *evstream.FrameError
			if !errors.As(err, &fe) {
				return fmt.Errorf("%s: %w", name, err)
			}
			fmt.Fprintf(c.App.ErrWriter, "%s: %v\n", name, err)
			failed = true
		}
		return out.klasses(name, rd.Assembler().Registry().Klasses())
	})
	if err != nil {
		return err
	}
	if failed {
		return cli.Exit("", exitStreamError)
	}
	return nil
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:      "stats",
		Usage:     "Decode files concurrently and print per-stream counters",
		ArgsUsage: "file...",
		Flags:     decodeFlags(),
		Action:    statsAction,
	}
}

type streamResult struct {
	id    string
	name  string
	stats evstream.Stats
	err   error
}

func statsAction(c *cli.Context) error {
	names := c.Args().Slice()
	if len(names) == 0 {
		return cli.Exit("stats needs at least one file", 1)
	}
	opts, log, err := decoderOptions(c)
	if err != nil {
		return err
	}
	defer log.Sync()
	mux, err := evstream.NewMux(opts...)
	if err != nil {
		return err
	}

	chunk := c.Int(ChunkFlag.Name)
	results := make([]streamResult, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		// The same file may be named twice; each argument is its own stream.
		id := fmt.Sprintf("%d:%s", i, name)
		go func() {
			defer wg.Done()
			results[i] = streamResult{id: id, name: name, err: feedFile(mux, id, name, chunk)}
		}()
	}
	wg.Wait()

	stats := make(map[string]evstream.Stats, mux.Len())
	mux.Range(func(id string, asm *evstream.Assembler) bool {
		stats[id] = asm.Stats()
		return true
	})

	failed := false
	for _, res := range results {
		if res.err == nil {
			res.err = mux.Close(res.id)
		} else {
			_ = mux.Close(res.id)
		}
		s := stats[res.id]
		fmt.Fprintf(c.App.Writer, "%s\tbytes=%d frames=%d events=%d metadata=%d errors=%d\n",
			res.name, s.Bytes, s.Frames, s.Events, s.Metadata, s.Errors)
		if res.err != nil {
			fmt.Fprintf(c.App.ErrWriter, "%s: %v\n", res.name, res.err)
			failed = true
		}
	}
	if failed {
		return cli.Exit("", exitStreamError)
	}
	return nil
}

// feedFile streams one file into the mux as stream id.
func feedFile(mux *evstream.Mux, id, name string, chunk int) error {
	if err := mux.Open(id); err != nil {
		return err
	}
	f, err := openInput(name)
	if err != nil {
		return err
	}
	defer f.Close()

	if chunk <= 0 {
		chunk = evstream.ChunkSize
	}
	buf := make([]byte, chunk)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			if _, ferr := mux.Feed(id, buf[:n]); ferr != nil {
				return ferr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func sampleCommand() *cli.Command {
	return &cli.Command{
		Name:  "sample",
		Usage: "Write a generated sample stream",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Usage: "Number of events", Value: 1000},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output file (default stdout); .zst and .lz4 are compressed"},
			&cli.IntFlag{Name: "prefix-width", Usage: "String length prefix width: 1, 2 or 4", Value: evstream.DefaultPrefixWidth},
		},
		Action: sampleAction,
	}
}

func sampleAction(c *cli.Context) error {
	enc := framegen.Sample(framegen.New(framegen.WithPrefixWidth(c.Int("prefix-width"))), c.Int("count"))
	if err := enc.Err(); err != nil {
		return err
	}
	if path := c.String("output"); path != "" {
		w, err := createOutput(path)
		if err != nil {
			return err
		}
		if _, err := w.Write(enc.Bytes()); err != nil {
			w.Close()
			return err
		}
		return w.Close()
	}
	_, err := c.App.Writer.Write(enc.Bytes())
	return err
}
