// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package main implements a tool to inspect PNG chunks.
package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/siderolabs/go-pngchunk"
	"github.com/siderolabs/go-pngchunk/zstd"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

var cli struct {
	Debug bool `help:"Enable debug logging."`

	List   listCmd   `cmd:"" help:"List chunks."`
	Verify verifyCmd `cmd:"" help:"Verify every chunk."`
	Show   showCmd   `cmd:"" help:"Print the payload of a chunk as text."`
}

type listCmd struct {
	File        string `arg:"" type:"existingfile" help:"PNG file or raw chunk stream."`
	SkipCorrupt bool   `help:"Skip chunks with checksum mismatch."`
}

func (cmd *listCmd) Run(logger *zap.Logger) error {
	return cmd.run(os.Stdout, logger)
}

func (cmd *listCmd) run(out io.Writer, logger *zap.Logger) error {
	return withDecoder(cmd.File, logger, []pngchunk.OptionFunc{pngchunk.WithSkipCorrupt(cmd.SkipCorrupt)},
		func(dec *pngchunk.Decoder, base int64) error {
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

			fmt.Fprintln(w, "OFFSET\tTYPE\tLENGTH\tCRC\tFLAGS") //nolint:errcheck

			for {
				c, err := dec.Decode()
				if err == io.EOF { //nolint:errorlint
					break
				}

				if err != nil {
					w.Flush() //nolint:errcheck

					return err
				}

				fmt.Fprintf(w, "%d\t%s\t%d\t%08x\t%s\n", base+dec.LastOffset(), c.Type(), c.Length(), c.CRC(), flags(c.Type())) //nolint:errcheck
			}

			return w.Flush()
		})
}

type verifyCmd struct {
	File string `arg:"" type:"existingfile" help:"PNG file or raw chunk stream."`
}

func (cmd *verifyCmd) Run(logger *zap.Logger) error {
	return cmd.run(os.Stdout, logger)
}

func (cmd *verifyCmd) run(out io.Writer, logger *zap.Logger) error {
	return withDecoder(cmd.File, logger, nil, func(dec *pngchunk.Decoder, _ int64) error {
		chunks, err := dec.DecodeAll()
		if err != nil {
			return err
		}

		_, err = fmt.Fprintf(out, "%d chunks OK\n", len(chunks))

		return err
	})
}

type showCmd struct {
	File  string `arg:"" type:"existingfile" help:"PNG file or raw chunk stream."`
	Type  string `required:"" short:"t" help:"Chunk type to print."`
	Zstd  bool   `help:"Decompress the payload with zstd."`
	Limit int64  `default:"16777216" help:"Maximum decompressed payload size."`
}

func (cmd *showCmd) Run(logger *zap.Logger) error {
	return cmd.run(os.Stdout, logger)
}

func (cmd *showCmd) run(out io.Writer, logger *zap.Logger) error {
	t, err := pngchunk.ParseChunkType(cmd.Type)
	if err != nil {
		return err
	}

	return withDecoder(cmd.File, logger, nil, func(dec *pngchunk.Decoder, _ int64) error {
		chunks, err := dec.DecodeAll()
		if err != nil {
			return err
		}

		found := pngchunk.Find(chunks, t)
		if !found.IsPresent() {
			return fmt.Errorf("no chunk of type %s", t)
		}

		c := found.ValueOrZero()

		if cmd.Zstd {
			compressor, err := zstd.NewCompressor()
			if err != nil {
				return err
			}

			defer compressor.Close()

			data, err := c.Decompress(compressor, cmd.Limit)
			if err != nil {
				return err
			}

			c = pngchunk.NewChunk(c.Type(), data)
		}

		text, err := c.Text()
		if err != nil {
			return err
		}

		_, err = fmt.Fprintln(out, text)

		return err
	})
}

// withDecoder opens path, skips the PNG signature if present and passes a Decoder to fn
// along with the offset of the first chunk.
func withDecoder(path string, logger *zap.Logger, opts []pngchunk.OptionFunc, fn func(*pngchunk.Decoder, int64) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}

	defer f.Close() //nolint:errcheck

	r := bufio.NewReader(f)

	var base int64

	if sig, err := r.Peek(len(pngSignature)); err == nil && bytes.Equal(sig, pngSignature) {
		if _, err = r.Discard(len(pngSignature)); err != nil {
			return err
		}

		base = int64(len(pngSignature))
	}

	logger.Debug("reading chunks", zap.String("path", path), zap.Bool("signature", base > 0))

	dec, err := pngchunk.NewDecoder(r, append(opts, pngchunk.WithLogger(logger))...)
	if err != nil {
		return err
	}

	if err = fn(dec, base); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	return nil
}

func flags(t pngchunk.ChunkType) string {
	var out []string

	if t.IsCritical() {
		out = append(out, "critical")
	} else {
		out = append(out, "ancillary")
	}

	if t.IsPublic() {
		out = append(out, "public")
	} else {
		out = append(out, "private")
	}

	if t.IsSafeToCopy() {
		out = append(out, "safe-to-copy")
	}

	return strings.Join(out, ",")
}

func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()

	if !debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}

	return cfg.Build()
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("pngchunk"),
		kong.Description("Inspect PNG chunks."),
		kong.UsageOnError(),
	)

	logger, err := newLogger(cli.Debug)
	ctx.FatalIfErrorf(err)

	defer logger.Sync() //nolint:errcheck

	ctx.FatalIfErrorf(ctx.Run(logger))
}
