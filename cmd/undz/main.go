// Copyright (c) 2026 The godz Authors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of godz.
//
// godz is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// godz is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with godz.  If not, see <https://www.gnu.org/licenses/>.

// Command undz extracts a DZ container's chunks, slices or whole
// reconstructed image to a directory.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/dzkit/godz/decoder"
	"github.com/dzkit/godz/dzformat"
	"github.com/dzkit/godz/internal/clierr"
)

func main() {
	app := &cli.App{
		Name:  "undz",
		Usage: "extract a DZ container",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "f", Usage: "DZ container to read", Required: true},
			&cli.BoolFlag{Name: "l", Usage: "list slices and chunks"},
			&cli.BoolFlag{Name: "x", Usage: "extract chunk payload(s) by index"},
			&cli.BoolFlag{Name: "c", Usage: "extract raw chunk file(s) by index"},
			&cli.BoolFlag{Name: "s", Usage: "extract slice(s) by index"},
			&cli.BoolFlag{Name: "i", Usage: "extract the whole reconstructed image"},
			&cli.StringFlag{Name: "d", Usage: "output directory", Value: "."},
			&cli.StringFlag{Name: "b", Usage: "block size in bytes, or chunk header variant (\"reserved\"|\"dev\")"},
		},
		ArgsUsage: "[ids...]",
		Action:    run,
		ExitErrHandler: func(c *cli.Context, err error) {
			if err == nil {
				return
			}
			fmt.Fprintf(c.App.ErrWriter, "undz: %v\n", err)
			cli.OsExiter(clierr.Code(err))
		},
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(clierr.Code(err))
	}
}

func run(c *cli.Context) error {
	mode, err := pickMode(c)
	if err != nil {
		return err
	}

	blockSize, variant, err := parseBlockSizeOrVariant(c.String("b"))
	if err != nil {
		return err
	}

	in, err := os.Open(c.String("f"))
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}

	d, err := decoder.Open(in, info.Size(), variant, blockSize)
	if err != nil {
		return err
	}
	for _, w := range d.Warnings {
		fmt.Fprintf(c.App.ErrWriter, "undz: warning: %s\n", w)
	}

	outDir := c.String("d")
	fs := afero.NewOsFs()
	if err := fs.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	switch mode {
	case 'l':
		return listContainer(c, d)
	case 'x':
		return withIDs(c, d.ChunkCount(), func(i int) error {
			return d.ExtractChunk(fs, i, filepath.Join(outDir, fmt.Sprintf("chunk%d.bin", i)))
		})
	case 'c':
		if err := withIDs(c, d.ChunkCount(), func(i int) error {
			ch, _ := d.ChunkHeader(i)
			return d.ExtractChunkFile(fs, i, filepath.Join(outDir, ch.ChunkName+".chunk"))
		}); err != nil {
			return err
		}
		return d.SaveHeader(fs, filepath.Join(outDir, ".header"))
	case 's':
		if err := withIDs(c, len(d.Slices()), func(si int) error {
			name := d.Slices()[si].Name
			return d.ExtractSlice(fs, si,
				filepath.Join(outDir, name+".image"),
				filepath.Join(outDir, name+".image.params"))
		}); err != nil {
			return err
		}
		return d.SaveHeader(fs, filepath.Join(outDir, ".header"))
	case 'i':
		if err := d.ExtractImage(fs, filepath.Join(outDir, "image.bin")); err != nil {
			return err
		}
		return d.SaveHeader(fs, filepath.Join(outDir, ".header"))
	}
	return nil
}

// pickMode enforces that exactly one of -l/-x/-c/-s/-i was given.
func pickMode(c *cli.Context) (byte, error) {
	set := map[byte]bool{'l': c.Bool("l"), 'x': c.Bool("x"), 'c': c.Bool("c"), 's': c.Bool("s"), 'i': c.Bool("i")}
	var mode byte
	var count int
	for m, v := range set {
		if v {
			mode = m
			count++
		}
	}
	if count != 1 {
		return 0, fmt.Errorf("%w: exactly one of -l, -x, -c, -s, -i is required", errUsage)
	}
	return mode, nil
}

var errUsage = fmt.Errorf("usage error")

func listContainer(c *cli.Context, d *decoder.Decoder) error {
	for _, line := range d.List() {
		fmt.Fprintf(c.App.Writer, "%2d:%-2d %-40s %d\n", line.SliceIndex, line.ChunkIndex, line.ChunkName, line.DataSize)
	}
	return nil
}

// withIDs runs fn over the positional id arguments, or over every index in
// [0, count) when none were given.
func withIDs(c *cli.Context, count int, fn func(int) error) error {
	args := c.Args().Slice()
	if len(args) == 0 {
		for i := 0; i < count; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}
	for _, a := range args {
		i, err := strconv.Atoi(a)
		if err != nil {
			return fmt.Errorf("%w: invalid id %q", errUsage, a)
		}
		if i < 0 || i >= count {
			return fmt.Errorf("%w: id %d out of range", errUsage, i)
		}
		if err := fn(i); err != nil {
			return err
		}
	}
	return nil
}

// parseBlockSizeOrVariant interprets -b as either a block size in bytes or
// a chunk header variant keyword; empty defaults to 512-byte blocks and
// the original "reserved" variant.
func parseBlockSizeOrVariant(s string) (uint64, dzformat.ChunkVariant, error) {
	switch s {
	case "":
		return 512, dzformat.VariantReserved, nil
	case "reserved":
		return 512, dzformat.VariantReserved, nil
	case "dev":
		return 512, dzformat.VariantDev, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: -b must be a block size or \"reserved\"/\"dev\": %v", errUsage, err)
	}
	return n, dzformat.VariantReserved, nil
}
