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

// Command img2chunks splits a raw slice image into DZ chunk files, using
// one of three wipe-region detection strategies.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/dzkit/godz/chunker"
	"github.com/dzkit/godz/dzformat"
	"github.com/dzkit/godz/internal/clierr"
)

func main() {
	app := &cli.App{
		Name:      "img2chunks",
		Usage:     "split a raw slice image into DZ chunk files",
		ArgsUsage: "file...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "e", Usage: "Sparse-EXT4 strategy, via ext2simg"},
			&cli.BoolFlag{Name: "s", Usage: "Holes strategy, OS sparse-region queries"},
			&cli.BoolFlag{Name: "p", Usage: "Probe strategy, byte-scan for zero runs"},
			&cli.StringFlag{Name: "d", Usage: "output directory for chunk files", Value: "."},
			&cli.StringFlag{Name: "b", Usage: "chunk header variant (\"reserved\"|\"dev\")", Value: "reserved"},
		},
		Action: run,
		ExitErrHandler: func(c *cli.Context, err error) {
			if err == nil {
				return
			}
			fmt.Fprintf(c.App.ErrWriter, "img2chunks: %v\n", err)
			cli.OsExiter(clierr.Code(err))
		},
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(clierr.Code(err))
	}
}

var errUsage = fmt.Errorf("usage error")

func run(c *cli.Context) error {
	e, s, p := c.Bool("e"), c.Bool("s"), c.Bool("p")
	if count(e, s, p) != 1 {
		return fmt.Errorf("%w: exactly one of -e, -s, -p is required", errUsage)
	}

	variant, err := parseVariant(c.String("b"))
	if err != nil {
		return err
	}

	files := c.Args().Slice()
	if len(files) == 0 {
		return fmt.Errorf("%w: at least one input image is required", errUsage)
	}

	outDir := c.String("d")
	fs := afero.NewOsFs()
	if err := fs.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	for _, imagePath := range files {
		sliceName := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
		paramsPath := imagePath + ".params"

		params, ok, err := chunker.LoadParams(fs, paramsPath)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(c.App.ErrWriter, "img2chunks: %s: phantom slice, skipping\n", sliceName)
			continue
		}

		switch {
		case e:
			if err := chunker.RunSparseEXT4(context.Background(), imagePath, fs, outDir, sliceName, params, variant); err != nil {
				return err
			}
		case s:
			if err := runHoles(fs, imagePath, outDir, sliceName, params, variant); err != nil {
				return err
			}
		case p:
			if err := runProbe(fs, imagePath, outDir, sliceName, params, variant); err != nil {
				return err
			}
		}
	}
	return nil
}

func runHoles(fs afero.Fs, imagePath, outDir, sliceName string, p chunker.Params, variant dzformat.ChunkVariant) error {
	f, err := os.Open(imagePath)
	if err != nil {
		return err
	}
	defer f.Close()
	return chunker.RunHoles(f, fs, outDir, sliceName, p, variant)
}

func runProbe(fs afero.Fs, imagePath, outDir, sliceName string, p chunker.Params, variant dzformat.ChunkVariant) error {
	f, err := os.Open(imagePath)
	if err != nil {
		return err
	}
	defer f.Close()
	return chunker.RunProbe(f, fs, outDir, sliceName, p, variant)
}

func parseVariant(s string) (dzformat.ChunkVariant, error) {
	switch s {
	case "reserved":
		return dzformat.VariantReserved, nil
	case "dev":
		return dzformat.VariantDev, nil
	default:
		return 0, fmt.Errorf("%w: -b must be \"reserved\" or \"dev\"", errUsage)
	}
}

func count(bs ...bool) int {
	n := 0
	for _, b := range bs {
		if b {
			n++
		}
	}
	return n
}
