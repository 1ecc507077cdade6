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

// Command mkdz reassembles a DZ container from a params file and a
// directory of chunk files.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/dzkit/godz/encoder"
	"github.com/dzkit/godz/internal/clierr"
)

func main() {
	app := &cli.App{
		Name:  "mkdz",
		Usage: "build a DZ container from params and chunk files",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "f", Usage: "output DZ container path", Required: true},
			&cli.StringFlag{Name: "d", Usage: "directory holding .dz.params and *.chunk files", Value: "."},
			&cli.BoolFlag{Name: "l", Usage: "list the chunks that would be written, without writing"},
			&cli.BoolFlag{Name: "m", Usage: "build the container"},
		},
		Action: run,
		ExitErrHandler: func(c *cli.Context, err error) {
			if err == nil {
				return
			}
			fmt.Fprintf(c.App.ErrWriter, "mkdz: %v\n", err)
			cli.OsExiter(clierr.Code(err))
		},
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(clierr.Code(err))
	}
}

var errUsage = fmt.Errorf("usage error")

func run(c *cli.Context) error {
	list, build := c.Bool("l"), c.Bool("m")
	if list == build {
		return fmt.Errorf("%w: exactly one of -l, -m is required", errUsage)
	}

	dir := c.String("d")
	fs := afero.NewOsFs()
	e, err := encoder.Open(fs, dir, filepath.Join(dir, ".dz.params"))
	if err != nil {
		return err
	}

	if list {
		for _, ch := range e.List() {
			fmt.Fprintf(c.App.Writer, "%-40s addr=%-10d wipe=%-10d data=%d\n",
				ch.ChunkName, ch.TargetAddr, ch.WipeCount, ch.DataSize)
		}
		return nil
	}

	return e.Write(c.String("f"))
}
