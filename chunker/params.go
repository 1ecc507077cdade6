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

// Package chunker produces DZ chunk files (header + zlib-compressed payload)
// from a raw slice image, under one of three strategies: Holes (OS-level
// sparse-region queries), Probe (byte-scan for all-zero regions), and
// Sparse-EXT4 (parse the sparse image stream an external tool emits).
package chunker

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// Params is a slice's "<name>.params" file: the addressing context a
// strategy needs to place its chunks on the slice's LBA range.
type Params struct {
	BlockShift uint8
	BlockSize  uint64
	StartLBA   uint64
	EndLBA     uint64
	LastWipe   uint64
	Dev        uint32
}

// LoadParams reads a "key=value" params file. ok is false when the file
// declares "phantom=1" -- the slice has no backing image and no chunks
// should be produced for it. "dev" is optional and defaults to 0.
func LoadParams(fs afero.Fs, path string) (p Params, ok bool, err error) {
	f, err := fs.Open(path)
	if err != nil {
		return Params{}, false, fmt.Errorf("chunker: open %s: %w", path, err)
	}
	defer f.Close()

	values := make(map[string]uint64)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		k, v, found := strings.Cut(line, "=")
		if !found {
			return Params{}, false, fmt.Errorf("chunker: %s: malformed line %q", path, line)
		}
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return Params{}, false, fmt.Errorf("chunker: %s: bad value for %q: %w", path, k, err)
		}
		values[strings.TrimSpace(k)] = n
	}
	if err := sc.Err(); err != nil {
		return Params{}, false, fmt.Errorf("chunker: read %s: %w", path, err)
	}

	if values["phantom"] == 1 {
		return Params{}, false, nil
	}

	for _, k := range []string{"blockShift", "startLBA", "endLBA", "lastWipe"} {
		if _, present := values[k]; !present {
			return Params{}, false, fmt.Errorf("chunker: %s: missing required key %q", path, k)
		}
	}

	p = Params{
		BlockShift: uint8(values["blockShift"]),
		BlockSize:  uint64(1) << values["blockShift"],
		StartLBA:   values["startLBA"],
		EndLBA:     values["endLBA"],
		LastWipe:   values["lastWipe"],
		Dev:        uint32(values["dev"]),
	}
	return p, true, nil
}
