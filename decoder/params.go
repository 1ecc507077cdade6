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

package decoder

import (
	"fmt"

	"github.com/spf13/afero"

	"github.com/dzkit/godz/gpt"
)

// sliceParams is the content of a "<slice>.image.params" file: what the
// chunker would need to reproduce the same chunk boundaries from a raw
// reconstructed slice image.
type sliceParams struct {
	Phantom    bool
	StartLBA   uint64
	StartAddr  uint64
	EndLBA     uint64
	EndAddr    uint64
	LastWipe   uint64
	BlockSize  uint64
	BlockShift uint8
}

func writeSliceParams(fs afero.Fs, path string, p sliceParams) error {
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("decoder: create %s: %w", path, err)
	}
	defer f.Close()

	if p.Phantom {
		_, err := fmt.Fprintln(f, "phantom=1")
		return err
	}

	lines := []string{
		fmt.Sprintf("startLBA=%d", p.StartLBA),
		fmt.Sprintf("startAddr=%d", p.StartAddr),
		fmt.Sprintf("endLBA=%d", p.EndLBA),
		fmt.Sprintf("endAddr=%d", p.EndAddr),
		fmt.Sprintf("lastWipe=%d", p.LastWipe),
		fmt.Sprintf("blockSize=%d", p.BlockSize),
		fmt.Sprintf("blockShift=%d", p.BlockShift),
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(f, line); err != nil {
			return fmt.Errorf("decoder: write %s: %w", path, err)
		}
	}
	return nil
}

func shiftForBlockSize(n uint64) (uint8, error) {
	return gpt.ShiftForBlockSize(n)
}
