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

//go:build !linux

package sparsehole

import (
	"fmt"
	"os"
)

// PreallocateSparse extends f to size bytes via Truncate only. Non-Linux
// platforms have no portable punch-hole syscall reachable from the
// standard library, so the wipe region is allocated dense (physically
// zero-filled) rather than sparse; the contents read back identically.
func PreallocateSparse(f *os.File, size, _, _ int64) error {
	if err := f.Truncate(size); err != nil {
		return fmt.Errorf("sparsehole: truncate: %w", err)
	}
	return nil
}
