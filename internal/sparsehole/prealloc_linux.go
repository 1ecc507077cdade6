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

//go:build linux

package sparsehole

import (
	"fmt"
	"os"
	"syscall"
)

// PreallocateSparse extends f to size bytes and punches a hole over
// [offset, offset+length), so the region reads back as zero without
// occupying disk space. Used by the Decoder to pre-allocate a chunk's
// wipeCount*blockSize region before writing its inflated payload.
func PreallocateSparse(f *os.File, size, offset, length int64) error {
	if err := f.Truncate(size); err != nil {
		return fmt.Errorf("sparsehole: truncate: %w", err)
	}
	if length <= 0 {
		return nil
	}
	const flags = unix_FALLOC_FL_PUNCH_HOLE | unix_FALLOC_FL_KEEP_SIZE
	if err := syscall.Fallocate(int(f.Fd()), flags, offset, length); err != nil {
		return fmt.Errorf("sparsehole: fallocate punch hole: %w", err)
	}
	return nil
}

// Linux-specific fallocate mode flags (see linux/falloc.h); duplicated here
// rather than imported from golang.org/x/sys/unix to keep this leaf
// dependency-free, since syscall.Fallocate already exists in the standard
// library on Linux.
const (
	unix_FALLOC_FL_KEEP_SIZE  = 0x01
	unix_FALLOC_FL_PUNCH_HOLE = 0x02
)
