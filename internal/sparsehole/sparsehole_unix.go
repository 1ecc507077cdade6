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

//go:build unix

package sparsehole

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

// seekData/seekHole are the SEEK_DATA/SEEK_HOLE whence values. They are
// consistent across Linux and the BSDs/Darwin that implement them; on a
// unix variant that lacks support, the Seek call itself fails with EINVAL
// and NextHole/NextData return that error.
const (
	seekData = 3
	seekHole = 4
)

// NextHole returns the offset of the next hole in f at or after offset,
// via SEEK_HOLE.
func NextHole(f *os.File, offset int64) (int64, error) {
	pos, err := f.Seek(offset, seekHole)
	if err != nil {
		return 0, fmt.Errorf("sparsehole: seek hole: %w", err)
	}
	return pos, nil
}

// NextData returns the offset of the next data region in f at or after
// offset, via SEEK_DATA. Callers should treat ENXIO (no more data) as "rest
// of file is a hole".
func NextData(f *os.File, offset int64) (int64, error) {
	pos, err := f.Seek(offset, seekData)
	if err != nil {
		return 0, fmt.Errorf("sparsehole: seek data: %w", err)
	}
	return pos, nil
}

// IsNoMoreData reports whether err is the ENXIO returned by SEEK_DATA when
// there is no more data after offset (i.e. the rest of the file is a hole).
func IsNoMoreData(err error) bool {
	return errors.Is(err, syscall.ENXIO)
}
