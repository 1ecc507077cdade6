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

//go:build !unix

package sparsehole

import "os"

// NextHole is unsupported outside unix-likes: Windows has no SEEK_HOLE
// equivalent reachable from the standard library. chunker.RunHoles returns
// this error to its caller unchanged.
func NextHole(_ *os.File, _ int64) (int64, error) {
	return 0, ErrNotSupported
}

// NextData is unsupported outside unix-likes; see NextHole.
func NextData(_ *os.File, _ int64) (int64, error) {
	return 0, ErrNotSupported
}

// IsNoMoreData always reports false on platforms without SEEK_DATA, since
// NextData never succeeds here in the first place.
func IsNoMoreData(_ error) bool {
	return false
}
