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

// Package sparsehole provides OS-level sparse-region queries (SEEK_HOLE /
// SEEK_DATA) behind a build-tag-split interface, and sparse
// pre-allocation of trimmed regions. Only Linux and other unix-likes with
// SEEK_HOLE support get a real implementation; elsewhere NextHole/NextData
// report ErrNotSupported, which the Holes chunking strategy returns to its
// caller.
package sparsehole

import "errors"

// ErrNotSupported is returned by NextHole/NextData on platforms without
// SEEK_HOLE/SEEK_DATA support.
var ErrNotSupported = errors.New("sparsehole: SEEK_HOLE/SEEK_DATA not supported on this platform")
