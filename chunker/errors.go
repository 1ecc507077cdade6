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

package chunker

import "errors"

// ErrExternalTool indicates the Sparse-EXT4 strategy's spawned sparse-image
// tool exited nonzero, was killed by a signal, or closed its pipe before
// producing a complete stream.
var ErrExternalTool = errors.New("chunker: external sparse-image tool failed")
