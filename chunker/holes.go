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

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/dzkit/godz/dzformat"
	"github.com/dzkit/godz/internal/sparsehole"
)

// maxChunkSize is the 128 MiB uncompressed-size cap the Holes strategy
// enforces on every chunk: a data run longer than this is split at an
// artificial boundary rather than emitted as one oversized chunk.
const maxChunkSize = 1 << 27

func alignUp(x, blockSize int64) int64   { return (x + blockSize - 1) &^ (blockSize - 1) }
func alignDown(x, blockSize int64) int64 { return x &^ (blockSize - 1) }

// capChunkSize enforces the 128 MiB uncompressed-size cap: if the data run
// [current, hole) is too large, it reports an artificial boundary (treated
// as a zero-width hole, so wipeCount covers exactly the capped span with no
// extra tail) instead of letting one chunk grow unbounded. ok is false when
// no capping was needed and the caller's existing hole/next/wipeCount stand.
func capChunkSize(current, hole, blockSize int64) (newHole, newNext int64, wipeCount uint64, ok bool) {
	if hole-current < maxChunkSize {
		return 0, 0, 0, false
	}
	newHole = current + maxChunkSize
	return newHole, newHole, uint64(maxChunkSize) / uint64(blockSize), true
}

// RunHoles chunks in's content (a real OS file, since SEEK_HOLE/SEEK_DATA
// require one) using sparsehole's queries to find data/hole boundaries, and
// writes the resulting "<sliceName>_<targetAddr>.bin.chunk" files to outDir
// via fs.
func RunHoles(in *os.File, fs afero.Fs, outDir, sliceName string, p Params, variant dzformat.ChunkVariant) error {
	blockSize := int64(p.BlockSize)

	eof, err := in.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("chunker: seek end: %w", err)
	}

	current := int64(0)
	targetAddr := p.StartLBA

	for current < eof {
		hole, err := sparsehole.NextHole(in, current)
		if err != nil {
			return err
		}
		hole = alignUp(hole, blockSize)

		var next int64
		var wipeCount uint64
		if hole >= eof {
			next = eof
			wipeCount = p.LastWipe - targetAddr
		} else {
			dataStart, err := sparsehole.NextData(in, hole)
			switch {
			case sparsehole.IsNoMoreData(err):
				next = eof
				wipeCount = p.LastWipe - targetAddr
			case err != nil:
				return err
			default:
				next = alignDown(dataStart, blockSize)
				wipeCount = uint64(next-current) / p.BlockSize
			}
		}

		if h, n, w, capped := capChunkSize(current, hole, blockSize); capped {
			hole, next, wipeCount = h, n, w
		}

		name := chunkName(sliceName, targetAddr)
		path := filepath.Join(outDir, name+".chunk")
		cb, err := newChunkBuilder(fs, variant, path)
		if err != nil {
			return err
		}

		if _, err := in.Seek(current, io.SeekStart); err != nil {
			cb.Abort()
			return fmt.Errorf("chunker: seek input: %w", err)
		}
		if _, err := io.CopyN(cb, in, hole-current); err != nil {
			cb.Abort()
			return fmt.Errorf("chunker: reading %s: %w", sliceName, err)
		}

		if err := cb.Finish(variant, sliceName, uint32(targetAddr), uint32(wipeCount), p.Dev); err != nil {
			return err
		}

		current = next
		targetAddr = p.StartLBA + uint64(current)/p.BlockSize
	}

	return nil
}
