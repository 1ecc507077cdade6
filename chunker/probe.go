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
	"bytes"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/dzkit/godz/dzformat"
)

// RunProbe chunks in's content by scanning fixed blockSize*1024 quanta for
// all-zero runs, for systems without OS-level sparse-region queries. It
// always emits at least one chunk starting at p.StartLBA, even when the slice
// begins with zeros, to match the reference tool's behavior. The state
// machine: a leading run of zero quanta is absorbed into the first chunk's
// payload; once a nonzero quantum has been seen, a subsequent zero quantum
// opens a "skip" run that either keeps growing (more zero quanta) or is
// closed out by the next nonzero quantum (finalizing the current chunk and
// opening a new one at the post-skip address) or by EOF (absorbed into the
// current chunk's tail via lastWipe).
func RunProbe(in io.Reader, fs afero.Fs, outDir, sliceName string, p Params, variant dzformat.ChunkVariant) error {
	quanta := int64(p.BlockSize) * 1024

	targetAddr := p.StartLBA
	blocksConsumed := uint64(0) // total quanta-blocks read from in, across all chunks

	open := func(addr uint64) (*chunkBuilder, error) {
		path := filepath.Join(outDir, chunkName(sliceName, addr)+".chunk")
		return newChunkBuilder(fs, variant, path)
	}

	cb, err := open(targetAddr)
	if err != nil {
		return err
	}

	var (
		seenNonZero    bool
		inSkip         bool
		chunkDataBlock uint64 // quanta-blocks written into cb's payload so far
		skipBlocks     uint64 // quanta-blocks absorbed into the current skip run
	)

	buf := make([]byte, quanta)
	for {
		n, readErr := io.ReadFull(in, buf)
		if n == 0 {
			break
		}
		block := buf[:n]
		blocks := uint64(n) / p.BlockSize
		isZero := len(bytes.TrimLeft(block, "\x00")) == 0
		atEOF := readErr == io.EOF || readErr == io.ErrUnexpectedEOF

		switch {
		case !inSkip && isZero && seenNonZero:
			// Leading data run for this chunk has ended; start skipping.
			inSkip = true
			skipBlocks = blocks

		case !inSkip:
			// Either still absorbing a leading zero run, or appending
			// nonzero data: both get written into the current chunk.
			if _, err := cb.Write(block); err != nil {
				cb.Abort()
				return fmt.Errorf("chunker: probe: %w", err)
			}
			chunkDataBlock += blocks
			blocksConsumed += blocks
			if !isZero {
				seenNonZero = true
			}

		case inSkip && isZero:
			// Still within the skip run; counted into blocksConsumed only
			// once the run closes, alongside the rest of skipBlocks.
			skipBlocks += blocks

		default: // inSkip && !isZero: close the skip run, start a fresh chunk
			if err := cb.Finish(variant, sliceName, uint32(targetAddr), uint32(chunkDataBlock+skipBlocks), p.Dev); err != nil {
				return err
			}
			blocksConsumed += skipBlocks
			targetAddr = p.StartLBA + blocksConsumed
			skipBlocks = 0
			chunkDataBlock = 0
			inSkip = false
			seenNonZero = true

			cb, err = open(targetAddr)
			if err != nil {
				return err
			}
			if _, err := cb.Write(block); err != nil {
				cb.Abort()
				return fmt.Errorf("chunker: probe: %w", err)
			}
			chunkDataBlock += blocks
			blocksConsumed += blocks
		}

		if atEOF {
			break
		}
		if readErr != nil {
			cb.Abort()
			return fmt.Errorf("chunker: probe: reading %s: %w", sliceName, readErr)
		}
	}

	// The final chunk of a slice always absorbs the tail to lastWipe,
	// regardless of whether it ended mid-data or mid-skip.
	return cb.Finish(variant, sliceName, uint32(targetAddr), uint32(p.LastWipe-targetAddr), p.Dev)
}
