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
	"os"

	"github.com/spf13/afero"

	"github.com/dzkit/godz/internal/sparsehole"
)

// ChunkSummary is one line of List's output.
type ChunkSummary struct {
	SliceIndex int
	ChunkIndex int
	ChunkName  string
	DataSize   uint32
}

// List returns a per-slice, per-chunk summary in slice/chunk order.
func (d *Decoder) List() []ChunkSummary {
	var out []ChunkSummary
	for si, s := range d.slices {
		for _, ci := range s.Chunks {
			c := d.chunks[ci]
			out = append(out, ChunkSummary{
				SliceIndex: si,
				ChunkIndex: ci,
				ChunkName:  c.header.ChunkName,
				DataSize:   c.header.DataSize,
			})
		}
	}
	return out
}

// ExtractChunk inflates chunk i, verifies its hashes, and writes the
// inflated bytes to outPath via fs. It pre-allocates a sparse hole of
// wipeCount*BlockSize bytes before writing, matching the reference tool's
// on-disk layout when the slice is later reconstructed chunk-by-chunk.
func (d *Decoder) ExtractChunk(fs afero.Fs, i int, outPath string) error {
	if i < 0 || i >= len(d.chunks) {
		return fmt.Errorf("decoder: chunk index %d out of range", i)
	}
	payload, err := d.inflate(i)
	if err != nil {
		return err
	}

	f, err := fs.Create(outPath)
	if err != nil {
		return fmt.Errorf("decoder: create %s: %w", outPath, err)
	}
	defer f.Close()

	holeSize := int64(d.chunks[i].header.WipeCount) * int64(d.BlockSize)
	if err := preallocate(f, holeSize, 0, holeSize); err != nil {
		return fmt.Errorf("decoder: pre-allocate %s: %w", outPath, err)
	}
	if _, err := f.WriteAt(payload, 0); err != nil {
		return fmt.Errorf("decoder: write %s: %w", outPath, err)
	}
	return nil
}

// ExtractChunkFile copies chunk i's raw header + compressed payload
// verbatim to outPath, without decompressing or re-verifying anything.
func (d *Decoder) ExtractChunkFile(fs afero.Fs, i int, outPath string) error {
	if i < 0 || i >= len(d.chunks) {
		return fmt.Errorf("decoder: chunk index %d out of range", i)
	}
	c := d.chunks[i]

	compressed := make([]byte, c.header.DataSize)
	if _, err := d.r.ReadAt(compressed, c.payloadOffset); err != nil {
		return fmt.Errorf("decoder: read chunk %d payload: %w", i, err)
	}

	f, err := fs.Create(outPath)
	if err != nil {
		return fmt.Errorf("decoder: create %s: %w", outPath, err)
	}
	defer f.Close()

	if _, err := f.Write(c.headerBytes); err != nil {
		return fmt.Errorf("decoder: write %s: %w", outPath, err)
	}
	if _, err := f.Write(compressed); err != nil {
		return fmt.Errorf("decoder: write %s: %w", outPath, err)
	}
	return nil
}

// ExtractSlice reconstructs slice si's raw image: one output file sized to
// the slice's LBA range, with each chunk's inflated payload written at its
// target offset and the tail truncated to the slice's exact length. A
// companion "<slice>.image.params" file captures what Chunker would need
// to reproduce the same chunk boundaries later.
func (d *Decoder) ExtractSlice(fs afero.Fs, si int, outPath, paramsPath string) error {
	if si < 0 || si >= len(d.slices) {
		return fmt.Errorf("decoder: slice index %d out of range", si)
	}
	s := d.slices[si]
	length := int64(s.EndLBA-s.StartLBA) * int64(d.BlockSize)

	if len(s.Chunks) == 0 {
		return writeSliceParams(fs, paramsPath, sliceParams{Phantom: true})
	}

	f, err := fs.Create(outPath)
	if err != nil {
		return fmt.Errorf("decoder: create %s: %w", outPath, err)
	}
	defer f.Close()

	if err := preallocate(f, length, 0, length); err != nil {
		return fmt.Errorf("decoder: pre-allocate %s: %w", outPath, err)
	}

	var lastWipe uint64
	for _, ci := range s.Chunks {
		c := d.chunks[ci]
		payload, err := d.inflate(ci)
		if err != nil {
			return err
		}
		rel := (int64(c.header.TargetAddr) - int64(s.StartLBA)) * int64(d.BlockSize)
		if _, err := f.WriteAt(payload, rel); err != nil {
			return fmt.Errorf("decoder: write %s: %w", outPath, err)
		}
		end := uint64(c.header.TargetAddr) + uint64(c.header.WipeCount)
		if end > lastWipe {
			lastWipe = end
		}
	}

	if err := f.Truncate(length); err != nil {
		return fmt.Errorf("decoder: truncate %s: %w", outPath, err)
	}

	shift, err := shiftForBlockSize(d.BlockSize)
	if err != nil {
		return err
	}

	return writeSliceParams(fs, paramsPath, sliceParams{
		StartLBA:  s.StartLBA,
		StartAddr: s.StartLBA * d.BlockSize,
		EndLBA:    s.EndLBA,
		EndAddr:   s.EndLBA * d.BlockSize,
		LastWipe:  lastWipe,
		BlockSize: d.BlockSize,
		BlockShift: shift,
	})
}

// ExtractImage reconstructs the whole container into a single output file,
// with every chunk written at its absolute target offset regardless of
// slice membership.
func (d *Decoder) ExtractImage(fs afero.Fs, outPath string) error {
	f, err := fs.Create(outPath)
	if err != nil {
		return fmt.Errorf("decoder: create %s: %w", outPath, err)
	}
	defer f.Close()

	var maxEnd int64
	for i, c := range d.chunks {
		payload, err := d.inflate(i)
		if err != nil {
			return err
		}
		off := int64(c.header.TargetAddr) * int64(d.BlockSize)
		if _, err := f.WriteAt(payload, off); err != nil {
			return fmt.Errorf("decoder: write %s: %w", outPath, err)
		}
		if end := off + int64(len(payload)); end > maxEnd {
			maxEnd = end
		}
	}
	return f.Truncate(maxEnd)
}

// SaveHeader dumps the verbatim 512-byte FileHeader to outPath.
func (d *Decoder) SaveHeader(fs afero.Fs, outPath string) error {
	f, err := fs.Create(outPath)
	if err != nil {
		return fmt.Errorf("decoder: create %s: %w", outPath, err)
	}
	defer f.Close()
	_, err = f.Write(d.headerBytes)
	return err
}

// preallocate extends f to totalSize and, on a real OS file, punches a
// hole over [offset, offset+length). On an in-memory filesystem (tests),
// Truncate alone already yields a zero-filled region.
func preallocate(f afero.File, totalSize, offset, length int64) error {
	if err := f.Truncate(totalSize); err != nil {
		return err
	}
	if length <= 0 {
		return nil
	}
	if osFile, ok := f.(*os.File); ok {
		return sparsehole.PreallocateSparse(osFile, totalSize, offset, length)
	}
	return nil
}
