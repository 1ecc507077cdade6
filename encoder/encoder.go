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

package encoder

import (
	"crypto/md5"
	"fmt"
	"io"

	"github.com/spf13/afero"

	"github.com/dzkit/godz/dzformat"
	"github.com/dzkit/godz/dzstruct"
)

// Encoder reassembles a DZ container from a ".dz.params" file and a
// directory of ".chunk" files, the reverse of Decoder's extraction.
type Encoder struct {
	fs      afero.Fs
	dir     string
	header  dzformat.FileHeader
	variant dzformat.ChunkVariant
	chunks  []loadedChunk
}

// Open loads dir's ".dz.params" and every sibling "*.chunk" file, sorts the
// chunk set into write order, and checks it for overlap -- everything
// short of actually streaming bytes to an output file.
func Open(fs afero.Fs, dir, paramsFile string) (*Encoder, error) {
	header, blockShift, variant, err := LoadContainerParams(fs, paramsFile)
	if err != nil {
		return nil, err
	}

	chunks, err := loadChunks(fs, dir, variant)
	if err != nil {
		return nil, err
	}
	sortChunks(chunks)
	if err := checkOverlap(chunks); err != nil {
		return nil, err
	}
	if err := checkWipeCounts(chunks, blockShift); err != nil {
		return nil, err
	}

	return &Encoder{fs: fs, dir: dir, header: header, variant: variant, chunks: chunks}, nil
}

func checkWipeCounts(chunks []loadedChunk, blockShift uint8) error {
	for _, c := range chunks {
		if err := dzformat.VerifyWipeCount(c.Header, uint64(1)<<blockShift); err != nil {
			return fmt.Errorf("chunk %q: %w", c.Header.ChunkName, err)
		}
	}
	return nil
}

// List describes each chunk in write order, the reassembled container's
// final layout.
func (e *Encoder) List() []dzformat.ChunkHeader {
	out := make([]dzformat.ChunkHeader, len(e.chunks))
	for i, c := range e.chunks {
		out[i] = c.Header
	}
	return out
}

// headerMD5 computes the MD5 over every chunk's on-disk header bytes, in
// write order -- the value FileHeader.MD5 must carry.
func (e *Encoder) headerMD5() ([16]byte, error) {
	h := md5.New()
	schema := e.variant.SchemaFor()
	for _, c := range e.chunks {
		buf, err := readHeaderBytes(e.fs, c.Path, schema.Size)
		if err != nil {
			return [16]byte{}, err
		}
		h.Write(buf)
	}
	var sum [16]byte
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

// Write assembles the complete DZ container at outPath: FileHeader (with
// ChunkCount and MD5 filled in from the loaded chunk set) followed by each
// chunk's bytes streamed verbatim, in write order.
func (e *Encoder) Write(outPath string) error {
	md5sum, err := e.headerMD5()
	if err != nil {
		return err
	}

	hdr := e.header
	hdr.ChunkCount = uint32(len(e.chunks))
	hdr.MD5 = md5sum

	buf, err := dzstruct.Encode(hdr.Schema(), hdr.ToMap())
	if err != nil {
		return fmt.Errorf("encoder: encoding file header: %w", err)
	}

	out, err := e.fs.Create(outPath)
	if err != nil {
		return fmt.Errorf("encoder: create %s: %w", outPath, err)
	}
	defer out.Close()

	if _, err := out.Write(buf); err != nil {
		return fmt.Errorf("encoder: writing file header to %s: %w", outPath, err)
	}

	for _, c := range e.chunks {
		if err := streamChunkFile(e.fs, c.Path, out); err != nil {
			return err
		}
	}
	return nil
}

func streamChunkFile(fs afero.Fs, path string, out io.Writer) error {
	f, err := fs.Open(path)
	if err != nil {
		return fmt.Errorf("encoder: open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(out, f); err != nil {
		return fmt.Errorf("encoder: streaming %s: %w", path, err)
	}
	return nil
}
