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

// Package sparseimg parses the Android sparse image stream format emitted
// by ext2simg on its stdout: a 28-byte file header followed by a sequence
// of 12-byte chunk headers, each introducing a Raw, Fill, DontCare or
// Crc32 chunk. The Sparse-EXT4 chunker strategy consumes this to discover
// DZ chunk boundaries without materializing the whole sparse image.
package sparseimg

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math/bits"
)

// fileMagic is the sparse image file header's little-endian magic number.
var fileMagic = [4]byte{0x3A, 0xFF, 0x26, 0xED}

const (
	fileHeaderLen  = 28
	chunkHeaderLen = 12
)

// ChunkType identifies one of the four sparse chunk kinds.
type ChunkType uint16

// Chunk type values, as emitted on the wire.
const (
	TypeRaw      ChunkType = 0xCAC1
	TypeFill     ChunkType = 0xCAC2
	TypeDontCare ChunkType = 0xCAC3
	TypeCrc32    ChunkType = 0xCAC4
)

func (t ChunkType) String() string {
	switch t {
	case TypeRaw:
		return "Raw"
	case TypeFill:
		return "Fill"
	case TypeDontCare:
		return "DontCare"
	case TypeCrc32:
		return "Crc32"
	default:
		return fmt.Sprintf("unknown(0x%04X)", uint16(t))
	}
}

// ErrUnsupportedMajor is returned when the sparse stream's major version is
// not the one known version (1).
var ErrUnsupportedMajor = errors.New("sparseimg: unsupported major version")

// ErrBadMagic is returned when the stream does not open with the sparse
// image file magic.
var ErrBadMagic = errors.New("sparseimg: bad magic number")

// ErrBadBlockSize is returned when the header's block size is not a power
// of two.
var ErrBadBlockSize = errors.New("sparseimg: block size is not a power of two")

// ErrCRCMismatch is returned by Reader.Verify when the accumulated CRC32
// over Raw/Fill chunk data does not match the header's declared CRC (when
// that field is nonzero; zero means "not computed").
var ErrCRCMismatch = errors.New("sparseimg: image CRC32 mismatch")

// ErrUnknownChunkType is returned by Next when a chunk header declares a
// type value outside the four known kinds.
var ErrUnknownChunkType = errors.New("sparseimg: unknown chunk type")

// Reader parses a sparse image byte stream from an underlying io.Reader
// (typically an external tool's stdout pipe), one chunk at a time.
type Reader struct {
	r io.Reader

	blockSize   uint32
	blockShift  uint8
	totalBlocks uint32
	totalChunks uint32
	imageCRC32  uint32

	chunksLeft uint32
	crc        uint32

	// current holds the still-unread tail of the chunk most recently
	// returned by Next, so Blocks can be consumed lazily by the caller.
	current *Chunk
}

// NewReader reads and validates the 28-byte sparse image file header from
// r, then returns a Reader positioned at the first chunk header.
func NewReader(r io.Reader) (*Reader, error) {
	hdr := make([]byte, fileHeaderLen)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, fmt.Errorf("sparseimg: read file header: %w", err)
	}
	if !equalBytes(hdr[0:4], fileMagic[:]) {
		return nil, ErrBadMagic
	}

	major := binary.LittleEndian.Uint16(hdr[4:6])
	minor := binary.LittleEndian.Uint16(hdr[6:8])
	headerSize := binary.LittleEndian.Uint16(hdr[8:10])
	_ = minor // a higher minor is forward-compatible, not validated here

	if major != 1 {
		return nil, fmt.Errorf("%w: major=%d", ErrUnsupportedMajor, major)
	}

	if int(headerSize) > fileHeaderLen {
		if _, err := io.CopyN(io.Discard, r, int64(headerSize)-fileHeaderLen); err != nil {
			return nil, fmt.Errorf("sparseimg: discard extended header: %w", err)
		}
	}

	blockSize := binary.LittleEndian.Uint32(hdr[12:16])
	if blockSize == 0 || bits.OnesCount32(blockSize) != 1 {
		return nil, ErrBadBlockSize
	}

	return &Reader{
		r:           r,
		blockSize:   blockSize,
		blockShift:  uint8(bits.TrailingZeros32(blockSize)),
		totalBlocks: binary.LittleEndian.Uint32(hdr[16:20]),
		totalChunks: binary.LittleEndian.Uint32(hdr[20:24]),
		imageCRC32:  binary.LittleEndian.Uint32(hdr[24:28]),
		chunksLeft:  binary.LittleEndian.Uint32(hdr[20:24]),
		crc:         crc32.ChecksumIEEE(nil),
	}, nil
}

// BlockSize returns the device block size in bytes declared by the header.
func (r *Reader) BlockSize() uint32 { return r.blockSize }

// BlockShift returns log2(BlockSize()).
func (r *Reader) BlockShift() uint8 { return r.blockShift }

// TotalBlocks returns the header's declared total output block count.
func (r *Reader) TotalBlocks() uint32 { return r.totalBlocks }

// Chunk is one parsed sparse-stream chunk. For TypeRaw and TypeFill, call
// Blocks to obtain an io.Reader over exactly NumBlocks*blockSize bytes of
// (decoded) payload; for TypeDontCare and TypeCrc32 there is no payload to
// read.
type Chunk struct {
	Type      ChunkType
	NumBlocks uint32
	FillValue uint32 // valid only when Type == TypeFill

	owner     *Reader
	remaining int64  // bytes of payload not yet consumed via Blocks' reader
	raw       bool   // Type == TypeRaw: read verbatim from the stream
	fillBuf   []byte // Type == TypeFill: repeating 4-byte pattern buffer
}

// Next advances past any unread payload of the previously returned chunk
// (tracking its CRC32 contribution as the reference tool does), then parses
// and returns the next chunk header. It returns io.EOF once every declared
// chunk has been consumed.
func (r *Reader) Next() (*Chunk, error) {
	if r.current != nil {
		if err := r.current.drain(); err != nil {
			return nil, err
		}
		r.current = nil
	}

	if r.chunksLeft == 0 {
		return nil, io.EOF
	}
	r.chunksLeft--

	hdr := make([]byte, chunkHeaderLen)
	if _, err := io.ReadFull(r.r, hdr); err != nil {
		return nil, fmt.Errorf("sparseimg: read chunk header: %w", err)
	}

	chunkType := ChunkType(binary.LittleEndian.Uint16(hdr[0:2]))
	numBlocks := binary.LittleEndian.Uint32(hdr[4:8])
	totalSize := binary.LittleEndian.Uint32(hdr[8:12])

	c := &Chunk{Type: chunkType, NumBlocks: numBlocks, owner: r}

	switch chunkType {
	case TypeRaw:
		want := int64(numBlocks) << r.blockShift
		if want != int64(totalSize)-chunkHeaderLen {
			return nil, fmt.Errorf("sparseimg: raw chunk declares %d bytes of payload, expected %d", int64(totalSize)-chunkHeaderLen, want)
		}
		c.raw = true
		c.remaining = want
	case TypeFill:
		fill := make([]byte, 4)
		if _, err := io.ReadFull(r.r, fill); err != nil {
			return nil, fmt.Errorf("sparseimg: read fill value: %w", err)
		}
		c.FillValue = binary.LittleEndian.Uint32(fill)
		c.fillBuf = fill
		c.remaining = int64(numBlocks) << r.blockShift
	case TypeDontCare:
		// No payload.
	case TypeCrc32:
		// 4-byte CRC32 trailer value, informational only and discarded;
		// Verify checks the running CRC32 against the file header's
		// r.imageCRC32 instead.
		if _, err := io.CopyN(io.Discard, r.r, 4); err != nil {
			return nil, fmt.Errorf("sparseimg: read crc32 trailer: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: 0x%04X", ErrUnknownChunkType, uint16(chunkType))
	}

	r.current = c
	return c, nil
}

// Blocks returns an io.Reader yielding exactly NumBlocks*blockSize bytes of
// this chunk's payload (raw image bytes for TypeRaw, the repeating 4-byte
// FillValue pattern for TypeFill). Calling it on a TypeDontCare or
// TypeCrc32 chunk yields an empty reader. Bytes read are folded into the
// owning Reader's running CRC32, matching reference behavior of tracking
// CRC across Raw and Fill data only.
func (c *Chunk) Blocks() io.Reader {
	if c.Type != TypeRaw && c.Type != TypeFill {
		return io.LimitReader(nil, 0)
	}
	return &chunkPayloadReader{c: c}
}

// drain reads and discards (while still folding into CRC) any payload the
// caller didn't consume via Blocks, mirroring the reference tool's
// destructor behavior of finishing a chunk before moving to the next.
func (c *Chunk) drain() error {
	if c.remaining <= 0 {
		return nil
	}
	_, err := io.Copy(io.Discard, c.Blocks())
	return err
}

// chunkPayloadReader streams a Chunk's payload and updates the owning
// Reader's running CRC32 as bytes are delivered.
type chunkPayloadReader struct {
	c *Chunk
}

func (pr *chunkPayloadReader) Read(p []byte) (int, error) {
	c := pr.c
	if c.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > c.remaining {
		p = p[:c.remaining]
	}

	var n int
	var err error
	if c.raw {
		n, err = io.ReadFull(c.owner.r, p)
	} else {
		for i := range p {
			p[i] = c.fillBuf[i%4]
		}
		n = len(p)
	}

	c.remaining -= int64(n)
	c.owner.crc = crc32.Update(c.owner.crc, crc32.IEEETable, p[:n])

	if err != nil && err != io.EOF {
		return n, fmt.Errorf("sparseimg: read chunk payload: %w", err)
	}
	return n, nil
}

// Verify checks the running CRC32 (accumulated over all Raw/Fill payload
// bytes consumed so far) against the file header's declared image CRC32.
// A zero header CRC means "not computed" and always passes, matching the
// reference tool.
func (r *Reader) Verify() error {
	if r.imageCRC32 == 0 {
		return nil
	}
	if r.crc != r.imageCRC32 {
		return fmt.Errorf("%w: computed=%08X declared=%08X", ErrCRCMismatch, r.crc, r.imageCRC32)
	}
	return nil
}

func equalBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
