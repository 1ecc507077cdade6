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

// Package gpt parses a GUID Partition Table out of a raw disk image: the
// protective MBR (sanity-checked, not otherwise used), the GPT header at
// LBA 1, and its partition entry array. It exists so the decoder has a
// real slice-boundary source to consult; when the signature doesn't match,
// ErrNoGPT signals the caller to fall back to grouping chunks by sliceName.
package gpt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math/bits"

	"github.com/dzkit/godz/internal/binaryio"
)

// ErrNoGPT is returned by Parse when data does not begin with a protective
// MBR followed by a GPT header bearing the "EFI PART" signature.
var ErrNoGPT = errors.New("gpt: no GPT signature found")

// signature is the fixed 8-byte GPT header magic.
var signature = [8]byte{'E', 'F', 'I', ' ', 'P', 'A', 'R', 'T'}

const (
	headerDefinedSize = 92
	entryNameUnits    = 36 // UTF-16LE code units in a partition name
	entrySizeDefault  = 128
)

// SliceBound is one named partition's LBA range, [StartLBA, EndLBA].
type SliceBound struct {
	Name     string
	StartLBA uint64
	EndLBA   uint64
}

// Table is the subset of a parsed GPT that slice discovery needs.
type Table struct {
	ShiftLBA     uint8
	DataStartLBA uint64
	DataEndLBA   uint64
	AltLBA       uint64
	Slices       []SliceBound
}

// ShiftForBlockSize returns log2(n), erroring if n is not a power of two.
// Parse and the decoder use this to derive a block shift from a block size
// in bytes.
func ShiftForBlockSize(n uint64) (uint8, error) {
	if n == 0 || bits.OnesCount64(n) != 1 {
		return 0, fmt.Errorf("gpt: block size %d is not a power of two", n)
	}
	return uint8(bits.TrailingZeros64(n)), nil
}

// Parse reads a GPT out of data, a raw disk image (or a prefix of one long
// enough to cover the protective MBR, GPT header, and partition entry
// array), whose device block size is blockSize bytes.
//
// A header CRC32 mismatch is not fatal here -- it is surfaced to the
// caller as a non-nil Table plus a non-nil "header CRC32 mismatch" error
// (which does not wrap ErrNoGPT); the decoder ignores the Table whenever
// the error is non-nil, so it treats a mismatch the same as no GPT.
func Parse(data []byte, blockSize uint64) (*Table, error) {
	shift, err := ShiftForBlockSize(blockSize)
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) < 2*blockSize {
		return nil, fmt.Errorf("%w: image too short for protective MBR + header", ErrNoGPT)
	}

	// Protective MBR sanity check: boot signature 0x55AA at the end of LBA 0.
	mbr := data[:blockSize]
	if mbr[510] != 0x55 || mbr[511] != 0xAA {
		return nil, fmt.Errorf("%w: missing protective MBR boot signature", ErrNoGPT)
	}

	hdr := data[blockSize : 2*blockSize]
	if !bytes.Equal(hdr[0:8], signature[:]) {
		return nil, ErrNoGPT
	}

	headerSize := binary.LittleEndian.Uint32(hdr[12:16])
	if headerSize < headerDefinedSize || uint64(headerSize) > blockSize {
		return nil, fmt.Errorf("%w: implausible header size %d", ErrNoGPT, headerSize)
	}
	storedCRC := binary.LittleEndian.Uint32(hdr[16:20])

	crcBuf := make([]byte, headerSize)
	copy(crcBuf, hdr[:headerSize])
	binary.LittleEndian.PutUint32(crcBuf[16:20], 0)
	var headerErr error
	if crc32.ChecksumIEEE(crcBuf) != storedCRC {
		headerErr = fmt.Errorf("gpt: header CRC32 mismatch")
	}

	currentLBA := binary.LittleEndian.Uint64(hdr[24:32])
	backupLBA := binary.LittleEndian.Uint64(hdr[32:40])
	firstUsable := binary.LittleEndian.Uint64(hdr[40:48])
	lastUsable := binary.LittleEndian.Uint64(hdr[48:56])
	entryLBA := binary.LittleEndian.Uint64(hdr[72:80])
	numEntries := binary.LittleEndian.Uint32(hdr[80:84])
	entrySize := binary.LittleEndian.Uint32(hdr[84:88])
	if entrySize == 0 {
		entrySize = entrySizeDefault
	}
	_ = currentLBA

	entriesOffset := entryLBA * blockSize
	entriesLen := uint64(numEntries) * uint64(entrySize)
	if entriesOffset+entriesLen > uint64(len(data)) {
		return nil, fmt.Errorf("%w: partition entry array extends past supplied data", ErrNoGPT)
	}

	t := &Table{
		ShiftLBA:     shift,
		DataStartLBA: firstUsable,
		DataEndLBA:   lastUsable,
		AltLBA:       backupLBA,
	}

	for i := uint32(0); i < numEntries; i++ {
		off := entriesOffset + uint64(i)*uint64(entrySize)
		entry := data[off : off+uint64(entrySize)]

		typeGUID := entry[0:16]
		if isZeroGUID(typeGUID) {
			continue // unused entry
		}
		startLBA := binary.LittleEndian.Uint64(entry[32:40])
		endLBA := binary.LittleEndian.Uint64(entry[40:48])
		nameBytes := entry[56 : 56+entryNameUnits*2]
		name := binaryio.UTF16LEString(nameBytes)

		t.Slices = append(t.Slices, SliceBound{
			Name:     name,
			StartLBA: startLBA,
			EndLBA:   endLBA,
		})
	}

	return t, headerErr
}

func isZeroGUID(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
