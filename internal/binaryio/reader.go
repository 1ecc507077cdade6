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

// Package binaryio provides small io.ReaderAt-oriented helpers for reading
// fixed-width fields and NUL-trimmed/UTF-16 strings out of externally
// defined binary formats (GPT partition tables, Android sparse image
// streams) that don't warrant a full dzstruct schema of their own.
package binaryio

import (
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf16"
)

// ReadAt reads len(buf) bytes from r at offset, wrapping short reads with
// context.
func ReadAt(r io.ReaderAt, offset int64, buf []byte) error {
	if _, err := r.ReadAt(buf, offset); err != nil {
		return fmt.Errorf("binaryio: read at offset %d: %w", offset, err)
	}
	return nil
}

// ReadBytesAt reads n bytes from r at offset.
func ReadBytesAt(r io.ReaderAt, offset int64, n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := ReadAt(r, offset, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadUint16LEAt reads a little-endian uint16 from r at offset.
func ReadUint16LEAt(r io.ReaderAt, offset int64) (uint16, error) {
	buf, err := ReadBytesAt(r, offset, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf), nil
}

// ReadUint32LEAt reads a little-endian uint32 from r at offset.
func ReadUint32LEAt(r io.ReaderAt, offset int64) (uint32, error) {
	buf, err := ReadBytesAt(r, offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// ReadUint64LEAt reads a little-endian uint64 from r at offset.
func ReadUint64LEAt(r io.ReaderAt, offset int64) (uint64, error) {
	buf, err := ReadBytesAt(r, offset, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}

// CleanString converts NUL-padded ASCII bytes to a string, trimming at the
// first NUL byte.
func CleanString(data []byte) string {
	end := len(data)
	for i, c := range data {
		if c == 0 {
			end = i
			break
		}
	}
	return string(data[:end])
}

// UTF16LEString decodes a NUL-terminated UTF-16LE byte run (as used by GPT
// partition names) into a Go string.
func UTF16LEString(data []byte) string {
	n := len(data) / 2
	units := make([]uint16, 0, n)
	for i := 0; i < n; i++ {
		u := binary.LittleEndian.Uint16(data[i*2 : i*2+2])
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units))
}

// BytesEqual compares two byte slices for equality.
func BytesEqual(a, b []byte) bool {
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
