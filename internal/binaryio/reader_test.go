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

package binaryio

import (
	"bytes"
	"encoding/binary"
	"testing"
	"unicode/utf16"
)

func TestReadUintLEAt(t *testing.T) {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint16(buf[0:2], 0xBEEF)
	binary.LittleEndian.PutUint32(buf[2:6], 0xDEADBEEF)
	binary.LittleEndian.PutUint64(buf[6:14], 0x0102030405060708)

	r := bytes.NewReader(buf)

	u16, err := ReadUint16LEAt(r, 0)
	if err != nil || u16 != 0xBEEF {
		t.Fatalf("ReadUint16LEAt: got %x, err %v", u16, err)
	}
	u32, err := ReadUint32LEAt(r, 2)
	if err != nil || u32 != 0xDEADBEEF {
		t.Fatalf("ReadUint32LEAt: got %x, err %v", u32, err)
	}
	u64, err := ReadUint64LEAt(r, 6)
	if err != nil || u64 != 0x0102030405060708 {
		t.Fatalf("ReadUint64LEAt: got %x, err %v", u64, err)
	}
}

func TestReadAtShortRead(t *testing.T) {
	r := bytes.NewReader([]byte{1, 2})
	if _, err := ReadUint32LEAt(r, 0); err == nil {
		t.Fatal("expected short-read error")
	}
}

func TestCleanString(t *testing.T) {
	data := append([]byte("efs"), make([]byte, 29)...)
	if got := CleanString(data); got != "efs" {
		t.Fatalf("CleanString = %q, want %q", got, "efs")
	}
}

func TestUTF16LEString(t *testing.T) {
	units := utf16.Encode([]rune("EFS"))
	buf := make([]byte, len(units)*2+4) // trailing NUL + padding
	for i, u := range units {
		binary.LittleEndian.PutUint16(buf[i*2:i*2+2], u)
	}
	if got := UTF16LEString(buf); got != "EFS" {
		t.Fatalf("UTF16LEString = %q, want %q", got, "EFS")
	}
}

func TestBytesEqual(t *testing.T) {
	if !BytesEqual([]byte("abc"), []byte("abc")) {
		t.Fatal("expected equal")
	}
	if BytesEqual([]byte("abc"), []byte("abd")) {
		t.Fatal("expected not equal")
	}
	if BytesEqual([]byte("ab"), []byte("abc")) {
		t.Fatal("expected not equal on length mismatch")
	}
}
