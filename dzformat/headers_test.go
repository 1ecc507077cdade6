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

package dzformat

import (
	"bytes"
	"crypto/md5"
	"hash/crc32"
	"testing"

	"github.com/dzkit/godz/dzstruct"
)

func TestFileHeaderRoundTrip(t *testing.T) {
	h := FileHeader{
		FormatMajor: 2,
		FormatMinor: 1,
		Device:      "hammerhead",
		Version:     "LRX22G.H815_20e",
		ChunkCount:  3,
		Unknown0:    7,
		BuildType:   "user",
		OldDateCode: "20150101",
	}
	h.MD5 = md5.Sum([]byte("headers"))

	buf, err := dzstruct.Encode(FileHeaderSchema, h.ToMap())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(buf) != 512 {
		t.Fatalf("expected 512 bytes, got %d", len(buf))
	}

	m, err := dzstruct.Decode(FileHeaderSchema, buf, FileMagic)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got := FileHeaderFromMap(m)
	if got.Device != h.Device || got.Version != h.Version || got.ChunkCount != h.ChunkCount {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
	if got.MD5 != h.MD5 {
		t.Fatalf("md5 mismatch: got %x, want %x", got.MD5, h.MD5)
	}
}

func TestChunkHeaderRoundTripBothVariants(t *testing.T) {
	for _, variant := range []ChunkVariant{VariantReserved, VariantDev} {
		c := ChunkHeader{
			Variant:    variant,
			SliceName:  "boot",
			ChunkName:  "boot_0.bin",
			TargetSize: 4096,
			DataSize:   512,
			TargetAddr: 0,
			WipeCount:  8,
			Dev:        2,
			CRC32:      0xDEADBEEF,
		}
		c.MD5 = md5.Sum([]byte("chunk"))

		buf, err := dzstruct.Encode(c.Schema(), c.ToMap())
		if err != nil {
			t.Fatalf("variant %v: Encode: %v", variant, err)
		}
		m, err := dzstruct.Decode(c.Schema(), buf, ChunkMagic)
		if err != nil {
			t.Fatalf("variant %v: Decode: %v", variant, err)
		}
		got := ChunkHeaderFromMap(variant, m)
		if got.SliceName != c.SliceName || got.ChunkName != c.ChunkName {
			t.Fatalf("variant %v: mismatch: got %+v", variant, got)
		}
		if variant == VariantDev && got.Dev != c.Dev {
			t.Fatalf("dev field lost: got %d, want %d", got.Dev, c.Dev)
		}
	}
}

func TestVerifyFormatVersion(t *testing.T) {
	if warn, err := VerifyFormatVersion(FileHeader{FormatMajor: 2, FormatMinor: 1}); err != nil || warn {
		t.Fatalf("known-good version: warn=%v err=%v", warn, err)
	}
	if warn, err := VerifyFormatVersion(FileHeader{FormatMajor: 2, FormatMinor: 2}); err != nil || !warn {
		t.Fatalf("higher minor should warn, not fail: warn=%v err=%v", warn, err)
	}
	if _, err := VerifyFormatVersion(FileHeader{FormatMajor: 3}); err == nil {
		t.Fatal("higher major should be fatal")
	}
}

func TestVerifyChunkHeaderMD5(t *testing.T) {
	parts := [][]byte{[]byte("aaaa"), []byte("bbbb")}
	sum := md5.New()
	sum.Write(parts[0])
	sum.Write(parts[1])
	var want [16]byte
	copy(want[:], sum.Sum(nil))

	if err := VerifyChunkHeaderMD5(FileHeader{MD5: want}, parts); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if err := VerifyChunkHeaderMD5(FileHeader{}, parts); err == nil {
		t.Fatal("expected mismatch")
	}
}

func TestVerifyPayloadHashes(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 512)
	c := ChunkHeader{
		TargetSize: 512,
		CRC32:      crc32.ChecksumIEEE(payload),
		MD5:        md5.Sum(payload),
	}
	if err := VerifyPayloadHashes(c, payload); err != nil {
		t.Fatalf("expected match, got %v", err)
	}

	bad := c
	bad.CRC32 ^= 0xFFFFFFFF
	if err := VerifyPayloadHashes(bad, payload); err == nil {
		t.Fatal("expected CRC mismatch")
	}
}

func TestVerifyChunkName(t *testing.T) {
	c := ChunkHeader{SliceName: "system", TargetAddr: 1024, ChunkName: "system_1024.bin"}
	if err := VerifyChunkName(c); err != nil {
		t.Fatalf("expected match, got %v", err)
	}

	c.ChunkName = "system_wrong.bin"
	if err := VerifyChunkName(c); err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestVerifyWipeCount(t *testing.T) {
	c := ChunkHeader{TargetSize: 4096, WipeCount: 8}
	if err := VerifyWipeCount(c, 512); err != nil {
		t.Fatalf("8*512 == 4096, expected ok, got %v", err)
	}

	c.WipeCount = 4
	if err := VerifyWipeCount(c, 512); err == nil {
		t.Fatal("4*512 < 4096, expected ErrWipeCountTooSmall")
	}
}
