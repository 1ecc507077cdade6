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
	"bytes"
	"crypto/md5"
	"fmt"
	"hash/crc32"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/spf13/afero"

	"github.com/dzkit/godz/dzformat"
	"github.com/dzkit/godz/dzstruct"
)

// buildChunk deflates payload at level 1 and packs it behind a ChunkHeader,
// returning the 512-byte header followed by the compressed stream.
func buildChunk(t *testing.T, sliceName string, targetAddr, wipeCount uint32, payload []byte) []byte {
	t.Helper()

	var compressed bytes.Buffer
	zw, err := zlib.NewWriterLevel(&compressed, 1)
	if err != nil {
		t.Fatalf("zlib.NewWriterLevel: %v", err)
	}
	if _, err := zw.Write(payload); err != nil {
		t.Fatalf("zlib write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zlib close: %v", err)
	}

	ch := dzformat.ChunkHeader{
		Variant:    dzformat.VariantReserved,
		SliceName:  sliceName,
		ChunkName:  fmt.Sprintf("%s_%d.bin", sliceName, targetAddr),
		TargetSize: uint32(len(payload)),
		DataSize:   uint32(compressed.Len()),
		MD5:        md5.Sum(payload),
		TargetAddr: targetAddr,
		WipeCount:  wipeCount,
		CRC32:      crc32.ChecksumIEEE(payload),
	}
	hdrBuf, err := dzstruct.Encode(ch.Schema(), ch.ToMap())
	if err != nil {
		t.Fatalf("Encode chunk header: %v", err)
	}

	out := append([]byte{}, hdrBuf...)
	out = append(out, compressed.Bytes()...)
	return out
}

// buildContainer assembles a FileHeader (with correct md5Headers) followed
// by the given pre-built chunk byte blocks.
func buildContainer(t *testing.T, formatMinor uint32, chunks [][]byte) []byte {
	t.Helper()

	sum := md5.New()
	for _, c := range chunks {
		sum.Write(c[:dzformat.ChunkSchemaReserved.Size])
	}
	var headerMD5 [16]byte
	copy(headerMD5[:], sum.Sum(nil))

	fh := dzformat.FileHeader{
		FormatMajor: 2,
		FormatMinor: formatMinor,
		Device:      "testdev",
		Version:     "1.0",
		ChunkCount:  uint32(len(chunks)),
		MD5:         headerMD5,
		BuildType:   "user",
	}
	hdrBuf, err := dzstruct.Encode(dzformat.FileHeaderSchema, fh.ToMap())
	if err != nil {
		t.Fatalf("Encode file header: %v", err)
	}

	out := append([]byte{}, hdrBuf...)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

func TestMinimalScenario(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 512)
	chunk := buildChunk(t, "boot", 0, 1, payload)
	container := buildContainer(t, 1, [][]byte{chunk})

	fs := afero.NewMemMapFs()
	r := bytes.NewReader(container)
	d, err := Open(r, int64(len(container)), dzformat.VariantReserved, 512)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if d.ChunkCount() != 1 {
		t.Fatalf("ChunkCount = %d, want 1", d.ChunkCount())
	}
	list := d.List()
	if len(list) != 1 || list[0].DataSize == 0 {
		t.Fatalf("List = %+v", list)
	}

	if err := d.ExtractChunk(fs, 0, "/out.bin"); err != nil {
		t.Fatalf("ExtractChunk: %v", err)
	}
	got, err := afero.ReadFile(fs, "/out.bin")
	if err != nil {
		t.Fatalf("read extracted chunk: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("extracted payload mismatch: got %d bytes", len(got))
	}
}

func TestHigherMinorWarns(t *testing.T) {
	payload := bytes.Repeat([]byte{0x00}, 512)
	chunk := buildChunk(t, "boot", 0, 1, payload)
	container := buildContainer(t, 2, [][]byte{chunk})

	d, err := Open(bytes.NewReader(container), int64(len(container)), dzformat.VariantReserved, 512)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(d.Warnings) == 0 {
		t.Fatal("expected a formatMinor warning")
	}
}

func TestBadChunkCRCFails(t *testing.T) {
	payload := bytes.Repeat([]byte{0x42}, 512)
	chunk := buildChunk(t, "boot", 0, 1, payload)
	// Corrupt the CRC32 field: header(4)+sliceName(32)+chunkName(64)+
	// targetSize(4)+dataSize(4)+md5(16)+targetAddr(4)+wipeCount(4)+reserved(4) = 136.
	const crcOffset = 136
	chunk[crcOffset] ^= 0xFF

	container := buildContainer(t, 1, [][]byte{chunk})
	fs := afero.NewMemMapFs()
	d, err := Open(bytes.NewReader(container), int64(len(container)), dzformat.VariantReserved, 512)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := d.ExtractChunk(fs, 0, "/out.bin"); err == nil {
		t.Fatal("expected CRC mismatch error")
	}
}

func TestTwoSliceImageWithHole(t *testing.T) {
	const blockSize = 512
	bootPayload := bytes.Repeat([]byte{0x11}, 4096)
	systemPayload := bytes.Repeat([]byte{0x22}, 8192)

	bootChunk := buildChunk(t, "boot", 0, 8, bootPayload)
	systemChunk := buildChunk(t, "system", 2048, 16, systemPayload)
	container := buildContainer(t, 1, [][]byte{bootChunk, systemChunk})

	fs := afero.NewMemMapFs()
	d, err := Open(bytes.NewReader(container), int64(len(container)), dzformat.VariantReserved, blockSize)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := d.ExtractImage(fs, "/image.bin"); err != nil {
		t.Fatalf("ExtractImage: %v", err)
	}
	got, err := afero.ReadFile(fs, "/image.bin")
	if err != nil {
		t.Fatalf("read image: %v", err)
	}

	wantLen := 2048*blockSize + len(systemPayload)
	if len(got) != wantLen {
		t.Fatalf("image length = %d, want %d", len(got), wantLen)
	}
	if !bytes.Equal(got[0:len(bootPayload)], bootPayload) {
		t.Fatal("boot payload not at offset 0")
	}
	hole := got[len(bootPayload) : 2048*blockSize]
	for _, b := range hole {
		if b != 0 {
			t.Fatal("expected hole region to be zero-filled")
		}
	}
	if !bytes.Equal(got[2048*blockSize:], systemPayload) {
		t.Fatal("system payload not at expected offset")
	}
}
