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
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"testing"

	"github.com/spf13/afero"

	"github.com/dzkit/godz/dzformat"
	"github.com/dzkit/godz/dzstruct"
)

func decodeChunk(t *testing.T, fs afero.Fs, path string, variant dzformat.ChunkVariant) dzformat.ChunkHeader {
	t.Helper()
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	schema := variant.SchemaFor()
	if len(raw) < schema.Size {
		t.Fatalf("%s: too short for a header (%d bytes)", path, len(raw))
	}
	m, err := dzstruct.Decode(schema, raw[:schema.Size], dzformat.ChunkMagic)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return dzformat.ChunkHeaderFromMap(variant, m)
}

func TestCapChunkSize(t *testing.T) {
	const blockSize = 512

	if _, _, _, capped := capChunkSize(0, 1<<20, blockSize); capped {
		t.Fatal("should not cap a 1 MiB run")
	}

	hole, next, wipe, capped := capChunkSize(0, 1<<28, blockSize)
	if !capped {
		t.Fatal("expected a 256 MiB run to be capped")
	}
	if hole != maxChunkSize || next != maxChunkSize {
		t.Fatalf("hole/next = %d/%d, want %d", hole, next, maxChunkSize)
	}
	if wipe != maxChunkSize/blockSize {
		t.Fatalf("wipe = %d, want %d", wipe, maxChunkSize/blockSize)
	}
}

func TestRunProbe(t *testing.T) {
	const blockSize = 512
	quanta := blockSize * 1024

	var img bytes.Buffer
	img.Write(bytes.Repeat([]byte{0}, 64*1024))
	img.Write(bytes.Repeat([]byte{0xFF}, 1024*1024))
	img.Write(bytes.Repeat([]byte{0}, 64*1024))
	img.Write(bytes.Repeat([]byte{0xFF}, 1024*1024))
	for img.Len()%quanta != 0 {
		img.WriteByte(0)
	}

	p := Params{BlockShift: 9, BlockSize: blockSize, StartLBA: 0, EndLBA: uint64(img.Len()) / blockSize, LastWipe: uint64(img.Len())/blockSize + 100, Dev: 0}

	fs := afero.NewMemMapFs()
	if err := RunProbe(bytes.NewReader(img.Bytes()), fs, "/out", "boot", p, dzformat.VariantReserved); err != nil {
		t.Fatalf("RunProbe: %v", err)
	}

	entries, err := afero.ReadDir(fs, "/out")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("no chunk files produced")
	}

	for _, e := range entries {
		ch := decodeChunk(t, fs, "/out/"+e.Name(), dzformat.VariantReserved)
		if err := dzformat.VerifyWipeCount(ch, blockSize); err != nil {
			t.Errorf("%s: %v", e.Name(), err)
		}
	}
}

// TestRunProbeMultiQuantumHole exercises a hole spanning more than one
// quantum, so a miscount of interior zero quanta shows up as a wrong
// targetAddr on the chunk following the hole.
func TestRunProbeMultiQuantumHole(t *testing.T) {
	const blockSize = 512
	quanta := blockSize * 1024
	blocksPerQuantum := uint64(quanta / blockSize)

	var img bytes.Buffer
	img.Write(bytes.Repeat([]byte{0xAA}, quanta))   // 1 quantum of data
	img.Write(bytes.Repeat([]byte{0}, 2*quanta))     // 2-quantum hole
	img.Write(bytes.Repeat([]byte{0xBB}, quanta))   // 1 quantum of data

	p := Params{BlockShift: 9, BlockSize: blockSize, StartLBA: 0, EndLBA: uint64(img.Len()) / blockSize, LastWipe: uint64(img.Len())/blockSize + 100, Dev: 0}

	fs := afero.NewMemMapFs()
	if err := RunProbe(bytes.NewReader(img.Bytes()), fs, "/out", "boot", p, dzformat.VariantReserved); err != nil {
		t.Fatalf("RunProbe: %v", err)
	}

	first := decodeChunk(t, fs, "/out/boot_0.bin.chunk", dzformat.VariantReserved)
	if first.TargetAddr != 0 {
		t.Fatalf("first.TargetAddr = %d, want 0", first.TargetAddr)
	}
	wantWipe := uint32(blocksPerQuantum + 2*blocksPerQuantum) // data quantum's trailing write + 2-quantum hole
	if first.WipeCount != wantWipe {
		t.Fatalf("first.WipeCount = %d, want %d", first.WipeCount, wantWipe)
	}

	wantSecondAddr := 3 * blocksPerQuantum
	second := decodeChunk(t, fs, fmt.Sprintf("/out/boot_%d.bin.chunk", wantSecondAddr), dzformat.VariantReserved)
	if second.TargetAddr != uint32(wantSecondAddr) {
		t.Fatalf("second.TargetAddr = %d, want %d", second.TargetAddr, wantSecondAddr)
	}
}

func appendSparseChunkHeader(buf *bytes.Buffer, typ uint16, numBlocks, totalSize uint32) {
	h := make([]byte, 12)
	binary.LittleEndian.PutUint16(h[0:2], typ)
	binary.LittleEndian.PutUint32(h[4:8], numBlocks)
	binary.LittleEndian.PutUint32(h[8:12], totalSize)
	buf.Write(h)
}

// buildSparseStream constructs [Raw:2blocks][DontCare:3blocks][Fill(0):2blocks],
// the scenario from the worked sparse-EXT4 example.
func buildSparseStream(blockSize uint32) []byte {
	const (
		typeRaw      = 0xCAC1
		typeFill     = 0xCAC2
		typeDontCare = 0xCAC3
	)

	var body bytes.Buffer
	rawData := bytes.Repeat([]byte{0x11}, 2*int(blockSize))
	appendSparseChunkHeader(&body, typeRaw, 2, uint32(12+len(rawData)))
	body.Write(rawData)

	appendSparseChunkHeader(&body, typeDontCare, 3, 12)

	appendSparseChunkHeader(&body, typeFill, 2, 12+4)
	fillVal := make([]byte, 4)
	body.Write(fillVal)

	fillExpanded := bytes.Repeat([]byte{0, 0, 0, 0}, (2*int(blockSize))/4)
	crc := crc32.ChecksumIEEE(nil)
	crc = crc32.Update(crc, crc32.IEEETable, rawData)
	crc = crc32.Update(crc, crc32.IEEETable, fillExpanded)

	hdr := make([]byte, 28)
	copy(hdr[0:4], []byte{0x3A, 0xFF, 0x26, 0xED})
	binary.LittleEndian.PutUint16(hdr[4:6], 1)
	binary.LittleEndian.PutUint16(hdr[6:8], 0)
	binary.LittleEndian.PutUint16(hdr[8:10], 28)
	binary.LittleEndian.PutUint16(hdr[10:12], 12)
	binary.LittleEndian.PutUint32(hdr[12:16], blockSize)
	binary.LittleEndian.PutUint32(hdr[16:20], 2+3+2)
	binary.LittleEndian.PutUint32(hdr[20:24], 3)
	binary.LittleEndian.PutUint32(hdr[24:28], crc)

	return append(hdr, body.Bytes()...)
}

func TestConvertSparseStream(t *testing.T) {
	const blockSize = 4096
	stream := buildSparseStream(blockSize)

	p := Params{BlockShift: 12, BlockSize: blockSize, StartLBA: 0, EndLBA: 1000, LastWipe: 100, Dev: 0}
	fs := afero.NewMemMapFs()

	if err := convertSparseStream(bytes.NewReader(stream), fs, "/out", "boot", p, dzformat.VariantReserved); err != nil {
		t.Fatalf("convertSparseStream: %v", err)
	}

	first := decodeChunk(t, fs, "/out/boot_0.bin.chunk", dzformat.VariantReserved)
	if first.TargetSize != 2*blockSize {
		t.Fatalf("first.TargetSize = %d, want %d", first.TargetSize, 2*blockSize)
	}
	if first.WipeCount != 5 {
		t.Fatalf("first.WipeCount = %d, want 5", first.WipeCount)
	}

	second := decodeChunk(t, fs, "/out/boot_5.bin.chunk", dzformat.VariantReserved)
	if second.TargetSize != 2*blockSize {
		t.Fatalf("second.TargetSize = %d, want %d", second.TargetSize, 2*blockSize)
	}
	if second.WipeCount != uint32(p.LastWipe-5) {
		t.Fatalf("second.WipeCount = %d, want %d", second.WipeCount, p.LastWipe-5)
	}
}

func TestLoadParamsPhantom(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/boot.params", []byte("phantom=1\n"), 0o644)

	_, ok, err := LoadParams(fs, "/boot.params")
	if err != nil {
		t.Fatalf("LoadParams: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for a phantom slice")
	}
}

func TestLoadParams(t *testing.T) {
	fs := afero.NewMemMapFs()
	content := "# a comment\nblockShift=9\nstartLBA=100\nendLBA=200\nlastWipe=200\ndev=1\n"
	afero.WriteFile(fs, "/boot.params", []byte(content), 0o644)

	p, ok, err := LoadParams(fs, "/boot.params")
	if err != nil {
		t.Fatalf("LoadParams: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true")
	}
	if p.BlockSize != 512 || p.StartLBA != 100 || p.EndLBA != 200 || p.LastWipe != 200 || p.Dev != 1 {
		t.Fatalf("params = %+v", p)
	}
}
