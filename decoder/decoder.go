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

// Package decoder reads a DZ container: it validates the FileHeader and
// every ChunkHeader, groups chunks into slices (via GPT when the first
// chunk's payload parses as one, otherwise by sliceName), and exposes the
// five extraction operations named in the format's specification.
package decoder

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"io"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zlib"

	"github.com/dzkit/godz/dzformat"
	"github.com/dzkit/godz/dzstruct"
	"github.com/dzkit/godz/gpt"
)

const cacheSize = 16

// chunkEntry is one parsed ChunkHeader plus where its compressed payload
// lives in the container file.
type chunkEntry struct {
	index         int
	header        dzformat.ChunkHeader
	headerBytes   []byte
	payloadOffset int64
}

// Slice is a contiguous LBA range covered by zero or more chunks sharing a
// sliceName (and, in the dev variant, a dev index).
type Slice struct {
	Name     string
	Dev      uint32
	StartLBA uint64
	EndLBA   uint64
	Chunks   []int // indices into Decoder.chunks, sorted by TargetAddr
}

// Warning is a non-fatal condition surfaced during Open or an extraction
// operation. Processing continues; callers decide whether/how to log it.
type Warning struct {
	ChunkIndex int // -1 when not chunk-specific
	Message    string
}

func (w Warning) String() string {
	if w.ChunkIndex < 0 {
		return w.Message
	}
	return fmt.Sprintf("chunk %d: %s", w.ChunkIndex, w.Message)
}

// Decoder holds one opened DZ container's validated header, chunk index,
// and slice map.
type Decoder struct {
	r    io.ReaderAt
	size int64

	Header      dzformat.FileHeader
	headerBytes []byte
	Variant     dzformat.ChunkVariant
	BlockSize   uint64

	chunks   []chunkEntry
	slices   []Slice
	Warnings []Warning

	cache *lru.Cache[int, []byte]
}

// Open reads and validates a DZ container's FileHeader and every
// ChunkHeader from r (size bytes long). blockSizeHint is used for all LBA
// arithmetic unless a GPT found in the first chunk's payload supplies a
// different block size. Output filesystems are supplied per-call to the
// extraction operations, not here.
func Open(r io.ReaderAt, size int64, variant dzformat.ChunkVariant, blockSizeHint uint64) (*Decoder, error) {
	d := &Decoder{r: r, size: size, Variant: variant, BlockSize: blockSizeHint}

	cache, err := lru.New[int, []byte](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("decoder: building chunk cache: %w", err)
	}
	d.cache = cache

	hdrBuf := make([]byte, dzformat.FileHeaderSchema.Size)
	if _, err := r.ReadAt(hdrBuf, 0); err != nil {
		return nil, fmt.Errorf("decoder: read file header: %w", err)
	}
	m, err := dzstruct.Decode(dzformat.FileHeaderSchema, hdrBuf, dzformat.FileMagic)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dzformat.ErrBadMagic, err)
	}
	d.Header = dzformat.FileHeaderFromMap(m)
	d.headerBytes = hdrBuf

	if warn, err := dzformat.VerifyFormatVersion(d.Header); err != nil {
		return nil, err
	} else if warn {
		d.warn(-1, fmt.Sprintf("formatMinor=%d is newer than the known revision", d.Header.FormatMinor))
	}

	if err := d.scanChunks(); err != nil {
		return nil, err
	}

	if err := d.discoverSlices(); err != nil {
		return nil, err
	}

	return d, nil
}

func (d *Decoder) warn(chunkIndex int, msg string) {
	d.Warnings = append(d.Warnings, Warning{ChunkIndex: chunkIndex, Message: msg})
}

// scanChunks walks the container's chunk records in file order, validating
// magic and accumulating the header MD5 the FileHeader must match.
func (d *Decoder) scanChunks() error {
	schema := d.Variant.SchemaFor()
	offset := int64(dzformat.FileHeaderSchema.Size)
	sum := md5.New()

	for i := uint32(0); i < d.Header.ChunkCount; i++ {
		if offset+int64(schema.Size) > d.size {
			return fmt.Errorf("decoder: short read: chunk %d header extends past end of file", i)
		}
		raw := make([]byte, schema.Size)
		if _, err := d.r.ReadAt(raw, offset); err != nil {
			return fmt.Errorf("decoder: read chunk %d header: %w", i, err)
		}
		sum.Write(raw)

		m, err := dzstruct.Decode(schema, raw, dzformat.ChunkMagic)
		if err != nil {
			return fmt.Errorf("%w: chunk %d: %v", dzformat.ErrBadMagic, i, err)
		}
		ch := dzformat.ChunkHeaderFromMap(d.Variant, m)

		if err := dzformat.VerifyChunkName(ch); err != nil {
			d.warn(int(i), err.Error())
		}

		payloadOffset := offset + int64(schema.Size)
		if payloadOffset+int64(ch.DataSize) > d.size {
			return fmt.Errorf("decoder: short read: chunk %d payload extends past end of file", i)
		}

		d.chunks = append(d.chunks, chunkEntry{
			index:         int(i),
			header:        ch,
			headerBytes:   raw,
			payloadOffset: payloadOffset,
		})

		offset = payloadOffset + int64(ch.DataSize)
	}

	headerBytesInOrder := make([][]byte, len(d.chunks))
	for i, c := range d.chunks {
		headerBytesInOrder[i] = c.headerBytes
	}
	if err := dzformat.VerifyChunkHeaderMD5(d.Header, headerBytesInOrder); err != nil {
		return err
	}

	monotonic := true
	for i := 1; i < len(d.chunks); i++ {
		if d.chunks[i].header.TargetAddr < d.chunks[i-1].header.TargetAddr &&
			d.chunks[i].header.SliceName == d.chunks[i-1].header.SliceName {
			monotonic = false
			break
		}
	}
	if !monotonic {
		d.warn(-1, "chunks are not monotonically ordered by targetAddr within a slice")
		sort.SliceStable(d.chunks, func(i, j int) bool {
			if d.chunks[i].header.SliceName != d.chunks[j].header.SliceName {
				return d.chunks[i].header.SliceName < d.chunks[j].header.SliceName
			}
			return d.chunks[i].header.TargetAddr < d.chunks[j].header.TargetAddr
		})
	}

	return nil
}

// discoverSlices attempts to parse the first chunk's inflated payload as a
// GPT; on success, slice boundaries come from the partition table. On
// failure (including ErrNoGPT), each distinct (sliceName, dev) pair becomes
// one slice spanning the union of its chunks' target ranges.
func (d *Decoder) discoverSlices() error {
	if len(d.chunks) == 0 {
		return nil
	}

	if payload, err := d.inflate(0); err == nil {
		if table, gerr := gpt.Parse(payload, d.BlockSize); gerr == nil {
			d.BlockSize = uint64(1) << table.ShiftLBA
			d.slices = slicesFromTable(table)
			d.assignChunksToSlices()
			return nil
		}
	}

	type sliceKey struct {
		name string
		dev  uint32
	}
	bySlice := make(map[sliceKey]*Slice)
	var order []sliceKey
	for ci, c := range d.chunks {
		key := sliceKey{name: c.header.SliceName, dev: c.header.Dev}
		s, ok := bySlice[key]
		if !ok {
			s = &Slice{Name: key.name, Dev: key.dev, StartLBA: uint64(c.header.TargetAddr)}
			bySlice[key] = s
			order = append(order, key)
		}
		end := uint64(c.header.TargetAddr) + uint64(c.header.WipeCount)
		if end > s.EndLBA {
			s.EndLBA = end
		}
		if uint64(c.header.TargetAddr) < s.StartLBA {
			s.StartLBA = uint64(c.header.TargetAddr)
		}
		s.Chunks = append(s.Chunks, ci)
	}
	for _, key := range order {
		d.slices = append(d.slices, *bySlice[key])
	}
	return nil
}

// slicesFromTable turns a parsed GPT into the decoder's slice list: the
// declared partitions, bracketed by the primary GPT region (protective MBR,
// header, and partition array before the first usable LBA) and the backup
// GPT region (partition array and header after the last usable LBA), with
// any gap between declared partitions surfaced as a synthetic
// "_unallocated_N" slice so List/extraction cover every LBA in the image.
func slicesFromTable(table *gpt.Table) []Slice {
	bounds := append([]gpt.SliceBound(nil), table.Slices...)
	sort.SliceStable(bounds, func(i, j int) bool { return bounds[i].StartLBA < bounds[j].StartLBA })

	var slices []Slice
	if table.DataStartLBA > 0 {
		slices = append(slices, Slice{Name: "_gpt_primary", StartLBA: 0, EndLBA: table.DataStartLBA})
	}

	cursor := table.DataStartLBA
	unallocated := 0
	for _, b := range bounds {
		if b.StartLBA > cursor {
			slices = append(slices, Slice{
				Name:     fmt.Sprintf("_unallocated_%d", unallocated),
				StartLBA: cursor,
				EndLBA:   b.StartLBA,
			})
			unallocated++
		}
		slices = append(slices, Slice{Name: b.Name, StartLBA: b.StartLBA, EndLBA: b.EndLBA + 1})
		if b.EndLBA+1 > cursor {
			cursor = b.EndLBA + 1
		}
	}
	if table.DataEndLBA+1 > cursor {
		slices = append(slices, Slice{
			Name:     fmt.Sprintf("_unallocated_%d", unallocated),
			StartLBA: cursor,
			EndLBA:   table.DataEndLBA + 1,
		})
		cursor = table.DataEndLBA + 1
	}

	if table.AltLBA+1 > cursor {
		slices = append(slices, Slice{Name: "_gpt_backup", StartLBA: cursor, EndLBA: table.AltLBA + 1})
	}

	return slices
}

func (d *Decoder) assignChunksToSlices() {
	for ci := range d.chunks {
		c := &d.chunks[ci]
		for si := range d.slices {
			s := &d.slices[si]
			addr := uint64(c.header.TargetAddr)
			if addr >= s.StartLBA && addr < s.EndLBA {
				s.Chunks = append(s.Chunks, ci)
				break
			}
		}
	}
}

// Slices returns the decoder's discovered slices in discovery order.
func (d *Decoder) Slices() []Slice { return append([]Slice(nil), d.slices...) }

// ChunkCount returns the number of chunks parsed from the container.
func (d *Decoder) ChunkCount() int { return len(d.chunks) }

// ChunkHeader returns the i'th chunk's header in the decoder's chunk order:
// file order, or (sliceName, targetAddr) order when Open had to re-sort
// chunks that were not monotonically ordered within a slice.
func (d *Decoder) ChunkHeader(i int) (dzformat.ChunkHeader, error) {
	if i < 0 || i >= len(d.chunks) {
		return dzformat.ChunkHeader{}, fmt.Errorf("decoder: chunk index %d out of range", i)
	}
	return d.chunks[i].header, nil
}

// inflate returns chunk i's decompressed payload, verifying its declared
// hashes, using the LRU cache to avoid re-inflating a chunk visited twice
// in one session.
func (d *Decoder) inflate(i int) ([]byte, error) {
	if cached, ok := d.cache.Get(i); ok {
		return cached, nil
	}

	c := d.chunks[i]
	compressed := make([]byte, c.header.DataSize)
	if _, err := d.r.ReadAt(compressed, c.payloadOffset); err != nil {
		return nil, fmt.Errorf("decoder: read chunk %d payload: %w", i, err)
	}

	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("decoder: chunk %d: %w: %v", i, dzformat.ErrInflate, err)
	}
	defer zr.Close()

	payload, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decoder: chunk %d: %w: %v", i, dzformat.ErrInflate, err)
	}

	if err := dzformat.VerifyPayloadHashes(c.header, payload); err != nil {
		return nil, fmt.Errorf("decoder: chunk %d: %w", i, err)
	}

	d.cache.Add(i, payload)
	return payload, nil
}
