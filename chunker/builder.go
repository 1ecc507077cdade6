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
	"crypto/md5"
	"fmt"
	"hash"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/spf13/afero"

	"github.com/dzkit/godz/dzformat"
	"github.com/dzkit/godz/dzstruct"
)

// chunkBuilder implements the common emission contract shared by all three
// strategies: seek past a placeholder header, stream the compressed
// payload, then rewind and overwrite the header once the payload's MD5,
// CRC32 and uncompressed length are known.
type chunkBuilder struct {
	fs     afero.Fs
	path   string
	f      afero.File
	zw     *zlib.Writer
	md5    hash.Hash
	crc    hash.Hash32
	size   uint32
	schema dzstruct.Schema
}

func chunkName(sliceName string, targetAddr uint64) string {
	return fmt.Sprintf("%s_%d.bin", sliceName, targetAddr)
}

func newChunkBuilder(fs afero.Fs, variant dzformat.ChunkVariant, path string) (*chunkBuilder, error) {
	f, err := fs.Create(path)
	if err != nil {
		return nil, fmt.Errorf("chunker: create %s: %w", path, err)
	}
	schema := variant.SchemaFor()
	if _, err := f.Seek(int64(schema.Size), io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("chunker: seek %s: %w", path, err)
	}
	zw, err := zlib.NewWriterLevel(f, 1)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("chunker: building zlib writer for %s: %w", path, err)
	}
	return &chunkBuilder{
		fs: fs, path: path, f: f, zw: zw,
		md5: md5.New(), crc: crc32.NewIEEE(), schema: schema,
	}, nil
}

// Write feeds raw (uncompressed) chunk payload bytes through the running
// hashes and the deflate stream.
func (b *chunkBuilder) Write(p []byte) (int, error) {
	b.md5.Write(p)
	b.crc.Write(p)
	b.size += uint32(len(p))
	return b.zw.Write(p)
}

// Finish flushes the deflate stream, computes dataSize from the file's
// current length, and rewinds to overwrite the placeholder with a complete
// ChunkHeader.
func (b *chunkBuilder) Finish(variant dzformat.ChunkVariant, sliceName string, targetAddr, wipeCount, dev uint32) error {
	if err := b.zw.Close(); err != nil {
		b.f.Close()
		return fmt.Errorf("chunker: closing deflate stream for %s: %w", b.path, err)
	}

	pos, err := b.f.Seek(0, io.SeekCurrent)
	if err != nil {
		b.f.Close()
		return fmt.Errorf("chunker: seek %s: %w", b.path, err)
	}
	dataSize := uint32(pos) - uint32(b.schema.Size)

	var sum [16]byte
	copy(sum[:], b.md5.Sum(nil))

	ch := dzformat.ChunkHeader{
		Variant:    variant,
		SliceName:  sliceName,
		ChunkName:  chunkName(sliceName, uint64(targetAddr)),
		TargetSize: b.size,
		DataSize:   dataSize,
		MD5:        sum,
		TargetAddr: targetAddr,
		WipeCount:  wipeCount,
		Dev:        dev,
		CRC32:      b.crc.Sum32(),
	}
	hdrBuf, err := dzstruct.Encode(ch.Schema(), ch.ToMap())
	if err != nil {
		b.f.Close()
		return fmt.Errorf("chunker: encoding header for %s: %w", b.path, err)
	}

	if _, err := b.f.Seek(0, io.SeekStart); err != nil {
		b.f.Close()
		return fmt.Errorf("chunker: seek %s: %w", b.path, err)
	}
	if _, err := b.f.Write(hdrBuf); err != nil {
		b.f.Close()
		return fmt.Errorf("chunker: write header for %s: %w", b.path, err)
	}
	return b.f.Close()
}

// Abort closes and removes a chunk file that will not be finished, e.g.
// because the strategy errored out mid-stream.
func (b *chunkBuilder) Abort() {
	b.f.Close()
	b.fs.Remove(b.path)
}
