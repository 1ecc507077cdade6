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
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/dzkit/godz/dzformat"
	"github.com/dzkit/godz/dzstruct"
)

// loadedChunk is a ".chunk" file's decoded header plus the path to its
// payload on disk. Payload bytes are never re-verified here -- the chunk
// file is treated as authoritative, per the reconstruction contract.
type loadedChunk struct {
	Header dzformat.ChunkHeader
	Path   string
}

// loadChunks scans dir for "*.chunk" files and parses each one's header
// (only the header -- the zlib payload is streamed verbatim later, never
// re-inflated or re-hashed).
func loadChunks(fs afero.Fs, dir string, variant dzformat.ChunkVariant) ([]loadedChunk, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("encoder: read %s: %w", dir, err)
	}

	schema := variant.SchemaFor()
	var chunks []loadedChunk
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".chunk") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		hdrBuf, err := readHeaderBytes(fs, path, schema.Size)
		if err != nil {
			return nil, err
		}
		m, err := dzstruct.Decode(schema, hdrBuf, dzformat.ChunkMagic)
		if err != nil {
			return nil, fmt.Errorf("encoder: %s: %w", path, err)
		}
		chunks = append(chunks, loadedChunk{
			Header: dzformat.ChunkHeaderFromMap(variant, m),
			Path:   path,
		})
	}
	return chunks, nil
}

func readHeaderBytes(fs afero.Fs, path string, size int) ([]byte, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("encoder: open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, size)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, fmt.Errorf("encoder: reading header from %s: %w", path, err)
	}
	return buf, nil
}

// sortChunks orders chunks by (dev, targetAddr), with one tiebreaker: a
// chunk whose name ends in ".img" sorts after a sibling at the same
// address (an installable image layered over the raw slice).
func sortChunks(chunks []loadedChunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		a, b := chunks[i].Header, chunks[j].Header
		if a.Dev != b.Dev {
			return a.Dev < b.Dev
		}
		if a.TargetAddr != b.TargetAddr {
			return a.TargetAddr < b.TargetAddr
		}
		return !strings.HasSuffix(a.ChunkName, ".img") && strings.HasSuffix(b.ChunkName, ".img")
	})
}

// checkOverlap asserts that, within each dev group, every chunk starts at
// or after the previous chunk's wipe region ends.
func checkOverlap(chunks []loadedChunk) error {
	var dev uint32
	haveDev := false
	var last uint64

	for _, c := range chunks {
		h := c.Header
		if !haveDev || h.Dev != dev {
			dev = h.Dev
			haveDev = true
			last = 0
		}
		if uint64(h.TargetAddr) < last {
			return fmt.Errorf("%w: chunk %q starts at %d, before the previous chunk's wipe region ends at %d",
				dzformat.ErrOverlap, h.ChunkName, h.TargetAddr, last)
		}
		last = uint64(h.TargetAddr) + uint64(h.WipeCount)
	}
	return nil
}
