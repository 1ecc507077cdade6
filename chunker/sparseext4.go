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
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"github.com/dzkit/godz/dzformat"
	"github.com/dzkit/godz/sparseimg"
)

// waitDelay is the grace period between sending the sparse-image tool a
// terminate request and escalating to a hard kill.
const waitDelay = 10 * time.Second

// RunSparseEXT4 spawns ext2simg against imagePath, parses the Android
// sparse image stream on its stdout, and converts Raw/Fill/DontCare runs
// into DZ chunks: successive Raw/Fill chunks accumulate into one DZ chunk's
// payload, a DontCare chunk closes it out (its blocks folded into
// wipeCount), and the slice's final DZ chunk has its wipeCount overridden
// to absorb the tail to lastWipe. The child is reaped on every exit path:
// canceling ctx (done in a deferred call) sends SIGTERM, and WaitDelay
// escalates to SIGKILL if it hasn't exited within 10 seconds.
func RunSparseEXT4(ctx context.Context, imagePath string, fs afero.Fs, outDir, sliceName string, p Params, variant dzformat.ChunkVariant) (err error) {
	ctx, cancel := context.WithCancel(ctx)

	cmd := exec.CommandContext(ctx, "ext2simg", "-c", imagePath, "-")
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = waitDelay

	stdout, perr := cmd.StdoutPipe()
	if perr != nil {
		cancel()
		return fmt.Errorf("%w: stdout pipe: %v", ErrExternalTool, perr)
	}
	if serr := cmd.Start(); serr != nil {
		cancel()
		return fmt.Errorf("%w: starting ext2simg: %v", ErrExternalTool, serr)
	}

	defer func() {
		cancel()
		if waitErr := cmd.Wait(); err == nil && waitErr != nil {
			err = fmt.Errorf("%w: ext2simg: %v", ErrExternalTool, waitErr)
		}
	}()

	return convertSparseStream(stdout, fs, outDir, sliceName, p, variant)
}

// convertSparseStream implements the conversion rule: successive Raw/Fill
// sparse chunks accumulate into one DZ chunk's payload, a DontCare chunk
// closes it out (its blocks folded into wipeCount), and the slice's final
// DZ chunk has its wipeCount overridden to absorb the tail to lastWipe. It
// is split out from RunSparseEXT4 so the conversion logic is testable
// against a synthetic stream without spawning ext2simg.
func convertSparseStream(r io.Reader, fs afero.Fs, outDir, sliceName string, p Params, variant dzformat.ChunkVariant) error {
	sr, rerr := sparseimg.NewReader(r)
	if rerr != nil {
		return fmt.Errorf("%w: %v", ErrExternalTool, rerr)
	}

	targetAddr := p.StartLBA
	blocksConsumed := uint64(0)
	var cb *chunkBuilder
	var trimCount uint64
	var err error

	open := func() (*chunkBuilder, error) {
		path := filepath.Join(outDir, chunkName(sliceName, targetAddr)+".chunk")
		return newChunkBuilder(fs, variant, path)
	}

	for {
		chunk, nerr := sr.Next()
		if nerr == io.EOF {
			break
		}
		if nerr != nil {
			if cb != nil {
				cb.Abort()
			}
			return fmt.Errorf("%w: %v", ErrExternalTool, nerr)
		}

		switch chunk.Type {
		case sparseimg.TypeRaw, sparseimg.TypeFill:
			if cb == nil {
				cb, err = open()
				if err != nil {
					return err
				}
			}
			if _, werr := io.Copy(cb, chunk.Blocks()); werr != nil {
				cb.Abort()
				return fmt.Errorf("chunker: sparse-ext4: %w", werr)
			}
			trimCount += uint64(chunk.NumBlocks)

		case sparseimg.TypeDontCare:
			trimCount += uint64(chunk.NumBlocks)
			if cb != nil {
				if ferr := cb.Finish(variant, sliceName, uint32(targetAddr), uint32(trimCount), p.Dev); ferr != nil {
					return ferr
				}
				cb = nil
			}
			blocksConsumed += trimCount
			targetAddr = p.StartLBA + blocksConsumed
			trimCount = 0

		case sparseimg.TypeCrc32:
			// Informational only; Verify cross-checks the running CRC32.
		}
	}

	if verr := sr.Verify(); verr != nil {
		if cb != nil {
			cb.Abort()
		}
		return verr
	}

	if cb != nil {
		return cb.Finish(variant, sliceName, uint32(targetAddr), uint32(p.LastWipe-targetAddr), p.Dev)
	}
	return nil
}
