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
	"crypto/md5"
	"fmt"
	"hash/crc32"
)

// VerifyFormatVersion checks FileHeader.FormatMajor/FormatMinor against the
// one supported major version. A higher major is fatal (ErrUnsupportedMajor);
// a higher minor is a non-fatal advisory, reported via the returned bool so
// callers can log a warning without treating it as an error.
func VerifyFormatVersion(h FileHeader) (warn bool, err error) {
	const supportedMajor = 2
	const knownMinor = 1
	if h.FormatMajor != supportedMajor {
		return false, fmt.Errorf("%w: formatMajor=%d", ErrUnsupportedMajor, h.FormatMajor)
	}
	return h.FormatMinor > knownMinor, nil
}

// VerifyChunkHeaderMD5 compares a running MD5 accumulated over every chunk
// header's raw bytes (in file order) against FileHeader.MD5.
func VerifyChunkHeaderMD5(h FileHeader, headerBytesInOrder [][]byte) error {
	sum := md5.New()
	for _, b := range headerBytesInOrder {
		sum.Write(b)
	}
	var got [16]byte
	copy(got[:], sum.Sum(nil))
	if got != h.MD5 {
		return ErrHeaderMD5Mismatch
	}
	return nil
}

// VerifyPayloadHashes checks a chunk's decompressed payload against its
// header's declared TargetSize, CRC32 and MD5, in that order, and returns
// the sentinel for the first one that does not match.
func VerifyPayloadHashes(c ChunkHeader, payload []byte) error {
	if uint32(len(payload)) != c.TargetSize {
		return ErrPayloadSizeMismatch
	}
	if crc32.ChecksumIEEE(payload) != c.CRC32 {
		return ErrPayloadCRCMismatch
	}
	sum := md5.Sum(payload)
	if sum != c.MD5 {
		return ErrPayloadMD5Mismatch
	}
	return nil
}

// VerifyChunkName checks that ChunkName follows the conventional
// "<sliceName>_<targetAddr>.bin" derivation. A mismatch is advisory, not
// fatal: the caller receives a ChunkNameMismatchError describing the
// discrepancy and decides whether to log it.
func VerifyChunkName(c ChunkHeader) error {
	want := fmt.Sprintf("%s_%d.bin", c.SliceName, c.TargetAddr)
	if c.ChunkName != want {
		return ChunkNameMismatchError{Got: c.ChunkName, Want: want}
	}
	return nil
}

// VerifyWipeCount checks the fatal invariant that a chunk's decompressed
// size never exceeds the space its WipeCount reserves at the given block
// size: targetSize <= wipeCount * blockSize.
func VerifyWipeCount(c ChunkHeader, blockSize uint64) error {
	reserved := uint64(c.WipeCount) * blockSize
	if uint64(c.TargetSize) > reserved {
		return fmt.Errorf("%w: targetSize=%d wipeCount=%d blockSize=%d",
			ErrWipeCountTooSmall, c.TargetSize, c.WipeCount, blockSize)
	}
	return nil
}
