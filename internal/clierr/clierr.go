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

// Package clierr maps the package-level error taxonomy (format, integrity,
// invariant, external-tool, OS I/O) to the three command-line tools' shared
// exit code contract, so each cmd/ binary dispatches the same way instead
// of repeating a sentinel switch.
package clierr

import (
	"errors"
	"io"

	"github.com/dzkit/godz/chunker"
	"github.com/dzkit/godz/dzformat"
	"github.com/dzkit/godz/sparseimg"
)

// Exit codes, shared by cmd/undz, cmd/mkdz and cmd/img2chunks.
const (
	Success     = 0
	UserError   = 1
	ShortRead   = 2
	CRCMismatch = 4
	Protocol    = 64
	Internal    = 127
)

// Code classifies err into one of this package's exit codes by walking its
// wrap chain for a recognized sentinel. Unrecognized errors -- a bad flag,
// a missing input file -- are treated as user error.
func Code(err error) int {
	switch {
	case err == nil:
		return Success

	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return ShortRead

	case errors.Is(err, dzformat.ErrPayloadCRCMismatch),
		errors.Is(err, dzformat.ErrPayloadMD5Mismatch),
		errors.Is(err, dzformat.ErrHeaderMD5Mismatch),
		errors.Is(err, dzformat.ErrPayloadSizeMismatch):
		return CRCMismatch

	case errors.Is(err, dzformat.ErrBadMagic),
		errors.Is(err, dzformat.ErrUnsupportedMajor),
		errors.Is(err, dzformat.ErrReservedNonzero),
		errors.Is(err, dzformat.ErrWipeCountTooSmall),
		errors.Is(err, dzformat.ErrTargetSizeNotBlockAligned),
		errors.Is(err, dzformat.ErrOverlap),
		errors.Is(err, dzformat.ErrInflate),
		errors.Is(err, sparseimg.ErrBadMagic),
		errors.Is(err, sparseimg.ErrUnsupportedMajor),
		errors.Is(err, sparseimg.ErrBadBlockSize),
		errors.Is(err, sparseimg.ErrCRCMismatch),
		errors.Is(err, sparseimg.ErrUnknownChunkType):
		return Protocol

	case errors.Is(err, chunker.ErrExternalTool):
		return Internal

	default:
		return UserError
	}
}
