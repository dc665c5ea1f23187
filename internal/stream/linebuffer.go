// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import "strings"

// =============================================================================
// LINE BUFFER
// =============================================================================

// LineBuffer accumulates raw text chunks and yields only complete,
// newline-terminated lines. The unterminated trailing fragment is retained
// across calls, so chunk boundaries may fall anywhere - even mid-rune-escape
// inside a JSON payload - without corrupting line reassembly.
//
// Invariant: concatenating every line ever returned (with one '\n' after
// each) plus the current pending fragment equals the concatenation of all
// pushed chunks.
type LineBuffer struct {
	pending strings.Builder
}

// Push appends chunk to the buffer and returns all newly completed lines,
// without their trailing newlines. Pure accumulation; no error conditions.
func (b *LineBuffer) Push(chunk string) []string {
	if chunk == "" {
		return nil
	}
	b.pending.WriteString(chunk)

	buffered := b.pending.String()
	last := strings.LastIndexByte(buffered, '\n')
	if last < 0 {
		return nil
	}

	lines := strings.Split(buffered[:last], "\n")
	b.pending.Reset()
	b.pending.WriteString(buffered[last+1:])
	return lines
}

// Flush returns the pending unterminated fragment and clears it. Called at
// end of stream so a final line without a trailing newline is not lost.
func (b *LineBuffer) Flush() string {
	tail := b.pending.String()
	b.pending.Reset()
	return tail
}

// Pending returns the current unterminated fragment without consuming it.
func (b *LineBuffer) Pending() string {
	return b.pending.String()
}
