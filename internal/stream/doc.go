// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream implements the streaming response decoder and incremental
// message assembler for driftchat.
//
// A provider response arrives as a byte stream that splits arbitrarily
// across network chunk boundaries. The pipeline is:
//
//	ChunkReader -> LineBuffer -> Decode -> {ToolCallTracker, MessageAccumulator}
//	            -> message sink (per event) -> UsageFinalizer -> message sink (final)
//
// Two incompatible wire encodings are accepted per line: a typed JSON
// envelope discriminated by a "type" field, and the legacy colon-prefixed
// numeric format kept for backward compatibility with older gateway
// builds. Decoding tries the typed format first and falls back to legacy;
// a malformed line is logged and skipped, never fatal.
//
// One StreamDriver instance exclusively owns one assistant message draft
// and one LineBuffer for the duration of a stream. All decode and apply
// work is synchronous within a single read iteration, so events are
// applied in strict arrival order. Usage and cost metadata are committed
// exactly once, after the reader reports completion.
package stream
