// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations, messages,
// tool invocations, and per-response usage metadata.
//
// The assistant message draft is the mutable center of a streaming
// response: its Content grows append-only while the stream is open, tool
// invocations are paired with their results by id, and ApiMetadata is
// attached exactly once after the stream completes. Collaborators always
// receive snapshots (Clone), never the live draft.
package model
