// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the interactive chat view for the driftchat
// TUI.
//
// The Bubble Tea model owns one conversation at a time. A response
// stream runs in a command goroutine driving the stream package; decoded
// snapshots land in a StreamingBuffer and a 30fps tick folds them into
// the viewport, which keeps rendering smooth regardless of token rate.
package chat
