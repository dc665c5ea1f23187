// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the visual UI components for the driftchat
// TUI: message bubbles, the markdown renderer, code block highlighting,
// the status bar, and the loading spinner.
package components
