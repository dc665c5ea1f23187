// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the driftchat command line: argument parsing,
// the one-shot ask command, the line-mode chat REPL, and the admin
// commands (status, config, setup, session, usage). The TUI lives in
// internal/ui; this package covers everything reachable without it.
package cli
