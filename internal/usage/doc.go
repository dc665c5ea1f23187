// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package usage tracks token consumption and spend. A Tracker aggregates
// the current session in memory; a History persists per-response records
// to SQLite for cross-session reporting.
package usage
