// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles holds the color palette and Lip Gloss styles for the
// driftchat TUI. Colors are adaptive: each has a light and dark variant
// and the theme picks per the ui.theme config value or the detected
// terminal background.
package styles
