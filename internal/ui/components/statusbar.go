// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/driftchat/internal/offline"
	"github.com/jeranaias/driftchat/internal/ui/styles"
	"github.com/jeranaias/driftchat/internal/util"
)

// =============================================================================
// STATUS BAR
// =============================================================================

// Status is the chat lifecycle state shown in the bar.
type Status int

const (
	StatusReady Status = iota
	StatusStreaming
	StatusThinking
	StatusError
)

// String returns the display string for the status.
func (s Status) String() string {
	switch s {
	case StatusReady:
		return "Ready"
	case StatusStreaming:
		return "Streaming..."
	case StatusThinking:
		return "Thinking..."
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// StatusBar is the bottom bar: provider/model, state, session usage,
// offline badge, and key hints.
type StatusBar struct {
	Provider     string
	Model        string
	Status       Status
	Width        int
	SessionCost  float64 // dollars
	SessionTokens int
	QueuedCount  int // messages waiting in the offline send queue
	ShowShortcuts bool

	theme *styles.Theme
}

// NewStatusBar creates a status bar bound to a theme.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{
		Status:        StatusReady,
		Width:         80,
		ShowShortcuts: true,
		theme:         theme,
	}
}

// Render renders the bar at its current width.
func (b *StatusBar) Render() string {
	var left []string

	if offline.IsOfflineMode() {
		left = append(left, b.theme.StatusOffline.Render(offline.StatusBadge()))
	}
	if b.Provider != "" {
		left = append(left, b.theme.StatusProvider.Render(b.Provider+"/"+b.Model))
	}
	left = append(left, b.Status.String())
	if b.QueuedCount > 0 {
		left = append(left, b.theme.StatusOffline.Render(
			util.IntToString(b.QueuedCount)+" queued"))
	}

	var right []string
	if b.SessionTokens > 0 {
		right = append(right, b.theme.StatusCost.Render(
			util.IntToString(b.SessionTokens)+" tok"))
	}
	if b.SessionCost > 0 {
		right = append(right, b.theme.StatusCost.Render(fmt.Sprintf("$%.4f", b.SessionCost)))
	}
	if b.ShowShortcuts {
		right = append(right,
			b.theme.ShortcutKey.Render("?")+b.theme.ShortcutDesc.Render(" help"),
			b.theme.ShortcutKey.Render("C-c")+b.theme.ShortcutDesc.Render(" quit"))
	}

	leftStr := strings.Join(left, " | ")
	rightStr := strings.Join(right, " | ")

	gap := b.Width - lipgloss.Width(leftStr) - lipgloss.Width(rightStr) - 2
	if gap < 1 {
		gap = 1
	}

	return b.theme.StatusBar.Width(b.Width).Render(
		leftStr + strings.Repeat(" ", gap) + rightStr)
}
