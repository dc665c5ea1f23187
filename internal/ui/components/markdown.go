// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// =============================================================================
// MARKDOWN RENDERER
// =============================================================================

// MarkdownRenderer wraps a glamour renderer pinned to a wrap width.
// Rendering falls back to the raw text on error so a malformed document
// never blanks the viewport.
type MarkdownRenderer struct {
	renderer *glamour.TermRenderer
	width    int
}

// NewMarkdownRenderer creates a renderer for the given wrap width and
// theme ("dark", "light", or anything else for auto-detection).
func NewMarkdownRenderer(width int, theme string) (*MarkdownRenderer, error) {
	if width < 20 {
		width = 20
	}

	var styleOpt glamour.TermRendererOption
	switch theme {
	case "dark":
		styleOpt = glamour.WithStandardStyle("dark")
	case "light":
		styleOpt = glamour.WithStandardStyle("light")
	default:
		styleOpt = glamour.WithAutoStyle()
	}

	r, err := glamour.NewTermRenderer(
		styleOpt,
		glamour.WithWordWrap(width),
		glamour.WithEmoji(),
	)
	if err != nil {
		return nil, err
	}
	return &MarkdownRenderer{renderer: r, width: width}, nil
}

// Width returns the wrap width this renderer was built for.
func (m *MarkdownRenderer) Width() int {
	return m.width
}

// Render renders markdown to styled terminal output.
func (m *MarkdownRenderer) Render(text string) string {
	if m == nil || m.renderer == nil {
		return text
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	// Glamour pads with leading/trailing blank lines; the bubble adds
	// its own margins.
	return strings.Trim(out, "\n")
}
