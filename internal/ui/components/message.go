// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/driftchat/internal/model"
	"github.com/jeranaias/driftchat/internal/pricing"
	"github.com/jeranaias/driftchat/internal/ui/styles"
)

// =============================================================================
// MESSAGE RENDERER
// =============================================================================

// MessageView renders conversation messages as bordered bubbles.
type MessageView struct {
	theme    *styles.Theme
	markdown *MarkdownRenderer
	width    int

	// ShowCost and ShowTokens control the usage footer on finalized
	// assistant messages.
	ShowCost   bool
	ShowTokens bool
}

// NewMessageView creates a message renderer.
func NewMessageView(theme *styles.Theme, markdown *MarkdownRenderer, width int) *MessageView {
	return &MessageView{
		theme:      theme,
		markdown:   markdown,
		width:      width,
		ShowCost:   true,
		ShowTokens: true,
	}
}

// SetWidth updates the wrap width after a terminal resize.
func (v *MessageView) SetWidth(width int) {
	v.width = width
}

// Render renders one message as a bubble with role label and timestamp.
func (v *MessageView) Render(msg *model.Message) string {
	var b strings.Builder

	label := v.theme.RoleLabel.Render(msg.Role.DisplayName())
	ts := v.theme.Timestamp.Render(msg.Timestamp.Format("15:04"))
	b.WriteString(label + " " + ts + "\n")

	content := msg.Content
	if msg.Role == model.RoleAssistant && !msg.IsStreaming && !msg.IsError && v.markdown != nil {
		content = v.markdown.Render(content)
	}

	bubble := v.bubbleStyle(msg)
	maxWidth := v.width - 6
	if maxWidth > 20 {
		bubble = bubble.MaxWidth(maxWidth)
	}
	b.WriteString(bubble.Render(content))

	for i := range msg.ToolInvocations {
		b.WriteString("\n" + v.renderInvocation(&msg.ToolInvocations[i]))
	}

	if footer := v.usageFooter(msg.ApiMetadata); footer != "" {
		b.WriteString("\n" + v.theme.UsageFooter.Render(footer))
	}

	return b.String()
}

func (v *MessageView) bubbleStyle(msg *model.Message) lipgloss.Style {
	switch {
	case msg.IsError:
		return v.theme.ErrorBox
	case msg.Role == model.RoleUser:
		return v.theme.UserBubble
	case msg.Role == model.RoleSystem:
		return v.theme.SystemBubble
	default:
		return v.theme.AssistantBubble
	}
}

// renderInvocation shows a tool call and, when present, its result.
func (v *MessageView) renderInvocation(inv *model.ToolInvocation) string {
	var b strings.Builder
	b.WriteString("tool: " + inv.ToolName)
	if inv.IsComplete() {
		b.WriteString(" (done)")
	} else {
		b.WriteString(" (running)")
	}
	return v.theme.ToolInvocation.Render(b.String())
}

// usageFooter summarizes token counts and cost for a finalized message.
func (v *MessageView) usageFooter(meta *model.ApiUsageMetadata) string {
	if meta == nil {
		return ""
	}

	var parts []string
	if v.ShowTokens && meta.TotalTokens != nil {
		parts = append(parts, fmt.Sprintf("%d tokens", *meta.TotalTokens))
	}
	if v.ShowCost && meta.Cost != nil {
		parts = append(parts, formatCost(meta.Cost))
	}
	if meta.ResponseTime > 0 {
		parts = append(parts, fmt.Sprintf("%.1fs", meta.ResponseTime.Seconds()))
	}
	return strings.Join(parts, " | ")
}

// formatCost renders a cost in dollars with sub-cent precision.
func formatCost(c *pricing.Cost) string {
	if c.TotalCost < 0.01 {
		return fmt.Sprintf("$%.4f", c.TotalCost)
	}
	return fmt.Sprintf("$%.2f", c.TotalCost)
}
