// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/driftchat/internal/model"
	"github.com/jeranaias/driftchat/internal/pricing"
	"github.com/jeranaias/driftchat/internal/ui/styles"
)

func testTheme() *styles.Theme {
	return styles.NewTheme("dark")
}

func TestCodeBlockRender(t *testing.T) {
	cb := NewCodeBlock("go", "func main() {\n\tfmt.Println(\"hi\")\n}")
	out := cb.Render()
	if out == "" {
		t.Fatal("rendered empty code block")
	}
	if !strings.Contains(out, "go") {
		t.Error("language badge missing")
	}
}

func TestCodeBlockUnknownLanguage(t *testing.T) {
	cb := NewCodeBlock("", "plain text without structure")
	if cb.Render() == "" {
		t.Error("rendered empty for unknown language")
	}
}

func TestMessageViewRendersRoles(t *testing.T) {
	view := NewMessageView(testTheme(), nil, 80)

	user := model.NewUserMessage("hello there")
	out := view.Render(user)
	if !strings.Contains(out, "hello there") {
		t.Error("user content missing")
	}
	if !strings.Contains(out, "You") {
		t.Error("role label missing")
	}

	asst := model.NewMessage(model.RoleAssistant, "hi back")
	if !strings.Contains(view.Render(asst), "hi back") {
		t.Error("assistant content missing")
	}
}

func TestMessageViewUsageFooter(t *testing.T) {
	view := NewMessageView(testTheme(), nil, 80)

	total := 150
	msg := model.NewMessage(model.RoleAssistant, "answer")
	msg.ApiMetadata = &model.ApiUsageMetadata{
		Provider:     "groq",
		Model:        "llama-3.1-8b-instant",
		TotalTokens:  &total,
		Cost:         &pricing.Cost{TotalCost: 0.0012},
		ResponseTime: 2 * time.Second,
	}

	out := view.Render(msg)
	if !strings.Contains(out, "150 tokens") {
		t.Error("token count missing from footer")
	}
	if !strings.Contains(out, "$0.0012") {
		t.Error("cost missing from footer")
	}
}

func TestMessageViewHidesUsageWhenDisabled(t *testing.T) {
	view := NewMessageView(testTheme(), nil, 80)
	view.ShowCost = false
	view.ShowTokens = false

	total := 150
	msg := model.NewMessage(model.RoleAssistant, "answer")
	msg.ApiMetadata = &model.ApiUsageMetadata{TotalTokens: &total, Cost: &pricing.Cost{TotalCost: 0.5}}

	out := view.Render(msg)
	if strings.Contains(out, "150 tokens") || strings.Contains(out, "$0.50") {
		t.Error("usage footer shown despite being disabled")
	}
}

func TestMessageViewToolInvocations(t *testing.T) {
	view := NewMessageView(testTheme(), nil, 80)

	msg := model.NewMessage(model.RoleAssistant, "checking weather")
	msg.ToolInvocations = []model.ToolInvocation{
		{ToolCallID: "c1", ToolName: "get_weather", State: model.InvocationPending},
		{ToolCallID: "c2", ToolName: "get_time", State: model.InvocationComplete},
	}

	out := view.Render(msg)
	if !strings.Contains(out, "get_weather") || !strings.Contains(out, "(running)") {
		t.Error("pending invocation not shown")
	}
	if !strings.Contains(out, "get_time") || !strings.Contains(out, "(done)") {
		t.Error("complete invocation not shown")
	}
}

func TestStatusBarRender(t *testing.T) {
	bar := NewStatusBar(testTheme())
	bar.Provider = "groq"
	bar.Model = "llama-3.1-8b-instant"
	bar.Status = StatusStreaming
	bar.SessionTokens = 1234
	bar.SessionCost = 0.0042
	bar.Width = 120

	out := bar.Render()
	if !strings.Contains(out, "groq/llama-3.1-8b-instant") {
		t.Error("provider/model missing")
	}
	if !strings.Contains(out, "Streaming") {
		t.Error("status missing")
	}
	if !strings.Contains(out, "1234 tok") {
		t.Error("token count missing")
	}
}

func TestStatusBarQueuedBadge(t *testing.T) {
	bar := NewStatusBar(testTheme())
	bar.QueuedCount = 3
	bar.Width = 100

	if !strings.Contains(bar.Render(), "3 queued") {
		t.Error("queued badge missing")
	}
}

func TestFormatCost(t *testing.T) {
	if got := formatCost(&pricing.Cost{TotalCost: 0.0005}); got != "$0.0005" {
		t.Errorf("sub-cent cost: got %q", got)
	}
	if got := formatCost(&pricing.Cost{TotalCost: 1.25}); got != "$1.25" {
		t.Errorf("dollar cost: got %q", got)
	}
}
