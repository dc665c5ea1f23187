// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"testing"
	"time"

	"github.com/jeranaias/driftchat/internal/pricing"
)

func TestNewUserMessage(t *testing.T) {
	msg := NewUserMessage("Hello")

	if msg.Role != RoleUser {
		t.Errorf("Role = %q, want 'user'", msg.Role)
	}
	if msg.Content != "Hello" {
		t.Errorf("Content = %q, want 'Hello'", msg.Content)
	}
	if msg.ID == "" {
		t.Error("ID should be generated")
	}
}

func TestNewAssistantDraft(t *testing.T) {
	msg := NewAssistantDraft()

	if msg.Role != RoleAssistant {
		t.Errorf("Role = %q, want 'assistant'", msg.Role)
	}
	if !msg.IsStreaming {
		t.Error("draft should be in streaming state")
	}
	if msg.Content != "" {
		t.Errorf("draft Content = %q, want empty", msg.Content)
	}
}

func TestNewErrorMessage(t *testing.T) {
	msg := NewErrorMessage("provider unreachable")
	if !msg.IsError {
		t.Error("IsError should be set")
	}
	if msg.Role != RoleAssistant {
		t.Errorf("Role = %q, want 'assistant'", msg.Role)
	}
}

func TestMessage_CloneIsolatesInvocations(t *testing.T) {
	msg := NewAssistantDraft()
	msg.ToolInvocations = []ToolInvocation{
		{ToolCallID: "a1", ToolName: "weather", State: InvocationPending},
	}

	snap := msg.Clone()
	msg.ToolInvocations[0].State = InvocationComplete

	if snap.ToolInvocations[0].State != InvocationPending {
		t.Error("Clone shares ToolInvocations backing array with the draft")
	}
}

func TestMessage_CloneIsolatesMetadata(t *testing.T) {
	tokens := 7
	msg := NewAssistantDraft()
	msg.ApiMetadata = &ApiUsageMetadata{Provider: "groq", TotalTokens: &tokens}

	snap := msg.Clone()
	msg.ApiMetadata.Provider = "openai"

	if snap.ApiMetadata.Provider != "groq" {
		t.Error("Clone shares ApiMetadata with the draft")
	}
}

func TestConversation_UpdateMessage(t *testing.T) {
	conv := NewConversation("groq", "llama-3.1-8b-instant")
	msg := NewAssistantDraft()
	conv.Append(msg)

	ok := conv.UpdateMessage(msg.ID, func(m *Message) {
		m.Content = "partial"
	})
	if !ok {
		t.Fatal("UpdateMessage reported missing id")
	}
	if conv.Find(msg.ID).Content != "partial" {
		t.Error("update not applied")
	}

	if conv.UpdateMessage("missing", func(m *Message) {}) {
		t.Error("UpdateMessage should report false for unknown id")
	}
}

func TestConversation_RecordUsage(t *testing.T) {
	conv := NewConversation("openai", "gpt-4o")
	prompt, completion := 100, 50
	conv.RecordUsage(&ApiUsageMetadata{
		PromptTokens:     &prompt,
		CompletionTokens: &completion,
		Cost:             &pricing.Cost{TotalCost: 0.01, Currency: "USD"},
		Timestamp:        time.Now(),
	})

	if conv.TotalPromptTokens != 100 || conv.TotalCompletionTokens != 50 {
		t.Errorf("token totals = (%d, %d), want (100, 50)",
			conv.TotalPromptTokens, conv.TotalCompletionTokens)
	}
	if conv.TotalCostUSD != 0.01 {
		t.Errorf("TotalCostUSD = %v, want 0.01", conv.TotalCostUSD)
	}

	// Nil metadata and nil fields are ignored, never defaulted to zero spend.
	conv.RecordUsage(nil)
	conv.RecordUsage(&ApiUsageMetadata{})
	if conv.TotalPromptTokens != 100 {
		t.Error("nil usage fields must not change totals")
	}
}

func TestConversation_DeriveTitle(t *testing.T) {
	conv := NewConversation("groq", "llama-3.1-8b-instant")
	conv.Append(NewUserMessage("What is the weather\nin Paris today?"))
	conv.DeriveTitle()

	if conv.Title == "" {
		t.Fatal("title not derived")
	}
	for _, r := range conv.Title {
		if r == '\n' {
			t.Error("title should not contain newlines")
		}
	}
}
