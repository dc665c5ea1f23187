// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"testing"

	"github.com/jeranaias/driftchat/internal/config"
	"github.com/jeranaias/driftchat/internal/model"
	"github.com/jeranaias/driftchat/internal/offline"
	"github.com/jeranaias/driftchat/internal/provider"
)

func testModel(t *testing.T) Model {
	t.Helper()
	cfg := config.Default()
	return New(Deps{
		Config:   cfg,
		Registry: provider.NewRegistry(),
	})
}

func TestBuildRequest_SystemPromptFirst(t *testing.T) {
	m := testModel(t)
	m.deps.Config.Chat.SystemPrompt = "be terse"

	m.conversation.Append(model.NewUserMessage("hello"))

	req := m.buildRequest()
	if len(req.Turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(req.Turns))
	}
	if req.Turns[0].Role != "system" || req.Turns[0].Content != "be terse" {
		t.Errorf("system turn not first: %+v", req.Turns[0])
	}
	if req.Turns[1].Role != "user" {
		t.Errorf("user turn missing: %+v", req.Turns[1])
	}
}

func TestBuildRequest_HistoryWindow(t *testing.T) {
	m := testModel(t)
	m.deps.Config.Chat.HistoryTurns = 2

	m.conversation.Append(model.NewUserMessage("one"))
	m.conversation.Append(model.NewMessage(model.RoleAssistant, "two"))
	m.conversation.Append(model.NewUserMessage("three"))

	req := m.buildRequest()
	if len(req.Turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(req.Turns))
	}
	if req.Turns[0].Content != "two" || req.Turns[1].Content != "three" {
		t.Errorf("window kept wrong turns: %+v", req.Turns)
	}
}

func TestBuildRequest_SkipsErrorAndEmptyMessages(t *testing.T) {
	m := testModel(t)

	m.conversation.Append(model.NewUserMessage("question"))
	m.conversation.Append(model.NewErrorMessage("Stream failed: boom"))
	m.conversation.Append(model.NewAssistantDraft()) // empty content

	req := m.buildRequest()
	if len(req.Turns) != 1 {
		t.Fatalf("expected 1 turn, got %d: %+v", len(req.Turns), req.Turns)
	}
	if req.Turns[0].Content != "question" {
		t.Errorf("wrong turn kept: %+v", req.Turns[0])
	}
}

func TestRunCommand_ModelSwitch(t *testing.T) {
	m := testModel(t)

	m, _ = m.runCommand("/model llama-3.3-70b-versatile")
	if m.modelName != "llama-3.3-70b-versatile" {
		t.Errorf("model not switched: %s", m.modelName)
	}
	if m.conversation.Model != "llama-3.3-70b-versatile" {
		t.Error("conversation model not updated")
	}
}

func TestRunCommand_OfflineToggle(t *testing.T) {
	t.Cleanup(func() { offline.SetOfflineMode(false) })

	m := testModel(t)

	m, _ = m.runCommand("/offline on")
	if !offline.IsOfflineMode() {
		t.Error("offline mode not enabled")
	}

	m, _ = m.runCommand("/offline off")
	if offline.IsOfflineMode() {
		t.Error("offline mode not disabled")
	}
	_ = m
}

func TestRunCommand_Unknown(t *testing.T) {
	m := testModel(t)

	m, _ = m.runCommand("/bogus")
	if !strings.Contains(m.notice, "unknown command") {
		t.Errorf("expected unknown-command notice, got %q", m.notice)
	}
}

func TestRunCommand_NewResetsConversation(t *testing.T) {
	m := testModel(t)
	m.conversation.Append(model.NewUserMessage("old"))
	oldID := m.conversation.ID

	m, _ = m.runCommand("/new")
	if m.conversation.ID == oldID {
		t.Error("conversation not reset")
	}
	if len(m.conversation.Messages) != 0 {
		t.Error("messages survived reset")
	}
}
