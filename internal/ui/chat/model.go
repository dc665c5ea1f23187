// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"log/slog"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/driftchat/internal/config"
	"github.com/jeranaias/driftchat/internal/model"
	"github.com/jeranaias/driftchat/internal/offline"
	"github.com/jeranaias/driftchat/internal/provider"
	"github.com/jeranaias/driftchat/internal/storage"
	"github.com/jeranaias/driftchat/internal/ui/components"
	"github.com/jeranaias/driftchat/internal/ui/styles"
	"github.com/jeranaias/driftchat/internal/usage"
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// Deps carries the collaborators the chat view needs.
type Deps struct {
	Config   *config.Config
	Registry *provider.Registry
	Store    *storage.ConversationStore
	Tracker  *usage.Tracker
	Queue    *offline.SendQueue
	Logger   *slog.Logger
}

// Model is the Bubble Tea model for the chat view.
type Model struct {
	deps Deps

	// UI
	theme     *styles.Theme
	keys      KeyMap
	viewport  viewport.Model
	input     textarea.Model
	spinner   components.Spinner
	statusBar *components.StatusBar
	msgView   *components.MessageView
	markdown  *components.MarkdownRenderer

	// Session
	providerName string
	modelName    string
	conversation *model.Conversation

	// Streaming
	streamBuf    *StreamingBuffer
	streaming    bool
	draftID      string
	cancelStream context.CancelFunc

	// State
	width    int
	height   int
	ready    bool
	showHelp bool
	err      error
	notice   string
}

// New creates the chat model. Provider and model default from config.
func New(deps Deps) Model {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	theme := styles.NewTheme(deps.Config.UI.Theme)

	input := textarea.New()
	input.Placeholder = "Type a message, or /help for commands"
	input.Prompt = "> "
	input.SetHeight(3)
	input.CharLimit = 0
	input.ShowLineNumbers = false
	input.Focus()

	providerName := deps.Config.DefaultProvider
	modelName := deps.Config.DefaultModel

	statusBar := components.NewStatusBar(theme)
	statusBar.Provider = providerName
	statusBar.Model = modelName

	msgView := components.NewMessageView(theme, nil, 80)
	msgView.ShowCost = deps.Config.UI.ShowCost
	msgView.ShowTokens = deps.Config.UI.ShowTokens

	return Model{
		deps:         deps,
		theme:        theme,
		keys:         DefaultKeyMap(),
		input:        input,
		spinner:      components.NewSpinner(theme),
		statusBar:    statusBar,
		msgView:      msgView,
		providerName: providerName,
		modelName:    modelName,
		conversation: model.NewConversation(providerName, modelName),
		streamBuf:    NewStreamingBuffer(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Conversation returns the active conversation.
func (m Model) Conversation() *model.Conversation {
	return m.conversation
}

// Streaming reports whether a response stream is active.
func (m Model) Streaming() bool {
	return m.streaming
}

// buildRequest converts the conversation history into a provider request,
// honoring the configured system prompt and history window.
func (m *Model) buildRequest() provider.Request {
	cfg := m.deps.Config

	var turns []provider.Turn
	if cfg.Chat.SystemPrompt != "" {
		turns = append(turns, provider.Turn{Role: "system", Content: cfg.Chat.SystemPrompt})
	}

	msgs := m.conversation.Messages
	if limit := cfg.Chat.HistoryTurns; limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	for _, msg := range msgs {
		if msg.IsError || msg.Content == "" {
			continue
		}
		switch msg.Role {
		case model.RoleUser, model.RoleAssistant, model.RoleSystem:
			turns = append(turns, provider.Turn{Role: msg.Role.String(), Content: msg.Content})
		}
	}

	return provider.Request{
		Model:       m.modelName,
		Turns:       turns,
		Temperature: cfg.Chat.Temperature,
		MaxTokens:   cfg.Chat.MaxTokens,
	}
}

// resetConversation starts a fresh conversation for the active
// provider/model.
func (m *Model) resetConversation() {
	m.conversation = model.NewConversation(m.providerName, m.modelName)
	m.streamBuf.Reset()
	m.err = nil
	m.notice = ""
}
