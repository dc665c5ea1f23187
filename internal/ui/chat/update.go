// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/driftchat/internal/config"
	"github.com/jeranaias/driftchat/internal/model"
	"github.com/jeranaias/driftchat/internal/offline"
	"github.com/jeranaias/driftchat/internal/stream"
	"github.com/jeranaias/driftchat/internal/ui/components"
	"github.com/jeranaias/driftchat/internal/ui/styles"
	"github.com/jeranaias/driftchat/internal/util"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		newModel, cmd, handled := m.handleKey(msg)
		if handled {
			return newModel, cmd
		}
		m = newModel

	case StreamStartMsg:
		// Stream opened; nothing extra, the tick loop is already running.

	case StreamTickMsg:
		if update, ok := m.streamBuf.Flush(); ok {
			m.applyUpdate(update)
		}
		if m.streaming {
			cmds = append(cmds, streamTickCmd())
		}

	case StreamCompleteMsg:
		cmds = append(cmds, m.completeStream(msg)...)

	case ConversationSavedMsg:
		if msg.Err != nil {
			m.err = msg.Err
		}

	case NoticeMsg:
		m.notice = msg.Text

	case QueueDrainedMsg:
		if msg.Err != nil {
			m.err = msg.Err
		} else if msg.Sent > 0 {
			m.notice = "sent " + util.IntToString(msg.Sent) + " queued message(s)"
		}
		m.statusBar.QueuedCount = m.queueLen()

	case ConfigReloadedMsg:
		if msg.Config != nil {
			m.applyConfig(msg.Config)
		}
	}

	if cmd := m.spinner.Update(msg); cmd != nil {
		cmds = append(cmds, cmd)
	}

	// Forward remaining events to the input unless a stream holds focus.
	if !m.streaming {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	if cmd != nil {
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// =============================================================================
// KEY HANDLING
// =============================================================================

// handleKey processes one key event. handled=true means the caller should
// return immediately with the given command.
func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit, true

	case key.Matches(msg, m.keys.Cancel):
		if m.streaming && m.cancelStream != nil {
			m.cancelStream()
			m.notice = "cancelling..."
			return m, nil, true
		}

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.refreshViewport()
		return m, nil, true

	case key.Matches(msg, m.keys.Clear):
		if !m.streaming {
			m.resetConversation()
			m.refreshViewport()
			return m, nil, true
		}

	case key.Matches(msg, m.keys.Submit):
		if !m.streaming {
			return m.submit()
		}

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil, true

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil, true

	case key.Matches(msg, m.keys.Home):
		m.viewport.GotoTop()
		return m, nil, true

	case key.Matches(msg, m.keys.End):
		m.viewport.GotoBottom()
		return m, nil, true
	}

	return m, nil, false
}

// =============================================================================
// SUBMIT AND STREAM LIFECYCLE
// =============================================================================

// submit sends the current input: slash commands dispatch locally,
// everything else becomes a user message and starts a stream.
func (m Model) submit() (Model, tea.Cmd, bool) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil, true
	}

	if strings.HasPrefix(text, "/") {
		m.input.Reset()
		newModel, cmd := m.runCommand(text)
		return newModel, cmd, true
	}

	m.input.Reset()
	m.err = nil
	m.notice = ""

	// Offline mode queues instead of sending.
	if err := offline.CheckSendAllowed(); err != nil {
		if m.deps.Queue != nil {
			if _, qerr := m.deps.Queue.Enqueue(m.conversation.ID, text); qerr != nil {
				m.err = qerr
			} else {
				m.notice = "offline: message queued"
				m.statusBar.QueuedCount = m.queueLen()
			}
		} else {
			m.err = err
		}
		m.refreshViewport()
		return m, nil, true
	}

	p, err := m.deps.Registry.Get(m.providerName)
	if err != nil {
		m.err = err
		m.refreshViewport()
		return m, nil, true
	}

	m.conversation.Append(model.NewUserMessage(text))

	draft := model.NewAssistantDraft()
	m.conversation.Append(draft)
	m.draftID = draft.ID

	// The stream goroutine owns its own copy of the draft. Snapshots
	// reach the conversation only through the streaming buffer, so the
	// update loop never shares message fields with the driver.
	streamDraft := draft.Clone()

	req := m.buildRequest()

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelStream = cancel
	m.streaming = true
	m.streamBuf.Reset()
	m.statusBar.Status = components.StatusThinking
	m.refreshViewport()

	spinCmd := m.spinner.Start("Thinking")

	return m, tea.Batch(
		spinCmd,
		startStreamCmd(ctx, p, req, streamDraft, m.streamBuf, m.deps.Logger),
		streamTickCmd(),
		func() tea.Msg {
			return StreamStartMsg{MessageID: draft.ID, StartTime: time.Now()}
		},
	), true
}

// applyUpdate folds a streaming snapshot into the draft message.
func (m *Model) applyUpdate(update stream.MessageUpdate) {
	m.conversation.UpdateMessage(m.draftID, func(msg *model.Message) {
		msg.Content = update.Content
		msg.ToolInvocations = update.ToolInvocations
		if update.ApiMetadata != nil {
			msg.ApiMetadata = update.ApiMetadata
		}
	})
	if m.spinner.Active() && update.Content != "" {
		m.spinner.Stop()
		m.statusBar.Status = components.StatusStreaming
	}
	m.refreshViewport()
}

// completeStream finalizes the UI after the stream goroutine returns.
func (m *Model) completeStream(msg StreamCompleteMsg) []tea.Cmd {
	if update, ok := m.streamBuf.ForceFlush(); ok {
		m.applyUpdate(update)
	}

	m.streaming = false
	m.spinner.Stop()
	if m.cancelStream != nil {
		m.cancelStream()
		m.cancelStream = nil
	}

	// Swap the live draft for the assembled clone.
	if msg.Message != nil {
		m.conversation.UpdateMessage(m.draftID, func(dst *model.Message) {
			dst.Content = msg.Message.Content
			dst.ToolInvocations = msg.Message.ToolInvocations
			dst.ApiMetadata = msg.Message.ApiMetadata
			dst.IsStreaming = false
		})
		if msg.Message.ApiMetadata != nil {
			m.conversation.RecordUsage(msg.Message.ApiMetadata)
			if m.deps.Tracker != nil {
				_ = m.deps.Tracker.Record(msg.Message.ApiMetadata)
				summary := m.deps.Tracker.Summary()
				m.statusBar.SessionCost = summary.TotalCost
				m.statusBar.SessionTokens = summary.TotalTokens
			}
		}
	}

	if msg.Err != nil {
		m.err = msg.Err
		m.conversation.Append(model.NewErrorMessage("Stream failed: " + msg.Err.Error()))
		m.statusBar.Status = components.StatusError
	} else {
		m.statusBar.Status = components.StatusReady
	}

	m.refreshViewport()
	m.viewport.GotoBottom()

	// Persist after every completed exchange.
	var cmds []tea.Cmd
	if m.deps.Store != nil {
		conv := m.conversation
		store := m.deps.Store
		cmds = append(cmds, func() tea.Msg {
			err := store.Save(conv)
			return ConversationSavedMsg{ID: conv.ID, Err: err}
		})
	}
	return cmds
}

// =============================================================================
// HELPERS
// =============================================================================

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.theme.SetSize(width, height)

	headerHeight := 3
	inputHeight := 5
	statusHeight := 1
	vpHeight := height - headerHeight - inputHeight - statusHeight
	if vpHeight < 3 {
		vpHeight = 3
	}

	if !m.ready {
		m.viewport = viewport.New(width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = vpHeight
	}

	m.input.SetWidth(width - 4)
	m.statusBar.Width = width
	m.msgView.SetWidth(width)

	// Rebuild the markdown renderer at the new wrap width.
	if md, err := components.NewMarkdownRenderer(width-8, m.deps.Config.UI.Theme); err == nil {
		m.markdown = md
		if m.deps.Config.UI.Markdown {
			m.msgView = components.NewMessageView(m.theme, md, width)
			m.msgView.ShowCost = m.deps.Config.UI.ShowCost
			m.msgView.ShowTokens = m.deps.Config.UI.ShowTokens
		}
	}

	m.refreshViewport()
}

// applyConfig swaps in a config reloaded from disk. Display settings
// take effect immediately; the in-flight provider/model selection is
// left alone so a reload never redirects an active conversation.
func (m *Model) applyConfig(cfg *config.Config) {
	m.deps.Config = cfg
	m.theme = styles.NewTheme(cfg.UI.Theme)
	m.msgView.ShowCost = cfg.UI.ShowCost
	m.msgView.ShowTokens = cfg.UI.ShowTokens
	m.notice = "config reloaded"
	if m.width > 0 {
		m.resize(m.width, m.height)
	} else {
		m.refreshViewport()
	}
}

func (m *Model) queueLen() int {
	if m.deps.Queue == nil {
		return 0
	}
	return m.deps.Queue.Len()
}
