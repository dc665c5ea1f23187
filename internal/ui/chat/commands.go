// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/driftchat/internal/offline"
	"github.com/jeranaias/driftchat/internal/provider"
	"github.com/jeranaias/driftchat/internal/storage"
)

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// runCommand dispatches a /command typed in the input box.
func (m Model) runCommand(line string) (Model, tea.Cmd) {
	fields := strings.Fields(line)
	name := strings.TrimPrefix(fields[0], "/")
	args := fields[1:]

	var cmd tea.Cmd
	switch name {
	case "help":
		m.showHelp = !m.showHelp

	case "quit", "exit":
		return m, tea.Quit

	case "new", "clear":
		m.resetConversation()

	case "save":
		cmd = m.saveCmd()

	case "sessions":
		m.notice = m.listSessions()

	case "load":
		m, cmd = m.loadSession(args)

	case "model":
		if len(args) == 0 {
			m.notice = "model: " + m.modelName
		} else {
			m.modelName = args[0]
			m.conversation.Model = args[0]
			m.statusBar.Model = args[0]
			m.notice = "switched to model " + args[0]
		}

	case "provider":
		m = m.switchProvider(args)

	case "offline":
		m = m.toggleOffline(args)

	case "queue":
		cmd = m.drainQueueCmd()

	case "usage":
		m.notice = m.usageSummary()

	case "export":
		cmd = m.exportCmd()

	default:
		m.notice = "unknown command: /" + name
	}

	m.refreshViewport()
	return m, cmd
}

func (m Model) saveCmd() tea.Cmd {
	if m.deps.Store == nil {
		return nil
	}
	conv := m.conversation
	store := m.deps.Store
	return func() tea.Msg {
		err := store.Save(conv)
		return ConversationSavedMsg{ID: conv.ID, Err: err}
	}
}

func (m Model) listSessions() string {
	if m.deps.Store == nil {
		return "no conversation store configured"
	}
	metas, err := m.deps.Store.List()
	if err != nil {
		return "list failed: " + err.Error()
	}
	if len(metas) == 0 {
		return "no saved conversations"
	}

	var b strings.Builder
	b.WriteString("saved conversations:\n")
	for i, meta := range metas {
		fmt.Fprintf(&b, "  %d. %s (%s, %d messages)\n",
			i+1, meta.Title, meta.UpdatedAt.Format("Jan 2 15:04"), meta.MessageCount)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) loadSession(args []string) (Model, tea.Cmd) {
	if m.deps.Store == nil || len(args) == 0 {
		m.notice = "usage: /load <number>"
		return m, nil
	}
	index, err := strconv.Atoi(args[0])
	if err != nil || index < 1 {
		m.notice = "usage: /load <number>"
		return m, nil
	}

	conv, err := m.deps.Store.LoadByIndex(index - 1)
	if err != nil {
		m.err = err
		return m, nil
	}

	m.conversation = conv
	m.providerName = conv.Provider
	m.modelName = conv.Model
	m.statusBar.Provider = conv.Provider
	m.statusBar.Model = conv.Model
	m.notice = "loaded: " + conv.Title
	return m, nil
}

func (m Model) switchProvider(args []string) Model {
	if len(args) == 0 {
		m.notice = "provider: " + m.providerName +
			" (configured: " + strings.Join(m.deps.Registry.Configured(), ", ") + ")"
		return m
	}

	p, err := m.deps.Registry.Get(args[0])
	if err != nil {
		m.err = err
		return m
	}
	if !p.Configured() {
		m.err = fmt.Errorf("%w: %s", provider.ErrNotConfigured, p.Name())
		return m
	}

	m.providerName = p.Name()
	m.conversation.Provider = p.Name()
	m.statusBar.Provider = p.Name()

	// Follow the provider's default model from config.
	if pc := m.deps.Config.Provider(p.Name()); pc.Model != "" {
		m.modelName = pc.Model
		m.conversation.Model = pc.Model
		m.statusBar.Model = pc.Model
	}

	m.notice = "switched to " + p.Name() + "/" + m.modelName
	return m
}

func (m Model) toggleOffline(args []string) Model {
	if len(args) == 0 {
		if offline.IsOfflineMode() {
			m.notice = "offline mode is on"
		} else {
			m.notice = "offline mode is off"
		}
		return m
	}

	switch args[0] {
	case "on":
		offline.SetOfflineMode(true)
		m.notice = "offline mode enabled; messages will be queued"
	case "off":
		offline.SetOfflineMode(false)
		m.notice = "offline mode disabled"
	default:
		m.notice = "usage: /offline [on|off]"
	}
	return m
}

// drainQueueCmd sends queued messages through the active provider as
// blocking completions, keeping arrival order.
func (m Model) drainQueueCmd() tea.Cmd {
	if m.deps.Queue == nil {
		return nil
	}
	if offline.IsOfflineMode() {
		return func() tea.Msg {
			return NoticeMsg{Text: "still offline; /offline off first"}
		}
	}

	queue := m.deps.Queue
	registry := m.deps.Registry
	providerName := m.providerName
	req := m.buildRequest()

	return func() tea.Msg {
		p, err := registry.Get(providerName)
		if err != nil {
			return QueueDrainedMsg{Err: err}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		if !offline.Probe(ctx) {
			return NoticeMsg{Text: "no connectivity; queue kept"}
		}

		sent, err := queue.Drain(ctx, func(ctx context.Context, qm offline.QueuedMessage) error {
			turns := append(req.Turns, provider.Turn{Role: "user", Content: qm.Content})
			_, err := p.Complete(ctx, provider.Request{
				Model:       req.Model,
				Turns:       turns,
				Temperature: req.Temperature,
				MaxTokens:   req.MaxTokens,
			})
			return err
		})
		return QueueDrainedMsg{Sent: sent, Err: err}
	}
}

func (m Model) usageSummary() string {
	if m.deps.Tracker == nil {
		return "usage tracking disabled"
	}
	summary := m.deps.Tracker.Summary()
	if summary.Requests == 0 {
		return "no usage this session"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "session: %d requests, %d tokens, $%.4f\n",
		summary.Requests, summary.TotalTokens, summary.TotalCost)
	for _, mt := range summary.Models {
		fmt.Fprintf(&b, "  %s/%s: %d req, %d tok, $%.4f\n",
			mt.Provider, mt.Model, mt.Requests, mt.TotalTokens, mt.Cost)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) exportCmd() tea.Cmd {
	conv := m.conversation
	return func() tea.Msg {
		md := storage.ExportMarkdown(conv)
		path := conv.ID + ".md"
		if err := writeExport(path, md); err != nil {
			return NoticeMsg{Text: "export failed: " + err.Error()}
		}
		return NoticeMsg{Text: "exported to " + path}
	}
}

// writeExport writes an export file into the current directory.
func writeExport(path, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}
