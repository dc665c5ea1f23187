// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	if m.spinner.Active() {
		b.WriteString(m.spinner.View())
		b.WriteString("\n")
	}

	b.WriteString(m.theme.InputContainer.Width(m.width - 2).Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(m.statusBar.Render())

	return b.String()
}

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("driftchat")
	sub := m.conversation.Title
	if sub == "" {
		sub = "new conversation"
	}
	return title + " " + m.theme.HeaderSubtitle.Render(sub)
}

// refreshViewport re-renders the transcript into the viewport, keeping
// the view pinned to the bottom while streaming.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}

	atBottom := m.viewport.AtBottom()

	var sections []string
	if m.showHelp {
		sections = append(sections, m.renderHelp())
	}
	for _, msg := range m.conversation.Messages {
		sections = append(sections, m.msgView.Render(msg))
	}
	if m.notice != "" {
		sections = append(sections, m.theme.Notice.Render(m.notice))
	}
	if m.err != nil {
		sections = append(sections, m.theme.ErrorBox.Render(
			m.theme.ErrorTitle.Render("Error")+"\n"+
				m.theme.ErrorMessage.Render(m.err.Error())))
	}

	m.viewport.SetContent(strings.Join(sections, "\n\n"))

	if atBottom || m.streaming {
		m.viewport.GotoBottom()
	}
}

// renderHelp renders the keybinding reference shown by C-h.
func (m Model) renderHelp() string {
	var rows []string
	for _, group := range m.keys.FullHelp() {
		var row []string
		for _, binding := range group {
			h := binding.Help()
			row = append(row,
				m.theme.ShortcutKey.Render(h.Key)+" "+
					m.theme.ShortcutDesc.Render(h.Desc))
		}
		rows = append(rows, strings.Join(row, "   "))
	}
	rows = append(rows, m.theme.ShortcutDesc.Render(
		"commands: /new /save /sessions /load /model /provider /offline /queue /usage /export /quit"))

	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(m.theme.Header.GetBorderTopForeground()).
		Padding(0, 1).
		Render(strings.Join(rows, "\n"))
}
