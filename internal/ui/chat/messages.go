// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/jeranaias/driftchat/internal/config"
	"github.com/jeranaias/driftchat/internal/model"
)

// =============================================================================
// STREAMING MESSAGES
// =============================================================================

// StreamStartMsg signals that a response stream has been opened.
type StreamStartMsg struct {
	MessageID string
	StartTime time.Time
}

// StreamTickMsg drives the render loop while a stream is active.
type StreamTickMsg struct {
	Time time.Time
}

// StreamCompleteMsg signals that the stream finished. Message is the
// fully assembled assistant message; on transport failure Err is set and
// Message holds whatever partial content survived.
type StreamCompleteMsg struct {
	MessageID string
	Message   *model.Message
	Err       error
}

// =============================================================================
// CONVERSATION MESSAGES
// =============================================================================

// ConversationSavedMsg confirms a save operation.
type ConversationSavedMsg struct {
	ID  string
	Err error
}

// ConversationLoadedMsg delivers a loaded conversation.
type ConversationLoadedMsg struct {
	Conversation *model.Conversation
	Err          error
}

// NoticeMsg displays a transient system notice in the transcript.
type NoticeMsg struct {
	Text string
}

// QueueDrainedMsg reports the result of draining the offline send queue.
type QueueDrainedMsg struct {
	Sent int
	Err  error
}

// ConfigReloadedMsg delivers a config freshly reloaded from disk.
type ConfigReloadedMsg struct {
	Config *config.Config
}
