// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/driftchat/internal/util"
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds an ordered message history for one chat.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Messages []*Message `json:"messages"`

	// Cumulative accounting across all finalized assistant messages
	TotalPromptTokens     int     `json:"total_prompt_tokens,omitempty"`
	TotalCompletionTokens int     `json:"total_completion_tokens,omitempty"`
	TotalCostUSD          float64 `json:"total_cost_usd,omitempty"`
}

// NewConversation creates an empty conversation for the given provider/model.
func NewConversation(provider, model string) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        uuid.NewString(),
		Provider:  provider,
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Append adds a message to the end of the conversation.
func (c *Conversation) Append(msg *Message) {
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now()
}

// Find returns the message with the given id, or nil.
func (c *Conversation) Find(id string) *Message {
	for _, m := range c.Messages {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// UpdateMessage applies a partial update to the message with the given id.
// Safe to call repeatedly with monotonically growing content; this is the
// persistence-side entry point the streaming core writes through.
func (c *Conversation) UpdateMessage(id string, apply func(*Message)) bool {
	msg := c.Find(id)
	if msg == nil {
		return false
	}
	apply(msg)
	c.UpdatedAt = time.Now()
	return true
}

// RecordUsage folds a finalized response's accounting into the totals.
func (c *Conversation) RecordUsage(meta *ApiUsageMetadata) {
	if meta == nil {
		return
	}
	if meta.PromptTokens != nil {
		c.TotalPromptTokens += *meta.PromptTokens
	}
	if meta.CompletionTokens != nil {
		c.TotalCompletionTokens += *meta.CompletionTokens
	}
	if meta.Cost != nil {
		c.TotalCostUSD += meta.Cost.TotalCost
	}
}

// Preview returns the first user message truncated for list display.
func (c *Conversation) Preview() string {
	for _, m := range c.Messages {
		if m.Role == RoleUser && m.Content != "" {
			return util.TruncateRunes(util.StripNewlines(m.Content), 80)
		}
	}
	return ""
}

// DeriveTitle sets Title from the first user message when unset.
func (c *Conversation) DeriveTitle() {
	if c.Title != "" {
		return
	}
	for _, m := range c.Messages {
		if m.Role == RoleUser && m.Content != "" {
			c.Title = util.TruncateRunes(util.StripNewlines(m.Content), 50)
			return
		}
	}
	c.Title = "New conversation"
}

// MessageCount returns the number of messages in the conversation.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}
