// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/driftchat/internal/pricing"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	case RoleTool:
		return "Tool"
	default:
		return string(r)
	}
}

// =============================================================================
// TOOL INVOCATIONS
// =============================================================================

// InvocationState tracks whether a tool call has received its result.
type InvocationState string

const (
	// InvocationPending means the call was announced but no result has
	// arrived yet.
	InvocationPending InvocationState = "pending"
	// InvocationComplete means the result has been paired with the call.
	InvocationComplete InvocationState = "complete"
)

// ToolInvocation records a single tool call and its eventual result within
// one assistant turn. ToolCallID is unique within a message.
type ToolInvocation struct {
	ToolCallID string          `json:"tool_call_id"`
	ToolName   string          `json:"tool_name"`
	Args       map[string]any  `json:"args,omitempty"`
	Result     any             `json:"result,omitempty"`
	State      InvocationState `json:"state"`
}

// IsComplete returns true once a result has been attached.
func (ti *ToolInvocation) IsComplete() bool {
	return ti.State == InvocationComplete
}

// =============================================================================
// USAGE METADATA
// =============================================================================

// ApiUsageMetadata carries provider accounting for one assistant response.
//
// Lifecycle: created with provider/model/timestamp at stream start; token
// fields and cost are populated exactly once, after the reader reports
// completion. Absent token counts stay nil - a zero would corrupt cost
// computation downstream.
type ApiUsageMetadata struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`

	PromptTokens     *int `json:"prompt_tokens,omitempty"`
	CompletionTokens *int `json:"completion_tokens,omitempty"`
	TotalTokens      *int `json:"total_tokens,omitempty"`

	Cost *pricing.Cost `json:"cost,omitempty"`

	ResponseTime time.Duration `json:"response_time_ns"`
	Timestamp    time.Time     `json:"timestamp"`
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
//
// For an assistant message under an active stream, Content is append-only
// and ToolInvocations is ordered by call arrival. The StreamDriver owns
// the draft exclusively; everything handed outward is a Clone.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Content
	Content         string           `json:"content"`
	ToolInvocations []ToolInvocation `json:"tool_invocations,omitempty"`

	// Streaming state (not persisted)
	IsStreaming bool `json:"-"`

	// Usage accounting, attached at finalize time only
	ApiMetadata *ApiUsageMetadata `json:"api_metadata,omitempty"`

	// Set on synthetic assistant messages appended after transport failure
	IsError bool `json:"is_error,omitempty"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) *Message {
	return NewMessage(RoleUser, content)
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) *Message {
	return NewMessage(RoleSystem, content)
}

// NewAssistantDraft creates an empty assistant message in streaming state.
func NewAssistantDraft() *Message {
	return &Message{
		ID:          uuid.NewString(),
		Role:        RoleAssistant,
		Timestamp:   time.Now(),
		IsStreaming: true,
	}
}

// NewErrorMessage creates the synthetic assistant message appended when a
// stream fails fatally. Partial content already persisted stays in place;
// this message only carries the user-visible notice.
func NewErrorMessage(notice string) *Message {
	msg := NewMessage(RoleAssistant, notice)
	msg.IsError = true
	return msg
}

// HasToolInvocations returns true if the message carries tool invocations.
func (m *Message) HasToolInvocations() bool {
	return len(m.ToolInvocations) > 0
}

// Clone returns a snapshot copy safe to hand to collaborators. The
// ToolInvocations slice is copied; Args/Result values are shared but
// treated as immutable once decoded.
func (m *Message) Clone() *Message {
	dup := *m
	if m.ToolInvocations != nil {
		dup.ToolInvocations = make([]ToolInvocation, len(m.ToolInvocations))
		copy(dup.ToolInvocations, m.ToolInvocations)
	}
	if m.ApiMetadata != nil {
		meta := *m.ApiMetadata
		dup.ApiMetadata = &meta
	}
	return &dup
}
