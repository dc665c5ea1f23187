// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

// =============================================================================
// STREAM EVENTS
// =============================================================================

// StreamEvent is one semantically decoded unit extracted from a provider
// response line. Exactly one concrete event type is produced per
// successfully decoded line.
type StreamEvent interface {
	isStreamEvent()
}

// TextDelta is an append-only fragment of assistant text.
type TextDelta struct {
	Value string
}

// ToolCallEvent announces a tool invocation requested by the model.
type ToolCallEvent struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolResultEvent carries the result for a previously announced tool call.
type ToolResultEvent struct {
	ID     string
	Result any
}

// FinishEvent terminates the logical response and may carry token usage.
//
// Authoritative distinguishes the primary finish record (typed "finish",
// legacy "e") from the secondary metadata record (legacy "d"). When both
// carry usage, the authoritative one wins regardless of arrival order.
type FinishEvent struct {
	Usage         *Usage
	Authoritative bool
}

func (TextDelta) isStreamEvent()       {}
func (ToolCallEvent) isStreamEvent()   {}
func (ToolResultEvent) isStreamEvent() {}
func (FinishEvent) isStreamEvent()     {}

// =============================================================================
// USAGE
// =============================================================================

// Usage holds token counts reported by the provider. Any present subset is
// valid; absent fields stay nil rather than defaulting to zero, since a
// phantom zero would corrupt cost computation.
type Usage struct {
	PromptTokens     *int `json:"promptTokens,omitempty"`
	CompletionTokens *int `json:"completionTokens,omitempty"`
	TotalTokens      *int `json:"totalTokens,omitempty"`
}

// Empty returns true when no token count is present at all.
func (u *Usage) Empty() bool {
	return u == nil || (u.PromptTokens == nil && u.CompletionTokens == nil && u.TotalTokens == nil)
}
