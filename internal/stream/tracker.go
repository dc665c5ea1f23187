// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"log/slog"

	"github.com/jeranaias/driftchat/internal/model"
)

// =============================================================================
// TOOL CALL TRACKER
// =============================================================================

// ToolCallTracker is an ordered map from tool-call id to invocation. Order
// is call-arrival order; results patch in by id without reordering.
type ToolCallTracker struct {
	invocations []model.ToolInvocation
	byID        map[string]int // id -> index into invocations
	logger      *slog.Logger
}

// NewToolCallTracker creates an empty tracker.
func NewToolCallTracker(logger *slog.Logger) *ToolCallTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ToolCallTracker{
		byID:   make(map[string]int),
		logger: logger,
	}
}

// OnCall appends a new pending invocation. A duplicate id is a protocol
// violation; providers are not expected to reuse ids, but the tracker must
// not crash, so the later call wins and keeps the original position.
func (t *ToolCallTracker) OnCall(ev ToolCallEvent) {
	inv := model.ToolInvocation{
		ToolCallID: ev.ID,
		ToolName:   ev.Name,
		Args:       ev.Args,
		State:      model.InvocationPending,
	}

	if idx, ok := t.byID[ev.ID]; ok {
		t.logger.Warn("duplicate tool call id, replacing earlier call",
			slog.String("tool_call_id", ev.ID),
			slog.String("tool_name", ev.Name))
		t.invocations[idx] = inv
		return
	}

	t.byID[ev.ID] = len(t.invocations)
	t.invocations = append(t.invocations, inv)
}

// OnResult patches a result into the invocation with the matching id and
// marks it complete. A result for an unknown id is dropped, not fatal:
// this absorbs out-of-order delivery and duplicate stream replay. Applying
// the same result twice is idempotent - last write wins, state stays
// complete. Returns false when the result was dropped.
func (t *ToolCallTracker) OnResult(ev ToolResultEvent) bool {
	idx, ok := t.byID[ev.ID]
	if !ok {
		t.logger.Warn("tool result for unknown call id, dropping",
			slog.String("tool_call_id", ev.ID))
		return false
	}

	t.invocations[idx].Result = ev.Result
	t.invocations[idx].State = model.InvocationComplete
	return true
}

// Snapshot returns a copy of the invocations in call order.
func (t *ToolCallTracker) Snapshot() []model.ToolInvocation {
	if len(t.invocations) == 0 {
		return nil
	}
	out := make([]model.ToolInvocation, len(t.invocations))
	copy(out, t.invocations)
	return out
}

// Len returns the number of tracked invocations.
func (t *ToolCallTracker) Len() int {
	return len(t.invocations)
}
