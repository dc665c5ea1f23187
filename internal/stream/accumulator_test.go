// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"testing"

	"github.com/jeranaias/driftchat/internal/model"
)

// collectSink records every update handed to the persistence collaborator.
type collectSink struct {
	updates []MessageUpdate
	ids     []string
}

func (s *collectSink) UpdateMessage(id string, update MessageUpdate) {
	s.ids = append(s.ids, id)
	s.updates = append(s.updates, update)
}

func (s *collectSink) last() MessageUpdate {
	return s.updates[len(s.updates)-1]
}

func newTestAccumulator() (*MessageAccumulator, *collectSink) {
	sink := &collectSink{}
	return NewMessageAccumulator(model.NewAssistantDraft(), sink, nil), sink
}

// =============================================================================
// TEXT ACCUMULATION
// =============================================================================

func TestAccumulator_AppendsText(t *testing.T) {
	acc, sink := newTestAccumulator()

	acc.ApplyEvent(TextDelta{Value: "Hello"})
	acc.ApplyEvent(TextDelta{Value: " world"})

	if acc.Draft().Content != "Hello world" {
		t.Errorf("Content = %q, want %q", acc.Draft().Content, "Hello world")
	}
	if len(sink.updates) != 2 {
		t.Errorf("update count = %d, want 2 (one per event)", len(sink.updates))
	}
}

func TestAccumulator_ContentMonotonic(t *testing.T) {
	acc, sink := newTestAccumulator()

	deltas := []string{"a", "", "bc", "d"}
	for _, d := range deltas {
		acc.ApplyEvent(TextDelta{Value: d})
	}

	prev := 0
	for _, u := range sink.updates {
		if len(u.Content) < prev {
			t.Fatalf("content length shrank: %d -> %d", prev, len(u.Content))
		}
		prev = len(u.Content)
	}
}

// =============================================================================
// TOOL INVOCATIONS
// =============================================================================

func TestAccumulator_ToolCallThenResult(t *testing.T) {
	acc, _ := newTestAccumulator()

	acc.ApplyEvent(ToolCallEvent{ID: "a1", Name: "weather", Args: map[string]any{}})
	acc.ApplyEvent(ToolResultEvent{ID: "a1", Result: map[string]any{"temp": float64(72)}})

	invs := acc.Draft().ToolInvocations
	if len(invs) != 1 {
		t.Fatalf("invocation count = %d, want 1", len(invs))
	}
	inv := invs[0]
	if inv.ToolCallID != "a1" || inv.State != model.InvocationComplete {
		t.Errorf("invocation = %+v, want a1/complete", inv)
	}
	if m := inv.Result.(map[string]any); m["temp"] != float64(72) {
		t.Errorf("Result = %v, want temp=72", inv.Result)
	}
}

func TestAccumulator_ResultBeforeCallIsDropped(t *testing.T) {
	acc, _ := newTestAccumulator()

	// Out-of-order result: dropped without panic, no invocation created.
	acc.ApplyEvent(ToolResultEvent{ID: "missing", Result: map[string]any{}})

	if n := len(acc.Draft().ToolInvocations); n != 0 {
		t.Errorf("invocation count = %d, want 0", n)
	}
}

func TestAccumulator_DuplicateResultIdempotent(t *testing.T) {
	acc, _ := newTestAccumulator()

	acc.ApplyEvent(ToolCallEvent{ID: "a1", Name: "weather"})
	acc.ApplyEvent(ToolResultEvent{ID: "a1", Result: "first"})
	after1 := acc.Draft().ToolInvocations

	acc.ApplyEvent(ToolResultEvent{ID: "a1", Result: "first"})
	after2 := acc.Draft().ToolInvocations

	if len(after1) != 1 || len(after2) != 1 {
		t.Fatalf("invocation counts = %d, %d, want 1, 1", len(after1), len(after2))
	}
	if after1[0].State != after2[0].State || after1[0].Result != after2[0].Result {
		t.Errorf("duplicate result changed final state: %+v vs %+v", after1[0], after2[0])
	}
}

func TestAccumulator_DuplicateCallIdReplaces(t *testing.T) {
	acc, _ := newTestAccumulator()

	acc.ApplyEvent(ToolCallEvent{ID: "a1", Name: "weather"})
	acc.ApplyEvent(ToolCallEvent{ID: "a2", Name: "search"})
	acc.ApplyEvent(ToolCallEvent{ID: "a1", Name: "forecast"})

	invs := acc.Draft().ToolInvocations
	if len(invs) != 2 {
		t.Fatalf("invocation count = %d, want 2", len(invs))
	}
	// Later call wins but keeps the original position.
	if invs[0].ToolName != "forecast" || invs[1].ToolName != "search" {
		t.Errorf("invocations = %+v", invs)
	}
}

// =============================================================================
// USAGE CAPTURE
// =============================================================================

func TestAccumulator_FinishDoesNotTouchMessage(t *testing.T) {
	acc, sink := newTestAccumulator()
	five := 5

	acc.ApplyEvent(FinishEvent{Usage: &Usage{TotalTokens: &five}, Authoritative: true})

	if acc.Draft().ApiMetadata != nil {
		t.Error("finish event must not attach metadata; that is finalize's job")
	}
	if !acc.Finished() {
		t.Error("Finished should report true")
	}
	if sink.last().ApiMetadata != nil {
		t.Error("per-event update must not carry metadata")
	}
}

func TestAccumulator_AuthoritativeUsageWins(t *testing.T) {
	tests := []struct {
		name   string
		events []FinishEvent
		want   int
	}{
		{
			name: "e then d keeps e",
			events: []FinishEvent{
				{Usage: usageTotal(7), Authoritative: true},
				{Usage: usageTotal(99), Authoritative: false},
			},
			want: 7,
		},
		{
			name: "d then e upgrades to e",
			events: []FinishEvent{
				{Usage: usageTotal(99), Authoritative: false},
				{Usage: usageTotal(7), Authoritative: true},
			},
			want: 7,
		},
		{
			name: "d alone is accepted",
			events: []FinishEvent{
				{Usage: usageTotal(3), Authoritative: false},
			},
			want: 3,
		},
		{
			name: "empty usage does not clobber",
			events: []FinishEvent{
				{Usage: usageTotal(7), Authoritative: true},
				{Usage: nil, Authoritative: true},
			},
			want: 7,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			acc, _ := newTestAccumulator()
			for _, ev := range tc.events {
				acc.ApplyEvent(ev)
			}
			usage := acc.Usage()
			if usage == nil || usage.TotalTokens == nil || *usage.TotalTokens != tc.want {
				t.Errorf("captured usage = %+v, want totalTokens=%d", usage, tc.want)
			}
		})
	}
}

func TestAccumulator_AuthoritativeUsageReplacesWholesale(t *testing.T) {
	acc, _ := newTestAccumulator()
	prompt, completion, total := 10, 5, 7

	acc.ApplyEvent(FinishEvent{
		Usage:         &Usage{PromptTokens: &prompt, CompletionTokens: &completion},
		Authoritative: false,
	})
	acc.ApplyEvent(FinishEvent{
		Usage:         &Usage{TotalTokens: &total},
		Authoritative: true,
	})

	usage := acc.Usage()
	if usage == nil || usage.TotalTokens == nil || *usage.TotalTokens != 7 {
		t.Fatalf("captured usage = %+v, want totalTokens=7", usage)
	}
	// The authoritative record replaces the earlier one entirely; fields
	// the secondary record carried do not leak through.
	if usage.PromptTokens != nil || usage.CompletionTokens != nil {
		t.Errorf("secondary fields survived replacement: %+v", usage)
	}
}

func usageTotal(n int) *Usage {
	return &Usage{TotalTokens: &n}
}
