// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package usage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jeranaias/driftchat/internal/model"
	"github.com/jeranaias/driftchat/internal/pricing"
)

func metaFor(provider, modelID string, prompt, completion int, cost float64) *model.ApiUsageMetadata {
	total := prompt + completion
	meta := &model.ApiUsageMetadata{
		Provider:         provider,
		Model:            modelID,
		PromptTokens:     &prompt,
		CompletionTokens: &completion,
		TotalTokens:      &total,
		ResponseTime:     250 * time.Millisecond,
		Timestamp:        time.Now(),
	}
	if cost > 0 {
		meta.Cost = &pricing.Cost{TotalCost: cost, Currency: "USD"}
	}
	return meta
}

func TestTracker_Aggregates(t *testing.T) {
	tr := NewTracker(nil)

	if err := tr.Record(metaFor("groq", "llama-3.1-8b-instant", 100, 50, 0.01)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := tr.Record(metaFor("groq", "llama-3.1-8b-instant", 200, 100, 0.02)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := tr.Record(metaFor("openai", "gpt-4o", 10, 5, 0.5)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	sum := tr.Summary()
	if sum.Requests != 3 {
		t.Errorf("Requests = %d, want 3", sum.Requests)
	}
	if sum.TotalTokens != 465 {
		t.Errorf("TotalTokens = %d, want 465", sum.TotalTokens)
	}
	if len(sum.Models) != 2 {
		t.Fatalf("model rows = %d, want 2", len(sum.Models))
	}
	// Sorted by descending cost: gpt-4o first.
	if sum.Models[0].Model != "gpt-4o" {
		t.Errorf("first model = %q, want costliest first", sum.Models[0].Model)
	}
	if sum.Models[1].Requests != 2 || sum.Models[1].TotalTokens != 450 {
		t.Errorf("llama totals = %+v", sum.Models[1])
	}
}

func TestTracker_PartialMetadata(t *testing.T) {
	tr := NewTracker(nil)

	// Errored stream: metadata with no tokens and no cost.
	meta := &model.ApiUsageMetadata{Provider: "groq", Model: "m", Timestamp: time.Now()}
	if err := tr.Record(meta); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := tr.Record(nil); err != nil {
		t.Fatalf("nil metadata should be a no-op: %v", err)
	}

	sum := tr.Summary()
	if sum.Requests != 1 || sum.TotalTokens != 0 || sum.TotalCost != 0 {
		t.Errorf("summary = %+v, want one request with zero totals", sum)
	}
}

func TestTracker_Reset(t *testing.T) {
	tr := NewTracker(nil)
	tr.Record(metaFor("groq", "m", 10, 5, 0.01))
	tr.Reset()

	if sum := tr.Summary(); sum.Requests != 0 || len(sum.Models) != 0 {
		t.Errorf("summary after reset = %+v", sum)
	}
}

func TestHistory_RecordAndReport(t *testing.T) {
	h, err := OpenHistory(filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatalf("OpenHistory failed: %v", err)
	}
	defer h.Close()

	if err := h.Record(metaFor("groq", "llama-3.1-8b-instant", 100, 50, 0.01)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := h.Record(metaFor("openai", "gpt-4o", 10, 5, 0.5)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	report, err := h.ReportSince(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("ReportSince failed: %v", err)
	}
	if report.Requests != 2 {
		t.Errorf("Requests = %d, want 2", report.Requests)
	}
	if report.TotalTokens != 165 {
		t.Errorf("TotalTokens = %d, want 165", report.TotalTokens)
	}
	if len(report.Models) != 2 || report.Models[0].Model != "gpt-4o" {
		t.Errorf("Models = %+v, want gpt-4o first by cost", report.Models)
	}
	if len(report.Daily) != 1 {
		t.Errorf("Daily buckets = %d, want 1", len(report.Daily))
	}
}

func TestHistory_NullColumnsForPartialUsage(t *testing.T) {
	h, err := OpenHistory(filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatalf("OpenHistory failed: %v", err)
	}
	defer h.Close()

	// Unpriced model: tokens present, cost absent.
	prompt := 5
	meta := &model.ApiUsageMetadata{
		Provider:     "groq",
		Model:        "experimental",
		PromptTokens: &prompt,
		Timestamp:    time.Now(),
	}
	if err := h.Record(meta); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	report, err := h.ReportSince(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("ReportSince failed: %v", err)
	}
	if report.Requests != 1 || report.TotalCost != 0 {
		t.Errorf("report = %+v", report)
	}
	if report.Models[0].PromptTokens != 5 || report.Models[0].CompletionTokens != 0 {
		t.Errorf("model totals = %+v", report.Models[0])
	}
}

func TestHistory_ReportExcludesOlderRecords(t *testing.T) {
	h, err := OpenHistory(filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatalf("OpenHistory failed: %v", err)
	}
	defer h.Close()

	old := metaFor("groq", "m", 1, 1, 0.001)
	old.Timestamp = time.Now().Add(-48 * time.Hour)
	h.Record(old)
	h.Record(metaFor("groq", "m", 2, 2, 0.002))

	report, err := h.ReportSince(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("ReportSince failed: %v", err)
	}
	if report.Requests != 1 {
		t.Errorf("Requests = %d, want only the recent record", report.Requests)
	}
}

func TestHistory_Prune(t *testing.T) {
	h, err := OpenHistory(filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatalf("OpenHistory failed: %v", err)
	}
	defer h.Close()

	old := metaFor("groq", "m", 1, 1, 0.001)
	old.Timestamp = time.Now().Add(-30 * 24 * time.Hour)
	h.Record(old)
	h.Record(metaFor("groq", "m", 2, 2, 0.002))

	pruned, err := h.Prune(time.Now().Add(-7 * 24 * time.Hour))
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if pruned != 1 {
		t.Errorf("pruned = %d, want 1", pruned)
	}
}

func TestTracker_PersistsThroughHistory(t *testing.T) {
	h, err := OpenHistory(filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatalf("OpenHistory failed: %v", err)
	}
	defer h.Close()

	tr := NewTracker(h)
	if err := tr.Record(metaFor("groq", "m", 10, 5, 0.01)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	report, err := h.ReportSince(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("ReportSince failed: %v", err)
	}
	if report.Requests != 1 {
		t.Errorf("history Requests = %d, want the tracked record persisted", report.Requests)
	}
}
