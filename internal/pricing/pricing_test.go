// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pricing

import (
	"math"
	"testing"
)

func TestCalculate_KnownModel(t *testing.T) {
	cost, ok := Calculate("openai", "gpt-4o", 1000, 500)
	if !ok {
		t.Fatal("Calculate returned ok=false for known model")
	}

	// 1000 input tokens at $0.0025/1K = $0.0025
	// 500 output tokens at $0.010/1K = $0.005
	if math.Abs(cost.InputCost-0.0025) > 1e-9 {
		t.Errorf("InputCost = %v, want 0.0025", cost.InputCost)
	}
	if math.Abs(cost.OutputCost-0.005) > 1e-9 {
		t.Errorf("OutputCost = %v, want 0.005", cost.OutputCost)
	}
	if math.Abs(cost.TotalCost-0.0075) > 1e-9 {
		t.Errorf("TotalCost = %v, want 0.0075", cost.TotalCost)
	}
	if cost.Currency != "USD" {
		t.Errorf("Currency = %q, want USD", cost.Currency)
	}
}

func TestCalculate_UnknownModel(t *testing.T) {
	cost, ok := Calculate("openai", "gpt-99", 1000, 500)
	if ok || cost != nil {
		t.Errorf("Calculate for unknown model = (%v, %v), want (nil, false)", cost, ok)
	}
}

func TestCalculate_CaseInsensitive(t *testing.T) {
	_, ok := Calculate("Anthropic", "Claude-3-5-Sonnet-Latest", 10, 10)
	if !ok {
		t.Error("Calculate should match provider/model case-insensitively")
	}
}

func TestCalculate_ZeroTokens(t *testing.T) {
	cost, ok := Calculate("groq", "llama-3.1-8b-instant", 0, 0)
	if !ok {
		t.Fatal("Calculate returned ok=false")
	}
	if cost.TotalCost != 0 {
		t.Errorf("TotalCost = %v, want 0", cost.TotalCost)
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		min  int
		max  int
	}{
		{"empty", "", 0, 0},
		{"short phrase", "hello world", 2, 5},
		{"longer text", "The quick brown fox jumps over the lazy dog", 8, 12},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := EstimateTokens(tc.text)
			if got < tc.min || got > tc.max {
				t.Errorf("EstimateTokens(%q) = %d, want in [%d, %d]", tc.text, got, tc.min, tc.max)
			}
		})
	}
}

func TestEstimateCost_UnknownModelIsZero(t *testing.T) {
	if got := EstimateCost("nope", "nothing", 1000); got != 0 {
		t.Errorf("EstimateCost = %v, want 0", got)
	}
}
