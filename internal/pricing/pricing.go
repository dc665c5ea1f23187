// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package pricing provides token cost calculation for cloud LLM providers.
package pricing

import "strings"

// =============================================================================
// TOKEN ESTIMATION
// =============================================================================

// EstimateTokens provides approximate token counting for cost budgeting.
// GPT-style tokenizers average ~4 chars per token; a blend of word and
// character estimates tracks real counts more closely than either alone.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	chars := len(text)
	return (words + chars/4) / 2
}

// =============================================================================
// PRICING TABLES
// =============================================================================

// ModelPricing holds input and output pricing per 1K tokens in USD.
type ModelPricing struct {
	Input  float64 // Cost per 1K input tokens in dollars
	Output float64 // Cost per 1K output tokens in dollars
}

// modelPricing maps "provider/model" to pricing.
// Rates as published by each provider, 2025.
var modelPricing = map[string]ModelPricing{
	// Groq
	"groq/llama-3.1-8b-instant":     {0.00005, 0.00008},
	"groq/llama-3.3-70b-versatile":  {0.00059, 0.00079},
	"groq/mixtral-8x7b-32768":       {0.00024, 0.00024},
	"groq/gemma2-9b-it":             {0.00020, 0.00020},

	// OpenAI
	"openai/gpt-4o":        {0.0025, 0.010},
	"openai/gpt-4o-mini":   {0.00015, 0.0006},
	"openai/gpt-4-turbo":   {0.010, 0.030},
	"openai/gpt-3.5-turbo": {0.0005, 0.0015},

	// Anthropic
	"anthropic/claude-3-5-sonnet-latest": {0.003, 0.015},
	"anthropic/claude-3-5-haiku-latest":  {0.0008, 0.004},
	"anthropic/claude-3-opus-latest":     {0.015, 0.075},
}

// Lookup returns the pricing for a provider/model combination.
// Returns nil if the combination is not in the table.
func Lookup(provider, model string) *ModelPricing {
	key := strings.ToLower(provider) + "/" + strings.ToLower(model)
	if p, ok := modelPricing[key]; ok {
		return &p
	}
	return nil
}

// =============================================================================
// COST CALCULATION
// =============================================================================

// Cost is the computed dollar cost of a single response.
type Cost struct {
	InputCost  float64 `json:"input_cost"`  // USD for prompt tokens
	OutputCost float64 `json:"output_cost"` // USD for completion tokens
	TotalCost  float64 `json:"total_cost"`  // InputCost + OutputCost
	Currency   string  `json:"currency"`    // Always "USD"
}

// Calculate computes the cost for a completed response.
// A provider/model combination absent from the table yields (nil, false),
// never an error: cost is simply omitted from the message metadata.
func Calculate(provider, model string, promptTokens, completionTokens int) (*Cost, bool) {
	p := Lookup(provider, model)
	if p == nil {
		return nil, false
	}

	inputCost := float64(promptTokens) * p.Input / 1000
	outputCost := float64(completionTokens) * p.Output / 1000

	return &Cost{
		InputCost:  inputCost,
		OutputCost: outputCost,
		TotalCost:  inputCost + outputCost,
		Currency:   "USD",
	}, true
}

// EstimateCost calculates the estimated cost of an unsent prompt, assuming
// a 3:1 output:input token ratio for typical queries.
func EstimateCost(provider, model string, inputTokens int) float64 {
	p := Lookup(provider, model)
	if p == nil {
		return 0
	}
	outputTokens := inputTokens * 3
	return float64(inputTokens)*p.Input/1000 + float64(outputTokens)*p.Output/1000
}

// KnownModels returns the provider/model keys present in the pricing table.
func KnownModels() []string {
	keys := make([]string, 0, len(modelPricing))
	for k := range modelPricing {
		keys = append(keys, k)
	}
	return keys
}
