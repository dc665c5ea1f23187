// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"sync"
	"time"

	"github.com/jeranaias/driftchat/internal/model"
	"github.com/jeranaias/driftchat/internal/pricing"
)

// =============================================================================
// COST CALCULATOR
// =============================================================================

// CostFunc is the pricing collaborator. A provider/model combination
// absent from the pricing table yields (nil, false), never an error.
type CostFunc func(provider, model string, promptTokens, completionTokens int) (*pricing.Cost, bool)

// =============================================================================
// USAGE FINALIZER
// =============================================================================

// UsageFinalizer commits usage and cost metadata exactly once per stream,
// after the reader reports completion - not per finish event, since usage
// is only authoritative once the provider has flushed everything. It also
// runs on the error path, finalizing with whatever usage was captured.
type UsageFinalizer struct {
	provider  string
	model     string
	startTime time.Time
	calculate CostFunc

	once sync.Once
}

// NewUsageFinalizer creates a finalizer for one stream. A nil calculate
// falls back to the built-in pricing table.
func NewUsageFinalizer(provider, model string, calculate CostFunc) *UsageFinalizer {
	if calculate == nil {
		calculate = pricing.Calculate
	}
	return &UsageFinalizer{
		provider:  provider,
		model:     model,
		startTime: time.Now(),
		calculate: calculate,
	}
}

// Finalize builds the response metadata from the captured usage. The first
// call wins; subsequent calls return (nil, false) so the caller emits the
// final metadata-bearing update exactly once per stream.
func (f *UsageFinalizer) Finalize(usage *Usage) (*model.ApiUsageMetadata, bool) {
	var meta *model.ApiUsageMetadata

	f.once.Do(func() {
		meta = &model.ApiUsageMetadata{
			Provider:     f.provider,
			Model:        f.model,
			ResponseTime: time.Since(f.startTime),
			Timestamp:    f.startTime,
		}

		if usage.Empty() {
			// No usage observed: provider/model/timing only. Cost is
			// omitted, not zero.
			return
		}

		meta.PromptTokens = usage.PromptTokens
		meta.CompletionTokens = usage.CompletionTokens
		meta.TotalTokens = usage.TotalTokens

		// Derive the total when the provider reports only the parts.
		if meta.TotalTokens == nil && usage.PromptTokens != nil && usage.CompletionTokens != nil {
			total := *usage.PromptTokens + *usage.CompletionTokens
			meta.TotalTokens = &total
		}

		// Cost needs both component counts; a partial usage record keeps
		// its tokens but omits cost rather than pricing phantom zeros.
		if usage.PromptTokens != nil && usage.CompletionTokens != nil {
			if cost, ok := f.calculate(f.provider, f.model, *usage.PromptTokens, *usage.CompletionTokens); ok {
				meta.Cost = cost
			}
		}
	})

	if meta == nil {
		return nil, false
	}
	return meta, true
}
