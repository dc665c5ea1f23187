// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package usage

import (
	"sort"
	"sync"
	"time"

	"github.com/jeranaias/driftchat/internal/model"
)

// =============================================================================
// SESSION TRACKER
// =============================================================================

// ModelTotals aggregates spend for one provider/model pair.
type ModelTotals struct {
	Provider         string  `json:"provider"`
	Model            string  `json:"model"`
	Requests         int     `json:"requests"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Cost             float64 `json:"cost"` // In dollars; only priced responses contribute.
}

// Summary is a snapshot of the session's aggregate usage.
type Summary struct {
	StartTime   time.Time     `json:"start_time"`
	Requests    int           `json:"requests"`
	TotalTokens int           `json:"total_tokens"`
	TotalCost   float64       `json:"total_cost"`
	Models      []ModelTotals `json:"models"`
}

// Tracker aggregates usage for the current session.
type Tracker struct {
	mu        sync.RWMutex
	startTime time.Time
	totals    map[string]*ModelTotals // keyed provider/model
	history   *History                // optional persistent store
}

// NewTracker creates a session tracker. history may be nil; records are
// then kept in memory only.
func NewTracker(history *History) *Tracker {
	return &Tracker{
		startTime: time.Now(),
		totals:    make(map[string]*ModelTotals),
		history:   history,
	}
}

// Record folds one response's metadata into the session totals and, when
// a history store is attached, persists the record. Metadata without
// token counts still counts the request.
func (t *Tracker) Record(meta *model.ApiUsageMetadata) error {
	if meta == nil {
		return nil
	}

	t.mu.Lock()
	key := meta.Provider + "/" + meta.Model
	totals := t.totals[key]
	if totals == nil {
		totals = &ModelTotals{Provider: meta.Provider, Model: meta.Model}
		t.totals[key] = totals
	}

	totals.Requests++
	if meta.PromptTokens != nil {
		totals.PromptTokens += *meta.PromptTokens
	}
	if meta.CompletionTokens != nil {
		totals.CompletionTokens += *meta.CompletionTokens
	}
	if meta.TotalTokens != nil {
		totals.TotalTokens += *meta.TotalTokens
	}
	if meta.Cost != nil {
		totals.Cost += meta.Cost.TotalCost
	}
	t.mu.Unlock()

	if t.history != nil {
		return t.history.Record(meta)
	}
	return nil
}

// Summary returns a snapshot of the session's aggregate usage, models
// sorted by descending cost.
func (t *Tracker) Summary() Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	sum := Summary{StartTime: t.startTime}
	for _, totals := range t.totals {
		sum.Requests += totals.Requests
		sum.TotalTokens += totals.TotalTokens
		sum.TotalCost += totals.Cost
		sum.Models = append(sum.Models, *totals)
	}
	sort.Slice(sum.Models, func(i, j int) bool {
		if sum.Models[i].Cost != sum.Models[j].Cost {
			return sum.Models[i].Cost > sum.Models[j].Cost
		}
		return sum.Models[i].Model < sum.Models[j].Model
	})
	return sum
}

// Reset clears the session totals and restarts the session clock.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totals = make(map[string]*ModelTotals)
	t.startTime = time.Now()
}
