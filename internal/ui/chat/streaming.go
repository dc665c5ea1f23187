// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/driftchat/internal/model"
	"github.com/jeranaias/driftchat/internal/provider"
	"github.com/jeranaias/driftchat/internal/stream"
)

// =============================================================================
// STREAMING BUFFER
// =============================================================================

// StreamingBuffer hands message snapshots from the stream goroutine to
// the render loop. The stream side stores the latest snapshot on every
// decoded event; the render side flushes it at most once per frame.
//
// Flushing is gated by update count or elapsed time, which prevents
// excessive re-rendering (and flicker) on fast streams while keeping
// slow streams visually live.
//
// Thread-safety: the stream driver writes from its own goroutine while
// the Bubble Tea loop reads, so all operations take the mutex.
type StreamingBuffer struct {
	mu        sync.Mutex
	latest    stream.MessageUpdate
	dirty     bool
	updates   int
	lastFlush time.Time

	batchSize   int           // updates per flush (default: 15)
	minInterval time.Duration // min time between flushes (~33ms for 30fps)
}

// NewStreamingBuffer creates a buffer with default settings: flush after
// 15 updates or 33ms, whichever comes first.
func NewStreamingBuffer() *StreamingBuffer {
	return NewStreamingBufferWithConfig(15, 30)
}

// NewStreamingBufferWithConfig creates a buffer with a custom batch size
// and frame rate cap.
func NewStreamingBufferWithConfig(batchSize, maxFPS int) *StreamingBuffer {
	if batchSize <= 0 {
		batchSize = 15
	}
	if maxFPS <= 0 || maxFPS > 60 {
		maxFPS = 30
	}
	return &StreamingBuffer{
		batchSize:   batchSize,
		minInterval: time.Duration(1000/maxFPS) * time.Millisecond,
		lastFlush:   time.Now(),
	}
}

// Store records the latest snapshot. Called from the stream goroutine.
// Snapshots are cumulative, so only the most recent one matters.
func (sb *StreamingBuffer) Store(update stream.MessageUpdate) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	sb.latest = update
	sb.dirty = true
	sb.updates++
}

// Flush returns the latest snapshot when a flush is due. Called from the
// Bubble Tea loop on each tick.
func (sb *StreamingBuffer) Flush() (stream.MessageUpdate, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if !sb.dirty || !sb.shouldFlushLocked() {
		return stream.MessageUpdate{}, false
	}
	return sb.takeLocked(), true
}

// ForceFlush returns any pending snapshot regardless of thresholds. Use
// at stream completion so the final tokens always render.
func (sb *StreamingBuffer) ForceFlush() (stream.MessageUpdate, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if !sb.dirty {
		return stream.MessageUpdate{}, false
	}
	return sb.takeLocked(), true
}

func (sb *StreamingBuffer) takeLocked() stream.MessageUpdate {
	update := sb.latest
	sb.dirty = false
	sb.updates = 0
	sb.lastFlush = time.Now()
	return update
}

func (sb *StreamingBuffer) shouldFlushLocked() bool {
	if sb.updates >= sb.batchSize {
		return true
	}
	return time.Since(sb.lastFlush) >= sb.minInterval
}

// Reset clears the buffer without flushing. Use when cancelling a stream
// or starting a new message.
func (sb *StreamingBuffer) Reset() {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	sb.latest = stream.MessageUpdate{}
	sb.dirty = false
	sb.updates = 0
	sb.lastFlush = time.Now()
}

// PendingUpdates returns the number of stored updates since the last
// flush. Useful for tests and metrics.
func (sb *StreamingBuffer) PendingUpdates() int {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.updates
}

// =============================================================================
// STREAM COMMANDS
// =============================================================================

// streamTickCmd schedules the next render frame at ~30fps.
func streamTickCmd() tea.Cmd {
	return tea.Tick(33*time.Millisecond, func(t time.Time) tea.Msg {
		return StreamTickMsg{Time: t}
	})
}

// startStreamCmd opens the provider stream and consumes it to completion.
// Snapshots flow into buf; the returned message carries the assembled
// assistant message (partial on failure). The draft becomes the exclusive
// property of the stream goroutine, so callers must pass a copy that no
// other goroutine reads or writes.
func startStreamCmd(ctx context.Context, p provider.Provider, req provider.Request, draft *model.Message, buf *StreamingBuffer, logger *slog.Logger) tea.Cmd {
	return func() tea.Msg {
		reader, err := p.Stream(ctx, req)
		if err != nil {
			return StreamCompleteMsg{MessageID: draft.ID, Message: draft.Clone(), Err: err}
		}

		driver := stream.NewStreamDriver(reader, stream.DriverConfig{
			Provider: p.Name(),
			Model:    req.Model,
			Draft:    draft,
			Sink: stream.SinkFunc(func(id string, update stream.MessageUpdate) {
				buf.Store(update)
			}),
			Logger: logger,
		})

		err = driver.Run(ctx)
		return StreamCompleteMsg{
			MessageID: draft.ID,
			Message:   driver.Message().Clone(),
			Err:       err,
		}
	}
}
