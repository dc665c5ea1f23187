// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/driftchat/internal/util"
)

// QueuedMessage is one outgoing message captured while offline.
type QueuedMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Content        string    `json:"content"`
	QueuedAt       time.Time `json:"queued_at"`
}

// SendFunc delivers one queued message once connectivity returns.
type SendFunc func(ctx context.Context, msg QueuedMessage) error

// SendQueue is a persisted FIFO of messages written while offline. The
// queue file survives restarts; draining preserves enqueue order and stops
// at the first delivery failure so nothing is dropped or reordered.
type SendQueue struct {
	mu   sync.Mutex
	path string
	msgs []QueuedMessage
}

// OpenSendQueue loads (or creates) the queue persisted at path.
func OpenSendQueue(path string) (*SendQueue, error) {
	q := &SendQueue{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return q, nil
		}
		return nil, fmt.Errorf("failed to read send queue: %w", err)
	}
	if err := json.Unmarshal(data, &q.msgs); err != nil {
		return nil, fmt.Errorf("failed to parse send queue: %w", err)
	}
	return q, nil
}

// Enqueue appends a message and persists the queue.
func (q *SendQueue) Enqueue(conversationID, content string) (QueuedMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	msg := QueuedMessage{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Content:        content,
		QueuedAt:       time.Now(),
	}
	q.msgs = append(q.msgs, msg)
	if err := q.persist(); err != nil {
		q.msgs = q.msgs[:len(q.msgs)-1]
		return QueuedMessage{}, err
	}
	return msg, nil
}

// Drain delivers queued messages in FIFO order. Each successful delivery
// is persisted immediately, so a crash mid-drain resumes where it left
// off. Returns the number delivered; on failure the failing message stays
// at the head.
func (q *SendQueue) Drain(ctx context.Context, send SendFunc) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	sent := 0
	for len(q.msgs) > 0 {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		head := q.msgs[0]
		if err := send(ctx, head); err != nil {
			return sent, fmt.Errorf("failed to deliver queued message %s: %w", head.ID, err)
		}

		q.msgs = q.msgs[1:]
		if err := q.persist(); err != nil {
			return sent + 1, err
		}
		sent++
	}
	return sent, nil
}

// Pending returns a snapshot of the queued messages in order.
func (q *SendQueue) Pending() []QueuedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]QueuedMessage, len(q.msgs))
	copy(out, q.msgs)
	return out
}

// Len returns the number of queued messages.
func (q *SendQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.msgs)
}

// Clear drops all queued messages.
func (q *SendQueue) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = nil
	return q.persist()
}

// persist writes the queue atomically. Caller holds the lock.
func (q *SendQueue) persist() error {
	if err := os.MkdirAll(filepath.Dir(q.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(q.msgs, "", "  ")
	if err != nil {
		return err
	}
	return util.AtomicWriteFile(q.path, data, 0644)
}
