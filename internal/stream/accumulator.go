// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"log/slog"
	"strings"

	"github.com/jeranaias/driftchat/internal/model"
)

// =============================================================================
// MESSAGE SINK
// =============================================================================

// MessageUpdate is the partial-message payload handed to the persistence
// collaborator. Content and ToolInvocations are set on every update;
// ApiMetadata is non-nil only on the single final update.
type MessageUpdate struct {
	Content         string
	ToolInvocations []model.ToolInvocation
	ApiMetadata     *model.ApiUsageMetadata
}

// MessageSink receives incremental updates for a streaming message. It is
// called once per decoded event and once more at finalize, and must be
// safe to call repeatedly with monotonically growing content. The sink
// receives snapshots, never the live draft.
type MessageSink interface {
	UpdateMessage(id string, update MessageUpdate)
}

// SinkFunc adapts a function to the MessageSink interface.
type SinkFunc func(id string, update MessageUpdate)

// UpdateMessage implements MessageSink.
func (f SinkFunc) UpdateMessage(id string, update MessageUpdate) {
	f(id, update)
}

// =============================================================================
// MESSAGE ACCUMULATOR
// =============================================================================

// MessageAccumulator owns the mutable assistant draft during one stream and
// applies decoded events to it. After every applied event it emits a
// snapshot update to the sink - per decoded line, not per network chunk,
// which bounds update frequency without any extra batching in the core.
type MessageAccumulator struct {
	draft   *model.Message
	content strings.Builder
	tracker *ToolCallTracker
	sink    MessageSink
	logger  *slog.Logger

	// usage captured from finish events; committed only at finalize
	usage              *Usage
	usageAuthoritative bool
	finished           bool
}

// NewMessageAccumulator wires an accumulator around an assistant draft.
func NewMessageAccumulator(draft *model.Message, sink MessageSink, logger *slog.Logger) *MessageAccumulator {
	if logger == nil {
		logger = slog.Default()
	}
	acc := &MessageAccumulator{
		draft:   draft,
		tracker: NewToolCallTracker(logger),
		sink:    sink,
		logger:  logger,
	}
	acc.content.WriteString(draft.Content)
	return acc
}

// ApplyEvent folds one decoded event into the draft and emits an update.
// Idempotence and ordering guarantees follow from the event semantics:
// text is append-only, tool results are last-write-wins by id, and finish
// usage is recorded locally without touching the message until finalize.
func (a *MessageAccumulator) ApplyEvent(ev StreamEvent) {
	switch e := ev.(type) {
	case TextDelta:
		a.content.WriteString(e.Value)
		a.draft.Content = a.content.String()

	case ToolCallEvent:
		a.tracker.OnCall(e)
		a.draft.ToolInvocations = a.tracker.Snapshot()

	case ToolResultEvent:
		a.tracker.OnResult(e)
		a.draft.ToolInvocations = a.tracker.Snapshot()

	case FinishEvent:
		a.recordUsage(e)
		a.finished = true

	default:
		a.logger.Warn("unhandled stream event", slog.Any("event", ev))
		return
	}

	a.emit()
}

// recordUsage captures finish usage for the finalizer. The authoritative
// record (typed finish, legacy "e") always wins over the secondary record
// (legacy "d") regardless of arrival order; between records of equal
// standing the first one kept is retained.
func (a *MessageAccumulator) recordUsage(ev FinishEvent) {
	if ev.Usage.Empty() {
		return
	}
	if a.usage == nil {
		a.usage = ev.Usage
		a.usageAuthoritative = ev.Authoritative
		return
	}
	if ev.Authoritative && !a.usageAuthoritative {
		a.usage = ev.Usage
		a.usageAuthoritative = true
	}
}

// emit sends the current draft snapshot to the persistence collaborator.
func (a *MessageAccumulator) emit() {
	if a.sink == nil {
		return
	}
	a.sink.UpdateMessage(a.draft.ID, MessageUpdate{
		Content:         a.draft.Content,
		ToolInvocations: a.tracker.Snapshot(),
	})
}

// Usage returns the token usage captured so far, possibly nil.
func (a *MessageAccumulator) Usage() *Usage {
	return a.usage
}

// Finished reports whether a finish event was observed.
func (a *MessageAccumulator) Finished() bool {
	return a.finished
}

// Draft returns the live draft. Owned by the driver; external callers get
// snapshots through the sink.
func (a *MessageAccumulator) Draft() *model.Message {
	return a.draft
}
