// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jeranaias/driftchat/internal/model"
)

// =============================================================================
// CHUNK READER
// =============================================================================

// ChunkReader is the transport surface the driver consumes: a pull-based
// reader yielding text chunks until done. Chunks may split anywhere; the
// driver never assumes chunk boundaries align with lines.
type ChunkReader interface {
	// Read returns the next chunk. done=true signals normal end of
	// stream; a non-nil error is fatal to the stream.
	Read(ctx context.Context) (value string, done bool, err error)
	// Close releases the underlying transport resource. Idempotent.
	Close() error
}

// readerChunks adapts an io.ReadCloser (typically an HTTP response body)
// to the ChunkReader interface.
type readerChunks struct {
	r   io.ReadCloser
	buf []byte
}

// NewChunkReader wraps an io.ReadCloser as a ChunkReader.
func NewChunkReader(r io.ReadCloser) ChunkReader {
	return &readerChunks{r: r, buf: make([]byte, 4096)}
}

func (c *readerChunks) Read(ctx context.Context) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	n, err := c.r.Read(c.buf)
	if n > 0 {
		// Deliver the chunk; io.EOF alongside data means this is the
		// final chunk, reported as such on the next call.
		return string(c.buf[:n]), false, nil
	}
	if errors.Is(err, io.EOF) {
		return "", true, nil
	}
	if err != nil {
		return "", false, err
	}
	return "", false, nil
}

func (c *readerChunks) Close() error {
	return c.r.Close()
}

// =============================================================================
// STREAM ERROR
// =============================================================================

// StreamError is a fatal transport failure that preserves the partial
// content streamed before the failure - real provider output is never
// rolled back.
type StreamError struct {
	Partial string
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// =============================================================================
// STREAM STATE
// =============================================================================

// State is the lifecycle state of one stream.
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateFinalizing
	StateDone
	StateErrored
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// =============================================================================
// STREAM DRIVER
// =============================================================================

// StreamDriver orchestrates one streaming response: it pulls chunks from
// the transport, reassembles lines, decodes events, routes them to the
// accumulator, and drives the finalizer at end of stream or on error.
//
// The driver exclusively owns its draft and line buffer. All work within
// one read iteration is synchronous, so events are applied in strict
// arrival order. Callers enforce at most one active stream per chat.
type StreamDriver struct {
	reader    ChunkReader
	buf       LineBuffer
	acc       *MessageAccumulator
	finalizer *UsageFinalizer
	sink      MessageSink
	logger    *slog.Logger
	state     State
}

// DriverConfig carries the collaborators for one stream.
type DriverConfig struct {
	Provider string
	Model    string
	// Draft is the assistant message to assemble into. When nil a fresh
	// draft is created.
	Draft *model.Message
	// Sink receives one update per decoded event plus the final
	// metadata-bearing update.
	Sink MessageSink
	// Calculate prices the finalized usage; nil uses the built-in table.
	Calculate CostFunc
	Logger    *slog.Logger
}

// NewStreamDriver builds a driver for one response stream.
func NewStreamDriver(reader ChunkReader, cfg DriverConfig) *StreamDriver {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	draft := cfg.Draft
	if draft == nil {
		draft = model.NewAssistantDraft()
	}

	return &StreamDriver{
		reader:    reader,
		acc:       NewMessageAccumulator(draft, cfg.Sink, logger),
		finalizer: NewUsageFinalizer(cfg.Provider, cfg.Model, cfg.Calculate),
		sink:      cfg.Sink,
		logger:    logger,
		state:     StateIdle,
	}
}

// State returns the current lifecycle state.
func (d *StreamDriver) State() State {
	return d.state
}

// Message returns the assembled message. Valid after Run returns; while
// the stream is open this is the live draft owned by the driver.
func (d *StreamDriver) Message() *model.Message {
	return d.acc.Draft()
}

// Run consumes the stream to completion. It returns nil after a normal
// finalize, or a *StreamError wrapping the transport failure. The reader
// is released on every exit path; once released no further events are
// emitted even if buffered bytes remain.
func (d *StreamDriver) Run(ctx context.Context) error {
	defer d.reader.Close()

	for {
		value, done, err := d.reader.Read(ctx)
		if err != nil {
			return d.fail(err)
		}

		if d.state == StateIdle {
			d.state = StateStreaming
		}

		for _, line := range d.buf.Push(value) {
			d.handleLine(line)
		}

		if done {
			// A final line without a trailing newline still counts.
			if tail := d.buf.Flush(); tail != "" {
				d.handleLine(tail)
			}
			d.finish()
			return nil
		}
	}
}

// handleLine decodes one line and applies the event. Decode failures are
// logged and skipped; a single malformed line never aborts the stream.
func (d *StreamDriver) handleLine(line string) {
	ev, err := Decode(line)
	if err != nil {
		d.logger.Warn("skipping undecodable stream line",
			slog.String("line", line),
			slog.Any("error", err))
		return
	}
	if ev == nil {
		return
	}
	d.acc.ApplyEvent(ev)
}

// finish runs the normal completion path: Streaming -> Finalizing -> Done.
func (d *StreamDriver) finish() {
	d.state = StateFinalizing
	d.finalize()
	d.state = StateDone
}

// fail transitions to Errored from any active state. The finalizer still
// runs exactly once, committing whatever usage was captured before the
// failure; partial content is preserved, not rolled back.
func (d *StreamDriver) fail(err error) error {
	d.finalize()
	d.state = StateErrored
	return &StreamError{Partial: d.acc.Draft().Content, Err: err}
}

// finalize emits the single final metadata-bearing update, merged onto the
// last content and tool invocations the accumulator emitted.
func (d *StreamDriver) finalize() {
	meta, first := d.finalizer.Finalize(d.acc.Usage())
	if !first {
		return
	}

	draft := d.acc.Draft()
	draft.ApiMetadata = meta
	draft.IsStreaming = false

	if d.sink != nil {
		d.sink.UpdateMessage(draft.ID, MessageUpdate{
			Content:         draft.Content,
			ToolInvocations: append([]model.ToolInvocation(nil), draft.ToolInvocations...),
			ApiMetadata:     meta,
		})
	}
}
