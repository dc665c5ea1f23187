// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"io"

	"github.com/jeranaias/driftchat/internal/stream"
)

// eventWriter serializes decoded provider events as typed lines.
type eventWriter struct {
	w io.Writer
}

// Emit writes one event in the typed line encoding.
func (ew *eventWriter) Emit(ev stream.StreamEvent) error {
	line, err := stream.EncodeTyped(ev)
	if err != nil {
		return err
	}
	_, err = io.WriteString(ew.w, line+"\n")
	return err
}

// normalizeFunc consumes one backend's SSE body and emits typed events.
// Returning nil ends the stream normally; any error is surfaced to the
// consumer through the pipe.
type normalizeFunc func(body io.Reader, out *eventWriter) error

// newNormalizedReader bridges a provider response body to the typed line
// protocol. A goroutine parses the backend's SSE dialect and writes typed
// lines into a pipe; the returned ChunkReader pulls from the pipe's read
// end. Closing the reader tears down the pipe, which unblocks the parser
// and releases the response body.
func newNormalizedReader(body io.ReadCloser, normalize normalizeFunc) stream.ChunkReader {
	pr, pw := io.Pipe()

	go func() {
		defer body.Close()
		err := normalize(body, &eventWriter{w: pw})
		pw.CloseWithError(err)
	}()

	return stream.NewChunkReader(pr)
}
