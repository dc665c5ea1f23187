// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"encoding/json"
	"fmt"
	"strings"
)

// =============================================================================
// DECODE ERRORS
// =============================================================================

// DecodeError reports a line that neither wire encoding could parse. It is
// recovered locally by the driver: logged, skipped, never fatal to the
// stream.
type DecodeError struct {
	Line string
	Err  error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("undecodable stream line %q: %v", e.Line, e.Err)
}

// Unwrap returns the underlying parse error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// =============================================================================
// WIRE SHAPES
// =============================================================================

// typedEnvelope is the typed encoding: one JSON value per line with a
// "type" discriminator.
type typedEnvelope struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// toolCallPayload is shared by both encodings.
type toolCallPayload struct {
	ToolCallID string         `json:"toolCallId"`
	ToolName   string         `json:"toolName"`
	Args       map[string]any `json:"args"`
}

// toolResultPayload is shared by both encodings.
type toolResultPayload struct {
	ToolCallID string `json:"toolCallId"`
	Result     any    `json:"result"`
}

// finishPayload is shared by both encodings; usage is optional.
type finishPayload struct {
	Usage *Usage `json:"usage,omitempty"`
}

// Typed-envelope discriminator values.
const (
	typeText       = "text"
	typeToolCall   = "tool_call"
	typeToolResult = "tool_result"
	typeFinish     = "finish"
)

// Legacy colon-separated prefixes. Prefixes outside this set (message ids,
// annotations such as "f") are accepted and silently ignored.
const (
	legacyText       = "0"
	legacyToolCall   = "2"
	legacyToolResult = "3"
	legacyFinish     = "e" // primary finish record, wins on usage conflicts
	legacyFinishMeta = "d" // secondary finish metadata
)

// =============================================================================
// DECODER
// =============================================================================

// Decode parses one line into a StreamEvent.
//
// The typed format is attempted first; on any typed-parse failure the
// legacy "<prefix>:<json>" format is tried. The return contract is:
//
//	(event, nil) - the line decoded to a semantic event
//	(nil, nil)   - the line is valid but carries nothing (blank line,
//	               ignored legacy prefix)
//	(nil, *DecodeError) - neither encoding could parse the line
//
// A DecodeError must never abort the stream; the caller logs it and
// continues with the next line.
func Decode(line string) (StreamEvent, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}

	if ev, err := decodeTyped(line); err == nil {
		return ev, nil
	}

	ev, skip, err := decodeLegacy(line)
	if err != nil {
		return nil, &DecodeError{Line: line, Err: err}
	}
	if skip {
		return nil, nil
	}
	return ev, nil
}

// decodeTyped attempts the typed JSON envelope format.
func decodeTyped(line string) (StreamEvent, error) {
	var env typedEnvelope
	if err := json.Unmarshal([]byte(line), &env); err != nil {
		return nil, err
	}

	switch env.Type {
	case typeText:
		var value string
		if err := json.Unmarshal(env.Value, &value); err != nil {
			return nil, err
		}
		return TextDelta{Value: value}, nil

	case typeToolCall:
		var p toolCallPayload
		if err := json.Unmarshal(env.Value, &p); err != nil {
			return nil, err
		}
		if p.ToolCallID == "" {
			return nil, fmt.Errorf("tool_call without toolCallId")
		}
		return ToolCallEvent{ID: p.ToolCallID, Name: p.ToolName, Args: p.Args}, nil

	case typeToolResult:
		var p toolResultPayload
		if err := json.Unmarshal(env.Value, &p); err != nil {
			return nil, err
		}
		if p.ToolCallID == "" {
			return nil, fmt.Errorf("tool_result without toolCallId")
		}
		return ToolResultEvent{ID: p.ToolCallID, Result: p.Result}, nil

	case typeFinish:
		var p finishPayload
		if len(env.Value) > 0 {
			if err := json.Unmarshal(env.Value, &p); err != nil {
				return nil, err
			}
		}
		return FinishEvent{Usage: p.Usage, Authoritative: true}, nil

	default:
		return nil, fmt.Errorf("unknown envelope type %q", env.Type)
	}
}

// decodeLegacy attempts the legacy "<prefix>:<json>" format. The skip
// return is true for recognized-but-ignored prefixes.
func decodeLegacy(line string) (ev StreamEvent, skip bool, err error) {
	prefix, payload, found := strings.Cut(line, ":")
	if !found {
		return nil, false, fmt.Errorf("no prefix separator")
	}

	switch prefix {
	case legacyText:
		// Payload is the delta itself as a bare JSON string.
		var value string
		if err := json.Unmarshal([]byte(payload), &value); err != nil {
			return nil, false, err
		}
		return TextDelta{Value: value}, false, nil

	case legacyToolCall:
		var p toolCallPayload
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, false, err
		}
		if p.ToolCallID == "" {
			return nil, false, fmt.Errorf("tool call without toolCallId")
		}
		return ToolCallEvent{ID: p.ToolCallID, Name: p.ToolName, Args: p.Args}, false, nil

	case legacyToolResult:
		var p toolResultPayload
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, false, err
		}
		if p.ToolCallID == "" {
			return nil, false, fmt.Errorf("tool result without toolCallId")
		}
		return ToolResultEvent{ID: p.ToolCallID, Result: p.Result}, false, nil

	case legacyFinish, legacyFinishMeta:
		var p finishPayload
		if strings.TrimSpace(payload) != "" {
			if err := json.Unmarshal([]byte(payload), &p); err != nil {
				return nil, false, err
			}
		}
		return FinishEvent{Usage: p.Usage, Authoritative: prefix == legacyFinish}, false, nil

	default:
		if isIgnorableLegacyPrefix(prefix) {
			return nil, true, nil
		}
		return nil, false, fmt.Errorf("unrecognized prefix %q", prefix)
	}
}

// isIgnorableLegacyPrefix reports whether prefix is a plausible legacy
// stream part we deliberately do not consume (message ids, annotations,
// step markers). Anything that does not look like a short alphanumeric
// stream-part tag is treated as a parse failure instead, so garbage lines
// still surface in the logs.
func isIgnorableLegacyPrefix(prefix string) bool {
	if len(prefix) == 0 || len(prefix) > 2 {
		return false
	}
	for _, r := range prefix {
		isDigit := r >= '0' && r <= '9'
		isAlpha := r >= 'a' && r <= 'z'
		if !isDigit && !isAlpha {
			return false
		}
	}
	return true
}

// =============================================================================
// ENCODER
// =============================================================================

// EncodeTyped renders an event as one typed-encoding line (without the
// trailing newline). Provider adapters use this to normalize native SSE
// deltas onto the single wire contract the decoder consumes; tests use it
// to verify the decode/encode round trip is lossless.
func EncodeTyped(ev StreamEvent) (string, error) {
	var env typedEnvelope
	var payload any

	switch e := ev.(type) {
	case TextDelta:
		env.Type = typeText
		payload = e.Value
	case ToolCallEvent:
		env.Type = typeToolCall
		payload = toolCallPayload{ToolCallID: e.ID, ToolName: e.Name, Args: e.Args}
	case ToolResultEvent:
		env.Type = typeToolResult
		payload = toolResultPayload{ToolCallID: e.ID, Result: e.Result}
	case FinishEvent:
		env.Type = typeFinish
		payload = finishPayload{Usage: e.Usage}
	default:
		return "", fmt.Errorf("unencodable event type %T", ev)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	env.Value = raw

	out, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
