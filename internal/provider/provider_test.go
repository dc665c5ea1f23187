// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jeranaias/driftchat/internal/stream"
)

// collectEvents drains a normalized reader and decodes every typed line.
func collectEvents(t *testing.T, r stream.ChunkReader) []stream.StreamEvent {
	t.Helper()
	defer r.Close()

	var buf stream.LineBuffer
	var events []stream.StreamEvent

	handle := func(line string) {
		ev, err := stream.Decode(line)
		if err != nil {
			t.Fatalf("undecodable normalized line %q: %v", line, err)
		}
		if ev != nil {
			events = append(events, ev)
		}
	}

	for {
		chunk, done, err := r.Read(context.Background())
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		for _, line := range buf.Push(chunk) {
			handle(line)
		}
		if done {
			if tail := buf.Flush(); tail != "" {
				handle(tail)
			}
			return events
		}
	}
}

func textOf(events []stream.StreamEvent) string {
	var out string
	for _, ev := range events {
		if d, ok := ev.(stream.TextDelta); ok {
			out += d.Value
		}
	}
	return out
}

func finishOf(t *testing.T, events []stream.StreamEvent) stream.FinishEvent {
	t.Helper()
	if len(events) == 0 {
		t.Fatal("no events")
	}
	fin, ok := events[len(events)-1].(stream.FinishEvent)
	if !ok {
		t.Fatalf("last event = %T, want FinishEvent", events[len(events)-1])
	}
	return fin
}

// =============================================================================
// OPENAI-COMPATIBLE STREAMING
// =============================================================================

func TestOpenAICompat_StreamNormalization(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\" world\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[],\"usage\":{\"prompt_tokens\":5,\"completion_tokens\":2,\"total_tokens\":7}}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := NewGroq("test-key", nil).WithBaseURL(server.URL)
	reader, err := client.Stream(context.Background(), Request{Model: "llama-3.1-8b-instant"})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	events := collectEvents(t, reader)
	if got := textOf(events); got != "Hello world" {
		t.Errorf("text = %q, want %q", got, "Hello world")
	}

	fin := finishOf(t, events)
	if !fin.Authoritative {
		t.Error("provider finish events must be authoritative")
	}
	if fin.Usage == nil || fin.Usage.TotalTokens == nil || *fin.Usage.TotalTokens != 7 {
		t.Errorf("usage = %+v, want totalTokens=7", fin.Usage)
	}
}

func TestOpenAICompat_StreamToolCallFragments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		// Arguments stream in two fragments.
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"id\":\"call_1\",\"function\":{\"name\":\"weather\",\"arguments\":\"{\\\"loc\"}}]}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"function\":{\"arguments\":\"ation\\\":\\\"SF\\\"}\"}}]}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := NewOpenAI("test-key", nil).WithBaseURL(server.URL)
	reader, err := client.Stream(context.Background(), Request{Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	events := collectEvents(t, reader)

	var call *stream.ToolCallEvent
	for _, ev := range events {
		if tc, ok := ev.(stream.ToolCallEvent); ok {
			call = &tc
			break
		}
	}
	if call == nil {
		t.Fatal("no tool call event emitted")
	}
	if call.ID != "call_1" || call.Name != "weather" {
		t.Errorf("call = %+v", call)
	}
	if loc, _ := call.Args["location"].(string); loc != "SF" {
		t.Errorf("args = %v, want reassembled location=SF", call.Args)
	}
}

func TestOpenAICompat_StreamEndsWithoutDone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"cut\"}}]}\n\n")
		// Connection closes with no [DONE] marker.
	}))
	defer server.Close()

	client := NewGroq("test-key", nil).WithBaseURL(server.URL)
	reader, err := client.Stream(context.Background(), Request{Model: "m"})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	events := collectEvents(t, reader)
	if textOf(events) != "cut" {
		t.Errorf("text = %q", textOf(events))
	}
	// A finish event is still synthesized so the assembler can settle.
	finishOf(t, events)
}

// =============================================================================
// OPENAI-COMPATIBLE COMPLETIONS AND ERRORS
// =============================================================================

func TestOpenAICompat_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"choices": [{"message": {"content": "hi"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 3, "completion_tokens": 1, "total_tokens": 4}
		}`)
	}))
	defer server.Close()

	client := NewGroq("test-key", nil).WithBaseURL(server.URL)
	resp, err := client.Complete(context.Background(), Request{Model: "m", Turns: []Turn{{Role: "user", Content: "hello"}}})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Content != "hi" || resp.TotalTokens != 4 {
		t.Errorf("completion = %+v", resp)
	}
}

func TestOpenAICompat_NotConfigured(t *testing.T) {
	client := NewOpenAI("", nil)

	if _, err := client.Complete(context.Background(), Request{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Complete error = %v, want ErrNotConfigured", err)
	}
	if _, err := client.Stream(context.Background(), Request{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Stream error = %v, want ErrNotConfigured", err)
	}
}

func TestOpenAICompat_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"auth failure", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, ErrAuthFailed},
		{"missing model", http.StatusNotFound, `{"error":{"message":"no such model"}}`, ErrModelNotFound},
		{"rate limit", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			client := NewGroq("test-key", nil).WithBaseURL(server.URL).WithMaxRetries(1)
			_, err := client.Complete(context.Background(), Request{Model: "m"})
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v in chain", err, tt.want)
			}
		})
	}
}

func TestOpenAICompat_RetriesServerErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"ok"},"finish_reason":"stop"}],"usage":{}}`)
	}))
	defer server.Close()

	client := NewGroq("test-key", nil).WithBaseURL(server.URL)
	resp, err := client.Complete(context.Background(), Request{Model: "m"})
	if err != nil {
		t.Fatalf("Complete failed after retries: %v", err)
	}
	if resp.Content != "ok" || attempts != 3 {
		t.Errorf("content = %q, attempts = %d", resp.Content, attempts)
	}
}

func TestRateLimitError_RetryAfter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewGroq("test-key", nil).WithBaseURL(server.URL).WithMaxRetries(1)
	_, err := client.Complete(context.Background(), Request{Model: "m"})

	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("error = %T, want *RateLimitError", err)
	}
	if rl.RetryAfter.Seconds() != 30 {
		t.Errorf("RetryAfter = %v, want 30s", rl.RetryAfter)
	}
}

// =============================================================================
// ANTHROPIC
// =============================================================================

func anthropicStreamBody() string {
	return "event: message_start\n" +
		"data: {\"type\":\"message_start\",\"message\":{\"usage\":{\"input_tokens\":12}}}\n\n" +
		"event: content_block_delta\n" +
		"data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"Hello\"}}\n\n" +
		"event: content_block_delta\n" +
		"data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\" there\"}}\n\n" +
		"event: message_delta\n" +
		"data: {\"type\":\"message_delta\",\"delta\":{\"stop_reason\":\"end_turn\"},\"usage\":{\"output_tokens\":4}}\n\n" +
		"event: message_stop\n" +
		"data: {\"type\":\"message_stop\"}\n\n"
}

func TestAnthropic_StreamNormalization(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Error("missing anthropic-version header")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, anthropicStreamBody())
	}))
	defer server.Close()

	client := NewAnthropic("test-key", nil).WithBaseURL(server.URL)
	reader, err := client.Stream(context.Background(), Request{Model: "claude-3-5-sonnet-latest"})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	events := collectEvents(t, reader)
	if got := textOf(events); got != "Hello there" {
		t.Errorf("text = %q", got)
	}

	fin := finishOf(t, events)
	if fin.Usage == nil {
		t.Fatal("finish event missing usage")
	}
	if *fin.Usage.PromptTokens != 12 || *fin.Usage.CompletionTokens != 4 || *fin.Usage.TotalTokens != 16 {
		t.Errorf("usage = %+v, want 12/4/16", fin.Usage)
	}
}

func TestAnthropic_StreamToolUse(t *testing.T) {
	body := "event: content_block_start\n" +
		"data: {\"type\":\"content_block_start\",\"content_block\":{\"type\":\"tool_use\",\"id\":\"toolu_1\",\"name\":\"weather\"}}\n\n" +
		"event: content_block_delta\n" +
		"data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"input_json_delta\",\"partial_json\":\"{\\\"city\\\":\"}}\n\n" +
		"event: content_block_delta\n" +
		"data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"input_json_delta\",\"partial_json\":\"\\\"SF\\\"}\"}}\n\n" +
		"event: content_block_stop\n" +
		"data: {\"type\":\"content_block_stop\"}\n\n" +
		"event: message_stop\n" +
		"data: {\"type\":\"message_stop\"}\n\n"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, body)
	}))
	defer server.Close()

	client := NewAnthropic("test-key", nil).WithBaseURL(server.URL)
	reader, err := client.Stream(context.Background(), Request{Model: "claude-3-5-sonnet-latest"})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	events := collectEvents(t, reader)

	var call *stream.ToolCallEvent
	for _, ev := range events {
		if tc, ok := ev.(stream.ToolCallEvent); ok {
			call = &tc
		}
	}
	if call == nil {
		t.Fatal("no tool call event emitted")
	}
	if call.ID != "toolu_1" || call.Name != "weather" {
		t.Errorf("call = %+v", call)
	}
	if city, _ := call.Args["city"].(string); city != "SF" {
		t.Errorf("args = %v, want reassembled city=SF", call.Args)
	}
}

func TestAnthropic_SystemTurnsLifted(t *testing.T) {
	client := NewAnthropic("test-key", nil)

	req := client.buildRequest(Request{
		Model: "claude-3-5-haiku-latest",
		Turns: []Turn{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "hi"},
		},
	}, false)

	if req.System != "be brief" {
		t.Errorf("System = %q", req.System)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
		t.Errorf("Messages = %+v, system turn should be lifted out", req.Messages)
	}
	if req.MaxTokens != defaultAnthropicMaxTokens {
		t.Errorf("MaxTokens = %d, want default applied", req.MaxTokens)
	}
}

func TestAnthropic_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"content": [{"type": "text", "text": "hello back"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 9, "output_tokens": 3}
		}`)
	}))
	defer server.Close()

	client := NewAnthropic("test-key", nil).WithBaseURL(server.URL)
	resp, err := client.Complete(context.Background(), Request{Model: "m", Turns: []Turn{{Role: "user", Content: "hello"}}})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Content != "hello back" || resp.TotalTokens != 12 {
		t.Errorf("completion = %+v", resp)
	}
}

// =============================================================================
// DRIVER INTEGRATION
// =============================================================================

// The normalized reader plugs straight into the stream driver: one wire
// contract end to end regardless of backend.
func TestProvider_DriverIntegration(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"streamed\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[],\"usage\":{\"prompt_tokens\":2,\"completion_tokens\":1,\"total_tokens\":3}}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := NewGroq("test-key", nil).WithBaseURL(server.URL)
	reader, err := client.Stream(context.Background(), Request{Model: "llama-3.1-8b-instant"})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	driver := stream.NewStreamDriver(reader, stream.DriverConfig{
		Provider: "groq",
		Model:    "llama-3.1-8b-instant",
	})
	if err := driver.Run(context.Background()); err != nil {
		t.Fatalf("driver Run failed: %v", err)
	}

	msg := driver.Message()
	if msg.Content != "streamed" {
		t.Errorf("Content = %q", msg.Content)
	}
	if msg.ApiMetadata == nil || msg.ApiMetadata.TotalTokens == nil || *msg.ApiMetadata.TotalTokens != 3 {
		t.Errorf("metadata = %+v", msg.ApiMetadata)
	}
	if msg.ApiMetadata.Cost == nil {
		t.Error("cost should be priced for a known model")
	}
}

// =============================================================================
// REGISTRY
// =============================================================================

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewGroq("key", nil))
	reg.Register(NewOpenAI("", nil))
	reg.Register(NewAnthropic("key", nil))

	if _, err := reg.Get("groq"); err != nil {
		t.Errorf("Get(groq) failed: %v", err)
	}
	if _, err := reg.Get("GROQ "); err != nil {
		t.Errorf("lookup should be case and whitespace insensitive: %v", err)
	}
	if _, err := reg.Get("cohere"); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("Get(cohere) = %v, want ErrUnknownProvider", err)
	}

	names := reg.Names()
	if len(names) != 3 || names[0] != "anthropic" || names[1] != "groq" || names[2] != "openai" {
		t.Errorf("Names = %v", names)
	}

	// openai has no key, so only the other two are configured.
	configured := reg.Configured()
	if len(configured) != 2 || configured[0] != "anthropic" || configured[1] != "groq" {
		t.Errorf("Configured = %v", configured)
	}
}

func TestKeyFingerprint(t *testing.T) {
	if keyFingerprint("") != "none" {
		t.Error("empty key should fingerprint as none")
	}
	fp := keyFingerprint("sk-test-12345")
	if len(fp) != 8 {
		t.Errorf("fingerprint length = %d, want 8 hex chars", len(fp))
	}
	if fp == keyFingerprint("sk-other-67890") {
		t.Error("different keys must fingerprint differently")
	}
}
