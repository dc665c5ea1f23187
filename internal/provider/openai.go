// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/driftchat/internal/stream"
)

// Base URLs for the OpenAI-compatible backends.
const (
	DefaultOpenAIURL = "https://api.openai.com/v1"
	DefaultGroqURL   = "https://api.groq.com/openai/v1"
)

// =============================================================================
// WIRE TYPES (OpenAI-compatible chat completions)
// =============================================================================

type oaChatRequest struct {
	Model         string          `json:"model"`
	Messages      []Turn          `json:"messages"`
	Stream        bool            `json:"stream"`
	StreamOptions *oaStreamOpts   `json:"stream_options,omitempty"`
	Temperature   float64         `json:"temperature,omitempty"`
	MaxTokens     int             `json:"max_tokens,omitempty"`
}

type oaStreamOpts struct {
	IncludeUsage bool `json:"include_usage"`
}

type oaUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type oaChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage oaUsage `json:"usage"`
}

// oaStreamChunk is one SSE data payload from a streaming completion.
type oaStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *oaUsage `json:"usage"`
}

type oaErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

type oaModelsResponse struct {
	Data []struct {
		ID            string `json:"id"`
		ContextWindow int    `json:"context_window"`
	} `json:"data"`
}

// =============================================================================
// CLIENT
// =============================================================================

// OpenAICompat is a provider speaking the OpenAI chat completions API.
// Groq exposes the same surface, so one client serves both backends.
type OpenAICompat struct {
	name       string
	apiKey     string
	baseURL    string
	maxRetries int
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewOpenAI creates the OpenAI provider.
func NewOpenAI(apiKey string, logger *slog.Logger) *OpenAICompat {
	return newOpenAICompat("openai", apiKey, DefaultOpenAIURL, logger)
}

// NewGroq creates the Groq provider.
func NewGroq(apiKey string, logger *slog.Logger) *OpenAICompat {
	return newOpenAICompat("groq", apiKey, DefaultGroqURL, logger)
}

func newOpenAICompat(name, apiKey, baseURL string, logger *slog.Logger) *OpenAICompat {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAICompat{
		name:       name,
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		maxRetries: DefaultMaxRetries,
		limiter:    newLimiter(2, 4),
		logger:     logger.With(slog.String("provider", name)),
	}
}

// WithBaseURL overrides the API base URL. Used for tests and gateways.
func (c *OpenAICompat) WithBaseURL(url string) *OpenAICompat {
	c.baseURL = strings.TrimSuffix(url, "/")
	return c
}

// WithMaxRetries sets the maximum number of retry attempts.
func (c *OpenAICompat) WithMaxRetries(n int) *OpenAICompat {
	c.maxRetries = n
	return c
}

// Name returns the provider identifier.
func (c *OpenAICompat) Name() string { return c.name }

// Configured reports whether an API key is set.
func (c *OpenAICompat) Configured() bool { return c.apiKey != "" }

func (c *OpenAICompat) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "driftchat/0.3.0")
}

// =============================================================================
// NON-STREAMING COMPLETION
// =============================================================================

// Complete performs a blocking chat request with retry on transient errors.
func (c *OpenAICompat) Complete(ctx context.Context, req Request) (*Completion, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	body := oaChatRequest{
		Model:       req.Model,
		Messages:    req.Turns,
		Stream:      false,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := waitBackoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		resp, err := c.doComplete(ctx, body)
		if err != nil {
			if retryable(err) {
				c.logger.Warn("retrying chat request",
					slog.Int("attempt", attempt+1),
					slog.Any("error", err))
				lastErr = err
				continue
			}
			return nil, err
		}
		return resp, nil
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *OpenAICompat) doComplete(ctx context.Context, body oaChatRequest) (*Completion, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := sharedHTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := readResponse(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.handleErrorResponse(resp, raw)
	}

	var chat oaChatResponse
	if err := json.Unmarshal(raw, &chat); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, &APIError{Provider: c.name, Message: "response contained no choices", Status: resp.StatusCode}
	}

	return &Completion{
		Content:          chat.Choices[0].Message.Content,
		FinishReason:     chat.Choices[0].FinishReason,
		PromptTokens:     chat.Usage.PromptTokens,
		CompletionTokens: chat.Usage.CompletionTokens,
		TotalTokens:      chat.Usage.TotalTokens,
	}, nil
}

// =============================================================================
// STREAMING
// =============================================================================

// Stream opens a streaming completion and returns a reader of typed lines.
func (c *OpenAICompat) Stream(ctx context.Context, req Request) (stream.ChunkReader, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body := oaChatRequest{
		Model:         req.Model,
		Messages:      req.Turns,
		Stream:        true,
		StreamOptions: &oaStreamOpts{IncludeUsage: true},
		Temperature:   req.Temperature,
		MaxTokens:     req.MaxTokens,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := sharedStreamingClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := readResponse(resp)
		resp.Body.Close()
		return nil, c.handleErrorResponse(resp, raw)
	}

	return newNormalizedReader(resp.Body, c.normalizeStream), nil
}

// pendingToolCall accumulates the argument fragments the API streams for
// one tool call before the call is complete enough to emit.
type pendingToolCall struct {
	id   string
	name string
	args strings.Builder
}

func (p *pendingToolCall) event() (stream.StreamEvent, bool) {
	if p == nil || p.id == "" {
		return nil, false
	}
	var args map[string]any
	raw := p.args.String()
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return nil, false
		}
	}
	return stream.ToolCallEvent{ID: p.id, Name: p.name, Args: args}, true
}

// normalizeStream translates the OpenAI SSE dialect into typed events.
// Tool call arguments stream as JSON fragments; the call is emitted once
// its fragments are complete (next call begins, or the stream finishes).
func (c *OpenAICompat) normalizeStream(body io.Reader, out *eventWriter) error {
	reader := newSSEReader(body)
	pending := make(map[int]*pendingToolCall)
	var pendingOrder []int
	var usage *oaUsage

	flushCalls := func() error {
		for _, idx := range pendingOrder {
			if ev, ok := pending[idx].event(); ok {
				if err := out.Emit(ev); err != nil {
					return err
				}
			}
		}
		pending = make(map[int]*pendingToolCall)
		pendingOrder = nil
		return nil
	}

	emitFinish := func() error {
		if err := flushCalls(); err != nil {
			return err
		}
		fin := stream.FinishEvent{Authoritative: true}
		if usage != nil {
			fin.Usage = &stream.Usage{
				PromptTokens:     &usage.PromptTokens,
				CompletionTokens: &usage.CompletionTokens,
				TotalTokens:      &usage.TotalTokens,
			}
		}
		return out.Emit(fin)
	}

	for {
		_, data, err := reader.ReadEvent()
		if err != nil {
			if err == io.EOF {
				// Stream ended without [DONE]; commit what we have.
				return emitFinish()
			}
			return err
		}

		if bytes.Equal(data, []byte("[DONE]")) {
			return emitFinish()
		}

		var chunk oaStreamChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			// Skip malformed chunks.
			continue
		}

		if chunk.Usage != nil {
			usage = chunk.Usage
		}

		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta

		if delta.Content != "" {
			if err := out.Emit(stream.TextDelta{Value: delta.Content}); err != nil {
				return err
			}
		}

		for _, tc := range delta.ToolCalls {
			p := pending[tc.Index]
			if p == nil {
				p = &pendingToolCall{}
				pending[tc.Index] = p
				pendingOrder = append(pendingOrder, tc.Index)
			}
			if tc.ID != "" {
				p.id = tc.ID
			}
			if tc.Function.Name != "" {
				p.name = tc.Function.Name
			}
			p.args.WriteString(tc.Function.Arguments)
		}
	}
}

// =============================================================================
// MODELS
// =============================================================================

// Models lists the models available on this backend.
func (c *OpenAICompat) Models(ctx context.Context) ([]ModelInfo, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := sharedHTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := readResponse(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.handleErrorResponse(resp, raw)
	}

	var list oaModelsResponse
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("failed to parse models response: %w", err)
	}

	models := make([]ModelInfo, 0, len(list.Data))
	for _, m := range list.Data {
		models = append(models, ModelInfo{ID: m.ID, Name: m.ID, ContextSize: m.ContextWindow})
	}
	return models, nil
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

// handleErrorResponse maps HTTP error responses to provider errors.
func (c *OpenAICompat) handleErrorResponse(resp *http.Response, body []byte) error {
	var apiErr oaErrorResponse
	message := strings.TrimSpace(string(body))
	code := ""
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		message = apiErr.Error.Message
		code = apiErr.Error.Code
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrAuthFailed, message)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrModelNotFound, message)
	case http.StatusRequestEntityTooLarge:
		return fmt.Errorf("%w: %s", ErrContextTooLong, message)
	case http.StatusTooManyRequests:
		return &RateLimitError{Provider: c.name, RetryAfter: retryAfter(resp)}
	default:
		if code == "context_length_exceeded" {
			return fmt.Errorf("%w: %s", ErrContextTooLong, message)
		}
		return &APIError{Provider: c.name, Code: code, Message: message, Status: resp.StatusCode}
	}
}

// retryAfter parses the Retry-After header, in seconds.
func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
