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
	"strings"

	"golang.org/x/time/rate"

	"github.com/jeranaias/driftchat/internal/stream"
)

// DefaultAnthropicURL is the base URL for the Anthropic Messages API.
const DefaultAnthropicURL = "https://api.anthropic.com/v1"

// anthropicVersion is the required API version header value.
const anthropicVersion = "2023-06-01"

// defaultAnthropicMaxTokens applies when the request doesn't set a cap;
// the Messages API rejects requests without max_tokens.
const defaultAnthropicMaxTokens = 4096

// =============================================================================
// WIRE TYPES (Anthropic Messages API)
// =============================================================================

type anthRequest struct {
	Model       string     `json:"model"`
	MaxTokens   int        `json:"max_tokens"`
	System      string     `json:"system,omitempty"`
	Messages    []Turn     `json:"messages"`
	Temperature float64    `json:"temperature,omitempty"`
	Stream      bool       `json:"stream,omitempty"`
}

type anthUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string    `json:"stop_reason"`
	Usage      anthUsage `json:"usage"`
}

// anthStreamEvent is the union of the Messages API stream event payloads.
// The event type discriminates which fields are populated.
type anthStreamEvent struct {
	Type    string `json:"type"`
	Message *struct {
		Usage anthUsage `json:"usage"`
	} `json:"message"`
	ContentBlock *struct {
		Type  string          `json:"type"`
		ID    string          `json:"id"`
		Name  string          `json:"name"`
		Input json.RawMessage `json:"input"`
	} `json:"content_block"`
	Delta *struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
		StopReason  string `json:"stop_reason"`
	} `json:"delta"`
	Usage *anthUsage `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type anthErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Anthropic is the Messages API provider.
type Anthropic struct {
	apiKey     string
	baseURL    string
	maxRetries int
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewAnthropic creates the Anthropic provider.
func NewAnthropic(apiKey string, logger *slog.Logger) *Anthropic {
	if logger == nil {
		logger = slog.Default()
	}
	return &Anthropic{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    DefaultAnthropicURL,
		maxRetries: DefaultMaxRetries,
		limiter:    newLimiter(2, 4),
		logger:     logger.With(slog.String("provider", "anthropic")),
	}
}

// WithBaseURL overrides the API base URL. Used for tests and gateways.
func (c *Anthropic) WithBaseURL(url string) *Anthropic {
	c.baseURL = strings.TrimSuffix(url, "/")
	return c
}

// Name returns the provider identifier.
func (c *Anthropic) Name() string { return "anthropic" }

// Configured reports whether an API key is set.
func (c *Anthropic) Configured() bool { return c.apiKey != "" }

func (c *Anthropic) setHeaders(req *http.Request) {
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "driftchat/0.3.0")
}

// buildRequest translates the provider-agnostic request. The Messages API
// takes the system prompt as a top-level field, not a conversation turn.
func (c *Anthropic) buildRequest(req Request, streaming bool) anthRequest {
	out := anthRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      streaming,
	}
	if out.MaxTokens <= 0 {
		out.MaxTokens = defaultAnthropicMaxTokens
	}
	for _, turn := range req.Turns {
		if turn.Role == "system" {
			if out.System != "" {
				out.System += "\n\n"
			}
			out.System += turn.Content
			continue
		}
		out.Messages = append(out.Messages, turn)
	}
	return out
}

// =============================================================================
// NON-STREAMING COMPLETION
// =============================================================================

// Complete performs a blocking messages request with retry on transient errors.
func (c *Anthropic) Complete(ctx context.Context, req Request) (*Completion, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	body := c.buildRequest(req, false)

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
				c.logger.Warn("retrying messages request",
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

func (c *Anthropic) doComplete(ctx context.Context, body anthRequest) (*Completion, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/messages", bytes.NewReader(payload))
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

	var msg anthResponse
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	var content strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return &Completion{
		Content:          content.String(),
		FinishReason:     msg.StopReason,
		PromptTokens:     msg.Usage.InputTokens,
		CompletionTokens: msg.Usage.OutputTokens,
		TotalTokens:      msg.Usage.InputTokens + msg.Usage.OutputTokens,
	}, nil
}

// =============================================================================
// STREAMING
// =============================================================================

// Stream opens a streaming messages request and returns a reader of typed lines.
func (c *Anthropic) Stream(ctx context.Context, req Request) (stream.ChunkReader, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(c.buildRequest(req, true))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("Accept", "text/event-stream")

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

// normalizeStream translates the Messages API event stream into typed
// events. Tool use blocks stream their input as JSON fragments between
// content_block_start and content_block_stop; the call is emitted at the
// block boundary. Input token counts arrive on message_start, output
// counts on message_delta.
func (c *Anthropic) normalizeStream(body io.Reader, out *eventWriter) error {
	reader := newSSEReader(body)

	var inputTokens, outputTokens *int
	var tool *pendingToolCall

	flushTool := func() error {
		if tool == nil {
			return nil
		}
		ev, ok := tool.event()
		tool = nil
		if !ok {
			return nil
		}
		return out.Emit(ev)
	}

	emitFinish := func() error {
		if err := flushTool(); err != nil {
			return err
		}
		fin := stream.FinishEvent{Authoritative: true}
		if inputTokens != nil || outputTokens != nil {
			fin.Usage = &stream.Usage{
				PromptTokens:     inputTokens,
				CompletionTokens: outputTokens,
			}
			if inputTokens != nil && outputTokens != nil {
				total := *inputTokens + *outputTokens
				fin.Usage.TotalTokens = &total
			}
		}
		return out.Emit(fin)
	}

	for {
		_, data, err := reader.ReadEvent()
		if err != nil {
			if err == io.EOF {
				return emitFinish()
			}
			return err
		}

		var ev anthStreamEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}

		switch ev.Type {
		case "message_start":
			if ev.Message != nil {
				in := ev.Message.Usage.InputTokens
				inputTokens = &in
			}

		case "content_block_start":
			if ev.ContentBlock != nil && ev.ContentBlock.Type == "tool_use" {
				tool = &pendingToolCall{id: ev.ContentBlock.ID, name: ev.ContentBlock.Name}
			}

		case "content_block_delta":
			if ev.Delta == nil {
				continue
			}
			switch ev.Delta.Type {
			case "text_delta":
				if ev.Delta.Text != "" {
					if err := out.Emit(stream.TextDelta{Value: ev.Delta.Text}); err != nil {
						return err
					}
				}
			case "input_json_delta":
				if tool != nil {
					tool.args.WriteString(ev.Delta.PartialJSON)
				}
			}

		case "content_block_stop":
			if err := flushTool(); err != nil {
				return err
			}

		case "message_delta":
			if ev.Usage != nil {
				n := ev.Usage.OutputTokens
				outputTokens = &n
			}

		case "message_stop":
			return emitFinish()

		case "error":
			if ev.Error != nil {
				return &APIError{Provider: "anthropic", Code: ev.Error.Type, Message: ev.Error.Message}
			}
			return fmt.Errorf("anthropic stream error")
		}
		// ping and unknown event types are ignored.
	}
}

// =============================================================================
// MODELS
// =============================================================================

// anthropicCatalog is the static model catalog; the Messages API has no
// public listing endpoint for API-key auth.
var anthropicCatalog = []ModelInfo{
	{ID: "claude-3-5-sonnet-latest", Name: "Claude 3.5 Sonnet", ContextSize: 200000},
	{ID: "claude-3-5-haiku-latest", Name: "Claude 3.5 Haiku", ContextSize: 200000},
	{ID: "claude-3-opus-latest", Name: "Claude 3 Opus", ContextSize: 200000},
}

// Models returns the static Anthropic model catalog.
func (c *Anthropic) Models(ctx context.Context) ([]ModelInfo, error) {
	models := make([]ModelInfo, len(anthropicCatalog))
	copy(models, anthropicCatalog)
	return models, nil
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func (c *Anthropic) handleErrorResponse(resp *http.Response, body []byte) error {
	var apiErr anthErrorResponse
	message := strings.TrimSpace(string(body))
	code := ""
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		message = apiErr.Error.Message
		code = apiErr.Error.Type
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrAuthFailed, message)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrModelNotFound, message)
	case http.StatusTooManyRequests:
		return &RateLimitError{Provider: "anthropic", RetryAfter: retryAfter(resp)}
	default:
		if code == "invalid_request_error" && strings.Contains(message, "prompt is too long") {
			return fmt.Errorf("%w: %s", ErrContextTooLong, message)
		}
		return &APIError{Provider: "anthropic", Code: code, Message: message, Status: resp.StatusCode}
	}
}
