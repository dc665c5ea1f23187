// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - Single query command. Streams the answer to stdout and
// prints a usage footer when tokens were reported.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"github.com/jeranaias/driftchat/internal/model"
	"github.com/jeranaias/driftchat/internal/offline"
	"github.com/jeranaias/driftchat/internal/provider"
	"github.com/jeranaias/driftchat/internal/stream"
)

// askTimeout bounds one ask invocation end to end.
const askTimeout = 5 * time.Minute

// markdownRenderer is the glamour renderer for final markdown output.
var markdownRenderer *glamour.TermRenderer

func init() {
	var err error
	markdownRenderer, err = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		markdownRenderer = nil
	}
}

// renderMarkdown renders markdown for terminal display, falling back to
// the raw text on error.
func renderMarkdown(content string) string {
	if markdownRenderer == nil {
		return content
	}
	rendered, err := markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// isTTY reports whether stdout is a terminal. Markdown re-rendering is
// skipped for piped output.
func isTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// askResult is the --json output shape.
type askResult struct {
	Provider         string   `json:"provider"`
	Model            string   `json:"model"`
	Content          string   `json:"content"`
	PromptTokens     *int     `json:"prompt_tokens,omitempty"`
	CompletionTokens *int     `json:"completion_tokens,omitempty"`
	TotalTokens      *int     `json:"total_tokens,omitempty"`
	CostUSD          *float64 `json:"cost_usd,omitempty"`
	ResponseSeconds  float64  `json:"response_seconds"`
}

// RunAsk executes the ask command and returns a process exit code.
func RunAsk(args Args) int {
	if args.Query == "" {
		fmt.Fprintln(os.Stderr, "usage: driftchat ask \"question\"")
		return 1
	}

	app, err := NewApp(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	defer app.Close()

	if err := offline.CheckSendAllowed(); err != nil {
		if app.Queue != nil {
			if _, qerr := app.Queue.Enqueue("", args.Query); qerr == nil {
				fmt.Fprintln(os.Stderr, "offline: message queued")
				return 0
			}
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	p, err := app.Registry.Get(app.Config.DefaultProvider)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	if !p.Configured() {
		fmt.Fprintf(os.Stderr, "error: %s is not configured; run `driftchat setup`\n", p.Name())
		return 1
	}

	req := provider.Request{
		Model:       app.Config.DefaultModel,
		Temperature: app.Config.Chat.Temperature,
		MaxTokens:   app.Config.Chat.MaxTokens,
	}
	if sp := app.Config.Chat.SystemPrompt; sp != "" {
		req.Turns = append(req.Turns, provider.Turn{Role: "system", Content: sp})
	}
	req.Turns = append(req.Turns, provider.Turn{Role: "user", Content: args.Query})

	ctx, cancel := context.WithTimeout(context.Background(), askTimeout)
	defer cancel()

	msg, err := streamToStdout(ctx, p, req, app, !args.JSON && !args.Quiet)
	if err != nil {
		fmt.Fprintln(os.Stderr, "\nerror:", err)
		return 1
	}

	if args.JSON {
		return printAskJSON(p.Name(), req.Model, msg)
	}

	// Re-render the full response as markdown on a TTY.
	if isTTY() && msg.Content != "" {
		fmt.Print("\r\033[2K") // clear the partially styled line
		fmt.Println(renderMarkdown(msg.Content))
	}

	if !args.Quiet {
		printUsageFooter(msg.ApiMetadata)
	}
	return 0
}

// streamToStdout consumes the response stream, echoing text deltas as
// they arrive when echo is set. Returns the assembled message.
func streamToStdout(ctx context.Context, p provider.Provider, req provider.Request, app *App, echo bool) (*model.Message, error) {
	reader, err := p.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	var printed int
	sink := stream.SinkFunc(func(id string, update stream.MessageUpdate) {
		if echo && len(update.Content) > printed {
			fmt.Print(update.Content[printed:])
			printed = len(update.Content)
		}
	})

	driver := stream.NewStreamDriver(reader, stream.DriverConfig{
		Provider: p.Name(),
		Model:    req.Model,
		Sink:     sink,
		Logger:   app.Logger,
	})

	runErr := driver.Run(ctx)
	msg := driver.Message()

	if echo && printed > 0 {
		fmt.Println()
	}

	if msg.ApiMetadata != nil && app.Tracker != nil {
		_ = app.Tracker.Record(msg.ApiMetadata)
	}

	if runErr != nil {
		// Partial content was already echoed; surface the failure.
		return msg, runErr
	}
	return msg, nil
}

func printAskJSON(providerName, modelName string, msg *model.Message) int {
	result := askResult{
		Provider: providerName,
		Model:    modelName,
		Content:  msg.Content,
	}
	if meta := msg.ApiMetadata; meta != nil {
		result.PromptTokens = meta.PromptTokens
		result.CompletionTokens = meta.CompletionTokens
		result.TotalTokens = meta.TotalTokens
		if meta.Cost != nil {
			cost := meta.Cost.TotalCost
			result.CostUSD = &cost
		}
		result.ResponseSeconds = meta.ResponseTime.Seconds()
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	fmt.Println(string(out))
	return 0
}

// printUsageFooter writes a one-line usage summary to stderr.
func printUsageFooter(meta *model.ApiUsageMetadata) {
	if meta == nil {
		return
	}
	line := ""
	if meta.TotalTokens != nil {
		line += fmt.Sprintf("%d tokens", *meta.TotalTokens)
	}
	if meta.Cost != nil {
		if line != "" {
			line += " | "
		}
		line += fmt.Sprintf("$%.4f", meta.Cost.TotalCost)
	}
	if meta.ResponseTime > 0 {
		if line != "" {
			line += " | "
		}
		line += fmt.Sprintf("%.1fs", meta.ResponseTime.Seconds())
	}
	if line != "" {
		fmt.Fprintln(os.Stderr, line)
	}
}
