// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat REPL for the terminal (non-TUI).
//
// USABILITY: Markdown rendering and input history for a comfortable
// plain-terminal experience. The full-screen TUI lives under ui/chat;
// this command covers dumb terminals and scripted sessions.
//
// Interactive commands:
//   /help, /h           Show available commands
//   /clear, /c          Clear conversation history
//   /model [name]       Show or switch model
//   /provider [name]    Show or switch provider
//   /status, /s         Show session statistics
//   /save               Save the conversation
//   /history            Show conversation history
//   /quit, /q           Exit chat
//   Ctrl+C              Cancel current generation
//   Ctrl+D              Exit chat
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/jeranaias/driftchat/internal/config"
	"github.com/jeranaias/driftchat/internal/model"
	"github.com/jeranaias/driftchat/internal/offline"
	"github.com/jeranaias/driftchat/internal/provider"
	"github.com/jeranaias/driftchat/internal/stream"
	"github.com/jeranaias/driftchat/internal/ui/styles"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan).
			Bold(true)

	welcomeStyle = lipgloss.NewStyle().
			Foreground(styles.Purple).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)

	commandStyle = lipgloss.NewStyle().
			Foreground(styles.Emerald)

	warningStyle = lipgloss.NewStyle().
			Foreground(styles.Amber)

	errorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose).
			Bold(true)

	summaryHeaderStyle = lipgloss.NewStyle().
				Foreground(styles.Cyan).
				Bold(true)
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
// USABILITY: Supports arrow keys for history navigation and line editing.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a new ChatCLI with input history support.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	historyFile := filepath.Join(configDir, "chat_history")

	cli := &ChatCLI{
		line:        line,
		historyFile: historyFile,
	}
	cli.LoadHistory()
	return cli
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt. Non-empty
// input is appended to the history.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists command history with secure permissions.
func (c *ChatCLI) SaveHistory() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0755); err != nil {
		return
	}

	// SECURITY: History can contain sensitive prompts; owner-only.
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()

	c.line.WriteHistory(f)
}

// Close saves history and closes the liner.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// SESSION STATE
// =============================================================================

// ChatSession holds the state for an interactive chat session.
type ChatSession struct {
	App          *App
	Conversation *model.Conversation
	ProviderName string
	Model        string
	Quiet        bool

	StartTime   time.Time
	TotalTokens int
	TotalCost   float64

	// Cancel function for the in-flight stream, nil when idle. The REPL
	// goroutine installs it and the signal goroutine fires it, so every
	// access goes through the mutex.
	cancelMu sync.Mutex
	cancel   context.CancelFunc

	InputCLI *ChatCLI
}

// setCancel installs (or clears, with nil) the cancel function for the
// in-flight stream.
func (s *ChatSession) setCancel(fn context.CancelFunc) {
	s.cancelMu.Lock()
	s.cancel = fn
	s.cancelMu.Unlock()
}

// cancelInFlight fires and clears the in-flight cancel function. Returns
// false when no stream is running.
func (s *ChatSession) cancelInFlight() bool {
	s.cancelMu.Lock()
	fn := s.cancel
	s.cancel = nil
	s.cancelMu.Unlock()
	if fn == nil {
		return false
	}
	fn()
	return true
}

// NewChatSession creates a new chat session from the wired app.
func NewChatSession(app *App, args Args) *ChatSession {
	cfg := app.Config
	return &ChatSession{
		App:          app,
		Conversation: model.NewConversation(cfg.DefaultProvider, cfg.DefaultModel),
		ProviderName: cfg.DefaultProvider,
		Model:        cfg.DefaultModel,
		Quiet:        args.Quiet,
		StartTime:    time.Now(),
		InputCLI:     NewChatCLI(),
	}
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

// RunChat runs the interactive REPL and returns a process exit code.
func RunChat(args Args) int {
	app, err := NewApp(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	defer app.Close()

	session := NewChatSession(app, args)

	if offline.IsOfflineMode() && !session.Quiet {
		fmt.Fprintf(os.Stderr, "%s %s\n",
			errorStyle.Render("[OFFLINE MODE]"),
			"messages will be queued, not sent")
		fmt.Println()
	}

	if !session.Quiet {
		printWelcome(session)
	}

	defer session.InputCLI.Close()

	// First Ctrl+C cancels the in-flight stream rather than the process.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		for range sigChan {
			if session.cancelInFlight() {
				fmt.Fprintln(os.Stderr, "\n"+warningStyle.Render("[Cancelled]"))
			}
		}
	}()

	for {
		input, err := session.InputCLI.ReadInput(promptStyle.Render("driftchat> "))
		if err != nil {
			// ErrPromptAborted (Ctrl+C) or EOF (Ctrl+D): exit gracefully.
			fmt.Println()
			printExitSummary(session)
			return 0
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldContinue, err := handleSlashCommand(input, session)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
			}
			if !shouldContinue {
				printExitSummary(session)
				return 0
			}
			continue
		}

		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			printExitSummary(session)
			return 0
		}

		if err := processMessage(session, input); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
		}
	}
}

// =============================================================================
// MESSAGE PROCESSING
// =============================================================================

// processMessage sends one user message and streams the response.
func processMessage(session *ChatSession, input string) error {
	if err := offline.CheckSendAllowed(); err != nil {
		if session.App.Queue != nil {
			if _, qerr := session.App.Queue.Enqueue(session.Conversation.ID, input); qerr == nil {
				fmt.Println(warningStyle.Render("[Offline] message queued"))
				return nil
			}
		}
		return err
	}

	p, err := session.App.Registry.Get(session.ProviderName)
	if err != nil {
		return err
	}
	if !p.Configured() {
		return fmt.Errorf("%s is not configured; run `driftchat setup`", p.Name())
	}

	session.Conversation.Append(model.NewUserMessage(input))

	req := buildChatRequest(session)

	ctx, cancel := context.WithCancel(context.Background())
	session.setCancel(cancel)
	defer func() {
		session.setCancel(nil)
		cancel()
	}()

	startTime := time.Now()
	useMarkdown := isTTY() && session.App.Config.UI.Markdown

	fmt.Println()

	reader, err := p.Stream(ctx, req)
	if err != nil {
		// Drop the user message so a retry is clean.
		msgs := session.Conversation.Messages
		session.Conversation.Messages = msgs[:len(msgs)-1]
		return err
	}

	// When rendering markdown the response is collected and rendered at
	// the end; otherwise text deltas are echoed as they arrive.
	var printed int
	sink := stream.SinkFunc(func(id string, update stream.MessageUpdate) {
		if !useMarkdown && len(update.Content) > printed {
			fmt.Print(update.Content[printed:])
			printed = len(update.Content)
		}
	})

	driver := stream.NewStreamDriver(reader, stream.DriverConfig{
		Provider: p.Name(),
		Model:    req.Model,
		Sink:     sink,
		Logger:   session.App.Logger,
	})

	runErr := driver.Run(ctx)
	msg := driver.Message()

	if runErr != nil {
		msgs := session.Conversation.Messages
		session.Conversation.Messages = msgs[:len(msgs)-1]
		return fmt.Errorf("streaming failed: %w", runErr)
	}

	if useMarkdown {
		fmt.Println(renderMarkdown(msg.Content))
	} else {
		fmt.Println()
	}
	fmt.Println()

	session.Conversation.Append(msg)
	if meta := msg.ApiMetadata; meta != nil {
		session.Conversation.RecordUsage(meta)
		if session.App.Tracker != nil {
			_ = session.App.Tracker.Record(meta)
		}
		if meta.TotalTokens != nil {
			session.TotalTokens += *meta.TotalTokens
		}
		if meta.Cost != nil {
			session.TotalCost += meta.Cost.TotalCost
		}
	}

	if !session.Quiet {
		showBriefStats(session, msg.ApiMetadata, time.Since(startTime))
	}
	return nil
}

// buildChatRequest converts the conversation into a provider request,
// keeping the configured number of recent turns.
func buildChatRequest(session *ChatSession) provider.Request {
	cfg := session.App.Config
	req := provider.Request{
		Model:       session.Model,
		Temperature: cfg.Chat.Temperature,
		MaxTokens:   cfg.Chat.MaxTokens,
	}
	if sp := cfg.Chat.SystemPrompt; sp != "" {
		req.Turns = append(req.Turns, provider.Turn{Role: "system", Content: sp})
	}

	msgs := session.Conversation.Messages
	if limit := cfg.Chat.HistoryTurns; limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	for _, m := range msgs {
		if m.IsError || m.Content == "" {
			continue
		}
		switch m.Role {
		case model.RoleUser, model.RoleAssistant, model.RoleSystem:
			req.Turns = append(req.Turns, provider.Turn{
				Role:    m.Role.String(),
				Content: m.Content,
			})
		}
	}
	return req
}

// showBriefStats shows a one-line summary after each response.
func showBriefStats(session *ChatSession, meta *model.ApiUsageMetadata, elapsed time.Duration) {
	parts := []string{session.ProviderName + "/" + session.Model}
	if meta != nil && meta.TotalTokens != nil {
		parts = append(parts, fmt.Sprintf("%d tokens", *meta.TotalTokens))
	}
	parts = append(parts, elapsed.Round(time.Millisecond).String())
	if meta != nil && meta.Cost != nil {
		parts = append(parts, fmt.Sprintf("$%.4f", meta.Cost.TotalCost))
	}

	fmt.Fprintf(os.Stderr, "%s %s\n",
		infoStyle.Render("[Stats]"),
		strings.Join(parts, " | "))
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand processes slash commands.
// Returns (shouldContinue, error) where shouldContinue=false means exit.
func handleSlashCommand(cmd string, session *ChatSession) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return true, nil
	}

	command := strings.ToLower(parts[0])
	cmdArgs := parts[1:]

	switch command {
	case "/help", "/h", "/?", "/":
		printChatHelp()
		return true, nil

	case "/clear", "/c":
		session.Conversation = model.NewConversation(session.ProviderName, session.Model)
		fmt.Println(commandStyle.Render("[Conversation cleared]"))
		return true, nil

	case "/model", "/m":
		return handleModelCommand(session, cmdArgs)

	case "/provider", "/p":
		return handleProviderCommand(session, cmdArgs)

	case "/status", "/s":
		printStatus(session)
		return true, nil

	case "/save":
		return handleSaveCommand(session)

	case "/history":
		printHistory(session)
		return true, nil

	case "/quit", "/q", "/exit":
		return false, nil

	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
}

// handleModelCommand handles the /model command.
func handleModelCommand(session *ChatSession, args []string) (bool, error) {
	if len(args) == 0 {
		fmt.Printf("%s Current model: %s\n",
			infoStyle.Render("[Model]"),
			commandStyle.Render(session.Model))
		return true, nil
	}

	session.Model = args[0]
	session.Conversation.Model = session.Model
	fmt.Printf("%s Switched to model: %s\n",
		commandStyle.Render("[OK]"),
		session.Model)
	return true, nil
}

// handleProviderCommand handles the /provider command.
func handleProviderCommand(session *ChatSession, args []string) (bool, error) {
	if len(args) == 0 {
		fmt.Printf("%s Current provider: %s (configured: %s)\n",
			infoStyle.Render("[Provider]"),
			commandStyle.Render(session.ProviderName),
			strings.Join(session.App.Registry.Configured(), ", "))
		return true, nil
	}

	name := strings.ToLower(args[0])
	p, err := session.App.Registry.Get(name)
	if err != nil {
		return true, err
	}
	if !p.Configured() {
		return true, fmt.Errorf("%s has no API key; run `driftchat setup`", name)
	}

	session.ProviderName = name
	session.Conversation.Provider = name

	// Follow the provider's configured model when one is set.
	if pc := session.App.Config.Provider(name); pc.Model != "" {
		session.Model = pc.Model
		session.Conversation.Model = pc.Model
	}

	fmt.Printf("%s Switched to provider: %s (%s)\n",
		commandStyle.Render("[OK]"),
		name,
		session.Model)
	return true, nil
}

// handleSaveCommand persists the conversation to the store.
func handleSaveCommand(session *ChatSession) (bool, error) {
	if session.Conversation.MessageCount() == 0 {
		return true, fmt.Errorf("nothing to save")
	}
	session.Conversation.DeriveTitle()
	if err := session.App.Store.Save(session.Conversation); err != nil {
		return true, err
	}
	fmt.Printf("%s Saved conversation %s\n",
		commandStyle.Render("[OK]"),
		session.Conversation.ID[:8])
	return true, nil
}

// =============================================================================
// DISPLAY FUNCTIONS
// =============================================================================

// printWelcome prints the welcome banner.
func printWelcome(session *ChatSession) {
	fmt.Println()
	fmt.Println(welcomeStyle.Render("driftchat interactive chat"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 30)))
	fmt.Printf("%s %s\n",
		infoStyle.Render("Provider:"),
		commandStyle.Render(session.ProviderName))
	fmt.Printf("%s %s\n",
		infoStyle.Render("Model:"),
		commandStyle.Render(session.Model))

	configured := session.App.Registry.Configured()
	if len(configured) == 0 {
		fmt.Printf("%s %s\n",
			infoStyle.Render("Keys:"),
			warningStyle.Render("none configured (run `driftchat setup`)"))
	}

	fmt.Println()
	fmt.Println(infoStyle.Render("Type your message and press Enter. Commands: /help, /quit"))
	fmt.Println()
}

// printChatHelp prints available commands.
func printChatHelp() {
	fmt.Println()
	fmt.Println(summaryHeaderStyle.Render("Available Commands"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 20)))
	fmt.Println()

	commands := []struct {
		cmd  string
		desc string
	}{
		{"/help, /h", "Show this help"},
		{"/clear, /c", "Clear conversation history"},
		{"/model [name]", "Show or switch model"},
		{"/provider [name]", "Show or switch provider"},
		{"/status, /s", "Show session statistics"},
		{"/save", "Save the conversation"},
		{"/history", "Show conversation history"},
		{"/quit, /q", "Exit chat"},
	}

	for _, c := range commands {
		fmt.Printf("  %s  %s\n",
			commandStyle.Render(fmt.Sprintf("%-18s", c.cmd)),
			infoStyle.Render(c.desc))
	}

	fmt.Println()
	fmt.Println(infoStyle.Render("Tip: Ctrl+C cancels current generation, Ctrl+D exits"))
	fmt.Println()
}

// printStatus prints session statistics.
func printStatus(session *ChatSession) {
	elapsed := time.Since(session.StartTime).Round(time.Second)

	fmt.Println()
	fmt.Println(summaryHeaderStyle.Render("Session Status"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 20)))
	fmt.Println()

	fmt.Printf("  %s %s/%s\n",
		infoStyle.Render("Target:"),
		session.ProviderName,
		commandStyle.Render(session.Model))
	fmt.Printf("  %s %s\n",
		infoStyle.Render("Duration:"),
		elapsed.String())
	fmt.Printf("  %s %d messages\n",
		infoStyle.Render("History:"),
		session.Conversation.MessageCount())
	fmt.Printf("  %s %d\n",
		infoStyle.Render("Tokens:"),
		session.TotalTokens)
	fmt.Printf("  %s $%.4f\n",
		infoStyle.Render("Cost:"),
		session.TotalCost)

	if offline.IsOfflineMode() {
		fmt.Printf("  %s %s\n",
			infoStyle.Render("Mode:"),
			warningStyle.Render("offline"))
		if session.App.Queue != nil {
			fmt.Printf("  %s %d\n",
				infoStyle.Render("Queued:"),
				session.App.Queue.Len())
		}
	}

	fmt.Println()
}

// printHistory prints the conversation so far, truncated per message.
func printHistory(session *ChatSession) {
	if session.Conversation.MessageCount() == 0 {
		fmt.Println(infoStyle.Render("[No messages yet]"))
		return
	}

	fmt.Println()
	fmt.Println(summaryHeaderStyle.Render("Conversation History"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 25)))
	fmt.Println()

	for i, msg := range session.Conversation.Messages {
		role := msg.Role.DisplayName()
		switch msg.Role {
		case model.RoleUser:
			role = lipgloss.NewStyle().Foreground(styles.Cyan).Render(role)
		case model.RoleAssistant:
			role = lipgloss.NewStyle().Foreground(styles.Purple).Render(role)
		case model.RoleSystem:
			role = lipgloss.NewStyle().Foreground(styles.Amber).Render(role)
		}

		// Rune-based truncation for Unicode safety.
		content := msg.Content
		runes := []rune(content)
		if len(runes) > 100 {
			content = string(runes[:100]) + "..."
		}
		content = strings.ReplaceAll(content, "\n", " ")

		fmt.Printf("  %d. %s: %s\n", i+1, role, content)
	}

	fmt.Println()
}

// printExitSummary prints the session summary on exit.
func printExitSummary(session *ChatSession) {
	if session.Conversation.MessageCount() == 0 {
		fmt.Println(infoStyle.Render("Goodbye!"))
		return
	}

	elapsed := time.Since(session.StartTime).Round(time.Second)

	fmt.Println()
	fmt.Println(summaryHeaderStyle.Render("Session Summary"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 15)))

	fmt.Printf("  %s %d\n",
		infoStyle.Render("Messages:"),
		session.Conversation.MessageCount())
	fmt.Printf("  %s %d\n",
		infoStyle.Render("Tokens:"),
		session.TotalTokens)
	fmt.Printf("  %s $%.4f\n",
		infoStyle.Render("Cost:"),
		session.TotalCost)
	fmt.Printf("  %s %s\n",
		infoStyle.Render("Duration:"),
		elapsed.String())

	fmt.Println()
	fmt.Println(infoStyle.Render("Goodbye!"))
}
