// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and command dispatch for driftchat.
package cli

import (
	"fmt"
	"os"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdAsk
	CmdChat
	CmdStatus
	CmdConfig
	CmdSetup
	CmdSession
	CmdUsage
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet    bool
	Verbose  bool
	JSON     bool // Output in JSON format
	Offline  bool // Start in offline mode; messages are queued
	Provider string
	Model    string

	// Command-specific
	Query      string
	Subcommand string
	ConfigKey  string
	ConfigVal  string

	// Raw args (remaining after flag parsing)
	Raw []string
}

const usageText = `driftchat - streaming LLM chat for the terminal

Driftchat talks to Groq, OpenAI, and Anthropic with one wire format,
tracks token usage and cost per response, and keeps conversations on
disk.

Usage:
  driftchat                    Start TUI (default)
  driftchat ask "question"     Ask a single question
  driftchat chat               Interactive line-mode chat
  driftchat status, s          Show provider and storage status
  driftchat config [show|set|path]  Configuration
  driftchat setup              First-run wizard (stores API keys encrypted)
  driftchat session [list|show|export|delete|search]  Saved conversations
  driftchat usage [report|prune]    Usage history and cost reporting
  driftchat version            Show version
  driftchat help               Show this help

Global flags:
  -p, --provider NAME   Use a specific provider (groq, openai, anthropic)
  -m, --model NAME      Use a specific model (overrides config)
  --offline             Start in offline mode; outgoing messages are queued
  --json                Output in JSON format where supported
  -q, --quiet           Minimal output
  -v, --verbose         Verbose output (debug logging)

Ask examples:
  driftchat ask "What is a goroutine?"
  driftchat -p anthropic ask "Summarize this trade-off"
  driftchat --json ask "List three sorting algorithms"

Session examples:
  driftchat session list
  driftchat session export 1 --format md
  driftchat session search "goroutine"

Usage examples:
  driftchat usage report --days 30
  driftchat usage prune --days 90
`

// Parse parses os.Args into a command and its arguments.
func Parse() (Command, Args) {
	return parseArgs(os.Args[1:])
}

func parseArgs(argv []string) (Command, Args) {
	remaining, args := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdTUI, args
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	args.Raw = remaining

	switch cmd {
	case "tui":
		return CmdTUI, args

	case "ask":
		parseAskArgs(&args, remaining)
		return CmdAsk, args

	case "chat":
		return CmdChat, args

	case "status", "s":
		return CmdStatus, args

	case "config":
		parseConfigArgs(&args, remaining)
		return CmdConfig, args

	case "setup":
		return CmdSetup, args

	case "session", "sessions":
		parseSubcommand(&args, remaining)
		return CmdSession, args

	case "usage":
		parseSubcommand(&args, remaining)
		return CmdUsage, args

	case "version", "--version", "-V":
		return CmdVersion, args

	case "help", "--help", "-h":
		return CmdHelp, args

	default:
		// Bare text is treated as an ask query.
		args.Query = strings.Join(append([]string{cmd}, remaining...), " ")
		return CmdAsk, args
	}
}

// parseGlobalFlags strips global flags from anywhere in the argument
// list and returns the remainder in order.
func parseGlobalFlags(argv []string) ([]string, Args) {
	var args Args
	var remaining []string

	for i := 0; i < len(argv); i++ {
		switch argv[i] {
		case "-q", "--quiet":
			args.Quiet = true
		case "-v", "--verbose":
			args.Verbose = true
		case "--json":
			args.JSON = true
		case "--offline":
			args.Offline = true
		case "-p", "--provider":
			if i+1 < len(argv) {
				i++
				args.Provider = argv[i]
			}
		case "-m", "--model":
			if i+1 < len(argv) {
				i++
				args.Model = argv[i]
			}
		default:
			remaining = append(remaining, argv[i])
		}
	}
	return remaining, args
}

// parseAskArgs joins the remaining arguments into the query.
func parseAskArgs(args *Args, remaining []string) {
	args.Query = strings.Join(remaining, " ")
}

// parseConfigArgs handles `config [show|set KEY VALUE|path]`.
func parseConfigArgs(args *Args, remaining []string) {
	if len(remaining) == 0 {
		args.Subcommand = "show"
		return
	}
	args.Subcommand = strings.ToLower(remaining[0])
	if args.Subcommand == "set" {
		if len(remaining) > 1 {
			args.ConfigKey = remaining[1]
		}
		if len(remaining) > 2 {
			args.ConfigVal = strings.Join(remaining[2:], " ")
		}
	}
}

// parseSubcommand records the first remaining arg as the subcommand.
func parseSubcommand(args *Args, remaining []string) {
	if len(remaining) > 0 {
		args.Subcommand = strings.ToLower(remaining[0])
		args.Raw = remaining[1:]
	}
}

// PrintUsage writes the top-level help text.
func PrintUsage() {
	fmt.Print(usageText)
}

// PrintVersion writes version information.
func PrintVersion() {
	fmt.Printf("driftchat %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
}
