// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Tests for CLI argument parsing: command dispatch, global flag
// stripping, and subcommand argument handling.
package cli

import (
	"testing"

	"github.com/jeranaias/driftchat/internal/config"
)

// =============================================================================
// COMMAND DISPATCH TESTS
// =============================================================================

func TestParseArgs_CommandDispatch(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		want Command
	}{
		{"no args launches TUI", nil, CmdTUI},
		{"explicit tui", []string{"tui"}, CmdTUI},
		{"ask", []string{"ask", "hello"}, CmdAsk},
		{"chat", []string{"chat"}, CmdChat},
		{"status", []string{"status"}, CmdStatus},
		{"status alias", []string{"s"}, CmdStatus},
		{"config", []string{"config"}, CmdConfig},
		{"setup", []string{"setup"}, CmdSetup},
		{"session", []string{"session", "list"}, CmdSession},
		{"sessions alias", []string{"sessions"}, CmdSession},
		{"usage", []string{"usage", "report"}, CmdUsage},
		{"version", []string{"version"}, CmdVersion},
		{"version flag", []string{"--version"}, CmdVersion},
		{"help", []string{"help"}, CmdHelp},
		{"help flag", []string{"-h"}, CmdHelp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, _ := parseArgs(tt.argv)
			if cmd != tt.want {
				t.Errorf("parseArgs(%v) = %v, want %v", tt.argv, cmd, tt.want)
			}
		})
	}
}

func TestParseArgs_BareTextIsAskQuery(t *testing.T) {
	cmd, args := parseArgs([]string{"what", "is", "a", "goroutine"})
	if cmd != CmdAsk {
		t.Fatalf("cmd = %v, want CmdAsk", cmd)
	}
	if args.Query != "what is a goroutine" {
		t.Errorf("Query = %q, want %q", args.Query, "what is a goroutine")
	}
}

func TestParseArgs_AskJoinsQuery(t *testing.T) {
	cmd, args := parseArgs([]string{"ask", "explain", "channels"})
	if cmd != CmdAsk {
		t.Fatalf("cmd = %v, want CmdAsk", cmd)
	}
	if args.Query != "explain channels" {
		t.Errorf("Query = %q, want %q", args.Query, "explain channels")
	}
}

// =============================================================================
// GLOBAL FLAG TESTS
// =============================================================================

func TestParseGlobalFlags_StripsFromAnywhere(t *testing.T) {
	remaining, args := parseGlobalFlags([]string{
		"-p", "anthropic", "ask", "--json", "hello", "-q",
	})

	if args.Provider != "anthropic" {
		t.Errorf("Provider = %q, want anthropic", args.Provider)
	}
	if !args.JSON {
		t.Error("JSON should be true")
	}
	if !args.Quiet {
		t.Error("Quiet should be true")
	}
	if len(remaining) != 2 || remaining[0] != "ask" || remaining[1] != "hello" {
		t.Errorf("remaining = %v, want [ask hello]", remaining)
	}
}

func TestParseGlobalFlags_ModelAndOffline(t *testing.T) {
	_, args := parseGlobalFlags([]string{"--offline", "-m", "gpt-4o-mini", "-v"})

	if !args.Offline {
		t.Error("Offline should be true")
	}
	if args.Model != "gpt-4o-mini" {
		t.Errorf("Model = %q, want gpt-4o-mini", args.Model)
	}
	if !args.Verbose {
		t.Error("Verbose should be true")
	}
}

func TestParseGlobalFlags_ValueFlagAtEndIsIgnored(t *testing.T) {
	// Trailing -p with no value should not panic or consume anything.
	remaining, args := parseGlobalFlags([]string{"status", "-p"})
	if args.Provider != "" {
		t.Errorf("Provider = %q, want empty", args.Provider)
	}
	if len(remaining) != 1 || remaining[0] != "status" {
		t.Errorf("remaining = %v, want [status]", remaining)
	}
}

// =============================================================================
// SUBCOMMAND ARG TESTS
// =============================================================================

func TestParseConfigArgs(t *testing.T) {
	tests := []struct {
		name    string
		argv    []string
		wantSub string
		wantKey string
		wantVal string
	}{
		{"bare config shows", []string{"config"}, "show", "", ""},
		{"explicit show", []string{"config", "show"}, "show", "", ""},
		{"path", []string{"config", "path"}, "path", "", ""},
		{"set key value", []string{"config", "set", "ui.theme", "light"}, "set", "ui.theme", "light"},
		{"set joins multiword value", []string{"config", "set", "chat.system_prompt", "be", "brief"}, "set", "chat.system_prompt", "be brief"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args := parseArgs(tt.argv)
			if cmd != CmdConfig {
				t.Fatalf("cmd = %v, want CmdConfig", cmd)
			}
			if args.Subcommand != tt.wantSub {
				t.Errorf("Subcommand = %q, want %q", args.Subcommand, tt.wantSub)
			}
			if args.ConfigKey != tt.wantKey {
				t.Errorf("ConfigKey = %q, want %q", args.ConfigKey, tt.wantKey)
			}
			if args.ConfigVal != tt.wantVal {
				t.Errorf("ConfigVal = %q, want %q", args.ConfigVal, tt.wantVal)
			}
		})
	}
}

func TestParseSubcommand_SessionExport(t *testing.T) {
	cmd, args := parseArgs([]string{"session", "export", "1", "--format", "md"})
	if cmd != CmdSession {
		t.Fatalf("cmd = %v, want CmdSession", cmd)
	}
	if args.Subcommand != "export" {
		t.Errorf("Subcommand = %q, want export", args.Subcommand)
	}
	if len(args.Raw) != 3 || args.Raw[0] != "1" {
		t.Errorf("Raw = %v, want [1 --format md]", args.Raw)
	}
}

func TestParseDaysFlag(t *testing.T) {
	if got := parseDaysFlag([]string{"--days", "7"}, 30); got != 7 {
		t.Errorf("parseDaysFlag = %d, want 7", got)
	}
	if got := parseDaysFlag([]string{"--days", "bogus"}, 30); got != 30 {
		t.Errorf("parseDaysFlag with bad value = %d, want fallback 30", got)
	}
	if got := parseDaysFlag(nil, 30); got != 30 {
		t.Errorf("parseDaysFlag nil = %d, want fallback 30", got)
	}
}

// =============================================================================
// CONFIG SET KEY TESTS
// =============================================================================

func TestApplyConfigKey(t *testing.T) {
	cfg := config.Default()

	if err := applyConfigKey(cfg, "ui.theme", "light"); err != nil {
		t.Fatalf("applyConfigKey theme: %v", err)
	}
	if cfg.UI.Theme != "light" {
		t.Errorf("Theme = %q, want light", cfg.UI.Theme)
	}

	if err := applyConfigKey(cfg, "chat.temperature", "0.9"); err != nil {
		t.Fatalf("applyConfigKey temperature: %v", err)
	}
	if cfg.Chat.Temperature != 0.9 {
		t.Errorf("Temperature = %v, want 0.9", cfg.Chat.Temperature)
	}

	if err := applyConfigKey(cfg, "ui.show_cost", "false"); err != nil {
		t.Fatalf("applyConfigKey show_cost: %v", err)
	}
	if cfg.UI.ShowCost {
		t.Error("ShowCost should be false")
	}

	if err := applyConfigKey(cfg, "chat.temperature", "hot"); err == nil {
		t.Error("expected error for non-numeric temperature")
	}
	if err := applyConfigKey(cfg, "no.such.key", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
}
