// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Config show/set/path subcommands.
//
// Settable keys use dotted paths mirroring the TOML layout, e.g.
//   driftchat config set chat.temperature 0.9
//   driftchat config set ui.theme light
//   driftchat config set default_provider anthropic
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jeranaias/driftchat/internal/config"
)

// RunConfig dispatches the config subcommands.
func RunConfig(args Args) int {
	switch args.Subcommand {
	case "", "show":
		return configShow(args)
	case "set":
		return configSet(args)
	case "path":
		return configPath()
	default:
		fmt.Fprintf(os.Stderr, "unknown config subcommand: %s (want show|set|path)\n", args.Subcommand)
		return 1
	}
}

func configShow(args Args) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	// SECURITY: Never print stored API keys; show presence only.
	redacted := *cfg
	redacted.Providers.Groq.APIKey = redactKey(cfg.Providers.Groq.APIKey)
	redacted.Providers.OpenAI.APIKey = redactKey(cfg.Providers.OpenAI.APIKey)
	redacted.Providers.Anthropic.APIKey = redactKey(cfg.Providers.Anthropic.APIKey)

	out, err := json.MarshalIndent(&redacted, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	fmt.Println(string(out))
	return 0
}

func redactKey(key string) string {
	if key == "" {
		return ""
	}
	return "(set)"
}

func configSet(args Args) int {
	if args.ConfigKey == "" || args.ConfigVal == "" {
		fmt.Fprintln(os.Stderr, "usage: driftchat config set KEY VALUE")
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	if err := applyConfigKey(cfg, args.ConfigKey, args.ConfigVal); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	fmt.Printf("%s = %s\n", strings.ToLower(args.ConfigKey), args.ConfigVal)
	return 0
}

// applyConfigKey sets one dotted-path key on the config.
func applyConfigKey(cfg *config.Config, key, val string) error {
	switch strings.ToLower(key) {
	case "default_provider", "provider":
		cfg.DefaultProvider = strings.ToLower(val)
		cfg.SetDefaults()
	case "default_model", "model":
		cfg.DefaultModel = val
	case "chat.system_prompt":
		cfg.Chat.SystemPrompt = val
	case "chat.temperature":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid temperature %q", val)
		}
		cfg.Chat.Temperature = f
	case "chat.max_tokens":
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid max_tokens %q", val)
		}
		cfg.Chat.MaxTokens = n
	case "chat.history_turns":
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid history_turns %q", val)
		}
		cfg.Chat.HistoryTurns = n
	case "ui.theme":
		cfg.UI.Theme = strings.ToLower(val)
	case "ui.show_cost":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid show_cost %q", val)
		}
		cfg.UI.ShowCost = b
	case "ui.show_tokens":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid show_tokens %q", val)
		}
		cfg.UI.ShowTokens = b
	case "ui.markdown":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid markdown %q", val)
		}
		cfg.UI.Markdown = b
	case "offline.enabled":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid offline.enabled %q", val)
		}
		cfg.Offline.Enabled = b
	case "storage.max_conversations":
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid max_conversations %q", val)
		}
		cfg.Storage.MaxConversations = n
	case "providers.groq.model":
		cfg.Providers.Groq.Model = val
	case "providers.openai.model":
		cfg.Providers.OpenAI.Model = val
	case "providers.anthropic.model":
		cfg.Providers.Anthropic.Model = val
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}

func configPath() int {
	path, err := config.ConfigPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	fmt.Println(path)
	return 0
}
