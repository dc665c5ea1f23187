// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for driftchat.
//
// Configuration lives in TOML at ~/.driftchat/config.toml, with sensible
// defaults, environment variable overrides, and validation. A Watcher can
// reload the config live when the file changes on disk.
//
// # Configuration Precedence
//
// Settings are applied in order of precedence:
//   - Environment variables (DRIFTCHAT_*, plus the standard provider
//     key variables GROQ_API_KEY, OPENAI_API_KEY, ANTHROPIC_API_KEY)
//   - ~/.driftchat/config.toml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	model := cfg.DefaultModel
package config
