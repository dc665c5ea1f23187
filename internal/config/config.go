// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURE
// =============================================================================

// Config is the root driftchat configuration.
type Config struct {
	Version         string `toml:"version" json:"version"`
	DefaultProvider string `toml:"default_provider" json:"default_provider"`
	DefaultModel    string `toml:"default_model" json:"default_model"`

	Providers ProvidersConfig `toml:"providers" json:"providers"`
	Chat      ChatConfig      `toml:"chat" json:"chat"`
	Storage   StorageConfig   `toml:"storage" json:"storage"`
	UI        UIConfig        `toml:"ui" json:"ui"`
	Offline   OfflineConfig   `toml:"offline" json:"offline"`
}

// ProvidersConfig holds per-backend settings. API keys set here are a
// plaintext fallback; the encrypted keystore takes precedence.
type ProvidersConfig struct {
	Groq      ProviderConfig `toml:"groq" json:"groq"`
	OpenAI    ProviderConfig `toml:"openai" json:"openai"`
	Anthropic ProviderConfig `toml:"anthropic" json:"anthropic"`
}

// ProviderConfig configures one backend.
type ProviderConfig struct {
	// APIKey is the plaintext key fallback. Prefer `driftchat setup`,
	// which stores keys encrypted.
	APIKey string `toml:"api_key" json:"api_key"`
	// BaseURL overrides the default endpoint (gateways, proxies).
	BaseURL string `toml:"base_url" json:"base_url"`
	// Model is this provider's default model.
	Model string `toml:"model" json:"model"`
}

// ChatConfig controls request construction.
type ChatConfig struct {
	// SystemPrompt is prepended to every conversation when set.
	SystemPrompt string `toml:"system_prompt" json:"system_prompt"`
	// Temperature is the sampling temperature (0 uses provider default).
	Temperature float64 `toml:"temperature" json:"temperature"`
	// MaxTokens caps the response length (0 uses provider default).
	MaxTokens int `toml:"max_tokens" json:"max_tokens"`
	// HistoryTurns limits how many prior turns are sent (0 = all).
	HistoryTurns int `toml:"history_turns" json:"history_turns"`
}

// StorageConfig controls persistence locations and limits.
type StorageConfig struct {
	// Dir is the data directory. Default: ~/.driftchat
	Dir string `toml:"dir" json:"dir"`
	// MaxConversations prunes oldest conversations past this count.
	MaxConversations int `toml:"max_conversations" json:"max_conversations"`
	// UsageRetentionDays prunes usage history past this age (0 = keep all).
	UsageRetentionDays int `toml:"usage_retention_days" json:"usage_retention_days"`
}

// UIConfig contains display configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme" json:"theme"`
	// ShowCost displays cost information after responses.
	ShowCost bool `toml:"show_cost" json:"show_cost"`
	// ShowTokens displays token counts after responses.
	ShowTokens bool `toml:"show_tokens" json:"show_tokens"`
	// Markdown renders assistant messages as formatted markdown.
	Markdown bool `toml:"markdown" json:"markdown"`
	// CompactMode uses a denser chat layout.
	CompactMode bool `toml:"compact_mode" json:"compact_mode"`
}

// OfflineConfig controls offline-mode behavior.
type OfflineConfig struct {
	// Enabled starts the client in offline mode.
	Enabled bool `toml:"enabled" json:"enabled"`
	// QueuePath overrides the send queue location.
	QueuePath string `toml:"queue_path" json:"queue_path"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version:         "1.0.0",
		DefaultProvider: "groq",
		DefaultModel:    "llama-3.1-8b-instant",

		Providers: ProvidersConfig{
			Groq:      ProviderConfig{Model: "llama-3.1-8b-instant"},
			OpenAI:    ProviderConfig{Model: "gpt-4o-mini"},
			Anthropic: ProviderConfig{Model: "claude-3-5-haiku-latest"},
		},

		Chat: ChatConfig{
			Temperature:  0.7,
			HistoryTurns: 40,
		},

		Storage: StorageConfig{
			MaxConversations:   100,
			UsageRetentionDays: 90,
		},

		UI: UIConfig{
			Theme:      "dark",
			ShowCost:   true,
			ShowTokens: true,
			Markdown:   true,
		},
	}
}

// =============================================================================
// PATH HELPERS
// =============================================================================

// ConfigDir returns the driftchat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".driftchat"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// DataDir resolves the configured data directory, falling back to the
// config directory.
func (c *Config) DataDir() (string, error) {
	if c.Storage.Dir != "" {
		return c.Storage.Dir, nil
	}
	return ConfigDir()
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load reads the config file if present, then applies environment
// overrides, defaults, and validation. A missing file is not an error;
// defaults are used.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from an explicit file path.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config: %w", err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to the default path.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveToPath(cfg, path)
}

// SaveToPath writes the configuration as TOML.
// SECURITY: 0600 permissions; the file may hold API key fallbacks.
func SaveToPath(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	fmt.Fprintln(file, "# driftchat configuration file")
	fmt.Fprintln(file, "# Generated by driftchat - edit with care")
	fmt.Fprintln(file, "")

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variables on top of the loaded
// config.
//
// Supported variables:
//   - DRIFTCHAT_PROVIDER: overrides default_provider
//   - DRIFTCHAT_MODEL: overrides default_model
//   - DRIFTCHAT_OFFLINE: "1" or "true" starts in offline mode
//   - DRIFTCHAT_THEME: overrides ui.theme
//   - GROQ_API_KEY, OPENAI_API_KEY, ANTHROPIC_API_KEY: provider keys
func (c *Config) ApplyEnvOverrides() {
	if provider := os.Getenv("DRIFTCHAT_PROVIDER"); provider != "" {
		c.DefaultProvider = strings.ToLower(provider)
	}
	if model := os.Getenv("DRIFTCHAT_MODEL"); model != "" {
		c.DefaultModel = model
	}
	if offline := os.Getenv("DRIFTCHAT_OFFLINE"); offline != "" {
		c.Offline.Enabled = offline == "1" || strings.EqualFold(offline, "true")
	}
	if theme := os.Getenv("DRIFTCHAT_THEME"); theme != "" {
		c.UI.Theme = strings.ToLower(theme)
	}

	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		c.Providers.Groq.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.Providers.OpenAI.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.Providers.Anthropic.APIKey = key
	}
}

// =============================================================================
// DEFAULTS / VALIDATION
// =============================================================================

// SetDefaults fills empty fields a partial config file may have omitted.
func (c *Config) SetDefaults() {
	def := Default()
	if c.DefaultProvider == "" {
		c.DefaultProvider = def.DefaultProvider
	}
	if c.DefaultModel == "" {
		c.DefaultModel = c.Provider(c.DefaultProvider).Model
	}
	if c.DefaultModel == "" {
		c.DefaultModel = def.DefaultModel
	}
	if c.UI.Theme == "" {
		c.UI.Theme = def.UI.Theme
	}
	if c.Chat.HistoryTurns == 0 {
		c.Chat.HistoryTurns = def.Chat.HistoryTurns
	}
	if c.Storage.MaxConversations == 0 {
		c.Storage.MaxConversations = def.Storage.MaxConversations
	}
}

// knownProviders are the backends driftchat can talk to.
var knownProviders = map[string]bool{
	"groq":      true,
	"openai":    true,
	"anthropic": true,
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	var errs []error

	if !knownProviders[c.DefaultProvider] {
		errs = append(errs, fmt.Errorf("unknown default_provider %q", c.DefaultProvider))
	}
	switch c.UI.Theme {
	case "dark", "light", "auto":
	default:
		errs = append(errs, fmt.Errorf("invalid ui.theme %q (want dark, light, or auto)", c.UI.Theme))
	}
	if c.Chat.Temperature < 0 || c.Chat.Temperature > 2 {
		errs = append(errs, fmt.Errorf("chat.temperature %v out of range [0, 2]", c.Chat.Temperature))
	}
	if c.Chat.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("chat.max_tokens must not be negative"))
	}
	if c.Storage.MaxConversations < 0 {
		errs = append(errs, fmt.Errorf("storage.max_conversations must not be negative"))
	}

	return errors.Join(errs...)
}

// Provider returns the named provider's settings.
func (c *Config) Provider(name string) ProviderConfig {
	switch strings.ToLower(name) {
	case "groq":
		return c.Providers.Groq
	case "openai":
		return c.Providers.OpenAI
	case "anthropic":
		return c.Providers.Anthropic
	default:
		return ProviderConfig{}
	}
}
