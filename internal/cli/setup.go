// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// setup.go - First-run wizard for driftchat.
//
// The wizard walks through:
//   1. API key entry for each provider (stored encrypted in the keystore)
//   2. Default provider and model selection
//   3. UI preferences (theme, cost display)
//   4. Config file creation
package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/jeranaias/driftchat/internal/config"
	"github.com/jeranaias/driftchat/internal/keystore"
)

// knownProviders is the setup ordering for key prompts.
var knownProviders = []string{"groq", "openai", "anthropic"}

// keystoreDir is where encrypted API keys live under the data dir.
func keystoreDir(dataDir string) string {
	return filepath.Join(dataDir, "keys")
}

// providerModels maps each provider to a sensible default model, offered
// during setup when the user does not name one.
var providerModels = map[string]string{
	"groq":      "llama-3.1-8b-instant",
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-3-5-haiku-latest",
}

// RunSetup runs the interactive setup wizard and returns an exit code.
func RunSetup(args Args) int {
	fmt.Println()
	fmt.Println("driftchat setup")
	fmt.Println(strings.Repeat("─", 15))
	fmt.Println()

	cfg, err := config.Load()
	if err != nil {
		// A malformed file should not block setup; start fresh.
		fmt.Fprintln(os.Stderr, "warning: existing config ignored:", err)
		cfg = config.Default()
	}

	dataDir, err := cfg.DataDir()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	ks, err := openSetupKeystore(dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: keystore:", err)
		return 1
	}

	// ==========================================================================
	// Step 1: API keys
	// ==========================================================================
	fmt.Println("Step 1: API keys (stored encrypted; press Enter to skip)")
	fmt.Println()

	configured := make([]string, 0, len(knownProviders))
	for _, name := range knownProviders {
		if existing, err := ks.Get(name); err == nil && existing != "" {
			if !promptYesNo(fmt.Sprintf("  %s key already stored, replace?", name), false) {
				configured = append(configured, name)
				continue
			}
		}
		key := promptSecure(fmt.Sprintf("  %s API key", name))
		if key == "" {
			continue
		}
		if err := ks.Set(name, key); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not store %s key: %v\n", name, err)
			continue
		}
		configured = append(configured, name)
	}
	fmt.Println()

	if len(configured) == 0 {
		fmt.Println("No API keys configured. You can re-run `driftchat setup` later,")
		fmt.Println("or export GROQ_API_KEY / OPENAI_API_KEY / ANTHROPIC_API_KEY.")
		fmt.Println()
	}

	// ==========================================================================
	// Step 2: Default provider and model
	// ==========================================================================
	fmt.Println("Step 2: Defaults")
	fmt.Println()

	choices := configured
	if len(choices) == 0 {
		choices = knownProviders
	}
	defaultIdx := 0
	for i, name := range choices {
		if name == cfg.DefaultProvider {
			defaultIdx = i
		}
	}
	idx := promptChoice("  Default provider", choices, defaultIdx)
	cfg.DefaultProvider = choices[idx]

	suggested := cfg.Provider(cfg.DefaultProvider).Model
	if suggested == "" {
		suggested = providerModels[cfg.DefaultProvider]
	}
	cfg.DefaultModel = promptString("  Default model", suggested)

	switch cfg.DefaultProvider {
	case "groq":
		cfg.Providers.Groq.Model = cfg.DefaultModel
	case "openai":
		cfg.Providers.OpenAI.Model = cfg.DefaultModel
	case "anthropic":
		cfg.Providers.Anthropic.Model = cfg.DefaultModel
	}
	fmt.Println()

	// ==========================================================================
	// Step 3: UI preferences
	// ==========================================================================
	fmt.Println("Step 3: Preferences")
	fmt.Println()

	themes := []string{"dark", "light", "auto"}
	themeIdx := 0
	for i, t := range themes {
		if t == cfg.UI.Theme {
			themeIdx = i
		}
	}
	cfg.UI.Theme = themes[promptChoice("  Theme", themes, themeIdx)]
	cfg.UI.ShowCost = promptYesNo("  Show per-response cost?", cfg.UI.ShowCost)
	cfg.UI.Markdown = promptYesNo("  Render markdown responses?", cfg.UI.Markdown)
	fmt.Println()

	// ==========================================================================
	// Step 4: Write config
	// ==========================================================================
	if err := config.Save(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "error: saving config:", err)
		return 1
	}

	path, _ := config.ConfigPath()
	fmt.Printf("Setup complete. Config written to %s\n", path)
	fmt.Println("Run `driftchat` to start chatting.")
	return 0
}

// openSetupKeystore opens the keystore, prompting for a passphrase when
// the store is passphrase-protected.
func openSetupKeystore(dataDir string) (*keystore.Keystore, error) {
	dir := keystoreDir(dataDir)
	ks, err := keystore.Open(dir)
	if err == nil {
		return ks, nil
	}
	if err != keystore.ErrPassphraseRequired {
		return nil, err
	}

	pass := promptSecure("Keystore passphrase")
	if pass == "" {
		return nil, fmt.Errorf("passphrase required")
	}
	return keystore.OpenWithPassphrase(dir, pass)
}

// =============================================================================
// PROMPT HELPERS
// =============================================================================

var stdinReader = bufio.NewReader(os.Stdin)

// promptInput reads one line from stdin.
func promptInput(prompt string) string {
	fmt.Print(prompt)
	line, err := stdinReader.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(line)
}

// promptString prompts for a string input with optional default.
func promptString(prompt, defaultVal string) string {
	if defaultVal != "" {
		prompt = fmt.Sprintf("%s [%s]: ", prompt, defaultVal)
	} else {
		prompt = prompt + ": "
	}
	input := promptInput(prompt)
	if input == "" {
		return defaultVal
	}
	return input
}

// promptSecure prompts for sensitive input (API keys, passphrases)
// without echoing.
// SECURITY: Uses golang.org/x/term so keys never appear on screen or in
// scrollback.
func promptSecure(prompt string) string {
	if prompt != "" {
		fmt.Print(prompt)
		if !strings.HasSuffix(prompt, ": ") && !strings.HasSuffix(prompt, " ") {
			fmt.Print(": ")
		}
	}

	keyBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return ""
	}
	fmt.Println()

	return strings.TrimSpace(string(keyBytes))
}

// promptYesNo prompts for a yes/no answer.
func promptYesNo(prompt string, defaultYes bool) bool {
	suffix := "[Y/n]"
	if !defaultYes {
		suffix = "[y/N]"
	}

	input := strings.ToLower(promptInput(fmt.Sprintf("%s %s: ", prompt, suffix)))
	if input == "" {
		return defaultYes
	}
	return input == "y" || input == "yes"
}

// promptChoice prompts user to select from numbered options.
// Returns the index of the selected option (0-based).
func promptChoice(prompt string, options []string, defaultIdx int) int {
	for i, opt := range options {
		fmt.Printf("    %d. %s\n", i+1, opt)
	}
	input := promptInput(fmt.Sprintf("%s [%s]: ", prompt, options[defaultIdx]))
	if input == "" {
		return defaultIdx
	}

	for i, opt := range options {
		if input == opt || input == strconv.Itoa(i+1) {
			return i
		}
	}
	return defaultIdx
}
