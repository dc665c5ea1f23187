// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - Environment and configuration status report.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jeranaias/driftchat/internal/config"
	"github.com/jeranaias/driftchat/internal/offline"
)

// statusReport is the --json output shape for the status command.
type statusReport struct {
	Version             string   `json:"version"`
	ConfigPath          string   `json:"config_path"`
	ConfigExists        bool     `json:"config_exists"`
	DefaultProvider     string   `json:"default_provider"`
	DefaultModel        string   `json:"default_model"`
	ConfiguredProviders []string `json:"configured_providers"`
	OfflineMode         bool     `json:"offline_mode"`
	QueuedMessages      int      `json:"queued_messages"`
	SavedConversations  int      `json:"saved_conversations"`
}

// RunStatus prints the status report and returns an exit code.
func RunStatus(args Args) int {
	app, err := NewApp(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	defer app.Close()

	report := buildStatusReport(app)

	if args.JSON {
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return 1
		}
		fmt.Println(string(out))
		return 0
	}

	printStatusReport(report)
	return 0
}

func buildStatusReport(app *App) statusReport {
	report := statusReport{
		Version:             Version,
		DefaultProvider:     app.Config.DefaultProvider,
		DefaultModel:        app.Config.DefaultModel,
		ConfiguredProviders: app.Registry.Configured(),
		OfflineMode:         offline.IsOfflineMode(),
	}

	if path, err := config.ConfigPath(); err == nil {
		report.ConfigPath = path
		if _, err := os.Stat(path); err == nil {
			report.ConfigExists = true
		}
	}
	if app.Queue != nil {
		report.QueuedMessages = app.Queue.Len()
	}
	if list, err := app.Store.List(); err == nil {
		report.SavedConversations = len(list)
	}
	return report
}

func printStatusReport(r statusReport) {
	fmt.Println()
	fmt.Println(summaryHeaderStyle.Render("driftchat status"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 20)))
	fmt.Println()

	fmt.Printf("  %s %s\n", infoStyle.Render("Version:"), r.Version)

	configNote := r.ConfigPath
	if !r.ConfigExists {
		configNote += warningStyle.Render(" (not created; run `driftchat setup`)")
	}
	fmt.Printf("  %s %s\n", infoStyle.Render("Config:"), configNote)

	fmt.Printf("  %s %s/%s\n",
		infoStyle.Render("Default:"),
		r.DefaultProvider,
		commandStyle.Render(r.DefaultModel))

	if len(r.ConfiguredProviders) > 0 {
		fmt.Printf("  %s %s\n",
			infoStyle.Render("Providers:"),
			commandStyle.Render(strings.Join(r.ConfiguredProviders, ", ")))
	} else {
		fmt.Printf("  %s %s\n",
			infoStyle.Render("Providers:"),
			warningStyle.Render("none configured"))
	}

	mode := "online"
	if r.OfflineMode {
		mode = warningStyle.Render("offline")
	}
	fmt.Printf("  %s %s\n", infoStyle.Render("Mode:"), mode)

	if r.QueuedMessages > 0 {
		fmt.Printf("  %s %d\n", infoStyle.Render("Queued:"), r.QueuedMessages)
	}
	fmt.Printf("  %s %d\n", infoStyle.Render("Sessions:"), r.SavedConversations)

	fmt.Println()
}
