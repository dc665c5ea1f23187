// driftchat - streaming LLM chat for the terminal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/driftchat/internal/cli"
	"github.com/jeranaias/driftchat/internal/config"
	"github.com/jeranaias/driftchat/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	switch cmd {
	case cli.CmdTUI:
		os.Exit(runTUI(args))
	case cli.CmdAsk:
		os.Exit(cli.RunAsk(args))
	case cli.CmdChat:
		os.Exit(cli.RunChat(args))
	case cli.CmdStatus:
		os.Exit(cli.RunStatus(args))
	case cli.CmdConfig:
		os.Exit(cli.RunConfig(args))
	case cli.CmdSetup:
		os.Exit(cli.RunSetup(args))
	case cli.CmdSession:
		os.Exit(cli.RunSession(args))
	case cli.CmdUsage:
		os.Exit(cli.RunUsage(args))
	case cli.CmdVersion:
		cli.PrintVersion()
	case cli.CmdHelp:
		cli.PrintUsage()
	default:
		cli.PrintUsage()
		os.Exit(1)
	}
}

// runTUI launches the full-screen chat interface.
func runTUI(args cli.Args) int {
	app, err := cli.NewApp(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	defer app.Close()

	m := chat.New(chat.Deps{
		Config:   app.Config,
		Registry: app.Registry,
		Store:    app.Store,
		Tracker:  app.Tracker,
		Queue:    app.Queue,
		Logger:   app.Logger,
	})

	p := tea.NewProgram(m, tea.WithAltScreen())

	// Live config reload: edits to config.toml land in the running UI.
	if path, err := config.ConfigPath(); err == nil {
		watcher, werr := config.NewWatcher(path, func(cfg *config.Config) {
			p.Send(chat.ConfigReloadedMsg{Config: cfg})
		}, app.Logger)
		if werr == nil {
			defer watcher.Close()
		}
	}

	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}
