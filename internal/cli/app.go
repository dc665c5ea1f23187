// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Shared wiring for CLI commands: config, providers, storage,
// usage tracking, and the offline send queue.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jeranaias/driftchat/internal/config"
	"github.com/jeranaias/driftchat/internal/keystore"
	"github.com/jeranaias/driftchat/internal/offline"
	"github.com/jeranaias/driftchat/internal/provider"
	"github.com/jeranaias/driftchat/internal/storage"
	"github.com/jeranaias/driftchat/internal/usage"
)

// App bundles the collaborators a command needs.
type App struct {
	Config   *config.Config
	Registry *provider.Registry
	Store    *storage.ConversationStore
	Tracker  *usage.Tracker
	History  *usage.History
	Queue    *offline.SendQueue
	Keystore *keystore.Keystore
	Logger   *slog.Logger
}

// NewApp loads configuration and wires the application. Collaborators
// that fail to open (usage history, send queue) degrade to nil rather
// than aborting; commands check before use.
func NewApp(args Args) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if args.Provider != "" {
		cfg.DefaultProvider = args.Provider
		if pc := cfg.Provider(args.Provider); pc.Model != "" {
			cfg.DefaultModel = pc.Model
		}
	}
	if args.Model != "" {
		cfg.DefaultModel = args.Model
	}
	if args.Offline || cfg.Offline.Enabled {
		offline.SetOfflineMode(true)
	}

	logger := newLogger(args)

	dataDir, err := cfg.DataDir()
	if err != nil {
		return nil, err
	}

	ks, err := keystore.Open(keystoreDir(dataDir))
	if err != nil {
		logger.Warn("keystore unavailable", slog.String("error", err.Error()))
		ks = nil
	}

	registry := buildRegistry(cfg, ks, logger)

	store, err := storage.NewConversationStoreWithDir(filepath.Join(dataDir, "conversations"))
	if err != nil {
		return nil, fmt.Errorf("failed to open conversation store: %w", err)
	}
	store.MaxConversations = cfg.Storage.MaxConversations

	var history *usage.History
	history, err = usage.OpenHistory(filepath.Join(dataDir, "usage.db"))
	if err != nil {
		logger.Warn("usage history unavailable", slog.String("error", err.Error()))
		history = nil
	}
	tracker := usage.NewTracker(history)

	queuePath := cfg.Offline.QueuePath
	if queuePath == "" {
		queuePath = filepath.Join(dataDir, "send_queue.json")
	}
	queue, err := offline.OpenSendQueue(queuePath)
	if err != nil {
		logger.Warn("send queue unavailable", slog.String("error", err.Error()))
		queue = nil
	}

	return &App{
		Config:   cfg,
		Registry: registry,
		Store:    store,
		Tracker:  tracker,
		History:  history,
		Queue:    queue,
		Keystore: ks,
		Logger:   logger,
	}, nil
}

// Close releases the usage history handle.
func (a *App) Close() {
	if a.History != nil {
		_ = a.History.Close()
	}
}

// newLogger builds the slog logger per verbosity flags. Logs go to
// stderr so they never mix with streamed output.
func newLogger(args Args) *slog.Logger {
	level := slog.LevelWarn
	if args.Verbose {
		level = slog.LevelDebug
	}
	if args.Quiet {
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// buildRegistry registers every provider that has a key, pulling keys
// with env > config file > keystore precedence.
func buildRegistry(cfg *config.Config, ks *keystore.Keystore, logger *slog.Logger) *provider.Registry {
	registry := provider.NewRegistry()

	resolveKey := func(name string) string {
		if key := cfg.Provider(name).APIKey; key != "" {
			return key
		}
		if ks != nil {
			if key, err := ks.Get(name); err == nil {
				return key
			}
		}
		return ""
	}

	groq := provider.NewGroq(resolveKey("groq"), logger)
	if base := cfg.Providers.Groq.BaseURL; base != "" {
		groq = groq.WithBaseURL(base)
	}
	registry.Register(groq)

	oa := provider.NewOpenAI(resolveKey("openai"), logger)
	if base := cfg.Providers.OpenAI.BaseURL; base != "" {
		oa = oa.WithBaseURL(base)
	}
	registry.Register(oa)

	anth := provider.NewAnthropic(resolveKey("anthropic"), logger)
	if base := cfg.Providers.Anthropic.BaseURL; base != "" {
		anth = anth.WithBaseURL(base)
	}
	registry.Register(anth)

	return registry
}
