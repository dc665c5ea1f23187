// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// session.go - Saved conversation management subcommands.
//
// Examples:
//   driftchat session list
//   driftchat session show 2
//   driftchat session export 1 --format md
//   driftchat session delete 3
//   driftchat session search "goroutine"
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jeranaias/driftchat/internal/model"
	"github.com/jeranaias/driftchat/internal/storage"
)

// RunSession dispatches the session subcommands.
func RunSession(args Args) int {
	app, err := NewApp(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	defer app.Close()

	switch args.Subcommand {
	case "", "list", "ls":
		return sessionList(app, args)
	case "show":
		return sessionShow(app, args)
	case "export":
		return sessionExport(app, args)
	case "delete", "rm":
		return sessionDelete(app, args)
	case "search":
		return sessionSearch(app, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown session subcommand: %s (want list|show|export|delete|search)\n", args.Subcommand)
		return 1
	}
}

func sessionList(app *App, args Args) int {
	metas, err := app.Store.List()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	if args.JSON {
		out, _ := json.MarshalIndent(metas, "", "  ")
		fmt.Println(string(out))
		return 0
	}

	if len(metas) == 0 {
		fmt.Println("No saved conversations.")
		return 0
	}

	printConversationList(metas)
	return 0
}

func printConversationList(metas []storage.ConversationMeta) {
	for i, meta := range metas {
		title := meta.Title
		if title == "" {
			title = meta.Preview
		}
		if title == "" {
			title = "(empty)"
		}

		line := fmt.Sprintf("%2d. %s", i+1, title)
		detail := fmt.Sprintf("%s/%s | %d messages | %s",
			meta.Provider, meta.Model, meta.MessageCount,
			meta.UpdatedAt.Format("2006-01-02 15:04"))
		if meta.TotalCostUSD > 0 {
			detail += fmt.Sprintf(" | $%.4f", meta.TotalCostUSD)
		}

		fmt.Println(line)
		fmt.Println("    " + infoStyle.Render(detail))
	}
}

// resolveConversation loads a conversation by 1-based list index or by ID.
func resolveConversation(app *App, ref string) (*model.Conversation, error) {
	if ref == "" {
		return nil, fmt.Errorf("missing conversation number or ID")
	}
	if n, err := strconv.Atoi(ref); err == nil {
		return app.Store.LoadByIndex(n - 1)
	}
	return app.Store.Load(ref)
}

func sessionShow(app *App, args Args) int {
	ref := ""
	if len(args.Raw) > 0 {
		ref = args.Raw[0]
	}
	conv, err := resolveConversation(app, ref)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	if args.JSON {
		out, err := storage.ExportJSON(conv)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return 1
		}
		fmt.Println(string(out))
		return 0
	}

	fmt.Println(storage.ExportMarkdown(conv))
	return 0
}

func sessionExport(app *App, args Args) int {
	ref := ""
	format := "md"
	var outPath string

	rest := args.Raw
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case "--format", "-f":
			if i+1 < len(rest) {
				i++
				format = strings.ToLower(rest[i])
			}
		case "--out", "-o":
			if i+1 < len(rest) {
				i++
				outPath = rest[i]
			}
		default:
			if ref == "" {
				ref = rest[i]
			}
		}
	}

	conv, err := resolveConversation(app, ref)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	var content string
	switch format {
	case "md", "markdown":
		content = storage.ExportMarkdown(conv)
		if outPath == "" {
			outPath = exportFileName(conv, "md")
		}
	case "json":
		data, err := storage.ExportJSON(conv)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return 1
		}
		content = string(data)
		if outPath == "" {
			outPath = exportFileName(conv, "json")
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown export format: %s (want md|json)\n", format)
		return 1
	}

	if outPath == "-" {
		fmt.Println(content)
		return 0
	}
	if err := os.WriteFile(outPath, []byte(content), 0644); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	fmt.Printf("Exported to %s\n", outPath)
	return 0
}

// exportFileName builds a filesystem-safe name from the conversation title.
func exportFileName(conv *model.Conversation, ext string) string {
	title := conv.Title
	if title == "" {
		title = conv.ID[:8]
	}
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case r == ' ', r == '-', r == '_':
			return '-'
		default:
			return -1
		}
	}, title)
	if len(slug) > 40 {
		slug = slug[:40]
	}
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = conv.ID[:8]
	}
	return "driftchat-" + slug + "." + ext
}

func sessionDelete(app *App, args Args) int {
	ref := ""
	if len(args.Raw) > 0 {
		ref = args.Raw[0]
	}
	conv, err := resolveConversation(app, ref)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	if err := app.Store.Delete(conv.ID); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	fmt.Printf("Deleted conversation %s\n", conv.ID[:8])
	return 0
}

func sessionSearch(app *App, args Args) int {
	query := strings.Join(args.Raw, " ")
	if query == "" {
		fmt.Fprintln(os.Stderr, "usage: driftchat session search QUERY")
		return 1
	}

	// Title matches first, then full-message matches.
	metas, err := app.Store.Search(query)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	if len(metas) == 0 {
		metas, err = app.Store.SearchMessages(query)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return 1
		}
	}

	if args.JSON {
		out, _ := json.MarshalIndent(metas, "", "  ")
		fmt.Println(string(out))
		return 0
	}

	if len(metas) == 0 {
		fmt.Printf("No conversations matching %q.\n", query)
		return 0
	}
	printConversationList(metas)
	return 0
}
