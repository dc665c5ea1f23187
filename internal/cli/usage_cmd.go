// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// usage_cmd.go - Token usage and cost reporting subcommands.
//
// Examples:
//   driftchat usage report --days 30
//   driftchat usage --json report
//   driftchat usage prune --days 90
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/driftchat/internal/usage"
)

// defaultReportDays is the report window when --days is omitted.
const defaultReportDays = 30

// RunUsage dispatches the usage subcommands.
func RunUsage(args Args) int {
	app, err := NewApp(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	defer app.Close()

	if app.History == nil {
		fmt.Fprintln(os.Stderr, "error: usage history unavailable")
		return 1
	}

	switch args.Subcommand {
	case "", "report":
		return usageReport(app, args)
	case "prune":
		return usagePrune(app, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown usage subcommand: %s (want report|prune)\n", args.Subcommand)
		return 1
	}
}

// parseDaysFlag pulls --days N out of the remaining args.
func parseDaysFlag(raw []string, fallback int) int {
	for i := 0; i < len(raw); i++ {
		if raw[i] == "--days" || raw[i] == "-d" {
			if i+1 < len(raw) {
				if n, err := strconv.Atoi(raw[i+1]); err == nil && n > 0 {
					return n
				}
			}
		}
	}
	return fallback
}

func usageReport(app *App, args Args) int {
	days := parseDaysFlag(args.Raw, defaultReportDays)
	since := time.Now().AddDate(0, 0, -days)

	report, err := app.History.ReportSince(since)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	if args.JSON {
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return 1
		}
		fmt.Println(string(out))
		return 0
	}

	printUsageReport(report, days)
	return 0
}

func printUsageReport(report *usage.Report, days int) {
	fmt.Println()
	fmt.Println(summaryHeaderStyle.Render(fmt.Sprintf("Usage (last %d days)", days)))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 25)))
	fmt.Println()

	if report.Requests == 0 {
		fmt.Println(infoStyle.Render("No recorded usage in this window."))
		fmt.Println()
		return
	}

	fmt.Printf("  %s %d\n", infoStyle.Render("Requests:"), report.Requests)
	fmt.Printf("  %s %d\n", infoStyle.Render("Tokens:"), report.TotalTokens)
	fmt.Printf("  %s $%.4f\n", infoStyle.Render("Cost:"), report.TotalCost)
	fmt.Println()

	if len(report.Models) > 0 {
		fmt.Println(infoStyle.Render("By model:"))
		for _, m := range report.Models {
			fmt.Printf("  %-40s %6d req %10d tok  $%.4f\n",
				m.Provider+"/"+m.Model, m.Requests, m.TotalTokens, m.Cost)
		}
		fmt.Println()
	}

	if len(report.Daily) > 0 {
		fmt.Println(infoStyle.Render("Daily:"))
		for _, d := range report.Daily {
			fmt.Printf("  %s  %6d req %10d tok  $%.4f\n",
				d.Date.Format("2006-01-02"), d.Requests, d.TotalTokens, d.Cost)
		}
		fmt.Println()
	}
}

func usagePrune(app *App, args Args) int {
	days := parseDaysFlag(args.Raw, app.Config.Storage.UsageRetentionDays)
	if days <= 0 {
		days = 90
	}
	before := time.Now().AddDate(0, 0, -days)

	removed, err := app.History.Prune(before)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	fmt.Printf("Pruned %d usage records older than %d days.\n", removed, days)
	return 0
}
