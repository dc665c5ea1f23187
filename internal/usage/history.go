// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package usage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/driftchat/internal/model"
)

// ErrHistoryClosed indicates the history store has been closed.
var ErrHistoryClosed = errors.New("usage history closed")

// historySchema holds per-response usage records for cross-session reports.
const historySchema = `
CREATE TABLE IF NOT EXISTS usage_records (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    recorded_at INTEGER NOT NULL,       -- Unix timestamp
    provider TEXT NOT NULL,
    model TEXT NOT NULL,
    prompt_tokens INTEGER,              -- NULL when the provider omitted it
    completion_tokens INTEGER,
    total_tokens INTEGER,
    cost REAL,                          -- NULL when the model is unpriced
    response_ms INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_usage_recorded_at ON usage_records(recorded_at);
CREATE INDEX IF NOT EXISTS idx_usage_provider_model ON usage_records(provider, model);
`

// DayTotals aggregates one day's usage for trend reports.
type DayTotals struct {
	Date        time.Time `json:"date"`
	Requests    int       `json:"requests"`
	TotalTokens int       `json:"total_tokens"`
	Cost        float64   `json:"cost"`
}

// Report is an aggregate over a date range.
type Report struct {
	Since       time.Time     `json:"since"`
	Requests    int           `json:"requests"`
	TotalTokens int           `json:"total_tokens"`
	TotalCost   float64       `json:"total_cost"`
	Models      []ModelTotals `json:"models"`
	Daily       []DayTotals   `json:"daily"`
}

// History is the persistent usage store.
type History struct {
	db *sql.DB
}

// OpenHistory opens (creating if needed) the usage database at path.
func OpenHistory(path string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open usage database: %w", err)
	}

	// SQLite supports one writer; a single connection avoids lock churn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize usage schema: %w", err)
	}

	return &History{db: db}, nil
}

// Close releases the database.
func (h *History) Close() error {
	return h.db.Close()
}

// Record persists one response's usage metadata. Absent token counts and
// cost are stored as NULL, preserving the partial-usage distinction.
func (h *History) Record(meta *model.ApiUsageMetadata) error {
	if meta == nil {
		return nil
	}

	var cost sql.NullFloat64
	if meta.Cost != nil {
		cost = sql.NullFloat64{Float64: meta.Cost.TotalCost, Valid: true}
	}

	_, err := h.db.Exec(`
		INSERT INTO usage_records
		(recorded_at, provider, model, prompt_tokens, completion_tokens, total_tokens, cost, response_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.Timestamp.Unix(),
		meta.Provider,
		meta.Model,
		nullableInt(meta.PromptTokens),
		nullableInt(meta.CompletionTokens),
		nullableInt(meta.TotalTokens),
		cost,
		meta.ResponseTime.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}

func nullableInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

// ReportSince aggregates usage recorded at or after since: overall totals,
// per-model breakdown, and a daily trend.
func (h *History) ReportSince(since time.Time) (*Report, error) {
	report := &Report{Since: since}

	rows, err := h.db.Query(`
		SELECT provider, model, COUNT(*),
		       COALESCE(SUM(prompt_tokens), 0),
		       COALESCE(SUM(completion_tokens), 0),
		       COALESCE(SUM(total_tokens), 0),
		       COALESCE(SUM(cost), 0)
		FROM usage_records
		WHERE recorded_at >= ?
		GROUP BY provider, model
		ORDER BY SUM(cost) DESC, model ASC`,
		since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query usage: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m ModelTotals
		if err := rows.Scan(&m.Provider, &m.Model, &m.Requests,
			&m.PromptTokens, &m.CompletionTokens, &m.TotalTokens, &m.Cost); err != nil {
			return nil, fmt.Errorf("failed to scan usage row: %w", err)
		}
		report.Models = append(report.Models, m)
		report.Requests += m.Requests
		report.TotalTokens += m.TotalTokens
		report.TotalCost += m.Cost
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	daily, err := h.dailyTotals(since)
	if err != nil {
		return nil, err
	}
	report.Daily = daily
	return report, nil
}

// dailyTotals buckets records into UTC days.
func (h *History) dailyTotals(since time.Time) ([]DayTotals, error) {
	rows, err := h.db.Query(`
		SELECT recorded_at / 86400, COUNT(*),
		       COALESCE(SUM(total_tokens), 0),
		       COALESCE(SUM(cost), 0)
		FROM usage_records
		WHERE recorded_at >= ?
		GROUP BY recorded_at / 86400
		ORDER BY 1 ASC`,
		since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query daily usage: %w", err)
	}
	defer rows.Close()

	var days []DayTotals
	for rows.Next() {
		var epochDay int64
		var d DayTotals
		if err := rows.Scan(&epochDay, &d.Requests, &d.TotalTokens, &d.Cost); err != nil {
			return nil, fmt.Errorf("failed to scan daily row: %w", err)
		}
		d.Date = time.Unix(epochDay*86400, 0).UTC()
		days = append(days, d)
	}
	return days, rows.Err()
}

// Prune deletes records older than the cutoff and returns how many went.
func (h *History) Prune(before time.Time) (int64, error) {
	res, err := h.db.Exec(`DELETE FROM usage_records WHERE recorded_at < ?`, before.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune usage records: %w", err)
	}
	return res.RowsAffected()
}
