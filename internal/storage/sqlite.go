package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/BenjaminSRussell/paperboy/internal/types"
)

const (
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
	dateLayout = "2006-01-02"
)

// ErrNoRuns is returned when a journal holds no crawl runs
var ErrNoRuns = errors.New("journal has no runs")

// IssueDater extracts the paper issue date from a URL
type IssueDater interface {
	IssueDate(url string) (time.Time, bool)
}

// PageRecord is one journaled crawl result
type PageRecord struct {
	RunID      string     `json:"run_id"`
	URL        string     `json:"url"`
	Depth      int        `json:"depth"`
	Referrer   string     `json:"referrer,omitempty"`
	StatusCode int        `json:"status_code"`
	LinkCount  int        `json:"link_count"`
	Terminal   bool       `json:"terminal"`
	IssueDate  *time.Time `json:"issue_date,omitempty"`
	CrawledAt  time.Time  `json:"crawled_at"`
}

// Run summarizes one crawl recorded in the journal
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	Seeds      int
	Results    types.Results
}

// Journal records crawl results in SQLite for later querying and export.
// Recording is scoped to the run opened by BeginRun.
type Journal struct {
	db    *sql.DB
	dater IssueDater
	runID string
}

// OpenJournal opens or creates the journal database at path. dater may be nil,
// in which case no issue dates are recorded.
func OpenJournal(path string, dater IssueDater) (*Journal, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		seeds INTEGER NOT NULL DEFAULT 0,
		discovered INTEGER NOT NULL DEFAULT 0,
		fetched INTEGER NOT NULL DEFAULT 0,
		errors INTEGER NOT NULL DEFAULT 0,
		discarded INTEGER NOT NULL DEFAULT 0,
		written INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		url TEXT NOT NULL,
		depth INTEGER NOT NULL,
		referrer TEXT NOT NULL DEFAULT '',
		status_code INTEGER NOT NULL,
		link_count INTEGER NOT NULL,
		terminal INTEGER NOT NULL,
		issue_date TEXT,
		crawled_at TEXT NOT NULL,
		UNIQUE (run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_terminal ON pages(run_id, terminal);
	CREATE INDEX IF NOT EXISTS idx_pages_issue_date ON pages(issue_date);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Journal{db: db, dater: dater}, nil
}

// BeginRun starts a new run and returns its id
func (j *Journal) BeginRun(ctx context.Context, seeds int) (string, error) {
	id := uuid.NewString()
	_, err := j.db.ExecContext(ctx,
		"INSERT INTO runs (id, started_at, seeds) VALUES (?, ?, ?)",
		id, time.Now().UTC().Format(timeLayout), seeds)
	if err != nil {
		return "", fmt.Errorf("failed to begin run: %w", err)
	}
	j.runID = id
	return id, nil
}

// RunID returns the id of the current run, or "" before BeginRun
func (j *Journal) RunID() string {
	return j.runID
}

// Record stores result under the current run. A URL recorded twice in one
// run keeps its first record.
func (j *Journal) Record(ctx context.Context, result types.CrawlResult, terminal bool) error {
	if j.runID == "" {
		return fmt.Errorf("record %s: no run in progress", result.URL)
	}

	var issueDate sql.NullString
	if j.dater != nil {
		if d, ok := j.dater.IssueDate(result.URL); ok {
			issueDate = sql.NullString{String: d.Format(dateLayout), Valid: true}
		}
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO pages
		(run_id, url, depth, referrer, status_code, link_count, terminal, issue_date, crawled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.runID,
		result.URL,
		result.Depth,
		result.Referrer,
		result.StatusCode,
		result.LinkCount,
		terminal,
		issueDate,
		result.CrawledAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("record %s: %w", result.URL, err)
	}
	return nil
}

// FinishRun stores the final counters of the current run
func (j *Journal) FinishRun(ctx context.Context, results *types.Results) error {
	if j.runID == "" {
		return fmt.Errorf("finish run: no run in progress")
	}
	_, err := j.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, discovered = ?, fetched = ?, errors = ?, discarded = ?, written = ?
		WHERE id = ?`,
		time.Now().UTC().Format(timeLayout),
		results.Discovered,
		results.Fetched,
		results.Errors,
		results.Discarded,
		results.Written,
		j.runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// Runs lists every run, newest first
func (j *Journal) Runs(ctx context.Context) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, seeds, discovered, fetched, errors, discarded, written
		FROM runs ORDER BY started_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var run Run
		var startedAt string
		var finishedAt sql.NullString
		err := rows.Scan(&run.ID, &startedAt, &finishedAt, &run.Seeds,
			&run.Results.Discovered, &run.Results.Fetched, &run.Results.Errors,
			&run.Results.Discarded, &run.Results.Written)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.StartedAt, _ = time.Parse(timeLayout, startedAt)
		if finishedAt.Valid {
			t, _ := time.Parse(timeLayout, finishedAt.String)
			run.FinishedAt = &t
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LatestRun returns the id of the most recently started run
func (j *Journal) LatestRun(ctx context.Context) (string, error) {
	var id string
	err := j.db.QueryRowContext(ctx,
		"SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1").Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoRuns
	}
	if err != nil {
		return "", fmt.Errorf("failed to query latest run: %w", err)
	}
	return id, nil
}

// TerminalPages returns the terminal records of runID ordered by issue date
// and URL. An empty runID selects the latest run.
func (j *Journal) TerminalPages(ctx context.Context, runID string) ([]PageRecord, error) {
	if runID == "" {
		latest, err := j.LatestRun(ctx)
		if err != nil {
			return nil, err
		}
		runID = latest
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, url, depth, referrer, status_code, link_count, terminal, issue_date, crawled_at
		FROM pages WHERE run_id = ? AND terminal = 1
		ORDER BY issue_date, url`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	records := make([]PageRecord, 0)
	for rows.Next() {
		var rec PageRecord
		var issueDate sql.NullString
		var crawledAt string
		err := rows.Scan(&rec.RunID, &rec.URL, &rec.Depth, &rec.Referrer, &rec.StatusCode,
			&rec.LinkCount, &rec.Terminal, &issueDate, &crawledAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		if issueDate.Valid {
			if d, err := time.Parse(dateLayout, issueDate.String); err == nil {
				rec.IssueDate = &d
			}
		}
		rec.CrawledAt, _ = time.Parse(timeLayout, crawledAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the database connection
func (j *Journal) Close() error {
	return j.db.Close()
}
