package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"marketdash/pkg/dashapi"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ ReportStore = (*SQLiteStore)(nil)
var _ SentimentStore = (*SQLiteStore)(nil)

// TopArticles is how many articles of each polarity a report ranks.
const TopArticles = 5

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	date       TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS articles (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	report_date TEXT NOT NULL REFERENCES reports(date) ON DELETE CASCADE,
	title       TEXT NOT NULL,
	source      TEXT NOT NULL,
	summary     TEXT NOT NULL DEFAULT '',
	link        TEXT NOT NULL DEFAULT '',
	published   TEXT NOT NULL DEFAULT '',
	label       TEXT NOT NULL,
	score       REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS articles_by_report ON articles(report_date, label, score DESC);
CREATE TABLE IF NOT EXISTS sentiment_samples (
	text  TEXT PRIMARY KEY,
	label TEXT NOT NULL,
	score REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS sentiment_history (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	text      TEXT NOT NULL,
	label     TEXT NOT NULL,
	score     REAL NOT NULL,
	timestamp TEXT NOT NULL
);
`

// SQLiteStore implements ReportStore and SentimentStore backed by a SQLite
// database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates the
// tables if needed, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// One writer at a time; the driver serialises anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// ReportStore implementation
// ---------------------------------------------------------------------------

// SaveReport inserts the report row and replaces its articles in one
// transaction.
func (s *SQLiteStore) SaveReport(ctx context.Context, date string, articles []dashapi.Article) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO reports (date, created_at) VALUES (?, ?)
		 ON CONFLICT(date) DO UPDATE SET created_at = excluded.created_at`,
		date, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("saving report %s: %w", date, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM articles WHERE report_date = ?`, date); err != nil {
		return fmt.Errorf("clearing articles for %s: %w", date, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO articles (report_date, title, source, summary, link, published, label, score)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, a := range articles {
		if _, err := stmt.ExecContext(ctx, date, a.Title, a.Source, a.Summary, a.Link,
			a.Published, string(a.Sentiment.Label), a.Sentiment.Score); err != nil {
			return fmt.Errorf("saving article %q: %w", a.Title, err)
		}
	}
	return tx.Commit()
}

// ListReports returns report dates, most recent first.
func (s *SQLiteStore) ListReports(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT date FROM reports ORDER BY date DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dates := []string{}
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// GetReport aggregates the stored articles of date into a digest.
func (s *SQLiteStore) GetReport(ctx context.Context, date string) (*dashapi.Report, error) {
	if err := s.reportExists(ctx, date); err != nil {
		return nil, err
	}
	articles, err := s.queryArticles(ctx,
		`SELECT title, source, summary, link, published, label, score
		 FROM articles WHERE report_date = ? ORDER BY score DESC, id`, date)
	if err != nil {
		return nil, err
	}
	return buildReport(date, articles), nil
}

// ListArticles returns the articles of date with label, highest score first.
func (s *SQLiteStore) ListArticles(ctx context.Context, date string, label dashapi.Label) ([]dashapi.Article, error) {
	if date == "" {
		dates, err := s.ListReports(ctx)
		if err != nil {
			return nil, err
		}
		if len(dates) == 0 {
			return []dashapi.Article{}, nil
		}
		date = dates[0]
	} else if err := s.reportExists(ctx, date); err != nil {
		return nil, err
	}
	return s.queryArticles(ctx,
		`SELECT title, source, summary, link, published, label, score
		 FROM articles WHERE report_date = ? AND label = ? ORDER BY score DESC, id`,
		date, string(label))
}

func (s *SQLiteStore) reportExists(ctx context.Context, date string) error {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports WHERE date = ?`, date).Scan(&n)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("report %s: %w", date, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) queryArticles(ctx context.Context, query string, args ...any) ([]dashapi.Article, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []dashapi.Article{}
	for rows.Next() {
		var a dashapi.Article
		var label string
		if err := rows.Scan(&a.Title, &a.Source, &a.Summary, &a.Link, &a.Published, &label, &a.Sentiment.Score); err != nil {
			return nil, err
		}
		l, ok := dashapi.ParseLabel(label)
		if !ok {
			return nil, fmt.Errorf("article %q has unknown label %q", a.Title, label)
		}
		a.Sentiment.Label = l
		out = append(out, a)
	}
	return out, rows.Err()
}

// buildReport computes the digest of articles already sorted by score
// descending.
func buildReport(date string, articles []dashapi.Article) *dashapi.Report {
	r := &dashapi.Report{
		Date:          date,
		TotalArticles: len(articles),
		Sources:       []string{},
		SentimentDistribution: map[string]int{
			dashapi.Positive.String(): 0,
			dashapi.Neutral.String():  0,
			dashapi.Negative.String(): 0,
		},
		SourceStats: map[string]map[string]int{},
		TopPositive: []dashapi.Article{},
		TopNegative: []dashapi.Article{},
	}

	for _, a := range articles {
		l := a.Sentiment.Label
		r.SentimentDistribution[l.String()]++

		stats, ok := r.SourceStats[a.Source]
		if !ok {
			stats = map[string]int{"positive": 0, "neutral": 0, "negative": 0}
			r.SourceStats[a.Source] = stats
			r.Sources = append(r.Sources, a.Source)
		}
		stats[string(l)]++

		switch {
		case l == dashapi.Positive && len(r.TopPositive) < TopArticles:
			r.TopPositive = append(r.TopPositive, a)
		case l == dashapi.Negative && len(r.TopNegative) < TopArticles:
			r.TopNegative = append(r.TopNegative, a)
		}
	}
	sort.Strings(r.Sources)
	return r
}

// ---------------------------------------------------------------------------
// SentimentStore implementation
// ---------------------------------------------------------------------------

// SaveSample inserts or replaces the canned classification for text.
func (s *SQLiteStore) SaveSample(ctx context.Context, text string, st dashapi.Sentiment) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sentiment_samples (text, label, score) VALUES (?, ?, ?)
		 ON CONFLICT(text) DO UPDATE SET label = excluded.label, score = excluded.score`,
		sampleKey(text), string(st.Label), st.Score)
	return err
}

// Classify looks text up case-insensitively. Unknown text is Neutral 0.5.
func (s *SQLiteStore) Classify(ctx context.Context, text string) (dashapi.Sentiment, error) {
	var label string
	var score float64
	err := s.db.QueryRowContext(ctx,
		`SELECT label, score FROM sentiment_samples WHERE text = ?`, sampleKey(text)).Scan(&label, &score)
	if errors.Is(err, sql.ErrNoRows) {
		return dashapi.Sentiment{Label: dashapi.Neutral, Score: 0.5}, nil
	}
	if err != nil {
		return dashapi.Sentiment{}, err
	}
	l, ok := dashapi.ParseLabel(label)
	if !ok {
		return dashapi.Sentiment{}, fmt.Errorf("sample has unknown label %q", label)
	}
	return dashapi.Sentiment{Label: l, Score: score}, nil
}

// AppendHistory records an answered request.
func (s *SQLiteStore) AppendHistory(ctx context.Context, r dashapi.SentimentResult) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sentiment_history (text, label, score, timestamp) VALUES (?, ?, ?, ?)`,
		r.Text, string(r.Sentiment.Label), r.Sentiment.Score, r.Timestamp)
	return err
}

// History returns answered requests, oldest first.
func (s *SQLiteStore) History(ctx context.Context) ([]dashapi.SentimentResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT text, label, score, timestamp FROM sentiment_history ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []dashapi.SentimentResult{}
	for rows.Next() {
		var r dashapi.SentimentResult
		var label string
		if err := rows.Scan(&r.Text, &label, &r.Sentiment.Score, &r.Timestamp); err != nil {
			return nil, err
		}
		r.Sentiment.Label, _ = dashapi.ParseLabel(label)
		out = append(out, r)
	}
	return out, rows.Err()
}

func sampleKey(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
