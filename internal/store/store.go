// Package store persists the fixture backend's data: per-symbol indicator
// series in Parquet files and daily news reports in SQLite.
package store

import (
	"context"
	"errors"

	"marketdash/pkg/dashapi"
)

// ErrNotFound is returned when a symbol or report date has no data.
var ErrNotFound = errors.New("not found")

// SeriesStore persists and retrieves precomputed indicator series.
type SeriesStore interface {
	// WriteSeries replaces the stored series for symbol.
	WriteSeries(ctx context.Context, symbol string, s *dashapi.Series) error

	// ReadSeries returns the full stored series for symbol. Metadata carries
	// the latest quote derived from the last rows.
	ReadSeries(ctx context.Context, symbol string) (*dashapi.Series, error)

	// ListSymbols returns every symbol with a stored series.
	ListSymbols(ctx context.Context) ([]string, error)
}

// ReportStore persists and retrieves daily sentiment reports.
type ReportStore interface {
	// SaveReport stores the classified articles of one report date,
	// replacing any earlier articles for it.
	SaveReport(ctx context.Context, date string, articles []dashapi.Article) error

	// ListReports returns report dates, most recent first.
	ListReports(ctx context.Context) ([]string, error)

	// GetReport aggregates the digest for date.
	GetReport(ctx context.Context, date string) (*dashapi.Report, error)

	// ListArticles returns the articles of date carrying label, highest
	// score first. An empty date means the most recent report.
	ListArticles(ctx context.Context, date string, label dashapi.Label) ([]dashapi.Article, error)
}

// SentimentStore answers text classification from canned samples and keeps
// a history of answered requests.
type SentimentStore interface {
	// SaveSample registers a canned classification for text.
	SaveSample(ctx context.Context, text string, s dashapi.Sentiment) error

	// Classify returns the canned classification for text, or Neutral 0.5
	// when none is registered.
	Classify(ctx context.Context, text string) (dashapi.Sentiment, error)

	// AppendHistory records an answered request.
	AppendHistory(ctx context.Context, r dashapi.SentimentResult) error

	// History returns answered requests, oldest first.
	History(ctx context.Context) ([]dashapi.SentimentResult, error)
}
