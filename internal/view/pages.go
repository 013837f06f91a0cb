package view

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"marketdash/pkg/dashapi"
)

// API is the subset of the backend client the pages depend on.
type API interface {
	GetOverview(ctx context.Context, ticker string) (*dashapi.Overview, error)
	GetSeries(ctx context.Context, ticker, timeframe, period string) (*dashapi.Series, error)
	GetSMA(ctx context.Context, ticker string) (*dashapi.Series, error)
	GetRSI(ctx context.Context, ticker string) (*dashapi.Series, error)
	GetMACD(ctx context.Context, ticker string) (*dashapi.Series, error)
	AnalyzeSentiment(ctx context.Context, text string) (*dashapi.SentimentResult, error)
	AnalyzeBatch(ctx context.Context, texts []string) ([]dashapi.SentimentResult, error)
	ListReports(ctx context.Context) ([]string, error)
	GetReport(ctx context.Context, date string) (*dashapi.Report, error)
	GetReportArticles(ctx context.Context, date string, p dashapi.Polarity) ([]dashapi.Article, error)
	GetSentimentArticles(ctx context.Context, p dashapi.Polarity) ([]dashapi.Article, error)
	SentimentHistory(ctx context.Context) ([]dashapi.SentimentResult, error)
	ListSymbols(ctx context.Context) ([]string, error)
	ListTimeframes(ctx context.Context) (map[string]string, error)
}

var _ API = (*dashapi.Client)(nil)

// Banner messages.
const (
	MsgMarketFailed    = "Failed to fetch market data"
	MsgIndicatorFailed = "Failed to fetch indicator data"
	MsgReportFailed    = "Failed to fetch report"
	MsgReportsFailed   = "Failed to fetch reports"
	MsgArticlesFailed  = "Failed to fetch articles"
	MsgOverviewFailed  = "Failed to fetch market overview"
	MsgSentimentFailed = "Failed to analyze sentiment."
	MsgNoTicker        = "No ticker specified"
	MsgNoDate          = "No date specified"
)

// ---------------------------------------------------------------------------
// Generic parameterised page
// ---------------------------------------------------------------------------

// Page couples a Resolver with the parameters of its last load so it can be
// retried. P is the route parameter set.
type Page[P comparable, T any] struct {
	*Resolver[T]

	require func(P) string
	fetch   func(context.Context, P) (T, error)

	mu     sync.Mutex
	params P
	loaded bool
}

// NewPage builds a page. require returns a non-empty message when params
// lack a required value; such loads settle as Missing with no request.
func NewPage[P comparable, T any](name, failMsg string, log *slog.Logger,
	require func(P) string, fetch func(context.Context, P) (T, error)) *Page[P, T] {
	return &Page[P, T]{
		Resolver: NewResolver[T](name, failMsg, log),
		require:  require,
		fetch:    fetch,
	}
}

// Load resolves the page for params.
func (p *Page[P, T]) Load(ctx context.Context, params P) *Ticket {
	p.mu.Lock()
	p.params = params
	p.loaded = true
	p.mu.Unlock()

	if p.require != nil {
		if msg := p.require(params); msg != "" {
			return p.Miss(msg)
		}
	}
	return p.Run(ctx, func(ctx context.Context) (T, error) {
		return p.fetch(ctx, params)
	})
}

// Retry reloads the last parameters. It returns nil if nothing was loaded.
func (p *Page[P, T]) Retry(ctx context.Context) *Ticket {
	p.mu.Lock()
	params, loaded := p.params, p.loaded
	p.mu.Unlock()
	if !loaded {
		return nil
	}
	return p.Load(ctx, params)
}

// Params returns the parameters of the last load.
func (p *Page[P, T]) Params() P {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.params
}

// ---------------------------------------------------------------------------
// View models
// ---------------------------------------------------------------------------

// HomeView lists every tracked symbol's latest snapshot.
type HomeView struct {
	Overview *dashapi.Overview
}

// MarketParams selects a market page.
type MarketParams struct {
	Ticker    string
	Timeframe string
	Period    string
}

// MarketView merges the ticker's snapshot with its price series.
type MarketView struct {
	Ticker   string
	Snapshot dashapi.Snapshot
	Series   *dashapi.Series
}

// Indicator names one technical indicator page.
type Indicator string

const (
	IndicatorSMA  Indicator = "sma"
	IndicatorRSI  Indicator = "rsi"
	IndicatorMACD Indicator = "macd"
)

// Title is the page heading for the indicator.
func (i Indicator) Title() string {
	switch i {
	case IndicatorSMA:
		return "Simple Moving Averages"
	case IndicatorRSI:
		return "Relative Strength Index"
	case IndicatorMACD:
		return "MACD"
	}
	return strings.ToUpper(string(i))
}

// IndicatorView is one indicator's series for a ticker.
type IndicatorView struct {
	Ticker    string
	Indicator Indicator
	Series    *dashapi.Series
}

// ArticlesParams selects an article list. An empty Date lists the backend's
// current articles rather than a report's.
type ArticlesParams struct {
	Date     string
	Polarity dashapi.Polarity
}

// ArticlesView is one polarity's article list.
type ArticlesView struct {
	Date     string
	Polarity dashapi.Polarity
	Articles []dashapi.Article
}

// ---------------------------------------------------------------------------
// Page constructors
// ---------------------------------------------------------------------------

// NewHomePage resolves the overview of every tracked symbol.
func NewHomePage(api API, log *slog.Logger) *Page[struct{}, HomeView] {
	return NewPage("home", MsgOverviewFailed, log, nil,
		func(ctx context.Context, _ struct{}) (HomeView, error) {
			ov, err := api.GetOverview(ctx, "")
			if err != nil {
				return HomeView{}, err
			}
			return HomeView{Overview: ov}, nil
		})
}

// NewMarketPage resolves a ticker's overview and series concurrently. Either
// failing fails the page.
func NewMarketPage(api API, log *slog.Logger) *Page[MarketParams, MarketView] {
	return NewPage("market", MsgMarketFailed, log,
		func(p MarketParams) string {
			if strings.TrimSpace(p.Ticker) == "" {
				return MsgNoTicker
			}
			return ""
		},
		func(ctx context.Context, p MarketParams) (MarketView, error) {
			ov, series, err := Join2(ctx,
				func(ctx context.Context) (*dashapi.Overview, error) {
					return api.GetOverview(ctx, p.Ticker)
				},
				func(ctx context.Context) (*dashapi.Series, error) {
					return api.GetSeries(ctx, p.Ticker, p.Timeframe, p.Period)
				},
			)
			if err != nil {
				return MarketView{}, err
			}
			snap, _ := ov.Lookup(p.Ticker)
			return MarketView{Ticker: p.Ticker, Snapshot: snap, Series: series}, nil
		})
}

// NewIndicatorPage resolves one indicator series for a ticker.
func NewIndicatorPage(api API, ind Indicator, log *slog.Logger) *Page[string, IndicatorView] {
	return NewPage("market/"+string(ind), MsgIndicatorFailed, log,
		requireTicker,
		func(ctx context.Context, ticker string) (IndicatorView, error) {
			var (
				s   *dashapi.Series
				err error
			)
			switch ind {
			case IndicatorSMA:
				s, err = api.GetSMA(ctx, ticker)
			case IndicatorRSI:
				s, err = api.GetRSI(ctx, ticker)
			default:
				s, err = api.GetMACD(ctx, ticker)
			}
			if err != nil {
				return IndicatorView{}, err
			}
			return IndicatorView{Ticker: ticker, Indicator: ind, Series: s}, nil
		})
}

// NewReportPage resolves a single report by date.
func NewReportPage(api API, log *slog.Logger) *Page[string, *dashapi.Report] {
	return NewPage("report", MsgReportFailed, log,
		requireDate,
		func(ctx context.Context, date string) (*dashapi.Report, error) {
			return api.GetReport(ctx, date)
		})
}

// NewArticlesPage resolves an article list, either a report's or the
// backend's current one.
func NewArticlesPage(api API, log *slog.Logger) *Page[ArticlesParams, ArticlesView] {
	return NewPage("articles", MsgArticlesFailed, log, nil,
		func(ctx context.Context, p ArticlesParams) (ArticlesView, error) {
			var (
				arts []dashapi.Article
				err  error
			)
			if p.Date != "" {
				arts, err = api.GetReportArticles(ctx, p.Date, p.Polarity)
			} else {
				arts, err = api.GetSentimentArticles(ctx, p.Polarity)
			}
			if err != nil {
				return ArticlesView{}, err
			}
			return ArticlesView{Date: p.Date, Polarity: p.Polarity, Articles: arts}, nil
		})
}

func requireTicker(t string) string {
	if strings.TrimSpace(t) == "" {
		return MsgNoTicker
	}
	return ""
}

func requireDate(d string) string {
	if strings.TrimSpace(d) == "" {
		return MsgNoDate
	}
	return ""
}
