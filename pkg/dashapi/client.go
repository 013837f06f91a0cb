// Package dashapi is a typed client for the market indicator and news
// sentiment backend. Every call returns a validated payload or exactly one
// of *NetworkError, *HTTPError or *DecodeError. The client never retries.
package dashapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"marketdash/internal/util"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://localhost:5000/api"

const maxBodyBytes = 16 << 20

// Client talks to the dashboard backend. A Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithRateLimit caps outgoing requests at perMin per minute. Zero disables
// limiting.
func WithRateLimit(perMin int) Option {
	return func(c *Client) {
		if perMin <= 0 {
			c.limiter = nil
			return
		}
		burst := perMin / 6
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(float64(perMin)/60.0), burst)
	}
}

// WithLogger sets the logger for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient creates a client rooted at baseURL, e.g.
// "http://localhost:5000/api". An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        util.Discard(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the root every route is resolved against.
func (c *Client) BaseURL() string { return c.baseURL }

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// GetOverview returns the latest snapshot for every tracked symbol, or for
// ticker alone when it is non-empty.
func (c *Client) GetOverview(ctx context.Context, ticker string) (*Overview, error) {
	const op = "GetOverview"
	path := "/market/overview"
	if ticker != "" {
		path += "/" + url.PathEscape(ticker)
	}
	var ov Overview
	if err := c.get(ctx, op, path, nil, &ov); err != nil {
		return nil, err
	}
	if err := ov.validate(ticker); err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}
	return &ov, nil
}

// GetSeries returns the price and indicator series for ticker. Empty
// timeframe or period leave the choice to the server.
func (c *Client) GetSeries(ctx context.Context, ticker, timeframe, period string) (*Series, error) {
	q := url.Values{}
	if timeframe != "" {
		q.Set("timeframe", timeframe)
	}
	if period != "" {
		q.Set("period", period)
	}
	return c.getSeries(ctx, "GetSeries", "/market/data/"+url.PathEscape(ticker), q)
}

// GetSMA returns the moving-average series for ticker.
func (c *Client) GetSMA(ctx context.Context, ticker string) (*Series, error) {
	return c.getSeries(ctx, "GetSMA", "/market/sma/"+url.PathEscape(ticker), nil)
}

// GetRSI returns the relative-strength series for ticker.
func (c *Client) GetRSI(ctx context.Context, ticker string) (*Series, error) {
	return c.getSeries(ctx, "GetRSI", "/market/rsi/"+url.PathEscape(ticker), nil)
}

// GetMACD returns the MACD, signal and histogram series for ticker.
func (c *Client) GetMACD(ctx context.Context, ticker string) (*Series, error) {
	return c.getSeries(ctx, "GetMACD", "/market/macd/"+url.PathEscape(ticker), nil)
}

func (c *Client) getSeries(ctx context.Context, op, path string, q url.Values) (*Series, error) {
	var s Series
	if err := c.get(ctx, op, path, q, &s); err != nil {
		return nil, err
	}
	if err := s.validate(); err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}
	return &s, nil
}

// ListSymbols returns the symbols the backend tracks.
func (c *Client) ListSymbols(ctx context.Context) ([]string, error) {
	return getList[string](ctx, c, "ListSymbols", "/market/symbols", "symbols")
}

// ListTimeframes returns the backend's timeframe aliases (key to interval).
func (c *Client) ListTimeframes(ctx context.Context) (map[string]string, error) {
	const op = "ListTimeframes"
	var out struct {
		Timeframes map[string]string `json:"timeframes"`
	}
	if err := c.get(ctx, op, "/market/timeframes", nil, &out); err != nil {
		return nil, err
	}
	if out.Timeframes == nil {
		return nil, &DecodeError{Op: op, Err: fmt.Errorf("timeframes missing")}
	}
	return out.Timeframes, nil
}

// ---------------------------------------------------------------------------
// Sentiment
// ---------------------------------------------------------------------------

// AnalyzeSentiment classifies text. Blank text fails with *ValidationError
// and no request is sent.
func (c *Client) AnalyzeSentiment(ctx context.Context, text string) (*SentimentResult, error) {
	const op = "AnalyzeSentiment"
	if strings.TrimSpace(text) == "" {
		return nil, &ValidationError{Field: "text", Message: MsgEmptyText}
	}
	var res SentimentResult
	body := map[string]string{"text": text}
	if err := c.post(ctx, op, "/sentiment/analyze", body, &res); err != nil {
		return nil, err
	}
	if err := res.validate(); err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}
	return &res, nil
}

// AnalyzeBatch classifies each text; results keep input order.
func (c *Client) AnalyzeBatch(ctx context.Context, texts []string) ([]SentimentResult, error) {
	const op = "AnalyzeBatch"
	if len(texts) == 0 {
		return nil, &ValidationError{Field: "texts", Message: MsgEmptyText}
	}
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, &ValidationError{Field: "texts", Message: MsgEmptyText}
		}
	}
	var res []SentimentResult
	body := map[string][]string{"texts": texts}
	if err := c.post(ctx, op, "/sentiment/analyze/batch", body, &res); err != nil {
		return nil, err
	}
	if len(res) != len(texts) {
		return nil, &DecodeError{Op: op, Err: fmt.Errorf("got %d results for %d texts", len(res), len(texts))}
	}
	if err := validateEach(res); err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}
	return res, nil
}

// GetSentimentArticles returns the backend's current articles of one
// polarity.
func (c *Client) GetSentimentArticles(ctx context.Context, p Polarity) ([]Article, error) {
	return getList[Article](ctx, c, "GetSentimentArticles", "/sentiment/articles/"+string(p), "articles")
}

// SentimentHistory returns previously stored analysis results.
func (c *Client) SentimentHistory(ctx context.Context) ([]SentimentResult, error) {
	return getList[SentimentResult](ctx, c, "SentimentHistory", "/sentiment/history", "results")
}

// ---------------------------------------------------------------------------
// Reports
// ---------------------------------------------------------------------------

// ListReports returns available report dates in server order (most recent
// first).
func (c *Client) ListReports(ctx context.Context) ([]string, error) {
	return getList[string](ctx, c, "ListReports", "/report/reports", "reports")
}

// GetReport returns the digest for date.
func (c *Client) GetReport(ctx context.Context, date string) (*Report, error) {
	const op = "GetReport"
	var r Report
	if err := c.get(ctx, op, "/report/reports/"+url.PathEscape(date), nil, &r); err != nil {
		return nil, err
	}
	if err := r.validate(date); err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}
	return &r, nil
}

// GetReportArticles returns the articles of one polarity in date's report.
func (c *Client) GetReportArticles(ctx context.Context, date string, p Polarity) ([]Article, error) {
	path := "/report/reports/" + url.PathEscape(date) + "/" + string(p)
	return getList[Article](ctx, c, "GetReportArticles", path, "articles")
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

func getList[T any](ctx context.Context, c *Client, op, path, key string) ([]T, error) {
	data, err := c.do(ctx, op, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	out, err := decodeList[T](data, key)
	if err == nil {
		err = validateEach(out)
	}
	if err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, op, path string, q url.Values, out any) error {
	data, err := c.do(ctx, op, http.MethodGet, path, q, nil)
	if err != nil {
		return err
	}
	return decodeInto(op, data, out)
}

func (c *Client) post(ctx context.Context, op, path string, body, out any) error {
	data, err := c.do(ctx, op, http.MethodPost, path, nil, body)
	if err != nil {
		return err
	}
	return decodeInto(op, data, out)
}

func decodeInto(op string, data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return &DecodeError{Op: op, Err: err}
	}
	return nil
}

// do issues one request and returns the raw body of a 2xx response.
func (c *Client) do(ctx context.Context, op, method, path string, q url.Values, body any) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &NetworkError{Op: op, Err: err}
		}
	}

	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encoding request: %w", op, err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug("request failed", "op", op, "url", u, "error", err)
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	c.log.Debug("request", "op", op, "method", method, "url", u,
		"status", resp.StatusCode, "bytes", len(data), "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{Op: op, Status: resp.StatusCode, Message: errorMessage(data)}
	}
	return data, nil
}

// errorMessage extracts {"error": "..."} from a failure body.
func errorMessage(data []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &e) == nil {
		return e.Error
	}
	return ""
}
